package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/cctalk-service/internal/service"
)

// 账号角色，权限从低到高。viewer只读监控页面，
// operator可控制设备，admin额外管理账号。
const (
	RoleViewer   = "viewer"
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

// roleRank 角色权限等级，未知角色为0，一律拒绝
var roleRank = map[string]int{
	RoleViewer:   1,
	RoleOperator: 2,
	RoleAdmin:    3,
}

// AuthMiddleware JWT认证中间件
type AuthMiddleware struct {
	authService service.AuthService
}

// NewAuthMiddleware 创建认证中间件
func NewAuthMiddleware(authService service.AuthService) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
	}
}

// authenticate 提取并验证令牌，成功后把账号信息写入上下文。
// 返回false时已经写好了401响应。
func (m *AuthMiddleware) authenticate(c *gin.Context) bool {
	token := extractToken(c)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"code":    "NO_TOKEN",
			"message": "缺少认证令牌",
		})
		return false
	}

	claims, err := m.authService.ValidateToken(c.Request.Context(), token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"code":    "INVALID_TOKEN",
			"message": "无效的令牌",
		})
		return false
	}

	c.Set("userID", claims.UserID)
	c.Set("username", claims.Username)
	c.Set("role", claims.Role)
	c.Set("sessionID", claims.SessionID)
	return true
}

// RequireAuth 需要登录
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.authenticate(c) {
			return
		}
		c.Next()
	}
}

// RequireRole 需要不低于minRole的角色。角色是线性递进的，
// 传operator则operator和admin都放行。
func (m *AuthMiddleware) RequireRole(minRole string) gin.HandlerFunc {
	required := roleRank[minRole]
	return func(c *gin.Context) {
		if !m.authenticate(c) {
			return
		}

		role, _ := c.Get("role")
		rank := roleRank[role.(string)]
		if rank == 0 || rank < required {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    "INSUFFICIENT_PERMISSION",
				"message": "权限不足",
			})
			return
		}

		c.Next()
	}
}

// extractToken 从请求中提取令牌。正常走Authorization头；
// 浏览器的WebSocket握手没法带自定义头，放行query参数。
func extractToken(c *gin.Context) string {
	bearerToken := c.GetHeader("Authorization")
	if bearerToken != "" {
		parts := strings.Split(bearerToken, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}

	return c.Query("token")
}

// GetUserID 从上下文获取账号ID
func GetUserID(c *gin.Context) (uint, bool) {
	if userID, exists := c.Get("userID"); exists {
		if id, ok := userID.(uint); ok {
			return id, true
		}
	}
	return 0, false
}
