package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/cctalk-service/internal/middleware"
	"github.com/wfunc/cctalk-service/internal/service"
	ws "github.com/wfunc/cctalk-service/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Router API路由器
type Router struct {
	engine         *gin.Engine
	db             *gorm.DB
	services       *service.Services
	hub            *ws.Hub
	authHandler    *AuthHandler
	userHandler    *UserHandler
	deviceHandler  *DeviceHandler
	commsHandler   *CommsLogHandler
	creditHandler  *CreditHandler
	wsHandler      *WebSocketHandler
	authMiddleware *middleware.AuthMiddleware
	log            *zap.Logger
}

// NewRouter 创建路由器
func NewRouter(db *gorm.DB, services *service.Services, log *zap.Logger) *Router {
	// 创建Gin引擎
	engine := gin.New()

	// 全局中间件
	engine.Use(gin.Recovery())
	engine.Use(gin.Logger())

	// WebSocket Hub，接入设备事件流
	hub := ws.NewHub(log)
	hub.BindDeviceService(services.Device)
	go hub.Run()

	// 创建处理器
	authHandler := NewAuthHandler(services.Auth, services.User)
	userHandler := NewUserHandler(services.User)
	deviceHandler := NewDeviceHandler(services.Device)
	commsHandler := NewCommsLogHandler(services.CommsLog)
	creditHandler := NewCreditHandler(services.Credit)
	wsHandler := NewWebSocketHandler(hub, log)

	// 创建中间件
	authMiddleware := middleware.NewAuthMiddleware(services.Auth)

	router := &Router{
		engine:         engine,
		db:             db,
		services:       services,
		hub:            hub,
		authHandler:    authHandler,
		userHandler:    userHandler,
		deviceHandler:  deviceHandler,
		commsHandler:   commsHandler,
		creditHandler:  creditHandler,
		wsHandler:      wsHandler,
		authMiddleware: authMiddleware,
		log:            log,
	}

	// 设置路由
	router.setupRoutes()

	return router
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	// 健康检查
	r.engine.GET("/health", r.healthCheck)

	// API文档
	registerOpenAPIRoutes(r.engine)
	registerSwaggerRoutes(r.engine)

	// API v1路由组
	v1 := r.engine.Group("/api/v1")

	// 认证路由（公开）
	auth := v1.Group("/auth")
	{
		auth.POST("/login", r.authHandler.Login)
		auth.POST("/refresh", r.authHandler.RefreshToken)
	}

	// 认证路由（需要登录）
	authRequired := v1.Group("/auth")
	authRequired.Use(r.authMiddleware.RequireAuth())
	{
		authRequired.POST("/logout", r.authHandler.Logout)
		authRequired.GET("/profile", r.authHandler.GetProfile)
		authRequired.PUT("/password", r.authHandler.UpdatePassword)
		authRequired.GET("/sessions", r.authHandler.GetSessions)
		authRequired.DELETE("/sessions/:session_id", r.authHandler.RevokeSession)
	}

	// 设备路由（需要登录）
	devices := v1.Group("/devices")
	devices.Use(r.authMiddleware.RequireAuth())
	{
		devices.GET("", r.deviceHandler.ListDevices)
		devices.GET("/:name", r.deviceHandler.GetDevice)
		devices.GET("/:name/identifiers", r.deviceHandler.GetIdentifiers)
		devices.GET("/:name/counters", r.deviceHandler.GetCounters)
	}

	// 设备控制（操作员及以上）
	deviceControl := v1.Group("/devices")
	deviceControl.Use(r.authMiddleware.RequireRole(middleware.RoleOperator))
	{
		deviceControl.PUT("/:name/accept", r.deviceHandler.SetAccept)
		deviceControl.POST("/:name/reset", r.deviceHandler.ResetDevice)
	}

	// 通信日志路由（需要登录）
	logs := v1.Group("/comms-logs")
	logs.Use(r.authMiddleware.RequireAuth())
	{
		logs.GET("", r.commsHandler.QueryLogs)
		logs.GET("/latest", r.commsHandler.GetLatestLogs)
		logs.GET("/stats", r.commsHandler.GetStats)
		logs.GET("/errors", r.commsHandler.GetErrorLogs)
		logs.GET("/export", r.commsHandler.ExportLogs)
	}

	// 投入流水路由（需要登录）
	credits := v1.Group("/credits")
	credits.Use(r.authMiddleware.RequireAuth())
	{
		credits.GET("", r.creditHandler.QueryCredits)
		credits.GET("/latest", r.creditHandler.GetLatestCredits)
		credits.GET("/stats", r.creditHandler.GetCreditStats)
	}

	// 管理员路由
	admin := v1.Group("/admin")
	admin.Use(r.authMiddleware.RequireRole(middleware.RoleAdmin))
	{
		admin.POST("/users", r.userHandler.CreateUser)
		admin.GET("/users", r.userHandler.ListUsers)
		admin.GET("/users/:id", r.userHandler.GetUser)
		admin.PUT("/users/:id/password", r.userHandler.ResetPassword)
		admin.PUT("/users/:id/status", r.userHandler.UpdateStatus)
		admin.DELETE("/users/:id", r.userHandler.DeleteUser)
		admin.POST("/comms-logs/cleanup", r.commsHandler.CleanupLogs)
	}

	// WebSocket路由（需要登录）
	wsGroup := v1.Group("/ws")
	wsGroup.Use(r.authMiddleware.RequireAuth())
	{
		wsGroup.GET("/events", r.wsHandler.DeviceEvents)
		wsGroup.GET("/online", r.wsHandler.GetOnlineCount)
	}

	// 404处理
	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Code:    "NOT_FOUND",
			Message: "接口不存在",
		})
	})
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	// 检查数据库连接
	sqlDB, err := r.db.DB()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  "数据库连接失败",
		})
		return
	}

	if err := sqlDB.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  "数据库Ping失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"time":    time.Now().Format(time.RFC3339),
		"devices": len(r.services.Device.List()),
	})
}

// Run 启动HTTP服务
func (r *Router) Run(addr string) error {
	r.log.Info("HTTP服务启动", zap.String("addr", addr))
	return r.engine.Run(addr)
}

// GetEngine 获取Gin引擎
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
