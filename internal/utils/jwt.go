package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// 令牌类型
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// tokenIssuer 本服务签发的令牌统一带此issuer，解析时强制校验，
// 防止同一密钥下其他内网服务签的令牌被误认。
const tokenIssuer = "cctalk-service"

// JWTClaims 自定义JWT Claims
type JWTClaims struct {
	UserID    uint   `json:"user_id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"session_id"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// JWTManager JWT管理器。只支持HS256对称签名，密钥来自配置。
type JWTManager struct {
	secret        []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	parser        *jwt.Parser
}

// NewJWTManager 创建JWT管理器
func NewJWTManager(secretKey string, accessExpiry, refreshExpiry time.Duration) *JWTManager {
	return &JWTManager{
		secret:        []byte(secretKey),
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(tokenIssuer),
			jwt.WithExpirationRequired(),
		),
	}
}

// sign 统一签名入口
func (j *JWTManager) sign(claims *JWTClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
}

// registeredClaims 构造标准Claims段
func registeredClaims(subject string, expiry time.Duration) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Issuer:    tokenIssuer,
		Subject:   subject,
	}
}

// GenerateAccessToken 生成访问令牌
func (j *JWTManager) GenerateAccessToken(userID uint, username, email, role, sessionID string) (string, error) {
	return j.sign(&JWTClaims{
		UserID:           userID,
		Username:         username,
		Email:            email,
		Role:             role,
		SessionID:        sessionID,
		TokenType:        TokenTypeAccess,
		RegisteredClaims: registeredClaims(username, j.accessExpiry),
	})
}

// GenerateRefreshToken 生成刷新令牌。刷新令牌不携带身份属性，
// 刷新时从数据库重新读取账号的最新角色和状态。
func (j *JWTManager) GenerateRefreshToken(userID uint, sessionID string) (string, error) {
	return j.sign(&JWTClaims{
		UserID:           userID,
		SessionID:        sessionID,
		TokenType:        TokenTypeRefresh,
		RegisteredClaims: registeredClaims("", j.refreshExpiry),
	})
}

// ValidateToken 验证令牌签名、有效期与issuer
func (j *JWTManager) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := j.parser.ParseWithClaims(tokenString, &JWTClaims{}, func(*jwt.Token) (interface{}, error) {
		return j.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// GetTokenExpiry 获取指定类型令牌的有效期
func (j *JWTManager) GetTokenExpiry(tokenType string) time.Duration {
	if tokenType == TokenTypeRefresh {
		return j.refreshExpiry
	}
	return j.accessExpiry
}
