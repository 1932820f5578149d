package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wfunc/cctalk-service/internal/models"
	"github.com/wfunc/cctalk-service/internal/repository"
	"github.com/wfunc/cctalk-service/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("用户名或密码错误")
	ErrUserNotFound       = errors.New("账号不存在")
	ErrUserFrozen         = errors.New("账号已冻结")
	ErrSessionNotFound    = errors.New("会话不存在")
	ErrInvalidToken       = errors.New("无效的令牌")
	ErrTokenExpired       = errors.New("令牌已过期")
)

// authService 认证服务实现
type authService struct {
	db          *gorm.DB
	userRepo    repository.UserRepository
	sessionRepo repository.UserSessionRepository
	jwtManager  *utils.JWTManager
	log         *zap.Logger
}

// NewAuthService 创建认证服务
func NewAuthService(
	db *gorm.DB,
	userRepo repository.UserRepository,
	sessionRepo repository.UserSessionRepository,
	jwtManager *utils.JWTManager,
	log *zap.Logger,
) AuthService {
	return &authService{
		db:          db,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		jwtManager:  jwtManager,
		log:         log,
	}
}

// Login 账号登录
func (s *authService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	user, err := s.userRepo.FindByUsername(ctx, req.Username)
	if err != nil || user == nil {
		s.log.Warn("登录失败：账号不存在", zap.String("username", req.Username))
		return nil, ErrInvalidCredentials
	}

	if !user.CanLogin() {
		return nil, ErrUserFrozen
	}

	valid, err := utils.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil || !valid {
		s.log.Warn("登录失败：密码错误", zap.Uint("userID", user.ID))
		return nil, ErrInvalidCredentials
	}

	sessionID, err := utils.GenerateSessionID()
	if err != nil {
		return nil, fmt.Errorf("生成会话ID失败: %w", err)
	}

	accessToken, err := s.jwtManager.GenerateAccessToken(
		user.ID, user.Username, user.Email, user.Role, sessionID)
	if err != nil {
		return nil, fmt.Errorf("生成访问令牌失败: %w", err)
	}

	refreshToken, err := s.jwtManager.GenerateRefreshToken(user.ID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("生成刷新令牌失败: %w", err)
	}

	session := &models.UserSession{
		UserID:       user.ID,
		SessionID:    sessionID,
		Token:        accessToken,
		RefreshToken: refreshToken,
		IP:           req.IP,
		UserAgent:    req.Device,
		IsOnline:     true,
		LastActiveAt: time.Now(),
		ExpireAt:     time.Now().Add(s.jwtManager.GetTokenExpiry(utils.TokenTypeRefresh)),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		s.log.Error("创建会话失败", zap.Error(err))
		return nil, fmt.Errorf("创建会话失败: %w", err)
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, req.IP); err != nil {
		s.log.Warn("更新登录信息失败", zap.Error(err), zap.Uint("userID", user.ID))
	}

	s.log.Info("账号登录成功",
		zap.Uint("userID", user.ID),
		zap.String("username", user.Username),
		zap.String("ip", req.IP))

	return &AuthResponse{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwtManager.GetTokenExpiry(utils.TokenTypeAccess).Seconds()),
		TokenType:    "Bearer",
	}, nil
}

// Logout 账号登出
func (s *authService) Logout(ctx context.Context, userID uint, token string) error {
	claims, err := s.jwtManager.ValidateToken(token)
	if err != nil {
		return ErrInvalidToken
	}

	session, err := s.sessionRepo.FindBySessionID(ctx, claims.SessionID)
	if err != nil || session == nil {
		return ErrSessionNotFound
	}

	if err := s.sessionRepo.Delete(ctx, session.Token); err != nil {
		s.log.Error("删除会话失败", zap.Error(err), zap.String("sessionID", claims.SessionID))
		return fmt.Errorf("删除会话失败: %w", err)
	}

	s.log.Info("账号登出成功", zap.Uint("userID", userID))
	return nil
}

// RefreshToken 刷新令牌
func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	claims, err := s.jwtManager.ValidateToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	if claims.TokenType != utils.TokenTypeRefresh {
		return nil, errors.New("不是刷新令牌")
	}

	session, err := s.sessionRepo.FindBySessionID(ctx, claims.SessionID)
	if err != nil || session == nil {
		return nil, ErrSessionNotFound
	}

	if session.IsExpired() {
		return nil, ErrTokenExpired
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	if !user.CanLogin() {
		return nil, ErrUserFrozen
	}

	accessToken, err := s.jwtManager.GenerateAccessToken(
		user.ID, user.Username, user.Email, user.Role, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("生成访问令牌失败: %w", err)
	}

	// 会话改挂新的访问令牌
	session.Token = accessToken
	session.LastActiveAt = time.Now()
	if err := s.db.WithContext(ctx).Save(session).Error; err != nil {
		s.log.Warn("更新会话令牌失败", zap.Error(err))
	}

	s.log.Info("令牌刷新成功", zap.Uint("userID", user.ID))

	return &AuthResponse{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwtManager.GetTokenExpiry(utils.TokenTypeAccess).Seconds()),
		TokenType:    "Bearer",
	}, nil
}

// ValidateToken 验证令牌
func (s *authService) ValidateToken(ctx context.Context, token string) (*TokenClaims, error) {
	claims, err := s.jwtManager.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	// 刷新令牌不能当访问令牌用
	if claims.TokenType != utils.TokenTypeAccess {
		return nil, ErrInvalidToken
	}

	session, err := s.sessionRepo.FindBySessionID(ctx, claims.SessionID)
	if err != nil || session == nil {
		return nil, ErrSessionNotFound
	}

	if session.IsExpired() {
		return nil, ErrTokenExpired
	}

	_ = s.sessionRepo.UpdateLastActive(ctx, session.Token)

	return &TokenClaims{
		UserID:    claims.UserID,
		Username:  claims.Username,
		Email:     claims.Email,
		Role:      claims.Role,
		SessionID: claims.SessionID,
		IssuedAt:  claims.IssuedAt.Unix(),
		ExpiresAt: claims.ExpiresAt.Unix(),
	}, nil
}

// ValidateSession 验证会话
func (s *authService) ValidateSession(ctx context.Context, sessionID string) (*models.UserSession, error) {
	session, err := s.sessionRepo.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.IsExpired() {
		return nil, ErrTokenExpired
	}

	return session, nil
}

// GetActiveSessions 获取活跃会话
func (s *authService) GetActiveSessions(ctx context.Context, userID uint) ([]*models.UserSession, error) {
	return s.sessionRepo.FindByUserID(ctx, userID)
}

// RevokeSession 撤销会话
func (s *authService) RevokeSession(ctx context.Context, sessionID string) error {
	session, err := s.sessionRepo.FindBySessionID(ctx, sessionID)
	if err != nil {
		return ErrSessionNotFound
	}
	return s.sessionRepo.Delete(ctx, session.Token)
}

// RevokeAllSessions 撤销账号的所有会话
func (s *authService) RevokeAllSessions(ctx context.Context, userID uint) error {
	return s.sessionRepo.DeleteByUserID(ctx, userID)
}
