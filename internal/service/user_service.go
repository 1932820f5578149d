package service

import (
	"context"
	"fmt"
	"regexp"

	"github.com/wfunc/cctalk-service/internal/models"
	"github.com/wfunc/cctalk-service/internal/repository"
	"github.com/wfunc/cctalk-service/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)

// userService 运维账号服务实现
type userService struct {
	db          *gorm.DB
	userRepo    repository.UserRepository
	sessionRepo repository.UserSessionRepository
	log         *zap.Logger
}

// NewUserService 创建运维账号服务
func NewUserService(
	db *gorm.DB,
	userRepo repository.UserRepository,
	sessionRepo repository.UserSessionRepository,
	log *zap.Logger,
) UserService {
	return &userService{
		db:          db,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		log:         log,
	}
}

// GetUserByID 根据ID获取账号
func (s *userService) GetUserByID(ctx context.Context, userID uint) (*models.User, error) {
	return s.userRepo.FindByID(ctx, userID)
}

// GetUserByUsername 根据用户名获取账号
func (s *userService) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.userRepo.FindByUsername(ctx, username)
}

// CreateUser 创建账号
func (s *userService) CreateUser(ctx context.Context, req *CreateUserRequest) (*models.User, error) {
	if !usernamePattern.MatchString(req.Username) {
		return nil, fmt.Errorf("用户名只能包含3-20位字母、数字和下划线")
	}
	if err := utils.ValidatePassword(req.Username, req.Password); err != nil {
		return nil, err
	}

	if existing, _ := s.userRepo.FindByUsername(ctx, req.Username); existing != nil {
		return nil, fmt.Errorf("用户名已存在")
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("密码加密失败: %w", err)
	}

	user := &models.User{
		Username:     req.Username,
		Nickname:     req.Nickname,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
		Status:       "active",
	}
	if user.Role == "" {
		user.Role = "operator"
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		s.log.Error("创建账号失败", zap.Error(err), zap.String("username", req.Username))
		return nil, fmt.Errorf("创建账号失败: %w", err)
	}

	s.log.Info("账号创建成功",
		zap.Uint("userID", user.ID),
		zap.String("username", user.Username),
		zap.String("role", user.Role))
	return user, nil
}

// GetUserList 获取账号列表
func (s *userService) GetUserList(ctx context.Context, page, pageSize int) ([]*models.User, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	pagination := &repository.Pagination{Page: page, PageSize: pageSize}
	users, err := s.userRepo.GetAll(ctx, pagination)
	if err != nil {
		return nil, 0, err
	}
	return users, pagination.Total, nil
}

// UpdatePassword 修改密码（需验证旧密码）
func (s *userService) UpdatePassword(ctx context.Context, userID uint, oldPassword, newPassword string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	valid, err := utils.VerifyPassword(oldPassword, user.PasswordHash)
	if err != nil || !valid {
		return fmt.Errorf("旧密码错误")
	}

	if err := utils.ValidatePassword(user.Username, newPassword); err != nil {
		return err
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("密码加密失败: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("更新密码失败: %w", err)
	}

	// 密码变更后踢掉全部会话
	if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		s.log.Warn("清理会话失败", zap.Error(err), zap.Uint("userID", userID))
	}

	s.log.Info("密码修改成功", zap.Uint("userID", userID))
	return nil
}

// ResetPassword 管理员重置密码
func (s *userService) ResetPassword(ctx context.Context, userID uint, newPassword string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := utils.ValidatePassword(user.Username, newPassword); err != nil {
		return err
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("密码加密失败: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("更新密码失败: %w", err)
	}

	if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		s.log.Warn("清理会话失败", zap.Error(err), zap.Uint("userID", userID))
	}

	s.log.Info("密码重置成功", zap.Uint("userID", userID))
	return nil
}

// DeleteUser 删除账号（软删除）
func (s *userService) DeleteUser(ctx context.Context, userID uint) error {
	if _, err := s.userRepo.FindByID(ctx, userID); err != nil {
		return err
	}

	if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		s.log.Warn("清理会话失败", zap.Error(err), zap.Uint("userID", userID))
	}

	if err := s.userRepo.Delete(ctx, userID); err != nil {
		return fmt.Errorf("删除账号失败: %w", err)
	}

	s.log.Info("账号已删除", zap.Uint("userID", userID))
	return nil
}

// UpdateUserStatus 更新账号状态
func (s *userService) UpdateUserStatus(ctx context.Context, userID uint, status string) error {
	if status != "active" && status != "frozen" {
		return fmt.Errorf("无效的账号状态: %s", status)
	}

	if err := s.userRepo.UpdateStatus(ctx, userID, status); err != nil {
		return fmt.Errorf("更新账号状态失败: %w", err)
	}

	// 冻结时踢掉全部会话
	if status == "frozen" {
		if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
			s.log.Warn("清理会话失败", zap.Error(err), zap.Uint("userID", userID))
		}
	}

	s.log.Info("账号状态已更新", zap.Uint("userID", userID), zap.String("status", status))
	return nil
}
