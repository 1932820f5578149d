package service

import (
	"time"

	"github.com/wfunc/cctalk-service/internal/config"
	"github.com/wfunc/cctalk-service/internal/repository"
	"github.com/wfunc/cctalk-service/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Config 服务配置
type Config struct {
	JWTSecret          string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	Devices            []config.DeviceConfig
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		JWTSecret:          "your-secret-key-change-in-production",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
	}
}

// Services 服务集合
type Services struct {
	Auth     AuthService
	User     UserService
	Device   DeviceService
	CommsLog CommsLogService
	Credit   CreditService
}

// NewServices 创建服务集合
func NewServices(db *gorm.DB, cfg *Config, log *zap.Logger) *Services {
	// 初始化仓储
	repos := repository.NewManager(db)

	// 初始化JWT管理器
	jwtManager := utils.NewJWTManager(
		cfg.JWTSecret,
		cfg.AccessTokenExpiry,
		cfg.RefreshTokenExpiry,
	)

	// 初始化服务
	authService := NewAuthService(
		db,
		repos.User(),
		repos.UserSession(),
		jwtManager,
		log,
	)

	userService := NewUserService(
		db,
		repos.User(),
		repos.UserSession(),
		log,
	)

	commsLogService := NewCommsLogService(db)

	creditService := NewCreditService(repos.Credit())

	deviceService := NewDeviceService(
		cfg.Devices,
		repos.Credit(),
		repos.DeviceState(),
		commsLogService,
		log,
	)

	return &Services{
		Auth:     authService,
		User:     userService,
		Device:   deviceService,
		CommsLog: commsLogService,
		Credit:   creditService,
	}
}
