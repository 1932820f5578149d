package service

import (
	"context"
	"time"

	"github.com/wfunc/cctalk-service/internal/cctalk"
	"github.com/wfunc/cctalk-service/internal/config"
	"github.com/wfunc/cctalk-service/internal/models"
)

// UserService 运维账号服务接口
type UserService interface {
	// 账号管理
	GetUserByID(ctx context.Context, userID uint) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, req *CreateUserRequest) (*models.User, error)
	GetUserList(ctx context.Context, page, pageSize int) ([]*models.User, int64, error)
	UpdatePassword(ctx context.Context, userID uint, oldPassword, newPassword string) error
	ResetPassword(ctx context.Context, userID uint, newPassword string) error
	DeleteUser(ctx context.Context, userID uint) error

	// 账号状态
	UpdateUserStatus(ctx context.Context, userID uint, status string) error
}

// AuthService 认证服务接口
type AuthService interface {
	// 登录登出
	Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error)
	Logout(ctx context.Context, userID uint, token string) error
	RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error)

	// 验证
	ValidateToken(ctx context.Context, token string) (*TokenClaims, error)
	ValidateSession(ctx context.Context, sessionID string) (*models.UserSession, error)

	// 会话管理
	GetActiveSessions(ctx context.Context, userID uint) ([]*models.UserSession, error)
	RevokeSession(ctx context.Context, sessionID string) error
	RevokeAllSessions(ctx context.Context, userID uint) error
}

// DeviceService 现金设备服务接口。管理配置的全部设备：共享串口
// 的打开与复用、设备轮询生命周期、投入流水落库与事件转发。
type DeviceService interface {
	// 生命周期
	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	// 查询
	List() []*DeviceStatus
	Get(name string) (*DeviceStatus, error)
	Identifiers(name string) (map[uint8]cctalk.Identifier, error)
	Counters(name string) (*DeviceCounters, error)

	// 控制
	SetAccept(name string, accept bool) error
	Reset(name string) error

	// 事件订阅（websocket推送等）
	OnEvent(fn func(DeviceEvent))
}

// CommsLogService 通信日志服务接口
type CommsLogService interface {
	// WireObserverFor 为一台设备构造线路观察者，挂到链路控制器上
	WireObserverFor(deviceName, deviceCategory, serialDevice string, wireCfg config.WireLogConfig) func(cctalk.WireRecord)

	Query(ctx context.Context, query *models.CommsLogQuery) ([]*models.CommsLog, int64, error)
	GetStats(ctx context.Context, startTime, endTime *time.Time) (*models.CommsLogStats, error)
	GetLatestLogs(ctx context.Context, limit int, deviceName string) ([]*models.CommsLog, error)
	GetErrorLogs(ctx context.Context, limit int) ([]*models.CommsLog, error)
	CleanupOldLogs(ctx context.Context, retentionDays int) (int64, error)
	ExportLogs(ctx context.Context, query *models.CommsLogQuery) ([]byte, error)
	Close() error
}

// CreditService 投入流水服务接口
type CreditService interface {
	Query(ctx context.Context, query *models.CreditQuery) ([]*models.CreditRecord, int64, error)
	GetStats(ctx context.Context, startTime, endTime *time.Time) (*models.CreditStats, error)
	GetLatest(ctx context.Context, limit int, deviceName string) ([]*models.CreditRecord, error)
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Device   string `json:"device"`
	IP       string `json:"ip"`
}

// CreateUserRequest 创建账号请求
type CreateUserRequest struct {
	Username string `json:"username" binding:"required,min=3,max=20"`
	Password string `json:"password" binding:"required,min=6"`
	Nickname string `json:"nickname"`
	Email    string `json:"email"`
	Role     string `json:"role" binding:"omitempty,oneof=admin operator viewer"`
}

// AuthResponse 认证响应
type AuthResponse struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	TokenType    string       `json:"token_type"`
}

// TokenClaims JWT Claims
type TokenClaims struct {
	UserID    uint   `json:"user_id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"session_id"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// DeviceStatus 设备运行状态快照
type DeviceStatus struct {
	Name         string             `json:"name"`
	Category     string             `json:"category"`
	SerialDevice string             `json:"serial_device"`
	Address      uint8              `json:"address"`
	State        string             `json:"state"`
	PollInterval time.Duration      `json:"poll_interval"`
	Info         *cctalk.DeviceInfo `json:"info,omitempty"`
}

// DeviceCounters 设备生命周期计数器
type DeviceCounters struct {
	Accepted  uint32 `json:"accepted"`
	Rejected  uint32 `json:"rejected"`
	Fraud     uint32 `json:"fraud"`
	Insertion uint32 `json:"insertion"`
}

// DeviceEventType 设备事件类型
type DeviceEventType string

// 设备事件类型定义
const (
	DeviceEventCredit      DeviceEventType = "credit"
	DeviceEventStateChange DeviceEventType = "state_change"
	DeviceEventRaw         DeviceEventType = "raw_event"
)

// DeviceEvent 推送给订阅方的设备事件
type DeviceEvent struct {
	Type       DeviceEventType `json:"type"`
	DeviceName string          `json:"device_name"`
	Category   string          `json:"category"`
	Payload    interface{}     `json:"payload"`
	Time       time.Time       `json:"time"`
}
