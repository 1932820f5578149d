package models

import (
	"time"

	"gorm.io/gorm"
)

// User 运维账号表
type User struct {
	BaseModel
	Username     string     `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Nickname     string     `gorm:"size:100" json:"nickname"`
	Email        string     `gorm:"size:100" json:"email"`
	PasswordHash string     `gorm:"size:255;not null" json:"-"` // bcrypt
	Role         string     `gorm:"size:20;default:'operator'" json:"role"` // admin, operator, viewer
	Status       string     `gorm:"size:20;default:'active'" json:"status"` // active, frozen
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	LastLoginIP  string     `gorm:"size:50" json:"last_login_ip"`

	// 关联（查询时使用 Preload("Sessions") 加载）
	Sessions []UserSession `gorm:"foreignKey:UserID" json:"-"`
}

// UserSession 用户会话表
type UserSession struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"index;not null" json:"user_id"`
	SessionID    string    `gorm:"uniqueIndex;size:64;not null" json:"session_id"`
	Token        string    `gorm:"uniqueIndex;size:255;not null" json:"token"`
	RefreshToken string    `gorm:"size:255" json:"refresh_token"`
	IP           string    `gorm:"size:50" json:"ip"`
	UserAgent    string    `gorm:"size:255" json:"user_agent"`
	IsOnline     bool      `gorm:"default:true" json:"is_online"`
	LastActiveAt time.Time `json:"last_active_at"`
	ExpireAt     time.Time `json:"expire_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName 指定User表名
func (User) TableName() string {
	return "users"
}

// BeforeCreate 创建前的钩子
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.Nickname == "" {
		u.Nickname = u.Username
	}
	if u.Status == "" {
		u.Status = "active"
	}
	if u.Role == "" {
		u.Role = "operator"
	}
	return nil
}

// TableName 指定UserSession表名
func (UserSession) TableName() string {
	return "user_sessions"
}

// IsActive 检查账号是否激活
func (u *User) IsActive() bool {
	return u.Status == "active"
}

// CanLogin 检查账号是否可以登录
func (u *User) CanLogin() bool {
	return u.Status == "active"
}

// UpdateLoginInfo 更新登录信息
func (u *User) UpdateLoginInfo(ip string) {
	now := time.Now()
	u.LastLoginAt = &now
	u.LastLoginIP = ip
}

// IsExpired 检查会话是否已过期
func (s *UserSession) IsExpired() bool {
	return time.Now().After(s.ExpireAt)
}
