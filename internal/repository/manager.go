package repository

import (
	"context"
	"sync"

	"gorm.io/gorm"
)

// Manager 仓储管理器，提供所有仓储的统一访问接口
type Manager struct {
	db *gorm.DB

	// 事务管理器
	txManager TransactionManager

	// 仓储实例（使用懒加载）
	userOnce sync.Once
	user     UserRepository

	userSessionOnce sync.Once
	userSession     UserSessionRepository

	commsLogOnce sync.Once
	commsLog     *CommsLogRepository

	creditOnce sync.Once
	credit     CreditRepository

	deviceStateOnce sync.Once
	deviceState     DeviceStateRepository
}

// NewManager 创建仓储管理器
func NewManager(db *gorm.DB) *Manager {
	return &Manager{
		db:        db,
		txManager: NewTransactionManager(db),
	}
}

// GetDB 获取数据库实例
func (m *Manager) GetDB() *gorm.DB {
	return m.db
}

// Transaction 获取事务管理器
func (m *Manager) Transaction() TransactionManager {
	return m.txManager
}

// User 获取运维账号仓储
func (m *Manager) User() UserRepository {
	m.userOnce.Do(func() {
		m.user = NewUserRepository(m.db)
	})
	return m.user
}

// UserSession 获取用户会话仓储
func (m *Manager) UserSession() UserSessionRepository {
	m.userSessionOnce.Do(func() {
		m.userSession = NewUserSessionRepository(m.db)
	})
	return m.userSession
}

// CommsLog 获取通信日志仓储
func (m *Manager) CommsLog() *CommsLogRepository {
	m.commsLogOnce.Do(func() {
		m.commsLog = NewCommsLogRepository(m.db)
	})
	return m.commsLog
}

// Credit 获取投入流水仓储
func (m *Manager) Credit() CreditRepository {
	m.creditOnce.Do(func() {
		m.credit = NewCreditRepository(m.db)
	})
	return m.credit
}

// DeviceState 获取设备状态迁移仓储
func (m *Manager) DeviceState() DeviceStateRepository {
	m.deviceStateOnce.Do(func() {
		m.deviceState = NewDeviceStateRepository(m.db)
	})
	return m.deviceState
}

// WithTransaction 在事务中执行操作
func (m *Manager) WithTransaction(ctx context.Context, fn func(tx *Transaction) error) error {
	return m.txManager.WithTransaction(ctx, fn)
}

// WithReadOnlyTransaction 在只读事务中执行操作
func (m *Manager) WithReadOnlyTransaction(ctx context.Context, fn func(tx *Transaction) error) error {
	opts := &TxOptions{
		ReadOnly: true,
	}
	return m.txManager.WithTransactionOptions(ctx, opts, fn)
}
