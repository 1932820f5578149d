package database

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/wfunc/cctalk-service/internal/config"
	"github.com/wfunc/cctalk-service/internal/logger"
	"github.com/wfunc/cctalk-service/internal/models"
	"github.com/wfunc/cctalk-service/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("数据库未初始化")
	}

	// 清理过期锁文件
	CleanupStaleLocks()

	// 获取迁移锁，避免多个进程同时迁移
	dbPath := getDBPath(db)
	if dbPath != "" {
		lockFile, err := acquireMigrationLock(dbPath)
		if err != nil {
			logger.Error("无法获取迁移锁", zap.Error(err))
			return fmt.Errorf("获取迁移锁失败: %w", err)
		}
		defer releaseMigrationLock(lockFile)
	}

	migrationModels := []interface{}{
		// 账号相关
		&models.User{},
		&models.UserSession{},

		// 通信日志相关
		&models.CommsLog{},

		// 投入流水相关
		&models.CreditRecord{},
		&models.DeviceStateRecord{},
	}

	logger.Info("开始数据库迁移...")

	// 设置 SQLite 专用配置，避免锁定问题
	if db.Dialector.Name() == "sqlite" {
		db.Exec("PRAGMA foreign_keys = OFF")
		defer db.Exec("PRAGMA foreign_keys = ON")
	}

	for _, model := range migrationModels {
		tableName := getTableName(model)

		// 检查表是否存在且有数据
		if shouldSkipMigration(db, tableName) {
			logger.Info("跳过大型表的迁移", zap.String("table", tableName))
			continue
		}

		if err := db.AutoMigrate(model); err != nil {
			logger.Error("迁移失败",
				zap.String("model", fmt.Sprintf("%T", model)),
				zap.Error(err),
			)
			return err
		}
		logger.Debug("迁移成功", zap.String("model", fmt.Sprintf("%T", model)))
	}

	// 创建索引
	if err := createIndexes(db); err != nil {
		return err
	}

	// 初始化默认数据
	if err := initDefaultData(db); err != nil {
		return err
	}

	logger.Info("数据库迁移完成")
	return nil
}

// createIndexes 创建数据库索引
func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// 用户表索引
		"CREATE INDEX IF NOT EXISTS idx_users_username ON users(username)",

		// 通信日志表索引
		"CREATE INDEX IF NOT EXISTS idx_comms_logs_device_name ON comms_logs(device_name)",
		"CREATE INDEX IF NOT EXISTS idx_comms_logs_direction ON comms_logs(direction)",
		"CREATE INDEX IF NOT EXISTS idx_comms_logs_header_name ON comms_logs(header_name)",
		"CREATE INDEX IF NOT EXISTS idx_comms_logs_request_id ON comms_logs(request_id)",
		"CREATE INDEX IF NOT EXISTS idx_comms_logs_created_at ON comms_logs(created_at)",

		// 投入流水表索引
		"CREATE INDEX IF NOT EXISTS idx_credit_records_device_name ON credit_records(device_name)",
		"CREATE INDEX IF NOT EXISTS idx_credit_records_credited_at ON credit_records(credited_at)",
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			logger.Warn("创建索引失败", zap.String("index", idx), zap.Error(err))
		}
	}

	logger.Info("数据库索引创建完成")
	return nil
}

// initDefaultData 初始化默认数据
func initDefaultData(db *gorm.DB) error {
	// 检查是否已有账号
	var count int64
	db.Model(&models.User{}).Count(&count)
	if count > 0 {
		return nil
	}

	cfg := config.Get()
	username := "admin"
	passwordHash := ""
	if cfg != nil {
		if cfg.Security.Admin.Username != "" {
			username = cfg.Security.Admin.Username
		}
		passwordHash = cfg.Security.Admin.PasswordHash
	}

	// 未配置密码哈希时生成随机密码并打印一次
	if passwordHash == "" {
		password, err := utils.GenerateInitialPassword()
		if err != nil {
			return fmt.Errorf("生成初始密码失败: %w", err)
		}
		passwordHash, err = utils.HashPassword(password)
		if err != nil {
			return fmt.Errorf("哈希初始密码失败: %w", err)
		}
		logger.Warn("未配置运维账号密码，已生成初始密码",
			zap.String("username", username),
			zap.String("password", password))
	}

	admin := models.User{
		Username:     username,
		PasswordHash: passwordHash,
		Role:         "admin",
		Status:       "active",
	}
	if err := db.Create(&admin).Error; err != nil {
		logger.Error("创建默认运维账号失败",
			zap.String("username", username),
			zap.Error(err),
		)
		return err
	}

	logger.Info("默认数据初始化完成")
	return nil
}

// getTableName 获取模型对应的表名
func getTableName(model interface{}) string {
	t := reflect.TypeOf(model)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if tabler, ok := model.(interface{ TableName() string }); ok {
		return tabler.TableName()
	}

	modelName := t.Name()
	// 转换为蛇形命名并复数化
	tableName := toSnakeCase(modelName) + "s"
	return tableName
}

// toSnakeCase 将驼峰命名转换为蛇形命名
func toSnakeCase(s string) string {
	var result []rune
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result = append(result, '_')
		}
		result = append(result, r)
	}
	return strings.ToLower(string(result))
}

// shouldSkipMigration 检查是否应该跳过迁移
func shouldSkipMigration(db *gorm.DB, tableName string) bool {
	// comms_logs 可能积累大量数据，存在且很大时只补索引不动表结构
	if tableName == "comms_logs" {
		var count int64
		var exists bool

		err := db.Raw("SELECT name FROM sqlite_master WHERE type='table' AND name=?", tableName).Scan(&exists).Error
		if err != nil || !exists {
			return false
		}

		db.Raw(fmt.Sprintf("SELECT COUNT(*) FROM %s", tableName)).Scan(&count)

		if count > 10000 {
			logger.Info("表中数据量较大，跳过AutoMigrate",
				zap.String("table", tableName),
				zap.Int64("count", count))

			ensureIndexesForLargeTable(db, tableName)
			return true
		}
	}
	return false
}

// ensureIndexesForLargeTable 为大表确保索引存在
func ensureIndexesForLargeTable(db *gorm.DB, tableName string) {
	if tableName == "comms_logs" {
		// 仅创建不存在的索引，避免重建表
		indexes := []string{
			"CREATE INDEX IF NOT EXISTS idx_comms_logs_device_name ON comms_logs(device_name)",
			"CREATE INDEX IF NOT EXISTS idx_comms_logs_direction ON comms_logs(direction)",
			"CREATE INDEX IF NOT EXISTS idx_comms_logs_header_name ON comms_logs(header_name)",
			"CREATE INDEX IF NOT EXISTS idx_comms_logs_request_id ON comms_logs(request_id)",
			"CREATE INDEX IF NOT EXISTS idx_comms_logs_created_at ON comms_logs(created_at)",
			"CREATE INDEX IF NOT EXISTS idx_comms_logs_error_code ON comms_logs(error_code)",
			"CREATE INDEX IF NOT EXISTS idx_comms_logs_timestamp ON comms_logs(timestamp)",
		}

		for _, idx := range indexes {
			if err := db.Exec(idx).Error; err != nil {
				if !strings.Contains(err.Error(), "already exists") {
					logger.Warn("创建索引失败", zap.String("index", idx), zap.Error(err))
				}
			}
		}
	}
}

// DropAllTables 删除所有表（仅用于测试环境）
func DropAllTables(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("数据库未初始化")
	}

	var tables []string
	if err := db.Raw("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&tables).Error; err != nil {
		return err
	}

	for _, table := range tables {
		if err := db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", table)).Error; err != nil {
			logger.Error("删除表失败", zap.String("table", table), zap.Error(err))
			return err
		}
	}

	logger.Info("所有表已删除")
	return nil
}
