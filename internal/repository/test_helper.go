package repository

import (
	"github.com/wfunc/cctalk-service/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB 为测试套件设置内存数据库
func SetupTestDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.UserSession{},
		&models.CommsLog{},
		&models.CreditRecord{},
		&models.DeviceStateRecord{},
	)
	if err != nil {
		panic(err)
	}

	return db
}

// CleanupTestDB 关闭测试数据库连接
func CleanupTestDB(db *gorm.DB) {
	sqlDB, _ := db.DB()
	if sqlDB != nil {
		sqlDB.Close()
	}
}
