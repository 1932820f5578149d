package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
	gormlogger "gorm.io/gorm/logger"
)

// DatabaseTestSuite 数据库工具测试套件
type DatabaseTestSuite struct {
	suite.Suite
}

// 测试sqlite DSN补齐pragma参数
func (suite *DatabaseTestSuite) TestPrepareSQLiteDSN() {
	dir := suite.T().TempDir()
	dbPath := filepath.Join(dir, "data", "cctalk.db")

	dsn, err := prepareSQLiteDSN(dbPath)
	suite.NoError(err)
	suite.Contains(dsn, "_busy_timeout=5000")
	suite.Contains(dsn, "_journal_mode=WAL")
	suite.Contains(dsn, "_foreign_keys=on")

	// 数据目录已创建
	suite.DirExists(filepath.Join(dir, "data"))
}

// 测试已有参数不重复追加
func (suite *DatabaseTestSuite) TestPrepareSQLiteDSNKeepsExisting() {
	dir := suite.T().TempDir()
	dbPath := filepath.Join(dir, "cctalk.db") + "?_journal_mode=DELETE"

	dsn, err := prepareSQLiteDSN(dbPath)
	suite.NoError(err)
	suite.Contains(dsn, "_journal_mode=DELETE")
	suite.NotContains(dsn, "_journal_mode=WAL")
	suite.Contains(dsn, "_busy_timeout=5000")
}

// 测试内存库DSN原样返回
func (suite *DatabaseTestSuite) TestPrepareSQLiteDSNMemory() {
	dsn, err := prepareSQLiteDSN(":memory:")
	suite.NoError(err)
	suite.Equal(":memory:", dsn)
}

// 测试日志级别解析
func (suite *DatabaseTestSuite) TestParseLogLevel() {
	suite.Equal(gormlogger.Silent, parseLogLevel("silent"))
	suite.Equal(gormlogger.Error, parseLogLevel("error"))
	suite.Equal(gormlogger.Warn, parseLogLevel("warn"))
	suite.Equal(gormlogger.Info, parseLogLevel("info"))
	suite.Equal(gormlogger.Info, parseLogLevel(""))
}

func TestDatabaseTestSuite(t *testing.T) {
	suite.Run(t, new(DatabaseTestSuite))
}
