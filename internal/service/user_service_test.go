package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/wfunc/cctalk-service/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// UserServiceTestSuite 运维账号服务测试套件
type UserServiceTestSuite struct {
	suite.Suite
	db          *gorm.DB
	userService UserService
	authService AuthService
	ctx         context.Context
}

// SetupSuite 设置测试套件
func (suite *UserServiceTestSuite) SetupSuite() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	suite.Require().NoError(err)

	err = db.AutoMigrate(
		&models.User{},
		&models.UserSession{},
		&models.CommsLog{},
		&models.CreditRecord{},
		&models.DeviceStateRecord{},
	)
	suite.Require().NoError(err)

	suite.db = db
	suite.ctx = context.Background()

	services := NewServices(db, DefaultConfig(), zap.NewNop())
	suite.userService = services.User
	suite.authService = services.Auth
}

// SetupTest 每个测试前清理数据
func (suite *UserServiceTestSuite) SetupTest() {
	suite.db.Exec("DELETE FROM user_sessions")
	suite.db.Exec("DELETE FROM users")
}

// 测试创建账号
func (suite *UserServiceTestSuite) TestCreateUser() {
	user, err := suite.userService.CreateUser(suite.ctx, &CreateUserRequest{
		Username: "admin1",
		Password: "password123",
		Role:     "admin",
		Email:    "admin@example.com",
	})
	suite.NoError(err)
	suite.Equal("admin1", user.Username)
	suite.Equal("admin", user.Role)
	suite.NotEqual("password123", user.PasswordHash)

	// 默认角色
	user, err = suite.userService.CreateUser(suite.ctx, &CreateUserRequest{
		Username: "viewer1",
		Password: "password123",
	})
	suite.NoError(err)
	suite.Equal("operator", user.Role)
}

// 测试创建账号的参数校验
func (suite *UserServiceTestSuite) TestCreateUserValidation() {
	// 用户名非法
	_, err := suite.userService.CreateUser(suite.ctx, &CreateUserRequest{
		Username: "a",
		Password: "password123",
	})
	suite.Error(err)

	// 密码过短
	_, err = suite.userService.CreateUser(suite.ctx, &CreateUserRequest{
		Username: "operator1",
		Password: "123",
	})
	suite.Error(err)

	// 用户名重复
	_, err = suite.userService.CreateUser(suite.ctx, &CreateUserRequest{
		Username: "operator1",
		Password: "password123",
	})
	suite.NoError(err)
	_, err = suite.userService.CreateUser(suite.ctx, &CreateUserRequest{
		Username: "operator1",
		Password: "password456",
	})
	suite.Error(err)
}

// 测试账号列表分页
func (suite *UserServiceTestSuite) TestGetUserList() {
	for _, name := range []string{"u1001", "u1002", "u1003"} {
		_, err := suite.userService.CreateUser(suite.ctx, &CreateUserRequest{
			Username: name,
			Password: "password123",
		})
		suite.Require().NoError(err)
	}

	users, total, err := suite.userService.GetUserList(suite.ctx, 1, 2)
	suite.NoError(err)
	suite.Equal(int64(3), total)
	suite.Len(users, 2)

	// 非法分页参数回退默认值
	users, total, err = suite.userService.GetUserList(suite.ctx, 0, 0)
	suite.NoError(err)
	suite.Equal(int64(3), total)
	suite.Len(users, 3)
}

// 测试修改密码并踢掉旧会话
func (suite *UserServiceTestSuite) TestUpdatePassword() {
	user, err := suite.userService.CreateUser(suite.ctx, &CreateUserRequest{
		Username: "operator2",
		Password: "password123",
	})
	suite.Require().NoError(err)

	_, err = suite.authService.Login(suite.ctx, &LoginRequest{
		Username: "operator2",
		Password: "password123",
	})
	suite.Require().NoError(err)

	// 旧密码错误
	err = suite.userService.UpdatePassword(suite.ctx, user.ID, "wrong", "newpassword")
	suite.Error(err)

	// 修改成功
	err = suite.userService.UpdatePassword(suite.ctx, user.ID, "password123", "newpassword")
	suite.NoError(err)

	// 旧会话已被清理
	sessions, err := suite.authService.GetActiveSessions(suite.ctx, user.ID)
	suite.NoError(err)
	suite.Empty(sessions)

	// 新密码可登录
	_, err = suite.authService.Login(suite.ctx, &LoginRequest{
		Username: "operator2",
		Password: "newpassword",
	})
	suite.NoError(err)
}

// 测试管理员重置密码
func (suite *UserServiceTestSuite) TestResetPassword() {
	user, err := suite.userService.CreateUser(suite.ctx, &CreateUserRequest{
		Username: "operator3",
		Password: "password123",
	})
	suite.Require().NoError(err)

	suite.Error(suite.userService.ResetPassword(suite.ctx, user.ID, "123"))
	suite.NoError(suite.userService.ResetPassword(suite.ctx, user.ID, "resetpass"))

	_, err = suite.authService.Login(suite.ctx, &LoginRequest{
		Username: "operator3",
		Password: "resetpass",
	})
	suite.NoError(err)
}

// 测试账号状态切换：冻结后会话被清理
func (suite *UserServiceTestSuite) TestUpdateUserStatus() {
	user, err := suite.userService.CreateUser(suite.ctx, &CreateUserRequest{
		Username: "operator4",
		Password: "password123",
	})
	suite.Require().NoError(err)

	suite.Error(suite.userService.UpdateUserStatus(suite.ctx, user.ID, "banned"))

	_, err = suite.authService.Login(suite.ctx, &LoginRequest{
		Username: "operator4",
		Password: "password123",
	})
	suite.Require().NoError(err)

	suite.NoError(suite.userService.UpdateUserStatus(suite.ctx, user.ID, "frozen"))

	sessions, err := suite.authService.GetActiveSessions(suite.ctx, user.ID)
	suite.NoError(err)
	suite.Empty(sessions)

	suite.NoError(suite.userService.UpdateUserStatus(suite.ctx, user.ID, "active"))
	found, err := suite.userService.GetUserByID(suite.ctx, user.ID)
	suite.NoError(err)
	suite.True(found.CanLogin())
}

// 测试删除账号
func (suite *UserServiceTestSuite) TestDeleteUser() {
	user, err := suite.userService.CreateUser(suite.ctx, &CreateUserRequest{
		Username: "operator5",
		Password: "password123",
	})
	suite.Require().NoError(err)

	suite.NoError(suite.userService.DeleteUser(suite.ctx, user.ID))

	_, err = suite.userService.GetUserByID(suite.ctx, user.ID)
	suite.Error(err)

	// 删除不存在的账号报错
	suite.Error(suite.userService.DeleteUser(suite.ctx, 99999))
}

func TestUserServiceTestSuite(t *testing.T) {
	suite.Run(t, new(UserServiceTestSuite))
}
