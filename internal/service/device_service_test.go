package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/wfunc/cctalk-service/internal/cctalk"
	"github.com/wfunc/cctalk-service/internal/config"
	"github.com/wfunc/cctalk-service/internal/models"
	"github.com/wfunc/cctalk-service/internal/repository"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DeviceServiceTestSuite 现金设备服务测试套件。
// 不依赖真实串口：只覆盖拓扑构建、策略判定与事件分发。
type DeviceServiceTestSuite struct {
	suite.Suite
	db  *gorm.DB
	svc *deviceService
}

// SetupSuite 设置测试套件
func (suite *DeviceServiceTestSuite) SetupSuite() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	suite.Require().NoError(err)

	err = db.AutoMigrate(
		&models.CreditRecord{},
		&models.DeviceStateRecord{},
	)
	suite.Require().NoError(err)
	suite.db = db
}

// SetupTest 每个测试前重建服务
func (suite *DeviceServiceTestSuite) SetupTest() {
	suite.db.Exec("DELETE FROM credit_records")
	suite.db.Exec("DELETE FROM device_state_records")

	configs := []config.DeviceConfig{
		{
			Name:         "coin-1",
			Category:     "coin_acceptor",
			SerialDevice: "/dev/ttyUSB0",
			Address:      2,
			PollInterval: 200 * time.Millisecond,
			ResetSettle:  time.Second,
			AcceptOnBoot: true,
		},
		{
			Name:         "bill-1",
			Category:     "bill_validator",
			SerialDevice: "/dev/ttyUSB0",
			Address:      40,
			PollInterval: 200 * time.Millisecond,
			ResetSettle:  time.Second,
			BillPolicy:   config.BillPolicy{Mode: "value_limit", MaxValue: 50},
		},
	}

	svc := NewDeviceService(
		configs,
		repository.NewCreditRepository(suite.db),
		repository.NewDeviceStateRepository(suite.db),
		nil,
		zap.NewNop(),
	)
	suite.svc = svc.(*deviceService)
}

// billIdentifier 构造带国别换算数据的纸币标识
func (suite *DeviceServiceTestSuite) billIdentifier(id string, scaling cctalk.CountryScaling) cctalk.Identifier {
	ident, ok := cctalk.ParseIdentifier(id)
	suite.Require().True(ok)
	ident.Scaling = scaling
	return ident
}

// 测试类别名映射
func (suite *DeviceServiceTestSuite) TestCategoryFromName() {
	cat, err := categoryFromName("coin_acceptor")
	suite.NoError(err)
	suite.Equal(cctalk.CategoryCoinAcceptor, cat)

	cat, err = categoryFromName("bill_validator")
	suite.NoError(err)
	suite.Equal(cctalk.CategoryBillValidator, cat)

	_, err = categoryFromName("hopper")
	suite.Error(err)
}

// 测试纸币放行策略
func (suite *DeviceServiceTestSuite) TestBillPredicate() {
	scaling := cctalk.CountryScaling{ScalingFactor: 100, DecimalPlaces: 2}
	five := suite.billIdentifier("GE0005A", scaling)
	hundred := suite.billIdentifier("GE0100A", scaling)

	// 一律拒收
	deny := suite.svc.billPredicateFor("bill-1", config.BillPolicy{Mode: "deny"})
	suite.False(deny(1, five))

	// 面值上限
	limited := suite.svc.billPredicateFor("bill-1", config.BillPolicy{Mode: "value_limit", MaxValue: 50})
	suite.True(limited(1, five))
	suite.False(limited(1, hundred))

	// 默认放行
	always := suite.svc.billPredicateFor("bill-1", config.BillPolicy{})
	suite.True(always(1, hundred))
}

// 测试面值编码截取
func (suite *DeviceServiceTestSuite) TestIdentValueCode() {
	suite.Equal("0005", identValueCode("GE0005A"))
	suite.Equal("100", identValueCode("GE100A"))
	suite.Equal("", identValueCode("......"))
	suite.Equal("", identValueCode(""))
}

// 测试拓扑构建：同一串口的两台设备共享一条线路
func (suite *DeviceServiceTestSuite) TestBuildTopology() {
	suite.Require().NoError(suite.svc.buildTopology())

	suite.Len(suite.svc.lines, 1)
	suite.Len(suite.svc.devices, 2)
	suite.Equal([]string{"coin-1", "bill-1"}, suite.svc.order)
	suite.Same(suite.svc.devices["coin-1"].line, suite.svc.devices["bill-1"].line)

	// 重复调用无副作用
	suite.Require().NoError(suite.svc.buildTopology())
	suite.Len(suite.svc.devices, 2)
}

// 测试非法类别导致拓扑构建失败
func (suite *DeviceServiceTestSuite) TestBuildTopologyBadCategory() {
	suite.svc.configs = append(suite.svc.configs, config.DeviceConfig{
		Name:         "hopper-1",
		Category:     "hopper",
		SerialDevice: "/dev/ttyUSB1",
	})
	suite.Error(suite.svc.buildTopology())
}

// 测试状态查询
func (suite *DeviceServiceTestSuite) TestListAndGet() {
	suite.Require().NoError(suite.svc.buildTopology())

	statuses := suite.svc.List()
	suite.Len(statuses, 2)
	suite.Equal("coin-1", statuses[0].Name)
	suite.Equal("coin_acceptor", statuses[0].Category)
	suite.Equal("/dev/ttyUSB0", statuses[0].SerialDevice)
	suite.Equal(uint8(2), statuses[0].Address)
	suite.Equal("ShutDown", statuses[0].State)
	suite.Nil(statuses[0].Info)

	status, err := suite.svc.Get("bill-1")
	suite.NoError(err)
	suite.Equal("bill_validator", status.Category)

	_, err = suite.svc.Get("missing")
	suite.ErrorIs(err, ErrDeviceNotFound)
}

// 测试控制操作对未知设备报错
func (suite *DeviceServiceTestSuite) TestControlUnknownDevice() {
	suite.Require().NoError(suite.svc.buildTopology())

	suite.ErrorIs(suite.svc.SetAccept("missing", true), ErrDeviceNotFound)
	suite.ErrorIs(suite.svc.Reset("missing"), ErrDeviceNotFound)
	_, err := suite.svc.Identifiers("missing")
	suite.ErrorIs(err, ErrDeviceNotFound)
	_, err = suite.svc.Counters("missing")
	suite.ErrorIs(err, ErrDeviceNotFound)

	// 已知设备的接收开关不依赖串口
	suite.NoError(suite.svc.SetAccept("coin-1", false))
}

// 测试事件订阅与广播
func (suite *DeviceServiceTestSuite) TestBroadcast() {
	received := make([]DeviceEvent, 0, 2)
	suite.svc.OnEvent(func(ev DeviceEvent) {
		received = append(received, ev)
	})

	ev := DeviceEvent{
		Type:       DeviceEventStateChange,
		DeviceName: "coin-1",
		Category:   "coin_acceptor",
		Time:       time.Now(),
	}
	suite.svc.broadcast(ev)
	suite.svc.broadcast(ev)

	suite.Len(received, 2)
	suite.Equal(DeviceEventStateChange, received[0].Type)
	suite.Equal("coin-1", received[0].DeviceName)
}

// 测试投入流水落库字段
func (suite *DeviceServiceTestSuite) TestPersistCredit() {
	suite.Require().NoError(suite.svc.buildTopology())

	ident := suite.billIdentifier("GE0005A", cctalk.CountryScaling{ScalingFactor: 100, DecimalPlaces: 2})
	at := time.Now()
	suite.svc.persistCredit(suite.svc.devices["bill-1"], cctalk.CreditEvent{
		Position:   3,
		Identifier: ident,
		Category:   cctalk.CategoryBillValidator,
		Time:       at,
	})

	var record models.CreditRecord
	suite.Require().NoError(suite.db.First(&record).Error)
	suite.Equal("bill-1", record.DeviceName)
	suite.Equal("bill_validator", record.DeviceCategory)
	suite.Equal(byte(3), record.Position)
	suite.Equal("GE0005A", record.Ident)
	suite.Equal("GE", record.Country)
	suite.Equal("0005", record.ValueCode)
	suite.InDelta(5.0, record.Amount, 0.0001)
	suite.Equal(uint16(500), record.RawValue)
	suite.Equal(uint16(100), record.Divisor)
}

func TestDeviceServiceTestSuite(t *testing.T) {
	suite.Run(t, new(DeviceServiceTestSuite))
}
