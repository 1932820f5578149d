package cctalk

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

// CategoryTestSuite 设备类别测试套件
type CategoryTestSuite struct {
	suite.Suite
}

// 测试类别字符串解析
func (suite *CategoryTestSuite) TestParseCategory() {
	suite.Equal(CategoryCoinAcceptor, ParseCategory("Coin Acceptor"))
	suite.Equal(CategoryBillValidator, ParseCategory("Bill Validator"))

	// 首尾空白被忽略
	suite.Equal(CategoryCoinAcceptor, ParseCategory("  Coin Acceptor  "))

	// 下划线与空格等价
	suite.Equal(CategoryBillValidator, ParseCategory("Bill_Validator"))

	// 未收录的字符串
	suite.Equal(CategoryUnknown, ParseCategory("Slot Machine"))
	suite.Equal(CategoryUnknown, ParseCategory(""))
}

// 测试出厂默认地址
func (suite *CategoryTestSuite) TestDefaultAddress() {
	suite.Equal(byte(2), CategoryCoinAcceptor.DefaultAddress())
	suite.Equal(byte(40), CategoryBillValidator.DefaultAddress())
	suite.Equal(byte(0), CategoryDebug.DefaultAddress())
}

// 测试类别名称
func (suite *CategoryTestSuite) TestCategoryString() {
	suite.Equal("Coin Acceptor", CategoryCoinAcceptor.String())
	suite.Equal("Bill Validator", CategoryBillValidator.String())
	suite.Equal("Unknown", CategoryUnknown.String())
	suite.Equal("Unknown", Category(200).String())
}

func TestCategoryTestSuite(t *testing.T) {
	suite.Run(t, new(CategoryTestSuite))
}
