package cctalk

import "fmt"

// Header ccTalk命令头（单字节）
type Header byte

// ccTalk命令头定义
const (
	// ===== 通用命令 =====
	HeaderReply              Header = 0   // 应答（所有响应的命令头固定为0）
	HeaderResetDevice        Header = 1   // 复位设备
	HeaderGetCommsRevision   Header = 4   // 获取通讯协议版本
	HeaderBusy               Header = 6   // 设备忙
	HeaderSwitchBaudRate     Header = 113 // 切换波特率
	HeaderGetBuildCode       Header = 192 // 获取构建代码
	HeaderGetFraudCounter    Header = 193 // 获取欺诈计数
	HeaderGetRejectCounter   Header = 194 // 获取拒收计数
	HeaderGetSoftwareRev     Header = 241 // 获取软件版本
	HeaderGetSerialNumber    Header = 242 // 获取序列号
	HeaderGetProductCode     Header = 244 // 获取产品代码
	HeaderGetEquipmentCat    Header = 245 // 获取设备类别
	HeaderGetManufacturer    Header = 246 // 获取制造商
	HeaderGetVariableSet     Header = 247 // 获取变量集
	HeaderGetStatus          Header = 248 // 获取状态
	HeaderGetPollingPriority Header = 249 // 获取推荐轮询间隔
	HeaderAddressPoll        Header = 253 // 地址轮询（广播）
	HeaderSimplePoll         Header = 254 // 简单轮询（存活检测）
	HeaderFactorySetUpTest   Header = 255 // 工厂设置与测试

	// ===== 禁止/使能控制 =====
	HeaderGetInhibitStatus       Header = 230 // 获取通道禁止掩码
	HeaderSetInhibitStatus       Header = 231 // 设置通道禁止掩码
	HeaderGetMasterInhibit       Header = 227 // 获取主禁止位
	HeaderSetMasterInhibit       Header = 228 // 设置主禁止位
	HeaderPerformSelfCheck       Header = 232 // 执行自检
	HeaderGetCountryScaling      Header = 156 // 获取国别换算因子
	HeaderGetBaseYear            Header = 170 // 获取基准年份
	HeaderGetAcceptCounter       Header = 225 // 获取接收计数
	HeaderGetInsertionCounter    Header = 226 // 获取投入计数

	// ===== 硬币接收器 =====
	HeaderReadBufferedCredit Header = 229 // 读取缓冲事件（硬币）
	HeaderGetCoinID          Header = 184 // 获取硬币标识

	// ===== 纸币识别器 =====
	HeaderReadBufferedBillEvents Header = 159 // 读取缓冲事件（纸币）
	HeaderGetBillID              Header = 157 // 获取纸币标识
	HeaderRouteBill              Header = 154 // 路由纸币（入箱/退回）
	HeaderSetBillOperatingMode   Header = 153 // 设置纸币工作模式
)

var headerNames = map[Header]string{
	HeaderReply:                  "Reply",
	HeaderResetDevice:            "ResetDevice",
	HeaderGetCommsRevision:       "GetCommsRevision",
	HeaderBusy:                   "Busy",
	HeaderSwitchBaudRate:         "SwitchBaudRate",
	HeaderGetBuildCode:           "GetBuildCode",
	HeaderGetFraudCounter:        "GetFraudCounter",
	HeaderGetRejectCounter:       "GetRejectCounter",
	HeaderGetSoftwareRev:         "GetSoftwareRevision",
	HeaderGetSerialNumber:        "GetSerialNumber",
	HeaderGetProductCode:         "GetProductCode",
	HeaderGetEquipmentCat:        "GetEquipmentCategory",
	HeaderGetManufacturer:        "GetManufacturer",
	HeaderGetVariableSet:         "GetVariableSet",
	HeaderGetStatus:              "GetStatus",
	HeaderGetPollingPriority:     "GetPollingPriority",
	HeaderAddressPoll:            "AddressPoll",
	HeaderSimplePoll:             "SimplePoll",
	HeaderFactorySetUpTest:       "FactorySetUpAndTest",
	HeaderGetInhibitStatus:       "GetInhibitStatus",
	HeaderSetInhibitStatus:       "SetInhibitStatus",
	HeaderGetMasterInhibit:       "GetMasterInhibitStatus",
	HeaderSetMasterInhibit:       "SetMasterInhibitStatus",
	HeaderPerformSelfCheck:       "PerformSelfCheck",
	HeaderGetCountryScaling:      "GetCountryScalingFactor",
	HeaderGetBaseYear:            "GetBaseYear",
	HeaderGetAcceptCounter:       "GetAcceptCounter",
	HeaderGetInsertionCounter:    "GetInsertionCounter",
	HeaderReadBufferedCredit:     "ReadBufferedCredit",
	HeaderGetCoinID:              "GetCoinId",
	HeaderReadBufferedBillEvents: "ReadBufferedBillEvents",
	HeaderGetBillID:              "GetBillId",
	HeaderRouteBill:              "RouteBill",
	HeaderSetBillOperatingMode:   "SetBillOperatingMode",
}

// String 返回命令头的可读名称
func (h Header) String() string {
	if name, ok := headerNames[h]; ok {
		return name
	}
	return fmt.Sprintf("Header(%d)", byte(h))
}
