package cctalk

import (
	"strings"
	"time"

	"github.com/wfunc/cctalk-service/internal/errors"
)

// Commands 面向单个设备地址的类型化命令层。每个方法对应一条
// 协议命令：编码参数、提交链路、解码应答负载。
type Commands struct {
	link    *LinkController
	address byte
}

// NewCommands 创建指定设备地址的命令层
func NewCommands(link *LinkController, address byte) *Commands {
	return &Commands{link: link, address: address}
}

// Address 返回目标设备地址
func (c *Commands) Address() byte {
	return c.address
}

// Link 返回底层链路控制器
func (c *Commands) Link() *LinkController {
	return c.link
}

// expectACK 发送命令并要求无负载ACK应答
func (c *Commands) expectACK(header Header, payload []byte) error {
	reply, err := c.link.Request(c.address, header, payload)
	if err != nil {
		return err
	}
	if !reply.IsACK() {
		return errors.Newf(errors.ErrDecodeFailed,
			"%s期望ACK，收到%d字节负载", header, len(reply.Payload))
	}
	return nil
}

// expectASCII 发送命令并取ASCII字符串应答
func (c *Commands) expectASCII(header Header) (string, error) {
	reply, err := c.link.Request(c.address, header, nil)
	if err != nil {
		return "", err
	}
	return string(reply.Payload), nil
}

// expectPayload 发送命令并要求固定长度负载
func (c *Commands) expectPayload(header Header, payload []byte, want int) ([]byte, error) {
	reply, err := c.link.Request(c.address, header, payload)
	if err != nil {
		return nil, err
	}
	if len(reply.Payload) != want {
		return nil, errors.Newf(errors.ErrDecodeFailed,
			"%s期望%d字节负载，收到%d字节", header, want, len(reply.Payload))
	}
	return reply.Payload, nil
}

// SimplePoll 在线探测，设备以ACK应答
func (c *Commands) SimplePoll() error {
	return c.expectACK(HeaderSimplePoll, nil)
}

// ResetDevice 软复位。设备可能在ACK后立即重启，也可能不应答，
// 调用方应以重新轮询确认设备恢复。
func (c *Commands) ResetDevice() error {
	return c.expectACK(HeaderResetDevice, nil)
}

// GetCommsRevision 读取通信协议版本（级别、主版本、次版本）
func (c *Commands) GetCommsRevision() (release, major, minor byte, err error) {
	payload, err := c.expectPayload(HeaderGetCommsRevision, nil, 3)
	if err != nil {
		return 0, 0, 0, err
	}
	return payload[0], payload[1], payload[2], nil
}

// GetEquipmentCategory 读取设备类别字符串并解析
func (c *Commands) GetEquipmentCategory() (Category, string, error) {
	raw, err := c.expectASCII(HeaderGetEquipmentCat)
	if err != nil {
		return CategoryUnknown, "", err
	}
	return ParseCategory(raw), strings.TrimSpace(raw), nil
}

// GetManufacturer 读取制造商标识
func (c *Commands) GetManufacturer() (string, error) {
	return c.expectASCII(HeaderGetManufacturer)
}

// GetProductCode 读取产品代码
func (c *Commands) GetProductCode() (string, error) {
	return c.expectASCII(HeaderGetProductCode)
}

// GetBuildCode 读取构建代码
func (c *Commands) GetBuildCode() (string, error) {
	return c.expectASCII(HeaderGetBuildCode)
}

// GetSoftwareRevision 读取固件版本
func (c *Commands) GetSoftwareRevision() (string, error) {
	return c.expectASCII(HeaderGetSoftwareRev)
}

// GetSerialNumber 读取序列号，3字节小端
func (c *Commands) GetSerialNumber() (uint32, error) {
	payload, err := c.expectPayload(HeaderGetSerialNumber, nil, 3)
	if err != nil {
		return 0, err
	}
	return uint32(payload[0]) | uint32(payload[1])<<8 | uint32(payload[2])<<16, nil
}

// GetBaseYear 读取基准年份（4字符ASCII）
func (c *Commands) GetBaseYear() (string, error) {
	return c.expectASCII(HeaderGetBaseYear)
}

// GetVariableSet 读取设备自定义变量集，内容按设备型号解释
func (c *Commands) GetVariableSet() ([]byte, error) {
	reply, err := c.link.Request(c.address, HeaderGetVariableSet, nil)
	if err != nil {
		return nil, err
	}
	return reply.Payload, nil
}

// 轮询间隔单位到毫秒的换算表，下标即单位码
var pollingUnitMillis = [...]int64{
	0,              // 0: 特殊情形
	1,              // 1: 毫秒
	10,             // 2: 10毫秒
	1000,           // 3: 秒
	60 * 1000,      // 4: 分
	3600 * 1000,    // 5: 时
	86400 * 1000,   // 6: 天
	7 * 86400000,   // 7: 周
	30 * 86400000,  // 8: 月
	31557600 * 1000, // 9: 年
}

// GetPollingPriority 读取设备建议的轮询间隔。单位码或数值异常、
// 换算结果为0或超过1秒时回退到默认间隔。
func (c *Commands) GetPollingPriority() (time.Duration, error) {
	payload, err := c.expectPayload(HeaderGetPollingPriority, nil, 2)
	if err != nil {
		return 0, err
	}

	unit, value := payload[0], payload[1]
	var millis int64
	if int(unit) < len(pollingUnitMillis) {
		millis = pollingUnitMillis[unit] * int64(value)
	}
	if millis <= 0 || millis > 1000 {
		return DefaultPollingInterval, nil
	}
	return time.Duration(millis) * time.Millisecond, nil
}

// PerformSelfCheck 执行自检，返回故障码与可选附加信息
func (c *Commands) PerformSelfCheck() (FaultCode, byte, error) {
	reply, err := c.link.Request(c.address, HeaderPerformSelfCheck, nil)
	if err != nil {
		return FaultUnspecified, 0, err
	}
	switch len(reply.Payload) {
	case 1:
		return FaultCode(reply.Payload[0]), 0, nil
	case 2:
		return FaultCode(reply.Payload[0]), reply.Payload[1], nil
	}
	return FaultUnspecified, 0, errors.Newf(errors.ErrDecodeFailed,
		"自检应答%d字节，期望1或2字节", len(reply.Payload))
}

// SetInhibitStatus 设置各位置禁止掩码，位n对应位置n+1，置1允许
func (c *Commands) SetInhibitStatus(mask uint16) error {
	return c.expectACK(HeaderSetInhibitStatus, []byte{byte(mask), byte(mask >> 8)})
}

// GetInhibitStatus 读取各位置禁止掩码
func (c *Commands) GetInhibitStatus() (uint16, error) {
	payload, err := c.expectPayload(HeaderGetInhibitStatus, nil, 2)
	if err != nil {
		return 0, err
	}
	return uint16(payload[0]) | uint16(payload[1])<<8, nil
}

// SetMasterInhibit 设置主禁止。accept为true时位0置1，设备接收投入。
func (c *Commands) SetMasterInhibit(accept bool) error {
	var b byte
	if accept {
		b = 1
	}
	return c.expectACK(HeaderSetMasterInhibit, []byte{b})
}

// GetMasterInhibit 读取主禁止状态，返回设备是否接收投入
func (c *Commands) GetMasterInhibit() (bool, error) {
	payload, err := c.expectPayload(HeaderGetMasterInhibit, nil, 1)
	if err != nil {
		return false, err
	}
	return payload[0]&1 == 1, nil
}

// decodeEventBuffer 解码事件缓冲应答：计数器加若干条双字节记录。
// 负载长度必须为奇数且至少1字节，常规设备返回1+2×5字节。
func decodeEventBuffer(header Header, payload []byte) (EventBuffer, error) {
	if len(payload) < 1 || len(payload)%2 == 0 {
		return EventBuffer{}, errors.Newf(errors.ErrDecodeFailed,
			"%s应答%d字节，期望奇数长度", header, len(payload))
	}

	buf := EventBuffer{
		Counter: payload[0],
		Entries: make([]EventEntry, 0, (len(payload)-1)/2),
	}
	for i := 1; i < len(payload); i += 2 {
		buf.Entries = append(buf.Entries, EventEntry{
			ResultA: payload[i],
			ResultB: payload[i+1],
		})
	}
	return buf, nil
}

// ReadBufferedCredit 读取硬币事件缓冲（计数器加5条记录，最新在前）
func (c *Commands) ReadBufferedCredit() (EventBuffer, error) {
	reply, err := c.link.Request(c.address, HeaderReadBufferedCredit, nil)
	if err != nil {
		return EventBuffer{}, err
	}
	return decodeEventBuffer(HeaderReadBufferedCredit, reply.Payload)
}

// ReadBufferedBillEvents 读取纸币事件缓冲（计数器加5条记录，最新在前）
func (c *Commands) ReadBufferedBillEvents() (EventBuffer, error) {
	reply, err := c.link.Request(c.address, HeaderReadBufferedBillEvents, nil)
	if err != nil {
		return EventBuffer{}, err
	}
	return decodeEventBuffer(HeaderReadBufferedBillEvents, reply.Payload)
}

// RouteBill 对暂存器中的纸币下达路由命令。ACK表示已路由，
// 否则应答单字节状态（暂存器空或路由失败）。
func (c *Commands) RouteBill(route BillRouteCommand) (BillRouteStatus, error) {
	reply, err := c.link.Request(c.address, HeaderRouteBill, []byte{byte(route)})
	if err != nil {
		return BillFailedToRoute, err
	}
	if reply.IsACK() {
		return BillRouted, nil
	}
	if len(reply.Payload) == 1 {
		return BillRouteStatus(reply.Payload[0]), nil
	}
	return BillFailedToRoute, errors.Newf(errors.ErrDecodeFailed,
		"路由应答%d字节，期望ACK或1字节状态", len(reply.Payload))
}

// GetCoinID 读取指定位置(1..=16)的硬币标识字符串
func (c *Commands) GetCoinID(position byte) (string, error) {
	reply, err := c.link.Request(c.address, HeaderGetCoinID, []byte{position})
	if err != nil {
		return "", err
	}
	return string(reply.Payload), nil
}

// GetBillID 读取指定位置(1..=16)的纸币标识字符串
func (c *Commands) GetBillID(position byte) (string, error) {
	reply, err := c.link.Request(c.address, HeaderGetBillID, []byte{position})
	if err != nil {
		return "", err
	}
	return string(reply.Payload), nil
}

// GetCountryScalingFactor 读取两字符国别码的换算数据。
// 返回数据全0表示该国别不受支持。
func (c *Commands) GetCountryScalingFactor(country string) (CountryScaling, error) {
	if len(country) != 2 {
		return CountryScaling{}, errors.Newf(errors.ErrInvalidParam,
			"国别码须为2字符，收到%q", country)
	}
	payload, err := c.expectPayload(HeaderGetCountryScaling, []byte(country), 3)
	if err != nil {
		return CountryScaling{}, err
	}
	return CountryScaling{
		ScalingFactor: uint16(payload[0]) | uint16(payload[1])<<8,
		DecimalPlaces: payload[2],
	}, nil
}

// BillOperatingMode 纸币识别器工作模式
type BillOperatingMode struct {
	UseStacker bool // 启用钱箱
	UseEscrow  bool // 启用暂存器
}

// bits 编码为模式掩码，位0钱箱、位1暂存器
func (m BillOperatingMode) bits() byte {
	var b byte
	if m.UseStacker {
		b |= 1
	}
	if m.UseEscrow {
		b |= 2
	}
	return b
}

// SetBillOperatingMode 设置纸币识别器工作模式
func (c *Commands) SetBillOperatingMode(mode BillOperatingMode) error {
	return c.expectACK(HeaderSetBillOperatingMode, []byte{mode.bits()})
}

// readCounter3 读取3字节小端计数器
func (c *Commands) readCounter3(header Header) (uint32, error) {
	payload, err := c.expectPayload(header, nil, 3)
	if err != nil {
		return 0, err
	}
	return uint32(payload[0]) | uint32(payload[1])<<8 | uint32(payload[2])<<16, nil
}

// GetAcceptCounter 读取累计接收计数
func (c *Commands) GetAcceptCounter() (uint32, error) {
	return c.readCounter3(HeaderGetAcceptCounter)
}

// GetRejectCounter 读取累计拒收计数
func (c *Commands) GetRejectCounter() (uint32, error) {
	return c.readCounter3(HeaderGetRejectCounter)
}

// GetFraudCounter 读取累计欺诈计数
func (c *Commands) GetFraudCounter() (uint32, error) {
	return c.readCounter3(HeaderGetFraudCounter)
}

// GetInsertionCounter 读取累计投入计数
func (c *Commands) GetInsertionCounter() (uint32, error) {
	return c.readCounter3(HeaderGetInsertionCounter)
}
