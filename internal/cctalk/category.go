package cctalk

import "strings"

// Category 设备类别
type Category byte

// 设备类别定义
const (
	CategoryUnknown       Category = iota // 未知设备
	CategoryCoinAcceptor                  // 硬币接收器
	CategoryPayout                        // 找零器
	CategoryReelStatus                    // 转轮状态
	CategoryBillValidator                 // 纸币识别器
	CategoryCardReader                    // 读卡器
	CategoryDisplay                       // 显示器
	CategoryKeypad                        // 键盘
	CategoryDongle                        // 加密狗
	CategoryMeter                         // 计数表
	CategoryBootloader                    // 引导程序
	CategoryPower                         // 电源
	CategoryPrinter                       // 打印机
	CategoryRNG                           // 随机数发生器
	CategoryHopperScale                   // 称重料斗
	CategoryCoinFeeder                    // 送币器
	CategoryBillRecycler                  // 纸币循环器
	CategoryEscrow                        // 暂存器
	CategoryDebug                         // 调试设备
)

// 类别上报名称表。设备返回的ASCII字符串经过trim后按此表匹配，
// 下划线与空格视为等价（部分厂商固件混用）。
var categoryNames = map[Category]string{
	CategoryCoinAcceptor:  "Coin Acceptor",
	CategoryPayout:        "Payout",
	CategoryReelStatus:    "Reel Status",
	CategoryBillValidator: "Bill Validator",
	CategoryCardReader:    "Card Reader",
	CategoryDisplay:       "Display",
	CategoryKeypad:        "Keypad",
	CategoryDongle:        "Dongle",
	CategoryMeter:         "Meter",
	CategoryBootloader:    "Bootloader",
	CategoryPower:         "Power",
	CategoryPrinter:       "Printer",
	CategoryRNG:           "RNG",
	CategoryHopperScale:   "Hopper Scale",
	CategoryCoinFeeder:    "Coin Feeder",
	CategoryBillRecycler:  "Bill Recycler",
	CategoryEscrow:        "Escrow",
	CategoryDebug:         "Debug",
}

// 各类别的出厂默认ccTalk地址
var categoryDefaultAddress = map[Category]byte{
	CategoryCoinAcceptor:  2,
	CategoryPayout:        3,
	CategoryBillValidator: 40,
	CategoryCardReader:    50,
	CategoryDisplay:       4,
	CategoryKeypad:        5,
	CategoryMeter:         80,
	CategoryPower:         85,
	CategoryPrinter:       90,
	CategoryRNG:           95,
	CategoryEscrow:        35,
}

// String 返回类别名称
func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "Unknown"
}

// DefaultAddress 返回该类别的出厂默认地址，未定义时返回0
func (c Category) DefaultAddress() byte {
	return categoryDefaultAddress[c]
}

// ParseCategory 解析设备上报的类别字符串。
// 宽松匹配：去除首尾空白，下划线映射为空格。
func ParseCategory(reported string) Category {
	normalized := strings.TrimSpace(strings.ReplaceAll(reported, "_", " "))
	for cat, name := range categoryNames {
		if normalized == name {
			return cat
		}
	}
	return CategoryUnknown
}
