package cctalk

import (
	"strconv"
	"strings"
)

// CountryScaling 国别换算数据，由GetCountryScalingFactor命令返回。
// 纸币标识的面值码乘以ScalingFactor得到最小货币单位数。
type CountryScaling struct {
	ScalingFactor uint16 `json:"scaling_factor"` // 换算因子
	DecimalPlaces uint8  `json:"decimal_places"` // 小数位数（USD为2）
}

// Valid 两个字段全为0表示该国别码不被设备支持
func (s CountryScaling) Valid() bool {
	return s.ScalingFactor != 0 || s.DecimalPlaces != 0
}

// 硬币面值码表（协议附录3）。三字符码映射到(面值, 小数位)。
var coinValueCodes = map[string]struct {
	value    uint64
	decimals uint8
}{
	"5m0": {5, 3},
	"10m": {1, 2},
	".01": {1, 2},
	"20m": {2, 2},
	".02": {2, 2},
	"25m": {25, 3},
	"50m": {5, 2},
	".05": {5, 2},
	".10": {1, 1},
	".20": {2, 1},
	".25": {25, 2},
	".50": {5, 1},
	"001": {1, 0},
	"002": {1, 0},
	"2.5": {25, 1},
	"005": {5, 0},
	"010": {10, 0},
	"020": {20, 0},
	"025": {25, 0},
	"050": {50, 0},
	"100": {100, 0},
	"200": {200, 0},
	"250": {250, 0},
	"500": {500, 0},
	"1K0": {1000, 0},
	"2K0": {2000, 0},
	"2K5": {2500, 0},
	"5K0": {5000, 0},
	"10K": {10000, 0},
	"20K": {20000, 0},
	"25K": {25000, 0},
	"50K": {50000, 0},
	"M10": {100000, 0},
	"M20": {200000, 0},
	"M25": {250000, 0},
	"M50": {500000, 0},
	"1M0": {1000000, 0},
	"2M0": {2000000, 0},
	"2M5": {2500000, 0},
	"5M0": {5000000, 0},
	"10M": {10000000, 0},
	"20M": {20000000, 0},
	"25M": {25000000, 0},
	"50M": {50000000, 0},
	"G10": {100000000, 0},
}

// CoinValueCode 查询硬币面值码，返回(面值, 小数位, 是否收录)
func CoinValueCode(code string) (uint64, uint8, bool) {
	entry, ok := coinValueCodes[code]
	return entry.value, entry.decimals, ok
}

// Identifier 硬币/纸币标识，由GetCoinId和GetBillId命令返回。
// 纸币为7字符（如"GE0005A"：格鲁吉亚5拉里A版），硬币为6字符（如"GE010A"）。
type Identifier struct {
	IDString  string `json:"id_string"`  // 原始标识字符串
	Country   string `json:"country"`    // 国别码，如"GE"
	IssueCode byte   `json:"issue_code"` // 版次码（A、B、C...）

	ValueCode    uint64 `json:"value_code"`    // 面值码（纸币须再乘国别换算因子）
	CoinDecimals uint8  `json:"coin_decimals"` // 硬币面值码的小数位数

	Scaling CountryScaling `json:"scaling"` // 国别换算数据
}

// ParseIdentifier 解析标识字符串。6字符按硬币解析，7字符按纸币解析，
// 其余长度视为无效。
func ParseIdentifier(id string) (Identifier, bool) {
	ident := Identifier{IDString: id}
	switch len(id) {
	case 7: // 纸币
		ident.Country = id[:2]
		ident.IssueCode = id[6]
		value, err := strconv.ParseUint(id[2:6], 10, 64)
		if err != nil {
			value = 0
		}
		ident.ValueCode = value
		return ident, true
	case 6: // 硬币
		ident.Country = id[:2]
		ident.IssueCode = id[5]
		value, decimals, _ := CoinValueCode(id[2:5])
		ident.ValueCode = value
		ident.CoinDecimals = decimals
		return ident, true
	}
	return ident, false
}

// Usable 判断设备上报的标识字符串是否占用该位置。
// 空串、哨兵"......"、首字节为0的串均表示位置未配置。
func UsableIDString(id string) bool {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" || trimmed == "......" {
		return false
	}
	return id[0] != 0
}

// Value 计算面值。返回值需除以10^divisor得到该国货币金额。
func (i Identifier) Value() (value uint64, divisor uint8) {
	divisor = i.Scaling.DecimalPlaces + i.CoinDecimals
	return i.ValueCode * uint64(i.Scaling.ScalingFactor), divisor
}

// CurrencyValue 以浮点返回货币金额，仅用于展示与策略判断
func (i Identifier) CurrencyValue() float64 {
	value, divisor := i.Value()
	amount := float64(value)
	for ; divisor > 0; divisor-- {
		amount /= 10
	}
	return amount
}

// IdentifierTable 位置(1..=N)到标识的映射，缺席位置无条目
type IdentifierTable map[uint8]Identifier
