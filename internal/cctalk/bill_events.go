package cctalk

import "fmt"

// BillErrorCode 纸币错误/状态码，当ReadBufferedBillEvents条目的A字节为0时由B字节携带
type BillErrorCode byte

// 纸币错误/状态码定义
const (
	BillErrMasterInhibitActive     BillErrorCode = 0  // 主禁止生效
	BillErrReturnedFromEscrow      BillErrorCode = 1  // 从暂存器退回
	BillErrValidationFail          BillErrorCode = 2  // 验证失败
	BillErrTransportProblem        BillErrorCode = 3  // 传送异常
	BillErrInhibitedOnSerial       BillErrorCode = 4  // 串口侧禁止
	BillErrInhibitedOnDipSwitches  BillErrorCode = 5  // 拨码开关禁止
	BillErrJammedInTransportUnsafe BillErrorCode = 6  // 传送卡滞（不安全模式）
	BillErrJammedInStacker         BillErrorCode = 7  // 钱箱卡滞
	BillErrPulledBackwards         BillErrorCode = 8  // 纸币被拉回
	BillErrTamper                  BillErrorCode = 9  // 纸币被篡改
	BillErrStackerOk               BillErrorCode = 10 // 钱箱正常
	BillErrStackerRemoved          BillErrorCode = 11 // 钱箱被取出
	BillErrStackerInserted         BillErrorCode = 12 // 钱箱已插入
	BillErrStackerFaulty           BillErrorCode = 13 // 钱箱故障
	BillErrStackerFull             BillErrorCode = 14 // 钱箱已满
	BillErrStackerJammed           BillErrorCode = 15 // 钱箱卡住
	BillErrJammedInTransportSafe   BillErrorCode = 16 // 传送卡滞（安全模式）
	BillErrOptoFraudDetected       BillErrorCode = 17 // 光电欺诈检出
	BillErrStringFraudDetected     BillErrorCode = 18 // 拉线欺诈检出
	BillErrAntiStringMechFaulty    BillErrorCode = 19 // 防拉线机构故障
	BillErrBarcodeDetected         BillErrorCode = 20 // 检出条码券
	BillErrUnknownBillTypeStacked  BillErrorCode = 21 // 未知类型入箱

	// 协议规范之外，仅用于零值初始化
	BillErrCustomNoError BillErrorCode = 255
)

// BillEventKind 纸币错误/状态码的归类
type BillEventKind int

const (
	BillEventKindUnknown      BillEventKind = iota // 未知（零值）
	BillEventKindStatus                            // 状态通告
	BillEventKindReject                            // 拒收并退回
	BillEventKindFraudAttempt                      // 欺诈企图
	BillEventKindFatalError                        // 致命错误，需维护
)

// String 返回归类名称
func (k BillEventKind) String() string {
	switch k {
	case BillEventKindStatus:
		return "Status"
	case BillEventKindReject:
		return "Reject"
	case BillEventKindFraudAttempt:
		return "FraudAttempt"
	case BillEventKindFatalError:
		return "FatalError"
	}
	return "Unknown"
}

var billErrorKinds = map[BillErrorCode]BillEventKind{
	BillErrMasterInhibitActive:     BillEventKindStatus,
	BillErrReturnedFromEscrow:      BillEventKindStatus,
	BillErrValidationFail:          BillEventKindReject,
	BillErrTransportProblem:        BillEventKindReject,
	BillErrInhibitedOnSerial:       BillEventKindStatus,
	BillErrInhibitedOnDipSwitches:  BillEventKindStatus,
	BillErrJammedInTransportUnsafe: BillEventKindFatalError,
	BillErrJammedInStacker:         BillEventKindFatalError,
	BillErrPulledBackwards:         BillEventKindFraudAttempt,
	BillErrTamper:                  BillEventKindFraudAttempt,
	BillErrStackerOk:               BillEventKindStatus,
	BillErrStackerRemoved:          BillEventKindStatus,
	BillErrStackerInserted:         BillEventKindStatus,
	BillErrStackerFaulty:           BillEventKindFatalError,
	BillErrStackerFull:             BillEventKindStatus,
	BillErrStackerJammed:           BillEventKindFatalError,
	BillErrJammedInTransportSafe:   BillEventKindFatalError,
	BillErrOptoFraudDetected:       BillEventKindFraudAttempt,
	BillErrStringFraudDetected:     BillEventKindFraudAttempt,
	BillErrAntiStringMechFaulty:    BillEventKindFatalError,
	BillErrBarcodeDetected:         BillEventKindStatus,
	BillErrUnknownBillTypeStacked:  BillEventKindStatus,
	BillErrCustomNoError:           BillEventKindFatalError,
}

// Kind 归类纸币错误/状态码，未收录的字节按致命错误处理
func (b BillErrorCode) Kind() BillEventKind {
	if kind, ok := billErrorKinds[b]; ok {
		return kind
	}
	return BillEventKindFatalError
}

var billErrorNames = map[BillErrorCode]string{
	BillErrMasterInhibitActive:     "MasterInhibitActive",
	BillErrReturnedFromEscrow:      "BillReturnedFromEscrow",
	BillErrValidationFail:          "InvalidBillValidationFail",
	BillErrTransportProblem:        "InvalidBillTransportProblem",
	BillErrInhibitedOnSerial:       "InhibitedBillOnSerial",
	BillErrInhibitedOnDipSwitches:  "InhibitedBillOnDipSwitches",
	BillErrJammedInTransportUnsafe: "BillJammedInTransportUnsafeMode",
	BillErrJammedInStacker:         "BillJammedInStacker",
	BillErrPulledBackwards:         "BillPulledBackwards",
	BillErrTamper:                  "BillTamper",
	BillErrStackerOk:               "StackerOk",
	BillErrStackerRemoved:          "StackerRemoved",
	BillErrStackerInserted:         "StackerInserted",
	BillErrStackerFaulty:           "StackerFaulty",
	BillErrStackerFull:             "StackerFull",
	BillErrStackerJammed:           "StackerJammed",
	BillErrJammedInTransportSafe:   "BillJammedInTransportSafeMode",
	BillErrOptoFraudDetected:       "OptoFraudDetected",
	BillErrStringFraudDetected:     "StringFraudDetected",
	BillErrAntiStringMechFaulty:    "AntiStringMechanismFaulty",
	BillErrBarcodeDetected:         "BarcodeDetected",
	BillErrUnknownBillTypeStacked:  "UnknownBillTypeStacked",
	BillErrCustomNoError:           "CustomNoError",
}

// String 返回错误/状态码名称，未知值保留原始字节
func (b BillErrorCode) String() string {
	if name, ok := billErrorNames[b]; ok {
		return name
	}
	return fmt.Sprintf("BillErrorCode(%d)", byte(b))
}

// BillSuccessCode 纸币成功码，当ReadBufferedBillEvents条目的A字节非0时由B字节携带
type BillSuccessCode byte

const (
	BillValidatedAndAccepted BillSuccessCode = 0 // 已验证并接收，可计入金额
	BillValidatedHeldInEscrow BillSuccessCode = 1 // 已验证并暂存，等待路由决定

	// 协议规范之外，仅用于零值初始化
	BillSuccessCustomUnknown BillSuccessCode = 255
)

// String 返回成功码名称
func (b BillSuccessCode) String() string {
	switch b {
	case BillValidatedAndAccepted:
		return "ValidatedAndAccepted"
	case BillValidatedHeldInEscrow:
		return "ValidatedAndHeldInEscrow"
	case BillSuccessCustomUnknown:
		return "CustomUnknown"
	}
	return fmt.Sprintf("BillSuccessCode(%d)", byte(b))
}

// BillRouteCommand RouteBill命令的参数
type BillRouteCommand byte

const (
	BillRouteReturn          BillRouteCommand = 0   // 退回投币人
	BillRouteToStacker       BillRouteCommand = 1   // 路由入钱箱
	BillRouteIncreaseTimeout BillRouteCommand = 255 // 延长决定时限
)

// String 返回路由命令名称
func (b BillRouteCommand) String() string {
	switch b {
	case BillRouteReturn:
		return "ReturnBill"
	case BillRouteToStacker:
		return "RouteToStacker"
	case BillRouteIncreaseTimeout:
		return "IncreaseTimeout"
	}
	return fmt.Sprintf("BillRouteCommand(%d)", byte(b))
}

// BillRouteStatus RouteBill命令的返回状态
type BillRouteStatus byte

const (
	BillRouted        BillRouteStatus = 0   // 已路由（对应ACK应答）
	BillEscrowEmpty   BillRouteStatus = 254 // 暂存器为空，无法路由
	BillFailedToRoute BillRouteStatus = 255 // 路由失败
)

// String 返回路由状态名称
func (b BillRouteStatus) String() string {
	switch b {
	case BillRouted:
		return "Routed"
	case BillEscrowEmpty:
		return "EscrowEmpty"
	case BillFailedToRoute:
		return "FailedToRoute"
	}
	return fmt.Sprintf("BillRouteStatus(%d)", byte(b))
}
