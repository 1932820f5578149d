package cctalk

import "fmt"

// FaultCode 自检故障码，由PerformSelfCheck命令返回。
// 部分故障码的第二字节携带附加信息（线圈号、传感器号等）。
type FaultCode byte

// 自检故障码定义
const (
	FaultOk                        FaultCode = 0  // 无故障
	FaultEepromChecksumCorrupted   FaultCode = 1  // EEPROM校验和损坏
	FaultOnInductiveCoils          FaultCode = 2  // 感应线圈故障
	FaultOnCreditSensor            FaultCode = 3  // 计数传感器故障
	FaultOnPiezoSensor             FaultCode = 4  // 压电传感器故障
	FaultOnReflectiveSensor        FaultCode = 5  // 反射传感器故障
	FaultOnDiameterSensor          FaultCode = 6  // 直径传感器故障
	FaultOnWakeUpSensor            FaultCode = 7  // 唤醒传感器故障
	FaultOnSorterExitSensors       FaultCode = 8  // 分拣出口传感器故障
	FaultNvramChecksumCorrupted    FaultCode = 9  // NVRAM校验和损坏
	FaultCoinDispensingError       FaultCode = 10 // 出币错误
	FaultLowLevelSensorError       FaultCode = 11 // 低位传感器错误
	FaultHighLevelSensorError      FaultCode = 12 // 高位传感器错误
	FaultCoinCountingError         FaultCode = 13 // 硬币计数错误
	FaultKeypadError               FaultCode = 14 // 键盘错误
	FaultButtonError               FaultCode = 15 // 按钮错误
	FaultDisplayError              FaultCode = 16 // 显示错误
	FaultCoinAuditingError         FaultCode = 17 // 硬币审计错误
	FaultOnRejectSensor            FaultCode = 18 // 拒收传感器故障
	FaultOnCoinReturnMechanism     FaultCode = 19 // 退币机构故障
	FaultOnCosMechanism            FaultCode = 20 // COS机构故障
	FaultOnRimSensor               FaultCode = 21 // 边缘传感器故障
	FaultOnThermistor              FaultCode = 22 // 热敏电阻故障
	FaultPayoutMotorFault          FaultCode = 23 // 找零电机故障
	FaultPayoutTimeout             FaultCode = 24 // 找零超时
	FaultPayoutJammed              FaultCode = 25 // 找零卡滞
	FaultPayoutSensorFault         FaultCode = 26 // 找零传感器故障
	FaultLevelSensorError          FaultCode = 27 // 料位传感器错误
	FaultPersonalityModuleNotFit   FaultCode = 28 // 个性模块未安装
	FaultPersonalityChecksum       FaultCode = 29 // 个性模块校验和损坏
	FaultRomChecksumMismatch       FaultCode = 30 // ROM校验和不匹配
	FaultMissingSlaveDevice        FaultCode = 31 // 从设备缺失
	FaultInternalCommsBad          FaultCode = 32 // 内部通讯异常
	FaultSupplyVoltageOutOfLimits  FaultCode = 33 // 供电电压超限
	FaultTemperatureOutOfLimits    FaultCode = 34 // 温度超限
	FaultDce                       FaultCode = 35 // DCE故障
	FaultOnBillValidatorSensor     FaultCode = 36 // 纸币识别传感器故障
	FaultOnBillTransportMotor      FaultCode = 37 // 纸币传送电机故障
	FaultOnStacker                 FaultCode = 38 // 钱箱故障
	FaultBillJammed                FaultCode = 39 // 纸币卡滞
	FaultRamTestFail               FaultCode = 40 // RAM测试失败
	FaultOnStringSensor            FaultCode = 41 // 拉线传感器故障
	FaultAcceptGateFailedOpen      FaultCode = 42 // 接收闸门卡在打开位
	FaultAcceptGateFailedClosed    FaultCode = 43 // 接收闸门卡在关闭位
	FaultStackerMissing            FaultCode = 44 // 钱箱缺失
	FaultStackerFull               FaultCode = 45 // 钱箱已满
	FaultFlashMemoryEraseFail      FaultCode = 46 // 闪存擦除失败
	FaultFlashMemoryWriteFail      FaultCode = 47 // 闪存写入失败
	FaultSlaveDeviceNotResponding  FaultCode = 48 // 从设备无响应
	FaultOnOptoSensor              FaultCode = 49 // 光电传感器故障
	FaultBattery                   FaultCode = 50 // 电池故障
	FaultDoorOpen                  FaultCode = 51 // 门开
	FaultMicroswitch               FaultCode = 52 // 微动开关故障
	FaultRtc                       FaultCode = 53 // 实时时钟故障
	FaultFirmwareError             FaultCode = 54 // 固件错误
	FaultInitialisationError       FaultCode = 55 // 初始化错误
	FaultSupplyCurrentOutOfLimits  FaultCode = 56 // 供电电流超限
	FaultForcedBootloaderMode      FaultCode = 57 // 被强制进入引导模式

	// 协议规范之外的内部码
	FaultCustomCommandError FaultCode = 254 // 获取故障码本身失败
	FaultUnspecified        FaultCode = 255 // 未指明故障
)

var faultNames = map[FaultCode]string{
	FaultOk:                       "No fault",
	FaultEepromChecksumCorrupted:  "EepromChecksumCorrupted",
	FaultOnInductiveCoils:         "FaultOnInductiveCoils",
	FaultOnCreditSensor:           "FaultOnCreditSensor",
	FaultOnPiezoSensor:            "FaultOnPiezoSensor",
	FaultOnReflectiveSensor:       "FaultOnReflectiveSensor",
	FaultOnDiameterSensor:         "FaultOnDiameterSensor",
	FaultOnWakeUpSensor:           "FaultOnWakeUpSensor",
	FaultOnSorterExitSensors:      "FaultOnSorterExitSensors",
	FaultNvramChecksumCorrupted:   "NvramChecksumCorrupted",
	FaultCoinDispensingError:      "CoinDispensingError",
	FaultLowLevelSensorError:      "LowLevelSensorError",
	FaultHighLevelSensorError:     "HighLevelSensorError",
	FaultCoinCountingError:        "CoinCountingError",
	FaultKeypadError:              "KeypadError",
	FaultButtonError:              "ButtonError",
	FaultDisplayError:             "DisplayError",
	FaultCoinAuditingError:        "CoinAuditingError",
	FaultOnRejectSensor:           "FaultOnRejectSensor",
	FaultOnCoinReturnMechanism:    "FaultOnCoinReturnMechanism",
	FaultOnCosMechanism:           "FaultOnCosMechanism",
	FaultOnRimSensor:              "FaultOnRimSensor",
	FaultOnThermistor:             "FaultOnThermistor",
	FaultPayoutMotorFault:         "PayoutMotorFault",
	FaultPayoutTimeout:            "PayoutTimeout",
	FaultPayoutJammed:             "PayoutJammed",
	FaultPayoutSensorFault:        "PayoutSensorFault",
	FaultLevelSensorError:         "LevelSensorError",
	FaultPersonalityModuleNotFit:  "PersonalityModuleNotFitted",
	FaultPersonalityChecksum:      "PersonalityChecksumCorrupted",
	FaultRomChecksumMismatch:      "RomChecksumMismatch",
	FaultMissingSlaveDevice:       "MissingSlaveDevice",
	FaultInternalCommsBad:         "InternalCommsBad",
	FaultSupplyVoltageOutOfLimits: "SupplyVoltageOutsideOperatingLimits",
	FaultTemperatureOutOfLimits:   "TemperatureOutsideOperatingLimits",
	FaultDce:                      "DceFault",
	FaultOnBillValidatorSensor:    "FaultOnBillValidatorSensor",
	FaultOnBillTransportMotor:     "FaultOnBillTransportMotor",
	FaultOnStacker:                "FaultOnStacker",
	FaultBillJammed:               "BillJammed",
	FaultRamTestFail:              "RamTestFail",
	FaultOnStringSensor:           "FaultOnStringSensor",
	FaultAcceptGateFailedOpen:     "AcceptGateFailedOpen",
	FaultAcceptGateFailedClosed:   "AcceptGateFailedClosed",
	FaultStackerMissing:           "StackerMissing",
	FaultStackerFull:              "StackerFull",
	FaultFlashMemoryEraseFail:     "FlashMemoryEraseFail",
	FaultFlashMemoryWriteFail:     "FlashMemoryWriteFail",
	FaultSlaveDeviceNotResponding: "SlaveDeviceNotResponding",
	FaultOnOptoSensor:             "FaultOnOptoSensor",
	FaultBattery:                  "BatteryFault",
	FaultDoorOpen:                 "DoorOpen",
	FaultMicroswitch:              "MicroswitchFault",
	FaultRtc:                      "RtcFault",
	FaultFirmwareError:            "FirmwareError",
	FaultInitialisationError:      "InitialisationError",
	FaultSupplyCurrentOutOfLimits: "SupplyCurrentOutsideOperatingLimits",
	FaultForcedBootloaderMode:     "ForcedBootloaderMode",
	FaultCustomCommandError:       "CustomCommandError",
	FaultUnspecified:              "UnspecifiedFaultCode",
}

// String 返回故障码名称，未知值保留原始字节
func (f FaultCode) String() string {
	if name, ok := faultNames[f]; ok {
		return name
	}
	return fmt.Sprintf("FaultCode(%d)", byte(f))
}
