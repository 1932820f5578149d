package cctalk

import "fmt"

// EventEntry 缓冲事件日志中的一条原始记录，两个字节(A, B)。
// 按设备类别解码：
//   - 硬币：A为0时B是事件码；A非0时A是币道位置(1..=16)，B是分拣路径（0表示无分拣器）。
//   - 纸币：A为0时B是错误/状态码；A非0时A是纸币位置，B是成功码。
type EventEntry struct {
	ResultA byte
	ResultB byte
}

// IsError A字节为0表示该条目是事件/错误而非计数
func (e EventEntry) IsError() bool {
	return e.ResultA == 0
}

// CoinEvent 按硬币接收器语义解码
func (e EventEntry) CoinEvent() CoinEvent {
	if e.ResultA == 0 {
		return CoinEvent{Code: CoinEventCode(e.ResultB)}
	}
	return CoinEvent{Position: e.ResultA, SorterPath: e.ResultB}
}

// BillEvent 按纸币识别器语义解码
func (e EventEntry) BillEvent() BillEvent {
	if e.ResultA == 0 {
		code := BillErrorCode(e.ResultB)
		return BillEvent{ErrorCode: code, Kind: code.Kind()}
	}
	return BillEvent{Position: e.ResultA, SuccessCode: BillSuccessCode(e.ResultB)}
}

// String 十六进制原始表示，用于日志
func (e EventEntry) String() string {
	return fmt.Sprintf("(%d, %d)", e.ResultA, e.ResultB)
}

// CoinEvent 解码后的硬币事件。Position为0时Code有效。
type CoinEvent struct {
	Position   byte          // 币道位置，0表示事件
	SorterPath byte          // 分拣路径，0表示设备无分拣器
	Code       CoinEventCode // Position为0时的事件码
}

// BillEvent 解码后的纸币事件。Position为0时ErrorCode/Kind有效，
// 否则SuccessCode有效。
type BillEvent struct {
	Position    byte            // 纸币位置，0表示事件
	SuccessCode BillSuccessCode // Position非0时的成功码
	ErrorCode   BillErrorCode   // Position为0时的错误/状态码
	Kind        BillEventKind   // ErrorCode的归类
}

// EventBuffer 一次缓冲事件读取的结果：事件计数器加5条记录（最新在前）。
type EventBuffer struct {
	Counter byte         // 事件计数器，1..=255循环，0表示上电/复位
	Entries []EventEntry // 最新在前，设备返回固定5条
}

// EventBufferSize 设备维护的滚动事件缓冲长度
const EventBufferSize = 5

// NewEventsSince 计算自上次读取以来的新事件数。
// 计数器按 255→1 回绕（跳过0），因此模数为255。
func (b EventBuffer) NewEventsSince(last byte) int {
	if b.Counter == last {
		return 0
	}
	diff := int(b.Counter) - int(last)
	if diff < 0 {
		diff += 255
	}
	return diff
}
