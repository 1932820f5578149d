package cctalk

import (
	"github.com/wfunc/cctalk-service/internal/errors"
)

// 协议常量
const (
	// MasterAddress 主机固定地址
	MasterAddress byte = 1

	// BroadcastAddress 广播地址
	BroadcastAddress byte = 0

	// MaxPayloadLen 单帧数据负载上限（长度字段为单字节）
	MaxPayloadLen = 255

	// MinFrameLen 最短帧长：目的、长度、源、命令头、校验和
	MinFrameLen = 5
)

// Frame 一条完整报文：目的地址、数据长度、源地址、命令头、数据、校验和。
// 校验和取值使全帧各字节的无符号8位和模256为0。
type Frame struct {
	Destination byte
	Source      byte
	Header      Header
	Payload     []byte
}

// NewRequest 构造主机发往设备的请求帧
func NewRequest(device byte, header Header, payload []byte) Frame {
	return Frame{
		Destination: device,
		Source:      MasterAddress,
		Header:      header,
		Payload:     payload,
	}
}

// Checksum 计算给定字节序列的简单8位校验和补数
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return byte(256 - uint16(sum))
}

// Encode 序列化为线缆字节序列
func (f Frame) Encode() ([]byte, error) {
	if len(f.Payload) > MaxPayloadLen {
		return nil, errors.Newf(errors.ErrPayloadTooLarge,
			"负载%d字节，超过%d上限", len(f.Payload), MaxPayloadLen)
	}

	buf := make([]byte, 0, MinFrameLen+len(f.Payload))
	buf = append(buf, f.Destination, byte(len(f.Payload)), f.Source, byte(f.Header))
	buf = append(buf, f.Payload...)
	buf = append(buf, Checksum(buf))
	return buf, nil
}

// DecodeFrame 解析线缆字节序列。只做结构与校验和检查，
// 地址与命令头的方向性检查由ValidateReply完成。
func DecodeFrame(data []byte) (Frame, error) {
	if len(data) < MinFrameLen {
		return Frame{}, errors.Newf(errors.ErrFrameStructure,
			"帧长%d字节，最短%d", len(data), MinFrameLen)
	}

	declared := int(data[1])
	if len(data) != MinFrameLen+declared {
		return Frame{}, errors.Newf(errors.ErrFrameStructure,
			"声明负载%d字节，实际帧长%d", declared, len(data))
	}

	var sum byte
	for _, b := range data {
		sum += b
	}
	if sum != 0 {
		return Frame{}, errors.Newf(errors.ErrChecksumMismatch,
			"全帧字节和模256为%d", sum)
	}

	frame := Frame{
		Destination: data[0],
		Source:      data[2],
		Header:      Header(data[3]),
	}
	if declared > 0 {
		frame.Payload = make([]byte, declared)
		copy(frame.Payload, data[4:4+declared])
	}
	return frame, nil
}

// ValidateReply 校验设备应答帧的方向性：目的须为主机地址，
// 源须为期望设备地址（expectedSource为0时跳过），命令头须为应答头0。
func (f Frame) ValidateReply(expectedSource byte) error {
	if f.Destination != MasterAddress {
		return errors.Newf(errors.ErrWrongDestination,
			"目的地址%d，期望主机地址%d", f.Destination, MasterAddress)
	}
	if expectedSource != 0 && f.Source != expectedSource {
		return errors.Newf(errors.ErrWrongSource,
			"源地址%d，期望设备地址%d", f.Source, expectedSource)
	}
	if f.Header != HeaderReply {
		return errors.Newf(errors.ErrNotReplyHeader,
			"命令头%d非应答头", byte(f.Header))
	}
	return nil
}

// IsACK 无负载的应答帧即为ACK
func (f Frame) IsACK() bool {
	return f.Header == HeaderReply && len(f.Payload) == 0
}
