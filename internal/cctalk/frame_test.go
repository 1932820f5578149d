package cctalk

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/wfunc/cctalk-service/internal/errors"
)

// FrameTestSuite 帧编解码测试套件
type FrameTestSuite struct {
	suite.Suite
}

// 测试校验和计算
func (suite *FrameTestSuite) TestChecksum() {
	// 协议文档示例：简单轮询请求 2, 0, 1, 254 的校验和为255
	suite.Equal(byte(255), Checksum([]byte{2, 0, 1, 254}))

	// 空序列的校验和使全帧和模256为0
	suite.Equal(byte(0), Checksum(nil))

	// 任意序列加上校验和后字节和模256为0
	data := []byte{40, 3, 1, 231, 0xFF, 0xFF}
	sum := Checksum(data)
	var total byte
	for _, b := range append(data, sum) {
		total += b
	}
	suite.Equal(byte(0), total)
}

// 测试请求帧编码
func (suite *FrameTestSuite) TestEncodeRequest() {
	frame := NewRequest(2, HeaderSimplePoll, nil)
	suite.Equal(byte(2), frame.Destination)
	suite.Equal(MasterAddress, frame.Source)

	wire, err := frame.Encode()
	suite.NoError(err)
	suite.Equal([]byte{2, 0, 1, 254, 255}, wire)
}

// 测试带负载的编码与解码往返
func (suite *FrameTestSuite) TestEncodeDecodeRoundTrip() {
	frame := NewRequest(40, HeaderSetInhibitStatus, []byte{0xFF, 0xFF})
	wire, err := frame.Encode()
	suite.NoError(err)
	suite.Len(wire, MinFrameLen+2)

	decoded, err := DecodeFrame(wire)
	suite.NoError(err)
	suite.Equal(frame.Destination, decoded.Destination)
	suite.Equal(frame.Source, decoded.Source)
	suite.Equal(frame.Header, decoded.Header)
	suite.Equal(frame.Payload, decoded.Payload)
}

// 测试负载超长被拒绝
func (suite *FrameTestSuite) TestEncodePayloadTooLarge() {
	frame := NewRequest(2, HeaderGetVariableSet, make([]byte, MaxPayloadLen+1))
	_, err := frame.Encode()
	suite.Error(err)
	suite.True(errors.Is(err, errors.ErrPayloadTooLarge))
}

// 测试解码短帧
func (suite *FrameTestSuite) TestDecodeTooShort() {
	_, err := DecodeFrame([]byte{1, 0, 2, 0})
	suite.Error(err)
	suite.True(errors.Is(err, errors.ErrFrameStructure))
}

// 测试声明长度与实际帧长不符
func (suite *FrameTestSuite) TestDecodeDeclaredLengthMismatch() {
	// 声明2字节负载，实际没有
	frame := []byte{1, 2, 2, 0, 251}
	_, err := DecodeFrame(frame)
	suite.Error(err)
	suite.True(errors.Is(err, errors.ErrFrameStructure))
}

// 测试校验和损坏
func (suite *FrameTestSuite) TestDecodeChecksumCorrupted() {
	wire, err := NewRequest(2, HeaderSimplePoll, nil).Encode()
	suite.NoError(err)

	wire[len(wire)-1]++
	_, err = DecodeFrame(wire)
	suite.Error(err)
	suite.True(errors.Is(err, errors.ErrChecksumMismatch))
}

// 测试负载字节损坏同样触发校验和错误
func (suite *FrameTestSuite) TestDecodePayloadCorrupted() {
	wire, err := NewRequest(40, HeaderRouteBill, []byte{1}).Encode()
	suite.NoError(err)

	wire[4] ^= 0x10
	_, err = DecodeFrame(wire)
	suite.Error(err)
	suite.True(errors.Is(err, errors.ErrChecksumMismatch))
}

// 测试应答方向性校验
func (suite *FrameTestSuite) TestValidateReply() {
	reply := Frame{Destination: MasterAddress, Source: 2, Header: HeaderReply}
	suite.NoError(reply.ValidateReply(2))

	// 期望源为0时跳过源地址检查
	suite.NoError(reply.ValidateReply(0))

	// 目的地址非主机
	wrongDest := Frame{Destination: 40, Source: 2, Header: HeaderReply}
	err := wrongDest.ValidateReply(2)
	suite.True(errors.Is(err, errors.ErrWrongDestination))

	// 源地址不符
	wrongSource := Frame{Destination: MasterAddress, Source: 3, Header: HeaderReply}
	err = wrongSource.ValidateReply(2)
	suite.True(errors.Is(err, errors.ErrWrongSource))

	// 命令头非应答头
	wrongHeader := Frame{Destination: MasterAddress, Source: 2, Header: HeaderSimplePoll}
	err = wrongHeader.ValidateReply(2)
	suite.True(errors.Is(err, errors.ErrNotReplyHeader))
}

// 测试ACK判定
func (suite *FrameTestSuite) TestIsACK() {
	ack := Frame{Destination: MasterAddress, Source: 2, Header: HeaderReply}
	suite.True(ack.IsACK())

	withPayload := Frame{Destination: MasterAddress, Source: 2, Header: HeaderReply, Payload: []byte{0}}
	suite.False(withPayload.IsACK())

	notReply := Frame{Destination: MasterAddress, Source: 2, Header: HeaderSimplePoll}
	suite.False(notReply.IsACK())
}

func TestFrameTestSuite(t *testing.T) {
	suite.Run(t, new(FrameTestSuite))
}
