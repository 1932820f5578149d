package cctalk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/wfunc/cctalk-service/internal/errors"
)

// newTestLink 创建挂接脚本串口的链路控制器
func newTestLink(port *scriptPort) *LinkController {
	link := NewLinkController(newTestWorker(port))
	if err := link.Open(); err != nil {
		panic(err)
	}
	return link
}

// LinkTestSuite 链路控制器测试套件
type LinkTestSuite struct {
	suite.Suite
}

// 测试写超时按帧长递增
func (suite *LinkTestSuite) TestWriteTimeoutFor() {
	base := WriteTimeoutFor(0)
	suite.Equal(500*time.Millisecond, base)
	suite.Equal(base+10*time.Millisecond, WriteTimeoutFor(5))
}

// 测试请求应答往返
func (suite *LinkTestSuite) TestRequestRoundTrip() {
	port := &scriptPort{}
	link := newTestLink(port)

	port.queueReply(encodeReply(2, []byte{1, 4, 2}))

	reply, err := link.Request(2, HeaderGetCommsRevision, nil)
	suite.NoError(err)
	suite.Equal([]byte{1, 4, 2}, reply.Payload)
	suite.Equal(HeaderReply, reply.Header)
}

// 测试应答源地址不符被拒绝
func (suite *LinkTestSuite) TestRequestWrongSource() {
	port := &scriptPort{}
	link := newTestLink(port)

	// 设备3应答，但请求发往设备2
	port.queueReply(encodeReply(3, nil))

	_, err := link.Request(2, HeaderSimplePoll, nil)
	suite.Error(err)
	suite.True(errors.Is(err, errors.ErrWrongSource))
}

// 测试损坏应答被校验和检查拦截
func (suite *LinkTestSuite) TestRequestCorruptedReply() {
	port := &scriptPort{}
	link := newTestLink(port)

	reply := encodeReply(2, []byte{5})
	reply[len(reply)-1]++
	port.queueReply(reply)

	_, err := link.Request(2, HeaderPerformSelfCheck, nil)
	suite.Error(err)
	suite.True(errors.Is(err, errors.ErrChecksumMismatch))
}

// 测试单在途约束：前一请求未完成时新请求被拒绝
func (suite *LinkTestSuite) TestSingleInFlight() {
	link := newTestLink(&scriptPort{})

	reqID, err := link.begin()
	suite.NoError(err)
	suite.Equal(uint64(1), reqID)

	_, err = link.begin()
	suite.Error(err)
	suite.True(errors.Is(err, errors.ErrRequestInFlight))

	link.end()
	reqID, err = link.begin()
	suite.NoError(err)
	suite.Equal(uint64(2), reqID)
	link.end()
}

// 测试请求号回绕时跳过0
func (suite *LinkTestSuite) TestRequestIDWrapSkipsZero() {
	link := newTestLink(&scriptPort{})
	link.reqNum = ^uint64(0)
	suite.Equal(uint64(1), link.nextRequestID())
	suite.Equal(uint64(2), link.nextRequestID())
}

// 测试不支持的协议选项在触碰串口前被拒绝
func (suite *LinkTestSuite) TestUnsupportedOptions() {
	port := &scriptPort{}
	link := newTestLink(port)

	link.SetOptions(LinkOptions{Checksum: ChecksumCRC16})
	_, err := link.Request(2, HeaderSimplePoll, nil)
	suite.Error(err)
	suite.True(errors.Is(err, errors.ErrUnsupportedOption))

	link.SetOptions(LinkOptions{DESEncrypted: true})
	_, err = link.Request(2, HeaderSimplePoll, nil)
	suite.Error(err)
	suite.True(errors.Is(err, errors.ErrUnsupportedOption))

	// 串口未被写入
	suite.Empty(port.writes)

	// 恢复默认选项后恢复正常
	link.SetOptions(LinkOptions{})
	port.queueReply(encodeReply(2, nil))
	_, err = link.Request(2, HeaderSimplePoll, nil)
	suite.NoError(err)
}

// 测试线路观察者在成功与失败路径都被调用
func (suite *LinkTestSuite) TestWireObserver() {
	port := &scriptPort{}
	link := newTestLink(port)

	var records []WireRecord
	link.SetWireObserver(func(rec WireRecord) {
		records = append(records, rec)
	})

	// 成功事务
	port.queueReply(encodeReply(2, nil))
	_, err := link.Request(2, HeaderSimplePoll, nil)
	suite.NoError(err)

	// 失败事务：设备无应答
	port.noEcho = true
	link.SetResponseTimeout(30 * time.Millisecond)
	_, err = link.Request(2, HeaderSimplePoll, nil)
	suite.Error(err)

	suite.Len(records, 2)

	suite.Equal(uint64(1), records[0].RequestID)
	suite.Equal(byte(2), records[0].Device)
	suite.Equal(HeaderSimplePoll, records[0].Header)
	suite.NotEmpty(records[0].Request)
	suite.NotEmpty(records[0].Response)
	suite.NoError(records[0].Err)

	suite.Equal(uint64(2), records[1].RequestID)
	suite.Error(records[1].Err)
	suite.Nil(records[1].Response)
}

// 测试无应答请求完成后链路可复用
func (suite *LinkTestSuite) TestRequestNoReply() {
	port := &scriptPort{}
	link := newTestLink(port)

	suite.NoError(link.RequestNoReply(BroadcastAddress, HeaderResetDevice, nil))
	suite.Len(port.writes, 1)

	// 链路未被占住
	port.queueReply(encodeReply(2, nil))
	_, err := link.Request(2, HeaderSimplePoll, nil)
	suite.NoError(err)
}

func TestLinkTestSuite(t *testing.T) {
	suite.Run(t, new(LinkTestSuite))
}
