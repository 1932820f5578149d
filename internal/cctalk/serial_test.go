package cctalk

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/wfunc/cctalk-service/internal/errors"
)

// scriptPort 脚本化串口：Write时把写入字节回显到读缓冲并附上
// 预置的设备应答，模拟半双工收发器的本地回显行为。
type scriptPort struct {
	mu      sync.Mutex
	replies [][]byte // 每次写入消费一条应答
	pending []byte   // 待读取字节（回显+应答）
	writes  [][]byte
	noEcho  bool // 抑制回显，模拟收发器异常
	mangled bool // 破坏回显首字节，模拟总线冲突
	closed  bool
}

func (p *scriptPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.writes = append(p.writes, append([]byte(nil), b...))
	if !p.noEcho {
		echo := append([]byte(nil), b...)
		if p.mangled && len(echo) > 0 {
			echo[0] ^= 0xFF
		}
		p.pending = append(p.pending, echo...)
	}
	if len(p.replies) > 0 {
		p.pending = append(p.pending, p.replies[0]...)
		p.replies = p.replies[1:]
	}
	return len(b), nil
}

func (p *scriptPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.pending) == 0 {
		// 模拟串口读超时：无数据时返回0字节
		return 0, nil
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *scriptPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *scriptPort) Flush() error { return nil }

// queueReply 预置一条设备应答
func (p *scriptPort) queueReply(reply []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies = append(p.replies, append([]byte(nil), reply...))
}

// encodeReply 构造设备发往主机的应答帧字节
func encodeReply(source byte, payload []byte) []byte {
	wire, err := Frame{
		Destination: MasterAddress,
		Source:      source,
		Header:      HeaderReply,
		Payload:     payload,
	}.Encode()
	if err != nil {
		panic(err)
	}
	return wire
}

// newTestWorker 创建挂接脚本串口的线路执行器
func newTestWorker(port *scriptPort) *LineWorker {
	return NewLineWorkerWithPort(&SerialConfig{Port: "test"}, port)
}

// SerialTestSuite 串口线路测试套件
type SerialTestSuite struct {
	suite.Suite
}

// 测试事务：写请求、剥离回显、返回应答
func (suite *SerialTestSuite) TestTransactStripsEcho() {
	port := &scriptPort{}
	worker := newTestWorker(port)
	suite.NoError(worker.Open())

	request := []byte{2, 0, 1, 254, 255}
	reply := encodeReply(2, nil)
	port.queueReply(reply)

	got, err := worker.Transact(request, true, time.Second, time.Second)
	suite.NoError(err)
	suite.Equal(reply, got)
	suite.Len(port.writes, 1)
	suite.Equal(request, port.writes[0])
}

// 测试回显不匹配：总线冲突时报错而非误解码
func (suite *SerialTestSuite) TestTransactEchoMismatch() {
	port := &scriptPort{mangled: true}
	worker := newTestWorker(port)
	suite.NoError(worker.Open())

	port.queueReply(encodeReply(2, nil))

	_, err := worker.Transact([]byte{2, 0, 1, 254, 255}, true, time.Second, time.Second)
	suite.Error(err)
	suite.True(errors.Is(err, errors.ErrEchoMismatch))
}

// 测试回显不足：设备无应答且回显缺失
func (suite *SerialTestSuite) TestTransactResponseTimeout() {
	port := &scriptPort{noEcho: true}
	worker := newTestWorker(port)
	suite.NoError(worker.Open())

	_, err := worker.Transact([]byte{2, 0, 1, 254, 255}, true, time.Second, 30*time.Millisecond)
	suite.Error(err)
	suite.True(errors.Is(err, errors.ErrResponseTimeout))
}

// 测试无应答命令：只消费回显，超时不视为错误
func (suite *SerialTestSuite) TestTransactNoReply() {
	port := &scriptPort{}
	worker := newTestWorker(port)
	suite.NoError(worker.Open())

	got, err := worker.Transact([]byte{0, 0, 1, 1, 254}, false, time.Second, time.Second)
	suite.NoError(err)
	suite.Nil(got)

	// 回显也缺失时同样静默返回
	silent := &scriptPort{noEcho: true}
	worker = newTestWorker(silent)
	suite.NoError(worker.Open())

	got, err = worker.Transact([]byte{0, 0, 1, 1, 254}, false, time.Second, time.Second)
	suite.NoError(err)
	suite.Nil(got)
}

// 测试关闭后的事务被拒绝
func (suite *SerialTestSuite) TestTransactAfterClose() {
	port := &scriptPort{}
	worker := newTestWorker(port)
	suite.NoError(worker.Open())
	suite.True(worker.IsOpen())

	suite.NoError(worker.Close())
	suite.False(worker.IsOpen())

	_, err := worker.Transact([]byte{2, 0, 1, 254, 255}, true, time.Second, time.Second)
	suite.Error(err)
	suite.True(errors.Is(err, errors.ErrPortClosed))
}

// 测试外部端口的Open为幂等操作
func (suite *SerialTestSuite) TestOpenWithExternalPort() {
	port := &scriptPort{}
	worker := newTestWorker(port)
	suite.NoError(worker.Open())
	suite.NoError(worker.Open())
	suite.True(worker.IsOpen())
}

// 测试默认配置填充
func (suite *SerialTestSuite) TestSerialConfigDefaults() {
	config := &SerialConfig{Port: "/dev/ttyUSB0"}
	config.applyDefaults()
	suite.Equal(DefaultBaud, config.Baud)
	suite.Equal(DefaultInterByteGap, config.InterByteGap)
}

func TestSerialTestSuite(t *testing.T) {
	suite.Run(t, new(SerialTestSuite))
}
