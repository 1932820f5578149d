package cctalk

import (
	"sync"
	"time"

	"github.com/wfunc/cctalk-service/internal/errors"
	"github.com/wfunc/cctalk-service/internal/logger"
	"go.uber.org/zap"
)

// ChecksumMode 帧校验方式
type ChecksumMode int

const (
	// ChecksumSimple8 简单8位校验和，唯一受支持的方式
	ChecksumSimple8 ChecksumMode = iota
	// ChecksumCRC16 16位CRC，不支持
	ChecksumCRC16
)

// LinkOptions 链路协议选项。除默认组合外的选项在提交请求时
// 即被拒绝，不会触碰串口。
type LinkOptions struct {
	Checksum     ChecksumMode
	DESEncrypted bool
}

// 链路时序常量
const (
	// DefaultResponseTimeout 首个响应字节的默认等待时限
	DefaultResponseTimeout = 1500 * time.Millisecond

	// writeTimeoutBase 写超时固定部分
	writeTimeoutBase = 500 * time.Millisecond

	// writeTimeoutPerByte 写超时按字节数递增部分
	writeTimeoutPerByte = 2 * time.Millisecond
)

// WriteTimeoutFor 按请求长度计算写超时
func WriteTimeoutFor(frameLen int) time.Duration {
	return writeTimeoutBase + time.Duration(frameLen)*writeTimeoutPerByte
}

// WireRecord 一次链路事务的线路记录，交给观察者做落库或转发
type WireRecord struct {
	RequestID uint64
	Device    byte
	Header    Header
	Request   []byte
	Response  []byte
	Err       error
	Elapsed   time.Duration
	Time      time.Time
}

// LinkController 链路控制器。串行化对总线的访问：同一时刻最多
// 一个在途请求，新请求在前一个完成前提交会被拒绝。
type LinkController struct {
	worker  *LineWorker
	options LinkOptions

	mu       sync.Mutex
	inFlight bool
	reqNum   uint64
	observer func(WireRecord)

	responseTimeout time.Duration
	logger          *zap.Logger
}

// NewLinkController 创建链路控制器
func NewLinkController(worker *LineWorker) *LinkController {
	return &LinkController{
		worker:          worker,
		responseTimeout: DefaultResponseTimeout,
		logger:          logger.GetModuleLogger("cctalk.link"),
	}
}

// SetResponseTimeout 调整响应等待时限
func (l *LinkController) SetResponseTimeout(timeout time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if timeout > 0 {
		l.responseTimeout = timeout
	}
}

// SetOptions 设置链路协议选项
func (l *LinkController) SetOptions(options LinkOptions) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.options = options
}

// SetWireObserver 注册线路观察者。观察者在轮询goroutine上同步
// 调用，必须立即返回，耗时处理应自行异步化。
func (l *LinkController) SetWireObserver(fn func(WireRecord)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observer = fn
}

func (l *LinkController) notifyObserver(rec WireRecord) {
	l.mu.Lock()
	fn := l.observer
	l.mu.Unlock()
	if fn != nil {
		fn(rec)
	}
}

// Open 打开底层串口
func (l *LinkController) Open() error {
	return l.worker.Open()
}

// Close 关闭底层串口
func (l *LinkController) Close() error {
	return l.worker.Close()
}

// IsOpen 检查底层串口是否打开
func (l *LinkController) IsOpen() bool {
	return l.worker.IsOpen()
}

// nextRequestID 生成请求号，1起单调递增，回绕时跳过0
func (l *LinkController) nextRequestID() uint64 {
	l.reqNum++
	if l.reqNum == 0 {
		l.reqNum = 1
	}
	return l.reqNum
}

// begin 声明一个在途请求并分配请求号
func (l *LinkController) begin() (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.options.Checksum != ChecksumSimple8 {
		return 0, errors.New(errors.ErrUnsupportedOption, "16位CRC校验")
	}
	if l.options.DESEncrypted {
		return 0, errors.New(errors.ErrUnsupportedOption, "DES加密")
	}
	if l.inFlight {
		return 0, errors.New(errors.ErrRequestInFlight)
	}
	l.inFlight = true
	return l.nextRequestID(), nil
}

// end 结束在途请求
func (l *LinkController) end() {
	l.mu.Lock()
	l.inFlight = false
	l.mu.Unlock()
}

// Request 发送请求帧并等待解析后的应答帧。应答经过结构、校验和
// 与方向性校验：目的为主机、源为目标设备、命令头为0。
func (l *LinkController) Request(device byte, header Header, payload []byte) (Frame, error) {
	reply, _, err := l.request(device, header, payload, true)
	return reply, err
}

// RequestNoReply 发送无应答请求（如广播复位），只等待回显消散
func (l *LinkController) RequestNoReply(device byte, header Header, payload []byte) error {
	_, _, err := l.request(device, header, payload, false)
	return err
}

func (l *LinkController) request(device byte, header Header, payload []byte, expectReply bool) (Frame, uint64, error) {
	reqID, err := l.begin()
	if err != nil {
		return Frame{}, 0, err
	}
	defer l.end()

	wire, err := NewRequest(device, header, payload).Encode()
	if err != nil {
		return Frame{}, reqID, err
	}

	l.mu.Lock()
	responseTimeout := l.responseTimeout
	l.mu.Unlock()

	start := time.Now()
	raw, err := l.worker.Transact(wire, expectReply, WriteTimeoutFor(len(wire)), responseTimeout)
	record := func(resp []byte, txErr error) {
		l.notifyObserver(WireRecord{
			RequestID: reqID,
			Device:    device,
			Header:    header,
			Request:   wire,
			Response:  resp,
			Err:       txErr,
			Elapsed:   time.Since(start),
			Time:      start,
		})
	}
	if err != nil {
		l.logger.Warn("链路事务失败",
			zap.Uint64("request_id", reqID),
			zap.Uint8("device", device),
			zap.String("header", header.String()),
			zap.Error(err))
		record(nil, err)
		return Frame{}, reqID, err
	}
	if !expectReply {
		l.logger.Debug("链路事务完成",
			zap.Uint64("request_id", reqID),
			zap.Uint8("device", device),
			zap.String("header", header.String()),
			zap.Duration("elapsed", time.Since(start)))
		record(nil, nil)
		return Frame{}, reqID, nil
	}

	reply, err := DecodeFrame(raw)
	if err != nil {
		record(raw, err)
		return Frame{}, reqID, err
	}
	if err := reply.ValidateReply(device); err != nil {
		record(raw, err)
		return Frame{}, reqID, err
	}
	record(raw, nil)

	l.logger.Debug("链路事务完成",
		zap.Uint64("request_id", reqID),
		zap.Uint8("device", device),
		zap.String("header", header.String()),
		zap.Int("reply_bytes", len(reply.Payload)),
		zap.Duration("elapsed", time.Since(start)))
	return reply, reqID, nil
}
