package cctalk

import (
	"io"
	"sync"
	"time"

	"github.com/tarm/serial"
	"github.com/wfunc/cctalk-service/internal/errors"
	"github.com/wfunc/cctalk-service/internal/logger"
	"go.uber.org/zap"
)

// SerialPort 串口接口（用于测试）
type SerialPort interface {
	io.ReadWriteCloser
	Flush() error
}

// SerialConfig 串口配置。总线固定9600波特、8数据位、1停止位、
// 无校验、无流控，配置只暴露设备路径与时序参数。
type SerialConfig struct {
	Port         string        `yaml:"port" mapstructure:"port"`
	Baud         int           `yaml:"baud" mapstructure:"baud"`
	InterByteGap time.Duration `yaml:"inter_byte_gap" mapstructure:"inter_byte_gap"`
}

// 时序默认值
const (
	// DefaultBaud 总线标准波特率
	DefaultBaud = 9600

	// DefaultInterByteGap 响应字节间最大间隔，超过视为响应结束
	DefaultInterByteGap = 50 * time.Millisecond
)

// applyDefaults 填充零值配置项
func (c *SerialConfig) applyDefaults() {
	if c.Baud == 0 {
		c.Baud = DefaultBaud
	}
	if c.InterByteGap == 0 {
		c.InterByteGap = DefaultInterByteGap
	}
}

// LineWorker 串口线路执行器。半双工总线上每次只进行一次完整的
// 写请求-读响应事务；收发器会把主机自己发出的字节回显到接收端，
// 读取结果需剥离与请求等长的回显前缀。
type LineWorker struct {
	config *SerialConfig
	port   SerialPort
	mu     sync.Mutex
	closed bool
	logger *zap.Logger
}

// NewLineWorker 创建线路执行器，port为nil时Open会打开真实串口
func NewLineWorker(config *SerialConfig) *LineWorker {
	config.applyDefaults()
	return &LineWorker{
		config: config,
		logger: logger.GetModuleLogger("cctalk.serial"),
	}
}

// NewLineWorkerWithPort 用外部端口创建线路执行器（用于测试）
func NewLineWorkerWithPort(config *SerialConfig, port SerialPort) *LineWorker {
	config.applyDefaults()
	return &LineWorker{
		config: config,
		port:   port,
		logger: logger.GetModuleLogger("cctalk.serial"),
	}
}

// Open 打开串口。读超时设为字节间隔，读循环据此轮询。
func (w *LineWorker) Open() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.port != nil {
		return nil
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        w.config.Port,
		Baud:        w.config.Baud,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: w.config.InterByteGap,
	})
	if err != nil {
		w.logger.Error("打开串口失败",
			zap.String("port", w.config.Port),
			zap.Error(err))
		return errors.Wrap(err, errors.ErrSerialPortOpen, w.config.Port)
	}

	w.port = port
	w.closed = false
	w.logger.Info("串口已打开",
		zap.String("port", w.config.Port),
		zap.Int("baud", w.config.Baud))
	return nil
}

// Close 关闭串口
func (w *LineWorker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.port == nil || w.closed {
		return nil
	}
	w.closed = true

	if err := w.port.Close(); err != nil {
		w.logger.Error("关闭串口失败", zap.Error(err))
		return errors.Wrap(err, errors.ErrSerialPortRead, "close")
	}
	w.port = nil
	w.logger.Info("串口已关闭")
	return nil
}

// IsOpen 检查串口是否打开
func (w *LineWorker) IsOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.port != nil && !w.closed
}

// Transact 执行一次完整事务：写入请求字节，读取并剥离回显，
// 返回设备响应的原始字节。expectReply为false时写完即返回。
// writeTimeout限制写阶段，responseTimeout限制首个响应字节的等待。
func (w *LineWorker) Transact(request []byte, expectReply bool, writeTimeout, responseTimeout time.Duration) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.port == nil || w.closed {
		return nil, errors.New(errors.ErrPortClosed)
	}

	start := time.Now()
	if err := w.writeAll(request, writeTimeout); err != nil {
		return nil, err
	}

	// 无响应命令（如广播复位）只消费本地回显
	wait := responseTimeout
	if !expectReply {
		wait = w.config.InterByteGap
	}

	raw, err := w.readAccumulate(len(request), wait)
	if err != nil {
		if !expectReply && errors.Is(err, errors.ErrResponseTimeout) {
			return nil, nil
		}
		return nil, err
	}

	reply, err := stripEcho(raw, request)
	if err != nil {
		w.logger.Warn("回显校验失败",
			zap.Binary("request", request),
			zap.Binary("received", raw))
		return nil, err
	}

	w.logger.Debug("串口事务完成",
		zap.Int("request_bytes", len(request)),
		zap.Int("reply_bytes", len(reply)),
		zap.Duration("elapsed", time.Since(start)))

	if !expectReply {
		return nil, nil
	}
	return reply, nil
}

// writeAll 在限时内写完全部请求字节
func (w *LineWorker) writeAll(request []byte, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	written := 0
	for written < len(request) {
		if time.Now().After(deadline) {
			return errors.Newf(errors.ErrRequestTimeout,
				"写入%d/%d字节后超时", written, len(request))
		}
		n, err := w.port.Write(request[written:])
		if err != nil {
			return errors.Wrap(err, errors.ErrSerialPortWrite)
		}
		written += n
	}
	return nil
}

// readAccumulate 读取一次响应：首字节须在responseTimeout内到达，
// 之后持续累积，直到一个字节间隔内再无数据。
func (w *LineWorker) readAccumulate(minEcho int, responseTimeout time.Duration) ([]byte, error) {
	var received []byte
	chunk := make([]byte, 256)
	deadline := time.Now().Add(responseTimeout)

	for {
		n, err := w.port.Read(chunk)
		if err != nil && err != io.EOF {
			return nil, errors.Wrap(err, errors.ErrSerialPortRead)
		}
		if n > 0 {
			received = append(received, chunk[:n]...)
			continue
		}

		// 读超时（即字节间隔）内无数据
		if len(received) > 0 {
			// 回显尚未收齐时继续等到响应限时
			if len(received) < minEcho && time.Now().Before(deadline) {
				continue
			}
			return received, nil
		}
		if time.Now().After(deadline) {
			return nil, errors.Newf(errors.ErrResponseTimeout,
				"%s内未收到任何字节", responseTimeout)
		}
	}
}

// stripEcho 剥离本地回显前缀。前缀必须与请求逐字节一致，
// 否则说明总线冲突或接线异常。
func stripEcho(received, request []byte) ([]byte, error) {
	if len(received) < len(request) {
		return nil, errors.Newf(errors.ErrEchoMismatch,
			"收到%d字节，不足回显%d字节", len(received), len(request))
	}
	for i := range request {
		if received[i] != request[i] {
			return nil, errors.Newf(errors.ErrEchoMismatch,
				"回显第%d字节为0x%02X，期望0x%02X", i, received[i], request[i])
		}
	}
	return received[len(request):], nil
}
