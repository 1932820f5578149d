package service

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/wfunc/cctalk-service/internal/cctalk"
	"github.com/wfunc/cctalk-service/internal/config"
	apperrors "github.com/wfunc/cctalk-service/internal/errors"
	"github.com/wfunc/cctalk-service/internal/logger"
	"github.com/wfunc/cctalk-service/internal/models"
	"github.com/wfunc/cctalk-service/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 响应摘要的最大字节数，未开启full_response时超出部分截断
const responseHexLimit = 32

// commsLogService 通信日志服务。线路观察者在轮询goroutine上被
// 调用，只做入队；落库由后台协程批量完成。
type commsLogService struct {
	repo     *repository.CommsLogRepository
	logger   *zap.Logger
	mu       sync.Mutex
	buffer   []*models.CommsLog
	bufferCh chan *models.CommsLog
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewCommsLogService 创建通信日志服务
func NewCommsLogService(db *gorm.DB) CommsLogService {
	service := &commsLogService{
		repo:     repository.NewCommsLogRepository(db),
		logger:   logger.GetModuleLogger("comms_log"),
		buffer:   make([]*models.CommsLog, 0, 100),
		bufferCh: make(chan *models.CommsLog, 1000),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	// 启动后台写入协程
	go service.backgroundWriter()

	return service
}

// backgroundWriter 后台写入协程
func (s *commsLogService) backgroundWriter() {
	defer close(s.doneCh)

	ticker := time.NewTicker(5 * time.Second) // 每5秒批量写入一次
	defer ticker.Stop()

	for {
		select {
		case log := <-s.bufferCh:
			s.mu.Lock()
			s.buffer = append(s.buffer, log)
			// 缓冲区满了立即写入
			if len(s.buffer) >= 100 {
				s.flushBuffer()
			}
			s.mu.Unlock()

		case <-ticker.C:
			s.mu.Lock()
			s.flushBuffer()
			s.mu.Unlock()

		case <-s.stopCh:
			// 退出前排空通道并写入剩余日志
			s.mu.Lock()
			for {
				select {
				case log := <-s.bufferCh:
					s.buffer = append(s.buffer, log)
					continue
				default:
				}
				break
			}
			s.flushBuffer()
			s.mu.Unlock()
			return
		}
	}
}

// flushBuffer 写入缓冲区的日志到数据库
func (s *commsLogService) flushBuffer() {
	if len(s.buffer) == 0 {
		return
	}

	if err := s.repo.CreateBatch(s.buffer); err != nil {
		s.logger.Error("批量写入通信日志失败", zap.Error(err))
	} else {
		s.logger.Debug("批量写入通信日志成功", zap.Int("count", len(s.buffer)))
	}

	s.buffer = s.buffer[:0]
}

// enqueue 异步入队，缓冲区满时丢弃
func (s *commsLogService) enqueue(log *models.CommsLog) {
	select {
	case s.bufferCh <- log:
	default:
		s.logger.Warn("通信日志缓冲区满，丢弃日志",
			zap.String("device", log.DeviceName),
			zap.Uint64("request_id", log.RequestID))
	}
}

// WireObserverFor 为一台设备构造线路观察者。按设备的日志开关把
// 每次链路事务拆成请求/响应两条记录入队。
func (s *commsLogService) WireObserverFor(deviceName, deviceCategory, serialDevice string, wireCfg config.WireLogConfig) func(cctalk.WireRecord) {
	logRequest := wireCfg.SerialRequest || wireCfg.CctalkRequest
	logResponse := wireCfg.SerialResponse || wireCfg.CctalkResponse

	return func(rec cctalk.WireRecord) {
		now := rec.Time
		if now.IsZero() {
			now = time.Now()
		}

		if logRequest {
			entry := &models.CommsLog{
				DeviceName:     deviceName,
				DeviceCategory: deviceCategory,
				SerialDevice:   serialDevice,
				Direction:      models.CommsDirectionRequest,
				Level:          models.CommsLogLevelInfo,
				Header:         uint8(rec.Header),
				HeaderName:     rec.Header.String(),
				Address:        rec.Device,
				RequestID:      rec.RequestID,
				BytesCount:     len(rec.Request),
				CreatedAt:      now,
				Timestamp:      now.UnixMilli(),
			}
			if wireCfg.SerialRequest {
				entry.HexData = hex.EncodeToString(rec.Request)
			}
			if wireCfg.CctalkRequest {
				entry.JSONData = models.JSONData{
					"header":  uint8(rec.Header),
					"command": rec.Header.String(),
					"address": rec.Device,
				}
			}
			s.enqueue(entry)
		}

		if logResponse {
			entry := &models.CommsLog{
				DeviceName:     deviceName,
				DeviceCategory: deviceCategory,
				SerialDevice:   serialDevice,
				Direction:      models.CommsDirectionResponse,
				Level:          models.CommsLogLevelInfo,
				Header:         uint8(rec.Header),
				HeaderName:     rec.Header.String(),
				Address:        rec.Device,
				RequestID:      rec.RequestID,
				BytesCount:     len(rec.Response),
				Duration:       rec.Elapsed.Milliseconds(),
				CreatedAt:      now,
				Timestamp:      now.UnixMilli(),
			}
			if wireCfg.SerialResponse {
				raw := rec.Response
				if !wireCfg.FullResponse && len(raw) > responseHexLimit {
					raw = raw[:responseHexLimit]
				}
				entry.HexData = hex.EncodeToString(raw)
			}
			if rec.Err != nil {
				entry.Level = models.CommsLogLevelError
				entry.ErrorMsg = rec.Err.Error()
				entry.ErrorCode = int(apperrors.GetCode(rec.Err))
			}
			s.enqueue(entry)
		}
	}
}

// Query 查询日志
func (s *commsLogService) Query(ctx context.Context, query *models.CommsLogQuery) ([]*models.CommsLog, int64, error) {
	return s.repo.Query(query)
}

// GetStats 获取统计信息
func (s *commsLogService) GetStats(ctx context.Context, startTime, endTime *time.Time) (*models.CommsLogStats, error) {
	return s.repo.GetStats(startTime, endTime)
}

// GetLatestLogs 获取最新的日志
func (s *commsLogService) GetLatestLogs(ctx context.Context, limit int, deviceName string) ([]*models.CommsLog, error) {
	return s.repo.GetLatest(limit, deviceName)
}

// GetErrorLogs 获取错误日志
func (s *commsLogService) GetErrorLogs(ctx context.Context, limit int) ([]*models.CommsLog, error) {
	return s.repo.GetErrorLogs(limit)
}

// CleanupOldLogs 清理旧日志
func (s *commsLogService) CleanupOldLogs(ctx context.Context, retentionDays int) (int64, error) {
	return s.repo.CleanupLogs(retentionDays)
}

// ExportLogs 导出日志为JSON格式
func (s *commsLogService) ExportLogs(ctx context.Context, query *models.CommsLogQuery) ([]byte, error) {
	logs, _, err := s.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(logs, "", "  ")
}

// Close 关闭服务，等待缓冲日志落库
func (s *commsLogService) Close() error {
	close(s.stopCh)
	select {
	case <-s.doneCh:
	case <-time.After(3 * time.Second):
		s.logger.Warn("通信日志落库超时")
	}
	return nil
}
