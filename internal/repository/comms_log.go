package repository

import (
	"fmt"
	"time"

	"github.com/wfunc/cctalk-service/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommsLogRepository 通信日志仓库
type CommsLogRepository struct {
	db *gorm.DB
}

// NewCommsLogRepository 创建通信日志仓库
func NewCommsLogRepository(db *gorm.DB) *CommsLogRepository {
	return &CommsLogRepository{
		db: db,
	}
}

// Create 创建日志记录
func (r *CommsLogRepository) Create(log *models.CommsLog) error {
	return r.db.Create(log).Error
}

// CreateBatch 批量创建日志记录
func (r *CommsLogRepository) CreateBatch(logs []*models.CommsLog) error {
	if len(logs) == 0 {
		return nil
	}
	return r.db.CreateInBatches(logs, 100).Error
}

// GetByID 根据ID获取日志
func (r *CommsLogRepository) GetByID(id uint) (*models.CommsLog, error) {
	var log models.CommsLog
	err := r.db.First(&log, id).Error
	if err != nil {
		return nil, err
	}
	return &log, nil
}

// GetByRequestID 根据请求序号获取日志（包括请求和响应）
func (r *CommsLogRepository) GetByRequestID(requestID uint64) ([]*models.CommsLog, error) {
	var logs []*models.CommsLog
	err := r.db.Where("request_id = ?", requestID).
		Order("created_at ASC").
		Find(&logs).Error
	return logs, err
}

// Query 查询日志
func (r *CommsLogRepository) Query(query *models.CommsLogQuery) ([]*models.CommsLog, int64, error) {
	db := r.db.Model(&models.CommsLog{})

	// 构建查询条件
	if query.DeviceName != "" {
		db = db.Where("device_name = ?", query.DeviceName)
	}
	if query.DeviceCategory != "" {
		db = db.Where("device_category = ?", query.DeviceCategory)
	}
	if query.SerialDevice != "" {
		db = db.Where("serial_device = ?", query.SerialDevice)
	}
	if query.Direction != "" {
		db = db.Where("direction = ?", query.Direction)
	}
	if query.Level != "" {
		db = db.Where("level = ?", query.Level)
	}
	if query.HeaderName != "" {
		db = db.Where("header_name = ?", query.HeaderName)
	}
	if query.RequestID != 0 {
		db = db.Where("request_id = ?", query.RequestID)
	}
	if query.StartTime != nil {
		db = db.Where("created_at >= ?", *query.StartTime)
	}
	if query.EndTime != nil {
		db = db.Where("created_at <= ?", *query.EndTime)
	}
	if query.HasError != nil && *query.HasError {
		db = db.Where("error_msg IS NOT NULL AND error_msg != ''")
	}

	// 获取总数
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// 排序
	orderBy := query.OrderBy
	if orderBy == "" {
		orderBy = "created_at DESC"
	}
	db = db.Order(orderBy)

	// 分页
	if query.Limit > 0 {
		db = db.Limit(query.Limit)
	}
	if query.Offset > 0 {
		db = db.Offset(query.Offset)
	}

	var logs []*models.CommsLog
	if err := db.Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}

// GetStats 获取统计信息
func (r *CommsLogRepository) GetStats(startTime, endTime *time.Time) (*models.CommsLogStats, error) {
	stats := &models.CommsLogStats{}
	db := r.db.Model(&models.CommsLog{})

	// 时间范围过滤
	if startTime != nil {
		db = db.Where("created_at >= ?", *startTime)
	}
	if endTime != nil {
		db = db.Where("created_at <= ?", *endTime)
	}

	// 总数统计
	if err := db.Count(&stats.TotalCount).Error; err != nil {
		return nil, err
	}

	// 请求/响应统计
	if err := r.db.Model(&models.CommsLog{}).
		Where("direction = ?", models.CommsDirectionRequest).
		Count(&stats.TotalRequest).Error; err != nil {
		return nil, err
	}
	stats.TotalResponse = stats.TotalCount - stats.TotalRequest

	// 错误统计
	if err := r.db.Model(&models.CommsLog{}).
		Where("error_msg IS NOT NULL AND error_msg != ''").
		Count(&stats.TotalErrors).Error; err != nil {
		return nil, err
	}

	// 性能统计
	type DurationStats struct {
		AvgDuration float64
		MaxDuration int64
		MinDuration int64
	}
	var durationStats DurationStats
	if err := r.db.Model(&models.CommsLog{}).
		Select("AVG(duration) as avg_duration, MAX(duration) as max_duration, MIN(duration) as min_duration").
		Where("duration > 0").
		Scan(&durationStats).Error; err != nil {
		return nil, err
	}
	stats.AvgDuration = durationStats.AvgDuration
	stats.MaxDuration = durationStats.MaxDuration
	stats.MinDuration = durationStats.MinDuration

	return stats, nil
}

// GetLatest 获取最新的日志记录
func (r *CommsLogRepository) GetLatest(limit int, deviceName string) ([]*models.CommsLog, error) {
	var logs []*models.CommsLog
	db := r.db.Order("created_at DESC").Limit(limit)
	if deviceName != "" {
		db = db.Where("device_name = ?", deviceName)
	}
	err := db.Find(&logs).Error
	return logs, err
}

// GetErrorLogs 获取错误日志
func (r *CommsLogRepository) GetErrorLogs(limit int) ([]*models.CommsLog, error) {
	var logs []*models.CommsLog
	err := r.db.Where("error_msg IS NOT NULL AND error_msg != ''").
		Or("level = ?", models.CommsLogLevelError).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// DeleteOldLogs 删除旧日志
func (r *CommsLogRepository) DeleteOldLogs(beforeTime time.Time) (int64, error) {
	result := r.db.Where("created_at < ?", beforeTime).Delete(&models.CommsLog{})
	return result.RowsAffected, result.Error
}

// CleanupLogs 清理日志（保留最近N天的数据）
func (r *CommsLogRepository) CleanupLogs(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, fmt.Errorf("retention days must be greater than 0")
	}
	beforeTime := time.Now().AddDate(0, 0, -retentionDays)
	return r.DeleteOldLogs(beforeTime)
}

// BulkInsertWithConflict 批量插入（忽略冲突）
func (r *CommsLogRepository) BulkInsertWithConflict(logs []*models.CommsLog) error {
	if len(logs) == 0 {
		return nil
	}
	return r.db.Clauses(clause.OnConflict{
		DoNothing: true,
	}).CreateInBatches(logs, 100).Error
}
