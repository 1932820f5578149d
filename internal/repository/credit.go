package repository

import (
	"context"
	"time"

	"github.com/wfunc/cctalk-service/internal/models"
	"gorm.io/gorm"
)

// CreditRepository 投入流水仓储接口
type CreditRepository interface {
	BaseRepository
	Create(ctx context.Context, record *models.CreditRecord) error
	FindByID(ctx context.Context, id uint) (*models.CreditRecord, error)
	Query(ctx context.Context, query *models.CreditQuery) ([]*models.CreditRecord, int64, error)
	GetStats(ctx context.Context, startTime, endTime *time.Time) (*models.CreditStats, error)
	GetLatest(ctx context.Context, limit int, deviceName string) ([]*models.CreditRecord, error)
}

// creditRepo 投入流水仓储实现
type creditRepo struct {
	*BaseRepo
}

// NewCreditRepository 创建投入流水仓储
func NewCreditRepository(db *gorm.DB) CreditRepository {
	return &creditRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建流水记录
func (r *creditRepo) Create(ctx context.Context, record *models.CreditRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// FindByID 根据ID查找流水
func (r *creditRepo) FindByID(ctx context.Context, id uint) (*models.CreditRecord, error) {
	var record models.CreditRecord
	err := r.db.WithContext(ctx).First(&record, id).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Query 查询流水
func (r *creditRepo) Query(ctx context.Context, query *models.CreditQuery) ([]*models.CreditRecord, int64, error) {
	db := r.db.WithContext(ctx).Model(&models.CreditRecord{})

	if query.DeviceName != "" {
		db = db.Where("device_name = ?", query.DeviceName)
	}
	if query.DeviceCategory != "" {
		db = db.Where("device_category = ?", query.DeviceCategory)
	}
	if query.Country != "" {
		db = db.Where("country = ?", query.Country)
	}
	if query.Ident != "" {
		db = db.Where("ident = ?", query.Ident)
	}
	if query.StartTime != nil {
		db = db.Where("credited_at >= ?", *query.StartTime)
	}
	if query.EndTime != nil {
		db = db.Where("credited_at <= ?", *query.EndTime)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	orderBy := query.OrderBy
	if orderBy == "" {
		orderBy = "credited_at DESC"
	}
	db = db.Order(orderBy)

	if query.Limit > 0 {
		db = db.Limit(query.Limit)
	}
	if query.Offset > 0 {
		db = db.Offset(query.Offset)
	}

	var records []*models.CreditRecord
	if err := db.Find(&records).Error; err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

// GetStats 获取流水统计
func (r *creditRepo) GetStats(ctx context.Context, startTime, endTime *time.Time) (*models.CreditStats, error) {
	stats := &models.CreditStats{}

	base := func() *gorm.DB {
		db := r.db.WithContext(ctx).Model(&models.CreditRecord{})
		if startTime != nil {
			db = db.Where("credited_at >= ?", *startTime)
		}
		if endTime != nil {
			db = db.Where("credited_at <= ?", *endTime)
		}
		return db
	}

	type sums struct {
		Count  int64
		Amount float64
	}

	var all sums
	if err := base().
		Select("COUNT(*) as count, COALESCE(SUM(amount), 0) as amount").
		Scan(&all).Error; err != nil {
		return nil, err
	}
	stats.TotalCount = all.Count
	stats.TotalAmount = all.Amount

	var coins sums
	if err := base().
		Where("device_category = ?", "coin_acceptor").
		Select("COUNT(*) as count, COALESCE(SUM(amount), 0) as amount").
		Scan(&coins).Error; err != nil {
		return nil, err
	}
	stats.CoinCount = coins.Count
	stats.CoinAmount = coins.Amount

	var bills sums
	if err := base().
		Where("device_category = ?", "bill_validator").
		Select("COUNT(*) as count, COALESCE(SUM(amount), 0) as amount").
		Scan(&bills).Error; err != nil {
		return nil, err
	}
	stats.BillCount = bills.Count
	stats.BillAmount = bills.Amount

	return stats, nil
}

// GetLatest 获取最新流水
func (r *creditRepo) GetLatest(ctx context.Context, limit int, deviceName string) ([]*models.CreditRecord, error) {
	var records []*models.CreditRecord
	db := r.db.WithContext(ctx).Order("credited_at DESC").Limit(limit)
	if deviceName != "" {
		db = db.Where("device_name = ?", deviceName)
	}
	err := db.Find(&records).Error
	return records, err
}

// WithTx 使用事务
func (r *creditRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &creditRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}

// DeviceStateRepository 设备状态迁移仓储接口
type DeviceStateRepository interface {
	BaseRepository
	Create(ctx context.Context, record *models.DeviceStateRecord) error
	GetLatest(ctx context.Context, limit int, deviceName string) ([]*models.DeviceStateRecord, error)
	CleanupOld(ctx context.Context, retentionDays int) (int64, error)
}

// deviceStateRepo 设备状态迁移仓储实现
type deviceStateRepo struct {
	*BaseRepo
}

// NewDeviceStateRepository 创建设备状态迁移仓储
func NewDeviceStateRepository(db *gorm.DB) DeviceStateRepository {
	return &deviceStateRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建状态迁移记录
func (r *deviceStateRepo) Create(ctx context.Context, record *models.DeviceStateRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// GetLatest 获取最新状态迁移记录
func (r *deviceStateRepo) GetLatest(ctx context.Context, limit int, deviceName string) ([]*models.DeviceStateRecord, error) {
	var records []*models.DeviceStateRecord
	db := r.db.WithContext(ctx).Order("changed_at DESC").Limit(limit)
	if deviceName != "" {
		db = db.Where("device_name = ?", deviceName)
	}
	err := db.Find(&records).Error
	return records, err
}

// CleanupOld 清理旧记录
func (r *deviceStateRepo) CleanupOld(ctx context.Context, retentionDays int) (int64, error) {
	beforeTime := time.Now().AddDate(0, 0, -retentionDays)
	result := r.db.WithContext(ctx).
		Where("changed_at < ?", beforeTime).
		Delete(&models.DeviceStateRecord{})
	return result.RowsAffected, result.Error
}

// WithTx 使用事务
func (r *deviceStateRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &deviceStateRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
