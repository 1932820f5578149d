package service

import (
	"context"
	"time"

	"github.com/wfunc/cctalk-service/internal/models"
	"github.com/wfunc/cctalk-service/internal/repository"
)

// creditService 投入流水服务实现
type creditService struct {
	repo repository.CreditRepository
}

// NewCreditService 创建投入流水服务
func NewCreditService(repo repository.CreditRepository) CreditService {
	return &creditService{repo: repo}
}

// Query 查询流水
func (s *creditService) Query(ctx context.Context, query *models.CreditQuery) ([]*models.CreditRecord, int64, error) {
	return s.repo.Query(ctx, query)
}

// GetStats 获取流水统计
func (s *creditService) GetStats(ctx context.Context, startTime, endTime *time.Time) (*models.CreditStats, error) {
	return s.repo.GetStats(ctx, startTime, endTime)
}

// GetLatest 获取最新流水
func (s *creditService) GetLatest(ctx context.Context, limit int, deviceName string) ([]*models.CreditRecord, error) {
	return s.repo.GetLatest(ctx, limit, deviceName)
}
