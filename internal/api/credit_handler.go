package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/cctalk-service/internal/models"
	"github.com/wfunc/cctalk-service/internal/service"
)

// CreditHandler 投入流水处理器
type CreditHandler struct {
	service service.CreditService
}

// NewCreditHandler 创建投入流水处理器
func NewCreditHandler(service service.CreditService) *CreditHandler {
	return &CreditHandler{
		service: service,
	}
}

// QueryCredits 查询投入流水
func (h *CreditHandler) QueryCredits(c *gin.Context) {
	query := &models.CreditQuery{}

	query.DeviceName = c.Query("device_name")
	query.DeviceCategory = c.Query("device_category")
	query.Country = c.Query("country")
	query.Ident = c.Query("ident")
	query.StartTime, query.EndTime = parseTimeRange(c)

	query.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	query.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	query.OrderBy = c.DefaultQuery("order_by", "credited_at DESC")

	records, total, err := h.service.Query(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "QUERY_FAILED",
			Message: "查询失败",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":   records,
		"total":  total,
		"limit":  query.Limit,
		"offset": query.Offset,
	})
}

// GetCreditStats 获取投入统计
func (h *CreditHandler) GetCreditStats(c *gin.Context) {
	startTime, endTime := parseTimeRange(c)

	stats, err := h.service.GetStats(c.Request.Context(), startTime, endTime)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "QUERY_FAILED",
			Message: "获取统计失败",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetLatestCredits 获取最新投入记录
func (h *CreditHandler) GetLatestCredits(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	deviceName := c.Query("device_name")

	records, err := h.service.GetLatest(c.Request.Context(), limit, deviceName)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "QUERY_FAILED",
			Message: "获取失败",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  records,
		"count": len(records),
	})
}
