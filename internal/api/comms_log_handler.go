package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/cctalk-service/internal/models"
	"github.com/wfunc/cctalk-service/internal/service"
)

// CommsLogHandler 串口通信日志处理器
type CommsLogHandler struct {
	service service.CommsLogService
}

// NewCommsLogHandler 创建通信日志处理器
func NewCommsLogHandler(service service.CommsLogService) *CommsLogHandler {
	return &CommsLogHandler{
		service: service,
	}
}

// QueryLogs 查询日志列表
func (h *CommsLogHandler) QueryLogs(c *gin.Context) {
	query := h.parseQuery(c)

	// 分页参数
	query.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	query.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	query.OrderBy = c.DefaultQuery("order_by", "created_at DESC")

	logs, total, err := h.service.Query(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "QUERY_FAILED",
			Message: "查询失败",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":   logs,
		"total":  total,
		"limit":  query.Limit,
		"offset": query.Offset,
	})
}

// GetLatestLogs 获取最新日志
func (h *CommsLogHandler) GetLatestLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	deviceName := c.Query("device_name")

	logs, err := h.service.GetLatestLogs(c.Request.Context(), limit, deviceName)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "QUERY_FAILED",
			Message: "获取失败",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  logs,
		"count": len(logs),
	})
}

// GetStats 获取统计信息
func (h *CommsLogHandler) GetStats(c *gin.Context) {
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

// GetErrorLogs 获取错误日志
func (h *CommsLogHandler) GetErrorLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	logs, err := h.service.GetErrorLogs(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "QUERY_FAILED",
			Message: "获取错误日志失败",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  logs,
		"count": len(logs),
	})
}

// CleanupLogs 清理旧日志
func (h *CommsLogHandler) CleanupLogs(c *gin.Context) {
	retentionDays, _ := strconv.Atoi(c.DefaultPostForm("retention_days", "30"))
	if retentionDays < 1 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_REQUEST",
			Message: "保留天数必须大于0",
		})
		return
	}

	count, err := h.service.CleanupOldLogs(c.Request.Context(), retentionDays)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "CLEANUP_FAILED",
			Message: "清理失败",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":        "清理成功",
		"deleted":        count,
		"retention_days": retentionDays,
	})
}

// ExportLogs 导出日志
func (h *CommsLogHandler) ExportLogs(c *gin.Context) {
	query := h.parseQuery(c)

	// 导出限制
	query.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "1000"))

	data, err := h.service.ExportLogs(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "EXPORT_FAILED",
			Message: "导出失败",
			Details: err.Error(),
		})
		return
	}

	c.Header("Content-Type", "application/json")
	c.Header("Content-Disposition", "attachment; filename=comms_logs_export.json")
	c.Data(http.StatusOK, "application/json", data)
}

// parseQuery 解析查询参数
func (h *CommsLogHandler) parseQuery(c *gin.Context) *models.CommsLogQuery {
	query := &models.CommsLogQuery{}

	query.DeviceName = c.Query("device_name")
	query.DeviceCategory = c.Query("device_category")
	query.SerialDevice = c.Query("serial_device")
	if direction := c.Query("direction"); direction != "" {
		query.Direction = models.CommsDirection(direction)
	}
	if level := c.Query("level"); level != "" {
		query.Level = models.CommsLogLevel(level)
	}
	query.HeaderName = c.Query("header_name")
	if requestID := c.Query("request_id"); requestID != "" {
		if v, err := strconv.ParseUint(requestID, 10, 64); err == nil {
			query.RequestID = v
		}
	}

	query.StartTime, query.EndTime = parseTimeRange(c)

	if hasError := c.Query("has_error"); hasError == "true" {
		b := true
		query.HasError = &b
	}

	return query
}

// parseTimeRange 解析时间范围参数
func parseTimeRange(c *gin.Context) (*time.Time, *time.Time) {
	var startTime, endTime *time.Time

	if start := c.Query("start_time"); start != "" {
		if t, err := time.Parse(time.RFC3339, start); err == nil {
			startTime = &t
		}
	}
	if end := c.Query("end_time"); end != "" {
		if t, err := time.Parse(time.RFC3339, end); err == nil {
			endTime = &t
		}
	}

	return startTime, endTime
}
