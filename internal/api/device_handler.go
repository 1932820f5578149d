package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/cctalk-service/internal/service"
)

// DeviceHandler 设备处理器
type DeviceHandler struct {
	deviceService service.DeviceService
}

// NewDeviceHandler 创建设备处理器
func NewDeviceHandler(deviceService service.DeviceService) *DeviceHandler {
	return &DeviceHandler{
		deviceService: deviceService,
	}
}

// SetAcceptRequest 放行开关请求
type SetAcceptRequest struct {
	Accept *bool `json:"accept" binding:"required"`
}

// ListDevices 获取设备列表
func (h *DeviceHandler) ListDevices(c *gin.Context) {
	devices := h.deviceService.List()
	c.JSON(http.StatusOK, gin.H{
		"data":  devices,
		"count": len(devices),
	})
}

// GetDevice 获取单台设备状态
func (h *DeviceHandler) GetDevice(c *gin.Context) {
	name := c.Param("name")

	status, err := h.deviceService.Get(name)
	if err != nil {
		h.deviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// GetIdentifiers 获取设备的面值标识表
func (h *DeviceHandler) GetIdentifiers(c *gin.Context) {
	name := c.Param("name")

	table, err := h.deviceService.Identifiers(name)
	if err != nil {
		h.deviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"device": name,
		"data":   table,
	})
}

// GetCounters 读取设备生命周期计数器
func (h *DeviceHandler) GetCounters(c *gin.Context) {
	name := c.Param("name")

	counters, err := h.deviceService.Counters(name)
	if err != nil {
		h.deviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"device": name,
		"data":   counters,
	})
}

// SetAccept 打开/关闭设备放行
func (h *DeviceHandler) SetAccept(c *gin.Context) {
	name := c.Param("name")

	var req SetAcceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_REQUEST",
			Message: "请求参数错误",
			Details: err.Error(),
		})
		return
	}

	if err := h.deviceService.SetAccept(name, *req.Accept); err != nil {
		h.deviceError(c, err)
		return
	}

	message := "放行已关闭"
	if *req.Accept {
		message = "放行已打开"
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Message: message,
	})
}

// ResetDevice 复位设备
func (h *DeviceHandler) ResetDevice(c *gin.Context) {
	name := c.Param("name")

	if err := h.deviceService.Reset(name); err != nil {
		h.deviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "复位指令已下发",
	})
}

// deviceError 把设备服务错误映射为HTTP响应
func (h *DeviceHandler) deviceError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrDeviceNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Code:    "DEVICE_NOT_FOUND",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusServiceUnavailable, ErrorResponse{
		Code:    "DEVICE_ERROR",
		Message: err.Error(),
	})
}
