package models

import (
	"time"

	"gorm.io/gorm"
)

// CommsDirection 通信方向
type CommsDirection string

const (
	CommsDirectionRequest  CommsDirection = "REQUEST"  // 宿主到设备
	CommsDirectionResponse CommsDirection = "RESPONSE" // 设备到宿主
)

// CommsLogLevel 日志级别
type CommsLogLevel string

const (
	CommsLogLevelInfo  CommsLogLevel = "INFO"
	CommsLogLevelDebug CommsLogLevel = "DEBUG"
	CommsLogLevelWarn  CommsLogLevel = "WARN"
	CommsLogLevelError CommsLogLevel = "ERROR"
)

// CommsLog 串口线路通信日志
type CommsLog struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time      `gorm:"index;not null" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// 基础信息
	DeviceName     string         `gorm:"type:varchar(100);index;not null" json:"device_name"`
	DeviceCategory string         `gorm:"type:varchar(50);index" json:"device_category"` // coin_acceptor / bill_validator
	SerialDevice   string         `gorm:"type:varchar(255);index" json:"serial_device"`
	Direction      CommsDirection `gorm:"type:varchar(10);index;not null" json:"direction"`
	Level          CommsLogLevel  `gorm:"type:varchar(10);default:INFO" json:"level"`

	// 命令相关
	Header     uint8  `gorm:"index" json:"header"`                            // 命令头字节
	HeaderName string `gorm:"type:varchar(100);index" json:"header_name"`     // 命令名称
	Address    uint8  `json:"address"`                                        // 设备地址
	RequestID  uint64 `gorm:"index" json:"request_id,omitempty"`              // 请求序号（关联请求与响应）

	// 数据内容
	HexData    string   `gorm:"type:text" json:"hex_data,omitempty"` // 帧的十六进制数据
	JSONData   JSONData `gorm:"type:json" json:"json_data,omitempty"`
	BytesCount int      `gorm:"default:0" json:"bytes_count"`

	// 错误相关
	ErrorCode int    `gorm:"index" json:"error_code,omitempty"`
	ErrorMsg  string `gorm:"type:text" json:"error_msg,omitempty"`

	// 性能指标
	Duration  int64 `gorm:"default:0" json:"duration,omitempty"` // 处理时长（毫秒）
	Timestamp int64 `gorm:"index" json:"timestamp"`              // Unix时间戳（毫秒）

	// 额外信息
	Message string `gorm:"type:text" json:"message,omitempty"`
}

// TableName 指定表名
func (CommsLog) TableName() string {
	return "comms_logs"
}

// BeforeCreate 创建前的钩子
func (c *CommsLog) BeforeCreate(tx *gorm.DB) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	if c.Timestamp == 0 {
		c.Timestamp = time.Now().UnixMilli()
	}
	return nil
}

// CommsLogQuery 查询参数
type CommsLogQuery struct {
	DeviceName     string          `json:"device_name,omitempty"`
	DeviceCategory string          `json:"device_category,omitempty"`
	SerialDevice   string          `json:"serial_device,omitempty"`
	Direction      CommsDirection  `json:"direction,omitempty"`
	Level          CommsLogLevel   `json:"level,omitempty"`
	HeaderName     string          `json:"header_name,omitempty"`
	RequestID      uint64          `json:"request_id,omitempty"`
	StartTime      *time.Time      `json:"start_time,omitempty"`
	EndTime        *time.Time      `json:"end_time,omitempty"`
	HasError       *bool           `json:"has_error,omitempty"`
	Limit          int             `json:"limit,omitempty"`
	Offset         int             `json:"offset,omitempty"`
	OrderBy        string          `json:"order_by,omitempty"`
}

// CommsLogStats 统计信息
type CommsLogStats struct {
	TotalCount    int64   `json:"total_count"`
	TotalRequest  int64   `json:"total_request"`
	TotalResponse int64   `json:"total_response"`
	TotalErrors   int64   `json:"total_errors"`
	AvgDuration   float64 `json:"avg_duration"`
	MaxDuration   int64   `json:"max_duration"`
	MinDuration   int64   `json:"min_duration"`
}
