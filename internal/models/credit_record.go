package models

import (
	"time"

	"gorm.io/gorm"
)

// CreditRecord 投入确认流水表
type CreditRecord struct {
	BaseModel
	DeviceName     string  `gorm:"type:varchar(100);index;not null" json:"device_name"`
	DeviceCategory string  `gorm:"type:varchar(50);index;not null" json:"device_category"` // coin_acceptor / bill_validator
	Position       uint8   `gorm:"index" json:"position"`                                  // 事件表位置 1..16
	Ident          string  `gorm:"type:varchar(10);index" json:"ident"`                    // 标识字符串，如 GE200A
	Country        string  `gorm:"type:varchar(2);index" json:"country"`                   // 国别码
	ValueCode      string  `gorm:"type:varchar(6)" json:"value_code"`                      // 面值编码部分
	Amount         float64 `gorm:"type:decimal(12,4);index" json:"amount"`                 // 换算后的货币金额
	RawValue       uint16  `json:"raw_value"`                                              // 缩放前的原始面值
	Divisor        uint16  `json:"divisor"`                                                // 国别缩放除数
	EventCounter   uint8   `json:"event_counter"`                                          // 确认时的事件计数器
	CreditedAt     time.Time `gorm:"index;not null" json:"credited_at"`
}

// TableName 指定表名
func (CreditRecord) TableName() string {
	return "credit_records"
}

// BeforeCreate 创建前的钩子
func (c *CreditRecord) BeforeCreate(tx *gorm.DB) error {
	if c.CreditedAt.IsZero() {
		c.CreditedAt = time.Now()
	}
	return nil
}

// CreditQuery 流水查询参数
type CreditQuery struct {
	DeviceName     string     `json:"device_name,omitempty"`
	DeviceCategory string     `json:"device_category,omitempty"`
	Country        string     `json:"country,omitempty"`
	Ident          string     `json:"ident,omitempty"`
	StartTime      *time.Time `json:"start_time,omitempty"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	Limit          int        `json:"limit,omitempty"`
	Offset         int        `json:"offset,omitempty"`
	OrderBy        string     `json:"order_by,omitempty"`
}

// CreditStats 流水统计
type CreditStats struct {
	TotalCount  int64   `json:"total_count"`
	TotalAmount float64 `json:"total_amount"`
	CoinCount   int64   `json:"coin_count"`
	CoinAmount  float64 `json:"coin_amount"`
	BillCount   int64   `json:"bill_count"`
	BillAmount  float64 `json:"bill_amount"`
}

// DeviceStateRecord 设备状态迁移记录表
type DeviceStateRecord struct {
	BaseModel
	DeviceName string    `gorm:"type:varchar(100);index;not null" json:"device_name"`
	OldState   string    `gorm:"type:varchar(50)" json:"old_state"`
	NewState   string    `gorm:"type:varchar(50);index" json:"new_state"`
	Reason     string    `gorm:"type:text" json:"reason,omitempty"`
	ChangedAt  time.Time `gorm:"index;not null" json:"changed_at"`
}

// TableName 指定表名
func (DeviceStateRecord) TableName() string {
	return "device_state_records"
}

// BeforeCreate 创建前的钩子
func (d *DeviceStateRecord) BeforeCreate(tx *gorm.DB) error {
	if d.ChangedAt.IsZero() {
		d.ChangedAt = time.Now()
	}
	return nil
}
