package ticket

import (
	"time"
)

// Ticket 补给工单（solicitud de abastecimiento）。
// 只增不删：创建后仅允许状态流转和挂接实供明细，完整保留审计轨迹。
type Ticket struct {
	ID     uint   `gorm:"primaryKey"`
	Number string `gorm:"uniqueIndex;size:32;not null"` // 编号服务生成，例如 TCK-202608-000001

	Date string `gorm:"size:10;not null"` // YYYY-MM-DD
	Time string `gorm:"size:5;not null"`  // HH:MM

	// 业务关联（外部参考实体，视为只读查找键）
	ShiftID      *uint `gorm:"index"`
	VehicleID    uint  `gorm:"index;not null"`
	DriverID     uint  `gorm:"index;not null"`
	ControllerID *uint `gorm:"index"`
	StationID    uint  `gorm:"not null"`

	// 生效指派：路线 / 行程(+执行) / 无，三者互斥
	RouteID     *uint `gorm:"index"`
	ItineraryID *uint `gorm:"index"`
	ExecutionID *uint

	// 指派出处与原始侦测结果。控制员改派后原始侦测保持不变（审计用）。
	AssignmentOrigin    string `gorm:"size:24;not null"`
	DetectedOrigin      string `gorm:"size:24"`
	DetectedItineraryID *uint

	// 读数。倒挂在创建时拒绝；展示层派生值不落库。
	CurrentMileage    *float64
	PreviousMileage   *float64
	CurrentHourMeter  *float64
	PreviousHourMeter *float64

	// 铅封（precinto）标识：加注前后各一
	OldSeal string `gorm:"size:32"`
	NewSeal string `gorm:"size:32"`

	FuelType string  `gorm:"size:16;not null"`
	Quantity float64 `gorm:"not null"` // 申请加注量
	Unit     string  `gorm:"size:16;not null"`
	Notes    string  `gorm:"size:500"`

	Status       Status       `gorm:"type:varchar(16);index;not null"`
	DetailStatus DetailStatus `gorm:"type:varchar(24);not null"`

	RequestedBy uint `gorm:"not null"`

	// 工单级审批审计
	ApprovedBy    *uint
	ApprovedAt    *time.Time
	ApprovalNotes string `gorm:"size:500"`
	RejectedBy    *uint
	RejectedAt    *time.Time
	RejectReason  string `gorm:"size:500"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Supply 实供明细（abastecimiento）：已批准工单对应的真实加注记录。
// 一张工单至多一条；自带独立的审批流（证据不一致时控制员仍可拒绝实供）。
type Supply struct {
	ID       uint   `gorm:"primaryKey"`
	Number   string `gorm:"uniqueIndex;size:32;not null"` // 例如 ABA-2026-000001
	TicketID uint   `gorm:"uniqueIndex;not null"`

	Quantity  float64 `gorm:"not null"` // 实际加注量
	UnitCost  float64 `gorm:"not null;default:0"`
	TotalCost float64 `gorm:"not null;default:0"`

	FinalMileage *float64

	// 证据引用：对象存储 URL，二进制不经过本服务
	InvoicePhotoURL string `gorm:"size:500"`
	SealPhotoURL    string `gorm:"size:500"`

	Status SupplyStatus `gorm:"type:varchar(16);index;not null"`

	RegisteredBy  uint `gorm:"not null"`
	ApprovedBy    *uint
	ApprovedAt    *time.Time
	ApprovalNotes string `gorm:"size:500"`
	RejectedBy    *uint
	RejectedAt    *time.Time
	RejectReason  string `gorm:"size:500"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
