package vehicle

import (
	"time"
)

// Vehicle 车辆（unidad）。核心把它当作只读查找键，
// 注册/停用由车队管理方维护。
type Vehicle struct {
	ID           uint      `gorm:"primaryKey"`
	Plate        string    `gorm:"uniqueIndex;size:32;not null"`
	Model        string    `gorm:"size:64"`
	FuelType     string    `gorm:"size:16;not null"`      // DIESEL / GASOLINA / GLP
	TankCapacity float64   `gorm:"not null;default:0"`    // 油箱容量（按工单计量单位）
	HasHourMeter bool      `gorm:"not null;default:false"` // 是否带工时表（horómetro）
	Active       bool      `gorm:"not null;default:true"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}
