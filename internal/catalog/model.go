package catalog

import (
	"strings"
	"time"
)

// 燃油类型（持久化为字符串）。
type FuelType string

const (
	FuelDiesel   FuelType = "DIESEL"
	FuelGasoline FuelType = "GASOLINA"
	FuelLPG      FuelType = "GLP"
)

// 计量单位。
type Unit string

const (
	UnitGallons Unit = "GALONES"
	UnitLiters  Unit = "LITROS"
)

func ValidFuelType(s string) bool {
	switch FuelType(strings.TrimSpace(strings.ToUpper(s))) {
	case FuelDiesel, FuelGasoline, FuelLPG:
		return true
	}
	return false
}

func ValidUnit(s string) bool {
	switch Unit(strings.TrimSpace(strings.ToUpper(s))) {
	case UnitGallons, UnitLiters:
		return true
	}
	return false
}

// Shift 班次（turno）。时刻用 "HH:MM" 存储；时长不落库，
// 展示时由 fuelmetrics.ShiftDurationHours 现算（跨夜班补 24h）。
type Shift struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"size:64;not null"`
	StartTime string    `gorm:"size:5;not null"` // HH:MM
	EndTime   string    `gorm:"size:5;not null"` // HH:MM
	Active    bool      `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Route 简单路线（起点->终点）。被工单引用后视为不可变参考数据。
type Route struct {
	ID          uint      `gorm:"primaryKey"`
	Name        string    `gorm:"size:128;not null"`
	Origin      string    `gorm:"size:128;not null"`
	Destination string    `gorm:"size:128;not null"`
	DistanceKm  float64   `gorm:"not null;default:0"`
	Active      bool      `gorm:"not null;default:true"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// Station 加油站（grifo）。核心只当作查找键。
type Station struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"size:128;not null"`
	Address   string    `gorm:"size:255"`
	Active    bool      `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TicketStatusRef 工单状态参考表（数值 id + code），与持久化布局保持一致。
// 业务判断走 ticket 包的常量，这张表只服务于报表/外部查询。
type TicketStatusRef struct {
	ID          uint   `gorm:"primaryKey"`
	Code        string `gorm:"uniqueIndex;size:32;not null"`
	Description string `gorm:"size:128"`
	Active      bool   `gorm:"not null;default:true"`
}

// SupplyStatusRef 实供（abastecimiento）状态参考表。
type SupplyStatusRef struct {
	ID          uint   `gorm:"primaryKey"`
	Code        string `gorm:"uniqueIndex;size:32;not null"`
	Description string `gorm:"size:128"`
	Active      bool   `gorm:"not null;default:true"`
}
