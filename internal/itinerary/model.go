package itinerary

import (
	"strings"
	"time"
)

// 行程安排类型。
const (
	TypeCircuit   = "CIRCUITO"
	TypeMultiStop = "MULTIPARADA"
)

// Itinerary 周期性行程定义（itinerario）：多停靠或环线，
// 按星期几循环执行，带惯常发车时刻。
type Itinerary struct {
	ID              uint      `gorm:"primaryKey"`
	VehicleID       uint      `gorm:"index;not null"`
	Name            string    `gorm:"size:128;not null"`
	Type            string    `gorm:"size:16;not null"` // CIRCUITO / MULTIPARADA
	TotalDistanceKm float64   `gorm:"not null;default:0"`
	Weekdays        string    `gorm:"size:96;not null"` // 逗号分隔：LUNES,MARTES,...
	StartTime       string    `gorm:"size:5;not null"`  // 惯常发车 HH:MM
	Active          bool      `gorm:"not null;default:true"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

// OperatesOn 判断该行程是否排在某个星期（西语星期名）。
func (i Itinerary) OperatesOn(weekday string) bool {
	weekday = strings.TrimSpace(strings.ToUpper(weekday))
	if weekday == "" {
		return false
	}
	for _, d := range strings.Split(i.Weekdays, ",") {
		if strings.TrimSpace(strings.ToUpper(d)) == weekday {
			return true
		}
	}
	return false
}

// Execution 行程的一次具体执行（ejecución）。
// 由外部排程方创建/关闭；本服务只读。
// 不变量：同一车辆任一时刻至多一条 active 执行。
type Execution struct {
	ID          uint       `gorm:"primaryKey"`
	ItineraryID uint       `gorm:"index;not null"`
	VehicleID   uint       `gorm:"index;not null"`
	StartedAt   time.Time  `gorm:"not null"`
	ExpectedEnd *time.Time
	ActualEnd   *time.Time
	Active      bool      `gorm:"not null;default:true;index"`
	Locked      bool      `gorm:"not null;default:false"` // 锁定后控制员不可改派
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// ExceptionalRoute 计划外的一次性路线指派（当天有效）。
type ExceptionalRoute struct {
	ID        uint      `gorm:"primaryKey"`
	RouteID   uint      `gorm:"not null"`
	VehicleID uint      `gorm:"index:idx_exceptional_vehicle_date;not null"`
	Date      string    `gorm:"index:idx_exceptional_vehicle_date;size:10;not null"` // YYYY-MM-DD
	Reason    string    `gorm:"size:255"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// 西语星期名，与行程定义里的 Weekdays 取值一致。
var spanishWeekdays = map[time.Weekday]string{
	time.Monday:    "LUNES",
	time.Tuesday:   "MARTES",
	time.Wednesday: "MIERCOLES",
	time.Thursday:  "JUEVES",
	time.Friday:    "VIERNES",
	time.Saturday:  "SABADO",
	time.Sunday:    "DOMINGO",
}

// SpanishWeekday 把 time.Weekday 转成行程定义使用的西语星期名。
func SpanishWeekday(d time.Weekday) string {
	return spanishWeekdays[d]
}
