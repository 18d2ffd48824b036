package itinerary

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Hellares/back-consumo-combustible-sub001/internal/common/apperr"
	"github.com/Hellares/back-consumo-combustible-sub001/internal/common/logger"
)

// Origin 指派来源（侦测结果的出处标签）。
type Origin string

const (
	OriginActiveExecution Origin = "EJECUCION_ACTIVA"
	OriginStanding        Origin = "ITINERARIO_PERMANENTE"
	OriginExceptional     Origin = "RUTA_EXCEPCIONAL"
	OriginNone            Origin = "NINGUNO"
	// OriginManual 不由侦测器产生：控制员在建单时人工指派。
	OriginManual Origin = "MANUAL"
)

// Detection 侦测结果。纯读、无副作用，同样的输入和数据必得同样的结果。
type Detection struct {
	Origin      Origin `json:"origen"`
	ItineraryID uint   `json:"itinerarioId,omitempty"`
	ExecutionID uint   `json:"ejecucionItinerarioId,omitempty"`
	RouteID     uint   `json:"rutaId,omitempty"`
	Detected    bool   `json:"detectado"`
	CanOverride bool   `json:"puedeModificar"`
	Message     string `json:"mensaje"`
}

// Store 侦测器需要的数据视图。
type Store interface {
	// ActiveExecution 返回某车辆在 at 时刻进行中的执行（start <= at 且未关闭），无则 (nil, nil)。
	ActiveExecution(ctx context.Context, vehicleID uint, at time.Time) (*Execution, error)
	// StandingForWeekday 返回该车辆排在某西语星期名的全部激活行程。
	StandingForWeekday(ctx context.Context, vehicleID uint, weekday string) ([]Itinerary, error)
	// ExceptionalForDate 返回 (车辆, YYYY-MM-DD) 的一次性路线指派，无则 (nil, nil)。
	ExceptionalForDate(ctx context.Context, vehicleID uint, date string) (*ExceptionalRoute, error)
}

// VehicleDirectory 车辆目录（只需要存在性校验）。
type VehicleDirectory interface {
	ActiveExists(ctx context.Context, id uint) (bool, error)
}

// Detector 行程侦测器：决定某车辆某日适用的行程/路线指派及其出处。
//
// 优先级（先命中先赢）：
//  1. 进行中的执行（地面真相优先于排程）
//  2. 常设行程（按惯常发车时刻、再按 id 决出，保证确定性）
//  3. 一次性路线指派
//  4. 无指派（合法结果，不是错误）
type Detector struct {
	store    Store
	vehicles VehicleDirectory
	log      logger.Logger
	now      func() time.Time
}

func NewDetector(store Store, vehicles VehicleDirectory, log logger.Logger) *Detector {
	return &Detector{
		store:    store,
		vehicles: vehicles,
		log:      log,
		now:      time.Now,
	}
}

// Detect 侦测指派。date 为零值时按当前时间处理。
func (d *Detector) Detect(ctx context.Context, vehicleID uint, date time.Time) (*Detection, error) {
	if d == nil || d.store == nil || d.vehicles == nil {
		return nil, fmt.Errorf("detector not initialized")
	}
	if vehicleID == 0 {
		return nil, apperr.Validationf("vehicle id is required")
	}

	exists, err := d.vehicles.ActiveExists(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperr.NotFoundf("vehicle %d not found or inactive", vehicleID)
	}

	if date.IsZero() {
		date = d.now()
	}

	// 1) 进行中的执行
	exec, err := d.store.ActiveExecution(ctx, vehicleID, date)
	if err != nil {
		return nil, err
	}
	if exec != nil {
		return &Detection{
			Origin:      OriginActiveExecution,
			ItineraryID: exec.ItineraryID,
			ExecutionID: exec.ID,
			Detected:    true,
			CanOverride: !exec.Locked,
			Message: fmt.Sprintf("Ejecución de itinerario en curso desde las %s",
				exec.StartedAt.Format("15:04")),
		}, nil
	}

	// 2) 常设行程
	weekday := SpanishWeekday(date.Weekday())
	standing, err := d.store.StandingForWeekday(ctx, vehicleID, weekday)
	if err != nil {
		return nil, err
	}
	if len(standing) > 0 {
		// 不依赖存储层排序：发车时刻早者优先，再按 id 升序，保证结果稳定。
		sort.Slice(standing, func(i, j int) bool {
			if standing[i].StartTime != standing[j].StartTime {
				return standing[i].StartTime < standing[j].StartTime
			}
			return standing[i].ID < standing[j].ID
		})
		it := standing[0]
		return &Detection{
			Origin:      OriginStanding,
			ItineraryID: it.ID,
			Detected:    true,
			CanOverride: true,
			Message: fmt.Sprintf("Itinerario '%s' programado para %s (inicio habitual %s)",
				it.Name, weekday, it.StartTime),
		}, nil
	}

	// 3) 一次性路线
	exceptional, err := d.store.ExceptionalForDate(ctx, vehicleID, date.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	if exceptional != nil {
		return &Detection{
			Origin:      OriginExceptional,
			RouteID:     exceptional.RouteID,
			Detected:    true,
			CanOverride: true,
			Message: fmt.Sprintf("Ruta excepcional asignada para el %s", exceptional.Date),
		}, nil
	}

	// 4) 无指派：合法结果
	if d.log != nil {
		d.log.WithFields(map[string]interface{}{
			"unidad": vehicleID,
			"fecha":  date.Format("2006-01-02"),
		}).Debug("no itinerary or route assignment detected")
	}
	return &Detection{
		Origin:      OriginNone,
		Detected:    false,
		CanOverride: true,
		Message: fmt.Sprintf("La unidad no tiene itinerario ni ruta asignada para %s; el controlador puede asignar manualmente",
			weekday),
	}, nil
}
