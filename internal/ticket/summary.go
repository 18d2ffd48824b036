package ticket

import (
	"context"
	"fmt"

	"github.com/Hellares/back-consumo-combustible-sub001/internal/catalog"
	"github.com/Hellares/back-consumo-combustible-sub001/internal/common/apperr"
	"github.com/Hellares/back-consumo-combustible-sub001/internal/fuelmetrics"
	"github.com/Hellares/back-consumo-combustible-sub001/internal/user"
	"github.com/Hellares/back-consumo-combustible-sub001/internal/vehicle"
)

// Refs 展示层需要的参考数据视图（班次/车辆/人员/加油站）。
type Refs interface {
	Shift(ctx context.Context, id uint) (*catalog.Shift, error)
	Station(ctx context.Context, id uint) (*catalog.Station, error)
	Vehicle(ctx context.Context, id uint) (*vehicle.Vehicle, error)
	Person(ctx context.Context, id uint) (*user.User, error)
}

// ShiftSummary 班次摘要。时长现算，跨夜班补 24h。
type ShiftSummary struct {
	ID            uint    `json:"id"`
	Name          string  `json:"nombre"`
	StartTime     string  `json:"horaInicio"`
	EndTime       string  `json:"horaFin"`
	DurationHours float64 `json:"duracionHoras"`
}

func NewShiftSummary(s *catalog.Shift) *ShiftSummary {
	if s == nil {
		return nil
	}
	hours, err := fuelmetrics.ShiftDurationHours(s.StartTime, s.EndTime)
	if err != nil {
		hours = 0
	}
	return &ShiftSummary{
		ID:            s.ID,
		Name:          s.Name,
		StartTime:     s.StartTime,
		EndTime:       s.EndTime,
		DurationHours: hours,
	}
}

// VehicleSummary 车辆摘要。
type VehicleSummary struct {
	ID           uint    `json:"id"`
	Plate        string  `json:"placa"`
	Model        string  `json:"modelo"`
	TankCapacity float64 `json:"capacidadTanque"`
}

func NewVehicleSummary(v *vehicle.Vehicle) *VehicleSummary {
	if v == nil {
		return nil
	}
	return &VehicleSummary{ID: v.ID, Plate: v.Plate, Model: v.Model, TankCapacity: v.TankCapacity}
}

// PersonSummary 人员摘要（司机/控制员通用）。
type PersonSummary struct {
	ID       uint   `json:"id"`
	FullName string `json:"nombreCompleto"`
	Phone    string `json:"telefono"`
}

func NewPersonSummary(u *user.User) *PersonSummary {
	if u == nil {
		return nil
	}
	return &PersonSummary{ID: u.ID, FullName: u.FullName, Phone: u.Phone}
}

// StationSummary 加油站摘要。
type StationSummary struct {
	ID      uint   `json:"id"`
	Name    string `json:"nombre"`
	Address string `json:"direccion"`
}

func NewStationSummary(st *catalog.Station) *StationSummary {
	if st == nil {
		return nil
	}
	return &StationSummary{ID: st.ID, Name: st.Name, Address: st.Address}
}

// View 工单展示视图：原始工单 + 参考摘要 + 现算指标。
// 指标不落库，每次读取时从持久化读数重新推导。
type View struct {
	Ticket *Ticket `json:"ticket"`
	Supply *Supply `json:"abastecimiento,omitempty"`

	Shift      *ShiftSummary   `json:"turno,omitempty"`
	Vehicle    *VehicleSummary `json:"unidad,omitempty"`
	Driver     *PersonSummary  `json:"conductor,omitempty"`
	Controller *PersonSummary  `json:"controlador,omitempty"`
	Station    *StationSummary `json:"grifo,omitempty"`

	MileageDelta    float64 `json:"diferenciaKilometraje"`
	Efficiency      float64 `json:"eficienciaCombustible"`
	TankFillPercent float64 `json:"porcentajeTanque"`
}

// GetView 组装展示视图。参考数据缺失不致命：摘要置空、记日志，指标照常计算。
func (s *Service) GetView(ctx context.Context, id uint) (*View, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("ticket service not initialized")
	}
	t, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	v := &View{Ticket: t}

	sup, err := s.store.GetSupplyByTicket(ctx, id)
	if err != nil && !apperr.IsNotFound(err) {
		return nil, err
	}
	v.Supply = sup

	if s.refs != nil {
		s.fillRefs(ctx, v, t)
	}
	s.fillMetrics(v, t, sup)
	return v, nil
}

func (s *Service) fillRefs(ctx context.Context, v *View, t *Ticket) {
	if t.ShiftID != nil {
		if shift, err := s.refs.Shift(ctx, *t.ShiftID); err == nil {
			v.Shift = NewShiftSummary(shift)
		} else {
			s.logRefMiss("turno", *t.ShiftID, err)
		}
	}
	if veh, err := s.refs.Vehicle(ctx, t.VehicleID); err == nil {
		v.Vehicle = NewVehicleSummary(veh)
	} else {
		s.logRefMiss("unidad", t.VehicleID, err)
	}
	if drv, err := s.refs.Person(ctx, t.DriverID); err == nil {
		v.Driver = NewPersonSummary(drv)
	} else {
		s.logRefMiss("conductor", t.DriverID, err)
	}
	if t.ControllerID != nil {
		if ctl, err := s.refs.Person(ctx, *t.ControllerID); err == nil {
			v.Controller = NewPersonSummary(ctl)
		} else {
			s.logRefMiss("controlador", *t.ControllerID, err)
		}
	}
	if st, err := s.refs.Station(ctx, t.StationID); err == nil {
		v.Station = NewStationSummary(st)
	} else {
		s.logRefMiss("grifo", t.StationID, err)
	}
}

func (s *Service) fillMetrics(v *View, t *Ticket, sup *Supply) {
	calc := fuelmetrics.NewCalculator(s.log)

	if t.CurrentMileage != nil && t.PreviousMileage != nil {
		v.MileageDelta = calc.MileageDelta(*t.CurrentMileage, *t.PreviousMileage)
	}

	// 效率按实供量算；明细未登记时退回申请量
	qty := t.Quantity
	if sup != nil && sup.Quantity > 0 {
		qty = sup.Quantity
	}
	v.Efficiency = calc.Efficiency(v.MileageDelta, qty)

	if v.Vehicle != nil {
		v.TankFillPercent = calc.TankFillPercent(qty, v.Vehicle.TankCapacity)
	}
}

func (s *Service) logRefMiss(kind string, id uint, err error) {
	if s.log != nil {
		s.log.WithFields(map[string]interface{}{kind: id}).Warnf("reference lookup failed: %v", err)
	}
}
