package ticket

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Hellares/back-consumo-combustible-sub001/internal/catalog"
	"github.com/Hellares/back-consumo-combustible-sub001/internal/common/apperr"
	"github.com/Hellares/back-consumo-combustible-sub001/internal/common/auth"
	"github.com/Hellares/back-consumo-combustible-sub001/internal/common/filestore"
	"github.com/Hellares/back-consumo-combustible-sub001/internal/common/logger"
	"github.com/Hellares/back-consumo-combustible-sub001/internal/itinerary"
	"github.com/Hellares/back-consumo-combustible-sub001/internal/sequence"
)

// Store 工单持久化视图。所有状态变更都是条件更新：applied=false 表示守卫失败。
type Store interface {
	Create(ctx context.Context, t *Ticket) error
	GetByID(ctx context.Context, id uint) (*Ticket, error)
	List(ctx context.Context, f ListFilter) ([]Ticket, int64, error)
	UpdateStatusGuarded(ctx context.Context, id uint, from Status, fields map[string]interface{}) (bool, error)
	CreateSupplyGuarded(ctx context.Context, s *Supply) (bool, error)
	GetSupplyByTicket(ctx context.Context, ticketID uint) (*Supply, error)
	UpdateSupplyStatusGuarded(ctx context.Context, supplyID, ticketID uint, from SupplyStatus, supplyFields, ticketFields map[string]interface{}) (bool, error)
}

// Sequencer 编号分配。
type Sequencer interface {
	Next(ctx context.Context, kind sequence.Kind, date time.Time) (string, error)
}

// AssignmentDetector 行程/路线侦测。
type AssignmentDetector interface {
	Detect(ctx context.Context, vehicleID uint, date time.Time) (*itinerary.Detection, error)
}

// Notifier 状态变更通知。尽力而为：投递失败只记日志，不影响主流程。
type Notifier interface {
	Notify(ctx context.Context, event string, t *Ticket) error
}

// 通知事件名（西语，与状态码一致的命名风格）。
const (
	EventCreated        = "TICKET_CREADO"
	EventApproved       = "TICKET_APROBADO"
	EventRejected       = "TICKET_RECHAZADO"
	EventSupplyCreated  = "DETALLE_REGISTRADO"
	EventSupplyApproved = "DETALLE_APROBADO"
	EventSupplyRejected = "DETALLE_RECHAZADO"
)

// Service 工单服务：生命周期、指派侦测、实供明细审批。
type Service struct {
	store    Store
	seq      Sequencer
	detector AssignmentDetector
	authz    auth.Authorizer
	notifier Notifier
	evidence filestore.EvidenceStore
	refs     Refs
	log      logger.Logger
	now      func() time.Time
}

// Option Service 的可选协作方。
type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithEvidenceStore(e filestore.EvidenceStore) Option {
	return func(s *Service) { s.evidence = e }
}

func WithRefs(r Refs) Option {
	return func(s *Service) { s.refs = r }
}

func WithLogger(log logger.Logger) Option {
	return func(s *Service) { s.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, seq Sequencer, detector AssignmentDetector, authz auth.Authorizer, opts ...Option) *Service {
	s := &Service{
		store:    store,
		seq:      seq,
		detector: detector,
		authz:    authz,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput 建单入参。
type CreateInput struct {
	Date string `json:"fecha"` // YYYY-MM-DD，缺省取当日
	Time string `json:"hora"`  // HH:MM，缺省取当前时刻

	ShiftID   *uint `json:"turnoId"`
	VehicleID uint  `json:"unidadId"`
	DriverID  uint  `json:"conductorId"`
	StationID uint  `json:"grifoId"`

	// 人工改派：路线与行程互斥；执行只能随行程给出
	RouteID     *uint `json:"rutaId"`
	ItineraryID *uint `json:"itinerarioId"`
	ExecutionID *uint `json:"ejecucionItinerarioId"`

	CurrentMileage    *float64 `json:"kilometrajeActual"`
	PreviousMileage   *float64 `json:"kilometrajeAnterior"`
	CurrentHourMeter  *float64 `json:"horometroActual"`
	PreviousHourMeter *float64 `json:"horometroAnterior"`

	OldSeal string `json:"precintoAntiguo"`
	NewSeal string `json:"precintoNuevo"`

	FuelType string  `json:"tipoCombustible"`
	Quantity float64 `json:"cantidad"`
	Unit     string  `json:"unidadMedida"`
	Notes    string  `json:"observaciones"`
}

func (in CreateInput) validate() error {
	if in.VehicleID == 0 {
		return apperr.Validationf("vehicle id is required")
	}
	if in.DriverID == 0 {
		return apperr.Validationf("driver id is required")
	}
	if in.StationID == 0 {
		return apperr.Validationf("station id is required")
	}
	if in.Quantity <= 0 {
		return apperr.Validationf("requested quantity must be positive, got %.2f", in.Quantity)
	}
	if !catalog.ValidFuelType(in.FuelType) {
		return apperr.Validationf("unknown fuel type: %s", in.FuelType)
	}
	if !catalog.ValidUnit(in.Unit) {
		return apperr.Validationf("unknown unit: %s", in.Unit)
	}
	for name, v := range map[string]*float64{
		"kilometrajeActual":   in.CurrentMileage,
		"kilometrajeAnterior": in.PreviousMileage,
		"horometroActual":     in.CurrentHourMeter,
		"horometroAnterior":   in.PreviousHourMeter,
	} {
		if v != nil && *v < 0 {
			return apperr.Validationf("%s must not be negative, got %.2f", name, *v)
		}
	}
	// 里程倒挂在建单时直接拒绝（两个读数都给出时才能判断）
	if in.CurrentMileage != nil && in.PreviousMileage != nil && *in.CurrentMileage < *in.PreviousMileage {
		return apperr.Validationf("current mileage %.2f is lower than previous mileage %.2f",
			*in.CurrentMileage, *in.PreviousMileage)
	}
	if in.RouteID != nil && in.ItineraryID != nil {
		return apperr.Validationf("route and itinerary assignment are mutually exclusive")
	}
	if in.ExecutionID != nil && in.ItineraryID == nil {
		return apperr.Validationf("execution assignment requires an itinerary")
	}
	return nil
}

// Create 建单。指派侦测无条件执行并原样留档（DetectedOrigin / DetectedItineraryID）；
// 控制员人工给出路线或行程时，生效指派记为 MANUAL，但不覆盖侦测结果。
func (s *Service) Create(ctx context.Context, in CreateInput, actor auth.Actor) (*Ticket, error) {
	if s == nil || s.store == nil || s.seq == nil || s.detector == nil {
		return nil, fmt.Errorf("ticket service not initialized")
	}
	if actor.ID == 0 {
		return nil, apperr.Unauthorizedf("actor identity is required")
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	at, date, clock, err := resolveMoment(in.Date, in.Time, now)
	if err != nil {
		return nil, err
	}

	detection, err := s.detector.Detect(ctx, in.VehicleID, at)
	if err != nil {
		return nil, err
	}

	t := &Ticket{
		Date:              date,
		Time:              clock,
		ShiftID:           in.ShiftID,
		VehicleID:         in.VehicleID,
		DriverID:          in.DriverID,
		StationID:         in.StationID,
		CurrentMileage:    in.CurrentMileage,
		PreviousMileage:   in.PreviousMileage,
		CurrentHourMeter:  in.CurrentHourMeter,
		PreviousHourMeter: in.PreviousHourMeter,
		OldSeal:           strings.TrimSpace(in.OldSeal),
		NewSeal:           strings.TrimSpace(in.NewSeal),
		FuelType:          strings.ToUpper(strings.TrimSpace(in.FuelType)),
		Quantity:          in.Quantity,
		Unit:              strings.ToUpper(strings.TrimSpace(in.Unit)),
		Notes:             in.Notes,
		Status:            StatusRequested,
		DetailStatus:      DetailNone,
		RequestedBy:       actor.ID,
		DetectedOrigin:    string(detection.Origin),
	}
	if detection.ItineraryID != 0 {
		id := detection.ItineraryID
		t.DetectedItineraryID = &id
	}

	manual := in.RouteID != nil || in.ItineraryID != nil
	switch {
	case manual && !detection.CanOverride:
		return nil, apperr.Conflictf(string(detection.Origin),
			"active execution is locked, manual assignment is not allowed")
	case manual:
		t.AssignmentOrigin = string(itinerary.OriginManual)
		t.RouteID = in.RouteID
		t.ItineraryID = in.ItineraryID
		t.ExecutionID = in.ExecutionID
	default:
		t.AssignmentOrigin = string(detection.Origin)
		applyDetection(t, detection)
	}

	number, err := s.seq.Next(ctx, sequence.KindTicket, at)
	if err != nil {
		return nil, err
	}
	t.Number = number

	if err := s.store.Create(ctx, t); err != nil {
		return nil, err
	}

	s.logInfo("ticket created", map[string]interface{}{
		"numero": t.Number, "unidad": t.VehicleID, "origen": t.AssignmentOrigin,
	})
	s.notify(ctx, EventCreated, t)
	return t, nil
}

// applyDetection 把侦测结果落为生效指派。
func applyDetection(t *Ticket, d *itinerary.Detection) {
	switch d.Origin {
	case itinerary.OriginActiveExecution:
		it, ex := d.ItineraryID, d.ExecutionID
		t.ItineraryID = &it
		t.ExecutionID = &ex
	case itinerary.OriginStanding:
		it := d.ItineraryID
		t.ItineraryID = &it
	case itinerary.OriginExceptional:
		rt := d.RouteID
		t.RouteID = &rt
	}
}

// Approve 批准工单。控制员专属；并发竞争中输掉的一方得到 Conflict。
func (s *Service) Approve(ctx context.Context, id uint, actor auth.Actor, notes string) (*Ticket, error) {
	if err := s.requireController(actor); err != nil {
		return nil, err
	}
	t, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ticketFlow.Ensure(t.Status, StatusApproved); err != nil {
		return nil, err
	}

	now := s.now()
	applied, err := s.store.UpdateStatusGuarded(ctx, id, StatusRequested, map[string]interface{}{
		"status":         StatusApproved,
		"controller_id":  actor.ID,
		"approved_by":    actor.ID,
		"approved_at":    now,
		"approval_notes": notes,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, s.concurrentConflict(ctx, id, t.Number)
	}

	t, err = s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logInfo("ticket approved", map[string]interface{}{"numero": t.Number, "controlador": actor.ID})
	s.notify(ctx, EventApproved, t)
	return t, nil
}

// Reject 拒绝工单。理由必填。
func (s *Service) Reject(ctx context.Context, id uint, actor auth.Actor, reason string) (*Ticket, error) {
	if err := s.requireController(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		return nil, apperr.Validationf("rejection reason is required")
	}
	t, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ticketFlow.Ensure(t.Status, StatusRejected); err != nil {
		return nil, err
	}

	now := s.now()
	applied, err := s.store.UpdateStatusGuarded(ctx, id, StatusRequested, map[string]interface{}{
		"status":        StatusRejected,
		"controller_id": actor.ID,
		"rejected_by":   actor.ID,
		"rejected_at":   now,
		"reject_reason": reason,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, s.concurrentConflict(ctx, id, t.Number)
	}

	t, err = s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logInfo("ticket rejected", map[string]interface{}{"numero": t.Number, "controlador": actor.ID})
	s.notify(ctx, EventRejected, t)
	return t, nil
}

// SupplyInput 实供明细入参。
type SupplyInput struct {
	Quantity  float64 `json:"cantidadReal"`
	UnitCost  float64 `json:"costoUnitario"`
	TotalCost float64 `json:"costoTotal"`

	FinalMileage *float64 `json:"kilometrajeFinal"`

	// 证据：对象存储 key 或完整 URL
	InvoicePhotoKey string `json:"fotoFacturaKey"`
	SealPhotoKey    string `json:"fotoPrecintoKey"`
}

func (in SupplyInput) validate() error {
	if in.Quantity <= 0 {
		return apperr.Validationf("supplied quantity must be positive, got %.2f", in.Quantity)
	}
	if in.UnitCost < 0 || in.TotalCost < 0 {
		return apperr.Validationf("costs must not be negative")
	}
	if in.FinalMileage != nil && *in.FinalMileage < 0 {
		return apperr.Validationf("final mileage must not be negative")
	}
	return nil
}

// RegisterSupply 登记实供明细。仅 APROBADO + SIN_DETALLE 的工单可登记；
// 守卫失败时报告工单当前的真实状态。
func (s *Service) RegisterSupply(ctx context.Context, ticketID uint, in SupplyInput, actor auth.Actor) (*Supply, error) {
	if s == nil || s.store == nil || s.seq == nil {
		return nil, fmt.Errorf("ticket service not initialized")
	}
	if actor.ID == 0 {
		return nil, apperr.Unauthorizedf("actor identity is required")
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	t, err := s.store.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if t.Status != StatusApproved {
		return nil, apperr.Conflictf(string(t.Status),
			"cannot register supply for ticket %s in state %s", t.Number, t.Status)
	}
	if t.DetailStatus != DetailNone {
		return nil, apperr.Conflictf(string(t.DetailStatus),
			"ticket %s already has a supply record", t.Number)
	}

	now := s.now()
	number, err := s.seq.Next(ctx, sequence.KindSupply, now)
	if err != nil {
		return nil, err
	}

	total := in.TotalCost
	if total == 0 && in.UnitCost > 0 {
		total = in.Quantity * in.UnitCost
	}

	sup := &Supply{
		Number:          number,
		TicketID:        ticketID,
		Quantity:        in.Quantity,
		UnitCost:        in.UnitCost,
		TotalCost:       total,
		FinalMileage:    in.FinalMileage,
		InvoicePhotoURL: s.evidenceURL(in.InvoicePhotoKey),
		SealPhotoURL:    s.evidenceURL(in.SealPhotoKey),
		Status:          SupplyRegistered,
		RegisteredBy:    actor.ID,
	}

	applied, err := s.store.CreateSupplyGuarded(ctx, sup)
	if err != nil {
		return nil, err
	}
	if !applied {
		// 守卫失败：并发方抢先改了工单，重读并报告真实状态
		current, rerr := s.store.GetByID(ctx, ticketID)
		if rerr != nil {
			return nil, rerr
		}
		state := string(current.Status)
		if current.Status == StatusApproved {
			state = string(current.DetailStatus)
		}
		return nil, apperr.Conflictf(state,
			"ticket %s changed concurrently, supply was not registered", current.Number)
	}

	if t, err = s.store.GetByID(ctx, ticketID); err == nil {
		s.notify(ctx, EventSupplyCreated, t)
	}
	s.logInfo("supply registered", map[string]interface{}{"numero": sup.Number, "ticket": ticketID})
	return sup, nil
}

// ApproveSupply 批准实供明细。工单的明细子状态同步为 DETALLE_APROBADO。
func (s *Service) ApproveSupply(ctx context.Context, ticketID uint, actor auth.Actor, notes string) (*Supply, error) {
	return s.resolveSupply(ctx, ticketID, actor, SupplyApproved, notes)
}

// RejectSupply 拒绝实供明细（证据不符等）。理由必填；
// 工单本身保持 APROBADO，只有明细子状态变为 DETALLE_RECHAZADO。
func (s *Service) RejectSupply(ctx context.Context, ticketID uint, actor auth.Actor, reason string) (*Supply, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, apperr.Validationf("rejection reason is required")
	}
	return s.resolveSupply(ctx, ticketID, actor, SupplyRejected, reason)
}

func (s *Service) resolveSupply(ctx context.Context, ticketID uint, actor auth.Actor, target SupplyStatus, text string) (*Supply, error) {
	if err := s.requireController(actor); err != nil {
		return nil, err
	}
	sup, err := s.store.GetSupplyByTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := supplyFlow.Ensure(sup.Status, target); err != nil {
		return nil, err
	}

	now := s.now()
	supplyFields := map[string]interface{}{"status": target}
	event := EventSupplyApproved
	if target == SupplyApproved {
		supplyFields["approved_by"] = actor.ID
		supplyFields["approved_at"] = now
		supplyFields["approval_notes"] = text
	} else {
		supplyFields["rejected_by"] = actor.ID
		supplyFields["rejected_at"] = now
		supplyFields["reject_reason"] = text
		event = EventSupplyRejected
	}
	ticketFields := map[string]interface{}{"detail_status": detailStatusFor(target)}

	applied, err := s.store.UpdateSupplyStatusGuarded(ctx, sup.ID, ticketID, SupplyRegistered, supplyFields, ticketFields)
	if err != nil {
		return nil, err
	}
	if !applied {
		current, rerr := s.store.GetSupplyByTicket(ctx, ticketID)
		if rerr != nil {
			return nil, rerr
		}
		return nil, apperr.Conflictf(string(current.Status),
			"supply %s already processed", current.Number)
	}

	sup, err = s.store.GetSupplyByTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if t, terr := s.store.GetByID(ctx, ticketID); terr == nil {
		s.notify(ctx, event, t)
	}
	s.logInfo("supply resolved", map[string]interface{}{"numero": sup.Number, "estado": string(target)})
	return sup, nil
}

// Get 读取单个工单。
func (s *Service) Get(ctx context.Context, id uint) (*Ticket, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("ticket service not initialized")
	}
	return s.store.GetByID(ctx, id)
}

// List 分页查询工单。
func (s *Service) List(ctx context.Context, f ListFilter) ([]Ticket, int64, error) {
	if s == nil || s.store == nil {
		return nil, 0, fmt.Errorf("ticket service not initialized")
	}
	return s.store.List(ctx, f)
}

func (s *Service) requireController(actor auth.Actor) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("ticket service not initialized")
	}
	if s.authz == nil {
		return fmt.Errorf("authorizer not configured")
	}
	return s.authz.Require(actor, auth.RoleController)
}

// concurrentConflict 重读当前状态并构造竞争冲突错误。
func (s *Service) concurrentConflict(ctx context.Context, id uint, number string) error {
	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return apperr.Conflictf(string(current.Status),
		"ticket %s already processed", number)
}

func (s *Service) evidenceURL(key string) string {
	if key == "" {
		return ""
	}
	if s.evidence == nil {
		return key
	}
	url, err := s.evidence.ObjectURL(key)
	if err != nil {
		if s.log != nil {
			s.log.WithField("key", key).Warnf("failed to resolve evidence url: %v", err)
		}
		return key
	}
	return url
}

func (s *Service) notify(ctx context.Context, event string, t *Ticket) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event, t); err != nil && s.log != nil {
		s.log.WithFields(map[string]interface{}{
			"evento": event, "numero": t.Number,
		}).Warnf("notification delivery failed: %v", err)
	}
}

func (s *Service) logInfo(msg string, fields map[string]interface{}) {
	if s.log != nil {
		s.log.WithFields(fields).Info(msg)
	}
}

// resolveMoment 解析建单的日期/时刻，缺省取 now。
// 返回值：完整时间点（给侦测器）、日期串、时刻串。
func resolveMoment(date, clock string, now time.Time) (time.Time, string, string, error) {
	if date == "" {
		date = now.Format("2006-01-02")
	}
	if clock == "" {
		clock = now.Format("15:04")
	}
	at, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, now.Location())
	if err != nil {
		return time.Time{}, "", "", apperr.Validationf("invalid date/time %q %q: %v", date, clock, err)
	}
	return at, date, clock, nil
}
