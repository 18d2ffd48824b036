package ticket

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Hellares/back-consumo-combustible-sub001/internal/common/apperr"
	"github.com/Hellares/back-consumo-combustible-sub001/internal/common/auth"
	"github.com/Hellares/back-consumo-combustible-sub001/internal/itinerary"
	"github.com/Hellares/back-consumo-combustible-sub001/internal/sequence"
)

// memStore 内存 Store，守卫语义与 MySQL 实现保持一致。
type memStore struct {
	mu       sync.Mutex
	tickets  map[uint]*Ticket
	supplies map[uint]*Supply // key: ticketID
	nextID   uint
}

func newMemStore() *memStore {
	return &memStore{tickets: map[uint]*Ticket{}, supplies: map[uint]*Supply{}}
}

func (m *memStore) Create(ctx context.Context, t *Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t.ID = m.nextID
	cp := *t
	m.tickets[t.ID] = &cp
	return nil
}

func (m *memStore) GetByID(ctx context.Context, id uint) (*Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return nil, apperr.NotFoundf("ticket %d not found", id)
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) List(ctx context.Context, f ListFilter) ([]Ticket, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Ticket
	for _, t := range m.tickets {
		if f.VehicleID != 0 && t.VehicleID != f.VehicleID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		out = append(out, *t)
	}
	return out, int64(len(out)), nil
}

func (m *memStore) UpdateStatusGuarded(ctx context.Context, id uint, from Status, fields map[string]interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok || t.Status != from {
		return false, nil
	}
	applyTicketFields(t, fields)
	return true, nil
}

func (m *memStore) CreateSupplyGuarded(ctx context.Context, s *Supply) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[s.TicketID]
	if !ok || t.Status != StatusApproved || t.DetailStatus != DetailNone {
		return false, nil
	}
	t.DetailStatus = DetailRegistered
	m.nextID++
	s.ID = m.nextID
	cp := *s
	m.supplies[s.TicketID] = &cp
	return true, nil
}

func (m *memStore) GetSupplyByTicket(ctx context.Context, ticketID uint) (*Supply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.supplies[ticketID]
	if !ok {
		return nil, apperr.NotFoundf("ticket %d has no supply record", ticketID)
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) UpdateSupplyStatusGuarded(ctx context.Context, supplyID, ticketID uint, from SupplyStatus, supplyFields, ticketFields map[string]interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.supplies[ticketID]
	if !ok || s.ID != supplyID || s.Status != from {
		return false, nil
	}
	applySupplyFields(s, supplyFields)
	if t, ok := m.tickets[ticketID]; ok {
		applyTicketFields(t, ticketFields)
	}
	return true, nil
}

func applyTicketFields(t *Ticket, fields map[string]interface{}) {
	for k, v := range fields {
		switch k {
		case "status":
			t.Status = v.(Status)
		case "detail_status":
			t.DetailStatus = v.(DetailStatus)
		case "controller_id":
			id := v.(uint)
			t.ControllerID = &id
		case "approved_by":
			id := v.(uint)
			t.ApprovedBy = &id
		case "approved_at":
			ts := v.(time.Time)
			t.ApprovedAt = &ts
		case "approval_notes":
			t.ApprovalNotes = v.(string)
		case "rejected_by":
			id := v.(uint)
			t.RejectedBy = &id
		case "rejected_at":
			ts := v.(time.Time)
			t.RejectedAt = &ts
		case "reject_reason":
			t.RejectReason = v.(string)
		}
	}
}

func applySupplyFields(s *Supply, fields map[string]interface{}) {
	for k, v := range fields {
		switch k {
		case "status":
			s.Status = v.(SupplyStatus)
		case "approved_by":
			id := v.(uint)
			s.ApprovedBy = &id
		case "approved_at":
			ts := v.(time.Time)
			s.ApprovedAt = &ts
		case "approval_notes":
			s.ApprovalNotes = v.(string)
		case "rejected_by":
			id := v.(uint)
			s.RejectedBy = &id
		case "rejected_at":
			ts := v.(time.Time)
			s.RejectedAt = &ts
		case "reject_reason":
			s.RejectReason = v.(string)
		}
	}
}

type fakeSeq struct {
	mu sync.Mutex
	n  map[sequence.Kind]int
}

func (f *fakeSeq) Next(ctx context.Context, kind sequence.Kind, date time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.n == nil {
		f.n = map[sequence.Kind]int{}
	}
	f.n[kind]++
	switch kind {
	case sequence.KindTicket:
		return fmt.Sprintf("TCK-%s-%06d", date.Format("200601"), f.n[kind]), nil
	case sequence.KindSupply:
		return fmt.Sprintf("ABA-%s-%06d", date.Format("2006"), f.n[kind]), nil
	}
	return "", apperr.Validationf("unknown sequence kind: %s", kind)
}

type fakeDetector struct {
	detection *itinerary.Detection
}

func (f *fakeDetector) Detect(ctx context.Context, vehicleID uint, date time.Time) (*itinerary.Detection, error) {
	if f.detection != nil {
		cp := *f.detection
		return &cp, nil
	}
	return &itinerary.Detection{Origin: itinerary.OriginNone, CanOverride: true}, nil
}

type recordNotifier struct {
	mu     sync.Mutex
	events []string
}

func (r *recordNotifier) Notify(ctx context.Context, event string, t *Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

var (
	driver     = auth.Actor{ID: 3, Name: "Luis Paredes", Roles: []string{auth.RoleDriver}}
	controller = auth.Actor{ID: 2, Name: "Ana Quispe", Roles: []string{auth.RoleController}}
	testClock  = time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
)

func newTestService(detection *itinerary.Detection) (*Service, *memStore, *recordNotifier) {
	store := newMemStore()
	notifier := &recordNotifier{}
	svc := NewService(store, &fakeSeq{}, &fakeDetector{detection: detection}, auth.NewRoleAuthorizer(),
		WithNotifier(notifier),
		WithClock(func() time.Time { return testClock }),
	)
	return svc, store, notifier
}

func validInput() CreateInput {
	cur, prev := 12500.0, 12100.0
	return CreateInput{
		VehicleID:       1,
		DriverID:        3,
		StationID:       5,
		CurrentMileage:  &cur,
		PreviousMileage: &prev,
		FuelType:        "DIESEL",
		Quantity:        30,
		Unit:            "GALONES",
	}
}

func TestCreateValidations(t *testing.T) {
	neg := -10.0
	low, high := 100.0, 200.0
	routeID, itineraryID, execID := uint(1), uint(2), uint(3)

	cases := []struct {
		name   string
		mutate func(*CreateInput)
	}{
		{"zero quantity", func(in *CreateInput) { in.Quantity = 0 }},
		{"negative quantity", func(in *CreateInput) { in.Quantity = -5 }},
		{"negative reading", func(in *CreateInput) { in.CurrentHourMeter = &neg }},
		{"odometer inversion", func(in *CreateInput) { in.CurrentMileage = &low; in.PreviousMileage = &high }},
		{"unknown fuel type", func(in *CreateInput) { in.FuelType = "NAFTA" }},
		{"unknown unit", func(in *CreateInput) { in.Unit = "BARRILES" }},
		{"missing vehicle", func(in *CreateInput) { in.VehicleID = 0 }},
		{"route and itinerary together", func(in *CreateInput) { in.RouteID = &routeID; in.ItineraryID = &itineraryID }},
		{"execution without itinerary", func(in *CreateInput) { in.ExecutionID = &execID }},
	}

	svc, _, _ := newTestService(nil)
	for _, tc := range cases {
		in := validInput()
		tc.mutate(&in)
		_, err := svc.Create(context.Background(), in, driver)
		if err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
		if !apperr.IsValidation(err) {
			t.Fatalf("%s: expected validation kind, got %v", tc.name, err)
		}
	}
}

func TestCreateAppliesDetection(t *testing.T) {
	svc, _, notifier := newTestService(&itinerary.Detection{
		Origin:      itinerary.OriginStanding,
		ItineraryID: 7,
		Detected:    true,
		CanOverride: true,
	})

	got, err := svc.Create(context.Background(), validInput(), driver)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got.Status != StatusRequested || got.DetailStatus != DetailNone {
		t.Fatalf("expected SOLICITADO/SIN_DETALLE, got %s/%s", got.Status, got.DetailStatus)
	}
	if !strings.HasPrefix(got.Number, "TCK-202608-") {
		t.Fatalf("unexpected ticket number %s", got.Number)
	}
	if got.AssignmentOrigin != string(itinerary.OriginStanding) {
		t.Fatalf("expected ITINERARIO_PERMANENTE assignment, got %s", got.AssignmentOrigin)
	}
	if got.ItineraryID == nil || *got.ItineraryID != 7 {
		t.Fatalf("expected effective itinerary 7, got %v", got.ItineraryID)
	}
	if got.DetectedItineraryID == nil || *got.DetectedItineraryID != 7 {
		t.Fatalf("expected detected itinerary 7 on record")
	}
	if len(notifier.events) != 1 || notifier.events[0] != EventCreated {
		t.Fatalf("expected TICKET_CREADO notification, got %v", notifier.events)
	}
}

func TestCreateManualOverrideKeepsDetection(t *testing.T) {
	svc, _, _ := newTestService(&itinerary.Detection{
		Origin:      itinerary.OriginStanding,
		ItineraryID: 7,
		Detected:    true,
		CanOverride: true,
	})

	routeID := uint(88)
	in := validInput()
	in.RouteID = &routeID

	got, err := svc.Create(context.Background(), in, controller)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got.AssignmentOrigin != string(itinerary.OriginManual) {
		t.Fatalf("expected MANUAL assignment, got %s", got.AssignmentOrigin)
	}
	if got.RouteID == nil || *got.RouteID != 88 {
		t.Fatalf("expected effective route 88, got %v", got.RouteID)
	}
	if got.ItineraryID != nil {
		t.Fatalf("manual route must not carry detected itinerary as effective")
	}
	// 原始侦测结果必须原样留档
	if got.DetectedOrigin != string(itinerary.OriginStanding) {
		t.Fatalf("detected origin must survive override, got %s", got.DetectedOrigin)
	}
	if got.DetectedItineraryID == nil || *got.DetectedItineraryID != 7 {
		t.Fatalf("detected itinerary must survive override")
	}
}

func TestCreateManualBlockedByLockedExecution(t *testing.T) {
	svc, _, _ := newTestService(&itinerary.Detection{
		Origin:      itinerary.OriginActiveExecution,
		ItineraryID: 7,
		ExecutionID: 55,
		Detected:    true,
		CanOverride: false,
	})

	routeID := uint(88)
	in := validInput()
	in.RouteID = &routeID

	_, err := svc.Create(context.Background(), in, controller)
	if err == nil || !apperr.IsConflict(err) {
		t.Fatalf("expected conflict for locked execution, got %v", err)
	}
}

func TestApproveRequiresController(t *testing.T) {
	svc, _, _ := newTestService(nil)
	created, err := svc.Create(context.Background(), validInput(), driver)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Approve(context.Background(), created.ID, driver, ""); !apperr.IsUnauthorized(err) {
		t.Fatalf("expected unauthorized for driver, got %v", err)
	}
}

func TestApproveThenDoubleApprove(t *testing.T) {
	svc, _, notifier := newTestService(nil)
	created, err := svc.Create(context.Background(), validInput(), driver)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := svc.Approve(context.Background(), created.ID, controller, "ok")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if got.Status != StatusApproved {
		t.Fatalf("expected APROBADO, got %s", got.Status)
	}
	if got.ApprovedBy == nil || *got.ApprovedBy != controller.ID || got.ApprovedAt == nil {
		t.Fatalf("approval audit fields not recorded: %+v", got)
	}
	if got.ControllerID == nil || *got.ControllerID != controller.ID {
		t.Fatalf("controller not recorded on ticket")
	}

	_, err = svc.Approve(context.Background(), created.ID, controller, "again")
	if !apperr.IsConflict(err) {
		t.Fatalf("expected conflict on double approve, got %v", err)
	}
	if state := apperr.CurrentState(err); state != string(StatusApproved) {
		t.Fatalf("conflict must name current state, got %q", state)
	}

	found := false
	for _, e := range notifier.events {
		if e == EventApproved {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected TICKET_APROBADO notification, got %v", notifier.events)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	svc, _, _ := newTestService(nil)
	created, err := svc.Create(context.Background(), validInput(), driver)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Reject(context.Background(), created.ID, controller, "   "); !apperr.IsValidation(err) {
		t.Fatalf("expected validation error for empty reason, got %v", err)
	}

	got, err := svc.Reject(context.Background(), created.ID, controller, "documento ilegible")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if got.Status != StatusRejected || got.RejectReason != "documento ilegible" {
		t.Fatalf("rejection not recorded: %+v", got)
	}
}

func TestRegisterSupplyOnRejectedTicket(t *testing.T) {
	svc, _, _ := newTestService(nil)
	created, err := svc.Create(context.Background(), validInput(), driver)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Reject(context.Background(), created.ID, controller, "sin sustento"); err != nil {
		t.Fatalf("Reject: %v", err)
	}

	_, err = svc.RegisterSupply(context.Background(), created.ID, SupplyInput{Quantity: 28}, driver)
	if !apperr.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if state := apperr.CurrentState(err); state != string(StatusRejected) {
		t.Fatalf("conflict must name RECHAZADO, got %q", state)
	}
}

func TestSupplyLifecycle(t *testing.T) {
	svc, store, notifier := newTestService(nil)
	created, err := svc.Create(context.Background(), validInput(), driver)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Approve(context.Background(), created.ID, controller, ""); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	sup, err := svc.RegisterSupply(context.Background(), created.ID, SupplyInput{
		Quantity: 28.5,
		UnitCost: 15.2,
	}, driver)
	if err != nil {
		t.Fatalf("RegisterSupply: %v", err)
	}
	if !strings.HasPrefix(sup.Number, "ABA-2026-") {
		t.Fatalf("unexpected supply number %s", sup.Number)
	}
	if sup.Status != SupplyRegistered {
		t.Fatalf("expected REGISTRADO, got %s", sup.Status)
	}
	if sup.TotalCost != 28.5*15.2 {
		t.Fatalf("expected derived total cost, got %.2f", sup.TotalCost)
	}

	after, err := store.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if after.DetailStatus != DetailRegistered {
		t.Fatalf("expected DETALLE_REGISTRADO, got %s", after.DetailStatus)
	}

	// 重复登记必须冲突
	if _, err := svc.RegisterSupply(context.Background(), created.ID, SupplyInput{Quantity: 10}, driver); !apperr.IsConflict(err) {
		t.Fatalf("expected conflict on second supply, got %v", err)
	}

	// 拒绝实供：理由必填，工单保持 APROBADO
	if _, err := svc.RejectSupply(context.Background(), created.ID, controller, ""); !apperr.IsValidation(err) {
		t.Fatalf("expected validation error for empty supply reject reason, got %v", err)
	}
	rejected, err := svc.RejectSupply(context.Background(), created.ID, controller, "foto del precinto no coincide")
	if err != nil {
		t.Fatalf("RejectSupply: %v", err)
	}
	if rejected.Status != SupplyRejected {
		t.Fatalf("expected RECHAZADO supply, got %s", rejected.Status)
	}

	final, err := store.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if final.Status != StatusApproved {
		t.Fatalf("ticket must stay APROBADO after supply rejection, got %s", final.Status)
	}
	if final.DetailStatus != DetailRejected {
		t.Fatalf("expected DETALLE_RECHAZADO, got %s", final.DetailStatus)
	}

	// 已终态的实供不可再审批
	if _, err := svc.ApproveSupply(context.Background(), created.ID, controller, ""); !apperr.IsConflict(err) {
		t.Fatalf("expected conflict approving rejected supply, got %v", err)
	}

	want := []string{EventCreated, EventApproved, EventSupplyCreated, EventSupplyRejected}
	if len(notifier.events) != len(want) {
		t.Fatalf("expected events %v, got %v", want, notifier.events)
	}
	for i := range want {
		if notifier.events[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, notifier.events)
		}
	}
}

func TestApproveSupplySyncsTicketDetail(t *testing.T) {
	svc, store, _ := newTestService(nil)
	created, _ := svc.Create(context.Background(), validInput(), driver)
	if _, err := svc.Approve(context.Background(), created.ID, controller, ""); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if _, err := svc.RegisterSupply(context.Background(), created.ID, SupplyInput{Quantity: 30}, driver); err != nil {
		t.Fatalf("RegisterSupply: %v", err)
	}

	sup, err := svc.ApproveSupply(context.Background(), created.ID, controller, "conforme")
	if err != nil {
		t.Fatalf("ApproveSupply: %v", err)
	}
	if sup.Status != SupplyApproved || sup.ApprovedBy == nil {
		t.Fatalf("supply approval not recorded: %+v", sup)
	}

	final, _ := store.GetByID(context.Background(), created.ID)
	if final.DetailStatus != DetailApproved {
		t.Fatalf("expected DETALLE_APROBADO, got %s", final.DetailStatus)
	}
}

// raceLoserStore 模拟守卫竞争输家：条件更新永远一行不改。
type raceLoserStore struct {
	Store
}

func (r raceLoserStore) UpdateStatusGuarded(ctx context.Context, id uint, from Status, fields map[string]interface{}) (bool, error) {
	return false, nil
}

func TestApproveRaceLoserGetsConflict(t *testing.T) {
	base := newMemStore()
	svc := NewService(raceLoserStore{base}, &fakeSeq{}, &fakeDetector{}, auth.NewRoleAuthorizer(),
		WithClock(func() time.Time { return testClock }))

	created, err := svc.Create(context.Background(), validInput(), driver)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err = svc.Approve(context.Background(), created.ID, controller, "")
	if !apperr.IsConflict(err) {
		t.Fatalf("race loser must get conflict, got %v", err)
	}
}

func TestGetViewComputesMetrics(t *testing.T) {
	svc, _, _ := newTestService(nil)
	created, err := svc.Create(context.Background(), validInput(), driver)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Approve(context.Background(), created.ID, controller, ""); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if _, err := svc.RegisterSupply(context.Background(), created.ID, SupplyInput{Quantity: 51}, driver); err != nil {
		t.Fatalf("RegisterSupply: %v", err)
	}

	v, err := svc.GetView(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetView: %v", err)
	}
	// 12500 - 12100 = 400; 400 / 51 = 7.84
	if v.MileageDelta != 400 {
		t.Fatalf("expected mileage delta 400, got %.2f", v.MileageDelta)
	}
	if v.Efficiency != 7.84 {
		t.Fatalf("expected efficiency 7.84, got %.2f", v.Efficiency)
	}
	if v.Supply == nil {
		t.Fatalf("expected supply in view")
	}
}

func TestGetViewWithoutSupplyUsesRequestedQuantity(t *testing.T) {
	svc, _, _ := newTestService(nil)
	created, err := svc.Create(context.Background(), validInput(), driver)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	v, err := svc.GetView(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetView: %v", err)
	}
	if v.Supply != nil {
		t.Fatalf("expected no supply yet")
	}
	// 400 / 30 = 13.33
	if v.Efficiency != 13.33 {
		t.Fatalf("expected efficiency 13.33, got %.2f", v.Efficiency)
	}
}
