package itinerary

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/Hellares/back-consumo-combustible-sub001/internal/common/apperr"
)

type fakeStore struct {
	execution   *Execution
	standing    []Itinerary
	exceptional *ExceptionalRoute
}

func (f *fakeStore) ActiveExecution(ctx context.Context, vehicleID uint, at time.Time) (*Execution, error) {
	return f.execution, nil
}

func (f *fakeStore) StandingForWeekday(ctx context.Context, vehicleID uint, weekday string) ([]Itinerary, error) {
	var out []Itinerary
	for _, it := range f.standing {
		if it.OperatesOn(weekday) {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakeStore) ExceptionalForDate(ctx context.Context, vehicleID uint, date string) (*ExceptionalRoute, error) {
	if f.exceptional != nil && f.exceptional.Date == date {
		return f.exceptional, nil
	}
	return nil, nil
}

type fakeVehicles struct {
	active map[uint]bool
}

func (f *fakeVehicles) ActiveExists(ctx context.Context, id uint) (bool, error) {
	return f.active[id], nil
}

// 2026-08-31 是星期一（LUNES）。
var monday = time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)

func newTestDetector(store *fakeStore) *Detector {
	return NewDetector(store, &fakeVehicles{active: map[uint]bool{1: true}}, nil)
}

func TestDetectActiveExecutionWinsOverStanding(t *testing.T) {
	store := &fakeStore{
		execution: &Execution{ID: 55, ItineraryID: 10, VehicleID: 1, StartedAt: monday.Add(-2 * time.Hour), Active: true},
		standing: []Itinerary{
			{ID: 20, VehicleID: 1, Name: "Circuito Norte", Weekdays: "LUNES,MARTES", StartTime: "06:00", Active: true},
		},
	}

	got, err := newTestDetector(store).Detect(context.Background(), 1, monday)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if got.Origin != OriginActiveExecution {
		t.Fatalf("expected EJECUCION_ACTIVA, got %s", got.Origin)
	}
	if got.ItineraryID != 10 || got.ExecutionID != 55 {
		t.Fatalf("expected itinerary 10 / execution 55, got %d / %d", got.ItineraryID, got.ExecutionID)
	}
	if !got.Detected || !got.CanOverride {
		t.Fatalf("expected detected and overridable, got %+v", got)
	}
}

func TestDetectLockedExecutionBlocksOverride(t *testing.T) {
	store := &fakeStore{
		execution: &Execution{ID: 55, ItineraryID: 10, VehicleID: 1, StartedAt: monday.Add(-time.Hour), Active: true, Locked: true},
	}
	got, err := newTestDetector(store).Detect(context.Background(), 1, monday)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if got.CanOverride {
		t.Fatalf("locked execution must not be overridable")
	}
}

func TestDetectStandingTieBreak(t *testing.T) {
	store := &fakeStore{
		standing: []Itinerary{
			{ID: 3, VehicleID: 1, Name: "Turno tarde", Weekdays: "LUNES", StartTime: "06:00", Active: true},
			{ID: 7, VehicleID: 1, Name: "Turno madrugada", Weekdays: "LUNES", StartTime: "05:00", Active: true},
			{ID: 2, VehicleID: 1, Name: "Solo domingos", Weekdays: "DOMINGO", StartTime: "04:00", Active: true},
		},
	}

	got, err := newTestDetector(store).Detect(context.Background(), 1, monday)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if got.Origin != OriginStanding {
		t.Fatalf("expected ITINERARIO_PERMANENTE, got %s", got.Origin)
	}
	// 05:00 先于 06:00
	if got.ItineraryID != 7 {
		t.Fatalf("expected earliest start time to win (id 7), got %d", got.ItineraryID)
	}
}

func TestDetectStandingTieBreakById(t *testing.T) {
	store := &fakeStore{
		standing: []Itinerary{
			{ID: 9, VehicleID: 1, Name: "B", Weekdays: "LUNES", StartTime: "06:00", Active: true},
			{ID: 4, VehicleID: 1, Name: "A", Weekdays: "LUNES", StartTime: "06:00", Active: true},
		},
	}
	got, err := newTestDetector(store).Detect(context.Background(), 1, monday)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if got.ItineraryID != 4 {
		t.Fatalf("expected lowest id to win on equal start time, got %d", got.ItineraryID)
	}
}

func TestDetectExceptionalRoute(t *testing.T) {
	store := &fakeStore{
		exceptional: &ExceptionalRoute{ID: 1, RouteID: 88, VehicleID: 1, Date: "2026-08-31"},
	}
	got, err := newTestDetector(store).Detect(context.Background(), 1, monday)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if got.Origin != OriginExceptional {
		t.Fatalf("expected RUTA_EXCEPCIONAL, got %s", got.Origin)
	}
	if got.RouteID != 88 {
		t.Fatalf("expected route 88, got %d", got.RouteID)
	}
}

func TestDetectNoneIsNotAnError(t *testing.T) {
	got, err := newTestDetector(&fakeStore{}).Detect(context.Background(), 1, monday)
	if err != nil {
		t.Fatalf("no assignment must not be an error, got %v", err)
	}
	if got.Origin != OriginNone {
		t.Fatalf("expected NINGUNO, got %s", got.Origin)
	}
	if got.Detected {
		t.Fatalf("expected detectado=false")
	}
	if !got.CanOverride {
		t.Fatalf("controller must be able to assign manually")
	}
	if got.Message == "" {
		t.Fatalf("expected explanatory message")
	}
}

func TestDetectIsDeterministic(t *testing.T) {
	store := &fakeStore{
		standing: []Itinerary{
			{ID: 3, VehicleID: 1, Name: "X", Weekdays: "LUNES", StartTime: "06:00", Active: true},
			{ID: 7, VehicleID: 1, Name: "Y", Weekdays: "LUNES", StartTime: "05:00", Active: true},
		},
	}
	d := newTestDetector(store)

	first, err := d.Detect(context.Background(), 1, monday)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	second, err := d.Detect(context.Background(), 1, monday)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results, got %+v vs %+v", first, second)
	}
}

func TestDetectUnknownVehicle(t *testing.T) {
	d := NewDetector(&fakeStore{}, &fakeVehicles{active: map[uint]bool{}}, nil)
	_, err := d.Detect(context.Background(), 99, monday)
	if err == nil {
		t.Fatalf("expected not found error")
	}
	if !apperr.IsNotFound(err) {
		t.Fatalf("expected not-found kind, got %v", err)
	}
}

func TestSpanishWeekday(t *testing.T) {
	if got := SpanishWeekday(monday.Weekday()); got != "LUNES" {
		t.Fatalf("expected LUNES, got %s", got)
	}
	if got := SpanishWeekday(time.Sunday); got != "DOMINGO" {
		t.Fatalf("expected DOMINGO, got %s", got)
	}
}
