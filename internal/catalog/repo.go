package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/Hellares/back-consumo-combustible-sub001/internal/common/apperr"
	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) withCtx(ctx context.Context) *gorm.DB {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.WithContext(ctx)
}

func (r *Repo) GetShift(ctx context.Context, id uint) (*Shift, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var s Shift
	if err := db.Where("id = ?", id).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("shift %d not found", id)
		}
		return nil, apperr.Infra(err, "failed to load shift")
	}
	return &s, nil
}

func (r *Repo) GetRoute(ctx context.Context, id uint) (*Route, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var rt Route
	if err := db.Where("id = ?", id).First(&rt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("route %d not found", id)
		}
		return nil, apperr.Infra(err, "failed to load route")
	}
	return &rt, nil
}

func (r *Repo) GetStation(ctx context.Context, id uint) (*Station, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var st Station
	if err := db.Where("id = ?", id).First(&st).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("station %d not found", id)
		}
		return nil, apperr.Infra(err, "failed to load station")
	}
	return &st, nil
}

func (r *Repo) ListShifts(ctx context.Context, onlyActive bool) ([]Shift, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	q := db.Model(&Shift{}).Order("start_time asc")
	if onlyActive {
		q = q.Where("active = ?", true)
	}
	var out []Shift
	if err := q.Find(&out).Error; err != nil {
		return nil, apperr.Infra(err, "failed to list shifts")
	}
	return out, nil
}

func (r *Repo) ListRoutes(ctx context.Context, onlyActive bool) ([]Route, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	q := db.Model(&Route{}).Order("name asc")
	if onlyActive {
		q = q.Where("active = ?", true)
	}
	var out []Route
	if err := q.Find(&out).Error; err != nil {
		return nil, apperr.Infra(err, "failed to list routes")
	}
	return out, nil
}

// SeedStatusRefs 幂等写入状态参考表。code 已存在时不动（描述可能被人工调整过）。
func (r *Repo) SeedStatusRefs(ctx context.Context, ticketCodes, supplyCodes []string) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	for _, code := range ticketCodes {
		ref := TicketStatusRef{Code: code, Description: code, Active: true}
		if err := db.Where(TicketStatusRef{Code: code}).FirstOrCreate(&ref).Error; err != nil {
			return apperr.Infra(err, fmt.Sprintf("failed to seed ticket status %s", code))
		}
	}
	for _, code := range supplyCodes {
		ref := SupplyStatusRef{Code: code, Description: code, Active: true}
		if err := db.Where(SupplyStatusRef{Code: code}).FirstOrCreate(&ref).Error; err != nil {
			return apperr.Infra(err, fmt.Sprintf("failed to seed supply status %s", code))
		}
	}
	return nil
}
