package itinerary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Hellares/back-consumo-combustible-sub001/internal/common/apperr"
	"gorm.io/gorm"
)

// Repo 基于 MySQL 的 Store 实现。只读访问；执行记录的创建/关闭属于外部排程方。
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

func (r *Repo) ActiveExecution(ctx context.Context, vehicleID uint, at time.Time) (*Execution, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var e Execution
	err := db.
		Where("vehicle_id = ? AND active = ? AND started_at <= ? AND actual_end IS NULL", vehicleID, true, at).
		Order("started_at desc").
		First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperr.Infra(err, "failed to query active execution")
	}
	return &e, nil
}

func (r *Repo) StandingForWeekday(ctx context.Context, vehicleID uint, weekday string) ([]Itinerary, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var out []Itinerary
	// weekdays 是逗号分隔的西语星期名；FIND_IN_SET 精确匹配一个成员。
	err := db.
		Where("vehicle_id = ? AND active = ? AND FIND_IN_SET(?, weekdays) > 0", vehicleID, true, weekday).
		Order("start_time asc, id asc").
		Find(&out).Error
	if err != nil {
		return nil, apperr.Infra(err, "failed to query standing itineraries")
	}
	return out, nil
}

func (r *Repo) ExceptionalForDate(ctx context.Context, vehicleID uint, date string) (*ExceptionalRoute, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var e ExceptionalRoute
	err := db.
		Where("vehicle_id = ? AND date = ?", vehicleID, date).
		Order("id asc").
		First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperr.Infra(err, "failed to query exceptional route")
	}
	return &e, nil
}

// FindItinerary 按 id 读取行程定义（建单时人工指派的校验用）。
func (r *Repo) FindItinerary(ctx context.Context, id uint) (*Itinerary, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var it Itinerary
	if err := db.Where("id = ?", id).First(&it).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("itinerary %d not found", id)
		}
		return nil, apperr.Infra(err, "failed to load itinerary")
	}
	return &it, nil
}
