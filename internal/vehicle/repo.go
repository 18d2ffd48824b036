package vehicle

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

func (r *Repo) Upsert(ctx context.Context, v *Vehicle) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return r.db.WithContext(ctx).Save(v).Error
}

func (r *Repo) FindByID(ctx context.Context, id uint) (*Vehicle, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var v Vehicle
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("vehicle %d not found", id)
		}
		return nil, apperr.Infra(err, "failed to load vehicle")
	}
	return &v, nil
}

func (r *Repo) FindByPlate(ctx context.Context, plate string) (*Vehicle, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var v Vehicle
	if err := r.db.WithContext(ctx).Where("plate = ?", plate).First(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("vehicle with plate %s not found", plate)
		}
		return nil, apperr.Infra(err, "failed to load vehicle")
	}
	return &v, nil
}

// ActiveExists 判断车辆存在且处于激活状态（侦测器的前置校验）。
func (r *Repo) ActiveExists(ctx context.Context, id uint) (bool, error) {
	if r == nil || r.db == nil {
		return false, fmt.Errorf("repo db is nil")
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&Vehicle{}).
		Where("id = ? AND active = ?", id, true).
		Count(&count).Error
	if err != nil {
		return false, apperr.Infra(err, "failed to check vehicle")
	}
	return count > 0, nil
}

func (r *Repo) List(ctx context.Context, onlyActive bool, offset, limit int) ([]Vehicle, int64, error) {
	if r == nil || r.db == nil {
		return nil, 0, fmt.Errorf("repo db is nil")
	}
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	q := r.db.WithContext(ctx).Model(&Vehicle{})
	if onlyActive {
		q = q.Where("active = ?", true)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, apperr.Infra(err, "failed to count vehicles")
	}
	var vehicles []Vehicle
	if err := q.Order("plate asc").Offset(offset).Limit(limit).Find(&vehicles).Error; err != nil {
		return nil, 0, apperr.Infra(err, "failed to list vehicles")
	}
	return vehicles, total, nil
}
