package sequence

import (
	"context"
	"errors"
	"fmt"

	"github.com/Hellares/back-consumo-combustible-sub001/internal/common/apperr"
	"gorm.io/gorm"
)

// Repo 基于 MySQL 的计数存储。
// 自增走条件 UPDATE（单语句原子）；首个周期的 INSERT 依赖 (kind, period)
// 唯一键兜底，并发首插输家拿到 ErrCollision 由上层重试。
type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Increment(ctx context.Context, kind, period string) (int64, error) {
	if r == nil || r.db == nil {
		return 0, fmt.Errorf("repo db is nil")
	}

	var value int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Counter{}).
			Where("kind = ? AND period = ?", kind, period).
			UpdateColumn("value", gorm.Expr("value + ?", 1))
		if res.Error != nil {
			return apperr.Infra(res.Error, "failed to increment counter")
		}

		if res.RowsAffected == 0 {
			// 该周期首个编号：插入初始行。并发下唯一键冲突返回 ErrCollision。
			c := Counter{Kind: kind, Period: period, Value: 1}
			if err := tx.Create(&c).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return ErrCollision
				}
				return apperr.Infra(err, "failed to create counter")
			}
			value = 1
			return nil
		}

		var c Counter
		if err := tx.Where("kind = ? AND period = ?", kind, period).First(&c).Error; err != nil {
			return apperr.Infra(err, "failed to read counter")
		}
		value = c.Value
		return nil
	})
	if err != nil {
		return 0, err
	}
	return value, nil
}
