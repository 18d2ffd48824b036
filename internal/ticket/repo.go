package ticket

import (
	"context"
	"errors"
	"fmt"

	"github.com/Hellares/back-consumo-combustible-sub001/internal/common/apperr"
	"gorm.io/gorm"
)

// Repo 基于 MySQL 的 Store 实现。
// 状态流转全部走“带前置状态条件的 UPDATE”（乐观并发）：
// RowsAffected == 0 表示持久化状态已被并发方改掉，由服务层转为 Conflict。
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

func (r *Repo) Create(ctx context.Context, t *Ticket) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	if err := db.Create(t).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.Conflictf("", "ticket number %s already exists", t.Number)
		}
		return apperr.Infra(err, "failed to create ticket")
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id uint) (*Ticket, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var t Ticket
	if err := db.Where("id = ?", id).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("ticket %d not found", id)
		}
		return nil, apperr.Infra(err, "failed to load ticket")
	}
	return &t, nil
}

// ListFilter 查询条件。
type ListFilter struct {
	VehicleID uint
	Status    Status
	Offset    int
	Limit     int
}

func (r *Repo) List(ctx context.Context, f ListFilter) ([]Ticket, int64, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, 0, fmt.Errorf("repo db is nil")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	q := db.Model(&Ticket{})
	if f.VehicleID != 0 {
		q = q.Where("vehicle_id = ?", f.VehicleID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, apperr.Infra(err, "failed to count tickets")
	}

	var tickets []Ticket
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&tickets).Error; err != nil {
		return nil, 0, apperr.Infra(err, "failed to list tickets")
	}
	return tickets, total, nil
}

// UpdateStatusGuarded 工单状态条件更新：仅当持久化状态仍为 from 时生效。
// 返回 false 表示输掉并发竞争（或状态早已变化），一行都没改。
func (r *Repo) UpdateStatusGuarded(ctx context.Context, id uint, from Status, fields map[string]interface{}) (bool, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return false, fmt.Errorf("repo db is nil")
	}
	res := db.Model(&Ticket{}).
		Where("id = ? AND status = ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return false, apperr.Infra(res.Error, "failed to update ticket status")
	}
	return res.RowsAffected > 0, nil
}

// CreateSupplyGuarded 在一个事务里：
// 1) 条件更新工单（必须仍是 APROBADO + SIN_DETALLE）
// 2) 插入实供明细
// 任一步失败整体回滚，绝不出现“半挂接”的明细。
func (r *Repo) CreateSupplyGuarded(ctx context.Context, s *Supply) (bool, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return false, fmt.Errorf("repo db is nil")
	}

	applied := false
	err := db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Ticket{}).
			Where("id = ? AND status = ? AND detail_status = ?", s.TicketID, StatusApproved, DetailNone).
			Update("detail_status", DetailRegistered)
		if res.Error != nil {
			return apperr.Infra(res.Error, "failed to mark ticket detail status")
		}
		if res.RowsAffected == 0 {
			return nil // 守卫失败，applied 保持 false
		}
		if err := tx.Create(s).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflictf("", "ticket %d already has a supply record", s.TicketID)
			}
			return apperr.Infra(err, "failed to create supply record")
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (r *Repo) GetSupplyByTicket(ctx context.Context, ticketID uint) (*Supply, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var s Supply
	if err := db.Where("ticket_id = ?", ticketID).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("ticket %d has no supply record", ticketID)
		}
		return nil, apperr.Infra(err, "failed to load supply record")
	}
	return &s, nil
}

// UpdateSupplyStatusGuarded 实供明细状态条件更新，并在同一事务里同步工单的明细子状态。
func (r *Repo) UpdateSupplyStatusGuarded(ctx context.Context, supplyID, ticketID uint, from SupplyStatus, supplyFields, ticketFields map[string]interface{}) (bool, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return false, fmt.Errorf("repo db is nil")
	}

	applied := false
	err := db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Supply{}).
			Where("id = ? AND status = ?", supplyID, from).
			Updates(supplyFields)
		if res.Error != nil {
			return apperr.Infra(res.Error, "failed to update supply status")
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if len(ticketFields) > 0 {
			if err := tx.Model(&Ticket{}).Where("id = ?", ticketID).Updates(ticketFields).Error; err != nil {
				return apperr.Infra(err, "failed to sync ticket detail status")
			}
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}
