package sequence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Hellares/back-consumo-combustible-sub001/internal/common/apperr"
)

// 编号种类。前缀 + 周期键决定了编号的人类可排序格式。
type Kind string

const (
	KindTicket Kind = "ticket" // TCK-YYYYMM-NNNNNN，按年月独立计数
	KindSupply Kind = "supply" // ABA-YYYY-NNNNNN，按年度独立计数
)

// ErrCollision 存储层在计数行插入竞争时返回；Service 内部有限次重试。
var ErrCollision = errors.New("sequence: counter insert collision")

// Counter 计数行，(kind, period) 唯一。
// 计数独立于业务事务提交：即使工单创建最终失败，编号也不会回收复用。
type Counter struct {
	ID     uint   `gorm:"primaryKey"`
	Kind   string `gorm:"size:16;not null;uniqueIndex:idx_counter_kind_period"`
	Period string `gorm:"size:8;not null;uniqueIndex:idx_counter_kind_period"`
	Value  int64  `gorm:"not null;default:0"`
}

// Store 计数存储。Increment 必须原子地自增并返回自增后的值；
// 并发首插冲突时返回 ErrCollision。
type Store interface {
	Increment(ctx context.Context, kind, period string) (int64, error)
}

// Service 编号服务：生成全局唯一、可读、可排序的工单/实供编号。
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

const maxAttempts = 3

// Next 生成下一个编号。冲突在内部重试，超过上限转为 Conflict 错误。
func (s *Service) Next(ctx context.Context, kind Kind, date time.Time) (string, error) {
	if s == nil || s.store == nil {
		return "", fmt.Errorf("sequence service not initialized")
	}

	prefix, period, err := layout(kind, date)
	if err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		value, incErr := s.store.Increment(ctx, string(kind), period)
		if incErr == nil {
			return fmt.Sprintf("%s-%s-%06d", prefix, period, value), nil
		}
		if !errors.Is(incErr, ErrCollision) {
			return "", incErr
		}
		lastErr = incErr
	}
	return "", apperr.Conflictf("", "failed to allocate %s number after %d attempts: %v", kind, maxAttempts, lastErr)
}

func layout(kind Kind, date time.Time) (prefix, period string, err error) {
	if date.IsZero() {
		date = time.Now()
	}
	switch kind {
	case KindTicket:
		return "TCK", date.Format("200601"), nil
	case KindSupply:
		return "ABA", date.Format("2006"), nil
	default:
		return "", "", apperr.Validationf("unknown sequence kind: %s", kind)
	}
}
