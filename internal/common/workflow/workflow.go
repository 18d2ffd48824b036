package workflow

import (
	"sort"
	"strings"

	"github.com/Hellares/back-consumo-combustible-sub001/internal/common/apperr"
)

// Machine 审批类状态机的通用实现（有向图配置）。
// 工单级与明细级两套审批流共用同一个抽象，只是状态集不同。
type Machine[S ~string] struct {
	transitions map[S][]S
}

// New 基于 from -> 允许的 to 列表构建状态机。
func New[S ~string](transitions map[S][]S) *Machine[S] {
	return &Machine[S]{transitions: transitions}
}

// Can 判断 from -> to 是否是允许的流转。
// 注意：同状态不视为合法流转（重复审批必须失败）。
func (m *Machine[S]) Can(from, to S) bool {
	if m == nil {
		return false
	}
	allowed, ok := m.transitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Ensure 校验流转，不允许时返回携带当前状态的 Conflict 错误。
func (m *Machine[S]) Ensure(from, to S) error {
	if m.Can(from, to) {
		return nil
	}
	return apperr.Conflictf(string(from), "transition %s -> %s not allowed", string(from), string(to))
}

// Terminal 判断某状态是否终态（没有任何出边）。
func (m *Machine[S]) Terminal(s S) bool {
	if m == nil {
		return true
	}
	return len(m.transitions[s]) == 0
}

// States 返回状态机覆盖的全部状态（含只作为 to 出现的），排序后输出，便于做参考表种子数据。
func (m *Machine[S]) States() []S {
	if m == nil {
		return nil
	}
	set := make(map[S]struct{}, len(m.transitions))
	for from, tos := range m.transitions {
		set[from] = struct{}{}
		for _, to := range tos {
			set[to] = struct{}{}
		}
	}
	out := make([]S, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.Compare(string(out[i]), string(out[j])) < 0
	})
	return out
}
