package ticket

import (
	"github.com/Hellares/back-consumo-combustible-sub001/internal/common/workflow"
)

// Status 工单状态。
type Status string

const (
	StatusRequested Status = "SOLICITADO"
	StatusApproved  Status = "APROBADO"
	StatusRejected  Status = "RECHAZADO"
)

// DetailStatus 工单上的明细子状态：与工单状态独立演进。
type DetailStatus string

const (
	DetailNone       DetailStatus = "SIN_DETALLE"
	DetailRegistered DetailStatus = "DETALLE_REGISTRADO"
	DetailApproved   DetailStatus = "DETALLE_APROBADO"
	DetailRejected   DetailStatus = "DETALLE_RECHAZADO"
)

// SupplyStatus 实供明细自身的状态。
type SupplyStatus string

const (
	SupplyRegistered SupplyStatus = "REGISTRADO"
	SupplyApproved   SupplyStatus = "APROBADO"
	SupplyRejected   SupplyStatus = "RECHAZADO"
)

// 工单级与明细级是两套形状相同但互相独立的审批流，
// 共用 workflow.Machine，只是状态集不同。
var (
	ticketFlow = workflow.New(map[Status][]Status{
		StatusRequested: {StatusApproved, StatusRejected},
		// 终态：APROBADO / RECHAZADO 不再流转
		StatusApproved: {},
		StatusRejected: {},
	})

	supplyFlow = workflow.New(map[SupplyStatus][]SupplyStatus{
		SupplyRegistered: {SupplyApproved, SupplyRejected},
		SupplyApproved:   {},
		SupplyRejected:   {},
	})
)

// TicketStatusCodes 状态参考表的种子数据。
func TicketStatusCodes() []string {
	states := ticketFlow.States()
	out := make([]string, 0, len(states))
	for _, s := range states {
		out = append(out, string(s))
	}
	return out
}

// SupplyStatusCodes 实供状态参考表的种子数据。
func SupplyStatusCodes() []string {
	states := supplyFlow.States()
	out := make([]string, 0, len(states))
	for _, s := range states {
		out = append(out, string(s))
	}
	return out
}

// detailStatusFor 实供状态对应到工单上的明细子状态。
func detailStatusFor(s SupplyStatus) DetailStatus {
	switch s {
	case SupplyApproved:
		return DetailApproved
	case SupplyRejected:
		return DetailRejected
	default:
		return DetailRegistered
	}
}
