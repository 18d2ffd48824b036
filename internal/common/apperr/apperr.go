package apperr

import (
	"errors"
	"fmt"
)

// Kind 业务错误分类。
// 状态变更类操作只允许返回这几类错误，便于上层统一映射为传输层错误码。
type Kind int

const (
	KindValidation     Kind = iota + 1 // 入参非法/不一致，调用方修正后可重试
	KindNotFound                       // 引用的实体不存在
	KindConflict                       // 非法状态流转 / 并发竞争失败 / 编号冲突
	KindUnauthorized                   // 操作者缺少所需角色
	KindInfrastructure                 // 存储或外部协作方不可用（可按调用方策略重试）
)

// Error 统一的业务错误载体。
// Conflict 类错误通过 CurrentState 把当前状态带给调用方。
type Error struct {
	Kind         Kind
	Msg          string
	CurrentState string
	Err          error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.CurrentState != "" {
		return fmt.Sprintf("%s (current state: %s)", e.Msg, e.CurrentState)
	}
	if e.Err != nil && e.Msg != "" {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Validationf 构造入参校验错误。
func Validationf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// NotFoundf 构造未找到错误。
func NotFoundf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Conflictf 构造冲突错误；state 为当前持久化状态（可为空）。
func Conflictf(state string, format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, CurrentState: state, Msg: fmt.Sprintf(format, args...)}
}

// Unauthorizedf 构造权限错误。不携带内部细节。
func Unauthorizedf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindUnauthorized, Msg: fmt.Sprintf(format, args...)}
}

// Infra 包装基础设施错误（数据库/外部协作方）。
func Infra(err error, msg string) *Error {
	return &Error{Kind: KindInfrastructure, Msg: msg, Err: err}
}

// KindOf 返回错误的分类；非 *Error 一律按 Infrastructure 处理。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInfrastructure
}

func IsValidation(err error) bool   { return is(err, KindValidation) }
func IsNotFound(err error) bool     { return is(err, KindNotFound) }
func IsConflict(err error) bool     { return is(err, KindConflict) }
func IsUnauthorized(err error) bool { return is(err, KindUnauthorized) }

func is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

// CurrentState 从 Conflict 错误中取出当前状态；无则返回空串。
func CurrentState(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.CurrentState
	}
	return ""
}
