package auth

import (
	"strings"

	"github.com/Hellares/back-consumo-combustible-sub001/internal/common/apperr"
)

// 系统内出现的角色。用户表里逗号分隔存储。
const (
	RoleDriver     = "conductor"
	RoleController = "controlador"
	RoleAdmin      = "admin"
)

// Actor 已通过认证的操作者身份（由外部请求层解析后传入业务层）。
type Actor struct {
	ID    uint
	Name  string
	Roles []string
}

// HasRole 判断操作者是否持有某角色（大小写不敏感）。admin 视为持有全部角色。
func (a Actor) HasRole(role string) bool {
	role = strings.TrimSpace(strings.ToLower(role))
	if role == "" {
		return false
	}
	for _, r := range a.Roles {
		r = strings.TrimSpace(strings.ToLower(r))
		if r == role || r == RoleAdmin {
			return true
		}
	}
	return false
}

// Authorizer 授权协作方：业务层只关心 allow/deny。
type Authorizer interface {
	Require(actor Actor, role string) error
}

// RoleAuthorizer 基于角色列表的默认实现。
type RoleAuthorizer struct{}

func NewRoleAuthorizer() *RoleAuthorizer {
	return &RoleAuthorizer{}
}

func (RoleAuthorizer) Require(actor Actor, role string) error {
	if actor.ID == 0 {
		return apperr.Unauthorizedf("actor identity is missing")
	}
	if !actor.HasRole(role) {
		return apperr.Unauthorizedf("operation requires role %s", role)
	}
	return nil
}
