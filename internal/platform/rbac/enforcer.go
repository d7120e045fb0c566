// Package rbac answers role/permission checks with a casbin enforcer built
// from the static grants in the auth package.
package rbac

import (
	"context"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"hrleave/internal/domain/auth"
)

const modelText = `
[request_definition]
r = sub, obj

[policy_definition]
p = sub, obj

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj
`

type Enforcer struct {
	enforcer *casbin.Enforcer
}

func New() (*Enforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("rbac model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("rbac enforcer: %w", err)
	}

	for role, perms := range auth.RolePermissions {
		for _, perm := range perms {
			if _, err := e.AddPolicy(role, perm); err != nil {
				return nil, err
			}
		}
	}
	for role, parent := range auth.RoleInheritance {
		if _, err := e.AddGroupingPolicy(role, parent); err != nil {
			return nil, err
		}
	}
	return &Enforcer{enforcer: e}, nil
}

// HasPermission reports whether role holds permission, directly or through
// an inherited role.
func (e *Enforcer) HasPermission(_ context.Context, role, permission string) (bool, error) {
	if role == "" {
		return false, nil
	}
	return e.enforcer.Enforce(role, permission)
}
