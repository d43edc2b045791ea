package router

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/kickai/kickai/internal/domain"
	"github.com/kickai/kickai/internal/tools"
)

// RBAC with a global role hierarchy and the chat type as the policy domain.
const permissionModel = `
[request_definition]
r = sub, dom, obj

[policy_definition]
p = sub, dom, obj

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.dom == p.dom && r.obj == p.obj
`

// newEnforcer builds the permission gate from the tool catalog: one policy
// row per (minimum role, chat type, tool), plus the role inheritance chain
// unregistered < player < team_member < admin.
func newEnforcer(catalog *tools.Registry) (*casbin.Enforcer, error) {
	m, err := model.NewModelFromString(permissionModel)
	if err != nil {
		return nil, fmt.Errorf("permission model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("permission enforcer: %w", err)
	}

	chain := [][2]string{
		{domain.RoleEffectivePlayer, domain.RoleEffectiveUnregistered},
		{domain.RoleEffectiveMember, domain.RoleEffectivePlayer},
		{domain.RoleEffectiveAdmin, domain.RoleEffectiveMember},
	}
	for _, link := range chain {
		if _, err := e.AddGroupingPolicy(link[0], link[1]); err != nil {
			return nil, fmt.Errorf("role hierarchy: %w", err)
		}
	}

	chatTypes := []string{domain.ChatTypeMain, domain.ChatTypeLeadership, domain.ChatTypePrivate}
	for _, entry := range catalog.Entries() {
		for _, chat := range chatTypes {
			minRole, ok := entry.MinRoleFor(chat)
			if !ok {
				continue
			}
			if _, err := e.AddPolicy(minRole, chat, entry.Name); err != nil {
				return nil, fmt.Errorf("policy for %s: %w", entry.Name, err)
			}
		}
	}
	return e, nil
}

// allowed asks the enforcer whether role may invoke tool in chatType.
func allowed(e *casbin.Enforcer, role, chatType, tool string) bool {
	ok, err := e.Enforce(role, chatType, tool)
	return err == nil && ok
}
