package tenancy

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/erpcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/erpcore/pkg/errors"
)

// Permission is a coarse capability checked before any data access.
type Permission string

const (
	PermRead    Permission = "read"
	PermWrite   Permission = "write"
	PermCatalog Permission = "catalog"
	PermRefund  Permission = "refund"
)

var permissionRoles = map[Permission][]enums.MemberRole{
	PermRead: {
		enums.MemberRoleOwner, enums.MemberRoleAdmin, enums.MemberRoleManager,
		enums.MemberRoleCashier, enums.MemberRoleViewer, enums.MemberRoleSystem,
	},
	PermWrite: {
		enums.MemberRoleOwner, enums.MemberRoleAdmin, enums.MemberRoleManager,
		enums.MemberRoleCashier, enums.MemberRoleSystem,
	},
	PermCatalog: {
		enums.MemberRoleOwner, enums.MemberRoleAdmin, enums.MemberRoleManager, enums.MemberRoleSystem,
	},
	PermRefund: {
		enums.MemberRoleOwner, enums.MemberRoleAdmin, enums.MemberRoleManager,
	},
}

// Allows reports whether role grants perm.
func Allows(role enums.MemberRole, perm Permission) bool {
	for _, candidate := range permissionRoles[perm] {
		if candidate == role {
			return true
		}
	}
	return false
}

// Authorize returns the actor when it belongs to tenantID and holds perm.
// Every failure is ACCESS_DENIED so callers cannot probe other tenants.
func Authorize(ctx context.Context, tenantID uuid.UUID, perm Permission) (Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.UserID == uuid.Nil {
		return Actor{}, pkgerrors.New(pkgerrors.CodeAccessDenied, "no actor in context")
	}
	if tenantID == uuid.Nil {
		return Actor{}, pkgerrors.New(pkgerrors.CodeAccessDenied, "tenant required")
	}
	if actor.TenantID != tenantID {
		return Actor{}, pkgerrors.New(pkgerrors.CodeAccessDenied, "actor not a member of tenant")
	}
	if !Allows(actor.Role, perm) {
		return Actor{}, pkgerrors.New(pkgerrors.CodeAccessDenied, "role lacks permission").
			WithDetails(map[string]any{"permission": perm, "role": actor.Role})
	}
	return actor, nil
}

// AuthorizeSystem admits only the system actor, used for cross-tenant jobs.
func AuthorizeSystem(ctx context.Context) (Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || !actor.IsSystem() {
		return Actor{}, pkgerrors.New(pkgerrors.CodeAccessDenied, "system role required")
	}
	return actor, nil
}
