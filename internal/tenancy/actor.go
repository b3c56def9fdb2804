// Package tenancy carries the calling identity and decides whether it may act
// on a tenant's data.
package tenancy

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/erpcore/pkg/enums"
)

// Actor is the authenticated caller of a core operation.
type Actor struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
	Role     enums.MemberRole
}

// IsSystem reports whether the actor is a background job.
func (a Actor) IsSystem() bool {
	return a.Role == enums.MemberRoleSystem
}

// SystemUserID is recorded as actor_user_id on rows written by background jobs.
var SystemUserID = uuid.MustParse("00000000-0000-0000-0000-00000000feed")

// SystemActor returns the identity used by scheduled jobs. A nil tenant means
// the actor may act across tenants.
func SystemActor(tenantID uuid.UUID) Actor {
	return Actor{TenantID: tenantID, UserID: SystemUserID, Role: enums.MemberRoleSystem}
}

type actorKey struct{}

// WithActor injects the actor into ctx.
func WithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor injected by WithActor.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}
