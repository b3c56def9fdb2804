package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/erpcore/api/responses"
	"github.com/angelmondragon/erpcore/internal/tenancy"
	pkgerrors "github.com/angelmondragon/erpcore/pkg/errors"
	"github.com/angelmondragon/erpcore/pkg/logger"
)

// RateLimitStore counts requests per fixed window.
type RateLimitStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimitPolicy throttles requests per tenant and per user.
type RateLimitPolicy struct {
	name        string
	window      time.Duration
	tenantLimit int
	userLimit   int
}

func NewRateLimitPolicy(name string, window time.Duration, tenantLimit, userLimit int) RateLimitPolicy {
	return RateLimitPolicy{
		name:        strings.ToLower(strings.TrimSpace(name)),
		window:      window,
		tenantLimit: tenantLimit,
		userLimit:   userLimit,
	}
}

func (p RateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.tenantLimit > 0 || p.userLimit > 0)
}

func (p RateLimitPolicy) normalizedName() string {
	if p.name == "" {
		return "api"
	}
	return p.name
}

func (p RateLimitPolicy) tenantScope(tenant string) string {
	return fmt.Sprintf("%s:tenant:%s", p.normalizedName(), tenant)
}

func (p RateLimitPolicy) userScope(user string) string {
	return fmt.Sprintf("%s:user:%s", p.normalizedName(), user)
}

// RateLimit enforces fixed-window counters for the authenticated actor. It
// must run after Auth. A nil store disables throttling.
func RateLimit(policy RateLimitPolicy, store RateLimitStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			actor, ok := tenancy.ActorFromContext(ctx)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			checks := []struct {
				scope string
				kind  string
				limit int
			}{
				{policy.tenantScope(actor.TenantID.String()), "tenant", policy.tenantLimit},
				{policy.userScope(actor.UserID.String()), "user", policy.userLimit},
			}
			for _, check := range checks {
				if check.limit <= 0 {
					continue
				}
				allowed, count, err := store.FixedWindowAllow(ctx, check.scope, int64(check.limit), policy.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if !allowed {
					respondRateLimited(ctx, logg, w, policy, check.kind, count, check.limit)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func respondRateLimited(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, policy RateLimitPolicy, scope string, count int64, limit int) {
	if logg != nil {
		logCtx := logg.WithFields(ctx, map[string]any{
			"scope":          scope,
			"policy":         policy.normalizedName(),
			"attempts":       count,
			"limit":          limit,
			"window_seconds": int(policy.window.Seconds()),
		})
		logg.Warn(logCtx, "api.rate_limit.blocked")
	}
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
}
