package auth

import (
	"context"
	"time"

	"tms-server/internal/domain/auth/attempts"
)

// Decision is the limiter's answer for one attempt.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	Remaining  int
}

// LoginLimiter throttles admin login attempts per client address. It slows
// brute force from one address; it does not stop a distributed attacker.
type LoginLimiter struct {
	store  attempts.Store
	limit  int
	window time.Duration
	now    func() time.Time
	logger Logger
}

type LimiterConfig struct {
	Limit  int
	Window time.Duration
	Clock  func() time.Time
}

func NewLoginLimiter(store attempts.Store, cfg LimiterConfig, logger Logger) *LoginLimiter {
	l := &LoginLimiter{
		store:  store,
		limit:  cfg.Limit,
		window: cfg.Window,
		now:    cfg.Clock,
		logger: loggerOrNop(logger),
	}
	if l.limit <= 0 {
		l.limit = 20
	}
	if l.window <= 0 {
		l.window = 10 * time.Minute
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// Check records an attempt from addr. A failing store lets the attempt
// through: throttling is advisory and must not lock the admin out.
func (l *LoginLimiter) Check(ctx context.Context, addr string) Decision {
	rec, allowed, err := l.store.Hit(ctx, addr, l.limit, l.window)
	if err != nil {
		l.logger.Warn("login limiter store failed, allowing attempt: %v", err)
		return Decision{Allowed: true}
	}

	d := Decision{Allowed: allowed, Remaining: l.limit - rec.Count}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if !allowed {
		d.RetryAfter = rec.WindowResetAt.Sub(l.now())
		if d.RetryAfter < time.Second {
			d.RetryAfter = time.Second
		}
	}
	return d
}
