// Package ratelimit enforces a per-client submission limit. Each client's
// window opens at its first hit and lasts one window length; the counters
// live in the shared state database so every ingress process sees the same
// windows.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/MayankTamakuwala/TranscriBelt/internal/statedb"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Count      int
	Limit      int
	RetryAfter time.Duration
}

// Limiter counts hits per key in windows that start at the key's first hit.
type Limiter struct {
	db     *statedb.DB
	limit  int
	window time.Duration
	now    func() time.Time
}

// New returns a limiter allowing limit hits per window. A non-positive limit
// disables limiting.
func New(db *statedb.DB, limit int, window time.Duration) *Limiter {
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{db: db, limit: limit, window: window, now: time.Now}
}

// SetClock overrides the limiter clock.
func (l *Limiter) SetClock(now func() time.Time) {
	if now != nil {
		l.now = now
	}
}

// Allow records a hit for key and reports whether it fits in the key's
// current window. A hit after the window has closed opens a new one. The
// reset, the increment and the read are a single upsert, so concurrent
// ingress processes never both see the last free slot.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	if l == nil || l.limit <= 0 {
		return Decision{Allowed: true}, nil
	}
	now := l.now().UTC()
	nowMillis := now.UnixMilli()

	var (
		count     int
		expiresAt int64
	)
	err := l.db.QueryRowContext(ctx,
		`INSERT INTO rate_limit_windows (window_key, hits, expires_at)
         VALUES (?, 1, ?)
         ON CONFLICT (window_key) DO UPDATE SET
             hits = CASE WHEN rate_limit_windows.expires_at <= ? THEN 1 ELSE rate_limit_windows.hits + 1 END,
             expires_at = CASE WHEN rate_limit_windows.expires_at <= ? THEN excluded.expires_at ELSE rate_limit_windows.expires_at END
         RETURNING hits, expires_at`,
		key,
		now.Add(l.window).UnixMilli(),
		nowMillis,
		nowMillis,
	).Scan(&count, &expiresAt)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit increment: %w", err)
	}

	decision := Decision{Allowed: count <= l.limit, Count: count, Limit: l.limit}
	if !decision.Allowed {
		decision.RetryAfter = time.UnixMilli(expiresAt).Sub(now)
	}
	return decision, nil
}

// PurgeExpired removes counters for windows that have closed.
func (l *Limiter) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM rate_limit_windows WHERE expires_at <= ?`, l.now().UTC().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purge rate limit windows: %w", err)
	}
	return res.RowsAffected()
}
