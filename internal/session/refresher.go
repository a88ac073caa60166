package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultRefreshInterval  = 60 * time.Second
	DefaultRefreshThreshold = 5 * time.Minute
)

// Refresher periodically refreshes a session that is about to expire. It
// runs independently of API calls made with the session.
type Refresher struct {
	m         *Manager
	interval  time.Duration
	threshold time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// NewRefresher creates a Refresher. Zero durations use the defaults.
func NewRefresher(m *Manager, interval, threshold time.Duration) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	if threshold <= 0 {
		threshold = DefaultRefreshThreshold
	}
	return &Refresher{
		m:         m,
		interval:  interval,
		threshold: threshold,
		now:       time.Now,
		logger:    m.logger,
	}
}

// Run checks the session every interval until ctx is done.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Check(ctx)
		}
	}
}

// Check refreshes the session when it expires within the threshold and
// reports whether a refresh happened. A failed refresh signs the user out.
func (r *Refresher) Check(ctx context.Context) bool {
	cur := r.m.Current()
	if cur == nil || !cur.ExpiresWithin(r.now(), r.threshold) {
		return false
	}

	if _, err := r.m.Refresh(ctx); err != nil {
		if errors.Is(err, ErrNoSession) {
			return false
		}
		r.logger.Warn("session refresh failed", zap.Error(err))
		if r.m.Current() != nil {
			r.m.SignOut(ctx, MessageSessionExpired)
		}
		return false
	}
	return true
}
