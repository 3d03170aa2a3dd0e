// Package ratelimit bounds how many generative requests one actor may trigger per window.
package ratelimit

import (
	"context"
	"time"

	"assistant-workers/internal/common/logger"
	"assistant-workers/internal/common/metrics"
	"assistant-workers/internal/models"
)

// Store increments the actor's fixed-window counter and returns the window after the increment.
type Store interface {
	Hit(ctx context.Context, actorID string, window time.Duration) (models.RateLimitWindow, error)
}

type Decision struct {
	Allowed   bool      `json:"allowed"`
	Count     int       `json:"count"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}

type Limiter struct {
	store  Store
	limit  int
	window time.Duration
	logger logger.Logger
}

func NewLimiter(store Store, limit int, window time.Duration, log logger.Logger) *Limiter {
	return &Limiter{
		store:  store,
		limit:  limit,
		window: window,
		logger: log.With(map[string]interface{}{"component": "rate-limiter"}),
	}
}

// Allow counts one request for actorID. Store failures fail open.
func (l *Limiter) Allow(ctx context.Context, actorID string) Decision {
	if l == nil || l.limit <= 0 {
		return Decision{Allowed: true}
	}

	w, err := l.store.Hit(ctx, actorID, l.window)
	if err != nil {
		l.logger.Warn("rate limit store unavailable, allowing request", map[string]interface{}{
			"actorId": actorID,
			"error":   err.Error(),
		})
		return Decision{Allowed: true, Remaining: l.limit}
	}

	d := Decision{
		Allowed:   w.Count <= l.limit,
		Count:     w.Count,
		Remaining: l.limit - w.Count,
		ResetAt:   w.ResetTime,
	}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if !d.Allowed {
		metrics.RateLimited.Inc()
		l.logger.Info("actor rate limited", map[string]interface{}{
			"actorId": actorID,
			"count":   w.Count,
			"resetAt": w.ResetTime,
		})
	}
	return d
}
