package models

import "time"

// RateLimitWindow is the fixed-window counter kept per actor.
type RateLimitWindow struct {
	Count     int       `json:"count"`
	ResetTime time.Time `json:"resetTime"`
}

// Expired reports whether the window has reset. A request at exactly ResetTime still counts
// against the old window.
func (w RateLimitWindow) Expired(now time.Time) bool {
	return now.After(w.ResetTime)
}
