// Package server throttles inbound payloads per connection with a token
// bucket so one client cannot monopolize the hub.
package server

import (
	"time"

	"golang.org/x/time/rate"
)

// newRateLimiter allows burst payloads per interval, refilling continuously.
func newRateLimiter(cfg RateLimitConfig) *rate.Limiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	interval := cfg.RefillInterval
	if interval <= 0 {
		interval = time.Second
	}

	return rate.NewLimiter(rate.Every(interval/time.Duration(burst)), burst)
}
