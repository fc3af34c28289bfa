package xapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	retryAfterHeaderName     = "Retry-After"
	rateLimitResetHeaderName = "x-rate-limit-reset"
	defaultRateLimitWait     = 60 * time.Second
	minimumRateLimitWait     = 2 * time.Second
	rateLimitResetPadding    = time.Second
)

// rateLimitWait returns how long to sleep before repeating a rate-limited
// request. Retry-After seconds win over the x-rate-limit-reset epoch.
func rateLimitWait(headers http.Header, now time.Time) time.Duration {
	if retryAfter := strings.TrimSpace(headers.Get(retryAfterHeaderName)); retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds >= 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	if reset := strings.TrimSpace(headers.Get(rateLimitResetHeaderName)); reset != "" {
		if unixSeconds, err := strconv.ParseInt(reset, 10, 64); err == nil {
			wait := time.Unix(unixSeconds, 0).Sub(now) + rateLimitResetPadding
			if wait < minimumRateLimitWait {
				return minimumRateLimitWait
			}
			return wait
		}
	}
	return defaultRateLimitWait
}

// WaitForDuration sleeps for duration or until ctx is done, whichever comes
// first. Non-positive durations return immediately.
func WaitForDuration(ctx context.Context, duration time.Duration) error {
	if duration <= 0 {
		return nil
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
