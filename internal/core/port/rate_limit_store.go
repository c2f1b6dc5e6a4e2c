package port

import (
	"context"
	"time"
)

// RateLimitStore counts attempts inside a sliding window. Two callers share
// it: the HTTP middleware scopes windows by client IP, and the reset service
// scopes them by account so one mailbox cannot be flooded from many hosts.
//
// Callers trim before counting; implementations only need to keep whatever
// falls inside the widest window still in use.
type RateLimitStore interface {
	// TrimWindow drops attempts older than reference minus window.
	TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error
	// CountAttempts reports attempts recorded inside the window.
	CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error)
	// RecordAttempt appends one attempt at the given instant.
	RecordAttempt(ctx context.Context, identifier string, at time.Time) error
	// OldestAttempt returns the earliest attempt still inside the window;
	// false when the window is empty. It anchors Retry-After calculations.
	OldestAttempt(ctx context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error)
}
