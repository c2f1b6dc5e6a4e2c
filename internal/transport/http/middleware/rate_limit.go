package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	rateLimitProblemType  = "https://eventlink.example.com/errors/rate-limit-exceeded"
	rateLimitProblemTitle = "Too Many Requests"
)

// RateLimitStore is the sliding-window persistence the limiter needs. The
// redis and memory repositories satisfy it through port.RateLimitStore.
type RateLimitStore interface {
	TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error
	CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error)
	RecordAttempt(ctx context.Context, identifier string, at time.Time) error
	OldestAttempt(ctx context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error)
}

// IdentifierFunc extracts the value a rule scopes its window by. Returning
// false skips the rule for this request.
type IdentifierFunc func(*gin.Context) (string, bool)

// RateLimitRule is one named sliding-window limit.
type RateLimitRule struct {
	Name       string
	Limit      int
	Window     time.Duration
	Identifier IdentifierFunc
}

// RateLimiter evaluates rules against a shared store. One instance serves
// every route; rules are attached per route group.
type RateLimiter struct {
	store  RateLimitStore
	logger *zap.Logger
	now    func() time.Time
}

// ProblemDetails is the RFC 9457 payload written on 429.
type ProblemDetails struct {
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Status     int            `json:"status"`
	Detail     string         `json:"detail"`
	Instance   string         `json:"instance"`
	RetryAfter int            `json:"retryAfter"`
	RequestID  string         `json:"requestId,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// windowState is the outcome of evaluating one rule for one request.
type windowState struct {
	rule       RateLimitRule
	allowed    bool
	remaining  int
	reset      time.Time
	retryAfter time.Duration
}

// NewRateLimiter builds the shared limiter.
func NewRateLimiter(store RateLimitStore, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{store: store, logger: logger, now: time.Now}
}

// WithClock swaps the time source for tests.
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// ClientIPIdentifier scopes a rule by the caller's IP.
func ClientIPIdentifier() IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		ip := c.ClientIP()
		return ip, ip != ""
	}
}

// RateLimit enforces the given rules. A denied request does not consume
// quota, so hammering a closed window cannot push the reset further out.
// Store failures log and fail open; the perimeter limit is not worth an
// outage.
func (rl *RateLimiter) RateLimit(rules ...RateLimitRule) gin.HandlerFunc {
	active := make([]RateLimitRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Identifier == nil || rule.Limit <= 0 || rule.Window <= 0 {
			continue
		}
		if rule.Name == "" {
			rule.Name = "default"
		}
		active = append(active, rule)
	}

	return func(c *gin.Context) {
		if len(active) == 0 || rl.store == nil {
			c.Next()
			return
		}

		now := rl.now()
		var strictest *windowState

		for _, rule := range active {
			identifier, ok := rule.Identifier(c)
			if !ok || identifier == "" {
				continue
			}

			state, err := rl.evaluate(c.Request.Context(), rule, identifier, now)
			if err != nil {
				rl.logger.Warn("rate limit check failed",
					zap.String("rule", rule.Name),
					zap.String("identifier", identifier),
					zap.Error(err))
				continue
			}

			if strictest == nil || state.stricterThan(*strictest) {
				snapshot := state
				strictest = &snapshot
			}

			if !state.allowed {
				rl.writeHeaders(c, state)
				rl.reject(c, state)
				return
			}
		}

		if strictest != nil {
			rl.writeHeaders(c, *strictest)
		}

		c.Next()
	}
}

func (rl *RateLimiter) evaluate(ctx context.Context, rule RateLimitRule, identifier string, now time.Time) (windowState, error) {
	key := fmt.Sprintf("%s:%s", rule.Name, identifier)

	if err := rl.store.TrimWindow(ctx, key, rule.Window, now); err != nil {
		return windowState{}, err
	}
	count, err := rl.store.CountAttempts(ctx, key, rule.Window, now)
	if err != nil {
		return windowState{}, err
	}
	oldest, hasAttempts, err := rl.store.OldestAttempt(ctx, key, rule.Window, now)
	if err != nil {
		return windowState{}, err
	}

	state := windowState{rule: rule, allowed: true, reset: now.Add(rule.Window)}
	if hasAttempts {
		state.reset = oldest.Add(rule.Window)
	}

	if count >= rule.Limit {
		state.allowed = false
		state.retryAfter = max(state.reset.Sub(now), 0)
		return state, nil
	}

	if err := rl.store.RecordAttempt(ctx, key, now); err != nil {
		return windowState{}, err
	}
	count++

	state.remaining = max(rule.Limit-count, 0)
	state.retryAfter = max(state.reset.Sub(now), 0)
	if !hasAttempts {
		state.reset = now.Add(rule.Window)
	}
	return state, nil
}

// stricterThan decides whose headers the client sees when several rules
// match: a denial beats an allowance, then fewer remaining, then the earlier
// reset.
func (s windowState) stricterThan(other windowState) bool {
	if !s.allowed && other.allowed {
		return true
	}
	if s.allowed != other.allowed {
		return false
	}
	if s.remaining != other.remaining {
		return s.remaining < other.remaining
	}
	return s.reset.Before(other.reset)
}

func (rl *RateLimiter) writeHeaders(c *gin.Context, state windowState) {
	headers := c.Writer.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(state.rule.Limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(max(state.remaining, 0)))
	headers.Set("X-RateLimit-Reset", strconv.FormatInt(state.reset.Unix(), 10))

	if !state.allowed {
		headers.Set("Retry-After", strconv.Itoa(retrySeconds(state.retryAfter)))
	}
}

func (rl *RateLimiter) reject(c *gin.Context, state windowState) {
	seconds := retrySeconds(state.retryAfter)

	instance := c.FullPath()
	if instance == "" {
		instance = c.Request.URL.Path
	}

	c.AbortWithStatusJSON(http.StatusTooManyRequests, ProblemDetails{
		Type:       rateLimitProblemType,
		Title:      rateLimitProblemTitle,
		Status:     http.StatusTooManyRequests,
		Detail:     fmt.Sprintf("Request limit reached. Retry in %d seconds.", seconds),
		Instance:   instance,
		RetryAfter: seconds,
		RequestID:  GetRequestID(c),
	})
}

func retrySeconds(d time.Duration) int {
	seconds := int(math.Ceil(d.Seconds()))
	if seconds < 0 {
		return 0
	}
	return seconds
}
