// Package ratelimit tracks per-customer sliding-window counters for
// code-generation requests, infrastructure questions, and clone
// attempts, and flags repeat offenders.
package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Track names for the three independent counters.
const (
	TrackCodeGeneration = "codegen"
	TrackInfraQuestions = "infra"
	TrackCloneAttempts  = "clone"
)

// Store is the backing state for the limiter. The in-memory store
// matches the reference single-process behavior; the Redis store gives
// atomic increment-and-check across instances.
type Store interface {
	// TakeIfUnder prunes entries older than window, then spends one unit
	// if the in-window count is under limit. It returns the resulting
	// count and whether the unit was taken. Must be atomic per
	// customer/track.
	TakeIfUnder(ctx context.Context, customerID, track string, limit int, window time.Duration) (count int, allowed bool, err error)

	// Append records one unit unconditionally and returns the in-window
	// count including it.
	Append(ctx context.Context, customerID, track string, window time.Duration) (count int, err error)

	// SetFlagged marks the customer as a repeat offender. The bit is
	// persistent: it is never cleared by pruning.
	SetFlagged(ctx context.Context, customerID string) error

	// IsFlagged reports whether the customer has been flagged.
	IsFlagged(ctx context.Context, customerID string) (bool, error)
}

// Config holds the window sizes and limits for all tracks.
type Config struct {
	CodeGenLimit       int
	CodeGenWindow      time.Duration
	InfraLimit         int
	InfraWindow        time.Duration
	CloneWindow        time.Duration
	CloneFlagThreshold int // clone attempts in window before flagging
	InfraFlagRemaining int // pre-emptive flag when remaining drops to this
}

// DefaultConfig returns the shipped limits: 10 code generations per
// hour, 5 infrastructure questions per day, flag at 3 clone attempts.
func DefaultConfig() Config {
	return Config{
		CodeGenLimit:       10,
		CodeGenWindow:      time.Hour,
		InfraLimit:         5,
		InfraWindow:        24 * time.Hour,
		CloneWindow:        24 * time.Hour,
		CloneFlagThreshold: 3,
		InfraFlagRemaining: 2,
	}
}

// Result is the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	Flagged   bool
}

// CloneAttempt is the outcome of recording one clone attempt.
type CloneAttempt struct {
	Count       int  // attempts in the rolling window, including this one
	Flagged     bool // this window's attempts are at or over the threshold
	JustFlagged bool // this attempt crossed the threshold
}

// Limiter applies the configured limits on top of a Store. Store errors
// fail open: a broken backend must not take the chat pipeline down.
type Limiter struct {
	store  Store
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewLimiter creates a limiter over the given store.
func NewLimiter(store Store, cfg Config, logger *zap.Logger) *Limiter {
	return &Limiter{store: store, cfg: cfg, logger: logger, now: time.Now}
}

// CheckCodeGeneration spends one code-generation unit if the customer is
// under the hourly limit. Calling it is the usage recording: there is no
// separate increment.
func (l *Limiter) CheckCodeGeneration(ctx context.Context, customerID string) Result {
	count, allowed, err := l.store.TakeIfUnder(ctx, customerID, TrackCodeGeneration,
		l.cfg.CodeGenLimit, l.cfg.CodeGenWindow)
	if err != nil {
		l.logger.Warn("rate limit store error, failing open",
			zap.String("track", TrackCodeGeneration), zap.Error(err))
		return Result{Allowed: true, Remaining: l.cfg.CodeGenLimit, ResetAt: l.now().Add(l.cfg.CodeGenWindow)}
	}

	resetAt := l.now().Add(l.cfg.CodeGenWindow)
	if !allowed {
		return Result{
			Allowed: false,
			ResetAt: resetAt,
			Flagged: count > 2*l.cfg.CodeGenLimit,
		}
	}
	return Result{Allowed: true, Remaining: l.cfg.CodeGenLimit - count, ResetAt: resetAt}
}

// CheckInfrastructureQuestion spends one infrastructure-question unit if
// the customer is under the daily limit. Exhausting the limit sets the
// persistent flag; the result is flagged pre-emptively once remaining
// drops to the configured margin.
func (l *Limiter) CheckInfrastructureQuestion(ctx context.Context, customerID string) Result {
	count, allowed, err := l.store.TakeIfUnder(ctx, customerID, TrackInfraQuestions,
		l.cfg.InfraLimit, l.cfg.InfraWindow)
	if err != nil {
		l.logger.Warn("rate limit store error, failing open",
			zap.String("track", TrackInfraQuestions), zap.Error(err))
		return Result{Allowed: true, Remaining: l.cfg.InfraLimit, ResetAt: l.now().Add(l.cfg.InfraWindow)}
	}

	resetAt := l.now().Add(l.cfg.InfraWindow)
	if !allowed {
		l.setFlagged(ctx, customerID)
		return Result{Allowed: false, ResetAt: resetAt, Flagged: true}
	}

	remaining := l.cfg.InfraLimit - count
	if remaining == 0 {
		l.setFlagged(ctx, customerID)
	}
	return Result{
		Allowed:   true,
		Remaining: remaining,
		ResetAt:   resetAt,
		Flagged:   remaining <= l.cfg.InfraFlagRemaining,
	}
}

// RecordCloneAttempt appends one clone-attempt event. Attempts are never
// denied, only counted; crossing the threshold within the rolling window
// sets the persistent flag.
func (l *Limiter) RecordCloneAttempt(ctx context.Context, customerID string) CloneAttempt {
	count, err := l.store.Append(ctx, customerID, TrackCloneAttempts, l.cfg.CloneWindow)
	if err != nil {
		l.logger.Warn("rate limit store error recording clone attempt", zap.Error(err))
		return CloneAttempt{Count: 1}
	}

	if count < l.cfg.CloneFlagThreshold {
		return CloneAttempt{Count: count}
	}
	l.setFlagged(ctx, customerID)
	return CloneAttempt{
		Count:       count,
		Flagged:     true,
		JustFlagged: count == l.cfg.CloneFlagThreshold,
	}
}

// IsCustomerFlagged is a pure lookup of the persistent flag.
func (l *Limiter) IsCustomerFlagged(ctx context.Context, customerID string) bool {
	flagged, err := l.store.IsFlagged(ctx, customerID)
	if err != nil {
		l.logger.Warn("rate limit store error reading flag", zap.Error(err))
		return false
	}
	return flagged
}

func (l *Limiter) setFlagged(ctx context.Context, customerID string) {
	if err := l.store.SetFlagged(ctx, customerID); err != nil {
		l.logger.Warn("rate limit store error setting flag",
			zap.String("customer_id", customerID), zap.Error(err))
	}
}
