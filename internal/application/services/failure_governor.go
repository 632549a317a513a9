package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/infrastructure/observability"
	apperrors "github.com/ZanaKriezi/tourly-skopje-guide/pkg/errors"
)

// failureRecord is the last failure seen on a channel
type failureRecord struct {
	lastError time.Time
	cooldown  time.Duration
}

// FailureGovernor rate-limits caller-initiated retries per channel. After a failure on a
// channel, calls on it are rejected with a Suppressed error until the cooldown passes.
// It never retries on its own. One governor is shared process-wide; channels keep
// unrelated lists from affecting each other.
type FailureGovernor struct {
	mu      sync.Mutex
	records map[string]failureRecord
	now     func() time.Time
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// GovernorOption configures a FailureGovernor
type GovernorOption func(*FailureGovernor)

// WithClock replaces the governor's time source
func WithClock(now func() time.Time) GovernorOption {
	return func(g *FailureGovernor) { g.now = now }
}

// WithGovernorMetrics records suppressed calls on m
func WithGovernorMetrics(m *observability.Metrics) GovernorOption {
	return func(g *FailureGovernor) { g.metrics = m }
}

// NewFailureGovernor creates an empty governor
func NewFailureGovernor(opts ...GovernorOption) *FailureGovernor {
	g := &FailureGovernor{
		records: make(map[string]failureRecord),
		now:     time.Now,
		logger:  observability.Component("failure_governor"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check returns a Suppressed error if channel failed less than cooldown ago.
// A rejected check leaves the recorded failure time untouched.
func (g *FailureGovernor) Check(ctx context.Context, channel string, cooldown time.Duration) error {
	g.mu.Lock()
	rec, ok := g.records[channel]
	now := g.now()
	g.mu.Unlock()

	if !ok || cooldown <= 0 {
		return nil
	}
	elapsed := now.Sub(rec.lastError)
	if elapsed >= cooldown {
		return nil
	}

	g.metrics.RecordSuppressed(ctx, channel)
	g.logger.Warn().
		Str("channel", channel).
		Dur("retry_in", cooldown-elapsed).
		Msg("call suppressed during failure cooldown")
	return apperrors.NewSuppressedError(channel, cooldown-elapsed)
}

// RecordFailure stamps channel with the current time
func (g *FailureGovernor) RecordFailure(channel string, cooldown time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.records[channel] = failureRecord{lastError: g.now(), cooldown: cooldown}
}

// Clear forgets channel's failure
func (g *FailureGovernor) Clear(channel string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.records, channel)
}

// ClearAll forgets every recorded failure
func (g *FailureGovernor) ClearAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.records = make(map[string]failureRecord)
}

// Failing reports whether channel has a recorded failure
func (g *FailureGovernor) Failing(channel string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.records[channel]
	return ok
}

// Do runs op under the governor. See Guard.
func (g *FailureGovernor) Do(ctx context.Context, channel string, cooldown time.Duration, op func(context.Context) error) error {
	_, err := Guard(ctx, g, channel, cooldown, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Guard invokes op unless channel is in its failure cooldown, in which case it
// returns a Suppressed error without calling op. A failure of op is recorded
// against channel and returned unchanged, unless the remote rejected the request
// itself (see countsAsFailure). A success clears the channel.
// A nil governor calls op directly.
func Guard[T any](ctx context.Context, g *FailureGovernor, channel string, cooldown time.Duration, op func(context.Context) (T, error)) (T, error) {
	if g == nil {
		return op(ctx)
	}
	if err := g.Check(ctx, channel, cooldown); err != nil {
		var zero T
		return zero, err
	}

	result, err := op(ctx)
	if err != nil {
		if countsAsFailure(err) {
			g.RecordFailure(channel, cooldown)
		}
		return result, err
	}
	g.Clear(channel)
	return result, nil
}

// countsAsFailure reports whether err should start a cooldown. Requests the remote
// answered with a rejection can be corrected and resent at once.
func countsAsFailure(err error) bool {
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeValidation, apperrors.ErrorTypeInvalidQuery,
		apperrors.ErrorTypeNotFound, apperrors.ErrorTypeUnauthorized:
		return false
	}
	return true
}
