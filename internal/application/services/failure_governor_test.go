package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/application/services"
	apperrors "github.com/ZanaKriezi/tourly-skopje-guide/pkg/errors"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func TestGuard_SuppressesWithinCooldownWithoutInvokingOp(t *testing.T) {
	clock := newFakeClock()
	g := services.NewFailureGovernor(services.WithClock(clock.Now))
	ctx := context.Background()
	cooldown := 5000 * time.Millisecond

	calls := 0
	op := func(context.Context) (int, error) {
		calls++
		return 0, apperrors.NewRemoteUnavailableError("connection refused", nil)
	}

	_, err := services.Guard(ctx, g, "placesFetch", cooldown, op)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeRemoteUnavailable))

	clock.Advance(4999 * time.Millisecond)
	_, err = services.Guard(ctx, g, "placesFetch", cooldown, op)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeSuppressed))
	assert.Equal(t, 1, calls)
}

func TestGuard_SuppressedCallsDoNotExtendCooldown(t *testing.T) {
	clock := newFakeClock()
	g := services.NewFailureGovernor(services.WithClock(clock.Now))
	ctx := context.Background()
	cooldown := time.Second

	fail := func(context.Context) (int, error) { return 0, errors.New("boom") }
	ok := func(context.Context) (int, error) { return 42, nil }

	_, _ = services.Guard(ctx, g, "ch", cooldown, fail)
	for i := 0; i < 5; i++ {
		clock.Advance(150 * time.Millisecond)
		_, err := services.Guard(ctx, g, "ch", cooldown, ok)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeSuppressed))
	}

	clock.Advance(250 * time.Millisecond)
	v, err := services.Guard(ctx, g, "ch", cooldown, ok)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestGuard_SuccessClearsChannel(t *testing.T) {
	clock := newFakeClock()
	g := services.NewFailureGovernor(services.WithClock(clock.Now))
	ctx := context.Background()

	_ = g.Do(ctx, "ch", time.Second, func(context.Context) error { return errors.New("boom") })
	assert.True(t, g.Failing("ch"))

	clock.Advance(time.Second)
	require.NoError(t, g.Do(ctx, "ch", time.Second, func(context.Context) error { return nil }))
	assert.False(t, g.Failing("ch"))
}

func TestGuard_ChannelsAreIndependent(t *testing.T) {
	g := services.NewFailureGovernor()
	ctx := context.Background()

	_ = g.Do(ctx, "places:fetch", time.Minute, func(context.Context) error { return errors.New("boom") })

	called := false
	err := g.Do(ctx, "reviews:fetch", time.Minute, func(context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestGuard_ExplicitClearAllowsImmediateRetry(t *testing.T) {
	g := services.NewFailureGovernor()
	ctx := context.Background()

	_ = g.Do(ctx, "ch", time.Minute, func(context.Context) error { return errors.New("boom") })
	g.Clear("ch")

	called := false
	require.NoError(t, g.Do(ctx, "ch", time.Minute, func(context.Context) error {
		called = true
		return nil
	}))
	assert.True(t, called)
}

func TestGuard_NilGovernorCallsThrough(t *testing.T) {
	v, err := services.Guard(context.Background(), nil, "ch", time.Minute, func(context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestGuard_RemoteRejectionsDoNotStartCooldown(t *testing.T) {
	g := services.NewFailureGovernor()
	ctx := context.Background()

	for _, rejection := range []error{
		apperrors.NewValidationError("Rating must be between 1 and 5"),
		apperrors.NewInvalidQueryError("unknown sort key"),
		apperrors.NewNotFoundError("place 9 not found"),
	} {
		err := g.Do(ctx, "reviews:create", time.Minute, func(context.Context) error { return rejection })
		assert.Equal(t, apperrors.TypeOf(rejection), apperrors.TypeOf(err))
		assert.NoError(t, g.Check(ctx, "reviews:create", time.Minute))
	}

	_ = g.Do(ctx, "reviews:create", time.Minute, func(context.Context) error {
		return apperrors.NewRemoteUnavailableError("Failed to create review", nil)
	})
	err := g.Check(ctx, "reviews:create", time.Minute)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeSuppressed))
}
