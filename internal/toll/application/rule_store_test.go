package application

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	toll "toll-calculator/internal/toll/domain"
)

var quietLogger = log.New(io.Discard, "", 0)

type stubProvider struct {
	mu    sync.Mutex
	rules *toll.RuleSet
	err   error
	gate  chan struct{}
	calls atomic.Int32
}

func (p *stubProvider) Fetch(ctx context.Context) (*toll.RuleSet, error) {
	p.calls.Add(1)
	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rules, p.err
}

func (p *stubProvider) set(rules *toll.RuleSet, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rules, p.err = rules, err
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func remoteRules(maxFee int64, validUntil time.Time) *toll.RuleSet {
	rules := toll.DefaultRuleSet()
	rules.DailyMaxFee = decimal.NewFromInt(maxFee)
	rules.ValidUntil = validUntil
	return rules
}

var now = time.Date(2025, time.December, 19, 12, 0, 0, 0, time.UTC)

func TestRuleStore_SeedOnly(t *testing.T) {
	store, err := NewRuleStore(nil, toll.DefaultRuleSet(), WithLogger(quietLogger))
	require.NoError(t, err)

	rules, err := store.Current(context.Background())
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(60).Equal(rules.DailyMaxFee))

	_, err = store.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrRulesUnavailable)
}

func TestRuleStore_RejectsMissingSources(t *testing.T) {
	_, err := NewRuleStore(nil, nil)
	assert.Error(t, err)

	bad := toll.DefaultRuleSet()
	bad.WindowDuration = 0
	_, err = NewRuleStore(&stubProvider{}, bad)
	assert.ErrorIs(t, err, toll.ErrInvalidRuleSet)
}

func TestRuleStore_FetchesOnceUntilExpiry(t *testing.T) {
	clock := &fakeClock{now: now}
	provider := &stubProvider{rules: remoteRules(70, now.Add(time.Hour))}
	store, err := NewRuleStore(provider, toll.DefaultRuleSet(), WithClock(clock), WithLogger(quietLogger))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		rules, err := store.Current(context.Background())
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(70).Equal(rules.DailyMaxFee))
	}
	assert.Equal(t, int32(1), provider.calls.Load())

	provider.set(remoteRules(80, now.Add(48*time.Hour)), nil)
	clock.Set(now.Add(2 * time.Hour))
	rules, err := store.Current(context.Background())
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(80).Equal(rules.DailyMaxFee))
	assert.Equal(t, int32(2), provider.calls.Load())
	assert.Equal(t, now.Add(48*time.Hour), store.ValidUntil())
	assert.Equal(t, now.Add(2*time.Hour), store.LoadedAt())
}

func TestRuleStore_FailureWithoutSnapshot(t *testing.T) {
	provider := &stubProvider{err: errors.New("connection refused")}
	store, err := NewRuleStore(provider, nil, WithLogger(quietLogger))
	require.NoError(t, err)

	_, err = store.Current(context.Background())
	assert.ErrorIs(t, err, ErrRulesUnavailable)
	assert.Nil(t, store.Snapshot())
}

func TestRuleStore_StaleFallback(t *testing.T) {
	clock := &fakeClock{now: now}
	provider := &stubProvider{rules: remoteRules(70, now.Add(time.Hour))}
	store, err := NewRuleStore(provider, nil, WithClock(clock), WithLogger(quietLogger))
	require.NoError(t, err)

	_, err = store.Current(context.Background())
	require.NoError(t, err)

	provider.set(nil, errors.New("timeout"))
	clock.Set(now.Add(2 * time.Hour))
	rules, err := store.Current(context.Background())
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(70).Equal(rules.DailyMaxFee))

	_, err = store.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrRulesUnavailable)
}

func TestRuleStore_InvalidRulesRejected(t *testing.T) {
	invalid := remoteRules(70, now.Add(time.Hour))
	invalid.Fees[0].Intervals[0] = toll.Interval{Start: toll.Clock(7, 0), End: toll.Clock(7, 30)}
	provider := &stubProvider{rules: invalid}
	store, err := NewRuleStore(provider, toll.DefaultRuleSet(), WithClock(&fakeClock{now: now}), WithLogger(quietLogger))
	require.NoError(t, err)

	_, err = store.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrRulesUnavailable)
	assert.ErrorIs(t, err, toll.ErrInvalidRuleSet)

	rules, err := store.Current(context.Background())
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(60).Equal(rules.DailyMaxFee))
}

func TestRuleStore_PublishedSnapshotIsDetached(t *testing.T) {
	fetched := remoteRules(70, now.Add(time.Hour))
	provider := &stubProvider{rules: fetched}
	store, err := NewRuleStore(provider, nil, WithClock(&fakeClock{now: now}), WithLogger(quietLogger))
	require.NoError(t, err)

	held, err := store.Current(context.Background())
	require.NoError(t, err)
	fetched.DailyMaxFee = decimal.NewFromInt(1)
	fetched.Fees[0].Amount = decimal.NewFromInt(1)

	assert.True(t, decimal.NewFromInt(70).Equal(held.DailyMaxFee))
	assert.True(t, decimal.NewFromInt(8).Equal(held.Fees[0].Amount))

	provider.set(remoteRules(90, now.Add(time.Hour)), nil)
	_, err = store.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(70).Equal(held.DailyMaxFee))
}

func TestRuleStore_ConcurrentCallersShareOneFetch(t *testing.T) {
	provider := &stubProvider{rules: remoteRules(70, now.Add(time.Hour)), gate: make(chan struct{})}
	store, err := NewRuleStore(provider, nil, WithClock(&fakeClock{now: now}), WithLogger(quietLogger))
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*toll.RuleSet, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rules, err := store.Current(context.Background())
			assert.NoError(t, err)
			results[i] = rules
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(provider.gate)
	wg.Wait()

	assert.Equal(t, int32(1), provider.calls.Load())
	for _, rules := range results {
		assert.Same(t, results[0], rules)
	}
}

func TestRuleStore_CancelledWaitKeepsPreviousSnapshot(t *testing.T) {
	provider := &stubProvider{rules: remoteRules(70, now.Add(time.Hour)), gate: make(chan struct{})}
	store, err := NewRuleStore(provider, toll.DefaultRuleSet(), WithClock(&fakeClock{now: now}), WithLogger(quietLogger))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	rules, err := store.Current(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(60).Equal(rules.DailyMaxFee))

	close(provider.gate)
	require.Eventually(t, func() bool {
		snap := store.Snapshot()
		return snap != nil && snap.DailyMaxFee.Equal(decimal.NewFromInt(70))
	}, time.Second, 5*time.Millisecond)
}

func TestRuleStore_CancelledWaitWithoutSnapshot(t *testing.T) {
	provider := &stubProvider{rules: remoteRules(70, now.Add(time.Hour)), gate: make(chan struct{})}
	defer close(provider.gate)
	store, err := NewRuleStore(provider, nil, WithLogger(quietLogger))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Current(ctx)
	assert.ErrorIs(t, err, ErrRulesUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRuleStore_FetchTimeout(t *testing.T) {
	provider := &stubProvider{rules: remoteRules(70, now.Add(time.Hour)), gate: make(chan struct{})}
	defer close(provider.gate)
	store, err := NewRuleStore(provider, nil, WithFetchTimeout(10*time.Millisecond), WithLogger(quietLogger))
	require.NoError(t, err)

	_, err = store.Current(context.Background())
	assert.ErrorIs(t, err, ErrRulesUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRuleStore_OutageServesPreviousSnapshotWithoutRefetching(t *testing.T) {
	clock := &fakeClock{now: now}
	provider := &stubProvider{gate: make(chan struct{})}
	store, err := NewRuleStore(provider, toll.DefaultRuleSet(),
		WithClock(clock),
		WithFetchTimeout(50*time.Millisecond),
		WithRetryBackoff(time.Minute),
		WithLogger(quietLogger),
	)
	require.NoError(t, err)

	rules, err := store.Current(context.Background())
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(60).Equal(rules.DailyMaxFee))
	assert.Equal(t, int32(1), provider.calls.Load())

	for i := 0; i < 3; i++ {
		start := time.Now()
		rules, err = store.Current(context.Background())
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(60).Equal(rules.DailyMaxFee))
		assert.Less(t, time.Since(start), 40*time.Millisecond)
	}
	assert.Equal(t, int32(1), provider.calls.Load())

	// Past the backoff the caller still gets the seed while the retry runs.
	clock.Set(now.Add(2 * time.Minute))
	start := time.Now()
	rules, err = store.Current(context.Background())
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(60).Equal(rules.DailyMaxFee))
	assert.Less(t, time.Since(start), 40*time.Millisecond)
	require.Eventually(t, func() bool {
		return provider.calls.Load() == 2 && !store.background.Load()
	}, time.Second, 5*time.Millisecond)

	provider.set(remoteRules(70, now.Add(time.Hour)), nil)
	close(provider.gate)
	clock.Set(now.Add(4 * time.Minute))
	_, err = store.Current(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		snap := store.Snapshot()
		return snap != nil && snap.DailyMaxFee.Equal(decimal.NewFromInt(70))
	}, time.Second, 5*time.Millisecond)

	rules, err = store.Current(context.Background())
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(70).Equal(rules.DailyMaxFee))
	assert.Equal(t, int32(3), provider.calls.Load())
}

func TestRuleStore_ExpiredOnArrivalBacksOff(t *testing.T) {
	clock := &fakeClock{now: now}
	provider := &stubProvider{rules: remoteRules(70, now.Add(-time.Hour))}
	store, err := NewRuleStore(provider, nil, WithClock(clock), WithRetryBackoff(time.Minute), WithLogger(quietLogger))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		rules, err := store.Current(context.Background())
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(70).Equal(rules.DailyMaxFee))
	}
	assert.Equal(t, int32(1), provider.calls.Load())
}

func TestRuleStore_SuccessClearsBackoff(t *testing.T) {
	clock := &fakeClock{now: now}
	provider := &stubProvider{err: errors.New("connection refused")}
	store, err := NewRuleStore(provider, toll.DefaultRuleSet(), WithClock(clock), WithLogger(quietLogger))
	require.NoError(t, err)

	_, err = store.Refresh(context.Background())
	require.Error(t, err)
	_, failed := store.failedAt()
	assert.True(t, failed)

	provider.set(remoteRules(70, now.Add(time.Hour)), nil)
	_, err = store.Refresh(context.Background())
	require.NoError(t, err)
	_, failed = store.failedAt()
	assert.False(t, failed)
}
