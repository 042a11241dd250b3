package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"toll-calculator/internal/observability/metrics"
	toll "toll-calculator/internal/toll/domain"
)

const (
	defaultFetchTimeout = 10 * time.Second
	defaultRetryBackoff = 30 * time.Second
)

// ErrRulesUnavailable is returned when no rule set can be served.
var ErrRulesUnavailable = errors.New("toll rules: unavailable")

// RuleProvider fetches the current rule set from its source of truth.
type RuleProvider interface {
	Fetch(ctx context.Context) (*toll.RuleSet, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

type snapshot struct {
	rules    *toll.RuleSet
	fetched  bool
	loadedAt time.Time
}

// RuleStore holds the published rule set snapshot. Snapshots are never
// mutated; a refresh validates a new one and swaps the pointer.
type RuleStore struct {
	provider RuleProvider
	clock    Clock
	timeout  time.Duration
	backoff  time.Duration
	logger   *log.Logger

	current     atomic.Pointer[snapshot]
	group       singleflight.Group
	lastFailure atomic.Int64 // unix nanos of the last failed fetch, 0 after a success
	background  atomic.Bool
}

// RuleStoreOption configures the store.
type RuleStoreOption func(*RuleStore)

// WithFetchTimeout bounds each provider fetch.
func WithFetchTimeout(timeout time.Duration) RuleStoreOption {
	return func(s *RuleStore) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithRetryBackoff sets how long a failed fetch keeps callers on the
// previous snapshot before the source is tried again.
func WithRetryBackoff(backoff time.Duration) RuleStoreOption {
	return func(s *RuleStore) {
		if backoff > 0 {
			s.backoff = backoff
		}
	}
}

// WithClock overrides the clock used for expiry checks.
func WithClock(clock Clock) RuleStoreOption {
	return func(s *RuleStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) RuleStoreOption {
	return func(s *RuleStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewRuleStore constructs a store. The seed, when not nil, is served until
// the provider delivers a rule set and whenever the provider fails before
// that. A nil provider serves the seed forever.
func NewRuleStore(provider RuleProvider, seed *toll.RuleSet, opts ...RuleStoreOption) (*RuleStore, error) {
	if provider == nil && seed == nil {
		return nil, errors.New("rule store: nil provider and nil seed")
	}
	s := &RuleStore{
		provider: provider,
		clock:    SystemClock{},
		timeout:  defaultFetchTimeout,
		backoff:  defaultRetryBackoff,
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if seed != nil {
		if err := seed.Validate(); err != nil {
			return nil, fmt.Errorf("rule store: seed: %w", err)
		}
		s.current.Store(&snapshot{rules: seed.Clone(), loadedAt: s.clock.Now()})
	}
	return s, nil
}

// Current returns the snapshot to compute with, refreshing it first when
// it is expired or has never been fetched. A failed refresh falls back to
// the previous snapshot when there is one. After a failure, callers get the
// previous snapshot without waiting: within the retry backoff no fetch is
// made, after it the fetch runs in the background.
func (s *RuleStore) Current(ctx context.Context) (*toll.RuleSet, error) {
	snap := s.current.Load()
	if snap != nil && (s.provider == nil || (snap.fetched && !snap.rules.Expired(s.clock.Now()))) {
		return snap.rules, nil
	}
	if s.provider == nil {
		return nil, ErrRulesUnavailable
	}

	if snap != nil {
		if failedAt, failed := s.failedAt(); failed {
			if s.clock.Now().Sub(failedAt) >= s.backoff {
				s.refreshInBackground()
			}
			metrics.IncRulesStale()
			return snap.rules, nil
		}
	}

	rules, err := s.refresh(ctx)
	if err == nil {
		return rules, nil
	}
	if snap != nil {
		metrics.IncRulesStale()
		s.logger.Printf("toll rules refresh failed, serving previous snapshot: valid_until=%s err=%v",
			snap.rules.ValidUntil.Format(time.RFC3339), err)
		return snap.rules, nil
	}
	return nil, err
}

// Refresh fetches and publishes a new snapshot regardless of expiry.
func (s *RuleStore) Refresh(ctx context.Context) (*toll.RuleSet, error) {
	if s.provider == nil {
		return nil, fmt.Errorf("%w: no provider configured", ErrRulesUnavailable)
	}
	return s.refresh(ctx)
}

// Snapshot returns the published rule set without refreshing; nil when
// nothing has been loaded yet.
func (s *RuleStore) Snapshot() *toll.RuleSet {
	snap := s.current.Load()
	if snap == nil {
		return nil
	}
	return snap.rules
}

// LoadedAt returns when the published snapshot was stored.
func (s *RuleStore) LoadedAt() time.Time {
	snap := s.current.Load()
	if snap == nil {
		return time.Time{}
	}
	return snap.loadedAt
}

// ValidUntil returns the expiry of the published snapshot.
func (s *RuleStore) ValidUntil() time.Time {
	if rules := s.Snapshot(); rules != nil {
		return rules.ValidUntil
	}
	return time.Time{}
}

func (s *RuleStore) failedAt() (time.Time, bool) {
	nanos := s.lastFailure.Load()
	if nanos == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, nanos), true
}

func (s *RuleStore) markFailed() {
	s.lastFailure.Store(s.clock.Now().UnixNano())
}

func (s *RuleStore) refreshInBackground() {
	if !s.background.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer s.background.Store(false)
		if _, err := s.refresh(context.Background()); err != nil {
			s.logger.Printf("toll rules background refresh failed: %v", err)
		}
	}()
}

func (s *RuleStore) refresh(ctx context.Context) (*toll.RuleSet, error) {
	ch := s.group.DoChan("rules", func() (any, error) {
		return s.fetch(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrRulesUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*toll.RuleSet), nil
	}
}

func (s *RuleStore) fetch(ctx context.Context) (*toll.RuleSet, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	rules, err := s.provider.Fetch(ctx)
	if err != nil {
		s.markFailed()
		metrics.ObserveRulesRefresh(metrics.ResultError, time.Since(start))
		s.logger.Printf("toll rules fetch error: %v", err)
		return nil, fmt.Errorf("%w: %w", ErrRulesUnavailable, err)
	}
	if rules == nil {
		s.markFailed()
		metrics.ObserveRulesRefresh(metrics.ResultError, time.Since(start))
		return nil, fmt.Errorf("%w: provider returned no rules", ErrRulesUnavailable)
	}
	if err := rules.Validate(); err != nil {
		s.markFailed()
		metrics.ObserveRulesRefresh(metrics.ResultInvalid, time.Since(start))
		s.logger.Printf("toll rules rejected: %v", err)
		return nil, fmt.Errorf("%w: %w", ErrRulesUnavailable, err)
	}

	published := rules.Clone()
	loadedAt := s.clock.Now()
	s.current.Store(&snapshot{rules: published, fetched: true, loadedAt: loadedAt})
	if published.Expired(loadedAt) {
		s.markFailed()
		s.logger.Printf("toll rules already expired on arrival: valid_until=%s", published.ValidUntil.Format(time.RFC3339))
	} else {
		s.lastFailure.Store(0)
	}
	metrics.ObserveRulesRefresh(metrics.ResultSuccess, time.Since(start))
	s.logger.Printf("toll rules refreshed: fees=%d valid_until=%s", len(published.Fees), published.ValidUntil.Format(time.RFC3339))
	return published, nil
}
