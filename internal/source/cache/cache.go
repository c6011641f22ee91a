// Package cache decorates a source.DataSource with a dataset cache and
// coalesces concurrent fetches of the same dataset.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"cscexplorer/internal/domain"
	"cscexplorer/internal/source"
	"cscexplorer/pkg/platform/sentinel"
)

// Store persists datasets by key. Get returns sentinel.ErrNotFound on a miss
// or an expired entry.
type Store interface {
	Get(ctx context.Context, key string) ([]domain.RawRecord, error)
	Set(ctx context.Context, key string, records []domain.RawRecord, ttl time.Duration) error
}

const defaultFetchTimeout = 30 * time.Second

// Source serves datasets from Store and falls back to the wrapped source.
type Source struct {
	next    source.DataSource
	store   Store
	ttl     time.Duration
	timeout time.Duration
	group   singleflight.Group
	logger  *slog.Logger
	metrics *Metrics
}

type Option func(*Source)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithFetchTimeout bounds a shared fetch of the wrapped source. The fetch runs
// detached from any single caller, so this is its only deadline.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Source) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Source) {
		s.metrics = m
	}
}

// New wraps next. Entries live for ttl.
func New(next source.DataSource, store Store, ttl time.Duration, opts ...Option) *Source {
	s := &Source{
		next:   next,
		store:  store,
		ttl:     ttl,
		timeout: defaultFetchTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch implements source.DataSource. Store read or write failures degrade to
// an uncached fetch; fetch errors are never cached.
func (s *Source) Fetch(ctx context.Context, req source.FetchRequest) ([]domain.RawRecord, error) {
	key := req.Key()
	records, err := s.store.Get(ctx, key)
	if err == nil {
		s.metrics.IncHit()
		return records, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.WarnContext(ctx, "dataset cache read failed", "key", key, "error", err)
	}
	s.metrics.IncMiss()

	ch := s.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		fetched, err := s.next.Fetch(fetchCtx, req)
		if err != nil {
			return nil, err
		}
		if err := s.store.Set(fetchCtx, key, fetched, s.ttl); err != nil {
			s.logger.WarnContext(fetchCtx, "dataset cache write failed", "key", key, "error", err)
		}
		return fetched, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.DebugContext(ctx, "dataset fetch coalesced", "key", key)
		}
		return res.Val.([]domain.RawRecord), nil
	}
}
