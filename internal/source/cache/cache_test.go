package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"cscexplorer/internal/domain"
	"cscexplorer/internal/source"
	"cscexplorer/internal/source/mocks"
	"cscexplorer/pkg/platform/sentinel"
)

var admRate = source.FetchRequest{Category: "ADM_RATE", Scope: domain.ScopeYear, Year: "2014"}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSource_HitAvoidsSecondFetch(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mocks.NewMockDataSource(ctrl)
	records := []domain.RawRecord{{EntityID: "1", Value: domain.RealValue(0.05)}}
	next.EXPECT().Fetch(gomock.Any(), admRate).Return(records, nil).Times(1)

	m := NewMetrics(prometheus.NewRegistry())
	s := New(next, NewMemoryStore(), time.Minute, WithLogger(discardLogger()), WithMetrics(m))

	got, err := s.Fetch(context.Background(), admRate)
	require.NoError(t, err)
	assert.Equal(t, records, got)

	got, err = s.Fetch(context.Background(), admRate)
	require.NoError(t, err)
	assert.Equal(t, records, got)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Hits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Misses))
}

func TestSource_ErrorsAreNotCached(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mocks.NewMockDataSource(ctrl)
	outage := source.NewFetchError(source.ErrorProviderOutage, "test", "down", nil)
	gomock.InOrder(
		next.EXPECT().Fetch(gomock.Any(), admRate).Return(nil, outage),
		next.EXPECT().Fetch(gomock.Any(), admRate).Return([]domain.RawRecord{}, nil),
	)

	s := New(next, NewMemoryStore(), time.Minute, WithLogger(discardLogger()))

	_, err := s.Fetch(context.Background(), admRate)
	assert.ErrorIs(t, err, outage)

	_, err = s.Fetch(context.Background(), admRate)
	assert.NoError(t, err)
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]domain.RawRecord, error) {
	return nil, errors.New("connection reset")
}

func (failingStore) Set(context.Context, string, []domain.RawRecord, time.Duration) error {
	return errors.New("connection reset")
}

func TestSource_StoreFailureDegradesToFetch(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mocks.NewMockDataSource(ctrl)
	next.EXPECT().Fetch(gomock.Any(), admRate).Return([]domain.RawRecord{{EntityID: "9"}}, nil)

	s := New(next, failingStore{}, time.Minute, WithLogger(discardLogger()))

	got, err := s.Fetch(context.Background(), admRate)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

type countingStore struct {
	*MemoryStore
	gets atomic.Int32
}

func (c *countingStore) Get(ctx context.Context, key string) ([]domain.RawRecord, error) {
	c.gets.Add(1)
	return c.MemoryStore.Get(ctx, key)
}

func TestSource_CoalescesConcurrentMisses(t *testing.T) {
	const callers = 5
	var fetches atomic.Int32
	release := make(chan struct{})
	next := source.DataSourceFunc(func(ctx context.Context, req source.FetchRequest) ([]domain.RawRecord, error) {
		fetches.Add(1)
		<-release
		return []domain.RawRecord{{EntityID: "1", Value: domain.IntValue(1)}}, nil
	})
	store := &countingStore{MemoryStore: NewMemoryStore()}
	s := New(next, store, time.Minute, WithLogger(discardLogger()))

	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := s.Fetch(context.Background(), admRate)
			assert.NoError(t, err)
			assert.Len(t, got, 1)
		}()
	}

	require.Eventually(t, func() bool { return store.gets.Load() == callers }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), fetches.Load())
}

func TestSource_CanceledCallerDoesNotFailCoalescedCaller(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var fetches atomic.Int32
	next := source.DataSourceFunc(func(ctx context.Context, req source.FetchRequest) ([]domain.RawRecord, error) {
		if fetches.Add(1) == 1 {
			close(started)
		}
		select {
		case <-release:
			return []domain.RawRecord{{EntityID: "1", Value: domain.RealValue(0.05)}}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	s := New(next, NewMemoryStore(), time.Minute, WithLogger(discardLogger()))

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := s.Fetch(firstCtx, admRate)
		first <- err
	}()
	<-started

	second := make(chan []domain.RawRecord, 1)
	go func() {
		got, err := s.Fetch(context.Background(), admRate)
		assert.NoError(t, err)
		second <- got
	}()

	time.Sleep(20 * time.Millisecond)
	cancelFirst()
	assert.ErrorIs(t, <-first, context.Canceled)

	close(release)
	got := <-second
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].EntityID)
	assert.Equal(t, int32(1), fetches.Load())

	cached, err := s.Fetch(context.Background(), admRate)
	require.NoError(t, err)
	assert.Len(t, cached, 1)
	assert.Equal(t, int32(1), fetches.Load())
}

func TestSource_SharedFetchHasItsOwnDeadline(t *testing.T) {
	next := source.DataSourceFunc(func(ctx context.Context, req source.FetchRequest) ([]domain.RawRecord, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	s := New(next, NewMemoryStore(), time.Minute, WithLogger(discardLogger()), WithFetchTimeout(20*time.Millisecond))

	_, err := s.Fetch(context.Background(), admRate)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryStore_TTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemoryStore()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, m.Set(ctx, "k", []domain.RawRecord{{EntityID: "1"}}, time.Minute))
	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	now = now.Add(time.Minute)
	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.Equal(t, 0, m.Len())
}
