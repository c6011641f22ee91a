package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"cscexplorer/internal/domain"
	"cscexplorer/pkg/platform/sentinel"
)

const datasetKeyPrefix = "cscx:dataset:"

// cachedRecord keeps the value type explicit so REAL values such as 2.0 do
// not come back as INTEGER.
type cachedRecord struct {
	ID   string           `json:"id"`
	Type domain.ValueType `json:"t,omitempty"`
	Text string           `json:"s,omitempty"`
	Int  int64            `json:"i,omitempty"`
	Real float64          `json:"f,omitempty"`
}

// RedisStore is a Store shared between server instances.
type RedisStore struct {
	client *redis.Client
	prefix string
}

type RedisStoreOption func(*RedisStore)

// WithKeyPrefix overrides the key namespace.
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

func NewRedisStore(client *redis.Client, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{client: client, prefix: datasetKeyPrefix}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]domain.RawRecord, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	var cached []cachedRecord
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, fmt.Errorf("decode cached dataset %s: %w", key, err)
	}
	out := make([]domain.RawRecord, len(cached))
	for i, c := range cached {
		out[i] = domain.RawRecord{
			EntityID: c.ID,
			Value:    domain.Value{Type: c.Type, Text: c.Text, Int: c.Int, Real: c.Real},
		}
	}
	return out, nil
}

// Set stores records with SET EX semantics.
func (s *RedisStore) Set(ctx context.Context, key string, records []domain.RawRecord, ttl time.Duration) error {
	cached := make([]cachedRecord, len(records))
	for i, r := range records {
		cached[i] = cachedRecord{
			ID:   r.EntityID,
			Type: r.Value.Type,
			Text: r.Value.Text,
			Int:  r.Value.Int,
			Real: r.Value.Real,
		}
	}
	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("encode dataset %s: %w", key, err)
	}
	return s.client.Set(ctx, s.prefix+key, data, ttl).Err()
}
