package redis

import (
	"context"
	"math/rand"
	"time"

	"github.com/turtacn/padel-featurizer/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/padel-featurizer/internal/infrastructure/store"
	"github.com/turtacn/padel-featurizer/pkg/errors"
)

// DefaultKeyPrefix namespaces feature rows.
const DefaultKeyPrefix = "padel:feat:"

// FeatureStoreOption configures a FeatureStore.
type FeatureStoreOption func(*FeatureStore)

// WithPrefix overrides DefaultKeyPrefix.
func WithPrefix(prefix string) FeatureStoreOption {
	return func(s *FeatureStore) { s.prefix = prefix }
}

// WithTTL expires rows; zero keeps them forever.
func WithTTL(ttl time.Duration) FeatureStoreOption {
	return func(s *FeatureStore) { s.ttl = ttl }
}

// FeatureStore keeps feature rows as binary strings, one key per row.
type FeatureStore struct {
	client *Client
	logger logging.Logger
	prefix string
	ttl    time.Duration
}

var _ store.FeatureStore = (*FeatureStore)(nil)

// NewFeatureStore wraps a connected client.
func NewFeatureStore(client *Client, log logging.Logger, opts ...FeatureStoreOption) *FeatureStore {
	if log == nil {
		log = logging.NewNopLogger()
	}
	s := &FeatureStore{client: client, logger: log, prefix: DefaultKeyPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *FeatureStore) fullKey(key string) string {
	return s.prefix + key
}

// jitterTTL spreads expiry by ±10% so a batch does not expire at once.
func (s *FeatureStore) jitterTTL() time.Duration {
	if s.ttl == 0 {
		return 0
	}
	jitter := float64(s.ttl) * 0.1 * (rand.Float64()*2 - 1)
	return s.ttl + time.Duration(jitter)
}

// Get reads all keys with one MGET.  Undecodable rows are logged and treated
// as misses.
func (s *FeatureStore) Get(ctx context.Context, keys []string) (map[string][]float64, error) {
	out := make(map[string][]float64, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	rdb, err := s.client.Universal()
	if err != nil {
		return nil, err
	}
	fullKeys := make([]string, len(keys))
	for i, k := range keys {
		fullKeys[i] = s.fullKey(k)
	}
	vals, err := rdb.MGet(ctx, fullKeys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "failed to read feature rows")
	}
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		row, err := store.DecodeRow([]byte(str))
		if err != nil {
			s.logger.Warn("Discarding corrupt feature row", logging.String("key", keys[i]), logging.Err(err))
			continue
		}
		out[keys[i]] = row
	}
	return out, nil
}

// Put writes rows in one pipeline.
func (s *FeatureStore) Put(ctx context.Context, rows map[string][]float64) error {
	if len(rows) == 0 {
		return nil
	}
	rdb, err := s.client.Universal()
	if err != nil {
		return err
	}
	pipe := rdb.Pipeline()
	for k, row := range rows {
		pipe.Set(ctx, s.fullKey(k), store.EncodeRow(row), s.jitterTTL())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to write feature rows")
	}
	return nil
}

// Close closes the underlying client.
func (s *FeatureStore) Close() error {
	return s.client.Close()
}

//Personal.AI order the ending
