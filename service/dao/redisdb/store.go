package redisdb

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/viant/vigil/service/dao"
)

// Store persists a collection as a single redis hash: field = record key,
// value = JSON record.
type Store[K cmp.Ordered, T any] struct {
	client redis.UniversalClient
	hash   string
	key    dao.KeyFunc[K, T]
	mu     sync.Mutex
}

// Ensure Store implements dao.Snapshot
var _ dao.Snapshot[string, struct{}] = (*Store[string, struct{}])(nil)

// New creates a store bound to the given hash key.
func New[K cmp.Ordered, T any](client redis.UniversalClient, hash string, key dao.KeyFunc[K, T]) (*Store[K, T], error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if hash == "" {
		return nil, fmt.Errorf("hash key cannot be empty")
	}
	if key == nil {
		return nil, fmt.Errorf("key selector cannot be nil")
	}
	return &Store[K, T]{client: client, hash: hash, key: key}, nil
}

// Load reads the whole hash.
func (s *Store[K, T]) Load(ctx context.Context) (map[K]*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.client.HGetAll(ctx, s.hash).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.hash, err)
	}
	result := make(map[K]*T, len(values))
	for field, value := range values {
		record := new(T)
		if err = json.Unmarshal([]byte(value), record); err != nil {
			return nil, fmt.Errorf("%w: %s field %s: %v", dao.ErrCorrupt, s.hash, field, err)
		}
		result[s.key(record)] = record
	}
	return result, nil
}

// SaveAll replaces the hash inside MULTI/EXEC.
func (s *Store[K, T]) SaveAll(ctx context.Context, records map[K]*T) error {
	values := make([]interface{}, 0, 2*len(records))
	for _, k := range dao.SortedKeys(records) {
		record := records[k]
		if record == nil {
			continue
		}
		payload, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to encode record %v: %w", k, err)
		}
		values = append(values, fmt.Sprint(k), string(payload))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.hash)
		if len(values) > 0 {
			pipe.HSet(ctx, s.hash, values...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", s.hash, err)
	}
	return nil
}
