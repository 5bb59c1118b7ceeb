package sequencer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// ProgressStore persists battery progress per user between runs.
type ProgressStore interface {
	// Load returns found=false when nothing was saved for userID.
	Load(ctx context.Context, userID string) (p Progress, found bool, err error)
	Save(ctx context.Context, userID string, p Progress) error
}

// MemoryStore keeps progress for the life of the process.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]Progress
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Progress)}
}

func (m *MemoryStore) Load(_ context.Context, userID string) (Progress, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[userID]
	if !ok {
		return Progress{}, false, nil
	}
	return p.clone(), true, nil
}

func (m *MemoryStore) Save(_ context.Context, userID string, p Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[userID] = p.clone()
	return nil
}

// RedisStore keeps progress in Redis as JSON.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func progressKey(userID string) string {
	return fmt.Sprintf("battery:%s:progress", userID)
}

func (r *RedisStore) Load(ctx context.Context, userID string) (Progress, bool, error) {
	data, err := r.client.Get(ctx, progressKey(userID)).Result()
	if err != nil {
		if err == redis.Nil {
			return Progress{}, false, nil
		}
		return Progress{}, false, fmt.Errorf("failed to get progress: %w", err)
	}

	var p Progress
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return Progress{}, false, fmt.Errorf("failed to unmarshal progress: %w", err)
	}
	return p, true, nil
}

func (r *RedisStore) Save(ctx context.Context, userID string, p Progress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}
	return r.client.Set(ctx, progressKey(userID), data, 0).Err()
}
