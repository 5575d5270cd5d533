package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/replenish/internal/config"
	"github.com/andresuchdata/replenish/internal/domain"
)

const policyKeyPrefix = "policy:latest"

// PolicyCache stores the last known good policies per partition. The
// rolling-horizon controller reads it when a solve times out and writes it on
// every successful persist.
type PolicyCache interface {
	GetLatest(ctx context.Context, partitionKey string) ([]domain.Policy, bool, error)
	SetLatest(ctx context.Context, partitionKey string, policies []domain.Policy) error
}

type redisPolicyCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPolicyCache returns a redis-backed cache, or a no-op cache when caching
// is disabled.
func NewPolicyCache(cfg config.CacheConfig) (PolicyCache, error) {
	if !cfg.Enabled {
		return &noopPolicyCache{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisPolicyCache{client: client, ttl: ttl}, nil
}

func NewNoopPolicyCache() PolicyCache {
	return &noopPolicyCache{}
}

func (c *redisPolicyCache) GetLatest(ctx context.Context, partitionKey string) ([]domain.Policy, bool, error) {
	payload, err := c.client.Get(ctx, buildPolicyKey(partitionKey)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var policies []domain.Policy
	if err := json.Unmarshal(payload, &policies); err != nil {
		return nil, false, fmt.Errorf("decode cached policies: %w", err)
	}

	return policies, true, nil
}

func (c *redisPolicyCache) SetLatest(ctx context.Context, partitionKey string, policies []domain.Policy) error {
	payload, err := json.Marshal(policies)
	if err != nil {
		return fmt.Errorf("encode cached policies: %w", err)
	}

	if err := c.client.Set(ctx, buildPolicyKey(partitionKey), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func buildPolicyKey(partitionKey string) string {
	return policyKeyPrefix + ":" + partitionKey
}

type noopPolicyCache struct{}

func (noopPolicyCache) GetLatest(context.Context, string) ([]domain.Policy, bool, error) {
	return nil, false, nil
}

func (noopPolicyCache) SetLatest(context.Context, string, []domain.Policy) error {
	return nil
}

// MemoryPolicyCache is an in-process PolicyCache for tests and single-node
// deployments without redis.
type MemoryPolicyCache struct {
	mu       sync.RWMutex
	policies map[string][]domain.Policy
}

func NewMemoryPolicyCache() *MemoryPolicyCache {
	return &MemoryPolicyCache{policies: make(map[string][]domain.Policy)}
}

func (c *MemoryPolicyCache) GetLatest(_ context.Context, partitionKey string) ([]domain.Policy, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	policies, ok := c.policies[partitionKey]
	if !ok {
		return nil, false, nil
	}
	out := make([]domain.Policy, len(policies))
	copy(out, policies)
	return out, true, nil
}

func (c *MemoryPolicyCache) SetLatest(_ context.Context, partitionKey string, policies []domain.Policy) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := make([]domain.Policy, len(policies))
	copy(stored, policies)
	c.policies[partitionKey] = stored
	return nil
}
