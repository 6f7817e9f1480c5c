package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/protolambda/muskoka-client/internal/task"
)

const (
	// Redis key prefixes for cached responses
	taskCachePrefix    = "muskoka:cache:task:"
	listingCachePrefix = "muskoka:cache:listing:"

	defaultTaskTTL    = 30 * time.Second
	defaultListingTTL = 10 * time.Second
)

// RedisCache implements Cache using Redis
type RedisCache struct {
	client     *redis.Client
	taskTTL    time.Duration
	listingTTL time.Duration
}

// NewRedisCache creates a new Redis cache backend. Zero TTLs fall back to
// the defaults.
func NewRedisCache(client *redis.Client, taskTTL, listingTTL time.Duration) *RedisCache {
	if taskTTL <= 0 {
		taskTTL = defaultTaskTTL
	}
	if listingTTL <= 0 {
		listingTTL = defaultListingTTL
	}
	return &RedisCache{
		client:     client,
		taskTTL:    taskTTL,
		listingTTL: listingTTL,
	}
}

// SaveTask caches a task under its key
func (rc *RedisCache) SaveTask(ctx context.Context, t *task.Task) error {
	if t == nil || t.Key == "" {
		return fmt.Errorf("invalid task")
	}

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	if err := rc.client.Set(ctx, taskCachePrefix+t.Key, data, rc.taskTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache task: %w", err)
	}
	return nil
}

// GetTask retrieves a cached task by key
func (rc *RedisCache) GetTask(ctx context.Context, key string) (*task.Task, error) {
	if key == "" {
		return nil, fmt.Errorf("task key cannot be empty")
	}

	data, err := rc.client.Get(ctx, taskCachePrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached task: %w", err)
	}

	// cached entries were validated when first decoded
	var t task.Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached task: %w", err)
	}
	if t.Results == nil {
		t.Results = map[string]task.Result{}
	}
	return &t, nil
}

// SaveListing caches a listing page
func (rc *RedisCache) SaveListing(ctx context.Context, queryKey string, tasks []task.Task) error {
	if tasks == nil {
		tasks = []task.Task{}
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("failed to marshal listing: %w", err)
	}

	if err := rc.client.Set(ctx, listingCachePrefix+queryKey, data, rc.listingTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache listing: %w", err)
	}
	return nil
}

// GetListing retrieves a cached listing page
func (rc *RedisCache) GetListing(ctx context.Context, queryKey string) ([]task.Task, error) {
	data, err := rc.client.Get(ctx, listingCachePrefix+queryKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached listing: %w", err)
	}

	var tasks []task.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached listing: %w", err)
	}
	for i := range tasks {
		if tasks[i].Results == nil {
			tasks[i].Results = map[string]task.Result{}
		}
	}
	return tasks, nil
}

// DeleteTask evicts a cached task
func (rc *RedisCache) DeleteTask(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("task key cannot be empty")
	}
	if err := rc.client.Del(ctx, taskCachePrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete cached task: %w", err)
	}
	return nil
}

// Health pings Redis
func (rc *RedisCache) Health(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (rc *RedisCache) Close() error {
	// Note: We don't close the client here as it might be shared
	// The caller should manage the Redis client lifecycle
	return nil
}
