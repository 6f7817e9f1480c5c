package storage

import (
	"context"
	"errors"

	"github.com/protolambda/muskoka-client/internal/task"
)

// ErrCacheMiss is returned when nothing is cached under a key
var ErrCacheMiss = errors.New("cache miss")

// Cache defines the interface for caching decoded API responses
type Cache interface {
	// SaveTask caches a task under its key
	SaveTask(ctx context.Context, t *task.Task) error

	// GetTask retrieves a cached task by key
	GetTask(ctx context.Context, key string) (*task.Task, error)

	// SaveListing caches a listing page under the query's cache key
	SaveListing(ctx context.Context, queryKey string, tasks []task.Task) error

	// GetListing retrieves a cached listing page
	GetListing(ctx context.Context, queryKey string) ([]task.Task, error)

	// DeleteTask evicts a cached task
	DeleteTask(ctx context.Context, key string) error

	// Health checks the cache backend
	Health(ctx context.Context) error

	// Close closes the cache connection
	Close() error
}
