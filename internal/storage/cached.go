package storage

import (
	"context"
	"errors"
	"time"

	"github.com/protolambda/muskoka-client/internal/logger"
	"github.com/protolambda/muskoka-client/internal/monitoring"
	"github.com/protolambda/muskoka-client/internal/task"
	"github.com/protolambda/muskoka-client/pkg/client"
)

// Source answers listing and task queries
type Source interface {
	QueryListing(ctx context.Context, q client.ListingQuery) ([]task.Task, error)
	QueryTask(ctx context.Context, key string) (*task.Task, error)
}

// CachedSource reads through a Cache in front of an upstream Source and
// records call metrics. A failing cache degrades to upstream reads.
type CachedSource struct {
	upstream Source
	cache    Cache
	metrics  *monitoring.Metrics
	log      *logger.Logger
}

// NewCachedSource wraps upstream. cache and metrics may be nil.
func NewCachedSource(upstream Source, cache Cache, metrics *monitoring.Metrics) *CachedSource {
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}
	return &CachedSource{
		upstream: upstream,
		cache:    cache,
		metrics:  metrics,
		log:      logger.ForComponent("cache"),
	}
}

// Metrics returns the collector calls are recorded in
func (cs *CachedSource) Metrics() *monitoring.Metrics {
	return cs.metrics
}

// QueryListing serves a listing page from the cache or the upstream
func (cs *CachedSource) QueryListing(ctx context.Context, q client.ListingQuery) ([]task.Task, error) {
	key := q.CacheKey()
	if cs.cache != nil {
		tasks, err := cs.cache.GetListing(ctx, key)
		if err == nil {
			cs.metrics.RecordCacheHit()
			return tasks, nil
		}
		cs.lookupFailed("listing", key, err)
	}

	start := time.Now()
	tasks, err := cs.upstream.QueryListing(ctx, q)
	cs.metrics.RecordCall("listing", time.Since(start), err)
	if err != nil {
		return nil, err
	}

	if cs.cache != nil {
		if err := cs.cache.SaveListing(ctx, key, tasks); err != nil {
			cs.metrics.RecordCacheError()
			cs.log.Warn("failed to cache listing", logger.Fields{"query": key, "error": err})
		}
		// listing entries are complete tasks, warm the task cache with them
		for i := range tasks {
			if err := cs.cache.SaveTask(ctx, &tasks[i]); err != nil {
				cs.metrics.RecordCacheError()
				break
			}
		}
	}
	return tasks, nil
}

// QueryTask serves a task from the cache or the upstream
func (cs *CachedSource) QueryTask(ctx context.Context, key string) (*task.Task, error) {
	if cs.cache != nil {
		t, err := cs.cache.GetTask(ctx, key)
		if err == nil {
			cs.metrics.RecordCacheHit()
			return t, nil
		}
		cs.lookupFailed("task", key, err)
	}

	start := time.Now()
	t, err := cs.upstream.QueryTask(ctx, key)
	cs.metrics.RecordCall("task", time.Since(start), err)
	if err != nil {
		return nil, err
	}

	if cs.cache != nil {
		if err := cs.cache.SaveTask(ctx, t); err != nil {
			cs.metrics.RecordCacheError()
			cs.log.Warn("failed to cache task", logger.Fields{"task_key": key, "error": err})
		}
	}
	return t, nil
}

func (cs *CachedSource) lookupFailed(kind, key string, err error) {
	if errors.Is(err, ErrCacheMiss) {
		cs.metrics.RecordCacheMiss()
		return
	}
	cs.metrics.RecordCacheError()
	cs.log.Warn("cache lookup failed", logger.Fields{"kind": kind, "key": key, "error": err})
}
