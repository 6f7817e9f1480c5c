package storage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protolambda/muskoka-client/internal/monitoring"
	"github.com/protolambda/muskoka-client/internal/task"
	"github.com/protolambda/muskoka-client/pkg/client"
)

type fakeSource struct {
	mu           sync.Mutex
	tasks        map[string]*task.Task
	listing      []task.Task
	taskCalls    int
	listingCalls int
	err          error
}

func (f *fakeSource) QueryListing(ctx context.Context, q client.ListingQuery) ([]task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listingCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.listing, nil
}

func (f *fakeSource) QueryTask(ctx context.Context, key string) (*task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.taskCalls++
	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.tasks[key]
	if !ok {
		return nil, client.ErrNotFound
	}
	return t, nil
}

func TestCachedSource_TaskReadThrough(t *testing.T) {
	cache, _ := setupTestRedis(t)
	upstream := &fakeSource{tasks: map[string]*task.Task{"abc": sampleTask("abc")}}
	metrics := monitoring.NewMetrics()
	src := NewCachedSource(upstream, cache, metrics)
	ctx := context.Background()

	first, err := src.QueryTask(ctx, "abc")
	require.NoError(t, err)
	second, err := src.QueryTask(ctx, "abc")
	require.NoError(t, err)

	assert.Equal(t, 1, upstream.taskCalls)
	assert.Equal(t, first.Results, second.Results)

	snapshot := metrics.Snapshot()
	assert.Equal(t, int64(1), snapshot.CacheHits)
	assert.Equal(t, int64(1), snapshot.CacheMisses)
	require.Len(t, snapshot.Endpoints, 1)
	assert.Equal(t, "task", snapshot.Endpoints[0].Endpoint)
}

func TestCachedSource_ListingWarmsTasks(t *testing.T) {
	cache, _ := setupTestRedis(t)
	upstream := &fakeSource{listing: []task.Task{*sampleTask("a"), *sampleTask("b")}}
	src := NewCachedSource(upstream, cache, nil)
	ctx := context.Background()

	q := client.ListingQuery{HasFail: true}
	tasks, err := src.QueryListing(ctx, q)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	_, err = src.QueryListing(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 1, upstream.listingCalls)

	// served from the warmed task cache, upstream has no such task
	b, err := src.QueryTask(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "b", b.Key)
	assert.Equal(t, 0, upstream.taskCalls)

	// a different query is a different page
	_, err = src.QueryListing(ctx, client.ListingQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, upstream.listingCalls)
}

func TestCachedSource_NoCache(t *testing.T) {
	upstream := &fakeSource{tasks: map[string]*task.Task{"abc": sampleTask("abc")}}
	src := NewCachedSource(upstream, nil, nil)

	for i := 0; i < 3; i++ {
		_, err := src.QueryTask(context.Background(), "abc")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, upstream.taskCalls)
	assert.Equal(t, int64(0), src.Metrics().Snapshot().CacheMisses)
}

func TestCachedSource_UpstreamError(t *testing.T) {
	cache, _ := setupTestRedis(t)
	upstream := &fakeSource{err: errors.New("api down")}
	src := NewCachedSource(upstream, cache, nil)

	_, err := src.QueryTask(context.Background(), "abc")
	assert.EqualError(t, err, "api down")

	_, err = src.QueryListing(context.Background(), client.ListingQuery{})
	assert.EqualError(t, err, "api down")

	snapshot := src.Metrics().Snapshot()
	for _, e := range snapshot.Endpoints {
		assert.Equal(t, int64(1), e.Failures, e.Endpoint)
	}
}

func TestCachedSource_NotFoundPassesThrough(t *testing.T) {
	src := NewCachedSource(&fakeSource{}, nil, nil)
	_, err := src.QueryTask(context.Background(), "nope")
	assert.ErrorIs(t, err, client.ErrNotFound)
}

func TestCachedSource_CacheDown(t *testing.T) {
	cache, mr := setupTestRedis(t)
	upstream := &fakeSource{tasks: map[string]*task.Task{"abc": sampleTask("abc")}}
	src := NewCachedSource(upstream, cache, nil)
	mr.Close()

	tsk, err := src.QueryTask(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", tsk.Key)

	snapshot := src.Metrics().Snapshot()
	assert.Equal(t, int64(2), snapshot.CacheErrors, "failed lookup and failed save")
	assert.Equal(t, int64(0), snapshot.CacheMisses)
}
