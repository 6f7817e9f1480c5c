package monitoring

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// maxLatencySamples bounds the per-endpoint latency window
const maxLatencySamples = 1000

// Metrics tracks calls to the remote API and the response cache
type Metrics struct {
	mu sync.RWMutex

	// Per endpoint call metrics ("listing", "task", "upload")
	endpoints map[string]*endpointStats

	// Cache metrics
	cacheHits   int64
	cacheMisses int64
	cacheErrors int64

	// Result groups rendered
	groupsComputed int64

	startTime time.Time
}

type endpointStats struct {
	calls     int64
	failures  int64
	latencies []time.Duration
	lastError string
	lastCall  time.Time
}

// EndpointSnapshot is a point-in-time view of one endpoint's calls
type EndpointSnapshot struct {
	Endpoint   string
	Calls      int64
	Failures   int64
	AvgLatency time.Duration
	P95Latency time.Duration
	P99Latency time.Duration
	LastError  string
	LastCall   time.Time
}

// MetricsSnapshot provides a point-in-time view of all metrics
type MetricsSnapshot struct {
	Endpoints []EndpointSnapshot

	CacheHits    int64
	CacheMisses  int64
	CacheErrors  int64
	CacheHitRate float64 // 0..1

	GroupsComputed int64

	Uptime      time.Duration
	LastUpdated time.Time
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		endpoints: make(map[string]*endpointStats),
		startTime: time.Now(),
	}
}

// RecordCall records one API call and its outcome
func (m *Metrics) RecordCall(endpoint string, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.endpoints[endpoint]
	if !ok {
		s = &endpointStats{}
		m.endpoints[endpoint] = s
	}
	s.calls++
	s.lastCall = time.Now()
	if err != nil {
		s.failures++
		s.lastError = err.Error()
	}
	s.latencies = append(s.latencies, duration)
	// Keep only the most recent samples
	if len(s.latencies) > maxLatencySamples {
		s.latencies = s.latencies[len(s.latencies)-maxLatencySamples:]
	}
}

// RecordCacheHit records a response served from the cache
func (m *Metrics) RecordCacheHit() {
	atomic.AddInt64(&m.cacheHits, 1)
}

// RecordCacheMiss records a lookup that had to go to the API
func (m *Metrics) RecordCacheMiss() {
	atomic.AddInt64(&m.cacheMisses, 1)
}

// RecordCacheError records a cache backend failure
func (m *Metrics) RecordCacheError() {
	atomic.AddInt64(&m.cacheErrors, 1)
}

// RecordGroups records how many result groups were computed for a response
func (m *Metrics) RecordGroups(n int) {
	atomic.AddInt64(&m.groupsComputed, int64(n))
}

// percentiles returns avg, p95 and p99 of the samples
func percentiles(samples []time.Duration) (avg, p95, p99 time.Duration) {
	if len(samples) == 0 {
		return 0, 0, 0
	}

	sorted := make([]time.Duration, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	avg = sum / time.Duration(len(sorted))
	p95 = sorted[rank(len(sorted), 0.95)]
	p99 = sorted[rank(len(sorted), 0.99)]
	return avg, p95, p99
}

// rank is the nearest-rank index of quantile q in n sorted samples
func rank(n int, q float64) int {
	i := int(q*float64(n)+0.999999) - 1
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// Snapshot returns a point-in-time snapshot of all metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.endpoints))
	for name := range m.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)

	endpoints := make([]EndpointSnapshot, 0, len(names))
	for _, name := range names {
		s := m.endpoints[name]
		avg, p95, p99 := percentiles(s.latencies)
		endpoints = append(endpoints, EndpointSnapshot{
			Endpoint:   name,
			Calls:      s.calls,
			Failures:   s.failures,
			AvgLatency: avg,
			P95Latency: p95,
			P99Latency: p99,
			LastError:  s.lastError,
			LastCall:   s.lastCall,
		})
	}

	hits := atomic.LoadInt64(&m.cacheHits)
	misses := atomic.LoadInt64(&m.cacheMisses)
	var hitRate float64
	if hits+misses > 0 {
		hitRate = float64(hits) / float64(hits+misses)
	}

	return MetricsSnapshot{
		Endpoints:      endpoints,
		CacheHits:      hits,
		CacheMisses:    misses,
		CacheErrors:    atomic.LoadInt64(&m.cacheErrors),
		CacheHitRate:   hitRate,
		GroupsComputed: atomic.LoadInt64(&m.groupsComputed),
		Uptime:         time.Since(m.startTime),
		LastUpdated:    time.Now(),
	}
}

// Reset clears all metrics (useful for testing)
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.endpoints = make(map[string]*endpointStats)
	atomic.StoreInt64(&m.cacheHits, 0)
	atomic.StoreInt64(&m.cacheMisses, 0)
	atomic.StoreInt64(&m.cacheErrors, 0)
	atomic.StoreInt64(&m.groupsComputed, 0)
	m.startTime = time.Now()
}
