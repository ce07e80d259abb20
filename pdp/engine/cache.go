// pdp/engine/cache.go
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	logger "github.com/sentra-labs/sentra/logging"
	"github.com/sentra-labs/sentra/pdp/model"
)

// DefaultCacheTTL bounds how long an ALLOW verdict may be replayed.
const DefaultCacheTTL = 300 * time.Second

// SLOThresholdMs is the evaluation-latency contract for the core pipeline.
const SLOThresholdMs = 50.0

// CacheBackend is the storage boundary for cached decisions. Get returns
// (nil, nil) on a miss. No transactional guarantees are required.
type CacheBackend interface {
	Get(ctx context.Context, key string) (*model.CacheEntry, error)
	Set(ctx context.Context, key string, entry model.CacheEntry) error
}

// MemoryBackend is the default in-process CacheBackend. Reads and writes are
// independent per key; capacity pressure evicts expired entries first.
type MemoryBackend struct {
	mu       sync.RWMutex
	entries  map[string]model.CacheEntry
	capacity int
}

func NewMemoryBackend(capacity int) *MemoryBackend {
	if capacity <= 0 {
		capacity = 1024
	}
	return &MemoryBackend{
		entries:  make(map[string]model.CacheEntry),
		capacity: capacity,
	}
}

func (m *MemoryBackend) Get(_ context.Context, key string) (*model.CacheEntry, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if entry.Expired(time.Now()) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, nil
	}
	return &entry, nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, entry model.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) >= m.capacity {
		m.evictLocked()
	}
	m.entries[key] = entry
	return nil
}

// evictLocked drops expired entries; if nothing has expired it drops the
// oldest entry to make room.
func (m *MemoryBackend) evictLocked() {
	now := time.Now()
	var oldestKey string
	var oldestAt time.Time
	for key, entry := range m.entries {
		if entry.Expired(now) {
			delete(m.entries, key)
			continue
		}
		if oldestKey == "" || entry.InsertedAt.Before(oldestAt) {
			oldestKey, oldestAt = key, entry.InsertedAt
		}
	}
	if len(m.entries) >= m.capacity && oldestKey != "" {
		delete(m.entries, oldestKey)
	}
}

// CacheStats is the metrics snapshot exposed on the metrics endpoint.
type CacheStats struct {
	Hits          uint64  `json:"hits"`
	Misses        uint64  `json:"misses"`
	HitRate       float64 `json:"hit_rate"`
	AvgMs         float64 `json:"avg_ms"`
	P95Ms         float64 `json:"p95_ms"`
	P99Ms         float64 `json:"p99_ms"`
	WithinSLO     float64 `json:"within_slo"`
	WindowSamples int     `json:"window_samples"`
}

// DecisionCache wraps the whole evaluation path. Only ALLOW and
// ALLOW_REDACTED verdicts are stored; DENY results may be transient
// fail-safe outcomes and must never be replayed.
type DecisionCache struct {
	backend CacheBackend
	ttl     time.Duration

	hits   atomic.Uint64
	misses atomic.Uint64

	mu        sync.Mutex
	durations []float64
	next      int
	filled    bool
}

const durationWindowSize = 1024

func NewDecisionCache(backend CacheBackend, ttl time.Duration) *DecisionCache {
	if backend == nil {
		backend = NewMemoryBackend(1024)
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &DecisionCache{
		backend:   backend,
		ttl:       ttl,
		durations: make([]float64, durationWindowSize),
	}
}

// Key derives the deterministic cache key for a request. Hour-of-day is
// truncated so entries roll over naturally as temporal rules shift.
func (c *DecisionCache) Key(pctx *model.PolicyContext) string {
	material := fmt.Sprintf("%s|%s|%s|%s|%d|%.4f|%.4f",
		pctx.Action,
		pctx.Actor.ID,
		pctx.Device.ID,
		pctx.Device.Trust,
		int(pctx.Environment.TimeOfDayHours),
		pctx.Environment.Arousal,
		pctx.Environment.SafetyPressure,
	)
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached decision if present and fresh. Backend failures
// degrade to a miss; they never fail the evaluation.
func (c *DecisionCache) Get(ctx context.Context, key string) (*model.CachedDecision, bool) {
	entry, err := c.backend.Get(ctx, key)
	if err != nil {
		logger.Warn("Cache backend read failed, treating as miss", zap.Error(err))
		c.misses.Add(1)
		return nil, false
	}
	if entry == nil || entry.Expired(time.Now()) {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	value := entry.Value
	return &value, true
}

// Put stores a cacheable decision. DENY verdicts are dropped silently.
func (c *DecisionCache) Put(ctx context.Context, key string, value model.CachedDecision) {
	if value.Decision == model.DecisionDeny {
		return
	}
	entry := model.CacheEntry{
		KeyHash:    key,
		Value:      value,
		InsertedAt: time.Now(),
		TTL:        c.ttl,
	}
	if err := c.backend.Set(ctx, key, entry); err != nil {
		logger.Warn("Cache backend write failed, continuing uncached", zap.Error(err))
	}
}

// RecordEvaluation feeds the rolling latency window.
func (c *DecisionCache) RecordEvaluation(elapsed time.Duration) {
	ms := float64(elapsed.Microseconds()) / 1000.0
	c.mu.Lock()
	c.durations[c.next] = ms
	c.next++
	if c.next == len(c.durations) {
		c.next = 0
		c.filled = true
	}
	c.mu.Unlock()
}

// Stats reports hit rate and latency percentiles over the rolling window.
func (c *DecisionCache) Stats() CacheStats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	stats := CacheStats{Hits: hits, Misses: misses}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}

	c.mu.Lock()
	count := c.next
	if c.filled {
		count = len(c.durations)
	}
	window := make([]float64, count)
	copy(window, c.durations[:count])
	c.mu.Unlock()

	stats.WindowSamples = count
	if count == 0 {
		return stats
	}

	sort.Float64s(window)
	var sum float64
	within := 0
	for _, ms := range window {
		sum += ms
		if ms <= SLOThresholdMs {
			within++
		}
	}
	stats.AvgMs = sum / float64(count)
	stats.P95Ms = percentile(window, 0.95)
	stats.P99Ms = percentile(window, 0.99)
	stats.WithinSLO = float64(within) / float64(count)
	return stats
}

// percentile expects a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
