// Package embedding implements the Embedding Engine (C4): a fixed-dimension
// feature vector per opportunity, a remote vector store with local
// ring-buffer fallback for similarity search, and a per-opportunity cache.
// The cosine-similarity math and cache/fallback shape are grounded on the
// teacher's caching.Engine (semantic prompt cache); the bounded ring buffer
// is grounded on intelligence.go's fixed-size traffic history structures.
package embedding

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"math"
	"sync"
	"time"

	"github.com/edgearb/edge/internal/cache"
	"github.com/edgearb/edge/internal/types"
)

// VectorStore is the remote similarity-search backend. A nil store (or any
// error from it) makes the engine fall back to the local ring buffer.
type VectorStore interface {
	Upsert(ctx context.Context, id string, vector []float64) error
	Query(ctx context.Context, vector []float64, topK int) ([]Match, error)
}

// Match is one similarity-search hit.
type Match struct {
	ID         string
	Similarity float64
}

// Metrics are the counters required by §4.4.
type Metrics struct {
	mu               sync.Mutex
	TotalEmbeddings  int64
	Searches         int64
	RemoteHits       int64
	FallbackHits     int64
	CacheHits        int64
	CacheMisses      int64
	avgEmbedLatency  float64
	avgSearchLatency float64
}

func (m *Metrics) recordEmbed(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalEmbeddings++
	ms := float64(d.Microseconds()) / 1000.0
	m.avgEmbedLatency = ewma(m.avgEmbedLatency, ms)
}

func (m *Metrics) recordSearch(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Searches++
	ms := float64(d.Microseconds()) / 1000.0
	m.avgSearchLatency = ewma(m.avgSearchLatency, ms)
}

func ewma(prev, sample float64) float64 {
	if prev == 0 {
		return sample
	}
	return 0.3*sample + 0.7*prev
}

// Snapshot returns a read consistent copy of the counters.
func (m *Metrics) Snapshot() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Metrics{
		TotalEmbeddings: m.TotalEmbeddings,
		Searches:        m.Searches,
		RemoteHits:      m.RemoteHits,
		FallbackHits:    m.FallbackHits,
		CacheHits:       m.CacheHits,
		CacheMisses:     m.CacheMisses,
	}
}

// ringEntry is one slot of the local fallback buffer.
type ringEntry struct {
	id     string
	vector []float64
}

// Engine produces and searches opportunity embeddings.
type Engine struct {
	dim         int
	threshold   float64
	cacheClient *cache.Client
	cacheTTL    time.Duration
	store       VectorStore

	ringMu   sync.Mutex
	ring     []ringEntry
	ringSize int
	ringNext int

	metrics Metrics
}

// New builds an Embedding Engine.
func New(dim int, threshold float64, cacheClient *cache.Client, cacheTTL time.Duration, localFallbackSize int, store VectorStore) *Engine {
	if dim <= 0 {
		dim = 384
	}
	if threshold <= 0 {
		threshold = 0.7
	}
	if localFallbackSize <= 0 {
		localFallbackSize = 500
	}
	return &Engine{
		dim:         dim,
		threshold:   threshold,
		cacheClient: cacheClient,
		cacheTTL:    cacheTTL,
		store:       store,
		ring:        make([]ringEntry, 0, localFallbackSize),
		ringSize:    localFallbackSize,
	}
}

// Embed produces the fixed-dimension, L2-normalized feature vector for an
// opportunity per §4.4's feature list.
func (e *Engine) Embed(opp *types.ArbitrageOpportunity) []float64 {
	start := time.Now()
	defer e.metrics.recordEmbed(time.Since(start))

	features := []float64{
		opp.RateDifference,
		riskScore(opp),
	}
	features = append(features, oneHotVenuePair(opp.LongVenue, opp.ShortVenue)...)
	features = append(features, float64(stableHashBucket(opp.Pair, 8)))
	features = append(features, timeOfDayFraction(opp.DetectedAt))
	features = append(features, float64(int(opp.DetectedAt.Weekday())))
	features = append(features, volatilityProxy(opp))
	features = append(features, timeSensitivityFactor(opp))

	vec := fitToDim(features, e.dim)
	return l2Normalize(vec)
}

// EmbedAndStore embeds an opportunity, caches it by id, and best-effort
// upserts it to the remote store (and always to the local ring buffer, so
// a remote outage still leaves recent embeddings searchable).
func (e *Engine) EmbedAndStore(ctx context.Context, opp *types.ArbitrageOpportunity) []float64 {
	vec := e.Embed(opp)

	e.ringPush(opp.ID, vec)

	if e.cacheClient != nil {
		if body, err := json.Marshal(vec); err == nil {
			_ = e.cacheClient.Set(ctx, cache.EmbeddingKey(opp.ID), body, e.cacheTTL)
		}
	}
	if e.store != nil {
		_ = e.store.Upsert(ctx, opp.ID, vec)
	}
	return vec
}

// CachedEmbedding looks up a previously stored embedding by opportunity id.
func (e *Engine) CachedEmbedding(ctx context.Context, opportunityID string) ([]float64, bool) {
	if e.cacheClient == nil {
		e.metrics.mu.Lock()
		e.metrics.CacheMisses++
		e.metrics.mu.Unlock()
		return nil, false
	}
	body, found, err := e.cacheClient.Get(ctx, cache.EmbeddingKey(opportunityID))
	e.metrics.mu.Lock()
	if err == nil && found {
		e.metrics.CacheHits++
	} else {
		e.metrics.CacheMisses++
	}
	e.metrics.mu.Unlock()
	if err != nil || !found {
		return nil, false
	}
	var vec []float64
	if err := json.Unmarshal(body, &vec); err != nil {
		return nil, false
	}
	return vec, true
}

// Search performs a cosine-similarity nearest-neighbor query, preferring the
// remote store and falling back to the local ring buffer on any error.
func (e *Engine) Search(ctx context.Context, vector []float64, topK int) []Match {
	start := time.Now()
	defer e.metrics.recordSearch(time.Since(start))

	if e.store != nil {
		if matches, err := e.store.Query(ctx, vector, topK); err == nil {
			filtered := filterByThreshold(matches, e.threshold)
			e.metrics.mu.Lock()
			e.metrics.RemoteHits++
			e.metrics.mu.Unlock()
			return filtered
		}
	}

	e.metrics.mu.Lock()
	e.metrics.FallbackHits++
	e.metrics.mu.Unlock()
	return e.localSearch(vector, topK)
}

func (e *Engine) localSearch(vector []float64, topK int) []Match {
	e.ringMu.Lock()
	entries := make([]ringEntry, len(e.ring))
	copy(entries, e.ring)
	e.ringMu.Unlock()

	var matches []Match
	for _, entry := range entries {
		sim := cosineSimilarity(vector, entry.vector)
		if sim >= e.threshold {
			matches = append(matches, Match{ID: entry.id, Similarity: sim})
		}
	}
	sortMatchesDescending(matches)
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}

func (e *Engine) ringPush(id string, vector []float64) {
	e.ringMu.Lock()
	defer e.ringMu.Unlock()
	entry := ringEntry{id: id, vector: vector}
	if len(e.ring) < e.ringSize {
		e.ring = append(e.ring, entry)
		return
	}
	e.ring[e.ringNext] = entry
	e.ringNext = (e.ringNext + 1) % e.ringSize
}

// Metrics returns a snapshot of the engine's counters.
func (e *Engine) Metrics() Metrics { return e.metrics.Snapshot() }

func filterByThreshold(matches []Match, threshold float64) []Match {
	out := matches[:0]
	for _, m := range matches {
		if m.Similarity >= threshold {
			out = append(out, m)
		}
	}
	return out
}

func sortMatchesDescending(matches []Match) {
	for i := 1; i < len(matches); i++ {
		j := i
		for j > 0 && matches[j-1].Similarity < matches[j].Similarity {
			matches[j-1], matches[j] = matches[j], matches[j-1]
			j--
		}
	}
}

// cosineSimilarity is grounded verbatim on the teacher's semantic-cache
// similarity function.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func l2Normalize(v []float64) []float64 {
	var sumSq float64
	for _, x := range v {
		sumSq += x * x
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return v
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

func fitToDim(v []float64, dim int) []float64 {
	if len(v) == dim {
		return v
	}
	out := make([]float64, dim)
	copy(out, v)
	return out
}

func oneHotVenuePair(long, short string) []float64 {
	venues := []string{"binance", "bybit", "okx", "coinbase", "kraken"}
	out := make([]float64, len(venues)*2)
	for i, v := range venues {
		if v == long {
			out[i] = 1
		}
		if v == short {
			out[len(venues)+i] = 1
		}
	}
	return out
}

func stableHashBucket(s string, buckets int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32()) % buckets
}

func timeOfDayFraction(t time.Time) float64 {
	return float64(t.Hour()*3600+t.Minute()*60+t.Second()) / 86400.0
}

func riskScore(opp *types.ArbitrageOpportunity) float64 {
	return math.Abs(opp.NetRateDiff) * (1 - opp.Confidence)
}

func volatilityProxy(opp *types.ArbitrageOpportunity) float64 {
	if opp.EntryPrice == 0 {
		return 0
	}
	return math.Abs(opp.TakeProfit-opp.StopLoss) / opp.EntryPrice
}

func timeSensitivityFactor(opp *types.ArbitrageOpportunity) float64 {
	if opp.Expiry == nil {
		return 0
	}
	remaining := time.Until(*opp.Expiry)
	if remaining <= 0 {
		return 1
	}
	total := opp.Expiry.Sub(opp.DetectedAt)
	if total <= 0 {
		return 0
	}
	return 1 - (remaining.Seconds() / total.Seconds())
}
