package encoder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/distill-go/distill/core"
)

// Middleware wraps an encoder with additional behavior (logging, metrics, cache, etc.).
type Middleware func(Encoder) Encoder

// Chain wraps e with all middlewares in order (first middleware is outermost).
func Chain(e Encoder, mws ...Middleware) Encoder {
	for i := len(mws) - 1; i >= 0; i-- {
		e = mws[i](e)
	}
	return e
}

// loggingEncoder logs requests and outcomes.
type loggingEncoder struct {
	next Encoder
	logf func(format string, args ...interface{})
}

// Logging returns a middleware that logs each Encode call (model, sentence count, error).
func Logging(logf func(format string, args ...interface{})) Middleware {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return func(e Encoder) Encoder {
		return &loggingEncoder{next: e, logf: logf}
	}
}

func (l *loggingEncoder) Encode(ctx context.Context, req Request) (*Response, error) {
	l.logf("encode model=%s sentences=%d truncate=%d", req.Model, len(req.Sentences), req.TruncateDim)
	resp, err := l.next.Encode(ctx, req)
	if err != nil {
		l.logf("encode error: %v", err)
		return nil, err
	}
	l.logf("encode ok dim=%d tokens=%d", resp.Embeddings.Dim(), resp.Usage.TotalTokens)
	return resp, nil
}

// metricsEncoder counts requests, sentences, and token usage.
type metricsEncoder struct {
	next      Encoder
	requests  atomic.Uint64
	errors    atomic.Uint64
	sentences atomic.Uint64
	tokens    atomic.Uint64
}

// Metrics returns a middleware that counts requests, errors, sentences, and tokens.
// Counters are exposed via the returned MetricsCounters.
func Metrics() (Middleware, *MetricsCounters) {
	m := &metricsEncoder{}
	return func(e Encoder) Encoder {
		m.next = e
		return m
	}, &MetricsCounters{m: m}
}

// MetricsCounters provides read access to collected metrics.
type MetricsCounters struct {
	m *metricsEncoder
}

func (c *MetricsCounters) Requests() uint64  { return c.m.requests.Load() }
func (c *MetricsCounters) Errors() uint64    { return c.m.errors.Load() }
func (c *MetricsCounters) Sentences() uint64 { return c.m.sentences.Load() }
func (c *MetricsCounters) Tokens() uint64    { return c.m.tokens.Load() }

func (m *metricsEncoder) Encode(ctx context.Context, req Request) (*Response, error) {
	m.requests.Add(1)
	resp, err := m.next.Encode(ctx, req)
	if err != nil {
		m.errors.Add(1)
		return nil, err
	}
	m.sentences.Add(uint64(len(req.Sentences)))
	m.tokens.Add(uint64(resp.Usage.TotalTokens))
	return resp, nil
}

// Cache is the interface for embedding caching.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// cacheEncoder caches whole Encode responses by (model + truncate dim + sentences) key.
type cacheEncoder struct {
	next  Encoder
	cache Cache
	ttl   time.Duration
}

// CacheMiddleware returns a middleware that caches Encode responses. Useful for the
// teacher side of an evaluation, where the same sentences are embedded repeatedly.
func CacheMiddleware(cache Cache, ttl time.Duration) Middleware {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return func(e Encoder) Encoder {
		return &cacheEncoder{next: e, cache: cache, ttl: ttl}
	}
}

func cacheKey(req Request) string {
	h := sha256.New()
	h.Write([]byte(req.Model))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(req.TruncateDim)))
	for _, s := range req.Sentences {
		h.Write([]byte{0})
		h.Write([]byte(s))
	}
	return hex.EncodeToString(h.Sum(nil))
}

type cachedResponse struct {
	Embeddings core.Matrix `json:"embeddings"`
	Model      string      `json:"model"`
	Usage      Usage       `json:"usage"`
}

func (c *cacheEncoder) Encode(ctx context.Context, req Request) (*Response, error) {
	key := cacheKey(req)
	if c.cache != nil {
		if raw, ok := c.cache.Get(ctx, key); ok {
			var cached cachedResponse
			if err := json.Unmarshal(raw, &cached); err == nil {
				return &Response{Embeddings: cached.Embeddings, Model: cached.Model, Usage: cached.Usage}, nil
			}
		}
	}
	resp, err := c.next.Encode(ctx, req)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		raw, err := json.Marshal(cachedResponse{Embeddings: resp.Embeddings, Model: resp.Model, Usage: resp.Usage})
		if err == nil {
			_ = c.cache.Set(ctx, key, raw, c.ttl)
		}
	}
	return resp, nil
}

// InMemoryCache is a simple in-memory cache (for testing/single process).
type InMemoryCache struct {
	mu    sync.RWMutex
	store map[string]cacheEntry
}

type cacheEntry struct {
	val     []byte
	expires time.Time
}

func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{store: make(map[string]cacheEntry)}
}

func (m *InMemoryCache) Get(ctx context.Context, key string) ([]byte, bool) {
	m.mu.RLock()
	e, ok := m.store[key]
	m.mu.RUnlock()
	if !ok || time.Now().After(e.expires) {
		return nil, false
	}
	return e.val, true
}

func (m *InMemoryCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	m.mu.Lock()
	m.store[key] = cacheEntry{val: val, expires: time.Now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

// rateLimitEncoder limits requests per window.
type rateLimitEncoder struct {
	next   Encoder
	tokens chan struct{}
}

// RateLimit returns a middleware that allows at most limit requests per window (e.g. 100 per time.Minute).
func RateLimit(limit int, window time.Duration) Middleware {
	return func(e Encoder) Encoder {
		r := &rateLimitEncoder{next: e, tokens: make(chan struct{}, limit)}
		for i := 0; i < limit; i++ {
			r.tokens <- struct{}{}
		}
		go func() {
			tick := window / time.Duration(limit)
			if tick < time.Millisecond {
				tick = time.Millisecond
			}
			for range time.Tick(tick) {
				select {
				case r.tokens <- struct{}{}:
				default:
				}
			}
		}()
		return r
	}
}

func (r *rateLimitEncoder) Encode(ctx context.Context, req Request) (*Response, error) {
	select {
	case <-r.tokens:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return r.next.Encode(ctx, req)
}

// circuitBreakerEncoder fails fast when error rate is high.
type circuitBreakerEncoder struct {
	next      Encoder
	threshold float64
	timeout   time.Duration
	requests  atomic.Uint64
	failures  atomic.Uint64
	state     atomic.Uint32 // 0 closed, 1 open, 2 half-open
	openUntil time.Time
	mu        sync.Mutex
}

const (
	cbClosed uint32 = iota
	cbOpen
	cbHalfOpen
)

// CircuitBreaker returns a middleware that opens (fails fast) when failure rate exceeds threshold (e.g. 0.5).
// After timeout it allows one request (half-open); success closes the circuit.
func CircuitBreaker(threshold float64, timeout time.Duration) Middleware {
	return func(e Encoder) Encoder {
		return &circuitBreakerEncoder{next: e, threshold: threshold, timeout: timeout}
	}
}

func (c *circuitBreakerEncoder) Encode(ctx context.Context, req Request) (*Response, error) {
	if c.state.Load() == cbOpen {
		c.mu.Lock()
		if time.Now().Before(c.openUntil) {
			c.mu.Unlock()
			return nil, context.DeadlineExceeded
		}
		c.state.Store(cbHalfOpen)
		c.mu.Unlock()
	}
	c.requests.Add(1)
	resp, err := c.next.Encode(ctx, req)
	if err != nil {
		c.failures.Add(1)
		c.mu.Lock()
		if c.state.Load() == cbHalfOpen {
			c.state.Store(cbOpen)
			c.openUntil = time.Now().Add(c.timeout)
		} else if c.requests.Load() >= 10 {
			rate := float64(c.failures.Load()) / float64(c.requests.Load())
			if rate >= c.threshold {
				c.state.Store(cbOpen)
				c.openUntil = time.Now().Add(c.timeout)
			}
		}
		c.mu.Unlock()
		return nil, err
	}
	if c.state.Load() == cbHalfOpen {
		c.state.Store(cbClosed)
	}
	return resp, nil
}
