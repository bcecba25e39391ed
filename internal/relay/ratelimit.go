package relay

import (
	"sync"
	"time"
)

// TokenBucket is a simple token bucket limiter.
type TokenBucket struct {
	mu           sync.Mutex
	tokens       int
	maxTokens    int
	refillRate   int
	lastRefill   time.Time
	refillPeriod time.Duration
}

// NewTokenBucket creates a full bucket refilling refillRate tokens every
// refillPeriod.
func NewTokenBucket(maxTokens, refillRate int, refillPeriod time.Duration) *TokenBucket {
	return &TokenBucket{
		tokens:       maxTokens,
		maxTokens:    maxTokens,
		refillRate:   refillRate,
		lastRefill:   time.Now(),
		refillPeriod: refillPeriod,
	}
}

// Allow consumes a token if one is available.
func (b *TokenBucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	refills := int(now.Sub(b.lastRefill) / b.refillPeriod)
	if refills > 0 {
		b.tokens += refills * b.refillRate
		if b.tokens > b.maxTokens {
			b.tokens = b.maxTokens
		}
		b.lastRefill = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

// RateGate enforces per-key limits (recipient for withdrawal-shaped
// requests, caller identity otherwise) with a coarse global cap as a
// backstop against total flood. Sits above the pipeline: gated requests
// never reach validation.
type RateGate struct {
	mu      sync.Mutex
	perKey  map[string]*TokenBucket
	global  *TokenBucket
	maxTok  int
	rate    int
	period  time.Duration
	maxKeys int
}

// NewRateGate builds a gate with per-key buckets of perKeyTokens and a
// shared global bucket of globalTokens.
func NewRateGate(perKeyTokens, globalTokens int, period time.Duration) *RateGate {
	return &RateGate{
		perKey:  make(map[string]*TokenBucket),
		global:  NewTokenBucket(globalTokens, globalTokens, period),
		maxTok:  perKeyTokens,
		rate:    perKeyTokens,
		period:  period,
		maxKeys: 10000,
	}
}

// Allow checks the global cap first, then the key's own bucket.
func (g *RateGate) Allow(key string) bool {
	if !g.global.Allow() {
		return false
	}
	g.mu.Lock()
	b, ok := g.perKey[key]
	if !ok {
		// Bounded key set; a full table drops the oldest-free slot by
		// resetting. Coarse, but the global cap already holds the line.
		if len(g.perKey) >= g.maxKeys {
			g.perKey = make(map[string]*TokenBucket)
		}
		b = NewTokenBucket(g.maxTok, g.rate, g.period)
		g.perKey[key] = b
	}
	g.mu.Unlock()
	return b.Allow()
}
