// Package nullifier provides the positive-only spent-nullifier cache.
//
// The cache may only ever assert "spent". "Unspent" is not a cacheable
// fact: it can change at any moment, and a stale negative would let a spent
// note look spendable. Lookup therefore answers spent-or-unknown, never
// unspent. Entries are write-once with no expiry; spent status is monotone,
// so racy concurrent reads and writes are harmless.
package nullifier

import (
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"relayer-backend/internal/field"
)

// Cache is the double-spend cache consulted before the ledger registry.
type Cache interface {
	// Lookup returns (true, true) when the nullifier is known spent and
	// (false, false) when the cache has no answer and the ledger must be
	// consulted. (false, true) is never returned.
	Lookup(nullifierHash fr.Element) (spent bool, known bool)

	// MarkSpent records a spent nullifier. Idempotent.
	MarkSpent(nullifierHash fr.Element)

	// IsAvailable reports whether the cache is operational.
	IsAvailable() bool
}

// MemoryCache is an in-process keyed set. See DESIGN.md: the contract is a
// process-local positive set, so a plain locked map serves it.
type MemoryCache struct {
	mu    sync.RWMutex
	spent map[[field.Size]byte]struct{}
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{spent: make(map[[field.Size]byte]struct{})}
}

// Lookup implements Cache.
func (c *MemoryCache) Lookup(nullifierHash fr.Element) (bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.spent[field.Encode(nullifierHash)]; ok {
		return true, true
	}
	return false, false
}

// MarkSpent implements Cache.
func (c *MemoryCache) MarkSpent(nullifierHash fr.Element) {
	c.mu.Lock()
	c.spent[field.Encode(nullifierHash)] = struct{}{}
	c.mu.Unlock()
}

// IsAvailable implements Cache.
func (c *MemoryCache) IsAvailable() bool { return true }

// Len returns the number of cached spent nullifiers.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.spent)
}

// Disabled is the no-op cache: every lookup defers to the ledger and marks
// are accepted silently.
type Disabled struct{}

// Lookup implements Cache.
func (Disabled) Lookup(fr.Element) (bool, bool) { return false, false }

// MarkSpent implements Cache.
func (Disabled) MarkSpent(fr.Element) {}

// IsAvailable implements Cache.
func (Disabled) IsAvailable() bool { return false }
