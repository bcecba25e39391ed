// Package ledger is the narrow boundary to the remote ledger that executes
// transfers and owns the canonical commitment tree and nullifier registry.
// Consumed, not implemented: this package only reads accounts, derives
// addresses, and submits pre-built transactions.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// Client is the read/submit interface the relay pipeline depends on.
type Client interface {
	// SubmitTransaction submits a serialized transaction and returns the
	// ledger's submission reference.
	SubmitTransaction(ctx context.Context, tx []byte) (string, error)

	// GetAccount fetches raw account data. A nil slice with a nil error
	// means the account does not exist.
	GetAccount(ctx context.Context, address string) ([]byte, error)

	// IsNullifierSpent checks the nullifier registry: the marker account's
	// existence means the nullifier is spent.
	IsNullifierSpent(ctx context.Context, programScope string, nullifierHash [32]byte) (bool, error)
}

// DeriveAddress computes the deterministic address for a set of seeds under
// a program scope. Used to locate the nullifier marker, asset vault, and
// verification-key accounts without storing them.
func DeriveAddress(seeds [][]byte, programScope string) string {
	h := sha256.New()
	h.Write([]byte(programScope))
	for _, s := range seeds {
		h.Write(s)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// NullifierMarkerAddress derives the registry address for a nullifier hash.
func NullifierMarkerAddress(programScope string, nullifierHash [32]byte) string {
	return DeriveAddress([][]byte{[]byte("nullifier"), nullifierHash[:]}, programScope)
}

// VaultAddress derives the asset vault address for an asset id.
func VaultAddress(programScope string, assetID [32]byte) string {
	return DeriveAddress([][]byte{[]byte("vault"), assetID[:]}, programScope)
}
