// Package hashing implements the fixed-arity hash used for commitments,
// nullifier hashes and Merkle nodes: a MiMC sponge over the BN254 scalar
// field, absorbing canonical 32-byte element encodings.
//
// The engine is an explicit value constructed once at process start and
// passed into every component that needs it. The active parameter set is
// pinned; construction refuses an unrecognized one, because two independent
// parameterizations of the same named hash function do not interoperate and
// the mismatch is silent until funds are stuck.
package hashing

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"

	"relayer-backend/internal/field"
)

// ParamSetMiMCBN254 is the only parameter set this build understands:
// gnark-crypto's native MiMC instantiation over the BN254 scalar field.
const ParamSetMiMCBN254 = "mimc-bn254-v1"

var (
	// ErrNotInitialized is returned when hashing is attempted through a
	// zero-value or nil engine.
	ErrNotInitialized = errors.New("hashing: engine not initialized")

	// ErrUnknownParameterSet is returned by New for a parameter set this
	// build was not pinned against.
	ErrUnknownParameterSet = errors.New("hashing: unrecognized hash parameter set")
)

// Engine is a deterministic, side-effect-free fixed-arity hash.
// Safe for concurrent use; every call runs on a fresh sponge state.
type Engine struct {
	params string
	ready  bool
}

// New constructs an engine for the given parameter set.
func New(paramSet string) (*Engine, error) {
	if paramSet != ParamSetMiMCBN254 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownParameterSet, paramSet)
	}
	return &Engine{params: paramSet, ready: true}, nil
}

// ParameterSet reports which parameter set is active.
func (e *Engine) ParameterSet() string {
	if e == nil {
		return ""
	}
	return e.params
}

func (e *Engine) hash(elems ...fr.Element) (fr.Element, error) {
	var out fr.Element
	if e == nil || !e.ready {
		return out, ErrNotInitialized
	}
	h := mimc.NewMiMC()
	for i := range elems {
		enc := elems[i].Bytes()
		if _, err := h.Write(enc[:]); err != nil {
			return out, fmt.Errorf("hashing: absorb element %d: %w", i, err)
		}
	}
	return field.Decode(h.Sum(nil))
}

// Hash2 hashes two field elements.
func (e *Engine) Hash2(a, b fr.Element) (fr.Element, error) {
	return e.hash(a, b)
}

// Hash4 hashes four field elements.
func (e *Engine) Hash4(a, b, c, d fr.Element) (fr.Element, error) {
	return e.hash(a, b, c, d)
}
