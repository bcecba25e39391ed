package hashing

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"relayer-backend/internal/field"
)

// TestVector is one circuit-produced input/output pair. Inputs and the
// expected output are decimal-encoded field elements, the same format the
// circuit tooling emits.
type TestVector struct {
	Inputs   []string `json:"inputs"`
	Expected string   `json:"expected"`
}

// VectorFile is the on-disk shape of a vector bundle. The parameter set
// recorded in the file must match the engine's; a bundle produced for a
// different parameterization proves nothing.
type VectorFile struct {
	ParameterSet string       `json:"parameterSet"`
	Vectors      []TestVector `json:"vectors"`
}

// LoadVectorFile reads a circuit-produced vector bundle from disk.
func LoadVectorFile(path string) (*VectorFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("hashing: read vector file: %w", err)
	}
	var vf VectorFile
	if err := json.Unmarshal(raw, &vf); err != nil {
		return nil, fmt.Errorf("hashing: parse vector file: %w", err)
	}
	return &vf, nil
}

// Verify checks every vector byte-for-byte against the engine's own output.
// Run at startup: a single mismatch means this process and the circuit
// disagree on the hash and the service must not come up.
func (e *Engine) Verify(vf *VectorFile) error {
	if e == nil || !e.ready {
		return ErrNotInitialized
	}
	if vf.ParameterSet != e.params {
		return fmt.Errorf("%w: vector bundle is for %q, engine runs %q",
			ErrUnknownParameterSet, vf.ParameterSet, e.params)
	}
	for i, v := range vf.Vectors {
		elems := make([]fr.Element, 0, len(v.Inputs))
		for _, in := range v.Inputs {
			el, err := field.FromDecimalString(in)
			if err != nil {
				return fmt.Errorf("hashing: vector %d input: %w", i, err)
			}
			elems = append(elems, el)
		}
		got, err := e.hash(elems...)
		if err != nil {
			return fmt.Errorf("hashing: vector %d: %w", i, err)
		}
		want, err := field.FromDecimalString(v.Expected)
		if err != nil {
			return fmt.Errorf("hashing: vector %d expected value: %w", i, err)
		}
		if !got.Equal(&want) {
			return fmt.Errorf("hashing: vector %d mismatch: got %s, circuit expects %s",
				i, field.ToDecimalString(got), v.Expected)
		}
	}
	return nil
}
