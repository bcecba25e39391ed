// Package field provides canonical scalar-field arithmetic for the proof
// system (BN254). Every value that crosses a serialization boundary must be
// a canonical element in [0, Modulus); decoding refuses anything else.
package field

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Size is the byte length of a big-endian encoded field element.
const Size = fr.Bytes

// ErrOutOfRange is returned when a byte encoding represents an integer
// >= the field modulus. Callers must reject such inputs rather than reduce
// them: silent reduction would allow a second encoding of the same logical
// value.
type ErrOutOfRange struct {
	Value string
}

func (e *ErrOutOfRange) Error() string {
	return fmt.Sprintf("field: value %s is not a canonical field element", e.Value)
}

// Modulus returns the scalar field order as a fresh big.Int.
func Modulus() *big.Int {
	return fr.Modulus()
}

// Decode parses a big-endian 32-byte encoding into a field element.
// Fails with ErrOutOfRange if the encoded integer is >= the modulus,
// and with a length error if the input is not exactly Size bytes.
func Decode(b []byte) (fr.Element, error) {
	var e fr.Element
	if len(b) != Size {
		return e, fmt.Errorf("field: invalid encoding length %d, want %d", len(b), Size)
	}
	if err := e.SetBytesCanonical(b); err != nil {
		return e, &ErrOutOfRange{Value: fmt.Sprintf("0x%x", b)}
	}
	return e, nil
}

// Encode returns the canonical big-endian 32-byte encoding of e.
func Encode(e fr.Element) [Size]byte {
	return e.Bytes()
}

// IsCanonical reports whether the big-endian bytes b encode an integer
// strictly below the modulus.
func IsCanonical(b []byte) bool {
	if len(b) != Size {
		return false
	}
	var e fr.Element
	return e.SetBytesCanonical(b) == nil
}

// Reduce maps an arbitrary integer into the field by modular reduction.
// Only for deriving elements from external material (hashes, addresses);
// never for accepting wire encodings.
func Reduce(x *big.Int) fr.Element {
	var e fr.Element
	e.SetBigInt(new(big.Int).Mod(x, fr.Modulus()))
	return e
}

// Random draws a uniformly distributed field element by rejection sampling
// from crypto/rand, discarding out-of-range draws so the distribution stays
// uniform over [0, Modulus).
func Random() (fr.Element, error) {
	var e fr.Element
	buf := make([]byte, Size)
	for {
		if _, err := rand.Read(buf); err != nil {
			return e, fmt.Errorf("field: randomness source failed: %w", err)
		}
		if err := e.SetBytesCanonical(buf); err == nil {
			return e, nil
		}
	}
}

// FromUint64 lifts a machine integer into the field.
func FromUint64(v uint64) fr.Element {
	var e fr.Element
	e.SetUint64(v)
	return e
}

// FromBig lifts a non-negative big.Int into the field. Fails with
// ErrOutOfRange if x is negative or >= the modulus.
func FromBig(x *big.Int) (fr.Element, error) {
	var e fr.Element
	if x.Sign() < 0 || x.Cmp(fr.Modulus()) >= 0 {
		return e, &ErrOutOfRange{Value: x.String()}
	}
	e.SetBigInt(x)
	return e, nil
}

// ToBig returns the integer value of e.
func ToBig(e fr.Element) *big.Int {
	return e.BigInt(new(big.Int))
}

// FromDecimalString parses a base-10 canonical field element, the format
// used for note storage. Fails on malformed digits or out-of-range values.
func FromDecimalString(s string) (fr.Element, error) {
	var e fr.Element
	x, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return e, fmt.Errorf("field: invalid decimal string %q", s)
	}
	return FromBig(x)
}

// ToDecimalString renders e as a base-10 string.
func ToDecimalString(e fr.Element) string {
	return ToBig(e).String()
}
