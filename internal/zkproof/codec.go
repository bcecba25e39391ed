// Package zkproof implements the fixed-layout byte codec for Groth16 proofs
// and a local verify oracle against the remote verifier's pairing
// convention.
//
// Byte layout (big-endian 32-byte coordinates, 256 bytes total):
//
//	  0- 31  A.x
//	 32- 63  A.y
//	 64- 95  B.x, component 1
//	 96-127  B.x, component 0
//	128-159  B.y, component 1
//	160-191  B.y, component 0
//	192-223  C.x
//	224-255  C.y
//
// The extension-field component ordering (imaginary first) and the absence
// of A-negation at the codec level are pinned to the pairing-precompile
// convention that bn256.Marshal implements; the negation the pairing
// equation needs happens inside the verifier. SelfCheck validates the whole
// contract against the curve generators at startup and must never be
// re-derived per call.
package zkproof

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto/bn256"
)

const (
	// ProofSize is the exact serialized proof length.
	ProofSize = 256

	g1Size = 64
	g2Size = 128
)

// ErrInvalidLength is returned by Deserialize for anything but exactly
// ProofSize bytes. Input is never truncated or padded.
var ErrInvalidLength = errors.New("zkproof: proof must be exactly 256 bytes")

// Proof is a Groth16 proof: A, C in G1 and B in G2.
type Proof struct {
	A *bn256.G1
	B *bn256.G2
	C *bn256.G1
}

// Serialize encodes a proof into the fixed 256-byte layout.
func Serialize(p *Proof) ([]byte, error) {
	if p == nil || p.A == nil || p.B == nil || p.C == nil {
		return nil, errors.New("zkproof: incomplete proof")
	}
	out := make([]byte, 0, ProofSize)
	out = append(out, p.A.Marshal()...)
	out = append(out, p.B.Marshal()...)
	out = append(out, p.C.Marshal()...)
	if len(out) != ProofSize {
		return nil, fmt.Errorf("zkproof: marshaled %d bytes, want %d", len(out), ProofSize)
	}
	return out, nil
}

// Deserialize decodes the fixed 256-byte layout, validating that every
// point is on its curve.
func Deserialize(b []byte) (*Proof, error) {
	if len(b) != ProofSize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLength, len(b))
	}
	p := &Proof{A: new(bn256.G1), B: new(bn256.G2), C: new(bn256.G1)}
	if _, err := p.A.Unmarshal(b[0:g1Size]); err != nil {
		return nil, fmt.Errorf("zkproof: point A: %w", err)
	}
	if _, err := p.B.Unmarshal(b[g1Size : g1Size+g2Size]); err != nil {
		return nil, fmt.Errorf("zkproof: point B: %w", err)
	}
	if _, err := p.C.Unmarshal(b[g1Size+g2Size:]); err != nil {
		return nil, fmt.Errorf("zkproof: point C: %w", err)
	}
	return p, nil
}

// Known-generator serialization of a proof built from the G1 and G2 base
// points. Pins both the coordinate byte order and the G2 component order.
const generatorProofHex = "" +
	// A = G1 generator (1, 2)
	"0000000000000000000000000000000000000000000000000000000000000001" +
	"0000000000000000000000000000000000000000000000000000000000000002" +
	// B = G2 generator, x then y, imaginary component first
	"198e9393920d483a7260bfb731fb5d25f1aa493335a9e71297e485b7aef312c2" +
	"1800deef121f1e76426a00665e5c4479674322d4f75edadd46debd5cd992f6ed" +
	"090689d0585ff075ec9e99ad690c3395bc4b313370b38ef355acdadcd122975b" +
	"12c85ea5db8c6deb4aab71808dcb408fe3d1e7690c43d37b4ce6cc0166fa7daa" +
	// C = G1 generator
	"0000000000000000000000000000000000000000000000000000000000000001" +
	"0000000000000000000000000000000000000000000000000000000000000002"

// SelfCheck validates the codec byte contract against the curve generators.
// Run once at startup; a failure means this build disagrees with the remote
// verifier's byte layout and must not serve traffic.
func SelfCheck() error {
	one := big.NewInt(1)
	p := &Proof{
		A: new(bn256.G1).ScalarBaseMult(one),
		B: new(bn256.G2).ScalarBaseMult(one),
		C: new(bn256.G1).ScalarBaseMult(one),
	}
	got, err := Serialize(p)
	if err != nil {
		return err
	}
	want, err := hex.DecodeString(generatorProofHex)
	if err != nil {
		return err
	}
	if !bytes.Equal(got, want) {
		return errors.New("zkproof: generator vector mismatch, byte contract broken")
	}
	back, err := Deserialize(got)
	if err != nil {
		return err
	}
	again, err := Serialize(back)
	if err != nil {
		return err
	}
	if !bytes.Equal(got, again) {
		return errors.New("zkproof: serialize/deserialize not inverse on generator vector")
	}
	return nil
}
