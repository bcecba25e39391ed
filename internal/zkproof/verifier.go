package zkproof

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/crypto/bn256"

	"relayer-backend/internal/field"
)

// Verifier is the verify oracle the pipeline consumes. Implementations
// must be deterministic and safe for concurrent use.
type Verifier interface {
	Verify(proof *Proof, publicInputs []fr.Element) (bool, error)
}

// VerifyingKey holds the Groth16 verification key for the withdrawal
// circuit.
type VerifyingKey struct {
	Alpha *bn256.G1
	Beta  *bn256.G2
	Gamma *bn256.G2
	Delta *bn256.G2
	IC    []*bn256.G1
}

// vkFile is the on-disk verification key: hex-encoded marshaled points.
type vkFile struct {
	Alpha string   `json:"alpha"`
	Beta  string   `json:"beta"`
	Gamma string   `json:"gamma"`
	Delta string   `json:"delta"`
	IC    []string `json:"ic"`
}

func parseG1(s string) (*bn256.G1, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, err
	}
	if len(raw) != g1Size {
		return nil, fmt.Errorf("G1 point is %d bytes, want %d", len(raw), g1Size)
	}
	p := new(bn256.G1)
	if _, err := p.Unmarshal(raw); err != nil {
		return nil, err
	}
	return p, nil
}

func parseG2(s string) (*bn256.G2, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, err
	}
	if len(raw) != g2Size {
		return nil, fmt.Errorf("G2 point is %d bytes, want %d", len(raw), g2Size)
	}
	p := new(bn256.G2)
	if _, err := p.Unmarshal(raw); err != nil {
		return nil, err
	}
	return p, nil
}

// LoadVerifyingKey reads the verification key file. A load failure is fatal
// at startup; the caller must abort rather than degrade silently.
func LoadVerifyingKey(path string) (*VerifyingKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("zkproof: read verification key: %w", err)
	}
	var f vkFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("zkproof: parse verification key: %w", err)
	}
	vk := &VerifyingKey{}
	if vk.Alpha, err = parseG1(f.Alpha); err != nil {
		return nil, fmt.Errorf("zkproof: alpha: %w", err)
	}
	if vk.Beta, err = parseG2(f.Beta); err != nil {
		return nil, fmt.Errorf("zkproof: beta: %w", err)
	}
	if vk.Gamma, err = parseG2(f.Gamma); err != nil {
		return nil, fmt.Errorf("zkproof: gamma: %w", err)
	}
	if vk.Delta, err = parseG2(f.Delta); err != nil {
		return nil, fmt.Errorf("zkproof: delta: %w", err)
	}
	if len(f.IC) < 2 {
		return nil, errors.New("zkproof: verification key needs at least 2 IC points")
	}
	vk.IC = make([]*bn256.G1, len(f.IC))
	for i, s := range f.IC {
		if vk.IC[i], err = parseG1(s); err != nil {
			return nil, fmt.Errorf("zkproof: ic[%d]: %w", i, err)
		}
	}
	return vk, nil
}

// Groth16Verifier checks proofs with a pairing equation against a loaded
// verification key. Pairing computations are CPU-heavy; do not run Verify
// on a goroutine that must stay responsive.
type Groth16Verifier struct {
	vk *VerifyingKey
}

// NewGroth16Verifier wraps a verification key as a verify oracle.
func NewGroth16Verifier(vk *VerifyingKey) *Groth16Verifier {
	return &Groth16Verifier{vk: vk}
}

// Verify checks e(-A,B) * e(alpha,beta) * e(vk_x,gamma) * e(C,delta) == 1,
// where vk_x = IC[0] + sum(inputs[i] * IC[i+1]). The A-negation lives here,
// not in the codec.
func (v *Groth16Verifier) Verify(proof *Proof, publicInputs []fr.Element) (bool, error) {
	if proof == nil || proof.A == nil || proof.B == nil || proof.C == nil {
		return false, errors.New("zkproof: incomplete proof")
	}
	if len(publicInputs)+1 != len(v.vk.IC) {
		return false, fmt.Errorf("zkproof: %d public inputs, key expects %d",
			len(publicInputs), len(v.vk.IC)-1)
	}

	vkx := new(bn256.G1).ScalarMult(v.vk.IC[0], big.NewInt(1))
	for i := range publicInputs {
		term := new(bn256.G1).ScalarMult(v.vk.IC[i+1], field.ToBig(publicInputs[i]))
		vkx.Add(vkx, term)
	}
	negA := new(bn256.G1).Neg(proof.A)

	ok := bn256.PairingCheck(
		[]*bn256.G1{negA, v.vk.Alpha, vkx, proof.C},
		[]*bn256.G2{proof.B, v.vk.Beta, v.vk.Gamma, v.vk.Delta},
	)
	return ok, nil
}
