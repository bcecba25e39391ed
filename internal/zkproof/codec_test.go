package zkproof

import (
	"encoding/hex"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/crypto/bn256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relayer-backend/internal/field"
)

func testProof(t *testing.T, ka, kb, kc int64) *Proof {
	t.Helper()
	return &Proof{
		A: new(bn256.G1).ScalarBaseMult(big.NewInt(ka)),
		B: new(bn256.G2).ScalarBaseMult(big.NewInt(kb)),
		C: new(bn256.G1).ScalarBaseMult(big.NewInt(kc)),
	}
}

func TestSelfCheck(t *testing.T) {
	require.NoError(t, SelfCheck())
}

func TestGeneratorVectorPinnedBytes(t *testing.T) {
	p := testProof(t, 1, 1, 1)
	b, err := Serialize(p)
	require.NoError(t, err)
	require.Len(t, b, ProofSize)

	// A = (1, 2) big-endian.
	wantAx := make([]byte, 32)
	wantAx[31] = 0x01
	assert.Equal(t, wantAx, b[0:32])
	wantAy := make([]byte, 32)
	wantAy[31] = 0x02
	assert.Equal(t, wantAy, b[32:64])

	// The full pinned generator vector.
	want, err := hex.DecodeString(generatorProofHex)
	require.NoError(t, err)
	assert.Equal(t, want, b)
}

func TestCodecRoundTrip(t *testing.T) {
	for _, scalars := range [][3]int64{{1, 1, 1}, {2, 3, 5}, {17, 101, 999}} {
		p := testProof(t, scalars[0], scalars[1], scalars[2])

		b, err := Serialize(p)
		require.NoError(t, err)

		back, err := Deserialize(b)
		require.NoError(t, err)

		again, err := Serialize(back)
		require.NoError(t, err)
		assert.Equal(t, b, again, "serialize(deserialize(b)) != b for %v", scalars)
	}
}

func TestDeserializeRejectsWrongLength(t *testing.T) {
	_, err := Deserialize(make([]byte, 255))
	assert.ErrorIs(t, err, ErrInvalidLength)
	_, err = Deserialize(make([]byte, 257))
	assert.ErrorIs(t, err, ErrInvalidLength)
	_, err = Deserialize(nil)
	assert.ErrorIs(t, err, ErrInvalidLength)
}

func TestDeserializeRejectsOffCurvePoint(t *testing.T) {
	p := testProof(t, 2, 3, 5)
	b, err := Serialize(p)
	require.NoError(t, err)

	// Corrupt A.y so the point leaves the curve.
	b[63] ^= 0x01
	_, err = Deserialize(b)
	assert.Error(t, err)
}

func writeTestVK(t *testing.T) string {
	t.Helper()
	g1 := func(k int64) string {
		return hex.EncodeToString(new(bn256.G1).ScalarBaseMult(big.NewInt(k)).Marshal())
	}
	g2 := func(k int64) string {
		return hex.EncodeToString(new(bn256.G2).ScalarBaseMult(big.NewInt(k)).Marshal())
	}
	f := vkFile{
		Alpha: g1(3),
		Beta:  g2(4),
		Gamma: g2(5),
		Delta: g2(6),
		IC:    []string{g1(7), g1(8), g1(9)},
	}
	raw, err := json.Marshal(f)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "vk.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	return path
}

func TestLoadVerifyingKey(t *testing.T) {
	vk, err := LoadVerifyingKey(writeTestVK(t))
	require.NoError(t, err)
	assert.Len(t, vk.IC, 3)

	_, err = LoadVerifyingKey(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestVerifyInputCountMismatch(t *testing.T) {
	vk, err := LoadVerifyingKey(writeTestVK(t))
	require.NoError(t, err)
	v := NewGroth16Verifier(vk)

	p := testProof(t, 2, 3, 5)
	_, err = v.Verify(p, []fr.Element{field.FromUint64(1)})
	assert.Error(t, err)
}

// A proof built from arbitrary generator multiples does not satisfy the
// pairing equation for an unrelated key: Verify must answer false, not
// error.
func TestVerifyRejectsForgedProof(t *testing.T) {
	vk, err := LoadVerifyingKey(writeTestVK(t))
	require.NoError(t, err)
	v := NewGroth16Verifier(vk)

	p := testProof(t, 2, 3, 5)
	ok, err := v.Verify(p, []fr.Element{field.FromUint64(1), field.FromUint64(2)})
	require.NoError(t, err)
	assert.False(t, ok)
}
