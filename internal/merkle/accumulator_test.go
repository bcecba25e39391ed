package merkle

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relayer-backend/internal/field"
	"relayer-backend/internal/hashing"
)

func newEngine(t *testing.T) *hashing.Engine {
	t.Helper()
	e, err := hashing.New(hashing.ParamSetMiMCBN254)
	require.NoError(t, err)
	return e
}

func newTree(t *testing.T, depth int) *Accumulator {
	t.Helper()
	a, err := New(newEngine(t), depth, MinHistorySize)
	require.NoError(t, err)
	return a
}

func TestNewRejectsBadDepth(t *testing.T) {
	e := newEngine(t)
	_, err := New(e, 0, 30)
	assert.Error(t, err)
	_, err = New(e, MaxDepth+1, 30)
	assert.Error(t, err)
}

func TestEmptyTreeRootMatchesZeros(t *testing.T) {
	e := newEngine(t)
	a, err := New(e, 4, 30)
	require.NoError(t, err)

	// zeros[depth] computed independently.
	var z fr.Element
	for i := 0; i < 4; i++ {
		var err error
		z, err = e.Hash2(z, z)
		require.NoError(t, err)
	}
	root := a.Root()
	assert.True(t, root.Equal(&z))
}

func TestInsertAndProveEveryIndex(t *testing.T) {
	a := newTree(t, 5)
	e := newEngine(t)

	const n = 11
	for i := uint64(0); i < n; i++ {
		idx, err := a.Insert(field.FromUint64(1000 + i))
		require.NoError(t, err)
		assert.Equal(t, i, idx)
	}
	require.Equal(t, uint64(n), a.NextIndex())

	for i := uint64(0); i < n; i++ {
		p, err := a.GenerateProof(i)
		require.NoError(t, err)
		root := a.Root()
		assert.True(t, p.Root.Equal(&root), "proof root mismatch at index %d", i)
		assert.True(t, VerifyProof(e, p), "proof failed at index %d", i)
	}
}

func TestVerifyProofRejectsTampering(t *testing.T) {
	a := newTree(t, 4)
	e := newEngine(t)

	for i := uint64(0); i < 6; i++ {
		_, err := a.Insert(field.FromUint64(i + 1))
		require.NoError(t, err)
	}
	p, err := a.GenerateProof(3)
	require.NoError(t, err)
	require.True(t, VerifyProof(e, p))

	// Flipped leaf.
	bad := *p
	bad.Leaf = field.FromUint64(9999)
	assert.False(t, VerifyProof(e, &bad))

	// Flipped path element.
	bad = *p
	bad.PathElements = append([]fr.Element(nil), p.PathElements...)
	one := field.FromUint64(1)
	bad.PathElements[2].Add(&bad.PathElements[2], &one)
	assert.False(t, VerifyProof(e, &bad))

	// Flipped root.
	bad = *p
	bad.Root.Add(&bad.Root, &one)
	assert.False(t, VerifyProof(e, &bad))

	// Flipped direction bit.
	bad = *p
	bad.PathIndices = append([]int(nil), p.PathIndices...)
	bad.PathIndices[0] ^= 1
	assert.False(t, VerifyProof(e, &bad))
}

func TestGenerateProofInvalidIndex(t *testing.T) {
	a := newTree(t, 3)
	_, err := a.GenerateProof(0)
	assert.ErrorIs(t, err, ErrInvalidIndex)

	_, err = a.Insert(field.FromUint64(1))
	require.NoError(t, err)
	_, err = a.GenerateProof(1)
	assert.ErrorIs(t, err, ErrInvalidIndex)
}

func TestTreeFull(t *testing.T) {
	a := newTree(t, 2)
	for i := 0; i < 4; i++ {
		_, err := a.Insert(field.FromUint64(uint64(i)))
		require.NoError(t, err)
	}
	_, err := a.Insert(field.FromUint64(99))
	assert.ErrorIs(t, err, ErrTreeFull)
}

func TestKnownRoots(t *testing.T) {
	a := newTree(t, 4)
	empty := a.Root()
	assert.True(t, a.IsKnownRoot(empty))

	var midRoot fr.Element
	for i := uint64(0); i < 5; i++ {
		_, err := a.Insert(field.FromUint64(i + 10))
		require.NoError(t, err)
		if i == 2 {
			midRoot = a.Root()
		}
	}

	cur := a.Root()
	assert.True(t, a.IsKnownRoot(cur))
	assert.True(t, a.IsKnownRoot(midRoot), "retained historical root must stay known")
	assert.True(t, a.IsKnownRoot(empty), "empty root recorded by first insert")
	assert.False(t, a.IsKnownRoot(field.FromUint64(123456)))
}

func TestHistoryWindowIsBounded(t *testing.T) {
	e := newEngine(t)
	a, err := New(e, 8, 5) // below minimum, raised to 30
	require.NoError(t, err)
	require.Equal(t, MinHistorySize, a.historySize)

	roots := make([]fr.Element, 0, 40)
	for i := uint64(0); i < 40; i++ {
		roots = append(roots, a.Root())
		_, err := a.Insert(field.FromUint64(i))
		require.NoError(t, err)
	}
	assert.Len(t, a.rootHistory, MinHistorySize)
	assert.False(t, a.IsKnownRoot(roots[0]), "oldest root evicted from the window")
	assert.True(t, a.IsKnownRoot(roots[39]))
}

func TestSerializeRoundTripReconstructsDerivedState(t *testing.T) {
	a := newTree(t, 6)
	e := newEngine(t)
	for i := uint64(0); i < 9; i++ {
		_, err := a.Insert(field.FromUint64(i * 7))
		require.NoError(t, err)
	}

	raw, err := a.Serialize()
	require.NoError(t, err)

	restored, err := Deserialize(e, raw)
	require.NoError(t, err)

	origRoot, restRoot := a.Root(), restored.Root()
	assert.True(t, origRoot.Equal(&restRoot))
	assert.Equal(t, a.NextIndex(), restored.NextIndex())
	assert.Equal(t, a.filledSubtrees, restored.filledSubtrees)

	// Restored tree keeps producing valid proofs and accepting inserts.
	p, err := restored.GenerateProof(4)
	require.NoError(t, err)
	assert.True(t, VerifyProof(e, p))
	_, err = restored.Insert(field.FromUint64(555))
	require.NoError(t, err)
}

func TestDeserializeRejectsCorruptSnapshot(t *testing.T) {
	a := newTree(t, 4)
	e := newEngine(t)
	for i := uint64(0); i < 3; i++ {
		_, err := a.Insert(field.FromUint64(i + 1))
		require.NoError(t, err)
	}
	raw, err := a.Serialize()
	require.NoError(t, err)

	// A swapped leaf changes the replayed root.
	tampered := string(raw)
	tampered = replaceOnce(t, tampered, `"1"`, `"2"`)
	_, err = Deserialize(e, []byte(tampered))
	assert.Error(t, err)

	_, err = Deserialize(e, []byte("{"))
	assert.Error(t, err)
}

func replaceOnce(t *testing.T, s, old, new string) string {
	t.Helper()
	i := len(s)
	for j := 0; j+len(old) <= len(s); j++ {
		if s[j:j+len(old)] == old {
			i = j
			break
		}
	}
	require.Less(t, i, len(s), "substring %q not found", old)
	return s[:i] + new + s[i+len(old):]
}

func TestPreviewInsertMatchesInsertWithoutMutating(t *testing.T) {
	a := newTree(t, 5)

	for i := uint64(0); i < 7; i++ {
		leaf := field.FromUint64(2000 + i)

		before := a.NextIndex()
		preview, err := a.PreviewInsert(leaf)
		require.NoError(t, err)

		// Previewing changes nothing.
		assert.Equal(t, before, a.NextIndex())
		again, err := a.PreviewInsert(leaf)
		require.NoError(t, err)
		assert.True(t, preview.Equal(&again))

		_, err = a.Insert(leaf)
		require.NoError(t, err)
		root := a.Root()
		assert.True(t, preview.Equal(&root))
	}
}

func TestPreviewInsertOnFullTree(t *testing.T) {
	a := newTree(t, 2)
	for i := uint64(0); i < 4; i++ {
		_, err := a.Insert(field.FromUint64(i + 1))
		require.NoError(t, err)
	}
	_, err := a.PreviewInsert(field.FromUint64(99))
	assert.ErrorIs(t, err, ErrTreeFull)
}
