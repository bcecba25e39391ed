package notes

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relayer-backend/internal/field"
)

func TestStoreAddGetRemove(t *testing.T) {
	m := newManager(t)
	s := NewStore(m)

	n, err := m.Create(100, field.FromUint64(1))
	require.NoError(t, err)

	require.NoError(t, s.Add(n))
	assert.ErrorIs(t, s.Add(n), ErrDuplicateCommitment)

	got, err := s.Get(n.Commitment)
	require.NoError(t, err)
	assert.Equal(t, n, got)

	require.NoError(t, s.Remove(n.Commitment))
	_, err = s.Get(n.Commitment)
	assert.ErrorIs(t, err, ErrNoteNotFound)
	assert.ErrorIs(t, s.Remove(n.Commitment), ErrNoteNotFound)
}

func TestStoreBalanceByAsset(t *testing.T) {
	m := newManager(t)
	s := NewStore(m)

	usdc := field.FromUint64(1)
	sol := field.FromUint64(2)
	for _, amt := range []uint64{100, 250, 50} {
		n, err := m.Create(amt, usdc)
		require.NoError(t, err)
		require.NoError(t, s.Add(n))
	}
	n, err := m.Create(999, sol)
	require.NoError(t, err)
	require.NoError(t, s.Add(n))

	assert.Equal(t, 0, s.GetBalance(usdc).Cmp(big.NewInt(400)))
	assert.Equal(t, 0, s.GetBalance(sol).Cmp(big.NewInt(999)))
	assert.Len(t, s.GetByAsset(usdc), 3)
	assert.Equal(t, 4, s.Len())
}

func TestStoreSerializeRoundTrip(t *testing.T) {
	m := newManager(t)
	s := NewStore(m)

	asset := field.FromUint64(7)
	for _, amt := range []uint64{1, 2, 3} {
		n, err := m.Create(amt, asset)
		require.NoError(t, err)
		require.NoError(t, s.Add(n))
	}

	raw, err := s.Serialize()
	require.NoError(t, err)

	restored := NewStore(m)
	require.NoError(t, restored.Deserialize(raw))
	assert.Equal(t, s.Len(), restored.Len())
	assert.Equal(t, 0, s.GetBalance(asset).Cmp(restored.GetBalance(asset)))
}
