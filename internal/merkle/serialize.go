package merkle

import (
	"encoding/json"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"relayer-backend/internal/field"
	"relayer-backend/internal/hashing"
)

// snapshot is the persisted accumulator state. filledSubtrees is derived
// state and deliberately absent: it is reconstructed by replaying
// insertions on load, never copied.
type snapshot struct {
	Depth       int      `json:"depth"`
	HistorySize int      `json:"history_size"`
	NextIndex   uint64   `json:"next_index"`
	Leaves      []string `json:"leaves"`
	RootHistory []string `json:"root_history"`
	CurrentRoot string   `json:"current_root"`
}

// Serialize persists the accumulator state.
func (a *Accumulator) Serialize() ([]byte, error) {
	s := snapshot{
		Depth:       a.depth,
		HistorySize: a.historySize,
		NextIndex:   a.nextIndex,
		Leaves:      make([]string, len(a.leaves)),
		RootHistory: make([]string, len(a.rootHistory)),
		CurrentRoot: field.ToDecimalString(a.currentRoot),
	}
	for i, l := range a.leaves {
		s.Leaves[i] = field.ToDecimalString(l)
	}
	for i, r := range a.rootHistory {
		s.RootHistory[i] = field.ToDecimalString(r)
	}
	return json.Marshal(s)
}

// Deserialize restores an accumulator from persisted state by replaying
// every insertion through a fresh tree, then checks the replayed root
// against the stored one. A mismatch means the snapshot is corrupt or was
// produced by a different hash parameterization.
func Deserialize(engine *hashing.Engine, data []byte) (*Accumulator, error) {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("merkle: parse snapshot: %w", err)
	}
	if uint64(len(s.Leaves)) != s.NextIndex {
		return nil, fmt.Errorf("merkle: snapshot has %d leaves but next_index %d", len(s.Leaves), s.NextIndex)
	}

	a, err := New(engine, s.Depth, s.HistorySize)
	if err != nil {
		return nil, err
	}
	for i, ls := range s.Leaves {
		leaf, err := field.FromDecimalString(ls)
		if err != nil {
			return nil, fmt.Errorf("merkle: snapshot leaf %d: %w", i, err)
		}
		if _, err := a.Insert(leaf); err != nil {
			return nil, err
		}
	}

	storedRoot, err := field.FromDecimalString(s.CurrentRoot)
	if err != nil {
		return nil, fmt.Errorf("merkle: snapshot root: %w", err)
	}
	if !a.currentRoot.Equal(&storedRoot) {
		return nil, fmt.Errorf("merkle: replayed root %s does not match snapshot root %s",
			field.ToDecimalString(a.currentRoot), s.CurrentRoot)
	}

	// The stored window wins over the replayed one: the snapshot may have
	// trimmed roots that replay regenerated.
	history := make([]fr.Element, len(s.RootHistory))
	for i, rs := range s.RootHistory {
		r, err := field.FromDecimalString(rs)
		if err != nil {
			return nil, fmt.Errorf("merkle: snapshot history %d: %w", i, err)
		}
		history[i] = r
	}
	a.rootHistory = history
	return a, nil
}
