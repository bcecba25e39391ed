package notes

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"relayer-backend/internal/field"
)

var (
	// ErrDuplicateCommitment is returned when adding a note whose
	// commitment is already present. Commitments are unique keys.
	ErrDuplicateCommitment = errors.New("notes: commitment already in store")

	// ErrNoteNotFound is returned by Get/Remove for unknown commitments.
	ErrNoteNotFound = errors.New("notes: note not found")
)

// Store holds notes keyed by commitment. Remove is the only way a spent
// note leaves the store; callers call it after a ledger-confirmed spend.
type Store struct {
	mu      sync.RWMutex
	manager *Manager
	byKey   map[[field.Size]byte]*Note
}

// NewStore creates an empty note store using the manager's codec for
// collection (de)serialization.
func NewStore(manager *Manager) *Store {
	return &Store{
		manager: manager,
		byKey:   make(map[[field.Size]byte]*Note),
	}
}

// Add inserts a note. Fails on a duplicate commitment.
func (s *Store) Add(n *Note) error {
	key := field.Encode(n.Commitment)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byKey[key]; exists {
		return ErrDuplicateCommitment
	}
	s.byKey[key] = n
	return nil
}

// Get returns the note for a commitment.
func (s *Store) Get(commitment fr.Element) (*Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.byKey[field.Encode(commitment)]
	if !ok {
		return nil, ErrNoteNotFound
	}
	return n, nil
}

// Remove deletes a spent note.
func (s *Store) Remove(commitment fr.Element) error {
	key := field.Encode(commitment)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byKey[key]; !ok {
		return ErrNoteNotFound
	}
	delete(s.byKey, key)
	return nil
}

// GetByAsset returns all notes for an asset.
func (s *Store) GetByAsset(assetID fr.Element) []*Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Note
	for _, n := range s.byKey {
		if n.AssetID.Equal(&assetID) {
			out = append(out, n)
		}
	}
	return out
}

// GetBalance sums the amounts of all notes for an asset.
func (s *Store) GetBalance(assetID fr.Element) *big.Int {
	total := new(big.Int)
	for _, n := range s.GetByAsset(assetID) {
		total.Add(total, new(big.Int).SetUint64(n.Amount))
	}
	return total
}

// Len returns the number of stored notes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byKey)
}

// Serialize renders the whole collection in the canonical storage format.
func (s *Store) Serialize() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]json.RawMessage, 0, len(s.byKey))
	for _, n := range s.byKey {
		raw, err := s.manager.Serialize(n)
		if err != nil {
			return nil, err
		}
		entries = append(entries, raw)
	}
	return json.Marshal(entries)
}

// Deserialize replaces the store contents with a serialized collection.
// Every note's commitment is recomputed on load.
func (s *Store) Deserialize(data []byte) error {
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("notes: parse store: %w", err)
	}
	fresh := make(map[[field.Size]byte]*Note, len(entries))
	for _, raw := range entries {
		n, err := s.manager.Deserialize(raw)
		if err != nil {
			return err
		}
		key := field.Encode(n.Commitment)
		if _, dup := fresh[key]; dup {
			return ErrDuplicateCommitment
		}
		fresh[key] = n
	}
	s.mu.Lock()
	s.byKey = fresh
	s.mu.Unlock()
	return nil
}
