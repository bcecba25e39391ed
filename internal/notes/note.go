// Package notes implements shielded-pool note construction, canonical
// storage serialization, at-rest encryption, and the local note store.
package notes

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"relayer-backend/internal/field"
	"relayer-backend/internal/hashing"
)

var (
	// ErrMissingLeafIndex is returned when a nullifier hash is requested
	// for a note whose ledger position is not yet known. The leaf index is
	// bound into the hash, so the value simply does not exist before the
	// deposit is confirmed.
	ErrMissingLeafIndex = errors.New("notes: note has no confirmed leaf index")

	// ErrCommitmentMismatch is returned when recovered note material does
	// not reproduce the stored commitment.
	ErrCommitmentMismatch = errors.New("notes: recomputed commitment does not match")
)

// Note is a claim on a shielded deposit. Secret and NullifierSeed are the
// hiding material; Commitment is always recomputed from the other fields,
// never trusted from input.
type Note struct {
	Secret        fr.Element
	NullifierSeed fr.Element
	Amount        uint64
	AssetID       fr.Element
	Commitment    fr.Element

	// Post-deposit metadata, attached once the deposit is confirmed.
	LeafIndex        *uint64
	DepositRoot      *fr.Element
	DepositTimestamp int64
	DepositReference string
}

// Manager builds and transforms notes using an explicit hash engine.
type Manager struct {
	engine *hashing.Engine
}

// NewManager creates a note manager bound to a hash engine.
func NewManager(engine *hashing.Engine) *Manager {
	return &Manager{engine: engine}
}

// Create draws fresh secret material and builds a new unspent note.
func (m *Manager) Create(amount uint64, assetID fr.Element) (*Note, error) {
	secret, err := field.Random()
	if err != nil {
		return nil, err
	}
	seed, err := field.Random()
	if err != nil {
		return nil, err
	}
	n := &Note{
		Secret:        secret,
		NullifierSeed: seed,
		Amount:        amount,
		AssetID:       assetID,
	}
	if err := m.computeCommitment(n); err != nil {
		return nil, err
	}
	return n, nil
}

// FromRecovery rebuilds a note from backed-up material. The commitment is
// recomputed here; a stored commitment from the backup is deliberately not
// an input.
func (m *Manager) FromRecovery(secret, nullifierSeed fr.Element, amount uint64, assetID fr.Element, leafIndex *uint64, depositRoot *fr.Element) (*Note, error) {
	n := &Note{
		Secret:        secret,
		NullifierSeed: nullifierSeed,
		Amount:        amount,
		AssetID:       assetID,
		LeafIndex:     leafIndex,
		DepositRoot:   depositRoot,
	}
	if err := m.computeCommitment(n); err != nil {
		return nil, err
	}
	return n, nil
}

func (m *Manager) computeCommitment(n *Note) error {
	c, err := m.engine.Hash4(n.Secret, n.NullifierSeed, field.FromUint64(n.Amount), n.AssetID)
	if err != nil {
		return err
	}
	n.Commitment = c
	return nil
}

// NullifierHash computes Hash2(Hash2(nullifierSeed, secret), leafIndex).
// Exactly one valid value exists per note once its leaf index is fixed.
func (m *Manager) NullifierHash(n *Note) (fr.Element, error) {
	var zero fr.Element
	if n.LeafIndex == nil {
		return zero, ErrMissingLeafIndex
	}
	inner, err := m.engine.Hash2(n.NullifierSeed, n.Secret)
	if err != nil {
		return zero, err
	}
	return m.engine.Hash2(inner, field.FromUint64(*n.LeafIndex))
}

// MarkDeposited attaches ledger confirmation metadata to a note.
func (n *Note) MarkDeposited(leafIndex uint64, root fr.Element, timestamp int64, reference string) {
	idx := leafIndex
	r := root
	n.LeafIndex = &idx
	n.DepositRoot = &r
	n.DepositTimestamp = timestamp
	n.DepositReference = reference
}

// AssetIDFromMint derives the field-element asset identifier for a mint
// address: keccak256 of the address bytes, reduced into the field. Reduction
// is fine here since this is a derivation, not a wire decoding.
func AssetIDFromMint(mint string) fr.Element {
	digest := crypto.Keccak256(common.FromHex(mint))
	var x fr.Element
	x.SetBytes(digest)
	return x
}

// storedNote is the canonical storage format: decimal-string encoding of
// each field element, the same format the circuit tooling consumes.
type storedNote struct {
	Secret           string  `json:"secret"`
	NullifierSeed    string  `json:"nullifier_seed"`
	Amount           string  `json:"amount"`
	AssetID          string  `json:"asset_id"`
	LeafIndex        *uint64 `json:"leaf_index,omitempty"`
	DepositRoot      string  `json:"deposit_root,omitempty"`
	DepositTimestamp int64   `json:"deposit_timestamp,omitempty"`
	DepositReference string  `json:"deposit_reference,omitempty"`
}

// Serialize renders a note in the canonical storage format.
func (m *Manager) Serialize(n *Note) ([]byte, error) {
	sn := storedNote{
		Secret:           field.ToDecimalString(n.Secret),
		NullifierSeed:    field.ToDecimalString(n.NullifierSeed),
		Amount:           fmt.Sprintf("%d", n.Amount),
		AssetID:          field.ToDecimalString(n.AssetID),
		LeafIndex:        n.LeafIndex,
		DepositTimestamp: n.DepositTimestamp,
		DepositReference: n.DepositReference,
	}
	if n.DepositRoot != nil {
		sn.DepositRoot = field.ToDecimalString(*n.DepositRoot)
	}
	return json.Marshal(sn)
}

// Deserialize parses the canonical storage format and recomputes the
// commitment from the recovered material.
func (m *Manager) Deserialize(data []byte) (*Note, error) {
	var sn storedNote
	if err := json.Unmarshal(data, &sn); err != nil {
		return nil, fmt.Errorf("notes: parse stored note: %w", err)
	}
	secret, err := field.FromDecimalString(sn.Secret)
	if err != nil {
		return nil, fmt.Errorf("notes: secret: %w", err)
	}
	seed, err := field.FromDecimalString(sn.NullifierSeed)
	if err != nil {
		return nil, fmt.Errorf("notes: nullifier seed: %w", err)
	}
	assetID, err := field.FromDecimalString(sn.AssetID)
	if err != nil {
		return nil, fmt.Errorf("notes: asset id: %w", err)
	}
	var amount uint64
	if _, err := fmt.Sscanf(sn.Amount, "%d", &amount); err != nil {
		return nil, fmt.Errorf("notes: amount: %w", err)
	}
	var root *fr.Element
	if sn.DepositRoot != "" {
		r, err := field.FromDecimalString(sn.DepositRoot)
		if err != nil {
			return nil, fmt.Errorf("notes: deposit root: %w", err)
		}
		root = &r
	}
	n, err := m.FromRecovery(secret, seed, amount, assetID, sn.LeafIndex, root)
	if err != nil {
		return nil, err
	}
	n.DepositTimestamp = sn.DepositTimestamp
	n.DepositReference = sn.DepositReference
	return n, nil
}
