// Package merkle implements the client-side mirror of the remote commitment
// tree: an incremental append-only accumulator with O(depth) insertion,
// membership proof generation, and a bounded historical-root window.
//
// The accumulator is not safe for concurrent mutation. It is meant to be
// owned by a single logical actor (one client instance or one sync task)
// and externally serialized if shared.
package merkle

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"relayer-backend/internal/hashing"
)

const (
	// MinHistorySize mirrors the smallest historical-root window the
	// remote ledger retains. Local history is a UX hint; the ledger's own
	// window stays authoritative.
	MinHistorySize = 30

	// MaxDepth bounds the tree height to what a 64-bit leaf index covers
	// with room to spare.
	MaxDepth = 32
)

var (
	// ErrTreeFull is returned when every leaf slot is occupied.
	ErrTreeFull = errors.New("merkle: tree is full")

	// ErrInvalidIndex is returned when a proof is requested for a leaf
	// that has not been inserted.
	ErrInvalidIndex = errors.New("merkle: leaf index out of range")
)

// Proof is a membership proof for one leaf. PathIndices[i] is 0 when the
// running node is a left child at level i, 1 when it is a right child.
type Proof struct {
	Leaf         fr.Element
	LeafIndex    uint64
	PathElements []fr.Element
	PathIndices  []int
	Root         fr.Element
}

// Accumulator mirrors the remote incremental tree.
type Accumulator struct {
	engine *hashing.Engine

	depth          int
	maxLeaves      uint64
	nextIndex      uint64
	filledSubtrees []fr.Element
	zeros          []fr.Element
	currentRoot    fr.Element
	rootHistory    []fr.Element
	historySize    int
	leaves         []fr.Element
}

// New builds an empty accumulator of the given depth. historySize below
// MinHistorySize is raised to it.
func New(engine *hashing.Engine, depth, historySize int) (*Accumulator, error) {
	if depth < 1 || depth > MaxDepth {
		return nil, fmt.Errorf("merkle: depth %d out of range [1,%d]", depth, MaxDepth)
	}
	if historySize < MinHistorySize {
		historySize = MinHistorySize
	}

	zeros := make([]fr.Element, depth+1)
	for i := 1; i <= depth; i++ {
		z, err := engine.Hash2(zeros[i-1], zeros[i-1])
		if err != nil {
			return nil, err
		}
		zeros[i] = z
	}
	filled := make([]fr.Element, depth)
	copy(filled, zeros[:depth])

	return &Accumulator{
		engine:         engine,
		depth:          depth,
		maxLeaves:      uint64(1) << uint(depth),
		filledSubtrees: filled,
		zeros:          zeros,
		currentRoot:    zeros[depth],
		historySize:    historySize,
	}, nil
}

// Depth returns the tree height.
func (a *Accumulator) Depth() int { return a.depth }

// NextIndex returns the index the next insertion will occupy, which equals
// the number of inserted leaves.
func (a *Accumulator) NextIndex() uint64 { return a.nextIndex }

// Root returns the current root.
func (a *Accumulator) Root() fr.Element { return a.currentRoot }

// Insert appends a leaf and returns its index. The authentication path is
// recomputed level by level from filledSubtrees and zeros; no full-tree
// rehash happens.
func (a *Accumulator) Insert(leaf fr.Element) (uint64, error) {
	if a.nextIndex == a.maxLeaves {
		return 0, ErrTreeFull
	}
	idx := a.nextIndex
	cur := leaf
	pos := idx
	for level := 0; level < a.depth; level++ {
		var err error
		if pos%2 == 0 {
			// Left child: the sibling slot is still empty, remember this
			// hash for when the right sibling arrives.
			a.filledSubtrees[level] = cur
			cur, err = a.engine.Hash2(cur, a.zeros[level])
		} else {
			cur, err = a.engine.Hash2(a.filledSubtrees[level], cur)
		}
		if err != nil {
			return 0, err
		}
		pos /= 2
	}

	a.recordRoot(a.currentRoot)
	a.currentRoot = cur
	a.leaves = append(a.leaves, leaf)
	a.nextIndex++
	return idx, nil
}

// PreviewInsert computes the root the tree would have after appending
// leaf, without mutating any state. Lets callers vet an insertion against
// an externally published root before committing it.
func (a *Accumulator) PreviewInsert(leaf fr.Element) (fr.Element, error) {
	var zero fr.Element
	if a.nextIndex == a.maxLeaves {
		return zero, ErrTreeFull
	}
	cur := leaf
	pos := a.nextIndex
	for level := 0; level < a.depth; level++ {
		var err error
		if pos%2 == 0 {
			cur, err = a.engine.Hash2(cur, a.zeros[level])
		} else {
			cur, err = a.engine.Hash2(a.filledSubtrees[level], cur)
		}
		if err != nil {
			return zero, err
		}
		pos /= 2
	}
	return cur, nil
}

func (a *Accumulator) recordRoot(root fr.Element) {
	a.rootHistory = append(a.rootHistory, root)
	if len(a.rootHistory) > a.historySize {
		a.rootHistory = a.rootHistory[len(a.rootHistory)-a.historySize:]
	}
}

// GenerateProof rebuilds sibling values for leafIndex by recomputing tree
// levels from the current leaf set. This is client-side work, not on the
// hot remote path, so the O(n) recomputation is acceptable.
func (a *Accumulator) GenerateProof(leafIndex uint64) (*Proof, error) {
	if leafIndex >= a.nextIndex {
		return nil, fmt.Errorf("%w: %d >= %d", ErrInvalidIndex, leafIndex, a.nextIndex)
	}

	p := &Proof{
		Leaf:         a.leaves[leafIndex],
		LeafIndex:    leafIndex,
		PathElements: make([]fr.Element, a.depth),
		PathIndices:  make([]int, a.depth),
	}

	nodes := make([]fr.Element, len(a.leaves))
	copy(nodes, a.leaves)
	idx := leafIndex
	for level := 0; level < a.depth; level++ {
		sibIdx := idx ^ 1
		if sibIdx < uint64(len(nodes)) {
			p.PathElements[level] = nodes[sibIdx]
		} else {
			p.PathElements[level] = a.zeros[level]
		}
		p.PathIndices[level] = int(idx % 2)

		next := make([]fr.Element, 0, (len(nodes)+1)/2)
		for i := 0; i < len(nodes); i += 2 {
			left := nodes[i]
			right := a.zeros[level]
			if i+1 < len(nodes) {
				right = nodes[i+1]
			}
			h, err := a.engine.Hash2(left, right)
			if err != nil {
				return nil, err
			}
			next = append(next, h)
		}
		nodes = next
		idx /= 2
	}
	p.Root = nodes[0]
	return p, nil
}

// VerifyProof recomputes the root from leaf and path and compares it to the
// proof's root. Pure with respect to accumulator state.
func VerifyProof(engine *hashing.Engine, p *Proof) bool {
	if p == nil || len(p.PathElements) != len(p.PathIndices) {
		return false
	}
	cur := p.Leaf
	for i := range p.PathElements {
		var (
			h   fr.Element
			err error
		)
		switch p.PathIndices[i] {
		case 0:
			h, err = engine.Hash2(cur, p.PathElements[i])
		case 1:
			h, err = engine.Hash2(p.PathElements[i], cur)
		default:
			return false
		}
		if err != nil {
			return false
		}
		cur = h
	}
	return cur.Equal(&p.Root)
}

// IsKnownRoot reports whether root equals the current root or any retained
// historical root.
func (a *Accumulator) IsKnownRoot(root fr.Element) bool {
	if root.Equal(&a.currentRoot) {
		return true
	}
	for i := range a.rootHistory {
		if root.Equal(&a.rootHistory[i]) {
			return true
		}
	}
	return false
}
