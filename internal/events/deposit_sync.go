// Package events keeps the local Merkle accumulator in sync with the
// pool's on-ledger deposit stream. Deposits arrive over NATS; a single
// sync goroutine owns the accumulator, so every insert, proof and root
// read goes through SyncService and never touches the tree concurrently.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/nats-io/nats.go"

	"relayer-backend/internal/field"
	"relayer-backend/internal/merkle"
	"relayer-backend/internal/metrics"
	"relayer-backend/internal/models"
	"relayer-backend/internal/repository"
)

// DepositEvent is the wire shape published by the pool indexer.
type DepositEvent struct {
	Commitment string `json:"commitment"` // decimal string
	LeafIndex  uint64 `json:"leafIndex"`
	Root       string `json:"root"` // decimal string, indexer's view after insert
	AssetID    string `json:"assetId"`
	Reference  string `json:"reference"`
	Timestamp  int64  `json:"timestamp"`
}

type insertRequest struct {
	event DepositEvent
	done  chan error
}

type proofRequest struct {
	leafIndex uint64
	resp      chan proofResponse
}

type proofResponse struct {
	proof *merkle.Proof
	err   error
}

// SyncService owns the accumulator and applies the deposit stream to it.
type SyncService struct {
	tree      *merkle.Accumulator
	repo      repository.RootRepository
	inserts   chan insertRequest
	proofs    chan proofRequest
	rootReads chan chan rootSnapshot
	conn      *nats.Conn
	sub       *nats.Subscription
}

type rootSnapshot struct {
	root      fr.Element
	nextIndex uint64
}

// NewSyncService creates the sync actor around an accumulator. repo may
// be nil when running without a database.
func NewSyncService(tree *merkle.Accumulator, repo repository.RootRepository) *SyncService {
	return &SyncService{
		tree:      tree,
		repo:      repo,
		inserts:   make(chan insertRequest, 256),
		proofs:    make(chan proofRequest),
		rootReads: make(chan chan rootSnapshot),
	}
}

// Start launches the owner goroutine. It exits when ctx is cancelled.
func (s *SyncService) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *SyncService) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-s.inserts:
			req.done <- s.apply(ctx, req.event)
		case req := <-s.proofs:
			p, err := s.tree.GenerateProof(req.leafIndex)
			req.resp <- proofResponse{proof: p, err: err}
		case resp := <-s.rootReads:
			resp <- rootSnapshot{root: s.tree.Root(), nextIndex: s.tree.NextIndex()}
		}
	}
}

func (s *SyncService) apply(ctx context.Context, ev DepositEvent) error {
	commitment, err := field.FromDecimalString(ev.Commitment)
	if err != nil {
		return fmt.Errorf("deposit commitment: %w", err)
	}

	// The stream is ordered by leaf index; a gap means missed events and
	// the tree must not advance past it.
	if ev.LeafIndex != s.tree.NextIndex() {
		return fmt.Errorf("deposit leaf index %d does not match next index %d", ev.LeafIndex, s.tree.NextIndex())
	}

	// Cross-check against the indexer's root when it publishes one. The
	// check runs on a preview so a diverged event never advances the tree;
	// the stream can resync at the same index.
	if ev.Root != "" {
		expected, err := field.FromDecimalString(ev.Root)
		if err != nil {
			return fmt.Errorf("deposit root: %w", err)
		}
		preview, err := s.tree.PreviewInsert(commitment)
		if err != nil {
			return fmt.Errorf("accumulator preview: %w", err)
		}
		if !expected.Equal(&preview) {
			return fmt.Errorf("root mismatch at leaf %d: local tree diverged from indexer", ev.LeafIndex)
		}
	}

	index, err := s.tree.Insert(commitment)
	if err != nil {
		return fmt.Errorf("accumulator insert: %w", err)
	}

	metrics.MerkleLeafCount.Set(float64(s.tree.NextIndex()))

	if s.repo != nil {
		root := s.tree.Root()
		if err := s.repo.SaveRoot(ctx, &models.RootRecord{
			Root:      field.ToDecimalString(root),
			LeafIndex: index,
			Source:    "deposit",
		}); err != nil {
			log.Printf("⚠️ Failed to persist root record: %v", err)
		}
		if err := s.repo.SaveDeposit(ctx, &models.DepositRecord{
			Commitment: ev.Commitment,
			LeafIndex:  index,
			Root:       field.ToDecimalString(root),
			AssetID:    ev.AssetID,
			Reference:  ev.Reference,
		}); err != nil {
			log.Printf("⚠️ Failed to persist deposit record: %v", err)
		}
	}
	return nil
}

// Apply inserts one deposit through the owner goroutine.
func (s *SyncService) Apply(ctx context.Context, ev DepositEvent) error {
	req := insertRequest{event: ev, done: make(chan error, 1)}
	select {
	case s.inserts <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GenerateProof produces a membership proof through the owner goroutine.
func (s *SyncService) GenerateProof(ctx context.Context, leafIndex uint64) (*merkle.Proof, error) {
	req := proofRequest{leafIndex: leafIndex, resp: make(chan proofResponse, 1)}
	select {
	case s.proofs <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case resp := <-req.resp:
		return resp.proof, resp.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Root returns the current root and leaf count.
func (s *SyncService) Root(ctx context.Context) (fr.Element, uint64, error) {
	resp := make(chan rootSnapshot, 1)
	select {
	case s.rootReads <- resp:
	case <-ctx.Done():
		var zero fr.Element
		return zero, 0, ctx.Err()
	}
	select {
	case snap := <-resp:
		return snap.root, snap.nextIndex, nil
	case <-ctx.Done():
		var zero fr.Element
		return zero, 0, ctx.Err()
	}
}

// ============================================================================
// NATS subscription
// ============================================================================

// Connect subscribes to the deposit subject. Call after Start.
func (s *SyncService) Connect(ctx context.Context, url, subject string, timeout, reconnectWait time.Duration, maxReconnects int) error {
	conn, err := nats.Connect(url,
		nats.Timeout(timeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	sub, err := conn.Subscribe(subject, func(msg *nats.Msg) {
		var ev DepositEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			metrics.DepositEventsTotal.WithLabelValues("malformed").Inc()
			log.Printf("⚠️ Malformed deposit event on %s: %v", subject, err)
			return
		}
		if err := s.Apply(ctx, ev); err != nil {
			metrics.DepositEventsTotal.WithLabelValues("rejected").Inc()
			log.Printf("⚠️ Deposit event rejected (leaf %s): %v", strconv.FormatUint(ev.LeafIndex, 10), err)
			return
		}
		metrics.DepositEventsTotal.WithLabelValues("applied").Inc()
	})
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	s.conn = conn
	s.sub = sub
	log.Printf("✅ Subscribed to deposit events on %s", subject)
	return nil
}

// Close drains the subscription and closes the connection.
func (s *SyncService) Close() {
	if s.sub != nil {
		_ = s.sub.Drain()
	}
	if s.conn != nil {
		s.conn.Close()
	}
}
