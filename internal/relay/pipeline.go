package relay

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/bits"
	"strings"
	"sync/atomic"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/sirupsen/logrus"

	"relayer-backend/internal/field"
	"relayer-backend/internal/ledger"
	"relayer-backend/internal/metrics"
	"relayer-backend/internal/nullifier"
	"relayer-backend/internal/zkproof"
)

const (
	hashLen    = 32
	addressLen = 32

	// Fees are expressed in basis points of the withdrawn amount.
	feeDenominator = 10_000
)

// Config is the operator configuration the pipeline enforces.
type Config struct {
	RelayerAddress  string
	ProgramScope    string
	FeeBps          uint64
	MinAmount       uint64
	MaxAmount       uint64
	SupportedAssets []string
	VerifyProofs    bool
}

// Request is one withdrawal to relay. Binary fields arrive hex-decoded
// from the HTTP layer; lengths are still validated here so the pipeline is
// safe regardless of the transport.
type Request struct {
	ID            string
	ProofBytes    []byte
	MerkleRoot    []byte
	NullifierHash []byte
	Recipient     string
	Amount        uint64
	AssetID       []byte
	AssetMint     string
	AuxDataHash   []byte
}

// Result is the terminal state of an accepted request.
type Result struct {
	Accepted  bool
	Reference string
	Fee       uint64
}

// Journal persists request outcomes. Implementations must tolerate being
// called concurrently.
type Journal interface {
	RecordOutcome(req *Request, accepted bool, category Category, reference string, fee uint64, errMsg string)
}

// Notifier pushes request lifecycle transitions to subscribers.
type Notifier interface {
	NotifyStatus(requestID, status, detail string)
}

// Stats is a snapshot of the pipeline counters.
type Stats struct {
	Received   uint64 `json:"received"`
	Accepted   uint64 `json:"accepted"`
	Rejected   uint64 `json:"rejected"`
	FeesEarned uint64 `json:"fees_earned"`
}

// Pipeline validates, verifies and submits withdrawal requests. Requests
// are fully independent; the only shared mutable state is the nullifier
// cache and the counters, both safe under the positive-only/atomic
// contracts.
type Pipeline struct {
	cfg      Config
	verifier zkproof.Verifier
	cache    nullifier.Cache
	client   ledger.Client
	retry    RetryPolicy
	logger   *logrus.Logger
	journal  Journal
	notifier Notifier

	relayerField fr.Element
	assets       map[string]struct{}

	received   atomic.Uint64
	accepted   atomic.Uint64
	rejected   atomic.Uint64
	feesEarned atomic.Uint64
}

// NewPipeline wires a pipeline. journal and notifier may be nil.
func NewPipeline(cfg Config, verifier zkproof.Verifier, cache nullifier.Cache, client ledger.Client, retry RetryPolicy, logger *logrus.Logger, journal Journal, notifier Notifier) (*Pipeline, error) {
	if cfg.FeeBps > feeDenominator {
		return nil, fmt.Errorf("relay: fee_bps %d exceeds %d", cfg.FeeBps, feeDenominator)
	}
	relayerField, err := addressToField(cfg.RelayerAddress)
	if err != nil {
		return nil, fmt.Errorf("relay: relayer address: %w", err)
	}
	assets := make(map[string]struct{}, len(cfg.SupportedAssets))
	for _, a := range cfg.SupportedAssets {
		assets[normalizeHex(a)] = struct{}{}
	}
	if cache == nil {
		cache = nullifier.Disabled{}
	}
	return &Pipeline{
		cfg:          cfg,
		verifier:     verifier,
		cache:        cache,
		client:       client,
		retry:        retry,
		logger:       logger,
		journal:      journal,
		notifier:     notifier,
		relayerField: relayerField,
		assets:       assets,
	}, nil
}

/// Quote computes the relayer fee: floor(amount * feeBps / 10000). The
// product is taken in 128 bits so amounts near the uint64 ceiling quote
// correctly.
func (p *Pipeline) Quote(amount uint64) uint64 {
	hi, lo := bits.Mul64(amount, p.cfg.FeeBps)
	fee, _ := bits.Div64(hi, lo, feeDenominator)
	return fee
}

// Config returns the operator configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// SupportedAssets lists the gate's asset identifiers.
func (p *Pipeline) SupportedAssets() []string {
	out := make([]string, 0, len(p.assets))
	for a := range p.assets {
		out = append(out, a)
	}
	return out
}

// Stats snapshots the counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Received:   p.received.Load(),
		Accepted:   p.accepted.Load(),
		Rejected:   p.rejected.Load(),
		FeesEarned: p.feesEarned.Load(),
	}
}

// Process drives one request through the state machine. On rejection the
// returned error is a *RejectError carrying the category.
func (p *Pipeline) Process(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()
	p.received.Add(1)
	metrics.RelayRequestsTotal.Inc()

	res, err := p.process(ctx, req)
	outcome := "accepted"
	if err != nil {
		outcome = "rejected"
		p.rejected.Add(1)
		cat := CategoryUnknown
		var re *RejectError
		if errors.As(err, &re) {
			cat = re.Category
		}
		metrics.RelayRejectedTotal.WithLabelValues(string(cat)).Inc()
		if cat == CategoryUnknown {
			p.logger.WithFields(logrus.Fields{
				"request_id": req.ID,
				"error":      err.Error(),
			}).Error("withdrawal failed with unclassified error")
		}
		p.record(req, false, cat, "", 0, err.Error())
		p.notify(req.ID, "rejected", string(cat))
	} else {
		p.record(req, true, "", res.Reference, res.Fee, "")
		p.notify(req.ID, "accepted", res.Reference)
	}
	metrics.RelayPipelineDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	return res, err
}

func (p *Pipeline) process(ctx context.Context, req *Request) (*Result, error) {
	// 1. Validate: structural checks only, before any cryptographic or
	// network work.
	if err := p.validate(req); err != nil {
		return nil, err
	}
	p.notify(req.ID, "validated", "")

	// 2. AssetGate: cheap set membership before expensive verification.
	if _, ok := p.assets[hex.EncodeToString(req.AssetID)]; !ok {
		return nil, reject(CategoryValidation, "asset %x is not supported by this relayer", req.AssetID)
	}

	fee := p.Quote(req.Amount)

	// 3. LocalVerify: no-cost-to-ledger rejection of invalid proofs.
	nullifierHash, err := p.localVerify(req, fee)
	if err != nil {
		return nil, err
	}
	p.notify(req.ID, "verified", "")

	// 4. DoubleSpendCheck.
	if err := p.checkDoubleSpend(ctx, req, nullifierHash); err != nil {
		return nil, err
	}

	// 5. Submit with bounded retry.
	tx := p.buildTransaction(req, fee)
	p.notify(req.ID, "submitting", "")
	attempts := 0
	ref, cat, err := p.retry.Run(ctx, func(ctx context.Context) (string, error) {
		attempts++
		if attempts > 1 {
			metrics.RelaySubmitRetriesTotal.Inc()
		}
		return p.client.SubmitTransaction(ctx, tx)
	})
	if err != nil {
		return nil, &RejectError{Category: cat, Err: err}
	}

	// The submitted transaction spends the nullifier; caching it now is
	// safe under the monotone contract.
	p.cache.MarkSpent(nullifierHash)

	// 6. Account.
	p.accepted.Add(1)
	p.feesEarned.Add(fee)
	metrics.RelayAcceptedTotal.Inc()
	metrics.RelayFeesEarnedTotal.Add(float64(fee))

	p.logger.WithFields(logrus.Fields{
		"request_id": req.ID,
		"reference":  ref,
		"amount":     req.Amount,
		"fee":        fee,
	}).Info("withdrawal submitted")

	return &Result{Accepted: true, Reference: ref, Fee: fee}, nil
}

func (p *Pipeline) validate(req *Request) error {
	if len(req.ProofBytes) != zkproof.ProofSize {
		return reject(CategoryValidation, "proof must be %d bytes, got %d", zkproof.ProofSize, len(req.ProofBytes))
	}
	if len(req.MerkleRoot) != hashLen {
		return reject(CategoryValidation, "merkle root must be %d bytes, got %d", hashLen, len(req.MerkleRoot))
	}
	if len(req.NullifierHash) != hashLen {
		return reject(CategoryValidation, "nullifier hash must be %d bytes, got %d", hashLen, len(req.NullifierHash))
	}
	if len(req.AssetID) != hashLen {
		return reject(CategoryValidation, "asset id must be %d bytes, got %d", hashLen, len(req.AssetID))
	}
	if req.AuxDataHash != nil && len(req.AuxDataHash) != hashLen {
		return reject(CategoryValidation, "auxiliary data hash must be %d bytes, got %d", hashLen, len(req.AuxDataHash))
	}
	if _, err := decodeAddress(req.Recipient); err != nil {
		return reject(CategoryValidation, "recipient address: %v", err)
	}
	if req.AssetMint != "" {
		if _, err := hex.DecodeString(normalizeHex(req.AssetMint)); err != nil {
			return reject(CategoryValidation, "asset mint address: %v", err)
		}
	}
	if req.Amount == 0 {
		return reject(CategoryValidation, "amount must be positive")
	}
	if req.Amount < p.cfg.MinAmount {
		return reject(CategoryValidation, "amount %d below minimum %d", req.Amount, p.cfg.MinAmount)
	}
	if p.cfg.MaxAmount > 0 && req.Amount > p.cfg.MaxAmount {
		return reject(CategoryValidation, "amount %d above maximum %d", req.Amount, p.cfg.MaxAmount)
	}
	return nil
}

// localVerify assembles the public-input vector in the exact order the
// circuit expects and runs the verify oracle. Returns the decoded
// nullifier hash for the double-spend step.
func (p *Pipeline) localVerify(req *Request, fee uint64) (fr.Element, error) {
	var zero fr.Element

	root, err := field.Decode(req.MerkleRoot)
	if err != nil {
		return zero, reject(CategoryValidation, "merkle root: %v", err)
	}
	nullifierHash, err := field.Decode(req.NullifierHash)
	if err != nil {
		return zero, reject(CategoryValidation, "nullifier hash: %v", err)
	}
	assetID, err := field.Decode(req.AssetID)
	if err != nil {
		return zero, reject(CategoryValidation, "asset id: %v", err)
	}
	recipient, err := addressToField(req.Recipient)
	if err != nil {
		return zero, reject(CategoryValidation, "recipient: %v", err)
	}

	if !p.cfg.VerifyProofs {
		return nullifierHash, nil
	}

	proof, err := zkproof.Deserialize(req.ProofBytes)
	if err != nil {
		return zero, reject(CategoryValidation, "proof: %v", err)
	}

	// Order is the circuit's: root, nullifier hash, asset id, recipient,
	// amount, relayer, relayer fee, then the optional auxiliary-data hash.
	inputs := []fr.Element{
		root,
		nullifierHash,
		assetID,
		recipient,
		field.FromUint64(req.Amount),
		p.relayerField,
		field.FromUint64(fee),
	}
	if req.AuxDataHash != nil {
		aux, err := field.Decode(req.AuxDataHash)
		if err != nil {
			return zero, reject(CategoryValidation, "auxiliary data hash: %v", err)
		}
		inputs = append(inputs, aux)
	}

	ok, err := p.verifier.Verify(proof, inputs)
	if err != nil {
		metrics.ProofVerificationsTotal.WithLabelValues("error").Inc()
		return zero, reject(CategoryValidation, "proof verification: %v", err)
	}
	if !ok {
		metrics.ProofVerificationsTotal.WithLabelValues("invalid").Inc()
		return zero, reject(CategoryValidation, "invalid proof")
	}
	metrics.ProofVerificationsTotal.WithLabelValues("valid").Inc()
	return nullifierHash, nil
}

func (p *Pipeline) checkDoubleSpend(ctx context.Context, req *Request, nullifierHash fr.Element) error {
	if spent, known := p.cache.Lookup(nullifierHash); known {
		metrics.NullifierCacheHits.Inc()
		if spent {
			return reject(CategoryStateConflict, "nullifier already spent")
		}
		return nil
	}
	metrics.NullifierCacheMisses.Inc()

	var hash [32]byte
	copy(hash[:], req.NullifierHash)
	spent, err := p.client.IsNullifierSpent(ctx, p.cfg.ProgramScope, hash)
	if err != nil {
		return &RejectError{Category: Classify(err), Err: fmt.Errorf("nullifier registry check: %w", err)}
	}
	if spent {
		p.cache.MarkSpent(nullifierHash)
		return reject(CategoryStateConflict, "nullifier already spent")
	}
	return nil
}

// buildTransaction packs the withdrawal instruction. Layout: version byte,
// proof, root, nullifier hash, asset id, recipient, relayer, amount and
// fee as big-endian u64.
func (p *Pipeline) buildTransaction(req *Request, fee uint64) []byte {
	var buf bytes.Buffer
	buf.WriteByte(0x01)
	buf.Write(req.ProofBytes)
	buf.Write(req.MerkleRoot)
	buf.Write(req.NullifierHash)
	buf.Write(req.AssetID)
	recipient, _ := decodeAddress(req.Recipient) // validated earlier
	buf.Write(recipient)
	relayer, _ := decodeAddress(p.cfg.RelayerAddress)
	buf.Write(relayer)
	var u64 [8]byte
	binary.BigEndian.PutUint64(u64[:], req.Amount)
	buf.Write(u64[:])
	binary.BigEndian.PutUint64(u64[:], fee)
	buf.Write(u64[:])
	return buf.Bytes()
}

func (p *Pipeline) record(req *Request, accepted bool, cat Category, ref string, fee uint64, errMsg string) {
	if p.journal != nil {
		p.journal.RecordOutcome(req, accepted, cat, ref, fee, errMsg)
	}
}

func (p *Pipeline) notify(requestID, status, detail string) {
	if p.notifier != nil {
		p.notifier.NotifyStatus(requestID, status, detail)
	}
}

func normalizeHex(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, "0x"))
}

func decodeAddress(s string) ([]byte, error) {
	raw, err := hex.DecodeString(normalizeHex(s))
	if err != nil {
		return nil, fmt.Errorf("not valid hex: %w", err)
	}
	if len(raw) != addressLen {
		return nil, fmt.Errorf("address must be %d bytes, got %d", addressLen, len(raw))
	}
	return raw, nil
}

// addressToField interprets a 32-byte address as a public input. The
// encoding must already be canonical; out-of-range addresses are rejected,
// not reduced.
func addressToField(s string) (fr.Element, error) {
	raw, err := decodeAddress(s)
	if err != nil {
		var zero fr.Element
		return zero, err
	}
	return field.Decode(raw)
}
