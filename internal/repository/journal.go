package repository

import (
	"context"
	"encoding/hex"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"

	"relayer-backend/internal/models"
	"relayer-backend/internal/relay"
)

// WithdrawalJournal adapts the journal repository to the pipeline's
// outcome hook. Persistence failures are logged, never propagated; the
// journal must not fail a withdrawal that already submitted.
type WithdrawalJournal struct {
	repo    WithdrawalRepository
	timeout time.Duration
}

// NewWithdrawalJournal creates a journal writing through repo.
func NewWithdrawalJournal(repo WithdrawalRepository) *WithdrawalJournal {
	return &WithdrawalJournal{repo: repo, timeout: 5 * time.Second}
}

// RecordOutcome implements the pipeline journal hook.
func (j *WithdrawalJournal) RecordOutcome(req *relay.Request, accepted bool, category relay.Category, reference string, fee uint64, errMsg string) {
	status := models.WithdrawalStatusAccepted
	if !accepted {
		status = models.WithdrawalStatusRejected
	}

	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}

	record := &models.WithdrawalRecord{
		ID:            id,
		Status:        status,
		NullifierHash: hex.EncodeToString(req.NullifierHash),
		MerkleRoot:    hex.EncodeToString(req.MerkleRoot),
		AssetID:       hex.EncodeToString(req.AssetID),
		Recipient:     req.Recipient,
		Amount:        strconv.FormatUint(req.Amount, 10),
		Fee:           strconv.FormatUint(fee, 10),
		Category:      string(category),
		Reference:     reference,
		LastError:     errMsg,
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	if err := j.repo.Create(ctx, record); err != nil {
		log.Printf("⚠️ Failed to journal withdrawal %s: %v", id, err)
	}
}
