package models

import (
	"time"
)

// WithdrawalStatus terminal state of a relayed withdrawal
type WithdrawalStatus string

const (
	WithdrawalStatusAccepted WithdrawalStatus = "accepted"
	WithdrawalStatusRejected WithdrawalStatus = "rejected"
)

// WithdrawalRecord journal row for one withdrawal request
type WithdrawalRecord struct {
	ID     string           `json:"id" gorm:"primaryKey"` // UUID
	Status WithdrawalStatus `json:"status" gorm:"not null;index"`

	// Request fields, hex encoded
	NullifierHash string `json:"nullifier_hash" gorm:"index;size:64"`
	MerkleRoot    string `json:"merkle_root" gorm:"size:64"`
	AssetID       string `json:"asset_id" gorm:"index;size:64"`
	Recipient     string `json:"recipient" gorm:"size:64"`
	Amount        string `json:"amount"` // decimal string, avoids u64 overflow in drivers
	Fee           string `json:"fee"`

	// Outcome
	Category  string `json:"category" gorm:"index"` // rejection category, empty when accepted
	Reference string `json:"reference" gorm:"index"`
	LastError string `json:"last_error" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RootRecord audit row for one accumulator root transition
type RootRecord struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Root      string    `json:"root" gorm:"uniqueIndex;size:80"` // decimal string
	LeafIndex uint64    `json:"leaf_index"`
	Source    string    `json:"source"` // deposit subject or "replay"
	CreatedAt time.Time `json:"created_at"`
}

// DepositRecord one observed deposit event
type DepositRecord struct {
	ID         uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Commitment string    `json:"commitment" gorm:"uniqueIndex;size:80"` // decimal string
	LeafIndex  uint64    `json:"leaf_index" gorm:"index"`
	Root       string    `json:"root" gorm:"size:80"`
	AssetID    string    `json:"asset_id" gorm:"size:64"`
	Reference  string    `json:"reference"`
	CreatedAt  time.Time `json:"created_at"`
}
