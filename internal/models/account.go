package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReserveUserID is the well-known user id of the platform reserve account.
// Rounding remainders and unallocated wave budget accrue here.
const ReserveUserID uint = 0

// Account holds the dual-currency balances for a user.
// Balances are mutated only through Repository.ApplyTransaction,
// never edited directly.
type Account struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    uint            `gorm:"uniqueIndex;not null" json:"user_id"`
	PointA    decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"point_a"`
	PointB    decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"point_b"`
	IsActive  bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}

type TransactionType string

const (
	TransactionTypeStakePlaced       TransactionType = "STAKE_PLACED"
	TransactionTypeStakeRefund       TransactionType = "STAKE_REFUND"
	TransactionTypeSettlementPayout  TransactionType = "SETTLEMENT_PAYOUT"
	TransactionTypeReserveCredit     TransactionType = "RESERVE_CREDIT"
	TransactionTypeWaveIssuance      TransactionType = "WAVE_ISSUANCE"
	TransactionTypeRedistributionOut TransactionType = "REDISTRIBUTION_OUT"
	TransactionTypeRedistributionIn  TransactionType = "REDISTRIBUTION_IN"
	TransactionTypeVentureFunding    TransactionType = "VENTURE_FUNDING"
)

// Transaction is an immutable ledger log entry. Created, never mutated
// or deleted.
type Transaction struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID   uint            `gorm:"not null;index" json:"account_id"`
	PointADelta decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"point_a_delta"`
	PointBDelta decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"point_b_delta"`
	Type        TransactionType `gorm:"size:50;not null;index" json:"type"`
	WaveID      *uuid.UUID      `gorm:"type:uuid;index" json:"wave_id,omitempty"`
	Description string          `gorm:"type:text" json:"description"`
	CreatedAt   time.Time       `gorm:"index" json:"created_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}
