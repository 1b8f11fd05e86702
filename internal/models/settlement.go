package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SettlementRecord is written once per settled wager. Its existence is
// the idempotence guard for that wager.
type SettlementRecord struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	WagerID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex" json:"wager_id"`
	GameID         uint            `gorm:"not null;index" json:"game_id"`
	AccountID      uint            `gorm:"not null;index" json:"account_id"`
	AccuracyScore  float64         `gorm:"type:decimal(5,4);not null" json:"accuracy_score"` // 0..1
	RewardAmount   decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"reward_amount"`
	SettlementType SettlementType  `gorm:"size:50;not null" json:"settlement_type"`
	ProcessedAt    time.Time       `gorm:"not null" json:"processed_at"`
}

func (SettlementRecord) TableName() string {
	return "settlement_records"
}
