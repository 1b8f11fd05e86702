package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type WaveStatus string

const (
	WaveStatusDraft     WaveStatus = "DRAFT"
	WaveStatusRunning   WaveStatus = "RUNNING"
	WaveStatusCompleted WaveStatus = "COMPLETED"
	WaveStatusFailed    WaveStatus = "FAILED"
)

type WaveStageStatus string

const (
	WaveStagePending   WaveStageStatus = "PENDING"
	WaveStageCompleted WaveStageStatus = "COMPLETED"
	WaveStageFailed    WaveStageStatus = "FAILED"
)

type VerificationStatus string

const (
	VerificationVerified VerificationStatus = "verified"
	VerificationPending  VerificationStatus = "pending"
	VerificationRejected VerificationStatus = "rejected"
)

// MoneyWaveRecord is the audit record for one three-stage redistribution
// run. A FAILED record implies zero net balance change from that run.
type MoneyWaveRecord struct {
	ID                   uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	HourBucket           time.Time       `gorm:"not null;index" json:"hour_bucket"`
	Status               WaveStatus      `gorm:"size:50;not null;default:DRAFT;index" json:"status"`
	IssuanceStatus       WaveStageStatus `gorm:"size:50;not null;default:PENDING" json:"issuance_status"`
	RedistributionStatus WaveStageStatus `gorm:"size:50;not null;default:PENDING" json:"redistribution_status"`
	VentureStatus        WaveStageStatus `gorm:"size:50;not null;default:PENDING" json:"venture_status"`
	AllocationRate       decimal.Decimal `gorm:"type:decimal(10,4);not null" json:"allocation_rate"`
	MaxSourceFraction    decimal.Decimal `gorm:"type:decimal(10,4);not null" json:"max_source_fraction"`
	VentureBudgetRate    decimal.Decimal `gorm:"type:decimal(10,4);not null" json:"venture_budget_rate"`
	TotalIssued          decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"total_issued"`
	TotalRedistributed   decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"total_redistributed"`
	TotalVentureFunded   decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"total_venture_funded"`
	ResultSummary        string          `gorm:"type:text" json:"result_summary"`
	ErrorMessage         *string         `gorm:"type:text" json:"error_message"`
	StartedAt            *time.Time      `json:"started_at"`
	CompletedAt          *time.Time      `json:"completed_at"`
	CreatedAt            time.Time       `json:"created_at"`
}

func (MoneyWaveRecord) TableName() string {
	return "money_wave_records"
}

// IssuanceRecord logs one organization's stage-1 issuance. Unverified
// reports are logged with Credited=false and never reach the ledger.
type IssuanceRecord struct {
	ID                 uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	WaveID             uuid.UUID          `gorm:"type:uuid;not null;index" json:"wave_id"`
	OrgAccountID       uint               `gorm:"not null;index" json:"org_account_id"`
	EBIT               decimal.Decimal    `gorm:"type:decimal(20,2);not null" json:"ebit"`
	AllocationRate     decimal.Decimal    `gorm:"type:decimal(10,4);not null" json:"allocation_rate"`
	IssuedAmount       decimal.Decimal    `gorm:"type:decimal(20,2);not null" json:"issued_amount"`
	VerificationStatus VerificationStatus `gorm:"size:50;not null" json:"verification_status"`
	Credited           bool               `gorm:"not null;default:false" json:"credited"`
	CreatedAt          time.Time          `json:"created_at"`
}

func (IssuanceRecord) TableName() string {
	return "wave_issuance_records"
}

// RedistributionRecord logs one stage-2 peer-to-peer move. Never applied
// as a silent balance edit.
type RedistributionRecord struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	WaveID          uuid.UUID       `gorm:"type:uuid;not null;index" json:"wave_id"`
	SourceAccountID uint            `gorm:"not null;index" json:"source_account_id"`
	TargetAccountID uint            `gorm:"not null;index" json:"target_account_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	WelfareEstimate float64         `gorm:"type:decimal(20,4);not null" json:"welfare_estimate"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (RedistributionRecord) TableName() string {
	return "wave_redistribution_records"
}

// VentureRecord logs one stage-3 funding allocation.
type VentureRecord struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	WaveID          uuid.UUID       `gorm:"type:uuid;not null;index" json:"wave_id"`
	ProposalID      uint            `gorm:"not null;index" json:"proposal_id"`
	CompositeScore  float64         `gorm:"type:decimal(10,4);not null" json:"composite_score"`
	AllocatedAmount decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"allocated_amount"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (VentureRecord) TableName() string {
	return "wave_venture_records"
}

// OrgProfitReport is the reported profitability figure for one
// organization and period. Written by upstream ingestion; the pipeline
// only flips Consumed once the report's issuance is credited, so a
// report is credited exactly once across runs.
type OrgProfitReport struct {
	ID             uint               `gorm:"primaryKey" json:"id"`
	OrgAccountID   uint               `gorm:"not null;index" json:"org_account_id"`
	Category       string             `gorm:"size:100;not null;index" json:"category"`
	Period         string             `gorm:"size:20;not null;index" json:"period"` // e.g. "2026-08"
	EBIT           decimal.Decimal    `gorm:"type:decimal(20,2);not null" json:"ebit"`
	Status         VerificationStatus `gorm:"size:50;not null;default:pending;index" json:"status"`
	Consumed       bool               `gorm:"not null;default:false;index" json:"consumed"`
	ConsumedWaveID *uuid.UUID         `gorm:"type:uuid" json:"consumed_wave_id,omitempty"`
	ReportedAt     time.Time          `json:"reported_at"`
}

func (OrgProfitReport) TableName() string {
	return "org_profit_reports"
}

type ProposalStatus string

const (
	ProposalStatusQueued ProposalStatus = "QUEUED"
	ProposalStatusFunded ProposalStatus = "FUNDED"
)

// VentureProposal is a queued funding proposal with weighted scoring
// inputs, each 0..10.
type VentureProposal struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	Title           string          `gorm:"size:255;not null" json:"title"`
	AccountID       uint            `gorm:"not null;index" json:"account_id"`
	RequestedAmount decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"requested_amount"`
	Innovation      float64         `gorm:"type:decimal(5,2);not null;default:0" json:"innovation"`
	Execution       float64         `gorm:"type:decimal(5,2);not null;default:0" json:"execution"`
	Disruption      float64         `gorm:"type:decimal(5,2);not null;default:0" json:"disruption"`
	Risk            float64         `gorm:"type:decimal(5,2);not null;default:0" json:"risk"`
	NetworkEffect   float64         `gorm:"type:decimal(5,2);not null;default:0" json:"network_effect"`
	Status          ProposalStatus  `gorm:"size:50;not null;default:QUEUED;index" json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (VentureProposal) TableName() string {
	return "venture_proposals"
}
