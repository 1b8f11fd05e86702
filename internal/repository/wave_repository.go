package repository

import (
	"context"
	"fmt"
	"time"

	"prediction-settlement/internal/apperrors"
	"prediction-settlement/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateWaveRecord creates a money-wave run record
func (r *Repository) CreateWaveRecord(ctx context.Context, record *models.MoneyWaveRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(record).Error
}

// UpdateWaveRecord saves a money-wave run record
func (r *Repository) UpdateWaveRecord(ctx context.Context, record *models.MoneyWaveRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}

// GetWaveRecord retrieves a wave record by ID
func (r *Repository) GetWaveRecord(ctx context.Context, waveID uuid.UUID) (*models.MoneyWaveRecord, error) {
	var record models.MoneyWaveRecord
	err := r.db.WithContext(ctx).Where("id = ?", waveID).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// HasRunningWave reports whether any wave run is currently RUNNING
func (r *Repository) HasRunningWave(ctx context.Context) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.MoneyWaveRecord{}).
		Where("status = ?", models.WaveStatusRunning).
		Count(&count).Error
	return count > 0, err
}

// FailStaleWaves marks RUNNING waves that started before cutoff as
// FAILED. A crashed process leaves its RUNNING row behind; reaping it
// lets the next run proceed instead of reporting contention forever.
func (r *Repository) FailStaleWaves(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.MoneyWaveRecord{}).
		Where("status = ? AND COALESCE(started_at, created_at) < ?", models.WaveStatusRunning, cutoff).
		Updates(map[string]interface{}{
			"status":        models.WaveStatusFailed,
			"error_message": "run abandoned, marked failed by a later run",
		})
	return res.RowsAffected, res.Error
}

// GetCompletedWaveForHour retrieves a COMPLETED wave for an hour bucket,
// if one exists.
func (r *Repository) GetCompletedWaveForHour(ctx context.Context, hourBucket time.Time) (*models.MoneyWaveRecord, error) {
	var record models.MoneyWaveRecord
	err := r.db.WithContext(ctx).
		Where("hour_bucket = ? AND status = ?", hourBucket, models.WaveStatusCompleted).
		First(&record).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetProfitReports retrieves the unconsumed profitability reports for a
// period. Reports already credited by an earlier run never reappear.
func (r *Repository) GetProfitReports(ctx context.Context, period string) ([]*models.OrgProfitReport, error) {
	var reports []*models.OrgProfitReport
	err := r.db.WithContext(ctx).
		Where("period = ? AND consumed = ?", period, false).
		Order("org_account_id ASC").
		Find(&reports).Error
	if err != nil {
		return nil, err
	}
	return reports, nil
}

// MarkReportConsumed flips a report consumed once its issuance is
// credited. The guard on consumed makes the credit happen exactly once
// even under concurrent runs.
func (r *Repository) MarkReportConsumed(ctx context.Context, reportID uint, waveID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&models.OrgProfitReport{}).
		Where("id = ? AND consumed = ?", reportID, false).
		Updates(map[string]interface{}{
			"consumed":         true,
			"consumed_wave_id": waveID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &apperrors.ConcurrencyConflictError{Resource: "profit report", ID: fmt.Sprintf("%d", reportID)}
	}
	return nil
}

// GetQueuedProposals retrieves venture proposals awaiting funding
func (r *Repository) GetQueuedProposals(ctx context.Context) ([]*models.VentureProposal, error) {
	var proposals []*models.VentureProposal
	err := r.db.WithContext(ctx).
		Where("status = ?", models.ProposalStatusQueued).
		Order("created_at ASC").
		Find(&proposals).Error
	if err != nil {
		return nil, err
	}
	return proposals, nil
}

// MarkProposalFunded flips a queued proposal to FUNDED
func (r *Repository) MarkProposalFunded(ctx context.Context, proposalID uint) error {
	return r.db.WithContext(ctx).
		Model(&models.VentureProposal{}).
		Where("id = ? AND status = ?", proposalID, models.ProposalStatusQueued).
		Update("status", models.ProposalStatusFunded).Error
}

// CreateIssuanceRecord creates a stage-1 issuance audit row
func (r *Repository) CreateIssuanceRecord(ctx context.Context, record *models.IssuanceRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(record).Error
}

// CreateRedistributionRecord creates a stage-2 move audit row
func (r *Repository) CreateRedistributionRecord(ctx context.Context, record *models.RedistributionRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(record).Error
}

// CreateVentureRecord creates a stage-3 funding audit row
func (r *Repository) CreateVentureRecord(ctx context.Context, record *models.VentureRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(record).Error
}

// GetIssuanceRecords retrieves stage-1 rows for a wave
func (r *Repository) GetIssuanceRecords(ctx context.Context, waveID uuid.UUID) ([]*models.IssuanceRecord, error) {
	var records []*models.IssuanceRecord
	err := r.db.WithContext(ctx).Where("wave_id = ?", waveID).Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// GetRedistributionRecords retrieves stage-2 rows for a wave
func (r *Repository) GetRedistributionRecords(ctx context.Context, waveID uuid.UUID) ([]*models.RedistributionRecord, error) {
	var records []*models.RedistributionRecord
	err := r.db.WithContext(ctx).Where("wave_id = ?", waveID).Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// GetVentureRecords retrieves stage-3 rows for a wave
func (r *Repository) GetVentureRecords(ctx context.Context, waveID uuid.UUID) ([]*models.VentureRecord, error) {
	var records []*models.VentureRecord
	err := r.db.WithContext(ctx).Where("wave_id = ?", waveID).Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
