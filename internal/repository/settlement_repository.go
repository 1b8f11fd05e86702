package repository

import (
	"context"

	"prediction-settlement/internal/models"

	"github.com/google/uuid"
)

// CreateSettlementRecord creates a settlement record for a wager
func (r *Repository) CreateSettlementRecord(ctx context.Context, record *models.SettlementRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(record).Error
}

// HasSettlementRecord reports whether a wager has been settled already
func (r *Repository) HasSettlementRecord(ctx context.Context, wagerID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SettlementRecord{}).
		Where("wager_id = ?", wagerID).
		Count(&count).Error
	return count > 0, err
}

// CountSettlementRecords counts settled wagers for a game
func (r *Repository) CountSettlementRecords(ctx context.Context, gameID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SettlementRecord{}).
		Where("game_id = ?", gameID).
		Count(&count).Error
	return count, err
}

// GetSettlementRecords retrieves all settlement records for a game
func (r *Repository) GetSettlementRecords(ctx context.Context, gameID uint) ([]*models.SettlementRecord, error) {
	var records []*models.SettlementRecord
	err := r.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("processed_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
