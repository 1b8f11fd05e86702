package repository

import (
	"context"
	"time"

	"prediction-settlement/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SumGamePoolSnapshots sums per-game pool snapshots for one hour bucket
// at the (category, subcategory) level.
func (r *Repository) SumGamePoolSnapshots(
	ctx context.Context,
	domain string,
	hourBucket time.Time,
	category string,
	subcategory string,
) (decimal.Decimal, error) {
	var snapshots []*models.GamePoolSnapshot
	err := r.db.WithContext(ctx).
		Select("pool").
		Where("domain = ? AND hour_bucket = ? AND category = ? AND subcategory = ?",
			domain, hourBucket, category, subcategory).
		Find(&snapshots).Error
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, s := range snapshots {
		total = total.Add(s.Pool)
	}
	return total, nil
}

// GetCategoryAllocation retrieves the single category-level allocation
// for one hour bucket.
func (r *Repository) GetCategoryAllocation(
	ctx context.Context,
	domain string,
	hourBucket time.Time,
	category string,
) (decimal.Decimal, error) {
	var allocation models.HourlyCategoryAllocation
	err := r.db.WithContext(ctx).
		Where("domain = ? AND hour_bucket = ? AND category = ?", domain, hourBucket, category).
		First(&allocation).Error
	if err == gorm.ErrRecordNotFound {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return allocation.Pool, nil
}

// SumCategoryAllocations sums all category allocations for the domain at
// one hour bucket (the platform total).
func (r *Repository) SumCategoryAllocations(
	ctx context.Context,
	domain string,
	hourBucket time.Time,
) (decimal.Decimal, error) {
	var allocations []*models.HourlyCategoryAllocation
	err := r.db.WithContext(ctx).
		Select("pool").
		Where("domain = ? AND hour_bucket = ?", domain, hourBucket).
		Find(&allocations).Error
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, a := range allocations {
		total = total.Add(a.Pool)
	}
	return total, nil
}

// UpsertCategoryAllocation writes the category-level allocation for one
// hour bucket, replacing any previous figure for the same key.
func (r *Repository) UpsertCategoryAllocation(ctx context.Context, allocation *models.HourlyCategoryAllocation) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "domain"}, {Name: "hour_bucket"}, {Name: "category"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"pool": allocation.Pool,
		}),
	}).Create(allocation).Error
}

// UpsertGamePoolSnapshot writes the per-game pool snapshot for one hour
// bucket.
func (r *Repository) UpsertGamePoolSnapshot(ctx context.Context, snapshot *models.GamePoolSnapshot) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "domain"}, {Name: "hour_bucket"}, {Name: "game_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"pool": snapshot.Pool,
		}),
	}).Create(snapshot).Error
}
