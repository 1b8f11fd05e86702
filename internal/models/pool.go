package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PoolLevel string

const (
	PoolLevelSubcategory PoolLevel = "SUBCATEGORY"
	PoolLevelCategory    PoolLevel = "CATEGORY"
	PoolLevelPlatform    PoolLevel = "PLATFORM"
)

// HourlyCategoryAllocation is the category-level pool figure for one hour
// bucket. Produced by the money-wave pipeline or upstream accounting;
// read-only to the aggregator.
type HourlyCategoryAllocation struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	Domain     string          `gorm:"size:100;not null;uniqueIndex:uq_hourly_allocation" json:"domain"`
	HourBucket time.Time       `gorm:"not null;uniqueIndex:uq_hourly_allocation" json:"hour_bucket"`
	Category   string          `gorm:"size:100;not null;uniqueIndex:uq_hourly_allocation" json:"category"`
	Pool       decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"pool"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (HourlyCategoryAllocation) TableName() string {
	return "hourly_category_allocations"
}

// GamePoolSnapshot is the per-game pool figure for one hour bucket.
type GamePoolSnapshot struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Domain      string          `gorm:"size:100;not null;uniqueIndex:uq_game_pool" json:"domain"`
	HourBucket  time.Time       `gorm:"not null;uniqueIndex:uq_game_pool" json:"hour_bucket"`
	Category    string          `gorm:"size:100;not null;index" json:"category"`
	Subcategory string          `gorm:"size:100;index" json:"subcategory"`
	GameID      uint            `gorm:"not null;uniqueIndex:uq_game_pool" json:"game_id"`
	Pool        decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"pool"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (GamePoolSnapshot) TableName() string {
	return "hourly_game_pools"
}
