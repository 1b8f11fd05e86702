package services

import (
	"context"
	"log"
	"strings"
	"time"

	"prediction-settlement/internal/cache"
	"prediction-settlement/internal/models"
	"prediction-settlement/internal/repository"

	"github.com/shopspring/decimal"
)

// CategoryAll short-circuits aggregation to the platform total.
const CategoryAll = "ALL"

// PoolService answers "how much currency is allocated at this hierarchy
// node, this hour?" through a three-level fallback cascade. The cascade
// degrades to the next coarser level on any read failure; a stale or
// zero figure is preferable to breaking the caller.
type PoolService struct {
	repo       *repository.Repository
	cache      *cache.PoolCache
	domain     string
	hourBucket HourBucketFunc
	now        func() time.Time
}

func NewPoolService(
	repo *repository.Repository,
	poolCache *cache.PoolCache,
	domain string,
	loc *time.Location,
) *PoolService {
	return &PoolService{
		repo:       repo,
		cache:      poolCache,
		domain:     domain,
		hourBucket: HourBucketIn(loc),
		now:        time.Now,
	}
}

// NormalizeCategory trims and uppercases a category token for lookup.
func NormalizeCategory(category string) string {
	return strings.ToUpper(strings.TrimSpace(category))
}

// GetAggregatedPool resolves the pool figure for a hierarchy node at the
// current hour bucket. The cascade is most-specific-first and not
// additive across levels:
//
//  1. sum of per-game snapshots for (category, subcategory), if positive
//  2. the single category-level allocation, if positive
//  3. the platform total across all category allocations
//
// Total failure across all steps returns 0, never an error.
func (s *PoolService) GetAggregatedPool(ctx context.Context, level models.PoolLevel, category, subcategory string) int64 {
	category = NormalizeCategory(category)
	subcategory = NormalizeCategory(subcategory)
	hour := s.hourBucket(s.now())

	// An absent or ALL category can only mean the platform total.
	if category == "" || category == CategoryAll {
		level = models.PoolLevelPlatform
	}

	if cached, ok := s.cache.Get(ctx, s.domain, hour, string(level), category, subcategory); ok {
		return cached
	}

	value := s.aggregate(ctx, level, category, subcategory, hour)
	s.cache.Set(ctx, s.domain, hour, string(level), category, subcategory, value)
	return value
}

func (s *PoolService) aggregate(ctx context.Context, level models.PoolLevel, category, subcategory string, hour time.Time) int64 {
	// Step 1: per-game snapshots under the subcategory.
	if level == models.PoolLevelSubcategory && subcategory != "" {
		sum, err := s.repo.SumGamePoolSnapshots(ctx, s.domain, hour, category, subcategory)
		if err != nil {
			log.Printf("[PoolService] subcategory read failed for %s/%s, degrading: %v", category, subcategory, err)
		} else if sum.IsPositive() {
			return floorToInt(sum)
		}
	}

	// Step 2: the category-level allocation.
	if level != models.PoolLevelPlatform {
		pool, err := s.repo.GetCategoryAllocation(ctx, s.domain, hour, category)
		if err != nil {
			log.Printf("[PoolService] category read failed for %s, degrading: %v", category, err)
		} else if pool.IsPositive() {
			return floorToInt(pool)
		}
	}

	// Step 3: the platform total.
	total, err := s.repo.SumCategoryAllocations(ctx, s.domain, hour)
	if err != nil {
		log.Printf("[PoolService] platform total read failed, returning 0: %v", err)
		return 0
	}
	return floorToInt(total)
}

// CurrentHourBucket exposes the bucket the aggregator is evaluating
// against.
func (s *PoolService) CurrentHourBucket() time.Time {
	return s.hourBucket(s.now())
}

// floorToInt floors a pool figure to a non-negative integer.
func floorToInt(d decimal.Decimal) int64 {
	if d.IsNegative() {
		return 0
	}
	return d.Floor().IntPart()
}
