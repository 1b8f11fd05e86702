package services

import (
	"context"
	"testing"
	"time"

	"prediction-settlement/internal/cache"
	"prediction-settlement/internal/models"
	"prediction-settlement/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const testDomain = "TESTDOMAIN"

var testClock = time.Date(2026, 8, 31, 14, 37, 12, 0, time.UTC)

func newTestPoolService(db *gorm.DB) *PoolService {
	repo := repository.NewRepository(db)
	ps := NewPoolService(repo, cache.NewPoolCache(nil), testDomain, time.UTC)
	ps.now = func() time.Time { return testClock }
	return ps
}

func testHour() time.Time {
	return time.Date(2026, 8, 31, 14, 0, 0, 0, time.UTC)
}

func seedAllocation(t *testing.T, db *gorm.DB, category string, pool float64) {
	allocation := &models.HourlyCategoryAllocation{
		Domain:     testDomain,
		HourBucket: testHour(),
		Category:   category,
		Pool:       decimal.NewFromFloat(pool),
	}
	if err := db.Create(allocation).Error; err != nil {
		t.Fatalf("failed to seed allocation: %v", err)
	}
}

func seedSnapshot(t *testing.T, db *gorm.DB, category, subcategory string, gameID uint, pool float64) {
	snapshot := &models.GamePoolSnapshot{
		Domain:      testDomain,
		HourBucket:  testHour(),
		Category:    category,
		Subcategory: subcategory,
		GameID:      gameID,
		Pool:        decimal.NewFromFloat(pool),
	}
	if err := db.Create(snapshot).Error; err != nil {
		t.Fatalf("failed to seed snapshot: %v", err)
	}
}

func TestHourBucketFloorsToHour(t *testing.T) {
	bucket := HourBucketIn(time.UTC)

	got := bucket(testClock)
	if !got.Equal(testHour()) {
		t.Errorf("expected bucket %v, got %v", testHour(), got)
	}

	// Same hour, different minute: same bucket.
	later := bucket(testClock.Add(20 * time.Minute))
	if !later.Equal(got) {
		t.Errorf("expected identical bucket within the hour, got %v and %v", got, later)
	}

	next := bucket(testClock.Add(time.Hour))
	if !next.Equal(got.Add(time.Hour)) {
		t.Errorf("expected next bucket one hour later, got %v", next)
	}
}

func TestAggregatedPoolColdStart(t *testing.T) {
	db := setupTestDB(t)
	ps := newTestPoolService(db)

	// No data anywhere: every level answers 0, never an error.
	if got := ps.GetAggregatedPool(context.Background(), models.PoolLevelSubcategory, "SPORTS", "TENNIS"); got != 0 {
		t.Errorf("expected cold-start 0, got %d", got)
	}
	if got := ps.GetAggregatedPool(context.Background(), models.PoolLevelPlatform, "", ""); got != 0 {
		t.Errorf("expected cold-start platform 0, got %d", got)
	}
}

func TestAggregatedPoolSubcategory(t *testing.T) {
	db := setupTestDB(t)
	ps := newTestPoolService(db)

	seedSnapshot(t, db, "SPORTS", "TENNIS", 1, 120.70)
	seedSnapshot(t, db, "SPORTS", "TENNIS", 2, 80.50)
	seedSnapshot(t, db, "SPORTS", "FOOTBALL", 3, 999)

	got := ps.GetAggregatedPool(context.Background(), models.PoolLevelSubcategory, "sports", " tennis ")
	if got != 201 {
		t.Errorf("expected floored snapshot sum 201, got %d", got)
	}
}

func TestAggregatedPoolFallsBackToCategory(t *testing.T) {
	db := setupTestDB(t)
	ps := newTestPoolService(db)

	// No snapshots for the subcategory, but the category allocation
	// exists: the cascade degrades one level up.
	seedAllocation(t, db, "SPORTS", 500.25)

	got := ps.GetAggregatedPool(context.Background(), models.PoolLevelSubcategory, "SPORTS", "TENNIS")
	if got != 500 {
		t.Errorf("expected category fallback 500, got %d", got)
	}
}

func TestAggregatedPoolFallsBackToPlatform(t *testing.T) {
	db := setupTestDB(t)
	ps := newTestPoolService(db)

	seedAllocation(t, db, "SPORTS", 300)
	seedAllocation(t, db, "ESPORTS", 200)

	// Unknown category: subcategory and category steps find nothing and
	// the platform total answers.
	got := ps.GetAggregatedPool(context.Background(), models.PoolLevelSubcategory, "POLITICS", "ELECTIONS")
	if got != 500 {
		t.Errorf("expected platform fallback 500, got %d", got)
	}
}

func TestAggregatedPoolAllShortCircuits(t *testing.T) {
	db := setupTestDB(t)
	ps := newTestPoolService(db)

	seedAllocation(t, db, "SPORTS", 300)
	seedAllocation(t, db, "ESPORTS", 200)

	// ALL (and empty) categories mean the platform total regardless of
	// the requested level.
	if got := ps.GetAggregatedPool(context.Background(), models.PoolLevelSubcategory, "ALL", ""); got != 500 {
		t.Errorf("expected ALL to answer platform total 500, got %d", got)
	}
	if got := ps.GetAggregatedPool(context.Background(), models.PoolLevelCategory, "", ""); got != 500 {
		t.Errorf("expected empty category to answer platform total 500, got %d", got)
	}
}

func TestAggregatedPoolDeterministicWithinHour(t *testing.T) {
	db := setupTestDB(t)
	ps := newTestPoolService(db)

	seedAllocation(t, db, "SPORTS", 420)

	first := ps.GetAggregatedPool(context.Background(), models.PoolLevelCategory, "SPORTS", "")

	// Later in the same hour, same inputs: same answer.
	ps.now = func() time.Time { return testClock.Add(15 * time.Minute) }
	second := ps.GetAggregatedPool(context.Background(), models.PoolLevelCategory, "SPORTS", "")

	if first != second {
		t.Errorf("same hour bucket answered differently: %d then %d", first, second)
	}
	if first != 420 {
		t.Errorf("expected 420, got %d", first)
	}
}

func TestNormalizeCategory(t *testing.T) {
	cases := map[string]string{
		" tennis ": "TENNIS",
		"Sports":   "SPORTS",
		"":         "",
		"ALL":      "ALL",
	}
	for in, want := range cases {
		if got := NormalizeCategory(in); got != want {
			t.Errorf("NormalizeCategory(%q) = %q, want %q", in, got, want)
		}
	}
}
