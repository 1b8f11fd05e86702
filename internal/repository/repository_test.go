package repository

import (
	"context"
	"testing"
	"time"

	"prediction-settlement/internal/apperrors"
	"prediction-settlement/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	err = db.AutoMigrate(
		&models.Account{},
		&models.Transaction{},
		&models.PredictionGame{},
		&models.Wager{},
		&models.SettlementRecord{},
	)
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	for _, table := range []string{"transactions", "settlement_records", "wagers", "prediction_games", "accounts"} {
		db.Exec("DELETE FROM " + table)
	}
	return db
}

func seedAccount(t *testing.T, db *gorm.DB, userID uint, pointA float64) *models.Account {
	account := &models.Account{
		UserID:   userID,
		PointA:   decimal.NewFromFloat(pointA),
		IsActive: true,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to seed account: %v", err)
	}
	return account
}

func TestApplyTransactionCreditAndDebit(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)

	account := seedAccount(t, db, 1, 100)

	credit := &models.Transaction{
		AccountID:   account.ID,
		PointADelta: decimal.NewFromInt(50),
		Type:        models.TransactionTypeSettlementPayout,
	}
	if err := repo.ApplyTransaction(ctx, credit); err != nil {
		t.Fatalf("credit failed: %v", err)
	}

	debit := &models.Transaction{
		AccountID:   account.ID,
		PointADelta: decimal.NewFromInt(-30),
		Type:        models.TransactionTypeStakePlaced,
	}
	if err := repo.ApplyTransaction(ctx, debit); err != nil {
		t.Fatalf("debit failed: %v", err)
	}

	got, err := repo.GetAccountByID(ctx, account.ID)
	if err != nil {
		t.Fatalf("failed to load account: %v", err)
	}
	if !got.PointA.Equal(decimal.NewFromInt(120)) {
		t.Errorf("expected balance 120, got %s", got.PointA)
	}

	// Both entries are on the immutable log.
	entries, err := repo.GetAccountTransactions(ctx, account.ID, 10, 0)
	if err != nil {
		t.Fatalf("failed to load transactions: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 ledger entries, got %d", len(entries))
	}
}

func TestApplyTransactionRejectsNegativeBalance(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)

	account := seedAccount(t, db, 1, 100)

	overdraft := &models.Transaction{
		AccountID:   account.ID,
		PointADelta: decimal.NewFromInt(-150),
		Type:        models.TransactionTypeStakePlaced,
	}
	err := repo.ApplyTransaction(ctx, overdraft)
	if !apperrors.IsInsufficientBalance(err) {
		t.Fatalf("expected InsufficientBalanceError, got %v", err)
	}

	// Rejection leaves no trace: no balance change, no ledger row.
	got, _ := repo.GetAccountByID(ctx, account.ID)
	if !got.PointA.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected balance unchanged at 100, got %s", got.PointA)
	}
	var count int64
	db.Model(&models.Transaction{}).Where("account_id = ?", account.ID).Count(&count)
	if count != 0 {
		t.Errorf("expected no ledger entries, got %d", count)
	}
}

func TestApplyTransactionRejectsInactiveAccount(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)

	account := &models.Account{UserID: 1, PointA: decimal.NewFromInt(100), IsActive: false}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to seed account: %v", err)
	}
	// GORM's default:true tag overrides the zero-value false on insert;
	// persist the inactive flag explicitly.
	if err := db.Model(account).Update("is_active", false).Error; err != nil {
		t.Fatalf("failed to deactivate account: %v", err)
	}

	credit := &models.Transaction{
		AccountID:   account.ID,
		PointADelta: decimal.NewFromInt(10),
		Type:        models.TransactionTypeSettlementPayout,
	}
	if err := repo.ApplyTransaction(ctx, credit); !apperrors.IsValidation(err) {
		t.Fatalf("expected ValidationError for inactive account, got %v", err)
	}
}

func TestGetOrCreateAccount(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)

	first, err := repo.GetOrCreateAccount(ctx, 42)
	if err != nil {
		t.Fatalf("GetOrCreateAccount failed: %v", err)
	}
	if !first.PointA.IsZero() || !first.IsActive {
		t.Errorf("expected fresh active account with zero balance")
	}

	second, err := repo.GetOrCreateAccount(ctx, 42)
	if err != nil {
		t.Fatalf("second GetOrCreateAccount failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected the same account, got %d and %d", first.ID, second.ID)
	}
}

func TestTransitionGameStatusGuarded(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)

	game := &models.PredictionGame{
		Title:             "g",
		Category:          "SPORTS",
		Options:           `["HOME","AWAY"]`,
		Status:            models.GameStatusDraft,
		RegistrationStart: time.Now().Add(-time.Hour),
		RegistrationEnd:   time.Now().Add(time.Hour),
		MinStake:          decimal.NewFromInt(1),
		MaxStake:          decimal.NewFromInt(1000),
		SettlementType:    models.SettlementTypeWinnerTakeAll,
	}
	if err := db.Create(game).Error; err != nil {
		t.Fatalf("failed to seed game: %v", err)
	}

	if err := repo.TransitionGameStatus(ctx, game.ID, models.GameStatusDraft, models.GameStatusActive, nil); err != nil {
		t.Fatalf("transition failed: %v", err)
	}

	// The same from-state transition cannot win twice.
	err := repo.TransitionGameStatus(ctx, game.ID, models.GameStatusDraft, models.GameStatusActive, nil)
	if !apperrors.IsConcurrencyConflict(err) {
		t.Fatalf("expected ConcurrencyConflictError on stale transition, got %v", err)
	}
}

func TestDeactivateWagerExactlyOnce(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)

	account := seedAccount(t, db, 1, 100)
	game := &models.PredictionGame{
		Title:             "g",
		Category:          "SPORTS",
		Options:           `["HOME","AWAY"]`,
		Status:            models.GameStatusActive,
		RegistrationStart: time.Now().Add(-time.Hour),
		RegistrationEnd:   time.Now().Add(time.Hour),
		MinStake:          decimal.NewFromInt(1),
		MaxStake:          decimal.NewFromInt(1000),
		SettlementType:    models.SettlementTypeWinnerTakeAll,
	}
	db.Create(game)

	wager := &models.Wager{
		GameID:          game.ID,
		AccountID:       account.ID,
		Stake:           decimal.NewFromInt(10),
		Choice:          "HOME",
		OddsAtPlacement: decimal.NewFromInt(2),
		Confidence:      1,
		IsActive:        true,
	}
	if err := repo.CreateWager(ctx, wager); err != nil {
		t.Fatalf("CreateWager failed: %v", err)
	}

	if err := repo.DeactivateWager(ctx, wager.ID); err != nil {
		t.Fatalf("first deactivation failed: %v", err)
	}
	if err := repo.DeactivateWager(ctx, wager.ID); err != gorm.ErrRecordNotFound {
		t.Fatalf("expected second deactivation to find nothing, got %v", err)
	}
}
