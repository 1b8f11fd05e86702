package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"prediction-settlement/internal/apperrors"
	"prediction-settlement/internal/identity"
	"prediction-settlement/internal/models"
	"prediction-settlement/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// stubResolver is a canned identity collaborator.
type stubResolver struct {
	active bool
	err    error
}

func (r *stubResolver) ResolveUser(ctx context.Context, userID uint) (*identity.UserInfo, error) {
	if r.err != nil {
		return nil, r.err
	}
	return &identity.UserInfo{UserID: userID, Active: r.active}, nil
}

func newTestGameService(db *gorm.DB, resolver identity.Resolver) *GameService {
	repo := repository.NewRepository(db)
	if resolver == nil {
		resolver = &stubResolver{active: true}
	}
	return NewGameService(db, repo, resolver, NewGameLocks(), testDomain, time.UTC, 3)
}

func activeGameRequest() *models.CreateGameRequest {
	return &models.CreateGameRequest{
		Title:             "home vs away",
		Category:          "sports",
		Subcategory:       "tennis",
		Options:           []string{"HOME", "AWAY"},
		RegistrationStart: time.Now().Add(-time.Hour).Format(time.RFC3339),
		RegistrationEnd:   time.Now().Add(time.Hour).Format(time.RFC3339),
		MinStake:          1,
		MaxStake:          1000,
	}
}

func TestGameLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	service := newTestGameService(db, nil)

	game, err := service.CreateGame(ctx, activeGameRequest())
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	if game.Status != models.GameStatusDraft {
		t.Errorf("expected DRAFT, got %s", game.Status)
	}
	if game.Category != "SPORTS" || game.Subcategory != "TENNIS" {
		t.Errorf("expected normalized hierarchy, got %s/%s", game.Category, game.Subcategory)
	}
	if game.SettlementType != models.SettlementTypeWinnerTakeAll {
		t.Errorf("expected default WINNER_TAKE_ALL, got %s", game.SettlementType)
	}

	if err := service.ActivateGame(ctx, game.ID); err != nil {
		t.Fatalf("ActivateGame failed: %v", err)
	}

	// Activating twice finds the game no longer DRAFT.
	if err := service.ActivateGame(ctx, game.ID); err == nil {
		t.Error("expected second activation to fail")
	}

	var g models.PredictionGame
	db.First(&g, game.ID)
	if g.Status != models.GameStatusActive {
		t.Errorf("expected ACTIVE, got %s", g.Status)
	}
}

func TestCreateGameValidation(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	service := newTestGameService(db, nil)

	req := activeGameRequest()
	req.Options = []string{"ONLY"}
	if _, err := service.CreateGame(ctx, req); !apperrors.IsValidation(err) {
		t.Errorf("expected ValidationError for single option, got %v", err)
	}

	req = activeGameRequest()
	req.RegistrationEnd = req.RegistrationStart
	if _, err := service.CreateGame(ctx, req); !apperrors.IsValidation(err) {
		t.Errorf("expected ValidationError for empty window, got %v", err)
	}

	req = activeGameRequest()
	req.SettlementType = "LOTTERY"
	if _, err := service.CreateGame(ctx, req); !apperrors.IsValidation(err) {
		t.Errorf("expected ValidationError for unknown policy, got %v", err)
	}

	req = activeGameRequest()
	req.MinStake = 100
	req.MaxStake = 10
	if _, err := service.CreateGame(ctx, req); !apperrors.IsValidation(err) {
		t.Errorf("expected ValidationError for inverted stake bounds, got %v", err)
	}
}

func TestPlaceWagerDebitsStake(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	service := newTestGameService(db, nil)

	account := seedAccount(t, db, 1, 500, 0)
	game, err := service.CreateGame(ctx, activeGameRequest())
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	if err := service.ActivateGame(ctx, game.ID); err != nil {
		t.Fatalf("ActivateGame failed: %v", err)
	}

	wager, err := service.PlaceWager(ctx, 1, &models.PlaceWagerRequest{
		GameID: game.ID,
		Stake:  200,
		Choice: "HOME",
	})
	if err != nil {
		t.Fatalf("PlaceWager failed: %v", err)
	}

	if !wager.Stake.Equal(decimal.NewFromInt(200)) {
		t.Errorf("expected stake 200, got %s", wager.Stake)
	}
	if wager.Confidence != 1 {
		t.Errorf("expected default confidence 1, got %d", wager.Confidence)
	}
	if !wager.OddsAtPlacement.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		t.Errorf("expected odds >= 1, got %s", wager.OddsAtPlacement)
	}
	if got := accountBalance(t, db, account.ID); !got.Equal(decimal.NewFromInt(300)) {
		t.Errorf("expected balance 300 after debit, got %s", got)
	}

	// The stake debit is on the ledger.
	var entry models.Transaction
	if err := db.Where("account_id = ? AND type = ?", account.ID, models.TransactionTypeStakePlaced).First(&entry).Error; err != nil {
		t.Fatalf("stake transaction not logged: %v", err)
	}
	if !entry.PointADelta.Equal(decimal.NewFromInt(-200)) {
		t.Errorf("expected delta -200, got %s", entry.PointADelta)
	}

	// The game's pool snapshot reflects the stake.
	var snapshot models.GamePoolSnapshot
	if err := db.Where("game_id = ?", game.ID).First(&snapshot).Error; err != nil {
		t.Fatalf("pool snapshot not written: %v", err)
	}
	if !snapshot.Pool.Equal(decimal.NewFromInt(200)) {
		t.Errorf("expected snapshot pool 200, got %s", snapshot.Pool)
	}
}

func TestPlaceWagerInsufficientBalance(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	service := newTestGameService(db, nil)

	account := seedAccount(t, db, 1, 50, 0)
	game, _ := service.CreateGame(ctx, activeGameRequest())
	service.ActivateGame(ctx, game.ID)

	_, err := service.PlaceWager(ctx, 1, &models.PlaceWagerRequest{
		GameID: game.ID,
		Stake:  200,
		Choice: "HOME",
	})
	if !apperrors.IsInsufficientBalance(err) {
		t.Fatalf("expected InsufficientBalanceError, got %v", err)
	}
	if got := accountBalance(t, db, account.ID); !got.Equal(decimal.NewFromInt(50)) {
		t.Errorf("rejected wager must not touch the balance, got %s", got)
	}
}

func TestPlaceWagerValidation(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	service := newTestGameService(db, nil)

	seedAccount(t, db, 1, 1000, 0)
	game, _ := service.CreateGame(ctx, activeGameRequest())
	service.ActivateGame(ctx, game.ID)

	cases := []struct {
		name string
		req  *models.PlaceWagerRequest
	}{
		{"unknown option", &models.PlaceWagerRequest{GameID: game.ID, Stake: 10, Choice: "DRAW"}},
		{"below min stake", &models.PlaceWagerRequest{GameID: game.ID, Stake: 0.5, Choice: "HOME"}},
		{"above max stake", &models.PlaceWagerRequest{GameID: game.ID, Stake: 5000, Choice: "HOME"}},
		{"confidence out of range", &models.PlaceWagerRequest{GameID: game.ID, Stake: 10, Choice: "HOME", Confidence: 9}},
	}
	for _, tc := range cases {
		if _, err := service.PlaceWager(ctx, 1, tc.req); !apperrors.IsValidation(err) {
			t.Errorf("%s: expected ValidationError, got %v", tc.name, err)
		}
	}
}

func TestPlaceWagerOnDraftGameRejected(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	service := newTestGameService(db, nil)

	seedAccount(t, db, 1, 1000, 0)
	game, _ := service.CreateGame(ctx, activeGameRequest())

	_, err := service.PlaceWager(ctx, 1, &models.PlaceWagerRequest{
		GameID: game.ID,
		Stake:  10,
		Choice: "HOME",
	})
	if !apperrors.IsValidation(err) {
		t.Fatalf("expected ValidationError on DRAFT game, got %v", err)
	}
}

func TestPlaceWagerRanking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	service := newTestGameService(db, nil)

	seedAccount(t, db, 1, 1000, 0)

	req := activeGameRequest()
	req.Format = string(models.GameFormatRanking)
	req.Options = []string{"A", "B", "C"}
	game, err := service.CreateGame(ctx, req)
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	service.ActivateGame(ctx, game.ID)

	// Ranking with an unknown item is rejected.
	_, err = service.PlaceWager(ctx, 1, &models.PlaceWagerRequest{
		GameID:  game.ID,
		Stake:   10,
		Ranking: []string{"A", "X"},
	})
	if !apperrors.IsValidation(err) {
		t.Fatalf("expected ValidationError for unknown ranking item, got %v", err)
	}

	wager, err := service.PlaceWager(ctx, 1, &models.PlaceWagerRequest{
		GameID:  game.ID,
		Stake:   10,
		Ranking: []string{"B", "A", "C"},
	})
	if err != nil {
		t.Fatalf("PlaceWager failed: %v", err)
	}
	if wager.Choice != "B" {
		t.Errorf("expected choice to be the predicted leader B, got %s", wager.Choice)
	}

	var ranking []string
	json.Unmarshal([]byte(*wager.RankingData), &ranking)
	if len(ranking) != 3 || ranking[0] != "B" {
		t.Errorf("unexpected persisted ranking %v", ranking)
	}
}

func TestPlaceWagerUnknownUserResolved(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	// No local account for user 7: the identity collaborator vouches for
	// them and an empty account is created, so the debit fails on funds,
	// not on identity.
	service := newTestGameService(db, &stubResolver{active: true})
	game, _ := service.CreateGame(ctx, activeGameRequest())
	service.ActivateGame(ctx, game.ID)

	_, err := service.PlaceWager(ctx, 7, &models.PlaceWagerRequest{
		GameID: game.ID,
		Stake:  10,
		Choice: "HOME",
	})
	if !apperrors.IsInsufficientBalance(err) {
		t.Fatalf("expected InsufficientBalanceError for fresh account, got %v", err)
	}

	var account models.Account
	if err := db.Where("user_id = ?", 7).First(&account).Error; err != nil {
		t.Fatalf("expected account to be created for resolved user: %v", err)
	}
}

func TestPlaceWagerIdentityUnavailable(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	service := newTestGameService(db, &stubResolver{err: fmt.Errorf("connection refused")})
	game, _ := service.CreateGame(ctx, activeGameRequest())
	service.ActivateGame(ctx, game.ID)

	_, err := service.PlaceWager(ctx, 7, &models.PlaceWagerRequest{
		GameID: game.ID,
		Stake:  10,
		Choice: "HOME",
	})
	if !apperrors.IsDataUnavailable(err) {
		t.Fatalf("expected DataUnavailableError when identity is down, got %v", err)
	}
}

func TestCancelGameRefundsStakes(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	service := newTestGameService(db, nil)

	a1 := seedAccount(t, db, 1, 500, 0)
	a2 := seedAccount(t, db, 2, 500, 0)
	game, _ := service.CreateGame(ctx, activeGameRequest())
	service.ActivateGame(ctx, game.ID)

	if _, err := service.PlaceWager(ctx, 1, &models.PlaceWagerRequest{GameID: game.ID, Stake: 100, Choice: "HOME"}); err != nil {
		t.Fatalf("PlaceWager failed: %v", err)
	}
	if _, err := service.PlaceWager(ctx, 2, &models.PlaceWagerRequest{GameID: game.ID, Stake: 250, Choice: "AWAY"}); err != nil {
		t.Fatalf("PlaceWager failed: %v", err)
	}

	if err := service.CancelGame(ctx, game.ID); err != nil {
		t.Fatalf("CancelGame failed: %v", err)
	}

	// Every stake comes back at face value.
	if got := accountBalance(t, db, a1.ID); !got.Equal(decimal.NewFromInt(500)) {
		t.Errorf("expected full refund to 500, got %s", got)
	}
	if got := accountBalance(t, db, a2.ID); !got.Equal(decimal.NewFromInt(500)) {
		t.Errorf("expected full refund to 500, got %s", got)
	}

	var g models.PredictionGame
	db.First(&g, game.ID)
	if g.Status != models.GameStatusCancelled {
		t.Errorf("expected CANCELLED, got %s", g.Status)
	}

	var active int64
	db.Model(&models.Wager{}).Where("game_id = ? AND is_active = ?", game.ID, true).Count(&active)
	if active != 0 {
		t.Errorf("expected all wagers deactivated, %d still active", active)
	}

	// A cancelled game cannot be cancelled again.
	if err := service.CancelGame(ctx, game.ID); !apperrors.IsValidation(err) {
		t.Errorf("expected ValidationError on repeat cancel, got %v", err)
	}
}

func TestCancelWhileSettlementHoldsLock(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	service := newTestGameService(db, nil)

	game, _ := service.CreateGame(ctx, activeGameRequest())

	// Simulate settlement holding the game lock: cancellation backs off
	// instead of waiting.
	lock := service.locks.Get(game.ID)
	lock.Lock()
	defer lock.Unlock()

	if err := service.CancelGame(ctx, game.ID); !apperrors.IsConcurrencyConflict(err) {
		t.Fatalf("expected ConcurrencyConflictError under contention, got %v", err)
	}
}

func TestCloseDueGames(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	service := newTestGameService(db, nil)

	req := activeGameRequest()
	game, _ := service.CreateGame(ctx, req)
	service.ActivateGame(ctx, game.ID)

	// Nothing has elapsed yet.
	closed, err := service.CloseDueGames(ctx)
	if err != nil {
		t.Fatalf("CloseDueGames failed: %v", err)
	}
	if closed != 0 {
		t.Errorf("expected 0 closed, got %d", closed)
	}

	// Force the window shut.
	db.Model(&models.PredictionGame{}).Where("id = ?", game.ID).
		Update("registration_end", time.Now().Add(-time.Minute))

	closed, err = service.CloseDueGames(ctx)
	if err != nil {
		t.Fatalf("CloseDueGames failed: %v", err)
	}
	if closed != 1 {
		t.Errorf("expected 1 closed, got %d", closed)
	}

	var g models.PredictionGame
	db.First(&g, game.ID)
	if g.Status != models.GameStatusClosed {
		t.Errorf("expected CLOSED, got %s", g.Status)
	}
}
