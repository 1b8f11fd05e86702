package repository

import (
	"context"
	"fmt"
	"time"

	"prediction-settlement/internal/apperrors"
	"prediction-settlement/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CreateGame creates a new prediction game
func (r *Repository) CreateGame(ctx context.Context, game *models.PredictionGame) error {
	return r.db.WithContext(ctx).Create(game).Error
}

// GetGameByID retrieves a game by ID
func (r *Repository) GetGameByID(ctx context.Context, gameID uint) (*models.PredictionGame, error) {
	var game models.PredictionGame
	err := r.db.WithContext(ctx).Where("id = ?", gameID).First(&game).Error
	if err != nil {
		return nil, err
	}
	return &game, nil
}

// TransitionGameStatus moves a game from one status to another. The
// update is guarded on the expected current status so two concurrent
// transitions cannot both win.
func (r *Repository) TransitionGameStatus(
	ctx context.Context,
	gameID uint,
	from models.GameStatus,
	to models.GameStatus,
	extra map[string]interface{},
) error {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range extra {
		updates[k] = v
	}

	res := r.db.WithContext(ctx).
		Model(&models.PredictionGame{}).
		Where("id = ? AND status = ?", gameID, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &apperrors.ConcurrencyConflictError{
			Resource: "game",
			ID:       fmt.Sprintf("%d", gameID),
		}
	}
	return nil
}

// CloseElapsedGames marks ACTIVE games whose registration window has
// ended as CLOSED, independent of wager state.
func (r *Repository) CloseElapsedGames(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PredictionGame{}).
		Where("status = ? AND registration_end <= ?", models.GameStatusActive, now).
		Updates(map[string]interface{}{
			"status":     models.GameStatusClosed,
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}

// ListGamesByStatus retrieves games in a given status
func (r *Repository) ListGamesByStatus(ctx context.Context, status models.GameStatus, limit int) ([]*models.PredictionGame, error) {
	var games []*models.PredictionGame
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("registration_end ASC").
		Limit(limit).
		Find(&games).Error
	if err != nil {
		return nil, err
	}
	return games, nil
}

// SetGameOutcome records the realized outcome on a game
func (r *Repository) SetGameOutcome(ctx context.Context, gameID uint, winningOption *string, winningOrder *string) error {
	return r.db.WithContext(ctx).
		Model(&models.PredictionGame{}).
		Where("id = ?", gameID).
		Updates(map[string]interface{}{
			"winning_option": winningOption,
			"winning_order":  winningOrder,
			"updated_at":     time.Now(),
		}).Error
}

// CreateWager creates a new wager
func (r *Repository) CreateWager(ctx context.Context, wager *models.Wager) error {
	if wager.ID == uuid.Nil {
		wager.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(wager).Error
}

// GetWagerByID retrieves a wager by ID
func (r *Repository) GetWagerByID(ctx context.Context, wagerID uuid.UUID) (*models.Wager, error) {
	var wager models.Wager
	err := r.db.WithContext(ctx).Where("id = ?", wagerID).First(&wager).Error
	if err != nil {
		return nil, err
	}
	return &wager, nil
}

// GetActiveWagers retrieves all active wagers for a game
func (r *Repository) GetActiveWagers(ctx context.Context, gameID uint) ([]*models.Wager, error) {
	var wagers []*models.Wager
	err := r.db.WithContext(ctx).
		Where("game_id = ? AND is_active = ?", gameID, true).
		Order("created_at ASC").
		Find(&wagers).Error
	if err != nil {
		return nil, err
	}
	return wagers, nil
}

// GetAccountWagers retrieves all wagers placed by an account
func (r *Repository) GetAccountWagers(ctx context.Context, accountID uint, limit, offset int) ([]*models.Wager, error) {
	var wagers []*models.Wager
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&wagers).Error
	if err != nil {
		return nil, err
	}
	return wagers, nil
}

// SumStakes sums the stakes of all active wagers for a game
func (r *Repository) SumStakes(ctx context.Context, gameID uint) (decimal.Decimal, error) {
	var wagers []*models.Wager
	err := r.db.WithContext(ctx).
		Select("stake").
		Where("game_id = ? AND is_active = ?", gameID, true).
		Find(&wagers).Error
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, w := range wagers {
		total = total.Add(w.Stake)
	}
	return total, nil
}

// SumStakesByChoice sums active stakes on a single option of a game
func (r *Repository) SumStakesByChoice(ctx context.Context, gameID uint, choice string) (decimal.Decimal, error) {
	var wagers []*models.Wager
	err := r.db.WithContext(ctx).
		Select("stake").
		Where("game_id = ? AND choice = ? AND is_active = ?", gameID, choice, true).
		Find(&wagers).Error
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, w := range wagers {
		total = total.Add(w.Stake)
	}
	return total, nil
}

// DeactivateWager flips a wager inactive. The guard on is_active makes
// the flip happen exactly once.
func (r *Repository) DeactivateWager(ctx context.Context, wagerID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&models.Wager{}).
		Where("id = ? AND is_active = ?", wagerID, true).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
