package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"prediction-settlement/internal/apperrors"
	"prediction-settlement/internal/identity"
	"prediction-settlement/internal/models"
	"prediction-settlement/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GameService owns the prediction-game state machine and wager
// placement.
type GameService struct {
	db           *gorm.DB
	repo         *repository.Repository
	identity     identity.Resolver
	locks        *GameLocks
	domain       string
	hourBucket   HourBucketFunc
	applyRetries int
	now          func() time.Time
}

func NewGameService(
	db *gorm.DB,
	repo *repository.Repository,
	resolver identity.Resolver,
	locks *GameLocks,
	domain string,
	loc *time.Location,
	applyRetries int,
) *GameService {
	return &GameService{
		db:           db,
		repo:         repo,
		identity:     resolver,
		locks:        locks,
		domain:       domain,
		hourBucket:   HourBucketIn(loc),
		applyRetries: applyRetries,
		now:          time.Now,
	}
}

// CreateGame creates a new game in DRAFT status
func (s *GameService) CreateGame(ctx context.Context, req *models.CreateGameRequest) (*models.PredictionGame, error) {
	start, err := time.Parse(time.RFC3339, req.RegistrationStart)
	if err != nil {
		return nil, &apperrors.ValidationError{Field: "registration_start", Reason: "must be RFC3339"}
	}
	end, err := time.Parse(time.RFC3339, req.RegistrationEnd)
	if err != nil {
		return nil, &apperrors.ValidationError{Field: "registration_end", Reason: "must be RFC3339"}
	}
	if !end.After(start) {
		return nil, &apperrors.ValidationError{Field: "registration_end", Reason: "must be after registration_start"}
	}

	if len(req.Options) < 2 {
		return nil, &apperrors.ValidationError{Field: "options", Reason: "at least two options required"}
	}

	format := models.GameFormat(req.Format)
	if format == "" {
		format = models.GameFormatBinary
	}
	switch format {
	case models.GameFormatBinary, models.GameFormatWinDrawLose, models.GameFormatRanking:
	default:
		return nil, &apperrors.ValidationError{Field: "format", Reason: "unknown game format"}
	}

	settlementType := models.SettlementType(req.SettlementType)
	if settlementType == "" {
		settlementType = models.SettlementTypeWinnerTakeAll
	}
	if !models.ValidSettlementType(settlementType) {
		return nil, &apperrors.ValidationError{Field: "settlement_type", Reason: "unknown settlement policy"}
	}

	minStake := decimal.NewFromFloat(req.MinStake)
	maxStake := decimal.NewFromFloat(req.MaxStake)
	if minStake.IsZero() {
		minStake = decimal.NewFromInt(1)
	}
	if maxStake.IsZero() {
		maxStake = decimal.NewFromInt(1000)
	}
	if minStake.IsNegative() || maxStake.LessThan(minStake) {
		return nil, &apperrors.ValidationError{Field: "stake bounds", Reason: "max_stake must be >= min_stake >= 0"}
	}

	bonusPool := decimal.NewFromFloat(req.BonusPool)
	if bonusPool.IsNegative() {
		return nil, &apperrors.ValidationError{Field: "bonus_pool", Reason: "must not be negative"}
	}

	optionsJSON, err := json.Marshal(req.Options)
	if err != nil {
		return nil, fmt.Errorf("failed to encode options: %w", err)
	}

	game := &models.PredictionGame{
		Title:             req.Title,
		Category:          NormalizeCategory(req.Category),
		Subcategory:       NormalizeCategory(req.Subcategory),
		League:            req.League,
		Format:            format,
		Status:            models.GameStatusDraft,
		Options:           string(optionsJSON),
		RegistrationStart: start,
		RegistrationEnd:   end,
		MinStake:          minStake,
		MaxStake:          maxStake,
		SettlementType:    settlementType,
		BonusPool:         bonusPool,
	}

	if err := s.repo.CreateGame(ctx, game); err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	log.Printf("[GameService] Created game %d (%s/%s, %s)", game.ID, game.Category, game.Subcategory, game.SettlementType)
	return game, nil
}

// ActivateGame transitions DRAFT -> ACTIVE. The registration window must
// be open.
func (s *GameService) ActivateGame(ctx context.Context, gameID uint) error {
	game, err := s.repo.GetGameByID(ctx, gameID)
	if err != nil {
		return fmt.Errorf("failed to get game: %w", err)
	}

	if game.Status != models.GameStatusDraft {
		return &apperrors.ValidationError{Field: "status", Reason: fmt.Sprintf("cannot activate game in status %s", game.Status)}
	}

	now := s.now()
	if now.Before(game.RegistrationStart) || !now.Before(game.RegistrationEnd) {
		return &apperrors.ValidationError{Field: "registration window", Reason: "window is not open"}
	}

	return s.repo.TransitionGameStatus(ctx, gameID, models.GameStatusDraft, models.GameStatusActive, nil)
}

// CloseGame transitions ACTIVE -> CLOSED ahead of the window's natural
// end, stopping further wager placement.
func (s *GameService) CloseGame(ctx context.Context, gameID uint) error {
	game, err := s.repo.GetGameByID(ctx, gameID)
	if err != nil {
		return fmt.Errorf("failed to get game: %w", err)
	}

	if game.Status != models.GameStatusActive {
		return &apperrors.ValidationError{Field: "status", Reason: fmt.Sprintf("cannot close game in status %s", game.Status)}
	}

	return s.repo.TransitionGameStatus(ctx, gameID, models.GameStatusActive, models.GameStatusClosed, nil)
}

// CloseDueGames marks every ACTIVE game whose registration window has
// elapsed as CLOSED.
func (s *GameService) CloseDueGames(ctx context.Context) (int64, error) {
	return s.repo.CloseElapsedGames(ctx, s.now())
}

// ListGamesByStatus retrieves games in a given status, oldest first.
func (s *GameService) ListGamesByStatus(ctx context.Context, status models.GameStatus, limit int) ([]*models.PredictionGame, error) {
	return s.repo.ListGamesByStatus(ctx, status, limit)
}

// CancelGame transitions DRAFT|ACTIVE -> CANCELLED and refunds every
// active wager's stake through a compensating transaction. No profit is
// taken. A cancellation attempted while settlement holds the game lock
// is rejected as contention.
func (s *GameService) CancelGame(ctx context.Context, gameID uint) error {
	lock := s.locks.Get(gameID)
	if !lock.TryLock() {
		return &apperrors.ConcurrencyConflictError{Resource: "game", ID: fmt.Sprintf("%d", gameID)}
	}
	defer lock.Unlock()

	game, err := s.repo.GetGameByID(ctx, gameID)
	if err != nil {
		return fmt.Errorf("failed to get game: %w", err)
	}

	if game.Status != models.GameStatusDraft && game.Status != models.GameStatusActive {
		return &apperrors.ValidationError{Field: "status", Reason: fmt.Sprintf("cannot cancel game in status %s", game.Status)}
	}

	refunded := 0
	err = s.db.Transaction(func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		if err := txRepo.TransitionGameStatus(ctx, gameID, game.Status, models.GameStatusCancelled, nil); err != nil {
			return err
		}

		wagers, err := txRepo.GetActiveWagers(ctx, gameID)
		if err != nil {
			return fmt.Errorf("failed to load active wagers: %w", err)
		}

		for _, wager := range wagers {
			refund := &models.Transaction{
				AccountID:   wager.AccountID,
				PointADelta: wager.Stake,
				Type:        models.TransactionTypeStakeRefund,
				Description: fmt.Sprintf("Refund for cancelled game %d, wager %s", gameID, wager.ID),
			}
			if err := txRepo.ApplyTransaction(ctx, refund); err != nil {
				return fmt.Errorf("failed to refund wager %s: %w", wager.ID, err)
			}

			if err := txRepo.DeactivateWager(ctx, wager.ID); err != nil {
				return fmt.Errorf("failed to deactivate wager %s: %w", wager.ID, err)
			}
			refunded++
		}

		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("[GameService] Cancelled game %d, refunded %d wagers", gameID, refunded)
	return nil
}

// PlaceWager validates and records a wager on an ACTIVE game, debiting
// the stake from the account's pointA balance.
func (s *GameService) PlaceWager(ctx context.Context, userID uint, req *models.PlaceWagerRequest) (*models.Wager, error) {
	stake := decimal.NewFromFloat(req.Stake)
	if !stake.IsPositive() {
		return nil, &apperrors.ValidationError{Field: "stake", Reason: "must be positive"}
	}

	confidence := req.Confidence
	if confidence == 0 {
		confidence = 1
	}
	if confidence < 1 || confidence > 5 {
		return nil, &apperrors.ValidationError{Field: "confidence", Reason: "must be within [1,5]"}
	}

	game, err := s.repo.GetGameByID(ctx, req.GameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}

	if game.Status != models.GameStatusActive {
		return nil, &apperrors.ValidationError{Field: "game", Reason: fmt.Sprintf("game is %s, not ACTIVE", game.Status)}
	}
	if !s.now().Before(game.RegistrationEnd) {
		return nil, &apperrors.ValidationError{Field: "game", Reason: "registration window has closed"}
	}

	if stake.LessThan(game.MinStake) || stake.GreaterThan(game.MaxStake) {
		return nil, &apperrors.ValidationError{
			Field:  "stake",
			Reason: fmt.Sprintf("must be within [%s, %s]", game.MinStake.String(), game.MaxStake.String()),
		}
	}

	choice := req.Choice
	var rankingData *string
	if game.Format == models.GameFormatRanking {
		if len(req.Ranking) == 0 {
			return nil, &apperrors.ValidationError{Field: "ranking", Reason: "required for RANKING games"}
		}
		for _, item := range req.Ranking {
			if !game.HasOption(item) {
				return nil, &apperrors.ValidationError{Field: "ranking", Reason: fmt.Sprintf("unknown option %q", item)}
			}
		}
		encoded, err := json.Marshal(req.Ranking)
		if err != nil {
			return nil, fmt.Errorf("failed to encode ranking: %w", err)
		}
		data := string(encoded)
		rankingData = &data
		choice = req.Ranking[0]
	} else if !game.HasOption(choice) {
		return nil, &apperrors.ValidationError{Field: "choice", Reason: fmt.Sprintf("unknown option %q", choice)}
	}

	account, err := s.resolveAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !account.IsActive {
		return nil, &apperrors.ValidationError{Field: "account", Reason: "account is inactive"}
	}

	odds, err := s.currentOdds(ctx, game.ID, choice, stake)
	if err != nil {
		return nil, fmt.Errorf("failed to compute odds: %w", err)
	}

	debit := &models.Transaction{
		AccountID:   account.ID,
		PointADelta: stake.Neg(),
		Type:        models.TransactionTypeStakePlaced,
		Description: fmt.Sprintf("Stake on game %d (%s)", game.ID, choice),
	}
	if err := s.repo.ApplyTransactionWithRetry(ctx, debit, s.applyRetries); err != nil {
		return nil, err
	}

	wager := &models.Wager{
		GameID:          game.ID,
		AccountID:       account.ID,
		Stake:           stake,
		Choice:          choice,
		RankingData:     rankingData,
		OddsAtPlacement: odds,
		Confidence:      confidence,
		IsActive:        true,
	}
	if err := s.repo.CreateWager(ctx, wager); err != nil {
		// Compensate the debit so the stake is not lost on a failed write.
		compensation := &models.Transaction{
			AccountID:   account.ID,
			PointADelta: stake,
			Type:        models.TransactionTypeStakeRefund,
			Description: fmt.Sprintf("Compensation for failed wager on game %d", game.ID),
		}
		if compErr := s.repo.ApplyTransactionWithRetry(ctx, compensation, s.applyRetries); compErr != nil {
			log.Printf("[GameService] FAILED to compensate stake for account %d on game %d: %v", account.ID, game.ID, compErr)
		}
		return nil, fmt.Errorf("failed to create wager: %w", err)
	}

	s.refreshGamePoolSnapshot(ctx, game)

	return wager, nil
}

// GetGameState returns a game's public state
func (s *GameService) GetGameState(ctx context.Context, gameID uint) (*models.GameStateResponse, error) {
	game, err := s.repo.GetGameByID(ctx, gameID)
	if err != nil {
		return nil, err
	}

	return &models.GameStateResponse{
		ID:              game.ID,
		Title:           game.Title,
		Category:        game.Category,
		Subcategory:     game.Subcategory,
		Status:          string(game.Status),
		Options:         game.ParseOptions(),
		RegistrationEnd: game.RegistrationEnd,
		SettlementType:  string(game.SettlementType),
		WinningOption:   game.WinningOption,
		SettledAt:       game.SettledAt,
	}, nil
}

// GetAccountWagers returns a user's wagers
func (s *GameService) GetAccountWagers(ctx context.Context, userID uint, limit, offset int) ([]*models.Wager, error) {
	account, err := s.repo.GetAccountByUserID(ctx, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return []*models.Wager{}, nil
		}
		return nil, err
	}
	return s.repo.GetAccountWagers(ctx, account.ID, limit, offset)
}

// GetAccount returns the ledger account for a user
func (s *GameService) GetAccount(ctx context.Context, userID uint) (*models.Account, error) {
	return s.resolveAccount(ctx, userID)
}

// resolveAccount returns the local account for a user, creating it after
// a successful identity resolution on first contact.
func (s *GameService) resolveAccount(ctx context.Context, userID uint) (*models.Account, error) {
	account, err := s.repo.GetAccountByUserID(ctx, userID)
	if err == nil {
		return account, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	info, err := s.identity.ResolveUser(ctx, userID)
	if err != nil {
		return nil, &apperrors.DataUnavailableError{Source: "identity", Reason: err.Error()}
	}
	if !info.Active {
		return nil, &apperrors.ValidationError{Field: "user", Reason: "user is not active"}
	}

	return s.repo.GetOrCreateAccount(ctx, userID)
}

// currentOdds derives the implied odds for a choice as placed, from the
// stake distribution including the incoming stake. Immutable once stored
// on the wager.
func (s *GameService) currentOdds(ctx context.Context, gameID uint, choice string, stake decimal.Decimal) (decimal.Decimal, error) {
	total, err := s.repo.SumStakes(ctx, gameID)
	if err != nil {
		return decimal.Zero, err
	}
	onChoice, err := s.repo.SumStakesByChoice(ctx, gameID, choice)
	if err != nil {
		return decimal.Zero, err
	}

	odds := total.Add(stake).Div(onChoice.Add(stake)).Round(4)
	if odds.LessThan(decimal.NewFromInt(1)) {
		odds = decimal.NewFromInt(1)
	}
	return odds, nil
}

// refreshGamePoolSnapshot writes the game's per-hour pool snapshot so
// the aggregator sees the latest figure. Best effort.
func (s *GameService) refreshGamePoolSnapshot(ctx context.Context, game *models.PredictionGame) {
	total, err := s.repo.SumStakes(ctx, game.ID)
	if err != nil {
		log.Printf("[GameService] Failed to sum stakes for snapshot of game %d: %v", game.ID, err)
		return
	}

	snapshot := &models.GamePoolSnapshot{
		Domain:      s.domain,
		HourBucket:  s.hourBucket(s.now()),
		Category:    game.Category,
		Subcategory: game.Subcategory,
		GameID:      game.ID,
		Pool:        total.Add(game.BonusPool),
	}
	if err := s.repo.UpsertGamePoolSnapshot(ctx, snapshot); err != nil {
		log.Printf("[GameService] Failed to write pool snapshot for game %d: %v", game.ID, err)
	}
}
