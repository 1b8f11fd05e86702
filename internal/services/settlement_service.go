package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"prediction-settlement/internal/apperrors"
	"prediction-settlement/internal/models"
	"prediction-settlement/internal/outcome"
	"prediction-settlement/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SettlementService computes and commits payouts for all wagers of a
// closed game. The per-game batch is atomic: either every active wager
// settles and the game moves to SETTLED, or nothing commits. A retried
// batch skips wagers that already carry a settlement record.
type SettlementService struct {
	db                  *gorm.DB
	repo                *repository.Repository
	outcome             outcome.Fetcher
	locks               *GameLocks
	hybridBlend         decimal.Decimal
	consolationFraction decimal.Decimal
	now                 func() time.Time
}

func NewSettlementService(
	db *gorm.DB,
	repo *repository.Repository,
	fetcher outcome.Fetcher,
	locks *GameLocks,
	hybridBlendFactor float64,
	consolationFraction float64,
) *SettlementService {
	return &SettlementService{
		db:                  db,
		repo:                repo,
		outcome:             fetcher,
		locks:               locks,
		hybridBlend:         decimal.NewFromFloat(hybridBlendFactor),
		consolationFraction: decimal.NewFromFloat(consolationFraction),
		now:                 time.Now,
	}
}

// SettleGame settles a CLOSED game against its realized outcome.
// Idempotent: a repeat call on a SETTLED game is a no-op. A missing or
// pending outcome defers settlement; the game stays CLOSED and is
// retried on a later pass.
func (s *SettlementService) SettleGame(ctx context.Context, gameID uint) error {
	lock := s.locks.Get(gameID)
	lock.Lock()
	defer lock.Unlock()

	game, err := s.repo.GetGameByID(ctx, gameID)
	if err != nil {
		return fmt.Errorf("failed to get game: %w", err)
	}

	switch game.Status {
	case models.GameStatusSettled:
		return nil
	case models.GameStatusClosed:
		// proceed
	case models.GameStatusCancelled:
		return &apperrors.ValidationError{Field: "status", Reason: "game is cancelled"}
	default:
		return &apperrors.ValidationError{Field: "status", Reason: fmt.Sprintf("settlement requires CLOSED, game is %s", game.Status)}
	}

	winningOption, winningOrder, err := s.resolveOutcome(ctx, game)
	if err != nil {
		return err
	}

	wagers, err := s.repo.GetActiveWagers(ctx, gameID)
	if err != nil {
		return fmt.Errorf("failed to load active wagers: %w", err)
	}

	if len(wagers) == 0 {
		settledAt := s.now()
		return s.repo.TransitionGameStatus(ctx, gameID, models.GameStatusClosed, models.GameStatusSettled,
			map[string]interface{}{"settled_at": settledAt})
	}

	totalStakes := decimal.Zero
	for _, w := range wagers {
		totalStakes = totalStakes.Add(w.Stake)
	}
	totalPool := totalStakes.Add(game.BonusPool)

	lines, remainder, err := s.computePayouts(game, wagers, winningOption, winningOrder, totalPool)
	if err != nil {
		return err
	}

	paid := decimal.Zero
	for _, line := range lines {
		if line.amount.IsNegative() {
			violation := &apperrors.ConsistencyViolationError{
				Detail: fmt.Sprintf("negative payout %s for wager %s on game %d", line.amount.String(), line.wager.ID, gameID),
			}
			log.Printf("[SettlementService] ABORT game %d: %v", gameID, violation)
			return violation
		}
		paid = paid.Add(line.amount)
	}
	if paid.GreaterThan(totalPool) {
		violation := &apperrors.ConsistencyViolationError{
			Detail: fmt.Sprintf("payouts %s exceed pool %s for game %d (policy %s, %d wagers)",
				paid.String(), totalPool.String(), gameID, game.SettlementType, len(wagers)),
		}
		log.Printf("[SettlementService] ABORT game %d: %v", gameID, violation)
		return violation
	}

	settledAt := s.now()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		for _, line := range lines {
			// A wager settled by an earlier aborted-and-retried batch is
			// skipped, never paid twice.
			exists, err := txRepo.HasSettlementRecord(ctx, line.wager.ID)
			if err != nil {
				return fmt.Errorf("failed to check settlement record for wager %s: %w", line.wager.ID, err)
			}
			if exists {
				continue
			}

			record := &models.SettlementRecord{
				WagerID:        line.wager.ID,
				GameID:         gameID,
				AccountID:      line.wager.AccountID,
				AccuracyScore:  line.accuracy,
				RewardAmount:   line.amount,
				SettlementType: game.SettlementType,
				ProcessedAt:    settledAt,
			}
			if err := txRepo.CreateSettlementRecord(ctx, record); err != nil {
				return fmt.Errorf("failed to create settlement record for wager %s: %w", line.wager.ID, err)
			}

			payout := &models.Transaction{
				AccountID:   line.wager.AccountID,
				PointADelta: line.amount,
				Type:        models.TransactionTypeSettlementPayout,
				Description: fmt.Sprintf("Settlement of game %d, wager %s (%s)", gameID, line.wager.ID, game.SettlementType),
			}
			if err := txRepo.ApplyTransaction(ctx, payout); err != nil {
				return fmt.Errorf("failed to credit payout for wager %s: %w", line.wager.ID, err)
			}

			if err := txRepo.DeactivateWager(ctx, line.wager.ID); err != nil {
				return fmt.Errorf("failed to deactivate wager %s: %w", line.wager.ID, err)
			}
		}

		if remainder.IsPositive() {
			reserve, err := txRepo.GetOrCreateAccount(ctx, models.ReserveUserID)
			if err != nil {
				return fmt.Errorf("failed to load reserve account: %w", err)
			}
			credit := &models.Transaction{
				AccountID:   reserve.ID,
				PointADelta: remainder,
				Type:        models.TransactionTypeReserveCredit,
				Description: fmt.Sprintf("Settlement remainder of game %d", gameID),
			}
			if err := txRepo.ApplyTransaction(ctx, credit); err != nil {
				return fmt.Errorf("failed to credit reserve: %w", err)
			}
		}

		return txRepo.TransitionGameStatus(ctx, gameID, models.GameStatusClosed, models.GameStatusSettled,
			map[string]interface{}{"settled_at": settledAt})
	})
	if err != nil {
		return err
	}

	log.Printf("[SettlementService] Settled game %d: %d wagers, pool %s, paid %s, remainder %s",
		gameID, len(wagers), totalPool.String(), paid.String(), remainder.String())
	return nil
}

// resolveOutcome returns the realized outcome for the game, fetching and
// persisting it on first settlement attempt.
func (s *SettlementService) resolveOutcome(ctx context.Context, game *models.PredictionGame) (string, []string, error) {
	if game.WinningOption != nil {
		var order []string
		if game.WinningOrder != nil {
			if err := json.Unmarshal([]byte(*game.WinningOrder), &order); err != nil {
				return "", nil, &apperrors.ConsistencyViolationError{
					Detail: fmt.Sprintf("stored winning order of game %d is unreadable: %v", game.ID, err),
				}
			}
		}
		return *game.WinningOption, order, nil
	}

	result, err := s.outcome.FetchOutcome(ctx, game.ID)
	if err != nil {
		return "", nil, &apperrors.DataUnavailableError{Source: "outcome", Reason: err.Error()}
	}

	switch result.Status {
	case outcome.StatusResolved:
		// proceed
	default:
		return "", nil, &apperrors.DataUnavailableError{
			Source: "outcome",
			Reason: fmt.Sprintf("game %d outcome is %s", game.ID, result.Status),
		}
	}

	winningOption := result.WinningOption
	var winningOrder []string
	var orderJSON *string

	if game.Format == models.GameFormatRanking {
		if len(result.Ranking) == 0 {
			return "", nil, &apperrors.DataUnavailableError{Source: "outcome", Reason: "ranking result missing"}
		}
		winningOrder = result.Ranking
		winningOption = result.Ranking[0]
		encoded, err := json.Marshal(result.Ranking)
		if err != nil {
			return "", nil, fmt.Errorf("failed to encode winning order: %w", err)
		}
		data := string(encoded)
		orderJSON = &data
	}

	if !game.HasOption(winningOption) {
		return "", nil, &apperrors.ValidationError{
			Field:  "outcome",
			Reason: fmt.Sprintf("winning option %q is not among game %d options", winningOption, game.ID),
		}
	}

	if err := s.repo.SetGameOutcome(ctx, game.ID, &winningOption, orderJSON); err != nil {
		return "", nil, fmt.Errorf("failed to persist outcome: %w", err)
	}

	return winningOption, winningOrder, nil
}

// computePayouts runs the configured policy over the wager set.
func (s *SettlementService) computePayouts(
	game *models.PredictionGame,
	wagers []*models.Wager,
	winningOption string,
	winningOrder []string,
	totalPool decimal.Decimal,
) ([]payoutLine, decimal.Decimal, error) {
	var amounts []decimal.Decimal
	var remainder decimal.Decimal

	switch game.SettlementType {
	case models.SettlementTypeWinnerTakeAll:
		amounts, remainder = winnerTakeAllPayouts(wagers, winningOption, totalPool)
	case models.SettlementTypeProportional:
		amounts, remainder = proportionalPayouts(wagers, winningOption, totalPool, s.consolationFraction)
	case models.SettlementTypeConfidenceWeighted:
		amounts, remainder = confidenceWeightedPayouts(wagers, winningOption, totalPool)
	case models.SettlementTypeHybrid:
		amounts, remainder = hybridPayouts(wagers, winningOption, totalPool, s.hybridBlend)
	default:
		return nil, decimal.Zero, &apperrors.ValidationError{
			Field:  "settlement_type",
			Reason: fmt.Sprintf("unknown policy %q", game.SettlementType),
		}
	}

	lines := make([]payoutLine, len(wagers))
	for i, w := range wagers {
		lines[i] = payoutLine{
			wager:    w,
			amount:   amounts[i],
			accuracy: computeAccuracy(game, w, winningOption, winningOrder),
		}
	}
	return lines, remainder, nil
}
