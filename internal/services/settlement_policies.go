package services

import (
	"prediction-settlement/internal/models"

	"github.com/shopspring/decimal"
)

// payoutLine is one wager's computed settlement outcome, before commit.
type payoutLine struct {
	wager    *models.Wager
	amount   decimal.Decimal
	accuracy float64
}

// computeAccuracy scores a wager's prediction in [0,1]. Discrete formats
// are all-or-nothing; RANKING earns partial credit by positional
// distance. The score is reported independent of payout.
func computeAccuracy(game *models.PredictionGame, wager *models.Wager, winningOption string, winningOrder []string) float64 {
	if game.Format == models.GameFormatRanking && len(winningOrder) > 0 {
		return rankingAccuracy(wager.ParseRanking(), winningOrder)
	}

	if wager.Choice == winningOption {
		return 1.0
	}
	return 0.0
}

// rankingAccuracy is 1 - (total positional displacement / worst case).
// An item missing from the prediction counts as maximally displaced.
func rankingAccuracy(predicted, actual []string) float64 {
	n := len(actual)
	if n == 0 {
		return 0.0
	}

	position := make(map[string]int, len(predicted))
	for i, item := range predicted {
		position[item] = i
	}

	totalDistance := 0
	for i, item := range actual {
		j, ok := position[item]
		if !ok {
			totalDistance += n - 1
			continue
		}
		d := i - j
		if d < 0 {
			d = -d
		}
		totalDistance += d
	}

	// Worst-case total displacement for a permutation of n items.
	maxDistance := (n * n) / 2
	if maxDistance == 0 {
		return 1.0
	}

	score := 1.0 - float64(totalDistance)/float64(maxDistance)
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

// winnerTakeAllPayouts splits totalPool across winners proportional to
// stake. Losers receive 0. The rounding remainder (the whole pool, when
// nothing won) goes to the platform reserve.
func winnerTakeAllPayouts(wagers []*models.Wager, winningOption string, totalPool decimal.Decimal) ([]decimal.Decimal, decimal.Decimal) {
	winnerStakes := decimal.Zero
	for _, w := range wagers {
		if w.Choice == winningOption {
			winnerStakes = winnerStakes.Add(w.Stake)
		}
	}

	amounts := make([]decimal.Decimal, len(wagers))
	paid := decimal.Zero
	for i, w := range wagers {
		if w.Choice != winningOption || !winnerStakes.IsPositive() {
			amounts[i] = decimal.Zero
			continue
		}
		amounts[i] = w.Stake.Div(winnerStakes).Mul(totalPool).RoundDown(2)
		paid = paid.Add(amounts[i])
	}

	return amounts, totalPool.Sub(paid)
}

// proportionalPayouts rewards every participant: winners at their odds
// at placement, losers a fixed consolation fraction of stake. If the
// naive sum exceeds totalPool, every payout scales down uniformly so the
// sum fits the pool exactly (modulo rounding).
func proportionalPayouts(wagers []*models.Wager, winningOption string, totalPool, consolationFraction decimal.Decimal) ([]decimal.Decimal, decimal.Decimal) {
	naive := make([]decimal.Decimal, len(wagers))
	naiveSum := decimal.Zero
	for i, w := range wagers {
		if w.Choice == winningOption {
			naive[i] = w.Stake.Mul(w.OddsAtPlacement)
		} else {
			naive[i] = w.Stake.Mul(consolationFraction)
		}
		naiveSum = naiveSum.Add(naive[i])
	}

	scale := decimal.NewFromInt(1)
	if naiveSum.GreaterThan(totalPool) && naiveSum.IsPositive() {
		scale = totalPool.Div(naiveSum)
	}

	amounts := make([]decimal.Decimal, len(wagers))
	paid := decimal.Zero
	for i := range wagers {
		amounts[i] = naive[i].Mul(scale).RoundDown(2)
		paid = paid.Add(amounts[i])
	}

	return amounts, totalPool.Sub(paid)
}

// confidenceWeightedPayouts distributes totalPool among winners
// proportional to stake x confidence. Losers receive 0.
func confidenceWeightedPayouts(wagers []*models.Wager, winningOption string, totalPool decimal.Decimal) ([]decimal.Decimal, decimal.Decimal) {
	weights := make([]decimal.Decimal, len(wagers))
	totalWeight := decimal.Zero
	for i, w := range wagers {
		if w.Choice == winningOption {
			weights[i] = w.Stake.Mul(decimal.NewFromInt(int64(w.Confidence)))
			totalWeight = totalWeight.Add(weights[i])
		}
	}

	amounts := make([]decimal.Decimal, len(wagers))
	paid := decimal.Zero
	for i := range wagers {
		if !weights[i].IsPositive() || !totalWeight.IsPositive() {
			amounts[i] = decimal.Zero
			continue
		}
		amounts[i] = weights[i].Div(totalWeight).Mul(totalPool).RoundDown(2)
		paid = paid.Add(amounts[i])
	}

	return amounts, totalPool.Sub(paid)
}

// hybridPayouts blends the WINNER_TAKE_ALL and CONFIDENCE_WEIGHTED
// shares at a fixed ratio, re-normalized so the aggregate never exceeds
// totalPool.
func hybridPayouts(wagers []*models.Wager, winningOption string, totalPool, blendFactor decimal.Decimal) ([]decimal.Decimal, decimal.Decimal) {
	wtaShares, _ := winnerTakeAllPayouts(wagers, winningOption, totalPool)
	confShares, _ := confidenceWeightedPayouts(wagers, winningOption, totalPool)

	inverse := decimal.NewFromInt(1).Sub(blendFactor)

	blended := make([]decimal.Decimal, len(wagers))
	blendedSum := decimal.Zero
	for i := range wagers {
		blended[i] = wtaShares[i].Mul(blendFactor).Add(confShares[i].Mul(inverse))
		blendedSum = blendedSum.Add(blended[i])
	}

	scale := decimal.NewFromInt(1)
	if blendedSum.GreaterThan(totalPool) && blendedSum.IsPositive() {
		scale = totalPool.Div(blendedSum)
	}

	amounts := make([]decimal.Decimal, len(wagers))
	paid := decimal.Zero
	for i := range wagers {
		amounts[i] = blended[i].Mul(scale).RoundDown(2)
		paid = paid.Add(amounts[i])
	}

	return amounts, totalPool.Sub(paid)
}
