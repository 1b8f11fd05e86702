package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"prediction-settlement/internal/apperrors"
	"prediction-settlement/internal/cache"
	"prediction-settlement/internal/models"
	"prediction-settlement/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Venture composite-score weights. Risk counts against a proposal.
const (
	ventureWeightInnovation = 0.25
	ventureWeightExecution  = 0.25
	ventureWeightDisruption = 0.20
	ventureWeightNetwork    = 0.15
	ventureWeightRisk       = 0.15
)

// minRedistributionMove drops dust moves from stage 2.
var minRedistributionMove = decimal.NewFromFloat(0.01)

// staleWaveCutoff is how long a RUNNING record may sit before a later
// run treats it as abandoned by a crashed process.
const staleWaveCutoff = 2 * time.Hour

// WaveService runs the three-stage money-wave pipeline: issuance from
// verified profitability reports, inequality-reducing redistribution,
// and venture funding. All three stages commit inside one database
// transaction; a failed run rolls back as a whole and leaves every
// balance untouched.
type WaveService struct {
	db                *gorm.DB
	repo              *repository.Repository
	poolCache         *cache.PoolCache
	domain            string
	allocationRate    decimal.Decimal
	maxSourceFraction decimal.Decimal
	ventureBudgetRate decimal.Decimal
	hourBucket        HourBucketFunc
	now               func() time.Time
}

func NewWaveService(
	db *gorm.DB,
	repo *repository.Repository,
	poolCache *cache.PoolCache,
	domain string,
	loc *time.Location,
	allocationRate float64,
	maxSourceFraction float64,
	ventureBudgetRate float64,
) *WaveService {
	return &WaveService{
		db:                db,
		repo:              repo,
		poolCache:         poolCache,
		domain:            domain,
		allocationRate:    decimal.NewFromFloat(allocationRate),
		maxSourceFraction: decimal.NewFromFloat(maxSourceFraction),
		ventureBudgetRate: decimal.NewFromFloat(ventureBudgetRate),
		hourBucket:        HourBucketIn(loc),
		now:               time.Now,
	}
}

// waveSummary is serialized into the run record's result summary.
type waveSummary struct {
	IssuanceCount       int    `json:"issuance_count"`
	IssuanceSkipped     int    `json:"issuance_skipped"`
	RedistributionMoves int    `json:"redistribution_moves"`
	VentureFunded       int    `json:"venture_funded"`
	TotalIssued         string `json:"total_issued"`
	TotalRedistributed  string `json:"total_redistributed"`
	TotalVentureFunded  string `json:"total_venture_funded"`
}

// Run executes one money-wave pass for the hour containing scheduledAt.
// A completed run for the same hour bucket is returned as-is; a run
// overlapping another RUNNING record is rejected.
func (s *WaveService) Run(ctx context.Context, scheduledAt time.Time) (*models.MoneyWaveRecord, error) {
	hour := s.hourBucket(scheduledAt)

	if existing, err := s.repo.GetCompletedWaveForHour(ctx, hour); err != nil {
		return nil, fmt.Errorf("failed to check prior runs: %w", err)
	} else if existing != nil {
		log.Printf("[WaveService] Wave for hour %s already completed (%s)", hour.Format(time.RFC3339), existing.ID)
		return existing, nil
	}

	if reaped, err := s.repo.FailStaleWaves(ctx, s.now().Add(-staleWaveCutoff)); err != nil {
		return nil, fmt.Errorf("failed to reap stale runs: %w", err)
	} else if reaped > 0 {
		log.Printf("[WaveService] Marked %d abandoned run(s) FAILED", reaped)
	}

	running, err := s.repo.HasRunningWave(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check running waves: %w", err)
	}
	if running {
		return nil, &apperrors.ConcurrencyConflictError{Resource: "wave", ID: hour.Format(time.RFC3339)}
	}

	record := &models.MoneyWaveRecord{
		HourBucket:        hour,
		Status:            models.WaveStatusDraft,
		AllocationRate:    s.allocationRate,
		MaxSourceFraction: s.maxSourceFraction,
		VentureBudgetRate: s.ventureBudgetRate,
	}
	if err := s.repo.CreateWaveRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create wave record: %w", err)
	}

	startedAt := s.now()
	record.Status = models.WaveStatusRunning
	record.StartedAt = &startedAt
	if err := s.repo.UpdateWaveRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to mark wave running: %w", err)
	}

	log.Printf("[WaveService] Wave %s RUNNING for hour %s", record.ID, hour.Format(time.RFC3339))

	summary := &waveSummary{}
	runErr := s.db.Transaction(func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		issued, byCategory, err := s.runIssuance(ctx, txRepo, record, hour, summary)
		if err != nil {
			record.IssuanceStatus = models.WaveStageFailed
			return fmt.Errorf("issuance stage: %w", err)
		}
		record.IssuanceStatus = models.WaveStageCompleted
		record.TotalIssued = issued

		moved, err := s.runRedistribution(ctx, txRepo, record, summary)
		if err != nil {
			record.RedistributionStatus = models.WaveStageFailed
			return fmt.Errorf("redistribution stage: %w", err)
		}
		record.RedistributionStatus = models.WaveStageCompleted
		record.TotalRedistributed = moved

		funded, err := s.runVentureFunding(ctx, txRepo, record, issued, summary)
		if err != nil {
			record.VentureStatus = models.WaveStageFailed
			return fmt.Errorf("venture stage: %w", err)
		}
		record.VentureStatus = models.WaveStageCompleted
		record.TotalVentureFunded = funded

		// Publish the hour's category allocations for the aggregator.
		for category, amount := range byCategory {
			allocation := &models.HourlyCategoryAllocation{
				Domain:     s.domain,
				HourBucket: hour,
				Category:   category,
				Pool:       amount,
			}
			if err := txRepo.UpsertCategoryAllocation(ctx, allocation); err != nil {
				return fmt.Errorf("failed to write allocation for %s: %w", category, err)
			}
		}

		return nil
	})

	if runErr != nil {
		// The transaction rolled back: no stage effect survives. Stages
		// that ran before the failure are marked failed with it.
		if record.IssuanceStatus == models.WaveStageCompleted {
			record.IssuanceStatus = models.WaveStageFailed
		}
		if record.RedistributionStatus == models.WaveStageCompleted {
			record.RedistributionStatus = models.WaveStageFailed
		}
		record.Status = models.WaveStatusFailed
		record.TotalIssued = decimal.Zero
		record.TotalRedistributed = decimal.Zero
		record.TotalVentureFunded = decimal.Zero
		msg := runErr.Error()
		record.ErrorMessage = &msg
		if err := s.repo.UpdateWaveRecord(ctx, record); err != nil {
			log.Printf("[WaveService] Failed to record FAILED status for wave %s: %v", record.ID, err)
		}
		log.Printf("[WaveService] Wave %s FAILED, all stages rolled back: %v", record.ID, runErr)
		return record, runErr
	}

	summary.TotalIssued = record.TotalIssued.String()
	summary.TotalRedistributed = record.TotalRedistributed.String()
	summary.TotalVentureFunded = record.TotalVentureFunded.String()
	if encoded, err := json.Marshal(summary); err == nil {
		record.ResultSummary = string(encoded)
	}

	completedAt := s.now()
	record.Status = models.WaveStatusCompleted
	record.CompletedAt = &completedAt
	if err := s.repo.UpdateWaveRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to record COMPLETED status: %w", err)
	}

	// The hour's pool figures changed; drop cached aggregates.
	s.poolCache.InvalidateHour(ctx, s.domain, hour)

	log.Printf("[WaveService] Wave %s COMPLETED: issued %s, redistributed %s, venture %s",
		record.ID, record.TotalIssued.String(), record.TotalRedistributed.String(), record.TotalVentureFunded.String())
	return record, nil
}

// runIssuance credits new currency to organizations from verified
// profitability reports. Unverified reports are logged, never credited;
// the pipeline under-issues rather than over-issues. A credited report
// is marked consumed inside the same transaction so no later run can
// credit it again.
func (s *WaveService) runIssuance(
	ctx context.Context,
	txRepo *repository.Repository,
	record *models.MoneyWaveRecord,
	hour time.Time,
	summary *waveSummary,
) (decimal.Decimal, map[string]decimal.Decimal, error) {
	period := hour.Format("2006-01")
	reports, err := txRepo.GetProfitReports(ctx, period)
	if err != nil {
		return decimal.Zero, nil, fmt.Errorf("failed to load profit reports for %s: %w", period, err)
	}

	total := decimal.Zero
	byCategory := make(map[string]decimal.Decimal)

	for _, report := range reports {
		amount := decimal.Zero
		if report.EBIT.IsPositive() {
			amount = report.EBIT.Mul(s.allocationRate).RoundDown(2)
		}

		issuance := &models.IssuanceRecord{
			WaveID:             record.ID,
			OrgAccountID:       report.OrgAccountID,
			EBIT:               report.EBIT,
			AllocationRate:     s.allocationRate,
			IssuedAmount:       amount,
			VerificationStatus: report.Status,
		}

		if report.Status == models.VerificationVerified && amount.IsPositive() {
			credit := &models.Transaction{
				AccountID:   report.OrgAccountID,
				PointBDelta: amount,
				Type:        models.TransactionTypeWaveIssuance,
				WaveID:      &record.ID,
				Description: fmt.Sprintf("Issuance for period %s (EBIT %s)", period, report.EBIT.String()),
			}
			if err := txRepo.ApplyTransaction(ctx, credit); err != nil {
				return decimal.Zero, nil, fmt.Errorf("failed to credit org account %d: %w", report.OrgAccountID, err)
			}
			if err := txRepo.MarkReportConsumed(ctx, report.ID, record.ID); err != nil {
				return decimal.Zero, nil, fmt.Errorf("failed to consume report %d: %w", report.ID, err)
			}
			issuance.Credited = true
			total = total.Add(amount)

			category := NormalizeCategory(report.Category)
			byCategory[category] = byCategory[category].Add(amount)
			summary.IssuanceCount++
		} else {
			log.Printf("[WaveService] Skipping %s report for org account %d (period %s)",
				report.Status, report.OrgAccountID, period)
			summary.IssuanceSkipped++
		}

		if err := txRepo.CreateIssuanceRecord(ctx, issuance); err != nil {
			return decimal.Zero, nil, fmt.Errorf("failed to log issuance for org account %d: %w", report.OrgAccountID, err)
		}
	}

	return total, byCategory, nil
}

// redistributionParty is one account's stance against the target
// distribution.
type redistributionParty struct {
	account *models.Account
	amount  decimal.Decimal // surplus to give or deficit to receive
}

// runRedistribution moves pointB currency from above-target accounts to
// below-target accounts. No source loses more than the configured
// fraction of its balance in one run, and every move is logged with a
// welfare-improvement estimate.
func (s *WaveService) runRedistribution(
	ctx context.Context,
	txRepo *repository.Repository,
	record *models.MoneyWaveRecord,
	summary *waveSummary,
) (decimal.Decimal, error) {
	accounts, err := txRepo.ListActiveAccounts(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to list accounts: %w", err)
	}

	// The platform reserve is not a welfare subject.
	participants := make([]*models.Account, 0, len(accounts))
	total := decimal.Zero
	for _, account := range accounts {
		if account.UserID == models.ReserveUserID {
			continue
		}
		participants = append(participants, account)
		total = total.Add(account.PointB)
	}

	if len(participants) < 2 || !total.IsPositive() {
		return decimal.Zero, nil
	}

	// Equal-share target over post-issuance balances.
	target := total.Div(decimal.NewFromInt(int64(len(participants))))

	var donors, recipients []redistributionParty
	for _, account := range participants {
		diff := account.PointB.Sub(target)
		if diff.IsPositive() {
			limit := account.PointB.Mul(s.maxSourceFraction)
			if diff.GreaterThan(limit) {
				diff = limit
			}
			donors = append(donors, redistributionParty{account: account, amount: diff.RoundDown(2)})
		} else if diff.IsNegative() {
			recipients = append(recipients, redistributionParty{account: account, amount: diff.Neg().RoundDown(2)})
		}
	}

	// Largest surplus meets largest deficit first.
	sort.Slice(donors, func(i, j int) bool { return donors[i].amount.GreaterThan(donors[j].amount) })
	sort.Slice(recipients, func(i, j int) bool { return recipients[i].amount.GreaterThan(recipients[j].amount) })

	moved := decimal.Zero
	di, ri := 0, 0
	for di < len(donors) && ri < len(recipients) {
		move := donors[di].amount
		if recipients[ri].amount.LessThan(move) {
			move = recipients[ri].amount
		}

		if move.LessThan(minRedistributionMove) {
			if donors[di].amount.LessThan(minRedistributionMove) {
				di++
			} else {
				ri++
			}
			continue
		}

		source := donors[di].account
		dest := recipients[ri].account

		out := &models.Transaction{
			AccountID:   source.ID,
			PointBDelta: move.Neg(),
			Type:        models.TransactionTypeRedistributionOut,
			WaveID:      &record.ID,
			Description: fmt.Sprintf("Redistribution to account %d", dest.ID),
		}
		if err := txRepo.ApplyTransaction(ctx, out); err != nil {
			return decimal.Zero, fmt.Errorf("failed to debit account %d: %w", source.ID, err)
		}

		in := &models.Transaction{
			AccountID:   dest.ID,
			PointBDelta: move,
			Type:        models.TransactionTypeRedistributionIn,
			WaveID:      &record.ID,
			Description: fmt.Sprintf("Redistribution from account %d", source.ID),
		}
		if err := txRepo.ApplyTransaction(ctx, in); err != nil {
			return decimal.Zero, fmt.Errorf("failed to credit account %d: %w", dest.ID, err)
		}

		// Gap-weighted proxy for the welfare gain of this move.
		welfare, _ := move.Mul(source.PointB.Sub(dest.PointB)).Float64()

		moveRecord := &models.RedistributionRecord{
			WaveID:          record.ID,
			SourceAccountID: source.ID,
			TargetAccountID: dest.ID,
			Amount:          move,
			WelfareEstimate: welfare,
		}
		if err := txRepo.CreateRedistributionRecord(ctx, moveRecord); err != nil {
			return decimal.Zero, fmt.Errorf("failed to log redistribution move: %w", err)
		}

		donors[di].amount = donors[di].amount.Sub(move)
		recipients[ri].amount = recipients[ri].amount.Sub(move)
		moved = moved.Add(move)
		summary.RedistributionMoves++

		if !donors[di].amount.GreaterThanOrEqual(minRedistributionMove) {
			di++
		}
		if ri < len(recipients) && !recipients[ri].amount.GreaterThanOrEqual(minRedistributionMove) {
			ri++
		}
	}

	return moved, nil
}

// runVentureFunding scores queued proposals into a composite index and
// funds the best until the run's budget is exhausted. The unallocated
// remainder rolls into the platform reserve.
func (s *WaveService) runVentureFunding(
	ctx context.Context,
	txRepo *repository.Repository,
	record *models.MoneyWaveRecord,
	issued decimal.Decimal,
	summary *waveSummary,
) (decimal.Decimal, error) {
	budget := issued.Mul(s.ventureBudgetRate).RoundDown(2)
	if !budget.IsPositive() {
		return decimal.Zero, nil
	}

	proposals, err := txRepo.GetQueuedProposals(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load proposals: %w", err)
	}

	type scored struct {
		proposal *models.VentureProposal
		score    float64
	}
	ranked := make([]scored, 0, len(proposals))
	for _, p := range proposals {
		ranked = append(ranked, scored{proposal: p, score: ventureScore(p)})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	remaining := budget
	funded := decimal.Zero
	for _, entry := range ranked {
		if !remaining.IsPositive() {
			break
		}

		amount := entry.proposal.RequestedAmount
		if amount.GreaterThan(remaining) {
			amount = remaining
		}
		if !amount.IsPositive() {
			continue
		}

		credit := &models.Transaction{
			AccountID:   entry.proposal.AccountID,
			PointBDelta: amount,
			Type:        models.TransactionTypeVentureFunding,
			WaveID:      &record.ID,
			Description: fmt.Sprintf("Venture funding for proposal %d (%s)", entry.proposal.ID, entry.proposal.Title),
		}
		if err := txRepo.ApplyTransaction(ctx, credit); err != nil {
			return decimal.Zero, fmt.Errorf("failed to fund proposal %d: %w", entry.proposal.ID, err)
		}

		ventureRecord := &models.VentureRecord{
			WaveID:          record.ID,
			ProposalID:      entry.proposal.ID,
			CompositeScore:  entry.score,
			AllocatedAmount: amount,
		}
		if err := txRepo.CreateVentureRecord(ctx, ventureRecord); err != nil {
			return decimal.Zero, fmt.Errorf("failed to log venture funding: %w", err)
		}

		if err := txRepo.MarkProposalFunded(ctx, entry.proposal.ID); err != nil {
			return decimal.Zero, fmt.Errorf("failed to mark proposal %d funded: %w", entry.proposal.ID, err)
		}

		remaining = remaining.Sub(amount)
		funded = funded.Add(amount)
		summary.VentureFunded++
	}

	if remaining.IsPositive() {
		reserve, err := txRepo.GetOrCreateAccount(ctx, models.ReserveUserID)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to load reserve account: %w", err)
		}
		credit := &models.Transaction{
			AccountID:   reserve.ID,
			PointBDelta: remaining,
			Type:        models.TransactionTypeReserveCredit,
			WaveID:      &record.ID,
			Description: "Unallocated venture budget",
		}
		if err := txRepo.ApplyTransaction(ctx, credit); err != nil {
			return decimal.Zero, fmt.Errorf("failed to credit reserve: %w", err)
		}
	}

	return funded, nil
}

// ventureScore folds the weighted inputs into one composite index. Risk
// subtracts.
func ventureScore(p *models.VentureProposal) float64 {
	return ventureWeightInnovation*p.Innovation +
		ventureWeightExecution*p.Execution +
		ventureWeightDisruption*p.Disruption +
		ventureWeightNetwork*p.NetworkEffect -
		ventureWeightRisk*p.Risk
}
