package jobs

import (
	"context"
	"log"
	"time"

	"prediction-settlement/internal/apperrors"
	"prediction-settlement/internal/models"
	"prediction-settlement/internal/services"
)

// GameCloser closes games whose registration window has elapsed and
// settles games whose outcome has become available.
type GameCloser struct {
	gameService       *services.GameService
	settlementService *services.SettlementService
	interval          time.Duration
	stopChan          chan struct{}
}

// NewGameCloser creates a new game closer job
func NewGameCloser(gameService *services.GameService, settlementService *services.SettlementService, interval time.Duration) *GameCloser {
	return &GameCloser{
		gameService:       gameService,
		settlementService: settlementService,
		interval:          interval,
		stopChan:          make(chan struct{}),
	}
}

// Start begins the close-and-settle loop
func (gc *GameCloser) Start() {
	log.Printf("[GameCloser] Starting game closer job (interval: %v)", gc.interval)

	ticker := time.NewTicker(gc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			gc.runOnce()
		case <-gc.stopChan:
			log.Println("[GameCloser] Stopping game closer job")
			return
		}
	}
}

// Stop stops the close-and-settle loop
func (gc *GameCloser) Stop() {
	close(gc.stopChan)
}

func (gc *GameCloser) runOnce() {
	ctx := context.Background()

	closed, err := gc.gameService.CloseDueGames(ctx)
	if err != nil {
		log.Printf("[GameCloser] Error closing elapsed games: %v", err)
	} else if closed > 0 {
		log.Printf("[GameCloser] Closed %d elapsed games", closed)
	}

	games, err := gc.gameService.ListGamesByStatus(ctx, models.GameStatusClosed, 100)
	if err != nil {
		log.Printf("[GameCloser] Error fetching closed games: %v", err)
		return
	}

	settledCount := 0
	for _, game := range games {
		if err := gc.settlementService.SettleGame(ctx, game.ID); err != nil {
			// Outcomes resolve on their own schedule; try again next tick.
			if apperrors.IsDataUnavailable(err) {
				log.Printf("[GameCloser] Outcome for game %d not available yet, deferring", game.ID)
				continue
			}
			log.Printf("[GameCloser] Error settling game %d: %v", game.ID, err)
			continue
		}
		settledCount++
	}

	if settledCount > 0 {
		log.Printf("[GameCloser] Settled %d games", settledCount)
	}
}
