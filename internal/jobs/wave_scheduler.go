package jobs

import (
	"context"
	"log"
	"time"

	"prediction-settlement/internal/apperrors"
	"prediction-settlement/internal/services"
)

// WaveScheduler runs the money-wave pipeline once per interval. Overlap
// with an already-running wave is rejected by the service, so a slow run
// simply skips the next tick.
type WaveScheduler struct {
	waveService *services.WaveService
	interval    time.Duration
	stopChan    chan struct{}
}

// NewWaveScheduler creates a new wave scheduler job
func NewWaveScheduler(waveService *services.WaveService, interval time.Duration) *WaveScheduler {
	return &WaveScheduler{
		waveService: waveService,
		interval:    interval,
		stopChan:    make(chan struct{}),
	}
}

// Start begins the wave scheduling loop
func (ws *WaveScheduler) Start() {
	log.Printf("[WaveScheduler] Starting wave scheduler job (interval: %v)", ws.interval)

	ticker := time.NewTicker(ws.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ws.runOnce()
		case <-ws.stopChan:
			log.Println("[WaveScheduler] Stopping wave scheduler job")
			return
		}
	}
}

// Stop stops the wave scheduling loop
func (ws *WaveScheduler) Stop() {
	close(ws.stopChan)
}

func (ws *WaveScheduler) runOnce() {
	ctx := context.Background()

	record, err := ws.waveService.Run(ctx, time.Now())
	if err != nil {
		if apperrors.IsConcurrencyConflict(err) {
			log.Println("[WaveScheduler] Previous wave still running, skipping tick")
			return
		}
		log.Printf("[WaveScheduler] Wave run failed: %v", err)
		return
	}

	log.Printf("[WaveScheduler] Wave %s finished with status %s", record.ID, record.Status)
}
