package services

import "sync"

// GameLocks serializes settlement and cancellation per game. Unrelated
// games settle fully in parallel. Settlement blocks on the lock;
// cancellation uses TryLock so an attempt during an in-flight settlement
// is rejected as contention rather than queued behind it.
type GameLocks struct {
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func NewGameLocks() *GameLocks {
	return &GameLocks{
		locks: make(map[uint]*sync.Mutex),
	}
}

// Get returns the mutex for a game, creating it on first use.
func (g *GameLocks) Get(gameID uint) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()

	lock, ok := g.locks[gameID]
	if !ok {
		lock = &sync.Mutex{}
		g.locks[gameID] = lock
	}
	return lock
}
