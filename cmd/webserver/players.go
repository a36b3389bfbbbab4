package main

import (
	"context"
	"sync"
	"time"

	"wordgame"

	"go.uber.org/zap"
)

// Player is the server-side state behind one browser cookie
type Player struct {
	ID    string
	State *wordgame.GameState

	mu       sync.Mutex
	quiz     *wordgame.QuizSession
	lastSeen time.Time
}

// Quiz returns the current session, or nil before the first start
func (p *Player) Quiz() *wordgame.QuizSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.quiz
}

// SetQuiz replaces the current session and tears the old one down
func (p *Player) SetQuiz(q *wordgame.QuizSession) {
	p.mu.Lock()
	old := p.quiz
	p.quiz = q
	p.mu.Unlock()

	if old != nil && old != q {
		old.Close()
	}
}

// PlayerRegistry keeps players in memory and forgets idle ones
type PlayerRegistry struct {
	mu      sync.Mutex
	players map[string]*Player
	idleTTL time.Duration
	now     func() time.Time
}

// NewPlayerRegistry creates a registry evicting players idle for longer than idleTTL
func NewPlayerRegistry(idleTTL time.Duration) *PlayerRegistry {
	return &PlayerRegistry{
		players: make(map[string]*Player),
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

// Get returns a known player and marks it as seen
func (pr *PlayerRegistry) Get(id string) (*Player, bool) {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	p, ok := pr.players[id]
	if ok {
		p.lastSeen = pr.now()
	}
	return p, ok
}

// GetOrCreate returns the player for id, creating it if needed
func (pr *PlayerRegistry) GetOrCreate(id string) *Player {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	p, ok := pr.players[id]
	if !ok {
		p = &Player{ID: id, State: wordgame.NewGameState()}
		pr.players[id] = p
	}
	p.lastSeen = pr.now()
	return p
}

// Len returns the number of tracked players
func (pr *PlayerRegistry) Len() int {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	return len(pr.players)
}

// Sweep drops idle players and returns how many were removed
func (pr *PlayerRegistry) Sweep() int {
	pr.mu.Lock()
	cutoff := pr.now().Add(-pr.idleTTL)
	var idle []*Player
	for id, p := range pr.players {
		if p.lastSeen.Before(cutoff) {
			idle = append(idle, p)
			delete(pr.players, id)
		}
	}
	pr.mu.Unlock()

	for _, p := range idle {
		p.SetQuiz(nil)
	}
	return len(idle)
}

// Run sweeps every interval until ctx is cancelled
func (pr *PlayerRegistry) Run(ctx context.Context, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := pr.Sweep(); n > 0 {
				logger.Debug("evicted idle players", zap.Int("count", n), zap.Int("remaining", pr.Len()))
			}
		}
	}
}
