package wordgame

import "sync"

// SetupStatus is what the preparing view shows
type SetupStatus struct {
	Loading   bool   `json:"loading"`
	Ready     bool   `json:"ready"`
	Questions int    `json:"questions"`
	Error     string `json:"error,omitempty"`
}

// GameState holds the question set shared between the preparing and play
// phases of one player. It is passed explicitly to whoever needs it.
//
// Writers take a ticket from BeginLoading. Only the newest ticket may
// complete or fail the load, so a superseded generation that settles late
// cannot overwrite the result of the one that replaced it.
type GameState struct {
	mu        sync.RWMutex
	questions QuestionSet
	loading   bool
	err       error
	ticket    uint64
}

// NewGameState returns an empty store
func NewGameState() *GameState {
	return &GameState{}
}

// BeginLoading marks a generation in flight and returns its ticket
func (g *GameState) BeginLoading() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.ticket++
	g.loading = true
	g.err = nil
	return g.ticket
}

// Complete stores questions if ticket is still current and reports whether it did
func (g *GameState) Complete(ticket uint64, questions QuestionSet) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if ticket != g.ticket {
		return false
	}
	g.questions = questions
	g.loading = false
	g.err = nil
	return true
}

// Fail records err for the current ticket. The previous question set, if
// any, is dropped so a failed setup never plays stale words.
func (g *GameState) Fail(ticket uint64, err error) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if ticket != g.ticket {
		return false
	}
	g.questions = nil
	g.loading = false
	g.err = err
	return true
}

// QuestionSet returns the stored set or ErrMissingData
func (g *GameState) QuestionSet() (QuestionSet, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if len(g.questions) == 0 {
		return nil, ErrMissingData
	}
	return g.questions, nil
}

// IsLoading reports whether a generation is in flight
func (g *GameState) IsLoading() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.loading
}

// Status summarizes the store for the preparing view
func (g *GameState) Status() SetupStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()

	status := SetupStatus{
		Loading:   g.loading,
		Ready:     !g.loading && len(g.questions) > 0,
		Questions: len(g.questions),
	}
	if g.err != nil {
		status.Error = "An error occurred while fetching the words. Please refresh the page."
	}
	return status
}

// Err returns the failure of the last load, if any
func (g *GameState) Err() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.err
}

// Clear empties the store
func (g *GameState) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.ticket++
	g.questions = nil
	g.loading = false
	g.err = nil
}
