package wordgame

import (
	"sync"
	"time"
)

// TickInterval is the countdown resolution
const TickInterval = time.Second

// State is the lifecycle position of a QuizSession
type State int

const (
	StateReady State = iota
	StateActive
	StateWon
	StateLost
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateActive:
		return "active"
	case StateWon:
		return "won"
	case StateLost:
		return "lost"
	default:
		return "unknown"
	}
}

// Terminal reports whether the game is over
func (s State) Terminal() bool {
	return s == StateWon || s == StateLost
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Reasons a game ends in StateLost
const (
	ReasonTimeout     = "timeout"
	ReasonWrongAnswer = "wrong_answer"
)

// Snapshot is a read-only view of a session, safe to hand to other goroutines
type Snapshot struct {
	State            State    `json:"state"`
	Position         int      `json:"position"`
	Total            int      `json:"total"`
	Score            int      `json:"score"`
	SecondsRemaining int      `json:"secondsRemaining"`
	Prompt           string   `json:"prompt,omitempty"`
	Options          []string `json:"options,omitempty"`
	Reason           string   `json:"reason,omitempty"`
}

// SessionOption customizes a QuizSession
type SessionOption func(*QuizSession)

// WithClock drives the countdown automatically. Without a clock the
// caller invokes Tick itself.
func WithClock(c Clock) SessionOption {
	return func(s *QuizSession) { s.clock = c }
}

// WithTimeLimit overrides the countdown length in seconds
func WithTimeLimit(seconds int) SessionOption {
	return func(s *QuizSession) {
		if seconds > 0 {
			s.timeLimit = seconds
		}
	}
}

// WithTickInterval overrides the delay between ticks
func WithTickInterval(d time.Duration) SessionOption {
	return func(s *QuizSession) {
		if d > 0 {
			s.interval = d
		}
	}
}

// QuizSession is the timed quiz state machine: Ready -> Active -> Won|Lost.
//
// The session owns at most one pending tick. Start and every tick arm a
// fresh one after cancelling the previous handle; leaving Active, Reset and
// Close cancel it. A firing that raced with a cancel is recognised by its
// generation number and dropped.
type QuizSession struct {
	mu sync.Mutex

	questions        QuestionSet
	state            State
	position         int
	score            int
	secondsRemaining int
	reason           string

	timeLimit int
	interval  time.Duration
	clock     Clock
	timer     Timer
	gen       uint64
	closed    bool

	subs    map[int]chan Snapshot
	nextSub int
}

// NewQuizSession creates a session in StateReady. The question set is
// borrowed, not copied; callers must not mutate it while the session runs.
func NewQuizSession(questions QuestionSet, opts ...SessionOption) *QuizSession {
	s := &QuizSession{
		timeLimit: DefaultTimeLimit,
		interval:  TickInterval,
		subs:      make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.questions = questions
	s.resetLocked()
	return s
}

// Start moves Ready -> Active and arms the countdown
func (s *QuizSession) Start() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady {
		return s.snapshotLocked(), ErrAlreadyStarted
	}
	if len(s.questions) == 0 {
		return s.snapshotLocked(), ErrMissingData
	}

	s.position = 0
	s.score = 0
	s.secondsRemaining = s.timeLimit
	s.state = StateActive
	s.armLocked()
	s.notifyLocked()
	return s.snapshotLocked(), nil
}

// Tick counts one second down; reaching zero loses the game
func (s *QuizSession) Tick() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return s.snapshotLocked(), ErrNotActive
	}
	s.tickLocked()
	s.armLocked()
	s.notifyLocked()
	return s.snapshotLocked(), nil
}

// SubmitAnswer checks choice against the current question. A wrong choice
// ends the game; a correct one advances or, on the last question, wins.
// The countdown keeps running across questions.
func (s *QuizSession) SubmitAnswer(choice string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return s.snapshotLocked(), ErrNotActive
	}

	if choice != s.questions[s.position].Answer {
		s.finishLocked(StateLost, ReasonWrongAnswer)
		return s.snapshotLocked(), nil
	}

	s.score++
	if s.position == len(s.questions)-1 {
		s.finishLocked(StateWon, "")
		return s.snapshotLocked(), nil
	}
	s.position++
	s.notifyLocked()
	return s.snapshotLocked(), nil
}

// Reset returns to StateReady with a (possibly new) question set
func (s *QuizSession) Reset(questions QuestionSet) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.questions = questions
	s.resetLocked()
	s.notifyLocked()
	return s.snapshotLocked()
}

// Snapshot returns the current state
func (s *QuizSession) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel carrying the latest snapshot after every
// change. Slow readers only ever miss intermediate snapshots. The returned
// func unsubscribes; Close closes every channel.
func (s *QuizSession) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.snapshotLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// Close cancels the pending tick and releases subscribers. The session
// can still be inspected but will never tick on its own again.
func (s *QuizSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.disarmLocked()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *QuizSession) fire(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || s.state != StateActive {
		return
	}
	s.timer = nil
	s.tickLocked()
	s.armLocked()
	s.notifyLocked()
}

func (s *QuizSession) tickLocked() {
	s.secondsRemaining--
	if s.secondsRemaining <= 0 {
		s.secondsRemaining = 0
		s.state = StateLost
		s.reason = ReasonTimeout
	}
}

func (s *QuizSession) finishLocked(state State, reason string) {
	s.state = state
	s.reason = reason
	s.disarmLocked()
	s.notifyLocked()
}

func (s *QuizSession) resetLocked() {
	s.disarmLocked()
	s.state = StateReady
	s.position = 0
	s.score = 0
	s.secondsRemaining = s.timeLimit
	s.reason = ""
}

// armLocked replaces the pending tick. Nothing is scheduled unless the
// session is active and has a clock.
func (s *QuizSession) armLocked() {
	s.disarmLocked()
	if s.clock == nil || s.closed || s.state != StateActive {
		return
	}
	gen := s.gen
	s.timer = s.clock.AfterFunc(s.interval, func() { s.fire(gen) })
}

func (s *QuizSession) disarmLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

func (s *QuizSession) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:            s.state,
		Position:         s.position,
		Total:            len(s.questions),
		Score:            s.score,
		SecondsRemaining: s.secondsRemaining,
		Reason:           s.reason,
	}
	if s.state == StateActive {
		q := s.questions[s.position]
		snap.Prompt = q.Prompt
		snap.Options = append([]string(nil), q.Options...)
	}
	return snap
}

func (s *QuizSession) notifyLocked() {
	if len(s.subs) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		// Drop the stale snapshot nobody has read yet.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// OutcomeMessage returns the end-of-game headline and encouragement
func OutcomeMessage(snap Snapshot) (headline, note string) {
	switch {
	case snap.State == StateWon && snap.Score == snap.Total:
		return "Congratulations! You completed the game!", "Perfect Score! You're a language master!"
	case snap.State == StateWon:
		return "Congratulations! You completed the game!", "Great job! Keep practicing to improve!"
	case snap.State == StateLost:
		return "Game Over!", "Better luck next time! You got this!"
	default:
		return "", ""
	}
}
