package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"wordgame"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	sessionName = "wordgame-session"
	playerKey   = "player_id"

	defaultWordSetLimit = 20

	generateWordsError = "Failed to fetch words from the API"
)

// newCookieStore builds the player cookie store. The cookie is not marked
// Secure so it also works behind plain http.
func newCookieStore(secret []byte, maxAge time.Duration) *sessions.CookieStore {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

type envelopeCompleter interface {
	Complete(ctx context.Context, req wordgame.GameSetupRequest, transcript *wordgame.LLMLogger) (openai.ChatCompletionResponse, error)
}

type wordSetArchive interface {
	ListWordSets(ctx context.Context, limit int) ([]wordgame.WordSetRecord, error)
	GetWordSet(ctx context.Context, id string) (*wordgame.WordSetRecord, wordgame.QuestionSet, error)
}

// Server wires the HTTP surface to the game packages
type Server struct {
	completer  envelopeCompleter
	preparer   *wordgame.Preparer
	archive    wordSetArchive // nil when the archive is disabled
	players    *PlayerRegistry
	store      sessions.Store
	logger     *zap.Logger
	genTimeout time.Duration
	// clock drives session countdowns; nil leaves ticking to the caller
	clock wordgame.Clock
}

type gameView struct {
	wordgame.Snapshot
	Headline string `json:"headline,omitempty"`
	Note     string `json:"note,omitempty"`
}

type selectionView struct {
	Title        string                `json:"title"`
	Languages    []wordgame.Language   `json:"languages"`
	Difficulties []wordgame.Difficulty `json:"difficulties"`
}

type answerRequest struct {
	Choice string `json:"choice"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func newGameView(snap wordgame.Snapshot) gameView {
	headline, note := wordgame.OutcomeMessage(snap)
	return gameView{Snapshot: snap, Headline: headline, Note: note}
}

// Routes builds the chi router
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleSelection)
	r.Post("/generate-words", s.handleGenerateWords)
	r.Get("/wordsets", s.handleWordSets)
	r.Get("/wordsets/{id}", s.handleWordSet)

	r.Route("/game", func(r chi.Router) {
		r.Get("/", s.handleGame)
		r.Post("/setup", s.handleSetup)
		r.Get("/setup", s.handleSetupStatus)
		r.Post("/start", s.handleStart)
		r.Post("/answer", s.handleAnswer)
		r.Post("/reset", s.handleReset)
		r.Post("/leave", s.handleLeave)
		r.Get("/live", s.handleLive)
	})

	return r
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, selectionView{
		Title:        "Word Game",
		Languages:    wordgame.Languages(),
		Difficulties: wordgame.Difficulties(),
	})
}

// handleGenerateWords returns the completion service's envelope; the caller
// extracts and parses choices[0].message.content itself. An unreadable body
// fails like the upstream call does.
func (s *Server) handleGenerateWords(w http.ResponseWriter, r *http.Request) {
	var req wordgame.GameSetupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Info("generate words: bad request body", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: generateWordsError})
		return
	}
	req, err := s.preparer.Normalize(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.genTimeout)
	defer cancel()

	resp, err := s.completer.Complete(ctx, req, nil)
	if err != nil {
		s.logger.Error("generate words failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: generateWordsError})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeSetup(w, r)
	if !ok {
		return
	}

	player, err := s.player(w, r, true)
	if err != nil {
		s.logger.Error("failed to create player session", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "session error"})
		return
	}

	// A new setup invalidates whatever game was running.
	player.SetQuiz(nil)
	ticket := player.State.BeginLoading()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.genTimeout)
		defer cancel()
		if _, err := s.preparer.Run(ctx, player.State, ticket, req); err != nil {
			s.logger.Info("setup failed", zap.String("player_id", player.ID), zap.Error(err))
		}
	}()

	writeJSON(w, http.StatusAccepted, player.State.Status())
}

func (s *Server) handleSetupStatus(w http.ResponseWriter, r *http.Request) {
	player, err := s.player(w, r, false)
	if err != nil {
		redirectToSelection(w, r)
		return
	}
	writeJSON(w, http.StatusOK, player.State.Status())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	player, err := s.player(w, r, false)
	if err != nil {
		redirectToSelection(w, r)
		return
	}
	if player.State.IsLoading() {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "words are still being prepared"})
		return
	}

	set, err := player.State.QuestionSet()
	if err != nil {
		redirectToSelection(w, r)
		return
	}

	// A running game is never replaced; Start reports ErrAlreadyStarted instead.
	quiz := player.Quiz()
	if quiz == nil || quiz.Snapshot().State.Terminal() {
		quiz = s.newQuiz(set)
		player.SetQuiz(quiz)
	}

	snap, err := quiz.Start()
	if err != nil {
		writeSessionError(w, snap, err)
		return
	}
	writeJSON(w, http.StatusOK, newGameView(snap))
}

func (s *Server) handleGame(w http.ResponseWriter, r *http.Request) {
	quiz, ok := s.quiz(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newGameView(quiz.Snapshot()))
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var body answerRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	quiz, ok := s.quiz(w, r)
	if !ok {
		return
	}

	snap, err := quiz.SubmitAnswer(body.Choice)
	if err != nil {
		writeSessionError(w, snap, err)
		return
	}
	writeJSON(w, http.StatusOK, newGameView(snap))
}

// handleReset is "try again": the same words, a fresh countdown
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	player, err := s.player(w, r, false)
	if err != nil {
		redirectToSelection(w, r)
		return
	}
	set, err := player.State.QuestionSet()
	if err != nil {
		redirectToSelection(w, r)
		return
	}

	quiz := player.Quiz()
	if quiz == nil {
		quiz = s.newQuiz(set)
		player.SetQuiz(quiz)
		writeJSON(w, http.StatusOK, newGameView(quiz.Snapshot()))
		return
	}
	writeJSON(w, http.StatusOK, newGameView(quiz.Reset(set)))
}

// handleLeave drops the player's game and words and sends them back to the selection view
func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	if player, err := s.player(w, r, false); err == nil {
		player.SetQuiz(nil)
		player.State.Clear()
	}
	redirectToSelection(w, r)
}

func (s *Server) handleWordSets(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "word set archive is disabled"})
		return
	}

	limit := defaultWordSetLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be an integer"})
			return
		}
		limit = n
	}

	records, err := s.archive.ListWordSets(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list word sets", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "request failed"})
		return
	}
	if records == nil {
		records = []wordgame.WordSetRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"wordSets": records})
}

// handleWordSet shows one archived set with its questions. Archived sets are
// a record of past generations and are never played again.
func (s *Server) handleWordSet(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "word set archive is disabled"})
		return
	}

	rec, set, err := s.archive.GetWordSet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, wordgame.ErrWordSetNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
			return
		}
		s.logger.Error("failed to get word set", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "request failed"})
		return
	}
	writeJSON(w, http.StatusOK, struct {
		*wordgame.WordSetRecord
		Questions wordgame.QuestionSet `json:"questions"`
	}{rec, set})
}

func (s *Server) newQuiz(set wordgame.QuestionSet) *wordgame.QuizSession {
	var opts []wordgame.SessionOption
	if s.clock != nil {
		opts = append(opts, wordgame.WithClock(s.clock))
	}
	return wordgame.NewQuizSession(set, opts...)
}

func (s *Server) decodeSetup(w http.ResponseWriter, r *http.Request) (wordgame.GameSetupRequest, bool) {
	var req wordgame.GameSetupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return req, false
	}
	req, err := s.preparer.Normalize(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return req, false
	}
	return req, true
}

// player resolves the cookie to a Player. With create set a new player and
// cookie are issued when none exists; otherwise ErrMissingData is returned.
func (s *Server) player(w http.ResponseWriter, r *http.Request, create bool) (*Player, error) {
	// A cookie that fails to decode yields a fresh session, which is what we want.
	sess, _ := s.store.Get(r, sessionName)

	if id, _ := sess.Values[playerKey].(string); id != "" {
		if p, ok := s.players.Get(id); ok {
			return p, nil
		}
		if create {
			return s.players.GetOrCreate(id), nil
		}
	}
	if !create {
		return nil, wordgame.ErrMissingData
	}

	id := uuid.NewString()
	sess.Values[playerKey] = id
	if err := sess.Save(r, w); err != nil {
		return nil, err
	}
	return s.players.GetOrCreate(id), nil
}

// quiz resolves the caller's running session, redirecting to the selection
// view when there is nothing to play.
func (s *Server) quiz(w http.ResponseWriter, r *http.Request) (*wordgame.QuizSession, bool) {
	player, err := s.player(w, r, false)
	if err != nil {
		redirectToSelection(w, r)
		return nil, false
	}
	quiz := player.Quiz()
	if quiz == nil {
		redirectToSelection(w, r)
		return nil, false
	}
	return quiz, true
}

func redirectToSelection(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func writeSessionError(w http.ResponseWriter, snap wordgame.Snapshot, err error) {
	switch {
	case errors.Is(err, wordgame.ErrNotActive), errors.Is(err, wordgame.ErrAlreadyStarted):
		writeJSON(w, http.StatusConflict, struct {
			errorResponse
			Game gameView `json:"game"`
		}{errorResponse{Error: err.Error()}, newGameView(snap)})
	case errors.Is(err, wordgame.ErrMissingData):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "request failed"})
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}
