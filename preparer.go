package wordgame

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Completer produces raw completion text for a setup request
type Completer interface {
	Generate(ctx context.Context, req GameSetupRequest, transcript *LLMLogger) (string, error)
}

// Archive stores validated word sets
type Archive interface {
	SaveWordSet(ctx context.Context, req GameSetupRequest, set QuestionSet) (string, error)
}

// Preparer runs one setup attempt: generate, parse, then publish to a GameState
type Preparer struct {
	completer     Completer
	parser        *Parser
	archive       Archive
	transcriptDir string
	logger        *zap.Logger
	now           func() time.Time
}

// PreparerOption customizes a Preparer
type PreparerOption func(*Preparer)

// WithArchive saves every successfully parsed set
func WithArchive(a Archive) PreparerOption {
	return func(p *Preparer) { p.archive = a }
}

// WithTranscripts writes a transcript per attempt into dir
func WithTranscripts(dir string) PreparerOption {
	return func(p *Preparer) { p.transcriptDir = dir }
}

// WithParser overrides the response parser
func WithParser(parser *Parser) PreparerOption {
	return func(p *Preparer) { p.parser = parser }
}

// NewPreparer creates a preparer around completer
func NewPreparer(completer Completer, logger *zap.Logger, opts ...PreparerOption) *Preparer {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Preparer{
		completer: completer,
		parser:    NewParser(nil),
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Prepare fills state with a new question set for req. Validation is all or
// nothing: on any error the state records the failure and holds no set.
func (p *Preparer) Prepare(ctx context.Context, state *GameState, req GameSetupRequest) (QuestionSet, error) {
	req, err := p.Normalize(req)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, state, state.BeginLoading(), req)
}

// Normalize applies setup defaults and validates req
func (p *Preparer) Normalize(req GameSetupRequest) (GameSetupRequest, error) {
	req = req.WithDefaults(p.now())
	if err := req.Validate(); err != nil {
		return req, err
	}
	return req, nil
}

// Run completes the load identified by ticket. Callers that hand the work to
// another goroutine take the ticket first, so the newest request always wins
// regardless of scheduling.
func (p *Preparer) Run(ctx context.Context, state *GameState, ticket uint64, req GameSetupRequest) (QuestionSet, error) {
	attemptID := uuid.NewString()
	logger := p.logger.With(zap.String("attempt_id", attemptID))

	var transcript *LLMLogger
	if p.transcriptDir != "" {
		t, err := NewLLMLogger(p.transcriptDir, attemptID, req)
		if err != nil {
			logger.Warn("transcript disabled for attempt", zap.Error(err))
		} else {
			transcript = t
			defer transcript.Close()
		}
	}

	set, err := p.build(ctx, req, transcript)
	if err != nil {
		if transcript != nil {
			transcript.LogFailure(err)
		}
		if !state.Fail(ticket, err) {
			logger.Debug("superseded attempt failed", zap.Error(err))
		}
		logger.Warn("word set preparation failed", zap.Error(err))
		return nil, err
	}

	if p.archive != nil {
		if id, err := p.archive.SaveWordSet(ctx, req, set); err != nil {
			logger.Warn("failed to archive word set", zap.Error(err))
		} else {
			logger.Debug("archived word set", zap.String("word_set_id", id))
		}
	}

	if !state.Complete(ticket, set) {
		logger.Info("word set discarded, a newer setup replaced it")
		return set, nil
	}
	logger.Info("word set ready", zap.Int("questions", len(set)))
	return set, nil
}

func (p *Preparer) build(ctx context.Context, req GameSetupRequest, transcript *LLMLogger) (QuestionSet, error) {
	text, err := p.completer.Generate(ctx, req, transcript)
	if err != nil {
		return nil, err
	}
	return p.parser.Parse(text)
}
