package wordgame

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://api.deepseek.com"
	DefaultModel   = "deepseek-chat"

	generatorModule = "WordSetGenerator"
	systemPrompt    = "You are an assistant generating translations."
)

// GeneratorConfig configures the connection to the completion service
type GeneratorConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	// HTTPClient overrides the transport, mostly for tests
	HTTPClient *http.Client
}

// WordSetGenerator asks an OpenAI-compatible completion service for a word set
type WordSetGenerator struct {
	client *openai.Client
	model  string
	hasKey bool
	logger *zap.Logger
}

// NewWordSetGenerator creates a generator. A missing API key is not an error
// here; every call then fails with an UpstreamError.
func NewWordSetGenerator(cfg GeneratorConfig, logger *zap.Logger) *WordSetGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	if clientCfg.BaseURL == "" {
		clientCfg.BaseURL = DefaultBaseURL
	}
	switch {
	case cfg.HTTPClient != nil:
		clientCfg.HTTPClient = cfg.HTTPClient
	case cfg.Timeout > 0:
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &WordSetGenerator{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		hasKey: cfg.APIKey != "",
		logger: logger,
	}
}

// Complete issues exactly one chat completion request for req and returns
// the provider's response envelope untouched.
func (g *WordSetGenerator) Complete(ctx context.Context, req GameSetupRequest, transcript *LLMLogger) (openai.ChatCompletionResponse, error) {
	if !g.hasKey {
		return openai.ChatCompletionResponse{}, &UpstreamError{Op: "create chat completion", Err: errors.New("missing API key")}
	}

	prompt := buildPrompt(req)
	if transcript != nil {
		transcript.LogLLMRequest(generatorModule, prompt)
	}

	g.logger.Info("requesting word set",
		zap.String("source", string(req.SourceLanguage)),
		zap.String("target", string(req.TargetLanguage)),
		zap.String("difficulty", string(req.Difficulty)),
		zap.String("model", g.model),
	)

	started := time.Now()
	resp, err := g.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: g.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: systemPrompt,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			Stream: false,
		},
	)
	if err != nil {
		upstreamErr := &UpstreamError{Op: "create chat completion", StatusCode: statusCode(err), Err: err}
		if transcript != nil {
			transcript.LogFailure(upstreamErr)
		}
		g.logger.Warn("word set request failed", zap.Error(err), zap.Duration("elapsed", time.Since(started)))
		return openai.ChatCompletionResponse{}, upstreamErr
	}

	g.logger.Debug("received completion",
		zap.Int("choices", len(resp.Choices)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("elapsed", time.Since(started)),
	)
	return resp, nil
}

// Generate runs Complete and returns the text of the first choice
func (g *WordSetGenerator) Generate(ctx context.Context, req GameSetupRequest, transcript *LLMLogger) (string, error) {
	resp, err := g.Complete(ctx, req, transcript)
	if err != nil {
		return "", err
	}

	text, err := CompletionText(resp)
	if err != nil {
		return "", err
	}
	if transcript != nil {
		transcript.LogLLMResponse(generatorModule, text)
	}
	return text, nil
}

// CompletionText extracts choices[0].message.content from a response envelope
func CompletionText(resp openai.ChatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", &UpstreamError{Op: "read completion", Err: errors.New("no choices in response")}
	}
	return resp.Choices[0].Message.Content, nil
}

func buildPrompt(req GameSetupRequest) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Generate %d words in %s, each with %d translations in %s, for a vocabulary game.\n\n",
		QuestionCount, req.SourceLanguage, OptionCount, req.TargetLanguage))
	sb.WriteString(fmt.Sprintf("Use today's date (%s) as context to pick a fresh selection of words.\n", req.DateSeed))
	sb.WriteString(fmt.Sprintf("Difficulty level: %s\n\n", req.Difficulty))

	sb.WriteString("Requirements:\n")
	sb.WriteString(fmt.Sprintf("- Exactly %d entries, no duplicated words\n", QuestionCount))
	sb.WriteString(fmt.Sprintf("- Each entry has exactly %d distinct options, one of them the correct translation\n", OptionCount))
	sb.WriteString("- The wrong options should be plausible words in the target language\n")
	sb.WriteString("- \"correct\" must repeat one of the options exactly\n")
	sb.WriteString("- Reply with the JSON array only, no commentary\n\n")

	sb.WriteString(`Format: [{"word": "Apple", "options": ["Jablko", "Hruška", "Banán"], "correct": "Jablko"}]`)

	return sb.String()
}

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
