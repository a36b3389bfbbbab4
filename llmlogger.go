package wordgame

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LLMLogger writes a plain-text transcript of one word set generation
type LLMLogger struct {
	file *os.File
	mu   sync.Mutex
	id   string
}

// NewLLMLogger creates dir/<id>.log and writes the setup parameters as a header
func NewLLMLogger(dir, id string, req GameSetupRequest) (*LLMLogger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create transcript directory: %w", err)
	}

	filename := filepath.Join(dir, fmt.Sprintf("%s.log", id))
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create transcript file: %w", err)
	}

	logger := &LLMLogger{
		file: file,
		id:   id,
	}

	logger.Logf("=== Word Set Generation ===\n")
	logger.Logf("Word Set ID: %s\n", id)
	logger.Logf("Languages: %s -> %s\n", req.SourceLanguage, req.TargetLanguage)
	logger.Logf("Difficulty: %s\n", req.Difficulty)
	logger.Logf("Date Seed: %s\n", req.DateSeed)
	logger.Logf("Started: %s\n", time.Now().Format(time.RFC3339))
	logger.Logf("===========================\n\n")

	return logger, nil
}

// Logf writes a timestamped line to the transcript
func (ll *LLMLogger) Logf(format string, args ...interface{}) {
	ll.mu.Lock()
	defer ll.mu.Unlock()
	ll.writeLocked(format, args...)
}

func (ll *LLMLogger) writeLocked(format string, args ...interface{}) {
	if ll.file == nil {
		return
	}
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(ll.file, "[%s] %s", timestamp, fmt.Sprintf(format, args...))
	ll.file.Sync()
}

// LogLLMRequest records the prompt sent to the completion service
func (ll *LLMLogger) LogLLMRequest(module, prompt string) {
	ll.Logf("=== LLM REQUEST (%s) ===\n", module)
	ll.Logf("Prompt:\n%s\n", prompt)
	ll.Logf("=====================\n\n")
}

// LogLLMResponse records the raw completion text
func (ll *LLMLogger) LogLLMResponse(module, response string) {
	ll.Logf("=== LLM RESPONSE (%s) ===\n", module)
	ll.Logf("Response:\n%s\n", response)
	ll.Logf("======================\n\n")
}

// LogFailure records why the generation attempt was abandoned
func (ll *LLMLogger) LogFailure(err error) {
	ll.Logf("FAILED: %v\n", err)
}

// Close writes the footer and closes the file. Safe to call twice.
func (ll *LLMLogger) Close() error {
	ll.mu.Lock()
	defer ll.mu.Unlock()

	if ll.file == nil {
		return nil
	}
	ll.writeLocked("=== Generation Complete ===\n")
	ll.writeLocked("Completed: %s\n", time.Now().Format(time.RFC3339))
	err := ll.file.Close()
	ll.file = nil
	return err
}
