package wordgame

import (
	"errors"
	"fmt"
)

var (
	// ErrUpstream matches every UpstreamError
	ErrUpstream = errors.New("completion service request failed")
	// ErrMalformedResponse matches every MalformedResponseError
	ErrMalformedResponse = errors.New("malformed completion response")
	// ErrMissingData is returned when there is no question set to play
	ErrMissingData = errors.New("no question set available")
	// ErrInvalidSetup is returned for unknown languages, difficulties or identical languages
	ErrInvalidSetup = errors.New("invalid game setup")
	// ErrNotActive is returned by session operations that need a running game
	ErrNotActive = errors.New("quiz session is not active")
	// ErrAlreadyStarted is returned by Start outside the Ready state
	ErrAlreadyStarted = errors.New("quiz session already started")
)

// UpstreamError reports a failed call to the completion service
type UpstreamError struct {
	Op         string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// MalformedResponseError reports completion text that could not become a QuestionSet
type MalformedResponseError struct {
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed response: %s: %v", e.Reason, e.Err)
	}
	return "malformed response: " + e.Reason
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

func (e *MalformedResponseError) Is(target error) bool { return target == ErrMalformedResponse }

func malformed(reason string, err error) error {
	return &MalformedResponseError{Reason: reason, Err: err}
}
