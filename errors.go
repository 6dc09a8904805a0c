package awakener

import (
	"errors"
	"fmt"
)

// ErrAlreadyRunning is returned by Scheduler.Start when a loop is active.
var ErrAlreadyRunning = errors.New("agent is already running")

// ErrLLM wraps a provider-level failure.
type ErrLLM struct {
	Provider string
	Message  string
}

func (e *ErrLLM) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// ErrHTTP wraps a non-200 response from an LLM or community endpoint.
type ErrHTTP struct {
	Status int
	Body   string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// SnapshotUpdateError means the auditor call failed on both the snapshot
// model and the main-model fallback. The scheduler treats it as fatal:
// stale structural awareness is worse than stopping.
type SnapshotUpdateError struct {
	Last error
}

func (e *SnapshotUpdateError) Error() string {
	return fmt.Sprintf("snapshot update failed on all models: %v", e.Last)
}

func (e *SnapshotUpdateError) Unwrap() error { return e.Last }
