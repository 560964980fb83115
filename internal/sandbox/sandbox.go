// Package sandbox provides isolated execution of learner code snippets.
package sandbox

import (
	"context"
	"fmt"
	"sync"
)

// ErrUnavailable indicates the sandbox could not run the snippet at all
// (daemon down, image missing, timeout). A snippet that runs and fails is
// not a sandbox error; its stderr is the captured output.
type ErrUnavailable struct {
	Err error
}

func (e *ErrUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sandbox unavailable: %v", e.Err)
	}
	return "sandbox unavailable"
}

func (e *ErrUnavailable) Unwrap() error { return e.Err }

// Executor runs a source snippet in isolation and returns the captured
// output. Output is opaque text and is never parsed.
type Executor interface {
	Execute(ctx context.Context, source string) (string, error)
}

// MockExecutor is a deterministic Executor for testing.
type MockExecutor struct {
	mu      sync.Mutex
	Output  string
	Err     error
	Sources []string
}

// Execute records the source and returns the canned output or error.
func (m *MockExecutor) Execute(_ context.Context, source string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Sources = append(m.Sources, source)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Output, nil
}
