// Package tutor implements the external tutoring-agent collaborator: a
// stateless request/response service that, given the conversation transcript
// plus the current module and goal, returns the next assistant message.
package tutor

import (
	"context"
	"fmt"
	"time"

	"github.com/blrlabs/codelab/internal/domain"
)

// CompletionMarker is the literal token the agent embeds in its reply to
// signal that the current module is finished. It is part of the agent
// contract; the engine owns stripping it from the visible text.
const CompletionMarker = "[MODULE_COMPLETE]"

// ErrUnavailable indicates the tutoring agent is down, unreachable, or timed
// out. The engine surfaces it as a retry-able generic notice; no retries
// happen at this layer.
type ErrUnavailable struct {
	Err error
}

func (e *ErrUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tutoring agent unavailable: %v", e.Err)
	}
	return "tutoring agent unavailable"
}

func (e *ErrUnavailable) Unwrap() error { return e.Err }

// Request describes one agent invocation.
type Request struct {
	// Transcript is the full conversation so far, learner turn included.
	Transcript []domain.Message
	// Module is the currently active module name.
	Module string
	// Goal is the currently chosen goal name.
	Goal string
}

// Provider is the tutoring-agent abstraction. Implementations must be
// idempotent-safe to call repeatedly with the same input.
type Provider interface {
	// Invoke returns the next assistant message for the transcript.
	Invoke(ctx context.Context, req Request) (string, error)

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string
}

// Config holds tutoring-agent configuration.
type Config struct {
	Provider  string
	Model     string
	APIKey    string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
}

// systemPrompt builds the socratic tutor role for a module within a goal.
func systemPrompt(goal, module string) string {
	return fmt.Sprintf(`You are a friendly socratic coding tutor guiding a complete beginner through building "%s" in Python, one small step at a time.

The learner is currently on the module %q. Teach only this module's concept. Never hand over full solutions: ask short guiding questions, give one hint at a time, and have the learner type the code themselves.

When the learner has demonstrated the module's concept with working code, include the literal token %s somewhere in your reply. Do not mention the token otherwise.`, goal, module, CompletionMarker)
}

// resolveModel maps a friendly model name to a provider model ID.
func resolveModel(name string, models map[string]string) string {
	if id, ok := models[name]; ok {
		return id
	}
	// If not in the map, use as-is (allows direct model IDs).
	return name
}
