// Package engine implements the session and curriculum progression state
// machine: it runs one conversational turn, detects module completion in the
// agent's reply, advances the learner through the catalog, and persists
// progress for authenticated users.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/blrlabs/codelab/internal/curriculum"
	"github.com/blrlabs/codelab/internal/domain"
	"github.com/blrlabs/codelab/internal/sandbox"
	"github.com/blrlabs/codelab/internal/store"
	"github.com/blrlabs/codelab/internal/tutor"
)

// kickoffPrompt is the synthetic learner message used to open a course. It is
// sent to the agent but never shown in the transcript.
const kickoffPrompt = "I have just started the %s course. Please introduce yourself and start the first lesson!"

// codeTurnTemplate embeds a snippet and its captured output into a learner
// turn for code-execution requests.
const codeTurnTemplate = "I wrote this code:\n```python\n%s\n```\nAnd got this output:\n```\n%s\n```\nIs this correct?"

// TurnResult is what one turn produces for the presentation layer.
type TurnResult struct {
	// Session carries the updated transcript and module pointer. The caller
	// must use it for the next turn.
	Session domain.Session `json:"session"`
	// Reply is the assistant's visible text, marker stripped.
	Reply string `json:"reply"`
	// Advanced is true when the module pointer moved to the next module.
	Advanced bool `json:"advanced"`
	// CourseComplete is true when completion was signaled on the goal's
	// last module.
	CourseComplete bool `json:"course_complete"`
	// Output is the raw sandbox output for code-execution turns, for
	// display in a separate output region.
	Output string `json:"output,omitempty"`
	// NoOp is true when the input was empty and nothing happened.
	NoOp bool `json:"no_op,omitempty"`
}

// Engine orchestrates turns. It holds no mutable state of its own: session
// state travels by value through each call, so turns for different sessions
// may run in parallel.
type Engine struct {
	catalog *curriculum.Catalog
	repo    store.Repository
	agent   tutor.Provider
	runner  sandbox.Executor
}

// New creates a progression engine.
func New(catalog *curriculum.Catalog, repo store.Repository, agent tutor.Provider, runner sandbox.Executor) *Engine {
	return &Engine{catalog: catalog, repo: repo, agent: agent, runner: runner}
}

// StartCourse begins a fresh session at the goal's first module, seeded with
// the agent's greeting. For authenticated users the starting position is
// persisted best-effort.
func (e *Engine) StartCourse(ctx context.Context, username, goal string) (domain.Session, error) {
	first, err := e.catalog.FirstModule(goal)
	if err != nil {
		return domain.Session{}, err
	}

	kickoff := []domain.Message{{Role: domain.RoleUser, Content: fmt.Sprintf(kickoffPrompt, goal)}}
	greeting, err := e.agent.Invoke(ctx, tutor.Request{Transcript: kickoff, Module: first, Goal: goal})
	if err != nil {
		return domain.Session{}, err
	}

	sess := domain.Session{Goal: goal, Module: first}
	sess = sess.Append(domain.RoleAssistant, greeting)

	if username != "" {
		if err := e.repo.EnsureUser(ctx, username); err != nil {
			slog.Warn("Failed to ensure user record", "username", username, "error", err)
		} else if err := e.repo.SaveProgress(ctx, username, goal, first, domain.ModuleCompletion{}); err != nil {
			slog.Warn("Failed to persist starting position", "username", username, "goal", goal, "error", err)
		}
	}

	return sess, nil
}

// Resume reloads the last persisted goal/module into a fresh session with an
// empty transcript. ok is false when the user has no resumable position.
func (e *Engine) Resume(ctx context.Context, username string) (sess domain.Session, ok bool, err error) {
	if username == "" {
		return domain.Session{}, false, nil
	}

	p, err := e.repo.GetProgress(ctx, username)
	if err != nil {
		return domain.Session{}, false, fmt.Errorf("load progress for resume: %w", err)
	}
	if p == nil || p.CurrentGoal == "" {
		return domain.Session{}, false, nil
	}
	if !e.catalog.Contains(p.CurrentGoal, p.CurrentModule) {
		// The curriculum changed underneath a stored record; falling back
		// to goal selection beats resuming into an orphaned module.
		slog.Warn("Stored position no longer in catalog",
			"username", username, "goal", p.CurrentGoal, "module", p.CurrentModule)
		return domain.Session{}, false, nil
	}

	return domain.Session{Goal: p.CurrentGoal, Module: p.CurrentModule}, true, nil
}

// AdvanceTurn runs one conversational turn: append the learner's input,
// invoke the agent, detect completion, advance and persist, append the reply.
//
// Empty or whitespace-only input is a deliberate no-op, not an error. An
// agent failure returns the session with the learner's turn still appended
// so nothing the learner typed is lost.
func (e *Engine) AdvanceTurn(ctx context.Context, username string, sess domain.Session, input string) (TurnResult, error) {
	if strings.TrimSpace(input) == "" {
		return TurnResult{Session: sess, NoOp: true}, nil
	}

	sess = sess.Append(domain.RoleUser, input)

	reply, err := e.agent.Invoke(ctx, tutor.Request{
		Transcript: sess.Transcript,
		Module:     sess.Module,
		Goal:       sess.Goal,
	})
	if err != nil {
		return TurnResult{Session: sess}, err
	}

	visible, complete := parseReply(reply)

	result := TurnResult{}
	if complete {
		visible += celebration
		result.Advanced, result.CourseComplete = e.advance(ctx, username, &sess)
	}

	sess = sess.Append(domain.RoleAssistant, visible)
	result.Session = sess
	result.Reply = visible
	return result, nil
}

// RunCode executes the snippet in the sandbox, synthesizes a learner turn
// embedding the snippet and its output, and proceeds as a normal turn. The
// raw output is threaded through unchanged for separate display.
func (e *Engine) RunCode(ctx context.Context, username string, sess domain.Session, snippet string) (TurnResult, error) {
	if strings.TrimSpace(snippet) == "" {
		return TurnResult{Session: sess, NoOp: true}, nil
	}
	if e.runner == nil {
		return TurnResult{Session: sess}, &sandbox.ErrUnavailable{}
	}

	output, err := e.runner.Execute(ctx, snippet)
	if err != nil {
		return TurnResult{Session: sess}, err
	}

	result, err := e.AdvanceTurn(ctx, username, sess, fmt.Sprintf(codeTurnTemplate, snippet, output))
	result.Output = output
	return result, err
}

// advance moves the module pointer after a completion signal and persists
// the finished module's metrics. Catalog or persistence failures are logged
// and swallowed: the assistant's reply must reach the learner regardless.
func (e *Engine) advance(ctx context.Context, username string, sess *domain.Session) (advanced, courseComplete bool) {
	// Counts completed user/assistant exchange pairs; the learner's turn is
	// already appended, the assistant's is not yet.
	steps := len(sess.Transcript) / 2
	finished := domain.ModuleCompletion{Module: sess.Module, Steps: steps}

	next, ok, err := e.catalog.NextModule(sess.Goal, sess.Module)
	if err != nil {
		slog.Error("Catalog lookup failed during advancement",
			"goal", sess.Goal, "module", sess.Module, "error", err)
		return false, false
	}

	if ok {
		sess.Module = next
	} else {
		// Last module of the goal: the pointer stays put and the
		// celebratory suffix alone communicates goal completion.
		courseComplete = true
	}

	if username != "" {
		if err := e.repo.SaveProgress(ctx, username, sess.Goal, sess.Module, finished); err != nil {
			slog.Warn("Failed to persist progress, continuing with in-memory state",
				"username", username, "goal", sess.Goal, "module", finished.Module, "error", err)
		}
	}

	return ok, courseComplete
}
