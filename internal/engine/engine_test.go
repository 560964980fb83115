package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blrlabs/codelab/internal/curriculum"
	"github.com/blrlabs/codelab/internal/domain"
	"github.com/blrlabs/codelab/internal/sandbox"
	"github.com/blrlabs/codelab/internal/tutor"
)

// fakeRepo is an in-memory store.Repository that can simulate failures.
type fakeRepo struct {
	mu       sync.Mutex
	records  map[string]*domain.Progress
	saves    int
	failNext error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[string]*domain.Progress)}
}

func (f *fakeRepo) EnsureUser(_ context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	if _, ok := f.records[username]; !ok {
		f.records[username] = &domain.Progress{
			Username:  username,
			Completed: make(map[string]domain.ModuleCompletion),
		}
	}
	return nil
}

func (f *fakeRepo) GetProgress(_ context.Context, username string) (*domain.Progress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return nil, err
	}
	p, ok := f.records[username]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeRepo) SaveProgress(_ context.Context, username, goal, module string, completion domain.ModuleCompletion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	f.saves++
	p, ok := f.records[username]
	if !ok {
		p = &domain.Progress{Username: username, Completed: make(map[string]domain.ModuleCompletion)}
		f.records[username] = p
	}
	p.CurrentGoal = goal
	p.CurrentModule = module
	if completion.Module != "" {
		if _, done := p.Completed[completion.Module]; !done {
			p.Completed[completion.Module] = completion
		}
	}
	return nil
}

func (f *fakeRepo) Ping(context.Context) error { return nil }
func (f *fakeRepo) Close() error               { return nil }

func cricketCatalog(t *testing.T) *curriculum.Catalog {
	t.Helper()
	c, err := curriculum.New([]curriculum.Goal{
		{Name: "Cricket Game", Modules: []string{"Stadium", "Scoreboard", "Umpire"}},
	})
	require.NoError(t, err)
	return c
}

func TestAdvanceTurn_EmptyInputIsNoOp(t *testing.T) {
	repo := newFakeRepo()
	agent := tutor.NewMockProvider()
	e := New(cricketCatalog(t), repo, agent, nil)

	sess := domain.Session{Goal: "Cricket Game", Module: "Stadium"}
	sess = sess.Append(domain.RoleAssistant, "Welcome!")

	for _, input := range []string{"", "   ", "\n\t "} {
		result, err := e.AdvanceTurn(context.Background(), "asha", sess, input)
		require.NoError(t, err)
		assert.True(t, result.NoOp)
		assert.Equal(t, sess, result.Session)
	}

	assert.Zero(t, agent.CallCount(), "agent must never be invoked for empty input")
	assert.Zero(t, repo.saves, "store must never be written for empty input")
}

func TestAdvanceTurn_PlainReplyAppendsWithoutAdvancing(t *testing.T) {
	repo := newFakeRepo()
	agent := tutor.NewMockProvider(tutor.MockReply{Text: "What does print do?"})
	e := New(cricketCatalog(t), repo, agent, nil)

	sess := domain.Session{Goal: "Cricket Game", Module: "Stadium"}
	result, err := e.AdvanceTurn(context.Background(), "asha", sess, "hello")
	require.NoError(t, err)

	assert.False(t, result.Advanced)
	assert.False(t, result.CourseComplete)
	assert.Equal(t, "Stadium", result.Session.Module)
	assert.Equal(t, "What does print do?", result.Reply)
	require.Len(t, result.Session.Transcript, 2)
	assert.Equal(t, domain.RoleUser, result.Session.Transcript[0].Role)
	assert.Equal(t, domain.RoleAssistant, result.Session.Transcript[1].Role)
	assert.Zero(t, repo.saves)
}

func TestAdvanceTurn_CompletionAdvancesAndPersists(t *testing.T) {
	repo := newFakeRepo()
	agent := tutor.NewMockProvider(tutor.MockReply{
		Text: "Perfect! " + tutor.CompletionMarker,
	})
	e := New(cricketCatalog(t), repo, agent, nil)

	sess := domain.Session{Goal: "Cricket Game", Module: "Stadium"}
	result, err := e.AdvanceTurn(context.Background(), "asha", sess, "print('hi')")
	require.NoError(t, err)

	assert.True(t, result.Advanced)
	assert.False(t, result.CourseComplete)
	assert.Equal(t, "Scoreboard", result.Session.Module)
	assert.NotContains(t, result.Reply, tutor.CompletionMarker)
	assert.Contains(t, result.Reply, "Module Complete")

	p := repo.records["asha"]
	require.NotNil(t, p)
	assert.Equal(t, "Scoreboard", p.CurrentModule)
	require.Len(t, p.Completed, 1)
	assert.Contains(t, p.Completed, "Stadium")
}

func TestAdvanceTurn_CompletionAtLastModuleKeepsPointer(t *testing.T) {
	repo := newFakeRepo()
	agent := tutor.NewMockProvider(tutor.MockReply{Text: "Done! " + tutor.CompletionMarker})
	e := New(cricketCatalog(t), repo, agent, nil)

	sess := domain.Session{Goal: "Cricket Game", Module: "Umpire"}
	result, err := e.AdvanceTurn(context.Background(), "asha", sess, "final answer")
	require.NoError(t, err)

	assert.False(t, result.Advanced)
	assert.True(t, result.CourseComplete)
	assert.Equal(t, "Umpire", result.Session.Module)

	p := repo.records["asha"]
	require.NotNil(t, p)
	assert.Equal(t, "Umpire", p.CurrentModule)
	assert.Contains(t, p.Completed, "Umpire")
}

func TestAdvanceTurn_StepsCountExchangePairs(t *testing.T) {
	repo := newFakeRepo()
	agent := tutor.NewMockProvider(tutor.MockReply{Text: tutor.CompletionMarker + " well done"})
	e := New(cricketCatalog(t), repo, agent, nil)

	// Three full exchanges already recorded; the incoming learner turn makes
	// seven transcript entries at metric time: 7 / 2 == 3.
	sess := domain.Session{Goal: "Cricket Game", Module: "Stadium"}
	for i := 0; i < 3; i++ {
		sess = sess.Append(domain.RoleUser, fmt.Sprintf("attempt %d", i))
		sess = sess.Append(domain.RoleAssistant, "keep going")
	}

	_, err := e.AdvanceTurn(context.Background(), "asha", sess, "got it")
	require.NoError(t, err)

	p := repo.records["asha"]
	require.NotNil(t, p)
	assert.Equal(t, 3, p.Completed["Stadium"].Steps)
}

func TestAdvanceTurn_AgentFailureKeepsLearnerMessage(t *testing.T) {
	repo := newFakeRepo()
	agent := tutor.NewMockProvider(tutor.MockReply{Err: &tutor.ErrUnavailable{Err: errors.New("boom")}})
	e := New(cricketCatalog(t), repo, agent, nil)

	sess := domain.Session{Goal: "Cricket Game", Module: "Stadium"}
	result, err := e.AdvanceTurn(context.Background(), "asha", sess, "help")

	var unavailable *tutor.ErrUnavailable
	require.ErrorAs(t, err, &unavailable)
	require.Len(t, result.Session.Transcript, 1)
	assert.Equal(t, "help", result.Session.Transcript[0].Content)
	assert.Zero(t, repo.saves)
}

func TestAdvanceTurn_PersistenceFailureDoesNotBlockReply(t *testing.T) {
	repo := newFakeRepo()
	repo.failNext = errors.New("disk full")
	agent := tutor.NewMockProvider(tutor.MockReply{Text: "Nice work! " + tutor.CompletionMarker})
	e := New(cricketCatalog(t), repo, agent, nil)

	sess := domain.Session{Goal: "Cricket Game", Module: "Stadium"}
	result, err := e.AdvanceTurn(context.Background(), "asha", sess, "code here")
	require.NoError(t, err)

	// Conversational success is independent of persistence success.
	assert.Equal(t, "Nice work!"+celebration, result.Reply)
	assert.True(t, result.Advanced)
	assert.Equal(t, "Scoreboard", result.Session.Module)
}

func TestAdvanceTurn_AnonymousNeverPersists(t *testing.T) {
	repo := newFakeRepo()
	agent := tutor.NewMockProvider(tutor.MockReply{Text: "Great! " + tutor.CompletionMarker})
	e := New(cricketCatalog(t), repo, agent, nil)

	sess := domain.Session{Goal: "Cricket Game", Module: "Stadium"}
	result, err := e.AdvanceTurn(context.Background(), "", sess, "code")
	require.NoError(t, err)

	assert.True(t, result.Advanced)
	assert.Zero(t, repo.saves)
	assert.Empty(t, repo.records)
}

func TestAdvanceTurn_SixModuleWalk(t *testing.T) {
	modules := []string{"Pitch", "Bat", "Bowl", "Field", "Score", "Win"}
	catalog, err := curriculum.New([]curriculum.Goal{
		{Name: "Cricket Game", Modules: modules},
	})
	require.NoError(t, err)

	repo := newFakeRepo()
	agent := tutor.NewMockProvider()
	e := New(catalog, repo, agent, nil)

	sess := domain.Session{Goal: "Cricket Game", Module: modules[0]}
	for i := 0; i < 5; i++ {
		agent.AddReply(tutor.MockReply{Text: "Done. " + tutor.CompletionMarker})
		result, err := e.AdvanceTurn(context.Background(), "virat", sess, "next")
		require.NoError(t, err)
		assert.True(t, result.Advanced)
		sess = result.Session
	}

	assert.Equal(t, "Win", sess.Module)
	require.Len(t, repo.records["virat"].Completed, 5)
	assert.NotContains(t, repo.records["virat"].Completed, "Win")

	// The sixth completion leaves the pointer at the last module and records
	// it as the sixth completed key.
	agent.AddReply(tutor.MockReply{Text: "Champion! " + tutor.CompletionMarker})
	result, err := e.AdvanceTurn(context.Background(), "virat", sess, "final")
	require.NoError(t, err)
	assert.False(t, result.Advanced)
	assert.True(t, result.CourseComplete)
	assert.Equal(t, "Win", result.Session.Module)
	assert.Len(t, repo.records["virat"].Completed, 6)
	assert.Contains(t, repo.records["virat"].Completed, "Win")
}

func TestRunCode_ThreadsOutputThrough(t *testing.T) {
	repo := newFakeRepo()
	agent := tutor.NewMockProvider(tutor.MockReply{Text: "Looks right!"})
	runner := &sandbox.MockExecutor{Output: "IT'S A SIX!\n"}
	e := New(cricketCatalog(t), repo, agent, runner)

	sess := domain.Session{Goal: "Cricket Game", Module: "Stadium"}
	result, err := e.RunCode(context.Background(), "asha", sess, `print("IT'S A SIX!")`)
	require.NoError(t, err)

	assert.Equal(t, "IT'S A SIX!\n", result.Output)
	require.Len(t, result.Session.Transcript, 2)
	learnerTurn := result.Session.Transcript[0].Content
	assert.Contains(t, learnerTurn, "I wrote this code")
	assert.Contains(t, learnerTurn, `print("IT'S A SIX!")`)
	assert.Contains(t, learnerTurn, "IT'S A SIX!\n")
	assert.Contains(t, learnerTurn, "Is this correct?")
}

func TestRunCode_SandboxFailureAbortsTurn(t *testing.T) {
	repo := newFakeRepo()
	agent := tutor.NewMockProvider(tutor.MockReply{Text: "never reached"})
	runner := &sandbox.MockExecutor{Err: &sandbox.ErrUnavailable{Err: errors.New("daemon down")}}
	e := New(cricketCatalog(t), repo, agent, runner)

	sess := domain.Session{Goal: "Cricket Game", Module: "Stadium"}
	result, err := e.RunCode(context.Background(), "asha", sess, "print(1)")

	var unavailable *sandbox.ErrUnavailable
	require.ErrorAs(t, err, &unavailable)
	assert.Empty(t, result.Session.Transcript, "nothing is appended when the sandbox is down")
	assert.Zero(t, agent.CallCount())
}

func TestRunCode_EmptySnippetIsNoOp(t *testing.T) {
	runner := &sandbox.MockExecutor{Output: "unused"}
	e := New(cricketCatalog(t), newFakeRepo(), tutor.NewMockProvider(), runner)

	sess := domain.Session{Goal: "Cricket Game", Module: "Stadium"}
	result, err := e.RunCode(context.Background(), "asha", sess, "  \n")
	require.NoError(t, err)
	assert.True(t, result.NoOp)
	assert.Empty(t, runner.Sources)
}

func TestStartCourse_SeedsGreetingAndPersists(t *testing.T) {
	repo := newFakeRepo()
	agent := tutor.NewMockProvider(tutor.MockReply{Text: "Namaskara! Let's build a cricket game."})
	e := New(cricketCatalog(t), repo, agent, nil)

	sess, err := e.StartCourse(context.Background(), "asha", "Cricket Game")
	require.NoError(t, err)

	assert.Equal(t, "Cricket Game", sess.Goal)
	assert.Equal(t, "Stadium", sess.Module)
	require.Len(t, sess.Transcript, 1)
	assert.Equal(t, domain.RoleAssistant, sess.Transcript[0].Role)

	p := repo.records["asha"]
	require.NotNil(t, p)
	assert.Equal(t, "Stadium", p.CurrentModule)
	assert.Empty(t, p.Completed)
}

func TestStartCourse_UnknownGoal(t *testing.T) {
	e := New(cricketCatalog(t), newFakeRepo(), tutor.NewMockProvider(), nil)

	_, err := e.StartCourse(context.Background(), "asha", "Space Game")
	assert.ErrorIs(t, err, curriculum.ErrUnknownGoal)
}

func TestResume(t *testing.T) {
	repo := newFakeRepo()
	require.NoError(t, repo.EnsureUser(context.Background(), "asha"))
	require.NoError(t, repo.SaveProgress(context.Background(), "asha", "Cricket Game", "Scoreboard", domain.ModuleCompletion{Module: "Stadium", Steps: 2}))

	e := New(cricketCatalog(t), repo, tutor.NewMockProvider(), nil)

	sess, ok, err := e.Resume(context.Background(), "asha")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Cricket Game", sess.Goal)
	assert.Equal(t, "Scoreboard", sess.Module)
	assert.Empty(t, sess.Transcript)

	_, ok, err = e.Resume(context.Background(), "stranger")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = e.Resume(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, ok)
}
