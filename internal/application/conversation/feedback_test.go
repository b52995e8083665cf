package conversation

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roleplay-coach-api/internal/domain/entity"
	"roleplay-coach-api/internal/domain/service"
)

func newCoordinator(b *fakeBackend, cache service.ResultCache, run *PersonaRun, sr *ScenarioRun) *FeedbackCoordinator {
	return NewFeedbackCoordinator(b, cache, NewRunManager(b, cache), run, sr)
}

func TestFetch_NotFoundIsNoFeedback(t *testing.T) {
	b := newFakeBackend()
	c := newCoordinator(b, NewMemoryCache(8), runFixture("run-1", "p1", ""), nil)

	require.NoError(t, c.Fetch(context.Background()))

	snap := c.Snapshot()
	assert.Equal(t, NoFeedback, snap.State)
	assert.Nil(t, snap.Failure)
	assert.Nil(t, snap.Feedback)
}

func TestFetch_OtherErrorIsErrored(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	b.getFeedbackErr = &APIError{Status: http.StatusInternalServerError, Message: "boom"}
	c := newCoordinator(b, NewMemoryCache(8), runFixture("run-1", "p1", ""), nil)

	err := c.Fetch(ctx)
	require.Error(t, err)
	snap := c.Snapshot()
	assert.Equal(t, Errored, snap.State)
	require.NotNil(t, snap.Failure)
	assert.Equal(t, ActionRetryFetch, snap.Failure.Action)

	// Errored 状态下不能直接生成
	assert.ErrorIs(t, c.Generate(ctx), ErrInvalidFeedbackState)
	assert.Equal(t, 0, b.count("GenerateFeedback"))

	b.mu.Lock()
	b.getFeedbackErr = nil
	b.feedback["run-1"] = sampleFeedback("run-1")
	b.mu.Unlock()

	require.NoError(t, c.RetryFetch(ctx))
	assert.Equal(t, Ready, c.State())
	assert.Equal(t, 78, c.Snapshot().Feedback.OverallScore)
}

func TestRetryFetch_OnlyFromErrored(t *testing.T) {
	b := newFakeBackend()
	c := newCoordinator(b, nil, runFixture("run-1", "p1", ""), nil)

	assert.ErrorIs(t, c.RetryFetch(context.Background()), ErrInvalidFeedbackState)
	assert.Equal(t, 0, b.count("GetFeedback"))
}

func TestFetch_ReadyMakesNoNetworkCall(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	b.feedback["run-1"] = sampleFeedback("run-1")
	c := newCoordinator(b, NewMemoryCache(8), runFixture("run-1", "p1", ""), nil)

	require.NoError(t, c.Fetch(ctx))
	require.NoError(t, c.Fetch(ctx))
	require.NoError(t, c.Fetch(ctx))

	assert.Equal(t, Ready, c.State())
	assert.Equal(t, 1, b.count("GetFeedback"))
}

func TestGenerate_IdempotentAndCached(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	cache := NewMemoryCache(8)
	run := runFixture("run-1", "p1", "")

	c := newCoordinator(b, cache, run, nil)
	require.NoError(t, c.Fetch(ctx))
	require.NoError(t, c.Generate(ctx))
	require.NoError(t, c.Generate(ctx))

	assert.Equal(t, Ready, c.State())
	assert.Equal(t, 1, b.count("GenerateFeedback"))

	cached, ok := getJSON[Feedback](ctx, cache, service.FeedbackKey("run-1"))
	require.True(t, ok)
	assert.Equal(t, 78, cached.OverallScore)

	// 新的界面实例直接从缓存恢复
	again := newCoordinator(b, cache, run, nil)
	require.NoError(t, again.Fetch(ctx))
	assert.Equal(t, Ready, again.State())
	assert.Equal(t, 1, b.count("GetFeedback"))
	require.NoError(t, again.Generate(ctx))
	assert.Equal(t, 1, b.count("GenerateFeedback"))
}

func TestGenerate_FetchNeverWritesCache(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	b.feedback["run-1"] = sampleFeedback("run-1")
	cache := NewMemoryCache(8)

	c := newCoordinator(b, cache, runFixture("run-1", "p1", ""), nil)
	require.NoError(t, c.Fetch(ctx))
	assert.Equal(t, Ready, c.State())

	_, err := cache.Get(ctx, service.FeedbackKey("run-1"))
	assert.ErrorIs(t, err, service.ErrCacheMiss)
}

func TestGenerate_SuppressesDuplicates(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	b.generateGate = make(chan struct{})
	c := newCoordinator(b, NewMemoryCache(8), runFixture("run-1", "p1", ""), nil)

	firstDone := make(chan error, 1)
	go func() { firstDone <- c.Generate(ctx) }()

	require.Eventually(t, func() bool { return c.State() == Generating }, time.Second, 5*time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.ErrorIs(t, c.Generate(ctx), ErrGenerationInFlight)
		}()
	}
	wg.Wait()

	close(b.generateGate)
	require.NoError(t, <-firstDone)
	assert.Equal(t, Ready, c.State())
	assert.Equal(t, 1, b.count("GenerateFeedback"))
}

func TestGenerate_FailureReturnsToNoFeedback(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	b.generateErr = &APIError{Status: http.StatusBadGateway, Message: "llm down"}
	cache := NewMemoryCache(8)
	c := newCoordinator(b, cache, runFixture("run-1", "p1", ""), nil)

	err := c.Generate(ctx)
	require.Error(t, err)
	snap := c.Snapshot()
	assert.Equal(t, NoFeedback, snap.State)
	require.NotNil(t, snap.Failure)
	assert.Equal(t, ActionRetryGenerate, snap.Failure.Action)
	_, cacheErr := cache.Get(ctx, service.FeedbackKey("run-1"))
	assert.ErrorIs(t, cacheErr, service.ErrCacheMiss)

	b.mu.Lock()
	b.generateErr = nil
	b.mu.Unlock()
	require.NoError(t, c.Generate(ctx))
	assert.Equal(t, Ready, c.State())
	assert.Nil(t, c.Snapshot().Failure)
	assert.Equal(t, 2, b.count("GenerateFeedback"))
}

func TestNextPersonaID(t *testing.T) {
	ids := []string{"a", "b", "c"}

	next, ok := NextPersonaID(ids, "a", 0)
	assert.True(t, ok)
	assert.Equal(t, "b", next)

	_, ok = NextPersonaID(ids, "c", 2)
	assert.False(t, ok)

	next, ok = NextPersonaID(ids, "unknown", 1)
	assert.True(t, ok)
	assert.Equal(t, "c", next)

	_, ok = NextPersonaID(nil, "a", 0)
	assert.False(t, ok)
}

func TestGoToNextPersona_LastInSequence(t *testing.T) {
	b := newFakeBackend()
	sr := scenarioRunFixture("sr-1", "p1", "p2")
	c := newCoordinator(b, nil, runFixture("run-2", "p2", "sr-1"), sr)

	step, err := c.GoToNextPersona(context.Background())
	require.NoError(t, err)
	assert.Equal(t, NoNextPersona, step.Kind)
	assert.Nil(t, step.Run)
	assert.Equal(t, 0, b.count("FindPersonaRun"))
	assert.Equal(t, 0, b.count("CreatePersonaRun"))
}

func TestGoToNextPersona_PersonaDirectHasNoNext(t *testing.T) {
	b := newFakeBackend()
	sr := &ScenarioRun{ID: "sr-1", ConversationType: entity.ConversationTypePersonaDirect}
	c := newCoordinator(b, nil, runFixture("run-1", "p1", "sr-1"), sr)

	step, err := c.GoToNextPersona(context.Background())
	require.NoError(t, err)
	assert.Equal(t, NoNextPersona, step.Kind)
	assert.Equal(t, RouteConversationList, c.CompletionRoute())
}

func TestGoToNextPersona_ReusesExistingRun(t *testing.T) {
	b := newFakeBackend()
	sr := scenarioRunFixture("sr-1", "p1", "p2", "p3")
	b.addRun(runFixture("run-1", "p1", "sr-1"))
	b.addRun(runFixture("run-2", "p2", "sr-1"))
	c := newCoordinator(b, NewMemoryCache(8), completedRunFixture("run-1", "p1", "sr-1"), sr)

	step, err := c.GoToNextPersona(context.Background())
	require.NoError(t, err)
	assert.Equal(t, NextExisting, step.Kind)
	assert.Equal(t, "run-2", step.Run.ID)
	assert.Equal(t, 0, b.count("CreatePersonaRun"))
}

func TestGoToNextPersona_CreatesOnlyOnce(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	sr := scenarioRunFixture("sr-1", "p1", "p2")
	b.addRun(runFixture("run-1", "p1", "sr-1"))
	cache := NewMemoryCache(8)
	require.NoError(t, cache.Set(ctx, service.ActiveConversationsKey, []ConversationSummary{}, 0))
	c := newCoordinator(b, cache, completedRunFixture("run-1", "p1", "sr-1"), sr)

	var wg sync.WaitGroup
	steps := make([]*NextStep, 4)
	for i := range steps {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			step, err := c.GoToNextPersona(ctx)
			assert.NoError(t, err)
			steps[i] = step
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, b.count("CreatePersonaRun"))
	created := 0
	for _, s := range steps {
		require.NotNil(t, s)
		require.NotNil(t, s.Run)
		assert.Equal(t, "p2", s.Run.PersonaID)
		assert.Equal(t, "sr-1", s.Run.ScenarioRunID)
		if s.Kind == NextCreated {
			created++
		}
	}
	assert.Equal(t, 1, created)

	_, err := cache.Get(ctx, service.ActiveConversationsKey)
	assert.ErrorIs(t, err, service.ErrCacheMiss)
}

// conflictOnceBackend 模拟另一个终端在查找与创建之间抢先创建
type conflictOnceBackend struct {
	*fakeBackend
	once sync.Once
}

func (b *conflictOnceBackend) CreatePersonaRun(ctx context.Context, req CreatePersonaRunRequest) (*PersonaRun, error) {
	b.once.Do(func() {
		b.addRun(&PersonaRun{ID: "run-other", PersonaID: req.PersonaID, ScenarioRunID: req.ScenarioRunID})
	})
	return b.fakeBackend.CreatePersonaRun(ctx, req)
}

func TestGoToNextPersona_ConflictFallsBackToExisting(t *testing.T) {
	b := &conflictOnceBackend{fakeBackend: newFakeBackend()}
	sr := scenarioRunFixture("sr-1", "p1", "p2")
	runs := NewRunManager(b, nil)
	c := NewFeedbackCoordinator(b, nil, runs, completedRunFixture("run-1", "p1", "sr-1"), sr)

	step, err := c.GoToNextPersona(context.Background())
	require.NoError(t, err)
	assert.Equal(t, NextExisting, step.Kind)
	assert.Equal(t, "run-other", step.Run.ID)
	assert.Equal(t, 2, b.count("FindPersonaRun"))
}

func TestGoToNextPersona_RequiresFinishedConversation(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	sr := scenarioRunFixture("sr-1", "p1", "p2")
	b.addRun(runFixture("run-1", "p1", "sr-1"))
	c := newCoordinator(b, nil, runFixture("run-1", "p1", "sr-1"), sr)

	step, err := c.GoToNextPersona(ctx)
	assert.Nil(t, step)
	require.ErrorIs(t, err, ErrInvalidFeedbackState)
	assert.Equal(t, NoFeedback, c.State())
	assert.Equal(t, 0, b.count("FindPersonaRun"))
	assert.Equal(t, 0, b.count("CreatePersonaRun"))
	assert.Equal(t, ActionBackToList, FailureFor(OpNextPersona, err).Action)
}

func TestGoToNextPersona_AllowedOnceFeedbackReady(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	sr := scenarioRunFixture("sr-1", "p1", "p2")
	b.addRun(runFixture("run-1", "p1", "sr-1"))
	b.feedback["run-1"] = sampleFeedback("run-1")
	c := newCoordinator(b, nil, runFixture("run-1", "p1", "sr-1"), sr)

	require.NoError(t, c.Fetch(ctx))
	require.Equal(t, Ready, c.State())

	step, err := c.GoToNextPersona(ctx)
	require.NoError(t, err)
	assert.Equal(t, NextCreated, step.Kind)
	assert.Equal(t, "p2", step.PersonaID)
}

func TestUntypedScenarioRunFollowsScenarioPath(t *testing.T) {
	b := newFakeBackend()
	sr := scenarioRunFixture("sr-1", "p1", "p2")
	sr.ConversationType = ""
	run := completedRunFixture("run-1", "p1", "sr-1")
	c := newCoordinator(b, nil, run, sr)

	assert.Equal(t, RouteFeedback, c.CompletionRoute())
	step, err := c.GoToNextPersona(context.Background())
	require.NoError(t, err)
	assert.Equal(t, NextCreated, step.Kind)

	vm := BuildViewModel(run, sr, nil)
	assert.False(t, vm.Scenario.Synthesized)
	assert.Equal(t, entity.ConversationTypeScenario, vm.Scenario.ConversationType)
}

func TestCompletionRoute(t *testing.T) {
	assert.Equal(t, RouteConversationList, CompletionRoute(nil))
	assert.Equal(t, RouteConversationList, CompletionRoute(&ScenarioRun{ConversationType: entity.ConversationTypePersonaDirect}))
	assert.Equal(t, RouteFeedback, CompletionRoute(scenarioRunFixture("sr-1", "p1")))
}
