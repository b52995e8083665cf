package conversation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"roleplay-coach-api/internal/domain/entity"
	"roleplay-coach-api/internal/domain/service"
	"roleplay-coach-api/pkg/logger"
)

// FeedbackState 反馈状态
type FeedbackState int

const (
	NoFeedback FeedbackState = iota
	Generating
	Ready
	Errored
)

func (s FeedbackState) String() string {
	switch s {
	case NoFeedback:
		return "no_feedback"
	case Generating:
		return "generating"
	case Ready:
		return "ready"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

var (
	// ErrGenerationInFlight 同一会话已有进行中的生成请求
	ErrGenerationInFlight = errors.New("feedback generation already in progress")
	// ErrInvalidFeedbackState 当前状态不允许该操作
	ErrInvalidFeedbackState = errors.New("operation not allowed in current feedback state")
	// ErrFeedbackNotReady 报告尚未生成
	ErrFeedbackNotReady = errors.New("feedback is not ready")
)

// FeedbackSnapshot 某一时刻的反馈状态
type FeedbackSnapshot struct {
	State    FeedbackState
	Feedback *Feedback
	Failure  *Failure
}

// FeedbackCoordinator 单个会话结束后的反馈与推进
type FeedbackCoordinator struct {
	backend     Backend
	cache       service.ResultCache
	runs        *RunManager
	run         *PersonaRun
	scenarioRun *ScenarioRun

	mu       sync.Mutex
	state    FeedbackState
	feedback *Feedback
	failure  *Failure

	// nextMu 保证同一时刻只有一次推进请求
	nextMu sync.Mutex
}

func NewFeedbackCoordinator(backend Backend, cache service.ResultCache, runs *RunManager, run *PersonaRun, scenarioRun *ScenarioRun) *FeedbackCoordinator {
	return &FeedbackCoordinator{
		backend:     backend,
		cache:       cache,
		runs:        runs,
		run:         run,
		scenarioRun: scenarioRun,
		state:       NoFeedback,
	}
}

func (c *FeedbackCoordinator) Snapshot() FeedbackSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return FeedbackSnapshot{State: c.state, Feedback: c.feedback, Failure: c.failure}
}

func (c *FeedbackCoordinator) State() FeedbackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Fetch 已就绪或缓存命中时不发请求；404 视为尚无反馈
func (c *FeedbackCoordinator) Fetch(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case Ready, Generating:
		c.mu.Unlock()
		return nil
	}
	if c.readyFromCacheLocked(ctx) {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	fb, err := c.backend.GetFeedback(ctx, c.run.ID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Ready || c.state == Generating {
		return nil
	}
	switch {
	case err == nil:
		c.state, c.feedback, c.failure = Ready, fb, nil
		return nil
	case errors.Is(err, ErrNotFound):
		c.state, c.failure = NoFeedback, nil
		return nil
	default:
		f := FailureFor(OpFetchFeedback, err)
		c.state, c.failure = Errored, &f
		logger.Warn(ctx, "fetch feedback failed", "run_id", c.run.ID, "error", err)
		return fmt.Errorf("fetch feedback: %w", err)
	}
}

// RetryFetch 仅在 Errored 状态下可用
func (c *FeedbackCoordinator) RetryFetch(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Errored {
		c.mu.Unlock()
		return ErrInvalidFeedbackState
	}
	c.state, c.failure = NoFeedback, nil
	c.mu.Unlock()
	return c.Fetch(ctx)
}

// Generate 仅在 NoFeedback 状态下发起；生成成功后写入永久缓存，这是反馈缓存唯一的写入点
func (c *FeedbackCoordinator) Generate(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case Ready:
		c.mu.Unlock()
		return nil
	case Generating:
		c.mu.Unlock()
		return ErrGenerationInFlight
	case Errored:
		c.mu.Unlock()
		return ErrInvalidFeedbackState
	}
	if c.readyFromCacheLocked(ctx) {
		c.mu.Unlock()
		return nil
	}
	c.state, c.failure = Generating, nil
	c.mu.Unlock()

	fb, err := c.backend.GenerateFeedback(ctx, c.run.ID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		f := FailureFor(OpGenerateFeedback, err)
		c.state, c.failure = NoFeedback, &f
		logger.Warn(ctx, "generate feedback failed", "run_id", c.run.ID, "error", err)
		return fmt.Errorf("generate feedback: %w", err)
	}

	c.state, c.feedback = Ready, fb
	if c.cache != nil {
		if err := c.cache.Set(ctx, service.FeedbackKey(c.run.ID), fb, service.FeedbackCacheTTL); err != nil {
			logger.Warn(ctx, "cache feedback failed", "run_id", c.run.ID, "error", err)
		}
	}
	logger.Info(ctx, "feedback ready", "run_id", c.run.ID, "overall_score", fb.OverallScore)
	return nil
}

func (c *FeedbackCoordinator) readyFromCacheLocked(ctx context.Context) bool {
	fb, ok := getJSON[Feedback](ctx, c.cache, service.FeedbackKey(c.run.ID))
	if !ok {
		return false
	}
	c.state, c.feedback, c.failure = Ready, fb, nil
	return true
}

// NextKind 推进结果类型
type NextKind int

const (
	// NoNextPersona 已是序列中最后一个角色
	NoNextPersona NextKind = iota
	NextExisting
	NextCreated
)

// NextStep 推进到下一个角色的结果
type NextStep struct {
	Kind      NextKind
	PersonaID string
	Run       *PersonaRun
}

// NextPersonaID 返回序列中的下一个角色，最后一个或不在场景中时返回 false
func NextPersonaID(personaIDs []string, currentPersonaID string, currentIndex int) (string, bool) {
	idx := slices.Index(personaIDs, currentPersonaID)
	if idx < 0 {
		idx = currentIndex
	}
	if idx < 0 || idx+1 >= len(personaIDs) {
		return "", false
	}
	return personaIDs[idx+1], true
}

// GoToNextPersona 已有会话则复用，否则才创建。
// 当前会话未结束且反馈未就绪时返回 ErrInvalidFeedbackState。
func (c *FeedbackCoordinator) GoToNextPersona(ctx context.Context) (*NextStep, error) {
	c.nextMu.Lock()
	defer c.nextMu.Unlock()

	sr := c.scenarioRun
	if isDirect(sr) {
		return &NextStep{Kind: NoNextPersona}, nil
	}
	nextID, ok := NextPersonaID(sr.Scenario.PersonaIDs, c.run.PersonaID, c.run.SequenceIndex)
	if !ok {
		return &NextStep{Kind: NoNextPersona}, nil
	}
	if !c.canAdvance() {
		return nil, ErrInvalidFeedbackState
	}

	existing, err := c.runs.FindRun(ctx, sr.ID, nextID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &NextStep{Kind: NextExisting, PersonaID: nextID, Run: existing}, nil
	}

	created, err := c.runs.EnsureRun(ctx, EnsureRunRequest{
		PersonaID:     nextID,
		ScenarioRunID: sr.ID,
		Mode:          c.run.Mode,
		Difficulty:    c.run.Difficulty,
	})
	if err == nil {
		return &NextStep{Kind: NextCreated, PersonaID: nextID, Run: created}, nil
	}
	if !IsConflict(err) {
		return nil, err
	}

	// 其他终端抢先创建
	existing, findErr := c.runs.FindRun(ctx, sr.ID, nextID)
	if findErr != nil {
		return nil, findErr
	}
	if existing == nil {
		return nil, err
	}
	return &NextStep{Kind: NextExisting, PersonaID: nextID, Run: existing}, nil
}

func (c *FeedbackCoordinator) canAdvance() bool {
	c.mu.Lock()
	ready := c.state == Ready
	c.mu.Unlock()
	return ready || c.run.IsCompleted()
}

// isDirect 无场景或 persona_direct 视为单人对话，其余都按场景处理
func isDirect(sr *ScenarioRun) bool {
	return sr == nil || sr.ConversationType == entity.ConversationTypePersonaDirect
}

// Route 会话结束后的去向
type Route int

const (
	RouteFeedback Route = iota
	RouteConversationList
)

// CompletionRoute 无场景或 persona_direct 会话结束后直接回到列表
func CompletionRoute(sr *ScenarioRun) Route {
	if isDirect(sr) {
		return RouteConversationList
	}
	return RouteFeedback
}

// CompletionRoute 当前会话结束后的去向
func (c *FeedbackCoordinator) CompletionRoute() Route {
	return CompletionRoute(c.scenarioRun)
}
