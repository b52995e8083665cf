package conversation

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"roleplay-coach-api/internal/domain/entity"
)

// 无场景会话时合成的场景外壳
const (
	FreeConversationObjective = "free conversation"
	UnrestrictedTimeline      = "unrestricted"
)

// ScenarioView 聊天界面使用的场景上下文
type ScenarioView struct {
	ScenarioRunID    string
	Title            string
	Description      string
	Objectives       []string
	Timeline         string
	PersonaIDs       []string
	ConversationType entity.ConversationType
	// Synthesized 为 true 表示场景为自由对话外壳
	Synthesized bool
}

// PersonaView 聊天界面使用的角色信息，来自会话创建时的快照
type PersonaView struct {
	ID            string
	Name          string
	Gender        entity.Gender
	MBTI          string
	Traits        []string
	SpeakingStyle string
	Image         string
}

// RunView 会话状态
type RunView struct {
	ID         string
	Status     entity.PersonaRunStatus
	Mode       entity.ConversationMode
	TurnCount  int
	Difficulty int
}

// ViewModel 聊天界面所需的完整视图
type ViewModel struct {
	Run             RunView
	Scenario        ScenarioView
	Persona         PersonaView
	InitialMessages []ChatMessage
}

// BuildViewModel 纯投影，不做任何写入
func BuildViewModel(run *PersonaRun, scenarioRun *ScenarioRun, messages []ChatMessage) ViewModel {
	snap := run.PersonaSnapshot
	name := snap.Name
	if name == "" {
		name = run.PersonaName
	}

	vm := ViewModel{
		Run: RunView{
			ID:         run.ID,
			Status:     run.Status,
			Mode:       run.Mode,
			TurnCount:  run.TurnCount,
			Difficulty: run.Difficulty,
		},
		Persona: PersonaView{
			ID:            run.PersonaID,
			Name:          name,
			Gender:        snap.Gender,
			MBTI:          snap.MBTI,
			Traits:        append([]string(nil), snap.Traits...),
			SpeakingStyle: snap.SpeakingStyle,
			Image:         ResolvePersonaImage(snap),
		},
		Scenario:        buildScenarioView(run, scenarioRun),
		InitialMessages: append([]ChatMessage(nil), messages...),
	}
	return vm
}

func buildScenarioView(run *PersonaRun, sr *ScenarioRun) ScenarioView {
	if isDirect(sr) {
		v := ScenarioView{
			Title:            run.PersonaName,
			Objectives:       []string{FreeConversationObjective},
			Timeline:         UnrestrictedTimeline,
			PersonaIDs:       []string{run.PersonaID},
			ConversationType: entity.ConversationTypePersonaDirect,
			Synthesized:      true,
		}
		if sr != nil {
			v.ScenarioRunID = sr.ID
		}
		return v
	}

	s := sr.Scenario
	title := s.Title
	if title == "" {
		title = sr.ScenarioName
	}
	timeline := s.Timeline
	if timeline == "" {
		timeline = UnrestrictedTimeline
	}
	objectives := append([]string(nil), s.Objectives...)
	if len(objectives) == 0 {
		objectives = []string{FreeConversationObjective}
	}
	return ScenarioView{
		ScenarioRunID:    sr.ID,
		Title:            title,
		Description:      s.Description,
		Objectives:       objectives,
		Timeline:         timeline,
		PersonaIDs:       append([]string(nil), s.PersonaIDs...),
		ConversationType: entity.ConversationTypeScenario,
	}
}

// ResolvePersonaImage 依次取性别对应的中性表情图、基础图、profile_image
func ResolvePersonaImage(snap entity.PersonaSnapshot) string {
	switch snap.Gender {
	case entity.GenderMale:
		if snap.Images.NeutralMale != "" {
			return snap.Images.NeutralMale
		}
	case entity.GenderFemale:
		if snap.Images.NeutralFemale != "" {
			return snap.Images.NeutralFemale
		}
	}
	if snap.Images.Base != "" {
		return snap.Images.Base
	}
	return snap.ProfileImage
}

// LoadRequest ScenarioRunID 已知时三路请求完全并行
type LoadRequest struct {
	RunID         string
	ScenarioRunID string
}

// Loader 将会话 id 解析为聊天视图
type Loader struct {
	backend Backend
	runs    *RunManager
}

func NewLoader(backend Backend, runs *RunManager) *Loader {
	return &Loader{backend: backend, runs: runs}
}

// LoadResult 视图及其来源数据
type LoadResult struct {
	View        ViewModel
	Run         *PersonaRun
	ScenarioRun *ScenarioRun
}

// Load 并行获取会话、场景会话与消息，三者全部返回后才组装视图；任一失败则整体失败
func (l *Loader) Load(ctx context.Context, req LoadRequest) (*LoadResult, error) {
	if req.RunID == "" {
		return nil, &ValidationError{Field: "run_id", Reason: "is required"}
	}

	var (
		run      *PersonaRun
		sr       *ScenarioRun
		messages []ChatMessage
		runReady = make(chan struct{})
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(runReady)
		r, err := l.runs.GetRun(gctx, req.RunID)
		if err != nil {
			return fmt.Errorf("get persona run: %w", err)
		}
		run = r
		return nil
	})
	g.Go(func() error {
		scenarioRunID := req.ScenarioRunID
		if scenarioRunID == "" {
			select {
			case <-runReady:
			case <-gctx.Done():
				return gctx.Err()
			}
			if run == nil || run.ScenarioRunID == "" {
				return nil
			}
			scenarioRunID = run.ScenarioRunID
		}
		s, err := l.backend.GetScenarioRun(gctx, scenarioRunID)
		if err != nil {
			return fmt.Errorf("get scenario run: %w", err)
		}
		sr = s
		return nil
	})
	g.Go(func() error {
		m, err := l.backend.ListMessages(gctx, req.RunID)
		if err != nil {
			return fmt.Errorf("list messages: %w", err)
		}
		messages = m
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &LoadResult{
		View:        BuildViewModel(run, sr, messages),
		Run:         run,
		ScenarioRun: sr,
	}, nil
}

// ScreenStatus 聊天界面加载状态
type ScreenStatus int

const (
	ScreenLoading ScreenStatus = iota
	ScreenReady
	ScreenFailed
)

func (s ScreenStatus) String() string {
	switch s {
	case ScreenLoading:
		return "loading"
	case ScreenReady:
		return "ready"
	case ScreenFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ChatScreen 异步加载中的聊天界面；数据未全部就绪前 View 返回 nil
type ChatScreen struct {
	mu      sync.Mutex
	status  ScreenStatus
	result  *LoadResult
	failure *Failure
	err     error
	done    chan struct{}
}

// Open 在后台加载并立即返回处于 loading 状态的界面
func (l *Loader) Open(ctx context.Context, req LoadRequest) *ChatScreen {
	s := &ChatScreen{status: ScreenLoading, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		res, err := l.Load(ctx, req)

		s.mu.Lock()
		defer s.mu.Unlock()
		if err != nil {
			f := FailureFor(OpLoadConversation, err)
			s.status, s.err, s.failure = ScreenFailed, err, &f
			return
		}
		s.status, s.result = ScreenReady, res
	}()
	return s
}

func (s *ChatScreen) Status() ScreenStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// View 仅在 ScreenReady 时非 nil
func (s *ChatScreen) View() *ViewModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return nil
	}
	v := s.result.View
	return &v
}

// Result 仅在 ScreenReady 时非 nil
func (s *ChatScreen) Result() *LoadResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Failure 仅在 ScreenFailed 时非 nil
func (s *ChatScreen) Failure() *Failure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

// Wait 等待加载结束，返回加载错误
func (s *ChatScreen) Wait(ctx context.Context) error {
	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
