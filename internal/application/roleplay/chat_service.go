package roleplay

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"roleplay-coach-api/internal/domain/entity"
	"roleplay-coach-api/internal/domain/repository"
	"roleplay-coach-api/internal/domain/service"
	"roleplay-coach-api/internal/infrastructure/messaging"
	wfmodel "roleplay-coach-api/internal/workflow/model"
	apperrors "roleplay-coach-api/pkg/errors"
	"roleplay-coach-api/pkg/logger"
	"roleplay-coach-api/pkg/metrics"
)

const (
	maxMessageRunes    = 2000
	personaRunCacheTTL = 10 * time.Minute
	activeListCacheTTL = time.Minute
)

// ChatOptions 会话服务参数
type ChatOptions struct {
	DefaultMaxTurns int
	HistoryWindow   int
	Provider        string
	Model           string
}

// ChatRepositories 会话服务依赖的仓储
type ChatRepositories struct {
	Personas     repository.PersonaRepository
	Scenarios    repository.ScenarioRepository
	ScenarioRuns repository.ScenarioRunRepository
	PersonaRuns  repository.PersonaRunRepository
	Messages     repository.ChatMessageRepository
}

// ChatService 角色会话的创建、对话推进与关闭
type ChatService struct {
	opts  ChatOptions
	txMgr repository.Transactor
	repos ChatRepositories

	cache  RunCache
	events EventPublisher
	quota  QuotaChecker
	reply  ReplyGenerator

	now func() time.Time
}

func NewChatService(
	opts ChatOptions,
	txMgr repository.Transactor,
	repos ChatRepositories,
	cache RunCache,
	events EventPublisher,
	quota QuotaChecker,
	reply ReplyGenerator,
) *ChatService {
	if opts.DefaultMaxTurns <= 0 {
		opts.DefaultMaxTurns = 10
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 20
	}
	return &ChatService{
		opts:   opts,
		txMgr:  txMgr,
		repos:  repos,
		cache:  cache,
		events: events,
		quota:  quota,
		reply:  reply,
		now:    time.Now,
	}
}

// CreatePersonaRunInput 创建角色会话参数
type CreatePersonaRunInput struct {
	PersonaID     string
	ScenarioID    string
	ScenarioRunID string
	Mode          entity.ConversationMode
	Difficulty    int
}

func (in CreatePersonaRunInput) validate() error {
	if strings.TrimSpace(in.PersonaID) == "" {
		return apperrors.ErrInvalidParam.WithDetail("persona_id is required")
	}
	if !in.Mode.IsValid() {
		return apperrors.ErrInvalidParam.WithDetail("mode must be messenger or realtime_voice")
	}
	if in.Difficulty < entity.MinDifficulty || in.Difficulty > entity.MaxDifficulty {
		return apperrors.ErrInvalidParam.WithDetail("difficulty must be between 1 and 4")
	}
	return nil
}

// CreatePersonaRun 创建角色会话
//
// 指定 ScenarioRunID 时加入已有场景会话；仅指定 ScenarioID 时新建场景会话；
// 两者都未指定时创建 persona_direct 会话。同一场景会话中每个角色至多一个会话。
func (s *ChatService) CreatePersonaRun(ctx context.Context, userID string, in CreatePersonaRunInput) (*entity.PersonaRun, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var created *entity.PersonaRun
	err := s.txMgr.WithTransaction(ctx, func(txCtx context.Context) error {
		persona, err := s.repos.Personas.GetByID(txCtx, in.PersonaID)
		if err != nil {
			return err
		}
		if persona == nil {
			return apperrors.ErrPersonaNotFound
		}

		scenarioRun, err := s.resolveScenarioRun(txCtx, userID, persona, in)
		if err != nil {
			return err
		}

		existing, err := s.repos.PersonaRuns.FindByScenarioRunAndPersona(txCtx, scenarioRun.ID, persona.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperrors.ErrDuplicatePersonaRun
		}

		srID := scenarioRun.ID
		run := entity.NewPersonaRun(userID, persona, &srID, in.Mode, in.Difficulty)
		if idx := scenarioRun.PersonaIndex(persona.ID); idx > 0 {
			run.SequenceIndex = idx
		}
		if err := s.repos.PersonaRuns.Create(txCtx, run); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperrors.ErrDuplicatePersonaRun
			}
			return err
		}
		created = run
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.PersonaRunsCreated.WithLabelValues(string(created.Mode)).Inc()
	metrics.ActiveConversations.Inc()
	s.invalidate(ctx, service.PersonaRunKey(created.ID), service.UserActiveConversationsKey(userID))
	publishRunEvent(ctx, s.events, messaging.EventPersonaRunCreated, created)

	logger.Info(ctx, "persona run created",
		"persona_run_id", created.ID,
		"persona_id", created.PersonaID,
		"mode", created.Mode,
	)
	return created, nil
}

func (s *ChatService) resolveScenarioRun(ctx context.Context, userID string, persona *entity.Persona, in CreatePersonaRunInput) (*entity.ScenarioRun, error) {
	if id := strings.TrimSpace(in.ScenarioRunID); id != "" {
		sr, err := s.repos.ScenarioRuns.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if sr == nil || sr.UserID != userID {
			return nil, apperrors.ErrScenarioRunNotFound
		}
		if sr.PersonaIndex(persona.ID) < 0 {
			return nil, apperrors.ErrInvalidParam.WithDetail("persona is not part of the scenario run")
		}
		return sr, nil
	}

	var sr *entity.ScenarioRun
	if id := strings.TrimSpace(in.ScenarioID); id != "" {
		scenario, err := s.repos.Scenarios.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if scenario == nil {
			return nil, apperrors.ErrScenarioNotFound
		}
		sr = entity.NewScenarioRun(userID, scenario)
		if sr.PersonaIndex(persona.ID) < 0 {
			return nil, apperrors.ErrInvalidParam.WithDetail("persona is not part of the scenario")
		}
	} else {
		sr = entity.NewDirectScenarioRun(userID, persona)
	}

	if err := s.repos.ScenarioRuns.Create(ctx, sr); err != nil {
		return nil, err
	}
	return sr, nil
}

// CreateScenarioRun 为场景新建一次尝试，角色会话随后逐个加入
func (s *ChatService) CreateScenarioRun(ctx context.Context, userID, scenarioID string) (*entity.ScenarioRun, error) {
	if strings.TrimSpace(scenarioID) == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("scenario_id is required")
	}
	scenario, err := s.repos.Scenarios.GetByID(ctx, scenarioID)
	if err != nil {
		return nil, err
	}
	if scenario == nil {
		return nil, apperrors.ErrScenarioNotFound
	}
	sr := entity.NewScenarioRun(userID, scenario)
	if err := s.repos.ScenarioRuns.Create(ctx, sr); err != nil {
		return nil, err
	}
	return sr, nil
}

// GetPersonaRun 读取会话，优先命中缓存
func (s *ChatService) GetPersonaRun(ctx context.Context, userID, runID string) (*entity.PersonaRun, error) {
	if s.cache == nil {
		return s.loadRun(ctx, userID, runID)
	}

	data, err := s.cache.GetOrLoadSafe(ctx, service.PersonaRunKey(runID), personaRunCacheTTL, func() (any, error) {
		run, err := s.repos.PersonaRuns.GetByID(ctx, runID)
		if err != nil {
			return nil, err
		}
		if run == nil {
			return nil, apperrors.ErrPersonaRunNotFound
		}
		return run, nil
	})
	if err != nil {
		return nil, err
	}
	var run entity.PersonaRun
	if err := json.Unmarshal(data, &run); err != nil {
		logger.Warn(ctx, "cached persona run is corrupt", "run_id", runID, "error", err.Error())
		s.invalidate(ctx, service.PersonaRunKey(runID))
		return s.loadRun(ctx, userID, runID)
	}
	// 缓存按会话 ID 共享，归属每次都要校验
	if run.UserID != userID {
		return nil, apperrors.ErrPersonaRunNotFound
	}
	return &run, nil
}

// GetScenarioRun 读取场景会话
func (s *ChatService) GetScenarioRun(ctx context.Context, userID, scenarioRunID string) (*entity.ScenarioRun, error) {
	sr, err := s.repos.ScenarioRuns.GetByID(ctx, scenarioRunID)
	if err != nil {
		return nil, err
	}
	if sr == nil || sr.UserID != userID {
		return nil, apperrors.ErrScenarioRunNotFound
	}
	return sr, nil
}

// FindPersonaRun 查找场景会话中指定角色的会话
func (s *ChatService) FindPersonaRun(ctx context.Context, userID, scenarioRunID, personaID string) (*entity.PersonaRun, error) {
	if _, err := s.GetScenarioRun(ctx, userID, scenarioRunID); err != nil {
		return nil, err
	}
	run, err := s.repos.PersonaRuns.FindByScenarioRunAndPersona(ctx, scenarioRunID, personaID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, apperrors.ErrPersonaRunNotFound
	}
	return run, nil
}

// ListScenarioPersonaRuns 按顺序列出场景会话下的全部角色会话
func (s *ChatService) ListScenarioPersonaRuns(ctx context.Context, userID, scenarioRunID string) ([]*entity.PersonaRun, error) {
	if _, err := s.GetScenarioRun(ctx, userID, scenarioRunID); err != nil {
		return nil, err
	}
	return s.repos.PersonaRuns.ListByScenarioRun(ctx, scenarioRunID)
}

// ListMessages 按写入顺序返回会话消息
func (s *ChatService) ListMessages(ctx context.Context, userID, runID string) ([]*entity.ChatMessage, error) {
	if _, err := s.loadRun(ctx, userID, runID); err != nil {
		return nil, err
	}
	return s.repos.Messages.ListByPersonaRun(ctx, runID)
}

// SendMessageResult 一轮对话的结果
type SendMessageResult struct {
	UserMessage *entity.ChatMessage
	AIMessage   *entity.ChatMessage
	Run         *entity.PersonaRun
}

// SendMessage 追加用户消息并生成角色回复，达到最大轮数时结束会话
func (s *ChatService) SendMessage(ctx context.Context, userID, runID, text string) (*SendMessageResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("message is required")
	}
	if utf8.RuneCountInString(text) > maxMessageRunes {
		return nil, apperrors.ErrInvalidParam.WithDetail("message too long")
	}

	run, err := s.loadRun(ctx, userID, runID)
	if err != nil {
		return nil, err
	}
	if run.IsCompleted() {
		return nil, apperrors.ErrRunCompleted
	}

	if s.quota != nil {
		if _, err := s.quota.CheckDailyTokens(ctx, userID); err != nil {
			return nil, apperrors.ErrTooManyRequests.WithError(err).WithDetail("daily token quota exceeded")
		}
	}

	scenario, err := s.scenarioSnapshot(ctx, run)
	if err != nil {
		return nil, err
	}
	history, err := s.repos.Messages.ListRecent(ctx, run.ID, s.opts.HistoryWindow)
	if err != nil {
		return nil, err
	}

	out, err := s.reply.Generate(service.WithUserID(ctx, userID), buildReplyInput(run, scenario, history, text, s.opts))
	if err != nil {
		logger.Error(ctx, "persona reply failed", err, "persona_run_id", run.ID)
		return nil, apperrors.ErrPersonaReplyFailed.WithError(err)
	}

	maxTurns := scenario.MaxTurns
	if maxTurns <= 0 {
		maxTurns = s.opts.DefaultMaxTurns
	}

	var result *SendMessageResult
	err = s.txMgr.WithTransaction(ctx, func(txCtx context.Context) error {
		locked, err := s.repos.PersonaRuns.GetByIDForUpdate(txCtx, run.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return apperrors.ErrPersonaRunNotFound
		}
		if locked.IsCompleted() {
			return apperrors.ErrRunCompleted
		}

		seq, err := s.repos.Messages.NextSeq(txCtx, locked.ID)
		if err != nil {
			return err
		}
		userMsg := entity.NewChatMessage(locked.ID, seq, entity.SenderUser, text)
		if err := s.repos.Messages.Create(txCtx, userMsg); err != nil {
			return err
		}
		aiMsg := entity.NewChatMessage(locked.ID, seq+1, entity.SenderAI, out.Reply.Message)
		aiMsg.Emotion = out.Reply.Emotion
		aiMsg.EmotionReason = out.Reply.EmotionReason
		if err := s.repos.Messages.Create(txCtx, aiMsg); err != nil {
			return err
		}

		locked.RecordTurn(maxTurns, s.now().UTC())
		if err := s.repos.PersonaRuns.Update(txCtx, locked); err != nil {
			return err
		}
		result = &SendMessageResult{UserMessage: userMsg, AIMessage: aiMsg, Run: locked}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.MessagesTotal.WithLabelValues(string(entity.SenderUser)).Inc()
	metrics.MessagesTotal.WithLabelValues(string(entity.SenderAI)).Inc()
	s.invalidate(ctx, service.PersonaRunKey(run.ID), service.UserActiveConversationsKey(userID))
	if result.Run.IsCompleted() {
		publishRunEvent(ctx, s.events, messaging.EventPersonaRunCompleted, result.Run)
	}
	return result, nil
}

// CompleteRun 用户主动结束会话，重复调用返回当前状态
func (s *ChatService) CompleteRun(ctx context.Context, userID, runID string) (*entity.PersonaRun, error) {
	var (
		run       *entity.PersonaRun
		completed bool
	)
	err := s.txMgr.WithTransaction(ctx, func(txCtx context.Context) error {
		locked, err := s.repos.PersonaRuns.GetByIDForUpdate(txCtx, runID)
		if err != nil {
			return err
		}
		if locked == nil || locked.UserID != userID {
			return apperrors.ErrPersonaRunNotFound
		}
		run = locked
		if locked.IsCompleted() {
			return nil
		}
		locked.Complete(s.now().UTC())
		completed = true
		return s.repos.PersonaRuns.Update(txCtx, locked)
	})
	if err != nil {
		return nil, err
	}

	if completed {
		s.invalidate(ctx, service.PersonaRunKey(run.ID), service.UserActiveConversationsKey(userID))
		publishRunEvent(ctx, s.events, messaging.EventPersonaRunCompleted, run)
	}
	return run, nil
}

// CloseConversation 从活跃列表隐藏会话，数据保留
func (s *ChatService) CloseConversation(ctx context.Context, userID, runID string) error {
	run, err := s.loadRun(ctx, userID, runID)
	if err != nil {
		return err
	}
	if run.ClosedAt != nil {
		return nil
	}
	if err := s.repos.PersonaRuns.Close(ctx, run.ID, s.now().UTC()); err != nil {
		return err
	}

	metrics.ActiveConversations.Dec()
	s.invalidate(ctx, service.PersonaRunKey(run.ID), service.UserActiveConversationsKey(userID))
	publishRunEvent(ctx, s.events, messaging.EventConversationClosed, run)
	return nil
}

// ListActiveConversations 列出未关闭的会话，默认分页走缓存
func (s *ChatService) ListActiveConversations(ctx context.Context, userID string, pagination repository.Pagination) (*repository.PagedResult[*entity.PersonaRun], error) {
	if s.cache == nil || pagination != repository.NewPagination(1, 20) {
		return s.repos.PersonaRuns.ListActiveByUser(ctx, userID, pagination)
	}

	key := service.UserActiveConversationsKey(userID)
	data, err := s.cache.GetOrLoadSafe(ctx, key, activeListCacheTTL, func() (any, error) {
		return s.repos.PersonaRuns.ListActiveByUser(ctx, userID, pagination)
	})
	if err != nil {
		return nil, err
	}
	var page repository.PagedResult[*entity.PersonaRun]
	if err := json.Unmarshal(data, &page); err != nil {
		logger.Warn(ctx, "cached active conversations are corrupt", "error", err.Error())
		s.invalidate(ctx, key)
		return s.repos.PersonaRuns.ListActiveByUser(ctx, userID, pagination)
	}
	return &page, nil
}

func (s *ChatService) loadRun(ctx context.Context, userID, runID string) (*entity.PersonaRun, error) {
	run, err := s.repos.PersonaRuns.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil || run.UserID != userID {
		return nil, apperrors.ErrPersonaRunNotFound
	}
	return run, nil
}

func (s *ChatService) scenarioSnapshot(ctx context.Context, run *entity.PersonaRun) (entity.ScenarioSnapshot, error) {
	if run.ScenarioRunID == nil {
		return entity.ScenarioSnapshot{}, nil
	}
	sr, err := s.repos.ScenarioRuns.GetByID(ctx, *run.ScenarioRunID)
	if err != nil {
		return entity.ScenarioSnapshot{}, err
	}
	if sr == nil || sr.ConversationType == entity.ConversationTypePersonaDirect {
		return entity.ScenarioSnapshot{}, nil
	}
	return sr.Scenario.Data(), nil
}

func (s *ChatService) invalidate(ctx context.Context, keys ...string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		logger.Warn(ctx, "failed to invalidate cache", "keys", keys, "error", err.Error())
	}
}

func buildReplyInput(run *entity.PersonaRun, scenario entity.ScenarioSnapshot, history []*entity.ChatMessage, text string, opts ChatOptions) *wfmodel.PersonaReplyInput {
	snap := run.PersonaSnapshot.Data()
	lines := make([]wfmodel.TranscriptLine, 0, len(history))
	for _, m := range history {
		lines = append(lines, wfmodel.TranscriptLine{Sender: string(m.Sender), Text: m.Message})
	}
	return &wfmodel.PersonaReplyInput{
		PersonaName:         snap.Name,
		Gender:              string(snap.Gender),
		MBTI:                snap.MBTI,
		Traits:              snap.Traits,
		SpeakingStyle:       snap.SpeakingStyle,
		Background:          snap.Background,
		ScenarioTitle:       scenario.Title,
		ScenarioDescription: scenario.Description,
		Objectives:          scenario.Objectives,
		Difficulty:          run.Difficulty,
		History:             lines,
		UserMessage:         text,
		Provider:            opts.Provider,
		Model:               opts.Model,
	}
}
