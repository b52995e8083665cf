package roleplay

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"

	"roleplay-coach-api/internal/domain/entity"
	"roleplay-coach-api/internal/domain/repository"
	"roleplay-coach-api/internal/domain/service"
	"roleplay-coach-api/internal/infrastructure/messaging"
	rediscache "roleplay-coach-api/internal/infrastructure/persistence/redis"
	wfmodel "roleplay-coach-api/internal/workflow/model"
	apperrors "roleplay-coach-api/pkg/errors"
	"roleplay-coach-api/pkg/logger"
	"roleplay-coach-api/pkg/metrics"
)

// FeedbackOptions 反馈服务参数
type FeedbackOptions struct {
	// RateLimit 每用户每分钟可触发的生成次数，0 表示不限制
	RateLimit int
	Provider  string
	Model     string
}

// FeedbackRepositories 反馈服务依赖的仓储
type FeedbackRepositories struct {
	ScenarioRuns repository.ScenarioRunRepository
	PersonaRuns  repository.PersonaRunRepository
	Messages     repository.ChatMessageRepository
	Feedbacks    repository.FeedbackRepository
}

// FeedbackService 反馈读取与一次性生成
type FeedbackService struct {
	opts  FeedbackOptions
	repos FeedbackRepositories

	cache   FeedbackCache
	limiter RateLimiter
	events  EventPublisher
	quota   QuotaChecker
	gen     ReportGenerator

	group singleflight.Group
}

func NewFeedbackService(
	opts FeedbackOptions,
	repos FeedbackRepositories,
	cache FeedbackCache,
	limiter RateLimiter,
	events EventPublisher,
	quota QuotaChecker,
	gen ReportGenerator,
) *FeedbackService {
	return &FeedbackService{
		opts:    opts,
		repos:   repos,
		cache:   cache,
		limiter: limiter,
		events:  events,
		quota:   quota,
		gen:     gen,
	}
}

// GetFeedback 读取会话反馈，尚未生成时返回 ErrFeedbackNotFound
func (s *FeedbackService) GetFeedback(ctx context.Context, userID, conversationID string) (*entity.Feedback, error) {
	if fb := s.cached(ctx, conversationID); fb != nil {
		if fb.UserID != userID {
			return nil, apperrors.ErrFeedbackNotFound
		}
		return fb, nil
	}

	if _, err := s.loadRun(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	fb, err := s.repos.Feedbacks.GetByConversationID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if fb == nil {
		return nil, apperrors.ErrFeedbackNotFound
	}
	s.store(ctx, fb)
	return fb, nil
}

// GenerateFeedback 为已结束的会话生成反馈；已存在时直接返回，created 为 false
func (s *FeedbackService) GenerateFeedback(ctx context.Context, userID, conversationID string) (fb *entity.Feedback, created bool, err error) {
	run, err := s.loadRun(ctx, userID, conversationID)
	if err != nil {
		return nil, false, err
	}
	if !run.IsCompleted() {
		return nil, false, apperrors.ErrRunNotCompleted
	}

	existing, err := s.repos.Feedbacks.GetByConversationID(ctx, conversationID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	if s.limiter != nil && s.opts.RateLimit > 0 {
		allowed, err := s.limiter.Allow(ctx, rediscache.BuildUserRateLimitKey(userID, "feedback"), s.opts.RateLimit, time.Minute)
		if err != nil {
			logger.Warn(ctx, "feedback rate limiter unavailable", "error", err.Error())
		} else if !allowed {
			return nil, false, apperrors.ErrTooManyRequests
		}
	}
	if s.quota != nil {
		if _, err := s.quota.CheckDailyTokens(ctx, userID); err != nil {
			return nil, false, apperrors.ErrTooManyRequests.WithError(err).WithDetail("daily token quota exceeded")
		}
	}

	// 同一会话的并发生成合并为一次；调用方取消不影响进行中的生成
	v, err, _ := s.group.Do(conversationID, func() (any, error) {
		return s.generate(context.WithoutCancel(ctx), run)
	})
	if err != nil {
		return nil, false, err
	}
	res := v.(generateResult)
	return res.feedback, res.created, nil
}

type generateResult struct {
	feedback *entity.Feedback
	created  bool
}

func (s *FeedbackService) generate(ctx context.Context, run *entity.PersonaRun) (generateResult, error) {
	existing, err := s.repos.Feedbacks.GetByConversationID(ctx, run.ID)
	if err != nil {
		return generateResult{}, err
	}
	if existing != nil {
		return generateResult{feedback: existing}, nil
	}

	messages, err := s.repos.Messages.ListByPersonaRun(ctx, run.ID)
	if err != nil {
		return generateResult{}, err
	}
	if len(messages) == 0 {
		return generateResult{}, apperrors.ErrInvalidParam.WithDetail("conversation has no messages")
	}

	var scenario entity.ScenarioSnapshot
	if run.ScenarioRunID != nil {
		sr, err := s.repos.ScenarioRuns.GetByID(ctx, *run.ScenarioRunID)
		if err != nil {
			return generateResult{}, err
		}
		if sr != nil && sr.ConversationType == entity.ConversationTypeScenario {
			scenario = sr.Scenario.Data()
		}
	}

	start := time.Now()
	out, err := s.gen.Generate(service.WithUserID(ctx, run.UserID), buildFeedbackInput(run, scenario, messages, s.opts))
	metrics.FeedbackGenerationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.FeedbackGenerationTotal.WithLabelValues("error").Inc()
		logger.Error(ctx, "feedback generation failed", err, "persona_run_id", run.ID)
		return generateResult{}, apperrors.ErrFeedbackGenFailed.WithError(err)
	}

	fb := &entity.Feedback{
		ConversationID:   run.ID,
		UserID:           run.UserID,
		OverallScore:     out.Report.OverallScore,
		Scores:           datatypes.JSONSlice[entity.ScoreItem](out.Report.Scores),
		DetailedFeedback: datatypes.NewJSONType(withTimeStatistics(out.Report.DetailedFeedback, run, messages)),
	}
	if err := s.repos.Feedbacks.Create(ctx, fb); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return generateResult{}, err
		}
		// 其他实例先写入，以已存在的为准
		existing, getErr := s.repos.Feedbacks.GetByConversationID(ctx, run.ID)
		if getErr != nil {
			return generateResult{}, getErr
		}
		return generateResult{feedback: existing}, nil
	}

	metrics.FeedbackGenerationTotal.WithLabelValues("success").Inc()
	s.store(ctx, fb)
	publishRunEvent(ctx, s.events, messaging.EventFeedbackGenerated, run)
	logger.Info(ctx, "feedback generated", "persona_run_id", run.ID, "overall_score", fb.OverallScore)
	return generateResult{feedback: fb, created: true}, nil
}

func (s *FeedbackService) loadRun(ctx context.Context, userID, runID string) (*entity.PersonaRun, error) {
	run, err := s.repos.PersonaRuns.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil || run.UserID != userID {
		return nil, apperrors.ErrPersonaRunNotFound
	}
	return run, nil
}

func (s *FeedbackService) cached(ctx context.Context, conversationID string) *entity.Feedback {
	if s.cache == nil {
		return nil
	}
	data, err := s.cache.Get(ctx, service.FeedbackKey(conversationID))
	if err != nil {
		if !errors.Is(err, service.ErrCacheMiss) {
			logger.Warn(ctx, "feedback cache read failed", "error", err.Error())
		}
		return nil
	}
	var fb entity.Feedback
	if err := json.Unmarshal(data, &fb); err != nil {
		return nil
	}
	return &fb
}

// store 反馈不可变，SetNX 保证只写入一次
func (s *FeedbackService) store(ctx context.Context, fb *entity.Feedback) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.SetNX(ctx, service.FeedbackKey(fb.ConversationID), fb, service.FeedbackCacheTTL); err != nil {
		logger.Warn(ctx, "feedback cache write failed", "error", err.Error())
	}
}

func buildFeedbackInput(run *entity.PersonaRun, scenario entity.ScenarioSnapshot, messages []*entity.ChatMessage, opts FeedbackOptions) *wfmodel.FeedbackGenerateInput {
	lines := make([]wfmodel.TranscriptLine, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, wfmodel.TranscriptLine{Sender: string(m.Sender), Text: m.Message})
	}
	return &wfmodel.FeedbackGenerateInput{
		PersonaName:   run.PersonaName,
		ScenarioTitle: scenario.Title,
		Objectives:    scenario.Objectives,
		Difficulty:    run.Difficulty,
		Transcript:    lines,
		Provider:      opts.Provider,
		Model:         opts.Model,
	}
}

// withTimeStatistics 用时统计以消息时间为准，不采用模型输出
func withTimeStatistics(d entity.DetailedFeedback, run *entity.PersonaRun, messages []*entity.ChatMessage) entity.DetailedFeedback {
	if len(messages) == 0 {
		return d
	}
	first := messages[0].CreatedAt
	last := messages[len(messages)-1].CreatedAt

	var (
		total   time.Duration
		replies int
	)
	for i := 1; i < len(messages); i++ {
		if messages[i].Sender == entity.SenderUser && messages[i-1].Sender == entity.SenderAI {
			total += messages[i].CreatedAt.Sub(messages[i-1].CreatedAt)
			replies++
		}
	}
	stats := &entity.TimeStatistics{
		TotalSeconds: int(last.Sub(first).Seconds()),
		TurnCount:    run.TurnCount,
	}
	if replies > 0 {
		stats.AverageResponseSeconds = total.Seconds() / float64(replies)
	}
	d.TimeStatistics = stats
	return d
}
