package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"roleplay-coach-api/internal/domain/entity"
	"roleplay-coach-api/internal/domain/service"
	"roleplay-coach-api/pkg/logger"
)

// runCacheTTL 会话详情在写操作后失效，TTL 只兜底
const runCacheTTL = 5 * time.Minute

// EnsureRunRequest RunID 非空时直接获取已有会话
type EnsureRunRequest struct {
	RunID         string
	PersonaID     string
	ScenarioID    string
	ScenarioRunID string
	Mode          entity.ConversationMode
	Difficulty    int
}

// Validate 校验创建参数
func (r EnsureRunRequest) Validate() error {
	if r.PersonaID == "" {
		return &ValidationError{Field: "persona_id", Reason: "is required"}
	}
	if !r.Mode.IsValid() {
		return &ValidationError{Field: "mode", Reason: fmt.Sprintf("unsupported mode %q", r.Mode)}
	}
	if r.Difficulty < entity.MinDifficulty || r.Difficulty > entity.MaxDifficulty {
		return &ValidationError{
			Field:  "difficulty",
			Reason: fmt.Sprintf("must be between %d and %d", entity.MinDifficulty, entity.MaxDifficulty),
		}
	}
	return nil
}

// RunManager 创建或恢复角色会话
type RunManager struct {
	backend Backend
	cache   service.ResultCache
}

func NewRunManager(backend Backend, cache service.ResultCache) *RunManager {
	return &RunManager{backend: backend, cache: cache}
}

// EnsureRun 不做"先查后建"，调用方需先用 FindRun 检查
func (m *RunManager) EnsureRun(ctx context.Context, req EnsureRunRequest) (*PersonaRun, error) {
	if req.RunID != "" {
		return m.GetRun(ctx, req.RunID)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	run, err := m.backend.CreatePersonaRun(ctx, CreatePersonaRunRequest{
		PersonaID:     req.PersonaID,
		ScenarioID:    req.ScenarioID,
		ScenarioRunID: req.ScenarioRunID,
		Mode:          req.Mode,
		Difficulty:    req.Difficulty,
	})
	if err != nil {
		return nil, fmt.Errorf("create persona run: %w", err)
	}

	m.invalidate(ctx, service.ActiveConversationsKey, service.PersonaRunKey(run.ID))
	logger.Info(ctx, "persona run created",
		"run_id", run.ID,
		"persona_id", run.PersonaID,
		"scenario_run_id", run.ScenarioRunID,
	)
	return run, nil
}

// GetRun 优先读缓存
func (m *RunManager) GetRun(ctx context.Context, runID string) (*PersonaRun, error) {
	if run, ok := getJSON[PersonaRun](ctx, m.cache, service.PersonaRunKey(runID)); ok {
		return run, nil
	}
	run, err := m.backend.GetPersonaRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if m.cache != nil {
		if err := m.cache.Set(ctx, service.PersonaRunKey(runID), run, runCacheTTL); err != nil {
			logger.Warn(ctx, "cache persona run failed", "run_id", runID, "error", err)
		}
	}
	return run, nil
}

// FindRun 查找场景会话中指定角色的已有会话，不存在返回 nil, nil
func (m *RunManager) FindRun(ctx context.Context, scenarioRunID, personaID string) (*PersonaRun, error) {
	run, err := m.backend.FindPersonaRun(ctx, scenarioRunID, personaID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find persona run: %w", err)
	}
	return run, nil
}

// SendMessage 发送一轮消息，会话状态可能随之改变
func (m *RunManager) SendMessage(ctx context.Context, runID, text string) (*Exchange, error) {
	if text == "" {
		return nil, &ValidationError{Field: "message", Reason: "is empty"}
	}
	ex, err := m.backend.SendMessage(ctx, runID, text)
	if err != nil {
		return nil, err
	}
	m.invalidate(ctx, service.PersonaRunKey(runID), service.ActiveConversationsKey)
	return ex, nil
}

// Complete 主动结束会话
func (m *RunManager) Complete(ctx context.Context, runID string) (*PersonaRun, error) {
	run, err := m.backend.CompleteRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	m.invalidate(ctx, service.PersonaRunKey(runID), service.ActiveConversationsKey)
	return run, nil
}

// Close 关闭会话并使列表缓存失效
func (m *RunManager) Close(ctx context.Context, runID string) error {
	if err := m.backend.CloseConversation(ctx, runID); err != nil {
		return err
	}
	m.invalidate(ctx, service.PersonaRunKey(runID), service.ActiveConversationsKey)
	return nil
}

// ListActive 活跃会话列表，缓存直到下一次写操作
func (m *RunManager) ListActive(ctx context.Context) ([]ConversationSummary, error) {
	if list, ok := getJSON[[]ConversationSummary](ctx, m.cache, service.ActiveConversationsKey); ok {
		return *list, nil
	}
	return m.RefreshActive(ctx)
}

// RefreshActive 跳过缓存直接拉取并回填
func (m *RunManager) RefreshActive(ctx context.Context) ([]ConversationSummary, error) {
	list, err := m.backend.ListActiveConversations(ctx)
	if err != nil {
		return nil, err
	}
	if m.cache != nil {
		if err := m.cache.Set(ctx, service.ActiveConversationsKey, list, runCacheTTL); err != nil {
			logger.Warn(ctx, "cache active conversations failed", "error", err)
		}
	}
	return list, nil
}

func (m *RunManager) invalidate(ctx context.Context, keys ...string) {
	if m.cache == nil {
		return
	}
	if err := m.cache.Invalidate(ctx, keys...); err != nil {
		logger.Warn(ctx, "cache invalidate failed", "keys", keys, "error", err)
	}
}
