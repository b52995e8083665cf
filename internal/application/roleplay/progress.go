package roleplay

import (
	"context"
	"fmt"
	"time"

	"roleplay-coach-api/internal/domain/entity"
	"roleplay-coach-api/internal/domain/repository"
	"roleplay-coach-api/internal/infrastructure/messaging"
	"roleplay-coach-api/pkg/logger"
)

// ScenarioProgress 在角色会话结束后推进场景会话状态
type ScenarioProgress struct {
	scenarioRuns repository.ScenarioRunRepository
	personaRuns  repository.PersonaRunRepository
	now          func() time.Time
}

func NewScenarioProgress(scenarioRuns repository.ScenarioRunRepository, personaRuns repository.PersonaRunRepository) *ScenarioProgress {
	return &ScenarioProgress{
		scenarioRuns: scenarioRuns,
		personaRuns:  personaRuns,
		now:          time.Now,
	}
}

// Advance 当推荐顺序中每个角色都有已结束的会话时，将场景会话标记为完成。
// 返回场景会话是否处于完成状态。
func (p *ScenarioProgress) Advance(ctx context.Context, scenarioRunID string) (bool, error) {
	sr, err := p.scenarioRuns.GetByID(ctx, scenarioRunID)
	if err != nil {
		return false, err
	}
	if sr == nil {
		logger.Warn(ctx, "scenario run not found for progress", "scenario_run_id", scenarioRunID)
		return false, nil
	}
	if sr.Status == entity.ScenarioRunStatusCompleted {
		return true, nil
	}

	runs, err := p.personaRuns.ListByScenarioRun(ctx, scenarioRunID)
	if err != nil {
		return false, err
	}
	if !allPersonasCompleted(sr.Scenario.Data().PersonaIDs, runs) {
		return false, nil
	}

	if err := p.scenarioRuns.MarkCompleted(ctx, scenarioRunID, p.now().UTC()); err != nil {
		return false, err
	}
	logger.Info(ctx, "scenario run completed", "scenario_run_id", scenarioRunID, "persona_runs", len(runs))
	return true, nil
}

// HandleMessage 消费 persona_run_completed 事件，非场景会话直接确认
func (p *ScenarioProgress) HandleMessage(ctx context.Context, msg *messaging.Message) error {
	var evt messaging.ConversationEvent
	if err := msg.UnmarshalPayload(&evt); err != nil {
		return fmt.Errorf("decode conversation event: %w", err)
	}
	if evt.ScenarioRunID == "" {
		return nil
	}
	ctx = logger.WithContext(ctx, logger.ScenarioRunIDKey, evt.ScenarioRunID)
	_, err := p.Advance(ctx, evt.ScenarioRunID)
	return err
}

func allPersonasCompleted(personaIDs []string, runs []*entity.PersonaRun) bool {
	if len(personaIDs) == 0 {
		return false
	}
	done := make(map[string]bool, len(runs))
	for _, r := range runs {
		if r.IsCompleted() {
			done[r.PersonaID] = true
		}
	}
	for _, id := range personaIDs {
		if !done[id] {
			return false
		}
	}
	return true
}
