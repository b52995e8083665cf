package roleplay

import (
	"context"

	"roleplay-coach-api/internal/domain/entity"
	"roleplay-coach-api/internal/infrastructure/messaging"
	"roleplay-coach-api/pkg/logger"
)

// publishRunEvent 事件发布失败不影响主流程
func publishRunEvent(ctx context.Context, pub EventPublisher, eventType string, run *entity.PersonaRun) {
	if pub == nil || run == nil {
		return
	}
	evt := &messaging.ConversationEvent{
		Type:         eventType,
		UserID:       run.UserID,
		PersonaRunID: run.ID,
		PersonaID:    run.PersonaID,
	}
	if run.ScenarioRunID != nil {
		evt.ScenarioRunID = *run.ScenarioRunID
	}
	if _, err := pub.PublishConversationEvent(ctx, evt); err != nil {
		logger.Warn(ctx, "failed to publish conversation event",
			"type", eventType,
			"persona_run_id", run.ID,
			"error", err.Error(),
		)
	}
}
