package conversation

import "context"

// Backend 会话后端的逻辑操作；不存在的资源返回包裹 ErrNotFound 的错误
type Backend interface {
	CreatePersonaRun(ctx context.Context, req CreatePersonaRunRequest) (*PersonaRun, error)
	GetPersonaRun(ctx context.Context, id string) (*PersonaRun, error)
	GetScenarioRun(ctx context.Context, id string) (*ScenarioRun, error)
	// FindPersonaRun 查找场景会话中指定角色的会话
	FindPersonaRun(ctx context.Context, scenarioRunID, personaID string) (*PersonaRun, error)
	ListMessages(ctx context.Context, personaRunID string) ([]ChatMessage, error)
	SendMessage(ctx context.Context, personaRunID, text string) (*Exchange, error)
	CompleteRun(ctx context.Context, personaRunID string) (*PersonaRun, error)

	GetFeedback(ctx context.Context, conversationID string) (*Feedback, error)
	GenerateFeedback(ctx context.Context, conversationID string) (*Feedback, error)

	CloseConversation(ctx context.Context, conversationID string) error
	ListActiveConversations(ctx context.Context) ([]ConversationSummary, error)
}
