//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"roleplay-coach-api/internal/application/roleplay"
	"roleplay-coach-api/internal/application/usage"
	"roleplay-coach-api/internal/config"
	"roleplay-coach-api/internal/domain/repository"
	"roleplay-coach-api/internal/infrastructure/llm"
	"roleplay-coach-api/internal/infrastructure/messaging"
	"roleplay-coach-api/internal/infrastructure/persistence/postgres"
	"roleplay-coach-api/internal/infrastructure/persistence/redis"
	"roleplay-coach-api/internal/interfaces/http/handler"
	"roleplay-coach-api/internal/interfaces/http/router"
	workflowport "roleplay-coach-api/internal/workflow/port"
)

// InitializeDataLayer 初始化数据层
func InitializeDataLayer(ctx context.Context, cfg *config.Config) (*DataLayer, func(), error) {
	wire.Build(
		RepoSet,
		RedisSet,
		MessagingSet,
		wire.Struct(new(DataLayer), "*"),
	)
	return nil, nil, nil
}

// InitializePostgresOnly 仅初始化 PostgreSQL 数据层（用于 bootstrap）
func InitializePostgresOnly(ctx context.Context, cfg *config.Config) (*PostgresOnlyDataLayer, func(), error) {
	wire.Build(
		PostgresSet,
		wire.Struct(new(PostgresOnlyDataLayer), "*"),
	)
	return nil, nil, nil
}

// InitializeApp 初始化整个应用（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	wire.Build(
		RepoSet,
		RedisSet,
		MessagingSet,
		UsageSet,
		RoleplaySet,
		RouterSet,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}

// InitializeProgressWorker 初始化场景进度消费者（用于 job-worker）
func InitializeProgressWorker(ctx context.Context, cfg *config.Config) (*ProgressWorker, func(), error) {
	wire.Build(
		RepoSet,
		RedisSet,
		roleplay.NewScenarioProgress,
		ProvideProgressConsumer,
		wire.Struct(new(ProgressWorker), "*"),
	)
	return nil, nil, nil
}

// PostgresSet PostgreSQL 提供者集合
var PostgresSet = wire.NewSet(
	ProvidePostgresClient,
	postgres.NewTxManager,
	postgres.NewPersonaRepository,
	postgres.NewScenarioRepository,
	postgres.NewScenarioRunRepository,
	postgres.NewPersonaRunRepository,
	postgres.NewChatMessageRepository,
	postgres.NewFeedbackRepository,
	postgres.NewLLMUsageEventRepository,
)

// RedisSet Redis 提供者集合
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	redis.NewCache,
	redis.NewRateLimiter,
	wire.Bind(new(roleplay.RunCache), new(*redis.Cache)),
	wire.Bind(new(roleplay.FeedbackCache), new(*redis.Cache)),
	wire.Bind(new(roleplay.RateLimiter), new(*redis.RateLimiter)),
)

// MessagingSet 消息队列提供者集合
var MessagingSet = wire.NewSet(
	ProvideMessagingProducer,
	wire.Bind(new(roleplay.EventPublisher), new(*messaging.Producer)),
)

// UsageSet LLM 用量与配额
var UsageSet = wire.NewSet(
	ProvideQuotaChecker,
	usage.NewRecorder,
	wire.Bind(new(roleplay.QuotaChecker), new(*usage.QuotaChecker)),
)

// RoleplaySet 会话与反馈用例
var RoleplaySet = wire.NewSet(
	llm.NewEinoFactory,
	wire.Bind(new(workflowport.ChatModelFactory), new(*llm.EinoFactory)),
	roleplay.NewPersonaReplyGenerator,
	roleplay.NewFeedbackReportGenerator,
	wire.Bind(new(roleplay.ReplyGenerator), new(*roleplay.PersonaReplyGenerator)),
	wire.Bind(new(roleplay.ReportGenerator), new(*roleplay.FeedbackReportGenerator)),
	ProvideChatService,
	ProvideFeedbackService,
	wire.Bind(new(handler.ChatService), new(*roleplay.ChatService)),
	wire.Bind(new(handler.FeedbackService), new(*roleplay.FeedbackService)),
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	ProvideHealthHandler,
	handler.NewCatalogHandler,
	handler.NewPersonaRunHandler,
	handler.NewScenarioRunHandler,
	handler.NewConversationHandler,
	wire.Struct(new(router.RouterHandlers), "*"),
	ProvideRouterDeps,
	router.NewWithDeps,
)

// RepoSet 整合了具体实现与接口绑定的集合
var RepoSet = wire.NewSet(
	PostgresSet,
	// 接口绑定
	wire.Bind(new(repository.Transactor), new(*postgres.TxManager)),
	wire.Bind(new(repository.PersonaRepository), new(*postgres.PersonaRepository)),
	wire.Bind(new(repository.ScenarioRepository), new(*postgres.ScenarioRepository)),
	wire.Bind(new(repository.ScenarioRunRepository), new(*postgres.ScenarioRunRepository)),
	wire.Bind(new(repository.PersonaRunRepository), new(*postgres.PersonaRunRepository)),
	wire.Bind(new(repository.ChatMessageRepository), new(*postgres.ChatMessageRepository)),
	wire.Bind(new(repository.FeedbackRepository), new(*postgres.FeedbackRepository)),
	wire.Bind(new(repository.LLMUsageEventRepository), new(*postgres.LLMUsageEventRepository)),
)
