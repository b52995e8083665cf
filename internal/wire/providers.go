// Package wire 提供依赖注入配置
package wire

import (
	"context"
	"fmt"
	"os"

	"roleplay-coach-api/internal/application/roleplay"
	"roleplay-coach-api/internal/application/usage"
	"roleplay-coach-api/internal/config"
	"roleplay-coach-api/internal/domain/repository"
	"roleplay-coach-api/internal/infrastructure/llm"
	"roleplay-coach-api/internal/infrastructure/messaging"
	"roleplay-coach-api/internal/infrastructure/persistence/postgres"
	"roleplay-coach-api/internal/infrastructure/persistence/redis"
	"roleplay-coach-api/internal/interfaces/http/handler"
	"roleplay-coach-api/internal/interfaces/http/middleware"
	"roleplay-coach-api/internal/interfaces/http/router"
	"roleplay-coach-api/pkg/logger"
)

// DataLayer 数据层依赖容器
type DataLayer struct {
	// PostgreSQL
	PgClient        *postgres.Client
	TxManager       *postgres.TxManager
	PersonaRepo     *postgres.PersonaRepository
	ScenarioRepo    *postgres.ScenarioRepository
	ScenarioRunRepo *postgres.ScenarioRunRepository
	PersonaRunRepo  *postgres.PersonaRunRepository
	MessageRepo     *postgres.ChatMessageRepository
	FeedbackRepo    *postgres.FeedbackRepository
	LLMUsageRepo    *postgres.LLMUsageEventRepository

	// Redis
	RedisClient *redis.Client
	Cache       *redis.Cache
	RateLimiter *redis.RateLimiter

	// Messaging
	Producer *messaging.Producer
}

// PostgresOnlyDataLayer 仅包含 PostgreSQL 的数据层（用于 bootstrap）
type PostgresOnlyDataLayer struct {
	PgClient     *postgres.Client
	TxManager    *postgres.TxManager
	PersonaRepo  *postgres.PersonaRepository
	ScenarioRepo *postgres.ScenarioRepository
}

// App API 网关的根对象
type App struct {
	Router *router.Router
	// Usage 供 Eino 全局回调写入用量流水
	Usage *usage.Recorder
}

// ProgressWorker 场景进度消费者
type ProgressWorker struct {
	Consumer *messaging.Consumer
	Progress *roleplay.ScenarioProgress
}

// ProvidePostgresClient 提供 PostgreSQL 客户端
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, func(), error) {
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		client.Close()
	}
	return client, cleanup, nil
}

// ProvideRedisClient 提供 Redis 客户端
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		client.Close()
	}
	return client, cleanup, nil
}

// ProvideMessagingProducer 提供消息生产者
func ProvideMessagingProducer(redisClient *redis.Client, cfg *config.Config) *messaging.Producer {
	maxLen := cfg.Messaging.RedisStream.MaxLen
	if maxLen <= 0 {
		maxLen = 100000
	}
	return messaging.NewProducer(redisClient.Redis(), maxLen)
}

// ProvideQuotaChecker 提供日配额检查
func ProvideQuotaChecker(cfg *config.Config, usageRepo repository.LLMUsageEventRepository) *usage.QuotaChecker {
	return usage.NewQuotaChecker(usageRepo, cfg.Roleplay.DailyTokenLimit)
}

func defaultModel(cfg *config.Config) (provider, model string) {
	provider = cfg.LLM.DefaultProvider
	if p, ok := cfg.LLM.Providers[provider]; ok {
		model = p.Model
	}
	return provider, model
}

// ProvideChatService 提供会话服务
func ProvideChatService(
	cfg *config.Config,
	txMgr repository.Transactor,
	personas repository.PersonaRepository,
	scenarios repository.ScenarioRepository,
	scenarioRuns repository.ScenarioRunRepository,
	personaRuns repository.PersonaRunRepository,
	messages repository.ChatMessageRepository,
	cache roleplay.RunCache,
	events roleplay.EventPublisher,
	quota roleplay.QuotaChecker,
	reply roleplay.ReplyGenerator,
) *roleplay.ChatService {
	provider, model := defaultModel(cfg)
	return roleplay.NewChatService(
		roleplay.ChatOptions{
			DefaultMaxTurns: cfg.Roleplay.DefaultMaxTurns,
			HistoryWindow:   cfg.Roleplay.HistoryWindow,
			Provider:        provider,
			Model:           model,
		},
		txMgr,
		roleplay.ChatRepositories{
			Personas:     personas,
			Scenarios:    scenarios,
			ScenarioRuns: scenarioRuns,
			PersonaRuns:  personaRuns,
			Messages:     messages,
		},
		cache, events, quota, reply,
	)
}

// ProvideFeedbackService 提供反馈服务
func ProvideFeedbackService(
	cfg *config.Config,
	scenarioRuns repository.ScenarioRunRepository,
	personaRuns repository.PersonaRunRepository,
	messages repository.ChatMessageRepository,
	feedbacks repository.FeedbackRepository,
	cache roleplay.FeedbackCache,
	limiter roleplay.RateLimiter,
	events roleplay.EventPublisher,
	quota roleplay.QuotaChecker,
	gen roleplay.ReportGenerator,
) *roleplay.FeedbackService {
	provider, model := defaultModel(cfg)
	return roleplay.NewFeedbackService(
		roleplay.FeedbackOptions{
			RateLimit: cfg.Roleplay.FeedbackRateLimit,
			Provider:  provider,
			Model:     model,
		},
		roleplay.FeedbackRepositories{
			ScenarioRuns: scenarioRuns,
			PersonaRuns:  personaRuns,
			Messages:     messages,
			Feedbacks:    feedbacks,
		},
		cache, limiter, events, quota, gen,
	)
}

// ProvideHealthHandler 提供健康检查处理器
func ProvideHealthHandler(cfg *config.Config, pg *postgres.Client, redisClient *redis.Client, factory *llm.EinoFactory) *handler.HealthHandler {
	return handler.NewHealthHandler(cfg.App.Version, pg, redisClient, factory)
}

// ProvideAuthConfig 提供认证配置
func ProvideAuthConfig(cfg *config.Config) middleware.AuthConfig {
	return middleware.AuthConfig{
		Secret:    cfg.Security.JWT.Secret,
		Issuer:    cfg.Security.JWT.Issuer,
		SkipPaths: middleware.DefaultSkipPaths,
		Enabled:   true,
	}
}

// ProvideRouterDeps 提供路由中间件依赖
func ProvideRouterDeps(cfg *config.Config, limiter *redis.RateLimiter, producer *messaging.Producer) router.RouterDeps {
	deps := router.RouterDeps{
		Auth:        ProvideAuthConfig(cfg),
		RateLimiter: limiter,
	}
	if cfg.Messaging.RedisStream.Enabled {
		deps.Audit = producer
	}
	return deps
}

// ProvideProgressConsumer 提供会话事件消费者，处理 persona_run_completed
func ProvideProgressConsumer(ctx context.Context, cfg *config.Config, redisClient *redis.Client, progress *roleplay.ScenarioProgress) *messaging.Consumer {
	rs := cfg.Messaging.RedisStream
	consumer := messaging.NewConsumer(redisClient.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamConversationEvents,
		Group:         messaging.ConsumerGroupProgress,
		ConsumerName:  hostnameConsumerName(),
		BlockTimeout:  rs.BlockTimeout,
		ClaimInterval: rs.ClaimInterval,
		RetryLimit:    rs.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    rs.RetryBackoff.Initial,
			Max:        rs.RetryBackoff.Max,
			Multiplier: rs.RetryBackoff.Multiplier,
		},
	})
	consumer.RegisterHandler(messaging.EventPersonaRunCompleted, progress.HandleMessage)
	logger.Debug(ctx, "progress consumer configured", "stream", string(messaging.StreamConversationEvents))
	return consumer
}

func hostnameConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
