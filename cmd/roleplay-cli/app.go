package main

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"

	"roleplay-coach-api/internal/application/conversation"
	"roleplay-coach-api/internal/config"
	"roleplay-coach-api/internal/interfaces/http/client"
	"roleplay-coach-api/pkg/logger"
)

const memoryCacheSize = 256

type globalOptions struct {
	configDir string
	baseURL   string
	token     string
}

// cliApp 单次命令执行所需的依赖
type cliApp struct {
	cfg     config.ClientConfig
	backend conversation.Backend
	cache   *conversation.MemoryCache
	runs    *conversation.RunManager
	loader  *conversation.Loader
}

func newCLIApp(opts *globalOptions) (*cliApp, error) {
	_ = godotenv.Load()

	var clientCfg config.ClientConfig
	logLevel, logFormat := "warn", "text"
	if cfg, err := config.LoadFrom(opts.configDir); err == nil {
		clientCfg = cfg.Client
		if cfg.Observability.Logging.Format != "" {
			logFormat = cfg.Observability.Logging.Format
		}
	} else if opts.baseURL == "" {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.Init(logLevel, logFormat)

	if opts.baseURL != "" {
		clientCfg.BaseURL = opts.baseURL
	}
	if opts.token != "" {
		clientCfg.Token = opts.token
	}
	if clientCfg.BaseURL == "" {
		return nil, fmt.Errorf("api url is not configured, set client.base_url or --api-url")
	}

	backend := client.New(client.Config{
		BaseURL: clientCfg.BaseURL,
		Token:   clientCfg.Token,
		Timeout: clientCfg.Timeout,
	})
	cache := conversation.NewMemoryCache(memoryCacheSize)
	runs := conversation.NewRunManager(backend, cache)

	return &cliApp{
		cfg:     clientCfg,
		backend: backend,
		cache:   cache,
		runs:    runs,
		loader:  conversation.NewLoader(backend, runs),
	}, nil
}

// load 加载会话视图，失败时返回带恢复提示的错误
func (a *cliApp) load(ctx context.Context, runID string) (*conversation.LoadResult, error) {
	screen := a.loader.Open(ctx, conversation.LoadRequest{RunID: runID})
	if err := screen.Wait(ctx); err != nil {
		if f := screen.Failure(); f != nil {
			return nil, fmt.Errorf("%s (%s): %w", f.Message, f.Action, err)
		}
		return nil, err
	}
	return screen.Result(), nil
}

func (a *cliApp) coordinator(res *conversation.LoadResult) *conversation.FeedbackCoordinator {
	return conversation.NewFeedbackCoordinator(a.backend, a.cache, a.runs, res.Run, res.ScenarioRun)
}

func (a *cliApp) pollInterval() time.Duration {
	if a.cfg.PollInterval > 0 {
		return a.cfg.PollInterval
	}
	return conversation.DefaultPollInterval
}
