// Package llm 提供 LLM ChatModel 的创建与缓存
package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"roleplay-coach-api/internal/config"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

// EinoFactory 按提供商名称惰性创建并缓存 Eino ChatModel
type EinoFactory struct {
	config *config.LLMConfig
	models map[string]model.BaseChatModel
	mu     sync.RWMutex
}

// NewEinoFactory 创建 Eino LLM 工厂
func NewEinoFactory(cfg *config.Config) *EinoFactory {
	return &EinoFactory{
		config: &cfg.LLM,
		models: make(map[string]model.BaseChatModel),
	}
}

// Register 注册已构造好的 ChatModel，覆盖同名配置
func (f *EinoFactory) Register(name string, m model.BaseChatModel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.models[strings.TrimSpace(name)] = m
}

// Get 获取指定名称的 ChatModel，名称为空时使用默认提供商
func (f *EinoFactory) Get(ctx context.Context, name string) (model.BaseChatModel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = f.config.DefaultProvider
	}

	f.mu.RLock()
	m, ok := f.models[name]
	f.mu.RUnlock()
	if ok {
		return m, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// 再次检查防止竞态
	if m, ok = f.models[name]; ok {
		return m, nil
	}

	providerCfg, ok := f.config.Providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %s not found in LLM config", name)
	}
	if strings.TrimSpace(providerCfg.APIKey) == "" {
		return nil, fmt.Errorf("provider %s has no api key", name)
	}

	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      providerCfg.APIKey,
		BaseURL:     providerCfg.BaseURL,
		Model:       providerCfg.Model,
		MaxTokens:   &providerCfg.MaxTokens,
		Temperature: ptrFloat32(float32(providerCfg.Temperature)),
		Timeout:     providerCfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create eino chat model for %s: %w", name, err)
	}

	f.models[name] = chatModel
	return chatModel, nil
}

// Default 返回默认 ChatModel
func (f *EinoFactory) Default(ctx context.Context) (model.BaseChatModel, error) {
	return f.Get(ctx, "")
}

// DefaultProvider 返回默认提供商名称
func (f *EinoFactory) DefaultProvider() string {
	return f.config.DefaultProvider
}

// Providers 返回已配置的提供商名称
func (f *EinoFactory) Providers() []string {
	names := make([]string, 0, len(f.config.Providers))
	for name := range f.config.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func ptrFloat32(f float32) *float32 {
	return &f
}

// HealthCheck 只校验默认提供商配置可用，不发起模型调用
func (f *EinoFactory) HealthCheck(ctx context.Context) error {
	_, err := f.Default(ctx)
	return err
}
