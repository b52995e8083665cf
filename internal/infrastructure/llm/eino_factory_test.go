package llm

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roleplay-coach-api/internal/config"
)

type stubModel struct{}

func (stubModel) Generate(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
	return schema.AssistantMessage("ok", nil), nil
}

func (stubModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, nil
}

func newFactory() *EinoFactory {
	return NewEinoFactory(&config.Config{LLM: config.LLMConfig{
		DefaultProvider: "openai",
		Providers: map[string]config.ProviderConfig{
			"openai":   {Model: "gpt-4o-mini"},
			"deepseek": {APIKey: "", Model: "deepseek-chat"},
		},
	}})
}

func TestEinoFactory_UnknownProvider(t *testing.T) {
	_, err := newFactory().Get(context.Background(), "missing")
	require.Error(t, err)
}

func TestEinoFactory_MissingAPIKey(t *testing.T) {
	_, err := newFactory().Get(context.Background(), "deepseek")
	require.Error(t, err)
}

func TestEinoFactory_RegisteredModelWinsAndDefaultResolves(t *testing.T) {
	f := newFactory()
	f.Register("openai", stubModel{})

	m, err := f.Default(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stubModel{}, m)

	assert.Equal(t, []string{"deepseek", "openai"}, f.Providers())
	assert.Equal(t, "openai", f.DefaultProvider())
}

func TestEinoFactory_HealthCheck(t *testing.T) {
	f := newFactory()
	f.Register("openai", stubModel{})
	assert.NoError(t, f.HealthCheck(context.Background()))

	broken := NewEinoFactory(&config.Config{LLM: config.LLMConfig{DefaultProvider: "deepseek"}})
	assert.Error(t, broken.HealthCheck(context.Background()))
}
