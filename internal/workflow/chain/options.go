package chain

import (
	"context"
	"fmt"
	"strings"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	wfnode "roleplay-coach-api/internal/workflow/node"
	"roleplay-coach-api/pkg/logger"
)

type modelParams struct {
	Model       string
	Temperature *float32
	MaxTokens   *int
}

func buildModelOptions(p modelParams, schemaName string, jsonSchema map[string]any) []model.Option {
	opts := make([]model.Option, 0, 4)
	if p.Temperature != nil {
		opts = append(opts, model.WithTemperature(*p.Temperature))
	}
	if p.MaxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*p.MaxTokens))
	}
	if m := strings.TrimSpace(p.Model); m != "" {
		opts = append(opts, model.WithModel(m))
	}
	if jsonSchema != nil {
		opts = append(opts, openaiopts.WithExtraFields(map[string]any{
			"response_format": map[string]any{
				"type": "json_schema",
				"json_schema": map[string]any{
					"name":   schemaName,
					"strict": false,
					"schema": jsonSchema,
				},
			},
		}))
	}
	return opts
}

// generateJSON 优先使用 json_schema 约束输出，服务商不支持时退回纯提示词
func generateJSON(ctx context.Context, chatModel model.BaseChatModel, msgs []*schema.Message, p modelParams, schemaName string, jsonSchema map[string]any) (*schema.Message, error) {
	outMsg, err := chatModel.Generate(ctx, msgs, buildModelOptions(p, schemaName, jsonSchema)...)
	if err != nil && wfnode.IsResponseFormatUnsupportedError(err) {
		logger.Warn(ctx, "llm json_schema not supported, fallback to prompt-only",
			"schema", schemaName,
			"model", strings.TrimSpace(p.Model),
			"error", err.Error(),
		)
		outMsg, err = chatModel.Generate(ctx, msgs, buildModelOptions(p, schemaName, nil)...)
	}
	if err != nil {
		return nil, err
	}
	if outMsg == nil {
		return nil, fmt.Errorf("empty llm response")
	}
	return outMsg, nil
}

func stringArraySchema() map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
}
