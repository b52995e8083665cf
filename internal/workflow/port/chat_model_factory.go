package port

import (
	"context"

	"github.com/cloudwego/eino/components/model"
)

// ChatModelFactory 工作流层对 LLM ChatModel 的最小依赖，由 llm.EinoFactory 实现
type ChatModelFactory interface {
	Get(ctx context.Context, name string) (model.BaseChatModel, error)
}
