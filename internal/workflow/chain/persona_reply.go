package chain

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	llmctx "roleplay-coach-api/internal/domain/service"
	wfmodel "roleplay-coach-api/internal/workflow/model"
	wfnode "roleplay-coach-api/internal/workflow/node"
	workflowport "roleplay-coach-api/internal/workflow/port"
	workflowprompt "roleplay-coach-api/internal/workflow/prompt"
)

// PersonaReplyChain 生成角色的下一句回复
type PersonaReplyChain struct {
	factory workflowport.ChatModelFactory

	chainOnce sync.Once
	chain     compose.Runnable[*wfmodel.PersonaReplyInput, *schema.Message]
	chainErr  error
}

func NewPersonaReplyChain(factory workflowport.ChatModelFactory) *PersonaReplyChain {
	return &PersonaReplyChain{factory: factory}
}

func (c *PersonaReplyChain) Invoke(ctx context.Context, in *wfmodel.PersonaReplyInput) (*schema.Message, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.PersonaName) == "" {
		return nil, fmt.Errorf("persona name is required")
	}
	if strings.TrimSpace(in.UserMessage) == "" {
		return nil, fmt.Errorf("user message is required")
	}

	chain, err := c.getChain()
	if err != nil {
		return nil, err
	}
	return chain.Invoke(ctx, in)
}

type personaReplyState struct {
	In       *wfmodel.PersonaReplyInput
	Messages []*schema.Message
	OutMsg   *schema.Message
}

func (c *PersonaReplyChain) getChain() (compose.Runnable[*wfmodel.PersonaReplyInput, *schema.Message], error) {
	c.chainOnce.Do(func() {
		c.chain, c.chainErr = c.buildChain(context.Background())
	})
	return c.chain, c.chainErr
}

func (c *PersonaReplyChain) buildChain(ctx context.Context) (compose.Runnable[*wfmodel.PersonaReplyInput, *schema.Message], error) {
	chain := compose.NewChain[*wfmodel.PersonaReplyInput, *schema.Message]()

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, in *wfmodel.PersonaReplyInput) (*personaReplyState, error) {
			msgs, err := formatPersonaReplyMessages(ctx, in)
			if err != nil {
				return nil, err
			}
			return &personaReplyState{In: in, Messages: msgs}, nil
		}),
		compose.WithNodeName("persona_reply.template"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *personaReplyState) (*schema.Message, error) {
			if st == nil || st.In == nil {
				return nil, fmt.Errorf("state is nil")
			}
			provider := strings.TrimSpace(st.In.Provider)
			ctx = llmctx.WithWorkflowProvider(ctx, llmctx.WorkflowPersonaReply, provider)
			chatModel, err := c.factory.Get(ctx, provider)
			if err != nil {
				return nil, err
			}
			params := modelParams{Model: st.In.Model, Temperature: st.In.Temperature, MaxTokens: st.In.MaxTokens}
			st.OutMsg, err = generateJSON(ctx, chatModel, st.Messages, params, "persona_reply", personaReplyJSONSchema())
			if err != nil {
				return nil, err
			}
			return st.OutMsg, nil
		}),
		compose.WithNodeName("persona_reply.llm"),
	)

	return chain.Compile(ctx)
}

var defaultPromptRegistry = workflowprompt.NewRegistry()

func formatPersonaReplyMessages(ctx context.Context, in *wfmodel.PersonaReplyInput) ([]*schema.Message, error) {
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	tpl, err := defaultPromptRegistry.ChatTemplate(workflowprompt.PromptPersonaReplyV1)
	if err != nil {
		return nil, err
	}
	vars := map[string]any{
		"persona_name":         strings.TrimSpace(in.PersonaName),
		"gender":               orDefault(in.Gender, "未知"),
		"mbti":                 orDefault(in.MBTI, "未知"),
		"traits_block":         wfnode.BuildListBlock(in.Traits, "- 无特别说明"),
		"speaking_style":       orDefault(in.SpeakingStyle, "自然"),
		"background":           orDefault(in.Background, "无"),
		"scenario_title":       orDefault(in.ScenarioTitle, "自由对话"),
		"scenario_description": strings.TrimSpace(in.ScenarioDescription),
		"objectives_block":     wfnode.BuildListBlock(in.Objectives, "- 自由交流"),
		"difficulty_hint":      wfnode.DifficultyHint(in.Difficulty),
		"history_block":        wfnode.BuildTranscriptBlock(in.History, "用户", strings.TrimSpace(in.PersonaName)),
		"user_message":         strings.TrimSpace(in.UserMessage),
	}
	return tpl.Format(ctx, vars)
}

func personaReplyJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"message", "emotion"},
		"properties": map[string]any{
			"message":        map[string]any{"type": "string"},
			"emotion":        map[string]any{"type": "string"},
			"emotion_reason": map[string]any{"type": "string"},
		},
	}
}

func orDefault(s, fallback string) string {
	if v := strings.TrimSpace(s); v != "" {
		return v
	}
	return fallback
}
