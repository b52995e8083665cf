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

// FeedbackChain 根据完整对话生成反馈报告
type FeedbackChain struct {
	factory workflowport.ChatModelFactory

	chainOnce sync.Once
	chain     compose.Runnable[*wfmodel.FeedbackGenerateInput, *schema.Message]
	chainErr  error
}

func NewFeedbackChain(factory workflowport.ChatModelFactory) *FeedbackChain {
	return &FeedbackChain{factory: factory}
}

func (c *FeedbackChain) Invoke(ctx context.Context, in *wfmodel.FeedbackGenerateInput) (*schema.Message, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if len(in.Transcript) == 0 {
		return nil, fmt.Errorf("transcript is empty")
	}

	chain, err := c.getChain()
	if err != nil {
		return nil, err
	}
	return chain.Invoke(ctx, in)
}

func (c *FeedbackChain) getChain() (compose.Runnable[*wfmodel.FeedbackGenerateInput, *schema.Message], error) {
	c.chainOnce.Do(func() {
		c.chain, c.chainErr = c.buildChain(context.Background())
	})
	return c.chain, c.chainErr
}

func (c *FeedbackChain) buildChain(ctx context.Context) (compose.Runnable[*wfmodel.FeedbackGenerateInput, *schema.Message], error) {
	type state struct {
		In       *wfmodel.FeedbackGenerateInput
		Messages []*schema.Message
	}

	chain := compose.NewChain[*wfmodel.FeedbackGenerateInput, *schema.Message]()

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, in *wfmodel.FeedbackGenerateInput) (*state, error) {
			msgs, err := formatFeedbackMessages(ctx, in)
			if err != nil {
				return nil, err
			}
			return &state{In: in, Messages: msgs}, nil
		}),
		compose.WithNodeName("feedback.template"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *state) (*schema.Message, error) {
			if st == nil || st.In == nil {
				return nil, fmt.Errorf("state is nil")
			}
			provider := strings.TrimSpace(st.In.Provider)
			ctx = llmctx.WithWorkflowProvider(ctx, llmctx.WorkflowFeedback, provider)
			chatModel, err := c.factory.Get(ctx, provider)
			if err != nil {
				return nil, err
			}
			params := modelParams{Model: st.In.Model, Temperature: st.In.Temperature, MaxTokens: st.In.MaxTokens}
			return generateJSON(ctx, chatModel, st.Messages, params, "feedback_report", feedbackJSONSchema())
		}),
		compose.WithNodeName("feedback.llm"),
	)

	return chain.Compile(ctx)
}

func formatFeedbackMessages(ctx context.Context, in *wfmodel.FeedbackGenerateInput) ([]*schema.Message, error) {
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	tpl, err := defaultPromptRegistry.ChatTemplate(workflowprompt.PromptFeedbackV1)
	if err != nil {
		return nil, err
	}
	vars := map[string]any{
		"scenario_title":   orDefault(in.ScenarioTitle, "自由对话"),
		"persona_name":     strings.TrimSpace(in.PersonaName),
		"difficulty":       in.Difficulty,
		"difficulty_hint":  wfnode.DifficultyHint(in.Difficulty),
		"objectives_block": wfnode.BuildListBlock(in.Objectives, "- 自由交流"),
		"transcript_block": wfnode.BuildTranscriptBlock(in.Transcript, "用户", strings.TrimSpace(in.PersonaName)),
	}
	return tpl.Format(ctx, vars)
}

func feedbackJSONSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"overall_score", "scores", "detailed_feedback"},
		"properties": map[string]any{
			"overall_score": map[string]any{"type": "integer"},
			"scores": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []any{"category", "name", "score", "feedback"},
					"properties": map[string]any{
						"category": map[string]any{"type": "string"},
						"name":     map[string]any{"type": "string"},
						"icon":     map[string]any{"type": "string"},
						"score":    map[string]any{"type": "integer"},
						"feedback": map[string]any{"type": "string"},
					},
				},
			},
			"detailed_feedback": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"strengths":           stringArraySchema(),
					"improvements":        stringArraySchema(),
					"next_steps":          stringArraySchema(),
					"behavior_guides":     stringArraySchema(),
					"conversation_guides": stringArraySchema(),
					"development_plan": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"short_term":  stringArraySchema(),
							"medium_term": stringArraySchema(),
							"long_term":   stringArraySchema(),
						},
					},
					"sequence_analysis": map[string]any{"type": "string"},
					"strategy_analysis": map[string]any{"type": "string"},
				},
			},
		},
	}
}
