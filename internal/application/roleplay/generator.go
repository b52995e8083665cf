// Package roleplay 实现角色会话、消息回复与反馈生成的服务端用例
package roleplay

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	workflowchain "roleplay-coach-api/internal/workflow/chain"
	wfmodel "roleplay-coach-api/internal/workflow/model"
	workflowport "roleplay-coach-api/internal/workflow/port"
)

// ReplyGenerator 生成角色回复
type ReplyGenerator interface {
	Generate(ctx context.Context, in *wfmodel.PersonaReplyInput) (*wfmodel.PersonaReplyOutput, error)
}

// ReportGenerator 生成反馈报告
type ReportGenerator interface {
	Generate(ctx context.Context, in *wfmodel.FeedbackGenerateInput) (*wfmodel.FeedbackGenerateOutput, error)
}

type PersonaReplyGenerator struct {
	chain *workflowchain.PersonaReplyChain
}

func NewPersonaReplyGenerator(factory workflowport.ChatModelFactory) *PersonaReplyGenerator {
	return &PersonaReplyGenerator{chain: workflowchain.NewPersonaReplyChain(factory)}
}

func (g *PersonaReplyGenerator) Generate(ctx context.Context, in *wfmodel.PersonaReplyInput) (*wfmodel.PersonaReplyOutput, error) {
	if g == nil || g.chain == nil {
		return nil, fmt.Errorf("persona reply workflow not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}

	outMsg, err := g.chain.Invoke(ctx, in)
	if err != nil {
		return nil, err
	}

	reply, err := ParsePersonaReply(outMsg.Content)
	if err != nil {
		return nil, err
	}
	return &wfmodel.PersonaReplyOutput{
		Reply: *reply,
		Meta:  usageMeta(outMsg, in.Provider, in.Model, in.Temperature),
	}, nil
}

type FeedbackReportGenerator struct {
	chain *workflowchain.FeedbackChain
}

func NewFeedbackReportGenerator(factory workflowport.ChatModelFactory) *FeedbackReportGenerator {
	return &FeedbackReportGenerator{chain: workflowchain.NewFeedbackChain(factory)}
}

func (g *FeedbackReportGenerator) Generate(ctx context.Context, in *wfmodel.FeedbackGenerateInput) (*wfmodel.FeedbackGenerateOutput, error) {
	if g == nil || g.chain == nil {
		return nil, fmt.Errorf("feedback workflow not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}

	outMsg, err := g.chain.Invoke(ctx, in)
	if err != nil {
		return nil, err
	}

	report, jsonText, err := ParseFeedbackReport(outMsg.Content)
	if err != nil {
		return nil, err
	}
	return &wfmodel.FeedbackGenerateOutput{
		Report:  *report,
		RawJSON: jsonText,
		Meta:    usageMeta(outMsg, in.Provider, in.Model, in.Temperature),
	}, nil
}

func usageMeta(outMsg *schema.Message, provider, model string, temperature *float32) wfmodel.LLMUsageMeta {
	meta := wfmodel.LLMUsageMeta{
		Provider:    strings.TrimSpace(provider),
		Model:       strings.TrimSpace(model),
		GeneratedAt: time.Now().UTC(),
	}
	if temperature != nil {
		meta.Temperature = float64(*temperature)
	}
	if outMsg != nil && outMsg.ResponseMeta != nil && outMsg.ResponseMeta.Usage != nil {
		meta.PromptTokens = outMsg.ResponseMeta.Usage.PromptTokens
		meta.CompletionTokens = outMsg.ResponseMeta.Usage.CompletionTokens
	}
	return meta
}
