package service

import (
	"context"
	"strings"
)

type llmCtxKey string

const (
	llmCtxKeyWorkflow llmCtxKey = "llm_workflow"
	llmCtxKeyProvider llmCtxKey = "llm_provider"
	llmCtxKeyUserID   llmCtxKey = "llm_user_id"
)

// LLM 工作流名称
const (
	WorkflowPersonaReply = "persona_reply"
	WorkflowFeedback     = "feedback"
)

func WithWorkflow(ctx context.Context, workflow string) context.Context {
	if ctx == nil {
		return nil
	}
	w := strings.TrimSpace(workflow)
	if w == "" {
		return ctx
	}
	return context.WithValue(ctx, llmCtxKeyWorkflow, w)
}

func WithProvider(ctx context.Context, provider string) context.Context {
	if ctx == nil {
		return nil
	}
	p := strings.TrimSpace(provider)
	if p == "" {
		return ctx
	}
	return context.WithValue(ctx, llmCtxKeyProvider, p)
}

// WithUserID 标记本次调用归属的用户，供用量流水使用
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		return nil
	}
	u := strings.TrimSpace(userID)
	if u == "" {
		return ctx
	}
	return context.WithValue(ctx, llmCtxKeyUserID, u)
}

func WithWorkflowProvider(ctx context.Context, workflow, provider string) context.Context {
	return WithProvider(WithWorkflow(ctx, workflow), provider)
}

func WorkflowFromContext(ctx context.Context) string {
	return stringFromContext(ctx, llmCtxKeyWorkflow, "unknown")
}

func ProviderFromContext(ctx context.Context) string {
	return stringFromContext(ctx, llmCtxKeyProvider, "unknown")
}

func UserIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, llmCtxKeyUserID, "")
}

func stringFromContext(ctx context.Context, key llmCtxKey, fallback string) string {
	if ctx == nil {
		return fallback
	}
	s, ok := ctx.Value(key).(string)
	if !ok || strings.TrimSpace(s) == "" {
		return fallback
	}
	return strings.TrimSpace(s)
}
