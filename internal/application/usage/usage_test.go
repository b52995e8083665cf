package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roleplay-coach-api/internal/domain/entity"
	"roleplay-coach-api/internal/domain/service"
)

type memUsageRepo struct {
	events []*entity.LLMUsageEvent
	err    error
}

func (r *memUsageRepo) Create(_ context.Context, e *entity.LLMUsageEvent) error {
	if r.err != nil {
		return r.err
	}
	e.CreatedAt = time.Now().UTC()
	r.events = append(r.events, e)
	return nil
}

func (r *memUsageRepo) GetTokenUsage(_ context.Context, userID string, start, end time.Time) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	var total int64
	for _, e := range r.events {
		if e.UserID == userID && !e.CreatedAt.Before(start) && e.CreatedAt.Before(end) {
			total += int64(e.TokensPrompt + e.TokensCompletion)
		}
	}
	return total, nil
}

func TestRecorder_Record(t *testing.T) {
	repo := &memUsageRepo{}
	r := NewRecorder(repo)
	ctx := context.Background()

	require.NoError(t, r.Record(ctx, service.LLMUsageInput{
		UserID: " u1 ", Workflow: service.WorkflowFeedback, Provider: "openai", Model: "gpt",
		PromptTokens: 10, CompletionTokens: 5,
	}))
	require.Len(t, repo.events, 1)
	assert.Equal(t, "u1", repo.events[0].UserID)

	// 匿名调用不记录
	require.NoError(t, r.Record(ctx, service.LLMUsageInput{PromptTokens: 1}))
	assert.Len(t, repo.events, 1)

	require.Error(t, r.Record(ctx, service.LLMUsageInput{UserID: "u1", PromptTokens: -1}))
}

func TestRecorder_SwallowsRepositoryErrors(t *testing.T) {
	r := NewRecorder(&memUsageRepo{err: errors.New("db down")})
	assert.NoError(t, r.Record(context.Background(), service.LLMUsageInput{UserID: "u1", PromptTokens: 1}))
}

func TestQuotaChecker_CheckDailyTokens(t *testing.T) {
	repo := &memUsageRepo{}
	r := NewRecorder(repo)
	ctx := context.Background()
	require.NoError(t, r.Record(ctx, service.LLMUsageInput{UserID: "u1", PromptTokens: 60, CompletionTokens: 30}))

	c := NewQuotaChecker(repo, 100)
	used, err := c.CheckDailyTokens(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(90), used)

	require.NoError(t, r.Record(ctx, service.LLMUsageInput{UserID: "u1", PromptTokens: 10}))
	used, err = c.CheckDailyTokens(ctx, "u1")
	var qe QuotaExceededError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, int64(100), used)
	assert.Equal(t, int64(100), qe.Max)

	unlimited := NewQuotaChecker(repo, 0)
	_, err = unlimited.CheckDailyTokens(ctx, "u1")
	assert.NoError(t, err)
}
