package usage

import (
	"context"
	"fmt"
	"time"

	"roleplay-coach-api/internal/domain/repository"
)

// QuotaExceededError 用户当日 Token 配额已耗尽
type QuotaExceededError struct {
	UserID string
	Max    int64
	Used   int64
}

func (e QuotaExceededError) Error() string {
	return fmt.Sprintf("token quota exceeded: user=%s used=%d max=%d", e.UserID, e.Used, e.Max)
}

// QuotaChecker 检查用户 Token 日配额
type QuotaChecker struct {
	usageRepo repository.LLMUsageEventRepository
	max       int64
	now       func() time.Time
}

func NewQuotaChecker(usageRepo repository.LLMUsageEventRepository, maxTokensPerDay int64) *QuotaChecker {
	return &QuotaChecker{
		usageRepo: usageRepo,
		max:       maxTokensPerDay,
		now:       time.Now,
	}
}

// CheckDailyTokens 返回当日已用量；超过配额时返回 QuotaExceededError
func (c *QuotaChecker) CheckDailyTokens(ctx context.Context, userID string) (used int64, err error) {
	if c == nil || c.usageRepo == nil || c.max <= 0 {
		return 0, nil
	}

	now := c.now().UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	used, err = c.usageRepo.GetTokenUsage(ctx, userID, start, end)
	if err != nil {
		return 0, err
	}
	if used >= c.max {
		return used, QuotaExceededError{UserID: userID, Max: c.max, Used: used}
	}
	return used, nil
}
