package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roleplay-coach-api/internal/infrastructure/messaging"
)

type recordingAudit struct {
	mu   sync.Mutex
	logs []*messaging.AuditLogMessage
	err  error
}

func (p *recordingAudit) PublishAuditLog(_ context.Context, log *messaging.AuditLogMessage) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logs = append(p.logs, log)
	return "1-0", p.err
}

func newAuditEngine(pub AuditPublisher) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", "u1")
		c.Set("request_id", "req-1")
		c.Next()
	})
	r.Use(AuditWithConfig(AuditConfig{Enabled: true, SkipPaths: DefaultAuditSkipPaths, Publisher: pub}))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/v1/persona-runs/:rid", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/v1/persona-runs/:rid/complete", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestAudit_PublishesWritesOnly(t *testing.T) {
	pub := &recordingAudit{}
	r := newAuditEngine(pub)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/health"},
		{http.MethodGet, "/v1/persona-runs/r1"},
		{http.MethodPost, "/v1/persona-runs/r1/complete"},
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	require.Len(t, pub.logs, 1)
	got := pub.logs[0]
	assert.Equal(t, "POST /v1/persona-runs/:rid/complete", got.Action)
	assert.Equal(t, "persona-runs", got.ResourceType)
	assert.Equal(t, "r1", got.ResourceID)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "req-1", got.RequestID)
	assert.Equal(t, http.StatusOK, got.StatusCode)
}

func TestAudit_PublishFailureDoesNotAffectResponse(t *testing.T) {
	r := newAuditEngine(&recordingAudit{err: errors.New("stream down")})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/persona-runs/r1/complete", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
