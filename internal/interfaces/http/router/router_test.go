package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roleplay-coach-api/internal/config"
	"roleplay-coach-api/internal/interfaces/http/handler"
	"roleplay-coach-api/internal/interfaces/http/middleware"
)

func newTestRouter() *Router {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{}
	cfg.App.Name = "roleplay-coach-api"
	return NewWithDeps(cfg, RouterHandlers{
		Health:       handler.NewHealthHandler("test", nil, nil, nil),
		Catalog:      handler.NewCatalogHandler(nil, nil),
		PersonaRun:   handler.NewPersonaRunHandler(nil),
		ScenarioRun:  handler.NewScenarioRunHandler(nil),
		Conversation: handler.NewConversationHandler(nil, nil),
	}, RouterDeps{
		Auth: middleware.AuthConfig{Secret: "s", Issuer: "i", SkipPaths: middleware.DefaultSkipPaths, Enabled: true},
	})
}

func TestRoutesRegistered(t *testing.T) {
	r := newTestRouter()

	got := map[string]bool{}
	for _, route := range r.Engine().Routes() {
		got[route.Method+" "+route.Path] = true
	}

	for _, want := range []string{
		"GET /health",
		"GET /ready",
		"GET /live",
		"GET /v1/personas",
		"GET /v1/personas/:pid",
		"POST /v1/personas",
		"GET /v1/scenarios",
		"GET /v1/scenarios/:sid",
		"POST /v1/scenarios",
		"POST /v1/scenario-runs",
		"GET /v1/scenario-runs/:srid",
		"GET /v1/scenario-runs/:srid/persona-runs",
		"POST /v1/persona-runs",
		"GET /v1/persona-runs/:rid",
		"GET /v1/persona-runs/:rid/messages",
		"POST /v1/persona-runs/:rid/messages",
		"POST /v1/persona-runs/:rid/complete",
		"GET /v1/conversations/active",
		"POST /v1/conversations/:cid/close",
		"GET /v1/conversations/:cid/feedback",
		"POST /v1/conversations/:cid/feedback",
	} {
		assert.True(t, got[want], "missing route %s", want)
	}
}

func TestV1RequiresAuth(t *testing.T) {
	r := newTestRouter()

	w := httptest.NewRecorder()
	r.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/conversations/active", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHealthBypassesAuth(t *testing.T) {
	r := newTestRouter()

	w := httptest.NewRecorder()
	r.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"version":"test"`)
}
