package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roleplay-coach-api/internal/application/conversation"
	"roleplay-coach-api/internal/domain/entity"
)

type fakeAPI struct {
	mu        sync.Mutex
	calls     map[string]int
	completed bool
	feedback  bool
}

func (a *fakeAPI) hit(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls[name]++
}

func (a *fakeAPI) count(name string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[name]
}

func ok(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"code": status, "message": "success", "data": data})
}

func notFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code": 404, "message": "feedback not found",
		"error": map[string]any{"error_code": "3005"},
	})
}

func (a *fakeAPI) run() map[string]any {
	status := "active"
	if a.completed {
		status = "completed"
	}
	return map[string]any{
		"id":               "r1",
		"persona_id":       "p2",
		"persona_name":     "Jun",
		"persona_snapshot": map[string]any{"persona_id": "p2", "name": "Jun", "gender": "male", "mbti": "INTJ"},
		"scenario_run_id":  "sr1",
		"sequence_index":   1,
		"status":           status,
		"mode":             "messenger",
		"difficulty":       2,
	}
}

func newFakeAPI(t *testing.T) (*fakeAPI, *cliApp) {
	t.Helper()
	api := &fakeAPI{calls: map[string]int{}}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/persona-runs/r1", func(w http.ResponseWriter, r *http.Request) {
		api.hit("get_run")
		api.mu.Lock()
		defer api.mu.Unlock()
		ok(w, http.StatusOK, api.run())
	})
	mux.HandleFunc("GET /v1/scenario-runs/sr1", func(w http.ResponseWriter, r *http.Request) {
		ok(w, http.StatusOK, map[string]any{
			"id":                "sr1",
			"scenario_name":     "Team dinner",
			"conversation_type": "scenario",
			"status":            "active",
			"scenario": map[string]any{
				"title":       "Team dinner",
				"objectives":  []string{"break the ice"},
				"timeline":    "friday night",
				"persona_ids": []string{"p1", "p2"},
			},
		})
	})
	mux.HandleFunc("GET /v1/persona-runs/r1/messages", func(w http.ResponseWriter, r *http.Request) {
		ok(w, http.StatusOK, map[string]any{"messages": []map[string]any{
			{"id": "m1", "persona_run_id": "r1", "sender": "ai", "message": "hey there"},
		}})
	})
	mux.HandleFunc("POST /v1/persona-runs/r1/messages", func(w http.ResponseWriter, r *http.Request) {
		api.hit("send")
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		api.mu.Lock()
		defer api.mu.Unlock()
		ok(w, http.StatusOK, map[string]any{
			"user_message": map[string]any{"sender": "user", "message": body["message"]},
			"ai_message":   map[string]any{"sender": "ai", "message": "echo: " + body["message"], "emotion": "happy"},
			"run":          api.run(),
		})
	})
	mux.HandleFunc("POST /v1/persona-runs/r1/complete", func(w http.ResponseWriter, r *http.Request) {
		api.hit("complete")
		api.mu.Lock()
		defer api.mu.Unlock()
		api.completed = true
		ok(w, http.StatusOK, api.run())
	})
	mux.HandleFunc("GET /v1/conversations/r1/feedback", func(w http.ResponseWriter, r *http.Request) {
		api.hit("get_feedback")
		api.mu.Lock()
		defer api.mu.Unlock()
		if !api.feedback {
			notFound(w)
			return
		}
		ok(w, http.StatusOK, feedbackJSON())
	})
	mux.HandleFunc("POST /v1/conversations/r1/feedback", func(w http.ResponseWriter, r *http.Request) {
		api.hit("generate")
		api.mu.Lock()
		defer api.mu.Unlock()
		api.feedback = true
		ok(w, http.StatusCreated, feedbackJSON())
	})
	mux.HandleFunc("GET /v1/conversations/active", func(w http.ResponseWriter, r *http.Request) {
		api.hit("active")
		ok(w, http.StatusOK, map[string]any{"conversations": []map[string]any{
			{"id": "r1", "persona_name": "Jun", "status": "active", "mode": "messenger", "turn_count": 3,
				"updated_at": "2026-01-02T03:04:05Z"},
		}})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	app, err := newCLIApp(&globalOptions{configDir: t.TempDir(), baseURL: srv.URL, token: "tok"})
	require.NoError(t, err)
	return api, app
}

func feedbackJSON() map[string]any {
	return map[string]any{
		"id":              "f1",
		"conversation_id": "r1",
		"overall_score":   82,
		"scores": []map[string]any{
			{"category": "empathy", "name": "Empathy", "score": 80, "feedback": "listened well"},
		},
		"detailed_feedback": map[string]any{
			"strengths":    []string{"warm opener"},
			"improvements": []string{"ask more questions"},
		},
	}
}

func TestNewCLIApp_RequiresBaseURL(t *testing.T) {
	_, err := newCLIApp(&globalOptions{configDir: t.TempDir()})
	require.Error(t, err)
}

func TestRunChat_SendsAndCompletes(t *testing.T) {
	api, app := newFakeAPI(t)
	var out bytes.Buffer

	err := runChat(context.Background(), strings.NewReader("hello\n\n/done\n"), &out, app, "r1")
	require.NoError(t, err)

	s := out.String()
	assert.Contains(t, s, "Team dinner")
	assert.Contains(t, s, "hey there")
	assert.Contains(t, s, "echo: hello")
	assert.Contains(t, s, "feedback r1 --generate")
	assert.Equal(t, 1, api.count("send"))
	assert.Equal(t, 1, api.count("complete"))
}

func TestRunChat_CompletedRunDoesNotPrompt(t *testing.T) {
	api, app := newFakeAPI(t)
	api.completed = true
	var out bytes.Buffer

	require.NoError(t, runChat(context.Background(), strings.NewReader("hello\n"), &out, app, "r1"))
	assert.Contains(t, out.String(), "already completed")
	assert.Zero(t, api.count("send"))
}

func TestRunFeedback_GenerateOnlyWhenAsked(t *testing.T) {
	api, app := newFakeAPI(t)
	api.completed = true

	var out bytes.Buffer
	require.NoError(t, runFeedback(context.Background(), &out, app, "r1", false))
	assert.Contains(t, out.String(), "--generate")
	assert.Zero(t, api.count("generate"))

	out.Reset()
	require.NoError(t, runFeedback(context.Background(), &out, app, "r1", true))
	assert.Contains(t, out.String(), "82")
	assert.Contains(t, out.String(), "listened well")
	assert.Equal(t, 1, api.count("generate"))
}

func TestRunNext_LastPersona(t *testing.T) {
	_, app := newFakeAPI(t)
	var out bytes.Buffer

	require.NoError(t, runNext(context.Background(), &out, app, "r1"))
	assert.Contains(t, out.String(), "last persona")
}

func TestWriteReport(t *testing.T) {
	api, app := newFakeAPI(t)
	api.completed = true
	api.feedback = true

	fc, err := loadFeedback(context.Background(), app, "r1", false)
	require.NoError(t, err)
	require.Equal(t, conversation.Ready, fc.State())

	var out bytes.Buffer
	require.NoError(t, writeReport(&out, fc, "-"))
	assert.Contains(t, out.String(), "<!DOCTYPE html>")

	path := filepath.Join(t.TempDir(), "report.html")
	out.Reset()
	require.NoError(t, writeReport(&out, fc, path))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "warm opener")
}

func TestWriteReport_NotReadyLeavesNoFile(t *testing.T) {
	_, app := newFakeAPI(t)
	fc, err := loadFeedback(context.Background(), app, "r1", false)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "report.html")
	err = writeReport(&bytes.Buffer{}, fc, path)
	require.ErrorIs(t, err, conversation.ErrFeedbackNotReady)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunWatch_StopsOnCancel(t *testing.T) {
	api, app := newFakeAPI(t)
	ctx, cancel := context.WithCancel(context.Background())

	var out, errOut bytes.Buffer
	done := make(chan error, 1)
	go func() { done <- runWatch(ctx, &out, &errOut, app) }()

	require.Eventually(t, func() bool { return api.count("active") >= 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
	assert.Contains(t, out.String(), "Jun")
	assert.Empty(t, errOut.String())
}

func TestFormat(t *testing.T) {
	assert.Contains(t, renderMessage("Jun", conversation.ChatMessage{Sender: entity.SenderUser, Message: "hi"}), "hi")
	ai := renderMessage("Jun", conversation.ChatMessage{Sender: entity.SenderAI, Message: "yo", Emotion: "calm"})
	assert.Contains(t, ai, "Jun")
	assert.Contains(t, ai, "calm")

	failed := renderFeedback(conversation.FeedbackSnapshot{
		State:   conversation.Errored,
		Failure: &conversation.Failure{Message: "Feedback could not be loaded.", Action: conversation.ActionRetryFetch},
	})
	assert.Contains(t, failed, "retry_fetch")

	var table bytes.Buffer
	require.NoError(t, writeConversationTable(&table, []conversation.ConversationSummary{{ID: "r9", PersonaName: "Mina"}}))
	lines := strings.Split(strings.TrimSpace(table.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "Mina")
}

func TestBrowserOpener_WritesReport(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a posix command")
	}
	dir := t.TempDir()
	o := browserOpener{dir: dir, command: []string{"true"}}

	require.NoError(t, o.OpenReport(context.Background(), "feedback-r1.html", []byte("<html></html>")))
	content, err := os.ReadFile(filepath.Join(dir, "feedback-r1.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(content))
}

func TestExecute_UnknownCommand(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"nope"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert.Equal(t, 1, execute(cmd))
}

func TestVersionCmd(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetArgs([]string{"version"})
	cmd.SetOut(&out)
	assert.Equal(t, 0, execute(cmd))
	assert.Contains(t, out.String(), "roleplay-cli dev")
}
