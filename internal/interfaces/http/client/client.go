// Package client 是 roleplay-coach-api REST 接口的 Go 客户端，实现 conversation.Backend
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"roleplay-coach-api/internal/application/conversation"
	"roleplay-coach-api/pkg/logger"
)

const defaultTimeout = 60 * time.Second

// Config 客户端配置
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Option 客户端可选项
type Option func(*Client)

// WithHTTPClient 替换底层 http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// Client REST 客户端
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

var _ conversation.Backend = (*Client)(nil)

// New 创建客户端；LLM 回复与反馈生成较慢，默认超时 60s
func New(cfg Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	TraceID string          `json:"trace_id"`
}

type errorEnvelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Error   *struct {
		ErrorCode string `json:"error_code"`
		Details   string `json:"details"`
	} `json:"error"`
}

// do 发送请求；out 为 nil 时忽略响应体
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %v", method, path, conversation.ErrTransient, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w: %v", method, path, conversation.ErrTransient, err)
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := decodeError(resp.StatusCode, raw)
		logger.Debug(ctx, "api request failed",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"code", apiErr.Code,
		)
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent || len(raw) == 0 {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%s %s: decode envelope: %w", method, path, err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%s %s: empty response data", method, path)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s %s: decode data: %w", method, path, err)
	}
	return nil
}

func decodeError(status int, raw []byte) *conversation.APIError {
	apiErr := &conversation.APIError{Status: status, Message: http.StatusText(status)}

	var env errorEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return apiErr
	}
	if env.Message != "" {
		apiErr.Message = env.Message
	}
	if env.Error != nil {
		apiErr.Code = env.Error.ErrorCode
	}
	return apiErr
}

func (c *Client) CreatePersonaRun(ctx context.Context, req conversation.CreatePersonaRunRequest) (*conversation.PersonaRun, error) {
	var run conversation.PersonaRun
	if err := c.do(ctx, http.MethodPost, "/v1/persona-runs", req, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

func (c *Client) GetPersonaRun(ctx context.Context, id string) (*conversation.PersonaRun, error) {
	var run conversation.PersonaRun
	if err := c.do(ctx, http.MethodGet, "/v1/persona-runs/"+url.PathEscape(id), nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

func (c *Client) GetScenarioRun(ctx context.Context, id string) (*conversation.ScenarioRun, error) {
	var sr conversation.ScenarioRun
	if err := c.do(ctx, http.MethodGet, "/v1/scenario-runs/"+url.PathEscape(id), nil, &sr); err != nil {
		return nil, err
	}
	return &sr, nil
}

func (c *Client) FindPersonaRun(ctx context.Context, scenarioRunID, personaID string) (*conversation.PersonaRun, error) {
	path := fmt.Sprintf("/v1/scenario-runs/%s/persona-runs?persona_id=%s",
		url.PathEscape(scenarioRunID), url.QueryEscape(personaID))

	var run conversation.PersonaRun
	if err := c.do(ctx, http.MethodGet, path, nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

func (c *Client) ListMessages(ctx context.Context, personaRunID string) ([]conversation.ChatMessage, error) {
	var out struct {
		Messages []conversation.ChatMessage `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/persona-runs/"+url.PathEscape(personaRunID)+"/messages", nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (c *Client) SendMessage(ctx context.Context, personaRunID, text string) (*conversation.Exchange, error) {
	var ex conversation.Exchange
	body := map[string]string{"message": text}
	if err := c.do(ctx, http.MethodPost, "/v1/persona-runs/"+url.PathEscape(personaRunID)+"/messages", body, &ex); err != nil {
		return nil, err
	}
	return &ex, nil
}

func (c *Client) CompleteRun(ctx context.Context, personaRunID string) (*conversation.PersonaRun, error) {
	var run conversation.PersonaRun
	if err := c.do(ctx, http.MethodPost, "/v1/persona-runs/"+url.PathEscape(personaRunID)+"/complete", nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

func (c *Client) GetFeedback(ctx context.Context, conversationID string) (*conversation.Feedback, error) {
	var fb conversation.Feedback
	if err := c.do(ctx, http.MethodGet, "/v1/conversations/"+url.PathEscape(conversationID)+"/feedback", nil, &fb); err != nil {
		return nil, err
	}
	return &fb, nil
}

func (c *Client) GenerateFeedback(ctx context.Context, conversationID string) (*conversation.Feedback, error) {
	var fb conversation.Feedback
	if err := c.do(ctx, http.MethodPost, "/v1/conversations/"+url.PathEscape(conversationID)+"/feedback", nil, &fb); err != nil {
		return nil, err
	}
	return &fb, nil
}

func (c *Client) CloseConversation(ctx context.Context, conversationID string) error {
	return c.do(ctx, http.MethodPost, "/v1/conversations/"+url.PathEscape(conversationID)+"/close", nil, nil)
}

func (c *Client) ListActiveConversations(ctx context.Context) ([]conversation.ConversationSummary, error) {
	var out struct {
		Conversations []conversation.ConversationSummary `json:"conversations"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/conversations/active?page_size=100", nil, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}
