// Package messaging 提供消息队列实现
package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"roleplay-coach-api/pkg/logger"
	"roleplay-coach-api/pkg/metrics"
	pkgtracer "roleplay-coach-api/pkg/tracer"
)

var tracer = otel.Tracer("messaging")

// Producer 消息生产者
type Producer struct {
	client *redis.Client
	maxLen int64
}

// NewProducer 创建消息生产者
func NewProducer(client *redis.Client, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = 100000
	}
	return &Producer{
		client: client,
		maxLen: maxLen,
	}
}

// Publish 发布消息到指定流
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := tracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	if reqID, ok := ctx.Value(logger.RequestIDKey).(string); ok && reqID != "" {
		msg.SetMetadata("request_id", reqID)
	}
	if traceID := pkgtracer.TraceID(ctx); traceID != "" {
		msg.SetMetadata("trace_id", traceID)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"data": string(data),
		},
	}).Result()

	if err != nil {
		span.RecordError(err)
		metrics.RedisStreamPublished.WithLabelValues(string(stream), "error").Inc()
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	metrics.RedisStreamPublished.WithLabelValues(string(stream), "success").Inc()
	span.SetAttributes(attribute.String("stream.message_id", result))
	return result, nil
}

// PublishConversationEvent 发布会话生命周期事件
func (p *Producer) PublishConversationEvent(ctx context.Context, evt *ConversationEvent) (string, error) {
	msg, err := NewMessage(uuid.NewString(), evt.Type, evt.UserID, evt.PersonaRunID, evt)
	if err != nil {
		return "", err
	}
	return p.Publish(ctx, StreamConversationEvents, msg)
}

// PublishAuditLog 发布审计日志
func (p *Producer) PublishAuditLog(ctx context.Context, log *AuditLogMessage) (string, error) {
	msg, err := NewMessage(log.RequestID, "audit", log.UserID, log.ResourceID, log)
	if err != nil {
		return "", err
	}

	return p.Publish(ctx, StreamAuditLog, msg)
}

// ConversationEvent 会话生命周期事件
type ConversationEvent struct {
	Type          string `json:"type"`
	UserID        string `json:"user_id"`
	PersonaRunID  string `json:"persona_run_id"`
	PersonaID     string `json:"persona_id,omitempty"`
	ScenarioRunID string `json:"scenario_run_id,omitempty"`
}

// AuditLogMessage 审计日志消息
type AuditLogMessage struct {
	UserID       string         `json:"user_id,omitempty"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id,omitempty"`
	RequestID    string         `json:"request_id"`
	TraceID      string         `json:"trace_id,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	StatusCode   int            `json:"status_code"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}
