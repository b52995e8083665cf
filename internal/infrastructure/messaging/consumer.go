// Package messaging 提供消息队列实现
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"roleplay-coach-api/pkg/logger"
	"roleplay-coach-api/pkg/metrics"
)

const (
	readBatchSize    = 10
	pendingBatchSize = 20
	minReclaimIdle   = 5 * time.Minute
)

var errRetriesExhausted = errors.New("message exceeded max retries")

// MessageHandler 消息处理函数，返回错误时消息留在 pending 等待退避重试
type MessageHandler func(ctx context.Context, msg *Message) error

// ConsumerConfig 消费者配置
type ConsumerConfig struct {
	Stream        Stream
	Group         ConsumerGroup
	ConsumerName  string
	BlockTimeout  time.Duration
	ClaimInterval time.Duration
	RetryLimit    int
	Backoff       BackoffConfig
}

func (cfg *ConsumerConfig) applyDefaults() {
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 5 * time.Second
	}
	if cfg.ClaimInterval <= 0 {
		cfg.ClaimInterval = 30 * time.Second
	}
	if cfg.RetryLimit <= 0 {
		cfg.RetryLimit = 3
	}
	if cfg.Backoff.Initial <= 0 {
		cfg.Backoff = DefaultBackoffConfig()
	}
}

// Consumer Redis Stream 消费组成员：按消息类型分发，失败退避重试，超过重试次数转入死信流
type Consumer struct {
	client      *redis.Client
	cfg         ConsumerConfig
	reclaimIdle time.Duration

	mu       sync.RWMutex
	handlers map[string]MessageHandler
	running  bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewConsumer(client *redis.Client, cfg ConsumerConfig) *Consumer {
	cfg.applyDefaults()
	reclaimIdle := cfg.Backoff.Max * 2
	if reclaimIdle < minReclaimIdle {
		reclaimIdle = minReclaimIdle
	}
	return &Consumer{
		client:      client,
		cfg:         cfg,
		reclaimIdle: reclaimIdle,
		handlers:    make(map[string]MessageHandler),
		stopCh:      make(chan struct{}),
	}
}

// RegisterHandler 同一类型重复注册时后者覆盖前者
func (c *Consumer) RegisterHandler(msgType string, handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[msgType] = handler
}

func (c *Consumer) handler(msgType string) (MessageHandler, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.handlers[msgType]
	return h, ok
}

// Start 确保消费组存在后在后台消费
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return fmt.Errorf("consumer already running")
	}

	err := c.client.XGroupCreateMkStream(ctx, string(c.cfg.Stream), string(c.cfg.Group), "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s: %w", c.cfg.Group, err)
	}

	c.running = true
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.loop(ctx)
	}()
	return nil
}

// Stop 通知消费循环退出并等待当前批次处理完
func (c *Consumer) Stop() {
	c.mu.Lock()
	if c.running {
		close(c.stopCh)
		c.running = false
	}
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Consumer) stopped(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

func (c *Consumer) loop(ctx context.Context) {
	log := logger.FromContext(ctx).With(
		"stream", c.cfg.Stream,
		"group", c.cfg.Group,
		"consumer", c.cfg.ConsumerName,
	)
	log.Info("consumer started")
	defer log.Info("consumer stopped")

	lastReclaim := time.Time{}
	for !c.stopped(ctx) {
		c.retryOwnPending(ctx)
		if time.Since(lastReclaim) >= c.cfg.ClaimInterval {
			c.reclaimFromOthers(ctx)
			lastReclaim = time.Now()
		}

		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    string(c.cfg.Group),
			Consumer: c.cfg.ConsumerName,
			Streams:  []string{string(c.cfg.Stream), ">"},
			Count:    readBatchSize,
			Block:    c.cfg.BlockTimeout,
		}).Result()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			log.Error("read stream failed", "error", err)
			time.Sleep(time.Second)
			continue
		}

		for _, s := range streams {
			for _, xmsg := range s.Messages {
				c.dispatch(ctx, xmsg)
			}
		}
	}
}

// decodeStreamMessage 解析 XADD 写入的 data 字段
func decodeStreamMessage(xmsg redis.XMessage) (*Message, error) {
	raw, ok := xmsg.Values["data"].(string)
	if !ok {
		return nil, fmt.Errorf("message %s has no data field", xmsg.ID)
	}
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return nil, fmt.Errorf("decode message %s: %w", xmsg.ID, err)
	}
	return &msg, nil
}

// messageContext 把消息携带的追踪字段带入日志上下文
func messageContext(ctx context.Context, msg *Message) context.Context {
	if msg.UserID != "" {
		ctx = logger.WithContext(ctx, logger.UserIDKey, msg.UserID)
	}
	if msg.RunID != "" {
		ctx = logger.WithContext(ctx, logger.PersonaRunIDKey, msg.RunID)
	}
	if v := msg.GetMetadata("request_id"); v != "" {
		ctx = logger.WithContext(ctx, logger.RequestIDKey, v)
	}
	if v := msg.GetMetadata("trace_id"); v != "" {
		ctx = logger.WithContext(ctx, logger.TraceIDKey, v)
	}
	return ctx
}

func (c *Consumer) dispatch(ctx context.Context, xmsg redis.XMessage) {
	ctx, span := tracer.Start(ctx, "consumer.dispatch",
		trace.WithAttributes(
			attribute.String("stream", string(c.cfg.Stream)),
			attribute.String("stream.message_id", xmsg.ID),
		))
	defer span.End()

	msg, err := decodeStreamMessage(xmsg)
	if err != nil {
		// 无法解析的消息重试也不会成功
		logger.Error(ctx, "drop malformed message", err, "message_id", xmsg.ID)
		c.consumed("unknown", "malformed")
		c.ack(ctx, xmsg.ID)
		return
	}

	ctx = messageContext(ctx, msg)
	span.SetAttributes(
		attribute.String("message.id", msg.ID),
		attribute.String("message.type", msg.Type),
		attribute.String("persona_run_id", msg.RunID),
	)

	h, ok := c.handler(msg.Type)
	if !ok {
		logger.Debug(ctx, "no handler for message type", "type", msg.Type)
		c.consumed(msg.Type, "skipped")
		c.ack(ctx, xmsg.ID)
		return
	}

	if err := h(ctx, msg); err != nil {
		span.RecordError(err)
		c.consumed(msg.Type, "error")
		c.onHandlerError(ctx, xmsg.ID, msg, err)
		return
	}
	c.consumed(msg.Type, "success")
	c.ack(ctx, xmsg.ID)
}

func (c *Consumer) consumed(msgType, status string) {
	metrics.RedisStreamConsumed.WithLabelValues(string(c.cfg.Stream), msgType, status).Inc()
}

func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.client.XAck(ctx, string(c.cfg.Stream), string(c.cfg.Group), id).Err(); err != nil {
		logger.Error(ctx, "ack message failed", err, "message_id", id)
	}
}

// onHandlerError 未达重试上限时不 ack，由 retryOwnPending 按退避时间重新投递
func (c *Consumer) onHandlerError(ctx context.Context, streamID string, msg *Message, err error) {
	retries := c.deliveryCount(ctx, streamID)
	if retries < c.cfg.RetryLimit {
		logger.Warn(ctx, "handler failed, will retry", "message_id", msg.ID, "retry_count", retries, "error", err)
		return
	}
	logger.Error(ctx, "handler failed, moving to DLQ", err, "message_id", msg.ID, "retry_count", retries)
	c.deadLetter(ctx, msg, err)
	c.ack(ctx, streamID)
}

func (c *Consumer) deliveryCount(ctx context.Context, streamID string) int {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: string(c.cfg.Stream),
		Group:  string(c.cfg.Group),
		Start:  streamID,
		End:    streamID,
		Count:  1,
	}).Result()
	if err != nil || len(pending) == 0 {
		return 0
	}
	return int(pending[0].RetryCount)
}

func (c *Consumer) deadLetter(ctx context.Context, msg *Message, cause error) {
	data, err := json.Marshal(map[string]any{
		"original_stream": string(c.cfg.Stream),
		"data":            msg,
		"error":           cause.Error(),
		"failed_at":       time.Now().Unix(),
	})
	if err != nil {
		logger.Error(ctx, "marshal dead letter failed", err, "message_id", msg.ID)
		return
	}
	if err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.cfg.Stream.DLQStream(),
		Values: map[string]any{"data": string(data)},
	}).Err(); err != nil {
		logger.Error(ctx, "publish dead letter failed", err, "message_id", msg.ID)
	}
}

// pending consumer 为空时返回整个消费组的待确认消息
func (c *Consumer) pending(ctx context.Context, consumer string) []redis.XPendingExt {
	out, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream:   string(c.cfg.Stream),
		Group:    string(c.cfg.Group),
		Start:    "-",
		End:      "+",
		Count:    pendingBatchSize,
		Consumer: consumer,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		logger.Error(ctx, "query pending messages failed", err)
	}
	return out
}

// claim 认领消息；超过重试上限的直接转入死信流，其余重新分发
func (c *Consumer) claim(ctx context.Context, p redis.XPendingExt, minIdle time.Duration) {
	claimed, err := c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   string(c.cfg.Stream),
		Group:    string(c.cfg.Group),
		Consumer: c.cfg.ConsumerName,
		MinIdle:  minIdle,
		Messages: []string{p.ID},
	}).Result()
	if err != nil {
		logger.Error(ctx, "claim pending message failed", err, "message_id", p.ID)
		return
	}

	exhausted := int(p.RetryCount) >= c.cfg.RetryLimit
	for _, xmsg := range claimed {
		if !exhausted {
			c.dispatch(ctx, xmsg)
			continue
		}
		if msg, decodeErr := decodeStreamMessage(xmsg); decodeErr == nil {
			c.deadLetter(ctx, msg, errRetriesExhausted)
		}
		c.ack(ctx, xmsg.ID)
	}
}

func (c *Consumer) retryOwnPending(ctx context.Context) {
	for _, p := range c.pending(ctx, c.cfg.ConsumerName) {
		if int(p.RetryCount) >= c.cfg.RetryLimit {
			c.claim(ctx, p, 0)
			continue
		}
		wait := c.cfg.Backoff.CalculateBackoff(int(p.RetryCount))
		if p.Idle >= wait {
			c.claim(ctx, p, wait)
		}
	}
}

// reclaimFromOthers 接管长时间未确认的其他消费者消息，例如已崩溃的 worker
func (c *Consumer) reclaimFromOthers(ctx context.Context) {
	for _, p := range c.pending(ctx, "") {
		if p.Consumer == c.cfg.ConsumerName || p.Idle < c.reclaimIdle {
			continue
		}
		c.claim(ctx, p, c.reclaimIdle)
	}
}

// DLQLength 死信流长度
func (c *Consumer) DLQLength(ctx context.Context) (int64, error) {
	return c.client.XLen(ctx, c.cfg.Stream.DLQStream()).Result()
}

// MonitorDLQ 每分钟检查死信流，超过阈值时告警
func (c *Consumer) MonitorDLQ(ctx context.Context, alertThreshold int64) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			n, err := c.DLQLength(ctx)
			if err != nil {
				continue
			}
			if n > alertThreshold {
				logger.Warn(ctx, "dead letter stream above threshold",
					"stream", c.cfg.Stream.DLQStream(),
					"count", n,
				)
			}
		}
	}
}
