package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"roleplay-coach-api/pkg/logger"
)

// DefaultPollInterval 活跃会话列表的默认刷新间隔
const DefaultPollInterval = 30 * time.Second

// cronLogger 将 cron 内部日志转到 pkg/logger。
// Stop 之后 cron 的调度 goroutine 可能还会打出 "stop"，此时丢弃。
type cronLogger struct {
	ctx context.Context
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	if l.ctx.Err() != nil {
		return
	}
	logger.Debug(l.ctx, "poller: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	logger.Error(l.ctx, "poller: "+msg, err, keysAndValues...)
}

// ActiveConversationsPoller 周期刷新活跃会话列表，Start 后必须 Stop
type ActiveConversationsPoller struct {
	runs     *RunManager
	interval time.Duration
	onUpdate func([]ConversationSummary)
	onError  func(error)

	mu      sync.Mutex
	sched   *cron.Cron
	cancel  context.CancelFunc
	initial sync.WaitGroup
	started bool
	stopped bool
}

// PollerOption 轮询器可选项
type PollerOption func(*ActiveConversationsPoller)

// WithPollErrorHandler 刷新失败时回调，失败不会中断轮询
func WithPollErrorHandler(fn func(error)) PollerOption {
	return func(p *ActiveConversationsPoller) { p.onError = fn }
}

func NewActiveConversationsPoller(runs *RunManager, interval time.Duration, onUpdate func([]ConversationSummary), opts ...PollerOption) *ActiveConversationsPoller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	p := &ActiveConversationsPoller{runs: runs, interval: interval, onUpdate: onUpdate}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start 立即刷新一次，之后按间隔刷新；上一次未结束时跳过本次
func (p *ActiveConversationsPoller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return fmt.Errorf("poller already started")
	}

	pollCtx, cancel := context.WithCancel(ctx)
	cl := cronLogger{ctx: pollCtx}
	job := cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).
		Then(cron.FuncJob(func() { p.poll(pollCtx) }))

	sched := cron.New(cron.WithLogger(cl))
	// cron.Every 的最小粒度为 1s
	sched.Schedule(cron.Every(p.interval), job)

	p.sched, p.cancel, p.started = sched, cancel, true
	sched.Start()

	p.initial.Add(1)
	go func() {
		defer p.initial.Done()
		job.Run()
	}()
	return nil
}

// Stop 取消进行中的请求并等待任务结束，可重复调用。
// 返回后轮询器不再回调、不再写日志。
func (p *ActiveConversationsPoller) Stop() {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	sched, cancel := p.sched, p.cancel
	p.mu.Unlock()

	cancel()
	<-sched.Stop().Done()
	p.initial.Wait()
}

// Refresh 手动刷新一次，不影响周期调度
func (p *ActiveConversationsPoller) Refresh(ctx context.Context) ([]ConversationSummary, error) {
	list, err := p.runs.RefreshActive(ctx)
	if err != nil {
		return nil, err
	}
	if p.onUpdate != nil {
		p.onUpdate(list)
	}
	return list, nil
}

func (p *ActiveConversationsPoller) poll(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := p.Refresh(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Warn(ctx, "refresh active conversations failed", "error", err)
		if p.onError != nil {
			p.onError(err)
		}
	}
}
