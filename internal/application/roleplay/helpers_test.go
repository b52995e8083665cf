package roleplay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"roleplay-coach-api/internal/domain/entity"
	"roleplay-coach-api/internal/domain/service"
	"roleplay-coach-api/internal/infrastructure/messaging"
	"roleplay-coach-api/internal/infrastructure/persistence/postgres"
	wfmodel "roleplay-coach-api/internal/workflow/model"
)

type testEnv struct {
	client   *postgres.Client
	chat     *ChatService
	feedback *FeedbackService
	progress *ScenarioProgress

	cache   *memCache
	events  *recordingPublisher
	reply   *stubReply
	report  *stubReport
	limiter *stubLimiter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	client := postgres.NewClientWithDB(db)
	require.NoError(t, client.AutoMigrate(context.Background()))

	env := &testEnv{
		client:  client,
		cache:   newMemCache(),
		events:  &recordingPublisher{},
		reply:   &stubReply{},
		report:  &stubReport{},
		limiter: &stubLimiter{allow: true},
	}

	personaRuns := postgres.NewPersonaRunRepository(client)
	scenarioRuns := postgres.NewScenarioRunRepository(client)
	messages := postgres.NewChatMessageRepository(client)

	env.chat = NewChatService(
		ChatOptions{DefaultMaxTurns: 3, HistoryWindow: 10},
		postgres.NewTxManager(client),
		ChatRepositories{
			Personas:     postgres.NewPersonaRepository(client),
			Scenarios:    postgres.NewScenarioRepository(client),
			ScenarioRuns: scenarioRuns,
			PersonaRuns:  personaRuns,
			Messages:     messages,
		},
		env.cache, env.events, nil, env.reply,
	)
	env.feedback = NewFeedbackService(
		FeedbackOptions{RateLimit: 5},
		FeedbackRepositories{
			ScenarioRuns: scenarioRuns,
			PersonaRuns:  personaRuns,
			Messages:     messages,
			Feedbacks:    postgres.NewFeedbackRepository(client),
		},
		env.cache, env.limiter, env.events, nil, env.report,
	)
	env.progress = NewScenarioProgress(scenarioRuns, personaRuns)
	return env
}

func (e *testEnv) seedPersona(t *testing.T, name string) *entity.Persona {
	t.Helper()
	p := &entity.Persona{
		Name:   name,
		Gender: entity.GenderFemale,
		Traits: datatypes.JSONSlice[string]{"direct"},
		Images: datatypes.NewJSONType(entity.PersonaImages{Base: "https://cdn.example.com/" + name + ".png"}),
	}
	require.NoError(t, postgres.NewPersonaRepository(e.client).Create(context.Background(), p))
	return p
}

func (e *testEnv) seedScenario(t *testing.T, maxTurns int, personaIDs ...string) *entity.Scenario {
	t.Helper()
	s := &entity.Scenario{
		Title:      "Quarterly review",
		Objectives: datatypes.JSONSlice[string]{"agree on goals"},
		PersonaIDs: personaIDs,
		MaxTurns:   maxTurns,
	}
	require.NoError(t, postgres.NewScenarioRepository(e.client).Create(context.Background(), s))
	return s
}

type memCache struct {
	mu          sync.Mutex
	data        map[string][]byte
	invalidated []string
	loads       map[string]int

	loadMu sync.Mutex
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte), loads: make(map[string]int)}
}

// GetOrLoadSafe 串行回源，命中后不再调用 loader
func (c *memCache) GetOrLoadSafe(ctx context.Context, key string, ttl time.Duration, loader func() (any, error)) ([]byte, error) {
	if v, err := c.Get(ctx, key); err == nil {
		return v, nil
	}
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	if v, err := c.Get(ctx, key); err == nil {
		return v, nil
	}
	c.mu.Lock()
	c.loads[key]++
	c.mu.Unlock()
	data, err := loader()
	if err != nil {
		return nil, err
	}
	if err := c.Set(ctx, key, data, ttl); err != nil {
		return nil, err
	}
	return c.Get(ctx, key)
}

func (c *memCache) loadCount(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loads[key]
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, service.ErrCacheMiss
	}
	return v, nil
}

func (c *memCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = b
	return nil
}

func (c *memCache) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	_, exists := c.data[key]
	c.mu.Unlock()
	if exists {
		return false, nil
	}
	return true, c.Set(ctx, key, value, ttl)
}

func (c *memCache) Invalidate(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
		c.invalidated = append(c.invalidated, k)
	}
	return nil
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*messaging.ConversationEvent
}

func (p *recordingPublisher) PublishConversationEvent(_ context.Context, evt *messaging.ConversationEvent) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return "0-1", nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type stubReply struct {
	err   error
	calls atomic.Int32
	last  *wfmodel.PersonaReplyInput
}

func (s *stubReply) Generate(_ context.Context, in *wfmodel.PersonaReplyInput) (*wfmodel.PersonaReplyOutput, error) {
	s.calls.Add(1)
	s.last = in
	if s.err != nil {
		return nil, s.err
	}
	return &wfmodel.PersonaReplyOutput{Reply: wfmodel.PersonaReply{
		Message:       "reply to " + in.UserMessage,
		Emotion:       "happy",
		EmotionReason: "heard",
	}}, nil
}

type stubReport struct {
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (s *stubReport) Generate(_ context.Context, _ *wfmodel.FeedbackGenerateInput) (*wfmodel.FeedbackGenerateOutput, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	return &wfmodel.FeedbackGenerateOutput{Report: wfmodel.FeedbackReport{
		OverallScore: 82,
		Scores: []entity.ScoreItem{
			{Category: "empathy", Name: "Empathy", Score: 80, Feedback: "good"},
		},
		DetailedFeedback: entity.DetailedFeedback{Strengths: []string{"clear"}},
	}}, nil
}

type stubLimiter struct {
	allow bool
}

func (l *stubLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return l.allow, nil
}
