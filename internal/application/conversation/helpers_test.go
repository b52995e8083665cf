package conversation

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"roleplay-coach-api/internal/domain/entity"
)

func notFound() error {
	return &APIError{Status: http.StatusNotFound, Code: "3003", Message: "not found"}
}

// gate 阻塞某个后端调用直到被放行，并在返回后通知
type gate struct {
	release  chan struct{}
	returned chan struct{}
}

func newGate() *gate {
	return &gate{release: make(chan struct{}), returned: make(chan struct{})}
}

func (g *gate) wait(ctx context.Context) error {
	if g == nil {
		return nil
	}
	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *gate) done() {
	if g != nil {
		close(g.returned)
	}
}

type fakeBackend struct {
	mu           sync.Mutex
	runs         map[string]*PersonaRun
	scenarioRuns map[string]*ScenarioRun
	messages     map[string][]ChatMessage
	feedback     map[string]*Feedback
	active       []ConversationSummary
	calls        map[string]int
	seq          int

	runGate      *gate
	scenarioGate *gate
	messagesGate *gate
	generateGate chan struct{}

	messagesErr    error
	getFeedbackErr error
	generateErr    error
	createErr      error
	activeErr      error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		runs:         make(map[string]*PersonaRun),
		scenarioRuns: make(map[string]*ScenarioRun),
		messages:     make(map[string][]ChatMessage),
		feedback:     make(map[string]*Feedback),
		calls:        make(map[string]int),
	}
}

func (b *fakeBackend) count(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[name]
}

func (b *fakeBackend) record(name string) {
	b.mu.Lock()
	b.calls[name]++
	b.mu.Unlock()
}

func (b *fakeBackend) addRun(run *PersonaRun) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.runs[run.ID] = run
}

func (b *fakeBackend) addScenarioRun(sr *ScenarioRun) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scenarioRuns[sr.ID] = sr
}

func (b *fakeBackend) CreatePersonaRun(_ context.Context, req CreatePersonaRunRequest) (*PersonaRun, error) {
	b.record("CreatePersonaRun")
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.createErr != nil {
		return nil, b.createErr
	}
	if req.ScenarioRunID != "" {
		for _, r := range b.runs {
			if r.ScenarioRunID == req.ScenarioRunID && r.PersonaID == req.PersonaID {
				return nil, &APIError{Status: http.StatusConflict, Code: "4006", Message: "duplicate"}
			}
		}
	}
	b.seq++
	run := &PersonaRun{
		ID:            fmt.Sprintf("run-%d", b.seq),
		PersonaID:     req.PersonaID,
		PersonaName:   "persona " + req.PersonaID,
		ScenarioRunID: req.ScenarioRunID,
		Status:        entity.PersonaRunStatusActive,
		Mode:          req.Mode,
		Difficulty:    req.Difficulty,
	}
	b.runs[run.ID] = run
	cp := *run
	return &cp, nil
}

func (b *fakeBackend) GetPersonaRun(ctx context.Context, id string) (*PersonaRun, error) {
	b.record("GetPersonaRun")
	defer b.runGate.done()
	if err := b.runGate.wait(ctx); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.runs[id]
	if !ok {
		return nil, notFound()
	}
	cp := *r
	return &cp, nil
}

func (b *fakeBackend) GetScenarioRun(ctx context.Context, id string) (*ScenarioRun, error) {
	b.record("GetScenarioRun")
	defer b.scenarioGate.done()
	if err := b.scenarioGate.wait(ctx); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	sr, ok := b.scenarioRuns[id]
	if !ok {
		return nil, notFound()
	}
	cp := *sr
	return &cp, nil
}

func (b *fakeBackend) FindPersonaRun(_ context.Context, scenarioRunID, personaID string) (*PersonaRun, error) {
	b.record("FindPersonaRun")
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.runs {
		if r.ScenarioRunID == scenarioRunID && r.PersonaID == personaID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, notFound()
}

func (b *fakeBackend) ListMessages(ctx context.Context, personaRunID string) ([]ChatMessage, error) {
	b.record("ListMessages")
	defer b.messagesGate.done()
	if err := b.messagesGate.wait(ctx); err != nil {
		return nil, err
	}
	if b.messagesErr != nil {
		return nil, b.messagesErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]ChatMessage(nil), b.messages[personaRunID]...), nil
}

func (b *fakeBackend) SendMessage(_ context.Context, personaRunID, text string) (*Exchange, error) {
	b.record("SendMessage")
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.runs[personaRunID]
	if !ok {
		return nil, notFound()
	}
	r.TurnCount++
	user := ChatMessage{ID: fmt.Sprintf("m-%d", len(b.messages[personaRunID])+1), PersonaRunID: personaRunID, Sender: entity.SenderUser, Message: text}
	ai := ChatMessage{ID: fmt.Sprintf("m-%d", len(b.messages[personaRunID])+2), PersonaRunID: personaRunID, Sender: entity.SenderAI, Message: "reply"}
	b.messages[personaRunID] = append(b.messages[personaRunID], user, ai)
	return &Exchange{UserMessage: user, AIMessage: ai, Run: *r}, nil
}

func (b *fakeBackend) CompleteRun(_ context.Context, personaRunID string) (*PersonaRun, error) {
	b.record("CompleteRun")
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.runs[personaRunID]
	if !ok {
		return nil, notFound()
	}
	r.Status = entity.PersonaRunStatusCompleted
	cp := *r
	return &cp, nil
}

func (b *fakeBackend) GetFeedback(_ context.Context, conversationID string) (*Feedback, error) {
	b.record("GetFeedback")
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.getFeedbackErr != nil {
		return nil, b.getFeedbackErr
	}
	fb, ok := b.feedback[conversationID]
	if !ok {
		return nil, &APIError{Status: http.StatusNotFound, Code: "3005", Message: "feedback not found"}
	}
	cp := *fb
	return &cp, nil
}

func (b *fakeBackend) GenerateFeedback(ctx context.Context, conversationID string) (*Feedback, error) {
	b.record("GenerateFeedback")
	if b.generateGate != nil {
		select {
		case <-b.generateGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.generateErr != nil {
		return nil, b.generateErr
	}
	fb := sampleFeedback(conversationID)
	b.feedback[conversationID] = fb
	cp := *fb
	return &cp, nil
}

func (b *fakeBackend) CloseConversation(_ context.Context, conversationID string) error {
	b.record("CloseConversation")
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.runs[conversationID]; !ok {
		return notFound()
	}
	delete(b.runs, conversationID)
	return nil
}

func (b *fakeBackend) ListActiveConversations(_ context.Context) ([]ConversationSummary, error) {
	b.record("ListActiveConversations")
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.activeErr != nil {
		return nil, b.activeErr
	}
	return append([]ConversationSummary(nil), b.active...), nil
}

var _ Backend = (*fakeBackend)(nil)

func sampleFeedback(conversationID string) *Feedback {
	return &Feedback{
		ID:             "fb-" + conversationID,
		ConversationID: conversationID,
		OverallScore:   78,
		Scores: []entity.ScoreItem{
			{Category: "empathy", Name: "共情", Score: 80, Feedback: "能够回应对方情绪"},
		},
		DetailedFeedback: entity.DetailedFeedback{
			Strengths:    []string{"开场自然"},
			Improvements: []string{"多追问细节"},
		},
		CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func scenarioRunFixture(id string, personaIDs ...string) *ScenarioRun {
	return &ScenarioRun{
		ID:               id,
		ScenarioID:       "sc-1",
		ScenarioName:     "季度绩效面谈",
		ConversationType: entity.ConversationTypeScenario,
		Status:           entity.ScenarioRunStatusActive,
		Scenario: entity.ScenarioSnapshot{
			Title:       "季度绩效面谈",
			Description: "与下属讨论本季度表现",
			Objectives:  []string{"肯定成绩", "指出问题"},
			Timeline:    "30 分钟",
			PersonaIDs:  personaIDs,
		},
	}
}

func runFixture(id, personaID, scenarioRunID string) *PersonaRun {
	return &PersonaRun{
		ID:            id,
		PersonaID:     personaID,
		PersonaName:   "小林",
		ScenarioRunID: scenarioRunID,
		Status:        entity.PersonaRunStatusActive,
		Mode:          entity.ConversationModeMessenger,
		Difficulty:    2,
		PersonaSnapshot: entity.PersonaSnapshot{
			PersonaID: personaID,
			Name:      "小林",
			Gender:    entity.GenderFemale,
			MBTI:      "INFP",
			Images:    entity.PersonaImages{Base: "base.png", NeutralFemale: "neutral-f.png"},
		},
	}
}

func completedRunFixture(id, personaID, scenarioRunID string) *PersonaRun {
	r := runFixture(id, personaID, scenarioRunID)
	r.Status = entity.PersonaRunStatusCompleted
	return r
}
