package roleplay

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roleplay-coach-api/internal/domain/entity"
	"roleplay-coach-api/internal/domain/repository"
	"roleplay-coach-api/internal/domain/service"
	"roleplay-coach-api/internal/infrastructure/messaging"
	apperrors "roleplay-coach-api/pkg/errors"
)

const userID = "user-1"

func TestCreatePersonaRun_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []CreatePersonaRunInput{
		{Mode: entity.ConversationModeMessenger, Difficulty: 2},
		{PersonaID: "p", Mode: "video", Difficulty: 2},
		{PersonaID: "p", Mode: entity.ConversationModeMessenger, Difficulty: 0},
		{PersonaID: "p", Mode: entity.ConversationModeMessenger, Difficulty: 5},
	}
	for _, in := range cases {
		_, err := env.chat.CreatePersonaRun(ctx, userID, in)
		require.ErrorIs(t, err, apperrors.ErrInvalidParam)
	}
}

func TestCreatePersonaRun_DirectConversation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	persona := env.seedPersona(t, "lin")

	run, err := env.chat.CreatePersonaRun(ctx, userID, CreatePersonaRunInput{
		PersonaID:  persona.ID,
		Mode:       entity.ConversationModeMessenger,
		Difficulty: 2,
	})
	require.NoError(t, err)
	require.NotNil(t, run.ScenarioRunID)
	assert.Equal(t, "lin", run.PersonaName)
	assert.Equal(t, persona.ID, run.PersonaSnapshot.Data().PersonaID)

	sr, err := env.chat.GetScenarioRun(ctx, userID, *run.ScenarioRunID)
	require.NoError(t, err)
	assert.Equal(t, entity.ConversationTypePersonaDirect, sr.ConversationType)
	assert.Nil(t, sr.ScenarioID)

	assert.Contains(t, env.cache.invalidated, service.UserActiveConversationsKey(userID))
	assert.Contains(t, env.cache.invalidated, service.PersonaRunKey(run.ID))
	assert.Equal(t, []string{messaging.EventPersonaRunCreated}, env.events.types())
}

func TestCreatePersonaRun_NotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.chat.CreatePersonaRun(ctx, userID, CreatePersonaRunInput{
		PersonaID: "00000000-0000-0000-0000-000000000000", Mode: entity.ConversationModeMessenger, Difficulty: 1,
	})
	require.ErrorIs(t, err, apperrors.ErrPersonaNotFound)
	assert.True(t, apperrors.IsNotFound(err))

	persona := env.seedPersona(t, "lin")
	_, err = env.chat.CreatePersonaRun(ctx, userID, CreatePersonaRunInput{
		PersonaID: persona.ID, ScenarioRunID: "missing", Mode: entity.ConversationModeMessenger, Difficulty: 1,
	})
	require.ErrorIs(t, err, apperrors.ErrScenarioRunNotFound)
}

func TestCreatePersonaRun_ScenarioFlowRejectsDuplicates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.seedPersona(t, "a")
	b := env.seedPersona(t, "b")
	outsider := env.seedPersona(t, "outsider")
	scenario := env.seedScenario(t, 4, a.ID, b.ID)

	first, err := env.chat.CreatePersonaRun(ctx, userID, CreatePersonaRunInput{
		PersonaID: a.ID, ScenarioID: scenario.ID, Mode: entity.ConversationModeMessenger, Difficulty: 3,
	})
	require.NoError(t, err)
	srID := *first.ScenarioRunID

	second, err := env.chat.CreatePersonaRun(ctx, userID, CreatePersonaRunInput{
		PersonaID: b.ID, ScenarioRunID: srID, Mode: entity.ConversationModeRealtimeVoice, Difficulty: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, second.SequenceIndex)

	_, err = env.chat.CreatePersonaRun(ctx, userID, CreatePersonaRunInput{
		PersonaID: a.ID, ScenarioRunID: srID, Mode: entity.ConversationModeMessenger, Difficulty: 3,
	})
	require.ErrorIs(t, err, apperrors.ErrDuplicatePersonaRun)

	_, err = env.chat.CreatePersonaRun(ctx, userID, CreatePersonaRunInput{
		PersonaID: outsider.ID, ScenarioRunID: srID, Mode: entity.ConversationModeMessenger, Difficulty: 3,
	})
	require.ErrorIs(t, err, apperrors.ErrInvalidParam)

	found, err := env.chat.FindPersonaRun(ctx, userID, srID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, found.ID)

	runs, err := env.chat.ListScenarioPersonaRuns(ctx, userID, srID)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	_, err = env.chat.FindPersonaRun(ctx, "someone-else", srID, b.ID)
	require.ErrorIs(t, err, apperrors.ErrScenarioRunNotFound)
}

func TestSendMessage_CompletesAtMaxTurns(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	persona := env.seedPersona(t, "lin")
	scenario := env.seedScenario(t, 2, persona.ID)

	run, err := env.chat.CreatePersonaRun(ctx, userID, CreatePersonaRunInput{
		PersonaID: persona.ID, ScenarioID: scenario.ID, Mode: entity.ConversationModeMessenger, Difficulty: 2,
	})
	require.NoError(t, err)

	res, err := env.chat.SendMessage(ctx, userID, run.ID, "hello")
	require.NoError(t, err)
	assert.Equal(t, entity.SenderUser, res.UserMessage.Sender)
	assert.Equal(t, "reply to hello", res.AIMessage.Message)
	assert.Equal(t, "happy", res.AIMessage.Emotion)
	assert.Equal(t, 1, res.Run.TurnCount)
	assert.False(t, res.Run.IsCompleted())
	assert.Equal(t, "Quarterly review", env.reply.last.ScenarioTitle)

	res, err = env.chat.SendMessage(ctx, userID, run.ID, "second")
	require.NoError(t, err)
	assert.True(t, res.Run.IsCompleted())
	require.Len(t, env.reply.last.History, 2)

	_, err = env.chat.SendMessage(ctx, userID, run.ID, "third")
	require.ErrorIs(t, err, apperrors.ErrRunCompleted)

	msgs, err := env.chat.ListMessages(ctx, userID, run.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, "hello", msgs[0].Message)
	assert.Equal(t, "reply to second", msgs[3].Message)

	assert.Contains(t, env.events.types(), messaging.EventPersonaRunCompleted)
}

func TestSendMessage_ReplyFailureStoresNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	persona := env.seedPersona(t, "lin")
	run, err := env.chat.CreatePersonaRun(ctx, userID, CreatePersonaRunInput{
		PersonaID: persona.ID, Mode: entity.ConversationModeMessenger, Difficulty: 2,
	})
	require.NoError(t, err)

	env.reply.err = errors.New("upstream timeout")
	_, err = env.chat.SendMessage(ctx, userID, run.ID, "hello")
	require.ErrorIs(t, err, apperrors.ErrPersonaReplyFailed)

	msgs, err := env.chat.ListMessages(ctx, userID, run.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	_, err = env.chat.SendMessage(ctx, userID, run.ID, "   ")
	require.ErrorIs(t, err, apperrors.ErrInvalidParam)
}

func TestCompleteRun_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	persona := env.seedPersona(t, "lin")
	run, err := env.chat.CreatePersonaRun(ctx, userID, CreatePersonaRunInput{
		PersonaID: persona.ID, Mode: entity.ConversationModeMessenger, Difficulty: 2,
	})
	require.NoError(t, err)

	done, err := env.chat.CompleteRun(ctx, userID, run.ID)
	require.NoError(t, err)
	assert.True(t, done.IsCompleted())

	again, err := env.chat.CompleteRun(ctx, userID, run.ID)
	require.NoError(t, err)
	assert.Equal(t, done.CompletedAt.Unix(), again.CompletedAt.Unix())

	completedEvents := 0
	for _, typ := range env.events.types() {
		if typ == messaging.EventPersonaRunCompleted {
			completedEvents++
		}
	}
	assert.Equal(t, 1, completedEvents)

	_, err = env.chat.CompleteRun(ctx, "other-user", run.ID)
	require.ErrorIs(t, err, apperrors.ErrPersonaRunNotFound)
}

func TestActiveConversations_CacheInvalidatedOnClose(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	persona := env.seedPersona(t, "lin")
	run, err := env.chat.CreatePersonaRun(ctx, userID, CreatePersonaRunInput{
		PersonaID: persona.ID, Mode: entity.ConversationModeMessenger, Difficulty: 2,
	})
	require.NoError(t, err)

	page, err := env.chat.ListActiveConversations(ctx, userID, repository.NewPagination(1, 20))
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.True(t, env.cache.has(service.UserActiveConversationsKey(userID)))

	require.NoError(t, env.chat.CloseConversation(ctx, userID, run.ID))
	assert.False(t, env.cache.has(service.UserActiveConversationsKey(userID)))

	page, err = env.chat.ListActiveConversations(ctx, userID, repository.NewPagination(1, 20))
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	// 关闭不删除数据
	got, err := env.chat.GetPersonaRun(ctx, userID, run.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.ClosedAt)

	require.NoError(t, env.chat.CloseConversation(ctx, userID, run.ID))
}

func TestGetPersonaRun_ServesFromCacheAndChecksOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	persona := env.seedPersona(t, "lin")
	run, err := env.chat.CreatePersonaRun(ctx, userID, CreatePersonaRunInput{
		PersonaID: persona.ID, Mode: entity.ConversationModeMessenger, Difficulty: 2,
	})
	require.NoError(t, err)

	_, err = env.chat.GetPersonaRun(ctx, userID, run.ID)
	require.NoError(t, err)
	require.True(t, env.cache.has(service.PersonaRunKey(run.ID)))

	cached, err := env.chat.GetPersonaRun(ctx, userID, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "lin", cached.PersonaSnapshot.Data().Name)

	_, err = env.chat.GetPersonaRun(ctx, "intruder", run.ID)
	require.ErrorIs(t, err, apperrors.ErrPersonaRunNotFound)
}

func TestGetPersonaRun_LoadsOncePerKey(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	persona := env.seedPersona(t, "lin")
	run, err := env.chat.CreatePersonaRun(ctx, userID, CreatePersonaRunInput{
		PersonaID: persona.ID, Mode: entity.ConversationModeMessenger, Difficulty: 2,
	})
	require.NoError(t, err)
	key := service.PersonaRunKey(run.ID)

	for i := 0; i < 3; i++ {
		got, err := env.chat.GetPersonaRun(ctx, userID, run.ID)
		require.NoError(t, err)
		assert.Equal(t, run.ID, got.ID)
	}
	assert.Equal(t, 1, env.cache.loadCount(key))

	_, err = env.chat.GetPersonaRun(ctx, userID, "00000000-0000-0000-0000-000000000000")
	require.ErrorIs(t, err, apperrors.ErrPersonaRunNotFound)
	assert.False(t, env.cache.has(service.PersonaRunKey("00000000-0000-0000-0000-000000000000")))
}

func TestListActiveConversations_NonDefaultPageSkipsCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	persona := env.seedPersona(t, "lin")
	_, err := env.chat.CreatePersonaRun(ctx, userID, CreatePersonaRunInput{
		PersonaID: persona.ID, Mode: entity.ConversationModeMessenger, Difficulty: 2,
	})
	require.NoError(t, err)

	page, err := env.chat.ListActiveConversations(ctx, userID, repository.NewPagination(1, 5))
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 0, env.cache.loadCount(service.UserActiveConversationsKey(userID)))

	_, err = env.chat.ListActiveConversations(ctx, userID, repository.NewPagination(1, 20))
	require.NoError(t, err)
	_, err = env.chat.ListActiveConversations(ctx, userID, repository.NewPagination(1, 20))
	require.NoError(t, err)
	assert.Equal(t, 1, env.cache.loadCount(service.UserActiveConversationsKey(userID)))
}
