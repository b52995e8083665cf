package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roleplay-coach-api/internal/domain/entity"
	"roleplay-coach-api/internal/domain/repository"
)

func TestPersonaRunRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	repo := NewPersonaRunRepository(client)

	persona := seedPersona(t, client, "mina")
	run := entity.NewPersonaRun("user-1", persona, nil, entity.ConversationModeMessenger, 3)
	require.NoError(t, repo.Create(ctx, run))
	require.NotEmpty(t, run.ID)

	got, err := repo.GetByID(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "mina", got.PersonaName)
	assert.Equal(t, entity.PersonaRunStatusActive, got.Status)
	assert.Equal(t, 3, got.Difficulty)
	assert.Equal(t, persona.ID, got.PersonaSnapshot.Data().PersonaID)
	assert.Equal(t, "https://cdn.example.com/mina/neutral_female.png", got.PersonaSnapshot.Data().Images.NeutralFemale)

	missing, err := repo.GetByID(ctx, "00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestPersonaRunRepository_SnapshotIsImmutable(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	repo := NewPersonaRunRepository(client)

	persona := seedPersona(t, client, "jun")
	run := entity.NewPersonaRun("user-1", persona, nil, entity.ConversationModeMessenger, 2)
	require.NoError(t, repo.Create(ctx, run))

	persona.Name = "jun (renamed)"
	require.NoError(t, client.DB().Save(persona).Error)

	got, err := repo.GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "jun", got.PersonaSnapshot.Data().Name)
}

func TestPersonaRunRepository_UniqueScenarioPersona(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	repo := NewPersonaRunRepository(client)

	a := seedPersona(t, client, "a")
	sr := seedScenarioRun(t, client, a.ID)

	first := entity.NewPersonaRun("user-1", a, &sr.ID, entity.ConversationModeMessenger, 2)
	require.NoError(t, repo.Create(ctx, first))

	dup := entity.NewPersonaRun("user-1", a, &sr.ID, entity.ConversationModeMessenger, 2)
	err := repo.Create(ctx, dup)
	assert.True(t, errors.Is(err, repository.ErrDuplicate), "got %v", err)

	found, err := repo.FindByScenarioRunAndPersona(ctx, sr.ID, a.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, first.ID, found.ID)

	// 无场景的直接对话不受唯一约束限制
	require.NoError(t, repo.Create(ctx, entity.NewPersonaRun("user-1", a, nil, entity.ConversationModeMessenger, 2)))
	require.NoError(t, repo.Create(ctx, entity.NewPersonaRun("user-1", a, nil, entity.ConversationModeMessenger, 2)))
}

func TestPersonaRunRepository_ListActiveAndClose(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	repo := NewPersonaRunRepository(client)

	p := seedPersona(t, client, "p")
	r1 := entity.NewPersonaRun("user-1", p, nil, entity.ConversationModeMessenger, 1)
	r2 := entity.NewPersonaRun("user-1", p, nil, entity.ConversationModeRealtimeVoice, 1)
	other := entity.NewPersonaRun("user-2", p, nil, entity.ConversationModeMessenger, 1)
	for _, r := range []*entity.PersonaRun{r1, r2, other} {
		require.NoError(t, repo.Create(ctx, r))
	}

	page, err := repo.ListActiveByUser(ctx, "user-1", repository.NewPagination(1, 20))
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)

	require.NoError(t, repo.Close(ctx, r1.ID, time.Now()))

	page, err = repo.ListActiveByUser(ctx, "user-1", repository.NewPagination(1, 20))
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, r2.ID, page.Items[0].ID)

	// 关闭不删除
	closed, err := repo.GetByID(ctx, r1.ID)
	require.NoError(t, err)
	require.NotNil(t, closed)
	assert.NotNil(t, closed.ClosedAt)
}

func TestPersonaRunRepository_UpdateWithinTransaction(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	repo := NewPersonaRunRepository(client)
	tx := NewTxManager(client)

	p := seedPersona(t, client, "p")
	run := entity.NewPersonaRun("user-1", p, nil, entity.ConversationModeMessenger, 1)
	require.NoError(t, repo.Create(ctx, run))

	err := tx.WithTransaction(ctx, func(ctx context.Context) error {
		locked, err := repo.GetByIDForUpdate(ctx, run.ID)
		if err != nil {
			return err
		}
		locked.RecordTurn(1, time.Now())
		return repo.Update(ctx, locked)
	})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TurnCount)
	assert.True(t, got.IsCompleted())

	boom := errors.New("boom")
	err = tx.WithTransaction(ctx, func(ctx context.Context) error {
		locked, err := repo.GetByIDForUpdate(ctx, run.ID)
		if err != nil {
			return err
		}
		locked.TurnCount = 99
		if err := repo.Update(ctx, locked); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err = repo.GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TurnCount)
}
