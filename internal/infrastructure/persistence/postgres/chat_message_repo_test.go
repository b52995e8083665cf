package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roleplay-coach-api/internal/domain/entity"
)

func TestChatMessageRepository_Ordering(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	repo := NewChatMessageRepository(client)

	p := seedPersona(t, client, "p")
	run := entity.NewPersonaRun("user-1", p, nil, entity.ConversationModeMessenger, 1)
	require.NoError(t, NewPersonaRunRepository(client).Create(ctx, run))

	texts := []string{"hello", "hi there", "how are you", "fine"}
	for i, text := range texts {
		seq, err := repo.NextSeq(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, i+1, seq)

		sender := entity.SenderUser
		if i%2 == 1 {
			sender = entity.SenderAI
		}
		require.NoError(t, repo.Create(ctx, entity.NewChatMessage(run.ID, seq, sender, text)))
	}

	all, err := repo.ListByPersonaRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i, m := range all {
		assert.Equal(t, texts[i], m.Message)
	}

	recent, err := repo.ListRecent(ctx, run.ID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "how are you", recent[0].Message)
	assert.Equal(t, "fine", recent[1].Message)
}
