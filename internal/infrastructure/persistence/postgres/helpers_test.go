package postgres

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"roleplay-coach-api/internal/domain/entity"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	client := NewClientWithDB(db)
	require.NoError(t, client.AutoMigrate(context.Background()))
	return client
}

func seedPersona(t *testing.T, client *Client, name string) *entity.Persona {
	t.Helper()

	p := &entity.Persona{
		Name:   name,
		Gender: entity.GenderFemale,
		Traits: datatypes.JSONSlice[string]{"calm"},
		Images: datatypes.NewJSONType(entity.PersonaImages{
			Base:          "https://cdn.example.com/" + name + "/base.png",
			NeutralFemale: "https://cdn.example.com/" + name + "/neutral_female.png",
		}),
	}
	require.NoError(t, NewPersonaRepository(client).Create(context.Background(), p))
	return p
}

func seedScenarioRun(t *testing.T, client *Client, personaIDs ...string) *entity.ScenarioRun {
	t.Helper()

	scenario := &entity.Scenario{
		Title:      "Quarterly review",
		Objectives: datatypes.JSONSlice[string]{"agree on goals"},
		PersonaIDs: personaIDs,
		MaxTurns:   4,
	}
	require.NoError(t, NewScenarioRepository(client).Create(context.Background(), scenario))

	run := entity.NewScenarioRun("user-1", scenario)
	require.NoError(t, NewScenarioRunRepository(client).Create(context.Background(), run))
	return run
}
