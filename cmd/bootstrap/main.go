package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/datatypes"

	"roleplay-coach-api/internal/config"
	"roleplay-coach-api/internal/domain/entity"
	"roleplay-coach-api/internal/domain/repository"
	"roleplay-coach-api/internal/wire"
	"roleplay-coach-api/pkg/utils"
)

func main() {
	_ = godotenv.Load()

	fmt.Println("Starting system bootstrap...")

	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	// 2. 初始化数据层（仅 PostgreSQL）
	dataLayer, cleanup, err := wire.InitializePostgresOnly(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize data layer: %v", err)
	}
	defer cleanup()

	// 3. 迁移表结构
	if err := dataLayer.PgClient.AutoMigrate(ctx); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}
	fmt.Println("Schema migrated")

	// 4. 空库时写入示例角色与场景
	if err := seedCatalog(ctx, dataLayer.PersonaRepo, dataLayer.ScenarioRepo); err != nil {
		log.Fatalf("failed to seed catalog: %v", err)
	}

	// 5. 签发本地开发用 Token
	userID := os.Getenv("BOOTSTRAP_USER_ID")
	if userID == "" {
		userID = "dev-user"
	}
	jwtManager := utils.NewJWTManager(cfg.Security.JWT.Secret, cfg.Security.JWT.Issuer)
	for _, role := range []string{"admin", "member"} {
		pair, err := jwtManager.GenerateTokenPair(userID, role, cfg.Security.JWT.Expiration, cfg.Security.JWT.RefreshExpiration)
		if err != nil {
			log.Fatalf("failed to issue %s token: %v", role, err)
		}
		fmt.Printf("%s access token for %s:\n%s\n", role, userID, pair.AccessToken)
	}

	fmt.Println("Bootstrap completed successfully!")
}

func seedCatalog(ctx context.Context, personas repository.PersonaRepository, scenarios repository.ScenarioRepository) error {
	existing, err := personas.List(ctx, repository.NewPagination(1, 1))
	if err != nil {
		return err
	}
	if existing.Total > 0 {
		fmt.Printf("Catalog already has %d personas, skip seeding\n", existing.Total)
		return nil
	}

	seeds := []*entity.Persona{
		{
			Name:          "Mina",
			Gender:        entity.GenderFemale,
			MBTI:          "ENFP",
			Traits:        datatypes.JSONSlice[string]{"curious", "talkative"},
			SpeakingStyle: "casual, asks many follow-up questions",
			Background:    "A product designer who just moved to a new city.",
		},
		{
			Name:          "Jun",
			Gender:        entity.GenderMale,
			MBTI:          "ISTJ",
			Traits:        datatypes.JSONSlice[string]{"reserved", "precise"},
			SpeakingStyle: "short sentences, polite but distant",
			Background:    "A senior engineer who prefers facts over small talk.",
		},
	}
	ids := make([]string, 0, len(seeds))
	for _, p := range seeds {
		if err := personas.Create(ctx, p); err != nil {
			return err
		}
		ids = append(ids, p.ID)
		fmt.Printf("Persona created: %s (%s)\n", p.Name, p.ID)
	}

	scenario := &entity.Scenario{
		Title:       "Team offsite icebreaker",
		Description: "You meet two colleagues for the first time at a team offsite.",
		Objectives:  datatypes.JSONSlice[string]{"Open the conversation naturally", "Find one shared interest"},
		Timeline:    "30 minutes before the first session",
		PersonaIDs:  datatypes.JSONSlice[string](ids),
		MaxTurns:    10,
	}
	if err := scenarios.Create(ctx, scenario); err != nil {
		return err
	}
	fmt.Printf("Scenario created: %s (%s)\n", scenario.Title, scenario.ID)
	return nil
}
