package db

import (
	"context"

	"collaborative-workspace/internal/block"
	"collaborative-workspace/internal/user"

	"github.com/rs/zerolog"
)

// Migrate runs database migrations
func Migrate() error {
	return AppDb.AutoMigrate(
		&user.User{},
		&block.Block{},
	)
}

// SeedData seeds the database with initial data (for development only)
func SeedData(log zerolog.Logger) {
	userRepo := user.NewRepository(AppDb)

	testUser := &user.User{
		Name:     "Test User",
		Email:    "test@example.com",
		Password: "password123",
		IsActive: true,
	}

	if _, err := userRepo.FindByEmail(testUser.Email); err == nil {
		log.Debug().Str("email", testUser.Email).Msg("test user already exists")
	} else if err := user.NewService(userRepo).Register(testUser); err != nil {
		log.Error().Err(err).Msg("error creating test user")
	} else {
		log.Info().Str("email", testUser.Email).Msg("created test user")
	}

	welcome := &block.Block{
		WorkspaceID: "demo",
		DocumentID:  "welcome",
		BlockID:     "intro",
		Content:     "# Welcome\n\nOpen this document in two tabs and start typing.",
		Version:     1,
		BlockType:   "heading",
	}
	if err := block.NewRepository(AppDb).Upsert(context.Background(), welcome); err != nil {
		log.Error().Err(err).Msg("error seeding welcome block")
	}
}
