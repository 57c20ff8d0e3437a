package main

// Applies the submission-history schema to the configured database:
//   go run ./cmd/migrate

import (
	"context"
	"log"

	"psycho-client/internal/shared/config"
	"psycho-client/internal/shared/storage/db"
)

func main() {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; nothing to migrate")
	}
	ctx := context.Background()

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultMigrateOptions()))
	if err != nil {
		log.Fatalf("connect history database: %v", err)
	}
	defer sqlDB.Close()

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		log.Fatalf("apply history migrations: %v", err)
	}
	log.Print("history schema is up to date")
}
