package main

import (
	"context"
	"flag"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tiergate/internal/adapters/config"
	pgclient "tiergate/internal/adapters/postgres"
	"tiergate/internal/domain/profile"
	pgrepo "tiergate/internal/repository/postgres"
	"tiergate/pkg/logger"
)

func main() {
	file := flag.String("file", "mock_database.json", "Profiles to upsert")
	dryRun := flag.Bool("dry-run", false, "Validate the file without writing")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()
	log.Infow("Starting seeder", "file", *file, "dry_run", *dryRun, "database", cfg.Postgres.Database)

	seeds, err := profile.LoadSeedFile(*file)
	if err != nil {
		log.Fatalf("Failed to read seed file: %v", err)
	}

	for _, s := range seeds.Users {
		if _, err := s.ToProfile(bcrypt.MinCost); err != nil {
			log.Fatalf("Invalid seed %q: %v", s.Username, err)
		}
	}

	if *dryRun {
		log.Infow("✅ Dry-run mode: seed file validated", "profiles", len(seeds.Users))
		return
	}

	if !cfg.Postgres.Enabled() {
		log.Fatal("POSTGRES_HOST is required to seed profiles")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pg, err := pgclient.NewClient(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pg.Close()

	if err := pg.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	profiles := profile.NewService(pgrepo.NewProfileRepository(pg.DB()), log)
	n, err := profiles.Import(ctx, seeds.Users, bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to seed profiles: %v", err)
	}

	log.Infow("✅ Seeding completed", "profiles", n)
}
