package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/partsdirect-backend/pkg/config"
	"github.com/angelmondragon/partsdirect-backend/pkg/db"
	"github.com/angelmondragon/partsdirect-backend/pkg/logger"
	"github.com/angelmondragon/partsdirect-backend/pkg/migrate"
)

func main() {
	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|create|validate")
	dir := flag.String("dir", migrate.SourceDir, "source directory for -cmd=create")
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	ctx := context.Background()

	// create and validate work on files only
	switch *cmd {
	case "create":
		if *name == "" {
			exit(ctx, logg, "missing -name for create", nil)
		}
		path, err := migrate.CreateSQLMigration(*dir, *name, time.Now())
		if err != nil {
			exit(ctx, logg, "failed to create migration", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		if err := migrate.Validate(migrate.Migrations()); err != nil {
			exit(ctx, logg, "migration validation failed", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		exit(ctx, logg, "failed to load config", err)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Env:         cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithField(ctx, "cmd", *cmd)

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		exit(ctx, logg, "failed to bootstrap database", err)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		exit(ctx, logg, "failed to extract sql.DB", err)
	}
	runner, err := migrate.NewRunner(sqlDB, migrate.Migrations())
	if err != nil {
		exit(ctx, logg, "failed to build migration runner", err)
	}

	switch *cmd {
	case "up":
		results, err := runner.Up(ctx)
		report(results)
		if err != nil {
			exit(ctx, logg, "goose up failed", err)
		}
	case "down":
		res, err := runner.Down(ctx)
		if err != nil {
			exit(ctx, logg, "goose down failed", err)
		}
		if res != nil {
			report([]migrate.Result{*res})
		}
	case "status":
		lines, err := runner.Status(ctx)
		if err != nil {
			exit(ctx, logg, "goose status failed", err)
		}
		for _, line := range lines {
			state := "pending"
			if line.Applied {
				state = "applied"
			}
			fmt.Printf("%-8s %d %s\n", state, line.Version, line.Path)
		}
	case "version":
		if *version == "" {
			exit(ctx, logg, "missing -version for version command", nil)
		}
		results, err := runner.MigrateTo(ctx, *version)
		report(results)
		if err != nil {
			exit(ctx, logg, "goose version migrate failed", err)
		}
	default:
		exit(ctx, logg, fmt.Sprintf("unknown -cmd value %q", *cmd), nil)
	}
	logg.Info(ctx, "migrate done")
}

func report(results []migrate.Result) {
	for _, res := range results {
		fmt.Printf("%-4s %d %s (%s)\n", res.Direction, res.Version, res.Path, res.Duration)
	}
}

func exit(ctx context.Context, logg *logger.Logger, msg string, err error) {
	logg.Error(ctx, msg, err)
	os.Exit(1)
}
