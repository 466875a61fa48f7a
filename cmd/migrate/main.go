package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"github.com/rank0/digimenu-backend/pkg/config"
	"github.com/rank0/digimenu-backend/pkg/db"
	"github.com/rank0/digimenu-backend/pkg/logger"
	"github.com/rank0/digimenu-backend/pkg/migrate"
)

const usage = "up|down|redo|status|current|to|create|validate"

func main() {
	cmd := flag.String("cmd", "up", "migration command: "+usage)
	dir := flag.String("dir", migrate.DefaultDir, "migrations directory; the default uses the copy embedded in this binary")
	name := flag.String("name", "", "migration name for -cmd=create")
	target := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=to")
	flag.Parse()

	_ = godotenv.Load()
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	// create and validate only touch files, so they run without database config.
	switch *cmd {
	case "create":
		if *name == "" {
			fail("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(*dir, *name, time.Now())
		if err != nil {
			fail("create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		if err := migrate.Validate(migrate.Source(*dir)); err != nil {
			fail("migration validation failed: %v", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	cfg, err := config.LoadMigration()
	if err != nil {
		fail("load config: %v", err)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "connect to menu database", err)
		os.Exit(1)
	}
	defer dbClient.Close()
	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		logg.Error(ctx, "extract sql.DB", err)
		os.Exit(1)
	}

	runner, err := migrate.NewRunner(sqlDB, goose.DialectPostgres, migrate.Source(*dir), logg)
	if err != nil {
		logg.Error(ctx, "prepare migrations", err)
		os.Exit(1)
	}

	switch *cmd {
	case "up", "down", "redo", "status":
		err = runner.Run(ctx, *cmd)
	case "current":
		var version int64
		if version, err = runner.Version(ctx); err == nil {
			fmt.Println(version)
		}
	case "to":
		if *target == "" {
			fail("missing -version for -cmd=to")
		}
		err = runner.To(ctx, *target)
	default:
		fail("unknown -cmd %q (want %s)", *cmd, usage)
	}
	if err != nil {
		logg.Error(ctx, "migration command failed", err)
		os.Exit(1)
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
