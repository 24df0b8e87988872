package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/shopfloor-backend/pkg/config"
	"github.com/angelmondragon/shopfloor-backend/pkg/db"
	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
	"github.com/angelmondragon/shopfloor-backend/pkg/migrate"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

func main() {
	opts := options{}
	flag.StringVar(&opts.cmd, "cmd", "up", "migration command: up|down|status|redo|version|create|validate")
	flag.StringVar(&opts.dir, "dir", "", "goose migrations directory (default: embedded set)")
	flag.StringVar(&opts.name, "name", "", "migration name (for create)")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	_ = godotenv.Load()

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": opts.cmd,
		"dir": opts.dir,
	})

	if err := run(ctx, cfg, logg, opts); err != nil {
		logg.Error(ctx, "migrate failed", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run handles the offline commands first; everything else needs a database.
func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, opts options) error {
	if handled, err := runOffline(opts); handled {
		return err
	}
	if err := checkOnline(opts); err != nil {
		return err
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return fmt.Errorf("extract sql.DB: %w", err)
	}
	runner, err := migrate.NewRunner(sqlDB, opts.dir)
	if err != nil {
		return err
	}
	steps, err := runOnline(ctx, runner, opts)
	if err != nil {
		return err
	}
	for _, step := range steps {
		fmt.Println(step)
	}
	logg.Info(logg.WithField(ctx, "steps", len(steps)), "migrate finished")
	return nil
}

func runOffline(opts options) (bool, error) {
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			return true, errors.New("missing -name for create")
		}
		target := opts.dir
		if target == "" {
			target = migrate.SourceDir
		}
		path, err := migrate.CreateSQLMigration(target, opts.name)
		if err != nil {
			return true, fmt.Errorf("create migration: %w", err)
		}
		fmt.Println("created migration:", path)
		return true, nil
	case "validate":
		if err := migrate.ValidateDir(opts.dir); err != nil {
			return true, fmt.Errorf("migration validation failed: %w", err)
		}
		fmt.Println("migration validation passed")
		return true, nil
	}
	return false, nil
}

// checkOnline rejects bad flags before a database connection is opened.
func checkOnline(opts options) error {
	switch opts.cmd {
	case migrate.CommandUp, migrate.CommandDown, migrate.CommandStatus, migrate.CommandRedo:
		return nil
	case "version":
		if opts.version == "" {
			return errors.New("missing -version for version command")
		}
		_, err := migrate.ParseVersion(opts.version)
		return err
	}
	return fmt.Errorf("unknown -cmd value: %s", opts.cmd)
}

func runOnline(ctx context.Context, runner *migrate.Runner, opts options) ([]migrate.Step, error) {
	if opts.cmd == "version" {
		target, err := migrate.ParseVersion(opts.version)
		if err != nil {
			return nil, err
		}
		return runner.MigrateTo(ctx, target)
	}
	return runner.Apply(ctx, opts.cmd)
}
