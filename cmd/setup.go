package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/signx/internal/shared"
)

// Setup creates the config file when missing, then initializes the database and runs migrations.
// With --rollback it reverts the most recent migration instead.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath
	if configPath == "" {
		configPath = "config.toml"
	}

	var config *shared.Config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load config, using defaults", "error", err)
			config = shared.DefaultConfig()
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
			config = shared.DefaultConfig()
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err = shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
				config = shared.DefaultConfig()
			}
		}
	}

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.OpenRunDatabase(config.Database)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	if cmd.Bool("rollback") {
		m, err := shared.RollbackMigration(db)
		if err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
		r.logger.Info("rollback complete", "database", config.Database.Path, "version", m.Version)
		return r.writePlain("Rolled back migration %04d (%s)\n", m.Version, m.Name)
	}

	applied, err := shared.RunMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if config.Downloads.Dir != "" {
		if err := os.MkdirAll(config.Downloads.Dir, 0755); err != nil {
			return fmt.Errorf("failed to create downloads directory: %w", err)
		}
	}

	r.logger.Info("setup complete", "database", config.Database.Path, "applied", applied)
	return r.writePlain("✓ Run history ready at %s (%d new migrations applied)\n", config.Database.Path, applied)
}
