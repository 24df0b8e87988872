package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/shopfloor-backend/pkg/config"
	"github.com/angelmondragon/shopfloor-backend/pkg/db"
	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
)

// MaybeRunDev applies the embedded migrations on startup. Only dev
// environments with SHOPFLOOR_AUTO_MIGRATE set do this; everywhere else the
// migrate binary owns schema changes.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if cfg == nil || !cfg.App.IsDev() || !cfg.DB.AutoMigrate {
		return nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	runner, err := NewRunner(sqlDB, "")
	if err != nil {
		return err
	}

	steps, err := runner.Apply(ctx, CommandUp)
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"env":     cfg.App.Env,
			"applied": len(steps),
		}), "dev auto-migrate finished")
	}
	return nil
}
