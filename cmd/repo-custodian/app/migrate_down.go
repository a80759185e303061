package app

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/crpaas/repo-custodian/database"
)

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert database migrations",
	Long: `Migrate the database schema down by reverting migrations.
WARNING: This operation can result in data loss. Use with caution.

Examples:
  # Migrate down by 1 step
  repo-custodian migrate down --config config.yaml --num-steps 1 --yes

  # Migrate down all the way (WARNING: destroys all data)
  repo-custodian migrate down --config config.yaml --yes`,
	RunE: runMigrateDown,
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	dbCfg, err := loadDatabaseConfig(cmd)
	if err != nil {
		return err
	}

	numSteps, err := cmd.Flags().GetUint("num-steps")
	if err != nil {
		return fmt.Errorf("failed to get num-steps flag: %w", err)
	}

	if err := confirmMigrateDown(cmd, numSteps); err != nil {
		return err
	}

	connString, err := dbCfg.GetConnectionString()
	if err != nil {
		return fmt.Errorf("failed to build connection string: %w", err)
	}

	if err := executeMigrateDown(connString, numSteps); err != nil {
		return err
	}

	displayMigrationVersion(connString, numSteps)
	return nil
}

func confirmMigrateDown(cmd *cobra.Command, numSteps uint) error {
	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return fmt.Errorf("failed to get yes flag: %w", err)
	}

	if yes {
		return nil
	}

	var prompt string
	if numSteps == 0 {
		prompt = "WARNING: This will migrate down ALL steps and may result in complete data loss. Continue?"
	} else {
		prompt = fmt.Sprintf("WARNING: This will migrate down %d step(s) and may result in data loss. Continue?", numSteps)
	}

	if !confirm(prompt) {
		slog.Info("Migration cancelled")
		return fmt.Errorf("migration cancelled by user")
	}

	return nil
}

func executeMigrateDown(connString string, numSteps uint) error {
	if numSteps == 0 {
		slog.Warn("Migrating down all steps, this removes the whole schema")
		if err := database.MigrateDown(connString); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		slog.Info("Migration completed successfully")
		return nil
	}

	// Check for overflow before conversion
	if numSteps > math.MaxInt {
		return fmt.Errorf("number of steps exceeds maximum allowed value")
	}

	m, err := database.NewFromConnectionString(connString)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	slog.Info("Migrating down", "steps", numSteps)
	if err := m.Steps(-1 * int(numSteps)); err != nil { // #nosec G115 -- overflow checked above
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Info("No migrations to revert, database is already at the oldest version")
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("Migration completed successfully")
	return nil
}

func displayMigrationVersion(connString string, numSteps uint) {
	version, dirty, ok, err := database.Version(connString)
	switch {
	case err != nil:
		slog.Warn("Failed to read migration version", "error", err)
	case !ok:
		if numSteps == 0 {
			slog.Info("Database schema has been completely removed")
		}
	case dirty:
		slog.Warn("Migration version is dirty, manual intervention may be required", "version", version)
	default:
		slog.Info("Current migration version", "version", version)
	}
}
