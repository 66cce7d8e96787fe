package main

import (
	"fmt"

	"github.com/spf13/cobra"

	corecmd "github.com/m3rciful/shopintake/core/cmd"
	coreconfig "github.com/m3rciful/shopintake/core/config"
	"github.com/m3rciful/shopintake/core/database"
	"github.com/m3rciful/shopintake/core/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply journal database migrations",
	Long: `Apply the SQL migrations of the submission journal.

By default every pending migration is applied.
Use --steps to move n migrations (negative values roll back).
Use --down to roll back everything.`,
	RunE: runMigrate,
}

var (
	migrateDown  bool
	migrateSteps int
)

func init() {
	migrateCmd.Flags().BoolVar(&migrateDown, "down", false, "Roll back every migration")
	migrateCmd.Flags().IntVar(&migrateSteps, "steps", 0, "Apply n migrations; negative rolls back")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	var cfg coreconfig.Config
	path := corecmd.ResolveConfigPath(configPath, "", defaultConfigFile())
	if err := coreconfig.Parse(path, &cfg); err != nil {
		return err
	}
	if err := coreconfig.NormalizeDatabase(&cfg.Database); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := logger.InitLogger(&cfg); err != nil {
		return err
	}
	defer func() { _ = logger.Shutdown() }()

	return database.RunMigrations(cmd.Context(), cfg.Database, database.MigrateOptions{
		Steps: migrateSteps,
		Down:  migrateDown,
	})
}
