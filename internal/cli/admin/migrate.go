package admin

import (
	"fmt"

	"github.com/cloo-solutions/reelrag/internal/config"
	"github.com/cloo-solutions/reelrag/internal/database"
	"github.com/spf13/cobra"
)

// MigrateCmd returns the migrate command
func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back database migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(database.MigrateUp), string(database.MigrateDown)},
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := database.MigrateUp
			if len(args) == 1 {
				direction = database.MigrateDirection(args[0])
			}
			dir, _ := cmd.Flags().GetString("migrations")

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			return database.Migrate(cfg.DatabaseURL, dir, direction)
		},
	}

	cmd.Flags().String("migrations", database.DefaultMigrationsDir, "Directory containing migration files")

	return cmd
}
