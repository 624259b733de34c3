package cli

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"live-quiz-service/internal/config"
	"live-quiz-service/internal/infra/postgres"
	pgmigrations "live-quiz-service/internal/infra/postgres/migrations"
)

func newMigrateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			rollback, _ := cmd.Flags().GetBool("rollback")
			return runMigrations(cmd.Context(), cfg, newLogger(cfg), rollback)
		},
	}
	cmd.Flags().Bool("rollback", false, "roll back the last migration group")
	return cmd
}

func runMigrations(ctx context.Context, cfg config.Config, log *logrus.Entry, rollback bool) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	db := postgres.OpenBun(cfg.Postgres.URL)
	defer db.Close()

	if rollback {
		group, err := pgmigrations.Rollback(ctx, db)
		if err != nil {
			return err
		}
		log.WithField("group", group.String()).Info("migrations rolled back")
		return nil
	}
	group, err := pgmigrations.Apply(ctx, db)
	if err != nil {
		return err
	}
	if group.IsZero() {
		log.Info("no new migrations")
		return nil
	}
	log.WithField("group", group.String()).Info("migrations applied")
	return nil
}
