package cli

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"live-quiz-service/internal/catalog"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/postgres"
)

func newImportCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "import [file or directory]",
		Short: "Validate quiz files and upsert them into Postgres",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			source := cfg.Quiz.Dir
			if len(args) == 1 {
				source = args[0]
			}
			quizzes, err := readQuizzes(source)
			if err != nil {
				return err
			}

			log := newLogger(cfg)
			ctx := cmd.Context()
			if err := runMigrations(ctx, cfg, log, false); err != nil {
				return err
			}
			db := postgres.OpenBun(cfg.Postgres.URL)
			defer db.Close()

			importer := postgres.NewImporter(db)
			for _, quiz := range quizzes {
				if err := importer.Import(ctx, quiz); err != nil {
					return fmt.Errorf("import %s: %w", quiz.ID, err)
				}
				log.WithFields(logrus.Fields{"quiz": quiz.ID, "questions": len(quiz.Questions)}).Info("quiz imported")
			}
			return nil
		},
	}
}

func readQuizzes(source string) ([]domain.Quiz, error) {
	info, err := os.Stat(source)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return catalog.ReadDir(source)
	}
	quiz, err := catalog.ReadFile(source)
	if err != nil {
		return nil, err
	}
	return []domain.Quiz{quiz}, nil
}
