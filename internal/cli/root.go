package cli

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := newViper()
	cmd := &cobra.Command{
		Use:          "live-quiz",
		Short:        "Live multiplayer quiz service",
		SilenceUsage: true,
	}
	bindFlags(cmd.PersistentFlags(), v)

	cmd.AddCommand(newStartCmd(v))
	cmd.AddCommand(newMigrateCmd(v))
	cmd.AddCommand(newImportCmd(v))
	return cmd
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("QUIZLIVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// bindFlags registers the global flags. Precedence is flag, then
// environment, then config file.
func bindFlags(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("config", "config/config.yaml", "path to YAML config")
	flags.String("port", "", "port to listen on")
	flags.String("backend", "", "store backend: memory, redis or postgres")
	flags.String("log-level", "", "log level")
	flags.String("log-format", "", "log format: json or text")
	_ = v.BindPFlags(flags)
	// PORT and CONFIG_PATH are honoured as well for container platforms.
	_ = v.BindEnv("port", "QUIZLIVE_PORT", "PORT")
	_ = v.BindEnv("config", "QUIZLIVE_CONFIG", "CONFIG_PATH")
}
