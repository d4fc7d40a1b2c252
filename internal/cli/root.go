package cli

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"assessment-engine/internal/config"
	"assessment-engine/internal/logging"
)

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "assessment-engine",
		Short:        "Timed assessment sessions over WebSocket",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env is optional; real environment variables win.
			_ = godotenv.Load()
		},
	}

	pf := cmd.PersistentFlags()
	pf.String("config", "config/config.yaml", "path to YAML config")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("log-format", "", "log format (text, json)")
	pf.String("log-file", "", "also write logs to this rotating file")
	pf.String("postgres-url", "", "postgres connection URL")

	cmd.AddCommand(NewStartCmd())
	cmd.AddCommand(NewMigrateCmd())
	return cmd
}

// viperForCmd binds a command's flags and ASSESSMENT_* environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("ASSESSMENT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// loadConfig reads the YAML file named by --config and applies flag/env overrides.
// A missing file is not an error: flags and environment can carry the whole configuration.
func loadConfig(v *viper.Viper) (config.Config, error) {
	path := v.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return cfg, err
		}
		slog.Warn("config file not found, using flags and environment", "path", path)
		cfg = config.Config{}
	}
	applyOverrides(&cfg, v)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyOverrides(cfg *config.Config, v *viper.Viper) {
	set := func(dst *string, key string) {
		if s := strings.TrimSpace(v.GetString(key)); s != "" {
			*dst = s
		}
	}
	set(&cfg.Server.Port, "port")
	set(&cfg.API.BaseURL, "api-url")
	set(&cfg.Redis.Addr, "redis-addr")
	set(&cfg.Postgres.URL, "postgres-url")
	set(&cfg.Log.Level, "log-level")
	set(&cfg.Log.Format, "log-format")
	set(&cfg.Log.File, "log-file")
	if brokers := v.GetStringSlice("kafka-brokers"); len(brokers) > 0 {
		cfg.Kafka.Brokers = brokers
	}
}

// setupLogging installs the configured logger as the slog default.
func setupLogging(cfg config.Config) (*slog.Logger, func()) {
	logger, closer := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}, os.Stderr)
	slog.SetDefault(logger)
	return logger, func() { _ = closer.Close() }
}
