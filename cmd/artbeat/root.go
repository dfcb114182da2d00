package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"artbeat/shared/go/config"
	"artbeat/shared/go/logging"
)

type versionInfo struct {
	Version string
	Commit  string
}

func newRootCommand(info versionInfo) *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           "artbeat",
		Short:         "artbeat explore feed",
		Long:          "Serves the swipeable explore feed over artists, events, venues and gallery items.",
		SilenceErrors: true,
		SilenceUsage:  true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// The env file is optional; real environment variables win.
			_ = godotenv.Load(envFile)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", "config/local.env", "dotenv file loaded before reading the environment")
	cmd.Version = fmt.Sprintf("%s.%s", info.Version, info.Commit)

	return cmd
}

// loadRuntime reads configuration and builds the process logger.
func loadRuntime() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
		Rotation: logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Compress:   cfg.Logging.Compress,
		},
	})
	logging.SetGlobalLogger(logger)

	return cfg, logger, nil
}
