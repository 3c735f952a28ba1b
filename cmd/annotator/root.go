package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"annotation-service/internal/config"
	"annotation-service/internal/logging"
)

type commandContext struct {
	configFlag *string

	once   sync.Once
	config *config.Config
	logger *slog.Logger
	err    error
}

func (c *commandContext) ensureConfig() (*config.Config, *slog.Logger, error) {
	c.once.Do(func() {
		cfg, path, exists, err := config.Load(strings.TrimSpace(*c.configFlag))
		if err != nil {
			c.err = err
			return
		}
		logger, err := logging.New(logging.Options{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
		})
		if err != nil {
			c.err = err
			return
		}
		if exists {
			logger.Debug("config loaded", "path", path)
		} else {
			logger.Debug("config file not found, using defaults", "path", path)
		}
		c.config = cfg
		c.logger = logger
	})
	return c.config, c.logger, c.err
}

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := &commandContext{configFlag: &configFlag}

	rootCmd := &cobra.Command{
		Use:           "annotator",
		Short:         "Annotation job server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, _, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newTaskCommand(ctx))
	rootCmd.AddCommand(newUserCommand(ctx))
	return rootCmd
}
