package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/config"
	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/server"
)

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and orchestrator",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			forwardConfig(cfg, opts.cfgFile)

			logger, err := newLogger(cfg, false)
			if err != nil {
				return err
			}
			zap.ReplaceGlobals(logger)

			app, err := server.Build(cmd.Context(), cfg, logger)
			if err != nil {
				logger.Error("build application failed", zap.Error(err))
				return fmt.Errorf("build application: %w", err)
			}
			if err := app.Run(cmd.Context()); err != nil {
				return fmt.Errorf("run application: %w", err)
			}
			return nil
		},
	}
}

// forwardConfig hands the config file to worker processes so parent and
// children read the same settings.
func forwardConfig(cfg *config.Config, cfgFile string) {
	if cfgFile == "" || cfg.Orchestrator.Runner != config.RunnerProcess {
		return
	}
	for _, arg := range cfg.Orchestrator.WorkerArgs {
		if arg == "--config" {
			return
		}
	}
	cfg.Orchestrator.WorkerArgs = append(cfg.Orchestrator.WorkerArgs, "--config", cfgFile)
}
