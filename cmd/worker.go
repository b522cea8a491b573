package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/runner/process"
	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/server"
)

func newWorkerCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:    "worker",
		Short:  "Run one assignment read from stdin (spawned by the process runner)",
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			// stdout carries the message stream.
			logger, err := newLogger(cfg, true)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck // best-effort flush
			zap.ReplaceGlobals(logger)

			rt, err := server.BuildWorker(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("build worker: %w", err)
			}
			defer rt.Close()

			if err := process.Serve(cmd.Context(), os.Stdin, os.Stdout, rt); err != nil {
				return fmt.Errorf("serve assignment: %w", err)
			}
			return nil
		},
	}
}
