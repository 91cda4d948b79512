package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"docflow/internal/daemon"
	"docflow/internal/logging"
	"docflow/internal/store"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the docflow daemon in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			logger, err := logging.NewWriters(cfg.Logging.Level, cfg.Logging.Format, cfg.LogFilePath())
			if err != nil {
				return fmt.Errorf("init logging: %w", err)
			}

			st, err := store.Open(cfg.DatabasePath())
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}

			d, err := daemon.New(cfg, st, logger)
			if err != nil {
				_ = st.Close()
				return err
			}
			defer func() {
				if err := d.Close(); err != nil {
					logger.Error("shutdown error", logging.Error(err))
				}
			}()

			if err := d.Start(cmd.Context()); err != nil {
				return err
			}

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			select {
			case <-cmd.Context().Done():
			case s := <-sig:
				logger.Info("signal received", logging.String("signal", s.String()))
			}
			return nil
		},
	}
}
