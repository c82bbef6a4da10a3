package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/clinkchat/clinkchat-server/internal/app"
	"github.com/clinkchat/clinkchat-server/internal/config"
	"github.com/clinkchat/clinkchat-server/internal/log"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "clinkchat-server",
		Short: "Realtime chat server with rooms, polls, and a coin economy",
		RunE: func(cmd *cobra.Command, args []string) error {
			bootLogger := log.New("info")
			cfg, resolvedPath, err := config.Load(bootLogger, configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger := log.New(cfg.LogLevel)
			logger.Info().Str("config", resolvedPath).Str("addr", cfg.Addr).Msg("starting clinkchat server")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(cfg, logger)
			if err != nil {
				return err
			}

			if err := application.Run(ctx); err != nil {
				return err
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (default ./config.yaml)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
