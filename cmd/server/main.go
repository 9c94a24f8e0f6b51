package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pipe-rush/server/internal/app"
	"pipe-rush/server/internal/telemetry"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Fatalf("%v", err)
	}
}

func newRootCommand() *cobra.Command {
	cfg := app.Config{}

	cmd := &cobra.Command{
		Use:   "pipe-rush-server",
		Short: "Timed multi-player pipe collection contest server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cfg.Logger = telemetry.WrapLogger(log.Default())
			return app.Run(ctx, cfg)
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&cfg.ConfigPath, "config", "", "match config file (JSON or YAML, \"-\" for stdin)")
	cmd.Flags().StringArrayVar(&cfg.Users, "user", nil, "fixed roster token (repeatable; none means open roster)")
	cmd.Flags().StringVar(&cfg.SaveLog, "save-log", "", "write the game log to this file as JSONL")
	cmd.Flags().StringVar(&cfg.SaveResults, "save-results", "", "write the final scores to this file")
	cmd.Flags().StringVar(&cfg.Addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&cfg.ServeDir, "serve-dir", "", "serve static files from this directory at /")

	return cmd
}
