package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"inkwell/internal/server"
)

func (c *cli) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON HTTP API",
		Long:  "Serve the tweet and tutor operations over HTTP until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, cfg, err := c.assemble()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			srv := server.New(server.Options{
				Addr:   cfg.Listen,
				Tweet:  app.Tweet,
				Tutor:  app.Tutor,
				Logger: c.logger,
			})
			fprintf(c.stderr, "listening on %s (llm=%s)\n", cfg.Listen, cfg.LLM)
			if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&c.flagListen, "listen", "", "监听地址（覆盖配置）")
	return cmd
}
