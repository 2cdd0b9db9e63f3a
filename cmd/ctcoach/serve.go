package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	ctserver "github.com/HendryAvila/ctcoach/internal/server"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server (stdio transport)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	cfg, log, closeLog, err := setup(true)
	if err != nil {
		return err
	}
	defer closeLog()

	// Graceful shutdown on interrupt.
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, sess, cleanup, err := ctserver.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	log.Info("serving",
		zap.String("version", ctserver.Version),
		zap.String("session", sess.ID()),
		zap.Bool("coach_configured", cfg.HasAPIKey()))

	stdio := server.NewStdioServer(s)
	stdio.SetErrorLogger(zap.NewStdLog(log.Named("stdio")))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// The host closing stdin ends the process too.
		defer stop()
		return stdio.Listen(gctx, os.Stdin, os.Stdout)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
