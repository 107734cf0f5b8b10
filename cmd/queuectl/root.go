package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/stemsi/help-queue/internal/config"
	"github.com/stemsi/help-queue/internal/logger"
	"github.com/stemsi/help-queue/internal/repository"
	"github.com/stemsi/help-queue/internal/service"
)

// commandContext builds the queue service once per invocation. Only commands
// that touch the store load configuration, so help works without any.
type commandContext struct {
	queue *service.QueueService
	log   zerolog.Logger
}

func (c *commandContext) ensureQueue() (*service.QueueService, error) {
	if c.queue != nil {
		return c.queue, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c.log = logger.New(os.Stderr, "queuectl", cfg.LogLevel, "pretty")

	table, err := repository.NewTable(cfg, c.log)
	if err != nil {
		return nil, err
	}
	c.queue = service.NewQueueService(repository.NewHelpRequestRepository(table), cfg.Roster, c.log)
	return c.queue, nil
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "queuectl",
		Short:         "Operate the classroom help queue",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newListCommand(ctx))
	rootCmd.AddCommand(newEnsureHeadersCommand(ctx))
	rootCmd.AddCommand(newResetCommand(ctx))

	return rootCmd
}

func commandCtx(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
