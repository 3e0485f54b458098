package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"platewatch/internal/config"
	"platewatch/internal/daemon"
	"platewatch/internal/store"
	"platewatch/internal/workflow"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "process <id>",
		Short: "Process one video in the foreground",
		Long: "Process one queued video in the foreground. The daemon lock is held for the\n" +
			"duration of the run, so this refuses to start while platewatchd is running.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseVideoID(args[0])
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			unlock, err := daemon.TryLock(cfg)
			if errors.Is(err, daemon.ErrLocked) {
				return fmt.Errorf("platewatchd is running; queue the video and let the daemon process it: %w", err)
			}
			if err != nil {
				return err
			}
			defer unlock()

			logger, err := ctx.logger(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				processor := workflow.NewProcessor(cfg, st, logger)
				manager := workflow.NewManager(cfg, st, logger, processor)
				video, runErr := manager.ProcessOne(cmd.Context(), id)
				if video == nil {
					return runErr
				}
				if ctx.jsonOutput() {
					if err := writeJSON(cmd, video); err != nil {
						return err
					}
					return runErr
				}
				chunks, err := st.ListChunks(cmd.Context(), id)
				if err != nil {
					return err
				}
				renderVideo(cmd, video, chunks)
				return runErr
			})
		},
	}
}
