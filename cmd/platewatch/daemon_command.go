package main

import (
	"github.com/spf13/cobra"

	"platewatch/internal/daemonrun"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the processing daemon in the foreground",
		Long:  "Run the processing daemon in the foreground until interrupted. Equivalent to platewatchd.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{LogLevel: ctx.logLevel()})
		},
	}
}
