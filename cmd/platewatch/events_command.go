package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"platewatch/internal/config"
	"platewatch/internal/store"
)

func newEventsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var tag string
	var errorsOnly bool

	cmd := &cobra.Command{
		Use:   "events <video-id>",
		Short: "Show the audit log of a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseVideoID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				events, err := st.ListEvents(cmd.Context(), id, limit)
				if err != nil {
					return err
				}
				events = filterEvents(events, tag, errorsOnly)
				if ctx.jsonOutput() {
					return writeJSON(cmd, events)
				}
				out := cmd.OutOrStdout()
				if len(events) == 0 {
					fmt.Fprintln(out, "No events recorded")
					return nil
				}
				colorize := shouldColorize(out)
				rows := make([][]string, 0, len(events))
				for _, e := range events {
					tagText := e.Tag
					if e.IsError {
						tagText = paint(tagText, toneError, colorize)
					}
					rows = append(rows, []string{
						e.CreatedAt.Local().Format(timeLayout),
						tagText,
						optionalInt(e.ChunkIndex),
						optionalInt(e.FrameIndex),
						e.Message,
					})
				}
				fmt.Fprintln(out, renderTable(out,
					[]string{"When", "Tag", "Chunk", "Frame", "Message"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum events to show (0 for all)")
	cmd.Flags().StringVar(&tag, "tag", "", "Only events with this tag (FILTER, CAPTURER, CLOUD, AUDITOR, SEMANTIC, SYSTEM, MONITOR, ERROR)")
	cmd.Flags().BoolVar(&errorsOnly, "errors", false, "Only error events")
	return cmd
}

func filterEvents(events []*store.Event, tag string, errorsOnly bool) []*store.Event {
	tag = strings.ToUpper(strings.TrimSpace(tag))
	out := make([]*store.Event, 0, len(events))
	for _, e := range events {
		if tag != "" && e.Tag != tag {
			continue
		}
		if errorsOnly && !e.IsError {
			continue
		}
		out = append(out, e)
	}
	return out
}

func optionalInt(value *int) string {
	if value == nil {
		return "-"
	}
	return strconv.Itoa(*value)
}
