package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"platewatch/internal/config"
	"platewatch/internal/stage"
	"platewatch/internal/store"
)

const timeLayout = "2006-01-02 15:04:05"

func newVideoCommand(ctx *commandContext) *cobra.Command {
	videoCmd := &cobra.Command{
		Use:   "video",
		Short: "Manage the video processing queue",
	}

	videoCmd.AddCommand(newVideoAddCommand(ctx))
	videoCmd.AddCommand(newVideoListCommand(ctx))
	videoCmd.AddCommand(newVideoShowCommand(ctx))
	videoCmd.AddCommand(newVideoRetryCommand(ctx))
	videoCmd.AddCommand(newVideoRemoveCommand(ctx))

	return videoCmd
}

func newVideoAddCommand(ctx *commandContext) *cobra.Command {
	var mediaPath string
	var name string

	cmd := &cobra.Command{
		Use:   "add <trace>",
		Short: "Queue a detector trace for processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := filepath.Abs(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("resolve trace path: %w", err)
			}
			if _, err := stage.RequireSource(&store.Video{SourcePath: source}); err != nil {
				return err
			}
			media := strings.TrimSpace(mediaPath)
			if media != "" {
				if media, err = filepath.Abs(media); err != nil {
					return fmt.Errorf("resolve media path: %w", err)
				}
			}

			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				video, err := st.NewVideo(cmd.Context(), strings.TrimSpace(name), source, media)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, video)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued video %d (%s)\n", video.ID, video.Name)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&mediaPath, "media", "", "Source video file, used to read the real duration")
	cmd.Flags().StringVar(&name, "name", "", "Display name (defaults to the trace file name)")
	return cmd
}

func newVideoListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued and processed videos",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(statusFlags)
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				videos, err := st.ListVideos(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					if videos == nil {
						videos = []*store.Video{}
					}
					return writeJSON(cmd, videos)
				}
				out := cmd.OutOrStdout()
				if len(videos) == 0 {
					fmt.Fprintln(out, "No videos found")
					return nil
				}
				colorize := shouldColorize(out)
				rows := make([][]string, 0, len(videos))
				for _, v := range videos {
					rows = append(rows, []string{
						strconv.FormatInt(v.ID, 10),
						v.Name,
						colorizeStatus(v.Status, colorize),
						formatDuration(v.DurationSeconds),
						v.CreatedAt.Local().Format(timeLayout),
						v.ErrorMessage,
					})
				}
				fmt.Fprintln(out, renderTable(out,
					[]string{"ID", "Name", "Status", "Duration", "Created", "Error"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (pending, processing, completed, failed)")
	return cmd
}

func newVideoShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one video with its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseVideoID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				video, chunks, err := loadVideo(cmd.Context(), st, id)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, struct {
						Video  *store.Video   `json:"video"`
						Chunks []*store.Chunk `json:"chunks"`
					}{video, chunks})
				}
				renderVideo(cmd, video, chunks)
				return nil
			})
		},
	}
}

func newVideoRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Requeue failed videos (all when no ids are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseVideoIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				count, err := st.RetryFailed(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d video(s)\n", count)
				return nil
			})
		},
	}
}

func newVideoRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a video and everything recorded for it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseVideoID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				video, err := st.GetVideo(cmd.Context(), id)
				if err != nil {
					return err
				}
				if video == nil {
					return fmt.Errorf("video %d not found", id)
				}
				if video.IsProcessing() {
					return fmt.Errorf("video %d is processing; stop the daemon first", id)
				}
				removed, err := st.RemoveVideo(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("video %d not found", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed video %d\n", id)
				return nil
			})
		},
	}
}

func loadVideo(ctx context.Context, st *store.Store, id int64) (*store.Video, []*store.Chunk, error) {
	video, err := st.GetVideo(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if video == nil {
		return nil, nil, fmt.Errorf("video %d not found", id)
	}
	chunks, err := st.ListChunks(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if chunks == nil {
		chunks = []*store.Chunk{}
	}
	return video, chunks, nil
}

func renderVideo(cmd *cobra.Command, video *store.Video, chunks []*store.Chunk) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	for _, line := range renderSectionHeader(fmt.Sprintf("Video %d", video.ID), colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "  %-10s %s\n", "Name:", video.Name)
	fmt.Fprintf(out, "  %-10s %s\n", "Status:", colorizeStatus(video.Status, colorize))
	fmt.Fprintf(out, "  %-10s %s\n", "Trace:", video.SourcePath)
	if video.MediaPath != "" {
		fmt.Fprintf(out, "  %-10s %s\n", "Media:", video.MediaPath)
	}
	fmt.Fprintf(out, "  %-10s %s\n", "Duration:", formatDuration(video.DurationSeconds))
	if video.ReportPath != "" {
		fmt.Fprintf(out, "  %-10s %s\n", "Report:", video.ReportPath)
	}
	if video.ErrorMessage != "" {
		fmt.Fprintf(out, "  %-10s %s\n", "Error:", video.ErrorMessage)
	}
	fmt.Fprintf(out, "  %-10s %s\n", "Updated:", video.UpdatedAt.Local().Format(timeLayout))
	if len(chunks) == 0 {
		return
	}

	fmt.Fprintln(out)
	rows := make([][]string, 0, len(chunks))
	for _, c := range chunks {
		rows = append(rows, []string{
			strconv.Itoa(c.Index),
			formatSeconds(c.StartSeconds),
			formatSeconds(c.EndSeconds),
			formatSeconds(c.OverlapSeconds),
			colorizeStatus(c.Status, colorize),
			strconv.Itoa(c.RecordCount),
			c.ErrorMessage,
		})
	}
	fmt.Fprintln(out, renderTable(out,
		[]string{"Chunk", "Start", "End", "Overlap", "Status", "Records", "Error"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignLeft, alignRight, alignLeft},
	))
}

func parseStatuses(values []string) ([]store.Status, error) {
	statuses := make([]store.Status, 0, len(values))
	for _, value := range values {
		if strings.TrimSpace(value) == "" {
			continue
		}
		status, ok := store.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	return (time.Duration(seconds * float64(time.Second))).Round(time.Second).String()
}

func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 1, 64) + "s"
}
