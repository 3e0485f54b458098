package main

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"platewatch/internal/analytics"
	"platewatch/internal/config"
	"platewatch/internal/store"
)

func newReportCommand(ctx *commandContext) *cobra.Command {
	var withRecords bool

	cmd := &cobra.Command{
		Use:   "report <video-id>",
		Short: "Show the analytics summary of a processed video",
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
				if video.AnalyticsJSON == "" {
					return fmt.Errorf("video %d has no analytics yet (status %s)", id, video.Status)
				}
				stats, err := analytics.Parse(video.AnalyticsJSON)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, stats)
				}
				renderReport(cmd, video, stats)
				if !withRecords {
					return nil
				}
				detections, err := st.SearchDetections(cmd.Context(), store.DetectionFilter{VideoID: id})
				if err != nil {
					return err
				}
				if len(detections) > 0 {
					out := cmd.OutOrStdout()
					fmt.Fprintln(out)
					fmt.Fprintln(out, renderDetections(out, detections))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&withRecords, "records", true, "Include the record table")
	return cmd
}

func renderReport(cmd *cobra.Command, video *store.Video, stats analytics.Analytics) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	for _, line := range renderSectionHeader(fmt.Sprintf("Report for video %d (%s)", video.ID, video.Name), colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "  %-22s %d\n", "Unique vehicles:", stats.TotalVehicles)
	fmt.Fprintf(out, "  %-22s %d\n", "Peak density:", stats.PeakVehicleDensity)
	fmt.Fprintf(out, "  %-22s %s\n", "Video duration:", formatDuration(stats.Metadata.VideoDurationSec))
	fmt.Fprintf(out, "  %-22s %.1fs\n", "Processing time:", stats.Metadata.ProcessingDuration)
	fmt.Fprintf(out, "  %-22s %d (%.1f fps)\n", "Frames:", stats.Metadata.TotalFrames, stats.Metadata.AvgFPS)
	fmt.Fprintf(out, "  %-22s %d\n", "Chunks:", stats.Metadata.Chunks)
	if len(stats.FailedChunks) > 0 {
		fmt.Fprintln(out, renderStatusLine("Failed chunks", toneError, fmt.Sprint(stats.FailedChunks), colorize))
	}
	if video.ReportPath != "" {
		fmt.Fprintf(out, "  %-22s %s\n", "Report file:", video.ReportPath)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, renderTable(out, []string{"Class", "Count"}, countRows(stats.Counts), []columnAlignment{alignLeft, alignRight}))
	if len(stats.Recheck) > 0 {
		fmt.Fprintln(out, renderTable(out, []string{"Recheck", "Count"}, countRows(stats.Recheck), []columnAlignment{alignLeft, alignRight}))
	}

	c := stats.Capture
	fmt.Fprintln(out, renderTable(out,
		[]string{"Detections", "Batches", "Succeeded", "Failed", "External calls", "Dropped tracks", "Est. cost"},
		[][]string{{
			strconv.Itoa(c.TotalDetections),
			strconv.Itoa(c.TotalBatches),
			strconv.Itoa(c.SuccessfulBatches),
			strconv.Itoa(c.FailedBatches),
			strconv.Itoa(c.ExternalCalls),
			strconv.Itoa(c.TracksDropped),
			strconv.FormatFloat(c.EstimatedCost, 'f', 2, 64),
		}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
	))
}

func countRows(counts map[string]int) [][]string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, strconv.Itoa(counts[k])})
	}
	return rows
}
