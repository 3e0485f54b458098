package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"platewatch/internal/config"
	"platewatch/internal/store"
)

const defaultRecordLimit = 100

func newRecordsCommand(ctx *commandContext) *cobra.Command {
	var filter store.DetectionFilter

	cmd := &cobra.Command{
		Use:   "records",
		Short: "Search forensic vehicle records",
		RunE: func(cmd *cobra.Command, args []string) error {
			if filter.MinConfidence < 0 || filter.MinConfidence > 1 {
				return fmt.Errorf("--min-confidence must be between 0 and 1")
			}
			filter.Plate = strings.TrimSpace(filter.Plate)
			filter.RecheckStatus = strings.ToLower(strings.TrimSpace(filter.RecheckStatus))
			filter.VehicleQuery = strings.TrimSpace(filter.VehicleQuery)

			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				detections, err := st.SearchDetections(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					if detections == nil {
						detections = []*store.Detection{}
					}
					return writeJSON(cmd, detections)
				}
				out := cmd.OutOrStdout()
				if len(detections) == 0 {
					fmt.Fprintln(out, "No records found")
					return nil
				}
				fmt.Fprintln(out, renderDetections(out, detections))
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.Int64Var(&filter.VideoID, "video", 0, "Only records of this video")
	flags.StringVar(&filter.Plate, "plate", "", "Plate substring")
	flags.Float64Var(&filter.MinConfidence, "min-confidence", 0, "Minimum plate confidence (0-1)")
	flags.StringVar(&filter.RecheckStatus, "recheck", "", "Recheck status (pending, success, failed, skipped, none)")
	flags.StringVar(&filter.VehicleQuery, "vehicle", "", "Substring of vehicle type, make/model, or colour")
	flags.IntVar(&filter.Limit, "limit", defaultRecordLimit, "Maximum rows to return")
	return cmd
}

func renderDetections(out io.Writer, detections []*store.Detection) string {
	rows := make([][]string, 0, len(detections))
	for _, d := range detections {
		rows = append(rows, []string{
			strconv.FormatInt(d.VideoID, 10),
			d.TrackKey,
			formatSeconds(d.Timestamp),
			d.PlateNumber,
			strconv.FormatFloat(d.Confidence, 'f', 2, 64),
			d.Provenance,
			d.VehicleType,
			d.VehicleInfo,
			d.HelmetStatus,
			strconv.Itoa(d.Passengers),
			d.RecheckStatus,
		})
	}
	return renderTable(out,
		[]string{"Video", "Track", "Time", "Plate", "Conf", "Source", "Type", "Vehicle", "Helmet", "Riders", "Recheck"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}
