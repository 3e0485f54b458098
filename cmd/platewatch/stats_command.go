package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"platewatch/internal/config"
	"platewatch/internal/daemon"
	"platewatch/internal/daemonrun"
	"platewatch/internal/preflight"
	"platewatch/internal/store"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarise the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				stats, err := st.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, stats)
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				rows := make([][]string, 0, len(store.AllStatuses())+1)
				for _, status := range store.AllStatuses() {
					rows = append(rows, []string{colorizeStatus(status, colorize), strconv.Itoa(stats.Videos[status])})
				}
				rows = append(rows, []string{"TOTAL", strconv.Itoa(stats.TotalVideos)})
				fmt.Fprintln(out, renderTable(out, []string{"Videos", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				fmt.Fprintln(out, renderTable(out,
					[]string{"Records", "Failed reads", "Batches", "Est. cost"},
					[][]string{{
						strconv.Itoa(stats.TotalDetections),
						strconv.Itoa(stats.FailedDetections),
						strconv.Itoa(stats.TotalBatches),
						strconv.FormatFloat(stats.CostEstimate, 'f', 2, 64),
					}},
					[]columnAlignment{alignRight, alignRight, alignRight, alignRight},
				))
				return nil
			})
		},
	}
}

type statusReport struct {
	DaemonRunning bool                 `json:"daemon_running"`
	PID           int                  `json:"pid,omitempty"`
	ConfigPath    string               `json:"config_path"`
	Database      store.DatabaseHealth `json:"database"`
	Checks        []preflight.Result   `json:"checks"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon state, database health, and dependency checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report := statusReport{ConfigPath: ctx.configPath}
			unlock, err := daemon.TryLock(cfg)
			switch {
			case errors.Is(err, daemon.ErrLocked):
				report.DaemonRunning = true
				report.PID = daemonrun.ReadPID(cfg)
			case err != nil:
				return err
			default:
				_ = unlock()
			}
			err = ctx.withStore(func(_ *config.Config, st *store.Store) error {
				health, err := st.CheckHealth(cmd.Context())
				report.Database = health
				return err
			})
			if err != nil {
				return err
			}
			report.Checks = preflight.RunAll(cmd.Context(), cfg)

			if ctx.jsonOutput() {
				return writeJSON(cmd, report)
			}
			renderStatus(cmd, report)
			return nil
		},
	}
}

func renderStatus(cmd *cobra.Command, report statusReport) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader("System", colorize) {
		fmt.Fprintln(out, line)
	}
	if report.DaemonRunning {
		message := "running"
		if report.PID > 0 {
			message = fmt.Sprintf("running (pid %d)", report.PID)
		}
		fmt.Fprintln(out, renderStatusLine("Daemon", toneOK, message, colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Daemon", toneWarn, "not running", colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Config", toneInfo, report.ConfigPath, colorize))

	db := report.Database
	switch {
	case db.Error != "":
		fmt.Fprintln(out, renderStatusLine("Database", toneError, db.Error, colorize))
	case !db.IntegrityCheck || len(db.MissingTables) > 0 || db.SchemaDirty:
		fmt.Fprintln(out, renderStatusLine("Database", toneError, fmt.Sprintf("%s (schema v%d, missing %v)", db.DBPath, db.SchemaVersion, db.MissingTables), colorize))
	default:
		fmt.Fprintln(out, renderStatusLine("Database", toneOK, fmt.Sprintf("%s (schema v%d)", db.DBPath, db.SchemaVersion), colorize))
	}

	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Dependencies", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, line := range checkLines(report.Checks, colorize) {
		fmt.Fprintln(out, line)
	}
}
