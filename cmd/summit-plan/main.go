// Command summit-plan parses training plan files locally and pushes them to
// a summit server.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/claude/summitchronicles/internal/ingest/schedule"
	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	flagWeek1   string
	flagSheet   string
	flagWeek    int
	flagVerbose bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "summit-plan",
		Short:         "Parse and upload weekly training plans",
		Long:          "summit-plan reads a weekly training plan (CSV or XLSX), shows what the server will see, and uploads it as the active plan.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagWeek1, "week1", "", "start date of week 1 (YYYY-MM-DD)")
	root.PersistentFlags().StringVar(&flagSheet, "sheet", "", "worksheet to read from an XLSX plan")
	root.PersistentFlags().IntVar(&flagWeek, "week", 0, "week number of an undated XLSX session plan")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newParseCmd(), newPushCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// parseOptions builds schedule options from the persistent flags.
func parseOptions() (schedule.Options, error) {
	opts := schedule.Options{Sheet: flagSheet, Week: flagWeek}
	if flagWeek1 != "" {
		t, err := time.Parse(time.DateOnly, flagWeek1)
		if err != nil {
			return opts, fmt.Errorf("--week1: %w", err)
		}
		opts.Week1Start = t
	}
	return opts, nil
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
