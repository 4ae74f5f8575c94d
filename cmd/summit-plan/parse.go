package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/claude/summitchronicles/internal/ingest/schedule"
	"github.com/spf13/cobra"
)

func newParseCmd() *cobra.Command {
	var summary bool
	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a plan and print its weeks as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := parseOptions()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			format := schedule.DetectFormat(filepath.Base(args[0]), "")
			weeks, err := schedule.Decode(format, data, opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if summary {
				workouts := 0
				for _, w := range weeks {
					for _, day := range w.Workouts {
						workouts += len(day)
					}
				}
				fmt.Fprintf(out, "%s: %d weeks, %d workouts\n", format, len(weeks), workouts)
				return nil
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(weeks)
		},
	}
	cmd.Flags().BoolVar(&summary, "summary", false, "print counts instead of JSON")
	return cmd
}
