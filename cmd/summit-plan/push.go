package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/claude/summitchronicles/internal/upload"
	"github.com/spf13/cobra"
)

func newPushCmd() *cobra.Command {
	var (
		serverURL string
		apiKey    string
		stateDir  string
		dryRun    bool
		force     bool
	)
	cmd := &cobra.Command{
		Use:   "push <file>",
		Short: "Upload a plan and make it the active schedule",
		Long:  "push validates the plan locally, then uploads it unless the same file content was already pushed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if serverURL == "" && !dryRun {
				return errors.New("--server is required (or use --dry-run)")
			}
			if apiKey == "" {
				apiKey = os.Getenv("SUMMIT_API_KEY")
			}
			opts, err := parseOptions()
			if err != nil {
				return err
			}
			log := newLogger()

			if stateDir == "" {
				home, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				stateDir = filepath.Join(home, ".summit-plan")
			}
			state, err := upload.OpenStateDB(stateDir)
			if err != nil {
				return err
			}
			defer state.Close()

			p := upload.New(upload.NewClient(serverURL, apiKey), state, opts, dryRun, force, log)
			out, err := p.Push(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "summit server URL (e.g. https://summit.tail1234.ts.net)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key (default $SUMMIT_API_KEY)")
	cmd.Flags().StringVar(&stateDir, "state", "", "state directory (default ~/.summit-plan)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse but don't upload")
	cmd.Flags().BoolVar(&force, "force", false, "upload even if unchanged")
	return cmd
}
