package upload

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/claude/summitchronicles/internal/ingest"
	"github.com/claude/summitchronicles/internal/ingest/schedule"
)

// Outcome is what Push did with a file.
type Outcome struct {
	Path    string         `json:"path"`
	Skipped bool           `json:"skipped"`
	DryRun  bool           `json:"dry_run"`
	Result  *ingest.Result `json:"result,omitempty"`
}

// Pusher validates plan files locally and uploads the ones that changed.
type Pusher struct {
	client *Client
	state  *StateDB
	opts   schedule.Options
	dryRun bool
	force  bool
	log    *slog.Logger
}

// New creates a Pusher. state may be nil to push every time.
func New(client *Client, state *StateDB, opts schedule.Options, dryRun, force bool, log *slog.Logger) *Pusher {
	return &Pusher{client: client, state: state, opts: opts, dryRun: dryRun, force: force, log: log}
}

// Push uploads the plan at path. The file is parsed first so a plan the
// server would reject never leaves the machine.
func (p *Pusher) Push(ctx context.Context, path string) (*Outcome, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading plan: %w", err)
	}

	hash, err := HashFile(abs)
	if err != nil {
		return nil, fmt.Errorf("hashing plan: %w", err)
	}
	out := &Outcome{Path: abs, DryRun: p.dryRun}

	if p.state != nil && !p.force {
		done, err := p.state.IsUploaded(abs, hash)
		if err != nil {
			p.log.Warn("state lookup failed", "path", abs, "error", err)
		} else if done {
			p.log.Info("plan unchanged, skipping", "path", abs)
			out.Skipped = true
			return out, nil
		}
	}

	filename := filepath.Base(abs)
	format := schedule.DetectFormat(filename, "")
	weeks, err := schedule.Decode(format, data, p.opts)
	if err != nil {
		return nil, err
	}
	if len(weeks) == 0 {
		return nil, schedule.ErrEmptyPlan
	}
	p.log.Info("plan parsed", "path", abs, "format", format, "weeks", len(weeks))

	if p.dryRun {
		return out, nil
	}

	result, err := p.client.SendPlan(ctx, filename, data)
	if err != nil {
		return nil, err
	}
	out.Result = result
	p.log.Info("plan uploaded", "path", abs, "plan_id", result.PlanID, "workouts", result.WorkoutsParsed)

	if p.state != nil {
		if err := p.state.MarkUploaded(abs, hash, result.PlanID); err != nil {
			p.log.Warn("failed to record upload", "path", abs, "error", err)
		}
	}
	return out, nil
}
