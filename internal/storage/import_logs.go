package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ImportLog represents a single plan upload's outcome.
type ImportLog struct {
	ID             int64            `json:"id"`
	CreatedAt      time.Time        `json:"created_at"`
	Source         string           `json:"source"`
	Filename       string           `json:"filename"`
	Status         string           `json:"status"`
	PlanID         *uuid.UUID       `json:"plan_id"`
	WeeksParsed    int              `json:"weeks_parsed"`
	WorkoutsParsed int              `json:"workouts_parsed"`
	RestDays       int              `json:"rest_days"`
	DurationMs     *int             `json:"duration_ms"`
	ErrorMessage   *string          `json:"error_message"`
	Metadata       *json.RawMessage `json:"metadata"`
}

// InsertImportLog creates a new import log entry and returns its ID.
func (db *DB) InsertImportLog(ctx context.Context, log ImportLog) (int64, error) {
	var id int64
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO import_logs (source, filename, status, plan_id, weeks_parsed,
		 workouts_parsed, rest_days, duration_ms, error_message, metadata)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		 RETURNING id`,
		log.Source, log.Filename, log.Status, log.PlanID, log.WeeksParsed,
		log.WorkoutsParsed, log.RestDays, log.DurationMs, log.ErrorMessage, log.Metadata,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting import log: %w", err)
	}
	return id, nil
}

// UpdateImportLog records the final state of an import, typically moving it
// from "running" to "success" or "error".
func (db *DB) UpdateImportLog(ctx context.Context, id int64, log ImportLog) error {
	_, err := db.Pool.Exec(ctx,
		`UPDATE import_logs SET
		 status = $2, plan_id = $3, weeks_parsed = $4, workouts_parsed = $5,
		 rest_days = $6, duration_ms = $7, error_message = $8, metadata = $9
		 WHERE id = $1`,
		id, log.Status, log.PlanID, log.WeeksParsed, log.WorkoutsParsed,
		log.RestDays, log.DurationMs, log.ErrorMessage, log.Metadata,
	)
	if err != nil {
		return fmt.Errorf("updating import log %d: %w", id, err)
	}
	return nil
}

// QueryImportLogs returns the most recent import logs.
func (db *DB) QueryImportLogs(ctx context.Context, limit int) ([]ImportLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT id, created_at, source, filename, status, plan_id, weeks_parsed,
		 workouts_parsed, rest_days, duration_ms, error_message, metadata
		 FROM import_logs
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("querying import logs: %w", err)
	}
	defer rows.Close()

	var result []ImportLog
	for rows.Next() {
		var l ImportLog
		if err := rows.Scan(&l.ID, &l.CreatedAt, &l.Source, &l.Filename, &l.Status, &l.PlanID,
			&l.WeeksParsed, &l.WorkoutsParsed, &l.RestDays, &l.DurationMs, &l.ErrorMessage, &l.Metadata); err != nil {
			return nil, fmt.Errorf("scanning import log: %w", err)
		}
		result = append(result, l)
	}
	return result, rows.Err()
}
