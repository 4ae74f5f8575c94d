package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/claude/summitchronicles/internal/models"
	"github.com/jackc/pgx/v5"
)

// ErrNoActivePlan is returned by ActivePlan when no plan has been uploaded.
var ErrNoActivePlan = errors.New("no active training plan")

// SavePlan stores plan. An active plan replaces the previously active one.
func (db *DB) SavePlan(ctx context.Context, plan *models.TrainingPlan) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if plan.IsActive {
		if _, err := tx.Exec(ctx, `UPDATE training_plans SET is_active = FALSE WHERE is_active`); err != nil {
			return fmt.Errorf("deactivating plans: %w", err)
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO training_plans (id, filename, content_type, content, sha256, is_active, uploaded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		plan.ID, plan.Filename, plan.ContentType, plan.Content, plan.SHA256, plan.IsActive, plan.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting plan %s: %w", plan.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing plan %s: %w", plan.ID, err)
	}
	return nil
}

// ActivePlan returns the current plan including its file content.
func (db *DB) ActivePlan(ctx context.Context) (*models.TrainingPlan, error) {
	var p models.TrainingPlan
	err := db.Pool.QueryRow(ctx,
		`SELECT id, filename, content_type, content, sha256, is_active, uploaded_at
		 FROM training_plans WHERE is_active
		 ORDER BY uploaded_at DESC LIMIT 1`,
	).Scan(&p.ID, &p.Filename, &p.ContentType, &p.Content, &p.SHA256, &p.IsActive, &p.UploadedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoActivePlan
	}
	if err != nil {
		return nil, fmt.Errorf("querying active plan: %w", err)
	}
	return &p, nil
}

// ListPlans returns plan metadata, newest first. Content is not loaded.
func (db *DB) ListPlans(ctx context.Context, limit int) ([]models.TrainingPlan, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT id, filename, content_type, sha256, is_active, uploaded_at
		 FROM training_plans
		 ORDER BY uploaded_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying plans: %w", err)
	}
	defer rows.Close()

	var result []models.TrainingPlan
	for rows.Next() {
		var p models.TrainingPlan
		if err := rows.Scan(&p.ID, &p.Filename, &p.ContentType, &p.SHA256, &p.IsActive, &p.UploadedAt); err != nil {
			return nil, fmt.Errorf("scanning plan: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}
