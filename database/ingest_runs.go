package database

import (
	"context"
	"database/sql"
	"time"

	"parliament-api/models"

	"github.com/google/uuid"
)

// ==================== INGEST RUN OPERATIONS ====================

const ingestRunColumns = `id, entity, status, started_at, finished_at,
	fetched, created, updated, unchanged, failed, error`

func scanIngestRun(s scanner) (*models.IngestRun, error) {
	var run models.IngestRun
	var entity, status string
	var finishedAt sql.NullTime
	err := s.Scan(
		&run.ID, &entity, &status, &run.StartedAt, &finishedAt,
		&run.Fetched, &run.Created, &run.Updated, &run.Unchanged, &run.Failed, &run.Error,
	)
	if err != nil {
		return nil, err
	}
	run.Entity = models.Entity(entity)
	run.Status = models.IngestStatus(status)
	run.FinishedAt = timePtr(finishedAt)
	return &run, nil
}

// CreateIngestRun records the start of a run and fills in its ID
func (r *Repository) CreateIngestRun(ctx context.Context, run *models.IngestRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	run.Status = models.IngestStatusRunning

	_, err := r.exec(ctx, `
		INSERT INTO ingest_runs (`+ingestRunColumns+`)
		VALUES (?, ?, ?, ?, NULL, 0, 0, 0, 0, 0, '')
	`, run.ID, string(run.Entity), string(run.Status), run.StartedAt)
	return err
}

// FinishIngestRun stores the final counters and status of a run
func (r *Repository) FinishIngestRun(ctx context.Context, run *models.IngestRun) error {
	now := time.Now().UTC()
	run.FinishedAt = &now

	_, err := r.exec(ctx, `
		UPDATE ingest_runs SET
			status = ?, finished_at = ?,
			fetched = ?, created = ?, updated = ?, unchanged = ?, failed = ?,
			error = ?
		WHERE id = ?
	`,
		string(run.Status), now,
		run.Fetched, run.Created, run.Updated, run.Unchanged, run.Failed,
		run.Error, run.ID,
	)
	return err
}

// ListIngestRuns returns the most recent runs, optionally for one entity
func (r *Repository) ListIngestRuns(ctx context.Context, entity models.Entity, limit int) ([]models.IngestRun, error) {
	w := &whereBuilder{}
	if entity != "" {
		w.add("entity = ?", string(entity))
	}
	args := append(w.args, limit)

	rows, err := r.query(ctx, `SELECT `+ingestRunColumns+` FROM ingest_runs`+w.String()+
		` ORDER BY started_at DESC LIMIT ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]models.IngestRun, 0)
	for rows.Next() {
		run, err := scanIngestRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}

	return runs, rows.Err()
}

// LatestIngestRun returns nil, nil when the entity has never been ingested
func (r *Repository) LatestIngestRun(ctx context.Context, entity models.Entity) (*models.IngestRun, error) {
	runs, err := r.ListIngestRuns(ctx, entity, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// AbandonRunningIngestRuns marks runs left "running" by a previous process
// as failed. Called once at startup.
func (r *Repository) AbandonRunningIngestRuns(ctx context.Context) (int64, error) {
	res, err := r.exec(ctx, `
		UPDATE ingest_runs SET
			status = ?, finished_at = ?, error = ?
		WHERE status = ?
	`, string(models.IngestStatusFailed), time.Now().UTC(), "abandoned: process exited before run finished",
		string(models.IngestStatusRunning))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
