package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"parliament-api/models"

	"github.com/google/uuid"
)

// ==================== DEBATE OPERATIONS ====================

const debateColumns = `id, date, number, most_frequent_speaker, source_url, document_url,
	content_hash, created_at, updated_at`

func scanDebate(s scanner) (*models.Debate, error) {
	var d models.Debate
	err := s.Scan(
		&d.ID, &d.Date, &d.Number, &d.MostFrequentSpeaker, &d.SourceURL, &d.DocumentURL,
		&d.ContentHash, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *Repository) UpsertDebate(ctx context.Context, d *models.Debate) (models.UpsertResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	date := d.Date.UTC()
	id, hash, found, err := r.lookupHash(ctx, tx, "debates", "date = ? AND number = ?", date, d.Number)
	if err != nil {
		return "", fmt.Errorf("lookup debate %s/%s: %w", date.Format(time.DateOnly), d.Number, err)
	}

	now := time.Now().UTC()
	var result models.UpsertResult

	switch {
	case !found:
		if d.ID == "" {
			d.ID = uuid.New().String()
		}
		d.CreatedAt, d.UpdatedAt = now, now
		_, err = tx.ExecContext(ctx, r.db.Rebind(`
			INSERT INTO debates (`+debateColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`),
			d.ID, date, d.Number, d.MostFrequentSpeaker, d.SourceURL, d.DocumentURL,
			d.ContentHash, d.CreatedAt, d.UpdatedAt,
		)
		result = models.UpsertCreated

	case hash == d.ContentHash:
		d.ID = id
		return models.UpsertUnchanged, nil

	default:
		d.ID, d.UpdatedAt = id, now
		_, err = tx.ExecContext(ctx, r.db.Rebind(`
			UPDATE debates SET
				most_frequent_speaker = ?, source_url = ?, document_url = ?,
				content_hash = ?, updated_at = ?
			WHERE id = ?
		`),
			d.MostFrequentSpeaker, d.SourceURL, d.DocumentURL, d.ContentHash, d.UpdatedAt, id,
		)
		result = models.UpsertUpdated
	}
	if err != nil {
		return "", fmt.Errorf("write debate %s/%s: %w", date.Format(time.DateOnly), d.Number, err)
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return result, nil
}

// GetDebate returns nil, nil when no debate matches
func (r *Repository) GetDebate(ctx context.Context, date time.Time, number string) (*models.Debate, error) {
	d, err := scanDebate(r.queryRow(ctx, `
		SELECT `+debateColumns+`
		FROM debates
		WHERE date = ? AND number = ?
	`, date.UTC(), number))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func debateWhere(f models.DebateFilter) *whereBuilder {
	w := &whereBuilder{}
	if f.Year > 0 {
		start := time.Date(f.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		w.add("date >= ? AND date < ?", start, start.AddDate(1, 0, 0))
	}
	return w
}

func (r *Repository) ListDebates(ctx context.Context, f models.DebateFilter) ([]models.Debate, error) {
	w := debateWhere(f)
	args := append(w.args, f.Limit, f.Offset)

	rows, err := r.query(ctx, `SELECT `+debateColumns+` FROM debates`+w.String()+
		` ORDER BY date DESC, number DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	debates := make([]models.Debate, 0)
	for rows.Next() {
		d, err := scanDebate(rows)
		if err != nil {
			return nil, err
		}
		debates = append(debates, *d)
	}

	return debates, rows.Err()
}

func (r *Repository) CountDebates(ctx context.Context, f models.DebateFilter) (int, error) {
	w := debateWhere(f)
	var total int
	err := r.queryRow(ctx, `SELECT COUNT(*) FROM debates`+w.String(), w.args...).Scan(&total)
	return total, err
}
