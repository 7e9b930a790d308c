package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"parliament-api/models"

	"github.com/google/uuid"
)

// ==================== COMMITTEE OPERATIONS ====================

const committeeColumns = `id, slug, name_en, short_name_en, parent_slug, source_url,
	content_hash, created_at, updated_at`

func scanCommittee(s scanner) (*models.Committee, error) {
	var c models.Committee
	err := s.Scan(
		&c.ID, &c.Slug, &c.NameEn, &c.ShortNameEn, &c.ParentSlug, &c.SourceURL,
		&c.ContentHash, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repository) UpsertCommittee(ctx context.Context, c *models.Committee) (models.UpsertResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	id, hash, found, err := r.lookupHash(ctx, tx, "committees", "slug = ?", c.Slug)
	if err != nil {
		return "", fmt.Errorf("lookup committee %s: %w", c.Slug, err)
	}

	now := time.Now().UTC()
	var result models.UpsertResult

	switch {
	case !found:
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		c.CreatedAt, c.UpdatedAt = now, now
		_, err = tx.ExecContext(ctx, r.db.Rebind(`
			INSERT INTO committees (`+committeeColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`),
			c.ID, c.Slug, c.NameEn, c.ShortNameEn, c.ParentSlug, c.SourceURL,
			c.ContentHash, c.CreatedAt, c.UpdatedAt,
		)
		result = models.UpsertCreated

	case hash == c.ContentHash:
		c.ID = id
		return models.UpsertUnchanged, nil

	default:
		c.ID, c.UpdatedAt = id, now
		_, err = tx.ExecContext(ctx, r.db.Rebind(`
			UPDATE committees SET
				name_en = ?, short_name_en = ?, parent_slug = ?, source_url = ?,
				content_hash = ?, updated_at = ?
			WHERE id = ?
		`),
			c.NameEn, c.ShortNameEn, c.ParentSlug, c.SourceURL, c.ContentHash, c.UpdatedAt, id,
		)
		result = models.UpsertUpdated
	}
	if err != nil {
		return "", fmt.Errorf("write committee %s: %w", c.Slug, err)
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return result, nil
}

// GetCommitteeBySlug returns nil, nil when no committee matches
func (r *Repository) GetCommitteeBySlug(ctx context.Context, slug string) (*models.Committee, error) {
	c, err := scanCommittee(r.queryRow(ctx, `
		SELECT `+committeeColumns+`
		FROM committees
		WHERE slug = ?
	`, slug))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func committeeWhere(f models.CommitteeFilter) *whereBuilder {
	w := &whereBuilder{}
	if f.Query != "" {
		p := likePattern(f.Query)
		w.add("(LOWER(name_en) LIKE ? OR LOWER(short_name_en) LIKE ?)", p, p)
	}
	return w
}

func (r *Repository) ListCommittees(ctx context.Context, f models.CommitteeFilter) ([]models.Committee, error) {
	w := committeeWhere(f)
	args := append(w.args, f.Limit, f.Offset)

	rows, err := r.query(ctx, `SELECT `+committeeColumns+` FROM committees`+w.String()+
		` ORDER BY name_en ASC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	committees := make([]models.Committee, 0)
	for rows.Next() {
		c, err := scanCommittee(rows)
		if err != nil {
			return nil, err
		}
		committees = append(committees, *c)
	}

	return committees, rows.Err()
}

func (r *Repository) CountCommittees(ctx context.Context, f models.CommitteeFilter) (int, error) {
	w := committeeWhere(f)
	var total int
	err := r.queryRow(ctx, `SELECT COUNT(*) FROM committees`+w.String(), w.args...).Scan(&total)
	return total, err
}
