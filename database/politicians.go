package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"parliament-api/models"

	"github.com/google/uuid"
)

// ==================== POLITICIAN OPERATIONS ====================

const politicianColumns = `id, slug, name, given_name, family_name, party, riding, province,
	image_url, source_url, content_hash, created_at, updated_at`

func scanPolitician(s scanner) (*models.Politician, error) {
	var p models.Politician
	err := s.Scan(
		&p.ID, &p.Slug, &p.Name, &p.GivenName, &p.FamilyName, &p.Party, &p.Riding, &p.Province,
		&p.ImageURL, &p.SourceURL, &p.ContentHash, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// lookupHash finds the id and content hash of the row matching where inside tx.
func (r *Repository) lookupHash(ctx context.Context, tx *sql.Tx, table, where string, args ...any) (string, string, bool, error) {
	var id, hash string
	err := tx.QueryRowContext(ctx, r.db.Rebind(`SELECT id, content_hash FROM `+table+` WHERE `+where), args...).Scan(&id, &hash)
	if err == sql.ErrNoRows {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, err
	}
	return id, hash, true, nil
}

// UpsertPolitician inserts or updates a politician by slug
func (r *Repository) UpsertPolitician(ctx context.Context, p *models.Politician) (models.UpsertResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	id, hash, found, err := r.lookupHash(ctx, tx, "politicians", "slug = ?", p.Slug)
	if err != nil {
		return "", fmt.Errorf("lookup politician %s: %w", p.Slug, err)
	}

	now := time.Now().UTC()
	var result models.UpsertResult

	switch {
	case !found:
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		p.CreatedAt, p.UpdatedAt = now, now
		_, err = tx.ExecContext(ctx, r.db.Rebind(`
			INSERT INTO politicians (`+politicianColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`),
			p.ID, p.Slug, p.Name, p.GivenName, p.FamilyName, p.Party, p.Riding, p.Province,
			p.ImageURL, p.SourceURL, p.ContentHash, p.CreatedAt, p.UpdatedAt,
		)
		result = models.UpsertCreated

	case hash == p.ContentHash:
		p.ID = id
		return models.UpsertUnchanged, nil

	default:
		p.ID, p.UpdatedAt = id, now
		_, err = tx.ExecContext(ctx, r.db.Rebind(`
			UPDATE politicians SET
				name = ?, given_name = ?, family_name = ?, party = ?, riding = ?, province = ?,
				image_url = ?, source_url = ?, content_hash = ?, updated_at = ?
			WHERE id = ?
		`),
			p.Name, p.GivenName, p.FamilyName, p.Party, p.Riding, p.Province,
			p.ImageURL, p.SourceURL, p.ContentHash, p.UpdatedAt, id,
		)
		result = models.UpsertUpdated
	}
	if err != nil {
		return "", fmt.Errorf("write politician %s: %w", p.Slug, err)
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return result, nil
}

// GetPoliticianBySlug returns nil, nil when no politician matches
func (r *Repository) GetPoliticianBySlug(ctx context.Context, slug string) (*models.Politician, error) {
	p, err := scanPolitician(r.queryRow(ctx, `
		SELECT `+politicianColumns+`
		FROM politicians
		WHERE slug = ?
	`, slug))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func politicianWhere(f models.PoliticianFilter) *whereBuilder {
	w := &whereBuilder{}
	if f.Party != "" {
		w.add("LOWER(party) = LOWER(?)", f.Party)
	}
	if f.Province != "" {
		w.add("province = ?", f.Province)
	}
	if f.Query != "" {
		p := likePattern(f.Query)
		w.add("(LOWER(name) LIKE ? OR LOWER(riding) LIKE ?)", p, p)
	}
	return w
}

func (r *Repository) ListPoliticians(ctx context.Context, f models.PoliticianFilter) ([]models.Politician, error) {
	w := politicianWhere(f)
	args := append(w.args, f.Limit, f.Offset)

	rows, err := r.query(ctx, `SELECT `+politicianColumns+` FROM politicians`+w.String()+
		` ORDER BY family_name ASC, name ASC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	politicians := make([]models.Politician, 0)
	for rows.Next() {
		p, err := scanPolitician(rows)
		if err != nil {
			return nil, err
		}
		politicians = append(politicians, *p)
	}

	return politicians, rows.Err()
}

func (r *Repository) CountPoliticians(ctx context.Context, f models.PoliticianFilter) (int, error) {
	w := politicianWhere(f)
	var total int
	err := r.queryRow(ctx, `SELECT COUNT(*) FROM politicians`+w.String(), w.args...).Scan(&total)
	return total, err
}
