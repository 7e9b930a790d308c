package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"parliament-api/models"

	"github.com/google/uuid"
)

// ==================== VOTE OPERATIONS ====================

const voteColumns = `id, session, number, date, description_en, result,
	yea_total, nay_total, paired_total, bill_id, source_url, content_hash,
	created_at, updated_at`

func scanVote(s scanner) (*models.Vote, error) {
	var v models.Vote
	var billID sql.NullString
	err := s.Scan(
		&v.ID, &v.Session, &v.Number, &v.Date, &v.DescriptionEn, &v.Result,
		&v.YeaTotal, &v.NayTotal, &v.PairedTotal, &billID, &v.SourceURL, &v.ContentHash,
		&v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	v.BillID = billID.String
	return &v, nil
}

// UpsertVote inserts or updates a vote by (session, number). BillID must
// already be resolved by the caller.
func (r *Repository) UpsertVote(ctx context.Context, v *models.Vote) (models.UpsertResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	id, hash, found, err := r.lookupHash(ctx, tx, "votes", "session = ? AND number = ?", v.Session, v.Number)
	if err != nil {
		return "", fmt.Errorf("lookup vote %s/%d: %w", v.Session, v.Number, err)
	}

	now := time.Now().UTC()
	var result models.UpsertResult

	switch {
	case !found:
		if v.ID == "" {
			v.ID = uuid.New().String()
		}
		v.CreatedAt, v.UpdatedAt = now, now
		_, err = tx.ExecContext(ctx, r.db.Rebind(`
			INSERT INTO votes (`+voteColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`),
			v.ID, v.Session, v.Number, v.Date.UTC(), v.DescriptionEn, v.Result,
			v.YeaTotal, v.NayTotal, v.PairedTotal, nullString(v.BillID), v.SourceURL, v.ContentHash,
			v.CreatedAt, v.UpdatedAt,
		)
		result = models.UpsertCreated

	case hash == v.ContentHash:
		v.ID = id
		return models.UpsertUnchanged, nil

	default:
		v.ID, v.UpdatedAt = id, now
		_, err = tx.ExecContext(ctx, r.db.Rebind(`
			UPDATE votes SET
				date = ?, description_en = ?, result = ?,
				yea_total = ?, nay_total = ?, paired_total = ?,
				bill_id = ?, source_url = ?, content_hash = ?, updated_at = ?
			WHERE id = ?
		`),
			v.Date.UTC(), v.DescriptionEn, v.Result,
			v.YeaTotal, v.NayTotal, v.PairedTotal,
			nullString(v.BillID), v.SourceURL, v.ContentHash, v.UpdatedAt, id,
		)
		result = models.UpsertUpdated
	}
	if err != nil {
		return "", fmt.Errorf("write vote %s/%d: %w", v.Session, v.Number, err)
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return result, nil
}

// GetVote returns nil, nil when no vote matches
func (r *Repository) GetVote(ctx context.Context, session string, number int) (*models.Vote, error) {
	v, err := scanVote(r.queryRow(ctx, `
		SELECT `+voteColumns+`
		FROM votes
		WHERE session = ? AND number = ?
	`, session, number))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func voteWhere(f models.VoteFilter) *whereBuilder {
	w := &whereBuilder{}
	if f.Session != "" {
		w.add("session = ?", f.Session)
	}
	if f.BillID != "" {
		w.add("bill_id = ?", f.BillID)
	}
	if f.Result != "" {
		w.add("LOWER(result) = LOWER(?)", f.Result)
	}
	return w
}

func (r *Repository) ListVotes(ctx context.Context, f models.VoteFilter) ([]models.Vote, error) {
	w := voteWhere(f)
	args := append(w.args, f.Limit, f.Offset)

	rows, err := r.query(ctx, `SELECT `+voteColumns+` FROM votes`+w.String()+
		` ORDER BY date DESC, number DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	votes := make([]models.Vote, 0)
	for rows.Next() {
		v, err := scanVote(rows)
		if err != nil {
			return nil, err
		}
		votes = append(votes, *v)
	}

	return votes, rows.Err()
}

func (r *Repository) CountVotes(ctx context.Context, f models.VoteFilter) (int, error) {
	w := voteWhere(f)
	var total int
	err := r.queryRow(ctx, `SELECT COUNT(*) FROM votes`+w.String(), w.args...).Scan(&total)
	return total, err
}
