package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"parliament-api/models"

	"github.com/google/uuid"
)

// ==================== BILL OPERATIONS ====================

const billColumns = `id, jurisdiction, parliament, session, number,
	title_en, title_fr, short_title_en, short_title_fr,
	status, status_code, law, sponsor_slug, sponsor_name,
	introduced_on, royal_assent_on, latest_activity_at,
	legisinfo_id, source_url, text_url, content_hash, enriched,
	created_at, updated_at, fetched_at`

func scanBill(s scanner) (*models.Bill, error) {
	var bill models.Bill
	var law, enriched int
	var introducedOn, royalAssentOn, latestActivityAt sql.NullTime

	err := s.Scan(
		&bill.ID, &bill.Jurisdiction, &bill.Parliament, &bill.Session, &bill.Number,
		&bill.TitleEn, &bill.TitleFr, &bill.ShortTitleEn, &bill.ShortTitleFr,
		&bill.Status, &bill.StatusCode, &law, &bill.SponsorSlug, &bill.SponsorName,
		&introducedOn, &royalAssentOn, &latestActivityAt,
		&bill.LegisInfoID, &bill.SourceURL, &bill.TextURL, &bill.ContentHash, &enriched,
		&bill.CreatedAt, &bill.UpdatedAt, &bill.FetchedAt,
	)
	if err != nil {
		return nil, err
	}

	bill.Law = law == 1
	bill.Enriched = enriched == 1
	bill.IntroducedOn = timePtr(introducedOn)
	bill.RoyalAssentOn = timePtr(royalAssentOn)
	bill.LatestActivityAt = timePtr(latestActivityAt)
	return &bill, nil
}

// GetBillByNaturalKey returns nil, nil when no bill matches
func (r *Repository) GetBillByNaturalKey(ctx context.Context, key models.NaturalKey) (*models.Bill, error) {
	bill, err := scanBill(r.queryRow(ctx, `
		SELECT `+billColumns+`
		FROM bills
		WHERE jurisdiction = ? AND parliament = ? AND session = ? AND number = ?
	`, key.Jurisdiction, key.Parliament, key.Session, models.NormalizeBillNumber(key.Number)))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return bill, nil
}

func (r *Repository) GetBillByID(ctx context.Context, id string) (*models.Bill, error) {
	bill, err := scanBill(r.queryRow(ctx, `
		SELECT `+billColumns+`
		FROM bills
		WHERE id = ?
	`, id))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return bill, nil
}

// UpsertBill inserts or updates a bill by natural key. A bill whose content
// hash matches the stored one is left untouched apart from fetched_at.
func (r *Repository) UpsertBill(ctx context.Context, bill *models.Bill) (models.UpsertResult, error) {
	key := bill.Key()
	bill.Jurisdiction = key.Jurisdiction
	bill.Number = key.Number

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var existingID, existingHash string
	var createdAt time.Time
	err = tx.QueryRowContext(ctx, r.db.Rebind(`
		SELECT id, content_hash, created_at
		FROM bills
		WHERE jurisdiction = ? AND parliament = ? AND session = ? AND number = ?
	`), key.Jurisdiction, key.Parliament, key.Session, key.Number).Scan(&existingID, &existingHash, &createdAt)

	now := time.Now().UTC()
	var result models.UpsertResult

	switch {
	case err == sql.ErrNoRows:
		if bill.ID == "" {
			bill.ID = uuid.New().String()
		}
		bill.CreatedAt, bill.UpdatedAt, bill.FetchedAt = now, now, now
		_, err = tx.ExecContext(ctx, r.db.Rebind(`
			INSERT INTO bills (`+billColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`),
			bill.ID, bill.Jurisdiction, bill.Parliament, bill.Session, bill.Number,
			bill.TitleEn, bill.TitleFr, bill.ShortTitleEn, bill.ShortTitleFr,
			bill.Status, bill.StatusCode, boolToInt(bill.Law), bill.SponsorSlug, bill.SponsorName,
			nullTime(bill.IntroducedOn), nullTime(bill.RoyalAssentOn), nullTime(bill.LatestActivityAt),
			bill.LegisInfoID, bill.SourceURL, bill.TextURL, bill.ContentHash, boolToInt(bill.Enriched),
			bill.CreatedAt, bill.UpdatedAt, bill.FetchedAt,
		)
		result = models.UpsertCreated

	case err != nil:
		return "", fmt.Errorf("lookup bill %s: %w", key, err)

	case existingHash == bill.ContentHash:
		bill.ID, bill.CreatedAt, bill.FetchedAt = existingID, createdAt, now
		_, err = tx.ExecContext(ctx, r.db.Rebind(`UPDATE bills SET fetched_at = ? WHERE id = ?`), now, existingID)
		result = models.UpsertUnchanged

	default:
		bill.ID, bill.CreatedAt, bill.UpdatedAt, bill.FetchedAt = existingID, createdAt, now, now
		_, err = tx.ExecContext(ctx, r.db.Rebind(`
			UPDATE bills SET
				title_en = ?, title_fr = ?, short_title_en = ?, short_title_fr = ?,
				status = ?, status_code = ?, law = ?, sponsor_slug = ?, sponsor_name = ?,
				introduced_on = ?, royal_assent_on = ?, latest_activity_at = ?,
				legisinfo_id = ?, source_url = ?, text_url = ?, content_hash = ?, enriched = ?,
				updated_at = ?, fetched_at = ?
			WHERE id = ?
		`),
			bill.TitleEn, bill.TitleFr, bill.ShortTitleEn, bill.ShortTitleFr,
			bill.Status, bill.StatusCode, boolToInt(bill.Law), bill.SponsorSlug, bill.SponsorName,
			nullTime(bill.IntroducedOn), nullTime(bill.RoyalAssentOn), nullTime(bill.LatestActivityAt),
			bill.LegisInfoID, bill.SourceURL, bill.TextURL, bill.ContentHash, boolToInt(bill.Enriched),
			bill.UpdatedAt, bill.FetchedAt, existingID,
		)
		result = models.UpsertUpdated
	}
	if err != nil {
		return "", fmt.Errorf("write bill %s: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return result, nil
}

func billWhere(f models.BillFilter) *whereBuilder {
	w := &whereBuilder{}
	if f.Parliament > 0 {
		w.add("parliament = ?", f.Parliament)
	}
	if f.Session > 0 {
		w.add("session = ?", f.Session)
	}
	if f.Status != "" {
		w.add("LOWER(status) = LOWER(?)", f.Status)
	}
	if f.Sponsor != "" {
		w.add("sponsor_slug = ?", f.Sponsor)
	}
	if f.Query != "" {
		p := likePattern(f.Query)
		w.add("(LOWER(title_en) LIKE ? OR LOWER(short_title_en) LIKE ? OR LOWER(title_fr) LIKE ? OR LOWER(number) LIKE ?)", p, p, p, p)
	}
	switch f.Law {
	case "true":
		w.add("law = 1")
	case "false":
		w.add("law = 0")
	}
	return w
}

func billOrder(sort string) string {
	switch sort {
	case "introduced":
		return ` ORDER BY CASE WHEN introduced_on IS NULL THEN 1 ELSE 0 END, introduced_on DESC, number ASC`
	case "number":
		return ` ORDER BY parliament DESC, session DESC, number ASC`
	default:
		return ` ORDER BY CASE WHEN latest_activity_at IS NULL THEN 1 ELSE 0 END, latest_activity_at DESC, number ASC`
	}
}

// ListBills returns a page of bills matching the filter
func (r *Repository) ListBills(ctx context.Context, f models.BillFilter) ([]models.Bill, error) {
	w := billWhere(f)
	args := append(w.args, f.Limit, f.Offset)

	rows, err := r.query(ctx, `SELECT `+billColumns+` FROM bills`+w.String()+billOrder(f.Sort)+` LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	// Initialize with empty slice to avoid returning nil
	bills := make([]models.Bill, 0)
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, *bill)
	}

	return bills, rows.Err()
}

func (r *Repository) CountBills(ctx context.Context, f models.BillFilter) (int, error) {
	w := billWhere(f)
	var total int
	err := r.queryRow(ctx, `SELECT COUNT(*) FROM bills`+w.String(), w.args...).Scan(&total)
	return total, err
}

// ListBillsBySponsor returns the most recently active bills sponsored by a politician.
func (r *Repository) ListBillsBySponsor(ctx context.Context, slug string, limit int) ([]models.Bill, error) {
	return r.ListBills(ctx, models.BillFilter{Sponsor: slug, Limit: limit})
}
