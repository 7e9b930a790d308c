package database

import (
	"context"
	"database/sql"
	"time"

	"parliament-api/models"
)

// ==================== FEED VIEW ====================

// FeedSize bounds how many bills the precomputed feed table keeps. Sponsor
// feeds read bills directly and are not bounded by it.
const FeedSize = 500

// RefreshBillFeed rebuilds feed_bills_latest from bills in one transaction,
// so readers see either the old or the new snapshot.
func (r *Repository) RefreshBillFeed(ctx context.Context) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM feed_bills_latest`); err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO feed_bills_latest (
			bill_id, jurisdiction, parliament, session, number, title, status,
			sponsor_slug, sponsor_name, latest_activity_at, link
		)
		SELECT
			id, jurisdiction, parliament, session, number,
			COALESCE(NULLIF(short_title_en, ''), NULLIF(title_en, ''), title_fr),
			status, sponsor_slug, sponsor_name,
			COALESCE(latest_activity_at, introduced_on, updated_at),
			source_url
		FROM bills
		ORDER BY COALESCE(latest_activity_at, introduced_on, updated_at) DESC, number ASC
		LIMIT ?
	`), FeedSize)
	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// ListFeedBills reads the feed newest activity first. The site-wide feed
// comes from the precomputed table; a sponsor's feed is read from bills so
// that older sponsors are not cut off by FeedSize.
func (r *Repository) ListFeedBills(ctx context.Context, sponsorSlug string, limit int) ([]models.FeedBill, error) {
	if sponsorSlug != "" {
		return r.listSponsorFeedBills(ctx, sponsorSlug, limit)
	}

	rows, err := r.query(ctx, `
		SELECT bill_id, jurisdiction, parliament, session, number, title, status,
		       sponsor_slug, sponsor_name, latest_activity_at, link
		FROM feed_bills_latest
		ORDER BY CASE WHEN latest_activity_at IS NULL THEN 1 ELSE 0 END, latest_activity_at DESC, number ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]models.FeedBill, 0)
	for rows.Next() {
		var item models.FeedBill
		var latest sql.NullTime
		if err := rows.Scan(
			&item.BillID, &item.Jurisdiction, &item.Parliament, &item.Session, &item.Number,
			&item.Title, &item.Status, &item.SponsorSlug, &item.SponsorName, &latest, &item.Link,
		); err != nil {
			return nil, err
		}
		item.LatestActivityAt = timePtr(latest)
		items = append(items, item)
	}

	return items, rows.Err()
}

// listSponsorFeedBills selects the same projection RefreshBillFeed writes.
// Dates are scanned column by column because a COALESCE result carries no
// declared type for the sqlite driver to parse.
func (r *Repository) listSponsorFeedBills(ctx context.Context, sponsorSlug string, limit int) ([]models.FeedBill, error) {
	rows, err := r.query(ctx, `
		SELECT id, jurisdiction, parliament, session, number,
		       COALESCE(NULLIF(short_title_en, ''), NULLIF(title_en, ''), title_fr),
		       status, sponsor_slug, sponsor_name,
		       latest_activity_at, introduced_on, updated_at, source_url
		FROM bills
		WHERE sponsor_slug = ?
		ORDER BY COALESCE(latest_activity_at, introduced_on, updated_at) DESC, number ASC
		LIMIT ?
	`, sponsorSlug, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]models.FeedBill, 0)
	for rows.Next() {
		var item models.FeedBill
		var latest, introduced sql.NullTime
		var updated time.Time
		if err := rows.Scan(
			&item.BillID, &item.Jurisdiction, &item.Parliament, &item.Session, &item.Number,
			&item.Title, &item.Status, &item.SponsorSlug, &item.SponsorName,
			&latest, &introduced, &updated, &item.Link,
		); err != nil {
			return nil, err
		}
		switch {
		case latest.Valid:
			item.LatestActivityAt = timePtr(latest)
		case introduced.Valid:
			item.LatestActivityAt = timePtr(introduced)
		default:
			item.LatestActivityAt = &updated
		}
		items = append(items, item)
	}

	return items, rows.Err()
}
