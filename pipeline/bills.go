package pipeline

import (
	"context"
	"errors"
	"fmt"

	"parliament-api/adapters"
	"parliament-api/adapters/legisinfo"
	"parliament-api/models"
)

// BillPipeline ingests bills: list summaries, fetch each bill's detail,
// enrich it from LEGISinfo, merge, hash and upsert by natural key.
type BillPipeline struct {
	source   Source
	enricher Enricher
	store    Store
	opts     Options
}

// NewBillPipeline builds the bill ingestor. A nil enricher stores bills
// without LEGISinfo detail.
func NewBillPipeline(source Source, enricher Enricher, store Store, opts Options) *BillPipeline {
	return &BillPipeline{
		source:   source,
		enricher: enricher,
		store:    store,
		opts:     opts.normalized(),
	}
}

func (p *BillPipeline) Entity() models.Entity { return models.EntityBills }

func (p *BillPipeline) Run(ctx context.Context) (*models.IngestRun, error) {
	return tracked(ctx, p.store, p.opts.Logger, models.EntityBills, func(ctx context.Context, run *models.IngestRun) error {
		err := paginate(ctx, p.opts, run, "list bills", p.source.ListBills, p.processBill)

		// Refresh even after a partial run so the feed reflects what was stored.
		if run.Created+run.Updated > 0 || err == nil {
			n, refreshErr := p.store.RefreshBillFeed(context.WithoutCancel(ctx))
			if refreshErr != nil {
				p.opts.Logger.Error("Failed to refresh bill feed", "error", refreshErr)
				if err == nil {
					err = fmt.Errorf("refresh bill feed: %w", refreshErr)
				}
			} else {
				p.opts.Logger.Debug("Bill feed refreshed", "rows", n)
			}
		}
		return err
	})
}

func (p *BillPipeline) processBill(ctx context.Context, summary *models.Bill) (models.UpsertResult, error) {
	key := summary.Key()

	var bill *models.Bill
	err := p.opts.Retry.call(ctx, p.opts.Logger, "get bill "+key.String(), func(ctx context.Context) error {
		var err error
		bill, err = p.source.GetBill(ctx, summary.SessionCode(), summary.Number)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("fetch bill %s: %w", key, err)
	}

	detail := p.enrich(ctx, bill)
	merged := Merge(bill, detail)
	merged.ContentHash = HashBill(merged)

	result, err := p.store.UpsertBill(ctx, merged)
	if err != nil {
		return "", fmt.Errorf("upsert bill %s: %w", key, err)
	}
	return result, nil
}

// enrich returns nil when LEGISinfo has nothing usable for the bill.
func (p *BillPipeline) enrich(ctx context.Context, bill *models.Bill) *legisinfo.BillDetail {
	if p.enricher == nil {
		return nil
	}

	var detail *legisinfo.BillDetail
	err := p.opts.Retry.call(ctx, p.opts.Logger, "enrich bill "+bill.Key().String(), func(ctx context.Context) error {
		var err error
		detail, err = p.enricher.GetBill(ctx, bill.Parliament, bill.Session, bill.Number)
		return err
	})
	if err != nil {
		level := p.opts.Logger.Warn
		if errors.Is(err, adapters.ErrNotFound) {
			level = p.opts.Logger.Debug
		}
		level("Bill stored without enrichment", "bill", bill.Key().String(), "error", err)
		return nil
	}
	return detail
}

// Merge folds LEGISinfo detail into an OpenParliament bill. LEGISinfo wins
// for status, titles, sponsor name and dates when it has a value;
// OpenParliament keeps identifiers and links.
func Merge(bill *models.Bill, detail *legisinfo.BillDetail) *models.Bill {
	merged := *bill
	if detail == nil {
		merged.Enriched = false
		return &merged
	}

	merged.Enriched = true
	override(&merged.TitleEn, detail.LongTitleEn)
	override(&merged.TitleFr, detail.LongTitleFr)
	override(&merged.ShortTitleEn, detail.ShortTitleEn)
	override(&merged.ShortTitleFr, detail.ShortTitleFr)
	override(&merged.Status, detail.Status)
	override(&merged.SponsorName, detail.SponsorName)

	if detail.IntroducedOn != nil {
		merged.IntroducedOn = detail.IntroducedOn
	}
	if detail.LatestActivityAt != nil {
		merged.LatestActivityAt = detail.LatestActivityAt
	}
	if detail.RoyalAssentOn != nil {
		merged.RoyalAssentOn = detail.RoyalAssentOn
		merged.Law = true
	}
	if merged.LegisInfoID == "" {
		merged.LegisInfoID = detail.LegisInfoID
	}
	return &merged
}

func override(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}
