package pipeline

import (
	"context"
	"fmt"

	"parliament-api/models"
)

// collectionIngestor ingests a flat OpenParliament collection whose list
// rows already carry everything stored.
type collectionIngestor struct {
	entity models.Entity
	store  Store
	opts   Options
	list   func(context.Context, *Options, *models.IngestRun) error
}

func (c *collectionIngestor) Entity() models.Entity { return c.entity }

func (c *collectionIngestor) Run(ctx context.Context) (*models.IngestRun, error) {
	return tracked(ctx, c.store, c.opts.Logger, c.entity, func(ctx context.Context, run *models.IngestRun) error {
		return c.list(ctx, &c.opts, run)
	})
}

// NewPoliticianIngestor stores current members. The list endpoint has no
// name parts, so members not yet stored (or renamed) are fetched
// individually for their given and family names.
func NewPoliticianIngestor(source Source, store Store, opts Options) Ingestor {
	return &collectionIngestor{
		entity: models.EntityPoliticians,
		store:  store,
		opts:   opts.normalized(),
		list: func(ctx context.Context, opts *Options, run *models.IngestRun) error {
			return paginate(ctx, *opts, run, "list politicians", source.ListPoliticians,
				func(ctx context.Context, p *models.Politician) (models.UpsertResult, error) {
					if err := resolveNames(ctx, opts, source, store, p); err != nil {
						return "", err
					}
					p.ContentHash = HashPolitician(p)
					result, err := store.UpsertPolitician(ctx, p)
					if err != nil {
						return "", fmt.Errorf("upsert politician %s: %w", p.Slug, err)
					}
					return result, nil
				})
		},
	}
}

func resolveNames(ctx context.Context, opts *Options, source Source, store Store, p *models.Politician) error {
	stored, err := store.GetPoliticianBySlug(ctx, p.Slug)
	if err != nil {
		return fmt.Errorf("load politician %s: %w", p.Slug, err)
	}
	if stored != nil && stored.Name == p.Name && stored.FamilyName != "" {
		p.GivenName, p.FamilyName = stored.GivenName, stored.FamilyName
		return nil
	}

	var detail *models.Politician
	err = opts.Retry.call(ctx, opts.Logger, "get politician "+p.Slug, func(ctx context.Context) error {
		var err error
		detail, err = source.GetPolitician(ctx, p.Slug)
		return err
	})
	if err != nil {
		// Keep the names derived from the list row.
		opts.Logger.Warn("Politician stored without detail names", "slug", p.Slug, "error", err)
		return nil
	}
	if detail.FamilyName != "" {
		p.GivenName, p.FamilyName = detail.GivenName, detail.FamilyName
	}
	return nil
}

// NewVoteIngestor links each vote to its bill when the bill is already stored.
func NewVoteIngestor(source Source, store Store, opts Options) Ingestor {
	return &collectionIngestor{
		entity: models.EntityVotes,
		store:  store,
		opts:   opts.normalized(),
		list: func(ctx context.Context, opts *Options, run *models.IngestRun) error {
			return paginate(ctx, *opts, run, "list votes", source.ListVotes,
				func(ctx context.Context, v *models.Vote) (models.UpsertResult, error) {
					if v.BillKey != nil {
						bill, err := store.GetBillByNaturalKey(ctx, *v.BillKey)
						if err != nil {
							return "", fmt.Errorf("resolve bill %s for vote %s/%d: %w", v.BillKey, v.Session, v.Number, err)
						}
						if bill != nil {
							v.BillID = bill.ID
						}
					}
					v.ContentHash = HashVote(v)
					result, err := store.UpsertVote(ctx, v)
					if err != nil {
						return "", fmt.Errorf("upsert vote %s/%d: %w", v.Session, v.Number, err)
					}
					return result, nil
				})
		},
	}
}

func NewDebateIngestor(source Source, store Store, opts Options) Ingestor {
	return &collectionIngestor{
		entity: models.EntityDebates,
		store:  store,
		opts:   opts.normalized(),
		list: func(ctx context.Context, opts *Options, run *models.IngestRun) error {
			return paginate(ctx, *opts, run, "list debates", source.ListDebates,
				func(ctx context.Context, d *models.Debate) (models.UpsertResult, error) {
					d.ContentHash = HashDebate(d)
					result, err := store.UpsertDebate(ctx, d)
					if err != nil {
						return "", fmt.Errorf("upsert debate %s: %w", d.Number, err)
					}
					return result, nil
				})
		},
	}
}

func NewCommitteeIngestor(source Source, store Store, opts Options) Ingestor {
	return &collectionIngestor{
		entity: models.EntityCommittees,
		store:  store,
		opts:   opts.normalized(),
		list: func(ctx context.Context, opts *Options, run *models.IngestRun) error {
			return paginate(ctx, *opts, run, "list committees", source.ListCommittees,
				func(ctx context.Context, c *models.Committee) (models.UpsertResult, error) {
					c.ContentHash = HashCommittee(c)
					result, err := store.UpsertCommittee(ctx, c)
					if err != nil {
						return "", fmt.Errorf("upsert committee %s: %w", c.Slug, err)
					}
					return result, nil
				})
		},
	}
}

// NewIngestors wires every ingestor against the same source and store.
func NewIngestors(source Source, enricher Enricher, store Store, opts Options) []Ingestor {
	return []Ingestor{
		NewPoliticianIngestor(source, store, opts),
		NewCommitteeIngestor(source, store, opts),
		NewBillPipeline(source, enricher, store, opts),
		NewVoteIngestor(source, store, opts),
		NewDebateIngestor(source, store, opts),
	}
}
