package services

import (
	"context"
	"time"

	"parliament-api/models"
)

// BillRepository defines the interface for bill data access
type BillRepository interface {
	ListBills(ctx context.Context, f models.BillFilter) ([]models.Bill, error)
	CountBills(ctx context.Context, f models.BillFilter) (int, error)
	GetBillByNaturalKey(ctx context.Context, key models.NaturalKey) (*models.Bill, error)
	GetBillByID(ctx context.Context, id string) (*models.Bill, error)
}

// PoliticianRepository defines the interface for politician data access
type PoliticianRepository interface {
	ListPoliticians(ctx context.Context, f models.PoliticianFilter) ([]models.Politician, error)
	CountPoliticians(ctx context.Context, f models.PoliticianFilter) (int, error)
	GetPoliticianBySlug(ctx context.Context, slug string) (*models.Politician, error)
	ListBillsBySponsor(ctx context.Context, slug string, limit int) ([]models.Bill, error)
}

type VoteRepository interface {
	ListVotes(ctx context.Context, f models.VoteFilter) ([]models.Vote, error)
	CountVotes(ctx context.Context, f models.VoteFilter) (int, error)
	GetVote(ctx context.Context, session string, number int) (*models.Vote, error)
}

type DebateRepository interface {
	ListDebates(ctx context.Context, f models.DebateFilter) ([]models.Debate, error)
	CountDebates(ctx context.Context, f models.DebateFilter) (int, error)
	GetDebate(ctx context.Context, date time.Time, number string) (*models.Debate, error)
}

type CommitteeRepository interface {
	ListCommittees(ctx context.Context, f models.CommitteeFilter) ([]models.Committee, error)
	CountCommittees(ctx context.Context, f models.CommitteeFilter) (int, error)
	GetCommitteeBySlug(ctx context.Context, slug string) (*models.Committee, error)
}

// FeedRepository reads the precomputed latest-bills table
type FeedRepository interface {
	ListFeedBills(ctx context.Context, sponsorSlug string, limit int) ([]models.FeedBill, error)
	GetPoliticianBySlug(ctx context.Context, slug string) (*models.Politician, error)
}

type IngestRepository interface {
	ListIngestRuns(ctx context.Context, entity models.Entity, limit int) ([]models.IngestRun, error)
	LatestIngestRun(ctx context.Context, entity models.Entity) (*models.IngestRun, error)
}

// IngestTrigger starts a background ingest run; production uses pipeline.Worker
type IngestTrigger interface {
	Trigger(entity models.Entity) error
}
