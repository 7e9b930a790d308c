package services

import (
	"context"
	"strings"
	"time"

	"parliament-api/models"
)

// SponsoredBillsLimit caps the bills embedded in a politician response.
const SponsoredBillsLimit = 50

// ==================== POLITICIANS ====================

type PoliticianService struct {
	repo PoliticianRepository
}

func NewPoliticianService(repo PoliticianRepository) *PoliticianService {
	return &PoliticianService{repo: repo}
}

// PoliticianDetail is a politician with the bills they sponsored.
type PoliticianDetail struct {
	models.Politician
	SponsoredBills []models.Bill `json:"sponsored_bills"`
}

func (ps *PoliticianService) List(ctx context.Context, f models.PoliticianFilter) (*Page[models.Politician], error) {
	f.Limit, f.Offset = NormalizePage(f.Limit, f.Offset)
	f.Province = strings.ToUpper(strings.TrimSpace(f.Province))

	return listPage(f.Limit, f.Offset,
		func() ([]models.Politician, error) { return ps.repo.ListPoliticians(ctx, f) },
		func() (int, error) { return ps.repo.CountPoliticians(ctx, f) },
	)
}

func (ps *PoliticianService) Get(ctx context.Context, slug string) (*PoliticianDetail, error) {
	slug = models.NormalizeSlug(slug)
	pol, err := ps.repo.GetPoliticianBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if pol == nil {
		return nil, ErrPoliticianNotFound
	}

	bills, err := ps.repo.ListBillsBySponsor(ctx, slug, SponsoredBillsLimit)
	if err != nil {
		return nil, err
	}
	return &PoliticianDetail{Politician: *pol, SponsoredBills: bills}, nil
}

// ==================== VOTES ====================

type VoteService struct {
	repo VoteRepository
}

func NewVoteService(repo VoteRepository) *VoteService {
	return &VoteService{repo: repo}
}

func (vs *VoteService) List(ctx context.Context, f models.VoteFilter) (*Page[models.Vote], error) {
	f.Limit, f.Offset = NormalizePage(f.Limit, f.Offset)

	return listPage(f.Limit, f.Offset,
		func() ([]models.Vote, error) { return vs.repo.ListVotes(ctx, f) },
		func() (int, error) { return vs.repo.CountVotes(ctx, f) },
	)
}

func (vs *VoteService) Get(ctx context.Context, session string, number int) (*models.Vote, error) {
	if _, _, err := models.ParseSession(session); err != nil {
		return nil, ErrInvalidSession
	}

	vote, err := vs.repo.GetVote(ctx, session, number)
	if err != nil {
		return nil, err
	}
	if vote == nil {
		return nil, ErrVoteNotFound
	}
	return vote, nil
}

// ==================== DEBATES ====================

type DebateService struct {
	repo DebateRepository
}

func NewDebateService(repo DebateRepository) *DebateService {
	return &DebateService{repo: repo}
}

func (ds *DebateService) List(ctx context.Context, f models.DebateFilter) (*Page[models.Debate], error) {
	f.Limit, f.Offset = NormalizePage(f.Limit, f.Offset)

	return listPage(f.Limit, f.Offset,
		func() ([]models.Debate, error) { return ds.repo.ListDebates(ctx, f) },
		func() (int, error) { return ds.repo.CountDebates(ctx, f) },
	)
}

func (ds *DebateService) Get(ctx context.Context, date time.Time, number string) (*models.Debate, error) {
	debate, err := ds.repo.GetDebate(ctx, date, number)
	if err != nil {
		return nil, err
	}
	if debate == nil {
		return nil, ErrDebateNotFound
	}
	return debate, nil
}

// ==================== COMMITTEES ====================

type CommitteeService struct {
	repo CommitteeRepository
}

func NewCommitteeService(repo CommitteeRepository) *CommitteeService {
	return &CommitteeService{repo: repo}
}

func (cs *CommitteeService) List(ctx context.Context, f models.CommitteeFilter) (*Page[models.Committee], error) {
	f.Limit, f.Offset = NormalizePage(f.Limit, f.Offset)

	return listPage(f.Limit, f.Offset,
		func() ([]models.Committee, error) { return cs.repo.ListCommittees(ctx, f) },
		func() (int, error) { return cs.repo.CountCommittees(ctx, f) },
	)
}

func (cs *CommitteeService) Get(ctx context.Context, slug string) (*models.Committee, error) {
	committee, err := cs.repo.GetCommitteeBySlug(ctx, models.NormalizeSlug(slug))
	if err != nil {
		return nil, err
	}
	if committee == nil {
		return nil, ErrCommitteeNotFound
	}
	return committee, nil
}
