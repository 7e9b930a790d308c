package services

import (
	"context"
	"fmt"

	"parliament-api/models"
)

// BillService handles business logic for bills
type BillService struct {
	repo         BillRepository
	jurisdiction string
}

// NewBillService creates a new bill service. Natural-key lookups use the
// given jurisdiction.
func NewBillService(repo BillRepository, jurisdiction string) *BillService {
	if jurisdiction == "" {
		jurisdiction = models.DefaultJurisdiction
	}
	return &BillService{repo: repo, jurisdiction: jurisdiction}
}

// List returns one page of bills matching the filter
func (bs *BillService) List(ctx context.Context, f models.BillFilter) (*Page[models.Bill], error) {
	f.Limit, f.Offset = NormalizePage(f.Limit, f.Offset)
	f.Sponsor = models.NormalizeSlug(f.Sponsor)

	return listPage(f.Limit, f.Offset,
		func() ([]models.Bill, error) { return bs.repo.ListBills(ctx, f) },
		func() (int, error) { return bs.repo.CountBills(ctx, f) },
	)
}

// Get looks a bill up by session code ("44-1") and number ("C-11")
func (bs *BillService) Get(ctx context.Context, sessionCode, number string) (*models.Bill, error) {
	parliament, session, err := models.ParseSession(sessionCode)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSession, sessionCode)
	}

	bill, err := bs.repo.GetBillByNaturalKey(ctx, models.NaturalKey{
		Jurisdiction: bs.jurisdiction,
		Parliament:   parliament,
		Session:      session,
		Number:       models.NormalizeBillNumber(number),
	})
	if err != nil {
		return nil, err
	}
	if bill == nil {
		return nil, ErrBillNotFound
	}
	return bill, nil
}

func (bs *BillService) GetByID(ctx context.Context, id string) (*models.Bill, error) {
	bill, err := bs.repo.GetBillByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if bill == nil {
		return nil, ErrBillNotFound
	}
	return bill, nil
}
