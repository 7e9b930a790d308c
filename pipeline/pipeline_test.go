package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"parliament-api/adapters"
	"parliament-api/adapters/legisinfo"
	"parliament-api/adapters/openparliament"
	"parliament-api/database"
	"parliament-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupTestRepo(t *testing.T) (*database.Repository, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "pipeline-test-*")
	require.NoError(t, err)

	db, err := database.New(database.DriverSQLite, filepath.Join(tmpDir, "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())

	cleanup := func() {
		db.Close()
		os.RemoveAll(tmpDir)
	}
	return database.NewRepository(db), cleanup
}

func testOptions() Options {
	return Options{
		MaxPages: 5,
		PageSize: 2,
		Retry:    RetryPolicy{Attempts: 3, Delay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func summary(number string) models.Bill {
	return models.Bill{
		Jurisdiction: models.DefaultJurisdiction,
		Parliament:   44,
		Session:      1,
		Number:       number,
		TitleEn:      "An Act respecting " + number,
		IntroducedOn: datePtr(2022, time.February, 2),
		SourceURL:    "https://openparliament.ca/bills/44-1/" + number + "/",
	}
}

// fakeSource serves bill pages by next URL and records calls.
type fakeSource struct {
	mu         sync.Mutex
	billPages  [][]models.Bill
	listErr    error
	listCalls  int
	detailErrs map[string]error
	votes      []models.Vote
	politician []models.Politician
	// details backs GetPolitician; missing slugs are a 404.
	details     map[string]models.Politician
	detailCalls int
	// skipped is reported on the first bill page as malformed rows.
	skipped    int
	debates    []models.Debate
	committees []models.Committee
}

func (f *fakeSource) ListBills(ctx context.Context, req openparliament.PageRequest) (*openparliament.Page[models.Bill], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}

	idx := 0
	if req.Next != "" {
		fmt.Sscanf(req.Next, "/bills/?page=%d", &idx)
	}
	page := &openparliament.Page[models.Bill]{}
	if idx == 0 {
		page.Skipped = f.skipped
	}
	if idx < len(f.billPages) {
		page.Items = append([]models.Bill(nil), f.billPages[idx]...)
	}
	if idx+1 < len(f.billPages) {
		page.NextURL = fmt.Sprintf("/bills/?page=%d", idx+1)
	}
	return page, nil
}

func (f *fakeSource) GetBill(ctx context.Context, session, number string) (*models.Bill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.detailErrs[number]; ok {
		return nil, err
	}
	for _, page := range f.billPages {
		for _, b := range page {
			if b.Number == number && b.SessionCode() == session {
				detail := b
				detail.Status = "At second reading"
				detail.SponsorSlug = "pablo-rodriguez"
				return &detail, nil
			}
		}
	}
	return nil, &adapters.APIError{StatusCode: http.StatusNotFound}
}

func (f *fakeSource) ListPoliticians(ctx context.Context, req openparliament.PageRequest) (*openparliament.Page[models.Politician], error) {
	return &openparliament.Page[models.Politician]{Items: append([]models.Politician(nil), f.politician...)}, nil
}

func (f *fakeSource) GetPolitician(ctx context.Context, slug string) (*models.Politician, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailCalls++
	if p, ok := f.details[slug]; ok {
		return &p, nil
	}
	return nil, &adapters.APIError{StatusCode: http.StatusNotFound}
}

func (f *fakeSource) ListVotes(ctx context.Context, req openparliament.PageRequest) (*openparliament.Page[models.Vote], error) {
	return &openparliament.Page[models.Vote]{Items: append([]models.Vote(nil), f.votes...)}, nil
}

func (f *fakeSource) ListDebates(ctx context.Context, req openparliament.PageRequest) (*openparliament.Page[models.Debate], error) {
	return &openparliament.Page[models.Debate]{Items: append([]models.Debate(nil), f.debates...)}, nil
}

func (f *fakeSource) ListCommittees(ctx context.Context, req openparliament.PageRequest) (*openparliament.Page[models.Committee], error) {
	return &openparliament.Page[models.Committee]{Items: append([]models.Committee(nil), f.committees...)}, nil
}

type mockEnricher struct {
	mock.Mock
}

func (m *mockEnricher) GetBill(ctx context.Context, parliament, session int, number string) (*legisinfo.BillDetail, error) {
	args := m.Called(ctx, parliament, session, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*legisinfo.BillDetail), args.Error(1)
}

func TestBillPipelineRun(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	source := &fakeSource{billPages: [][]models.Bill{
		{summary("C-11"), summary("C-2")},
		{summary("S-5")},
	}}

	enricher := new(mockEnricher)
	enricher.On("GetBill", mock.Anything, 44, 1, "C-11").Return(&legisinfo.BillDetail{
		LegisInfoID:      "11643045",
		ShortTitleEn:     "Online Streaming Act",
		Status:           "Royal assent received",
		SponsorName:      "Pablo Rodriguez",
		RoyalAssentOn:    datePtr(2023, time.April, 27),
		LatestActivityAt: datePtr(2023, time.April, 27),
	}, nil)
	enricher.On("GetBill", mock.Anything, 44, 1, "C-2").
		Return(nil, fmt.Errorf("legisinfo: %w", adapters.ErrNotFound))
	// A transient failure is retried.
	enricher.On("GetBill", mock.Anything, 44, 1, "S-5").
		Return(nil, &adapters.APIError{StatusCode: http.StatusServiceUnavailable}).Once()
	enricher.On("GetBill", mock.Anything, 44, 1, "S-5").
		Return(&legisinfo.BillDetail{Status: "At consideration in committee"}, nil)

	p := NewBillPipeline(source, enricher, repo, testOptions())

	run, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.IngestStatusSucceeded, run.Status)
	assert.Equal(t, 3, run.Fetched)
	assert.Equal(t, 3, run.Created)
	assert.Equal(t, 0, run.Failed)

	c11, err := repo.GetBillByNaturalKey(ctx, models.NaturalKey{Jurisdiction: models.DefaultJurisdiction, Parliament: 44, Session: 1, Number: "C-11"})
	require.NoError(t, err)
	require.NotNil(t, c11)
	assert.True(t, c11.Enriched)
	assert.True(t, c11.Law)
	assert.Equal(t, "Royal assent received", c11.Status)
	assert.Equal(t, "Online Streaming Act", c11.ShortTitleEn)
	assert.Equal(t, "11643045", c11.LegisInfoID)
	assert.Equal(t, "pablo-rodriguez", c11.SponsorSlug)
	assert.NotEmpty(t, c11.ContentHash)

	c2, err := repo.GetBillByNaturalKey(ctx, models.NaturalKey{Jurisdiction: models.DefaultJurisdiction, Parliament: 44, Session: 1, Number: "C-2"})
	require.NoError(t, err)
	require.NotNil(t, c2)
	assert.False(t, c2.Enriched, "bill is stored even when enrichment fails")
	assert.Equal(t, "At second reading", c2.Status)

	feed, err := repo.ListFeedBills(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, feed, 3, "feed is refreshed after the run")

	// A second identical run changes nothing.
	again, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, again.Unchanged)
	assert.Equal(t, 0, again.Created+again.Updated)

	latest, err := repo.LatestIngestRun(ctx, models.EntityBills)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, again.ID, latest.ID)
	assert.Equal(t, 3, latest.Unchanged)
}

func TestBillPipelineListFailure(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	source := &fakeSource{listErr: &adapters.APIError{StatusCode: http.StatusBadGateway}}
	p := NewBillPipeline(source, nil, repo, testOptions())

	run, err := p.Run(context.Background())
	require.Error(t, err)
	require.NotNil(t, run)
	assert.Equal(t, models.IngestStatusFailed, run.Status)
	assert.Contains(t, run.Error, "502")
	assert.Equal(t, 3, source.listCalls, "listing is retried up to the attempt limit")

	latest, err := repo.LatestIngestRun(context.Background(), models.EntityBills)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, models.IngestStatusFailed, latest.Status)
	assert.NotNil(t, latest.FinishedAt)
}

func TestBillPipelineClientErrorNotRetried(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	source := &fakeSource{listErr: &adapters.APIError{StatusCode: http.StatusBadRequest}}
	p := NewBillPipeline(source, nil, repo, testOptions())

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, source.listCalls)
}

func TestBillPipelineCountsItemFailures(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	source := &fakeSource{
		billPages:  [][]models.Bill{{summary("C-11"), summary("C-404")}},
		detailErrs: map[string]error{"C-404": &adapters.APIError{StatusCode: http.StatusNotFound}},
	}
	p := NewBillPipeline(source, nil, repo, testOptions())

	run, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.IngestStatusSucceeded, run.Status)
	assert.Equal(t, 2, run.Fetched)
	assert.Equal(t, 1, run.Created)
	assert.Equal(t, 1, run.Failed)
}

func TestBillPipelineCountsSkippedRows(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	source := &fakeSource{billPages: [][]models.Bill{{summary("C-11")}}, skipped: 2}

	run, err := NewBillPipeline(source, nil, repo, testOptions()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, run.Fetched)
	assert.Equal(t, 1, run.Created)
	assert.Equal(t, 2, run.Failed)
}

func TestPoliticianIngestorResolvesNames(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	// List rows carry names split at the last word.
	source := &fakeSource{
		politician: []models.Politician{
			{Slug: "kevin-van-koughnett", Name: "Kevin Van Koughnett", GivenName: "Kevin Van", FamilyName: "Koughnett"},
			{Slug: "elizabeth-may", Name: "Elizabeth May", GivenName: "Elizabeth", FamilyName: "May"},
		},
		details: map[string]models.Politician{
			"kevin-van-koughnett": {Slug: "kevin-van-koughnett", Name: "Kevin Van Koughnett", GivenName: "Kevin", FamilyName: "Van Koughnett"},
		},
	}
	ingestor := NewPoliticianIngestor(source, repo, testOptions())

	run, err := ingestor.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, run.Created)
	assert.Equal(t, 0, run.Failed)
	assert.Equal(t, 2, source.detailCalls)

	kevin, err := repo.GetPoliticianBySlug(ctx, "kevin-van-koughnett")
	require.NoError(t, err)
	require.NotNil(t, kevin)
	assert.Equal(t, "Kevin", kevin.GivenName)
	assert.Equal(t, "Van Koughnett", kevin.FamilyName)

	may, err := repo.GetPoliticianBySlug(ctx, "elizabeth-may")
	require.NoError(t, err)
	require.NotNil(t, may)
	assert.Equal(t, "May", may.FamilyName, "falls back to the list row without detail")

	t.Run("Stored members are not refetched", func(t *testing.T) {
		run, err := ingestor.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, run.Unchanged)
		assert.Equal(t, 2, source.detailCalls)

		kevin, err := repo.GetPoliticianBySlug(ctx, "kevin-van-koughnett")
		require.NoError(t, err)
		assert.Equal(t, "Van Koughnett", kevin.FamilyName)
	})
}

func TestVoteIngestorLinksBills(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	bill := summary("C-11")
	bill.ContentHash = HashBill(&bill)
	_, err := repo.UpsertBill(ctx, &bill)
	require.NoError(t, err)

	key := bill.Key()
	source := &fakeSource{votes: []models.Vote{
		{Session: "44-1", Number: 120, Date: time.Date(2022, 6, 21, 0, 0, 0, 0, time.UTC), Result: "Passed", BillKey: &key},
		{Session: "44-1", Number: 121, Date: time.Date(2022, 6, 21, 0, 0, 0, 0, time.UTC), Result: "Negatived"},
	}}

	run, err := NewVoteIngestor(source, repo, testOptions()).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, run.Created)

	linked, err := repo.GetVote(ctx, "44-1", 120)
	require.NoError(t, err)
	require.NotNil(t, linked)
	assert.Equal(t, bill.ID, linked.BillID)

	unlinked, err := repo.GetVote(ctx, "44-1", 121)
	require.NoError(t, err)
	require.NotNil(t, unlinked)
	assert.Empty(t, unlinked.BillID)
}

func TestRunnerRunAll(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	source := &fakeSource{
		billPages:  [][]models.Bill{{summary("C-11")}},
		politician: []models.Politician{{Slug: "pablo-rodriguez", Name: "Pablo Rodriguez"}},
		debates:    []models.Debate{{Date: time.Date(2022, 6, 21, 0, 0, 0, 0, time.UTC), Number: "95"}},
		committees: []models.Committee{{Slug: "finance", NameEn: "Finance"}},
	}
	runner := NewRunner(nil, NewIngestors(source, nil, repo, testOptions())...)

	runs, err := runner.RunAll(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, len(models.AllEntities))
	for i, run := range runs {
		assert.Equal(t, models.AllEntities[i], run.Entity)
		assert.Equal(t, models.IngestStatusSucceeded, run.Status)
	}

	_, err = runner.Run(context.Background(), "hansard")
	assert.ErrorIs(t, err, ErrUnknownEntity)
}

func TestMerge(t *testing.T) {
	base := summary("C-11")
	base.LegisInfoID = "1"
	base.Status = "op status"

	t.Run("no detail", func(t *testing.T) {
		merged := Merge(&base, nil)
		assert.False(t, merged.Enriched)
		assert.Equal(t, "op status", merged.Status)
	})

	t.Run("detail wins for status and dates", func(t *testing.T) {
		merged := Merge(&base, &legisinfo.BillDetail{
			LegisInfoID:   "2",
			LongTitleEn:   "Long title",
			Status:        "Royal assent received",
			RoyalAssentOn: datePtr(2023, time.April, 27),
		})
		assert.True(t, merged.Enriched)
		assert.Equal(t, "Long title", merged.TitleEn)
		assert.Equal(t, "Royal assent received", merged.Status)
		assert.True(t, merged.Law)
		assert.Equal(t, "1", merged.LegisInfoID, "existing ids are kept")
		assert.Equal(t, base.SourceURL, merged.SourceURL)
		assert.Equal(t, base.IntroducedOn, merged.IntroducedOn)
	})

	t.Run("empty fields do not erase", func(t *testing.T) {
		merged := Merge(&base, &legisinfo.BillDetail{})
		assert.Equal(t, base.TitleEn, merged.TitleEn)
		assert.Equal(t, "op status", merged.Status)
	})

	assert.Equal(t, "op status", base.Status, "input is not mutated")
}

func TestHashBill(t *testing.T) {
	a := summary("C-11")
	b := summary("c-11")
	b.ID = "other-id"
	b.CreatedAt = time.Now()
	b.FetchedAt = time.Now()

	assert.Equal(t, HashBill(&a), HashBill(&b), "ids, timestamps and number case are ignored")

	b.Status = "Royal assent received"
	assert.NotEqual(t, HashBill(&a), HashBill(&b))

	// Same instant in another zone hashes the same.
	c := summary("C-11")
	local := c.IntroducedOn.In(time.FixedZone("EST", -5*3600))
	c.IntroducedOn = &local
	assert.Equal(t, HashBill(&a), HashBill(&c))
}

func TestRetryPolicy(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	policy := RetryPolicy{Attempts: 4, Delay: time.Millisecond}

	t.Run("retries transient errors", func(t *testing.T) {
		calls := 0
		err := policy.call(context.Background(), logger, "op", func(context.Context) error {
			calls++
			if calls < 3 {
				return &adapters.APIError{StatusCode: http.StatusInternalServerError}
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("returns last error after attempts", func(t *testing.T) {
		calls := 0
		err := policy.call(context.Background(), logger, "op", func(context.Context) error {
			calls++
			return &adapters.APIError{StatusCode: http.StatusTooManyRequests}
		})
		var apiErr *adapters.APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
		assert.Equal(t, 4, calls)
	})

	t.Run("stops on fatal errors", func(t *testing.T) {
		calls := 0
		err := policy.call(context.Background(), logger, "op", func(context.Context) error {
			calls++
			return adapters.ErrNotFound
		})
		assert.ErrorIs(t, err, adapters.ErrNotFound)
		assert.Equal(t, 1, calls)
	})

	t.Run("honours cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		slow := RetryPolicy{Attempts: 10, Delay: time.Hour}
		done := make(chan error, 1)
		go func() {
			done <- slow.call(ctx, logger, "op", func(context.Context) error {
				return errors.New("connection refused")
			})
		}()
		cancel()

		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(5 * time.Second):
			t.Fatal("retry did not stop after cancellation")
		}
	})
}
