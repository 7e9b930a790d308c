package handlers_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"parliament-api/app"
	"parliament-api/config"
	"parliament-api/config/setup"
	"parliament-api/database"
	"parliament-api/models"
	"parliament-api/pipeline"
	"parliament-api/ratelimit"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAdminKey = "test-admin-key"

// blockingIngestor holds its run open until release is closed
type blockingIngestor struct {
	entity  models.Entity
	release chan struct{}
}

func (b *blockingIngestor) Entity() models.Entity { return b.entity }

func (b *blockingIngestor) Run(ctx context.Context) (*models.IngestRun, error) {
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return &models.IngestRun{Entity: b.entity, Status: models.IngestStatusSucceeded}, nil
}

type testEnv struct {
	fiber   *fiber.App
	app     *app.App
	repo    *database.Repository
	release chan struct{}
}

func testConfig() *config.Config {
	return &config.Config{
		Env:          "test",
		Jurisdiction: models.DefaultJurisdiction,
		AdminAPIKey:  testAdminKey,
		CORSOrigins:  "*",
		FeedBaseURL:  "https://api.example.org",
	}
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// setupTestApp creates a temporary database with seed data and a fully
// routed Fiber app on top of it
func setupTestApp(t *testing.T, limiter ratelimit.Limiter, opts ...func(*config.Config)) *testEnv {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "parliament-handlers-test-*")
	require.NoError(t, err)

	db, err := database.New(database.DriverSQLite, filepath.Join(tmpDir, "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())

	repo := database.NewRepository(db)
	seed(t, repo)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	release := make(chan struct{})
	runner := pipeline.NewRunner(logger, &blockingIngestor{entity: models.EntityBills, release: release})
	worker := pipeline.NewWorker(runner, pipeline.WorkerConfig{Interval: time.Hour}, logger)

	if limiter == nil {
		limiter = ratelimit.NewMemoryLimiter(1000, 1000)
	}

	cfg := testConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	application := app.New(cfg, repo, worker, limiter, ratelimit.NewMemoryStats(), logger)

	fiberApp := setup.NewFiberApp(cfg, logger)
	setup.ApplyMiddleware(fiberApp, application, logger)
	setup.RegisterRoutes(fiberApp, application)

	t.Cleanup(func() {
		select {
		case <-release:
		default:
			close(release)
		}
		worker.Stop()
		db.Close()
		os.RemoveAll(tmpDir)
	})

	return &testEnv{fiber: fiberApp, app: application, repo: repo, release: release}
}

func seed(t *testing.T, repo *database.Repository) {
	t.Helper()
	ctx := context.Background()

	_, err := repo.UpsertPolitician(ctx, &models.Politician{
		Slug: "pablo-rodriguez", Name: "Pablo Rodriguez", Party: "Liberal", Province: "QC",
		SourceURL: "https://openparliament.ca/politicians/pablo-rodriguez/", ContentHash: "p1",
	})
	require.NoError(t, err)

	_, err = repo.UpsertBill(ctx, &models.Bill{
		Jurisdiction: models.DefaultJurisdiction, Parliament: 44, Session: 1, Number: "C-11",
		TitleEn: "An Act to amend the Broadcasting Act", ShortTitleEn: "Online Streaming Act",
		Status: "Royal assent received", Law: true,
		SponsorSlug: "pablo-rodriguez", SponsorName: "Pablo Rodriguez",
		IntroducedOn: datePtr(2022, time.February, 2), LatestActivityAt: datePtr(2023, time.April, 27),
		SourceURL: "https://openparliament.ca/bills/44-1/C-11/", ContentHash: "b1",
	})
	require.NoError(t, err)

	_, err = repo.UpsertBill(ctx, &models.Bill{
		Jurisdiction: models.DefaultJurisdiction, Parliament: 44, Session: 1, Number: "S-5",
		TitleEn: "Strengthening Environmental Protection for a Healthier Canada Act",
		Status:  "At consideration in committee in the House of Commons",
		IntroducedOn: datePtr(2022, time.February, 9), LatestActivityAt: datePtr(2022, time.June, 22),
		SourceURL: "https://openparliament.ca/bills/44-1/S-5/", ContentHash: "b2",
	})
	require.NoError(t, err)

	_, err = repo.UpsertVote(ctx, &models.Vote{
		Session: "44-1", Number: 1, Date: time.Date(2021, time.November, 30, 0, 0, 0, 0, time.UTC),
		DescriptionEn: "2nd reading of Bill C-2", Result: "Passed", YeaTotal: 327,
		SourceURL: "https://openparliament.ca/votes/44-1/1/", ContentHash: "v1",
	})
	require.NoError(t, err)

	_, err = repo.UpsertDebate(ctx, &models.Debate{
		Date: time.Date(2022, time.June, 21, 0, 0, 0, 0, time.UTC), Number: "95",
		SourceURL: "https://openparliament.ca/debates/2022/6/21/", ContentHash: "d1",
	})
	require.NoError(t, err)

	_, err = repo.UpsertCommittee(ctx, &models.Committee{
		Slug: "finance", NameEn: "Finance", ShortNameEn: "FINA",
		SourceURL: "https://openparliament.ca/committees/finance/", ContentHash: "c1",
	})
	require.NoError(t, err)

	_, err = repo.RefreshBillFeed(ctx)
	require.NoError(t, err)
}

func (e *testEnv) do(t *testing.T, method, path string, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := e.fiber.Test(req, -1)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, body
}

func decode(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return out
}

// ==================== PUBLIC ====================

func TestHealthAndIndex(t *testing.T) {
	env := setupTestApp(t, nil)

	resp, body := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode(t, body)["status"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, body = env.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(body), "<h1>Parliament API</h1>")
	assert.Contains(t, string(body), "/feeds/bills.rss")
}

func TestListBills(t *testing.T) {
	env := setupTestApp(t, nil)

	tests := []struct {
		name      string
		query     string
		wantCount int
		wantFirst string
	}{
		{name: "All bills, latest activity first", query: "", wantCount: 2, wantFirst: "C-11"},
		{name: "By sponsor", query: "?sponsor=pablo-rodriguez", wantCount: 1, wantFirst: "C-11"},
		{name: "Not yet law", query: "?law=false", wantCount: 1, wantFirst: "S-5"},
		{name: "Title search", query: "?q=environmental", wantCount: 1, wantFirst: "S-5"},
		{name: "No match", query: "?parliament=43", wantCount: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, http.MethodGet, "/api/v1/bills"+tt.query, nil)
			require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

			page := decode(t, body)
			items := page["items"].([]any)
			assert.Len(t, items, tt.wantCount)
			assert.EqualValues(t, tt.wantCount, page["total"])
			if tt.wantFirst != "" {
				assert.Equal(t, tt.wantFirst, items[0].(map[string]any)["number"])
			}
		})
	}

	t.Run("Out of range limit falls back to default", func(t *testing.T) {
		_, body := env.do(t, http.MethodGet, "/api/v1/bills?limit=500&offset=-2", nil)
		page := decode(t, body)
		assert.EqualValues(t, 20, page["limit"])
		assert.EqualValues(t, 0, page["offset"])
	})
}

func TestListBillsValidation(t *testing.T) {
	env := setupTestApp(t, nil)

	for _, query := range []string{"?sponsor=Not_A_Slug", "?law=maybe", "?sort=random", "?parliament=500"} {
		t.Run(query, func(t *testing.T) {
			resp, body := env.do(t, http.MethodGet, "/api/v1/bills"+query, nil)
			assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

			out := decode(t, body)
			assert.Equal(t, "Validation failed", out["error"])
			assert.NotEmpty(t, out["fields"])
		})
	}
}

func TestGetBill(t *testing.T) {
	env := setupTestApp(t, nil)

	resp, body := env.do(t, http.MethodGet, "/api/v1/bills/44-1/c-11", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	bill := decode(t, body)
	assert.Equal(t, "C-11", bill["number"])
	assert.Equal(t, true, bill["law"])

	resp, body = env.do(t, http.MethodGet, "/api/v1/bills/id/"+bill["id"].(string), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "C-11", decode(t, body)["number"])

	tests := []struct {
		path   string
		status int
	}{
		{"/api/v1/bills/44-1/C-999", http.StatusNotFound},
		{"/api/v1/bills/forty-four/C-11", http.StatusUnprocessableEntity},
		{"/api/v1/bills/44-1/X-11", http.StatusUnprocessableEntity},
		{"/api/v1/bills/id/not-a-uuid", http.StatusUnprocessableEntity},
		{"/api/v1/bills/id/6f1b3c8e-0d5a-4c1e-9a43-2b7f0c9d1e55", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, _ := env.do(t, http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestPoliticians(t *testing.T) {
	env := setupTestApp(t, nil)

	resp, body := env.do(t, http.MethodGet, "/api/v1/politicians?province=qc", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.EqualValues(t, 1, decode(t, body)["total"])

	resp, body = env.do(t, http.MethodGet, "/api/v1/politicians/pablo-rodriguez", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pol := decode(t, body)
	assert.Equal(t, "Pablo Rodriguez", pol["name"])
	sponsored := pol["sponsored_bills"].([]any)
	require.Len(t, sponsored, 1)
	assert.Equal(t, "C-11", sponsored[0].(map[string]any)["number"])

	resp, _ = env.do(t, http.MethodGet, "/api/v1/politicians/nobody-at-all", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/politicians?province=ZZ", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestVotesDebatesCommittees(t *testing.T) {
	env := setupTestApp(t, nil)

	tests := []struct {
		name   string
		path   string
		status int
		field  string
		want   any
	}{
		{"List votes", "/api/v1/votes?session=44-1", http.StatusOK, "total", float64(1)},
		{"Get vote", "/api/v1/votes/44-1/1", http.StatusOK, "result", "Passed"},
		{"Missing vote", "/api/v1/votes/44-1/2", http.StatusNotFound, "", nil},
		{"Bad vote number", "/api/v1/votes/44-1/first", http.StatusBadRequest, "", nil},
		{"List debates", "/api/v1/debates?year=2022", http.StatusOK, "total", float64(1)},
		{"Get debate", "/api/v1/debates/2022-06-21/95", http.StatusOK, "number", "95"},
		{"Bad debate date", "/api/v1/debates/21-06-2022/95", http.StatusUnprocessableEntity, "", nil},
		{"List committees", "/api/v1/committees?q=fin", http.StatusOK, "total", float64(1)},
		{"Get committee", "/api/v1/committees/finance", http.StatusOK, "short_name_en", "FINA"},
		{"Missing committee", "/api/v1/committees/health", http.StatusNotFound, "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, http.MethodGet, tt.path, nil)
			require.Equal(t, tt.status, resp.StatusCode, string(body))
			if tt.field != "" {
				assert.Equal(t, tt.want, decode(t, body)[tt.field])
			}
		})
	}
}

// ==================== FEEDS ====================

func TestFeeds(t *testing.T) {
	env := setupTestApp(t, nil)

	t.Run("RSS", func(t *testing.T) {
		resp, body := env.do(t, http.MethodGet, "/feeds/bills.rss", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Type"), "application/rss+xml")
		assert.Contains(t, string(body), "<rss")
		assert.Contains(t, string(body), "C-11: Online Streaming Act")
		assert.Less(t, strings.Index(string(body), "C-11"), strings.Index(string(body), "S-5"))
	})

	t.Run("Atom", func(t *testing.T) {
		resp, body := env.do(t, http.MethodGet, "/feeds/bills.atom", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Type"), "application/atom+xml")
		assert.Contains(t, string(body), "http://www.w3.org/2005/Atom")
	})

	t.Run("JSON", func(t *testing.T) {
		resp, body := env.do(t, http.MethodGet, "/feeds/bills.json", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Type"), "application/feed+json")
		feed := decode(t, body)
		assert.Len(t, feed["items"], 2)
	})

	t.Run("By sponsor", func(t *testing.T) {
		resp, body := env.do(t, http.MethodGet, "/feeds/politicians/pablo-rodriguez/bills.rss", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(body), "Bills sponsored by Pablo Rodriguez")
		assert.NotContains(t, string(body), "S-5")
	})

	t.Run("Unknown sponsor", func(t *testing.T) {
		resp, _ := env.do(t, http.MethodGet, "/feeds/politicians/nobody/bills.rss", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestFeedCacheStoresOnlySuccess(t *testing.T) {
	env := setupTestApp(t, nil, func(cfg *config.Config) {
		cfg.FeedCacheTTL = 5 * time.Minute
	})
	path := "/feeds/politicians/elizabeth-may/bills.rss"

	resp, _ := env.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "unreachable", resp.Header.Get("X-Cache"))

	_, err := env.repo.UpsertPolitician(context.Background(), &models.Politician{
		Slug: "elizabeth-may", Name: "Elizabeth May", Party: "Green", ContentHash: "p2",
	})
	require.NoError(t, err)

	resp, body := env.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "a 404 must not be served from cache")
	assert.Equal(t, "miss", resp.Header.Get("X-Cache"))
	assert.Contains(t, string(body), "Bills sponsored by Elizabeth May")

	resp, _ = env.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hit", resp.Header.Get("X-Cache"))
}

// ==================== ADMIN ====================

func TestAdminIngest(t *testing.T) {
	env := setupTestApp(t, nil)
	auth := map[string]string{"X-API-Key": testAdminKey}

	resp, _ := env.do(t, http.MethodPost, "/api/v1/admin/ingest/bills", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/admin/ingest/bills", map[string]string{"X-API-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := env.do(t, http.MethodPost, "/api/v1/admin/ingest/bills", auth)
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(body))
	assert.Equal(t, "bills", decode(t, body)["entity"])

	// The first run is still blocked, so a second is refused.
	resp, _ = env.do(t, http.MethodPost, "/api/v1/admin/ingest/bills", map[string]string{"Authorization": "Bearer " + testAdminKey})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/admin/ingest/hansard", auth)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	close(env.release)
	assert.Eventually(t, func() bool {
		resp, _ := env.do(t, http.MethodPost, "/api/v1/admin/ingest/bills", auth)
		return resp.StatusCode == http.StatusAccepted
	}, 2*time.Second, 20*time.Millisecond)
}

func TestAdminIngestAfterWorkerStop(t *testing.T) {
	env := setupTestApp(t, nil)
	env.app.Worker.Stop()

	resp, body := env.do(t, http.MethodPost, "/api/v1/admin/ingest/bills", map[string]string{"X-API-Key": testAdminKey})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, string(body))
}

func TestAdminRunsAndStatus(t *testing.T) {
	env := setupTestApp(t, nil)
	auth := map[string]string{"X-API-Key": testAdminKey}
	ctx := context.Background()

	run := &models.IngestRun{Entity: models.EntityBills}
	require.NoError(t, env.repo.CreateIngestRun(ctx, run))
	run.Status, run.Fetched, run.Created = models.IngestStatusSucceeded, 2, 2
	require.NoError(t, env.repo.FinishIngestRun(ctx, run))

	resp, body := env.do(t, http.MethodGet, "/api/v1/admin/ingest/runs?entity=bills", auth)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	runs := decode(t, body)["runs"].([]any)
	require.Len(t, runs, 1)
	assert.Equal(t, "succeeded", runs[0].(map[string]any)["status"])

	resp, body = env.do(t, http.MethodGet, "/api/v1/admin/ingest/status", auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	status := decode(t, body)
	assert.Equal(t, "1h0m0s", status["interval"])
	assert.Contains(t, status["latest"], "bills")

	resp, body = env.do(t, http.MethodGet, "/api/v1/admin/ratelimit/stats", auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := decode(t, body)
	assert.Contains(t, stats, "total")
	assert.NotEmpty(t, stats["by_minute"], "requests made above land in the current minute")
}

// ==================== RATE LIMIT ====================

func TestRateLimitedRoutes(t *testing.T) {
	env := setupTestApp(t, ratelimit.NewMemoryLimiter(0.001, 2))

	for i := 0; i < 2; i++ {
		resp, _ := env.do(t, http.MethodGet, "/api/v1/committees", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, body := env.do(t, http.MethodGet, "/api/v1/committees", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	assert.Equal(t, "Rate limit exceeded", decode(t, body)["error"])

	// Health checks bypass the global quota.
	resp, _ = env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
