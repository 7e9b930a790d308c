package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const maxErrorBody = 512

// Fetcher performs throttled JSON GETs against a public upstream API.
// All adapters share one Fetcher per source so the politeness limit holds
// across entities.
type Fetcher struct {
	HTTP      *http.Client
	UserAgent string
	Limiter   *rate.Limiter
	Headers   map[string]string
}

// NewFetcher builds a Fetcher with a timeout and a requests-per-second cap.
// rps <= 0 disables throttling.
func NewFetcher(timeout time.Duration, userAgent string, rps float64) *Fetcher {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return &Fetcher{
		HTTP:      &http.Client{Timeout: timeout},
		UserAgent: userAgent,
		Limiter:   limiter,
	}
}

// GetJSON fetches rawURL and decodes the body into out.
func (f *Fetcher) GetJSON(ctx context.Context, rawURL string, out any) error {
	if f.Limiter != nil {
		if err := f.Limiter.Wait(ctx); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	for k, v := range f.Headers {
		req.Header.Set(k, v)
	}

	client := f.HTTP
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{
			StatusCode: resp.StatusCode,
			URL:        rawURL,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &DecodeError{URL: rawURL, Err: err}
	}
	return nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	time.DateOnly,
}

// ParseTime accepts the date and datetime shapes used by the upstream APIs.
// Times without a zone are taken as UTC. Empty or unparsable input yields nil.
func ParseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
