// Package openparliament reads bills, politicians, votes, debates and
// committees from the api.openparliament.ca JSON API and normalizes them
// into the local models.
package openparliament

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"parliament-api/adapters"
	"parliament-api/models"
)

const (
	DefaultBaseURL = "https://api.openparliament.ca"
	SiteURL        = "https://openparliament.ca"
	DefaultLimit   = 100
)

type Client struct {
	baseURL string
	siteURL string
	// jurisdiction is stamped on every natural key this client produces.
	jurisdiction string
	fetcher      *adapters.Fetcher
	logger       *slog.Logger
}

type Option func(*Client)

// WithSiteURL overrides the public site used to build human-facing links.
func WithSiteURL(siteURL string) Option {
	return func(c *Client) {
		if siteURL != "" {
			c.siteURL = strings.TrimRight(siteURL, "/")
		}
	}
}

// WithJurisdiction sets the jurisdiction recorded on bill natural keys. It
// must match the jurisdiction the API looks bills up under.
func WithJurisdiction(jurisdiction string) Option {
	return func(c *Client) {
		if jurisdiction != "" {
			c.jurisdiction = jurisdiction
		}
	}
}

// WithLogger sets the logger used to report upstream rows that are skipped.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewClient(baseURL string, fetcher *adapters.Fetcher, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if fetcher.Headers == nil {
		fetcher.Headers = map[string]string{}
	}
	fetcher.Headers["API-Version"] = "v1"

	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		siteURL:      SiteURL,
		jurisdiction: models.DefaultJurisdiction,
		fetcher:      fetcher,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) skip(kind string, err error, attrs ...any) {
	c.logger.Warn("Skipping malformed upstream row", append([]any{"kind", kind, "error", err}, attrs...)...)
}

// PageRequest selects a page either by limit/offset or by a next URL
// returned from a previous page.
type PageRequest struct {
	Limit  int
	Offset int
	Next   string
}

type Page[T any] struct {
	Items   []T
	NextURL string
	// Skipped counts upstream rows dropped because they could not be normalized.
	Skipped int
}

type pagination struct {
	Offset      int    `json:"offset"`
	Limit       int    `json:"limit"`
	NextURL     string `json:"next_url"`
	PreviousURL string `json:"previous_url"`
}

type listResponse[T any] struct {
	Objects    []T        `json:"objects"`
	Pagination pagination `json:"pagination"`
}

// bilingual is the {"en": ..., "fr": ...} shape used for names and titles.
type bilingual struct {
	En string `json:"en"`
	Fr string `json:"fr"`
}

func (c *Client) resolve(path string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	query.Set("format", "json")

	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		u, err := url.Parse(path)
		if err == nil {
			q := u.Query()
			for k, vs := range query {
				q[k] = vs
			}
			u.RawQuery = q.Encode()
			return u.String()
		}
	}

	if i := strings.Index(path, "?"); i >= 0 {
		existing, err := url.ParseQuery(path[i+1:])
		if err == nil {
			for k, vs := range existing {
				if _, ok := query[k]; !ok {
					query[k] = vs
				}
			}
		}
		path = path[:i]
	}
	return c.baseURL + path + "?" + query.Encode()
}

func list[T any](ctx context.Context, c *Client, path string, req PageRequest, extra url.Values) (*Page[T], error) {
	var target string
	if req.Next != "" {
		target = c.resolve(req.Next, nil)
	} else {
		q := url.Values{}
		for k, vs := range extra {
			q[k] = vs
		}
		limit := req.Limit
		if limit <= 0 {
			limit = DefaultLimit
		}
		q.Set("limit", strconv.Itoa(limit))
		if req.Offset > 0 {
			q.Set("offset", strconv.Itoa(req.Offset))
		}
		target = c.resolve(path, q)
	}

	var resp listResponse[T]
	if err := c.fetcher.GetJSON(ctx, target, &resp); err != nil {
		return nil, err
	}
	return &Page[T]{Items: resp.Objects, NextURL: resp.Pagination.NextURL}, nil
}

// siteLink turns an API path like "/bills/44-1/C-11/" into a public URL.
func (c *Client) siteLink(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.siteURL + path
}

// slugFromURL extracts "pablo-rodriguez" from "/politicians/pablo-rodriguez/".
func slugFromURL(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}
