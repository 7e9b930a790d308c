package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"parliament-api/models"

	"github.com/gorilla/feeds"
)

// FeedFormat selects the syndication format of a rendered feed.
type FeedFormat string

const (
	FeedRSS  FeedFormat = "rss"
	FeedAtom FeedFormat = "atom"
	FeedJSON FeedFormat = "json"

	DefaultFeedSize = 50
)

// ContentType is the response media type for the format.
func (f FeedFormat) ContentType() string {
	switch f {
	case FeedAtom:
		return "application/atom+xml; charset=utf-8"
	case FeedJSON:
		return "application/feed+json; charset=utf-8"
	default:
		return "application/rss+xml; charset=utf-8"
	}
}

// FeedService builds syndication feeds from the precomputed latest-bills table
type FeedService struct {
	repo    FeedRepository
	baseURL string
	size    int
	now     func() time.Time
}

func NewFeedService(repo FeedRepository, baseURL string) *FeedService {
	return &FeedService{
		repo:    repo,
		baseURL: strings.TrimRight(baseURL, "/"),
		size:    DefaultFeedSize,
		now:     time.Now,
	}
}

// LatestBills returns the feed of recently active bills. A non-empty
// sponsor slug restricts it to that politician's bills.
func (fs *FeedService) LatestBills(ctx context.Context, sponsorSlug string) (*feeds.Feed, error) {
	sponsorSlug = models.NormalizeSlug(sponsorSlug)

	feed := &feeds.Feed{
		Title:       "Latest bills in Parliament",
		Link:        &feeds.Link{Href: fs.baseURL + "/api/v1/bills"},
		Description: "Bills in the Parliament of Canada, most recent activity first",
		Id:          fs.baseURL + "/feeds/bills",
	}

	if sponsorSlug != "" {
		pol, err := fs.repo.GetPoliticianBySlug(ctx, sponsorSlug)
		if err != nil {
			return nil, err
		}
		if pol == nil {
			return nil, ErrPoliticianNotFound
		}
		feed.Title = "Bills sponsored by " + pol.Name
		feed.Link = &feeds.Link{Href: fs.baseURL + "/api/v1/politicians/" + pol.Slug}
		feed.Description = "Bills sponsored by " + pol.Name + ", most recent activity first"
		feed.Id = fs.baseURL + "/feeds/politicians/" + pol.Slug + "/bills"
	}

	rows, err := fs.repo.ListFeedBills(ctx, sponsorSlug, fs.size)
	if err != nil {
		return nil, err
	}

	feed.Updated = fs.now().UTC()
	if len(rows) > 0 && rows[0].LatestActivityAt != nil {
		feed.Updated = *rows[0].LatestActivityAt
	}
	feed.Created = feed.Updated

	for _, row := range rows {
		feed.Items = append(feed.Items, fs.item(row))
	}
	return feed, nil
}

func (fs *FeedService) item(row models.FeedBill) *feeds.Item {
	code := models.FormatSession(row.Parliament, row.Session)
	item := &feeds.Item{
		Title:       fmt.Sprintf("%s: %s", row.Number, row.Title),
		Link:        &feeds.Link{Href: row.Link},
		Id:          fmt.Sprintf("%s/api/v1/bills/%s/%s", fs.baseURL, code, row.Number),
		Description: row.Status,
	}
	if row.Link == "" {
		item.Link = &feeds.Link{Href: item.Id}
	}
	if row.SponsorName != "" {
		item.Author = &feeds.Author{Name: row.SponsorName}
	}
	if row.LatestActivityAt != nil {
		item.Created = *row.LatestActivityAt
		item.Updated = *row.LatestActivityAt
	}
	return item
}

// Render serializes a feed in the requested format
func Render(feed *feeds.Feed, format FeedFormat) (string, error) {
	switch format {
	case FeedRSS:
		return feed.ToRss()
	case FeedAtom:
		return feed.ToAtom()
	case FeedJSON:
		return feed.ToJSON()
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFeedFormat, format)
	}
}
