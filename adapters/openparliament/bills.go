package openparliament

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"parliament-api/adapters"
	"parliament-api/models"
)

type billSummary struct {
	Session     string    `json:"session"`
	LegisInfoID int64     `json:"legisinfo_id"`
	Introduced  string    `json:"introduced"`
	Name        bilingual `json:"name"`
	Number      string    `json:"number"`
	URL         string    `json:"url"`
}

type billDetail struct {
	billSummary
	ShortTitle           bilingual `json:"short_title"`
	HomeChamber          string    `json:"home_chamber"`
	Law                  bool      `json:"law"`
	SponsorPoliticianURL string    `json:"sponsor_politician_url"`
	TextURL              string    `json:"text_url"`
	StatusCode           string    `json:"status_code"`
	Status               bilingual `json:"status"`
	VoteURLs             []string  `json:"vote_urls"`
}

// ListBills returns one page of bill summaries, most recent session first.
func (c *Client) ListBills(ctx context.Context, req PageRequest) (*Page[models.Bill], error) {
	page, err := list[billSummary](ctx, c, "/bills/", req, nil)
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}

	out := &Page[models.Bill]{NextURL: page.NextURL, Items: make([]models.Bill, 0, len(page.Items))}
	for _, s := range page.Items {
		bill, err := c.normalizeSummary(s)
		if err != nil {
			// A malformed row should not sink the whole page.
			out.Skipped++
			c.skip("bill", err, "session", s.Session, "number", s.Number, "url", s.URL)
			continue
		}
		out.Items = append(out.Items, *bill)
	}
	return out, nil
}

// GetBill fetches a single bill's detail by session code ("44-1") and number.
func (c *Client) GetBill(ctx context.Context, session, number string) (*models.Bill, error) {
	path := fmt.Sprintf("/bills/%s/%s/", url.PathEscape(session), url.PathEscape(models.NormalizeBillNumber(number)))

	var detail billDetail
	if err := c.fetcher.GetJSON(ctx, c.resolve(path, nil), &detail); err != nil {
		return nil, fmt.Errorf("get bill %s/%s: %w", session, number, err)
	}

	bill, err := c.normalizeSummary(detail.billSummary)
	if err != nil {
		return nil, err
	}

	bill.ShortTitleEn = strings.TrimSpace(detail.ShortTitle.En)
	bill.ShortTitleFr = strings.TrimSpace(detail.ShortTitle.Fr)
	bill.Law = detail.Law
	bill.StatusCode = detail.StatusCode
	bill.Status = strings.TrimSpace(detail.Status.En)
	if bill.Status == "" {
		bill.Status = detail.StatusCode
	}
	bill.SponsorSlug = slugFromURL(detail.SponsorPoliticianURL)
	bill.TextURL = detail.TextURL
	return bill, nil
}

func (c *Client) normalizeSummary(s billSummary) (*models.Bill, error) {
	parliament, session, err := models.ParseSession(s.Session)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(s.Number) == "" {
		return nil, fmt.Errorf("bill in session %s has no number", s.Session)
	}

	bill := &models.Bill{
		Jurisdiction: c.jurisdiction,
		Parliament:   parliament,
		Session:      session,
		Number:       models.NormalizeBillNumber(s.Number),
		TitleEn:      strings.TrimSpace(s.Name.En),
		TitleFr:      strings.TrimSpace(s.Name.Fr),
		IntroducedOn: adapters.ParseTime(s.Introduced),
		SourceURL:    c.siteLink(s.URL),
	}
	if s.LegisInfoID > 0 {
		bill.LegisInfoID = fmt.Sprintf("%d", s.LegisInfoID)
	}
	return bill, nil
}

// ParseBillURL turns "/bills/44-1/C-11/" into a natural key in the given
// jurisdiction.
func ParseBillURL(path, jurisdiction string) (*models.NaturalKey, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 || parts[0] != "bills" {
		return nil, fmt.Errorf("not a bill url: %q", path)
	}
	parliament, session, err := models.ParseSession(parts[1])
	if err != nil {
		return nil, err
	}
	if jurisdiction == "" {
		jurisdiction = models.DefaultJurisdiction
	}
	return &models.NaturalKey{
		Jurisdiction: jurisdiction,
		Parliament:   parliament,
		Session:      session,
		Number:       models.NormalizeBillNumber(parts[2]),
	}, nil
}
