package openparliament

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"parliament-api/adapters"
	"parliament-api/models"
)

var errMissingIdentity = errors.New("row is missing its identifying fields")

type politicianSummary struct {
	Name         string `json:"name"`
	URL          string `json:"url"`
	Image        string `json:"image"`
	CurrentParty struct {
		ShortName bilingual `json:"short_name"`
	} `json:"current_party"`
	CurrentRiding struct {
		Province string    `json:"province"`
		Name     bilingual `json:"name"`
	} `json:"current_riding"`
}

type politicianDetail struct {
	politicianSummary
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

type voteSummary struct {
	Session     string    `json:"session"`
	Number      int       `json:"number"`
	Date        string    `json:"date"`
	Description bilingual `json:"description"`
	Result      string    `json:"result"`
	YeaTotal    int       `json:"yea_total"`
	NayTotal    int       `json:"nay_total"`
	PairedTotal int       `json:"paired_total"`
	BillURL     string    `json:"bill_url"`
	URL         string    `json:"url"`
}

type debateSummary struct {
	Date                string    `json:"date"`
	Number              string    `json:"number"`
	MostFrequentSpeaker bilingual `json:"most_frequent_speaker"`
	URL                 string    `json:"url"`
	SourceURL           string    `json:"source_url"`
}

type committeeSummary struct {
	Name      bilingual `json:"name"`
	ShortName bilingual `json:"short_name"`
	Slug      string    `json:"slug"`
	URL       string    `json:"url"`
	ParentURL string    `json:"parent_url"`
}

// ListPoliticians returns current members of parliament.
func (c *Client) ListPoliticians(ctx context.Context, req PageRequest) (*Page[models.Politician], error) {
	page, err := list[politicianSummary](ctx, c, "/politicians/", req, nil)
	if err != nil {
		return nil, fmt.Errorf("list politicians: %w", err)
	}

	out := &Page[models.Politician]{NextURL: page.NextURL, Items: make([]models.Politician, 0, len(page.Items))}
	for _, p := range page.Items {
		pol := c.normalizePolitician(p)
		if pol == nil {
			out.Skipped++
			c.skip("politician", errMissingIdentity, "name", p.Name, "url", p.URL)
			continue
		}
		out.Items = append(out.Items, *pol)
	}
	return out, nil
}

func (c *Client) GetPolitician(ctx context.Context, slug string) (*models.Politician, error) {
	path := "/politicians/" + url.PathEscape(slug) + "/"

	var detail politicianDetail
	if err := c.fetcher.GetJSON(ctx, c.resolve(path, nil), &detail); err != nil {
		return nil, fmt.Errorf("get politician %s: %w", slug, err)
	}

	pol := c.normalizePolitician(detail.politicianSummary)
	if pol == nil {
		return nil, fmt.Errorf("get politician %s: %w", slug, adapters.ErrNotFound)
	}
	pol.GivenName = detail.GivenName
	pol.FamilyName = detail.FamilyName
	return pol, nil
}

func (c *Client) normalizePolitician(p politicianSummary) *models.Politician {
	slug := slugFromURL(p.URL)
	if slug == "" || strings.TrimSpace(p.Name) == "" {
		return nil
	}

	pol := &models.Politician{
		Slug:      slug,
		Name:      strings.TrimSpace(p.Name),
		Party:     p.CurrentParty.ShortName.En,
		Riding:    p.CurrentRiding.Name.En,
		Province:  p.CurrentRiding.Province,
		ImageURL:  c.siteLink(p.Image),
		SourceURL: c.siteLink(p.URL),
	}
	// The list endpoint has no name parts; derive a sortable family name.
	if fields := strings.Fields(pol.Name); len(fields) > 1 {
		pol.GivenName = strings.Join(fields[:len(fields)-1], " ")
		pol.FamilyName = fields[len(fields)-1]
	}
	return pol
}

// ListVotes returns House votes, most recent first. BillKey is set on votes
// that concern a bill.
func (c *Client) ListVotes(ctx context.Context, req PageRequest) (*Page[models.Vote], error) {
	page, err := list[voteSummary](ctx, c, "/votes/", req, nil)
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}

	out := &Page[models.Vote]{NextURL: page.NextURL, Items: make([]models.Vote, 0, len(page.Items))}
	for _, v := range page.Items {
		date := adapters.ParseTime(v.Date)
		if date == nil || v.Session == "" {
			out.Skipped++
			c.skip("vote", errMissingIdentity, "session", v.Session, "number", v.Number, "date", v.Date)
			continue
		}
		vote := models.Vote{
			Session:       v.Session,
			Number:        v.Number,
			Date:          *date,
			DescriptionEn: strings.TrimSpace(v.Description.En),
			Result:        v.Result,
			YeaTotal:      v.YeaTotal,
			NayTotal:      v.NayTotal,
			PairedTotal:   v.PairedTotal,
			SourceURL:     c.siteLink(v.URL),
		}
		if v.BillURL != "" {
			key, err := ParseBillURL(v.BillURL, c.jurisdiction)
			if err != nil {
				c.logger.Warn("Vote has an unrecognized bill url", "session", v.Session, "number", v.Number, "bill_url", v.BillURL, "error", err)
			} else {
				vote.BillKey = key
			}
		}
		out.Items = append(out.Items, vote)
	}
	return out, nil
}

func (c *Client) ListDebates(ctx context.Context, req PageRequest) (*Page[models.Debate], error) {
	page, err := list[debateSummary](ctx, c, "/debates/", req, nil)
	if err != nil {
		return nil, fmt.Errorf("list debates: %w", err)
	}

	out := &Page[models.Debate]{NextURL: page.NextURL, Items: make([]models.Debate, 0, len(page.Items))}
	for _, d := range page.Items {
		date := adapters.ParseTime(d.Date)
		if date == nil {
			out.Skipped++
			c.skip("debate", errMissingIdentity, "date", d.Date, "number", d.Number, "url", d.URL)
			continue
		}
		number := d.Number
		if number == "" {
			number = date.Format(time.DateOnly)
		}
		out.Items = append(out.Items, models.Debate{
			Date:                *date,
			Number:              number,
			MostFrequentSpeaker: d.MostFrequentSpeaker.En,
			SourceURL:           c.siteLink(d.URL),
			DocumentURL:         d.SourceURL,
		})
	}
	return out, nil
}

func (c *Client) ListCommittees(ctx context.Context, req PageRequest) (*Page[models.Committee], error) {
	page, err := list[committeeSummary](ctx, c, "/committees/", req, nil)
	if err != nil {
		return nil, fmt.Errorf("list committees: %w", err)
	}

	out := &Page[models.Committee]{NextURL: page.NextURL, Items: make([]models.Committee, 0, len(page.Items))}
	for _, cm := range page.Items {
		slug := cm.Slug
		if slug == "" {
			slug = slugFromURL(cm.URL)
		}
		if slug == "" {
			out.Skipped++
			c.skip("committee", errMissingIdentity, "name", cm.Name.En, "url", cm.URL)
			continue
		}
		out.Items = append(out.Items, models.Committee{
			Slug:        slug,
			NameEn:      strings.TrimSpace(cm.Name.En),
			ShortNameEn: strings.TrimSpace(cm.ShortName.En),
			ParentSlug:  slugFromURL(cm.ParentURL),
			SourceURL:   c.siteLink(cm.URL),
		})
	}
	return out, nil
}
