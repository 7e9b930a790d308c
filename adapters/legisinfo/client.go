// Package legisinfo fetches bill detail from LEGISinfo, the Library of
// Parliament's bill tracker, and is used to enrich bills first seen on
// OpenParliament.
package legisinfo

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"parliament-api/adapters"
	"parliament-api/cache"
	"parliament-api/models"
)

const (
	DefaultBaseURL  = "https://www.parl.ca/legisinfo"
	DefaultCacheTTL = 30 * time.Minute
)

// BillDetail is the subset of a LEGISinfo bill record used for enrichment.
type BillDetail struct {
	LegisInfoID        string
	Number             string
	LongTitleEn        string
	LongTitleFr        string
	ShortTitleEn       string
	ShortTitleFr       string
	Status             string
	LatestStage        string
	SponsorName        string
	RoyalAssentOn      *time.Time
	LatestActivityAt   *time.Time
	IntroducedOn       *time.Time
	IsGovernmentBill   bool
	OriginatingChamber string
}

type billRecord struct {
	BillID                                 int64  `json:"BillId"`
	BillNumberFormatted                    string `json:"BillNumberFormatted"`
	LongTitleEn                            string `json:"LongTitleEn"`
	LongTitleFr                            string `json:"LongTitleFr"`
	ShortTitleEn                           string `json:"ShortTitleEn"`
	ShortTitleFr                           string `json:"ShortTitleFr"`
	StatusNameEn                           string `json:"StatusNameEn"`
	LatestCompletedMajorStageNameEn        string `json:"LatestCompletedMajorStageNameEn"`
	SponsorPersonOfficialFirstName         string `json:"SponsorPersonOfficialFirstName"`
	SponsorPersonOfficialLastName          string `json:"SponsorPersonOfficialLastName"`
	ReceivedRoyalAssentDateTime            string `json:"ReceivedRoyalAssentDateTime"`
	LatestActivityDateTime                 string `json:"LatestActivityDateTime"`
	PassedFirstChamberFirstReadingDateTime string `json:"PassedFirstChamberFirstReadingDateTime"`
	IsGovernmentBill                       bool   `json:"IsGovernmentBill"`
	OriginatingChamberNameEn               string `json:"OriginatingChamberNameEn"`
}

type Client struct {
	baseURL string
	fetcher *adapters.Fetcher
	cache   *cache.Store[*BillDetail]
}

// NewClient builds a client. A nil store disables caching.
func NewClient(baseURL string, fetcher *adapters.Fetcher, store *cache.Store[*BillDetail]) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetcher: fetcher,
		cache:   store,
	}
}

// BillURL is the JSON endpoint for one bill, e.g. .../en/bill/44-1/c-11/json.
func (c *Client) BillURL(parliament, session int, number string) string {
	return fmt.Sprintf("%s/en/bill/%s/%s/json",
		c.baseURL,
		models.FormatSession(parliament, session),
		url.PathEscape(strings.ToLower(models.NormalizeBillNumber(number))),
	)
}

// GetBill returns LEGISinfo's record for a bill, or an error matching
// adapters.ErrNotFound when LEGISinfo does not know it.
func (c *Client) GetBill(ctx context.Context, parliament, session int, number string) (*BillDetail, error) {
	key := models.FormatSession(parliament, session) + "/" + models.NormalizeBillNumber(number)
	if c.cache != nil {
		if detail, ok := c.cache.Get(key); ok {
			return detail, nil
		}
	}

	var records []billRecord
	if err := c.fetcher.GetJSON(ctx, c.BillURL(parliament, session, number), &records); err != nil {
		return nil, fmt.Errorf("legisinfo bill %s: %w", key, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("legisinfo bill %s: %w", key, adapters.ErrNotFound)
	}

	detail := normalize(records[0])
	if c.cache != nil {
		c.cache.Set(key, detail)
	}
	return detail, nil
}

func normalize(r billRecord) *BillDetail {
	detail := &BillDetail{
		Number:             models.NormalizeBillNumber(r.BillNumberFormatted),
		LongTitleEn:        strings.TrimSpace(r.LongTitleEn),
		LongTitleFr:        strings.TrimSpace(r.LongTitleFr),
		ShortTitleEn:       strings.TrimSpace(r.ShortTitleEn),
		ShortTitleFr:       strings.TrimSpace(r.ShortTitleFr),
		Status:             strings.TrimSpace(r.StatusNameEn),
		LatestStage:        strings.TrimSpace(r.LatestCompletedMajorStageNameEn),
		SponsorName:        strings.TrimSpace(r.SponsorPersonOfficialFirstName + " " + r.SponsorPersonOfficialLastName),
		RoyalAssentOn:      adapters.ParseTime(r.ReceivedRoyalAssentDateTime),
		LatestActivityAt:   adapters.ParseTime(r.LatestActivityDateTime),
		IntroducedOn:       adapters.ParseTime(r.PassedFirstChamberFirstReadingDateTime),
		IsGovernmentBill:   r.IsGovernmentBill,
		OriginatingChamber: r.OriginatingChamberNameEn,
	}
	if r.BillID > 0 {
		detail.LegisInfoID = strconv.FormatInt(r.BillID, 10)
	}
	return detail
}
