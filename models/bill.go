package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultJurisdiction is used when a bill carries no explicit jurisdiction.
const DefaultJurisdiction = "ca-federal"

type Bill struct {
	ID               string     `json:"id"`
	Jurisdiction     string     `json:"jurisdiction"`
	Parliament       int        `json:"parliament"`
	Session          int        `json:"session"`
	Number           string     `json:"number"`
	TitleEn          string     `json:"title_en"`
	TitleFr          string     `json:"title_fr"`
	ShortTitleEn     string     `json:"short_title_en,omitempty"`
	ShortTitleFr     string     `json:"short_title_fr,omitempty"`
	Status           string     `json:"status"`
	StatusCode       string     `json:"status_code,omitempty"`
	Law              bool       `json:"law"`
	SponsorSlug      string     `json:"sponsor_slug,omitempty"`
	SponsorName      string     `json:"sponsor_name,omitempty"`
	IntroducedOn     *time.Time `json:"introduced_on,omitempty"`
	RoyalAssentOn    *time.Time `json:"royal_assent_on,omitempty"`
	LatestActivityAt *time.Time `json:"latest_activity_at,omitempty"`
	LegisInfoID      string     `json:"legisinfo_id,omitempty"`
	SourceURL        string     `json:"source_url"`
	TextURL          string     `json:"text_url,omitempty"`
	ContentHash      string     `json:"content_hash"`
	Enriched         bool       `json:"enriched"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	FetchedAt        time.Time  `json:"fetched_at"`
}

// NaturalKey uniquely identifies a bill across ingestion runs.
type NaturalKey struct {
	Jurisdiction string
	Parliament   int
	Session      int
	Number       string
}

func (k NaturalKey) String() string {
	return fmt.Sprintf("%s/%d-%d/%s", k.Jurisdiction, k.Parliament, k.Session, k.Number)
}

func (b *Bill) Key() NaturalKey {
	jurisdiction := b.Jurisdiction
	if jurisdiction == "" {
		jurisdiction = DefaultJurisdiction
	}
	return NaturalKey{
		Jurisdiction: jurisdiction,
		Parliament:   b.Parliament,
		Session:      b.Session,
		Number:       NormalizeBillNumber(b.Number),
	}
}

// SessionCode returns the "44-1" form used by both upstream sources.
func (b *Bill) SessionCode() string {
	return FormatSession(b.Parliament, b.Session)
}

// DisplayTitle prefers the short English title.
func (b *Bill) DisplayTitle() string {
	if b.ShortTitleEn != "" {
		return b.ShortTitleEn
	}
	if b.TitleEn != "" {
		return b.TitleEn
	}
	return b.TitleFr
}

func FormatSession(parliament, session int) string {
	return fmt.Sprintf("%d-%d", parliament, session)
}

// ParseSession splits a "44-1" session code into parliament and session numbers.
func ParseSession(code string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(code), "-")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid session %q", code)
	}
	parliament, err := strconv.Atoi(parts[0])
	if err != nil || parliament < 1 {
		return 0, 0, fmt.Errorf("invalid parliament in session %q", code)
	}
	session, err := strconv.Atoi(parts[1])
	if err != nil || session < 1 {
		return 0, 0, fmt.Errorf("invalid session number in session %q", code)
	}
	return parliament, session, nil
}

// NormalizeBillNumber upper-cases bill numbers so "c-11" and "C-11" collide.
func NormalizeBillNumber(number string) string {
	return strings.ToUpper(strings.TrimSpace(number))
}

// UpsertResult reports what an idempotent upsert did to the stored row.
type UpsertResult string

const (
	UpsertCreated   UpsertResult = "created"
	UpsertUpdated   UpsertResult = "updated"
	UpsertUnchanged UpsertResult = "unchanged"
)

// BillFilter narrows bill listings. Zero values mean "no filter".
type BillFilter struct {
	Parliament int    `query:"parliament" validate:"omitempty,gte=1,lte=99"`
	Session    int    `query:"session" validate:"omitempty,gte=1,lte=9"`
	Status     string `query:"status" validate:"omitempty,max=100"`
	Sponsor    string `query:"sponsor" validate:"omitempty,slug"`
	Query      string `query:"q" validate:"omitempty,max=200"`
	Law        string `query:"law" validate:"omitempty,oneof=true false"`
	Sort       string `query:"sort" validate:"omitempty,oneof=latest_activity introduced number"`
	Limit      int    `query:"limit"`
	Offset     int    `query:"offset"`
}

// FeedBill is a row of the precomputed latest-bills feed table.
type FeedBill struct {
	BillID           string     `json:"bill_id"`
	Jurisdiction     string     `json:"jurisdiction"`
	Parliament       int        `json:"parliament"`
	Session          int        `json:"session"`
	Number           string     `json:"number"`
	Title            string     `json:"title"`
	Status           string     `json:"status"`
	SponsorSlug      string     `json:"sponsor_slug,omitempty"`
	SponsorName      string     `json:"sponsor_name,omitempty"`
	LatestActivityAt *time.Time `json:"latest_activity_at,omitempty"`
	Link             string     `json:"link"`
}
