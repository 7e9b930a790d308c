package models

import (
	"strings"
	"time"
)

// NormalizeSlug lower-cases a politician or committee slug.
func NormalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}

type Politician struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	GivenName   string    `json:"given_name,omitempty"`
	FamilyName  string    `json:"family_name,omitempty"`
	Party       string    `json:"party,omitempty"`
	Riding      string    `json:"riding,omitempty"`
	Province    string    `json:"province,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	SourceURL   string    `json:"source_url"`
	ContentHash string    `json:"content_hash"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Vote struct {
	ID            string    `json:"id"`
	Session       string    `json:"session"`
	Number        int       `json:"number"`
	Date          time.Time `json:"date"`
	DescriptionEn string    `json:"description_en"`
	Result        string    `json:"result"`
	YeaTotal      int       `json:"yea_total"`
	NayTotal      int       `json:"nay_total"`
	PairedTotal   int       `json:"paired_total"`
	BillID        string    `json:"bill_id,omitempty"`
	SourceURL     string    `json:"source_url"`
	ContentHash   string    `json:"content_hash"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// BillKey is the bill this vote refers to upstream; resolved to BillID on ingest.
	BillKey *NaturalKey `json:"-"`
}

type Debate struct {
	ID                  string    `json:"id"`
	Date                time.Time `json:"date"`
	Number              string    `json:"number"`
	MostFrequentSpeaker string    `json:"most_frequent_speaker,omitempty"`
	SourceURL           string    `json:"source_url"`
	DocumentURL         string    `json:"document_url,omitempty"`
	ContentHash         string    `json:"content_hash"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

type Committee struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	NameEn      string    `json:"name_en"`
	ShortNameEn string    `json:"short_name_en,omitempty"`
	ParentSlug  string    `json:"parent_slug,omitempty"`
	SourceURL   string    `json:"source_url"`
	ContentHash string    `json:"content_hash"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type PoliticianFilter struct {
	Party    string `query:"party" validate:"omitempty,max=100"`
	Province string `query:"province" validate:"omitempty,province"`
	Query    string `query:"q" validate:"omitempty,max=200"`
	Limit    int    `query:"limit"`
	Offset   int    `query:"offset"`
}

type VoteFilter struct {
	Session string `query:"session" validate:"omitempty,session"`
	BillID  string `query:"bill_id" validate:"omitempty,uuid"`
	Result  string `query:"result" validate:"omitempty,max=50"`
	Limit   int    `query:"limit"`
	Offset  int    `query:"offset"`
}

type DebateFilter struct {
	Year   int `query:"year" validate:"omitempty,gte=1994,lte=2100"`
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

type CommitteeFilter struct {
	Query  string `query:"q" validate:"omitempty,max=200"`
	Limit  int    `query:"limit"`
	Offset int    `query:"offset"`
}
