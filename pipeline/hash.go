package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"parliament-api/models"
)

// hashContent returns the hex SHA-256 of v's JSON encoding. Struct fields
// encode in declaration order, so equal content always hashes equal.
func hashContent(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		// Only reachable with unsupported types, which the content structs never hold.
		panic(err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func utcString(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// HashBill covers everything a reader can see about a bill. IDs and
// bookkeeping timestamps are left out so re-fetching is a no-op.
func HashBill(b *models.Bill) string {
	key := b.Key()
	return hashContent(struct {
		Key              string
		TitleEn          string
		TitleFr          string
		ShortTitleEn     string
		ShortTitleFr     string
		Status           string
		StatusCode       string
		Law              bool
		SponsorSlug      string
		SponsorName      string
		IntroducedOn     string
		RoyalAssentOn    string
		LatestActivityAt string
		LegisInfoID      string
		SourceURL        string
		TextURL          string
		Enriched         bool
	}{
		key.String(),
		b.TitleEn, b.TitleFr, b.ShortTitleEn, b.ShortTitleFr,
		b.Status, b.StatusCode, b.Law, b.SponsorSlug, b.SponsorName,
		utcString(b.IntroducedOn), utcString(b.RoyalAssentOn), utcString(b.LatestActivityAt),
		b.LegisInfoID, b.SourceURL, b.TextURL, b.Enriched,
	})
}

func HashPolitician(p *models.Politician) string {
	return hashContent(struct {
		Slug, Name, GivenName, FamilyName, Party, Riding, Province, ImageURL, SourceURL string
	}{p.Slug, p.Name, p.GivenName, p.FamilyName, p.Party, p.Riding, p.Province, p.ImageURL, p.SourceURL})
}

func HashVote(v *models.Vote) string {
	date := v.Date
	return hashContent(struct {
		Session     string
		Number      int
		Date        string
		Description string
		Result      string
		Yea         int
		Nay         int
		Paired      int
		BillID      string
		SourceURL   string
	}{v.Session, v.Number, utcString(&date), v.DescriptionEn, v.Result, v.YeaTotal, v.NayTotal, v.PairedTotal, v.BillID, v.SourceURL})
}

func HashDebate(d *models.Debate) string {
	date := d.Date
	return hashContent(struct {
		Date, Number, Speaker, SourceURL, DocumentURL string
	}{utcString(&date), d.Number, d.MostFrequentSpeaker, d.SourceURL, d.DocumentURL})
}

func HashCommittee(c *models.Committee) string {
	return hashContent(struct {
		Slug, NameEn, ShortNameEn, ParentSlug, SourceURL string
	}{c.Slug, c.NameEn, c.ShortNameEn, c.ParentSlug, c.SourceURL})
}
