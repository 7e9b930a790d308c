package models

import "time"

// Entity names an ingestible upstream collection.
type Entity string

const (
	EntityBills       Entity = "bills"
	EntityPoliticians Entity = "politicians"
	EntityVotes       Entity = "votes"
	EntityDebates     Entity = "debates"
	EntityCommittees  Entity = "committees"
)

// AllEntities is the order a full ingestion runs in. Politicians come
// before bills so sponsors resolve, bills before votes so votes link.
var AllEntities = []Entity{
	EntityPoliticians,
	EntityCommittees,
	EntityBills,
	EntityVotes,
	EntityDebates,
}

func ParseEntity(s string) (Entity, bool) {
	for _, e := range AllEntities {
		if string(e) == s {
			return e, true
		}
	}
	return "", false
}

type IngestStatus string

const (
	IngestStatusRunning   IngestStatus = "running"
	IngestStatusSucceeded IngestStatus = "succeeded"
	IngestStatusFailed    IngestStatus = "failed"
)

type IngestRun struct {
	ID         string       `json:"id"`
	Entity     Entity       `json:"entity"`
	Status     IngestStatus `json:"status"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
	Fetched    int          `json:"fetched"`
	Created    int          `json:"created"`
	Updated    int          `json:"updated"`
	Unchanged  int          `json:"unchanged"`
	Failed     int          `json:"failed"`
	Error      string       `json:"error,omitempty"`
}

// Record tallies a single upsert outcome.
func (r *IngestRun) Record(result UpsertResult) {
	switch result {
	case UpsertCreated:
		r.Created++
	case UpsertUpdated:
		r.Updated++
	case UpsertUnchanged:
		r.Unchanged++
	}
}
