package services

import "errors"

// Common service-level errors
var (
	ErrInvalidSession = errors.New("invalid session code")

	ErrBillNotFound       = errors.New("bill not found")
	ErrPoliticianNotFound = errors.New("politician not found")
	ErrVoteNotFound       = errors.New("vote not found")
	ErrDebateNotFound     = errors.New("debate not found")
	ErrCommitteeNotFound  = errors.New("committee not found")

	// Ingest errors
	ErrUnknownEntity    = errors.New("unknown ingest entity")
	ErrIngestInProgress = errors.New("ingest already running for entity")
	ErrIngestDisabled   = errors.New("ingest worker is not running")

	ErrUnknownFeedFormat = errors.New("unknown feed format")
)
