package services

import (
	"context"
	"errors"
	"fmt"

	"parliament-api/models"
	"parliament-api/pipeline"
)

const DefaultRunHistory = 20

// IngestService lets operators start ingest runs and inspect their history
type IngestService struct {
	trigger IngestTrigger
	repo    IngestRepository
}

// NewIngestService creates the service. A nil trigger means runs can be
// inspected but not started.
func NewIngestService(trigger IngestTrigger, repo IngestRepository) *IngestService {
	return &IngestService{trigger: trigger, repo: repo}
}

// Trigger starts a background run for the named entity
func (is *IngestService) Trigger(name string) (models.Entity, error) {
	entity, ok := models.ParseEntity(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownEntity, name)
	}
	if is.trigger == nil {
		return "", ErrIngestDisabled
	}

	err := is.trigger.Trigger(entity)
	switch {
	case err == nil:
		return entity, nil
	case errors.Is(err, pipeline.ErrRunInProgress):
		return "", fmt.Errorf("%w: %s", ErrIngestInProgress, entity)
	case errors.Is(err, pipeline.ErrWorkerStopped):
		return "", ErrIngestDisabled
	case errors.Is(err, pipeline.ErrUnknownEntity):
		return "", fmt.Errorf("%w: %q", ErrUnknownEntity, name)
	default:
		return "", err
	}
}

// Runs lists recent runs, optionally for a single entity
func (is *IngestService) Runs(ctx context.Context, name string, limit int) ([]models.IngestRun, error) {
	var entity models.Entity
	if name != "" {
		var ok bool
		if entity, ok = models.ParseEntity(name); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, name)
		}
	}
	if limit < 1 || limit > MaxPageSize {
		limit = DefaultRunHistory
	}
	return is.repo.ListIngestRuns(ctx, entity, limit)
}

// Status returns the latest run of each entity; entities never ingested
// are absent.
func (is *IngestService) Status(ctx context.Context) (map[models.Entity]*models.IngestRun, error) {
	status := make(map[models.Entity]*models.IngestRun, len(models.AllEntities))
	for _, entity := range models.AllEntities {
		run, err := is.repo.LatestIngestRun(ctx, entity)
		if err != nil {
			return nil, err
		}
		if run != nil {
			status[entity] = run
		}
	}
	return status, nil
}
