package search

import (
	"context"

	"nahueltrek/api/internal/logger"
)

// Service is the facade that tries Meilisearch first and falls back to the in-memory scan.
type Service struct {
	meili *Meili
	local *Local
	log   *logger.Logger
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, local *Local, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{meili: meili, local: local, log: log.With("component", "search")}
}

// Search tries Meilisearch if healthy, otherwise falls back to scanning the catalog.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.log.Warn("meilisearch error, falling back to local scan", "error", err)
	}

	if s.local == nil {
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	results, total, err := s.local.Search(ctx, q)
	if err != nil {
		s.log.Error("local search failed", "error", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexActivity indexes an activity (fire-and-forget to Meilisearch).
func (s *Service) IndexActivity(rec ActivityRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexActivity(rec); err != nil {
			s.log.Warn("index activity failed", "id", rec.ID, "error", err)
		}
	}()
}

// IndexPlace indexes a place (fire-and-forget to Meilisearch).
func (s *Service) IndexPlace(rec PlaceRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexPlace(rec); err != nil {
			s.log.Warn("index place failed", "id", rec.ID, "error", err)
		}
	}()
}

// DeleteActivity removes an activity from the search index (fire-and-forget).
func (s *Service) DeleteActivity(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteActivity(id); err != nil {
			s.log.Warn("delete activity failed", "id", id, "error", err)
		}
	}()
}

// DeletePlace removes a place from the search index (fire-and-forget).
func (s *Service) DeletePlace(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeletePlace(id); err != nil {
			s.log.Warn("delete place failed", "id", id, "error", err)
		}
	}()
}

// ReindexAll reads the whole catalog and pushes it to Meilisearch.
// Called at startup once the row store is ready.
func (s *Service) ReindexAll(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.local == nil {
		return
	}
	activities, places, err := s.local.LoadAllRecords(ctx)
	if err != nil {
		s.log.Warn("reindex load failed", "error", err)
		return
	}
	if err := s.meili.IndexActivities(activities); err != nil {
		s.log.Warn("reindex activities failed", "error", err)
	}
	if err := s.meili.IndexPlaces(places); err != nil {
		s.log.Warn("reindex places failed", "error", err)
	}
	s.log.Info("reindexed catalog", "actividades", len(activities), "lugares", len(places))
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
