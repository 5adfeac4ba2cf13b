package search

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/califnena/planning-form-sub003/internal/payload"
	"github.com/califnena/planning-form-sub003/internal/store"
)

type sectionSearcher interface {
	SearchSections(ctx context.Context, ownerID, query string) ([]store.SectionHit, error)
}

// Service is the facade that tries Meilisearch first and falls back to
// the payload scan in Postgres.
type Service struct {
	meili    *Meili
	fallback sectionSearcher
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, fallback sectionSearcher) *Service {
	return &Service{meili: meili, fallback: fallback}
}

// Search tries Meilisearch if healthy, otherwise falls back to Postgres.
// A degraded backend yields empty results, never an error.
func (s *Service) Search(ctx context.Context, userID, query string) []store.SectionHit {
	if strings.TrimSpace(query) == "" {
		return []store.SectionHit{}
	}
	if s.meili != nil && s.meili.Healthy() {
		hits, err := s.meili.SearchSections(userID, query)
		if err == nil {
			return nonNil(hits)
		}
		log.Printf("search: meilisearch error, falling back to postgres: %v", err)
	}

	hits, err := s.fallback.SearchSections(ctx, userID, query)
	if err != nil {
		log.Printf("search: postgres fallback error: %v", err)
		return []store.SectionHit{}
	}
	return nonNil(hits)
}

// IndexPlanSections indexes the meaningful payload sections of a plan
// (fire-and-forget to Meilisearch).
func (s *Service) IndexPlanSections(userID, planID string, sections map[string]any) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	flat := make(map[string]string, len(sections))
	for name, value := range sections {
		if !payload.HasMeaningfulData(value) {
			continue
		}
		flat[name] = sectionText(value)
	}
	go func() {
		if err := s.meili.IndexSections(userID, planID, flat); err != nil {
			log.Printf("search: index plan %s: %v", planID, err)
		}
	}()
}

func sectionText(v any) string {
	switch value := v.(type) {
	case string:
		return value
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}

func nonNil(hits []store.SectionHit) []store.SectionHit {
	if hits == nil {
		return []store.SectionHit{}
	}
	return hits
}
