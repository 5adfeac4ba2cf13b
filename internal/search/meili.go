package search

import (
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"

	"github.com/califnena/planning-form-sub003/internal/store"
)

const idxSections = "planner_sections"

// sectionRecord is the per-section document pushed to Meilisearch.
type sectionRecord struct {
	ID      string `json:"id"`
	UserID  string `json:"userId"`
	PlanID  string `json:"planId"`
	Section string `json:"section"`
	Text    string `json:"text"`
}

// Meili indexes plan sections via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the index.
// The caller should proceed without it when the server is down; the
// health loop picks it back up.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxSections,
		PrimaryKey: "id",
	}); err != nil {
		log.Printf("search: create index %s (may already exist): %v", idxSections, err)
	}

	index := m.client.Index(idxSections)
	filterable := []interface{}{"userId", "planId", "section"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		log.Printf("search: update filterable attrs for %s: %v", idxSections, err)
	}
	searchable := []string{"text", "section"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		log.Printf("search: update searchable attrs for %s: %v", idxSections, err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Healthy reports whether the last health probe succeeded.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// IndexSections replaces the indexed records for a plan's sections.
func (m *Meili) IndexSections(userID, planID string, sections map[string]string) error {
	records := make([]sectionRecord, 0, len(sections))
	for section, text := range sections {
		records = append(records, sectionRecord{
			ID:      fmt.Sprintf("%s_%s", planID, section),
			UserID:  userID,
			PlanID:  planID,
			Section: section,
			Text:    text,
		})
	}
	if len(records) == 0 {
		return nil
	}
	if _, err := m.client.Index(idxSections).AddDocuments(records, nil); err != nil {
		return fmt.Errorf("index sections: %w", err)
	}
	return nil
}

// SearchSections queries the index scoped to one user.
func (m *Meili) SearchSections(userID, query string) ([]store.SectionHit, error) {
	resp, err := m.client.Index(idxSections).Search(query, &meili.SearchRequest{
		Filter: fmt.Sprintf("userId = %q", userID),
		Limit:  50,
	})
	if err != nil {
		return nil, fmt.Errorf("meili search: %w", err)
	}

	hits := make([]store.SectionHit, 0, len(resp.Hits))
	for _, record := range resp.Hits {
		snippet := decodeString(record, "text")
		if len(snippet) > 160 {
			snippet = snippet[:160]
		}
		hits = append(hits, store.SectionHit{
			PlanID:  decodeString(record, "planId"),
			Section: decodeString(record, "section"),
			Snippet: snippet,
		})
	}
	return hits, nil
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}
