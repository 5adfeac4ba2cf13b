package render

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/califnena/planning-form-sub003/internal/assembly"
	"github.com/califnena/planning-form-sub003/internal/payload"
)

// Service renders assembled plans. It is best-effort by contract:
// missing optional fields never fail a render.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// RenderHTML builds the printable HTML for a flattened plan. Sections
// without meaningful user content are omitted.
func (s *Service) RenderHTML(doc assembly.Flattened) (string, error) {
	data := buildTemplateData(doc)
	return RenderPlanHTML(data)
}

// RenderPDF renders the flattened plan to PDF via headless Chrome.
func (s *Service) RenderPDF(doc assembly.Flattened) (*Result, error) {
	html, err := s.RenderHTML(doc)
	if err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	title, _ := doc["title"].(string)
	if strings.TrimSpace(title) == "" {
		title = "My Plan"
	}
	return renderPDF(html, title)
}

func buildTemplateData(doc assembly.Flattened) TemplateData {
	data := TemplateData{
		Title:       stringField(doc, "title", "My Plan"),
		GeneratedAt: time.Now(),
		Notes:       []NoteSection{},
		Sections:    []TemplateSection{},
	}

	noteLabels := []struct{ key, label string }{
		{"funeral_notes", "Funeral Notes"},
		{"financial_notes", "Financial Notes"},
		{"personal_notes", "Personal Notes"},
	}
	for _, n := range noteLabels {
		body, _ := doc[n.key].(string)
		if strings.TrimSpace(body) == "" {
			continue
		}
		data.Notes = append(data.Notes, NoteSection{Label: n.label, Body: body})
	}

	for _, concept := range payload.Concepts() {
		value, present := doc[concept.Canonical]
		if !present || !payload.HasMeaningfulData(value) {
			continue
		}
		section := TemplateSection{Label: humanize(concept.Canonical)}
		switch v := value.(type) {
		case map[string]any:
			section.Fields = fieldsOf(v)
		case []any:
			for _, item := range v {
				record, ok := item.(map[string]any)
				if !ok {
					section.Records = append(section.Records, []Field{{Label: "", Value: formatValue(item)}})
					continue
				}
				if !payload.HasMeaningfulData(record) {
					continue
				}
				section.Records = append(section.Records, fieldsOf(record))
			}
		default:
			section.Fields = []Field{{Label: "", Value: formatValue(v)}}
		}
		if len(section.Fields) == 0 && len(section.Records) == 0 {
			continue
		}
		data.Sections = append(data.Sections, section)
	}
	return data
}

func fieldsOf(record map[string]any) []Field {
	keys := make([]string, 0, len(record))
	for key := range record {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fields := make([]Field, 0, len(keys))
	for _, key := range keys {
		if isSystemKey(key) {
			continue
		}
		value := formatValue(record[key])
		if strings.TrimSpace(value) == "" {
			continue
		}
		fields = append(fields, Field{Label: humanize(key), Value: value})
	}
	return fields
}

func isSystemKey(key string) bool {
	switch key {
	case "id", "plan_id", "created_at", "updated_at", "timestamp":
		return true
	}
	return false
}

func stringField(doc assembly.Flattened, key, fallback string) string {
	v, _ := doc[key].(string)
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func humanize(key string) string {
	words := strings.Split(key, "_")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}

func formatValue(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case bool:
		if value {
			return "Yes"
		}
		return "No"
	case float64:
		if value == float64(int64(value)) {
			return fmt.Sprintf("%d", int64(value))
		}
		return fmt.Sprintf("%g", value)
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprint(value)
		}
		return string(encoded)
	}
}
