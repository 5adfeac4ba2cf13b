package render

import (
	"strings"
	"testing"

	"github.com/califnena/planning-form-sub003/internal/assembly"
)

func TestRenderHTMLIncludesFilledSections(t *testing.T) {
	doc := assembly.EmptyDocument()
	doc["title"] = "Estate Plan"
	doc["funeral_notes"] = "Cremation, family service only."
	doc["personal_profile"] = map[string]any{"full_name": "Marge Simmons", "date_of_birth": "1948-02-11"}
	doc["pets"] = []any{
		map[string]any{"name": "Rex", "species": "dog", "id": "pet_1", "plan_id": "plan_1"},
	}

	html, err := NewService().RenderHTML(doc)
	if err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	for _, want := range []string{"Estate Plan", "Cremation, family service only.", "Marge Simmons", "Rex"} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered HTML missing %q", want)
		}
	}
	if strings.Contains(html, "pet_1") {
		t.Error("system fields must not render")
	}
}

func TestRenderHTMLOmitsEmptySections(t *testing.T) {
	doc := assembly.EmptyDocument()
	doc["title"] = "Estate Plan"
	doc["personal_profile"] = map[string]any{"full_name": "Marge"}

	html, err := NewService().RenderHTML(doc)
	if err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	if strings.Contains(html, "Medical Directives") {
		t.Error("empty sections should not render")
	}
	if !strings.Contains(html, "Personal Profile") {
		t.Error("filled section missing")
	}
}

func TestRenderHTMLEmptyDocument(t *testing.T) {
	html, err := NewService().RenderHTML(assembly.EmptyDocument())
	if err != nil {
		t.Fatalf("an empty document must render: %v", err)
	}
	if html == "" {
		t.Fatal("empty output")
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"My Estate Plan", "My-Estate-Plan"},
		{"", "plan"},
		{"../..", "plan"},
		{"Plan #3 (final)", "Plan-3-final"},
	}
	for _, tc := range cases {
		if got := sanitizeFilename(tc.in); got != tc.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
