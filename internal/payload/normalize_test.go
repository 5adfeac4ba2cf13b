package payload

import (
	"reflect"
	"testing"
)

func TestNormalizePrefersCanonicalKey(t *testing.T) {
	raw := map[string]any{
		"personal_profile": map[string]any{"full_name": "Marge Simmons"},
		"personal":         map[string]any{"full_name": "Old Value"},
	}
	out := Normalize(raw)
	got, _ := out["personal_profile"].(map[string]any)
	if got["full_name"] != "Marge Simmons" {
		t.Fatalf("canonical key should win, got %v", out["personal_profile"])
	}
	if _, present := out["personal"]; present {
		t.Fatal("alias key should not survive normalization")
	}
}

func TestNormalizeFallsThroughEmptyAliases(t *testing.T) {
	// An empty higher-priority alias must not shadow real data below it.
	raw := map[string]any{
		"personal": map[string]any{},
		"about_you": map[string]any{
			"full_name": "Harold Green",
		},
	}
	out := Normalize(raw)
	got, _ := out["personal_profile"].(map[string]any)
	if got["full_name"] != "Harold Green" {
		t.Fatalf("expected about_you data under personal_profile, got %v", out["personal_profile"])
	}
}

func TestNormalizeFirstMeaningfulAliasWinsWhole(t *testing.T) {
	raw := map[string]any{
		"personal":  map[string]any{"full_name": "Priority"},
		"about_you": map[string]any{"full_name": "Dropped", "phone": "555-0100"},
	}
	out := Normalize(raw)
	got, _ := out["personal_profile"].(map[string]any)
	if got["full_name"] != "Priority" {
		t.Fatalf("higher-priority alias should win, got %v", got)
	}
	if _, blended := got["phone"]; blended {
		t.Fatal("loser alias data must never blend into the winner")
	}
}

func TestNormalizeDefaultsEveryConceptByKind(t *testing.T) {
	out := Normalize(map[string]any{})
	for _, c := range Concepts() {
		v, present := out[c.Canonical]
		if !present {
			t.Fatalf("concept %s missing from normalized output", c.Canonical)
		}
		switch c.Kind {
		case KindArray:
			if arr, ok := v.([]any); !ok || len(arr) != 0 {
				t.Fatalf("concept %s should default to empty array, got %T %v", c.Canonical, v, v)
			}
		case KindObject:
			if obj, ok := v.(map[string]any); !ok || len(obj) != 0 {
				t.Fatalf("concept %s should default to empty object, got %T %v", c.Canonical, v, v)
			}
		}
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	raw := map[string]any{
		"about_you": map[string]any{"full_name": "Marge"},
		"pet_care":  []any{map[string]any{"name": "Rex"}},
		"custom":    "kept",
	}
	once := Normalize(raw)
	twice := Normalize(once)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("normalization not idempotent:\nonce:  %v\ntwice: %v", once, twice)
	}
	if once["custom"] != "kept" {
		t.Fatal("unclaimed keys must pass through")
	}
}

func TestDenormalizeAddsAliasesForFilledConcepts(t *testing.T) {
	canonical := Normalize(map[string]any{
		"pets": []any{map[string]any{"name": "Rex"}},
	})
	out := Denormalize(canonical)
	if !reflect.DeepEqual(out["pet_care"], out["pets"]) {
		t.Fatalf("alias pet_care should mirror pets, got %v", out["pet_care"])
	}
	if _, present := out["personal"]; present {
		t.Fatal("empty concepts should not grow alias keys")
	}
}

func TestCanonicalFor(t *testing.T) {
	cases := []struct {
		key       string
		canonical string
		known     bool
	}{
		{"personal_profile", "personal_profile", true},
		{"about_you", "personal_profile", true},
		{"accounts", "online_accounts", true},
		{"letters", "messages_to_loved_ones", true},
		{"unrelated", "", false},
	}
	for _, tc := range cases {
		got, known := CanonicalFor(tc.key)
		if got != tc.canonical || known != tc.known {
			t.Errorf("CanonicalFor(%q) = %q, %v; want %q, %v", tc.key, got, known, tc.canonical, tc.known)
		}
	}
}

func TestHasMeaningfulData(t *testing.T) {
	cases := []struct {
		name string
		v    any
		want bool
	}{
		{"nil", nil, false},
		{"empty string", "   ", false},
		{"string", "hello", true},
		{"zero number", float64(0), true},
		{"empty array", []any{}, false},
		{"array of empties", []any{map[string]any{}, ""}, false},
		{"array with value", []any{map[string]any{"name": "Rex"}}, true},
		{"empty object", map[string]any{}, false},
		{"system fields only", map[string]any{"id": "x", "updated_at": "2026-01-01", "timestamp": "now"}, false},
		{"nested value", map[string]any{"inner": map[string]any{"note": "x"}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := HasMeaningfulData(tc.v); got != tc.want {
				t.Fatalf("HasMeaningfulData(%v) = %v, want %v", tc.v, got, tc.want)
			}
		})
	}
}
