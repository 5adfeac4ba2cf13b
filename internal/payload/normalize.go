// Package payload reconciles the historical field-naming drift of plan
// payloads into one canonical schema.
package payload

import (
	"log"
	"strings"
)

// Kind describes the value shape of a concept.
type Kind string

const (
	KindObject Kind = "object"
	KindArray  Kind = "array"
)

// Concept declares the canonical key for one payload section and the
// legacy aliases that accumulated for it, highest priority first.
type Concept struct {
	Canonical string
	Aliases   []string
	Kind      Kind
}

// The one table every fallback chain consults. Order inside Aliases is
// the resolution priority; data under a lower-priority alias is never
// blended with a higher-priority match.
var concepts = []Concept{
	{Canonical: "personal_profile", Aliases: []string{"personal", "about_you"}, Kind: KindObject},
	{Canonical: "family", Aliases: []string{"family_info", "family_details"}, Kind: KindObject},
	{Canonical: "funeral_preferences", Aliases: []string{"funeral", "final_wishes"}, Kind: KindObject},
	{Canonical: "medical_directives", Aliases: []string{"medical", "health_directives"}, Kind: KindObject},
	{Canonical: "legal_documents", Aliases: []string{"legal", "documents"}, Kind: KindObject},
	{Canonical: "messages_to_loved_ones", Aliases: []string{"messages", "letters"}, Kind: KindArray},
	{Canonical: "contacts", Aliases: []string{"key_contacts", "emergency_contacts"}, Kind: KindArray},
	{Canonical: "pets", Aliases: []string{"pet_care"}, Kind: KindArray},
	{Canonical: "policies", Aliases: []string{"insurance", "insurance_policies"}, Kind: KindArray},
	{Canonical: "properties", Aliases: []string{"real_estate", "property"}, Kind: KindArray},
	{Canonical: "investments", Aliases: []string{"financial_investments"}, Kind: KindArray},
	{Canonical: "debts", Aliases: []string{"liabilities"}, Kind: KindArray},
	{Canonical: "online_accounts", Aliases: []string{"accounts", "digital_accounts"}, Kind: KindArray},
	{Canonical: "businesses", Aliases: []string{"business_interests"}, Kind: KindArray},
}

// systemFields never count as user content.
var systemFields = map[string]struct{}{
	"id":         {},
	"plan_id":    {},
	"updated_at": {},
	"created_at": {},
	"timestamp":  {},
}

// Concepts returns a copy of the concept table.
func Concepts() []Concept {
	out := make([]Concept, len(concepts))
	copy(out, concepts)
	return out
}

// CanonicalFor maps a canonical or legacy key to its canonical key.
// ok is false for keys no concept claims.
func CanonicalFor(key string) (string, bool) {
	for _, c := range concepts {
		if key == c.Canonical {
			return c.Canonical, true
		}
		for _, alias := range c.Aliases {
			if key == alias {
				return c.Canonical, true
			}
		}
	}
	return "", false
}

// Normalize maps a raw payload onto the canonical schema. For each
// concept the canonical key is consulted first, then each alias in
// priority order; the first meaningful match wins whole. Every concept
// is present in the output: arrays default to an empty slice, objects
// to an empty map. Keys no concept claims pass through untouched.
func Normalize(raw map[string]any) map[string]any {
	out := make(map[string]any, len(concepts))
	claimed := make(map[string]struct{})

	for _, c := range concepts {
		keys := append([]string{c.Canonical}, c.Aliases...)
		chosen := ""
		var value any
		for _, key := range keys {
			claimed[key] = struct{}{}
			v, present := raw[key]
			if !present || !HasMeaningfulData(v) {
				continue
			}
			if chosen == "" {
				chosen = key
				value = v
				continue
			}
			// Known limitation: the non-selected alias is dropped.
			log.Printf("payload: concept %s has data under %s and %s, keeping %s", c.Canonical, chosen, key, chosen)
		}
		if chosen == "" {
			out[c.Canonical] = emptyValue(c.Kind)
			continue
		}
		out[c.Canonical] = value
	}

	for key, v := range raw {
		if _, taken := claimed[key]; taken {
			continue
		}
		out[key] = v
	}
	return out
}

// Denormalize re-adds legacy alias keys so consumers that predate the
// canonical schema keep working. The canonical keys stay authoritative.
func Denormalize(canonical map[string]any) map[string]any {
	out := make(map[string]any, len(canonical))
	for key, v := range canonical {
		out[key] = v
	}
	for _, c := range concepts {
		v, present := canonical[c.Canonical]
		if !present || !HasMeaningfulData(v) {
			continue
		}
		for _, alias := range c.Aliases {
			out[alias] = v
		}
	}
	return out
}

// HasMeaningfulData reports whether a section counts as filled in:
// non-empty after trimming, ignoring system-managed fields. A section
// holding only a timestamp is empty.
func HasMeaningfulData(v any) bool {
	switch value := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(value) != ""
	case bool:
		return true
	case float64, float32, int, int32, int64:
		return true
	case []any:
		for _, item := range value {
			if HasMeaningfulData(item) {
				return true
			}
		}
		return false
	case map[string]any:
		for key, item := range value {
			if _, system := systemFields[key]; system {
				continue
			}
			if HasMeaningfulData(item) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

func emptyValue(kind Kind) any {
	if kind == KindArray {
		return []any{}
	}
	return map[string]any{}
}
