// Package assembly builds the flattened, renderer-ready view of a plan.
package assembly

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/califnena/planning-form-sub003/internal/identity"
	"github.com/califnena/planning-form-sub003/internal/payload"
	"github.com/califnena/planning-form-sub003/internal/store"
)

// Flattened is the renderer-ready document: canonical keys for every
// concept, legacy alias keys for old consumers, and the untouched raw
// payload under "payload_raw".
type Flattened map[string]any

type dataStore interface {
	GetPlan(ctx context.Context, planID string) (store.Plan, error)
	ListContactsByPlan(ctx context.Context, planID string) ([]store.Contact, error)
	ListPetsByPlan(ctx context.Context, planID string) ([]store.Pet, error)
	ListPoliciesByPlan(ctx context.Context, planID string) ([]store.Policy, error)
	ListPropertiesByPlan(ctx context.Context, planID string) ([]store.Property, error)
	ListMessagesByPlan(ctx context.Context, planID string) ([]store.Message, error)
	ListInvestmentsByPlan(ctx context.Context, planID string) ([]store.Investment, error)
	ListDebtsByPlan(ctx context.Context, planID string) ([]store.Debt, error)
	ListAccountsByPlan(ctx context.Context, planID string) ([]store.Account, error)
	ListBusinessesByPlan(ctx context.Context, planID string) ([]store.Business, error)
}

type planResolver interface {
	ResolveActivePlan(ctx context.Context, userID string, createIfMissing bool) (identity.Resolution, error)
}

// Service is the read-only assembly path. It never touches a sync
// session's in-memory state; every call works on a fresh fetch.
type Service struct {
	resolver planResolver
	store    dataStore
}

func NewService(resolver planResolver, s dataStore) *Service {
	return &Service{resolver: resolver, store: s}
}

// Assemble resolves the active plan, fetches the plan row and every
// satellite collection concurrently, normalizes the payload, applies
// the satellite-wins authority policy, and flattens the result.
// An unresolvable plan yields the empty document, never an error:
// renderers must not special-case "no document".
func (s *Service) Assemble(ctx context.Context, userID string) (Flattened, error) {
	res, err := s.resolver.ResolveActivePlan(ctx, userID, true)
	if err != nil {
		log.Printf("assembly: resolve plan for %s, returning empty document: %v", userID, err)
		return EmptyDocument(), nil
	}
	planID := res.PlanID

	var (
		plan        store.Plan
		contacts    []store.Contact
		pets        []store.Pet
		policies    []store.Policy
		properties  []store.Property
		messages    []store.Message
		investments []store.Investment
		debts       []store.Debt
		accounts    []store.Account
		businesses  []store.Business
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { plan, err = s.store.GetPlan(gctx, planID); return })
	g.Go(func() (err error) { contacts, err = s.store.ListContactsByPlan(gctx, planID); return })
	g.Go(func() (err error) { pets, err = s.store.ListPetsByPlan(gctx, planID); return })
	g.Go(func() (err error) { policies, err = s.store.ListPoliciesByPlan(gctx, planID); return })
	g.Go(func() (err error) { properties, err = s.store.ListPropertiesByPlan(gctx, planID); return })
	g.Go(func() (err error) { messages, err = s.store.ListMessagesByPlan(gctx, planID); return })
	g.Go(func() (err error) { investments, err = s.store.ListInvestmentsByPlan(gctx, planID); return })
	g.Go(func() (err error) { debts, err = s.store.ListDebtsByPlan(gctx, planID); return })
	g.Go(func() (err error) { accounts, err = s.store.ListAccountsByPlan(gctx, planID); return })
	g.Go(func() (err error) { businesses, err = s.store.ListBusinessesByPlan(gctx, planID); return })
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("assemble plan %s: %w", planID, err)
	}

	canonical := payload.Normalize(plan.Payload)

	// Authority policy: a non-empty satellite collection supersedes the
	// legacy payload array for the same concept; the payload array is
	// only a migration-in-progress fallback.
	applySatellite(canonical, "contacts", records(contacts))
	applySatellite(canonical, "pets", records(pets))
	applySatellite(canonical, "policies", records(policies))
	applySatellite(canonical, "properties", records(properties))
	applySatellite(canonical, "messages_to_loved_ones", records(messages))
	applySatellite(canonical, "investments", records(investments))
	applySatellite(canonical, "debts", records(debts))
	applySatellite(canonical, "online_accounts", records(accounts))
	applySatellite(canonical, "businesses", records(businesses))

	flat := Flattened(payload.Denormalize(canonical))
	flat["plan_id"] = plan.ID
	flat["org_id"] = plan.OrgID
	flat["title"] = plan.Title
	flat["funeral_notes"] = plan.FuneralNotes
	flat["financial_notes"] = plan.FinancialNotes
	flat["personal_notes"] = plan.PersonalNotes
	flat["updated_at"] = plan.UpdatedAt.UTC().Format(time.RFC3339)
	// Lossless reconstruction path: the raw payload rides along under a
	// key no concept claims.
	raw := plan.Payload
	if raw == nil {
		raw = map[string]any{}
	}
	flat["payload_raw"] = raw
	return flat, nil
}

func applySatellite(canonical map[string]any, concept string, rows []any) {
	if len(rows) > 0 {
		canonical[concept] = rows
	}
}

// EmptyDocument is the fully-defaulted flattened shape: every
// documented field present, nothing missing.
func EmptyDocument() Flattened {
	flat := Flattened(payload.Denormalize(payload.Normalize(map[string]any{})))
	flat["plan_id"] = ""
	flat["org_id"] = ""
	flat["title"] = ""
	flat["funeral_notes"] = ""
	flat["financial_notes"] = ""
	flat["personal_notes"] = ""
	flat["updated_at"] = ""
	flat["payload_raw"] = map[string]any{}
	return flat
}

// records converts a satellite slice to the generic row shape the
// flattened document carries, via the models' json tags.
func records(v any) []any {
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out []any
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil
	}
	return out
}
