// Package identity resolves the single authoritative plan for a user.
package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/califnena/planning-form-sub003/internal/store"
	"github.com/califnena/planning-form-sub003/internal/util"
)

// ErrNoPlan is returned when the user has no plan and creation was not
// requested.
var ErrNoPlan = errors.New("no plan for user")

// Resolution is the outcome of resolving a user's active plan.
type Resolution struct {
	PlanID string
	OrgID  string
	Plan   store.Plan
}

type planStore interface {
	GetPlan(ctx context.Context, planID string) (store.Plan, error)
	FindPlanByOwner(ctx context.Context, ownerID string) (store.Plan, error)
	GetPreferredPlanID(ctx context.Context, userID string) (string, error)
	SetPreferredPlan(ctx context.Context, userID, planID string) error
	InsertPlan(ctx context.Context, item store.Plan) (bool, error)
}

type planPointer interface {
	SetActivePlan(ctx context.Context, userID, planID string) error
}

// Resolver looks up, and lazily creates, the active plan for a user.
// It is idempotent and safe to call from independent read paths: the
// unique ownership constraint means a concurrent create loses cleanly
// and adopts the winner.
type Resolver struct {
	store   planStore
	pointer planPointer
}

// New creates a resolver. pointer may be nil; when set, every
// successful resolution records the plan id so offline sessions can
// find their snapshot.
func New(s planStore, pointer planPointer) *Resolver {
	return &Resolver{store: s, pointer: pointer}
}

// ResolveActivePlan determines the authoritative plan for userID.
func (r *Resolver) ResolveActivePlan(ctx context.Context, userID string, createIfMissing bool) (Resolution, error) {
	prefID, err := r.store.GetPreferredPlanID(ctx, userID)
	if err != nil {
		return Resolution{}, fmt.Errorf("resolve plan: %w", err)
	}
	if prefID != "" {
		plan, err := r.store.GetPlan(ctx, prefID)
		if err == nil {
			return r.resolved(ctx, userID, plan), nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return Resolution{}, fmt.Errorf("resolve preferred plan: %w", err)
		}
		// Stale preference, fall back to ownership.
	}

	plan, err := r.store.FindPlanByOwner(ctx, userID)
	if err == nil {
		if setErr := r.store.SetPreferredPlan(ctx, userID, plan.ID); setErr != nil {
			log.Printf("identity: record plan preference for %s: %v", userID, setErr)
		}
		return r.resolved(ctx, userID, plan), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Resolution{}, fmt.Errorf("resolve owned plan: %w", err)
	}

	if !createIfMissing {
		return Resolution{}, ErrNoPlan
	}

	candidate := store.Plan{
		ID:      util.NewID("plan"),
		OwnerID: userID,
		Payload: map[string]any{},
	}
	inserted, err := r.store.InsertPlan(ctx, candidate)
	if err != nil {
		return Resolution{}, fmt.Errorf("create plan: %w", err)
	}
	if !inserted {
		// Lost the creation race; adopt the winner.
		plan, err = r.store.FindPlanByOwner(ctx, userID)
		if err != nil {
			return Resolution{}, fmt.Errorf("adopt concurrent plan: %w", err)
		}
	} else {
		plan, err = r.store.GetPlan(ctx, candidate.ID)
		if err != nil {
			return Resolution{}, fmt.Errorf("read created plan: %w", err)
		}
	}

	if setErr := r.store.SetPreferredPlan(ctx, userID, plan.ID); setErr != nil {
		log.Printf("identity: record plan preference for %s: %v", userID, setErr)
	}
	return r.resolved(ctx, userID, plan), nil
}

func (r *Resolver) resolved(ctx context.Context, userID string, plan store.Plan) Resolution {
	if r.pointer != nil {
		if err := r.pointer.SetActivePlan(ctx, userID, plan.ID); err != nil {
			log.Printf("identity: record active plan pointer for %s: %v", userID, err)
		}
	}
	return Resolution{PlanID: plan.ID, OrgID: plan.OrgID, Plan: plan}
}
