package identity

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/califnena/planning-form-sub003/internal/store"
)

type fakePlanStore struct {
	mu    sync.Mutex
	plans map[string]store.Plan
	prefs map[string]string

	getPlanFn func(ctx context.Context, planID string) (store.Plan, error)
}

func newFakePlanStore() *fakePlanStore {
	return &fakePlanStore{plans: map[string]store.Plan{}, prefs: map[string]string{}}
}

func (f *fakePlanStore) GetPlan(ctx context.Context, planID string) (store.Plan, error) {
	if f.getPlanFn != nil {
		return f.getPlanFn(ctx, planID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	plan, ok := f.plans[planID]
	if !ok {
		return store.Plan{}, sql.ErrNoRows
	}
	return plan, nil
}

func (f *fakePlanStore) FindPlanByOwner(ctx context.Context, ownerID string) (store.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, plan := range f.plans {
		if plan.OwnerID == ownerID {
			return plan, nil
		}
	}
	return store.Plan{}, sql.ErrNoRows
}

func (f *fakePlanStore) GetPreferredPlanID(ctx context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prefs[userID], nil
}

func (f *fakePlanStore) SetPreferredPlan(ctx context.Context, userID, planID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefs[userID] = planID
	return nil
}

func (f *fakePlanStore) InsertPlan(ctx context.Context, item store.Plan) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, plan := range f.plans {
		if plan.OwnerID == item.OwnerID {
			return false, nil
		}
	}
	f.plans[item.ID] = item
	return true, nil
}

type fakePointer struct {
	mu      sync.Mutex
	planIDs map[string]string
}

func (f *fakePointer) SetActivePlan(ctx context.Context, userID, planID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.planIDs == nil {
		f.planIDs = map[string]string{}
	}
	f.planIDs[userID] = planID
	return nil
}

func TestResolveCreatesPlanOnce(t *testing.T) {
	s := newFakePlanStore()
	resolver := New(s, nil)

	first, err := resolver.ResolveActivePlan(context.Background(), "user_1", true)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	second, err := resolver.ResolveActivePlan(context.Background(), "user_1", true)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if first.PlanID == "" || first.PlanID != second.PlanID {
		t.Fatalf("resolution not stable: %q vs %q", first.PlanID, second.PlanID)
	}
	if len(s.plans) != 1 {
		t.Fatalf("expected exactly one plan, got %d", len(s.plans))
	}
}

func TestResolveConcurrentCreateAdoptsOneWinner(t *testing.T) {
	s := newFakePlanStore()
	resolver := New(s, nil)

	const workers = 8
	results := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := resolver.ResolveActivePlan(context.Background(), "user_1", true)
			if err != nil {
				t.Errorf("worker %d: %v", i, err)
				return
			}
			results[i] = res.PlanID
		}(i)
	}
	wg.Wait()

	if len(s.plans) != 1 {
		t.Fatalf("concurrent creation must yield one plan, got %d", len(s.plans))
	}
	for i, id := range results {
		if id != results[0] {
			t.Fatalf("worker %d adopted %q, worker 0 adopted %q", i, id, results[0])
		}
	}
}

func TestResolveWithoutCreate(t *testing.T) {
	resolver := New(newFakePlanStore(), nil)
	_, err := resolver.ResolveActivePlan(context.Background(), "user_1", false)
	if !errors.Is(err, ErrNoPlan) {
		t.Fatalf("expected ErrNoPlan, got %v", err)
	}
}

func TestResolveStalePreferenceFallsBackToOwnership(t *testing.T) {
	s := newFakePlanStore()
	s.plans["plan_real"] = store.Plan{ID: "plan_real", OwnerID: "user_1", Payload: map[string]any{}}
	s.prefs["user_1"] = "plan_deleted"

	resolver := New(s, nil)
	res, err := resolver.ResolveActivePlan(context.Background(), "user_1", true)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.PlanID != "plan_real" {
		t.Fatalf("expected fallback to owned plan, got %q", res.PlanID)
	}
	if s.prefs["user_1"] != "plan_real" {
		t.Fatalf("preference not repaired, still %q", s.prefs["user_1"])
	}
}

func TestResolvePrefersRecordedPlan(t *testing.T) {
	s := newFakePlanStore()
	s.plans["plan_a"] = store.Plan{ID: "plan_a", OwnerID: "user_1", Payload: map[string]any{}}
	s.prefs["user_1"] = "plan_a"

	resolver := New(s, nil)
	res, err := resolver.ResolveActivePlan(context.Background(), "user_1", false)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.PlanID != "plan_a" {
		t.Fatalf("expected preferred plan, got %q", res.PlanID)
	}
}

func TestResolveRecordsActivePlanPointer(t *testing.T) {
	s := newFakePlanStore()
	pointer := &fakePointer{}
	resolver := New(s, pointer)

	res, err := resolver.ResolveActivePlan(context.Background(), "user_1", true)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if pointer.planIDs["user_1"] != res.PlanID {
		t.Fatalf("active plan pointer %q, want %q", pointer.planIDs["user_1"], res.PlanID)
	}
}
