package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	return store, s
}

func TestNewRedisStore(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestSaveAndGetSnapshot(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	saved := Snapshot{
		PlanID:       "plan_1",
		UserID:       "user_1",
		Title:        "My Plan",
		FuneralNotes: "cremation",
		Payload: map[string]any{
			"pets": []any{map[string]any{"name": "Rex"}},
		},
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}

	if err := store.SaveSnapshot(ctx, saved); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	got, err := store.GetSnapshot(ctx, "user_1", "plan_1")
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if got.PlanID != saved.PlanID || got.Title != saved.Title || got.FuneralNotes != saved.FuneralNotes {
		t.Errorf("snapshot mismatch: got %+v", got)
	}
	if !got.UpdatedAt.Equal(saved.UpdatedAt) {
		t.Errorf("UpdatedAt mismatch: got %v, want %v", got.UpdatedAt, saved.UpdatedAt)
	}
	pets, ok := got.Payload["pets"].([]any)
	if !ok || len(pets) != 1 {
		t.Errorf("payload not preserved: %v", got.Payload)
	}
}

func TestGetSnapshotMiss(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	_, err := store.GetSnapshot(context.Background(), "user_1", "plan_missing")
	if !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
}

func TestSnapshotsIsolatedByUserAndPlan(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	if err := store.SaveSnapshot(ctx, Snapshot{PlanID: "plan_1", UserID: "user_1", Title: "A"}); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	if _, err := store.GetSnapshot(ctx, "user_2", "plan_1"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("snapshot leaked across users: %v", err)
	}
	if _, err := store.GetSnapshot(ctx, "user_1", "plan_2"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("snapshot leaked across plans: %v", err)
	}
}

func TestActivePlanPointer(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	if _, err := store.GetActivePlan(ctx, "user_1"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss before set, got %v", err)
	}

	if err := store.SetActivePlan(ctx, "user_1", "plan_1"); err != nil {
		t.Fatalf("SetActivePlan failed: %v", err)
	}
	planID, err := store.GetActivePlan(ctx, "user_1")
	if err != nil {
		t.Fatalf("GetActivePlan failed: %v", err)
	}
	if planID != "plan_1" {
		t.Errorf("got plan %q, want plan_1", planID)
	}
}

func TestDeleteSnapshot(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	if err := store.SaveSnapshot(ctx, Snapshot{PlanID: "plan_1", UserID: "user_1"}); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if err := store.DeleteSnapshot(ctx, "user_1", "plan_1"); err != nil {
		t.Fatalf("DeleteSnapshot failed: %v", err)
	}
	if _, err := store.GetSnapshot(ctx, "user_1", "plan_1"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("snapshot not deleted: %v", err)
	}
}
