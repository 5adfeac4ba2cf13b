package history

import (
	"testing"
)

func TestRecordSnapshotCommits(t *testing.T) {
	service := New(t.TempDir())

	payload := map[string]any{"pets": []any{map[string]any{"name": "Rex"}}}
	if err := service.RecordSnapshot("plan_1", payload); err != nil {
		t.Fatalf("RecordSnapshot: %v", err)
	}

	count, err := service.SnapshotCount("plan_1")
	if err != nil {
		t.Fatalf("SnapshotCount: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 snapshot, got %d", count)
	}
}

func TestRecordSnapshotSkipsUnchangedPayload(t *testing.T) {
	service := New(t.TempDir())

	payload := map[string]any{"title": "My Plan"}
	if err := service.RecordSnapshot("plan_1", payload); err != nil {
		t.Fatalf("first RecordSnapshot: %v", err)
	}
	if err := service.RecordSnapshot("plan_1", payload); err != nil {
		t.Fatalf("second RecordSnapshot: %v", err)
	}

	count, err := service.SnapshotCount("plan_1")
	if err != nil {
		t.Fatalf("SnapshotCount: %v", err)
	}
	if count != 1 {
		t.Fatalf("unchanged payload should not commit, got %d snapshots", count)
	}
}

func TestSnapshotsIsolatedPerPlan(t *testing.T) {
	service := New(t.TempDir())

	if err := service.RecordSnapshot("plan_1", map[string]any{"a": "1"}); err != nil {
		t.Fatalf("RecordSnapshot plan_1: %v", err)
	}
	if err := service.RecordSnapshot("plan_2", map[string]any{"b": "2"}); err != nil {
		t.Fatalf("RecordSnapshot plan_2: %v", err)
	}

	for _, planID := range []string{"plan_1", "plan_2"} {
		count, err := service.SnapshotCount(planID)
		if err != nil {
			t.Fatalf("SnapshotCount %s: %v", planID, err)
		}
		if count != 1 {
			t.Fatalf("plan %s: expected 1 snapshot, got %d", planID, count)
		}
	}
}

func TestSnapshotCountForUnknownPlan(t *testing.T) {
	service := New(t.TempDir())
	count, err := service.SnapshotCount("plan_none")
	if err != nil {
		t.Fatalf("SnapshotCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 snapshots, got %d", count)
	}
}
