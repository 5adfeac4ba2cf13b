package search

import (
	"context"
	"errors"
	"testing"

	"github.com/califnena/planning-form-sub003/internal/store"
)

type fakeSearcher struct {
	searchSectionsFn func(ctx context.Context, ownerID, query string) ([]store.SectionHit, error)
}

func (f *fakeSearcher) SearchSections(ctx context.Context, ownerID, query string) ([]store.SectionHit, error) {
	return f.searchSectionsFn(ctx, ownerID, query)
}

func TestSearchEmptyQuery(t *testing.T) {
	called := false
	service := NewService(nil, &fakeSearcher{
		searchSectionsFn: func(context.Context, string, string) ([]store.SectionHit, error) {
			called = true
			return nil, nil
		},
	})

	hits := service.Search(context.Background(), "user_1", "   ")
	if len(hits) != 0 {
		t.Fatalf("empty query must yield no hits, got %v", hits)
	}
	if called {
		t.Fatal("empty query must not reach the backend")
	}
}

func TestSearchFallsBackWithoutMeili(t *testing.T) {
	service := NewService(nil, &fakeSearcher{
		searchSectionsFn: func(ctx context.Context, ownerID, query string) ([]store.SectionHit, error) {
			if ownerID != "user_1" || query != "rex" {
				t.Errorf("unexpected args %q %q", ownerID, query)
			}
			return []store.SectionHit{{PlanID: "plan_1", Section: "pets", Snippet: "Rex"}}, nil
		},
	})

	hits := service.Search(context.Background(), "user_1", "rex")
	if len(hits) != 1 || hits[0].Section != "pets" {
		t.Fatalf("unexpected hits: %v", hits)
	}
}

func TestSearchBackendErrorYieldsEmpty(t *testing.T) {
	service := NewService(nil, &fakeSearcher{
		searchSectionsFn: func(context.Context, string, string) ([]store.SectionHit, error) {
			return nil, errors.New("query failed")
		},
	})

	hits := service.Search(context.Background(), "user_1", "rex")
	if hits == nil || len(hits) != 0 {
		t.Fatalf("degraded search must yield empty, non-nil hits: %v", hits)
	}
}
