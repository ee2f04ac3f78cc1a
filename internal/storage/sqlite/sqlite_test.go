package sqlite

import (
	"context"
	"testing"

	"github.com/repomemory/dupcore/internal/types"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	rec := &types.Record{
		ID:            1,
		Title:         "Fix null pointer in parser",
		Description:   "Guard against nil token stream",
		Files:         []string{"parser/parse.go", "parser/lex.go"},
		TextEmbedding: []float64{0.1, 0.2, 0.3},
		DiffEmbedding: []float64{0.4, 0.5},
		CreatedAt:     1000,
	}
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := s.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil for saved record")
	}
	if got.Title != rec.Title || len(got.Files) != 2 {
		t.Fatalf("Get returned mismatched record: %+v", got)
	}
	if len(got.TextEmbedding) != 3 || got.TextEmbedding[1] != 0.2 {
		t.Fatalf("text embedding did not round-trip: %v", got.TextEmbedding)
	}
}

func TestGetMissingReturnsNilNoError(t *testing.T) {
	s := newTestStorage(t)
	got, err := s.Get(context.Background(), 999)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing record, got %+v", got)
	}
}

func TestSaveUpsertsExistingID(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	rec := &types.Record{ID: 5, Title: "first", TextEmbedding: []float64{1, 0}, DiffEmbedding: []float64{1, 0}}
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	rec.Title = "second"
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save (update) failed: %v", err)
	}

	got, err := s.Get(ctx, 5)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Title != "second" {
		t.Fatalf("expected upsert to replace title, got %q", got.Title)
	}
}

func TestSearchRanksByCosineDescendingWithIDTiebreak(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	records := []*types.Record{
		{ID: 3, Title: "a", TextEmbedding: []float64{1, 0}, DiffEmbedding: []float64{0, 0}},
		{ID: 2, Title: "b", TextEmbedding: []float64{1, 0}, DiffEmbedding: []float64{0, 0}},
		{ID: 1, Title: "c", TextEmbedding: []float64{0, 1}, DiffEmbedding: []float64{0, 0}},
	}
	for _, r := range records {
		if err := s.Save(ctx, r); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	hits, err := s.Search(ctx, []float64{1, 0}, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	// ids 2 and 3 tie at score 1.0; lowest id wins the tiebreak.
	if hits[0].ID != 2 || hits[1].ID != 3 {
		t.Fatalf("expected tie broken by ascending id, got order %v, %v", hits[0].ID, hits[1].ID)
	}
	if hits[2].ID != 1 {
		t.Fatalf("expected orthogonal vector last, got %v", hits[2].ID)
	}
}

func TestDeleteRemovesFromStoreAndCache(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	rec := &types.Record{ID: 7, Title: "x", TextEmbedding: []float64{1}, DiffEmbedding: []float64{1}}
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	// Force the cache to load before deleting, to exercise the cache-eviction path.
	if _, err := s.Search(ctx, []float64{1}, 10); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if err := s.Delete(ctx, 7); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	got, err := s.Get(ctx, 7)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Fatal("expected record to be gone after Delete")
	}
	hits, err := s.Search(ctx, []float64{1}, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected empty search results after delete, got %v", hits)
	}
}

func TestSaveCheckAndGetAnalytics(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	oid := int64(1)
	entries := []types.CheckedRecord{
		{ID: 1, ResultType: types.ResultUnique, Confidence: 0.1, TimestampMs: 1000},
		{ID: 2, ResultType: types.ResultDuplicate, OriginalID: &oid, Confidence: 0.95, TimestampMs: 2000},
		{ID: 3, ResultType: types.ResultPossible, OriginalID: &oid, Confidence: 0.85, TimestampMs: 3000},
	}
	for _, e := range entries {
		if err := s.SaveCheck(ctx, e); err != nil {
			t.Fatalf("SaveCheck failed: %v", err)
		}
	}

	analytics, err := s.GetAnalytics(ctx)
	if err != nil {
		t.Fatalf("GetAnalytics failed: %v", err)
	}
	if analytics.Summary.TotalChecks != 3 {
		t.Fatalf("expected 3 total checks, got %d", analytics.Summary.TotalChecks)
	}
	if analytics.Summary.DuplicateCount != 1 || analytics.Summary.PossibleCount != 1 || analytics.Summary.UniqueCount != 1 {
		t.Fatalf("unexpected summary: %+v", analytics.Summary)
	}
}

func TestNativeSearchIsFalse(t *testing.T) {
	s := newTestStorage(t)
	if s.NativeSearch() {
		t.Fatal("sqlite backend must report NativeSearch() == false")
	}
}
