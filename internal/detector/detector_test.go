package detector

import (
	"context"
	"testing"

	"github.com/repomemory/dupcore/internal/bloomfilter"
	"github.com/repomemory/dupcore/internal/embedding"
	"github.com/repomemory/dupcore/internal/storage"
	"github.com/repomemory/dupcore/internal/types"
)

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	emb, err := embedding.NewLocalEmbedder(256)
	if err != nil {
		t.Fatalf("NewLocalEmbedder: %v", err)
	}
	cfg := DefaultConfig()
	cfg.Embedder = emb
	cfg.Storage = storage.NewMemoryStorage()
	d, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return d
}

// Scenario 1: first-ever descriptor is unique with confidence 0.
func TestCheck_FirstDescriptor(t *testing.T) {
	d := newTestDetector(t)
	ctx := context.Background()

	desc := types.Descriptor{ID: 1, Title: "Fix login bug", Description: "Handle empty passwords", Files: []string{"auth/login.ts"}}
	result, err := d.Check(ctx, desc, Options{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if result.Type != types.ResultUnique {
		t.Errorf("Type = %v, want unique", result.Type)
	}
	if result.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0", result.Confidence)
	}
	if got := d.GetStats().TotalPRs; got != 1 {
		t.Errorf("TotalPRs = %d, want 1", got)
	}
	fp := bloomfilter.ContentFingerprint(desc.Title, desc.Description, desc.Diff)
	if !d.BloomMightContain(fp) {
		t.Error("bloom should contain the content fingerprint after check")
	}
}

// Scenario 2: exact replay under a different id is a duplicate.
func TestCheck_ExactReplayIsDuplicate(t *testing.T) {
	d := newTestDetector(t)
	ctx := context.Background()

	first := types.Descriptor{ID: 1, Title: "Fix login bug", Description: "Handle empty passwords", Files: []string{"auth/login.ts"}}
	if _, err := d.Check(ctx, first, Options{}); err != nil {
		t.Fatalf("Check(1): %v", err)
	}

	second := types.Descriptor{ID: 2, Title: "Fix login bug", Description: "Handle empty passwords", Files: []string{"auth/login.ts"}}
	result, err := d.Check(ctx, second, Options{})
	if err != nil {
		t.Fatalf("Check(2): %v", err)
	}
	if result.Type != types.ResultDuplicate {
		t.Fatalf("Type = %v, want duplicate", result.Type)
	}
	if result.OriginalID == nil || *result.OriginalID != 1 {
		t.Errorf("OriginalID = %v, want 1", result.OriginalID)
	}
	if result.Confidence < 0.90 {
		t.Errorf("Confidence = %v, want >= 0.90", result.Confidence)
	}
	if got := d.Root(2); got != 1 {
		t.Errorf("Root(2) = %d, want 1", got)
	}
}

// Scenario 4: an unrelated descriptor is unique and creates no edge.
func TestCheck_UnrelatedIsUnique(t *testing.T) {
	d := newTestDetector(t)
	ctx := context.Background()

	first := types.Descriptor{ID: 1, Title: "Fix login bug", Description: "Handle empty passwords", Files: []string{"auth/login.ts"}}
	if _, err := d.Check(ctx, first, Options{}); err != nil {
		t.Fatalf("Check(1): %v", err)
	}

	unrelated := types.Descriptor{ID: 4, Title: "Add dark mode to dashboard", Description: "CSS variables and toggle", Files: []string{"ui/theme.css", "components/Navbar.tsx"}}
	result, err := d.Check(ctx, unrelated, Options{})
	if err != nil {
		t.Fatalf("Check(4): %v", err)
	}
	if result.Type != types.ResultUnique {
		t.Fatalf("Type = %v, want unique", result.Type)
	}
	if result.Confidence >= 0.82 {
		t.Errorf("Confidence = %v, want < 0.82", result.Confidence)
	}
	if len(d.Descendants(1)) != 0 {
		t.Errorf("Descendants(1) = %v, want empty", d.Descendants(1))
	}
}

// Scenario 5: dry-run checks never change total_prs.
func TestCheck_DryRunPreservesState(t *testing.T) {
	d := newTestDetector(t)
	ctx := context.Background()

	first := types.Descriptor{ID: 1, Title: "Fix login bug", Description: "Handle empty passwords", Files: []string{"auth/login.ts"}}
	if _, err := d.Check(ctx, first, Options{}); err != nil {
		t.Fatalf("Check(1): %v", err)
	}
	if got := d.GetStats().TotalPRs; got != 1 {
		t.Fatalf("TotalPRs before dry run = %d, want 1", got)
	}

	dry := types.Descriptor{ID: 5, Title: "Test", Description: "x", Files: []string{"a.ts"}}
	if _, err := d.Check(ctx, dry, Options{DryRun: true}); err != nil {
		t.Fatalf("Check(5, dry): %v", err)
	}
	if got := d.GetStats().TotalPRs; got != 1 {
		t.Errorf("TotalPRs after dry run = %d, want 1", got)
	}
}

// Scenario 6: export/import preserves decisions on a fresh detector.
func TestExportImportState_PreservesDecisions(t *testing.T) {
	d := newTestDetector(t)
	ctx := context.Background()

	first := types.Descriptor{ID: 1, Title: "Fix login bug", Description: "Handle empty passwords", Files: []string{"auth/login.ts"}}
	if _, err := d.Check(ctx, first, Options{}); err != nil {
		t.Fatalf("Check(1): %v", err)
	}

	snap := d.ExportState()

	emb, _ := embedding.NewLocalEmbedder(256)
	fresh, err := New(Config{Embedder: emb})
	if err != nil {
		t.Fatalf("New(fresh): %v", err)
	}
	if err := fresh.ImportState(snap); err != nil {
		t.Fatalf("ImportState: %v", err)
	}

	second := types.Descriptor{ID: 2, Title: "Fix login bug", Description: "Handle empty passwords", Files: []string{"auth/login.ts"}}
	result, err := fresh.Check(ctx, second, Options{DryRun: true})
	if err != nil {
		t.Fatalf("Check(2) on fresh: %v", err)
	}
	if result.Type != types.ResultDuplicate {
		t.Fatalf("Type = %v, want duplicate", result.Type)
	}
	if result.OriginalID == nil || *result.OriginalID != 1 {
		t.Errorf("OriginalID = %v, want 1", result.OriginalID)
	}
}

func TestCheck_InvalidInputDoesNotMutateState(t *testing.T) {
	d := newTestDetector(t)
	ctx := context.Background()

	before := d.GetStats()

	bad := types.Descriptor{ID: -1, Title: "x"}
	_, err := d.Check(ctx, bad, Options{})
	if err == nil {
		t.Fatal("expected an error for a negative id")
	}
	if !types.Is(err, types.KindInvalidInput) {
		t.Errorf("expected invalid_input, got %v", err)
	}

	after := d.GetStats()
	if before != after {
		t.Errorf("stats mutated by a failed check: before=%+v after=%+v", before, after)
	}
}

func TestCheckMany_BoundsBatchSize(t *testing.T) {
	d := newTestDetector(t)
	ctx := context.Background()

	descriptors := make([]types.Descriptor, 1001)
	for i := range descriptors {
		descriptors[i] = types.Descriptor{ID: int64(i + 1), Title: "x"}
	}

	_, err := d.CheckMany(ctx, descriptors, Options{})
	if err == nil || !types.Is(err, types.KindInvalidInput) {
		t.Fatalf("expected invalid_input for 1001 items, got %v", err)
	}
}

func TestCheckMany_PreservesOrder(t *testing.T) {
	d := newTestDetector(t)
	ctx := context.Background()

	descriptors := []types.Descriptor{
		{ID: 1, Title: "Fix login bug", Description: "a", Files: []string{"a.ts"}},
		{ID: 2, Title: "Add dark mode", Description: "b", Files: []string{"b.ts"}},
		{ID: 3, Title: "Improve error logging", Description: "c", Files: []string{"c.ts"}},
	}

	items, err := d.CheckMany(ctx, descriptors, Options{})
	if err != nil {
		t.Fatalf("CheckMany: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len(items) = %d, want 3", len(items))
	}
	for i, item := range items {
		if item.ID != descriptors[i].ID {
			t.Errorf("items[%d].ID = %d, want %d", i, item.ID, descriptors[i].ID)
		}
	}
}

func TestMinTitleLengthShortCircuit(t *testing.T) {
	emb, _ := embedding.NewLocalEmbedder(256)
	cfg := DefaultConfig()
	cfg.Embedder = emb
	cfg.MinTitleLength = 20
	d, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := d.Check(context.Background(), types.Descriptor{ID: 1, Title: "short title"}, Options{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if result.Type != types.ResultUnique || result.Confidence != 0 {
		t.Errorf("got %+v, want unique/0 for a title shorter than MinTitleLength", result)
	}
	if d.GetStats().TotalPRs != 1 {
		t.Errorf("short-circuited check should still index the record")
	}
}

func TestSetWeights_RejectsInvalid(t *testing.T) {
	d := newTestDetector(t)

	if err := d.SetWeights(types.Weights{Text: -1, Diff: 1, File: 0}); err == nil {
		t.Error("expected an error for a negative weight")
	}
	if err := d.SetWeights(types.Weights{}); err == nil {
		t.Error("expected an error for all-zero weights")
	}
	if err := d.SetWeights(types.Weights{Text: 1, Diff: 1, File: 2}); err != nil {
		t.Fatalf("SetWeights: %v", err)
	}
	got := d.GetWeights()
	sum := got.Text + got.Diff + got.File
	if sum < 1-1e-3 || sum > 1+1e-3 {
		t.Errorf("weights sum = %v, want ~1.0", sum)
	}
}

func TestSearch_ReturnsIndexedRecords(t *testing.T) {
	d := newTestDetector(t)
	ctx := context.Background()

	descs := []types.Descriptor{
		{ID: 1, Title: "Fix login bug", Description: "Handle empty passwords", Files: []string{"auth/login.ts"}},
		{ID: 2, Title: "Add dark mode to dashboard", Description: "CSS variables", Files: []string{"ui/theme.css"}},
	}
	for _, d2 := range descs {
		if _, err := d.Check(ctx, d2, Options{}); err != nil {
			t.Fatalf("Check(%d): %v", d2.ID, err)
		}
	}

	hits, err := d.Search(ctx, "login password bug", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected at least one search hit")
	}
	if hits[0].ID != 1 {
		t.Errorf("hits[0].ID = %d, want 1 (closest to the query)", hits[0].ID)
	}
}
