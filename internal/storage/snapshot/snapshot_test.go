package snapshot

import (
	"path/filepath"
	"testing"

	"github.com/repomemory/dupcore/internal/storage"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.json")

	snap := storage.Snapshot{
		Records: []storage.RecordSnapshot{
			{
				ID:            1,
				Title:         "Fix login bug",
				Description:   "Handle empty passwords",
				Files:         []string{"auth/login.ts"},
				TextEmbedding: []float64{0.1, 0.2, 0.3},
				DiffEmbedding: []float64{0.4, 0.5, 0.6},
				CreatedAt:     1000,
			},
			{
				ID:            2,
				Title:         "Add dark mode",
				Description:   "CSS variables",
				Files:         []string{"ui/theme.css"},
				TextEmbedding: []float64{0.7, 0.8},
				DiffEmbedding: []float64{0.9, 1.0},
				CreatedAt:     2000,
			},
		},
		Bloom: "AAAAAAAAAAA=",
	}

	if err := SaveToFile(path, snap); err != nil {
		t.Fatalf("SaveToFile: %v", err)
	}

	got, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if len(got.Records) != len(snap.Records) {
		t.Fatalf("len(Records) = %d, want %d", len(got.Records), len(snap.Records))
	}
	if got.Bloom != snap.Bloom {
		t.Errorf("Bloom = %q, want %q", got.Bloom, snap.Bloom)
	}
	for i, rec := range got.Records {
		want := snap.Records[i]
		if rec.ID != want.ID || rec.Title != want.Title {
			t.Errorf("Records[%d] = %+v, want %+v", i, rec, want)
		}
		if len(rec.TextEmbedding) != len(want.TextEmbedding) {
			t.Errorf("Records[%d].TextEmbedding length mismatch", i)
		}
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/snap.json")
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestSaveToFile_OverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.json")

	first := storage.Snapshot{Bloom: "first"}
	if err := SaveToFile(path, first); err != nil {
		t.Fatalf("SaveToFile(first): %v", err)
	}

	second := storage.Snapshot{Bloom: "second"}
	if err := SaveToFile(path, second); err != nil {
		t.Fatalf("SaveToFile(second): %v", err)
	}

	got, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if got.Bloom != "second" {
		t.Errorf("Bloom = %q, want %q (overwritten)", got.Bloom, "second")
	}
}
