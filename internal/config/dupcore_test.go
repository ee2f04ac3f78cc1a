package config

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "dupcore.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

// writeTempConfigStruct marshals fc with gopkg.in/yaml.v3 instead of a
// raw string fixture, exercising the same YAML encoding LoadFile's
// callers use when they hand-author a config file.
func writeTempConfigStruct(t *testing.T, fc FileConfig) string {
	t.Helper()
	data, err := yaml.Marshal(fc)
	if err != nil {
		t.Fatalf("yaml.Marshal: %v", err)
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "dupcore.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadFile_DefaultsAndOverrides(t *testing.T) {
	path := writeTempConfig(t, `
duplicate_threshold: 0.92
possible_threshold: 0.80
weight_text: 2
weight_diff: 1
weight_file: 1
storage:
  backend: sqlite
  path: /tmp/dupcore.db
`)

	cfg, sc, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.DuplicateThreshold != 0.92 {
		t.Errorf("DuplicateThreshold = %v, want 0.92", cfg.DuplicateThreshold)
	}
	if cfg.PossibleThreshold != 0.80 {
		t.Errorf("PossibleThreshold = %v, want 0.80", cfg.PossibleThreshold)
	}
	if cfg.BloomFilterSize == 0 {
		t.Error("BloomFilterSize should fall back to the default, not zero")
	}
	if sc.Backend != "sqlite" || sc.Path != "/tmp/dupcore.db" {
		t.Errorf("StorageConfig = %+v, want backend=sqlite path=/tmp/dupcore.db", sc)
	}
}

func TestLoadFile_EnvOverridesFile(t *testing.T) {
	path := writeTempConfig(t, `
duplicate_threshold: 0.92
possible_threshold: 0.80
`)

	t.Setenv("DUPCORE_DUPLICATE_THRESHOLD", "0.95")

	cfg, _, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.DuplicateThreshold != 0.95 {
		t.Errorf("DuplicateThreshold = %v, want 0.95 (env override)", cfg.DuplicateThreshold)
	}
}

func TestLoadFile_RejectsInvalidConfig(t *testing.T) {
	path := writeTempConfig(t, `
duplicate_threshold: 0.5
possible_threshold: 0.8
`)

	if _, _, err := LoadFile(path); err == nil {
		t.Fatal("expected an error for duplicate_threshold < possible_threshold")
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	if _, _, err := LoadFile("/nonexistent/dupcore.yaml"); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestLoadFile_YAMLStructRoundTrip(t *testing.T) {
	path := writeTempConfigStruct(t, FileConfig{
		DuplicateThreshold: 0.93,
		PossibleThreshold:  0.81,
		WeightText:         0.5,
		WeightDiff:         0.3,
		WeightFile:         0.2,
		BloomFilterSize:    4096,
		BloomK:             4,
		MaxCandidates:      15,
		EnableCache:        true,
		CacheSize:          500,
		MinTitleLength:     5,
		RepoID:             "acme/widgets",
		Storage:            StorageConfig{Backend: "memory"},
	})

	cfg, sc, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.DuplicateThreshold != 0.93 || cfg.PossibleThreshold != 0.81 {
		t.Errorf("thresholds = %v/%v, want 0.93/0.81", cfg.DuplicateThreshold, cfg.PossibleThreshold)
	}
	if cfg.RepoID != "acme/widgets" {
		t.Errorf("RepoID = %q, want acme/widgets", cfg.RepoID)
	}
	if sc.Backend != "memory" {
		t.Errorf("Backend = %q, want memory", sc.Backend)
	}
}
