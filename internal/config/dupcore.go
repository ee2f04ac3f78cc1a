// Package config loads detector.Config from a YAML or JSON file on disk
// using spf13/viper, layering environment variables on top with
// precedence, per SPEC_FULL.md's Configuration section.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/repomemory/dupcore/internal/detector"
	"github.com/repomemory/dupcore/internal/types"
)

// StorageConfig names which storage back-end to construct and the
// connection details it needs, read from the same file as the rest of
// the detector configuration.
type StorageConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`

	// SQLite
	Path string `mapstructure:"path" yaml:"path,omitempty"`

	// Postgres
	Host     string `mapstructure:"host" yaml:"host,omitempty"`
	Port     int    `mapstructure:"port" yaml:"port,omitempty"`
	Database string `mapstructure:"database" yaml:"database,omitempty"`
	User     string `mapstructure:"user" yaml:"user,omitempty"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode,omitempty"`

	// Snapshot
	SnapshotPath string `mapstructure:"snapshot_path" yaml:"snapshot_path,omitempty"`
}

// FileConfig is the on-disk shape LoadFile decodes, mirroring
// detector.Config's fields one-for-one plus the storage selector. The
// yaml tags mirror the mapstructure ones so a struct marshaled directly
// with gopkg.in/yaml.v3 decodes back through viper unchanged.
type FileConfig struct {
	DuplicateThreshold float64       `mapstructure:"duplicate_threshold" yaml:"duplicate_threshold"`
	PossibleThreshold  float64       `mapstructure:"possible_threshold" yaml:"possible_threshold"`
	WeightText         float64       `mapstructure:"weight_text" yaml:"weight_text"`
	WeightDiff         float64       `mapstructure:"weight_diff" yaml:"weight_diff"`
	WeightFile         float64       `mapstructure:"weight_file" yaml:"weight_file"`
	BloomFilterSize    uint64        `mapstructure:"bloom_filter_size" yaml:"bloom_filter_size"`
	BloomK             uint64        `mapstructure:"bloom_k" yaml:"bloom_k"`
	MaxCandidates      int           `mapstructure:"max_candidates" yaml:"max_candidates"`
	EnableCache        bool          `mapstructure:"enable_cache" yaml:"enable_cache"`
	CacheSize          int           `mapstructure:"cache_size" yaml:"cache_size"`
	MinTitleLength     int           `mapstructure:"min_title_length" yaml:"min_title_length"`
	RepoID             string        `mapstructure:"repo_id" yaml:"repo_id"`
	Storage            StorageConfig `mapstructure:"storage" yaml:"storage"`
}

// LoadFile reads a YAML or JSON configuration file at path and returns a
// detector.Config (without Embedder/Storage, which callers wire up
// separately) plus the raw StorageConfig selector so callers can
// construct the matching storage.Storage implementation. Environment
// variables with a DUPCORE_ prefix take precedence over file values,
// following viper's AutomaticEnv + BindEnv idiom.
func LoadFile(path string) (detector.Config, StorageConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetEnvPrefix("DUPCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{
		"duplicate_threshold", "possible_threshold",
		"weight_text", "weight_diff", "weight_file",
		"bloom_filter_size", "bloom_k", "max_candidates",
		"enable_cache", "cache_size", "min_title_length", "repo_id",
		"storage.backend", "storage.path", "storage.host", "storage.port",
		"storage.database", "storage.user", "storage.password",
		"storage.sslmode", "storage.snapshot_path",
	} {
		_ = v.BindEnv(key)
	}

	def := detector.DefaultConfig()
	v.SetDefault("duplicate_threshold", def.DuplicateThreshold)
	v.SetDefault("possible_threshold", def.PossibleThreshold)
	v.SetDefault("weight_text", def.Weights.Text)
	v.SetDefault("weight_diff", def.Weights.Diff)
	v.SetDefault("weight_file", def.Weights.File)
	v.SetDefault("bloom_filter_size", def.BloomFilterSize)
	v.SetDefault("bloom_k", def.BloomK)
	v.SetDefault("max_candidates", def.MaxCandidates)
	v.SetDefault("enable_cache", def.EnableCache)
	v.SetDefault("cache_size", def.CacheSize)
	v.SetDefault("min_title_length", def.MinTitleLength)
	v.SetDefault("storage.backend", "memory")

	if err := v.ReadInConfig(); err != nil {
		return detector.Config{}, StorageConfig{}, types.NewConfigError("config.LoadFile", fmt.Errorf("read %s: %w", path, err))
	}

	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return detector.Config{}, StorageConfig{}, types.NewConfigError("config.LoadFile", fmt.Errorf("decode %s: %w", path, err))
	}

	cfg := detector.Config{
		DuplicateThreshold: fc.DuplicateThreshold,
		PossibleThreshold:  fc.PossibleThreshold,
		Weights:            types.Weights{Text: fc.WeightText, Diff: fc.WeightDiff, File: fc.WeightFile},
		BloomFilterSize:    fc.BloomFilterSize,
		BloomK:             fc.BloomK,
		MaxCandidates:      fc.MaxCandidates,
		EnableCache:        fc.EnableCache,
		CacheSize:          fc.CacheSize,
		MinTitleLength:     fc.MinTitleLength,
		RepoID:             fc.RepoID,
	}

	if err := cfg.Validate(); err != nil {
		return detector.Config{}, StorageConfig{}, types.NewConfigError("config.LoadFile", fmt.Errorf("invalid configuration in %s: %w", path, err))
	}

	return cfg, fc.Storage, nil
}
