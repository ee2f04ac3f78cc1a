// Package detector implements the duplicate-detection orchestrator:
// validation, sanitization, cached embedding, bloom bookkeeping,
// candidate retrieval, re-ranking, decision, indexing and attribution.
// It is the component every other package in this module is assembled
// underneath.
package detector

import (
	"fmt"
	"os"
	"strconv"

	"github.com/repomemory/dupcore/internal/bloomfilter"
	"github.com/repomemory/dupcore/internal/embedding"
	"github.com/repomemory/dupcore/internal/ranker"
	"github.com/repomemory/dupcore/internal/storage"
	"github.com/repomemory/dupcore/internal/types"
)

// DefaultBloomSize, DefaultMaxCandidates and DefaultCacheSize are the
// built-in configuration defaults.
const (
	DefaultBloomSize     uint64 = 8192
	DefaultBloomK        uint64 = 5
	DefaultMaxCandidates        = 20
	DefaultCacheSize            = 10000
	MaxMaxCandidates            = 1000
	MaxCacheSize                = 100000
)

// Config is the construction-time configuration for a Detector. Embedder
// is the only required field; New fills zero-valued thresholds, weights,
// bloom, candidate and cache-size fields with their documented defaults.
// EnableCache is taken as given (false when left unset).
type Config struct {
	// Embedder is the pluggable embedder capability. Required.
	Embedder embedding.Embedder
	// Storage is the optional persistent backend. A nil
	// Storage is valid: Init becomes a no-op and the detector runs
	// purely in-memory.
	Storage storage.Storage

	DuplicateThreshold float64
	PossibleThreshold  float64
	Weights            types.Weights

	BloomFilterSize uint64
	BloomK          uint64
	MaxCandidates   int

	EnableCache bool
	CacheSize   int

	// MinTitleLength, when positive, short-circuits retrieval/re-ranking
	// for descriptors whose sanitized title is shorter than this many
	// characters: the check still indexes the record but always
	// classifies as unique with confidence 0.
	MinTitleLength int

	// RepoID is an opaque string used only for cross-repo dispatch; the
	// core itself never inspects it.
	RepoID string
}

// DefaultConfig returns a Config with every field at its documented
// default except Embedder, which the caller must still set.
func DefaultConfig() Config {
	return Config{
		DuplicateThreshold: ranker.DefaultDuplicateThreshold,
		PossibleThreshold:  ranker.DefaultPossibleThreshold,
		Weights:            types.DefaultWeights(),
		BloomFilterSize:    DefaultBloomSize,
		BloomK:             DefaultBloomK,
		MaxCandidates:      DefaultMaxCandidates,
		EnableCache:        true,
		CacheSize:          DefaultCacheSize,
	}
}

// Validate enforces every configuration-time constraint: threshold
// ordering and range, weight validity, bloom size range, candidate
// bound, and cache size range. It does not require Embedder
// to be set, since callers that only want to validate a parsed config
// before constructing a real embedder still need Validate to succeed.
func (c Config) Validate() error {
	if err := (ranker.Thresholds{Duplicate: c.DuplicateThreshold, Possible: c.PossibleThreshold}).Validate(); err != nil {
		return fmt.Errorf("detector: %w", err)
	}
	if err := c.Weights.Validate(); err != nil {
		return fmt.Errorf("detector: %w", err)
	}
	if c.BloomFilterSize < bloomfilter.MinBits || c.BloomFilterSize > bloomfilter.MaxBits {
		return fmt.Errorf("detector: bloom_filter_size must be between %d and %d (got %d)",
			bloomfilter.MinBits, bloomfilter.MaxBits, c.BloomFilterSize)
	}
	if c.BloomK < 1 {
		return fmt.Errorf("detector: bloom k must be at least 1 (got %d)", c.BloomK)
	}
	if c.MaxCandidates < 1 || c.MaxCandidates > MaxMaxCandidates {
		return fmt.Errorf("detector: max_candidates must be between 1 and %d (got %d)", MaxMaxCandidates, c.MaxCandidates)
	}
	if c.EnableCache && (c.CacheSize < 1 || c.CacheSize > MaxCacheSize) {
		return fmt.Errorf("detector: cache_size must be between 1 and %d (got %d)", MaxCacheSize, c.CacheSize)
	}
	if c.MinTitleLength < 0 {
		return fmt.Errorf("detector: min_title_length cannot be negative (got %d)", c.MinTitleLength)
	}
	return nil
}

// String returns a human-readable summary of the configuration for
// startup logging, mirroring deduplication.Config.String()'s shape.
func (c Config) String() string {
	return fmt.Sprintf(
		"Config{DuplicateThreshold: %.2f, PossibleThreshold: %.2f, Weights: %+v, "+
			"BloomSize: %d, BloomK: %d, MaxCandidates: %d, Cache: %t/%d, MinTitleLength: %d, RepoID: %q}",
		c.DuplicateThreshold, c.PossibleThreshold, c.Weights,
		c.BloomFilterSize, c.BloomK, c.MaxCandidates, c.EnableCache, c.CacheSize, c.MinTitleLength, c.RepoID,
	)
}

// ConfigFromEnv builds a Config from DUPCORE_* environment variables,
// layered over DefaultConfig: parse-or-default-or-error per variable,
// then a final Validate. Embedder and Storage are never set from the
// environment; callers attach those after.
//
// Recognized variables:
//   - DUPCORE_DUPLICATE_THRESHOLD
//   - DUPCORE_POSSIBLE_THRESHOLD
//   - DUPCORE_WEIGHT_TEXT, DUPCORE_WEIGHT_DIFF, DUPCORE_WEIGHT_FILE
//   - DUPCORE_BLOOM_SIZE
//   - DUPCORE_MAX_CANDIDATES
//   - DUPCORE_ENABLE_CACHE
//   - DUPCORE_CACHE_SIZE
//   - DUPCORE_MIN_TITLE_LENGTH
//   - DUPCORE_REPO_ID
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if err := parseEnvFloat("DUPCORE_DUPLICATE_THRESHOLD", &cfg.DuplicateThreshold); err != nil {
		return cfg, err
	}
	if err := parseEnvFloat("DUPCORE_POSSIBLE_THRESHOLD", &cfg.PossibleThreshold); err != nil {
		return cfg, err
	}
	if err := parseEnvFloat("DUPCORE_WEIGHT_TEXT", &cfg.Weights.Text); err != nil {
		return cfg, err
	}
	if err := parseEnvFloat("DUPCORE_WEIGHT_DIFF", &cfg.Weights.Diff); err != nil {
		return cfg, err
	}
	if err := parseEnvFloat("DUPCORE_WEIGHT_FILE", &cfg.Weights.File); err != nil {
		return cfg, err
	}
	if err := parseEnvUint("DUPCORE_BLOOM_SIZE", &cfg.BloomFilterSize); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("DUPCORE_MAX_CANDIDATES", &cfg.MaxCandidates); err != nil {
		return cfg, err
	}
	if err := parseEnvBool("DUPCORE_ENABLE_CACHE", &cfg.EnableCache); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("DUPCORE_CACHE_SIZE", &cfg.CacheSize); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("DUPCORE_MIN_TITLE_LENGTH", &cfg.MinTitleLength); err != nil {
		return cfg, err
	}
	if v := os.Getenv("DUPCORE_REPO_ID"); v != "" {
		cfg.RepoID = v
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration from environment: %w", err)
	}
	return cfg, nil
}

func parseEnvFloat(key string, dest *float64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

func parseEnvInt(key string, dest *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

func parseEnvUint(key string, dest *uint64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parsed, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

func parseEnvBool(key string, dest *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}
