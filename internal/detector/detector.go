package detector

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/repomemory/dupcore/internal/attribution"
	"github.com/repomemory/dupcore/internal/bloomfilter"
	"github.com/repomemory/dupcore/internal/embedcache"
	"github.com/repomemory/dupcore/internal/ranker"
	"github.com/repomemory/dupcore/internal/storage"
	"github.com/repomemory/dupcore/internal/types"
	"github.com/repomemory/dupcore/internal/vectormath"
)

// embedDeadline is the abortable deadline applied to every embedder call.
const embedDeadline = 30 * time.Second

// maxBatchConcurrency bounds how many descriptors CheckMany embeds and
// checks at once, independent of MaxCandidates.
const maxBatchConcurrency = 8

// Options modifies a single check.
type Options struct {
	// DryRun computes and returns a decision but leaves the mirror, the
	// bloom filter, the attribution graph and storage unchanged. The
	// embedding caches may still be filled.
	DryRun bool
}

// Detector orchestrates the full duplicate-detection pipeline. A single
// instance is expected to be used by one logical caller at a time, but
// must not crash under concurrent read+write access.
type Detector struct {
	cfg Config

	mirrorMu sync.RWMutex
	mirror   map[int64]*types.Record

	bloom *bloomfilter.Filter
	dag   *attribution.DAG

	weightsMu  sync.RWMutex
	weights    types.Weights
	thresholds ranker.Thresholds

	textCache      *embedcache.StringVectorCache
	diffCache      *embedcache.StringVectorCache
	compositeCache *embedcache.CompositeCache

	batchSem *semaphore.Weighted

	initMu      sync.Mutex
	initialized bool
}

// New constructs a Detector from cfg. It does not touch storage; call
// Init once after construction to load existing records.
func New(cfg Config) (*Detector, error) {
	if cfg.Embedder == nil {
		return nil, types.NewConfigError("detector.New", errString("embedder is required"))
	}
	// A caller building Config{Embedder: e} by hand gets the same
	// defaults DefaultConfig() would have set for every zero-valued
	// numeric field. EnableCache is not defaulted: a false value stays
	// false, and the caches then hold a single entry each.
	if cfg.DuplicateThreshold == 0 && cfg.PossibleThreshold == 0 {
		cfg.DuplicateThreshold = ranker.DefaultDuplicateThreshold
		cfg.PossibleThreshold = ranker.DefaultPossibleThreshold
	}
	if cfg.Weights == (types.Weights{}) {
		cfg.Weights = types.DefaultWeights()
	}
	if cfg.BloomFilterSize == 0 {
		cfg.BloomFilterSize = DefaultBloomSize
	}
	if cfg.BloomK == 0 {
		cfg.BloomK = DefaultBloomK
	}
	if cfg.MaxCandidates == 0 {
		cfg.MaxCandidates = DefaultMaxCandidates
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if err := cfg.Validate(); err != nil {
		return nil, types.NewConfigError("detector.New", err)
	}

	bloom, err := bloomfilter.New(cfg.BloomFilterSize, cfg.BloomK)
	if err != nil {
		return nil, types.NewConfigError("detector.New", err)
	}

	cacheSize := cfg.CacheSize
	if !cfg.EnableCache {
		cacheSize = 1
	}

	return &Detector{
		cfg:            cfg,
		mirror:         make(map[int64]*types.Record),
		bloom:          bloom,
		dag:            attribution.New(),
		weights:        cfg.Weights.Normalized(),
		thresholds:     ranker.Thresholds{Duplicate: cfg.DuplicateThreshold, Possible: cfg.PossibleThreshold},
		textCache:      embedcache.NewStringVectorCache(cacheSize),
		diffCache:      embedcache.NewStringVectorCache(cacheSize),
		compositeCache: embedcache.NewCompositeCache(cacheSize),
		batchSem:       semaphore.NewWeighted(maxBatchConcurrency),
	}, nil
}

type simpleError string

func errString(s string) error      { return simpleError(s) }
func (e simpleError) Error() string { return string(e) }

// Init loads every record from the configured storage, repopulates the
// in-memory mirror and the bloom filter. A nil Storage makes Init a
// no-op. A storage failure here is logged and the detector proceeds in
// degraded mode with an empty mirror.
func (d *Detector) Init(ctx context.Context) error {
	d.initMu.Lock()
	defer d.initMu.Unlock()

	if d.cfg.Storage == nil {
		d.initialized = true
		return nil
	}

	records, err := d.cfg.Storage.GetAll(ctx)
	if err != nil {
		log.Printf("[DETECTOR] init: storage.GetAll failed, proceeding in degraded mode: %v", err)
		d.initialized = true
		return nil
	}

	d.mirrorMu.Lock()
	for _, rec := range records {
		d.mirror[rec.ID] = rec
		d.bloom.Add(bloomfilter.ContentFingerprint(rec.Title, rec.Description, ""))
	}
	d.mirrorMu.Unlock()

	d.initialized = true
	log.Printf("[DETECTOR] init: loaded %d records from storage", len(records))
	return nil
}

// Check runs the full pipeline and returns the
// basic three-way classification.
func (d *Detector) Check(ctx context.Context, desc types.Descriptor, opts Options) (types.CheckResult, error) {
	detailed, err := d.CheckDetailed(ctx, desc, opts)
	if err != nil {
		return types.CheckResult{}, err
	}
	return detailed.CheckResult, nil
}

// CheckDetailed runs the full pipeline and additionally returns the
// score breakdown that produced the decision.
func (d *Detector) CheckDetailed(ctx context.Context, desc types.Descriptor, opts Options) (types.CheckDetailedResult, error) {
	start := time.Now()
	traceID := uuid.New().String()

	// Step 1: validation. No partial work happens before this succeeds.
	if err := desc.Validate(); err != nil {
		return types.CheckDetailedResult{}, types.NewInvalidInput("detector.Check", err)
	}

	// Step 2: sanitization.
	clean := desc.Sanitized()
	fileSet := vectormath.NewFileSet(clean.Files)

	// Step 3: embedding (cached).
	textVec, diffVec, err := d.embed(ctx, clean)
	if err != nil {
		return types.CheckDetailedResult{}, err
	}

	// Step 4: fingerprint (bloom bookkeeping only; not used to reject),
	// skipped on a dry run.
	if !opts.DryRun {
		fp := bloomfilter.ContentFingerprint(clean.Title, clean.Description, clean.Diff)
		d.bloom.Add(fp)
	}

	weights, thresholds := d.currentWeights()

	shortCircuit := d.cfg.MinTitleLength > 0 && len(clean.Title) < d.cfg.MinTitleLength

	var best types.ScoreBreakdown
	var bestID *int64
	var comparedCount int

	if !shortCircuit {
		// Step 5: candidate retrieval.
		candidateIDs := d.retrieveCandidates(ctx, textVec)

		// Step 6: re-ranking.
		best, bestID, comparedCount = d.rerank(candidateIDs, textVec, diffVec, fileSet, weights)
	}

	// Step 7: decision.
	result := types.CheckResult{Confidence: best.FinalScore}
	if shortCircuit {
		result.Type = types.ResultUnique
		result.Confidence = 0
	} else if bestID != nil {
		result.Type = ranker.Decide(best.FinalScore, thresholds)
		if result.Type != types.ResultUnique {
			id := *bestID
			result.OriginalID = &id
		}
	} else {
		result.Type = types.ResultUnique
	}

	best.CandidateID = bestID
	best.ComparedCount = comparedCount
	best.ProcessingMs = time.Since(start).Milliseconds()

	log.Printf("[DETECTOR] check trace=%s id=%d compared=%d processing_ms=%d", traceID, clean.ID, comparedCount, best.ProcessingMs)

	// Step 8: indexing, unless dry-run.
	if !opts.DryRun {
		rec := &types.Record{
			ID:            clean.ID,
			Title:         clean.Title,
			Description:   clean.Description,
			Files:         append([]string(nil), clean.Files...),
			TextEmbedding: textVec,
			DiffEmbedding: diffVec,
			CreatedAt:     time.Now().UnixMilli(),
		}
		d.mirrorMu.Lock()
		d.mirror[rec.ID] = rec
		d.mirrorMu.Unlock()

		if d.cfg.Storage != nil {
			if err := d.cfg.Storage.Save(ctx, rec); err != nil {
				log.Printf("[DETECTOR] check %d: storage.Save failed, in-memory mirror stands: %v", rec.ID, err)
			}
		}

		if result.Type == types.ResultDuplicate && result.OriginalID != nil {
			d.dag.AddEdge(rec.ID, *result.OriginalID)
		}

		// Step 9: analytics, unless dry-run.
		if as, ok := d.cfg.Storage.(storage.AnalyticsStorage); ok {
			checked := types.CheckedRecord{
				ID:          rec.ID,
				ResultType:  result.Type,
				OriginalID:  result.OriginalID,
				Confidence:  result.Confidence,
				TimestampMs: rec.CreatedAt,
			}
			if err := as.SaveCheck(ctx, checked); err != nil {
				log.Printf("[DETECTOR] check %d: storage.SaveCheck failed: %v", rec.ID, err)
			}
		}
	}

	return types.CheckDetailedResult{CheckResult: result, Breakdown: best}, nil
}

// embed consults the composite cache first; on a miss it invokes the
// embedder once per field (through the per-string cache) and populates
// the composite cache.
func (d *Detector) embed(ctx context.Context, clean types.Descriptor) ([]float64, []float64, error) {
	compositeKey := embedcache.CompositeKey(clean.Title, clean.Description, clean.Diff)

	composite, err := d.compositeCache.GetOrCompute(compositeKey, func() (embedcache.CompositeEmbedding, error) {
		textInput := clean.Title + "\n" + clean.Description

		textVec, err := d.textCache.GetOrCompute(textInput, func() ([]float64, error) {
			return d.callEmbedder(ctx, d.cfg.Embedder.EmbedText, textInput)
		})
		if err != nil {
			return embedcache.CompositeEmbedding{}, err
		}

		diffVec, err := d.diffCache.GetOrCompute(clean.Diff, func() ([]float64, error) {
			return d.callEmbedder(ctx, d.cfg.Embedder.EmbedDiff, clean.Diff)
		})
		if err != nil {
			return embedcache.CompositeEmbedding{}, err
		}

		return embedcache.CompositeEmbedding{Text: textVec, Diff: diffVec}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return composite.Text, composite.Diff, nil
}

type embedFunc func(context.Context, string) ([]float64, error)

// callEmbedder bounds a single embedder call to embedDeadline and
// validates the result is non-empty.
func (d *Detector) callEmbedder(ctx context.Context, fn embedFunc, input string) ([]float64, error) {
	callCtx, cancel := context.WithTimeout(ctx, embedDeadline)
	defer cancel()

	vec, err := fn(callCtx, input)
	if err != nil {
		return nil, types.NewEmbeddingError("detector.embed", err)
	}
	if len(vec) == 0 {
		return nil, types.NewEmbeddingError("detector.embed", errString("embedder returned an empty vector"))
	}
	return vec, nil
}

// retrieveCandidates delegates to storage.Search when storage is
// configured, falling back to an in-memory full scan on error or
// absence.
func (d *Detector) retrieveCandidates(ctx context.Context, textVec []float64) []int64 {
	k := d.cfg.MaxCandidates

	if d.cfg.Storage != nil {
		hits, err := d.cfg.Storage.Search(ctx, textVec, k)
		if err == nil {
			ids := make([]int64, len(hits))
			for i, h := range hits {
				ids[i] = h.ID
			}
			return ids
		}
		log.Printf("[DETECTOR] candidate retrieval: storage.Search failed, falling back to in-memory scan: %v", err)
	}

	return d.scanMirror(textVec, k)
}

func (d *Detector) scanMirror(textVec []float64, k int) []int64 {
	d.mirrorMu.RLock()
	defer d.mirrorMu.RUnlock()

	type scored struct {
		id    int64
		score float64
	}
	hits := make([]scored, 0, len(d.mirror))
	for id, rec := range d.mirror {
		hits = append(hits, scored{id: id, score: vectormath.Cosine(textVec, rec.TextEmbedding)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].id < hits[j].id
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	ids := make([]int64, len(hits))
	for i, h := range hits {
		ids[i] = h.id
	}
	return ids
}

// rerank scores every candidate with the full three-signal breakdown
// and returns the best one's breakdown, its identifier (ties broken by
// lowest identifier; nil when nothing was compared), and the number of
// candidates actually compared.
func (d *Detector) rerank(candidateIDs []int64, textVec, diffVec []float64, fileSet vectormath.FileSet, weights types.Weights) (types.ScoreBreakdown, *int64, int) {
	var best types.ScoreBreakdown
	var bestID *int64
	compared := 0

	for _, id := range candidateIDs {
		rec := d.hydrate(id)
		if rec == nil {
			continue
		}
		compared++

		textSim := vectormath.Cosine(textVec, rec.TextEmbedding)
		diffSim := vectormath.Cosine(diffVec, rec.DiffEmbedding)
		fileSim := vectormath.Jaccard(fileSet, vectormath.NewFileSet(rec.Files))
		breakdown := ranker.Score(textSim, diffSim, fileSim, weights)

		if bestID == nil || breakdown.FinalScore > best.FinalScore ||
			(breakdown.FinalScore == best.FinalScore && id < *bestID) {
			best = breakdown
			candID := id
			bestID = &candID
		}
	}
	return best, bestID, compared
}

// hydrate resolves a record by id, preferring the in-memory mirror and
// falling through to storage.Get.
func (d *Detector) hydrate(id int64) *types.Record {
	d.mirrorMu.RLock()
	rec, ok := d.mirror[id]
	d.mirrorMu.RUnlock()
	if ok {
		return rec
	}
	if d.cfg.Storage == nil {
		return nil
	}
	rec, err := d.cfg.Storage.Get(context.Background(), id)
	if err != nil || rec == nil {
		return nil
	}
	return rec
}

func (d *Detector) currentWeights() (types.Weights, ranker.Thresholds) {
	d.weightsMu.RLock()
	defer d.weightsMu.RUnlock()
	return d.weights, d.thresholds
}
