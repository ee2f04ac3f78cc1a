package detector

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/repomemory/dupcore/internal/types"
)

// MaxBatchSize bounds check_many; a batch over this size fails with
// invalid_input.
const MaxBatchSize = types.MaxBatchSize

// CheckMany checks descriptors concurrently, at most maxBatchConcurrency
// at a time (bounded by a semaphore). The order in which descriptors are
// processed is not defined, so a descriptor is not guaranteed to see
// earlier descriptors of the same batch as candidates. Result ordering
// mirrors input ordering. A per-descriptor failure is captured as a
// zero-confidence unique result plus a log line; it never aborts the
// batch.
func (d *Detector) CheckMany(ctx context.Context, descriptors []types.Descriptor, opts Options) ([]types.BatchItem, error) {
	if len(descriptors) > MaxBatchSize {
		return nil, types.NewInvalidInput("detector.CheckMany",
			errString("check_many accepts at most 1000 descriptors per call"))
	}

	batchID := uuid.New().String()
	log.Printf("[DETECTOR] check_many batch=%s starting: %d descriptors", batchID, len(descriptors))
	start := time.Now()

	items := make([]types.BatchItem, len(descriptors))
	done := make(chan struct{}, len(descriptors))

	for i, desc := range descriptors {
		i, desc := i, desc
		go func() {
			defer func() { done <- struct{}{} }()

			if err := d.batchSem.Acquire(ctx, 1); err != nil {
				items[i] = types.BatchItem{
					ID:     desc.ID,
					Result: types.CheckResult{Type: types.ResultUnique, Confidence: 0},
				}
				log.Printf("[DETECTOR] check_many: failed to acquire concurrency slot for id=%d: %v", desc.ID, err)
				return
			}
			defer d.batchSem.Release(1)

			start := time.Now()
			result, err := d.Check(ctx, desc, opts)
			elapsed := time.Since(start).Milliseconds()
			if err != nil {
				log.Printf("[DETECTOR] check_many: item id=%d failed, recording as unique/0: %v", desc.ID, err)
				result = types.CheckResult{Type: types.ResultUnique, Confidence: 0}
			}
			items[i] = types.BatchItem{ID: desc.ID, Result: result, ProcessingMs: elapsed}
		}()
	}

	for range descriptors {
		<-done
	}

	log.Printf("[DETECTOR] check_many batch=%s finished in %v", batchID, time.Since(start))
	return items, nil
}
