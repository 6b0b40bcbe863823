package tensorgo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hupe1980/tensorgo/internal/conv"
)

// populateTask is one unit of population work. The output offset range is
// assigned at dispatch time from input order, so the on-disk layout is a
// pure function of the source order and batch size, independent of worker
// scheduling.
type populateTask struct {
	index int // Batch index within the run
	start int // First record offset
	count int // Number of records
}

// Populate fills the store from src using a pool of parallel workers and
// seals it on success.
//
// Each worker independently fetches a batch from the source and writes it
// into its pre-assigned, disjoint offset range of the mapped files; no
// locking is needed between writers. Any production or write failure
// aborts the whole run: the store stays in state Populating, reads keep
// failing with ErrIncompleteStore, and the only recovery is re-populating
// from scratch.
func (s *Store) Populate(ctx context.Context, src Source, optFns ...PopulateOption) error {
	po := defaultPopulateOptions()
	for _, fn := range optFns {
		fn(&po)
	}

	if src.Len() != s.count {
		return &ErrSchemaMismatch{
			Reason: fmt.Sprintf("source reports %d records, store is sized for %d", src.Len(), s.count),
		}
	}

	if err := s.markPopulating(); err != nil {
		return err
	}

	numBatches := (s.count + po.batchSize - 1) / po.batchSize

	var (
		completed   = roaring.New()
		completedMu sync.Mutex
		written     int
		progress    = rate.Sometimes{Interval: time.Second}
	)

	g, gctx := errgroup.WithContext(ctx)
	tasks := make(chan populateTask)

	g.Go(func() error {
		defer close(tasks)
		for i := 0; i < numBatches; i++ {
			start := i * po.batchSize
			count := min(po.batchSize, s.count-start)
			select {
			case tasks <- populateTask{index: i, start: start, count: count}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < po.workers; w++ {
		g.Go(func() error {
			for task := range tasks {
				t0 := time.Now()

				b, err := src.ReadBatch(gctx, task.start, task.count)
				if err != nil {
					s.opts.metricsCollector.RecordPopulateBatch(task.count, time.Since(t0), err)
					return &ErrRecordProduction{Start: task.start, Count: task.count, cause: err}
				}
				if b.Len() != task.count {
					err := &ErrSchemaMismatch{
						Reason: fmt.Sprintf("source produced %d records for offsets [%d, %d)", b.Len(), task.start, task.start+task.count),
					}
					s.opts.metricsCollector.RecordPopulateBatch(task.count, time.Since(t0), err)
					return &ErrRecordProduction{Start: task.start, Count: task.count, cause: err}
				}

				if err := s.writeBatch(task.start, b); err != nil {
					s.opts.metricsCollector.RecordPopulateBatch(task.count, time.Since(t0), err)
					return err
				}
				s.opts.metricsCollector.RecordPopulateBatch(task.count, time.Since(t0), nil)

				idx, err := conv.IntToUint32(task.index)
				if err != nil {
					return err
				}
				completedMu.Lock()
				completed.Add(idx)
				written += task.count
				done := written
				completedMu.Unlock()

				progress.Do(func() {
					s.opts.logger.LogPopulateProgress(gctx, done, s.count)
				})

				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.opts.logger.LogPopulate(ctx, s.count, numBatches, po.workers, err)
		return err
	}

	if missing := firstMissingBatch(completed, numBatches); missing >= 0 {
		start := missing * po.batchSize
		err := fmt.Errorf("population incomplete: batch for offsets [%d, %d) never landed", start, min(start+po.batchSize, s.count))
		s.opts.logger.LogPopulate(ctx, s.count, numBatches, po.workers, err)
		return err
	}

	if err := s.Seal(); err != nil {
		s.opts.logger.LogPopulate(ctx, s.count, numBatches, po.workers, err)
		return err
	}

	s.opts.logger.LogPopulate(ctx, s.count, numBatches, po.workers, nil)
	return nil
}

// firstMissingBatch returns the lowest batch index absent from the
// completion set, or -1 when every batch landed exactly once.
func firstMissingBatch(completed *roaring.Bitmap, numBatches int) int {
	for i := 0; i < numBatches; i++ {
		idx, err := conv.IntToUint32(i)
		if err != nil || !completed.Contains(idx) {
			return i
		}
	}
	return -1
}
