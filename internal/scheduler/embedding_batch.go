package scheduler

import (
	"context"
	"sync/atomic"

	"github.com/ConaryLabs/mira/internal/config"
	"github.com/ConaryLabs/mira/internal/logging"
	"github.com/ConaryLabs/mira/internal/memory"
)

// EmbeddingBatchJob drains up to EmbeddingBatchMax pending rows per tick via
// fabric.RunEmbeddingBatch, which makes one Embed call per row; the rows are
// not sent to the provider as a single batch. inFlight guards against a slow
// batch still running when the next tick fires - the skip condition spec.md §4.5 names
// for this worker alongside "no pending rows" (which RunEmbeddingBatch
// itself treats as a no-op).
func EmbeddingBatchJob(fabric *memory.Fabric, cfg config.SchedulerConfig) Job {
	var inFlight int32

	return Job{
		Name:   "embedding_batch",
		Period: cfg.EmbeddingBatchPeriod,
		Run: func(ctx context.Context) error {
			if !atomic.CompareAndSwapInt32(&inFlight, 0, 1) {
				logging.SchedulerDebug("embedding_batch: previous batch still in flight, skipping")
				return nil
			}
			defer atomic.StoreInt32(&inFlight, 0)

			n, err := fabric.RunEmbeddingBatch(ctx, cfg.EmbeddingBatchMax)
			if err != nil {
				return err
			}
			if n > 0 {
				logging.Scheduler("embedding_batch: processed %d", n)
			}
			return nil
		},
	}
}
