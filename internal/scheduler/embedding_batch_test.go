package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ConaryLabs/mira/internal/config"
	"github.com/ConaryLabs/mira/internal/memory"
	"github.com/ConaryLabs/mira/internal/store"
)

func TestEmbeddingBatchJobNoopWithNoPendingRows(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	fabric := memory.New(st, nil, nil, config.MemoryConfig{KRecent: 5, KSemantic: 5, KPerHead: 5})
	job := EmbeddingBatchJob(fabric, config.SchedulerConfig{EmbeddingBatchPeriod: time.Second, EmbeddingBatchMax: 10})

	require.NoError(t, job.Run(context.Background()))
}

func TestEmbeddingBatchJobSkipsWhenPreviousBatchInFlight(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	fabric := memory.New(st, nil, nil, config.MemoryConfig{KRecent: 5, KSemantic: 5, KPerHead: 5})
	job := EmbeddingBatchJob(fabric, config.SchedulerConfig{EmbeddingBatchPeriod: time.Second, EmbeddingBatchMax: 10})

	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			_ = job.Run(context.Background())
		}()
	}
	wg.Wait()
}
