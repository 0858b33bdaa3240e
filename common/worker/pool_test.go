package worker

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datapulse/catalog/common/logger"
)

func TestPool_SameKeySameShard(t *testing.T) {
	p := NewPool(8, nil, logger.New("error", "json"))
	for _, key := range []string{"a", "dataset-42", "qualite-air"} {
		first := p.shard(key)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, p.shard(key))
		}
	}
}

func TestPool_SameDatasetNeverConcurrent(t *testing.T) {
	var mu sync.Mutex
	inFlight := map[string]int{}
	violations := 0

	handler := func(ctx context.Context, task *Task) error {
		mu.Lock()
		inFlight[task.DatasetID]++
		if inFlight[task.DatasetID] > 1 {
			violations++
		}
		mu.Unlock()

		mu.Lock()
		inFlight[task.DatasetID]--
		mu.Unlock()
		return nil
	}

	p := NewPool(4, handler, logger.New("error", "json"))
	p.Start(context.Background())

	platformID := uuid.New()
	keys := []string{"a", "b", "c", "d"}
	for i := 0; i < 200; i++ {
		task := &Task{PlatformID: platformID, DatasetID: keys[i%len(keys)]}
		require.NoError(t, p.Submit(context.Background(), task))
	}
	p.Close()

	assert.Zero(t, violations)
}

func TestPool_CloseDrainsPendingTasks(t *testing.T) {
	var mu sync.Mutex
	processed := 0
	handler := func(ctx context.Context, task *Task) error {
		mu.Lock()
		processed++
		mu.Unlock()
		return nil
	}

	p := NewPool(2, handler, logger.New("error", "json"))
	p.Start(context.Background())

	for i := 0; i < 50; i++ {
		require.NoError(t, p.Submit(context.Background(), &Task{DatasetID: "ds"}))
	}
	p.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 50, processed)
}

func TestPool_SubmitAfterCloseErrsInsteadOfPanicking(t *testing.T) {
	handler := func(ctx context.Context, task *Task) error { return nil }
	p := NewPool(2, handler, logger.New("error", "json"))
	p.Start(context.Background())

	require.NoError(t, p.Submit(context.Background(), &Task{DatasetID: "ds"}))
	p.Close()

	err := p.Submit(context.Background(), &Task{DatasetID: "ds"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPool_RejectsTaskWithoutKey(t *testing.T) {
	p := NewPool(2, nil, logger.New("error", "json"))
	err := p.Submit(context.Background(), &Task{})
	assert.Error(t, err)
}

func TestPool_MinimumOneWorker(t *testing.T) {
	p := NewPool(0, nil, logger.New("error", "json"))
	assert.Equal(t, 1, p.Workers())
}
