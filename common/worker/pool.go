// Package worker runs the ingest worker pool. Tasks are sharded by
// dataset key so two workers never process the same dataset concurrently;
// work stays parallel across datasets.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/datapulse/catalog/common/logger"
	rediscommon "github.com/datapulse/catalog/common/redis"
)

// Task is one unit of ingest work: fetch one dataset from its platform
// and run it through the coordinator.
type Task struct {
	PlatformID uuid.UUID `json:"platform_id"`

	// Upstream dataset identifier, also the sharding key.
	DatasetID string `json:"dataset_id"`

	// Raw payload, set when the scheduler already holds it (platform
	// listing); nil means the worker fetches.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Handler processes one task.
type Handler func(ctx context.Context, task *Task) error

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("worker: pool closed")

// Pool is a fixed set of workers, each owning one shard channel.
type Pool struct {
	shards  []chan *Task
	handler Handler
	log     *logger.Logger
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewPool creates a pool of n workers.
func NewPool(n int, handler Handler, log *logger.Logger) *Pool {
	if n < 1 {
		n = 1
	}
	shards := make([]chan *Task, n)
	for i := range shards {
		shards[i] = make(chan *Task, 256)
	}
	return &Pool{shards: shards, handler: handler, log: log}
}

// Start launches the workers. They exit when ctx is cancelled or their
// shard channel is drained after Close.
func (p *Pool) Start(ctx context.Context) {
	for i, ch := range p.shards {
		p.wg.Add(1)
		go func(worker int, ch chan *Task) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case task, ok := <-ch:
					if !ok {
						return
					}
					if err := p.handler(ctx, task); err != nil {
						p.log.Error("task failed",
							"worker", worker,
							"dataset", task.DatasetID,
							"error", err)
					}
				}
			}
		}(i, ch)
	}
	p.log.Info("worker pool started", "workers", len(p.shards))
}

// Submit routes a task to its shard. Blocks when the shard is full so
// backpressure reaches the scheduler. Returns ErrClosed after Close; the
// read lock keeps Close from closing a shard mid-send.
func (p *Pool) Submit(ctx context.Context, task *Task) error {
	if task.DatasetID == "" {
		return errors.New("task has no dataset id")
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	select {
	case p.shards[p.shard(task.DatasetID)] <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) shard(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(p.shards)))
}

// Close stops accepting work and waits for in-flight tasks.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		for _, ch := range p.shards {
			close(ch)
		}
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// Workers returns the pool size.
func (p *Pool) Workers() int {
	return len(p.shards)
}

// ingestList is the Redis list PROD schedulers push tasks onto.
const ingestList = "ingest:tasks"

// PushTask enqueues a task on the shared Redis list.
func PushTask(ctx context.Context, client *rediscommon.Client, task *Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	return client.PushTask(ctx, ingestList, payload)
}

// RedisSource feeds a pool from the shared Redis list. Sharding happens at
// Submit, so per-dataset serialization holds within this process.
type RedisSource struct {
	client *rediscommon.Client
	pool   *Pool
	log    *logger.Logger
}

// NewRedisSource creates a source feeding pool.
func NewRedisSource(client *rediscommon.Client, pool *Pool, log *logger.Logger) *RedisSource {
	return &RedisSource{client: client, pool: pool, log: log}
}

// Run consumes the list until ctx is cancelled.
func (s *RedisSource) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		payload, err := s.client.PopTask(ctx, ingestList, 5*time.Second)
		if errors.Is(err, rediscommon.ErrEmpty) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Error("failed to pop ingest task", "error", err)
			time.Sleep(time.Second)
			continue
		}

		task := &Task{}
		if err := json.Unmarshal(payload, task); err != nil {
			s.log.Error("dropping malformed ingest task", "error", err)
			continue
		}
		if err := s.pool.Submit(ctx, task); err != nil {
			return
		}
	}
}
