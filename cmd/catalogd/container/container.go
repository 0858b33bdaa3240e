package container

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/datapulse/catalog/common/bootstrap"
	"github.com/datapulse/catalog/common/ingest"
	"github.com/datapulse/catalog/common/links"
	"github.com/datapulse/catalog/common/llm"
	"github.com/datapulse/catalog/common/models"
	"github.com/datapulse/catalog/common/platforms"
	"github.com/datapulse/catalog/common/worker"
)

// Container holds all initialized services (singleton pattern)
type Container struct {
	Components *bootstrap.Components

	// Services
	Resolver    *links.Resolver
	Coordinator *ingest.Coordinator
	History     *ingest.History
	SyncService *ingest.SyncService
	Evaluator   llm.Evaluator

	// Ingest workers
	Pool   *worker.Pool
	Source *worker.RedisSource
}

// NewContainer initializes all services once
func NewContainer(components *bootstrap.Components) (*Container, error) {
	cfg := components.Config
	httpClient := &http.Client{Timeout: cfg.Ingest.FetchTimeout}

	connectors := func(t models.PlatformType) (platforms.Connector, error) {
		return platforms.New(t, httpClient, components.Logger)
	}

	resolver := links.NewResolver(components.Stores, components.Logger)
	coordinator := ingest.NewCoordinator(
		components.Stores,
		resolver,
		cfg.Cooldown(),
		components.Logger,
	)
	history := ingest.NewHistory(components.Stores)
	syncService := ingest.NewSyncService(
		components.Stores,
		coordinator,
		connectors,
		components.Logger,
	)

	c := &Container{
		Components:  components,
		Resolver:    resolver,
		Coordinator: coordinator,
		History:     history,
		SyncService: syncService,
	}

	if cfg.LLM.Endpoint != "" {
		c.Evaluator = llm.NewClient(httpClient, cfg.LLM.Endpoint, cfg.LLM.APIKey, components.Logger)
	}

	c.Pool = worker.NewPool(cfg.Ingest.Workers, c.handleTask(connectors), components.Logger)
	if components.Redis != nil {
		c.Source = worker.NewRedisSource(components.Redis, c.Pool, components.Logger)
	}

	return c, nil
}

// IngestTopic is the queue topic carrying ingest tasks when Redis is not
// wired (TEST mode, or bootstrap WithoutRedis).
const IngestTopic = "ingest.tasks"

// StartWorkers launches the ingest pool and the source feeding it: the
// shared Redis list in PROD, the in-process queue otherwise.
func (c *Container) StartWorkers(ctx context.Context) error {
	c.Pool.Start(ctx)
	if c.Source != nil {
		go c.Source.Run(ctx)
		return nil
	}
	return c.Components.Queue.Subscribe(ctx, IngestTopic, func(ctx context.Context, key string, value []byte) error {
		task := &worker.Task{}
		if err := json.Unmarshal(value, task); err != nil {
			return fmt.Errorf("malformed ingest task: %w", err)
		}
		return c.Pool.Submit(ctx, task)
	})
}

// EnqueueTask routes an ingest task to the active transport.
func (c *Container) EnqueueTask(ctx context.Context, task *worker.Task) error {
	if c.Components.Redis != nil {
		return worker.PushTask(ctx, c.Components.Redis, task)
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	return c.Components.Queue.Publish(ctx, IngestTopic, task.DatasetID, payload)
}

// handleTask builds the pool handler: fetch (unless the payload rode along
// with the task), normalize, ingest.
func (c *Container) handleTask(connectors ingest.ConnectorFactory) worker.Handler {
	return func(ctx context.Context, task *worker.Task) error {
		platform, err := c.Components.Stores.Platforms.GetByID(ctx, task.PlatformID)
		if err != nil {
			return err
		}

		connector, err := connectors(platform.Type)
		if err != nil {
			return err
		}

		raw := task.Payload
		if raw == nil {
			raw, err = connector.Fetch(ctx, platform.URL, platform.Key, task.DatasetID)
			if errors.Is(err, models.ErrDatasetUnreachable) {
				if recErr := c.Coordinator.RecordUnreachable(ctx, platform.ID, task.DatasetID); recErr != nil {
					c.Components.Logger.Warn("failed to record unreachable dataset",
						"dataset", task.DatasetID, "error", recErr)
				}
				return err
			}
			if err != nil {
				return err
			}
		}

		dto, err := connector.Map(raw)
		if err != nil {
			return err
		}

		_, err = c.Coordinator.Ingest(ctx, platform, dto)
		return err
	}
}
