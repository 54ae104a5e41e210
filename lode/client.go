package lode

import (
	"context"
	"sync"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/thence/metrics"
	"github.com/pithecene-io/thence/types"
)

// LodeClient is a real Lode-backed implementation of Client, using Lode's
// HiveLayout with partition keys source/category/day/run_id/event_type.
type LodeClient struct {
	dataset lode.Dataset
	config  Config
	factory lode.StoreFactory

	mu sync.Mutex

	storeOnce sync.Once
	store     lode.Store
	storeErr  error
}

// NewLodeClient creates a new Lode client backed by filesystem storage
// rooted at root.
func NewLodeClient(cfg Config, root string) (*LodeClient, error) {
	return NewLodeClientWithFactory(cfg, lode.NewFSFactory(root))
}

// NewLodeClientWithFactory creates a new Lode client with a custom store
// factory. Use lode.NewMemoryFactory() for testing.
func NewLodeClientWithFactory(cfg Config, factory lode.StoreFactory) (*LodeClient, error) {
	ds, err := lode.NewDataset(
		lode.DatasetID(cfg.Dataset),
		factory,
		lode.WithHiveLayout("source", "category", "day", "run_id", "event_type"),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
	if err != nil {
		return nil, err
	}
	return newClient(ds, cfg, factory), nil
}

// newClient wires an already-constructed Dataset into a LodeClient. Shared
// by the filesystem and S3 constructors.
func newClient(ds lode.Dataset, cfg Config, factory lode.StoreFactory) *LodeClient {
	return &LodeClient{dataset: ds, config: cfg, factory: factory}
}

// WriteEvents writes a batch of events to Lode, one record per event,
// partitioned by event type.
func (c *LodeClient) WriteEvents(ctx context.Context, dataset, runID string, events []*types.Event) error {
	if len(events) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	records := make([]any, 0, len(events))
	for _, e := range events {
		records = append(records, toEventRecordMap(e, c.config))
	}

	_, err := c.dataset.Write(ctx, records, lode.Metadata{})
	return err
}

// WriteMetrics writes a single metrics snapshot record under category=metrics.
func (c *LodeClient) WriteMetrics(ctx context.Context, snap metrics.Snapshot, completedAt time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	record := toMetricsRecordMap(snap, completedAt, c.config)
	_, err := c.dataset.Write(ctx, []any{record}, lode.Metadata{})
	return err
}

// Close releases client resources.
func (c *LodeClient) Close() error {
	// Dataset does not require an explicit close in the current Lode API.
	return nil
}

var _ Client = (*LodeClient)(nil)
