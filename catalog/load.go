package catalog

import (
	"context"
	"log"
	"sync"

	"pos.GO/agent"
)

// SnapshotSink receives a fresh per-agent snapshot after a successful load.
// The local store implements it; a nil sink disables persistence.
type SnapshotSink interface {
	SaveSnapshot(k agent.Key, items []Item, aliases []BarcodeAlias) error
}

// Loader pulls /api/items and /api/barcodes from the agents and rebuilds
// the index. Each agent is loaded independently; one agent failing never
// aborts the other's refresh.
type Loader struct {
	agents *agent.Registry
	index  *Index
	sink   SnapshotSink
}

func NewLoader(reg *agent.Registry, ix *Index, sink SnapshotSink) *Loader {
	return &Loader{agents: reg, index: ix, sink: sink}
}

// ReloadAgent refreshes one agent's catalog and rebuilds its index shard.
func (l *Loader) ReloadAgent(ctx context.Context, k agent.Key) error {
	var items itemsResponse
	if err := l.agents.GetJSON(ctx, k, "/api/items", &items); err != nil {
		return err
	}
	var barcodes barcodesResponse
	if err := l.agents.GetJSON(ctx, k, "/api/barcodes", &barcodes); err != nil {
		return err
	}
	l.index.Rebuild(k, items.Items, barcodes.Barcodes)
	if l.sink != nil {
		if err := l.sink.SaveSnapshot(k, items.Items, barcodes.Barcodes); err != nil {
			log.Printf("catalog: snapshot save for %s failed: %v", k, err)
		}
	}
	return nil
}

// Reload refreshes the given agents concurrently and returns each agent's
// outcome. All loads run to completion; there is no short-circuit on the
// first failure.
func (l *Loader) Reload(ctx context.Context, keys ...agent.Key) map[agent.Key]error {
	if len(keys) == 0 {
		keys = agent.Keys[:]
	}
	var wg sync.WaitGroup
	var mu sync.Mutex
	out := make(map[agent.Key]error, len(keys))
	for _, k := range keys {
		wg.Add(1)
		go func(k agent.Key) {
			defer wg.Done()
			err := l.ReloadAgent(ctx, k)
			mu.Lock()
			out[k] = err
			mu.Unlock()
		}(k)
	}
	wg.Wait()
	return out
}

// Restore seeds the index from persisted snapshots, so the register can
// start with yesterday's catalog before either agent answers.
func (l *Loader) Restore(load func(k agent.Key) ([]Item, []BarcodeAlias, error)) {
	for _, k := range agent.Keys {
		items, aliases, err := load(k)
		if err != nil || len(items) == 0 {
			continue
		}
		l.index.Rebuild(k, items, aliases)
		log.Printf("catalog: restored %d %s items from local snapshot", len(items), k)
	}
}
