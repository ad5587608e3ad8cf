package daemon

import (
	"sort"
	"sync"

	"github.com/1broseidon/panewm/internal/tiling"
)

// batchQueue holds the newest unapplied tiling batch per monitor. A batch is
// a full recomputation of the monitor's visible workspace, so an older one
// is dropped once a newer one exists.
type batchQueue struct {
	mu      sync.Mutex
	pending map[string]tiling.Batch
	applied map[string]uint64
	wake    chan struct{}
}

func newBatchQueue() *batchQueue {
	return &batchQueue{
		pending: make(map[string]tiling.Batch),
		applied: make(map[string]uint64),
		wake:    make(chan struct{}, 1),
	}
}

// put records b unless a newer batch for its monitor is already pending.
func (q *batchQueue) put(b tiling.Batch) {
	q.mu.Lock()
	if cur, ok := q.pending[b.Monitor]; ok && cur.Seq > b.Seq {
		q.mu.Unlock()
		return
	}
	q.pending[b.Monitor] = b
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// take empties the queue, returning the batches newer than the last one
// taken for each monitor, ordered by monitor.
func (q *batchQueue) take() []tiling.Batch {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]tiling.Batch, 0, len(q.pending))
	for monitor, b := range q.pending {
		delete(q.pending, monitor)
		if b.Seq <= q.applied[monitor] {
			continue
		}
		q.applied[monitor] = b.Seq
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Monitor < out[j].Monitor })
	return out
}
