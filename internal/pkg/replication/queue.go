// Package replication fans canonical updates out to the configured peer
// nodes. Updates are collected in a double-buffered queue: repeated
// updates to the same entity collapse to the latest value, a flush swaps
// the whole buffer atomically and a single worker delivers the drained
// batches strictly in the order they were produced.
//
// Failed items are not retried by the queue, they are redelivered only
// when the producer enqueues the same entity again in a later cycle.
package replication

import (
	"context"
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/partdex/partdex/internal/pkg/log"
	"github.com/partdex/partdex/internal/pkg/model"
	"github.com/partdex/partdex/internal/pkg/replication/peerclient"
	"github.com/partdex/partdex/internal/pkg/service/common/servicectx"
	"github.com/partdex/partdex/internal/pkg/utils/errors"
)

// Uploader delivers one chunk of entities of one type to one peer.
type Uploader interface {
	UploadBulk(ctx context.Context, peer string, t model.HardwareType, entities []*model.HardwareRecord) (peerclient.BulkResult, error)
}

type dependencies interface {
	Clock() clockwork.Clock
	Logger() log.Logger
	Process() *servicectx.Process
}

type Queue struct {
	config   Config
	clock    clockwork.Clock
	logger   log.Logger
	uploader Uploader

	// bufferLock guards the active buffer, the flush swap is a single
	// exchange under the lock, no item can be lost or double-counted
	// across the swap boundary.
	bufferLock *sync.Mutex
	buffer     map[string]*model.HardwareRecord

	// flushCh triggers an early flush when the buffer crosses the threshold
	flushCh chan struct{}

	// batches hands drained snapshots to the single delivery worker,
	// batch order is preserved, item order within a batch is not guaranteed
	batches chan map[string]*model.HardwareRecord
}

func NewQueue(d dependencies, uploader Uploader, cfg Config) *Queue {
	return &Queue{
		config:     cfg,
		clock:      d.Clock(),
		logger:     d.Logger().WithComponent("replication"),
		uploader:   uploader,
		bufferLock: &sync.Mutex{},
		buffer:     make(map[string]*model.HardwareRecord),
		flushCh:    make(chan struct{}, 1),
		batches:    make(chan map[string]*model.HardwareRecord, 16),
	}
}

// Start runs the flush timer and the delivery worker until shutdown.
// A final flush drains the remaining buffer before the workers stop.
func (q *Queue) Start(d dependencies) {
	ctx, cancel := context.WithCancelCause(context.Background())
	timerWg := &sync.WaitGroup{}
	workerWg := &sync.WaitGroup{}
	d.Process().OnShutdown(func(ctx context.Context) {
		q.logger.Info(ctx, "received shutdown request")
		cancel(errors.New("shutting down: replication"))
		timerWg.Wait()
		workerWg.Wait()
		q.logger.Info(ctx, "shutdown done")
	})

	// Single delivery worker, flush batches are processed strictly in order
	workerWg.Add(1)
	go func() {
		defer workerWg.Done()
		// Deliveries still run during shutdown, until the final batch is done
		deliveryCtx := context.WithoutCancel(ctx)
		for batch := range q.batches {
			q.deliver(deliveryCtx, batch)
		}
	}()

	timerWg.Add(1)
	go func() {
		defer timerWg.Done()
		defer close(q.batches)

		ticker := q.clock.NewTicker(q.config.FlushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				q.Flush(ctx)
				return
			case <-ticker.Chan():
				q.Flush(ctx)
			case <-q.flushCh:
				q.Flush(ctx)
			}
		}
	}()
}

// Enqueue upserts the entity into the active buffer, keyed by its natural
// key. It never blocks, crossing the size threshold only signals the timer
// goroutine to flush early.
func (q *Queue) Enqueue(record *model.HardwareRecord) {
	q.bufferLock.Lock()
	q.buffer[record.NaturalKey()] = record.Clone()
	size := len(q.buffer)
	q.bufferLock.Unlock()

	if size >= q.config.FlushThreshold {
		select {
		case q.flushCh <- struct{}{}:
		default:
		}
	}
}

// PendingCount returns the size of the active buffer.
func (q *Queue) PendingCount() int {
	q.bufferLock.Lock()
	defer q.bufferLock.Unlock()
	return len(q.buffer)
}

// Flush swaps the active buffer for an empty one and hands the drained
// snapshot to the delivery worker. The snapshot is never partially drained.
func (q *Queue) Flush(ctx context.Context) {
	q.bufferLock.Lock()
	snapshot := q.buffer
	q.buffer = make(map[string]*model.HardwareRecord)
	q.bufferLock.Unlock()

	if len(snapshot) == 0 {
		return
	}

	select {
	case q.batches <- snapshot:
	case <-ctx.Done():
		// Shutdown with a full delivery pipeline, the batch is handed
		// over anyway so the final worker drain still sees it
		q.batches <- snapshot
	}
}

// deliver uploads one drained batch to every configured peer.
// A failure stops the remaining chunks for that peer only, healthy peers
// are never blocked by an unreachable one. Failed items are not retried.
func (q *Queue) deliver(ctx context.Context, batch map[string]*model.HardwareRecord) {
	chunks := q.chunkByType(batch)
	for _, peer := range q.config.Peers {
		delivered := 0
		for _, chunk := range chunks {
			if _, err := q.uploader.UploadBulk(ctx, peer, chunk.entityType, chunk.entities); err != nil {
				deliveryErr := &DeliveryError{Peer: peer, Err: err}
				q.logger.Errorf(ctx, "%s", deliveryErr)
				break
			}
			delivered += len(chunk.entities)
		}
		q.logger.Debugf(ctx, `delivered "%d" of "%d" entities to peer "%s"`, delivered, len(batch), peer)
	}
}

type chunk struct {
	entityType model.HardwareType
	entities   []*model.HardwareRecord
}

// chunkByType groups the batch by entity type and splits each group into
// bounded chunks, in a deterministic order.
func (q *Queue) chunkByType(batch map[string]*model.HardwareRecord) []chunk {
	groups := make(map[model.HardwareType][]*model.HardwareRecord)
	for _, record := range batch {
		groups[record.Type] = append(groups[record.Type], record)
	}

	types := make([]model.HardwareType, 0, len(groups))
	for t := range groups {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	var out []chunk
	for _, t := range types {
		entities := groups[t]
		sort.Slice(entities, func(i, j int) bool { return entities[i].NaturalKey() < entities[j].NaturalKey() })
		for start := 0; start < len(entities); start += q.config.ChunkSize {
			end := min(start+q.config.ChunkSize, len(entities))
			out = append(out, chunk{entityType: t, entities: entities[start:end]})
		}
	}
	return out
}
