package replication

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partdex/partdex/internal/pkg/log"
	"github.com/partdex/partdex/internal/pkg/model"
	"github.com/partdex/partdex/internal/pkg/replication/peerclient"
	"github.com/partdex/partdex/internal/pkg/service/common/servicectx"
	"github.com/partdex/partdex/internal/pkg/utils/errors"
)

type testDeps struct {
	clock  clockwork.Clock
	logger log.DebugLogger
	proc   *servicectx.Process
}

func newTestDeps(t *testing.T) *testDeps {
	t.Helper()
	return &testDeps{
		clock:  clockwork.NewFakeClock(),
		logger: log.NewDebugLogger(),
		proc:   servicectx.NewForTest(t),
	}
}

func (d *testDeps) Clock() clockwork.Clock       { return d.clock }
func (d *testDeps) Logger() log.Logger           { return d.logger }
func (d *testDeps) Process() *servicectx.Process { return d.proc }

type upload struct {
	peer       string
	entityType model.HardwareType
	keys       []string
}

// fakeUploader records every chunk, optionally failing all calls to one peer.
type fakeUploader struct {
	lock     sync.Mutex
	uploads  []upload
	failPeer string
}

func (u *fakeUploader) UploadBulk(_ context.Context, peer string, t model.HardwareType, entities []*model.HardwareRecord) (peerclient.BulkResult, error) {
	u.lock.Lock()
	defer u.lock.Unlock()
	if peer == u.failPeer {
		return peerclient.BulkResult{}, errors.New("connection refused")
	}
	keys := make([]string, len(entities))
	for i, entity := range entities {
		keys[i] = entity.NaturalKey()
	}
	u.uploads = append(u.uploads, upload{peer: peer, entityType: t, keys: keys})
	return peerclient.BulkResult{SavedCount: len(entities)}, nil
}

func (u *fakeUploader) all() []upload {
	u.lock.Lock()
	defer u.lock.Unlock()
	return append([]upload(nil), u.uploads...)
}

func (u *fakeUploader) keysFor(peer string) []string {
	u.lock.Lock()
	defer u.lock.Unlock()
	var out []string
	for _, upload := range u.uploads {
		if upload.peer == peer {
			out = append(out, upload.keys...)
		}
	}
	return out
}

func record(t model.HardwareType, mpn, manufacturer string) *model.HardwareRecord {
	return &model.HardwareRecord{
		ID:           "id-" + mpn,
		Type:         t,
		Manufacturer: manufacturer,
		Model:        "Model " + mpn,
		MPNs:         model.NewIdentifierSet(mpn),
		EANs:         model.NewIdentifierSet(),
	}
}

func testConfig(peers ...string) Config {
	cfg := NewConfig()
	cfg.Enabled = true
	cfg.Peers = peers
	return cfg
}

func TestQueue_Enqueue_CollapsesByNaturalKey(t *testing.T) {
	t.Parallel()
	d := newTestDeps(t)
	q := NewQueue(d, &fakeUploader{}, testConfig("http://peer-a"))

	q.Enqueue(record(model.TypeCPU, "m1", "AMD"))
	q.Enqueue(record(model.TypeCPU, "m2", "AMD"))
	updated := record(model.TypeCPU, "m1", "Advanced Micro Devices")
	q.Enqueue(updated)

	// Two distinct natural keys, the repeated "m1" collapsed to the latest value
	assert.Equal(t, 2, q.PendingCount())

	q.Flush(context.Background())
	batch := <-q.batches
	require.Len(t, batch, 2)
	assert.Equal(t, "Advanced Micro Devices", batch[updated.NaturalKey()].Manufacturer)
}

func TestQueue_Enqueue_ClonesTheRecord(t *testing.T) {
	t.Parallel()
	d := newTestDeps(t)
	q := NewQueue(d, &fakeUploader{}, testConfig("http://peer-a"))

	original := record(model.TypeCPU, "m1", "AMD")
	q.Enqueue(original)
	original.Manufacturer = "changed afterwards"

	q.Flush(context.Background())
	batch := <-q.batches
	assert.Equal(t, "AMD", batch[original.NaturalKey()].Manufacturer)
}

func TestQueue_Flush_EmptyBufferIsNoop(t *testing.T) {
	t.Parallel()
	d := newTestDeps(t)
	q := NewQueue(d, &fakeUploader{}, testConfig("http://peer-a"))

	q.Flush(context.Background())
	select {
	case batch := <-q.batches:
		t.Fatalf("unexpected batch: %v", batch)
	default:
	}
}

func TestQueue_Flush_NoLossNoDuplicationAcrossCycles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := newTestDeps(t)
	q := NewQueue(d, &fakeUploader{}, testConfig("http://peer-a"))

	q.Enqueue(record(model.TypeCPU, "m1", "AMD"))
	q.Enqueue(record(model.TypeCPU, "m2", "AMD"))
	q.Flush(ctx)

	// The second cycle starts with a clean buffer
	assert.Equal(t, 0, q.PendingCount())
	q.Enqueue(record(model.TypeCPU, "m2", "AMD")) // re-enqueued update
	q.Enqueue(record(model.TypeCPU, "m3", "AMD"))
	q.Flush(ctx)

	first := <-q.batches
	second := <-q.batches
	assert.Len(t, first, 2)
	assert.Len(t, second, 2)
	assert.Contains(t, first, "cpu|m1")
	assert.Contains(t, first, "cpu|m2")
	assert.Contains(t, second, "cpu|m2")
	assert.Contains(t, second, "cpu|m3")
}

func TestQueue_Enqueue_ThresholdSignalsEarlyFlush(t *testing.T) {
	t.Parallel()
	d := newTestDeps(t)
	cfg := testConfig("http://peer-a")
	cfg.FlushThreshold = 2
	q := NewQueue(d, &fakeUploader{}, cfg)

	q.Enqueue(record(model.TypeCPU, "m1", "AMD"))
	select {
	case <-q.flushCh:
		t.Fatal("flush signal before the threshold")
	default:
	}

	q.Enqueue(record(model.TypeCPU, "m2", "AMD"))
	select {
	case <-q.flushCh:
	default:
		t.Fatal("expected a flush signal at the threshold")
	}
}

func TestQueue_Deliver_ChunksByTypeAndSize(t *testing.T) {
	t.Parallel()
	d := newTestDeps(t)
	uploader := &fakeUploader{}
	cfg := testConfig("http://peer-a")
	cfg.ChunkSize = 2
	q := NewQueue(d, uploader, cfg)

	batch := map[string]*model.HardwareRecord{}
	for _, r := range []*model.HardwareRecord{
		record(model.TypeRAM, "r1", "Corsair"),
		record(model.TypeCPU, "c1", "AMD"),
		record(model.TypeCPU, "c2", "AMD"),
		record(model.TypeCPU, "c3", "AMD"),
	} {
		batch[r.NaturalKey()] = r
	}
	q.deliver(context.Background(), batch)

	uploads := uploader.all()
	require.Len(t, uploads, 3)
	// Types in a deterministic order, chunks bounded by the configured size
	assert.Equal(t, model.TypeCPU, uploads[0].entityType)
	assert.Equal(t, []string{"cpu|c1", "cpu|c2"}, uploads[0].keys)
	assert.Equal(t, []string{"cpu|c3"}, uploads[1].keys)
	assert.Equal(t, model.TypeRAM, uploads[2].entityType)
	assert.Equal(t, []string{"ram|r1"}, uploads[2].keys)
}

func TestQueue_Deliver_FailFastPerPeer(t *testing.T) {
	t.Parallel()
	d := newTestDeps(t)
	uploader := &fakeUploader{failPeer: "http://peer-a"}
	cfg := testConfig("http://peer-a", "http://peer-b")
	cfg.ChunkSize = 1
	q := NewQueue(d, uploader, cfg)

	batch := map[string]*model.HardwareRecord{}
	for _, r := range []*model.HardwareRecord{
		record(model.TypeCPU, "c1", "AMD"),
		record(model.TypeCPU, "c2", "AMD"),
	} {
		batch[r.NaturalKey()] = r
	}
	q.deliver(context.Background(), batch)

	// The failing peer got nothing after its first error,
	// the healthy peer received the whole batch
	assert.Empty(t, uploader.keysFor("http://peer-a"))
	assert.Equal(t, []string{"cpu|c1", "cpu|c2"}, uploader.keysFor("http://peer-b"))
	assert.Contains(t, d.logger.ErrorMessages(), `delivery to peer "http://peer-a" failed`)
}

func TestQueue_Start_FinalFlushOnShutdown(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := newTestDeps(t)
	uploader := &fakeUploader{}
	q := NewQueue(d, uploader, testConfig("http://peer-a"))
	q.Start(d)

	q.Enqueue(record(model.TypeCPU, "m1", "AMD"))
	d.proc.Shutdown(ctx, errors.New("test shutdown"))

	// The pending item is flushed and delivered before the workers stop
	assert.Eventually(t, func() bool {
		return len(uploader.keysFor("http://peer-a")) == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"cpu|m1"}, uploader.keysFor("http://peer-a"))
}
