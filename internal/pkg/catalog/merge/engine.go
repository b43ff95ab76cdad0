// Package merge implements the identity resolution and merge engine.
// Observed hardware records are folded into canonical records under
// the multi-key identity scheme (EAN/MPN), identifier clusters always
// converge to a single canonical survivor.
package merge

import (
	"context"
	"sync"

	"github.com/partdex/partdex/internal/pkg/idgenerator"
	"github.com/partdex/partdex/internal/pkg/log"
	"github.com/partdex/partdex/internal/pkg/model"
	"github.com/partdex/partdex/internal/pkg/store"
	"github.com/partdex/partdex/internal/pkg/utils/errors"
)

// Hooks receives side effects of a successful merge,
// the engine stays decoupled from replication and the sweep loop.
type Hooks interface {
	// RecordPersisted is called for every canonical survivor, inside the merge boundary.
	RecordPersisted(ctx context.Context, record *model.HardwareRecord)
}

type NopHooks struct{}

func (NopHooks) RecordPersisted(context.Context, *model.HardwareRecord) {}

type dependencies interface {
	Logger() log.Logger
	Store() store.Store
}

type Engine struct {
	logger        log.Logger
	store         store.RecordStore
	hooks         Hooks
	manufacturers *Manufacturers

	// lock guards the find-merge-delete sequence, a concurrent reader
	// never sees a partially absorbed identifier cluster.
	lock *sync.Mutex
}

func NewEngine(ctx context.Context, d dependencies, hooks Hooks) (*Engine, error) {
	seed, err := d.Store().DistinctManufacturers(ctx)
	if err != nil {
		return nil, errors.PrefixError(err, "cannot seed known manufacturers")
	}
	e := &Engine{
		logger:        d.Logger().WithComponent("merge"),
		store:         d.Store(),
		hooks:         hooks,
		manufacturers: NewManufacturers(seed...),
		lock:          &sync.Mutex{},
	}
	e.logger.Infof(ctx, `merge engine started with "%d" known manufacturers`, e.manufacturers.Len())
	return e, nil
}

// Manufacturers exposes the process-wide known-manufacturers set.
func (e *Engine) Manufacturers() *Manufacturers {
	return e.manufacturers
}

// ResolveAndMerge folds one observed record into the canonical state.
// When the observation bridges previously separate records, all of them
// are absorbed into a single survivor and the others are deleted.
func (e *Engine) ResolveAndMerge(ctx context.Context, observed *model.HardwareRecord) (*model.HardwareRecord, error) {
	record, err := e.sanitize(observed, true)
	if err != nil {
		return nil, err
	}

	e.lock.Lock()
	defer e.lock.Unlock()
	return e.resolveLocked(ctx, record, false)
}

// Merge is the strict single-entity entry point used by upload paths.
// It refuses to absorb automatically: more than one distinct existing
// match raises an IdentityConflictError and nothing is written.
func (e *Engine) Merge(ctx context.Context, observed *model.HardwareRecord) (*model.HardwareRecord, error) {
	record, err := e.sanitize(observed, true)
	if err != nil {
		return nil, err
	}

	e.lock.Lock()
	defer e.lock.Unlock()
	return e.resolveLocked(ctx, record, true)
}

func (e *Engine) resolveLocked(ctx context.Context, record *model.HardwareRecord, strict bool) (*model.HardwareRecord, error) {
	matches, err := e.store.FindByAnyIdentifier(ctx, record.Type, record.Identifiers())
	if err != nil {
		return nil, err
	}

	// No match, the observation becomes a new canonical record
	if len(matches) == 0 {
		record.ID = idgenerator.RecordID()
		if err := e.store.Save(ctx, record); err != nil {
			return nil, err
		}
		e.hooks.RecordPersisted(ctx, record)
		return record, nil
	}

	if strict && len(matches) > 1 {
		ids := make([]string, len(matches))
		for i, m := range matches {
			ids[i] = m.ID
		}
		return nil, &IdentityConflictError{RecordIDs: ids}
	}

	target := pickTarget(matches, record.Type)
	record.MergeInto(target)

	// Absorb every other matched record into the target, then delete it,
	// so the whole identifier cluster keeps a single canonical survivor.
	for _, other := range matches {
		if other.ID == target.ID {
			continue
		}
		other.MergeInto(target)
		if err := e.store.Delete(ctx, other); err != nil {
			return nil, err
		}
		e.logger.Debugf(ctx, `record "%s" absorbed into "%s"`, other.ID, target.ID)
	}

	if err := e.store.Save(ctx, target); err != nil {
		return nil, err
	}
	e.hooks.RecordPersisted(ctx, target)
	return target, nil
}

// BatchResult is the outcome report of one batch merge.
type BatchResult struct {
	// Survivors are the canonical records the batch converged to.
	Survivors []*model.HardwareRecord
	// Rejected aggregates the validation failures of skipped records,
	// it is nil when every record passed.
	Rejected error
}

// ResolveAndMergeBatch folds a whole batch against an in-memory index built
// from one bulk fetch, so duplicates within the batch converge as well.
// Invalid records are skipped and reported in the result, they never abort the batch.
func (e *Engine) ResolveAndMergeBatch(ctx context.Context, observed []*model.HardwareRecord) (BatchResult, error) {
	// Sanitize up front, one bad record must not abort the batch
	sanitized := make([]*model.HardwareRecord, 0, len(observed))
	identifiers := model.NewIdentifierSet()
	rejected := errors.NewMultiError()
	for _, o := range observed {
		record, err := e.sanitize(o, false)
		if err != nil {
			e.logger.Warnf(ctx, "record skipped: %s", err)
			rejected.Append(err)
			continue
		}
		sanitized = append(sanitized, record)
		identifiers.AddAll(record.EANs)
		identifiers.AddAll(record.MPNs)
	}
	out := BatchResult{Rejected: rejected.ErrorOrNil()}
	if len(sanitized) == 0 {
		return out, nil
	}

	e.lock.Lock()
	defer e.lock.Unlock()

	// One bulk fetch of everything the batch touches
	existing, err := e.store.FindAllByIdentifiersIn(ctx, identifiers.Slice())
	if err != nil {
		return out, err
	}
	index := newBatchIndex(existing)

	// Fold the batch against the in-memory index,
	// later records see the merges of the earlier ones
	for _, record := range sanitized {
		matches := index.matches(record)
		if len(matches) == 0 {
			record.ID = idgenerator.RecordID()
			index.put(record)
			continue
		}
		target := pickTarget(matches, record.Type)
		record.MergeInto(target)
		for _, other := range matches {
			if other.ID == target.ID {
				continue
			}
			other.MergeInto(target)
			index.absorb(other, target)
		}
		index.put(target)
	}

	// One bulk save concludes the batch
	survivors := index.survivors()
	if err := e.store.SaveAll(ctx, survivors); err != nil {
		return out, err
	}
	for _, deleted := range index.deleted() {
		if err := e.store.Delete(ctx, deleted); err != nil {
			return out, err
		}
	}
	for _, record := range survivors {
		e.hooks.RecordPersisted(ctx, record)
	}
	e.logger.Infof(ctx, `batch merged, "%d" observed, "%d" canonical, "%d" absorbed`,
		len(observed), len(survivors), len(index.deleted()))
	out.Survivors = survivors
	return out, nil
}

// pickTarget prefers a match with the same concrete type, else the first match.
func pickTarget(matches []*model.HardwareRecord, t model.HardwareType) *model.HardwareRecord {
	for _, m := range matches {
		if m.Type == t {
			return m
		}
	}
	return matches[0]
}
