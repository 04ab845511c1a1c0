package mutate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/feiralabs/feira/internal/bus"
	"github.com/feiralabs/feira/internal/feed"
	"github.com/feiralabs/feira/internal/model"
)

// ErrItemNotFound is returned when a toggle targets an item that is
// not in the loader's collection.
var ErrItemNotFound = errors.New("item not in collection")

// Outcome is what a commit reports back. Nil fields mean "the server
// did not say"; the optimistic value is kept as final.
type Outcome struct {
	// Value is the server's authoritative value for the toggled field.
	Value any
	// Count is the server's recomputed counter, when one exists.
	Count *int
}

// Mutation describes one optimistic toggle on a single item field:
// reaction, follow, read-state. The engine owns the lifecycle; the
// mutation only supplies accessors and the commit request.
type Mutation[T model.Item] struct {
	ItemID string
	Field  string

	// Read returns the field's current value; Write sets it.
	Read  func(item *T) any
	Write func(item *T, v any)

	// Next computes the optimistic value from the current one. Under a
	// double-tap the current value is the previous tap's optimistic
	// value, so rapid toggles converge instead of losing updates.
	// Field values must be comparable.
	Next func(current any) any

	// Commit performs the server call for the applied value. Not
	// cancellable: once triggered, a toggle always reconciles.
	Commit func(ctx context.Context, applied any) (*Outcome, error)

	// Optional companion counter (like count, follower count). The
	// counter moves by the signed delta between old and new value,
	// never re-derived from scratch, so concurrent changes by other
	// users are not clobbered.
	ReadCount  func(item *T) int
	WriteCount func(item *T, n int)
	Delta      func(from, to any) int
}

// Change is the payload of mutation.* events.
type Change struct {
	ItemID string
	Field  string
}

type pendingKey struct {
	itemID string
	field  string
}

// pendingMutation tracks one in-flight commit for an (item, field)
// pair. base holds the pre-first-toggle state a rollback restores.
type pendingMutation struct {
	base      any
	baseCount int
	hasCount  bool
	queued    *queuedToggle
}

type queuedToggle struct {
	value any
}

// Engine applies user-triggered toggles to a loader's collection
// before the server confirms them, then reconciles. At most one
// commit per (item, field) is in flight; later taps during flight are
// applied locally and their net state committed as a follow-up.
type Engine[T model.Item] struct {
	list   *feed.Loader[T]
	bus    *bus.Bus
	logger *zap.Logger

	mu      sync.Mutex
	pending map[pendingKey]*pendingMutation
}

// New creates an engine over the given loader's collection.
func New[T model.Item](list *feed.Loader[T], b *bus.Bus, logger *zap.Logger) *Engine[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine[T]{
		list:    list,
		bus:     b,
		logger:  logger,
		pending: make(map[pendingKey]*pendingMutation),
	}
}

// Toggle applies m optimistically, then blocks until the commit
// reconciles (confirmed or rolled back). The visible state changes
// before this returns to the caller's event loop; run it from a
// goroutine when the caller must not block.
//
// On failure the field (and counter) return exactly to their values
// before the first unconfirmed toggle, and the error is surfaced for
// user feedback; nothing is retried automatically.
func (e *Engine[T]) Toggle(ctx context.Context, m Mutation[T]) error {
	k := pendingKey{itemID: m.ItemID, field: m.Field}

	e.mu.Lock()
	item, ok := e.list.Get(m.ItemID)
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("toggle %s.%s: %w", m.ItemID, m.Field, ErrItemNotFound)
	}

	current := m.Read(&item)
	next := m.Next(current)
	e.applyLocked(m, current, next)

	if p, inFlight := e.pending[k]; inFlight {
		// Coalesce: the first commit's resolution will pick this up.
		p.queued = &queuedToggle{value: next}
		e.mu.Unlock()
		e.emit("mutation.applied", m)
		return nil
	}

	p := &pendingMutation{base: current}
	if m.ReadCount != nil {
		p.baseCount = m.ReadCount(&item)
		p.hasCount = true
	}
	e.pending[k] = p
	e.mu.Unlock()

	e.emit("mutation.applied", m)
	return e.commit(ctx, k, m, next)
}

// commit runs one server call and reconciles. It re-enters itself for
// a queued follow-up toggle whose net state differs from what the
// server just confirmed.
func (e *Engine[T]) commit(ctx context.Context, k pendingKey, m Mutation[T], applied any) error {
	out, err := m.Commit(ctx, applied)

	e.mu.Lock()
	p := e.pending[k]
	if p == nil {
		// Should not happen; nothing to reconcile.
		e.mu.Unlock()
		return err
	}

	if err != nil {
		// Rollback to the pre-toggle base, discarding any queued tap.
		e.list.Patch(m.ItemID, func(item *T) {
			m.Write(item, p.base)
			if p.hasCount && m.WriteCount != nil {
				m.WriteCount(item, p.baseCount)
			}
		})
		delete(e.pending, k)
		e.mu.Unlock()

		e.logger.Warn("mutation rolled back",
			zap.String("item_id", m.ItemID),
			zap.String("field", m.Field),
			zap.Error(err),
		)
		e.emit("mutation.rolled_back", m)
		return fmt.Errorf("commit %s.%s: %w", m.ItemID, m.Field, err)
	}

	confirmed := applied
	queued := p.queued
	p.queued = nil

	// Authoritative server values overwrite the optimistic ones, but
	// only when no newer tap has already moved the state past them.
	if out != nil && queued == nil {
		e.list.Patch(m.ItemID, func(item *T) {
			if out.Value != nil {
				confirmed = out.Value
				m.Write(item, out.Value)
			}
			if out.Count != nil && m.WriteCount != nil {
				m.WriteCount(item, *out.Count)
			}
		})
	}

	if queued != nil && queued.value != confirmed {
		// The user kept tapping while we were in flight; commit the net
		// state they ended on.
		e.mu.Unlock()
		return e.commit(ctx, k, m, queued.value)
	}

	delete(e.pending, k)
	e.mu.Unlock()

	e.emit("mutation.confirmed", m)
	return nil
}

// Delete removes the item optimistically and commits the deletion.
// On failure the item is re-inserted at its old position.
func (e *Engine[T]) Delete(ctx context.Context, itemID string, commitFn func(ctx context.Context) error) error {
	removed, index, ok := e.list.Remove(itemID)
	if !ok {
		return fmt.Errorf("delete %s: %w", itemID, ErrItemNotFound)
	}
	e.emit("mutation.applied", Mutation[T]{ItemID: itemID, Field: "deleted"})

	if err := commitFn(ctx); err != nil {
		e.list.Insert(index, removed)
		e.logger.Warn("delete rolled back", zap.String("item_id", itemID), zap.Error(err))
		e.emit("mutation.rolled_back", Mutation[T]{ItemID: itemID, Field: "deleted"})
		return fmt.Errorf("delete %s: %w", itemID, err)
	}

	e.emit("mutation.confirmed", Mutation[T]{ItemID: itemID, Field: "deleted"})
	return nil
}

// Pending reports whether a commit is in flight for (itemID, field).
func (e *Engine[T]) Pending(itemID, field string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.pending[pendingKey{itemID: itemID, field: field}]
	return ok
}

// applyLocked writes the optimistic value (and counter delta) into the
// collection. Caller holds e.mu.
func (e *Engine[T]) applyLocked(m Mutation[T], current, next any) {
	e.list.Patch(m.ItemID, func(item *T) {
		m.Write(item, next)
		if m.Delta != nil && m.ReadCount != nil && m.WriteCount != nil {
			m.WriteCount(item, m.ReadCount(item)+m.Delta(current, next))
		}
	})
}

func (e *Engine[T]) emit(topic string, m Mutation[T]) {
	if e.bus == nil {
		return
	}
	e.bus.Emit(topic, Change{ItemID: m.ItemID, Field: m.Field})
}
