package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/feiralabs/feira/internal/bus"
	"github.com/feiralabs/feira/internal/model"
	"github.com/feiralabs/feira/internal/store"
)

// ErrFetchInFlight is returned when Refresh or LoadMore is called
// while a fetch for the same loader is still running. Re-entrant
// fetches are rejected, not queued; that is what keeps pages ordered
// and duplicate-free.
var ErrFetchInFlight = errors.New("fetch already in flight")

// Scheme selects the pagination query style an endpoint expects.
type Scheme int

const (
	// ByPage paginates with page=<n>, 1-based.
	ByPage Scheme = iota
	// ByOffset paginates with offset=<n>&limit=<n>.
	ByOffset
)

// PageRequest tells a Source which slice of the list to fetch.
type PageRequest struct {
	Page   int // 1-based page number (ByPage)
	Offset int // item offset (ByOffset)
	Limit  int
}

// PageResult is one fetched page. HasMore carries the server's own
// pagination metadata when it provides any; nil means "derive it from
// the returned count".
type PageResult[T model.Item] struct {
	Items   []T
	HasMore *bool
}

// Source fetches one page of a list from the remote service.
type Source[T model.Item] func(ctx context.Context, req PageRequest) (PageResult[T], error)

// Update is the payload of feed.* events.
type Update struct {
	List  string
	Count int
}

// Loader owns the in-memory collection for one list instance (home
// feed, notifications, a contacts tab, ...) and its pagination cursor.
// Fetches are strictly serialized per loader; the collection is only
// ever replaced or extended here, while optimistic field writes come
// through Patch.
type Loader[T model.Item] struct {
	name     string
	scheme   Scheme
	pageSize int
	source   Source[T]
	db       *store.DB // optional; enables warm-start snapshots
	bus      *bus.Bus
	logger   *zap.Logger

	mu       sync.Mutex
	phase    Phase
	items    []T
	seen     map[string]struct{}
	nextPage int // 1-based page the next append will fetch
	hasMore  bool
}

// New creates a loader for one named list. db and b may be nil (no
// snapshots, no events).
func New[T model.Item](name string, scheme Scheme, pageSize int, source Source[T], db *store.DB, b *bus.Bus, logger *zap.Logger) *Loader[T] {
	if pageSize <= 0 {
		pageSize = 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader[T]{
		name:     name,
		scheme:   scheme,
		pageSize: pageSize,
		source:   source,
		db:       db,
		bus:      b,
		logger:   logger,
		phase:    Idle,
		seen:     make(map[string]struct{}),
		nextPage: 1,
		hasMore:  true,
	}
}

// Refresh fetches page one and, on success, replaces the collection
// wholesale. A refresh is authoritative: it supersedes all prior
// ordering and snapshot data.
func (l *Loader[T]) Refresh(ctx context.Context) error {
	l.mu.Lock()
	if l.phase.loading() {
		l.mu.Unlock()
		return ErrFetchInFlight
	}
	from := l.phase
	target := LoadingRefresh
	if from == Idle {
		target = LoadingInitial
	}
	l.setPhase(target)
	req := l.requestFor(1)
	l.mu.Unlock()

	res, err := l.source(ctx, req)

	l.mu.Lock()
	if err != nil {
		// Collection and cursor untouched; caller may retry.
		l.setPhase(from)
		l.mu.Unlock()
		l.emit("feed.failed", 0)
		return fmt.Errorf("refresh %s: %w", l.name, err)
	}

	l.items = dedupe(res.Items, make(map[string]struct{}))
	l.seen = make(map[string]struct{}, len(l.items))
	for _, it := range l.items {
		l.seen[it.ItemID()] = struct{}{}
	}
	l.nextPage = 2
	l.hasMore = l.deriveHasMore(res)
	l.setPhase(Loaded)
	count := len(l.items)
	l.persistSnapshotLocked()
	l.mu.Unlock()

	l.emit("feed.replaced", count)
	return nil
}

// LoadMore fetches the page after the current cursor and appends it,
// de-duplicating by item ID against the existing collection. A no-op
// when the list is exhausted. From Idle it behaves like Refresh.
func (l *Loader[T]) LoadMore(ctx context.Context) error {
	l.mu.Lock()
	if l.phase.loading() {
		l.mu.Unlock()
		return ErrFetchInFlight
	}
	if l.phase == Idle {
		l.mu.Unlock()
		return l.Refresh(ctx)
	}
	if !l.hasMore {
		l.mu.Unlock()
		return nil
	}
	l.setPhase(LoadingAppend)
	req := l.requestFor(l.nextPage)
	l.mu.Unlock()

	res, err := l.source(ctx, req)

	l.mu.Lock()
	if err != nil {
		l.setPhase(Loaded)
		l.mu.Unlock()
		l.emit("feed.failed", 0)
		return fmt.Errorf("load more %s: %w", l.name, err)
	}

	if len(res.Items) == 0 {
		// Empty page: the list is exhausted; the collection stays as is.
		l.hasMore = false
		l.setPhase(Loaded)
		l.mu.Unlock()
		l.emit("feed.appended", 0)
		return nil
	}

	fresh := dedupe(res.Items, l.seen)
	l.items = append(l.items, fresh...)
	l.nextPage++
	l.hasMore = l.deriveHasMore(res)
	l.setPhase(Loaded)
	count := len(fresh)
	l.persistSnapshotLocked()
	l.mu.Unlock()

	l.emit("feed.appended", count)
	return nil
}

// Reset returns the loader to Idle with an empty collection and a
// rewound cursor (tab switch, logout).
func (l *Loader[T]) Reset() {
	l.mu.Lock()
	l.items = nil
	l.seen = make(map[string]struct{})
	l.nextPage = 1
	l.hasMore = true
	l.phase = Idle
	l.mu.Unlock()
}

// Restore fills the collection from the persisted snapshot so the UI
// has something to render before the first refresh. The cursor stays
// rewound: the next Refresh is still the first authoritative fetch.
// Only valid from Idle.
func (l *Loader[T]) Restore() error {
	if l.db == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.phase != Idle {
		return fmt.Errorf("restore %s: loader not idle", l.name)
	}

	snap, err := l.db.LoadSnapshot(l.name)
	if err != nil {
		return fmt.Errorf("restore %s: %w", l.name, err)
	}
	if snap == nil {
		return nil
	}

	var items []T
	if err := json.Unmarshal(snap.Payload, &items); err != nil {
		// Stale or corrupt snapshot; drop it and start cold.
		l.logger.Warn("dropping unreadable snapshot", zap.String("list", l.name), zap.Error(err))
		_ = l.db.DeleteSnapshot(l.name)
		return nil
	}

	l.items = dedupe(items, make(map[string]struct{}))
	l.seen = make(map[string]struct{}, len(l.items))
	for _, it := range l.items {
		l.seen[it.ItemID()] = struct{}{}
	}
	return nil
}

// Items returns a copy of the collection in display order.
func (l *Loader[T]) Items() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

// Get returns the item with the given ID.
func (l *Loader[T]) Get(id string) (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.items {
		if l.items[i].ItemID() == id {
			return l.items[i], true
		}
	}
	var zero T
	return zero, false
}

// Patch applies fn to the item with the given ID in place. This is
// the mutation engine's write path for optimistic updates; the loader
// itself never modifies individual items.
func (l *Loader[T]) Patch(id string, fn func(*T)) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.items {
		if l.items[i].ItemID() == id {
			fn(&l.items[i])
			return true
		}
	}
	return false
}

// Remove takes the item with the given ID out of the collection,
// returning it and its index for a possible rollback re-insert.
func (l *Loader[T]) Remove(id string) (T, int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.items {
		if l.items[i].ItemID() == id {
			removed := l.items[i]
			l.items = append(l.items[:i], l.items[i+1:]...)
			delete(l.seen, id)
			return removed, i, true
		}
	}
	var zero T
	return zero, 0, false
}

// Insert puts an item back at the given index (clamped), used to roll
// back an optimistic removal.
func (l *Loader[T]) Insert(index int, item T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := item.ItemID()
	if _, dup := l.seen[id]; dup {
		return
	}
	if index < 0 {
		index = 0
	}
	if index > len(l.items) {
		index = len(l.items)
	}
	l.items = append(l.items[:index], append([]T{item}, l.items[index:]...)...)
	l.seen[id] = struct{}{}
}

// Phase returns the loader's current lifecycle phase.
func (l *Loader[T]) Phase() Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.phase
}

// HasMore reports whether another page is believed to exist.
func (l *Loader[T]) HasMore() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hasMore
}

// Len returns the collection size.
func (l *Loader[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// Name returns the list name this loader serves.
func (l *Loader[T]) Name() string { return l.name }

// setPhase moves the loader through its lifecycle, logging any move
// the transition table does not allow. Caller holds l.mu.
func (l *Loader[T]) setPhase(to Phase) {
	if !l.phase.canMoveTo(to) {
		l.logger.Warn("unexpected phase transition",
			zap.String("list", l.name),
			zap.String("from", string(l.phase)),
			zap.String("to", string(to)),
		)
	}
	l.phase = to
}

func (l *Loader[T]) requestFor(page int) PageRequest {
	req := PageRequest{Limit: l.pageSize}
	switch l.scheme {
	case ByPage:
		req.Page = page
	case ByOffset:
		req.Offset = (page - 1) * l.pageSize
	}
	return req
}

// deriveHasMore prefers explicit server metadata, else assumes more
// pages exist whenever the server filled the page. The raw returned
// count is used, not the post-dedup count.
func (l *Loader[T]) deriveHasMore(res PageResult[T]) bool {
	if res.HasMore != nil {
		return *res.HasMore
	}
	return len(res.Items) >= l.pageSize
}

// persistSnapshotLocked writes the current collection as the list's
// warm-start snapshot. Best effort: a failed write is logged, never
// surfaced. Caller holds l.mu.
func (l *Loader[T]) persistSnapshotLocked() {
	if l.db == nil {
		return
	}
	payload, err := json.Marshal(l.items)
	if err != nil {
		l.logger.Warn("snapshot encode failed", zap.String("list", l.name), zap.Error(err))
		return
	}
	if err := l.db.SaveSnapshot(l.name, payload, len(l.items)); err != nil {
		l.logger.Warn("snapshot write failed", zap.String("list", l.name), zap.Error(err))
	}
}

func (l *Loader[T]) emit(topic string, count int) {
	if l.bus == nil {
		return
	}
	l.bus.Emit(topic, Update{List: l.name, Count: count})
}

// dedupe keeps the first occurrence of each ID, preserving order.
// seen is extended in place with the kept IDs.
func dedupe[T model.Item](items []T, seen map[string]struct{}) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		id := it.ItemID()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, it)
	}
	return out
}
