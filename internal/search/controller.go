package search

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/feiralabs/feira/internal/api"
	"github.com/feiralabs/feira/internal/bus"
)

// Lookup performs one network search for the settled query.
type Lookup[R any] func(ctx context.Context, query string) ([]R, error)

// Results is the payload of search.results events.
type Results struct {
	Query string
	Count int
}

// Controller turns a rapidly-changing query string into at most one
// in-flight lookup per settled value. Classic debounce: every
// SetQuery restarts the quiet-period timer. Superseded lookups are
// cancelled, and their responses discarded by generation even if they
// arrive after the cancel signal was sent.
type Controller[R any] struct {
	quiet  time.Duration
	lookup Lookup[R]
	bus    *bus.Bus
	logger *zap.Logger

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	query   string
	cancel  context.CancelFunc
	results []R
	lastErr error
}

// New creates a controller. quiet is the debounce period; b may be nil.
func New[R any](quiet time.Duration, lookup Lookup[R], b *bus.Bus, logger *zap.Logger) *Controller[R] {
	if quiet <= 0 {
		quiet = 350 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller[R]{
		quiet:  quiet,
		lookup: lookup,
		bus:    b,
		logger: logger,
	}
}

// SetQuery records the latest text immediately (for display) and
// schedules a lookup once typing has been quiet. A blank query clears
// the result set locally with no network call.
func (c *Controller[R]) SetQuery(text string) {
	c.mu.Lock()
	c.query = text

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}

	if strings.TrimSpace(text) == "" {
		// Short-circuit: invalidate anything in flight and clear.
		c.gen++
		if c.cancel != nil {
			c.cancel()
			c.cancel = nil
		}
		c.results = nil
		c.lastErr = nil
		c.mu.Unlock()
		if c.bus != nil {
			c.bus.Emit("search.cleared", nil)
		}
		return
	}

	c.timer = time.AfterFunc(c.quiet, func() { c.fire(text) })
	c.mu.Unlock()
}

// fire runs when a quiet period elapses. It issues the lookup for the
// settled query, cancelling any lookup still in flight first.
func (c *Controller[R]) fire(query string) {
	c.mu.Lock()
	if query != c.query {
		// The text changed after this timer was armed; a newer timer owns it.
		c.mu.Unlock()
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()

	results, err := c.lookup(ctx, query)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		// A newer request was issued; this response is stale even if it
		// raced past the cancellation signal.
		return
	}
	c.cancel = nil

	if err != nil {
		if api.IsCancelled(err) {
			return
		}
		c.lastErr = err
		c.logger.Warn("search lookup failed", zap.String("query", query), zap.Error(err))
		if c.bus != nil {
			c.bus.Emit("search.failed", Results{Query: query})
		}
		return
	}

	c.results = results
	c.lastErr = nil
	if c.bus != nil {
		c.bus.Emit("search.results", Results{Query: query, Count: len(results)})
	}
}

// Query returns the latest text, settled or not.
func (c *Controller[R]) Query() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

// Results returns the visible result set: always the response of the
// most recent settled query, never a stale one.
func (c *Controller[R]) Results() []R {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]R, len(c.results))
	copy(out, c.results)
	return out
}

// Err returns the failure of the last settled lookup, if any.
func (c *Controller[R]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Close stops the pending timer and cancels any in-flight lookup.
// Used when the search surface goes away.
func (c *Controller[R]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}
