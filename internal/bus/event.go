package bus

import "time"

// Event is a notification delivered to UI subscribers. Topics are
// dot-separated, e.g. "feed.replaced" or "mutation.rolled_back".
type Event struct {
	Topic string
	At    time.Time
	Data  any
}
