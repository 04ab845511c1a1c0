package feed

// Phase is a loader's position in its fetch lifecycle.
type Phase string

const (
	// Idle: nothing fetched yet (or reset); the collection may still
	// hold warm-start snapshot data.
	Idle Phase = "IDLE"
	// LoadingInitial: first fetch for this list is in flight.
	LoadingInitial Phase = "LOADING_INITIAL"
	// LoadingRefresh: a page-one fetch that will replace the collection.
	LoadingRefresh Phase = "LOADING_REFRESH"
	// LoadingAppend: a next-page fetch that will extend the collection.
	LoadingAppend Phase = "LOADING_APPEND"
	// Loaded: the last fetch finished; the collection is renderable.
	Loaded Phase = "LOADED"
)

// phaseTransitions defines the allowed moves. A fetch failure returns
// to the phase it started from (Idle for a failed initial load).
var phaseTransitions = map[Phase][]Phase{
	Idle:           {LoadingInitial},
	LoadingInitial: {Loaded, Idle},
	LoadingRefresh: {Loaded},
	LoadingAppend:  {Loaded},
	Loaded:         {LoadingRefresh, LoadingAppend, Idle},
}

func (p Phase) loading() bool {
	switch p {
	case LoadingInitial, LoadingRefresh, LoadingAppend:
		return true
	}
	return false
}

func (p Phase) canMoveTo(to Phase) bool {
	for _, allowed := range phaseTransitions[p] {
		if allowed == to {
			return true
		}
	}
	return false
}
