package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/feiralabs/feira/internal/session"
)

// Error is the normalized failure shape for gateway calls. Status is
// the HTTP status code, or 0 for transport-level failures (DNS,
// connection refused, timeout).
type Error struct {
	Status  int
	Message string
	URL     string
	Data    json.RawMessage
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("api: %s: %s", e.URL, e.Message)
	}
	return fmt.Sprintf("api: %s: %s (status %d)", e.URL, e.Message, e.Status)
}

// IsCancelled reports whether err is a cooperative cancellation: the
// caller gave up before the request finished. Callers ignore these
// silently; they are never a user-visible failure.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// IsUnauthenticated reports whether err means no session was present.
// No network call was made; the caller should redirect to login.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, session.ErrNoSession)
}
