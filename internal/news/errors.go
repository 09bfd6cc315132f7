package news

import (
	"errors"
	"fmt"
)

// ErrRateLimitExhausted signals that a query hit the API's rate limit more
// times in a row than the configured retry budget allows.
var ErrRateLimitExhausted = errors.New("rate limit retries exhausted")

// PersistenceError wraps a failed batch insert. The collection run treats it
// as a section-level failure, not a fatal one.
type PersistenceError struct {
	Table string
	Batch int
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist batch of %d into %s: %v", e.Batch, e.Table, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
