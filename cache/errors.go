package cache

import "fmt"

// BackendError wraps a store-level read or write failure. The orchestrator
// swallows these at its boundary: remote write failures degrade the reload to
// local-only, remote read failures fall back to the local store.
type BackendError struct {
	Backend string
	Op      string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("cache: %s backend %s failed: %v", e.Backend, e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }
