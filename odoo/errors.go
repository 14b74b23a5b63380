package odoo

import (
	"errors"
	"fmt"
)

// ErrAuthFailed is returned when the upstream rejects the configured
// credentials. It is never retried automatically; the operator has to fix the
// credentials and trigger a new reload.
var ErrAuthFailed = errors.New("odoo: authentication rejected by upstream")

// FetchError wraps a failed batched read call. Any fetch step failing aborts
// the whole reload; partial results are discarded.
type FetchError struct {
	Step string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("odoo: fetch step %q failed: %v", e.Step, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
