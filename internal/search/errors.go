package search

import (
	"fmt"

	"github.com/kartikbazzad/bunbase/bunsearch/internal/schema"
)

// ValidationError rejects a malformed request before any I/O. It always names
// the offending column so the caller can produce an actionable message.
type ValidationError struct {
	Column   string
	Operator string
	Reason   string
}

func (e *ValidationError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("invalid search request: %s", e.Reason)
	}
	return fmt.Sprintf("invalid filter %s.%s: %s", e.Operator, e.Column, e.Reason)
}

// UnsupportedError rejects an operation the table's adapter family cannot
// execute. It is raised at normalization time, when the family is already
// known, so the caller gets the diagnostic before any remote call.
type UnsupportedError struct {
	Column   string
	Operator string
	Family   schema.SourceKind
	Reason   string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s.%s not supported on %s source: %s", e.Operator, e.Column, e.Family, e.Reason)
}

// UnavailableError wraps an adapter connection or timeout failure. It is
// retryable from the caller's point of view; the engine itself never retries.
type UnavailableError struct {
	Family schema.SourceKind
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s backend unavailable: %v", e.Family, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}
