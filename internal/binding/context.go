// Package binding rewrites filter values containing template expressions or
// encoded snippets into concrete runtime values. Resolution happens before
// normalization's empty-check and before any adapter call; adapters never see
// a template string.
package binding

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Snippet is a short named function callable from snippet programs.
type Snippet struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// Context carries the session-scoped values available to bindings. It is
// passed explicitly through every resolution call; the resolver holds no
// ambient state, so resolution is deterministic for a fixed Context.
type Context struct {
	User     map[string]any
	Now      time.Time
	Snippets []Snippet
}

// Lookup resolves a dotted path against the context. The second return
// distinguishes an absent path from a path that resolves to an explicit empty
// value; the default helper only substitutes on the former.
func (c *Context) Lookup(path string) (any, bool) {
	if c == nil {
		return nil, false
	}
	if path == "now" {
		return c.Now.UTC().Format(time.RFC3339Nano), true
	}
	parts := strings.Split(path, ".")
	if parts[0] != "user" {
		return nil, false
	}
	var cur any = c.User
	for _, part := range parts[1:] {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	if len(parts) == 1 {
		// Bare "user" is not a scalar binding.
		return nil, false
	}
	return cur, true
}

// Evaluator is the sandboxed snippet evaluator capability. Implementations
// must be pure with respect to caller state and honor context cancellation;
// the engine injects a deadline so runaway programs fail instead of blocking.
type Evaluator interface {
	Evaluate(ctx context.Context, code string, bctx *Context) (any, error)
}

// Error reports a failed resolution. A request is never partially resolved:
// the first failing value aborts the whole search.
type Error struct {
	Expression string
	Reason     string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot resolve binding %q: %s: %v", e.Expression, e.Reason, e.Err)
	}
	return fmt.Sprintf("cannot resolve binding %q: %s", e.Expression, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}
