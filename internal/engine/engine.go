// Package engine wires normalization, binding resolution, type checking,
// adapter dispatch and result assembly into the single Search entry point.
// The engine is stateless per request; concurrent searches share nothing but
// the injected collaborators.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/kartikbazzad/bunbase/bunsearch/internal/backend"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/binding"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/metrics"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/schema"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/search"
	"github.com/kartikbazzad/bunbase/bunsearch/pkg/logger"
)

// Response is the uniform search result shape, identical across adapter
// families.
type Response struct {
	Rows      []map[string]any `json:"rows"`
	Bookmark  string           `json:"bookmark,omitempty"`
	HasMore   bool             `json:"hasMore"`
	TotalRows *int             `json:"totalRows,omitempty"`
}

// Engine executes row searches.
type Engine struct {
	schemas  schema.Provider
	resolver *binding.Resolver
	adapters *backend.Registry

	// evalTimeout bounds snippet evaluation; queryTimeout bounds one
	// adapter call. Both produce typed, caller-actionable failures rather
	// than hanging the request.
	evalTimeout  time.Duration
	queryTimeout time.Duration

	log *slog.Logger
}

// New creates an engine.
func New(schemas schema.Provider, resolver *binding.Resolver, adapters *backend.Registry, evalTimeout, queryTimeout time.Duration) *Engine {
	if evalTimeout <= 0 {
		evalTimeout = time.Second
	}
	if queryTimeout <= 0 {
		queryTimeout = 30 * time.Second
	}
	return &Engine{
		schemas:      schemas,
		resolver:     resolver,
		adapters:     adapters,
		evalTimeout:  evalTimeout,
		queryTimeout: queryTimeout,
		log:          logger.Component("engine"),
	}
}

// Search runs one row search request. The params instance is transformed in
// place through normalization and resolution, dispatched to exactly one
// adapter, and discarded.
func (e *Engine) Search(ctx context.Context, params *search.RowSearchParams, bctx *binding.Context) (*Response, error) {
	table, err := e.schemas.Table(params.TableID)
	if err != nil {
		return nil, err
	}

	adapter, err := e.adapters.For(table.Source)
	if err != nil {
		return nil, err
	}

	req, err := search.Normalize(params, table, adapter.Capabilities())
	if err != nil {
		return nil, err
	}

	if err := e.resolveFilters(ctx, &req.Filters, bctx); err != nil {
		return nil, err
	}
	if err := search.ValidateResolved(req); err != nil {
		return nil, err
	}

	// Empty-filter policy, decided only after resolution: a binding may
	// have been the sole predicate.
	if req.Filters.IsEmpty() && req.Policy == search.ReturnNone {
		e.log.Debug("empty filter short-circuit", "table", table.ID, "policy", req.Policy)
		return &Response{Rows: []map[string]any{}}, nil
	}

	qctx, cancel := context.WithTimeout(ctx, e.queryTimeout)
	defer cancel()

	result, err := adapter.Search(qctx, req)
	if err != nil {
		metrics.SearchTotal.WithLabelValues(string(table.Source), "error").Inc()
		return nil, err
	}
	metrics.SearchTotal.WithLabelValues(string(table.Source), "ok").Inc()

	return assemble(req, result), nil
}

// resolveFilters rewrites every filter value through the binding resolver.
// Resolution either completes for the whole filter set or fails the request;
// no adapter ever sees a template string.
func (e *Engine) resolveFilters(ctx context.Context, f *search.SearchFilters, bctx *binding.Context) error {
	rctx, cancel := context.WithTimeout(ctx, e.evalTimeout)
	defer cancel()

	resolveMap := func(m map[string]any) error {
		for col, v := range m {
			resolved, err := e.resolver.Resolve(rctx, v, bctx)
			if err != nil {
				return err
			}
			m[col] = resolved
		}
		return nil
	}
	resolveLists := func(m map[string][]any) error {
		for col, vals := range m {
			for i, v := range vals {
				resolved, err := e.resolver.Resolve(rctx, v, bctx)
				if err != nil {
					return err
				}
				vals[i] = resolved
			}
			m[col] = vals
		}
		return nil
	}

	if err := resolveMap(f.Equal); err != nil {
		return err
	}
	if err := resolveMap(f.NotEqual); err != nil {
		return err
	}
	if err := resolveMap(f.Fuzzy); err != nil {
		return err
	}
	if err := resolveLists(f.OneOf); err != nil {
		return err
	}
	if err := resolveLists(f.Contains); err != nil {
		return err
	}
	if err := resolveLists(f.NotContains); err != nil {
		return err
	}
	if err := resolveLists(f.ContainsAny); err != nil {
		return err
	}
	for col, r := range f.Range {
		if r.Low != nil {
			resolved, err := e.resolver.Resolve(rctx, r.Low, bctx)
			if err != nil {
				return err
			}
			r.Low = resolved
		}
		if r.High != nil {
			resolved, err := e.resolver.Resolve(rctx, r.High, bctx)
			if err != nil {
				return err
			}
			r.High = resolved
		}
		f.Range[col] = r
	}
	return nil
}
