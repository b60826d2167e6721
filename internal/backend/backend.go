// Package backend defines the execution contract every adapter family
// implements. The set of families is closed: a table's datasource kind picks
// exactly one adapter per request and the registry is the single dispatch
// point.
package backend

import (
	"context"
	"fmt"

	"github.com/kartikbazzad/bunbase/bunsearch/internal/schema"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/search"
)

// Result is the raw adapter output before assembly.
type Result struct {
	Rows      []map[string]any
	Bookmark  string
	HasMore   bool
	TotalRows *int
}

// Adapter executes a normalized, fully resolved search request against one
// storage engine family.
type Adapter interface {
	Family() schema.SourceKind
	Capabilities() search.Capabilities
	Search(ctx context.Context, req *search.Request) (*Result, error)
}

// Registry holds the configured adapters keyed by source kind.
type Registry struct {
	adapters map[schema.SourceKind]Adapter
}

// NewRegistry builds a registry from the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[schema.SourceKind]Adapter)}
	for _, a := range adapters {
		r.adapters[a.Family()] = a
	}
	return r
}

// For returns the adapter for a source kind.
func (r *Registry) For(kind schema.SourceKind) (Adapter, error) {
	a, ok := r.adapters[kind]
	if !ok {
		return nil, fmt.Errorf("no adapter configured for source kind %q", kind)
	}
	return a, nil
}
