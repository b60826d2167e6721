// Package search holds the canonical representation of a row search request
// and the engine that normalizes, resolves and dispatches it. A request is
// built per call, transformed in place, handed to exactly one backend adapter
// and discarded; nothing here is persisted.
package search

// SortOrder is the requested ordering direction.
type SortOrder string

const (
	SortAscending  SortOrder = "ascending"
	SortDescending SortOrder = "descending"
)

// EmptyFilterPolicy governs the result when, after binding resolution, the
// filter set contains no usable predicates.
type EmptyFilterPolicy string

const (
	// ReturnAll short-circuits to an unconstrained query. This is the
	// default when the caller does not specify a policy: an empty query is
	// how clients list a table.
	ReturnAll EmptyFilterPolicy = "returnAll"
	// ReturnNone short-circuits to a zero-row result without touching any
	// backend.
	ReturnNone EmptyFilterPolicy = "returnNone"
)

// RangeFilter bounds a column on one or both ends. Both bounds are inclusive.
// A bound left nil makes the range half-open, which not every adapter family
// supports.
type RangeFilter struct {
	Low  any `json:"low,omitempty"`
	High any `json:"high,omitempty"`
}

// HalfOpen reports whether exactly one bound is set.
func (r RangeFilter) HalfOpen() bool {
	return (r.Low == nil) != (r.High == nil)
}

// SearchFilters is the canonical filter body: operator -> column -> value(s).
type SearchFilters struct {
	Equal       map[string]any         `json:"equal,omitempty"`
	NotEqual    map[string]any         `json:"notEqual,omitempty"`
	OneOf       map[string][]any       `json:"oneOf,omitempty"`
	Range       map[string]RangeFilter `json:"range,omitempty"`
	Contains    map[string][]any       `json:"contains,omitempty"`
	NotContains map[string][]any       `json:"notContains,omitempty"`
	ContainsAny map[string][]any       `json:"containsAny,omitempty"`
	Fuzzy       map[string]any         `json:"fuzzy,omitempty"`
	Empty       map[string]any         `json:"empty,omitempty"`
	NotEmpty    map[string]any         `json:"notEmpty,omitempty"`

	OnEmptyFilter EmptyFilterPolicy `json:"onEmptyFilter,omitempty"`
}

// Operator names used in error context and adapter dispatch.
const (
	OpEqual       = "equal"
	OpNotEqual    = "notEqual"
	OpOneOf       = "oneOf"
	OpRange       = "range"
	OpContains    = "contains"
	OpNotContains = "notContains"
	OpContainsAny = "containsAny"
	OpFuzzy       = "fuzzy"
	OpEmpty       = "empty"
	OpNotEmpty    = "notEmpty"
)

// Columns returns every column the filter set references, keyed by operator.
func (f *SearchFilters) Columns() map[string][]string {
	out := make(map[string][]string)
	add := func(op string, cols ...string) {
		if len(cols) > 0 {
			out[op] = append(out[op], cols...)
		}
	}
	for c := range f.Equal {
		add(OpEqual, c)
	}
	for c := range f.NotEqual {
		add(OpNotEqual, c)
	}
	for c := range f.OneOf {
		add(OpOneOf, c)
	}
	for c := range f.Range {
		add(OpRange, c)
	}
	for c := range f.Contains {
		add(OpContains, c)
	}
	for c := range f.NotContains {
		add(OpNotContains, c)
	}
	for c := range f.ContainsAny {
		add(OpContainsAny, c)
	}
	for c := range f.Fuzzy {
		add(OpFuzzy, c)
	}
	for c := range f.Empty {
		add(OpEmpty, c)
	}
	for c := range f.NotEmpty {
		add(OpNotEmpty, c)
	}
	return out
}

// IsEmpty reports whether the filter set contains zero usable predicates.
// empty/notEmpty are real predicates and always exempt a filter set from the
// empty-filter short-circuit. The contains family with an empty value list is
// a documented match-all identity, so it does not count as a predicate.
func (f *SearchFilters) IsEmpty() bool {
	if len(f.Empty) > 0 || len(f.NotEmpty) > 0 {
		return false
	}
	if len(f.Equal) > 0 || len(f.NotEqual) > 0 || len(f.OneOf) > 0 ||
		len(f.Range) > 0 || len(f.Fuzzy) > 0 {
		return false
	}
	for _, vals := range f.Contains {
		if len(vals) > 0 {
			return false
		}
	}
	for _, vals := range f.NotContains {
		if len(vals) > 0 {
			return false
		}
	}
	for _, vals := range f.ContainsAny {
		if len(vals) > 0 {
			return false
		}
	}
	return true
}

// RowSearchParams is the transport-level request body.
type RowSearchParams struct {
	TableID       string            `json:"tableId"`
	Query         SearchFilters     `json:"query"`
	Sort          string            `json:"sort,omitempty"`
	SortType      string            `json:"sortType,omitempty"` // "string" | "number"
	SortOrder     SortOrder         `json:"sortOrder,omitempty"`
	Limit         int               `json:"limit,omitempty"`
	Paginate      bool              `json:"paginate,omitempty"`
	Bookmark      string            `json:"bookmark,omitempty"`
	CountRows     bool              `json:"countRows,omitempty"`
	OnEmptyFilter EmptyFilterPolicy `json:"onEmptyFilter,omitempty"`
}
