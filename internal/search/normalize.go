package search

import (
	"github.com/kartikbazzad/bunbase/bunsearch/internal/coerce"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/schema"
)

const (
	// DefaultLimit caps unpaginated result sets when the caller gives none.
	DefaultLimit = 50
	// MaxLimit is the hard ceiling on a single page.
	MaxLimit = 5000
)

// Capabilities declares what an adapter family can execute. Gaps are
// permanent, documented properties of the family, checked at normalization
// time, never discovered through a failed remote call.
type Capabilities struct {
	HalfOpenRange bool
	Bookmarks     bool
	TotalCount    bool
}

// Request is the canonical, validated form handed to exactly one adapter.
// Filter values may still contain unresolved bindings until the engine runs
// the resolver; adapters never see it in that state.
type Request struct {
	Table      *schema.Table
	Filters    SearchFilters
	Sort       string
	SortKind   coerce.SortKind
	Descending bool
	Limit      int
	Paginate   bool
	Bookmark   string
	CountRows  bool
	Policy     EmptyFilterPolicy
}

// Normalize validates a raw request against the table schema and fills
// defaults. Unknown columns are rejected here, before any binding resolution
// or I/O. Capability gaps of the table's adapter family (half-open ranges on
// the indexed family) are also rejected here so the caller gets a precise,
// early diagnostic instead of a failed remote call.
func Normalize(params *RowSearchParams, table *schema.Table, caps Capabilities) (*Request, error) {
	if table == nil {
		return nil, &ValidationError{Reason: "table schema is required"}
	}

	for op, cols := range params.Query.Columns() {
		for _, col := range cols {
			if _, ok := table.Field(col); !ok {
				return nil, &ValidationError{Column: col, Operator: op, Reason: "column not in table schema"}
			}
		}
	}

	if !caps.HalfOpenRange {
		for col, r := range params.Query.Range {
			if r.HalfOpen() {
				return nil, &UnsupportedError{
					Column:   col,
					Operator: OpRange,
					Family:   table.Source,
					Reason:   "range requires both low and high bounds",
				}
			}
		}
	}
	for col, r := range params.Query.Range {
		if r.Low == nil && r.High == nil {
			return nil, &ValidationError{Column: col, Operator: OpRange, Reason: "range needs at least one bound"}
		}
	}
	if params.Paginate && !caps.Bookmarks {
		return nil, &UnsupportedError{Operator: "paginate", Family: table.Source, Reason: "family does not support bookmarks"}
	}
	if params.CountRows && !caps.TotalCount {
		return nil, &UnsupportedError{Operator: "countRows", Family: table.Source, Reason: "family does not report totals"}
	}

	req := &Request{
		Table:      table,
		Filters:    params.Query,
		Sort:       params.Sort,
		Descending: params.SortOrder == SortDescending,
		Limit:      params.Limit,
		Paginate:   params.Paginate,
		Bookmark:   params.Bookmark,
		CountRows:  params.CountRows,
		Policy:     params.Query.OnEmptyFilter,
	}

	// Top-level policy wins over the one embedded in the query body.
	if params.OnEmptyFilter != "" {
		req.Policy = params.OnEmptyFilter
	}
	switch req.Policy {
	case "", ReturnAll:
		req.Policy = ReturnAll
	case ReturnNone:
	default:
		return nil, &ValidationError{Reason: "onEmptyFilter must be returnAll or returnNone"}
	}

	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}

	if req.Sort != "" {
		field, ok := table.Field(req.Sort)
		if !ok {
			return nil, &ValidationError{Column: req.Sort, Operator: "sort", Reason: "column not in table schema"}
		}
		switch params.SortType {
		case "":
			req.SortKind = coerce.DefaultSortKind(field)
		case string(coerce.SortString):
			req.SortKind = coerce.SortString
		case string(coerce.SortNumber):
			req.SortKind = coerce.SortNumber
		default:
			return nil, &ValidationError{Column: req.Sort, Operator: "sort", Reason: "sortType must be string or number"}
		}
	}

	return req, nil
}

// ValidateResolved re-checks every filter value against its column type after
// binding resolution, so template output obeys the same rules as literals.
func ValidateResolved(req *Request) error {
	check := func(op, col string, v any) error {
		field, ok := req.Table.Field(col)
		if !ok {
			return &ValidationError{Column: col, Operator: op, Reason: "column not in table schema"}
		}
		if err := coerce.ValidateValue(field, v); err != nil {
			return &ValidationError{Column: col, Operator: op, Reason: err.Error()}
		}
		return nil
	}

	for col, v := range req.Filters.Equal {
		if err := check(OpEqual, col, v); err != nil {
			return err
		}
	}
	for col, v := range req.Filters.NotEqual {
		if err := check(OpNotEqual, col, v); err != nil {
			return err
		}
	}
	for col, vals := range req.Filters.OneOf {
		for _, v := range vals {
			if err := check(OpOneOf, col, v); err != nil {
				return err
			}
		}
	}
	for col, r := range req.Filters.Range {
		if r.Low != nil {
			if err := check(OpRange, col, r.Low); err != nil {
				return err
			}
		}
		if r.High != nil {
			if err := check(OpRange, col, r.High); err != nil {
				return err
			}
		}
	}
	for col, vals := range req.Filters.Contains {
		for _, v := range vals {
			if err := check(OpContains, col, v); err != nil {
				return err
			}
		}
	}
	for col, vals := range req.Filters.NotContains {
		for _, v := range vals {
			if err := check(OpNotContains, col, v); err != nil {
				return err
			}
		}
	}
	for col, vals := range req.Filters.ContainsAny {
		for _, v := range vals {
			if err := check(OpContainsAny, col, v); err != nil {
				return err
			}
		}
	}
	return nil
}
