package search

import (
	"errors"
	"testing"

	"github.com/kartikbazzad/bunbase/bunsearch/internal/coerce"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/schema"
)

func testTable(source schema.SourceKind) *schema.Table {
	return &schema.Table{
		ID:     "ta_people",
		Name:   "people",
		Source: source,
		Fields: map[string]schema.Field{
			"name":    {Name: "name", Type: schema.FieldString},
			"age":     {Name: "age", Type: schema.FieldNumber},
			"balance": {Name: "balance", Type: schema.FieldBigint},
			"joined":  {Name: "joined", Type: schema.FieldDatetime},
			"tags":    {Name: "tags", Type: schema.FieldOptions},
		},
	}
}

func fullCaps() Capabilities {
	return Capabilities{HalfOpenRange: true, Bookmarks: true, TotalCount: true}
}

func TestNormalizeRejectsUnknownColumn(t *testing.T) {
	params := &RowSearchParams{
		Query: SearchFilters{Equal: map[string]any{"ghost": "x"}},
	}
	_, err := Normalize(params, testTable(schema.SourceInternal), fullCaps())
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if verr.Column != "ghost" || verr.Operator != OpEqual {
		t.Errorf("Error missing context: %+v", verr)
	}
}

func TestNormalizeRejectsUnknownSortColumn(t *testing.T) {
	params := &RowSearchParams{Sort: "ghost"}
	_, err := Normalize(params, testTable(schema.SourceInternal), fullCaps())
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
}

func TestNormalizeSortKindDefaults(t *testing.T) {
	tests := []struct {
		sort     string
		sortType string
		want     coerce.SortKind
	}{
		{"name", "", coerce.SortString},
		{"age", "", coerce.SortNumber},
		{"balance", "", coerce.SortNumber},
		{"joined", "", coerce.SortString},
		{"age", "string", coerce.SortString},
		{"name", "number", coerce.SortNumber},
	}
	for _, tt := range tests {
		params := &RowSearchParams{Sort: tt.sort, SortType: tt.sortType}
		req, err := Normalize(params, testTable(schema.SourceInternal), fullCaps())
		if err != nil {
			t.Fatalf("Normalize(%s/%s) failed: %v", tt.sort, tt.sortType, err)
		}
		if req.SortKind != tt.want {
			t.Errorf("Sort %s type %q: got %s, want %s", tt.sort, tt.sortType, req.SortKind, tt.want)
		}
	}

	params := &RowSearchParams{Sort: "age", SortType: "alphabetic"}
	if _, err := Normalize(params, testTable(schema.SourceInternal), fullCaps()); err == nil {
		t.Error("Expected error for bad sortType")
	}
}

func TestNormalizeLimits(t *testing.T) {
	req, err := Normalize(&RowSearchParams{}, testTable(schema.SourceInternal), fullCaps())
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if req.Limit != DefaultLimit {
		t.Errorf("Expected default limit %d, got %d", DefaultLimit, req.Limit)
	}

	req, err = Normalize(&RowSearchParams{Limit: MaxLimit + 1}, testTable(schema.SourceInternal), fullCaps())
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if req.Limit != MaxLimit {
		t.Errorf("Expected limit clamped to %d, got %d", MaxLimit, req.Limit)
	}
}

func TestNormalizeHalfOpenRangeCapability(t *testing.T) {
	low := any(5.0)
	params := &RowSearchParams{
		Query: SearchFilters{Range: map[string]RangeFilter{"age": {Low: low}}},
	}

	// A family without half-open support (the indexed one) rejects the
	// request before any I/O happens.
	caps := fullCaps()
	caps.HalfOpenRange = false
	_, err := Normalize(params, testTable(schema.SourceIndexed), caps)
	var uerr *UnsupportedError
	if !errors.As(err, &uerr) {
		t.Fatalf("Expected UnsupportedError on indexed source, got %v", err)
	}
	if uerr.Family != schema.SourceIndexed || uerr.Column != "age" {
		t.Errorf("Error missing context: %+v", uerr)
	}

	// Every other family declares half-open support and accepts it.
	for _, src := range []schema.SourceKind{schema.SourceInternal, schema.SourcePostgres, schema.SourceMySQL, schema.SourceMSSQL} {
		if _, err := Normalize(params, testTable(src), fullCaps()); err != nil {
			t.Errorf("Source %s rejected half-open range: %v", src, err)
		}
	}
}

func TestNormalizeCapabilityGates(t *testing.T) {
	caps := fullCaps()
	caps.Bookmarks = false
	var uerr *UnsupportedError
	if _, err := Normalize(&RowSearchParams{Paginate: true}, testTable(schema.SourceInternal), caps); !errors.As(err, &uerr) {
		t.Errorf("Expected UnsupportedError for paginate without bookmark support, got %v", err)
	}

	caps = fullCaps()
	caps.TotalCount = false
	if _, err := Normalize(&RowSearchParams{CountRows: true}, testTable(schema.SourceInternal), caps); !errors.As(err, &uerr) {
		t.Errorf("Expected UnsupportedError for countRows without total support, got %v", err)
	}
}

func TestNormalizeRangeNeedsABound(t *testing.T) {
	params := &RowSearchParams{
		Query: SearchFilters{Range: map[string]RangeFilter{"age": {}}},
	}
	var verr *ValidationError
	_, err := Normalize(params, testTable(schema.SourceInternal), fullCaps())
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError for unbounded range, got %v", err)
	}
}

func TestNormalizePolicyPrecedence(t *testing.T) {
	// Default is returnAll.
	req, err := Normalize(&RowSearchParams{}, testTable(schema.SourceInternal), fullCaps())
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if req.Policy != ReturnAll {
		t.Errorf("Expected default policy returnAll, got %s", req.Policy)
	}

	// Policy embedded in the query body applies.
	req, err = Normalize(&RowSearchParams{
		Query: SearchFilters{OnEmptyFilter: ReturnNone},
	}, testTable(schema.SourceInternal), fullCaps())
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if req.Policy != ReturnNone {
		t.Errorf("Expected body policy returnNone, got %s", req.Policy)
	}

	// The top-level field wins over the body.
	req, err = Normalize(&RowSearchParams{
		Query:         SearchFilters{OnEmptyFilter: ReturnNone},
		OnEmptyFilter: ReturnAll,
	}, testTable(schema.SourceInternal), fullCaps())
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if req.Policy != ReturnAll {
		t.Errorf("Expected top-level policy returnAll, got %s", req.Policy)
	}

	if _, err := Normalize(&RowSearchParams{OnEmptyFilter: "maybe"}, testTable(schema.SourceInternal), fullCaps()); err == nil {
		t.Error("Expected error for unknown policy")
	}
}

func TestFiltersIsEmpty(t *testing.T) {
	tests := []struct {
		name    string
		filters SearchFilters
		want    bool
	}{
		{"zero value", SearchFilters{}, true},
		{"equal", SearchFilters{Equal: map[string]any{"name": "x"}}, false},
		{"range", SearchFilters{Range: map[string]RangeFilter{"age": {Low: 1.0}}}, false},
		{"empty operator counts", SearchFilters{Empty: map[string]any{"name": true}}, false},
		{"notEmpty operator counts", SearchFilters{NotEmpty: map[string]any{"name": true}}, false},
		{"contains with values", SearchFilters{Contains: map[string][]any{"tags": {"a"}}}, false},
		{"contains with empty list is identity", SearchFilters{Contains: map[string][]any{"tags": {}}}, true},
		{"containsAny with empty list is identity", SearchFilters{ContainsAny: map[string][]any{"tags": {}}}, true},
		{"notContains with empty list is identity", SearchFilters{NotContains: map[string][]any{"tags": {}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filters.IsEmpty(); got != tt.want {
				t.Errorf("IsEmpty() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateResolved(t *testing.T) {
	table := testTable(schema.SourceInternal)

	req := &Request{
		Table: table,
		Filters: SearchFilters{
			Equal: map[string]any{"age": "not a number"},
		},
	}
	var verr *ValidationError
	if err := ValidateResolved(req); !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError for bad number, got %v", err)
	}
	if verr.Column != "age" {
		t.Errorf("Error missing column context: %+v", verr)
	}

	req = &Request{
		Table: table,
		Filters: SearchFilters{
			Equal: map[string]any{"age": 42.0, "balance": "9223372036854775807"},
			Range: map[string]RangeFilter{"joined": {Low: "2024-01-01T00:00:00Z", High: "2024-12-31T00:00:00Z"}},
		},
	}
	if err := ValidateResolved(req); err != nil {
		t.Errorf("Valid resolved filters rejected: %v", err)
	}
}
