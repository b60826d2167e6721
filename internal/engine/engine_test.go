package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/kartikbazzad/bunbase/bunsearch/internal/backend"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/binding"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/schema"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/search"
)

// fakeAdapter records the request it received and returns a canned result.
type fakeAdapter struct {
	family schema.SourceKind
	caps   *search.Capabilities
	got    *search.Request
	result *backend.Result
	err    error
}

func (f *fakeAdapter) Family() schema.SourceKind { return f.family }

func (f *fakeAdapter) Capabilities() search.Capabilities {
	if f.caps != nil {
		return *f.caps
	}
	return search.Capabilities{HalfOpenRange: true, Bookmarks: true, TotalCount: true}
}

func (f *fakeAdapter) Search(_ context.Context, req *search.Request) (*backend.Result, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &backend.Result{}, nil
}

func engineTable() *schema.Table {
	return &schema.Table{
		ID:     "ta_people",
		Name:   "people",
		Source: schema.SourceInternal,
		Fields: map[string]schema.Field{
			"name":  {Name: "name", Type: schema.FieldString},
			"age":   {Name: "age", Type: schema.FieldNumber},
			"owner": {Name: "owner", Type: schema.FieldLink, LinkKind: schema.LinkUserSingle},
			"team":  {Name: "team", Type: schema.FieldLink, LinkKind: schema.LinkMulti},
		},
	}
}

func newTestEngine(adapter backend.Adapter) *Engine {
	provider := schema.Static{"ta_people": engineTable()}
	return New(provider, binding.NewResolver(nil), backend.NewRegistry(adapter), 0, 0)
}

func TestSearchUnknownTable(t *testing.T) {
	e := newTestEngine(&fakeAdapter{family: schema.SourceInternal})
	_, err := e.Search(context.Background(), &search.RowSearchParams{TableID: "ta_ghost"}, nil)
	var nf *schema.ErrTableNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("Expected ErrTableNotFound, got %v", err)
	}
}

func TestSearchChecksAdapterCapabilities(t *testing.T) {
	caps := search.Capabilities{Bookmarks: true, TotalCount: true}
	fa := &fakeAdapter{family: schema.SourceInternal, caps: &caps}
	e := newTestEngine(fa)

	params := &search.RowSearchParams{
		TableID: "ta_people",
		Query:   search.SearchFilters{Range: map[string]search.RangeFilter{"age": {Low: 5.0}}},
	}
	_, err := e.Search(context.Background(), params, nil)
	var uerr *search.UnsupportedError
	if !errors.As(err, &uerr) {
		t.Fatalf("Expected UnsupportedError for half-open range, got %v", err)
	}
	if fa.got != nil {
		t.Error("Adapter must not run when its capabilities reject the request")
	}
}

func TestSearchResolvesBindingsBeforeDispatch(t *testing.T) {
	fa := &fakeAdapter{family: schema.SourceInternal}
	e := newTestEngine(fa)

	bctx := &binding.Context{User: map[string]any{"_id": "us_42"}}
	params := &search.RowSearchParams{
		TableID: "ta_people",
		Query:   search.SearchFilters{Equal: map[string]any{"owner": "{{ user._id }}"}},
	}
	_, err := e.Search(context.Background(), params, bctx)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if fa.got == nil {
		t.Fatal("Adapter was not called")
	}
	if fa.got.Filters.Equal["owner"] != "us_42" {
		t.Errorf("Adapter saw unresolved value %v", fa.got.Filters.Equal["owner"])
	}
}

func TestSearchFailedBindingAbortsRequest(t *testing.T) {
	fa := &fakeAdapter{family: schema.SourceInternal}
	e := newTestEngine(fa)

	params := &search.RowSearchParams{
		TableID: "ta_people",
		Query:   search.SearchFilters{Equal: map[string]any{"name": "{{ user.missing }}"}},
	}
	_, err := e.Search(context.Background(), params, &binding.Context{})
	var berr *binding.Error
	if !errors.As(err, &berr) {
		t.Fatalf("Expected binding error, got %v", err)
	}
	if fa.got != nil {
		t.Error("Adapter must not run after a failed resolution")
	}
}

func TestSearchResolvedValueIsTypeChecked(t *testing.T) {
	fa := &fakeAdapter{family: schema.SourceInternal}
	e := newTestEngine(fa)

	bctx := &binding.Context{User: map[string]any{"name": "ada"}}
	params := &search.RowSearchParams{
		TableID: "ta_people",
		Query:   search.SearchFilters{Equal: map[string]any{"age": "{{ user.name }}"}},
	}
	_, err := e.Search(context.Background(), params, bctx)
	var verr *search.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError for non-numeric binding output, got %v", err)
	}
	if fa.got != nil {
		t.Error("Adapter must not run on a type-invalid request")
	}
}

func TestSearchEmptyFilterPolicies(t *testing.T) {
	fa := &fakeAdapter{
		family: schema.SourceInternal,
		result: &backend.Result{Rows: []map[string]any{{"_id": "ro_1", "name": "a"}}},
	}
	e := newTestEngine(fa)

	// Default returnAll dispatches the unconstrained query.
	resp, err := e.Search(context.Background(), &search.RowSearchParams{TableID: "ta_people"}, nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if fa.got == nil {
		t.Fatal("returnAll must reach the adapter")
	}
	if len(resp.Rows) != 1 {
		t.Errorf("Expected pass-through rows, got %v", resp.Rows)
	}

	// returnNone short-circuits without touching the adapter.
	fa.got = nil
	resp, err = e.Search(context.Background(), &search.RowSearchParams{
		TableID:       "ta_people",
		OnEmptyFilter: search.ReturnNone,
	}, nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if fa.got != nil {
		t.Error("returnNone must not reach the adapter")
	}
	if resp.Rows == nil || len(resp.Rows) != 0 {
		t.Errorf("Expected empty row set, got %v", resp.Rows)
	}

	// A real predicate disables the short-circuit.
	fa.got = nil
	_, err = e.Search(context.Background(), &search.RowSearchParams{
		TableID:       "ta_people",
		OnEmptyFilter: search.ReturnNone,
		Query:         search.SearchFilters{NotEmpty: map[string]any{"name": true}},
	}, nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if fa.got == nil {
		t.Error("notEmpty is a real predicate; the adapter must run")
	}
}

func TestSearchAssemblyShapesRows(t *testing.T) {
	fa := &fakeAdapter{
		family: schema.SourceInternal,
		result: &backend.Result{Rows: []map[string]any{{
			"_id":      "ro_1",
			"name":     "ada",
			"owner":    []any{map[string]any{"_id": "us_1", "email": "a@b.c"}},
			"team":     []any{"us_2", map[string]any{"_id": "us_3"}},
			"_deleted": false,
			"stray":    "dropped",
		}}},
	}
	e := newTestEngine(fa)

	resp, err := e.Search(context.Background(), &search.RowSearchParams{TableID: "ta_people"}, nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(resp.Rows) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(resp.Rows))
	}
	row := resp.Rows[0]

	if row["_id"] != "ro_1" {
		t.Errorf("Row metadata must survive, got %v", row["_id"])
	}
	if _, ok := row["stray"]; ok {
		t.Error("Non-schema keys must be dropped")
	}
	if _, ok := row["_deleted"]; ok {
		t.Error("Internal storage artifacts must be dropped")
	}

	// Single reference unwraps the deprecated array form to one {_id}.
	owner, ok := row["owner"].(map[string]any)
	if !ok {
		t.Fatalf("Expected single reference object, got %T", row["owner"])
	}
	if owner["_id"] != "us_1" || len(owner) != 1 {
		t.Errorf("Reference must carry only _id, got %v", owner)
	}

	// Multi reference normalizes every member shape.
	team, ok := row["team"].([]map[string]any)
	if !ok {
		t.Fatalf("Expected reference list, got %T", row["team"])
	}
	if len(team) != 2 || team[0]["_id"] != "us_2" || team[1]["_id"] != "us_3" {
		t.Errorf("Unexpected reference list %v", team)
	}
}

func TestSearchLimitEnforcedAtAssembly(t *testing.T) {
	// A misbehaving adapter returning more rows than asked must still be
	// capped.
	fa := &fakeAdapter{
		family: schema.SourceInternal,
		result: &backend.Result{Rows: []map[string]any{
			{"_id": "ro_1"}, {"_id": "ro_2"}, {"_id": "ro_3"},
		}},
	}
	e := newTestEngine(fa)

	resp, err := e.Search(context.Background(), &search.RowSearchParams{TableID: "ta_people", Limit: 2}, nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(resp.Rows) != 2 {
		t.Errorf("Expected 2 rows, got %d", len(resp.Rows))
	}
}

func TestSearchBookmarkOnlyWhenPaginating(t *testing.T) {
	fa := &fakeAdapter{
		family: schema.SourceInternal,
		result: &backend.Result{Rows: []map[string]any{{"_id": "ro_1"}}, Bookmark: "bm", HasMore: true},
	}
	e := newTestEngine(fa)

	resp, err := e.Search(context.Background(), &search.RowSearchParams{TableID: "ta_people"}, nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if resp.Bookmark != "" {
		t.Errorf("Unpaginated response must not carry a bookmark, got %q", resp.Bookmark)
	}

	resp, err = e.Search(context.Background(), &search.RowSearchParams{TableID: "ta_people", Paginate: true}, nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if resp.Bookmark != "bm" {
		t.Errorf("Expected bookmark bm, got %q", resp.Bookmark)
	}
}

func TestSearchAdapterErrorPassthrough(t *testing.T) {
	want := &search.UnavailableError{Family: schema.SourceInternal, Err: errors.New("down")}
	e := newTestEngine(&fakeAdapter{family: schema.SourceInternal, err: want})

	_, err := e.Search(context.Background(), &search.RowSearchParams{TableID: "ta_people"}, nil)
	var uerr *search.UnavailableError
	if !errors.As(err, &uerr) {
		t.Fatalf("Expected UnavailableError, got %v", err)
	}
}

func TestSearchNoAdapterForSource(t *testing.T) {
	// Registry holds only an indexed adapter; the table wants internal.
	e := newTestEngine(&fakeAdapter{family: schema.SourceIndexed})
	_, err := e.Search(context.Background(), &search.RowSearchParams{TableID: "ta_people"}, nil)
	if err == nil {
		t.Fatal("Expected error for missing adapter")
	}
}
