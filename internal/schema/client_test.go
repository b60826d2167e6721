package schema

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/tables/ta_people/schema" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(Table{
			ID:     "ta_people",
			Name:   "people",
			Source: SourceInternal,
			Fields: map[string]Field{
				"name": {Name: "name", Type: FieldString},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	table, err := c.Table("ta_people")
	if err != nil {
		t.Fatalf("Table failed: %v", err)
	}
	if table.Source != SourceInternal {
		t.Errorf("Expected internal source, got %s", table.Source)
	}
	if _, ok := table.Field("name"); !ok {
		t.Error("Expected name field in decoded schema")
	}

	_, err = c.Table("ta_ghost")
	var nf *ErrTableNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("Expected ErrTableNotFound, got %v", err)
	}
	if nf.ID != "ta_ghost" {
		t.Errorf("Error should carry the table id, got %q", nf.ID)
	}
}

func TestTableRowKey(t *testing.T) {
	internal := &Table{Source: SourceInternal, PrimaryKey: "id"}
	if internal.RowKey() != "_id" {
		t.Errorf("Internal sources always key on _id, got %q", internal.RowKey())
	}

	pg := &Table{Source: SourcePostgres, PrimaryKey: "person_id"}
	if pg.RowKey() != "person_id" {
		t.Errorf("Relational sources key on the primary key, got %q", pg.RowKey())
	}

	bare := &Table{Source: SourcePostgres}
	if bare.RowKey() != "_id" {
		t.Errorf("Missing primary key falls back to _id, got %q", bare.RowKey())
	}
}

func TestFieldMulti(t *testing.T) {
	tests := []struct {
		field Field
		want  bool
	}{
		{Field{Type: FieldOptions}, true},
		{Field{Type: FieldLink, LinkKind: LinkUserMulti}, true},
		{Field{Type: FieldLink, LinkKind: LinkMulti}, true},
		{Field{Type: FieldLink, LinkKind: LinkLegacySingle}, true},
		{Field{Type: FieldLink, LinkKind: LinkUserSingle}, false},
		{Field{Type: FieldString}, false},
	}
	for _, tt := range tests {
		if got := tt.field.Multi(); got != tt.want {
			t.Errorf("Multi(%s/%s) = %v, want %v", tt.field.Type, tt.field.LinkKind, got, tt.want)
		}
	}
}
