// Package schema holds the table metadata the search engine consumes. Table
// and field definitions are owned by the platform; bunsearch only reads them,
// either over the internal platform API or from a static set in tests.
package schema

import "fmt"

// FieldType is the semantic type of a table column.
type FieldType string

const (
	FieldBoolean    FieldType = "boolean"
	FieldString     FieldType = "string"
	FieldLongform   FieldType = "longform"
	FieldNumber     FieldType = "number"
	FieldBigint     FieldType = "bigint"
	FieldDatetime   FieldType = "datetime"
	FieldOptions    FieldType = "options" // multi-valued enum, stored as an array
	FieldLink       FieldType = "link"    // reference to rows of another table
	FieldAutonumber FieldType = "autonumber"
)

// LinkKind distinguishes how a link field stores its references.
type LinkKind string

const (
	// LinkUserSingle and LinkUserMulti reference user records.
	LinkUserSingle LinkKind = "user"
	LinkUserMulti  LinkKind = "users"
	// LinkLegacySingle is the deprecated representation that wraps a single
	// reference in a one-element array. Reads normalize it; new tables never
	// get it.
	LinkLegacySingle LinkKind = "legacy-single"
	LinkMulti        LinkKind = "multi"
)

// Field describes a single column.
type Field struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	LinkKind LinkKind  `json:"linkKind,omitempty"`
}

// Multi reports whether the field holds an ordered collection of values.
func (f Field) Multi() bool {
	if f.Type == FieldOptions {
		return true
	}
	if f.Type == FieldLink {
		return f.LinkKind == LinkUserMulti || f.LinkKind == LinkMulti || f.LinkKind == LinkLegacySingle
	}
	return false
}

// SourceKind selects the adapter family that executes searches for a table.
type SourceKind string

const (
	SourceIndexed  SourceKind = "indexed"  // internal store behind the full-text index
	SourceInternal SourceKind = "internal" // internal store behind the structured query layer
	SourcePostgres SourceKind = "postgres"
	SourceMySQL    SourceKind = "mysql"
	SourceMSSQL    SourceKind = "mssql"
)

// Relational reports whether the kind maps to a SQL dialect adapter.
func (k SourceKind) Relational() bool {
	switch k {
	case SourcePostgres, SourceMySQL, SourceMSSQL:
		return true
	}
	return false
}

// Table is the schema of one logical table.
type Table struct {
	ID     string           `json:"id"`
	Name   string           `json:"name"`
	Source SourceKind       `json:"source"`
	Fields map[string]Field `json:"fields"`
	// PrimaryKey is the physical row identifier column for relational
	// sources. Internal sources always use _id.
	PrimaryKey string `json:"primaryKey,omitempty"`
}

// Field returns the descriptor for a column, if the table has it.
func (t *Table) Field(name string) (Field, bool) {
	f, ok := t.Fields[name]
	return f, ok
}

// RowKey returns the column that uniquely identifies a row, used as the
// deterministic sort tie-break.
func (t *Table) RowKey() string {
	if t.Source.Relational() && t.PrimaryKey != "" {
		return t.PrimaryKey
	}
	return "_id"
}

// Provider resolves a table schema by id.
type Provider interface {
	Table(id string) (*Table, error)
}

// ErrTableNotFound is returned by providers when the table id is unknown.
type ErrTableNotFound struct {
	ID string
}

func (e *ErrTableNotFound) Error() string {
	return fmt.Sprintf("table %q not found", e.ID)
}

// Static is a fixed in-memory provider, used in tests and single-binary
// deployments.
type Static map[string]*Table

// Table implements Provider.
func (s Static) Table(id string) (*Table, error) {
	t, ok := s[id]
	if !ok {
		return nil, &ErrTableNotFound{ID: id}
	}
	return t, nil
}
