// Package relational compiles the canonical filter into dialect-specific SQL
// and executes it over database/sql. One compiler serves every dialect; the
// Dialect interface carries the quoting, placeholder, casting and pagination
// idioms that differ between engines.
package relational

import (
	"github.com/kartikbazzad/bunbase/bunsearch/internal/schema"
)

// Dialect captures the per-engine SQL idioms.
type Dialect interface {
	Kind() schema.SourceKind
	// Quote quotes a column or table identifier.
	Quote(ident string) string
	// Placeholder returns the 1-based parameter placeholder.
	Placeholder(n int) string
	// Fuzzy returns a case-insensitive substring condition; the argument is
	// bound as a LIKE pattern.
	Fuzzy(colExpr, placeholder string) string
	// LikePattern escapes the dialect's LIKE metacharacters and wraps the
	// term for substring matching.
	LikePattern(sub string) string
	// BoolArg converts a boolean to the dialect's bound representation.
	BoolArg(b bool) any
	// BigintExpr wraps a column or placeholder for exact 64-bit integer
	// comparison, never a floating-point type.
	BigintExpr(expr string) string
	// ArrayContains returns a condition matching one value inside an
	// array-valued column, plus the bound argument for that value.
	ArrayContains(colExpr, placeholder string, value string) (string, any)
	// Paginate appends the dialect's limit/offset clause. orderBy is the
	// already-rendered ORDER BY clause ("" when the query has none).
	Paginate(sql string, orderBy string, limit, offset int) string
}
