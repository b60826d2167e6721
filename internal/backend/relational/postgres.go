package relational

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kartikbazzad/bunbase/bunsearch/internal/coerce"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/schema"
)

// Postgres is the Postgres-family dialect.
type Postgres struct{}

func (Postgres) Kind() schema.SourceKind {
	return schema.SourcePostgres
}

func (Postgres) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (Postgres) Placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func (Postgres) Fuzzy(colExpr, placeholder string) string {
	return colExpr + " ILIKE " + placeholder
}

func (Postgres) LikePattern(sub string) string {
	return coerce.LikePattern(sub)
}

func (Postgres) BoolArg(b bool) any {
	return b
}

func (Postgres) BigintExpr(expr string) string {
	return "CAST(" + expr + " AS BIGINT)"
}

func (Postgres) ArrayContains(colExpr, placeholder string, value string) (string, any) {
	// Array columns are stored as jsonb; containment of a one-element
	// array matches one member.
	arr, _ := json.Marshal([]string{value})
	return "CAST(" + colExpr + " AS JSONB) @> CAST(" + placeholder + " AS JSONB)", string(arr)
}

func (Postgres) Paginate(sql string, orderBy string, limit, offset int) string {
	sql += orderBy
	sql += fmt.Sprintf(" LIMIT %d", limit)
	if offset > 0 {
		sql += fmt.Sprintf(" OFFSET %d", offset)
	}
	return sql
}
