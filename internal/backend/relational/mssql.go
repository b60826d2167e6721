package relational

import (
	"fmt"
	"strings"

	"github.com/kartikbazzad/bunbase/bunsearch/internal/schema"
)

// MSSQL is the SQL-Server-family dialect.
type MSSQL struct{}

func (MSSQL) Kind() schema.SourceKind {
	return schema.SourceMSSQL
}

func (MSSQL) Quote(ident string) string {
	return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
}

func (MSSQL) Placeholder(n int) string {
	return fmt.Sprintf("@p%d", n)
}

func (MSSQL) Fuzzy(colExpr, placeholder string) string {
	// SQL Server has no default LIKE escape character.
	return "LOWER(" + colExpr + ") LIKE LOWER(" + placeholder + ") ESCAPE '\\'"
}

func (MSSQL) LikePattern(sub string) string {
	// SQL Server additionally treats '[' as a character-class opener; an
	// unescaped bracket turns the term into a wildcard class.
	sub = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`, `[`, `\[`).Replace(sub)
	return "%" + sub + "%"
}

func (MSSQL) BoolArg(b bool) any {
	// BIT column; the driver does not accept Go bools for BIT params on
	// older server versions, so bind 1/0.
	if b {
		return 1
	}
	return 0
}

func (MSSQL) BigintExpr(expr string) string {
	return "CAST(" + expr + " AS BIGINT)"
}

func (m MSSQL) ArrayContains(colExpr, placeholder string, value string) (string, any) {
	// No JSON containment operator; arrays are stored as JSON text and
	// matched on the quoted member literal.
	return colExpr + " LIKE " + placeholder + " ESCAPE '\\'", m.LikePattern(`"` + value + `"`)
}

func (MSSQL) Paginate(sql string, orderBy string, limit, offset int) string {
	// OFFSET/FETCH is only legal after ORDER BY.
	if orderBy == "" {
		orderBy = " ORDER BY (SELECT NULL)"
	}
	sql += orderBy
	sql += fmt.Sprintf(" OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", offset, limit)
	return sql
}
