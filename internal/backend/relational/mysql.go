package relational

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kartikbazzad/bunbase/bunsearch/internal/coerce"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/schema"
)

// MySQL is the MySQL/MariaDB-family dialect.
type MySQL struct{}

func (MySQL) Kind() schema.SourceKind {
	return schema.SourceMySQL
}

func (MySQL) Quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (MySQL) Placeholder(int) string {
	return "?"
}

func (MySQL) Fuzzy(colExpr, placeholder string) string {
	return "LOWER(" + colExpr + ") LIKE LOWER(" + placeholder + ")"
}

func (MySQL) LikePattern(sub string) string {
	return coerce.LikePattern(sub)
}

func (MySQL) BoolArg(b bool) any {
	// MySQL booleans are TINYINT(1); normalize here, not in the caller.
	if b {
		return 1
	}
	return 0
}

func (MySQL) BigintExpr(expr string) string {
	return "CAST(" + expr + " AS SIGNED)"
}

func (MySQL) ArrayContains(colExpr, placeholder string, value string) (string, any) {
	candidate, _ := json.Marshal(value)
	return "JSON_CONTAINS(" + colExpr + ", " + placeholder + ")", string(candidate)
}

func (MySQL) Paginate(sql string, orderBy string, limit, offset int) string {
	sql += orderBy
	sql += fmt.Sprintf(" LIMIT %d", limit)
	if offset > 0 {
		sql += fmt.Sprintf(" OFFSET %d", offset)
	}
	return sql
}
