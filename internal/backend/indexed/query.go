// Package indexed executes searches against the internal full-text index
// service. The canonical filter is compiled into the index query language and
// shipped over the service's internal HTTP API; the index itself lives with
// the document store.
package indexed

import (
	"fmt"
	"strings"

	"github.com/kartikbazzad/bunbase/bunsearch/internal/coerce"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/schema"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/search"
)

// specialChars are the query-language metacharacters that must be escaped
// inside terms.
const specialChars = `+-&|!(){}[]^"~*?:\/ `

func escapeTerm(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(specialChars, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func term(f schema.Field, v any) string {
	if f.Type == schema.FieldLink {
		if id, ok := coerce.RefID(v); ok {
			return escapeTerm(id)
		}
	}
	switch f.Type {
	case schema.FieldNumber, schema.FieldBigint, schema.FieldAutonumber, schema.FieldBoolean:
		return coerce.ToString(v)
	}
	return escapeTerm(coerce.ToString(v))
}

// BuildQuery compiles the filter set into an index query string. All clauses
// are conjoined; the match-all query is returned for an unconstrained search.
func BuildQuery(req *search.Request) (string, error) {
	var clauses []string
	f := &req.Filters

	fieldOf := func(col string) schema.Field {
		fd, _ := req.Table.Field(col)
		return fd
	}

	for col, v := range f.Equal {
		clauses = append(clauses, fmt.Sprintf("%s:%s", escapeTerm(col), term(fieldOf(col), v)))
	}
	for col, v := range f.NotEqual {
		// Negation over present rows: the field must still hold some value.
		clauses = append(clauses, fmt.Sprintf("(%s:[* TO *] AND !%s:%s)", escapeTerm(col), escapeTerm(col), term(fieldOf(col), v)))
	}
	for col, vals := range f.OneOf {
		if len(vals) == 0 {
			clauses = append(clauses, "!*:*")
			continue
		}
		terms := make([]string, len(vals))
		for i, v := range vals {
			terms[i] = term(fieldOf(col), v)
		}
		clauses = append(clauses, fmt.Sprintf("%s:(%s)", escapeTerm(col), strings.Join(terms, " OR ")))
	}
	for col, r := range f.Range {
		if r.HalfOpen() {
			// Normalization already rejects these; keep the guard so a
			// request can never slip through to the index service.
			return "", &search.UnsupportedError{
				Column:   col,
				Operator: search.OpRange,
				Family:   schema.SourceIndexed,
				Reason:   "range requires both low and high bounds",
			}
		}
		fd := fieldOf(col)
		clauses = append(clauses, fmt.Sprintf("%s:[%s TO %s]", escapeTerm(col), term(fd, r.Low), term(fd, r.High)))
	}
	for col, v := range f.Fuzzy {
		sub := strings.ToLower(coerce.ToString(v))
		clauses = append(clauses, fmt.Sprintf("%s:*%s*", escapeTerm(col), escapeTerm(sub)))
	}
	for col := range f.Empty {
		clauses = append(clauses, fmt.Sprintf("!%s:[* TO *]", escapeTerm(col)))
	}
	for col := range f.NotEmpty {
		clauses = append(clauses, fmt.Sprintf("%s:[* TO *]", escapeTerm(col)))
	}
	for col, vals := range f.Contains {
		if len(vals) == 0 {
			continue // empty value list matches every row
		}
		terms := make([]string, len(vals))
		for i, v := range vals {
			terms[i] = term(fieldOf(col), v)
		}
		clauses = append(clauses, fmt.Sprintf("%s:(%s)", escapeTerm(col), strings.Join(terms, " AND ")))
	}
	for col, vals := range f.NotContains {
		if len(vals) == 0 {
			continue
		}
		terms := make([]string, len(vals))
		for i, v := range vals {
			terms[i] = term(fieldOf(col), v)
		}
		clauses = append(clauses, fmt.Sprintf("(%s:[* TO *] AND !%s:(%s))", escapeTerm(col), escapeTerm(col), strings.Join(terms, " AND ")))
	}
	for col, vals := range f.ContainsAny {
		if len(vals) == 0 {
			continue
		}
		terms := make([]string, len(vals))
		for i, v := range vals {
			terms[i] = term(fieldOf(col), v)
		}
		clauses = append(clauses, fmt.Sprintf("%s:(%s)", escapeTerm(col), strings.Join(terms, " OR ")))
	}

	if len(clauses) == 0 {
		return "*:*", nil
	}
	return strings.Join(clauses, " AND "), nil
}
