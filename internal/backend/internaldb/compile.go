package internaldb

import (
	"fmt"
	"strings"

	"github.com/kartikbazzad/bunbase/bunsearch/internal/coerce"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/schema"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/search"
)

// jsonPath returns the JSON1 path expression for a column. Column names are
// validated against the schema before compilation; the quoting here is for
// names containing dots or spaces, not for untrusted input.
func jsonPath(col string) string {
	return `'$."` + strings.ReplaceAll(col, `"`, `""`) + `"'`
}

func fieldExpr(col string) string {
	return "json_extract(doc, " + jsonPath(col) + ")"
}

// bindValue converts a filter value to its SQLite binding per column type.
func bindValue(f schema.Field, v any) (any, error) {
	switch f.Type {
	case schema.FieldNumber, schema.FieldAutonumber:
		return coerce.ToNumber(v)
	case schema.FieldBigint:
		// Bound as int64; SQLite INTEGER is 64-bit so the comparison is
		// exact at the signed boundary, never floating point.
		return coerce.ParseBigint(v)
	case schema.FieldBoolean:
		b, err := coerce.ToBool(v)
		if err != nil {
			return nil, err
		}
		// JSON1 surfaces json booleans as 0/1.
		if b {
			return 1, nil
		}
		return 0, nil
	case schema.FieldDatetime:
		return coerce.ToDatetime(v)
	case schema.FieldLink:
		if id, ok := coerce.RefID(v); ok {
			return id, nil
		}
		return nil, fmt.Errorf("invalid reference value %v", v)
	}
	return coerce.ToString(v), nil
}

func comparable(f schema.Field) string {
	expr := fieldExpr(f.Name)
	if f.Type == schema.FieldBigint {
		return "CAST(" + expr + " AS INTEGER)"
	}
	return expr
}

// emptyExpr matches null-or-absent fields: missing key, json null, empty
// string or empty array.
func emptyExpr(col string) string {
	e := fieldExpr(col)
	t := "json_type(doc, " + jsonPath(col) + ")"
	return "(" + e + " IS NULL OR " + e + " = '' OR (" + t + " = 'array' AND json_array_length(doc, " + jsonPath(col) + ") = 0))"
}

// memberExpr matches one value inside an array field. Array members may be
// bare scalars or {_id} reference objects; both shapes are checked.
func memberExpr(col string) string {
	return "EXISTS (SELECT 1 FROM json_each(doc, " + jsonPath(col) + ") je WHERE je.value = ? OR json_extract(je.value, '$._id') = ?)"
}

// refExpr matches a single reference stored either as a bare id string or as
// an {_id} object. Binds the id twice.
func refExpr(col string) string {
	idPath := `'$."` + strings.ReplaceAll(col, `"`, `""`) + `"._id'`
	return "(" + fieldExpr(col) + " = ? OR json_extract(doc, " + idPath + ") = ?)"
}

type whereClause struct {
	conds []string
	args  []any
}

func (w *whereClause) add(cond string, args ...any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

// compileWhere translates the filter set into SQL conditions. The table_id
// restriction and any keyset condition are appended by the adapter.
func compileWhere(req *search.Request) (*whereClause, error) {
	w := &whereClause{}
	f := &req.Filters

	fieldOf := func(col string) schema.Field {
		fd, _ := req.Table.Field(col)
		return fd
	}

	bindErr := func(op, col string, err error) error {
		return &search.ValidationError{Column: col, Operator: op, Reason: err.Error()}
	}

	for col, v := range f.Equal {
		fd := fieldOf(col)
		if fd.Multi() {
			bv, err := bindValue(fd, v)
			if err != nil {
				return nil, bindErr(search.OpEqual, col, err)
			}
			w.add(memberExpr(col), bv, bv)
			continue
		}
		bv, err := bindValue(fd, v)
		if err != nil {
			return nil, bindErr(search.OpEqual, col, err)
		}
		if fd.Type == schema.FieldLink {
			w.add(refExpr(col), bv, bv)
			continue
		}
		w.add(comparable(fd)+" = ?", bv)
	}

	for col, v := range f.NotEqual {
		fd := fieldOf(col)
		bv, err := bindValue(fd, v)
		if err != nil {
			return nil, bindErr(search.OpNotEqual, col, err)
		}
		if fd.Multi() {
			// Negation over present rows only; absent rows are governed
			// solely by empty/notEmpty.
			w.add("(NOT "+emptyExpr(col)+" AND NOT "+memberExpr(col)+")", bv, bv)
			continue
		}
		if fd.Type == schema.FieldLink {
			w.add("(NOT "+emptyExpr(col)+" AND NOT "+refExpr(col)+")", bv, bv)
			continue
		}
		// Same emptiness test the empty operator uses, so '' counts as
		// absent on string columns.
		w.add("(NOT "+emptyExpr(col)+" AND "+comparable(fd)+" != ?)", bv)
	}

	for col, vals := range f.OneOf {
		fd := fieldOf(col)
		if len(vals) == 0 {
			// oneOf with no candidates can match nothing.
			w.add("1 = 0")
			continue
		}
		if fd.Type == schema.FieldLink {
			parts := make([]string, len(vals))
			var args []any
			for i, v := range vals {
				bv, err := bindValue(fd, v)
				if err != nil {
					return nil, bindErr(search.OpOneOf, col, err)
				}
				parts[i] = refExpr(col)
				args = append(args, bv, bv)
			}
			w.add("("+strings.Join(parts, " OR ")+")", args...)
			continue
		}
		placeholders := make([]string, len(vals))
		for i, v := range vals {
			bv, err := bindValue(fd, v)
			if err != nil {
				return nil, bindErr(search.OpOneOf, col, err)
			}
			placeholders[i] = "?"
			w.args = append(w.args, bv)
		}
		w.conds = append(w.conds, comparable(fd)+" IN ("+strings.Join(placeholders, ", ")+")")
	}

	for col, r := range f.Range {
		fd := fieldOf(col)
		if r.Low != nil {
			bv, err := bindValue(fd, r.Low)
			if err != nil {
				return nil, bindErr(search.OpRange, col, err)
			}
			w.add(comparable(fd)+" >= ?", bv)
		}
		if r.High != nil {
			bv, err := bindValue(fd, r.High)
			if err != nil {
				return nil, bindErr(search.OpRange, col, err)
			}
			w.add(comparable(fd)+" <= ?", bv)
		}
	}

	for col, v := range f.Fuzzy {
		w.add("LOWER("+fieldExpr(col)+") LIKE ? ESCAPE '\\'", coerce.LikePattern(strings.ToLower(coerce.ToString(v))))
	}

	for col := range f.Empty {
		w.add(emptyExpr(col))
	}
	for col := range f.NotEmpty {
		w.add("NOT " + emptyExpr(col))
	}

	addContains := func(op, col string, vals []any, mode string) error {
		fd := fieldOf(col)
		if len(vals) == 0 {
			return nil // documented identity: empty value list matches all rows
		}
		parts := make([]string, len(vals))
		var args []any
		for i, v := range vals {
			bv, err := bindValue(fd, v)
			if err != nil {
				return bindErr(op, col, err)
			}
			parts[i] = memberExpr(col)
			args = append(args, bv, bv)
		}
		joined := "(" + strings.Join(parts, " "+mode+" ") + ")"
		switch op {
		case search.OpNotContains:
			w.add("(NOT "+emptyExpr(col)+" AND NOT "+joined+")", args...)
		default:
			w.add(joined, args...)
		}
		return nil
	}

	for col, vals := range f.Contains {
		if err := addContains(search.OpContains, col, vals, "AND"); err != nil {
			return nil, err
		}
	}
	for col, vals := range f.NotContains {
		if err := addContains(search.OpNotContains, col, vals, "AND"); err != nil {
			return nil, err
		}
	}
	for col, vals := range f.ContainsAny {
		if err := addContains(search.OpContainsAny, col, vals, "OR"); err != nil {
			return nil, err
		}
	}

	return w, nil
}

// sortExpr returns the ORDER BY expression for the request's sort column.
func sortExpr(req *search.Request) string {
	fd, _ := req.Table.Field(req.Sort)
	if fd.Type == schema.FieldBigint {
		return "CAST(" + fieldExpr(req.Sort) + " AS INTEGER)"
	}
	if req.SortKind == coerce.SortNumber {
		return "CAST(" + fieldExpr(req.Sort) + " AS NUMERIC)"
	}
	return fieldExpr(req.Sort)
}
