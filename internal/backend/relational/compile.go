package relational

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kartikbazzad/bunbase/bunsearch/internal/coerce"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/schema"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/search"
)

// Query is a compiled SQL statement with its bound arguments.
type Query struct {
	SQL  string
	Args []any
}

type compiler struct {
	d     Dialect
	conds []string
	args  []any
}

// ph binds an argument and returns its placeholder.
func (c *compiler) ph(arg any) string {
	c.args = append(c.args, arg)
	return c.d.Placeholder(len(c.args))
}

func (c *compiler) add(cond string) {
	c.conds = append(c.conds, cond)
}

// bindArg converts a filter value to the driver-level argument for a column.
func (c *compiler) bindArg(f schema.Field, v any) (any, error) {
	switch f.Type {
	case schema.FieldNumber, schema.FieldAutonumber:
		return coerce.ToNumber(v)
	case schema.FieldBigint:
		// int64 binding keeps the comparison exact; the column side is
		// cast to a 64-bit integer type, never floating point.
		return coerce.ParseBigint(v)
	case schema.FieldBoolean:
		b, err := coerce.ToBool(v)
		if err != nil {
			return nil, err
		}
		return c.d.BoolArg(b), nil
	case schema.FieldDatetime:
		return coerce.ToTime(v)
	case schema.FieldLink:
		if id, ok := coerce.RefID(v); ok {
			return id, nil
		}
		return nil, fmt.Errorf("invalid reference value %v", v)
	}
	return coerce.ToString(v), nil
}

func (c *compiler) colExpr(f schema.Field) string {
	expr := c.d.Quote(f.Name)
	if f.Type == schema.FieldBigint {
		expr = c.d.BigintExpr(expr)
	}
	return expr
}

// emptyCond matches null-or-absent values for the column's storage shape.
func (c *compiler) emptyCond(f schema.Field) string {
	col := c.d.Quote(f.Name)
	switch {
	case f.Multi():
		return "(" + col + " IS NULL OR " + col + " IN ('[]', ''))"
	case f.Type == schema.FieldString || f.Type == schema.FieldLongform:
		return "(" + col + " IS NULL OR " + col + " = '')"
	}
	return col + " IS NULL"
}

func (c *compiler) containsMember(f schema.Field, v any) (string, error) {
	var member string
	if f.Type == schema.FieldLink {
		id, ok := coerce.RefID(v)
		if !ok {
			return "", fmt.Errorf("invalid reference value %v", v)
		}
		member = id
	} else {
		member = coerce.ToString(v)
	}
	col := c.d.Quote(f.Name)
	c.args = append(c.args, nil) // reserve the slot so the placeholder number is right
	cond, arg := c.d.ArrayContains(col, c.d.Placeholder(len(c.args)), member)
	c.args[len(c.args)-1] = arg
	return cond, nil
}

// Compile translates a normalized request into one dialect-specific SELECT.
func Compile(req *search.Request, d Dialect, offset int) (*Query, error) {
	c := &compiler{d: d}
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
			cond, err := c.containsMember(fd, v)
			if err != nil {
				return nil, bindErr(search.OpEqual, col, err)
			}
			c.add(cond)
			continue
		}
		arg, err := c.bindArg(fd, v)
		if err != nil {
			return nil, bindErr(search.OpEqual, col, err)
		}
		c.add(c.colExpr(fd) + " = " + c.ph(arg))
	}

	for col, v := range f.NotEqual {
		fd := fieldOf(col)
		if fd.Multi() {
			cond, err := c.containsMember(fd, v)
			if err != nil {
				return nil, bindErr(search.OpNotEqual, col, err)
			}
			c.add("(NOT " + c.emptyCond(fd) + " AND NOT " + cond + ")")
			continue
		}
		arg, err := c.bindArg(fd, v)
		if err != nil {
			return nil, bindErr(search.OpNotEqual, col, err)
		}
		// Absent rows never match a negative comparison; only empty/notEmpty
		// reason about absence. The guard is the same emptiness test the
		// empty operator uses, so '' counts as absent on string columns.
		c.add("(NOT " + c.emptyCond(fd) + " AND " + c.colExpr(fd) + " <> " + c.ph(arg) + ")")
	}

	for col, vals := range f.OneOf {
		fd := fieldOf(col)
		if len(vals) == 0 {
			c.add("1 = 0")
			continue
		}
		phs := make([]string, len(vals))
		for i, v := range vals {
			arg, err := c.bindArg(fd, v)
			if err != nil {
				return nil, bindErr(search.OpOneOf, col, err)
			}
			phs[i] = c.ph(arg)
		}
		c.add(c.colExpr(fd) + " IN (" + strings.Join(phs, ", ") + ")")
	}

	for col, r := range f.Range {
		fd := fieldOf(col)
		if r.Low != nil {
			arg, err := c.bindArg(fd, r.Low)
			if err != nil {
				return nil, bindErr(search.OpRange, col, err)
			}
			c.add(c.colExpr(fd) + " >= " + c.ph(arg))
		}
		if r.High != nil {
			arg, err := c.bindArg(fd, r.High)
			if err != nil {
				return nil, bindErr(search.OpRange, col, err)
			}
			c.add(c.colExpr(fd) + " <= " + c.ph(arg))
		}
	}

	for col, v := range f.Fuzzy {
		fd := fieldOf(col)
		pattern := c.d.LikePattern(coerce.ToString(v))
		c.args = append(c.args, pattern)
		c.add(c.d.Fuzzy(c.d.Quote(fd.Name), c.d.Placeholder(len(c.args))))
	}

	for col := range f.Empty {
		c.add(c.emptyCond(fieldOf(col)))
	}
	for col := range f.NotEmpty {
		c.add("NOT " + c.emptyCond(fieldOf(col)))
	}

	addContains := func(op, col string, vals []any, joiner string, negate bool) error {
		fd := fieldOf(col)
		if len(vals) == 0 {
			return nil // empty value list matches every row
		}
		parts := make([]string, len(vals))
		for i, v := range vals {
			cond, err := c.containsMember(fd, v)
			if err != nil {
				return bindErr(op, col, err)
			}
			parts[i] = cond
		}
		joined := "(" + strings.Join(parts, " "+joiner+" ") + ")"
		if negate {
			c.add("(NOT " + c.emptyCond(fd) + " AND NOT " + joined + ")")
		} else {
			c.add(joined)
		}
		return nil
	}

	for col, vals := range f.Contains {
		if err := addContains(search.OpContains, col, vals, "AND", false); err != nil {
			return nil, err
		}
	}
	for col, vals := range f.NotContains {
		if err := addContains(search.OpNotContains, col, vals, "AND", true); err != nil {
			return nil, err
		}
	}
	for col, vals := range f.ContainsAny {
		if err := addContains(search.OpContainsAny, col, vals, "OR", false); err != nil {
			return nil, err
		}
	}

	// Projection: schema columns plus the row key.
	cols := make([]string, 0, len(req.Table.Fields)+1)
	seen := map[string]bool{}
	rowKey := req.Table.RowKey()
	cols = append(cols, d.Quote(rowKey))
	seen[rowKey] = true
	names := make([]string, 0, len(req.Table.Fields))
	for name := range req.Table.Fields {
		names = append(names, name)
	}
	// Deterministic column order keeps compiled SQL stable across runs.
	sort.Strings(names)
	for _, name := range names {
		if !seen[name] {
			cols = append(cols, d.Quote(name))
			seen[name] = true
		}
	}

	tableName := req.Table.Name
	if tableName == "" {
		tableName = req.Table.ID
	}
	sql := "SELECT " + strings.Join(cols, ", ") + " FROM " + d.Quote(tableName)
	if len(c.conds) > 0 {
		sql += " WHERE " + strings.Join(c.conds, " AND ")
	}

	dir := " ASC"
	if req.Descending {
		dir = " DESC"
	}
	var orderBy string
	if req.Sort != "" {
		// Row key tie-break keeps paginated pages disjoint when the sort
		// column is not unique.
		orderBy = " ORDER BY " + d.Quote(req.Sort) + dir + ", " + d.Quote(rowKey) + dir
	} else {
		// Creation order via the row key, so repeated identical queries
		// return rows in the same order.
		orderBy = " ORDER BY " + d.Quote(rowKey) + dir
	}

	sql = d.Paginate(sql, orderBy, req.Limit+1, offset)

	return &Query{SQL: sql, Args: c.args}, nil
}

// CompileCount builds the COUNT(*) companion of Compile.
func CompileCount(req *search.Request, d Dialect) (*Query, error) {
	full, err := Compile(req, d, 0)
	if err != nil {
		return nil, err
	}
	// Rebuild with the same WHERE but a count projection; cheaper than
	// threading a flag through every condition builder.
	c := &compiler{d: d}
	tableName := req.Table.Name
	if tableName == "" {
		tableName = req.Table.ID
	}
	sql := "SELECT COUNT(*) FROM " + c.d.Quote(tableName)
	if i := strings.Index(full.SQL, " WHERE "); i >= 0 {
		rest := full.SQL[i:]
		if j := strings.Index(rest, " ORDER BY "); j >= 0 {
			rest = rest[:j]
		}
		sql += rest
	}
	return &Query{SQL: sql, Args: full.Args}, nil
}
