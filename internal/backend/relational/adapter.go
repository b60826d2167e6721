package relational

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/kartikbazzad/bunbase/bunsearch/internal/backend"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/schema"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/search"
	"github.com/kartikbazzad/bunbase/bunsearch/pkg/logger"
)

// Querier is the slice of database/sql the adapter needs; *sql.DB satisfies
// it. Tests compile SQL without a server by not calling Search at all, or by
// passing a stub.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Adapter executes searches against one relational dialect.
type Adapter struct {
	dialect Dialect
	db      Querier
	log     *slog.Logger
}

// New creates a relational adapter for the dialect over an open connection.
func New(dialect Dialect, db Querier) *Adapter {
	return &Adapter{
		dialect: dialect,
		db:      db,
		log:     logger.Component("adapter." + string(dialect.Kind())),
	}
}

// Family implements backend.Adapter.
func (a *Adapter) Family() schema.SourceKind {
	return a.dialect.Kind()
}

// Capabilities implements backend.Adapter. Relational pagination is
// offset-based, so the bookmark is an encoded offset rather than a keyset.
func (a *Adapter) Capabilities() search.Capabilities {
	return search.Capabilities{
		HalfOpenRange: true,
		Bookmarks:     true,
		TotalCount:    true,
	}
}

// Search implements backend.Adapter.
func (a *Adapter) Search(ctx context.Context, req *search.Request) (*backend.Result, error) {
	offset := 0
	if req.Paginate && req.Bookmark != "" {
		n, err := strconv.Atoi(req.Bookmark)
		if err != nil || n < 0 {
			return nil, &search.ValidationError{Operator: "paginate", Reason: "malformed bookmark"}
		}
		offset = n
	}

	q, err := Compile(req, a.dialect, offset)
	if err != nil {
		return nil, err
	}

	a.log.Debug("relational search", "table", req.Table.ID, "sql", q.SQL)

	rows, err := a.db.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, a.wrapErr(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	result := &backend.Result{}
	for rows.Next() {
		if len(result.Rows) == req.Limit {
			result.HasMore = true
			break
		}
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = a.normalizeValue(req.Table, col, raw[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, a.wrapErr(err)
	}

	if req.Paginate && result.HasMore {
		result.Bookmark = strconv.Itoa(offset + req.Limit)
	}

	if req.CountRows {
		cq, err := CompileCount(req, a.dialect)
		if err != nil {
			return nil, err
		}
		var total int
		if err := a.db.QueryRowContext(ctx, cq.SQL, cq.Args...).Scan(&total); err != nil {
			return nil, a.wrapErr(err)
		}
		result.TotalRows = &total
	}

	return result, nil
}

// normalizeValue converts driver output to the engine's canonical values so
// dialect quirks (tinyint booleans, byte-slice text, bigint columns) never
// leak to the caller.
func (a *Adapter) normalizeValue(table *schema.Table, col string, v any) any {
	if v == nil {
		return nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}

	fd, ok := table.Field(col)
	if !ok {
		return v
	}
	// Multi-valued columns (options, multi links) are stored as JSON array
	// text; decode them so callers see a list rather than the raw blob.
	if fd.Multi() {
		if s, ok := v.(string); ok {
			var list []any
			if err := json.Unmarshal([]byte(s), &list); err == nil {
				return list
			}
		}
		return v
	}
	switch fd.Type {
	case schema.FieldBoolean:
		switch t := v.(type) {
		case bool:
			return t
		case int64:
			return t != 0
		case string:
			return t == "1" || t == "true"
		}
	case schema.FieldBigint:
		switch t := v.(type) {
		case int64:
			return strconv.FormatInt(t, 10)
		case string:
			return t
		}
	case schema.FieldDatetime:
		if t, ok := v.(time.Time); ok {
			return t.UTC().Format(time.RFC3339Nano)
		}
	}
	return v
}

func (a *Adapter) wrapErr(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, sql.ErrTxDone) {
		return &search.UnavailableError{Family: a.dialect.Kind(), Err: err}
	}
	return fmt.Errorf("%s query failed: %w", a.dialect.Kind(), err)
}
