package internaldb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kartikbazzad/bunbase/bunsearch/internal/backend"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/schema"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/search"
	"github.com/kartikbazzad/bunbase/bunsearch/pkg/logger"
)

// Adapter executes searches against the internal structured store.
type Adapter struct {
	store *Store
	log   *slog.Logger
}

// New creates the structured-internal adapter.
func New(store *Store) *Adapter {
	return &Adapter{
		store: store,
		log:   logger.Component("adapter.internal"),
	}
}

// Family implements backend.Adapter.
func (a *Adapter) Family() schema.SourceKind {
	return schema.SourceInternal
}

// Capabilities implements backend.Adapter.
func (a *Adapter) Capabilities() search.Capabilities {
	return search.Capabilities{
		HalfOpenRange: true,
		Bookmarks:     true,
		TotalCount:    true,
	}
}

// Search implements backend.Adapter.
func (a *Adapter) Search(ctx context.Context, req *search.Request) (*backend.Result, error) {
	where, err := compileWhere(req)
	if err != nil {
		return nil, err
	}

	conds := append([]string{"table_id = ?"}, where.conds...)
	args := append([]any{req.Table.ID}, where.args...)

	// Keyset continuation from a previous page.
	if req.Paginate && req.Bookmark != "" {
		bm, err := decodeBookmark(req.Bookmark)
		if err != nil {
			return nil, &search.ValidationError{Operator: "paginate", Reason: err.Error()}
		}
		cond, keyArgs, err := a.keysetCond(req, bm)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
		args = append(args, keyArgs...)
	}

	dir := "ASC"
	if req.Descending {
		dir = "DESC"
	}
	var order string
	var sel string
	if req.Sort != "" {
		sel = "SELECT seq, row_id, doc, " + sortExpr(req) + " FROM rows"
		// The sequence tie-break keeps the order total when the sort
		// column is not unique.
		order = fmt.Sprintf(" ORDER BY %s %s, seq %s", sortExpr(req), dir, dir)
	} else {
		sel = "SELECT seq, row_id, doc, NULL FROM rows"
		order = fmt.Sprintf(" ORDER BY seq %s", dir)
	}

	q := sel + " WHERE " + strings.Join(conds, " AND ") + order +
		fmt.Sprintf(" LIMIT %d", req.Limit+1)

	a.log.Debug("internal search", "table", req.Table.ID, "sql", q)

	rows, err := a.store.db.QueryContext(ctx, q, args...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, &search.UnavailableError{Family: schema.SourceInternal, Err: err}
		}
		return nil, fmt.Errorf("internal store query failed: %w", err)
	}
	defer rows.Close()

	result := &backend.Result{}
	var lastSeq int64
	var lastSort any
	for rows.Next() {
		var seq int64
		var rowID, doc string
		var sortVal any
		if err := rows.Scan(&seq, &rowID, &doc, &sortVal); err != nil {
			return nil, fmt.Errorf("internal store scan failed: %w", err)
		}
		if len(result.Rows) == req.Limit {
			result.HasMore = true
			break
		}
		var parsed map[string]any
		if err := json.Unmarshal([]byte(doc), &parsed); err != nil {
			return nil, fmt.Errorf("corrupt row document %s: %w", rowID, err)
		}
		parsed["_id"] = rowID
		result.Rows = append(result.Rows, parsed)
		lastSeq, lastSort = seq, sortVal
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("internal store iteration failed: %w", err)
	}

	if req.Paginate && result.HasMore {
		result.Bookmark = encodeBookmark(bookmark{SortValue: lastSort, Seq: lastSeq})
	}

	if req.CountRows {
		countQ := "SELECT COUNT(*) FROM rows WHERE table_id = ?" // unfiltered by keyset
		countArgs := []any{req.Table.ID}
		if len(where.conds) > 0 {
			countQ = "SELECT COUNT(*) FROM rows WHERE " + strings.Join(append([]string{"table_id = ?"}, where.conds...), " AND ")
			countArgs = append(countArgs, where.args...)
		}
		var total int
		if err := a.store.db.QueryRowContext(ctx, countQ, countArgs...).Scan(&total); err != nil {
			return nil, fmt.Errorf("internal store count failed: %w", err)
		}
		result.TotalRows = &total
	}

	return result, nil
}

// keysetCond builds the continuation predicate for a decoded bookmark.
func (a *Adapter) keysetCond(req *search.Request, bm bookmark) (string, []any, error) {
	cmp := ">"
	if req.Descending {
		cmp = "<"
	}
	if req.Sort == "" {
		return fmt.Sprintf("seq %s ?", cmp), []any{bm.Seq}, nil
	}

	se := sortExpr(req)

	// Rows without the sort column sort as NULL: first ascending, last
	// descending. A bookmark taken on such a row continues within the NULL
	// run by sequence, then (ascending only) into the non-NULL rows.
	if bm.SortValue == nil {
		if req.Descending {
			return fmt.Sprintf("(%s IS NULL AND seq < ?)", se), []any{bm.Seq}, nil
		}
		return fmt.Sprintf("((%s IS NULL AND seq > ?) OR %s IS NOT NULL)", se, se), []any{bm.Seq}, nil
	}

	fd, _ := req.Table.Field(req.Sort)
	sv := bm.SortValue
	if num, ok := sv.(json.Number); ok {
		sv = num.String()
	}
	bv, err := bindValue(fd, sv)
	if err != nil {
		return "", nil, &search.ValidationError{Operator: "paginate", Column: req.Sort, Reason: "bookmark does not match sort column: " + err.Error()}
	}
	cond := fmt.Sprintf("(%s %s ? OR (%s = ? AND seq %s ?))", se, cmp, se, cmp)
	args := []any{bv, bv, bm.Seq}
	if req.Descending {
		// NULL rows still lie ahead when descending.
		cond = fmt.Sprintf("(%s %s ? OR (%s = ? AND seq %s ?) OR %s IS NULL)", se, cmp, se, cmp, se)
	}
	return cond, args, nil
}
