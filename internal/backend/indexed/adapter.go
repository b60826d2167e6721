package indexed

import (
	"context"
	"errors"
	"log/slog"
	"net/url"

	"github.com/kartikbazzad/bunbase/bunsearch/internal/backend"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/coerce"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/schema"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/search"
	"github.com/kartikbazzad/bunbase/bunsearch/pkg/logger"
)

// Adapter executes searches through the full-text index service.
type Adapter struct {
	client *Client
	log    *slog.Logger
}

// New creates the indexed adapter around an index client.
func New(client *Client) *Adapter {
	return &Adapter{
		client: client,
		log:    logger.Component("adapter.indexed"),
	}
}

// Family implements backend.Adapter.
func (a *Adapter) Family() schema.SourceKind {
	return schema.SourceIndexed
}

// Capabilities implements backend.Adapter. Half-open ranges are a permanent
// gap of the index query language.
func (a *Adapter) Capabilities() search.Capabilities {
	return search.Capabilities{
		HalfOpenRange: false,
		Bookmarks:     true,
		TotalCount:    true,
	}
}

// Search implements backend.Adapter.
func (a *Adapter) Search(ctx context.Context, req *search.Request) (*backend.Result, error) {
	q, err := BuildQuery(req)
	if err != nil {
		return nil, err
	}

	sreq := searchRequest{
		Query:    q,
		Limit:    req.Limit,
		Sort:     req.Sort,
		SortDesc: req.Descending,
		SortNum:  req.SortKind == coerce.SortNumber,
		Count:    req.CountRows,
	}
	if req.Paginate {
		sreq.Bookmark = req.Bookmark
		// One extra row tells us whether another page exists without a
		// second round trip.
		sreq.Limit = req.Limit + 1
	}

	a.log.Debug("index search", "table", req.Table.ID, "query", q)

	resp, err := a.client.Search(ctx, req.Table.ID, sreq)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) || errors.Is(err, context.DeadlineExceeded) {
			return nil, &search.UnavailableError{Family: schema.SourceIndexed, Err: err}
		}
		return nil, err
	}

	result := &backend.Result{
		Rows:      a.verify(req, resp.Rows),
		TotalRows: resp.TotalRows,
	}
	if req.Paginate && len(resp.Rows) > req.Limit {
		if len(result.Rows) > req.Limit {
			result.Rows = result.Rows[:req.Limit]
		}
		result.HasMore = true
		result.Bookmark = resp.Bookmark
	}
	return result, nil
}

// verify drops index false positives. Terms are matched as text by the index,
// so typed predicates (numeric ranges, bigint equality) are re-checked here
// under the canonical comparison rules.
func (a *Adapter) verify(req *search.Request, rows []map[string]any) []map[string]any {
	kept := rows[:0]
	for _, row := range rows {
		if search.Matches(req.Table, &req.Filters, row) {
			kept = append(kept, row)
		} else {
			a.log.Debug("dropped index false positive", "table", req.Table.ID, "row", row["_id"])
		}
	}
	return kept
}
