package engine

import (
	"github.com/kartikbazzad/bunbase/bunsearch/internal/backend"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/coerce"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/schema"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/search"
)

// rowMetaKeys are the non-schema keys a row may carry through assembly.
var rowMetaKeys = map[string]bool{
	"_id": true,
}

// assemble applies the client-independent post-processing guarantees: rows
// hold only schema columns plus row metadata, reference fields are always
// ordered {_id} sequences, internal storage artifacts are dropped, and Limit
// is respected exactly.
func assemble(req *search.Request, result *backend.Result) *Response {
	rows := result.Rows
	if len(rows) > req.Limit {
		rows = rows[:req.Limit]
	}

	out := make([]map[string]any, 0, len(rows))
	rowKey := req.Table.RowKey()
	for _, raw := range rows {
		row := make(map[string]any, len(raw))
		for key, v := range raw {
			if key == rowKey && rowKey != "_id" {
				// Relational sources expose their primary key as _id too
				// so callers address rows uniformly.
				row["_id"] = coerce.ToString(v)
			}
			fd, inSchema := req.Table.Field(key)
			if !inSchema {
				if rowMetaKeys[key] {
					row[key] = v
				}
				continue
			}
			if fd.Type == schema.FieldLink {
				refs := coerce.NormalizeRefs(v)
				if fd.Multi() {
					row[key] = refs
				} else if len(refs) > 0 {
					row[key] = refs[0]
				} else {
					row[key] = nil
				}
				continue
			}
			row[key] = v
		}
		out = append(out, row)
	}

	resp := &Response{
		Rows:      out,
		HasMore:   result.HasMore,
		TotalRows: result.TotalRows,
	}
	if req.Paginate {
		resp.Bookmark = result.Bookmark
	}
	return resp
}
