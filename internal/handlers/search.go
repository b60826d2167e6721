// Package handlers exposes the search engine over HTTP.
package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"github.com/kartikbazzad/bunbase/bunsearch/internal/binding"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/engine"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/schema"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/search"
	apperrors "github.com/kartikbazzad/bunbase/bunsearch/pkg/errors"
	"github.com/kartikbazzad/bunbase/bunsearch/pkg/logger"
)

// requestSchema validates the raw body shape before decoding, so malformed
// requests get a named, early 400 instead of a decode panic deeper down.
const requestSchema = `{
	"type": "object",
	"properties": {
		"tableId": {"type": "string"},
		"query": {"type": "object"},
		"sort": {"type": "string"},
		"sortType": {"enum": ["string", "number"]},
		"sortOrder": {"enum": ["ascending", "descending"]},
		"limit": {"type": "integer", "minimum": 0},
		"paginate": {"type": "boolean"},
		"bookmark": {"type": "string"},
		"countRows": {"type": "boolean"},
		"onEmptyFilter": {"enum": ["returnAll", "returnNone"]}
	},
	"additionalProperties": false
}`

// SessionProvider resolves the caller's binding context. The engine never
// reads session state ambiently; it is handed in per request.
type SessionProvider interface {
	Session(c *gin.Context) (*binding.Context, error)
}

// HeaderSession reads the session from the X-Bunbase-Session header: base64
// JSON {user, snippets} attached by the platform gateway.
type HeaderSession struct{}

// Session implements SessionProvider.
func (HeaderSession) Session(c *gin.Context) (*binding.Context, error) {
	bctx := &binding.Context{Now: time.Now().UTC()}

	raw := c.GetHeader("X-Bunbase-Session")
	if raw == "" {
		return bctx, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, apperrors.BadRequest("invalid session header")
	}
	var payload struct {
		User     map[string]any    `json:"user"`
		Snippets []binding.Snippet `json:"snippets"`
	}
	if err := json.Unmarshal(decoded, &payload); err != nil {
		return nil, apperrors.BadRequest("invalid session header")
	}
	bctx.User = payload.User
	bctx.Snippets = payload.Snippets
	return bctx, nil
}

// SearchHandler serves row searches.
type SearchHandler struct {
	engine   *engine.Engine
	sessions SessionProvider
	schema   *gojsonschema.Schema
	log      *slog.Logger
}

// NewSearchHandler creates the handler.
func NewSearchHandler(eng *engine.Engine, sessions SessionProvider) (*SearchHandler, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(requestSchema))
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = HeaderSession{}
	}
	return &SearchHandler{
		engine:   eng,
		sessions: sessions,
		schema:   compiled,
		log:      logger.Component("handlers.search"),
	}, nil
}

// Search handles POST /v1/tables/:tableID/rows/search.
func (h *SearchHandler) Search(c *gin.Context) {
	reqID := uuid.NewString()
	tableID := c.Param("tableID")

	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	if len(body) == 0 {
		body = []byte("{}")
	}

	result, err := h.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body is not valid JSON"})
		return
	}
	if !result.Valid() {
		errs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid search request", "details": errs})
		return
	}

	var params search.RowSearchParams
	if err := json.Unmarshal(body, &params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid search request"})
		return
	}
	params.TableID = tableID

	bctx, err := h.sessions.Session(c)
	if err != nil {
		h.respondError(c, reqID, err)
		return
	}

	resp, err := h.engine.Search(c.Request.Context(), &params, bctx)
	if err != nil {
		h.respondError(c, reqID, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *SearchHandler) respondError(c *gin.Context, reqID string, err error) {
	var notFound *schema.ErrTableNotFound
	var valErr *search.ValidationError
	var unsupErr *search.UnsupportedError
	var unavErr *search.UnavailableError
	var bindErr *binding.Error
	var appErr *apperrors.AppError

	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &valErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    valErr.Error(),
			"operator": valErr.Operator,
			"column":   valErr.Column,
		})
	case errors.As(err, &unsupErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    unsupErr.Error(),
			"operator": unsupErr.Operator,
			"column":   unsupErr.Column,
			"source":   unsupErr.Family,
		})
	case errors.As(err, &bindErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      bindErr.Error(),
			"expression": bindErr.Expression,
		})
	case errors.As(err, &unavErr):
		h.log.Warn("backend unavailable", "request_id", reqID, "source", unavErr.Family, "err", unavErr.Err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":     unavErr.Error(),
			"source":    unavErr.Family,
			"retryable": true,
		})
	case errors.As(err, &appErr):
		c.JSON(appErr.Code, gin.H{"error": appErr.Message})
	default:
		h.log.Error("search failed", "request_id", reqID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "request_id": reqID})
	}
}
