// README: Base handler utilities (JSON helpers, path params, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"workshop/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeServiceError maps the shared error taxonomy onto HTTP statuses.
func writeServiceError(c *gin.Context, err error) {
	var verr *types.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(c, http.StatusBadRequest, errorResponse{Error: verr.Error(), Field: verr.Field})
	case errors.Is(err, types.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, types.ErrInvalidTransition), errors.Is(err, types.ErrConflict):
		writeError(c, http.StatusConflict, err.Error())
	default:
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

// pathID parses a positive numeric path parameter, answering 400 when it is not one.
func pathID(c *gin.Context, name string) (types.ID, bool) {
	id, err := types.ParseID(c.Param(name))
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResponse{Error: "invalid " + name, Field: name})
		return 0, false
	}
	return id, true
}

func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json: "+err.Error())
		return false
	}
	return true
}

func optionalID(c *gin.Context, key string) (*types.ID, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	id, err := types.ParseID(raw)
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResponse{Error: "invalid " + key, Field: key})
		return nil, false
	}
	return &id, true
}
