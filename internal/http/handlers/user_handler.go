// README: Staff user handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"workshop/internal/modules/user"
)

type UserHandler struct {
	users *user.Service
}

func NewUserHandler(svc *user.Service) *UserHandler {
	return &UserHandler{users: svc}
}

type createUserReq struct {
	Name string    `json:"name"`
	Role user.Role `json:"role"`
}

func (h *UserHandler) Create(c *gin.Context) {
	var req createUserReq
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.users.Create(c.Request.Context(), user.CreateCommand{Name: req.Name, Role: req.Role})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, u)
}

func (h *UserHandler) List(c *gin.Context) {
	users, err := h.users.List(c.Request.Context(), user.Role(c.Query("role")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"users": users})
}

func (h *UserHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	u, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, u)
}

func (h *UserHandler) Deactivate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.users.Deactivate(c.Request.Context(), id); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
