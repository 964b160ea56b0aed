// README: Work queue and dashboard read handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	so "workshop/internal/modules/serviceorder"
)

type QueueHandler struct {
	orders *so.Service
}

func NewQueueHandler(svc *so.Service) *QueueHandler {
	return &QueueHandler{orders: svc}
}

func writeQueue(c *gin.Context, orders []*so.ServiceOrder, err error) {
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"orders": orders, "count": len(orders)})
}

func (h *QueueHandler) ByStatus(c *gin.Context) {
	st, err := so.ParseStatus(c.Param("status"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	orders, err := h.orders.OrdersInStatus(c.Request.Context(), st)
	writeQueue(c, orders, err)
}

func (h *QueueHandler) Mechanic(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var statuses []so.Status
	for _, raw := range c.QueryArray("status") {
		st, err := so.ParseStatus(raw)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		statuses = append(statuses, st)
	}
	orders, err := h.orders.OrdersForMechanic(c.Request.Context(), id, statuses...)
	writeQueue(c, orders, err)
}

func (h *QueueHandler) PendingQC(c *gin.Context) {
	orders, err := h.orders.PendingQCQueue(c.Request.Context())
	writeQueue(c, orders, err)
}

func (h *QueueHandler) PendingPayment(c *gin.Context) {
	orders, err := h.orders.PendingPaymentQueue(c.Request.Context())
	writeQueue(c, orders, err)
}

func (h *QueueHandler) StatusCounts(c *gin.Context) {
	counts, err := h.orders.StatusCounts(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"counts": counts})
}
