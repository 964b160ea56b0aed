// README: Catalog handlers for analysis templates, the estimation library and WhatsApp templates.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"workshop/internal/modules/catalog"
	"workshop/internal/types"
)

type CatalogHandler struct {
	catalog *catalog.Service
}

func NewCatalogHandler(svc *catalog.Service) *CatalogHandler {
	return &CatalogHandler{catalog: svc}
}

func includeInactive(c *gin.Context) bool {
	return c.Query("include_inactive") == "true"
}

func writeCatalog[T any](c *gin.Context, status int, v T, err error) {
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, status, v)
}

func (h *CatalogHandler) deleteWith(c *gin.Context, del func(*gin.Context, types.ID) error) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := del(c, id); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Analysis templates

type analysisTemplateReq struct {
	Name           *string  `json:"name"`
	Category       *string  `json:"category"`
	ChecklistItems []string `json:"checklist_items"`
	IsActive       *bool    `json:"is_active"`
}

func (h *CatalogHandler) CreateAnalysisTemplate(c *gin.Context) {
	var req analysisTemplateReq
	if !bindJSON(c, &req) {
		return
	}
	t, err := h.catalog.CreateAnalysisTemplate(c.Request.Context(), catalog.AnalysisTemplate{
		Name:           deref(req.Name),
		Category:       deref(req.Category),
		ChecklistItems: req.ChecklistItems,
	})
	writeCatalog(c, http.StatusCreated, t, err)
}

func (h *CatalogHandler) ListAnalysisTemplates(c *gin.Context) {
	list, err := h.catalog.ListAnalysisTemplates(c.Request.Context(), includeInactive(c))
	writeCatalog(c, http.StatusOK, gin.H{"templates": list}, err)
}

func (h *CatalogHandler) GetAnalysisTemplate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	t, err := h.catalog.GetAnalysisTemplate(c.Request.Context(), id)
	writeCatalog(c, http.StatusOK, t, err)
}

func (h *CatalogHandler) UpdateAnalysisTemplate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req analysisTemplateReq
	if !bindJSON(c, &req) {
		return
	}
	t, err := h.catalog.UpdateAnalysisTemplate(c.Request.Context(), id, catalog.AnalysisTemplatePatch{
		Name:           req.Name,
		Category:       req.Category,
		ChecklistItems: req.ChecklistItems,
		IsActive:       req.IsActive,
	})
	writeCatalog(c, http.StatusOK, t, err)
}

func (h *CatalogHandler) DeleteAnalysisTemplate(c *gin.Context) {
	h.deleteWith(c, func(c *gin.Context, id types.ID) error {
		return h.catalog.DeleteAnalysisTemplate(c.Request.Context(), id)
	})
}

// Estimation library

type estimationItemReq struct {
	ServiceType   *string      `json:"service_type"`
	Name          *string      `json:"name"`
	Description   *string      `json:"description"`
	EconomicPrice *types.Money `json:"economic_price"`
	StandardPrice *types.Money `json:"standard_price"`
	PremiumPrice  *types.Money `json:"premium_price"`
	IsActive      *bool        `json:"is_active"`
}

func moneyOrZero(m *types.Money) types.Money {
	if m == nil {
		return types.ZeroMoney
	}
	return *m
}

func (h *CatalogHandler) CreateEstimationItem(c *gin.Context) {
	var req estimationItemReq
	if !bindJSON(c, &req) {
		return
	}
	e, err := h.catalog.CreateEstimationItem(c.Request.Context(), catalog.EstimationItem{
		ServiceType:   deref(req.ServiceType),
		Name:          deref(req.Name),
		Description:   deref(req.Description),
		EconomicPrice: moneyOrZero(req.EconomicPrice),
		StandardPrice: moneyOrZero(req.StandardPrice),
		PremiumPrice:  moneyOrZero(req.PremiumPrice),
	})
	writeCatalog(c, http.StatusCreated, e, err)
}

func (h *CatalogHandler) ListEstimationItems(c *gin.Context) {
	list, err := h.catalog.ListEstimationItems(c.Request.Context(), c.Query("service_type"), includeInactive(c))
	writeCatalog(c, http.StatusOK, gin.H{"items": list}, err)
}

func (h *CatalogHandler) GetEstimationItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	e, err := h.catalog.GetEstimationItem(c.Request.Context(), id)
	writeCatalog(c, http.StatusOK, e, err)
}

func (h *CatalogHandler) UpdateEstimationItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req estimationItemReq
	if !bindJSON(c, &req) {
		return
	}
	e, err := h.catalog.UpdateEstimationItem(c.Request.Context(), id, catalog.EstimationItemPatch{
		ServiceType:   req.ServiceType,
		Name:          req.Name,
		Description:   req.Description,
		EconomicPrice: req.EconomicPrice,
		StandardPrice: req.StandardPrice,
		PremiumPrice:  req.PremiumPrice,
		IsActive:      req.IsActive,
	})
	writeCatalog(c, http.StatusOK, e, err)
}

func (h *CatalogHandler) DeleteEstimationItem(c *gin.Context) {
	h.deleteWith(c, func(c *gin.Context, id types.ID) error {
		return h.catalog.DeleteEstimationItem(c.Request.Context(), id)
	})
}

// WhatsApp templates

type whatsappTemplateReq struct {
	Name      *string `json:"name"`
	EventKind *string `json:"event_kind"`
	Body      *string `json:"body"`
	IsActive  *bool   `json:"is_active"`
}

func (h *CatalogHandler) CreateWhatsappTemplate(c *gin.Context) {
	var req whatsappTemplateReq
	if !bindJSON(c, &req) {
		return
	}
	w, err := h.catalog.CreateWhatsappTemplate(c.Request.Context(), catalog.WhatsappTemplate{
		Name:      deref(req.Name),
		EventKind: deref(req.EventKind),
		Body:      deref(req.Body),
	})
	writeCatalog(c, http.StatusCreated, w, err)
}

func (h *CatalogHandler) ListWhatsappTemplates(c *gin.Context) {
	list, err := h.catalog.ListWhatsappTemplates(c.Request.Context(), includeInactive(c))
	writeCatalog(c, http.StatusOK, gin.H{"templates": list}, err)
}

func (h *CatalogHandler) GetWhatsappTemplate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	w, err := h.catalog.GetWhatsappTemplate(c.Request.Context(), id)
	writeCatalog(c, http.StatusOK, w, err)
}

func (h *CatalogHandler) UpdateWhatsappTemplate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req whatsappTemplateReq
	if !bindJSON(c, &req) {
		return
	}
	w, err := h.catalog.UpdateWhatsappTemplate(c.Request.Context(), id, catalog.WhatsappTemplatePatch{
		Name:      req.Name,
		EventKind: req.EventKind,
		Body:      req.Body,
		IsActive:  req.IsActive,
	})
	writeCatalog(c, http.StatusOK, w, err)
}

func (h *CatalogHandler) DeleteWhatsappTemplate(c *gin.Context) {
	h.deleteWith(c, func(c *gin.Context, id types.ID) error {
		return h.catalog.DeleteWhatsappTemplate(c.Request.Context(), id)
	})
}
