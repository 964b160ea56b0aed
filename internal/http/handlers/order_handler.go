// README: Service order handlers: creation, stage submissions, cancel and reads.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	httpmiddleware "workshop/internal/http/middleware"
	so "workshop/internal/modules/serviceorder"
	"workshop/internal/modules/user"
	"workshop/internal/types"
)

type OrderHandler struct {
	orders *so.Service
}

func NewOrderHandler(svc *so.Service) *OrderHandler {
	return &OrderHandler{orders: svc}
}

// stageResponse pairs the order after a transition with the stage record it produced.
type stageResponse struct {
	Order  *so.ServiceOrder `json:"order"`
	Record any              `json:"record"`
}

func writeStage(c *gin.Context, o *so.ServiceOrder, rec any, err error) {
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, stageResponse{Order: o, Record: rec})
}

type createOrderReq struct {
	CustomerID         types.ID  `json:"customer_id"`
	VehicleID          types.ID  `json:"vehicle_id"`
	ServiceTypes       []string  `json:"service_types"`
	Complaints         string    `json:"complaints"`
	ReferralNotes      *string   `json:"referral_notes"`
	DefectNotes        *string   `json:"defect_notes"`
	AssignedMechanicID *types.ID `json:"assigned_mechanic_id"`
}

func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderReq
	if !bindJSON(c, &req) {
		return
	}
	o, err := h.orders.Create(c.Request.Context(), so.CreateCommand{
		CustomerID:         req.CustomerID,
		VehicleID:          req.VehicleID,
		ServiceTypes:       req.ServiceTypes,
		Complaints:         req.Complaints,
		ReferralNotes:      req.ReferralNotes,
		DefectNotes:        req.DefectNotes,
		AssignedMechanicID: req.AssignedMechanicID,
		CreatedByID:        httpmiddleware.CallerID(c),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, o)
}

func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	o, err := h.orders.Get(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}

// List accepts status (repeatable), mechanic_id, customer_id, vehicle_id and limit.
func (h *OrderHandler) List(c *gin.Context) {
	var f so.Filter
	for _, raw := range c.QueryArray("status") {
		st, err := so.ParseStatus(raw)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		f.Statuses = append(f.Statuses, st)
	}
	var ok bool
	if f.MechanicID, ok = optionalID(c, "mechanic_id"); !ok {
		return
	}
	if f.CustomerID, ok = optionalID(c, "customer_id"); !ok {
		return
	}
	if f.VehicleID, ok = optionalID(c, "vehicle_id"); !ok {
		return
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		f.Limit = n
	}
	orders, err := h.orders.List(c.Request.Context(), f)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"orders": orders})
}

func (h *OrderHandler) Timeline(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	events, err := h.orders.Timeline(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"events": events})
}

func (h *OrderHandler) Stages(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	rec, err := h.orders.StageRecords(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, rec)
}

type initialCheckReq struct {
	EngineOilChecked   *bool      `json:"engine_oil_checked"`
	CoolantChecked     *bool      `json:"coolant_checked"`
	BrakesChecked      *bool      `json:"brakes_checked"`
	TiresChecked       *bool      `json:"tires_checked"`
	LightsChecked      *bool      `json:"lights_checked"`
	BatteryChecked     *bool      `json:"battery_checked"`
	AdditionalFindings *string    `json:"additional_findings"`
	CheckDate          *time.Time `json:"check_date"`
}

func (h *OrderHandler) InitialCheck(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req initialCheckReq
	if !bindJSON(c, &req) {
		return
	}
	o, rec, err := h.orders.SubmitInitialCheck(c.Request.Context(), id, httpmiddleware.CallerID(c), so.InitialCheckInput{
		EngineOilChecked:   req.EngineOilChecked,
		CoolantChecked:     req.CoolantChecked,
		BrakesChecked:      req.BrakesChecked,
		TiresChecked:       req.TiresChecked,
		LightsChecked:      req.LightsChecked,
		BatteryChecked:     req.BatteryChecked,
		AdditionalFindings: req.AdditionalFindings,
		CheckDate:          req.CheckDate,
	})
	writeStage(c, o, rec, err)
}

type technicalAnalysisReq struct {
	ProblemDescription string     `json:"problem_description"`
	RootCauseAnalysis  string     `json:"root_cause_analysis"`
	RecommendedActions string     `json:"recommended_actions"`
	VisualEvidenceURLs []string   `json:"visual_evidence_urls"`
	AnalysisDate       *time.Time `json:"analysis_date"`
}

func (h *OrderHandler) TechnicalAnalysis(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req technicalAnalysisReq
	if !bindJSON(c, &req) {
		return
	}
	o, rec, err := h.orders.SubmitTechnicalAnalysis(c.Request.Context(), id, httpmiddleware.CallerID(c), so.TechnicalAnalysisInput{
		ProblemDescription: req.ProblemDescription,
		RootCauseAnalysis:  req.RootCauseAnalysis,
		RecommendedActions: req.RecommendedActions,
		VisualEvidenceURLs: req.VisualEvidenceURLs,
		AnalysisDate:       req.AnalysisDate,
	})
	writeStage(c, o, rec, err)
}

type customerEducationReq struct {
	ExplanationProvided *bool                 `json:"explanation_provided"`
	CustomerQuestions   *string               `json:"customer_questions"`
	UnderstandingLevel  so.UnderstandingLevel `json:"understanding_level"`
	EducationDate       *time.Time            `json:"education_date"`
}

func (h *OrderHandler) CustomerEducation(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req customerEducationReq
	if !bindJSON(c, &req) {
		return
	}
	o, rec, err := h.orders.SubmitCustomerEducation(c.Request.Context(), id, httpmiddleware.CallerID(c), so.CustomerEducationInput{
		ExplanationProvided: req.ExplanationProvided,
		CustomerQuestions:   req.CustomerQuestions,
		UnderstandingLevel:  req.UnderstandingLevel,
		EducationDate:       req.EducationDate,
	})
	writeStage(c, o, rec, err)
}

type costEstimationReq struct {
	EconomicPrice       types.Money `json:"economic_price"`
	EconomicDescription string      `json:"economic_description"`
	StandardPrice       types.Money `json:"standard_price"`
	StandardDescription string      `json:"standard_description"`
	PremiumPrice        types.Money `json:"premium_price"`
	PremiumDescription  string      `json:"premium_description"`
	EstimationDate      *time.Time  `json:"estimation_date"`
}

func (h *OrderHandler) CostEstimation(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req costEstimationReq
	if !bindJSON(c, &req) {
		return
	}
	o, rec, err := h.orders.SubmitCostEstimation(c.Request.Context(), id, httpmiddleware.CallerID(c), so.CostEstimationInput{
		EconomicPrice:       req.EconomicPrice,
		EconomicDescription: req.EconomicDescription,
		StandardPrice:       req.StandardPrice,
		StandardDescription: req.StandardDescription,
		PremiumPrice:        req.PremiumPrice,
		PremiumDescription:  req.PremiumDescription,
		EstimationDate:      req.EstimationDate,
	})
	writeStage(c, o, rec, err)
}

type customerDecisionReq struct {
	Decision   so.Decision `json:"decision"`
	ChosenTier *so.Tier    `json:"chosen_tier"`
	Notes      *string     `json:"notes"`
}

func (h *OrderHandler) CustomerDecision(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req customerDecisionReq
	if !bindJSON(c, &req) {
		return
	}
	o, rec, err := h.orders.RecordCustomerDecision(c.Request.Context(), so.CustomerDecisionCommand{
		OrderID: id,
		ActorID: httpmiddleware.CallerID(c),
		CustomerDecisionInput: so.CustomerDecisionInput{
			Decision:   req.Decision,
			ChosenTier: req.ChosenTier,
			Notes:      req.Notes,
		},
	})
	writeStage(c, o, rec, err)
}

type workExecutionReq struct {
	WorkDescription     string          `json:"work_description"`
	LaborHours          types.Money     `json:"labor_hours"`
	PartsUsed           *string         `json:"parts_used"`
	CompletionChecklist map[string]bool `json:"completion_checklist"`
	MarkComplete        bool            `json:"mark_complete"`
}

func (h *OrderHandler) WorkExecution(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req workExecutionReq
	if !bindJSON(c, &req) {
		return
	}
	o, rec, err := h.orders.SubmitWorkExecution(c.Request.Context(), id, httpmiddleware.CallerID(c), so.WorkExecutionInput{
		WorkDescription:     req.WorkDescription,
		LaborHours:          req.LaborHours,
		PartsUsed:           req.PartsUsed,
		CompletionChecklist: req.CompletionChecklist,
		MarkComplete:        req.MarkComplete,
	})
	writeStage(c, o, rec, err)
}

type qualityControlReq struct {
	CriticalFactorsCheck map[string]bool `json:"critical_factors_check"`
	DefectsFound         *string         `json:"defects_found"`
	FinalApproval        *bool           `json:"final_approval"`
	Notes                *string         `json:"notes"`
}

func (h *OrderHandler) QualityControl(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req qualityControlReq
	if !bindJSON(c, &req) {
		return
	}
	o, rec, err := h.orders.SubmitQualityControl(c.Request.Context(), id, httpmiddleware.CallerID(c), so.QualityControlInput{
		CriticalFactorsCheck: req.CriticalFactorsCheck,
		DefectsFound:         req.DefectsFound,
		FinalApproval:        req.FinalApproval,
		Notes:                req.Notes,
	})
	writeStage(c, o, rec, err)
}

type paymentReq struct {
	Amount        types.Money      `json:"amount"`
	PaymentMethod so.PaymentMethod `json:"payment_method"`
	TotalAmount   *types.Money     `json:"total_amount"`
	DueDate       *time.Time       `json:"due_date"`
}

func (h *OrderHandler) Payment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req paymentReq
	if !bindJSON(c, &req) {
		return
	}
	o, rec, err := h.orders.RecordPayment(c.Request.Context(), id, httpmiddleware.CallerID(c), so.PaymentInput{
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		TotalAmount:   req.TotalAmount,
		DueDate:       req.DueDate,
	})
	writeStage(c, o, rec, err)
}

type cancelReq struct {
	Reason string `json:"reason"`
}

// Cancel is open to every caller; only admins and service advisors carry the
// authority the state machine requires.
func (h *OrderHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req cancelReq
	if !bindJSON(c, &req) {
		return
	}
	role := user.Role(httpmiddleware.CallerRole(c))
	o, err := h.orders.Cancel(c.Request.Context(), so.CancelCommand{
		OrderID:    id,
		ActorID:    httpmiddleware.CallerID(c),
		Reason:     req.Reason,
		Authorized: role == user.RoleAdmin || role == user.RoleServiceAdvisor,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}

type assignReq struct {
	MechanicID types.ID `json:"mechanic_id"`
}

func (h *OrderHandler) Assign(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req assignReq
	if !bindJSON(c, &req) {
		return
	}
	if req.MechanicID <= 0 {
		writeJSON(c, http.StatusBadRequest, errorResponse{Error: "mechanic_id is required", Field: "mechanic_id"})
		return
	}
	o, err := h.orders.AssignMechanic(c.Request.Context(), id, httpmiddleware.CallerID(c), req.MechanicID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}
