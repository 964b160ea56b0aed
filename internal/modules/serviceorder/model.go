// README: Service order aggregate, status taxonomy and per-stage records.
package serviceorder

import (
	"time"

	"workshop/internal/types"
)

type Status string

const (
	StatusPendingInitialCheck Status = "PENDING_INITIAL_CHECK"
	StatusTechnicalAnalysis   Status = "TECHNICAL_ANALYSIS"
	StatusCustomerEducation   Status = "CUSTOMER_EDUCATION"
	StatusCostEstimation      Status = "COST_ESTIMATION"
	StatusAwaitingApproval    Status = "AWAITING_APPROVAL"
	StatusWorkInProgress      Status = "WORK_IN_PROGRESS"
	StatusQualityControl      Status = "QUALITY_CONTROL"
	StatusAwaitingPayment     Status = "AWAITING_PAYMENT"
	StatusCompleted           Status = "COMPLETED"
	StatusCancelled           Status = "CANCELLED"
)

// AllStatuses is the pipeline order followed by the terminal states.
var AllStatuses = []Status{
	StatusPendingInitialCheck,
	StatusTechnicalAnalysis,
	StatusCustomerEducation,
	StatusCostEstimation,
	StatusAwaitingApproval,
	StatusWorkInProgress,
	StatusQualityControl,
	StatusAwaitingPayment,
	StatusCompleted,
	StatusCancelled,
}

// ActiveStatuses are all non-terminal statuses.
var ActiveStatuses = AllStatuses[:8]

func (s Status) Valid() bool {
	for _, v := range AllStatuses {
		if v == s {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", types.Invalid("status", "unknown status "+v)
	}
	return s, nil
}

type ServiceOrder struct {
	ID                 types.ID  `json:"id"`
	OrderNumber        string    `json:"order_number"`
	CustomerID         types.ID  `json:"customer_id"`
	VehicleID          types.ID  `json:"vehicle_id"`
	ServiceTypes       []string  `json:"service_types"`
	Complaints         string    `json:"complaints"`
	ReferralNotes      *string   `json:"referral_notes,omitempty"`
	DefectNotes        *string   `json:"defect_notes,omitempty"`
	AssignedMechanicID *types.ID `json:"assigned_mechanic_id,omitempty"`
	CreatedByID        types.ID  `json:"created_by_id"`
	Status             Status    `json:"status"`
	StatusVersion      int       `json:"status_version"`
	CancelReason       *string   `json:"cancel_reason,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Event is one row of the order's audit trail.
type Event struct {
	ID         int64     `json:"id"`
	OrderID    types.ID  `json:"order_id"`
	FromStatus Status    `json:"from_status"`
	ToStatus   Status    `json:"to_status"`
	Event      EventKind `json:"event"`
	ActorID    types.ID  `json:"actor_id"`
	Note       *string   `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type InitialCheck struct {
	ID                 types.ID  `json:"id"`
	ServiceOrderID     types.ID  `json:"service_order_id"`
	EngineOilChecked   bool      `json:"engine_oil_checked"`
	CoolantChecked     bool      `json:"coolant_checked"`
	BrakesChecked      bool      `json:"brakes_checked"`
	TiresChecked       bool      `json:"tires_checked"`
	LightsChecked      bool      `json:"lights_checked"`
	BatteryChecked     bool      `json:"battery_checked"`
	AdditionalFindings *string   `json:"additional_findings,omitempty"`
	InspectorID        types.ID  `json:"inspector_id"`
	CheckDate          time.Time `json:"check_date"`
	CreatedAt          time.Time `json:"created_at"`
}

type TechnicalAnalysis struct {
	ID                 types.ID  `json:"id"`
	ServiceOrderID     types.ID  `json:"service_order_id"`
	ProblemDescription string    `json:"problem_description"`
	RootCauseAnalysis  string    `json:"root_cause_analysis"`
	RecommendedActions string    `json:"recommended_actions"`
	VisualEvidenceURLs []string  `json:"visual_evidence_urls"`
	AnalystID          types.ID  `json:"analyst_id"`
	AnalysisDate       time.Time `json:"analysis_date"`
	CreatedAt          time.Time `json:"created_at"`
}

type UnderstandingLevel string

const (
	UnderstandingUnderstood         UnderstandingLevel = "UNDERSTOOD"
	UnderstandingNeedsClarification UnderstandingLevel = "NEEDS_CLARIFICATION"
	UnderstandingRefusedService     UnderstandingLevel = "REFUSED_SERVICE"
	UnderstandingPartial            UnderstandingLevel = "PARTIAL_UNDERSTANDING"
)

func (u UnderstandingLevel) Valid() bool {
	switch u {
	case UnderstandingUnderstood, UnderstandingNeedsClarification, UnderstandingRefusedService, UnderstandingPartial:
		return true
	}
	return false
}

type CustomerEducation struct {
	ID                  types.ID           `json:"id"`
	ServiceOrderID      types.ID           `json:"service_order_id"`
	ExplanationProvided bool               `json:"explanation_provided"`
	CustomerQuestions   *string            `json:"customer_questions,omitempty"`
	UnderstandingLevel  UnderstandingLevel `json:"understanding_level"`
	EducatorID          types.ID           `json:"educator_id"`
	EducationDate       time.Time          `json:"education_date"`
	CreatedAt           time.Time          `json:"created_at"`
}

type Tier string

const (
	TierEconomic Tier = "ECONOMIC"
	TierStandard Tier = "STANDARD"
	TierPremium  Tier = "PREMIUM"
)

func (t Tier) Valid() bool {
	return t == TierEconomic || t == TierStandard || t == TierPremium
}

type Decision string

const (
	DecisionPending         Decision = "PENDING"
	DecisionApproved        Decision = "APPROVED"
	DecisionRejected        Decision = "REJECTED"
	DecisionPartialApproval Decision = "PARTIAL_APPROVAL"
)

type CostEstimation struct {
	ID                  types.ID    `json:"id"`
	ServiceOrderID      types.ID    `json:"service_order_id"`
	EconomicPrice       types.Money `json:"economic_price"`
	EconomicDescription string      `json:"economic_description"`
	StandardPrice       types.Money `json:"standard_price"`
	StandardDescription string      `json:"standard_description"`
	PremiumPrice        types.Money `json:"premium_price"`
	PremiumDescription  string      `json:"premium_description"`
	CustomerDecision    Decision    `json:"customer_decision"`
	ChosenTier          *Tier       `json:"chosen_tier,omitempty"`
	DecisionNotes       *string     `json:"decision_notes,omitempty"`
	DecidedAt           *time.Time  `json:"decided_at,omitempty"`
	EstimatorID         types.ID    `json:"estimator_id"`
	EstimationDate      time.Time   `json:"estimation_date"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// PriceFor returns the price of the given tier.
func (c *CostEstimation) PriceFor(t Tier) types.Money {
	switch t {
	case TierEconomic:
		return c.EconomicPrice
	case TierStandard:
		return c.StandardPrice
	case TierPremium:
		return c.PremiumPrice
	}
	return types.ZeroMoney
}

type WorkExecution struct {
	ID                  types.ID        `json:"id"`
	ServiceOrderID      types.ID        `json:"service_order_id"`
	WorkDescription     string          `json:"work_description"`
	LaborHours          types.Money     `json:"labor_hours"`
	PartsUsed           *string         `json:"parts_used,omitempty"`
	CompletionChecklist map[string]bool `json:"completion_checklist"`
	MechanicID          types.ID        `json:"mechanic_id"`
	StartedAt           time.Time       `json:"started_at"`
	CompletedAt         *time.Time      `json:"completed_at,omitempty"`
	ReworkCount         int             `json:"rework_count"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// ChecklistComplete is true only for a non-empty checklist whose entries are all true.
func ChecklistComplete(checklist map[string]bool) bool {
	if len(checklist) == 0 {
		return false
	}
	for _, ok := range checklist {
		if !ok {
			return false
		}
	}
	return true
}

type QCStatus string

const (
	QCPending     QCStatus = "PENDING"
	QCPassed      QCStatus = "PASSED"
	QCFailed      QCStatus = "FAILED"
	QCNeedsRework QCStatus = "NEEDS_REWORK"
)

type QualityControl struct {
	ID                   types.ID        `json:"id"`
	ServiceOrderID       types.ID        `json:"service_order_id"`
	CriticalFactorsCheck map[string]bool `json:"critical_factors_check"`
	DefectsFound         *string         `json:"defects_found,omitempty"`
	FinalApproval        bool            `json:"final_approval"`
	QCStatus             QCStatus        `json:"qc_status"`
	Notes                *string         `json:"notes,omitempty"`
	InspectorID          types.ID        `json:"inspector_id"`
	QCDate               time.Time       `json:"qc_date"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

type PaymentMethod string

const (
	MethodCash         PaymentMethod = "CASH"
	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	MethodCard         PaymentMethod = "CARD"
	MethodEWallet      PaymentMethod = "E_WALLET"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodBankTransfer, MethodCard, MethodEWallet:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentPartial   PaymentStatus = "PARTIAL"
	PaymentPaid      PaymentStatus = "PAID"
	PaymentOverdue   PaymentStatus = "OVERDUE"
	PaymentCancelled PaymentStatus = "CANCELLED"
)

type Payment struct {
	ID             types.ID      `json:"id"`
	ServiceOrderID types.ID      `json:"service_order_id"`
	TotalAmount    types.Money   `json:"total_amount"`
	PaidAmount     types.Money   `json:"paid_amount"`
	PaymentMethod  PaymentMethod `json:"payment_method"`
	PaymentStatus  PaymentStatus `json:"payment_status"`
	DueDate        *time.Time    `json:"due_date,omitempty"`
	PaidAt         *time.Time    `json:"paid_at,omitempty"`
	CashierID      types.ID      `json:"cashier_id"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Balance is the amount still owed, never negative.
func (p *Payment) Balance() types.Money {
	b := p.TotalAmount.Sub(p.PaidAmount)
	if b.IsNegative() {
		return types.ZeroMoney
	}
	return b
}

// StageRecords groups whatever stage records an order has so far.
type StageRecords struct {
	InitialCheck      *InitialCheck      `json:"initial_check,omitempty"`
	TechnicalAnalysis *TechnicalAnalysis `json:"technical_analysis,omitempty"`
	CustomerEducation *CustomerEducation `json:"customer_education,omitempty"`
	CostEstimation    *CostEstimation    `json:"cost_estimation,omitempty"`
	WorkExecution     *WorkExecution     `json:"work_execution,omitempty"`
	QualityControl    *QualityControl    `json:"quality_control,omitempty"`
	Payment           *Payment           `json:"payment,omitempty"`
}
