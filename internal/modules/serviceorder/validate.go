// README: Stage record validators; each stops at the first violated field.
package serviceorder

import (
	"strings"
	"time"

	"workshop/internal/types"
)

type InitialCheckInput struct {
	EngineOilChecked   *bool
	CoolantChecked     *bool
	BrakesChecked      *bool
	TiresChecked       *bool
	LightsChecked      *bool
	BatteryChecked     *bool
	AdditionalFindings *string
	CheckDate          *time.Time
}

func ValidateInitialCheck(in InitialCheckInput) (*InitialCheck, error) {
	flags := []struct {
		name string
		v    *bool
	}{
		{"engine_oil_checked", in.EngineOilChecked},
		{"coolant_checked", in.CoolantChecked},
		{"brakes_checked", in.BrakesChecked},
		{"tires_checked", in.TiresChecked},
		{"lights_checked", in.LightsChecked},
		{"battery_checked", in.BatteryChecked},
	}
	for _, f := range flags {
		if f.v == nil {
			return nil, types.Invalid(f.name, "is required")
		}
	}
	return &InitialCheck{
		EngineOilChecked:   *in.EngineOilChecked,
		CoolantChecked:     *in.CoolantChecked,
		BrakesChecked:      *in.BrakesChecked,
		TiresChecked:       *in.TiresChecked,
		LightsChecked:      *in.LightsChecked,
		BatteryChecked:     *in.BatteryChecked,
		AdditionalFindings: trimOptional(in.AdditionalFindings),
		CheckDate:          dateOrZero(in.CheckDate),
	}, nil
}

type TechnicalAnalysisInput struct {
	ProblemDescription string
	RootCauseAnalysis  string
	RecommendedActions string
	VisualEvidenceURLs []string
	AnalysisDate       *time.Time
}

func ValidateTechnicalAnalysis(in TechnicalAnalysisInput) (*TechnicalAnalysis, error) {
	ta := &TechnicalAnalysis{
		ProblemDescription: strings.TrimSpace(in.ProblemDescription),
		RootCauseAnalysis:  strings.TrimSpace(in.RootCauseAnalysis),
		RecommendedActions: strings.TrimSpace(in.RecommendedActions),
		VisualEvidenceURLs: []string{},
		AnalysisDate:       dateOrZero(in.AnalysisDate),
	}
	if ta.ProblemDescription == "" {
		return nil, types.Invalid("problem_description", "is required")
	}
	if ta.RootCauseAnalysis == "" {
		return nil, types.Invalid("root_cause_analysis", "is required")
	}
	if ta.RecommendedActions == "" {
		return nil, types.Invalid("recommended_actions", "is required")
	}
	for _, u := range in.VisualEvidenceURLs {
		u = strings.TrimSpace(u)
		if !types.IsURL(u) {
			return nil, types.Invalid("visual_evidence_urls", "contains an invalid url")
		}
		ta.VisualEvidenceURLs = append(ta.VisualEvidenceURLs, u)
	}
	return ta, nil
}

type CustomerEducationInput struct {
	ExplanationProvided *bool
	CustomerQuestions   *string
	UnderstandingLevel  UnderstandingLevel
	EducationDate       *time.Time
}

func ValidateCustomerEducation(in CustomerEducationInput) (*CustomerEducation, error) {
	if in.ExplanationProvided == nil {
		return nil, types.Invalid("explanation_provided", "is required")
	}
	if !in.UnderstandingLevel.Valid() {
		return nil, types.Invalid("understanding_level", "must be one of UNDERSTOOD, NEEDS_CLARIFICATION, REFUSED_SERVICE, PARTIAL_UNDERSTANDING")
	}
	return &CustomerEducation{
		ExplanationProvided: *in.ExplanationProvided,
		CustomerQuestions:   trimOptional(in.CustomerQuestions),
		UnderstandingLevel:  in.UnderstandingLevel,
		EducationDate:       dateOrZero(in.EducationDate),
	}, nil
}

type CostEstimationInput struct {
	EconomicPrice       types.Money
	EconomicDescription string
	StandardPrice       types.Money
	StandardDescription string
	PremiumPrice        types.Money
	PremiumDescription  string
	EstimationDate      *time.Time
}

// ValidateCostEstimation checks the three tiers. With enforceOrdering set it
// also requires economic <= standard <= premium.
func ValidateCostEstimation(in CostEstimationInput, enforceOrdering bool) (*CostEstimation, error) {
	ce := &CostEstimation{
		EconomicPrice:       in.EconomicPrice,
		EconomicDescription: strings.TrimSpace(in.EconomicDescription),
		StandardPrice:       in.StandardPrice,
		StandardDescription: strings.TrimSpace(in.StandardDescription),
		PremiumPrice:        in.PremiumPrice,
		PremiumDescription:  strings.TrimSpace(in.PremiumDescription),
		CustomerDecision:    DecisionPending,
		EstimationDate:      dateOrZero(in.EstimationDate),
	}
	tiers := []struct {
		name  string
		price types.Money
		desc  string
	}{
		{"economic", ce.EconomicPrice, ce.EconomicDescription},
		{"standard", ce.StandardPrice, ce.StandardDescription},
		{"premium", ce.PremiumPrice, ce.PremiumDescription},
	}
	for _, t := range tiers {
		if !t.price.IsPositive() {
			return nil, types.Invalid(t.name+"_price", "must be greater than zero")
		}
		if err := types.CheckCents(t.name+"_price", t.price, types.MaxAmount); err != nil {
			return nil, err
		}
		if t.desc == "" {
			return nil, types.Invalid(t.name+"_description", "is required")
		}
	}
	if enforceOrdering {
		if ce.StandardPrice.LessThan(ce.EconomicPrice) {
			return nil, types.Invalid("standard_price", "must not be below economic_price")
		}
		if ce.PremiumPrice.LessThan(ce.StandardPrice) {
			return nil, types.Invalid("premium_price", "must not be below standard_price")
		}
	}
	return ce, nil
}

type CustomerDecisionInput struct {
	Decision   Decision
	ChosenTier *Tier
	Notes      *string
}

func ValidateCustomerDecision(in CustomerDecisionInput) (CustomerDecisionInput, error) {
	switch in.Decision {
	case DecisionApproved, DecisionPartialApproval:
		if in.ChosenTier == nil {
			return in, types.Invalid("chosen_tier", "is required when approving")
		}
		if !in.ChosenTier.Valid() {
			return in, types.Invalid("chosen_tier", "must be one of ECONOMIC, STANDARD, PREMIUM")
		}
	case DecisionRejected:
		in.ChosenTier = nil
	default:
		return in, types.Invalid("decision", "must be one of APPROVED, REJECTED, PARTIAL_APPROVAL")
	}
	in.Notes = trimOptional(in.Notes)
	return in, nil
}

type WorkExecutionInput struct {
	WorkDescription     string
	LaborHours          types.Money
	PartsUsed           *string
	CompletionChecklist map[string]bool
	MarkComplete        bool
}

func ValidateWorkExecution(in WorkExecutionInput) (*WorkExecution, error) {
	we := &WorkExecution{
		WorkDescription:     strings.TrimSpace(in.WorkDescription),
		LaborHours:          in.LaborHours,
		PartsUsed:           trimOptional(in.PartsUsed),
		CompletionChecklist: copyChecklist(in.CompletionChecklist),
	}
	if we.WorkDescription == "" {
		return nil, types.Invalid("work_description", "is required")
	}
	if !we.LaborHours.IsPositive() {
		return nil, types.Invalid("labor_hours", "must be greater than zero")
	}
	if err := types.CheckCents("labor_hours", we.LaborHours, types.MaxHours); err != nil {
		return nil, err
	}
	for k := range we.CompletionChecklist {
		if strings.TrimSpace(k) == "" {
			return nil, types.Invalid("completion_checklist", "contains an empty item name")
		}
	}
	if in.MarkComplete && !ChecklistComplete(we.CompletionChecklist) {
		return nil, types.Invalid("completion_checklist", "every item must be done before completion")
	}
	return we, nil
}

type QualityControlInput struct {
	CriticalFactorsCheck map[string]bool
	DefectsFound         *string
	FinalApproval        *bool
	Notes                *string
}

func ValidateQualityControl(in QualityControlInput) (*QualityControl, error) {
	if in.FinalApproval == nil {
		return nil, types.Invalid("final_approval", "is required")
	}
	for k := range in.CriticalFactorsCheck {
		if strings.TrimSpace(k) == "" {
			return nil, types.Invalid("critical_factors_check", "contains an empty item name")
		}
	}
	qc := &QualityControl{
		CriticalFactorsCheck: copyChecklist(in.CriticalFactorsCheck),
		DefectsFound:         trimOptional(in.DefectsFound),
		FinalApproval:        *in.FinalApproval,
		Notes:                trimOptional(in.Notes),
	}
	qc.QCStatus = DeriveQCStatus(qc.FinalApproval, qc.DefectsFound)
	return qc, nil
}

// DeriveQCStatus: approval passes, recorded defects fail, otherwise pending.
func DeriveQCStatus(finalApproval bool, defectsFound *string) QCStatus {
	if finalApproval {
		return QCPassed
	}
	if defectsFound != nil && strings.TrimSpace(*defectsFound) != "" {
		return QCFailed
	}
	return QCPending
}

type PaymentInput struct {
	Amount        types.Money
	PaymentMethod PaymentMethod
	TotalAmount   *types.Money
	DueDate       *time.Time
}

func ValidatePayment(in PaymentInput) error {
	if !in.Amount.IsPositive() {
		return types.Invalid("amount", "must be greater than zero")
	}
	if err := types.CheckCents("amount", in.Amount, types.MaxAmount); err != nil {
		return err
	}
	if !in.PaymentMethod.Valid() {
		return types.Invalid("payment_method", "must be one of CASH, BANK_TRANSFER, CARD, E_WALLET")
	}
	if in.TotalAmount != nil {
		if !in.TotalAmount.IsPositive() {
			return types.Invalid("total_amount", "must be greater than zero")
		}
		if err := types.CheckCents("total_amount", *in.TotalAmount, types.MaxAmount); err != nil {
			return err
		}
	}
	return nil
}

// DerivePaymentStatus computes the status of a payment at now.
func DerivePaymentStatus(total, paid types.Money, due *time.Time, now time.Time) PaymentStatus {
	switch {
	case paid.GreaterThanOrEqual(total):
		return PaymentPaid
	case due != nil && now.After(*due):
		return PaymentOverdue
	case paid.IsPositive():
		return PaymentPartial
	}
	return PaymentPending
}

func copyChecklist(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[strings.TrimSpace(k)] = v
	}
	return out
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func dateOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
