// README: Pure transition function for the service order lifecycle.
package serviceorder

import "workshop/internal/types"

type EventKind string

const (
	EventCreated                   EventKind = "ORDER_CREATED"
	EventInitialCheckRecorded      EventKind = "INITIAL_CHECK_RECORDED"
	EventTechnicalAnalysisRecorded EventKind = "TECHNICAL_ANALYSIS_RECORDED"
	EventCustomerEducationRecorded EventKind = "CUSTOMER_EDUCATION_RECORDED"
	EventCostEstimationRecorded    EventKind = "COST_ESTIMATION_RECORDED"
	EventCustomerDecisionRecorded  EventKind = "CUSTOMER_DECISION_RECORDED"
	EventWorkExecutionRecorded     EventKind = "WORK_EXECUTION_RECORDED"
	EventQualityControlRecorded    EventKind = "QUALITY_CONTROL_RECORDED"
	EventPaymentRecorded           EventKind = "PAYMENT_RECORDED"
	EventCancel                    EventKind = "CANCEL"
	EventMechanicAssigned          EventKind = "MECHANIC_ASSIGNED"
)

// TransitionEvents are the events fed to NextStatus.
var TransitionEvents = []EventKind{
	EventInitialCheckRecorded,
	EventTechnicalAnalysisRecorded,
	EventCustomerEducationRecorded,
	EventCostEstimationRecorded,
	EventCustomerDecisionRecorded,
	EventWorkExecutionRecorded,
	EventQualityControlRecorded,
	EventPaymentRecorded,
	EventCancel,
}

// Payload carries the guard inputs of an event. Only the fields relevant to
// the event are read.
type Payload struct {
	UnderstandingLevel UnderstandingLevel
	Decision           Decision
	ChosenTier         *Tier
	WorkComplete       bool
	QCStatus           QCStatus
	PaidAmount         types.Money
	TotalAmount        types.Money
	CallerAuthorized   bool
}

// accepts lists, per status, the stage events it takes. Cancel is handled
// separately since every non-terminal status takes it.
var accepts = map[Status]EventKind{
	StatusPendingInitialCheck: EventInitialCheckRecorded,
	StatusTechnicalAnalysis:   EventTechnicalAnalysisRecorded,
	StatusCustomerEducation:   EventCustomerEducationRecorded,
	StatusCostEstimation:      EventCostEstimationRecorded,
	StatusAwaitingApproval:    EventCustomerDecisionRecorded,
	StatusWorkInProgress:      EventWorkExecutionRecorded,
	StatusQualityControl:      EventQualityControlRecorded,
	StatusAwaitingPayment:     EventPaymentRecorded,
}

// Accepts reports whether the status takes the event at all, before guards.
func Accepts(current Status, event EventKind) bool {
	if current.Terminal() {
		return false
	}
	if event == EventCancel {
		return true
	}
	return accepts[current] == event
}

// NextStatus computes the status after applying event to an order in current.
// It has no side effects. Progress events that do not satisfy their forward
// guard (incomplete work, pending QC, partial payment) keep the status.
func NextStatus(current Status, event EventKind, p Payload) (Status, error) {
	if !Accepts(current, event) {
		return "", invalidTransition(current, event)
	}
	if event == EventCancel {
		if !p.CallerAuthorized {
			return "", invalidTransition(current, event)
		}
		return StatusCancelled, nil
	}

	switch current {
	case StatusPendingInitialCheck:
		return StatusTechnicalAnalysis, nil
	case StatusTechnicalAnalysis:
		return StatusCustomerEducation, nil
	case StatusCustomerEducation:
		switch {
		case p.UnderstandingLevel == UnderstandingRefusedService:
			return StatusCancelled, nil
		case p.UnderstandingLevel.Valid():
			return StatusCostEstimation, nil
		}
	case StatusCostEstimation:
		return StatusAwaitingApproval, nil
	case StatusAwaitingApproval:
		switch p.Decision {
		case DecisionApproved, DecisionPartialApproval:
			if p.ChosenTier != nil && p.ChosenTier.Valid() {
				return StatusWorkInProgress, nil
			}
		case DecisionRejected:
			return StatusCancelled, nil
		}
	case StatusWorkInProgress:
		if p.WorkComplete {
			return StatusQualityControl, nil
		}
		return StatusWorkInProgress, nil
	case StatusQualityControl:
		switch p.QCStatus {
		case QCPassed:
			return StatusAwaitingPayment, nil
		case QCFailed, QCNeedsRework:
			return StatusWorkInProgress, nil
		case QCPending:
			return StatusQualityControl, nil
		}
	case StatusAwaitingPayment:
		if p.TotalAmount.IsPositive() && p.PaidAmount.GreaterThanOrEqual(p.TotalAmount) {
			return StatusCompleted, nil
		}
		return StatusAwaitingPayment, nil
	}
	return "", invalidTransition(current, event)
}

func invalidTransition(from Status, event EventKind) error {
	return &types.InvalidTransitionError{From: string(from), Event: string(event)}
}

// NotificationKind names a customer-facing notification.
type NotificationKind string

const (
	NotifyEstimateReady   NotificationKind = "ESTIMATE_READY"
	NotifyQCFailed        NotificationKind = "QC_FAILED"
	NotifyReadyForPayment NotificationKind = "READY_FOR_PAYMENT"
	NotifyCompleted       NotificationKind = "COMPLETED"
	NotifyCancelled       NotificationKind = "CANCELLED"
)

// NotificationFor returns the notification fired by a from->to transition.
func NotificationFor(from, to Status) (NotificationKind, bool) {
	if from == to {
		return "", false
	}
	switch {
	case to == StatusCompleted:
		return NotifyCompleted, true
	case to == StatusCancelled:
		return NotifyCancelled, true
	case to == StatusAwaitingApproval:
		return NotifyEstimateReady, true
	case to == StatusAwaitingPayment:
		return NotifyReadyForPayment, true
	case from == StatusQualityControl && to == StatusWorkInProgress:
		return NotifyQCFailed, true
	}
	return "", false
}
