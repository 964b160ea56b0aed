// README: Transition table tests without a database.
package serviceorder

import (
	"errors"
	"testing"

	"workshop/internal/types"
)

func tierPtr(t Tier) *Tier { return &t }

func TestNextStatusTable(t *testing.T) {
	cases := []struct {
		name  string
		from  Status
		event EventKind
		p     Payload
		want  Status
	}{
		{"initial check", StatusPendingInitialCheck, EventInitialCheckRecorded, Payload{}, StatusTechnicalAnalysis},
		{"analysis", StatusTechnicalAnalysis, EventTechnicalAnalysisRecorded, Payload{}, StatusCustomerEducation},
		{"education understood", StatusCustomerEducation, EventCustomerEducationRecorded, Payload{UnderstandingLevel: UnderstandingUnderstood}, StatusCostEstimation},
		{"education partial", StatusCustomerEducation, EventCustomerEducationRecorded, Payload{UnderstandingLevel: UnderstandingPartial}, StatusCostEstimation},
		{"education clarification", StatusCustomerEducation, EventCustomerEducationRecorded, Payload{UnderstandingLevel: UnderstandingNeedsClarification}, StatusCostEstimation},
		{"education refused", StatusCustomerEducation, EventCustomerEducationRecorded, Payload{UnderstandingLevel: UnderstandingRefusedService}, StatusCancelled},
		{"estimation", StatusCostEstimation, EventCostEstimationRecorded, Payload{}, StatusAwaitingApproval},
		{"approved", StatusAwaitingApproval, EventCustomerDecisionRecorded, Payload{Decision: DecisionApproved, ChosenTier: tierPtr(TierStandard)}, StatusWorkInProgress},
		{"partial approval", StatusAwaitingApproval, EventCustomerDecisionRecorded, Payload{Decision: DecisionPartialApproval, ChosenTier: tierPtr(TierEconomic)}, StatusWorkInProgress},
		{"rejected", StatusAwaitingApproval, EventCustomerDecisionRecorded, Payload{Decision: DecisionRejected}, StatusCancelled},
		{"work complete", StatusWorkInProgress, EventWorkExecutionRecorded, Payload{WorkComplete: true}, StatusQualityControl},
		{"work progress", StatusWorkInProgress, EventWorkExecutionRecorded, Payload{}, StatusWorkInProgress},
		{"qc passed", StatusQualityControl, EventQualityControlRecorded, Payload{QCStatus: QCPassed}, StatusAwaitingPayment},
		{"qc failed", StatusQualityControl, EventQualityControlRecorded, Payload{QCStatus: QCFailed}, StatusWorkInProgress},
		{"qc rework", StatusQualityControl, EventQualityControlRecorded, Payload{QCStatus: QCNeedsRework}, StatusWorkInProgress},
		{"qc pending", StatusQualityControl, EventQualityControlRecorded, Payload{QCStatus: QCPending}, StatusQualityControl},
		{"paid in full", StatusAwaitingPayment, EventPaymentRecorded, Payload{PaidAmount: types.MustMoney("100"), TotalAmount: types.MustMoney("100")}, StatusCompleted},
		{"overpaid", StatusAwaitingPayment, EventPaymentRecorded, Payload{PaidAmount: types.MustMoney("120"), TotalAmount: types.MustMoney("100")}, StatusCompleted},
		{"partial payment", StatusAwaitingPayment, EventPaymentRecorded, Payload{PaidAmount: types.MustMoney("40"), TotalAmount: types.MustMoney("100")}, StatusAwaitingPayment},
	}
	for _, tc := range cases {
		got, err := NextStatus(tc.from, tc.event, tc.p)
		if err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: NextStatus(%s, %s) = %s, want %s", tc.name, tc.from, tc.event, got, tc.want)
		}
	}
}

func TestNextStatusGuardsRejectBadPayload(t *testing.T) {
	cases := []struct {
		name  string
		from  Status
		event EventKind
		p     Payload
	}{
		{"approval without tier", StatusAwaitingApproval, EventCustomerDecisionRecorded, Payload{Decision: DecisionApproved}},
		{"approval with bogus tier", StatusAwaitingApproval, EventCustomerDecisionRecorded, Payload{Decision: DecisionApproved, ChosenTier: tierPtr("GOLD")}},
		{"pending decision", StatusAwaitingApproval, EventCustomerDecisionRecorded, Payload{Decision: DecisionPending}},
		{"unknown understanding", StatusCustomerEducation, EventCustomerEducationRecorded, Payload{UnderstandingLevel: "MAYBE"}},
		{"empty qc status", StatusQualityControl, EventQualityControlRecorded, Payload{}},
		{"unauthorized cancel", StatusWorkInProgress, EventCancel, Payload{}},
	}
	for _, tc := range cases {
		_, err := NextStatus(tc.from, tc.event, tc.p)
		if !errors.Is(err, types.ErrInvalidTransition) {
			t.Errorf("%s: expected invalid transition, got %v", tc.name, err)
		}
	}
}

// Every (status, event) pair outside the table must be rejected, whatever the payload.
func TestNextStatusRejectsUnlistedPairs(t *testing.T) {
	permissive := Payload{
		UnderstandingLevel: UnderstandingUnderstood,
		Decision:           DecisionApproved,
		ChosenTier:         tierPtr(TierPremium),
		WorkComplete:       true,
		QCStatus:           QCPassed,
		PaidAmount:         types.MustMoney("1"),
		TotalAmount:        types.MustMoney("1"),
		CallerAuthorized:   true,
	}
	for _, from := range AllStatuses {
		for _, ev := range TransitionEvents {
			listed := !from.Terminal() && (ev == EventCancel || accepts[from] == ev)
			got, err := NextStatus(from, ev, permissive)
			if listed {
				if err != nil {
					t.Errorf("(%s, %s): unexpected error %v", from, ev, err)
				}
				continue
			}
			var ite *types.InvalidTransitionError
			if !errors.As(err, &ite) {
				t.Errorf("(%s, %s): expected InvalidTransitionError, got status %q err %v", from, ev, got, err)
				continue
			}
			if ite.From != string(from) || ite.Event != string(ev) {
				t.Errorf("(%s, %s): error carries (%s, %s)", from, ev, ite.From, ite.Event)
			}
		}
	}
}

func TestTerminalStatesAbsorbEverything(t *testing.T) {
	for _, from := range []Status{StatusCompleted, StatusCancelled} {
		for _, ev := range TransitionEvents {
			if _, err := NextStatus(from, ev, Payload{CallerAuthorized: true, WorkComplete: true, QCStatus: QCPassed}); !errors.Is(err, types.ErrInvalidTransition) {
				t.Errorf("%s accepted %s: %v", from, ev, err)
			}
		}
	}
}

func TestAuthorizedCancelFromEveryActiveStatus(t *testing.T) {
	for _, from := range ActiveStatuses {
		got, err := NextStatus(from, EventCancel, Payload{CallerAuthorized: true})
		if err != nil || got != StatusCancelled {
			t.Errorf("cancel from %s = %s, %v", from, got, err)
		}
	}
}

func TestNotificationFor(t *testing.T) {
	cases := []struct {
		from, to Status
		want     NotificationKind
		ok       bool
	}{
		{StatusAwaitingPayment, StatusCompleted, NotifyCompleted, true},
		{StatusWorkInProgress, StatusCancelled, NotifyCancelled, true},
		{StatusCostEstimation, StatusAwaitingApproval, NotifyEstimateReady, true},
		{StatusQualityControl, StatusAwaitingPayment, NotifyReadyForPayment, true},
		{StatusQualityControl, StatusWorkInProgress, NotifyQCFailed, true},
		{StatusAwaitingApproval, StatusWorkInProgress, "", false},
		{StatusAwaitingPayment, StatusAwaitingPayment, "", false},
		{StatusPendingInitialCheck, StatusTechnicalAnalysis, "", false},
	}
	for _, tc := range cases {
		got, ok := NotificationFor(tc.from, tc.to)
		if got != tc.want || ok != tc.ok {
			t.Errorf("NotificationFor(%s, %s) = %q, %v; want %q, %v", tc.from, tc.to, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParseStatusRoundTrip(t *testing.T) {
	for _, s := range AllStatuses {
		got, err := ParseStatus(string(s))
		if err != nil || got != s {
			t.Errorf("ParseStatus(%q) = %q, %v", s, got, err)
		}
	}
	if _, err := ParseStatus("DONE"); !errors.Is(err, types.ErrValidation) {
		t.Errorf("expected validation error for unknown status, got %v", err)
	}
}
