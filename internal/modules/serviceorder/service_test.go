// README: Workflow service tests on the in-memory store (flow, loops, cancellation, notifications).
package serviceorder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"workshop/internal/types"
)

type fakeDirectory struct {
	customers map[types.ID]bool
	owners    map[types.ID]types.ID
}

func (d *fakeDirectory) CustomerExists(_ context.Context, id types.ID) error {
	if !d.customers[id] {
		return types.NotFound("customer", id)
	}
	return nil
}

func (d *fakeDirectory) VehicleOwner(_ context.Context, id types.ID) (types.ID, error) {
	owner, ok := d.owners[id]
	if !ok {
		return 0, types.NotFound("vehicle", id)
	}
	return owner, nil
}

type fakeActors map[types.ID]bool

func (a fakeActors) EnsureActive(_ context.Context, id types.ID) error {
	if !a[id] {
		return types.NotFound("user", id)
	}
	return nil
}

type sentNotification struct {
	orderID types.ID
	kind    string
	payload map[string]string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, orderID types.ID, kind string, payload map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{orderID, kind, payload})
	return n.err
}

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.kind)
	}
	return out
}

func (n *recordingNotifier) count(kind string) int {
	c := 0
	for _, k := range n.kinds() {
		if k == kind {
			c++
		}
	}
	return c
}

const (
	advisorID   types.ID = 1
	mechanicID  types.ID = 2
	inspectorID types.ID = 3
	cashierID   types.ID = 4

	customerA types.ID = 10
	customerB types.ID = 11
	vehicleA  types.ID = 20
	vehicleB  types.ID = 21
)

type harness struct {
	svc      *Service
	store    *MemStore
	notifier *recordingNotifier
	logs     *observer.ObservedLogs
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	h := &harness{store: NewMemStore(), notifier: &recordingNotifier{}, logs: logs}
	dir := &fakeDirectory{
		customers: map[types.ID]bool{customerA: true, customerB: true},
		owners:    map[types.ID]types.ID{vehicleA: customerA, vehicleB: customerB},
	}
	actors := fakeActors{advisorID: true, mechanicID: true, inspectorID: true, cashierID: true}
	h.svc = NewService(h.store, dir, actors, h.notifier, zap.New(core), opts)
	return h
}

func (h *harness) create(t *testing.T) *ServiceOrder {
	t.Helper()
	o, err := h.svc.Create(context.Background(), CreateCommand{
		CustomerID:   customerA,
		VehicleID:    vehicleA,
		ServiceTypes: []string{"brake_service", "oil_change", "BRAKE_SERVICE"},
		Complaints:   "squealing when braking",
		CreatedByID:  advisorID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return o
}

func assertStatus(t *testing.T, h *harness, id types.ID, want Status) {
	t.Helper()
	o, err := h.svc.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if o.Status != want {
		t.Fatalf("status = %s, want %s", o.Status, want)
	}
}

func mustAdvance(t *testing.T, step string, o *ServiceOrder, err error) *ServiceOrder {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", step, err)
	}
	return o
}

// toAwaitingApproval drives a fresh order through the first four stages.
func toAwaitingApproval(t *testing.T, h *harness) *ServiceOrder {
	t.Helper()
	ctx := context.Background()
	o := h.create(t)

	_, _, err := h.svc.SubmitInitialCheck(ctx, o.ID, mechanicID, fullInitialCheck())
	mustAdvance(t, "initial check", nil, err)
	_, _, err = h.svc.SubmitTechnicalAnalysis(ctx, o.ID, mechanicID, TechnicalAnalysisInput{
		ProblemDescription: "brake squeal", RootCauseAnalysis: "pads worn to 2mm", RecommendedActions: "replace front pads",
	})
	mustAdvance(t, "analysis", nil, err)
	_, _, err = h.svc.SubmitCustomerEducation(ctx, o.ID, advisorID, CustomerEducationInput{
		ExplanationProvided: boolPtr(true), UnderstandingLevel: UnderstandingUnderstood,
	})
	mustAdvance(t, "education", nil, err)
	o, _, err = h.svc.SubmitCostEstimation(ctx, o.ID, advisorID, estimation("350000", "500000", "900000"))
	return mustAdvance(t, "estimation", o, err)
}

func toQualityControl(t *testing.T, h *harness) *ServiceOrder {
	t.Helper()
	ctx := context.Background()
	o := toAwaitingApproval(t, h)
	_, _, err := h.svc.RecordCustomerDecision(ctx, CustomerDecisionCommand{
		OrderID: o.ID, ActorID: advisorID,
		CustomerDecisionInput: CustomerDecisionInput{Decision: DecisionApproved, ChosenTier: tierPtr(TierStandard)},
	})
	mustAdvance(t, "decision", nil, err)
	o, _, err = h.svc.SubmitWorkExecution(ctx, o.ID, mechanicID, WorkExecutionInput{
		WorkDescription: "replaced front pads", LaborHours: types.MustMoney("1.5"),
		CompletionChecklist: map[string]bool{"pads": true, "test drive": true}, MarkComplete: true,
	})
	return mustAdvance(t, "work", o, err)
}

func passQC() QualityControlInput {
	return QualityControlInput{CriticalFactorsCheck: map[string]bool{"brakes": true}, FinalApproval: boolPtr(true)}
}

func TestCreateOrder(t *testing.T) {
	h := newHarness(t, Options{})
	o := h.create(t)

	if o.Status != StatusPendingInitialCheck || o.StatusVersion != 0 {
		t.Fatalf("new order: status %s version %d", o.Status, o.StatusVersion)
	}
	if len(o.ServiceTypes) != 2 || o.ServiceTypes[0] != "BRAKE_SERVICE" {
		t.Fatalf("service types not normalized: %v", o.ServiceTypes)
	}
	if len(o.OrderNumber) != len("SO-20260101000000-ABCD") {
		t.Fatalf("unexpected order number %q", o.OrderNumber)
	}
	events, err := h.svc.Timeline(context.Background(), o.ID)
	if err != nil || len(events) != 1 || events[0].Event != EventCreated {
		t.Fatalf("timeline = %+v, %v", events, err)
	}
}

func TestCreateRejectsVehicleOfAnotherCustomer(t *testing.T) {
	h := newHarness(t, Options{})
	_, err := h.svc.Create(context.Background(), CreateCommand{
		CustomerID: customerA, VehicleID: vehicleB,
		ServiceTypes: []string{"OIL_CHANGE"}, Complaints: "due", CreatedByID: advisorID,
	})
	var ve *types.ValidationError
	if !errors.As(err, &ve) || ve.Reason != "vehicle does not belong to customer" {
		t.Fatalf("expected ownership validation error, got %v", err)
	}
	if list, _ := h.svc.List(context.Background(), Filter{}); len(list) != 0 {
		t.Fatalf("order persisted despite error")
	}
}

func TestCreateMissingReferences(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	base := CreateCommand{CustomerID: customerA, VehicleID: vehicleA, ServiceTypes: []string{"X"}, Complaints: "c", CreatedByID: advisorID}

	cases := []struct {
		mutate func(*CreateCommand)
		entity string
	}{
		{func(c *CreateCommand) { c.CustomerID = 99 }, "customer"},
		{func(c *CreateCommand) { c.VehicleID = 98 }, "vehicle"},
		{func(c *CreateCommand) { c.CreatedByID = 97 }, "user"},
		{func(c *CreateCommand) { c.AssignedMechanicID = types.IDPtr(96) }, "user"},
	}
	for _, tc := range cases {
		cmd := base
		tc.mutate(&cmd)
		_, err := h.svc.Create(ctx, cmd)
		var nf *types.NotFoundError
		if !errors.As(err, &nf) || nf.Entity != tc.entity {
			t.Errorf("expected NotFound(%s), got %v", tc.entity, err)
		}
	}

	cmd := base
	cmd.ServiceTypes = []string{" ", ""}
	if _, err := h.svc.Create(ctx, cmd); !errors.Is(err, types.ErrValidation) {
		t.Errorf("expected validation error for empty service types, got %v", err)
	}
}

func TestHappyPathCompletesAndNotifiesOnce(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	o := toQualityControl(t, h)
	assertStatus(t, h, o.ID, StatusQualityControl)

	o, _, err := h.svc.SubmitQualityControl(ctx, o.ID, inspectorID, passQC())
	mustAdvance(t, "qc", o, err)
	assertStatus(t, h, o.ID, StatusAwaitingPayment)

	o, p, err := h.svc.RecordPayment(ctx, o.ID, cashierID, PaymentInput{Amount: types.MustMoney("500000"), PaymentMethod: MethodCash})
	mustAdvance(t, "payment", o, err)
	if o.Status != StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", o.Status)
	}
	if !p.TotalAmount.Equal(types.MustMoney("500000")) || p.PaymentStatus != PaymentPaid || p.PaidAt == nil {
		t.Fatalf("payment = %+v", p)
	}
	if n := h.notifier.count(string(NotifyCompleted)); n != 1 {
		t.Fatalf("COMPLETED notified %d times", n)
	}
	want := []string{"ESTIMATE_READY", "READY_FOR_PAYMENT", "COMPLETED"}
	got := h.notifier.kinds()
	if len(got) != len(want) {
		t.Fatalf("notifications = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("notifications = %v, want %v", got, want)
		}
	}

	// terminal: nothing moves it any more
	_, _, err = h.svc.RecordPayment(ctx, o.ID, cashierID, PaymentInput{Amount: types.MustMoney("1"), PaymentMethod: MethodCash})
	if !errors.Is(err, types.ErrInvalidTransition) {
		t.Fatalf("payment on completed order: %v", err)
	}
	if _, err := h.svc.Cancel(ctx, CancelCommand{OrderID: o.ID, ActorID: advisorID, Reason: "late", Authorized: true}); !errors.Is(err, types.ErrInvalidTransition) {
		t.Fatalf("cancel on completed order: %v", err)
	}
	assertStatus(t, h, o.ID, StatusCompleted)
}

func TestRefusedServiceCancelsOrder(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	o := h.create(t)
	_, _, _ = h.svc.SubmitInitialCheck(ctx, o.ID, mechanicID, fullInitialCheck())
	_, _, _ = h.svc.SubmitTechnicalAnalysis(ctx, o.ID, mechanicID, TechnicalAnalysisInput{
		ProblemDescription: "p", RootCauseAnalysis: "r", RecommendedActions: "a",
	})

	o, rec, err := h.svc.SubmitCustomerEducation(ctx, o.ID, advisorID, CustomerEducationInput{
		ExplanationProvided: boolPtr(true), UnderstandingLevel: UnderstandingRefusedService,
	})
	mustAdvance(t, "education", o, err)
	if o.Status != StatusCancelled || o.CancelReason == nil {
		t.Fatalf("order = %+v", o)
	}
	stages, _ := h.svc.StageRecords(ctx, o.ID)
	if stages.CustomerEducation == nil || stages.CustomerEducation.ID != rec.ID {
		t.Fatalf("education record not persisted")
	}
	if h.notifier.count(string(NotifyCancelled)) != 1 {
		t.Fatalf("notifications = %v", h.notifier.kinds())
	}

	// a cancelled order accepts no further stages
	_, _, err = h.svc.SubmitCostEstimation(ctx, o.ID, advisorID, estimation("350000", "500000", "900000"))
	if !errors.Is(err, types.ErrInvalidTransition) {
		t.Fatalf("estimation after cancel: %v", err)
	}
	assertStatus(t, h, o.ID, StatusCancelled)
	if stages, _ := h.svc.StageRecords(ctx, o.ID); stages.CostEstimation != nil {
		t.Fatalf("estimation stored on cancelled order")
	}
}

func TestRejectedEstimateCancelsOrder(t *testing.T) {
	h := newHarness(t, Options{})
	o := toAwaitingApproval(t, h)
	o, ce, err := h.svc.RecordCustomerDecision(context.Background(), CustomerDecisionCommand{
		OrderID: o.ID, ActorID: advisorID,
		CustomerDecisionInput: CustomerDecisionInput{Decision: DecisionRejected},
	})
	mustAdvance(t, "decision", o, err)
	if o.Status != StatusCancelled || ce.CustomerDecision != DecisionRejected || ce.DecidedAt == nil {
		t.Fatalf("order %s, estimation %+v", o.Status, ce)
	}
}

func TestStageSubmittedOutOfOrderIsRejected(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	o := toQualityControl(t, h)
	before, _ := h.svc.Get(ctx, o.ID)

	_, _, err := h.svc.SubmitCostEstimation(ctx, o.ID, advisorID, estimation("1", "2", "3"))
	var ite *types.InvalidTransitionError
	if !errors.As(err, &ite) || ite.From != string(StatusQualityControl) || ite.Event != string(EventCostEstimationRecorded) {
		t.Fatalf("expected InvalidTransition(QUALITY_CONTROL, COST_ESTIMATION_RECORDED), got %v", err)
	}
	after, _ := h.svc.Get(ctx, o.ID)
	if after.Status != before.Status || after.StatusVersion != before.StatusVersion {
		t.Fatalf("order mutated by rejected event: %+v -> %+v", before, after)
	}
	stages, _ := h.svc.StageRecords(ctx, o.ID)
	if !stages.CostEstimation.EconomicPrice.Equal(types.MustMoney("350000")) {
		t.Fatalf("estimation overwritten: %+v", stages.CostEstimation)
	}
}

func TestDecisionWithoutEstimationStageIsInvalidTransition(t *testing.T) {
	h := newHarness(t, Options{})
	o := h.create(t)
	_, _, err := h.svc.RecordCustomerDecision(context.Background(), CustomerDecisionCommand{
		OrderID: o.ID, ActorID: advisorID,
		CustomerDecisionInput: CustomerDecisionInput{Decision: DecisionApproved, ChosenTier: tierPtr(TierEconomic)},
	})
	if !errors.Is(err, types.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestQCFailureLoopsBackToWork(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	o := toQualityControl(t, h)

	o, qc, err := h.svc.SubmitQualityControl(ctx, o.ID, inspectorID, QualityControlInput{
		CriticalFactorsCheck: map[string]bool{"brakes": false},
		DefectsFound:         strp("pedal still soft"),
		FinalApproval:        boolPtr(false),
	})
	mustAdvance(t, "qc fail", o, err)
	if qc.QCStatus != QCFailed || o.Status != StatusWorkInProgress {
		t.Fatalf("qc %s, order %s", qc.QCStatus, o.Status)
	}
	stages, _ := h.svc.StageRecords(ctx, o.ID)
	if stages.WorkExecution.CompletedAt != nil || stages.WorkExecution.ReworkCount != 1 {
		t.Fatalf("work not reopened: %+v", stages.WorkExecution)
	}
	if h.notifier.count(string(NotifyQCFailed)) != 1 {
		t.Fatalf("notifications = %v", h.notifier.kinds())
	}

	_, _, err = h.svc.SubmitWorkExecution(ctx, o.ID, mechanicID, WorkExecutionInput{
		WorkDescription: "bled brakes", LaborHours: types.MustMoney("0.5"),
		CompletionChecklist: map[string]bool{"bleed": true}, MarkComplete: true,
	})
	mustAdvance(t, "rework", nil, err)
	o, qc, err = h.svc.SubmitQualityControl(ctx, o.ID, inspectorID, passQC())
	mustAdvance(t, "qc pass", o, err)
	if o.Status != StatusAwaitingPayment || qc.QCStatus != QCPassed {
		t.Fatalf("after rework: order %s qc %s", o.Status, qc.QCStatus)
	}
	stages, _ = h.svc.StageRecords(ctx, o.ID)
	if stages.WorkExecution.ReworkCount != 1 || stages.WorkExecution.CompletedAt == nil {
		t.Fatalf("work after rework: %+v", stages.WorkExecution)
	}
}

func TestQCPendingKeepsStatus(t *testing.T) {
	h := newHarness(t, Options{})
	o := toQualityControl(t, h)
	o, qc, err := h.svc.SubmitQualityControl(context.Background(), o.ID, inspectorID, QualityControlInput{FinalApproval: boolPtr(false)})
	mustAdvance(t, "qc", o, err)
	if qc.QCStatus != QCPending || o.Status != StatusQualityControl {
		t.Fatalf("qc %s, order %s", qc.QCStatus, o.Status)
	}
}

func TestWorkProgressUpdatesStayInProgress(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	o := toAwaitingApproval(t, h)
	_, _, err := h.svc.RecordCustomerDecision(ctx, CustomerDecisionCommand{
		OrderID: o.ID, ActorID: advisorID,
		CustomerDecisionInput: CustomerDecisionInput{Decision: DecisionPartialApproval, ChosenTier: tierPtr(TierEconomic)},
	})
	mustAdvance(t, "decision", nil, err)

	o, first, err := h.svc.SubmitWorkExecution(ctx, o.ID, mechanicID, WorkExecutionInput{
		WorkDescription: "removed wheels", LaborHours: types.MustMoney("1"), CompletionChecklist: map[string]bool{"pads": false},
	})
	mustAdvance(t, "progress", o, err)
	if o.Status != StatusWorkInProgress || first.CompletedAt != nil {
		t.Fatalf("progress update moved order: %s", o.Status)
	}
	if o.AssignedMechanicID == nil || *o.AssignedMechanicID != mechanicID {
		t.Fatalf("mechanic not assigned on first work record")
	}

	_, _, err = h.svc.SubmitWorkExecution(ctx, o.ID, mechanicID, WorkExecutionInput{
		WorkDescription: "pads half done", LaborHours: types.MustMoney("1"), CompletionChecklist: map[string]bool{"pads": false}, MarkComplete: true,
	})
	if !errors.Is(err, types.ErrValidation) {
		t.Fatalf("completion with open checklist: %v", err)
	}

	mine, err := h.svc.OrdersForMechanic(ctx, mechanicID)
	if err != nil || len(mine) != 1 || mine[0].ID != o.ID {
		t.Fatalf("mechanic queue = %v, %v", mine, err)
	}
}

func TestPartialPaymentThenCompletion(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	o := toQualityControl(t, h)
	_, _, err := h.svc.SubmitQualityControl(ctx, o.ID, inspectorID, passQC())
	mustAdvance(t, "qc", nil, err)

	// a sub-cent amount would be stored rounded up to the full total
	_, _, err = h.svc.RecordPayment(ctx, o.ID, cashierID, PaymentInput{Amount: types.MustMoney("499999.995"), PaymentMethod: MethodCash})
	var ve *types.ValidationError
	if !errors.As(err, &ve) || ve.Field != "amount" {
		t.Fatalf("sub-cent payment: %v", err)
	}
	if stages, _ := h.svc.StageRecords(ctx, o.ID); stages.Payment != nil {
		t.Fatalf("rejected payment was stored: %+v", stages.Payment)
	}
	assertStatus(t, h, o.ID, StatusAwaitingPayment)

	o, p, err := h.svc.RecordPayment(ctx, o.ID, cashierID, PaymentInput{Amount: types.MustMoney("200000"), PaymentMethod: MethodBankTransfer})
	mustAdvance(t, "first installment", o, err)
	if o.Status != StatusAwaitingPayment || p.PaymentStatus != PaymentPartial {
		t.Fatalf("after partial: order %s payment %s", o.Status, p.PaymentStatus)
	}
	if !p.Balance().Equal(types.MustMoney("300000")) {
		t.Fatalf("balance = %s", p.Balance())
	}

	other := types.MustMoney("1")
	_, _, err = h.svc.RecordPayment(ctx, o.ID, cashierID, PaymentInput{Amount: types.MustMoney("1"), PaymentMethod: MethodCash, TotalAmount: &other})
	if !errors.Is(err, types.ErrValidation) {
		t.Fatalf("changing total: %v", err)
	}

	o, p, err = h.svc.RecordPayment(ctx, o.ID, cashierID, PaymentInput{Amount: types.MustMoney("300000"), PaymentMethod: MethodCard})
	mustAdvance(t, "second installment", o, err)
	if o.Status != StatusCompleted || p.PaymentStatus != PaymentPaid {
		t.Fatalf("after full: order %s payment %s", o.Status, p.PaymentStatus)
	}
}

func TestCancel(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	o := h.create(t)

	if _, err := h.svc.Cancel(ctx, CancelCommand{OrderID: o.ID, ActorID: mechanicID, Reason: "x"}); !errors.Is(err, types.ErrInvalidTransition) {
		t.Fatalf("unauthorized cancel: %v", err)
	}
	if _, err := h.svc.Cancel(ctx, CancelCommand{OrderID: o.ID, ActorID: advisorID, Authorized: true}); !errors.Is(err, types.ErrValidation) {
		t.Fatalf("cancel without reason: %v", err)
	}
	o, err := h.svc.Cancel(ctx, CancelCommand{OrderID: o.ID, ActorID: advisorID, Reason: "customer left", Authorized: true})
	mustAdvance(t, "cancel", o, err)
	if o.Status != StatusCancelled || o.CancelReason == nil || *o.CancelReason != "customer left" {
		t.Fatalf("cancelled order = %+v", o)
	}
	events, _ := h.svc.Timeline(ctx, o.ID)
	last := events[len(events)-1]
	if last.Event != EventCancel || last.FromStatus != StatusPendingInitialCheck || last.ToStatus != StatusCancelled {
		t.Fatalf("last event = %+v", last)
	}
}

func TestCancelDuringPaymentCancelsPayment(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	o := toQualityControl(t, h)
	_, _, _ = h.svc.SubmitQualityControl(ctx, o.ID, inspectorID, passQC())
	_, _, err := h.svc.RecordPayment(ctx, o.ID, cashierID, PaymentInput{Amount: types.MustMoney("10"), PaymentMethod: MethodCash})
	mustAdvance(t, "payment", nil, err)

	_, err = h.svc.Cancel(ctx, CancelCommand{OrderID: o.ID, ActorID: advisorID, Reason: "dispute", Authorized: true})
	mustAdvance(t, "cancel", nil, err)
	stages, _ := h.svc.StageRecords(ctx, o.ID)
	if stages.Payment.PaymentStatus != PaymentCancelled {
		t.Fatalf("payment status = %s", stages.Payment.PaymentStatus)
	}
}

func TestUnknownActorIsNotFound(t *testing.T) {
	h := newHarness(t, Options{})
	o := h.create(t)
	_, _, err := h.svc.SubmitInitialCheck(context.Background(), o.ID, 999, fullInitialCheck())
	var nf *types.NotFoundError
	if !errors.As(err, &nf) || nf.Entity != "user" || nf.ID != 999 {
		t.Fatalf("expected NotFound(user, 999), got %v", err)
	}
	assertStatus(t, h, o.ID, StatusPendingInitialCheck)
}

func TestUnknownOrderIsNotFound(t *testing.T) {
	h := newHarness(t, Options{})
	_, _, err := h.svc.SubmitInitialCheck(context.Background(), 404, mechanicID, fullInitialCheck())
	var nf *types.NotFoundError
	if !errors.As(err, &nf) || nf.Entity != "service_order" {
		t.Fatalf("expected NotFound(service_order), got %v", err)
	}
}

func TestValidationRunsBeforeStatusCheck(t *testing.T) {
	h := newHarness(t, Options{})
	o := h.create(t)
	_, _, err := h.svc.SubmitCostEstimation(context.Background(), o.ID, advisorID, estimation("0", "1", "2"))
	if !errors.Is(err, types.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTierOrderingOption(t *testing.T) {
	h := newHarness(t, Options{EnforceTierOrdering: true})
	ctx := context.Background()
	o := h.create(t)
	_, _, _ = h.svc.SubmitInitialCheck(ctx, o.ID, mechanicID, fullInitialCheck())
	_, _, _ = h.svc.SubmitTechnicalAnalysis(ctx, o.ID, mechanicID, TechnicalAnalysisInput{ProblemDescription: "p", RootCauseAnalysis: "r", RecommendedActions: "a"})
	_, _, _ = h.svc.SubmitCustomerEducation(ctx, o.ID, advisorID, CustomerEducationInput{ExplanationProvided: boolPtr(true), UnderstandingLevel: UnderstandingUnderstood})

	if _, _, err := h.svc.SubmitCostEstimation(ctx, o.ID, advisorID, estimation("300", "200", "100")); !errors.Is(err, types.ErrValidation) {
		t.Fatalf("expected ordering validation error, got %v", err)
	}
	assertStatus(t, h, o.ID, StatusCostEstimation)
}

func TestNotificationFailureIsLoggedNotReturned(t *testing.T) {
	h := newHarness(t, Options{})
	h.notifier.err = errors.New("redis down")
	o := toAwaitingApproval(t, h)

	assertStatus(t, h, o.ID, StatusAwaitingApproval)
	if n := h.logs.FilterMessage("notification failed").Len(); n != 1 {
		t.Fatalf("expected one logged notification failure, got %d", n)
	}
}

func TestConcurrentQCSubmissionsSerialize(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	o := toQualityControl(t, h)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := h.svc.SubmitQualityControl(ctx, o.ID, inspectorID, passQC())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, types.ErrInvalidTransition) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly one passing QC, got %d", success)
	}
	assertStatus(t, h, o.ID, StatusAwaitingPayment)
}

func TestQueuesAndCounts(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	qc := toQualityControl(t, h)
	_ = h.create(t)

	queue, err := h.svc.PendingQCQueue(ctx)
	if err != nil || len(queue) != 1 || queue[0].ID != qc.ID {
		t.Fatalf("qc queue = %v, %v", queue, err)
	}
	if pay, _ := h.svc.PendingPaymentQueue(ctx); len(pay) != 0 {
		t.Fatalf("payment queue should be empty, got %d", len(pay))
	}
	counts, err := h.svc.StatusCounts(ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if len(counts) != len(AllStatuses) || counts[StatusQualityControl] != 1 || counts[StatusPendingInitialCheck] != 1 || counts[StatusCompleted] != 0 {
		t.Fatalf("counts = %v", counts)
	}
	if _, err := h.svc.OrdersInStatus(ctx, "LOST"); !errors.Is(err, types.ErrValidation) {
		t.Fatalf("unknown status: %v", err)
	}
}

func TestAssignMechanic(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	o := h.create(t)

	o, err := h.svc.AssignMechanic(ctx, o.ID, advisorID, mechanicID)
	if err != nil || o.AssignedMechanicID == nil || *o.AssignedMechanicID != mechanicID {
		t.Fatalf("assign: %+v, %v", o, err)
	}
	if _, err := h.svc.AssignMechanic(ctx, o.ID, advisorID, 555); !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("unknown mechanic: %v", err)
	}
	_, _ = h.svc.Cancel(ctx, CancelCommand{OrderID: o.ID, ActorID: advisorID, Reason: "dup", Authorized: true})
	if _, err := h.svc.AssignMechanic(ctx, o.ID, advisorID, mechanicID); !errors.Is(err, types.ErrInvalidTransition) {
		t.Fatalf("assign on cancelled order: %v", err)
	}
}

func TestOverdueSweep(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	h := newHarness(t, Options{Now: func() time.Time { return now }})
	ctx := context.Background()
	o := toQualityControl(t, h)
	_, _, _ = h.svc.SubmitQualityControl(ctx, o.ID, inspectorID, passQC())
	due := now.Add(24 * time.Hour)
	_, _, err := h.svc.RecordPayment(ctx, o.ID, cashierID, PaymentInput{Amount: types.MustMoney("10"), PaymentMethod: MethodCash, DueDate: &due})
	mustAdvance(t, "payment", nil, err)

	h.svc.markOverdue(ctx)
	stages, _ := h.svc.StageRecords(ctx, o.ID)
	if stages.Payment.PaymentStatus != PaymentPartial {
		t.Fatalf("flagged before due date: %s", stages.Payment.PaymentStatus)
	}

	now = now.Add(48 * time.Hour)
	h.svc.markOverdue(ctx)
	stages, _ = h.svc.StageRecords(ctx, o.ID)
	if stages.Payment.PaymentStatus != PaymentOverdue {
		t.Fatalf("status after due date = %s", stages.Payment.PaymentStatus)
	}
	assertStatus(t, h, o.ID, StatusAwaitingPayment)
}
