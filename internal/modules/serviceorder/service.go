// README: Service order workflow: each stage submission and its status
// transition commit in one transaction; notifications go out after commit.
package serviceorder

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"workshop/internal/types"
)

// Directory answers customer/vehicle lookups.
type Directory interface {
	CustomerExists(ctx context.Context, id types.ID) error
	VehicleOwner(ctx context.Context, vehicleID types.ID) (types.ID, error)
}

// Actors fails with NotFound("user", id) for unknown or inactive staff.
type Actors interface {
	EnsureActive(ctx context.Context, id types.ID) error
}

// Notifier is best-effort. Its errors are logged, never returned to callers.
type Notifier interface {
	Notify(ctx context.Context, orderID types.ID, kind string, payload map[string]string) error
}

type Options struct {
	EnforceTierOrdering bool
	NotifyTimeout       time.Duration
	Now                 func() time.Time
}

type Service struct {
	store     Repository
	directory Directory
	actors    Actors
	notifier  Notifier
	log       *zap.Logger
	opts      Options
}

func NewService(store Repository, directory Directory, actors Actors, notifier Notifier, log *zap.Logger, opts Options) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 3 * time.Second
	}
	return &Service{store: store, directory: directory, actors: actors, notifier: notifier, log: log, opts: opts}
}

const orderNumberAttempts = 5

type CreateCommand struct {
	CustomerID         types.ID
	VehicleID          types.ID
	ServiceTypes       []string
	Complaints         string
	ReferralNotes      *string
	DefectNotes        *string
	AssignedMechanicID *types.ID
	CreatedByID        types.ID
}

type CustomerDecisionCommand struct {
	OrderID types.ID
	ActorID types.ID
	CustomerDecisionInput
}

type CancelCommand struct {
	OrderID types.ID
	ActorID types.ID
	Reason  string
	// Authorized is decided by the caller from the actor's role.
	Authorized bool
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*ServiceOrder, error) {
	o := &ServiceOrder{
		CustomerID:         cmd.CustomerID,
		VehicleID:          cmd.VehicleID,
		ServiceTypes:       normalizeServiceTypes(cmd.ServiceTypes),
		Complaints:         strings.TrimSpace(cmd.Complaints),
		ReferralNotes:      trimOptional(cmd.ReferralNotes),
		DefectNotes:        trimOptional(cmd.DefectNotes),
		AssignedMechanicID: cmd.AssignedMechanicID,
		CreatedByID:        cmd.CreatedByID,
		Status:             StatusPendingInitialCheck,
	}
	switch {
	case o.CustomerID <= 0:
		return nil, types.Invalid("customer_id", "is required")
	case o.VehicleID <= 0:
		return nil, types.Invalid("vehicle_id", "is required")
	case len(o.ServiceTypes) == 0:
		return nil, types.Invalid("service_types", "at least one service type is required")
	case o.Complaints == "":
		return nil, types.Invalid("complaints", "is required")
	}

	if err := s.actors.EnsureActive(ctx, cmd.CreatedByID); err != nil {
		return nil, err
	}
	if o.AssignedMechanicID != nil {
		if err := s.actors.EnsureActive(ctx, *o.AssignedMechanicID); err != nil {
			return nil, err
		}
	}
	if err := s.directory.CustomerExists(ctx, o.CustomerID); err != nil {
		return nil, err
	}
	owner, err := s.directory.VehicleOwner(ctx, o.VehicleID)
	if err != nil {
		return nil, err
	}
	if owner != o.CustomerID {
		return nil, types.Invalid("vehicle_id", "vehicle does not belong to customer")
	}

	for attempt := 1; ; attempt++ {
		o.OrderNumber = newOrderNumber(s.opts.Now())
		err = s.store.InTx(ctx, func(tx Tx) error {
			if err := tx.Insert(ctx, o); err != nil {
				return err
			}
			return tx.AppendEvent(ctx, &Event{
				OrderID:  o.ID,
				ToStatus: o.Status,
				Event:    EventCreated,
				ActorID:  cmd.CreatedByID,
			})
		})
		var conflict *types.ConflictError
		if errors.As(err, &conflict) && conflict.Field == "order_number" && attempt < orderNumberAttempts {
			s.log.Debug("order number collision, retrying", zap.String("order_number", o.OrderNumber))
			continue
		}
		break
	}
	if err != nil {
		return nil, err
	}
	s.log.Info("service order created",
		zap.Int64("service_order_id", int64(o.ID)),
		zap.String("order_number", o.OrderNumber),
	)
	return o, nil
}

func (s *Service) SubmitInitialCheck(ctx context.Context, orderID, actorID types.ID, in InitialCheckInput) (*ServiceOrder, *InitialCheck, error) {
	rec, err := ValidateInitialCheck(in)
	if err != nil {
		return nil, nil, err
	}
	o, err := s.advance(ctx, orderID, actorID, EventInitialCheckRecorded, func(ctx context.Context, tx Tx, o *ServiceOrder) (Payload, error) {
		rec.ServiceOrderID, rec.InspectorID = o.ID, actorID
		if rec.CheckDate.IsZero() {
			rec.CheckDate = s.opts.Now()
		}
		return Payload{}, tx.InsertInitialCheck(ctx, rec)
	})
	if err != nil {
		return nil, nil, err
	}
	return o, rec, nil
}

func (s *Service) SubmitTechnicalAnalysis(ctx context.Context, orderID, actorID types.ID, in TechnicalAnalysisInput) (*ServiceOrder, *TechnicalAnalysis, error) {
	rec, err := ValidateTechnicalAnalysis(in)
	if err != nil {
		return nil, nil, err
	}
	o, err := s.advance(ctx, orderID, actorID, EventTechnicalAnalysisRecorded, func(ctx context.Context, tx Tx, o *ServiceOrder) (Payload, error) {
		rec.ServiceOrderID, rec.AnalystID = o.ID, actorID
		if rec.AnalysisDate.IsZero() {
			rec.AnalysisDate = s.opts.Now()
		}
		return Payload{}, tx.InsertTechnicalAnalysis(ctx, rec)
	})
	if err != nil {
		return nil, nil, err
	}
	return o, rec, nil
}

func (s *Service) SubmitCustomerEducation(ctx context.Context, orderID, actorID types.ID, in CustomerEducationInput) (*ServiceOrder, *CustomerEducation, error) {
	rec, err := ValidateCustomerEducation(in)
	if err != nil {
		return nil, nil, err
	}
	o, err := s.advance(ctx, orderID, actorID, EventCustomerEducationRecorded, func(ctx context.Context, tx Tx, o *ServiceOrder) (Payload, error) {
		rec.ServiceOrderID, rec.EducatorID = o.ID, actorID
		if rec.EducationDate.IsZero() {
			rec.EducationDate = s.opts.Now()
		}
		if rec.UnderstandingLevel == UnderstandingRefusedService {
			o.CancelReason = strPtr("customer refused service")
		}
		return Payload{UnderstandingLevel: rec.UnderstandingLevel}, tx.InsertCustomerEducation(ctx, rec)
	})
	if err != nil {
		return nil, nil, err
	}
	return o, rec, nil
}

func (s *Service) SubmitCostEstimation(ctx context.Context, orderID, actorID types.ID, in CostEstimationInput) (*ServiceOrder, *CostEstimation, error) {
	rec, err := ValidateCostEstimation(in, s.opts.EnforceTierOrdering)
	if err != nil {
		return nil, nil, err
	}
	o, err := s.advance(ctx, orderID, actorID, EventCostEstimationRecorded, func(ctx context.Context, tx Tx, o *ServiceOrder) (Payload, error) {
		rec.ServiceOrderID, rec.EstimatorID = o.ID, actorID
		if rec.EstimationDate.IsZero() {
			rec.EstimationDate = s.opts.Now()
		}
		return Payload{}, tx.InsertCostEstimation(ctx, rec)
	})
	if err != nil {
		return nil, nil, err
	}
	return o, rec, nil
}

func (s *Service) RecordCustomerDecision(ctx context.Context, cmd CustomerDecisionCommand) (*ServiceOrder, *CostEstimation, error) {
	in, err := ValidateCustomerDecision(cmd.CustomerDecisionInput)
	if err != nil {
		return nil, nil, err
	}
	var rec *CostEstimation
	o, err := s.advance(ctx, cmd.OrderID, cmd.ActorID, EventCustomerDecisionRecorded, func(ctx context.Context, tx Tx, o *ServiceOrder) (Payload, error) {
		ce, err := tx.CostEstimation(ctx, o.ID)
		if err != nil {
			return Payload{}, err
		}
		now := s.opts.Now()
		ce.CustomerDecision, ce.ChosenTier, ce.DecisionNotes, ce.DecidedAt = in.Decision, in.ChosenTier, in.Notes, &now
		if in.Decision == DecisionRejected {
			o.CancelReason = strPtr("estimate rejected by customer")
		}
		rec = ce
		return Payload{Decision: in.Decision, ChosenTier: in.ChosenTier}, tx.UpdateCostDecision(ctx, ce)
	})
	if err != nil {
		return nil, nil, err
	}
	return o, rec, nil
}

// SubmitWorkExecution creates or updates the order's work record. With
// MarkComplete set the order moves to quality control.
func (s *Service) SubmitWorkExecution(ctx context.Context, orderID, actorID types.ID, in WorkExecutionInput) (*ServiceOrder, *WorkExecution, error) {
	rec, err := ValidateWorkExecution(in)
	if err != nil {
		return nil, nil, err
	}
	o, err := s.advance(ctx, orderID, actorID, EventWorkExecutionRecorded, func(ctx context.Context, tx Tx, o *ServiceOrder) (Payload, error) {
		prev, err := tx.WorkExecution(ctx, o.ID)
		if err != nil {
			return Payload{}, err
		}
		now := s.opts.Now()
		rec.ServiceOrderID, rec.MechanicID, rec.StartedAt = o.ID, actorID, now
		if prev != nil {
			rec.StartedAt, rec.ReworkCount = prev.StartedAt, prev.ReworkCount
		}
		if in.MarkComplete {
			rec.CompletedAt = &now
		}
		if o.AssignedMechanicID == nil {
			if err := tx.SetMechanic(ctx, o.ID, actorID); err != nil {
				return Payload{}, err
			}
			o.AssignedMechanicID = types.IDPtr(actorID)
		}
		return Payload{WorkComplete: in.MarkComplete}, tx.SaveWorkExecution(ctx, rec)
	})
	if err != nil {
		return nil, nil, err
	}
	return o, rec, nil
}

// SubmitQualityControl records an inspection. A failed inspection sends the
// order back to work and reopens the work record.
func (s *Service) SubmitQualityControl(ctx context.Context, orderID, actorID types.ID, in QualityControlInput) (*ServiceOrder, *QualityControl, error) {
	rec, err := ValidateQualityControl(in)
	if err != nil {
		return nil, nil, err
	}
	o, err := s.advance(ctx, orderID, actorID, EventQualityControlRecorded, func(ctx context.Context, tx Tx, o *ServiceOrder) (Payload, error) {
		rec.ServiceOrderID, rec.InspectorID, rec.QCDate = o.ID, actorID, s.opts.Now()
		if err := tx.SaveQualityControl(ctx, rec); err != nil {
			return Payload{}, err
		}
		if rec.QCStatus == QCFailed || rec.QCStatus == QCNeedsRework {
			we, err := tx.WorkExecution(ctx, o.ID)
			if err != nil {
				return Payload{}, err
			}
			if we != nil {
				we.CompletedAt = nil
				we.ReworkCount++
				if err := tx.SaveWorkExecution(ctx, we); err != nil {
					return Payload{}, err
				}
			}
		}
		return Payload{QCStatus: rec.QCStatus}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return o, rec, nil
}

// RecordPayment adds an installment. The first installment opens the payment
// record; its total defaults to the price of the chosen tier.
func (s *Service) RecordPayment(ctx context.Context, orderID, actorID types.ID, in PaymentInput) (*ServiceOrder, *Payment, error) {
	if err := ValidatePayment(in); err != nil {
		return nil, nil, err
	}
	var rec *Payment
	o, err := s.advance(ctx, orderID, actorID, EventPaymentRecorded, func(ctx context.Context, tx Tx, o *ServiceOrder) (Payload, error) {
		p, err := tx.Payment(ctx, o.ID)
		if err != nil {
			return Payload{}, err
		}
		if p == nil {
			total, err := s.paymentTotal(ctx, tx, o.ID, in.TotalAmount)
			if err != nil {
				return Payload{}, err
			}
			p = &Payment{ServiceOrderID: o.ID, TotalAmount: total, PaidAmount: types.ZeroMoney}
		} else if in.TotalAmount != nil && !in.TotalAmount.Equal(p.TotalAmount) {
			return Payload{}, types.Invalid("total_amount", "cannot change after the first payment")
		}
		now := s.opts.Now()
		p.PaidAmount = p.PaidAmount.Add(in.Amount)
		p.PaymentMethod, p.CashierID = in.PaymentMethod, actorID
		if in.DueDate != nil {
			p.DueDate = in.DueDate
		}
		p.PaymentStatus = DerivePaymentStatus(p.TotalAmount, p.PaidAmount, p.DueDate, now)
		if p.PaymentStatus == PaymentPaid && p.PaidAt == nil {
			p.PaidAt = &now
		}
		rec = p
		return Payload{PaidAmount: p.PaidAmount, TotalAmount: p.TotalAmount}, tx.SavePayment(ctx, p)
	})
	if err != nil {
		return nil, nil, err
	}
	return o, rec, nil
}

func (s *Service) paymentTotal(ctx context.Context, tx Tx, orderID types.ID, explicit *types.Money) (types.Money, error) {
	if explicit != nil {
		return *explicit, nil
	}
	ce, err := tx.CostEstimation(ctx, orderID)
	if err != nil {
		return types.ZeroMoney, err
	}
	if ce.ChosenTier == nil {
		return types.ZeroMoney, types.Invalid("total_amount", "is required when no tier was chosen")
	}
	return ce.PriceFor(*ce.ChosenTier), nil
}

func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (*ServiceOrder, error) {
	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		return nil, types.Invalid("reason", "is required")
	}
	return s.advance(ctx, cmd.OrderID, cmd.ActorID, EventCancel, func(_ context.Context, _ Tx, o *ServiceOrder) (Payload, error) {
		o.CancelReason = &reason
		return Payload{CallerAuthorized: cmd.Authorized}, nil
	})
}

// AssignMechanic sets or replaces the mechanic of a non-terminal order.
func (s *Service) AssignMechanic(ctx context.Context, orderID, actorID, mechanicID types.ID) (*ServiceOrder, error) {
	if err := s.actors.EnsureActive(ctx, actorID); err != nil {
		return nil, err
	}
	if err := s.actors.EnsureActive(ctx, mechanicID); err != nil {
		return nil, err
	}
	var out *ServiceOrder
	err := s.store.InTx(ctx, func(tx Tx) error {
		o, err := tx.Lock(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status.Terminal() {
			return invalidTransition(o.Status, EventMechanicAssigned)
		}
		if err := tx.SetMechanic(ctx, o.ID, mechanicID); err != nil {
			return err
		}
		o.AssignedMechanicID = types.IDPtr(mechanicID)
		out = o
		return tx.AppendEvent(ctx, &Event{
			OrderID:    o.ID,
			FromStatus: o.Status,
			ToStatus:   o.Status,
			Event:      EventMechanicAssigned,
			ActorID:    actorID,
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*ServiceOrder, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) Timeline(ctx context.Context, id types.ID) ([]*Event, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.store.Events(ctx, id)
}

func (s *Service) StageRecords(ctx context.Context, id types.ID) (*StageRecords, error) {
	return s.store.Stages(ctx, id)
}

type applyFunc func(ctx context.Context, tx Tx, o *ServiceOrder) (Payload, error)

// advance runs one workflow step: lock the order, reject events its status
// does not take, write the stage record, compute and persist the next status
// with a version check, and append the audit event. A cancel reason set by
// apply is kept only when the order ends up cancelled.
func (s *Service) advance(ctx context.Context, orderID, actorID types.ID, event EventKind, apply applyFunc) (*ServiceOrder, error) {
	if err := s.actors.EnsureActive(ctx, actorID); err != nil {
		return nil, err
	}
	var (
		from Status
		out  *ServiceOrder
	)
	err := s.store.InTx(ctx, func(tx Tx) error {
		o, err := tx.Lock(ctx, orderID)
		if err != nil {
			return err
		}
		if !Accepts(o.Status, event) {
			return invalidTransition(o.Status, event)
		}
		from = o.Status
		p, err := apply(ctx, tx, o)
		if err != nil {
			return err
		}
		next, err := NextStatus(from, event, p)
		if err != nil {
			return err
		}
		if next != StatusCancelled {
			o.CancelReason = nil
		} else if err := cancelPayment(ctx, tx, o.ID); err != nil {
			return err
		}
		ok, err := tx.UpdateStatus(ctx, o, next)
		if err != nil {
			return err
		}
		if !ok {
			return invalidTransition(from, event)
		}
		out = o
		return tx.AppendEvent(ctx, &Event{
			OrderID:    o.ID,
			FromStatus: from,
			ToStatus:   next,
			Event:      event,
			ActorID:    actorID,
			Note:       o.CancelReason,
		})
	})
	if err != nil {
		return nil, err
	}
	if from != out.Status {
		s.log.Info("service order transitioned",
			zap.Int64("service_order_id", int64(out.ID)),
			zap.String("from", string(from)),
			zap.String("to", string(out.Status)),
			zap.String("event", string(event)),
		)
	}
	if kind, ok := NotificationFor(from, out.Status); ok {
		s.notify(ctx, out, kind)
	}
	return out, nil
}

func cancelPayment(ctx context.Context, tx Tx, orderID types.ID) error {
	p, err := tx.Payment(ctx, orderID)
	if err != nil || p == nil || p.PaymentStatus == PaymentPaid {
		return err
	}
	p.PaymentStatus = PaymentCancelled
	return tx.SavePayment(ctx, p)
}

func (s *Service) notify(ctx context.Context, o *ServiceOrder, kind NotificationKind) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.NotifyTimeout)
	defer cancel()

	payload := map[string]string{
		"order_number":   o.OrderNumber,
		"status":         string(o.Status),
		"customer_id":    o.CustomerID.String(),
		"vehicle_id":     o.VehicleID.String(),
		"status_version": strconv.Itoa(o.StatusVersion),
	}
	if o.CancelReason != nil {
		payload["reason"] = *o.CancelReason
	}
	if err := s.notifier.Notify(ctx, o.ID, string(kind), payload); err != nil {
		s.log.Warn("notification failed",
			zap.Int64("service_order_id", int64(o.ID)),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
}

// RunOverdueMonitor periodically flags unpaid payments past their due date.
func (s *Service) RunOverdueMonitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		s.log.Warn("overdue monitor disabled", zap.Duration("interval", interval))
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.markOverdue(ctx)
		}
	}
}

func (s *Service) markOverdue(ctx context.Context) {
	ids, err := s.store.MarkOverduePayments(ctx, s.opts.Now())
	if err != nil {
		s.log.Error("overdue payment sweep failed", zap.Error(err))
		return
	}
	if len(ids) > 0 {
		s.log.Info("payments marked overdue", zap.Int("count", len(ids)))
	}
}

func newOrderNumber(now time.Time) string {
	var b [2]byte
	_, _ = rand.Read(b[:])
	return "SO-" + now.UTC().Format("20060102150405") + "-" + strings.ToUpper(hex.EncodeToString(b[:]))
}

func normalizeServiceTypes(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func strPtr(s string) *string { return &s }
