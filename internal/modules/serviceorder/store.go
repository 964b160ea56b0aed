// README: Service order store backed by PostgreSQL.
package serviceorder

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"workshop/internal/infra"
	"workshop/internal/types"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(&pgTx{q: tx})
	})
}

const orderColumns = `id, order_number, customer_id, vehicle_id, service_types, complaints,
	referral_notes, defect_notes, assigned_mechanic_id, created_by_id,
	status, status_version, cancel_reason, created_at, updated_at`

func scanOrder(row pgx.Row) (*ServiceOrder, error) {
	var o ServiceOrder
	var mechanicID *int64
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.CustomerID, &o.VehicleID, &o.ServiceTypes, &o.Complaints,
		&o.ReferralNotes, &o.DefectNotes, &mechanicID, &o.CreatedByID,
		&o.Status, &o.StatusVersion, &o.CancelReason, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if mechanicID != nil {
		o.AssignedMechanicID = types.IDPtr(types.ID(*mechanicID))
	}
	return &o, nil
}

func (s *Store) Get(ctx context.Context, id types.ID) (*ServiceOrder, error) {
	o, err := scanOrder(s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM service_orders WHERE id = $1`, int64(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NotFound("service_order", id)
	}
	return o, err
}

func (s *Store) List(ctx context.Context, f Filter) ([]*ServiceOrder, error) {
	statuses := make([]string, 0, len(f.Statuses))
	for _, st := range f.Statuses {
		statuses = append(statuses, string(st))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+orderColumns+`
		FROM service_orders
		WHERE (cardinality($1::text[]) = 0 OR status = ANY($1))
		  AND ($2::bigint IS NULL OR assigned_mechanic_id = $2)
		  AND ($3::bigint IS NULL OR customer_id = $3)
		  AND ($4::bigint IS NULL OR vehicle_id = $4)
		ORDER BY created_at, id
		LIMIT $5`,
		statuses, idArg(f.MechanicID), idArg(f.CustomerID), idArg(f.VehicleID), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ServiceOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.Query(ctx, `SELECT status, COUNT(*) FROM service_orders GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[Status]int, len(AllStatuses))
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		out[Status(st)] = n
	}
	return out, rows.Err()
}

func (s *Store) Events(ctx context.Context, orderID types.ID) ([]*Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, service_order_id, from_status, to_status, event, actor_id, note, created_at
		FROM service_order_events
		WHERE service_order_id = $1
		ORDER BY id`, int64(orderID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.OrderID, &e.FromStatus, &e.ToStatus, &e.Event, &e.ActorID, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *Store) Stages(ctx context.Context, orderID types.ID) (*StageRecords, error) {
	if _, err := s.Get(ctx, orderID); err != nil {
		return nil, err
	}
	var sr StageRecords
	var err error
	if sr.InitialCheck, err = getInitialCheck(ctx, s.db, orderID); err != nil {
		return nil, err
	}
	if sr.TechnicalAnalysis, err = getTechnicalAnalysis(ctx, s.db, orderID); err != nil {
		return nil, err
	}
	if sr.CustomerEducation, err = getCustomerEducation(ctx, s.db, orderID); err != nil {
		return nil, err
	}
	if sr.CostEstimation, err = getCostEstimation(ctx, s.db, orderID); err != nil {
		return nil, err
	}
	if sr.WorkExecution, err = getWorkExecution(ctx, s.db, orderID); err != nil {
		return nil, err
	}
	if sr.QualityControl, err = getQualityControl(ctx, s.db, orderID); err != nil {
		return nil, err
	}
	if sr.Payment, err = getPayment(ctx, s.db, orderID); err != nil {
		return nil, err
	}
	return &sr, nil
}

func (s *Store) MarkOverduePayments(ctx context.Context, now time.Time) ([]types.ID, error) {
	rows, err := s.db.Query(ctx, `
		UPDATE payments
		SET payment_status = 'OVERDUE', updated_at = NOW()
		WHERE payment_status IN ('PENDING', 'PARTIAL')
		  AND due_date IS NOT NULL
		  AND due_date < $1
		RETURNING service_order_id`, now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.ID
	for rows.Next() {
		var id types.ID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

type pgTx struct {
	q querier
}

func (t *pgTx) Insert(ctx context.Context, o *ServiceOrder) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO service_orders (
			order_number, customer_id, vehicle_id, service_types, complaints,
			referral_notes, defect_notes, assigned_mechanic_id, created_by_id,
			status, status_version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`,
		o.OrderNumber, int64(o.CustomerID), int64(o.VehicleID), o.ServiceTypes, o.Complaints,
		o.ReferralNotes, o.DefectNotes, idArg(o.AssignedMechanicID), int64(o.CreatedByID),
		string(o.Status), o.StatusVersion,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if _, ok := infra.UniqueViolation(err); ok {
		return types.Conflict("service_order", "order_number")
	}
	if name, ok := infra.ForeignKeyViolation(err); ok {
		switch name {
		case "service_orders_customer_id_fkey":
			return types.NotFound("customer", o.CustomerID)
		case "service_orders_vehicle_id_fkey":
			return types.NotFound("vehicle", o.VehicleID)
		case "service_orders_assigned_mechanic_id_fkey":
			return types.NotFound("user", *o.AssignedMechanicID)
		default:
			return types.NotFound("user", o.CreatedByID)
		}
	}
	return err
}

func (t *pgTx) Lock(ctx context.Context, id types.ID) (*ServiceOrder, error) {
	o, err := scanOrder(t.q.QueryRow(ctx, `SELECT `+orderColumns+` FROM service_orders WHERE id = $1 FOR UPDATE`, int64(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NotFound("service_order", id)
	}
	return o, err
}

func (t *pgTx) UpdateStatus(ctx context.Context, o *ServiceOrder, to Status) (bool, error) {
	err := t.q.QueryRow(ctx, `
		UPDATE service_orders
		SET status = $1,
		    status_version = status_version + 1,
		    cancel_reason = COALESCE($2, cancel_reason),
		    updated_at = NOW()
		WHERE id = $3 AND status = $4 AND status_version = $5
		RETURNING status_version, updated_at`,
		string(to), o.CancelReason, int64(o.ID), string(o.Status), o.StatusVersion,
	).Scan(&o.StatusVersion, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	o.Status = to
	return true, nil
}

func (t *pgTx) SetMechanic(ctx context.Context, id types.ID, mechanicID types.ID) error {
	_, err := t.q.Exec(ctx, `
		UPDATE service_orders SET assigned_mechanic_id = $1, updated_at = NOW() WHERE id = $2`,
		int64(mechanicID), int64(id),
	)
	if _, ok := infra.ForeignKeyViolation(err); ok {
		return types.NotFound("user", mechanicID)
	}
	return err
}

func (t *pgTx) AppendEvent(ctx context.Context, e *Event) error {
	return t.q.QueryRow(ctx, `
		INSERT INTO service_order_events (service_order_id, from_status, to_status, event, actor_id, note)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		int64(e.OrderID), string(e.FromStatus), string(e.ToStatus), string(e.Event), int64(e.ActorID), e.Note,
	).Scan(&e.ID, &e.CreatedAt)
}

func (t *pgTx) InsertInitialCheck(ctx context.Context, r *InitialCheck) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO initial_checks (
			service_order_id, engine_oil_checked, coolant_checked, brakes_checked,
			tires_checked, lights_checked, battery_checked, additional_findings,
			inspector_id, check_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`,
		int64(r.ServiceOrderID), r.EngineOilChecked, r.CoolantChecked, r.BrakesChecked,
		r.TiresChecked, r.LightsChecked, r.BatteryChecked, r.AdditionalFindings,
		int64(r.InspectorID), r.CheckDate,
	).Scan(&r.ID, &r.CreatedAt)
	return mapStageErr(err, "initial_check")
}

func (t *pgTx) InsertTechnicalAnalysis(ctx context.Context, r *TechnicalAnalysis) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO technical_analyses (
			service_order_id, problem_description, root_cause_analysis,
			recommended_actions, visual_evidence_urls, analyst_id, analysis_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		int64(r.ServiceOrderID), r.ProblemDescription, r.RootCauseAnalysis,
		r.RecommendedActions, r.VisualEvidenceURLs, int64(r.AnalystID), r.AnalysisDate,
	).Scan(&r.ID, &r.CreatedAt)
	return mapStageErr(err, "technical_analysis")
}

func (t *pgTx) InsertCustomerEducation(ctx context.Context, r *CustomerEducation) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO customer_educations (
			service_order_id, explanation_provided, customer_questions,
			understanding_level, educator_id, education_date
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		int64(r.ServiceOrderID), r.ExplanationProvided, r.CustomerQuestions,
		string(r.UnderstandingLevel), int64(r.EducatorID), r.EducationDate,
	).Scan(&r.ID, &r.CreatedAt)
	return mapStageErr(err, "customer_education")
}

func (t *pgTx) InsertCostEstimation(ctx context.Context, r *CostEstimation) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO cost_estimations (
			service_order_id,
			economic_price, economic_description,
			standard_price, standard_description,
			premium_price, premium_description,
			customer_decision, estimator_id, estimation_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`,
		int64(r.ServiceOrderID),
		r.EconomicPrice, r.EconomicDescription,
		r.StandardPrice, r.StandardDescription,
		r.PremiumPrice, r.PremiumDescription,
		string(r.CustomerDecision), int64(r.EstimatorID), r.EstimationDate,
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	return mapStageErr(err, "cost_estimation")
}

func (t *pgTx) CostEstimation(ctx context.Context, orderID types.ID) (*CostEstimation, error) {
	r, err := getCostEstimation(ctx, t.q, orderID)
	if err == nil && r == nil {
		return nil, types.NotFound("cost_estimation", orderID)
	}
	return r, err
}

func (t *pgTx) UpdateCostDecision(ctx context.Context, r *CostEstimation) error {
	var tier *string
	if r.ChosenTier != nil {
		v := string(*r.ChosenTier)
		tier = &v
	}
	return t.q.QueryRow(ctx, `
		UPDATE cost_estimations
		SET customer_decision = $1, chosen_tier = $2, decision_notes = $3, decided_at = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING updated_at`,
		string(r.CustomerDecision), tier, r.DecisionNotes, r.DecidedAt, int64(r.ID),
	).Scan(&r.UpdatedAt)
}

func (t *pgTx) WorkExecution(ctx context.Context, orderID types.ID) (*WorkExecution, error) {
	return getWorkExecution(ctx, t.q, orderID)
}

func (t *pgTx) SaveWorkExecution(ctx context.Context, r *WorkExecution) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO work_executions (
			service_order_id, work_description, labor_hours, parts_used,
			completion_checklist, mechanic_id, started_at, completed_at, rework_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (service_order_id) DO UPDATE SET
			work_description = EXCLUDED.work_description,
			labor_hours = EXCLUDED.labor_hours,
			parts_used = EXCLUDED.parts_used,
			completion_checklist = EXCLUDED.completion_checklist,
			mechanic_id = EXCLUDED.mechanic_id,
			completed_at = EXCLUDED.completed_at,
			rework_count = EXCLUDED.rework_count,
			updated_at = NOW()
		RETURNING id, started_at, created_at, updated_at`,
		int64(r.ServiceOrderID), r.WorkDescription, r.LaborHours, r.PartsUsed,
		r.CompletionChecklist, int64(r.MechanicID), r.StartedAt, r.CompletedAt, r.ReworkCount,
	).Scan(&r.ID, &r.StartedAt, &r.CreatedAt, &r.UpdatedAt)
	return mapStageErr(err, "work_execution")
}

func (t *pgTx) QualityControl(ctx context.Context, orderID types.ID) (*QualityControl, error) {
	return getQualityControl(ctx, t.q, orderID)
}

func (t *pgTx) SaveQualityControl(ctx context.Context, r *QualityControl) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO quality_controls (
			service_order_id, critical_factors_check, defects_found, final_approval,
			qc_status, notes, inspector_id, qc_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (service_order_id) DO UPDATE SET
			critical_factors_check = EXCLUDED.critical_factors_check,
			defects_found = EXCLUDED.defects_found,
			final_approval = EXCLUDED.final_approval,
			qc_status = EXCLUDED.qc_status,
			notes = EXCLUDED.notes,
			inspector_id = EXCLUDED.inspector_id,
			qc_date = EXCLUDED.qc_date,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		int64(r.ServiceOrderID), r.CriticalFactorsCheck, r.DefectsFound, r.FinalApproval,
		string(r.QCStatus), r.Notes, int64(r.InspectorID), r.QCDate,
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	return mapStageErr(err, "quality_control")
}

func (t *pgTx) Payment(ctx context.Context, orderID types.ID) (*Payment, error) {
	return getPayment(ctx, t.q, orderID)
}

func (t *pgTx) SavePayment(ctx context.Context, r *Payment) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO payments (
			service_order_id, total_amount, paid_amount, payment_method,
			payment_status, due_date, paid_at, cashier_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (service_order_id) DO UPDATE SET
			total_amount = EXCLUDED.total_amount,
			paid_amount = EXCLUDED.paid_amount,
			payment_method = EXCLUDED.payment_method,
			payment_status = EXCLUDED.payment_status,
			due_date = EXCLUDED.due_date,
			paid_at = EXCLUDED.paid_at,
			cashier_id = EXCLUDED.cashier_id,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		int64(r.ServiceOrderID), r.TotalAmount, r.PaidAmount, string(r.PaymentMethod),
		string(r.PaymentStatus), r.DueDate, r.PaidAt, int64(r.CashierID),
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	return mapStageErr(err, "payment")
}

func getInitialCheck(ctx context.Context, q querier, orderID types.ID) (*InitialCheck, error) {
	var r InitialCheck
	err := q.QueryRow(ctx, `
		SELECT id, service_order_id, engine_oil_checked, coolant_checked, brakes_checked,
		       tires_checked, lights_checked, battery_checked, additional_findings,
		       inspector_id, check_date, created_at
		FROM initial_checks WHERE service_order_id = $1`, int64(orderID),
	).Scan(
		&r.ID, &r.ServiceOrderID, &r.EngineOilChecked, &r.CoolantChecked, &r.BrakesChecked,
		&r.TiresChecked, &r.LightsChecked, &r.BatteryChecked, &r.AdditionalFindings,
		&r.InspectorID, &r.CheckDate, &r.CreatedAt,
	)
	return optional(&r, err)
}

func getTechnicalAnalysis(ctx context.Context, q querier, orderID types.ID) (*TechnicalAnalysis, error) {
	var r TechnicalAnalysis
	err := q.QueryRow(ctx, `
		SELECT id, service_order_id, problem_description, root_cause_analysis,
		       recommended_actions, visual_evidence_urls, analyst_id, analysis_date, created_at
		FROM technical_analyses WHERE service_order_id = $1`, int64(orderID),
	).Scan(
		&r.ID, &r.ServiceOrderID, &r.ProblemDescription, &r.RootCauseAnalysis,
		&r.RecommendedActions, &r.VisualEvidenceURLs, &r.AnalystID, &r.AnalysisDate, &r.CreatedAt,
	)
	return optional(&r, err)
}

func getCustomerEducation(ctx context.Context, q querier, orderID types.ID) (*CustomerEducation, error) {
	var r CustomerEducation
	err := q.QueryRow(ctx, `
		SELECT id, service_order_id, explanation_provided, customer_questions,
		       understanding_level, educator_id, education_date, created_at
		FROM customer_educations WHERE service_order_id = $1`, int64(orderID),
	).Scan(
		&r.ID, &r.ServiceOrderID, &r.ExplanationProvided, &r.CustomerQuestions,
		&r.UnderstandingLevel, &r.EducatorID, &r.EducationDate, &r.CreatedAt,
	)
	return optional(&r, err)
}

func getCostEstimation(ctx context.Context, q querier, orderID types.ID) (*CostEstimation, error) {
	var r CostEstimation
	var tier *string
	err := q.QueryRow(ctx, `
		SELECT id, service_order_id,
		       economic_price, economic_description,
		       standard_price, standard_description,
		       premium_price, premium_description,
		       customer_decision, chosen_tier, decision_notes, decided_at,
		       estimator_id, estimation_date, created_at, updated_at
		FROM cost_estimations WHERE service_order_id = $1`, int64(orderID),
	).Scan(
		&r.ID, &r.ServiceOrderID,
		&r.EconomicPrice, &r.EconomicDescription,
		&r.StandardPrice, &r.StandardDescription,
		&r.PremiumPrice, &r.PremiumDescription,
		&r.CustomerDecision, &tier, &r.DecisionNotes, &r.DecidedAt,
		&r.EstimatorID, &r.EstimationDate, &r.CreatedAt, &r.UpdatedAt,
	)
	if tier != nil {
		t := Tier(*tier)
		r.ChosenTier = &t
	}
	return optional(&r, err)
}

func getWorkExecution(ctx context.Context, q querier, orderID types.ID) (*WorkExecution, error) {
	var r WorkExecution
	err := q.QueryRow(ctx, `
		SELECT id, service_order_id, work_description, labor_hours, parts_used,
		       completion_checklist, mechanic_id, started_at, completed_at, rework_count,
		       created_at, updated_at
		FROM work_executions WHERE service_order_id = $1`, int64(orderID),
	).Scan(
		&r.ID, &r.ServiceOrderID, &r.WorkDescription, &r.LaborHours, &r.PartsUsed,
		&r.CompletionChecklist, &r.MechanicID, &r.StartedAt, &r.CompletedAt, &r.ReworkCount,
		&r.CreatedAt, &r.UpdatedAt,
	)
	return optional(&r, err)
}

func getQualityControl(ctx context.Context, q querier, orderID types.ID) (*QualityControl, error) {
	var r QualityControl
	err := q.QueryRow(ctx, `
		SELECT id, service_order_id, critical_factors_check, defects_found, final_approval,
		       qc_status, notes, inspector_id, qc_date, created_at, updated_at
		FROM quality_controls WHERE service_order_id = $1`, int64(orderID),
	).Scan(
		&r.ID, &r.ServiceOrderID, &r.CriticalFactorsCheck, &r.DefectsFound, &r.FinalApproval,
		&r.QCStatus, &r.Notes, &r.InspectorID, &r.QCDate, &r.CreatedAt, &r.UpdatedAt,
	)
	return optional(&r, err)
}

func getPayment(ctx context.Context, q querier, orderID types.ID) (*Payment, error) {
	var r Payment
	err := q.QueryRow(ctx, `
		SELECT id, service_order_id, total_amount, paid_amount, payment_method,
		       payment_status, due_date, paid_at, cashier_id, created_at, updated_at
		FROM payments WHERE service_order_id = $1`, int64(orderID),
	).Scan(
		&r.ID, &r.ServiceOrderID, &r.TotalAmount, &r.PaidAmount, &r.PaymentMethod,
		&r.PaymentStatus, &r.DueDate, &r.PaidAt, &r.CashierID, &r.CreatedAt, &r.UpdatedAt,
	)
	return optional(&r, err)
}

// optional turns "no rows" into a nil record.
func optional[T any](r *T, err error) (*T, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func mapStageErr(err error, entity string) error {
	if _, ok := infra.UniqueViolation(err); ok {
		return types.Conflict(entity, "service_order_id")
	}
	if name, ok := infra.ValueViolation(err); ok {
		return types.Invalid(entity, "value out of range for storage ("+name+")")
	}
	return err
}

func idArg(id *types.ID) *int64 {
	if id == nil {
		return nil
	}
	v := int64(*id)
	return &v
}
