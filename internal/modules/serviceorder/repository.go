// README: Persistence contract for service orders; implemented by Store (pgx) and MemStore.
package serviceorder

import (
	"context"
	"time"

	"workshop/internal/types"
)

// Filter selects orders for queue and list queries. Zero fields do not filter.
type Filter struct {
	Statuses   []Status
	MechanicID *types.ID
	CustomerID *types.ID
	VehicleID  *types.ID
	Limit      int
}

type Repository interface {
	// InTx runs fn inside one transaction. Any error from fn rolls it back.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	Get(ctx context.Context, id types.ID) (*ServiceOrder, error)
	List(ctx context.Context, f Filter) ([]*ServiceOrder, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
	Events(ctx context.Context, orderID types.ID) ([]*Event, error)
	Stages(ctx context.Context, orderID types.ID) (*StageRecords, error)

	// MarkOverduePayments flips unpaid payments past their due date to OVERDUE
	// and returns the affected order ids.
	MarkOverduePayments(ctx context.Context, now time.Time) ([]types.ID, error)
}

// Tx is the write side. Every method runs in the enclosing transaction.
type Tx interface {
	Insert(ctx context.Context, o *ServiceOrder) error
	// Lock reads the order and holds it until the transaction ends.
	Lock(ctx context.Context, id types.ID) (*ServiceOrder, error)
	// UpdateStatus moves from -> to if the order is still at version, bumping
	// the version. It reports false when the order moved on meanwhile.
	UpdateStatus(ctx context.Context, o *ServiceOrder, to Status) (bool, error)
	SetMechanic(ctx context.Context, id types.ID, mechanicID types.ID) error
	AppendEvent(ctx context.Context, e *Event) error

	InsertInitialCheck(ctx context.Context, r *InitialCheck) error
	InsertTechnicalAnalysis(ctx context.Context, r *TechnicalAnalysis) error
	InsertCustomerEducation(ctx context.Context, r *CustomerEducation) error
	InsertCostEstimation(ctx context.Context, r *CostEstimation) error
	CostEstimation(ctx context.Context, orderID types.ID) (*CostEstimation, error)
	UpdateCostDecision(ctx context.Context, r *CostEstimation) error

	// WorkExecution, QualityControl and Payment return nil, nil when absent.
	WorkExecution(ctx context.Context, orderID types.ID) (*WorkExecution, error)
	SaveWorkExecution(ctx context.Context, r *WorkExecution) error
	QualityControl(ctx context.Context, orderID types.ID) (*QualityControl, error)
	SaveQualityControl(ctx context.Context, r *QualityControl) error
	Payment(ctx context.Context, orderID types.ID) (*Payment, error)
	SavePayment(ctx context.Context, r *Payment) error
}
