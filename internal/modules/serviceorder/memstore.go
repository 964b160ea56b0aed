// README: In-memory service order repository. Transactions are serialized
// and work on a copy of the state that replaces it only on commit.
package serviceorder

import (
	"context"
	"sort"
	"sync"
	"time"

	"workshop/internal/types"
)

type memState struct {
	seq      int64
	orders   map[types.ID]ServiceOrder
	numbers  map[string]types.ID
	events   []Event
	checks   map[types.ID]InitialCheck
	analyses map[types.ID]TechnicalAnalysis
	educ     map[types.ID]CustomerEducation
	costs    map[types.ID]CostEstimation
	works    map[types.ID]WorkExecution
	qcs      map[types.ID]QualityControl
	payments map[types.ID]Payment
}

func newMemState() *memState {
	return &memState{
		orders:   make(map[types.ID]ServiceOrder),
		numbers:  make(map[string]types.ID),
		checks:   make(map[types.ID]InitialCheck),
		analyses: make(map[types.ID]TechnicalAnalysis),
		educ:     make(map[types.ID]CustomerEducation),
		costs:    make(map[types.ID]CostEstimation),
		works:    make(map[types.ID]WorkExecution),
		qcs:      make(map[types.ID]QualityControl),
		payments: make(map[types.ID]Payment),
	}
}

func (s *memState) clone() *memState {
	c := &memState{seq: s.seq, events: append([]Event(nil), s.events...)}
	c.orders = cloneMap(s.orders)
	c.numbers = cloneMap(s.numbers)
	c.checks = cloneMap(s.checks)
	c.analyses = cloneMap(s.analyses)
	c.educ = cloneMap(s.educ)
	c.costs = cloneMap(s.costs)
	c.works = cloneMap(s.works)
	c.qcs = cloneMap(s.qcs)
	c.payments = cloneMap(s.payments)
	return c
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memState) next() int64 {
	s.seq++
	return s.seq
}

type MemStore struct {
	mu    sync.Mutex
	state *memState
}

func NewMemStore() *MemStore {
	return &MemStore{state: newMemState()}
}

func (m *MemStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	work := m.state.clone()
	if err := fn(&memTx{s: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *MemStore) Get(_ context.Context, id types.ID) (*ServiceOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.state.orders[id]
	if !ok {
		return nil, types.NotFound("service_order", id)
	}
	return copyOrder(o), nil
}

func (m *MemStore) List(_ context.Context, f Filter) ([]*ServiceOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*ServiceOrder
	for _, o := range m.state.orders {
		if matches(o, f) {
			out = append(out, copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func matches(o ServiceOrder, f Filter) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if o.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.MechanicID != nil && (o.AssignedMechanicID == nil || *o.AssignedMechanicID != *f.MechanicID) {
		return false
	}
	if f.CustomerID != nil && o.CustomerID != *f.CustomerID {
		return false
	}
	if f.VehicleID != nil && o.VehicleID != *f.VehicleID {
		return false
	}
	return true
}

func (m *MemStore) CountByStatus(context.Context) (map[Status]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[Status]int, len(AllStatuses))
	for _, o := range m.state.orders {
		out[o.Status]++
	}
	return out, nil
}

func (m *MemStore) Events(_ context.Context, orderID types.ID) ([]*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Event
	for _, e := range m.state.events {
		if e.OrderID == orderID {
			e := e
			out = append(out, &e)
		}
	}
	return out, nil
}

func (m *MemStore) Stages(_ context.Context, orderID types.ID) (*StageRecords, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.state
	if _, ok := s.orders[orderID]; !ok {
		return nil, types.NotFound("service_order", orderID)
	}
	var sr StageRecords
	if r, ok := s.checks[orderID]; ok {
		sr.InitialCheck = &r
	}
	if r, ok := s.analyses[orderID]; ok {
		r.VisualEvidenceURLs = append([]string(nil), r.VisualEvidenceURLs...)
		sr.TechnicalAnalysis = &r
	}
	if r, ok := s.educ[orderID]; ok {
		sr.CustomerEducation = &r
	}
	if r, ok := s.costs[orderID]; ok {
		sr.CostEstimation = &r
	}
	if r, ok := s.works[orderID]; ok {
		r.CompletionChecklist = cloneMap(r.CompletionChecklist)
		sr.WorkExecution = &r
	}
	if r, ok := s.qcs[orderID]; ok {
		r.CriticalFactorsCheck = cloneMap(r.CriticalFactorsCheck)
		sr.QualityControl = &r
	}
	if r, ok := s.payments[orderID]; ok {
		sr.Payment = &r
	}
	return &sr, nil
}

func (m *MemStore) MarkOverduePayments(_ context.Context, now time.Time) ([]types.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.ID
	for id, p := range m.state.payments {
		if p.PaymentStatus != PaymentPending && p.PaymentStatus != PaymentPartial {
			continue
		}
		if p.DueDate == nil || !p.DueDate.Before(now) {
			continue
		}
		p.PaymentStatus = PaymentOverdue
		p.UpdatedAt = now
		m.state.payments[id] = p
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

type memTx struct {
	s *memState
}

func (t *memTx) Insert(_ context.Context, o *ServiceOrder) error {
	if _, taken := t.s.numbers[o.OrderNumber]; taken {
		return types.Conflict("service_order", "order_number")
	}
	now := time.Now()
	o.ID = types.ID(t.s.next())
	o.CreatedAt, o.UpdatedAt = now, now
	t.s.orders[o.ID] = *copyOrder(*o)
	t.s.numbers[o.OrderNumber] = o.ID
	return nil
}

func (t *memTx) Lock(_ context.Context, id types.ID) (*ServiceOrder, error) {
	o, ok := t.s.orders[id]
	if !ok {
		return nil, types.NotFound("service_order", id)
	}
	return copyOrder(o), nil
}

func (t *memTx) UpdateStatus(_ context.Context, o *ServiceOrder, to Status) (bool, error) {
	cur, ok := t.s.orders[o.ID]
	if !ok || cur.Status != o.Status || cur.StatusVersion != o.StatusVersion {
		return false, nil
	}
	cur.Status = to
	cur.StatusVersion++
	cur.UpdatedAt = time.Now()
	if o.CancelReason != nil {
		cur.CancelReason = o.CancelReason
	}
	t.s.orders[o.ID] = cur
	o.Status, o.StatusVersion, o.UpdatedAt = cur.Status, cur.StatusVersion, cur.UpdatedAt
	return true, nil
}

func (t *memTx) SetMechanic(_ context.Context, id types.ID, mechanicID types.ID) error {
	o, ok := t.s.orders[id]
	if !ok {
		return types.NotFound("service_order", id)
	}
	o.AssignedMechanicID = types.IDPtr(mechanicID)
	o.UpdatedAt = time.Now()
	t.s.orders[id] = o
	return nil
}

func (t *memTx) AppendEvent(_ context.Context, e *Event) error {
	e.ID = t.s.next()
	e.CreatedAt = time.Now()
	t.s.events = append(t.s.events, *e)
	return nil
}

func (t *memTx) InsertInitialCheck(_ context.Context, r *InitialCheck) error {
	if _, dup := t.s.checks[r.ServiceOrderID]; dup {
		return types.Conflict("initial_check", "service_order_id")
	}
	r.ID, r.CreatedAt = types.ID(t.s.next()), time.Now()
	t.s.checks[r.ServiceOrderID] = *r
	return nil
}

func (t *memTx) InsertTechnicalAnalysis(_ context.Context, r *TechnicalAnalysis) error {
	if _, dup := t.s.analyses[r.ServiceOrderID]; dup {
		return types.Conflict("technical_analysis", "service_order_id")
	}
	r.ID, r.CreatedAt = types.ID(t.s.next()), time.Now()
	t.s.analyses[r.ServiceOrderID] = *r
	return nil
}

func (t *memTx) InsertCustomerEducation(_ context.Context, r *CustomerEducation) error {
	if _, dup := t.s.educ[r.ServiceOrderID]; dup {
		return types.Conflict("customer_education", "service_order_id")
	}
	r.ID, r.CreatedAt = types.ID(t.s.next()), time.Now()
	t.s.educ[r.ServiceOrderID] = *r
	return nil
}

func (t *memTx) InsertCostEstimation(_ context.Context, r *CostEstimation) error {
	if _, dup := t.s.costs[r.ServiceOrderID]; dup {
		return types.Conflict("cost_estimation", "service_order_id")
	}
	now := time.Now()
	r.ID, r.CreatedAt, r.UpdatedAt = types.ID(t.s.next()), now, now
	t.s.costs[r.ServiceOrderID] = *r
	return nil
}

func (t *memTx) CostEstimation(_ context.Context, orderID types.ID) (*CostEstimation, error) {
	r, ok := t.s.costs[orderID]
	if !ok {
		return nil, types.NotFound("cost_estimation", orderID)
	}
	return &r, nil
}

func (t *memTx) UpdateCostDecision(_ context.Context, r *CostEstimation) error {
	if _, ok := t.s.costs[r.ServiceOrderID]; !ok {
		return types.NotFound("cost_estimation", r.ServiceOrderID)
	}
	r.UpdatedAt = time.Now()
	t.s.costs[r.ServiceOrderID] = *r
	return nil
}

func (t *memTx) WorkExecution(_ context.Context, orderID types.ID) (*WorkExecution, error) {
	r, ok := t.s.works[orderID]
	if !ok {
		return nil, nil
	}
	r.CompletionChecklist = cloneMap(r.CompletionChecklist)
	return &r, nil
}

func (t *memTx) SaveWorkExecution(_ context.Context, r *WorkExecution) error {
	now := time.Now()
	if cur, ok := t.s.works[r.ServiceOrderID]; ok {
		r.ID, r.StartedAt, r.CreatedAt = cur.ID, cur.StartedAt, cur.CreatedAt
	} else {
		r.ID, r.CreatedAt = types.ID(t.s.next()), now
	}
	r.UpdatedAt = now
	saved := *r
	saved.CompletionChecklist = cloneMap(r.CompletionChecklist)
	t.s.works[r.ServiceOrderID] = saved
	return nil
}

func (t *memTx) QualityControl(_ context.Context, orderID types.ID) (*QualityControl, error) {
	r, ok := t.s.qcs[orderID]
	if !ok {
		return nil, nil
	}
	r.CriticalFactorsCheck = cloneMap(r.CriticalFactorsCheck)
	return &r, nil
}

func (t *memTx) SaveQualityControl(_ context.Context, r *QualityControl) error {
	now := time.Now()
	if cur, ok := t.s.qcs[r.ServiceOrderID]; ok {
		r.ID, r.CreatedAt = cur.ID, cur.CreatedAt
	} else {
		r.ID, r.CreatedAt = types.ID(t.s.next()), now
	}
	r.UpdatedAt = now
	saved := *r
	saved.CriticalFactorsCheck = cloneMap(r.CriticalFactorsCheck)
	t.s.qcs[r.ServiceOrderID] = saved
	return nil
}

func (t *memTx) Payment(_ context.Context, orderID types.ID) (*Payment, error) {
	r, ok := t.s.payments[orderID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (t *memTx) SavePayment(_ context.Context, r *Payment) error {
	now := time.Now()
	if cur, ok := t.s.payments[r.ServiceOrderID]; ok {
		r.ID, r.CreatedAt = cur.ID, cur.CreatedAt
	} else {
		r.ID, r.CreatedAt = types.ID(t.s.next()), now
	}
	r.UpdatedAt = now
	t.s.payments[r.ServiceOrderID] = *r
	return nil
}

func copyOrder(o ServiceOrder) *ServiceOrder {
	o.ServiceTypes = append([]string(nil), o.ServiceTypes...)
	return &o
}
