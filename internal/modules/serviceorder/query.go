// README: Read-only workflow queries: role queues and dashboard counts.
package serviceorder

import (
	"context"

	"workshop/internal/types"
)

func (s *Service) OrdersInStatus(ctx context.Context, status Status) ([]*ServiceOrder, error) {
	if !status.Valid() {
		return nil, types.Invalid("status", "unknown status")
	}
	return s.store.List(ctx, Filter{Statuses: []Status{status}})
}

// OrdersForMechanic lists orders assigned to the mechanic. With no statuses
// given it returns the mechanic's open work.
func (s *Service) OrdersForMechanic(ctx context.Context, mechanicID types.ID, statuses ...Status) ([]*ServiceOrder, error) {
	for _, st := range statuses {
		if !st.Valid() {
			return nil, types.Invalid("status", "unknown status")
		}
	}
	if len(statuses) == 0 {
		statuses = ActiveStatuses
	}
	return s.store.List(ctx, Filter{Statuses: statuses, MechanicID: &mechanicID})
}

func (s *Service) PendingQCQueue(ctx context.Context) ([]*ServiceOrder, error) {
	return s.OrdersInStatus(ctx, StatusQualityControl)
}

func (s *Service) PendingPaymentQueue(ctx context.Context) ([]*ServiceOrder, error) {
	return s.OrdersInStatus(ctx, StatusAwaitingPayment)
}

// List is the general order listing used by the order index endpoint.
func (s *Service) List(ctx context.Context, f Filter) ([]*ServiceOrder, error) {
	for _, st := range f.Statuses {
		if !st.Valid() {
			return nil, types.Invalid("status", "unknown status")
		}
	}
	return s.store.List(ctx, f)
}

// StatusCounts reports every status, including those with no orders.
func (s *Service) StatusCounts(ctx context.Context) (map[Status]int, error) {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[Status]int, len(AllStatuses))
	for _, st := range AllStatuses {
		out[st] = counts[st]
	}
	return out, nil
}
