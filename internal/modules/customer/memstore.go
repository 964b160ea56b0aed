// README: In-memory customer/vehicle repository enforcing the same unique keys as the schema.
package customer

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"workshop/internal/types"
)

type MemStore struct {
	mu        sync.Mutex
	seq       types.ID
	customers map[types.ID]Customer
	vehicles  map[types.ID]Vehicle
}

func NewMemStore() *MemStore {
	return &MemStore{
		customers: make(map[types.ID]Customer),
		vehicles:  make(map[types.ID]Vehicle),
	}
}

func (m *MemStore) CreateCustomer(_ context.Context, c *Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phoneTaken(c.Phone, 0) {
		return types.Conflict("customer", "phone")
	}
	m.seq++
	now := time.Now()
	c.ID, c.CreatedAt, c.UpdatedAt = m.seq, now, now
	m.customers[c.ID] = *c
	return nil
}

func (m *MemStore) GetCustomer(_ context.Context, id types.ID) (*Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, types.NotFound("customer", id)
	}
	return &c, nil
}

func (m *MemStore) ListCustomers(_ context.Context, search string) ([]*Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := strings.ToLower(search)
	var out []*Customer
	for _, c := range m.customers {
		if q != "" && !strings.Contains(strings.ToLower(c.Name), q) && !strings.Contains(c.Phone, search) {
			continue
		}
		cp := c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) UpdateCustomer(_ context.Context, c *Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.customers[c.ID]; !ok {
		return types.NotFound("customer", c.ID)
	}
	if m.phoneTaken(c.Phone, c.ID) {
		return types.Conflict("customer", "phone")
	}
	c.UpdatedAt = time.Now()
	m.customers[c.ID] = *c
	return nil
}

func (m *MemStore) CreateVehicle(_ context.Context, v *Vehicle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.customers[v.CustomerID]; !ok {
		return types.NotFound("customer", v.CustomerID)
	}
	if m.plateTaken(v.LicensePlate, 0) {
		return types.Conflict("vehicle", "license_plate")
	}
	m.seq++
	now := time.Now()
	v.ID, v.CreatedAt, v.UpdatedAt = m.seq, now, now
	m.vehicles[v.ID] = *v
	return nil
}

func (m *MemStore) GetVehicle(_ context.Context, id types.ID) (*Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vehicles[id]
	if !ok {
		return nil, types.NotFound("vehicle", id)
	}
	return &v, nil
}

func (m *MemStore) ListVehicles(_ context.Context, customerID types.ID) ([]*Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Vehicle
	for _, v := range m.vehicles {
		if v.CustomerID != customerID {
			continue
		}
		cp := v
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) UpdateVehicle(_ context.Context, v *Vehicle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.vehicles[v.ID]
	if !ok {
		return types.NotFound("vehicle", v.ID)
	}
	if m.plateTaken(v.LicensePlate, v.ID) {
		return types.Conflict("vehicle", "license_plate")
	}
	v.CustomerID = old.CustomerID
	v.UpdatedAt = time.Now()
	m.vehicles[v.ID] = *v
	return nil
}

func (m *MemStore) phoneTaken(phone string, except types.ID) bool {
	for id, c := range m.customers {
		if id != except && c.Phone == phone {
			return true
		}
	}
	return false
}

func (m *MemStore) plateTaken(plate string, except types.ID) bool {
	for id, v := range m.vehicles {
		if id != except && v.LicensePlate == plate {
			return true
		}
	}
	return false
}
