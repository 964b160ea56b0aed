// README: In-memory user repository for the memory store driver and tests.
package user

import (
	"context"
	"sort"
	"sync"
	"time"

	"workshop/internal/types"
)

type MemStore struct {
	mu    sync.Mutex
	seq   types.ID
	users map[types.ID]User
}

func NewMemStore() *MemStore {
	return &MemStore{users: make(map[types.ID]User)}
}

func (m *MemStore) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	u.ID = m.seq
	u.CreatedAt = time.Now()
	m.users[u.ID] = *u
	return nil
}

func (m *MemStore) Get(_ context.Context, id types.ID) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, types.NotFound("user", id)
	}
	return &u, nil
}

func (m *MemStore) List(_ context.Context, role Role) ([]*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*User
	for _, u := range m.users {
		if role != "" && u.Role != role {
			continue
		}
		cp := u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) SetActive(_ context.Context, id types.ID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return types.NotFound("user", id)
	}
	u.IsActive = active
	m.users[id] = u
	return nil
}
