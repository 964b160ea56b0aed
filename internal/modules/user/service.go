// README: User service; also answers actor-existence checks for other modules.
package user

import (
	"context"
	"strings"

	"workshop/internal/types"
)

type Service struct {
	store Repository
}

func NewService(store Repository) *Service {
	return &Service{store: store}
}

type CreateCommand struct {
	Name string
	Role Role
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*User, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return nil, types.Invalid("name", "is required")
	}
	if !cmd.Role.Valid() {
		return nil, types.Invalid("role", "unknown role")
	}
	u := &User{Name: name, Role: cmd.Role, IsActive: true}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*User, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, role Role) ([]*User, error) {
	if role != "" && !role.Valid() {
		return nil, types.Invalid("role", "unknown role")
	}
	return s.store.List(ctx, role)
}

func (s *Service) Deactivate(ctx context.Context, id types.ID) error {
	return s.store.SetActive(ctx, id, false)
}

// EnsureActive fails with NotFound("user", id) for unknown or deactivated users.
func (s *Service) EnsureActive(ctx context.Context, id types.ID) error {
	u, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !u.IsActive {
		return types.NotFound("user", id)
	}
	return nil
}
