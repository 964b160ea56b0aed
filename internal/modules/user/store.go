// README: User store backed by PostgreSQL.
package user

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"workshop/internal/types"
)

type Repository interface {
	Create(ctx context.Context, u *User) error
	Get(ctx context.Context, id types.ID) (*User, error)
	List(ctx context.Context, role Role) ([]*User, error)
	SetActive(ctx context.Context, id types.ID, active bool) error
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, u *User) error {
	return s.db.QueryRow(ctx, `
		INSERT INTO users (name, role, is_active)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		u.Name, string(u.Role), u.IsActive,
	).Scan(&u.ID, &u.CreatedAt)
}

func (s *Store) Get(ctx context.Context, id types.ID) (*User, error) {
	var u User
	err := s.db.QueryRow(ctx, `
		SELECT id, name, role, is_active, created_at
		FROM users WHERE id = $1`, int64(id),
	).Scan(&u.ID, &u.Name, &u.Role, &u.IsActive, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NotFound("user", id)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) List(ctx context.Context, role Role) ([]*User, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, role, is_active, created_at
		FROM users
		WHERE ($1 = '' OR role = $1)
		ORDER BY id`, string(role),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.Role, &u.IsActive, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &u)
	}
	return out, rows.Err()
}

func (s *Store) SetActive(ctx context.Context, id types.ID, active bool) error {
	tag, err := s.db.Exec(ctx, `UPDATE users SET is_active = $1 WHERE id = $2`, active, int64(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return types.NotFound("user", id)
	}
	return nil
}
