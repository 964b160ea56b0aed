// README: Customer/vehicle store backed by PostgreSQL.
package customer

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"workshop/internal/infra"
	"workshop/internal/types"
)

type Repository interface {
	CreateCustomer(ctx context.Context, c *Customer) error
	GetCustomer(ctx context.Context, id types.ID) (*Customer, error)
	ListCustomers(ctx context.Context, search string) ([]*Customer, error)
	UpdateCustomer(ctx context.Context, c *Customer) error

	CreateVehicle(ctx context.Context, v *Vehicle) error
	GetVehicle(ctx context.Context, id types.ID) (*Vehicle, error)
	ListVehicles(ctx context.Context, customerID types.ID) ([]*Vehicle, error)
	UpdateVehicle(ctx context.Context, v *Vehicle) error
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const customerColumns = `id, name, phone, email, address, created_at, updated_at`

func scanCustomer(row pgx.Row) (*Customer, error) {
	var c Customer
	if err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, c *Customer) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO customers (name, phone, email, address)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		c.Name, c.Phone, c.Email, c.Address,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return mapCustomerErr(err)
}

func (s *Store) GetCustomer(ctx context.Context, id types.ID) (*Customer, error) {
	c, err := scanCustomer(s.db.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, int64(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NotFound("customer", id)
	}
	return c, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a LIKE pattern matching search as a literal substring.
func containsPattern(search string) string {
	return "%" + likeEscaper.Replace(search) + "%"
}

func (s *Store) ListCustomers(ctx context.Context, search string) ([]*Customer, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE $1 = '' OR name ILIKE $2 OR phone LIKE $2
		ORDER BY id`, search, containsPattern(search),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) UpdateCustomer(ctx context.Context, c *Customer) error {
	err := s.db.QueryRow(ctx, `
		UPDATE customers
		SET name = $1, phone = $2, email = $3, address = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING updated_at`,
		c.Name, c.Phone, c.Email, c.Address, int64(c.ID),
	).Scan(&c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.NotFound("customer", c.ID)
	}
	return mapCustomerErr(err)
}

const vehicleColumns = `id, customer_id, make, model, year, license_plate, vin, created_at, updated_at`

func scanVehicle(row pgx.Row) (*Vehicle, error) {
	var v Vehicle
	if err := row.Scan(&v.ID, &v.CustomerID, &v.Make, &v.Model, &v.Year, &v.LicensePlate, &v.VIN, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Store) CreateVehicle(ctx context.Context, v *Vehicle) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO vehicles (customer_id, make, model, year, license_plate, vin)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		int64(v.CustomerID), v.Make, v.Model, v.Year, v.LicensePlate, v.VIN,
	).Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
	if _, ok := infra.ForeignKeyViolation(err); ok {
		return types.NotFound("customer", v.CustomerID)
	}
	return mapVehicleErr(err)
}

func (s *Store) GetVehicle(ctx context.Context, id types.ID) (*Vehicle, error) {
	v, err := scanVehicle(s.db.QueryRow(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id = $1`, int64(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NotFound("vehicle", id)
	}
	return v, err
}

func (s *Store) ListVehicles(ctx context.Context, customerID types.ID) ([]*Vehicle, error) {
	rows, err := s.db.Query(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE customer_id = $1 ORDER BY id`, int64(customerID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) UpdateVehicle(ctx context.Context, v *Vehicle) error {
	err := s.db.QueryRow(ctx, `
		UPDATE vehicles
		SET make = $1, model = $2, year = $3, license_plate = $4, vin = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING updated_at`,
		v.Make, v.Model, v.Year, v.LicensePlate, v.VIN, int64(v.ID),
	).Scan(&v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.NotFound("vehicle", v.ID)
	}
	return mapVehicleErr(err)
}

func mapCustomerErr(err error) error {
	if _, ok := infra.UniqueViolation(err); ok {
		return types.Conflict("customer", "phone")
	}
	return err
}

func mapVehicleErr(err error) error {
	if _, ok := infra.UniqueViolation(err); ok {
		return types.Conflict("vehicle", "license_plate")
	}
	return err
}
