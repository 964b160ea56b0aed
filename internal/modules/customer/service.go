// README: Customer service: intake of customers and their vehicles.
package customer

import (
	"context"
	"strings"
	"time"

	"workshop/internal/types"
)

type Service struct {
	store Repository
}

func NewService(store Repository) *Service {
	return &Service{store: store}
}

type CreateCustomerCommand struct {
	Name    string
	Phone   string
	Email   *string
	Address *string
}

type CreateVehicleCommand struct {
	CustomerID   types.ID
	Make         string
	Model        string
	Year         int
	LicensePlate string
	VIN          *string
}

func (s *Service) CreateCustomer(ctx context.Context, cmd CreateCustomerCommand) (*Customer, error) {
	c := &Customer{
		Name:    strings.TrimSpace(cmd.Name),
		Phone:   normalizePhone(cmd.Phone),
		Email:   trimOptional(cmd.Email),
		Address: trimOptional(cmd.Address),
	}
	if err := validateCustomer(c); err != nil {
		return nil, err
	}
	if err := s.store.CreateCustomer(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) GetCustomer(ctx context.Context, id types.ID) (*Customer, error) {
	return s.store.GetCustomer(ctx, id)
}

func (s *Service) ListCustomers(ctx context.Context, search string) ([]*Customer, error) {
	return s.store.ListCustomers(ctx, strings.TrimSpace(search))
}

func (s *Service) UpdateCustomer(ctx context.Context, id types.ID, p CustomerPatch) (*Customer, error) {
	c, err := s.store.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Name != nil {
		c.Name = strings.TrimSpace(*p.Name)
	}
	if p.Phone != nil {
		c.Phone = normalizePhone(*p.Phone)
	}
	if p.Email != nil {
		c.Email = trimOptional(p.Email)
	}
	if p.Address != nil {
		c.Address = trimOptional(p.Address)
	}
	if err := validateCustomer(c); err != nil {
		return nil, err
	}
	if err := s.store.UpdateCustomer(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) CreateVehicle(ctx context.Context, cmd CreateVehicleCommand) (*Vehicle, error) {
	if _, err := s.store.GetCustomer(ctx, cmd.CustomerID); err != nil {
		return nil, err
	}
	v := &Vehicle{
		CustomerID:   cmd.CustomerID,
		Make:         strings.TrimSpace(cmd.Make),
		Model:        strings.TrimSpace(cmd.Model),
		Year:         cmd.Year,
		LicensePlate: normalizePlate(cmd.LicensePlate),
		VIN:          trimOptional(cmd.VIN),
	}
	if err := validateVehicle(v); err != nil {
		return nil, err
	}
	if err := s.store.CreateVehicle(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Service) GetVehicle(ctx context.Context, id types.ID) (*Vehicle, error) {
	return s.store.GetVehicle(ctx, id)
}

func (s *Service) ListVehicles(ctx context.Context, customerID types.ID) ([]*Vehicle, error) {
	if _, err := s.store.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	return s.store.ListVehicles(ctx, customerID)
}

func (s *Service) UpdateVehicle(ctx context.Context, id types.ID, p VehiclePatch) (*Vehicle, error) {
	v, err := s.store.GetVehicle(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Make != nil {
		v.Make = strings.TrimSpace(*p.Make)
	}
	if p.Model != nil {
		v.Model = strings.TrimSpace(*p.Model)
	}
	if p.Year != nil {
		v.Year = *p.Year
	}
	if p.LicensePlate != nil {
		v.LicensePlate = normalizePlate(*p.LicensePlate)
	}
	if p.VIN != nil {
		v.VIN = trimOptional(p.VIN)
	}
	if err := validateVehicle(v); err != nil {
		return nil, err
	}
	if err := s.store.UpdateVehicle(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// VehicleOwner returns the customer a vehicle belongs to.
func (s *Service) VehicleOwner(ctx context.Context, vehicleID types.ID) (types.ID, error) {
	v, err := s.store.GetVehicle(ctx, vehicleID)
	if err != nil {
		return 0, err
	}
	return v.CustomerID, nil
}

func (s *Service) CustomerExists(ctx context.Context, id types.ID) error {
	_, err := s.store.GetCustomer(ctx, id)
	return err
}

func validateCustomer(c *Customer) error {
	if c.Name == "" {
		return types.Invalid("name", "is required")
	}
	if c.Phone == "" {
		return types.Invalid("phone", "is required")
	}
	if c.Email != nil && !types.IsEmail(*c.Email) {
		return types.Invalid("email", "is not a valid address")
	}
	return nil
}

func validateVehicle(v *Vehicle) error {
	if v.Make == "" {
		return types.Invalid("make", "is required")
	}
	if v.Model == "" {
		return types.Invalid("model", "is required")
	}
	if v.Year < 1900 || v.Year > time.Now().Year()+1 {
		return types.Invalid("year", "is out of range")
	}
	if v.LicensePlate == "" {
		return types.Invalid("license_plate", "is required")
	}
	return nil
}

func normalizePhone(p string) string {
	return strings.Join(strings.Fields(p), "")
}

// normalizePlate upper-cases and collapses inner whitespace so "b 1234  xy" and "B 1234 XY" collide.
func normalizePlate(p string) string {
	return strings.ToUpper(strings.Join(strings.Fields(p), " "))
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
