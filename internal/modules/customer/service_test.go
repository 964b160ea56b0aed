// README: Customer service tests (uniqueness, ownership, partial updates).
package customer

import (
	"context"
	"errors"
	"testing"

	"workshop/internal/types"
)

func newTestService() *Service {
	return NewService(NewMemStore())
}

func strPtr(s string) *string { return &s }

func TestCreateCustomerRequiresPhone(t *testing.T) {
	svc := newTestService()
	_, err := svc.CreateCustomer(context.Background(), CreateCustomerCommand{Name: "Jane"})
	var ve *types.ValidationError
	if !errors.As(err, &ve) || ve.Field != "phone" {
		t.Fatalf("expected phone validation error, got %v", err)
	}
}

func TestCreateCustomerPhoneConflict(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.CreateCustomer(ctx, CreateCustomerCommand{Name: "Jane", Phone: "555-1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := svc.CreateCustomer(ctx, CreateCustomerCommand{Name: "John", Phone: " 555-1 "})
	if !errors.Is(err, types.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCreateVehicleUnknownCustomer(t *testing.T) {
	svc := newTestService()
	_, err := svc.CreateVehicle(context.Background(), CreateVehicleCommand{
		CustomerID: 42, Make: "Toyota", Model: "Avanza", Year: 2019, LicensePlate: "B 1 XY",
	})
	var nf *types.NotFoundError
	if !errors.As(err, &nf) || nf.Entity != "customer" || nf.ID != 42 {
		t.Fatalf("expected NotFound(customer, 42), got %v", err)
	}
}

func TestVehiclePlateConflictIsNormalized(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	c, _ := svc.CreateCustomer(ctx, CreateCustomerCommand{Name: "Jane", Phone: "555-1"})

	if _, err := svc.CreateVehicle(ctx, CreateVehicleCommand{
		CustomerID: c.ID, Make: "Toyota", Model: "Avanza", Year: 2019, LicensePlate: "b 1234  xy",
	}); err != nil {
		t.Fatalf("create vehicle: %v", err)
	}
	_, err := svc.CreateVehicle(ctx, CreateVehicleCommand{
		CustomerID: c.ID, Make: "Honda", Model: "Jazz", Year: 2020, LicensePlate: "B 1234 XY",
	})
	if !errors.Is(err, types.ErrConflict) {
		t.Fatalf("expected plate conflict, got %v", err)
	}
}

func TestVehicleYearRange(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	c, _ := svc.CreateCustomer(ctx, CreateCustomerCommand{Name: "Jane", Phone: "555-1"})

	_, err := svc.CreateVehicle(ctx, CreateVehicleCommand{
		CustomerID: c.ID, Make: "Ford", Model: "T", Year: 1890, LicensePlate: "OLD 1",
	})
	if !errors.Is(err, types.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateVehicleKeepsOwner(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	c, _ := svc.CreateCustomer(ctx, CreateCustomerCommand{Name: "Jane", Phone: "555-1"})
	v, _ := svc.CreateVehicle(ctx, CreateVehicleCommand{
		CustomerID: c.ID, Make: "Toyota", Model: "Avanza", Year: 2019, LicensePlate: "B 1 XY",
	})

	updated, err := svc.UpdateVehicle(ctx, v.ID, VehiclePatch{Model: strPtr("Veloz")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Model != "Veloz" || updated.CustomerID != c.ID {
		t.Fatalf("unexpected vehicle %+v", updated)
	}
	owner, err := svc.VehicleOwner(ctx, v.ID)
	if err != nil || owner != c.ID {
		t.Fatalf("VehicleOwner = %d, %v", owner, err)
	}
}

func TestUpdateCustomerPartial(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	c, _ := svc.CreateCustomer(ctx, CreateCustomerCommand{Name: "Jane", Phone: "555-1"})

	updated, err := svc.UpdateCustomer(ctx, c.ID, CustomerPatch{Email: strPtr("jane@example.com")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Jane" || updated.Email == nil || *updated.Email != "jane@example.com" {
		t.Fatalf("unexpected customer %+v", updated)
	}
	if _, err := svc.UpdateCustomer(ctx, c.ID, CustomerPatch{Email: strPtr("nope")}); !errors.Is(err, types.ErrValidation) {
		t.Fatalf("expected email validation error, got %v", err)
	}
	if _, err := svc.UpdateCustomer(ctx, 999, CustomerPatch{}); !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListCustomersSearch(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	_, _ = svc.CreateCustomer(ctx, CreateCustomerCommand{Name: "Jane Doe", Phone: "555-1"})
	_, _ = svc.CreateCustomer(ctx, CreateCustomerCommand{Name: "John Roe", Phone: "777-2"})

	got, err := svc.ListCustomers(ctx, "jane")
	if err != nil || len(got) != 1 || got[0].Name != "Jane Doe" {
		t.Fatalf("search by name: %v, %d results", err, len(got))
	}
	got, _ = svc.ListCustomers(ctx, "777")
	if len(got) != 1 || got[0].Name != "John Roe" {
		t.Fatalf("search by phone returned %d results", len(got))
	}
	if got, _ = svc.ListCustomers(ctx, "%"); len(got) != 0 {
		t.Fatalf("wildcard search matched %d customers", len(got))
	}
}

func TestContainsPatternEscapesWildcards(t *testing.T) {
	cases := map[string]string{
		"jane":    `%jane%`,
		"50%":     `%50\%%`,
		"a_b":     `%a\_b%`,
		`back\s`: `%back\\s%`,
	}
	for in, want := range cases {
		if got := containsPattern(in); got != want {
			t.Errorf("containsPattern(%q) = %q, want %q", in, got, want)
		}
	}
}
