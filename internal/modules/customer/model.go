// README: Customer and Vehicle aggregates.
package customer

import (
	"time"

	"workshop/internal/types"
)

type Customer struct {
	ID        types.ID  `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     *string   `json:"email,omitempty"`
	Address   *string   `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Vehicle.CustomerID is fixed at creation.
type Vehicle struct {
	ID           types.ID  `json:"id"`
	CustomerID   types.ID  `json:"customer_id"`
	Make         string    `json:"make"`
	Model        string    `json:"model"`
	Year         int       `json:"year"`
	LicensePlate string    `json:"license_plate"`
	VIN          *string   `json:"vin,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CustomerPatch carries the fields of a partial update; nil means unchanged.
type CustomerPatch struct {
	Name    *string
	Phone   *string
	Email   *string
	Address *string
}

type VehiclePatch struct {
	Make         *string
	Model        *string
	Year         *int
	LicensePlate *string
	VIN          *string
}
