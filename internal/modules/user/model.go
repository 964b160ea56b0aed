// README: Workshop staff users; they are the actors recorded on stage records.
package user

import (
	"time"

	"workshop/internal/types"
)

type Role string

const (
	RoleAdmin          Role = "ADMIN"
	RoleServiceAdvisor Role = "SERVICE_ADVISOR"
	RoleMechanic       Role = "MECHANIC"
	RoleQCInspector    Role = "QC_INSPECTOR"
	RoleCashier        Role = "CASHIER"
)

var roles = map[Role]bool{
	RoleAdmin:          true,
	RoleServiceAdvisor: true,
	RoleMechanic:       true,
	RoleQCInspector:    true,
	RoleCashier:        true,
}

func (r Role) Valid() bool { return roles[r] }

type User struct {
	ID        types.ID  `json:"id"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
