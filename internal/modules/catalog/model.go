// README: Reference data used by advisors and the notifier.
package catalog

import (
	"time"

	"workshop/internal/modules/serviceorder"
	"workshop/internal/types"
)

type AnalysisTemplate struct {
	ID             types.ID  `json:"id"`
	Name           string    `json:"name"`
	Category       string    `json:"category"`
	ChecklistItems []string  `json:"checklist_items"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// EstimationItem is a priced entry advisors start cost estimations from.
type EstimationItem struct {
	ID            types.ID    `json:"id"`
	ServiceType   string      `json:"service_type"`
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	EconomicPrice types.Money `json:"economic_price"`
	StandardPrice types.Money `json:"standard_price"`
	PremiumPrice  types.Money `json:"premium_price"`
	IsActive      bool        `json:"is_active"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// MessageFields is the data a WhatsApp template body is executed against.
type MessageFields struct {
	CustomerName string
	OrderNumber  string
	Status       string
	Reason       string
}

// EventKinds are the notification kinds a WhatsApp template can serve.
var EventKinds = []string{
	string(serviceorder.NotifyEstimateReady),
	string(serviceorder.NotifyQCFailed),
	string(serviceorder.NotifyReadyForPayment),
	string(serviceorder.NotifyCompleted),
	string(serviceorder.NotifyCancelled),
}

type WhatsappTemplate struct {
	ID        types.ID  `json:"id"`
	Name      string    `json:"name"`
	EventKind string    `json:"event_kind"`
	Body      string    `json:"body"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
