// README: Customer and vehicle handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"workshop/internal/modules/customer"
)

type CustomerHandler struct {
	customers *customer.Service
}

func NewCustomerHandler(svc *customer.Service) *CustomerHandler {
	return &CustomerHandler{customers: svc}
}

type customerReq struct {
	Name    *string `json:"name"`
	Phone   *string `json:"phone"`
	Email   *string `json:"email"`
	Address *string `json:"address"`
}

func (h *CustomerHandler) Create(c *gin.Context) {
	var req customerReq
	if !bindJSON(c, &req) {
		return
	}
	cust, err := h.customers.CreateCustomer(c.Request.Context(), customer.CreateCustomerCommand{
		Name:    deref(req.Name),
		Phone:   deref(req.Phone),
		Email:   req.Email,
		Address: req.Address,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, cust)
}

func (h *CustomerHandler) List(c *gin.Context) {
	list, err := h.customers.ListCustomers(c.Request.Context(), c.Query("search"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"customers": list})
}

func (h *CustomerHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	cust, err := h.customers.GetCustomer(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, cust)
}

func (h *CustomerHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req customerReq
	if !bindJSON(c, &req) {
		return
	}
	cust, err := h.customers.UpdateCustomer(c.Request.Context(), id, customer.CustomerPatch{
		Name:    req.Name,
		Phone:   req.Phone,
		Email:   req.Email,
		Address: req.Address,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, cust)
}

type vehicleReq struct {
	Make         *string `json:"make"`
	Model        *string `json:"model"`
	Year         *int    `json:"year"`
	LicensePlate *string `json:"license_plate"`
	VIN          *string `json:"vin"`
}

func (h *CustomerHandler) CreateVehicle(c *gin.Context) {
	customerID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req vehicleReq
	if !bindJSON(c, &req) {
		return
	}
	year := 0
	if req.Year != nil {
		year = *req.Year
	}
	v, err := h.customers.CreateVehicle(c.Request.Context(), customer.CreateVehicleCommand{
		CustomerID:   customerID,
		Make:         deref(req.Make),
		Model:        deref(req.Model),
		Year:         year,
		LicensePlate: deref(req.LicensePlate),
		VIN:          req.VIN,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, v)
}

func (h *CustomerHandler) ListVehicles(c *gin.Context) {
	customerID, ok := pathID(c, "id")
	if !ok {
		return
	}
	list, err := h.customers.ListVehicles(c.Request.Context(), customerID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"vehicles": list})
}

func (h *CustomerHandler) GetVehicle(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	v, err := h.customers.GetVehicle(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, v)
}

func (h *CustomerHandler) UpdateVehicle(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req vehicleReq
	if !bindJSON(c, &req) {
		return
	}
	v, err := h.customers.UpdateVehicle(c.Request.Context(), id, customer.VehiclePatch{
		Make:         req.Make,
		Model:        req.Model,
		Year:         req.Year,
		LicensePlate: req.LicensePlate,
		VIN:          req.VIN,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, v)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
