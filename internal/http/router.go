// README: HTTP router registration.
package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"workshop/internal/http/handlers"
	"workshop/internal/http/middleware"
	"workshop/internal/infra"
	"workshop/internal/modules/catalog"
	"workshop/internal/modules/customer"
	"workshop/internal/modules/serviceorder"
	"workshop/internal/modules/user"
)

type RouterDeps struct {
	Users     *user.Service
	Customers *customer.Service
	Orders    *serviceorder.Service
	Catalog   *catalog.Service
	Verifier  infra.TokenVerifier
	Checks    []handlers.Check
	Log       *zap.Logger
}

const (
	roleAdmin   = string(user.RoleAdmin)
	roleAdvisor = string(user.RoleServiceAdvisor)
)

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Recovery(deps.Log), middleware.Logging(deps.Log))

	r.GET("/health", handlers.NewHealthHandler(deps.Checks...).Health)

	api := r.Group("/api", middleware.Auth(deps.Verifier))
	staffAdmin := middleware.RequireRole(roleAdmin)
	frontDesk := middleware.RequireRole(roleAdmin, roleAdvisor)

	users := handlers.NewUserHandler(deps.Users)
	api.GET("/users", users.List)
	api.GET("/users/:id", users.Get)
	api.POST("/users", staffAdmin, users.Create)
	api.DELETE("/users/:id", staffAdmin, users.Deactivate)

	customers := handlers.NewCustomerHandler(deps.Customers)
	api.GET("/customers", customers.List)
	api.POST("/customers", frontDesk, customers.Create)
	api.GET("/customers/:id", customers.Get)
	api.PATCH("/customers/:id", frontDesk, customers.Update)
	api.GET("/customers/:id/vehicles", customers.ListVehicles)
	api.POST("/customers/:id/vehicles", frontDesk, customers.CreateVehicle)
	api.GET("/vehicles/:id", customers.GetVehicle)
	api.PATCH("/vehicles/:id", frontDesk, customers.UpdateVehicle)

	orders := handlers.NewOrderHandler(deps.Orders)
	api.POST("/orders", frontDesk, orders.Create)
	api.GET("/orders", orders.List)
	api.GET("/orders/:id", orders.Get)
	api.GET("/orders/:id/timeline", orders.Timeline)
	api.GET("/orders/:id/stages", orders.Stages)
	api.POST("/orders/:id/initial-check", orders.InitialCheck)
	api.POST("/orders/:id/technical-analysis", orders.TechnicalAnalysis)
	api.POST("/orders/:id/customer-education", orders.CustomerEducation)
	api.POST("/orders/:id/cost-estimation", orders.CostEstimation)
	api.POST("/orders/:id/cost-estimation/decision", orders.CustomerDecision)
	api.POST("/orders/:id/work-execution", orders.WorkExecution)
	api.POST("/orders/:id/quality-control", orders.QualityControl)
	api.POST("/orders/:id/payments", orders.Payment)
	api.POST("/orders/:id/cancel", orders.Cancel)
	api.POST("/orders/:id/assign", frontDesk, orders.Assign)

	queues := handlers.NewQueueHandler(deps.Orders)
	api.GET("/queues/status/:status", queues.ByStatus)
	api.GET("/queues/mechanic/:id", queues.Mechanic)
	api.GET("/queues/qc", queues.PendingQC)
	api.GET("/queues/payment", queues.PendingPayment)
	api.GET("/dashboard/status-counts", queues.StatusCounts)

	cat := handlers.NewCatalogHandler(deps.Catalog)
	api.GET("/catalog/analysis-templates", cat.ListAnalysisTemplates)
	api.GET("/catalog/analysis-templates/:id", cat.GetAnalysisTemplate)
	api.POST("/catalog/analysis-templates", frontDesk, cat.CreateAnalysisTemplate)
	api.PATCH("/catalog/analysis-templates/:id", frontDesk, cat.UpdateAnalysisTemplate)
	api.DELETE("/catalog/analysis-templates/:id", frontDesk, cat.DeleteAnalysisTemplate)
	api.GET("/catalog/estimation-items", cat.ListEstimationItems)
	api.GET("/catalog/estimation-items/:id", cat.GetEstimationItem)
	api.POST("/catalog/estimation-items", frontDesk, cat.CreateEstimationItem)
	api.PATCH("/catalog/estimation-items/:id", frontDesk, cat.UpdateEstimationItem)
	api.DELETE("/catalog/estimation-items/:id", frontDesk, cat.DeleteEstimationItem)
	api.GET("/catalog/whatsapp-templates", cat.ListWhatsappTemplates)
	api.GET("/catalog/whatsapp-templates/:id", cat.GetWhatsappTemplate)
	api.POST("/catalog/whatsapp-templates", staffAdmin, cat.CreateWhatsappTemplate)
	api.PATCH("/catalog/whatsapp-templates/:id", staffAdmin, cat.UpdateWhatsappTemplate)
	api.DELETE("/catalog/whatsapp-templates/:id", staffAdmin, cat.DeleteWhatsappTemplate)

	return r
}
