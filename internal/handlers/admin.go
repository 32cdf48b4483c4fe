// internal/handlers/admin.go
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/licensegate/internal/apperr"
	"github.com/javajoker/licensegate/internal/commerce"
	"github.com/javajoker/licensegate/internal/i18n"
	"github.com/javajoker/licensegate/internal/models"
	"github.com/javajoker/licensegate/internal/payment"
	"github.com/javajoker/licensegate/internal/services"
	"github.com/javajoker/licensegate/internal/utils"
)

// OrderStore is the order intake side of the built-in commerce store.
type OrderStore interface {
	CreateOrder(ctx context.Context, input *commerce.OrderInput) (*models.Order, error)
	MarkOrderPaid(ctx context.Context, id string) (*models.Order, error)
}

type AdminHandler struct {
	adminService     *services.AdminService
	processorService *services.ProcessorService
	orders           OrderStore
}

func NewAdminHandler(adminService *services.AdminService, processorService *services.ProcessorService, orders OrderStore) *AdminHandler {
	return &AdminHandler{
		adminService:     adminService,
		processorService: processorService,
		orders:           orders,
	}
}

// GET /admin/dashboard/stats
func (h *AdminHandler) GetDashboardStats(c *gin.Context) {
	stats, err := h.adminService.GetDashboardStats(c.Request.Context())
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"stats": stats,
	})
}

// GET /admin/processors
func (h *AdminHandler) GetProcessors(c *gin.Context) {
	processors, err := h.processorService.List(c.Request.Context())
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, processors)
}

// PUT /admin/processors/:processor/config
func (h *AdminHandler) UpdateProcessorConfig(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var cfg map[string]string
	if err := c.ShouldBindJSON(&cfg); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "config"), err.Error())
		return
	}

	if err := h.processorService.UpdateConfig(c.Request.Context(), c.Param("processor"), cfg); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyProcessorConfigUpdated),
	})
}

// GET /admin/orders
func (h *AdminHandler) GetOrders(c *gin.Context) {
	filter := services.AdminOrderFilter{
		PaginationParams: utils.GetPaginationParams(c),
		ProductID:        c.Query("product_id"),
	}
	if status := c.Query("status"); status != "" {
		orderStatus := models.OrderStatus(status)
		filter.Status = &orderStatus
	}

	orders, total, err := h.adminService.GetOrders(c.Request.Context(), filter)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(orders, total, filter.PaginationParams))
}

// POST /admin/orders
func (h *AdminHandler) CreateOrder(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req commerce.OrderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyOrderCreated),
		"order":   order,
	})
}

// PUT /admin/orders/:id/paid
func (h *AdminHandler) MarkOrderPaid(c *gin.Context) {
	order, err := h.orders.MarkOrderPaid(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, payment.ErrOrderNotFound) {
			utils.NotFoundResponse(c, i18n.ErrorKey(string(apperr.CodeOrderNotFound)))
			return
		}
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(utils.GetLangFromContext(c), i18n.KeyOrderPaid),
		"order":   order,
	})
}

// GET /admin/audit-logs
func (h *AdminHandler) GetAuditLogs(c *gin.Context) {
	filter := services.AdminAuditFilter{
		PaginationParams: utils.GetPaginationParams(c),
		ResourceType:     c.Query("resource_type"),
	}

	logs, total, err := h.adminService.GetAuditLogs(c.Request.Context(), filter)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(logs, total, filter.PaginationParams))
}

// GET /health
func HealthCheck(ping func(context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, code := "healthy", http.StatusOK
		if err := ping(c.Request.Context()); err != nil {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}

		c.JSON(code, gin.H{
			"status":    status,
			"languages": i18n.GetSupportedLanguages(),
		})
	}
}
