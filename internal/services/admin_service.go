// internal/services/admin_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/javajoker/licensegate/internal/models"
	"github.com/javajoker/licensegate/internal/utils"
)

type AdminService struct {
	db *gorm.DB
}

type AdminDashboardStats struct {
	TotalLicenses      int64   `json:"total_licenses"`
	ActiveLicenses     int64   `json:"active_licenses"`
	PaidLicenses       int64   `json:"paid_licenses"`
	TotalProducts      int64   `json:"total_products"`
	TotalOrders        int64   `json:"total_orders"`
	PaidOrders         int64   `json:"paid_orders"`
	PaidOrdersThisWeek int64   `json:"paid_orders_this_week"`
	TotalRevenue       float64 `json:"total_revenue"`
}

type AdminOrderFilter struct {
	utils.PaginationParams
	Status    *models.OrderStatus `json:"status,omitempty"`
	ProductID string              `json:"product_id,omitempty"`
}

type AdminAuditFilter struct {
	utils.PaginationParams
	ResourceType string `json:"resource_type,omitempty"`
}

func NewAdminService(db *gorm.DB) *AdminService {
	return &AdminService{db: db}
}

// GetDashboardStats summarizes the registry and the built-in store. Revenue
// is summed across currencies.
func (s *AdminService) GetDashboardStats(ctx context.Context) (*AdminDashboardStats, error) {
	stats := &AdminDashboardStats{}
	db := s.db.WithContext(ctx)
	weekStart := time.Now().AddDate(0, 0, -7)
	paid := []models.OrderStatus{models.OrderStatusProcessing, models.OrderStatusCompleted}

	queries := []struct {
		name string
		run  func() error
	}{
		{"licenses", func() error { return db.Model(&models.License{}).Count(&stats.TotalLicenses).Error }},
		{"active licenses", func() error {
			return db.Model(&models.License{}).Where("active = ?", true).Count(&stats.ActiveLicenses).Error
		}},
		{"paid licenses", func() error {
			return db.Model(&models.License{}).Where("amount > ?", 0).Count(&stats.PaidLicenses).Error
		}},
		{"products", func() error { return db.Model(&models.Product{}).Count(&stats.TotalProducts).Error }},
		{"orders", func() error { return db.Model(&models.Order{}).Count(&stats.TotalOrders).Error }},
		{"paid orders", func() error {
			return db.Model(&models.Order{}).Where("status IN ?", paid).Count(&stats.PaidOrders).Error
		}},
		{"weekly orders", func() error {
			return db.Model(&models.Order{}).
				Where("status IN ? AND paid_at >= ?", paid, weekStart).
				Count(&stats.PaidOrdersThisWeek).Error
		}},
		{"revenue", func() error {
			return db.Model(&models.Order{}).
				Where("status IN ?", paid).
				Select("COALESCE(SUM(total), 0)").Scan(&stats.TotalRevenue).Error
		}},
	}

	for _, q := range queries {
		if err := q.run(); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", q.name, err)
		}
	}
	return stats, nil
}

// Order Management
func (s *AdminService) GetOrders(ctx context.Context, filter AdminOrderFilter) ([]models.Order, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Order{})

	// Apply filters
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.ProductID != "" {
		query = query.Where("product_id = ?", filter.ProductID)
	}

	// Get total count
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	var orders []models.Order
	if err := query.Order("created_at DESC").
		Limit(filter.Limit).Offset(filter.Offset()).
		Find(&orders).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch orders: %w", err)
	}

	return orders, total, nil
}

// Audit trail
func (s *AdminService) GetAuditLogs(ctx context.Context, filter AdminAuditFilter) ([]models.AuditLog, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.AuditLog{})
	if filter.ResourceType != "" {
		query = query.Where("resource_type = ?", filter.ResourceType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	var logs []models.AuditLog
	if err := query.Order("id DESC").
		Limit(filter.Limit).Offset(filter.Offset()).
		Find(&logs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch audit logs: %w", err)
	}

	return logs, total, nil
}
