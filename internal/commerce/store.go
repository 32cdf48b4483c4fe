// internal/commerce/store.go
package commerce

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/javajoker/licensegate/internal/apperr"
	"github.com/javajoker/licensegate/internal/models"
	"github.com/javajoker/licensegate/internal/payment"
)

// GormStore is the built-in commerce backend. Products and orders live in the
// service database next to the license registry.
type GormStore struct {
	db            *gorm.DB
	subscriptions bool
	now           func() time.Time
}

type OrderInput struct {
	ID            string          `json:"id,omitempty"`
	ProductID     string          `json:"product_id,omitempty"`
	LicenseID     uint            `json:"license_id,omitempty"`
	SessionID     string          `json:"session_id" validate:"required"`
	ClientID      string          `json:"client_id,omitempty"`
	Total         float64         `json:"total,omitempty" validate:"gte=0"`
	Currency      models.Currency `json:"currency,omitempty" validate:"omitempty,currency"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	Paid          bool            `json:"paid,omitempty"`
}

func NewGormStore(db *gorm.DB, subscriptions bool) *GormStore {
	return &GormStore{
		db:            db,
		subscriptions: subscriptions,
		now:           time.Now,
	}
}

func (s *GormStore) WithClock(now func() time.Time) *GormStore {
	s.now = now
	return s
}

func (s *GormStore) Ready() bool {
	return s.db != nil
}

func (s *GormStore) SupportsSubscriptions() bool {
	return s.subscriptions
}

func (s *GormStore) FindProductByLicense(ctx context.Context, licenseID uint) (*payment.Product, error) {
	var product models.Product
	err := s.db.WithContext(ctx).Where("license_tag = ?", models.LicenseTag(licenseID)).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, payment.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	return toPaymentProduct(&product), nil
}

func (s *GormStore) CreateProduct(ctx context.Context, p *payment.Product) error {
	product := models.Product{
		ID:         "prod_" + uuid.NewString(),
		LicenseTag: models.LicenseTag(p.LicenseID),
		LicenseID:  p.LicenseID,
		Name:       p.Name,
		Price:      p.Price,
		Currency:   p.Currency,
		Visibility: p.Visibility,
		Recurring:  p.Recurring,
		Interval:   p.Interval,
	}
	if err := s.db.WithContext(ctx).Create(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return payment.ErrDuplicateProduct
		}
		return fmt.Errorf("failed to create product: %w", err)
	}
	p.ID = product.ID
	return nil
}

func (s *GormStore) UpdateProduct(ctx context.Context, p *payment.Product) error {
	result := s.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", p.ID).Updates(map[string]interface{}{
		"name":             p.Name,
		"price":            p.Price,
		"currency":         p.Currency,
		"recurring":        p.Recurring,
		"billing_interval": p.Interval,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update product: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return payment.ErrProductNotFound
	}
	return nil
}

func (s *GormStore) GetOrder(ctx context.Context, id string) (*payment.Order, error) {
	order, err := s.findOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	return toPaymentOrder(order), nil
}

// CreateOrder records an order placed through the storefront. The license is
// taken from the product when not given explicitly.
func (s *GormStore) CreateOrder(ctx context.Context, input *OrderInput) (*models.Order, error) {
	order := models.Order{
		ID:            input.ID,
		ProductID:     input.ProductID,
		Status:        models.OrderStatusPending,
		Total:         input.Total,
		Currency:      input.Currency,
		PaymentMethod: input.PaymentMethod,
	}
	if order.ID == "" {
		order.ID = "ord_" + uuid.NewString()
	}

	licenseID := input.LicenseID
	if input.ProductID != "" {
		var product models.Product
		if err := s.db.WithContext(ctx).First(&product, "id = ?", input.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperr.Newf(apperr.CodeMissingField, "product %s does not exist", input.ProductID)
			}
			return nil, fmt.Errorf("failed to load product: %w", err)
		}
		if licenseID == 0 {
			licenseID = product.LicenseID
		}
		if order.Total == 0 {
			order.Total = product.Price
		}
		if order.Currency == "" {
			order.Currency = product.Currency
		}
	}
	if licenseID == 0 {
		return nil, apperr.New(apperr.CodeMissingField, "license_id or product_id is required")
	}

	order.Metadata = models.Metadata{
		payment.MetaSessionID: input.SessionID,
		payment.MetaLicenseID: strconv.FormatUint(uint64(licenseID), 10),
	}
	if input.ClientID != "" {
		order.Metadata[payment.MetaClientID] = input.ClientID
	}
	order.CreatedAt = s.now()
	if input.Paid {
		paidAt := order.CreatedAt
		order.Status = models.OrderStatusCompleted
		order.PaidAt = &paidAt
	}

	if err := s.db.WithContext(ctx).Create(&order).Error; err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	return &order, nil
}

// MarkOrderPaid moves an order to completed and stamps the payment time.
func (s *GormStore) MarkOrderPaid(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.findOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.IsPaid() {
		return order, nil
	}

	paidAt := s.now()
	order.Status = models.OrderStatusCompleted
	order.PaidAt = &paidAt
	if err := s.db.WithContext(ctx).Model(order).Updates(map[string]interface{}{
		"status":  order.Status,
		"paid_at": order.PaidAt,
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}
	return order, nil
}

func (s *GormStore) findOrder(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, payment.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

func toPaymentProduct(p *models.Product) *payment.Product {
	return &payment.Product{
		ID:         p.ID,
		LicenseID:  p.LicenseID,
		Name:       p.Name,
		Price:      p.Price,
		Currency:   p.Currency,
		Visibility: p.Visibility,
		Recurring:  p.Recurring,
		Interval:   p.Interval,
	}
}

func toPaymentOrder(o *models.Order) *payment.Order {
	metadata := make(map[string]string, len(o.Metadata))
	for k, v := range o.Metadata {
		metadata[k] = v
	}
	return &payment.Order{
		ID:            o.ID,
		Paid:          o.IsPaid(),
		CreatedAt:     o.CreatedAt,
		Metadata:      metadata,
		Total:         o.Total,
		Currency:      o.Currency,
		PaymentMethod: o.PaymentMethod,
	}
}
