// internal/payment/order.go
package payment

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/javajoker/licensegate/internal/apperr"
	"github.com/javajoker/licensegate/internal/models"
)

const (
	// MaxOrderAge bounds how old a paid order may be when it is redeemed.
	MaxOrderAge = 24 * time.Hour
	// ProofTTL is the lifetime of a payment proof token.
	ProofTTL = time.Hour
)

// Order metadata keys written at checkout and checked at redemption.
const (
	MetaSessionID = "rsl_session_id"
	MetaLicenseID = "rsl_license_id"
	MetaClientID  = "rsl_client_id"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrDuplicateProduct = errors.New("product already exists for license")
	ErrOrderNotFound    = errors.New("order not found")
)

// Order is an external order as seen by the authorization core.
type Order struct {
	ID            string
	Paid          bool
	CreatedAt     time.Time
	Metadata      map[string]string
	Total         float64
	Currency      models.Currency
	PaymentMethod string
}

// Product is the store-side purchasable item for a license.
type Product struct {
	ID         string
	LicenseID  uint
	Name       string
	Price      float64
	Currency   models.Currency
	Visibility models.ProductVisibility
	Recurring  bool
	Interval   string
}

// CommerceStore is the slice of a commerce backend the commerce processor needs.
type CommerceStore interface {
	Ready() bool
	SupportsSubscriptions() bool
	// FindProductByLicense returns ErrProductNotFound when no product is tagged
	// for the license.
	FindProductByLicense(ctx context.Context, licenseID uint) (*Product, error)
	// CreateProduct returns ErrDuplicateProduct when another product already
	// carries the license tag.
	CreateProduct(ctx context.Context, p *Product) error
	UpdateProduct(ctx context.Context, p *Product) error
	// GetOrder returns ErrOrderNotFound for unknown ids.
	GetOrder(ctx context.Context, id string) (*Order, error)
}

// CheckOrder applies the redemption rules to a located order in order:
// paid, session, license, age.
func CheckOrder(order *Order, sessionID string, licenseID uint, now time.Time) error {
	if !order.Paid {
		return apperr.Newf(apperr.CodeOrderNotPaid, "order %s has not been paid", order.ID)
	}
	if order.Metadata[MetaSessionID] != sessionID {
		return apperr.Newf(apperr.CodeSessionMismatch, "order %s belongs to a different session", order.ID)
	}
	if order.Metadata[MetaLicenseID] != strconv.FormatUint(uint64(licenseID), 10) {
		return apperr.Newf(apperr.CodeLicenseMismatch, "order %s was placed for a different license", order.ID)
	}
	if now.Sub(order.CreatedAt) > MaxOrderAge {
		return apperr.Newf(apperr.CodeOrderExpired, "order %s is older than %s", order.ID, MaxOrderAge)
	}
	return nil
}

// BuildProofClaims assembles the claims of a payment proof for a validated order.
func BuildProofClaims(processorID, issuer string, license *models.License, sessionID string, order *Order, issuedAt time.Time) jwt.MapClaims {
	amount := order.Total
	if amount <= 0 {
		amount = license.Amount
	}
	currency := order.Currency
	if currency == "" {
		currency = license.Currency
	}

	claims := jwt.MapClaims{
		"iss":            issuer,
		"aud":            strconv.FormatUint(uint64(license.ID), 10),
		"sub":            processorID + "_payment_proof",
		"iat":            issuedAt.Unix(),
		"exp":            issuedAt.Add(ProofTTL).Unix(),
		"jti":            uuid.NewString(),
		"session_id":     sessionID,
		"order_id":       order.ID,
		"license_id":     license.ID,
		"amount":         amount,
		"currency":       string(currency),
		"payment_method": order.PaymentMethod,
		"processor":      processorID,
	}
	if clientID := order.Metadata[MetaClientID]; clientID != "" {
		claims["client_id"] = clientID
	}
	return claims
}

// OrderMetadata is the metadata a checkout attaches to the resulting order.
func OrderMetadata(license *models.License, clientID, sessionID string) map[string]string {
	return map[string]string{
		MetaSessionID: sessionID,
		MetaLicenseID: strconv.FormatUint(uint64(license.ID), 10),
		MetaClientID:  clientID,
	}
}
