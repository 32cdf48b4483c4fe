// internal/payment/processor.go
package payment

import (
	"context"

	"github.com/golang-jwt/jwt/v4"

	"github.com/javajoker/licensegate/internal/models"
)

// Processor turns a license's payment requirement into an external payment
// flow and vouches for completed payments with signed proofs.
type Processor interface {
	ID() string
	Name() string
	// IsAvailable reports whether the backing payment system is usable.
	IsAvailable() bool
	SupportedPaymentTypes() []models.PaymentType

	CreateCheckoutSession(ctx context.Context, license *models.License, clientID, sessionID string, opts CheckoutOptions) (*CheckoutSession, error)
	// ValidatePaymentProof checks externally supplied evidence (an order id)
	// against the session and license it should belong to.
	ValidatePaymentProof(ctx context.Context, license *models.License, sessionID string, proof ProofData) error
	// GeneratePaymentProof signs a proof for an already validated payment.
	GeneratePaymentProof(ctx context.Context, license *models.License, sessionID string, payment ProofData) (string, error)

	ConfigFields() []ConfigField
	ValidateConfig(config map[string]string) error
}

// Configurable processors accept validated settings at runtime.
type Configurable interface {
	Configure(config map[string]string) error
}

// Signer is the signing primitive processors use for proofs.
type Signer interface {
	Sign(claims jwt.MapClaims) (string, error)
	Issuer() string
}

type CheckoutOptions struct {
	ReturnURL string `json:"return_url,omitempty"`
	CancelURL string `json:"cancel_url,omitempty"`
}

type CheckoutSession struct {
	CheckoutURL   string            `json:"checkout_url"`
	ProcessorData map[string]string `json:"processor_data,omitempty"`
}

// ProofData is the raw evidence a client submits after paying.
type ProofData struct {
	OrderID string `json:"order_id"`
}

type ConfigField struct {
	Key         string   `json:"key"`
	Label       string   `json:"label"`
	Type        string   `json:"type"`
	Options     []string `json:"options,omitempty"`
	Default     string   `json:"default,omitempty"`
	Description string   `json:"description,omitempty"`
}

// Supports reports whether p accepts licenses of the given payment type.
func Supports(p Processor, pt models.PaymentType) bool {
	for _, t := range p.SupportedPaymentTypes() {
		if t == pt {
			return true
		}
	}
	return false
}
