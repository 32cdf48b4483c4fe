// internal/payment/commerce_processor.go
package payment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/javajoker/licensegate/internal/apperr"
	"github.com/javajoker/licensegate/internal/models"
)

const CommerceProcessorID = "commerce"

// CommerceProcessor sells licenses as products in the built-in commerce store
// and redeems the store's orders as payment evidence.
type CommerceProcessor struct {
	store       CommerceStore
	signer      Signer
	checkoutURL string
	now         func() time.Time

	mu         sync.RWMutex
	visibility models.ProductVisibility
}

func NewCommerceProcessor(store CommerceStore, signer Signer, checkoutURL string) *CommerceProcessor {
	return &CommerceProcessor{
		store:       store,
		signer:      signer,
		checkoutURL: checkoutURL,
		now:         time.Now,
		visibility:  models.ProductVisibilityHidden,
	}
}

// WithClock replaces the time source used for order age checks and proofs.
func (p *CommerceProcessor) WithClock(now func() time.Time) *CommerceProcessor {
	p.now = now
	return p
}

func (p *CommerceProcessor) ID() string   { return CommerceProcessorID }
func (p *CommerceProcessor) Name() string { return "Commerce Store" }

func (p *CommerceProcessor) IsAvailable() bool {
	return p.store != nil && p.store.Ready() && p.checkoutURL != ""
}

func (p *CommerceProcessor) SupportedPaymentTypes() []models.PaymentType {
	types := []models.PaymentType{
		models.PaymentTypePurchase,
		models.PaymentTypeTraining,
		models.PaymentTypeCrawl,
		models.PaymentTypeInference,
		models.PaymentTypeRoyalty,
		models.PaymentTypeAttribution,
	}
	if p.store != nil && p.store.SupportsSubscriptions() {
		types = append(types, models.PaymentTypeSubscription)
	}
	return types
}

func (p *CommerceProcessor) CreateCheckoutSession(ctx context.Context, license *models.License, clientID, sessionID string, opts CheckoutOptions) (*CheckoutSession, error) {
	product, err := p.ensureProduct(ctx, license)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeCheckoutCreationFailed, "failed to prepare product for license", err)
	}

	checkout, err := url.Parse(p.checkoutURL)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeCheckoutCreationFailed, "checkout url is invalid", err)
	}

	q := checkout.Query()
	q.Set("add-to-cart", product.ID)
	q.Set("client_id", clientID)
	q.Set("license_id", fmt.Sprintf("%d", license.ID))
	q.Set("session_id", sessionID)
	if opts.ReturnURL != "" {
		q.Set("return_url", opts.ReturnURL)
	}
	checkout.RawQuery = q.Encode()

	return &CheckoutSession{
		CheckoutURL: checkout.String(),
		ProcessorData: map[string]string{
			"product_id": product.ID,
			"visibility": string(product.Visibility),
		},
	}, nil
}

// ensureProduct finds or creates the license's product. Concurrent callers
// converge on the same product because the store rejects a second tag.
func (p *CommerceProcessor) ensureProduct(ctx context.Context, license *models.License) (*Product, error) {
	existing, err := p.store.FindProductByLicense(ctx, license.ID)
	switch {
	case err == nil:
		return p.syncProduct(ctx, existing, license)
	case !errors.Is(err, ErrProductNotFound):
		return nil, err
	}

	product := p.productFor(license)
	if err := p.store.CreateProduct(ctx, product); err != nil {
		winner, findErr := p.store.FindProductByLicense(ctx, license.ID)
		if findErr != nil {
			return nil, fmt.Errorf("failed to create product: %w", err)
		}
		return winner, nil
	}
	return product, nil
}

func (p *CommerceProcessor) syncProduct(ctx context.Context, existing *Product, license *models.License) (*Product, error) {
	want := p.productFor(license)
	if existing.Price == want.Price && existing.Currency == want.Currency &&
		existing.Recurring == want.Recurring && existing.Name == want.Name {
		return existing, nil
	}

	existing.Name = want.Name
	existing.Price = want.Price
	existing.Currency = want.Currency
	existing.Recurring = want.Recurring
	existing.Interval = want.Interval
	if err := p.store.UpdateProduct(ctx, existing); err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return existing, nil
}

func (p *CommerceProcessor) productFor(license *models.License) *Product {
	product := &Product{
		LicenseID:  license.ID,
		Name:       license.Name,
		Price:      license.Amount,
		Currency:   license.Currency,
		Visibility: p.productVisibility(),
	}
	if license.PaymentType == models.PaymentTypeSubscription && p.store.SupportsSubscriptions() {
		product.Recurring = true
		product.Interval = "month"
	}
	return product
}

func (p *CommerceProcessor) ValidatePaymentProof(ctx context.Context, license *models.License, sessionID string, proof ProofData) error {
	if strings.TrimSpace(proof.OrderID) == "" {
		return apperr.New(apperr.CodeMissingOrderID, "order_id is required")
	}

	order, err := p.store.GetOrder(ctx, proof.OrderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return apperr.Newf(apperr.CodeOrderNotFound, "order %s not found", proof.OrderID)
		}
		return fmt.Errorf("failed to load order: %w", err)
	}

	return CheckOrder(order, sessionID, license.ID, p.now())
}

func (p *CommerceProcessor) GeneratePaymentProof(ctx context.Context, license *models.License, sessionID string, payment ProofData) (string, error) {
	order, err := p.store.GetOrder(ctx, payment.OrderID)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeProofGeneration, "failed to load order", err)
	}
	if !order.Paid {
		return "", apperr.Wrap(apperr.CodeProofGeneration, "order is not paid", apperr.ErrOrderNotPaid)
	}

	claims := BuildProofClaims(p.ID(), p.signer.Issuer(), license, sessionID, order, p.now())
	proof, err := p.signer.Sign(claims)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeProofGeneration, "failed to sign payment proof", err)
	}
	return proof, nil
}

func (p *CommerceProcessor) ConfigFields() []ConfigField {
	options := []string{
		string(models.ProductVisibilityHidden),
		string(models.ProductVisibilityCatalog),
		string(models.ProductVisibilitySearch),
	}
	return []ConfigField{
		{
			Key:         "product_visibility",
			Label:       "Product visibility",
			Type:        "select",
			Options:     options,
			Default:     string(models.ProductVisibilityHidden),
			Description: "Catalog visibility of products created for licenses",
		},
	}
}

func (p *CommerceProcessor) ValidateConfig(config map[string]string) error {
	for key, value := range config {
		switch key {
		case "product_visibility":
			if _, ok := models.ParseProductVisibility(value); !ok {
				return apperr.Newf(apperr.CodeInvalidConfig, "product_visibility must be one of hidden, catalog or search, got %q", value)
			}
		default:
			return apperr.Newf(apperr.CodeInvalidConfig, "unknown config key %q", key)
		}
	}
	return nil
}

func (p *CommerceProcessor) Configure(config map[string]string) error {
	if err := p.ValidateConfig(config); err != nil {
		return err
	}
	if v, ok := config["product_visibility"]; ok {
		visibility, _ := models.ParseProductVisibility(v)
		p.mu.Lock()
		p.visibility = visibility
		p.mu.Unlock()
	}
	return nil
}

func (p *CommerceProcessor) productVisibility() models.ProductVisibility {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.visibility
}
