// internal/payment/stripe_processor.go
package payment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/checkout/session"

	"github.com/javajoker/licensegate/internal/apperr"
	"github.com/javajoker/licensegate/internal/models"
)

const StripeProcessorID = "stripe"

// StripeSessions is the subset of the Stripe checkout session API in use.
type StripeSessions interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeProcessor sells licenses through hosted Stripe Checkout. The checkout
// session id doubles as the order id submitted with the proof.
type StripeProcessor struct {
	sessions StripeSessions
	signer   Signer
	now      func() time.Time

	mu         sync.RWMutex
	successURL string
	cancelURL  string
}

func NewStripeProcessor(secretKey string, signer Signer, successURL, cancelURL string) *StripeProcessor {
	var sessions StripeSessions
	if secretKey != "" {
		sessions = &session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey}
	}
	return NewStripeProcessorWithSessions(sessions, signer, successURL, cancelURL)
}

func NewStripeProcessorWithSessions(sessions StripeSessions, signer Signer, successURL, cancelURL string) *StripeProcessor {
	return &StripeProcessor{
		sessions:   sessions,
		signer:     signer,
		now:        time.Now,
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

func (p *StripeProcessor) WithClock(now func() time.Time) *StripeProcessor {
	p.now = now
	return p
}

func (p *StripeProcessor) ID() string   { return StripeProcessorID }
func (p *StripeProcessor) Name() string { return "Stripe Checkout" }

func (p *StripeProcessor) IsAvailable() bool {
	success, _ := p.urls()
	return p.sessions != nil && success != ""
}

func (p *StripeProcessor) SupportedPaymentTypes() []models.PaymentType {
	return []models.PaymentType{
		models.PaymentTypePurchase,
		models.PaymentTypeSubscription,
		models.PaymentTypeTraining,
		models.PaymentTypeCrawl,
		models.PaymentTypeInference,
		models.PaymentTypeRoyalty,
		models.PaymentTypeAttribution,
	}
}

func (p *StripeProcessor) CreateCheckoutSession(ctx context.Context, license *models.License, clientID, sessionID string, opts CheckoutOptions) (*CheckoutSession, error) {
	successURL, cancelURL := p.urls()
	if opts.ReturnURL != "" {
		successURL = opts.ReturnURL
	}
	if opts.CancelURL != "" {
		cancelURL = opts.CancelURL
	}
	if cancelURL == "" {
		cancelURL = successURL
	}

	priceData := &stripe.CheckoutSessionLineItemPriceDataParams{
		Currency:   stripe.String(strings.ToLower(string(license.Currency))),
		UnitAmount: stripe.Int64(minorUnits(license.Amount, license.Currency)),
		ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(license.Name),
		},
	}
	mode := stripe.CheckoutSessionModePayment
	if license.PaymentType == models.PaymentTypeSubscription {
		mode = stripe.CheckoutSessionModeSubscription
		priceData.Recurring = &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
			Interval: stripe.String("month"),
		}
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(mode)),
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(cancelURL),
		ClientReferenceID: stripe.String(clientID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{PriceData: priceData, Quantity: stripe.Int64(1)},
		},
	}
	params.Context = ctx
	for k, v := range OrderMetadata(license, clientID, sessionID) {
		params.AddMetadata(k, v)
	}

	s, err := p.sessions.New(params)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeCheckoutCreationFailed, "failed to create stripe checkout session", err)
	}

	return &CheckoutSession{
		CheckoutURL: s.URL,
		ProcessorData: map[string]string{
			"stripe_session_id": s.ID,
			"mode":              string(mode),
		},
	}, nil
}

func (p *StripeProcessor) ValidatePaymentProof(ctx context.Context, license *models.License, sessionID string, proof ProofData) error {
	if strings.TrimSpace(proof.OrderID) == "" {
		return apperr.New(apperr.CodeMissingOrderID, "order_id is required")
	}

	order, err := p.order(ctx, proof.OrderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return apperr.Newf(apperr.CodeOrderNotFound, "order %s not found", proof.OrderID)
		}
		return err
	}

	return CheckOrder(order, sessionID, license.ID, p.now())
}

func (p *StripeProcessor) GeneratePaymentProof(ctx context.Context, license *models.License, sessionID string, payment ProofData) (string, error) {
	order, err := p.order(ctx, payment.OrderID)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeProofGeneration, "failed to load order", err)
	}
	if !order.Paid {
		return "", apperr.Wrap(apperr.CodeProofGeneration, "order is not paid", apperr.ErrOrderNotPaid)
	}

	proof, err := p.signer.Sign(BuildProofClaims(p.ID(), p.signer.Issuer(), license, sessionID, order, p.now()))
	if err != nil {
		return "", apperr.Wrap(apperr.CodeProofGeneration, "failed to sign payment proof", err)
	}
	return proof, nil
}

// order loads a checkout session and maps it onto the order record.
func (p *StripeProcessor) order(ctx context.Context, id string) (*Order, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := p.sessions.Get(id, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) &&
			(stripeErr.HTTPStatusCode == http.StatusNotFound || stripeErr.Code == stripe.ErrorCodeResourceMissing) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get checkout session: %w", err)
	}

	currency, _ := models.ParseCurrency(string(s.Currency))
	method := ""
	if len(s.PaymentMethodTypes) > 0 {
		method = s.PaymentMethodTypes[0]
	}
	return &Order{
		ID:            s.ID,
		Paid:          s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		CreatedAt:     time.Unix(s.Created, 0),
		Metadata:      s.Metadata,
		Total:         majorUnits(s.AmountTotal, currency),
		Currency:      currency,
		PaymentMethod: method,
	}, nil
}

func (p *StripeProcessor) ConfigFields() []ConfigField {
	return []ConfigField{
		{Key: "success_url", Label: "Success URL", Type: "url", Description: "Where Stripe redirects after payment"},
		{Key: "cancel_url", Label: "Cancel URL", Type: "url", Description: "Where Stripe redirects when checkout is abandoned"},
	}
}

func (p *StripeProcessor) ValidateConfig(config map[string]string) error {
	for key, value := range config {
		switch key {
		case "success_url", "cancel_url":
			u, err := url.ParseRequestURI(value)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return apperr.Newf(apperr.CodeInvalidConfig, "%s must be an absolute http(s) url", key)
			}
		default:
			return apperr.Newf(apperr.CodeInvalidConfig, "unknown config key %q", key)
		}
	}
	return nil
}

func (p *StripeProcessor) Configure(config map[string]string) error {
	if err := p.ValidateConfig(config); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := config["success_url"]; ok {
		p.successURL = v
	}
	if v, ok := config["cancel_url"]; ok {
		p.cancelURL = v
	}
	return nil
}

func (p *StripeProcessor) urls() (string, string) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.successURL, p.cancelURL
}

// JPY has no minor unit.
func minorUnits(amount float64, currency models.Currency) int64 {
	if currency == models.CurrencyJPY {
		return int64(math.Round(amount))
	}
	return int64(math.Round(amount * 100))
}

func majorUnits(amount int64, currency models.Currency) float64 {
	if currency == models.CurrencyJPY {
		return float64(amount)
	}
	return float64(amount) / 100
}
