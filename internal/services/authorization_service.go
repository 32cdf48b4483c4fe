// internal/services/authorization_service.go
package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/licensegate/internal/apperr"
	"github.com/javajoker/licensegate/internal/metrics"
	"github.com/javajoker/licensegate/internal/models"
	"github.com/javajoker/licensegate/internal/payment"
	"github.com/javajoker/licensegate/internal/token"
)

// State is a step of a checkout-to-token request lifecycle.
type State string

const (
	StateRequested       State = "requested"
	StateSessionCreated  State = "session_created"
	StateAwaitingPayment State = "awaiting_payment"
	StateProofValidated  State = "proof_validated"
	StateTokenIssued     State = "token_issued"
	StateRejected        State = "rejected"
)

const (
	// NoProcessor marks tokens for licenses that need no payment.
	NoProcessor = "none"

	AccessTokenSubject = "access_token"
	AccessTokenUse     = "access"
)

// Access decision reasons besides the token introspection reasons.
const (
	ReasonNoLicense       = "no_license"
	ReasonFreeLicense     = "free_license"
	ReasonMissingToken    = "missing_token"
	ReasonNotAccessToken  = "not_access_token"
	ReasonLicenseMismatch = "license_mismatch"
)

type AuthorizationService struct {
	licenses  *LicenseService
	registry  *payment.Registry
	tokens    *token.Service
	metrics   *metrics.Metrics
	accessTTL time.Duration
	now       func() time.Time
}

type CheckoutResult struct {
	SessionID       string            `json:"session_id"`
	LicenseID       uint              `json:"license_id"`
	PaymentRequired bool              `json:"payment_required"`
	Processor       string            `json:"processor,omitempty"`
	CheckoutURL     string            `json:"checkout_url,omitempty"`
	ProcessorData   map[string]string `json:"processor_data,omitempty"`
	Amount          float64           `json:"amount"`
	Currency        models.Currency   `json:"currency"`
}

type IssuedToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	LicenseID   uint   `json:"license_id"`
	Processor   string `json:"processor"`
}

// AccessDecision is the outcome of checking a token against a content URL.
type AccessDecision struct {
	Allowed   bool   `json:"allowed"`
	LicenseID uint   `json:"license_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

func NewAuthorizationService(licenses *LicenseService, registry *payment.Registry, tokens *token.Service, m *metrics.Metrics, accessTTL time.Duration) *AuthorizationService {
	return &AuthorizationService{
		licenses:  licenses,
		registry:  registry,
		tokens:    tokens,
		metrics:   m,
		accessTTL: accessTTL,
		now:       time.Now,
	}
}

func (s *AuthorizationService) WithClock(now func() time.Time) *AuthorizationService {
	s.now = now
	return s
}

// BeginCheckout opens a payment session for a license and hands it to the
// first available processor that supports the license's payment type.
func (s *AuthorizationService) BeginCheckout(ctx context.Context, licenseID uint, clientID string, opts payment.CheckoutOptions) (*CheckoutResult, error) {
	sessionID := uuid.NewString()
	log := logrus.WithFields(logrus.Fields{"session_id": sessionID, "license_id": licenseID})
	transition(log, StateRequested)

	license, err := s.activeLicense(ctx, licenseID)
	if err != nil {
		return nil, reject(log, err)
	}

	result := &CheckoutResult{
		SessionID: sessionID,
		LicenseID: license.ID,
		Amount:    license.Amount,
		Currency:  license.Currency,
	}

	if !license.RequiresPayment() {
		s.metrics.Checkout(NoProcessor, metrics.ResultSuccess)
		transition(log, StateSessionCreated)
		return result, nil
	}

	processor, err := s.registry.Select(license.PaymentType)
	if err != nil {
		s.metrics.Checkout(NoProcessor, string(apperr.CodeOf(err)))
		return nil, reject(log, err)
	}
	log = log.WithField("processor", processor.ID())

	session, err := processor.CreateCheckoutSession(ctx, license, clientID, sessionID, opts)
	if err != nil {
		s.metrics.Checkout(processor.ID(), string(apperr.CodeOf(err)))
		return nil, reject(log, err)
	}
	transition(log, StateSessionCreated)

	s.metrics.Checkout(processor.ID(), metrics.ResultSuccess)
	result.PaymentRequired = true
	result.Processor = processor.ID()
	result.CheckoutURL = session.CheckoutURL
	result.ProcessorData = session.ProcessorData
	transition(log, StateAwaitingPayment)
	return result, nil
}

// CompleteAndIssue redeems payment evidence for an access token. processorID
// is optional; when empty the first available processor for the license's
// payment type is used.
func (s *AuthorizationService) CompleteAndIssue(ctx context.Context, licenseID uint, sessionID string, proof payment.ProofData, processorID string) (*IssuedToken, error) {
	log := logrus.WithFields(logrus.Fields{"session_id": sessionID, "license_id": licenseID})
	transition(log, StateRequested)

	if strings.TrimSpace(sessionID) == "" {
		return nil, reject(log, apperr.New(apperr.CodeMissingField, "session_id is required"))
	}

	license, err := s.activeLicense(ctx, licenseID)
	if err != nil {
		return nil, reject(log, err)
	}

	if !license.RequiresPayment() {
		issued, err := s.mint(license, sessionID, NoProcessor, nil)
		if err != nil {
			return nil, reject(log, err)
		}
		transition(log.WithField("processor", NoProcessor), StateTokenIssued)
		return issued, nil
	}

	processor, err := s.processorFor(license, processorID)
	if err != nil {
		return nil, reject(log, err)
	}
	log = log.WithField("processor", processor.ID())
	transition(log, StateAwaitingPayment)

	if err := processor.ValidatePaymentProof(ctx, license, sessionID, proof); err != nil {
		s.metrics.ProofValidation(processor.ID(), string(apperr.CodeOf(err)))
		return nil, reject(log, err)
	}
	s.metrics.ProofValidation(processor.ID(), metrics.ResultSuccess)
	transition(log, StateProofValidated)

	signed, err := processor.GeneratePaymentProof(ctx, license, sessionID, proof)
	if err != nil {
		return nil, reject(log, err)
	}
	proofClaims, err := s.tokens.Verify(signed)
	if err != nil {
		return nil, reject(log, apperr.Wrap(apperr.CodeProofGeneration, "payment proof did not verify", err))
	}
	if token.StringClaim(proofClaims, "session_id") != sessionID {
		return nil, reject(log, apperr.New(apperr.CodeSessionMismatch, "payment proof belongs to another session"))
	}
	if id, ok := token.UintClaim(proofClaims, "license_id"); !ok || id != license.ID {
		return nil, reject(log, apperr.New(apperr.CodeLicenseMismatch, "payment proof belongs to another license"))
	}

	issued, err := s.mint(license, sessionID, processor.ID(), proofClaims)
	if err != nil {
		return nil, reject(log, err)
	}
	transition(log, StateTokenIssued)
	return issued, nil
}

// Introspect reports the validity of any token this server signed.
func (s *AuthorizationService) Introspect(tokenString string) token.Introspection {
	result := s.tokens.Introspect(tokenString)
	s.metrics.Introspection(result.Active)
	return result
}

// AuthorizeAccess decides whether tokenString grants access to rawURL. URLs
// no active license covers, and free licenses, are always allowed.
func (s *AuthorizationService) AuthorizeAccess(ctx context.Context, tokenString, rawURL string) (*AccessDecision, error) {
	license, err := s.licenses.MatchByURL(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if license == nil {
		return &AccessDecision{Allowed: true, Reason: ReasonNoLicense}, nil
	}

	decision := &AccessDecision{LicenseID: license.ID}
	if !license.RequiresPayment() {
		decision.Allowed = true
		decision.Reason = ReasonFreeLicense
		return decision, nil
	}
	if tokenString == "" {
		decision.Reason = ReasonMissingToken
		return decision, nil
	}

	result := s.Introspect(tokenString)
	switch {
	case !result.Active:
		decision.Reason = result.Reason
	case token.StringClaim(result.Claims, "token_use") != AccessTokenUse:
		decision.Reason = ReasonNotAccessToken
	default:
		id, ok := token.UintClaim(result.Claims, "license_id")
		if !ok || id != license.ID {
			decision.Reason = ReasonLicenseMismatch
			break
		}
		decision.Allowed = true
	}
	return decision, nil
}

func (s *AuthorizationService) activeLicense(ctx context.Context, id uint) (*models.License, error) {
	license, err := s.licenses.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !license.Active {
		return nil, apperr.Newf(apperr.CodeLicenseInactive, "license %d is not active", id)
	}
	return license, nil
}

func (s *AuthorizationService) processorFor(license *models.License, processorID string) (payment.Processor, error) {
	if processorID == "" {
		return s.registry.Select(license.PaymentType)
	}

	processor, err := s.registry.Get(processorID)
	if err != nil {
		return nil, err
	}
	if !processor.IsAvailable() || !payment.Supports(processor, license.PaymentType) {
		return nil, apperr.Newf(apperr.CodeNoProcessorAvailable, "processor %q cannot accept payment type %q", processorID, license.PaymentType)
	}
	return processor, nil
}

// mint signs an access token. proofClaims is nil for licenses that need no
// payment.
func (s *AuthorizationService) mint(license *models.License, sessionID, processorID string, proofClaims map[string]interface{}) (*IssuedToken, error) {
	audience := strconv.FormatUint(uint64(license.ID), 10)
	claims := s.tokens.NewClaims(AccessTokenSubject, audience, s.accessTTL, s.now())
	claims["token_use"] = AccessTokenUse
	claims["license_id"] = license.ID
	claims["session_id"] = sessionID
	claims["processor"] = processorID

	if proofClaims != nil {
		claims["order_id"] = proofClaims["order_id"]
		claims["proof_jti"] = proofClaims["jti"]
		if clientID, ok := proofClaims["client_id"].(string); ok && clientID != "" {
			claims["client_id"] = clientID
		}
	}

	signed, err := s.tokens.Sign(claims)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeProofGeneration, "failed to sign access token", err)
	}
	s.metrics.TokenIssued(processorID)

	return &IssuedToken{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.accessTTL / time.Second),
		LicenseID:   license.ID,
		Processor:   processorID,
	}, nil
}

func transition(log *logrus.Entry, state State) {
	log.WithField("state", state).Info("Authorization state changed")
}

// reject logs the terminal state and passes err through unchanged.
func reject(log *logrus.Entry, err error) error {
	log.WithFields(logrus.Fields{
		"state":  StateRejected,
		"reason": apperr.CodeOf(err),
	}).Warn("Authorization rejected")
	return err
}
