// internal/token/token.go
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/javajoker/licensegate/internal/apperr"
)

// Introspection reasons reported for inactive tokens.
const (
	ReasonExpired          = "expired"
	ReasonInvalidSignature = "invalid_signature"
	ReasonMalformed        = "malformed"
)

// Non-canonical segments, such as a signature whose spare trailing bits are
// set, must not decode to the same bytes as the canonical form.
func init() {
	jwt.DecodeStrict = true
}

// Service signs and verifies HS256 compact tokens with a shared secret.
type Service struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// Introspection is the public view of a token's validity.
type Introspection struct {
	Active bool          `json:"active"`
	Claims jwt.MapClaims `json:"claims,omitempty"`
	Reason string        `json:"reason,omitempty"`
}

func NewService(secret []byte, issuer string) *Service {
	return &Service{
		secret: secret,
		issuer: issuer,
		now:    time.Now,
	}
}

// WithClock replaces the time source used for expiry checks.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Issuer() string {
	return s.issuer
}

// NewClaims returns the registered claims every token carries.
func (s *Service) NewClaims(subject, audience string, ttl time.Duration, issuedAt time.Time) jwt.MapClaims {
	return jwt.MapClaims{
		"iss": s.issuer,
		"sub": subject,
		"aud": audience,
		"iat": issuedAt.Unix(),
		"exp": issuedAt.Add(ttl).Unix(),
		"jti": uuid.NewString(),
	}
}

// Sign encodes claims as header.payload.signature.
func (s *Service) Sign(claims jwt.MapClaims) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("signing secret is not configured")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify checks the signature and expiry and returns the claims.
func (s *Service) Verify(tokenString string) (jwt.MapClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	claims := jwt.MapClaims{}
	_, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, apperr.Wrap(apperr.CodeInvalidSignature, "token signature is invalid", err)
		}
		return nil, apperr.Wrap(apperr.CodeMalformedToken, "token is malformed", err)
	}

	exp, ok := numericClaim(claims, "exp")
	if !ok {
		return nil, apperr.New(apperr.CodeMalformedToken, "token has no expiry")
	}
	if s.now().Unix() > exp {
		return nil, apperr.New(apperr.CodeTokenExpired, "token has expired")
	}

	return claims, nil
}

// Introspect reports whether the token is currently valid. It never fails;
// invalid input of any shape is reported as inactive.
func (s *Service) Introspect(tokenString string) (result Introspection) {
	defer func() {
		if r := recover(); r != nil {
			result = Introspection{Active: false, Reason: ReasonMalformed}
		}
	}()

	claims, err := s.Verify(tokenString)
	if err != nil {
		return Introspection{Active: false, Reason: reasonFor(err)}
	}
	return Introspection{Active: true, Claims: claims}
}

func reasonFor(err error) string {
	switch apperr.CodeOf(err) {
	case apperr.CodeTokenExpired:
		return ReasonExpired
	case apperr.CodeInvalidSignature:
		return ReasonInvalidSignature
	default:
		return ReasonMalformed
	}
}

func numericClaim(claims jwt.MapClaims, key string) (int64, bool) {
	switch v := claims[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}

// StringClaim returns claims[key] when it is a string.
func StringClaim(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

// UintClaim returns claims[key] as an unsigned integer when it is numeric.
func UintClaim(claims jwt.MapClaims, key string) (uint, bool) {
	n, ok := numericClaim(claims, key)
	if !ok || n < 0 {
		return 0, false
	}
	return uint(n), true
}
