// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess       = "success"
	KeyInternalError = "error.internal_error"

	// Authentication
	KeyAuthRequired        = "auth.required"
	KeyAuthInvalidAdminKey = "auth.invalid_admin_key"
	KeyAuthInvalidToken    = "auth.invalid_token"
	KeyAuthAccessDenied    = "auth.access_denied"

	// Licenses
	KeyLicenseCreated   = "license.created"
	KeyLicenseUpdated   = "license.updated"
	KeyLicenseDeleted   = "license.deleted"
	KeyLicensePublished = "license.published"
	KeyLicenseNotFound  = "license.not_found"
	KeyLicenseNoMatch   = "license.no_match"

	// Processors and orders
	KeyProcessorConfigUpdated = "processor.config_updated"
	KeyOrderCreated           = "order.created"
	KeyOrderPaid              = "order.paid"

	// Validation
	KeyValidationRequired = "validation.required"
	KeyValidationInvalid  = "validation.invalid"

	// Rate limiting
	KeyRateLimited = "rate_limit.exceeded"
)

// ErrorKey returns the translation key for an error code.
func ErrorKey(code string) string {
	return "error." + code
}
