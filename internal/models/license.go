// internal/models/license.go
package models

import "strings"

type License struct {
	BaseModel
	Name           string      `json:"name" gorm:"size:255;not null"`
	Description    string      `json:"description" gorm:"type:text"`
	ContentURL     string      `json:"content_url" gorm:"size:2048;not null"`
	ServerURL      string      `json:"server_url" gorm:"size:2048"`
	StandardURL    string      `json:"standard_url" gorm:"size:2048"`
	PaymentType    PaymentType `json:"payment_type" gorm:"type:varchar(20);not null;default:'free'"`
	Amount         float64     `json:"amount" gorm:"type:decimal(10,2);not null;default:0"`
	Currency       Currency    `json:"currency" gorm:"type:varchar(3);not null;default:'USD'"`
	PermitsUsage   StringList  `json:"permits_usage" gorm:"type:text"`
	PermitsUser    StringList  `json:"permits_user" gorm:"type:text"`
	PermitsGeo     StringList  `json:"permits_geo" gorm:"type:text"`
	ProhibitsUsage StringList  `json:"prohibits_usage" gorm:"type:text"`
	ProhibitsUser  StringList  `json:"prohibits_user" gorm:"type:text"`
	ProhibitsGeo   StringList  `json:"prohibits_geo" gorm:"type:text"`
	Active         bool        `json:"active" gorm:"not null;index"`
}

// RequiresPayment reports whether a checkout is needed before access is granted.
func (l *License) RequiresPayment() bool {
	return l.Amount > 0
}

// AllPaymentTypes lists every payment type in declaration order.
func AllPaymentTypes() []PaymentType {
	return []PaymentType{
		PaymentTypeFree,
		PaymentTypePurchase,
		PaymentTypeSubscription,
		PaymentTypeTraining,
		PaymentTypeCrawl,
		PaymentTypeInference,
		PaymentTypeAttribution,
		PaymentTypeRoyalty,
	}
}

// ParsePaymentType normalises s and reports whether it names a known type.
func ParsePaymentType(s string) (PaymentType, bool) {
	pt := PaymentType(strings.ToLower(strings.TrimSpace(s)))
	switch pt {
	case PaymentTypeFree, PaymentTypePurchase, PaymentTypeSubscription,
		PaymentTypeTraining, PaymentTypeCrawl, PaymentTypeInference,
		PaymentTypeAttribution, PaymentTypeRoyalty:
		return pt, true
	}
	return "", false
}

// AllCurrencies lists every supported currency.
func AllCurrencies() []Currency {
	return []Currency{CurrencyUSD, CurrencyEUR, CurrencyGBP, CurrencyJPY, CurrencyCAD, CurrencyAUD}
}

// ParseCurrency normalises s and reports whether it names a supported currency.
func ParseCurrency(s string) (Currency, bool) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case CurrencyUSD, CurrencyEUR, CurrencyGBP, CurrencyJPY, CurrencyCAD, CurrencyAUD:
		return c, true
	}
	return "", false
}

// ParseProductVisibility reports whether s is a known catalog visibility.
func ParseProductVisibility(s string) (ProductVisibility, bool) {
	v := ProductVisibility(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case ProductVisibilityHidden, ProductVisibilityCatalog, ProductVisibilitySearch:
		return v, true
	}
	return "", false
}
