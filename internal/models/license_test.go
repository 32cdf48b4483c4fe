package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePaymentType(t *testing.T) {
	for _, pt := range AllPaymentTypes() {
		got, ok := ParsePaymentType(" " + string(pt) + " ")
		assert.True(t, ok, pt)
		assert.Equal(t, pt, got)
	}

	got, ok := ParsePaymentType("PURCHASE")
	assert.True(t, ok)
	assert.Equal(t, PaymentTypePurchase, got)

	_, ok = ParsePaymentType("barter")
	assert.False(t, ok)
	_, ok = ParsePaymentType("")
	assert.False(t, ok)
}

func TestParseCurrency(t *testing.T) {
	got, ok := ParseCurrency("eur")
	assert.True(t, ok)
	assert.Equal(t, CurrencyEUR, got)

	_, ok = ParseCurrency("BTC")
	assert.False(t, ok)
}

func TestParseProductVisibility(t *testing.T) {
	v, ok := ParseProductVisibility("Catalog")
	assert.True(t, ok)
	assert.Equal(t, ProductVisibilityCatalog, v)

	_, ok = ParseProductVisibility("public")
	assert.False(t, ok)
}

func TestStringList_ValueScan(t *testing.T) {
	list := StringList{"ai-training", "search"}
	v, err := list.Value()
	require.NoError(t, err)
	assert.Equal(t, `["ai-training","search"]`, v)

	var scanned StringList
	require.NoError(t, scanned.Scan([]byte(`["ai-training","search"]`)))
	assert.Equal(t, list, scanned)

	require.NoError(t, scanned.Scan(`[]`))
	assert.Empty(t, scanned)

	var empty StringList
	v, err = empty.Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)
}

func TestMetadata_ValueScan(t *testing.T) {
	var m Metadata
	require.NoError(t, m.Scan(`{"rsl_session_id":"abc"}`))
	assert.Equal(t, "abc", m["rsl_session_id"])

	require.Error(t, m.Scan(42))
}

func TestOrder_IsPaid(t *testing.T) {
	assert.True(t, (&Order{Status: OrderStatusCompleted}).IsPaid())
	assert.True(t, (&Order{Status: OrderStatusProcessing}).IsPaid())
	assert.False(t, (&Order{Status: OrderStatusPending}).IsPaid())
	assert.False(t, (&Order{Status: OrderStatusRefunded}).IsPaid())
}

func TestLicenseTag(t *testing.T) {
	assert.Equal(t, "license:42", LicenseTag(42))
}
