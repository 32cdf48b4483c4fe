package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/licensegate/internal/apperr"
	"github.com/javajoker/licensegate/internal/i18n"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestValidateStruct_CustomTags(t *testing.T) {
	type input struct {
		PaymentType string `validate:"required,payment_type"`
		Currency    string `validate:"omitempty,currency"`
	}

	assert.NoError(t, ValidateStruct(input{PaymentType: "Purchase", Currency: "usd"}))

	err := ValidateStruct(input{PaymentType: "barter", Currency: "BTC"})
	require.Error(t, err)
	details := GetValidationErrors(err)
	require.Len(t, details, 2)
	assert.Equal(t, "paymenttype", details[0].Field)
	assert.Equal(t, "payment_type", details[0].Tag)
	assert.Contains(t, details[0].Message, "purchase")
	assert.Equal(t, "currency", details[1].Tag)
}

func TestCompareAPIKey(t *testing.T) {
	hash, err := HashAPIKey("s3cret")
	require.NoError(t, err)
	assert.True(t, IsBcryptHash(hash))

	assert.True(t, CompareAPIKey(hash, "s3cret"))
	assert.False(t, CompareAPIKey(hash, "wrong"))
	assert.True(t, CompareAPIKey("plain-key", "plain-key"))
	assert.False(t, CompareAPIKey("plain-key", "plain-kez"))
	assert.False(t, CompareAPIKey("", ""))
}

func TestGenerateSecretHex(t *testing.T) {
	a, err := GenerateSecretHex(32)
	require.NoError(t, err)
	b, err := GenerateSecretHex(32)
	require.NoError(t, err)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestAppErrorResponse(t *testing.T) {
	require.NoError(t, i18n.Initialize("en"))

	tests := []struct {
		err     error
		status  int
		code    string
		message string
	}{
		{apperr.New(apperr.CodeOrderExpired, "order ord_1 is older than 24h0m0s"), http.StatusPaymentRequired, "order_expired", "Order is too old to redeem"},
		{apperr.New(apperr.CodeLicenseNotFound, "license 9 not found"), http.StatusNotFound, "license_not_found", "License not found"},
		{errors.New("db exploded"), http.StatusInternalServerError, "internal_error", "Internal server error"},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)

		AppErrorResponse(c, tt.err)

		assert.Equal(t, tt.status, w.Code)
		var body APIResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.False(t, body.Success)
		require.NotNil(t, body.Error)
		assert.Equal(t, tt.code, body.Error.Code)
		assert.Equal(t, tt.message, body.Error.Message)
		assert.NotContains(t, w.Body.String(), "db exploded")
	}
}

func TestPagination(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/x?page=3&limit=500", nil)

	p := GetPaginationParams(c)
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 20, p.Limit)
	assert.Equal(t, 40, p.Offset())

	result := CreatePaginationResult([]int{1}, 41, p)
	assert.Equal(t, 3, result.TotalPages)
}
