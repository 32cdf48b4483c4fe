// internal/router/router_test.go
package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/javajoker/licensegate/internal/commerce"
	"github.com/javajoker/licensegate/internal/config"
	"github.com/javajoker/licensegate/internal/database"
	"github.com/javajoker/licensegate/internal/i18n"
	"github.com/javajoker/licensegate/internal/metrics"
	"github.com/javajoker/licensegate/internal/payment"
	"github.com/javajoker/licensegate/internal/services"
	"github.com/javajoker/licensegate/internal/token"
)

const adminKey = "admin-test-key"

type RouterTestSuite struct {
	suite.Suite
	db     *gorm.DB
	router *gin.Engine
}

func (suite *RouterTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	suite.Require().NoError(i18n.Initialize("en"))
}

func (suite *RouterTestSuite) SetupTest() {
	db, err := database.OpenInMemory()
	suite.Require().NoError(err)
	suite.db = db

	cfg := &config.Config{
		Environment: "test",
		Server:      config.ServerConfig{PublicURL: "http://localhost:8080", CORSOrigins: []string{"*"}},
		Token:       config.TokenConfig{Issuer: "http://localhost:8080", AccessTokenTTL: 3600},
		Commerce:    config.CommerceConfig{Enabled: true, CheckoutURL: "https://shop.example.com/checkout", ProductVisibility: "hidden"},
		AWS:         config.AWSConfig{KeyPrefix: "licenses/", LocalPublishDir: suite.T().TempDir()},
		Admin:       config.AdminConfig{APIKey: adminKey},
		RateLimit:   config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000, IntrospectPerSecond: 1000, IntrospectBurst: 1000},
		I18n:        config.I18nConfig{DefaultLocale: "en"},
	}

	tokens := token.NewService([]byte("0123456789abcdef0123456789abcdef"), cfg.Token.Issuer)
	storage, err := services.NewStorageService(cfg)
	suite.Require().NoError(err)

	store := commerce.NewGormStore(db, false)
	registry := payment.NewRegistry(payment.NewCommerceProcessor(store, tokens, cfg.Commerce.CheckoutURL))
	licenses := services.NewLicenseService(db, storage)

	suite.router = Initialize(db, cfg, &Services{
		Licenses:      licenses,
		Authorization: services.NewAuthorizationService(licenses, registry, tokens, metrics.New(), time.Hour),
		Processors:    services.NewProcessorService(db, registry),
		Admin:         services.NewAdminService(db),
		Storage:       storage,
		Orders:        store,
		Metrics:       metrics.New(),
	})
}

func (suite *RouterTestSuite) request(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		suite.Require().NoError(err)
		reader = bytes.NewBuffer(jsonData)
	} else {
		reader = &bytes.Buffer{}
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *RouterTestSuite) admin(method, path string, body interface{}) *httptest.ResponseRecorder {
	return suite.request(method, path, body, map[string]string{"Authorization": "Bearer " + adminKey})
}

func (suite *RouterTestSuite) decode(w *httptest.ResponseRecorder) map[string]interface{} {
	var response map[string]interface{}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	return response
}

func (suite *RouterTestSuite) data(w *httptest.ResponseRecorder) map[string]interface{} {
	response := suite.decode(w)
	suite.Require().True(response["success"].(bool), w.Body.String())
	return response["data"].(map[string]interface{})
}

func (suite *RouterTestSuite) errorCode(w *httptest.ResponseRecorder) string {
	response := suite.decode(w)
	assert.False(suite.T(), response["success"].(bool))
	return response["error"].(map[string]interface{})["code"].(string)
}

func (suite *RouterTestSuite) createLicense(body map[string]interface{}) int {
	w := suite.admin("POST", "/v1/admin/licenses", body)
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	license := suite.data(w)["license"].(map[string]interface{})
	return int(license["id"].(float64))
}

func (suite *RouterTestSuite) reportLicense() int {
	return suite.createLicense(map[string]interface{}{
		"name":         "Quarterly reports",
		"content_url":  "/reports/*",
		"payment_type": "purchase",
		"amount":       "9.99",
		"currency":     "USD",
	})
}

func (suite *RouterTestSuite) TestHealthAndMetrics() {
	w := suite.request("GET", "/health", nil, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Equal(suite.T(), "healthy", suite.decode(w)["status"])

	w = suite.request("GET", "/metrics", nil, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Contains(suite.T(), w.Body.String(), "go_goroutines")
}

func (suite *RouterTestSuite) TestAdminRoutesRequireKey() {
	w := suite.request("POST", "/v1/admin/licenses", map[string]interface{}{"name": "x", "content_url": "/x"}, nil)
	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)

	w = suite.request("GET", "/v1/admin/processors", nil, map[string]string{"Authorization": "Bearer nope"})
	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)
}

func (suite *RouterTestSuite) TestLicenseEndpoints() {
	id := suite.reportLicense()

	w := suite.request("GET", fmt.Sprintf("/v1/licenses/%d", id), nil, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Equal(suite.T(), 9.99, suite.data(w)["amount"])

	w = suite.request("GET", fmt.Sprintf("/v1/licenses/%d/xml", id), nil, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.True(suite.T(), strings.HasPrefix(w.Header().Get("Content-Type"), "application/rsl+xml"))
	assert.Contains(suite.T(), w.Body.String(), "<content")

	w = suite.request("GET", "/v1/licenses/match?url="+url.QueryEscape("https://example.com/reports/q1.pdf"), nil, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Equal(suite.T(), float64(id), suite.data(w)["id"])

	w = suite.request("GET", "/v1/licenses/match?url=/elsewhere", nil, nil)
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
	assert.Equal(suite.T(), "not_found", suite.errorCode(w))

	w = suite.request("GET", "/v1/licenses/match", nil, nil)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)

	w = suite.request("GET", "/v1/licenses/abc", nil, nil)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)

	w = suite.request("GET", "/v1/licenses/999", nil, nil)
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
	assert.Equal(suite.T(), "license_not_found", suite.errorCode(w))

	w = suite.request("GET", "/v1/licenses?active=true&page=1&limit=10", nil, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Equal(suite.T(), "1", w.Header().Get("X-Total-Count"))
}

func (suite *RouterTestSuite) TestLicenseAdminLifecycle() {
	w := suite.admin("POST", "/v1/admin/licenses", map[string]interface{}{
		"name":         "Broken",
		"content_url":  "/broken",
		"payment_type": "barter",
	})
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	assert.Equal(suite.T(), "invalid_payment_type", suite.errorCode(w))

	id := suite.reportLicense()

	w = suite.admin("PUT", fmt.Sprintf("/v1/admin/licenses/%d", id), map[string]interface{}{"active": false})
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Equal(suite.T(), false, suite.data(w)["license"].(map[string]interface{})["active"])

	w = suite.request("POST", fmt.Sprintf("/v1/licenses/%d/checkout", id), nil, nil)
	assert.Equal(suite.T(), http.StatusConflict, w.Code)
	assert.Equal(suite.T(), "license_inactive", suite.errorCode(w))

	w = suite.admin("POST", fmt.Sprintf("/v1/admin/licenses/%d/publish", id), nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	upload := suite.data(w)["result"].(map[string]interface{})["upload"].(map[string]interface{})
	assert.Equal(suite.T(), fmt.Sprintf("licenses/%d.xml", id), upload["key"])

	w = suite.request("GET", fmt.Sprintf("/published/licenses/%d.xml", id), nil, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Contains(suite.T(), w.Body.String(), "Quarterly reports")

	w = suite.admin("DELETE", fmt.Sprintf("/v1/admin/licenses/%d", id), nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)

	w = suite.request("GET", fmt.Sprintf("/v1/licenses/%d", id), nil, nil)
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)

	w = suite.request("GET", fmt.Sprintf("/published/licenses/%d.xml", id), nil, nil)
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
}

func (suite *RouterTestSuite) TestCheckoutToAccessFlow() {
	id := suite.reportLicense()
	target := "/v1/access?url=" + url.QueryEscape("https://example.com/reports/q1.pdf")

	w := suite.request("GET", target, nil, nil)
	assert.Equal(suite.T(), http.StatusForbidden, w.Code)
	assert.Equal(suite.T(), "access_denied", suite.errorCode(w))

	w = suite.request("POST", fmt.Sprintf("/v1/licenses/%d/checkout", id), map[string]interface{}{"client_id": "crawler-1"}, nil)
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	checkout := suite.data(w)
	sessionID := checkout["session_id"].(string)
	productID := checkout["processor_data"].(map[string]interface{})["product_id"].(string)
	assert.Equal(suite.T(), true, checkout["payment_required"])
	assert.Equal(suite.T(), payment.CommerceProcessorID, checkout["processor"])
	assert.Contains(suite.T(), checkout["checkout_url"], "session_id="+sessionID)

	tokenPath := fmt.Sprintf("/v1/licenses/%d/token", id)

	w = suite.request("POST", tokenPath, map[string]interface{}{"session_id": sessionID}, nil)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	assert.Equal(suite.T(), "missing_order_id", suite.errorCode(w))

	w = suite.request("POST", tokenPath, map[string]interface{}{"session_id": sessionID, "order_id": "ord_missing"}, nil)
	assert.Equal(suite.T(), http.StatusPaymentRequired, w.Code)
	assert.Equal(suite.T(), "order_not_found", suite.errorCode(w))

	w = suite.admin("POST", "/v1/admin/orders", map[string]interface{}{
		"product_id": productID,
		"session_id": sessionID,
		"client_id":  "crawler-1",
	})
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	orderID := suite.data(w)["order"].(map[string]interface{})["id"].(string)

	w = suite.request("POST", tokenPath, map[string]interface{}{"session_id": sessionID, "order_id": orderID}, nil)
	assert.Equal(suite.T(), http.StatusPaymentRequired, w.Code)
	assert.Equal(suite.T(), "order_not_paid", suite.errorCode(w))

	w = suite.admin("PUT", "/v1/admin/orders/"+orderID+"/paid", nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	assert.Equal(suite.T(), "completed", suite.data(w)["order"].(map[string]interface{})["status"])

	w = suite.request("POST", tokenPath, map[string]interface{}{"session_id": "another-session", "order_id": orderID}, nil)
	assert.Equal(suite.T(), http.StatusConflict, w.Code)
	assert.Equal(suite.T(), "session_mismatch", suite.errorCode(w))

	w = suite.request("POST", tokenPath, map[string]interface{}{"session_id": sessionID, "order_id": orderID}, nil)
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	issued := suite.data(w)
	accessToken := issued["access_token"].(string)
	assert.Equal(suite.T(), "Bearer", issued["token_type"])
	assert.Equal(suite.T(), float64(3600), issued["expires_in"])

	w = suite.request("POST", "/v1/token/introspect", map[string]interface{}{"token": accessToken}, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	introspection := suite.data(w)
	assert.Equal(suite.T(), true, introspection["active"])
	assert.Equal(suite.T(), float64(id), introspection["claims"].(map[string]interface{})["license_id"])

	form := httptest.NewRequest("POST", "/v1/token/introspect", strings.NewReader("token=not-a-jwt"))
	form.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	fw := httptest.NewRecorder()
	suite.router.ServeHTTP(fw, form)
	assert.Equal(suite.T(), http.StatusOK, fw.Code)
	assert.Equal(suite.T(), false, suite.data(fw)["active"])

	w = suite.request("GET", target, nil, map[string]string{"Authorization": "Bearer " + accessToken})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	assert.Equal(suite.T(), true, suite.data(w)["allowed"])

	w = suite.admin("GET", "/v1/admin/orders?status=completed", nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Equal(suite.T(), "1", w.Header().Get("X-Total-Count"))

	w = suite.admin("GET", "/v1/admin/dashboard/stats", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	stats := suite.data(w)["stats"].(map[string]interface{})
	assert.Equal(suite.T(), float64(1), stats["paid_orders"])
	assert.Equal(suite.T(), float64(1), stats["total_products"])
	assert.InDelta(suite.T(), 9.99, stats["total_revenue"], 0.001)
}

func (suite *RouterTestSuite) TestFreeLicenseSkipsPayment() {
	id := suite.createLicense(map[string]interface{}{
		"name":        "Open data",
		"content_url": "/open/*",
	})

	w := suite.request("POST", fmt.Sprintf("/v1/licenses/%d/checkout", id), nil, nil)
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	checkout := suite.data(w)
	assert.Equal(suite.T(), false, checkout["payment_required"])

	w = suite.request("POST", fmt.Sprintf("/v1/licenses/%d/token", id), map[string]interface{}{"session_id": checkout["session_id"]}, nil)
	assert.Equal(suite.T(), http.StatusCreated, w.Code)

	w = suite.request("GET", "/v1/access?url=/open/file.csv", nil, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Equal(suite.T(), true, suite.data(w)["allowed"])
}

func (suite *RouterTestSuite) TestRequestValidation() {
	id := suite.reportLicense()

	w := suite.request("POST", fmt.Sprintf("/v1/licenses/%d/token", id), map[string]interface{}{"order_id": "x"}, nil)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	assert.Equal(suite.T(), "validation_error", suite.errorCode(w))

	w = suite.request("POST", fmt.Sprintf("/v1/licenses/%d/checkout", id), map[string]interface{}{"return_url": "not a url"}, nil)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	assert.Equal(suite.T(), "validation_error", suite.errorCode(w))

	w = suite.request("POST", "/v1/token/introspect", map[string]interface{}{}, nil)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)

	w = suite.request("POST", "/v1/token/introspect", map[string]interface{}{"token": ""}, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Equal(suite.T(), false, suite.data(w)["active"])
	assert.Equal(suite.T(), "malformed", suite.data(w)["reason"])

	garbled := httptest.NewRequest("POST", "/v1/token/introspect", strings.NewReader(`{"token":`))
	garbled.Header.Set("Content-Type", "application/json")
	gw := httptest.NewRecorder()
	suite.router.ServeHTTP(gw, garbled)
	assert.Equal(suite.T(), http.StatusOK, gw.Code)
	assert.Equal(suite.T(), false, suite.data(gw)["active"])
	assert.Equal(suite.T(), "malformed", suite.data(gw)["reason"])

	w = suite.request("GET", "/v1/access", nil, nil)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)

	w = suite.admin("POST", "/v1/admin/orders", map[string]interface{}{"license_id": id})
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	assert.Equal(suite.T(), "validation_error", suite.errorCode(w))

	w = suite.admin("PUT", "/v1/admin/orders/ord_unknown/paid", nil)
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
}

func (suite *RouterTestSuite) TestProcessorAdmin() {
	w := suite.admin("GET", "/v1/admin/processors", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var listed struct {
		Data []services.ProcessorInfo `json:"data"`
	}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &listed))
	suite.Require().Len(listed.Data, 1)
	assert.Equal(suite.T(), payment.CommerceProcessorID, listed.Data[0].ID)
	assert.True(suite.T(), listed.Data[0].Configurable)

	w = suite.admin("PUT", "/v1/admin/processors/commerce/config", map[string]string{"product_visibility": "loud"})
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	assert.Equal(suite.T(), "invalid_config", suite.errorCode(w))

	w = suite.admin("PUT", "/v1/admin/processors/commerce/config", map[string]string{"product_visibility": "catalog"})
	assert.Equal(suite.T(), http.StatusOK, w.Code)

	w = suite.admin("PUT", "/v1/admin/processors/paypal/config", map[string]string{})
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
	assert.Equal(suite.T(), "processor_not_found", suite.errorCode(w))
}

func (suite *RouterTestSuite) TestAuditTrail() {
	suite.reportLicense()

	var total float64
	assert.Eventually(suite.T(), func() bool {
		w := suite.admin("GET", "/v1/admin/audit-logs?resource_type=licenses", nil)
		if w.Code != http.StatusOK {
			return false
		}
		meta := suite.decode(w)["meta"].(map[string]interface{})
		total = meta["pagination"].(map[string]interface{})["total"].(float64)
		return total >= 1
	}, 2*time.Second, 20*time.Millisecond)
	assert.GreaterOrEqual(suite.T(), total, float64(1))
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}

func TestPing(t *testing.T) {
	db, err := database.OpenInMemory()
	if !assert.NoError(t, err) {
		return
	}
	assert.NoError(t, database.Ping(context.Background(), db))
}
