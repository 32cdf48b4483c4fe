package commerce

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/javajoker/licensegate/internal/apperr"
	"github.com/javajoker/licensegate/internal/database"
	"github.com/javajoker/licensegate/internal/models"
	"github.com/javajoker/licensegate/internal/payment"
	"github.com/javajoker/licensegate/internal/token"
)

type StoreTestSuite struct {
	suite.Suite
	store *GormStore
	now   time.Time
	ctx   context.Context
}

func (s *StoreTestSuite) SetupTest() {
	db, err := database.OpenInMemory()
	s.Require().NoError(err)

	s.now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.store = NewGormStore(db, false).WithClock(func() time.Time { return s.now })
	s.ctx = context.Background()
}

func (s *StoreTestSuite) TestProductLifecycle() {
	_, err := s.store.FindProductByLicense(s.ctx, 3)
	s.True(errors.Is(err, payment.ErrProductNotFound))

	p := &payment.Product{LicenseID: 3, Name: "Report", Price: 9.99, Currency: models.CurrencyUSD, Visibility: models.ProductVisibilityHidden}
	s.Require().NoError(s.store.CreateProduct(s.ctx, p))
	s.NotEmpty(p.ID)

	found, err := s.store.FindProductByLicense(s.ctx, 3)
	s.Require().NoError(err)
	s.Equal(p.ID, found.ID)
	s.Equal(9.99, found.Price)

	dup := &payment.Product{LicenseID: 3, Name: "Report", Price: 9.99, Currency: models.CurrencyUSD}
	err = s.store.CreateProduct(s.ctx, dup)
	s.True(errors.Is(err, payment.ErrDuplicateProduct), err)

	found.Price = 12.5
	found.Recurring = true
	found.Interval = "month"
	s.Require().NoError(s.store.UpdateProduct(s.ctx, found))
	again, err := s.store.FindProductByLicense(s.ctx, 3)
	s.Require().NoError(err)
	s.Equal(12.5, again.Price)
	s.True(again.Recurring)
	s.Equal("month", again.Interval)
}

func (s *StoreTestSuite) TestOrderIntake() {
	p := &payment.Product{LicenseID: 7, Name: "Report", Price: 9.99, Currency: models.CurrencyUSD}
	s.Require().NoError(s.store.CreateProduct(s.ctx, p))

	order, err := s.store.CreateOrder(s.ctx, &OrderInput{ProductID: p.ID, SessionID: "sess", ClientID: "client-1"})
	s.Require().NoError(err)
	s.Equal(9.99, order.Total)
	s.Equal(models.CurrencyUSD, order.Currency)
	s.Equal(models.OrderStatusPending, order.Status)

	got, err := s.store.GetOrder(s.ctx, order.ID)
	s.Require().NoError(err)
	s.False(got.Paid)
	s.Equal("sess", got.Metadata[payment.MetaSessionID])
	s.Equal("7", got.Metadata[payment.MetaLicenseID])
	s.Equal("client-1", got.Metadata[payment.MetaClientID])
	s.True(got.CreatedAt.Equal(s.now))

	paid, err := s.store.MarkOrderPaid(s.ctx, order.ID)
	s.Require().NoError(err)
	s.Equal(models.OrderStatusCompleted, paid.Status)
	s.Require().NotNil(paid.PaidAt)

	got, err = s.store.GetOrder(s.ctx, order.ID)
	s.Require().NoError(err)
	s.True(got.Paid)

	_, err = s.store.GetOrder(s.ctx, "ord_missing")
	s.True(errors.Is(err, payment.ErrOrderNotFound))
	_, err = s.store.MarkOrderPaid(s.ctx, "ord_missing")
	s.True(errors.Is(err, payment.ErrOrderNotFound))
}

func (s *StoreTestSuite) TestCreateOrderRequiresLicense() {
	_, err := s.store.CreateOrder(s.ctx, &OrderInput{SessionID: "sess"})
	s.True(errors.Is(err, apperr.ErrMissingField))

	_, err = s.store.CreateOrder(s.ctx, &OrderInput{ProductID: "prod_missing", SessionID: "sess"})
	s.True(errors.Is(err, apperr.ErrMissingField))

	order, err := s.store.CreateOrder(s.ctx, &OrderInput{ID: "ord_ext_1", LicenseID: 4, SessionID: "sess", Total: 5, Currency: models.CurrencyEUR, Paid: true})
	s.Require().NoError(err)
	s.Equal("ord_ext_1", order.ID)
	s.True(order.IsPaid())
}

func (s *StoreTestSuite) TestCommerceProcessorEndToEnd() {
	signer := token.NewService([]byte("0123456789abcdef0123456789abcdef"), "https://example.com")
	proc := payment.NewCommerceProcessor(s.store, signer, "https://shop.example.com/checkout").
		WithClock(func() time.Time { return s.now })

	license := &models.License{Name: "Report", PaymentType: models.PaymentTypePurchase, Amount: 9.99, Currency: models.CurrencyUSD}
	license.ID = 7

	session, err := proc.CreateCheckoutSession(s.ctx, license, "client-1", "sess", payment.CheckoutOptions{})
	s.Require().NoError(err)
	productID := session.ProcessorData["product_id"]

	order, err := s.store.CreateOrder(s.ctx, &OrderInput{ProductID: productID, SessionID: "sess", Paid: true})
	s.Require().NoError(err)

	s.Require().NoError(proc.ValidatePaymentProof(s.ctx, license, "sess", payment.ProofData{OrderID: order.ID}))

	s.now = s.now.Add(25 * time.Hour)
	err = proc.ValidatePaymentProof(s.ctx, license, "sess", payment.ProofData{OrderID: order.ID})
	s.True(errors.Is(err, apperr.ErrOrderExpired))
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func TestConcurrentProductCreationConverges(t *testing.T) {
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	store := NewGormStore(db, false)
	proc := payment.NewCommerceProcessor(store, token.NewService([]byte("0123456789abcdef0123456789abcdef"), "iss"), "https://shop.example.com/checkout")

	license := &models.License{Name: "Dataset", PaymentType: models.PaymentTypeTraining, Amount: 100, Currency: models.CurrencyUSD}
	license.ID = 11

	const n = 10
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := proc.CreateCheckoutSession(context.Background(), license, "c", "s", payment.CheckoutOptions{})
			if assert.NoError(t, err) {
				ids[i] = s.ProcessorData["product_id"]
			}
		}(i)
	}
	wg.Wait()

	var count int64
	require.NoError(t, db.Model(&models.Product{}).Where("license_id = ?", 11).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}
