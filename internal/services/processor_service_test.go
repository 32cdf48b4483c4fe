package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/licensegate/internal/apperr"
	"github.com/javajoker/licensegate/internal/commerce"
	"github.com/javajoker/licensegate/internal/database"
	"github.com/javajoker/licensegate/internal/models"
	"github.com/javajoker/licensegate/internal/payment"
	"github.com/javajoker/licensegate/internal/token"
)

func TestProcessorServiceConfig(t *testing.T) {
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	ctx := context.Background()

	signer := token.NewService([]byte(testSecret), "https://rights.example.com")
	store := commerce.NewGormStore(db, false)
	proc := payment.NewCommerceProcessor(store, signer, "https://shop.example.com/checkout")
	service := NewProcessorService(db, payment.NewRegistry(proc))

	err = service.UpdateConfig(ctx, payment.CommerceProcessorID, map[string]string{"product_visibility": "everywhere"})
	assert.True(t, errors.Is(err, apperr.ErrInvalidConfig))

	infos, err := service.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Empty(t, infos[0].StoredSettings)
	assert.True(t, infos[0].Available)
	assert.True(t, infos[0].Configurable)

	require.NoError(t, service.UpdateConfig(ctx, payment.CommerceProcessorID, map[string]string{"product_visibility": "catalog"}))

	license := &models.License{Name: "Report", PaymentType: models.PaymentTypePurchase, Amount: 9.99, Currency: models.CurrencyUSD}
	license.ID = 1
	session, err := proc.CreateCheckoutSession(ctx, license, "c", "s", payment.CheckoutOptions{})
	require.NoError(t, err)
	assert.Equal(t, "catalog", session.ProcessorData["visibility"])

	infos, err = service.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"product_visibility": "catalog"}, infos[0].StoredSettings)

	// Updating again overwrites the stored row.
	require.NoError(t, service.UpdateConfig(ctx, payment.CommerceProcessorID, map[string]string{"product_visibility": "search"}))
	var count int64
	require.NoError(t, db.Model(&models.Setting{}).Where("key = ?", "processor.commerce.product_visibility").Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// A fresh process picks up the stored value.
	restarted := payment.NewCommerceProcessor(store, signer, "https://shop.example.com/checkout")
	require.NoError(t, NewProcessorService(db, payment.NewRegistry(restarted)).LoadPersistedConfig(ctx))
	other := &models.License{Name: "Dataset", PaymentType: models.PaymentTypeTraining, Amount: 50, Currency: models.CurrencyUSD}
	other.ID = 2
	session, err = restarted.CreateCheckoutSession(ctx, other, "c", "s", payment.CheckoutOptions{})
	require.NoError(t, err)
	assert.Equal(t, "search", session.ProcessorData["visibility"])

	err = service.UpdateConfig(ctx, "paypal", map[string]string{"x": "y"})
	assert.True(t, errors.Is(err, apperr.ErrProcessorNotFound))
}

func TestLoadPersistedConfigSkipsInvalidValues(t *testing.T) {
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.Setting{Key: "processor.commerce.product_visibility", Value: "nowhere"}).Error)

	proc := payment.NewCommerceProcessor(commerce.NewGormStore(db, false), token.NewService([]byte(testSecret), "iss"), "https://shop.example.com/checkout")
	require.NoError(t, NewProcessorService(db, payment.NewRegistry(proc)).LoadPersistedConfig(context.Background()))

	license := &models.License{Name: "Report", PaymentType: models.PaymentTypePurchase, Amount: 1, Currency: models.CurrencyUSD}
	license.ID = 3
	session, err := proc.CreateCheckoutSession(context.Background(), license, "c", "s", payment.CheckoutOptions{})
	require.NoError(t, err)
	assert.Equal(t, "hidden", session.ProcessorData["visibility"])
}
