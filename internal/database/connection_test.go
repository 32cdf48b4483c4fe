package database

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/javajoker/licensegate/internal/config"
	"github.com/javajoker/licensegate/internal/models"
)

func TestOpenInMemory_Migrates(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer Close(db)

	for _, table := range []string{"licenses", "commerce_products", "commerce_orders", "settings", "audit_logs"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}

func TestOpenInMemory_IsolatedDatabases(t *testing.T) {
	a, err := OpenInMemory()
	require.NoError(t, err)
	b, err := OpenInMemory()
	require.NoError(t, err)

	require.NoError(t, a.Create(&models.Setting{Key: "k", Value: "v"}).Error)

	var count int64
	require.NoError(t, b.Model(&models.Setting{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestUniqueLicenseTagIsTranslated(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)

	first := models.Product{ID: "p1", LicenseTag: models.LicenseTag(1), LicenseID: 1, Name: "a", Currency: models.CurrencyUSD}
	second := models.Product{ID: "p2", LicenseTag: models.LicenseTag(1), LicenseID: 1, Name: "b", Currency: models.CurrencyUSD}
	require.NoError(t, db.Create(&first).Error)

	err = db.Create(&second).Error
	assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey), err)
}

func TestWithTransaction_RollsBack(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)

	boom := errors.New("boom")
	err = WithTransaction(db, func(tx *gorm.DB) error {
		if err := tx.Create(&models.Setting{Key: "k", Value: "v"}).Error; err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, db.Model(&models.Setting{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestInitialize_UnknownDriver(t *testing.T) {
	_, err := Initialize(config.DatabaseConfig{Driver: "mysql"})
	assert.Error(t, err)
}
