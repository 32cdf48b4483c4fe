// internal/services/secret_service.go
package services

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/licensegate/internal/models"
	"github.com/javajoker/licensegate/internal/utils"
)

const (
	SigningSecretKey   = "token.signing_secret"
	signingSecretBytes = 32
)

// SecretService owns the HMAC secret shared by payment proofs and access
// tokens. The secret is created once and never rotated implicitly.
type SecretService struct {
	db       *gorm.DB
	override string

	mu     sync.Mutex
	secret []byte
}

func NewSecretService(db *gorm.DB, override string) *SecretService {
	return &SecretService{db: db, override: override}
}

// SigningSecret returns the configured override, or the secret stored in the
// settings table, creating it on first use.
func (s *SecretService) SigningSecret(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.secret != nil {
		return s.secret, nil
	}
	if s.override != "" {
		s.secret = []byte(s.override)
		return s.secret, nil
	}

	value, err := s.load(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		value, err = s.create(ctx)
	}
	if err != nil {
		return nil, err
	}

	secret, err := hex.DecodeString(value)
	if err != nil || len(secret) == 0 {
		return nil, fmt.Errorf("stored signing secret is corrupt")
	}
	s.secret = secret
	return s.secret, nil
}

func (s *SecretService) load(ctx context.Context) (string, error) {
	var setting models.Setting
	if err := s.db.WithContext(ctx).Where("key = ?", SigningSecretKey).First(&setting).Error; err != nil {
		return "", err
	}
	return setting.Value, nil
}

// create inserts a fresh secret unless another process got there first, then
// re-reads so every process ends up with the stored value.
func (s *SecretService) create(ctx context.Context) (string, error) {
	value, err := utils.GenerateSecretHex(signingSecretBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate signing secret: %w", err)
	}

	setting := models.Setting{
		Key:         SigningSecretKey,
		Value:       value,
		Description: "HMAC secret for payment proofs and access tokens",
	}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&setting)
	if result.Error != nil {
		return "", fmt.Errorf("failed to store signing secret: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		logrus.Info("Generated new token signing secret")
	}

	stored, err := s.load(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to reload signing secret: %w", err)
	}
	return stored, nil
}
