// internal/services/processor_service.go
package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/licensegate/internal/apperr"
	"github.com/javajoker/licensegate/internal/database"
	"github.com/javajoker/licensegate/internal/models"
	"github.com/javajoker/licensegate/internal/payment"
)

const processorSettingPrefix = "processor."

type ProcessorService struct {
	db       *gorm.DB
	registry *payment.Registry
}

// ProcessorInfo describes a registered processor for administrators.
type ProcessorInfo struct {
	ID             string                `json:"id"`
	Name           string                `json:"name"`
	Available      bool                  `json:"available"`
	PaymentTypes   []models.PaymentType  `json:"payment_types"`
	Configurable   bool                  `json:"configurable"`
	ConfigFields   []payment.ConfigField `json:"config_fields"`
	StoredSettings map[string]string     `json:"settings,omitempty"`
}

func NewProcessorService(db *gorm.DB, registry *payment.Registry) *ProcessorService {
	return &ProcessorService{db: db, registry: registry}
}

func (s *ProcessorService) List(ctx context.Context) ([]ProcessorInfo, error) {
	processors := s.registry.All()
	infos := make([]ProcessorInfo, 0, len(processors))
	for _, p := range processors {
		stored, err := s.storedConfig(ctx, p.ID())
		if err != nil {
			return nil, err
		}
		_, configurable := p.(payment.Configurable)
		infos = append(infos, ProcessorInfo{
			ID:             p.ID(),
			Name:           p.Name(),
			Available:      p.IsAvailable(),
			PaymentTypes:   p.SupportedPaymentTypes(),
			Configurable:   configurable,
			ConfigFields:   p.ConfigFields(),
			StoredSettings: stored,
		})
	}
	return infos, nil
}

// UpdateConfig validates cfg, persists it and applies it to the running
// processor. Nothing is stored when validation fails.
func (s *ProcessorService) UpdateConfig(ctx context.Context, id string, cfg map[string]string) error {
	p, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	configurable, ok := p.(payment.Configurable)
	if !ok {
		return apperr.Newf(apperr.CodeInvalidConfig, "processor %q has no runtime configuration", id)
	}
	if err := p.ValidateConfig(cfg); err != nil {
		return err
	}

	err = database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		for key, value := range cfg {
			setting := models.Setting{
				Key:         settingKey(id, key),
				Value:       value,
				Description: fmt.Sprintf("%s processor setting", id),
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
			}).Create(&setting).Error
			if err != nil {
				return fmt.Errorf("failed to store setting %s: %w", setting.Key, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := configurable.Configure(cfg); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"processor": id,
		"keys":      sortedKeys(cfg),
	}).Info("Processor configuration updated")
	return nil
}

// LoadPersistedConfig applies stored settings to every configurable
// processor. Invalid stored values are logged and skipped.
func (s *ProcessorService) LoadPersistedConfig(ctx context.Context) error {
	for _, p := range s.registry.All() {
		configurable, ok := p.(payment.Configurable)
		if !ok {
			continue
		}

		stored, err := s.storedConfig(ctx, p.ID())
		if err != nil {
			return err
		}
		if len(stored) == 0 {
			continue
		}

		if err := configurable.Configure(stored); err != nil {
			logrus.WithError(err).WithField("processor", p.ID()).Warn("Ignoring invalid stored processor configuration")
			continue
		}
		logrus.WithField("processor", p.ID()).Debug("Applied stored processor configuration")
	}
	return nil
}

func (s *ProcessorService) storedConfig(ctx context.Context, id string) (map[string]string, error) {
	prefix := processorSettingPrefix + id + "."

	var settings []models.Setting
	if err := s.db.WithContext(ctx).Where("key LIKE ?", prefix+"%").Find(&settings).Error; err != nil {
		return nil, fmt.Errorf("failed to load processor settings: %w", err)
	}

	cfg := make(map[string]string, len(settings))
	for _, setting := range settings {
		if key := strings.TrimPrefix(setting.Key, prefix); key != setting.Key && key != "" {
			cfg[key] = setting.Value
		}
	}
	return cfg, nil
}

func settingKey(processorID, key string) string {
	return processorSettingPrefix + processorID + "." + key
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
