// internal/services/license_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/licensegate/internal/apperr"
	"github.com/javajoker/licensegate/internal/models"
)

const RSLContentType = "application/rsl+xml"

// Publisher stores rendered license documents.
type Publisher interface {
	PutObject(ctx context.Context, key, contentType string, body []byte) (*UploadResult, error)
	DeleteObject(ctx context.Context, key string) error
}

type LicenseService struct {
	db        *gorm.DB
	publisher Publisher
	patterns  *patternCache
}

// LicenseInput is license data as submitted by an administrator, before
// sanitizing. Amount may be a JSON number or a numeric string.
type LicenseInput struct {
	Name           string      `json:"name"`
	Description    string      `json:"description"`
	ContentURL     string      `json:"content_url"`
	ServerURL      string      `json:"server_url"`
	StandardURL    string      `json:"standard_url"`
	PaymentType    string      `json:"payment_type"`
	Amount         interface{} `json:"amount"`
	Currency       string      `json:"currency"`
	PermitsUsage   []string    `json:"permits_usage"`
	PermitsUser    []string    `json:"permits_user"`
	PermitsGeo     []string    `json:"permits_geo"`
	ProhibitsUsage []string    `json:"prohibits_usage"`
	ProhibitsUser  []string    `json:"prohibits_user"`
	ProhibitsGeo   []string    `json:"prohibits_geo"`
	Active         *bool       `json:"active"`
}

// LicenseUpdate is a partial update; nil fields are left unchanged.
type LicenseUpdate struct {
	Name           *string     `json:"name"`
	Description    *string     `json:"description"`
	ContentURL     *string     `json:"content_url"`
	ServerURL      *string     `json:"server_url"`
	StandardURL    *string     `json:"standard_url"`
	PaymentType    *string     `json:"payment_type"`
	Amount         interface{} `json:"amount"`
	Currency       *string     `json:"currency"`
	PermitsUsage   *[]string   `json:"permits_usage"`
	PermitsUser    *[]string   `json:"permits_user"`
	PermitsGeo     *[]string   `json:"permits_geo"`
	ProhibitsUsage *[]string   `json:"prohibits_usage"`
	ProhibitsUser  *[]string   `json:"prohibits_user"`
	ProhibitsGeo   *[]string   `json:"prohibits_geo"`
	Active         *bool       `json:"active"`
}

type ListFilter struct {
	Active *bool
	Limit  int
	Offset int
}

type PublishResult struct {
	LicenseID uint          `json:"license_id"`
	Upload    *UploadResult `json:"upload"`
}

func NewLicenseService(db *gorm.DB, publisher Publisher) *LicenseService {
	return &LicenseService{
		db:        db,
		publisher: publisher,
		patterns:  newPatternCache(),
	}
}

// Create sanitizes, validates and stores a new license.
func (s *LicenseService) Create(ctx context.Context, input LicenseInput) (*models.License, error) {
	input = Sanitize(input)
	if err := Validate(input); err != nil {
		return nil, err
	}

	license := toLicense(input)
	if err := s.db.WithContext(ctx).Create(license).Error; err != nil {
		return nil, fmt.Errorf("failed to create license: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"license_id":   license.ID,
		"payment_type": license.PaymentType,
	}).Info("License created")
	return license, nil
}

func (s *LicenseService) Get(ctx context.Context, id uint) (*models.License, error) {
	var license models.License
	if err := s.db.WithContext(ctx).First(&license, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.CodeLicenseNotFound, "license %d not found", id)
		}
		return nil, fmt.Errorf("failed to get license: %w", err)
	}
	return &license, nil
}

// List returns licenses in insertion order along with the unpaginated total.
func (s *LicenseService) List(ctx context.Context, filter ListFilter) ([]models.License, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.License{})
	if filter.Active != nil {
		query = query.Where("active = ?", *filter.Active)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count licenses: %w", err)
	}

	query = query.Order("id ASC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit).Offset(filter.Offset)
	}

	var licenses []models.License
	if err := query.Find(&licenses).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list licenses: %w", err)
	}
	return licenses, total, nil
}

// Update merges the partial update into the stored license, then sanitizes
// and validates the merged record before saving it.
func (s *LicenseService) Update(ctx context.Context, id uint, update LicenseUpdate) (*models.License, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	merged := Sanitize(applyUpdate(fromLicense(existing), update))
	if err := Validate(merged); err != nil {
		return nil, err
	}

	license := toLicense(merged)
	license.ID = existing.ID
	license.CreatedAt = existing.CreatedAt
	if err := s.db.WithContext(ctx).Save(license).Error; err != nil {
		return nil, fmt.Errorf("failed to update license: %w", err)
	}

	logrus.WithField("license_id", id).Info("License updated")
	return license, nil
}

func (s *LicenseService) Delete(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&models.License{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete license: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.Newf(apperr.CodeLicenseNotFound, "license %d not found", id)
	}

	// A published document must not outlive its license.
	if s.publisher != nil {
		if err := s.publisher.DeleteObject(ctx, documentKey(id)); err != nil {
			logrus.WithError(err).WithField("license_id", id).Warn("Failed to retract published license document")
		}
	}

	logrus.WithField("license_id", id).Info("License deleted")
	return nil
}

// MatchByURL returns the first active license, in insertion order, whose
// content pattern covers rawURL. It returns nil when nothing matches.
func (s *LicenseService) MatchByURL(ctx context.Context, rawURL string) (*models.License, error) {
	var licenses []models.License
	if err := s.db.WithContext(ctx).Where("active = ?", true).Order("id ASC").Find(&licenses).Error; err != nil {
		return nil, fmt.Errorf("failed to load licenses: %w", err)
	}

	for i := range licenses {
		if s.patterns.matches(licenses[i].ContentURL, rawURL) {
			return &licenses[i], nil
		}
	}
	return nil, nil
}

// PublishXML renders the license document and stores it under <id>.xml.
func (s *LicenseService) PublishXML(ctx context.Context, id uint) (*PublishResult, error) {
	license, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.publisher == nil {
		return nil, errors.New("no document publisher configured")
	}

	doc := RenderXML(license)
	upload, err := s.publisher.PutObject(ctx, documentKey(id), RSLContentType, []byte(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to publish license document: %w", err)
	}

	logrus.WithFields(logrus.Fields{"license_id": id, "url": upload.URL}).Info("License document published")
	return &PublishResult{LicenseID: id, Upload: upload}, nil
}

func documentKey(id uint) string {
	return strconv.FormatUint(uint64(id), 10) + ".xml"
}

func toLicense(in LicenseInput) *models.License {
	pt, _ := models.ParsePaymentType(in.PaymentType)
	currency, _ := models.ParseCurrency(in.Currency)
	active := true
	if in.Active != nil {
		active = *in.Active
	}

	return &models.License{
		Name:           in.Name,
		Description:    in.Description,
		ContentURL:     in.ContentURL,
		ServerURL:      in.ServerURL,
		StandardURL:    in.StandardURL,
		PaymentType:    pt,
		Amount:         amountOf(in.Amount),
		Currency:       currency,
		PermitsUsage:   models.StringList(in.PermitsUsage),
		PermitsUser:    models.StringList(in.PermitsUser),
		PermitsGeo:     models.StringList(in.PermitsGeo),
		ProhibitsUsage: models.StringList(in.ProhibitsUsage),
		ProhibitsUser:  models.StringList(in.ProhibitsUser),
		ProhibitsGeo:   models.StringList(in.ProhibitsGeo),
		Active:         active,
	}
}

func fromLicense(l *models.License) LicenseInput {
	active := l.Active
	return LicenseInput{
		Name:           l.Name,
		Description:    l.Description,
		ContentURL:     l.ContentURL,
		ServerURL:      l.ServerURL,
		StandardURL:    l.StandardURL,
		PaymentType:    string(l.PaymentType),
		Amount:         l.Amount,
		Currency:       string(l.Currency),
		PermitsUsage:   l.PermitsUsage,
		PermitsUser:    l.PermitsUser,
		PermitsGeo:     l.PermitsGeo,
		ProhibitsUsage: l.ProhibitsUsage,
		ProhibitsUser:  l.ProhibitsUser,
		ProhibitsGeo:   l.ProhibitsGeo,
		Active:         &active,
	}
}

func applyUpdate(in LicenseInput, u LicenseUpdate) LicenseInput {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setList := func(dst *[]string, src *[]string) {
		if src != nil {
			*dst = *src
		}
	}

	setString(&in.Name, u.Name)
	setString(&in.Description, u.Description)
	setString(&in.ContentURL, u.ContentURL)
	setString(&in.ServerURL, u.ServerURL)
	setString(&in.StandardURL, u.StandardURL)
	setString(&in.PaymentType, u.PaymentType)
	setString(&in.Currency, u.Currency)
	setList(&in.PermitsUsage, u.PermitsUsage)
	setList(&in.PermitsUser, u.PermitsUser)
	setList(&in.PermitsGeo, u.PermitsGeo)
	setList(&in.ProhibitsUsage, u.ProhibitsUsage)
	setList(&in.ProhibitsUser, u.ProhibitsUser)
	setList(&in.ProhibitsGeo, u.ProhibitsGeo)
	if u.Amount != nil {
		in.Amount = u.Amount
	}
	if u.Active != nil {
		in.Active = u.Active
	}
	return in
}
