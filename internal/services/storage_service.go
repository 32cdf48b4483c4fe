// internal/services/storage_service.go
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/licensegate/internal/config"
)

// StorageService publishes documents to S3, or to a local directory when no
// AWS credentials are configured.
type StorageService struct {
	s3Client s3iface.S3API
	config   config.AWSConfig
	baseURL  string
}

type UploadResult struct {
	URL      string `json:"url"`
	Key      string `json:"key"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

func NewStorageService(cfg *config.Config) (*StorageService, error) {
	if cfg.AWS.AccessKeyID == "" || cfg.AWS.S3Bucket == "" {
		// Return service without S3 for local development
		return &StorageService{config: cfg.AWS, baseURL: cfg.Server.PublicURL}, nil
	}

	// Create AWS session
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.AWS.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AWS.AccessKeyID,
			cfg.AWS.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return NewStorageServiceWithClient(s3.New(sess), cfg), nil
}

func NewStorageServiceWithClient(client s3iface.S3API, cfg *config.Config) *StorageService {
	return &StorageService{
		s3Client: client,
		config:   cfg.AWS,
		baseURL:  cfg.Server.PublicURL,
	}
}

func (s *StorageService) UsesS3() bool {
	return s.s3Client != nil
}

func (s *StorageService) PutObject(ctx context.Context, key, contentType string, body []byte) (*UploadResult, error) {
	key, err := s.objectKey(key)
	if err != nil {
		return nil, err
	}

	if s.s3Client != nil {
		return s.uploadToS3(ctx, body, key, contentType)
	}
	return s.uploadToLocal(body, key, contentType)
}

func (s *StorageService) DeleteObject(ctx context.Context, key string) error {
	key, err := s.objectKey(key)
	if err != nil {
		return err
	}

	if s.s3Client == nil {
		err := os.Remove(filepath.Join(s.config.LocalPublishDir, filepath.FromSlash(key)))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to delete local file: %w", err)
		}
		return nil
	}

	_, err = s.s3Client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.config.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from S3: %w", err)
	}
	return nil
}

func (s *StorageService) uploadToS3(ctx context.Context, body []byte, key, contentType string) (*UploadResult, error) {
	params := &s3.PutObjectInput{
		Bucket:        aws.String(s.config.S3Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
		CacheControl:  aws.String("public, max-age=300"),
	}

	if _, err := s.s3Client.PutObjectWithContext(ctx, params); err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	return &UploadResult{
		URL:      s.getS3URL(key),
		Key:      key,
		Size:     int64(len(body)),
		MimeType: contentType,
	}, nil
}

func (s *StorageService) uploadToLocal(body []byte, key, contentType string) (*UploadResult, error) {
	path := filepath.Join(s.config.LocalPublishDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create publish directory: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write local file: %w", err)
	}

	logrus.WithField("path", path).Debug("Published document locally")

	return &UploadResult{
		URL:      strings.TrimSuffix(s.baseURL, "/") + "/published/" + key,
		Key:      key,
		Size:     int64(len(body)),
		MimeType: contentType,
	}, nil
}

// objectKey prefixes key and rejects keys that would escape the prefix.
func (s *StorageService) objectKey(key string) (string, error) {
	key = strings.TrimLeft(key, "/")
	if key == "" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return s.config.KeyPrefix + key, nil
}

func (s *StorageService) getS3URL(key string) string {
	if s.config.CloudFrontURL != "" {
		return fmt.Sprintf("%s/%s", strings.TrimSuffix(s.config.CloudFrontURL, "/"), key)
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s",
		s.config.S3Bucket, s.config.Region, key)
}
