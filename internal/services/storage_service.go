// internal/services/storage_service.go
package services

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/provenly/ipvault-backend/internal/config"
)

// StorageService keeps a durable copy of every uploaded asset in S3.
// IPFS pinning is the canonical content address; S3 backs the gateway
// URL and thumbnail delivery.
type StorageService struct {
	s3Client *s3.S3
	config   *config.Config
}

type UploadResult struct {
	URL      string `json:"url"`
	Key      string `json:"key"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

func NewStorageService(cfg *config.Config) (*StorageService, error) {
	if cfg.AWS.AccessKeyID == "" {
		// Local development runs without S3; URLs fall back to the
		// server's own upload path.
		return &StorageService{config: cfg}, nil
	}

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

	return &StorageService{
		s3Client: s3.New(sess),
		config:   cfg,
	}, nil
}

// StoreAsset writes the raw asset bytes under assets/ and returns the
// public URL for it.
func (s *StorageService) StoreAsset(data []byte, filename, contentType string) (*UploadResult, error) {
	key := s.objectKey("assets", filename)
	return s.put(data, key, contentType)
}

// StoreThumbnail writes a derived preview image under thumbnails/.
// Previews are always re-encoded as PNG regardless of the source format.
func (s *StorageService) StoreThumbnail(data []byte, filename string) (*UploadResult, error) {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	key := s.objectKey("thumbnails", base+".png")
	return s.put(data, key, "image/png")
}

func (s *StorageService) put(data []byte, key, contentType string) (*UploadResult, error) {
	if s.s3Client == nil {
		return &UploadResult{
			URL:      fmt.Sprintf("http://localhost:%s/uploads/%s", s.config.Server.Port, key),
			Key:      key,
			Size:     int64(len(data)),
			MimeType: contentType,
		}, nil
	}

	params := &s3.PutObjectInput{
		Bucket:        aws.String(s.config.AWS.S3Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
		ACL:           aws.String("public-read"),
	}

	if _, err := s.s3Client.PutObject(params); err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	return &UploadResult{
		URL:      s.objectURL(key),
		Key:      key,
		Size:     int64(len(data)),
		MimeType: contentType,
	}, nil
}

func (s *StorageService) DeleteObject(key string) error {
	if s.s3Client == nil {
		logrus.WithField("key", key).Debug("Skipping delete, S3 not configured")
		return nil
	}

	_, err := s.s3Client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s.config.AWS.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from S3: %w", err)
	}

	return nil
}

// GeneratePresignedURL produces a time-limited download link for
// private objects.
func (s *StorageService) GeneratePresignedURL(key string, expiration time.Duration) (string, error) {
	if s.s3Client == nil {
		return "", fmt.Errorf("S3 client not configured")
	}

	req, _ := s.s3Client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.config.AWS.S3Bucket),
		Key:    aws.String(key),
	})

	url, err := req.Presign(expiration)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return url, nil
}

func (s *StorageService) objectKey(folder, originalName string) string {
	ext := filepath.Ext(originalName)
	timestamp := time.Now().Format("20060102")
	return fmt.Sprintf("%s/%s_%s%s", folder, timestamp, uuid.New().String()[:8], ext)
}

func (s *StorageService) objectURL(key string) string {
	if s.config.AWS.CloudFrontURL != "" {
		return fmt.Sprintf("%s/%s", s.config.AWS.CloudFrontURL, key)
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s",
		s.config.AWS.S3Bucket, s.config.AWS.Region, key)
}
