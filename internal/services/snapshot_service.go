package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"showtime-scraper/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
)

// ErrSnapshotNotFound is returned when a presign is requested for a missing object.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotService archives rendered listing pages in an S3 compatible bucket.
type SnapshotService struct {
	client *minio.Client
	bucket string
	region string
	logger *logrus.Logger
}

func NewSnapshotService(cfg *config.MinIOConfig, logger *logrus.Logger) (*SnapshotService, error) {
	endpoint := cfg.Endpoint
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")

	minioClient, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"endpoint": endpoint,
		"bucket":   cfg.BucketName,
		"useSSL":   cfg.UseSSL,
	}).Info("Snapshot store initialized")

	service := &SnapshotService{
		client: minioClient,
		bucket: cfg.BucketName,
		region: cfg.Region,
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := service.ensureBucket(ctx); err != nil {
		logger.WithError(err).Warn("Failed to prepare snapshot bucket, but continuing...")
	}

	return service, nil
}

// Snapshots stay private; they are shared through presigned URLs only.
func (s *SnapshotService) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	s.logger.WithField("bucket", s.bucket).Info("Bucket created successfully")
	return nil
}

// PutSnapshot stores one rendered page under key.
func (s *SnapshotService) PutSnapshot(ctx context.Context, key string, body []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(body), int64(len(body)),
		minio.PutObjectOptions{ContentType: "text/html; charset=utf-8"})
	if err != nil {
		return fmt.Errorf("failed to store snapshot %s: %w", key, err)
	}
	s.logger.WithFields(logrus.Fields{
		"key":  key,
		"size": len(body),
	}).Debug("Snapshot stored")
	return nil
}

// PresignGet returns a time limited download URL for an archived page.
func (s *SnapshotService) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return "", ErrSnapshotNotFound
		}
		return "", fmt.Errorf("failed to stat snapshot: %w", err)
	}

	params := url.Values{}
	params.Set("response-content-type", "text/html; charset=utf-8")
	presignedURL, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, params)
	if err != nil {
		s.logger.WithError(err).Error("Failed to generate presigned URL")
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"key":    key,
		"expiry": expiry,
	}).Info("Generated presigned snapshot URL")
	return presignedURL.String(), nil
}
