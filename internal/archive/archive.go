// Package archive writes expiring messages to S3-compatible storage
// before the retention job deletes them from Postgres.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/anonchat/backend/internal/models"
)

// Service uploads message batches as JSON objects. A nil client means
// archival is disabled and Put is a no-op.
type Service struct {
	client *minio.Client
	bucket string
}

// NewService creates the archive service. An empty endpoint disables it.
func NewService(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Service, error) {
	if endpoint == "" {
		log.Println("[Archive] No S3 endpoint configured, message archival disabled")
		return &Service{}, nil
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	s := &Service{client: client, bucket: bucket}
	if err := s.ensureBucket(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket: %w", err)
	}
	return s, nil
}

// Enabled reports whether archival is active.
func (s *Service) Enabled() bool {
	return s.client != nil
}

func (s *Service) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return err
		}
		log.Printf("[Archive] Created bucket: %s", s.bucket)
	}
	return nil
}

// Put uploads a batch of messages as one JSON object keyed by the upload
// time. Returns the object key, or "" when archival is disabled.
func (s *Service) Put(ctx context.Context, messages []models.Message) (string, error) {
	if s.client == nil || len(messages) == 0 {
		return "", nil
	}

	payload, err := json.Marshal(messages)
	if err != nil {
		return "", fmt.Errorf("failed to marshal archive batch: %w", err)
	}

	key := fmt.Sprintf("messages/%s.json", time.Now().UTC().Format("2006-01-02T15-04-05"))
	_, err = s.client.PutObject(ctx, s.bucket, key,
		bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return "", fmt.Errorf("failed to upload archive batch: %w", err)
	}

	log.Printf("[Archive] Archived %d messages to %s", len(messages), key)
	return key, nil
}
