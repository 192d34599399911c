package storage

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// StoredObject is a stable reference to a re-hosted object
type StoredObject struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}

// ObjectStoreInterface abstracts the platform object store consumed by the
// asset importer and the job backup flow (mockable in tests)
type ObjectStoreInterface interface {
	ImportFromURL(ctx context.Context, tenantID, sourceURL string) (*StoredObject, error)
	Delete(ctx context.Context, publicID string) error
	StoreBackup(ctx context.Context, tenantID string, jobID uuid.UUID, localPath, fileName string) (*StoredObject, error)
}

// S3ObjectStore re-hosts externally supplied assets into an S3 bucket
type S3ObjectStore struct {
	client     *s3.Client
	uploader   *manager.Uploader
	httpClient *http.Client
	bucket     string
	region     string
	logger     *logrus.Entry
}

var _ ObjectStoreInterface = (*S3ObjectStore)(nil)

// NewS3ObjectStore creates an S3-backed object store. fetchTimeout bounds
// each remote image fetch so a hanging host cannot stall a batch.
func NewS3ObjectStore(ctx context.Context, bucket, region string, fetchTimeout time.Duration, logger *logrus.Logger) (*S3ObjectStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &S3ObjectStore{
		client:     client,
		uploader:   manager.NewUploader(client),
		httpClient: &http.Client{Timeout: fetchTimeout},
		bucket:     bucket,
		region:     region,
		logger:     logger.WithField("component", "object_store"),
	}, nil
}

// ImportFromURL fetches an externally hosted image and stores a
// platform-owned copy, returning its stable URL and public id
func (s *S3ObjectStore) ImportFromURL(ctx context.Context, tenantID, sourceURL string) (*StoredObject, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid source URL: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", sourceURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, sourceURL)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("unsupported content type %q for %s", contentType, sourceURL)
	}

	key := fmt.Sprintf("tenants/%s/catalog/%s%s", tenantID, uuid.New().String(), extensionFor(contentType))
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        resp.Body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store object: %w", err)
	}

	return &StoredObject{URL: s.objectURL(key), PublicID: key}, nil
}

// Delete removes a stored object by its public id
func (s *S3ObjectStore) Delete(ctx context.Context, publicID string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(publicID),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", publicID, err)
	}
	return nil
}

// StoreBackup keeps a durable copy of the uploaded spreadsheet so the
// source artifact survives the temp-file cleanup at the end of a run
func (s *S3ObjectStore) StoreBackup(ctx context.Context, tenantID string, jobID uuid.UUID, localPath, fileName string) (*StoredObject, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open upload for backup: %w", err)
	}
	defer f.Close()

	key := fmt.Sprintf("tenants/%s/imports/%s/%s", tenantID, jobID.String(), filepath.Base(fileName))
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store backup: %w", err)
	}

	return &StoredObject{URL: s.objectURL(key), PublicID: key}, nil
}

func (s *S3ObjectStore) objectURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

func extensionFor(contentType string) string {
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
