package services

import (
	"context"
	"fmt"
	"idea-research/internal/config"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// StorageInterface defines the interface for report storage.
// This allows switching between S3 and local storage implementations
type StorageInterface interface {
	// UploadReport stores a rendered report and returns its storage key
	UploadReport(ctx context.Context, sessionID, strategyID string, reader io.Reader, contentType string) (string, error)

	// GetFileURL returns the full URL for a given key
	GetFileURL(key string) string

	// GetObject retrieves an object from storage
	GetObject(ctx context.Context, key string) (io.ReadCloser, string, error)
}

// ReportKey generates the storage key for a strategy report: <session>/<strategy>.pdf
func ReportKey(sessionID, strategyID string) string {
	return fmt.Sprintf("reports/%s/%s.pdf", sessionID, strategyID)
}

// NewStorage picks S3 when a bucket is configured and local storage otherwise
func NewStorage(s3Cfg config.S3Config, localCfg config.StorageConfig) (StorageInterface, error) {
	if s3Cfg.Enabled() {
		return NewS3Storage(s3Cfg)
	}
	return NewLocalStorage(localCfg.BasePath, localCfg.BaseURL)
}

// LocalStorage stores reports on the local filesystem
type LocalStorage struct {
	basePath string
	baseURL  string // Base URL for serving files (e.g., http://localhost:8085/storage)
}

// NewLocalStorage creates a new local storage service
func NewLocalStorage(basePath, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// BasePath returns the directory reports are written to
func (s *LocalStorage) BasePath() string {
	return s.basePath
}

// UploadReport writes a report to local storage
func (s *LocalStorage) UploadReport(ctx context.Context, sessionID, strategyID string, reader io.Reader, contentType string) (string, error) {
	key := ReportKey(sessionID, strategyID)
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return key, nil
}

// GetFileURL returns the full URL for a given key
func (s *LocalStorage) GetFileURL(key string) string {
	return fmt.Sprintf("%s/%s", s.baseURL, key)
}

// GetObject retrieves an object from local storage
func (s *LocalStorage) GetObject(ctx context.Context, key string) (io.ReadCloser, string, error) {
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))
	if !strings.HasPrefix(filepath.Clean(fullPath), filepath.Clean(s.basePath)) {
		return nil, "", fmt.Errorf("invalid key: %s", key)
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("file not found: %s", key)
		}
		return nil, "", fmt.Errorf("failed to open file: %w", err)
	}

	contentType := "application/octet-stream"
	if filepath.Ext(key) == ".pdf" {
		contentType = "application/pdf"
	}
	return file, contentType, nil
}

// S3Storage stores reports in S3 or an S3-compatible service
type S3Storage struct {
	client   *s3.Client
	bucket   string
	region   string
	endpoint string // Custom endpoint for MinIO/S3-compatible services
}

// NewS3Storage creates a new S3 storage service
func NewS3Storage(cfg config.S3Config) (*S3Storage, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // Required for MinIO
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	return &S3Storage{
		client:   client,
		bucket:   cfg.Bucket,
		region:   cfg.Region,
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
	}, nil
}

// UploadReport uploads a report to S3 and returns its key
func (s *S3Storage) UploadReport(ctx context.Context, sessionID, strategyID string, reader io.Reader, contentType string) (string, error) {
	key := ReportKey(sessionID, strategyID)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        reader,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	return key, nil
}

// GetFileURL returns the full HTTPS URL for a given key
func (s *S3Storage) GetFileURL(key string) string {
	if s.endpoint != "" {
		// Format: <endpoint>/<bucket>/<key>
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key)
	}
	// Format: https://<bucket>.s3.<region>.amazonaws.com/<key>
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

// GetObject retrieves an object from S3
func (s *S3Storage) GetObject(ctx context.Context, key string) (io.ReadCloser, string, error) {
	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to get object from S3: %w", err)
	}

	contentType := "application/octet-stream"
	if output.ContentType != nil {
		contentType = *output.ContentType
	}

	return output.Body, contentType, nil
}

// HeadBucket checks that the configured bucket is reachable
func (s *S3Storage) HeadBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return fmt.Errorf("failed to reach bucket %s: %w", s.bucket, err)
	}
	return nil
}
