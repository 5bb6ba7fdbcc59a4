package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Storage implements ObjectStorage for S3 and S3-compatible stores.
type S3Storage struct {
	client     *s3.Client
	bucket     string
	maxRetries int
}

type S3Config struct {
	Region string
	// Endpoint is set for MinIO or LocalStack.
	Endpoint     string
	UsePathStyle bool
}

func DefaultS3Config() S3Config {
	return S3Config{Region: "us-east-1"}
}

func NewS3Storage(ctx context.Context, bucket string, cfg S3Config) (*S3Storage, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &S3Storage{
		client:     s3.NewFromConfig(awsCfg, s3Opts...),
		bucket:     bucket,
		maxRetries: 3,
	}, nil
}

func (s *S3Storage) Upload(ctx context.Context, localPath, objectPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer file.Close()

	return retryWithBackoff(ctx, s.maxRetries, func() error {
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return err
		}
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(objectPath),
			Body:        file,
			ContentType: aws.String(contentType(localPath)),
		})
		return err
	})
}

func (s *S3Storage) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	var objects []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			objects = append(objects, aws.ToString(obj.Key))
		}
	}
	return objects, nil
}

// retryWithBackoff retries with exponential backoff starting at 100ms. Only
// archive uploads use it; they start after the run is Done, so no timed
// operation is ever repeated.
func retryWithBackoff(ctx context.Context, maxRetries int, operation func() error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrObjectNotFound) {
			return lastErr
		}

		if attempt < maxRetries {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * 100 * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return fmt.Errorf("%w: %v", ErrUploadFailed, lastErr)
}

func contentType(p string) string {
	switch filepath.Ext(p) {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	}
	return "application/octet-stream"
}
