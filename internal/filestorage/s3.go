// File: internal/filestorage/s3.go
package filestorage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"waste_portal_backend/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// ObjectAPI is the slice of the S3 client the store needs.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store keeps report images in an S3 (or S3-compatible) bucket.
type S3Store struct {
	client     ObjectAPI
	bucket     string
	publicBase string
	logger     *zap.Logger
}

// NewS3Store loads AWS credentials from the default chain.
func NewS3Store(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	publicBase := cfg.StoragePublicBaseURL
	if publicBase == "" || strings.HasPrefix(publicBase, "/") {
		publicBase = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.S3Bucket, cfg.S3Region)
	}
	logger.Info("S3 file storage initialized", zap.String("bucket", cfg.S3Bucket), zap.String("region", cfg.S3Region))
	return NewS3StoreWithClient(client, cfg.S3Bucket, publicBase, logger), nil
}

// NewS3StoreWithClient wires an existing client.
func NewS3StoreWithClient(client ObjectAPI, bucket, publicBase string, logger *zap.Logger) *S3Store {
	return &S3Store{
		client:     client,
		bucket:     bucket,
		publicBase: strings.TrimRight(publicBase, "/"),
		logger:     logger.Named("S3Store"),
	}
}

func (s *S3Store) Save(ctx context.Context, subDir, extension, contentType string, content io.Reader) (string, error) {
	key, err := objectKey(subDir, extension)
	if err != nil {
		return "", err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        content,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		s.logger.Error("Failed to upload object", zap.String("key", key), zap.Error(err))
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return s.publicBase + "/" + key, nil
}

func (s *S3Store) Delete(ctx context.Context, url string) error {
	key, ok := keyFromURL(s.publicBase, url)
	if !ok {
		s.logger.Warn("Refusing to delete object outside bucket", zap.String("url", url))
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.logger.Error("Failed to delete object", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
