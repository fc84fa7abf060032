package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds the S3-compatible mirror configuration, resolved from the
// `mirror_bucket` config key plus environment-provided credentials
// (AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY, matching the ambient
// AWS SDK default credential chain).
type S3Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// S3Backend mirrors downloaded artifacts to an S3-compatible bucket.
type S3Backend struct {
	client *s3.Client
	bucket string
}

// NewS3 creates an S3 mirror backend.
func NewS3(cfg S3Config) (*S3Backend, error) {
	opts := s3.Options{
		Region:       cfg.Region,
		UsePathStyle: cfg.UsePathStyle,
	}
	if cfg.AccessKeyID != "" {
		opts.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return &S3Backend{client: s3.New(opts), bucket: cfg.Bucket}, nil
}

// Upload implements Backend.
func (b *S3Backend) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   reader,
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := b.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("upload mirror object %s: %w", key, err)
	}
	return nil
}

// Type implements Backend.
func (b *S3Backend) Type() string { return "s3" }

// Location implements Backend.
func (b *S3Backend) Location() string { return b.bucket }
