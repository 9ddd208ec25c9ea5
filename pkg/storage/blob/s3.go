package blob

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/jobportal/pkg/observability"
	"github.com/platinummonkey/jobportal/pkg/storage"
)

const backendS3 = "s3"

// S3Store is a Store backed by an S3-compatible bucket
type S3Store struct {
	client     *s3.Client
	presign    *s3.PresignClient
	bucket     string
	publicBase string
	presignTTL time.Duration
	metrics    *observability.Metrics
}

// NewS3Store creates an S3 store from storage settings
func NewS3Store(ctx context.Context, cfg storage.Config, metrics *observability.Metrics) (*S3Store, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.S3Region)}
	if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
		// static keys for MinIO or explicit AWS credentials
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = cfg.S3UsePathStyle
	})

	if err := createBucketIfNotExists(ctx, client, cfg.S3Bucket); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}

	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = storage.DefaultConfig().PresignTTL
	}
	return &S3Store{
		client:     client,
		presign:    s3.NewPresignClient(client),
		bucket:     cfg.S3Bucket,
		publicBase: cfg.S3PublicBaseURL,
		presignTTL: ttl,
		metrics:    metrics,
	}, nil
}

// Put uploads data under key and returns its public and presigned URLs
func (s *S3Store) Put(ctx context.Context, key, contentType string, data []byte) (obj *Object, err error) {
	start := time.Now()
	defer func() { s.metrics.RecordStorageOperation("put_object", backendS3, start, err) }()

	ctx, span := tracer.Start(ctx, "S3.PutObject",
		trace.WithAttributes(
			attribute.String("s3.bucket", s.bucket),
			attribute.String("s3.key", key),
			attribute.String("content.type", contentType),
			attribute.Int("content.size", len(data)),
		),
	)
	defer span.End()

	key, err = CleanKey(key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid key")
		return nil, err
	}

	hash := sha256.Sum256(data)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"checksum-sha256": hex.EncodeToString(hash[:]),
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upload to s3")
		return nil, fmt.Errorf("failed to upload to s3: %w", err)
	}

	preview, err := s.presignGet(ctx, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to presign")
		return nil, err
	}

	span.SetStatus(codes.Ok, "object uploaded")
	return &Object{
		Key:         key,
		URL:         s.objectURL(key, preview),
		PreviewURL:  preview,
		ContentType: contentType,
		Size:        int64(len(data)),
	}, nil
}

func (s *S3Store) presignGet(ctx context.Context, key string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.presignTTL))
	if err != nil {
		return "", fmt.Errorf("failed to presign object url: %w", err)
	}
	return req.URL, nil
}

// objectURL is the stable URL of key. Without a public base it is the
// presigned URL stripped of its query.
func (s *S3Store) objectURL(key, presigned string) string {
	if s.publicBase != "" {
		return joinURL(s.publicBase, key)
	}
	base, _, _ := strings.Cut(presigned, "?")
	return base
}

// Delete removes key
func (s *S3Store) Delete(ctx context.Context, key string) (err error) {
	start := time.Now()
	defer func() { s.metrics.RecordStorageOperation("delete_object", backendS3, start, err) }()

	key, err = CleanKey(key)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// HealthCheck verifies the bucket is reachable
func (s *S3Store) HealthCheck(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("s3 health check failed: %w", err)
	}
	return nil
}

func createBucketIfNotExists(ctx context.Context, client *s3.Client, bucket string) error {
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err == nil {
		return nil
	}

	_, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return nil
	}
	var owned *types.BucketAlreadyOwnedByYou
	var exists *types.BucketAlreadyExists
	if errors.As(err, &owned) || errors.As(err, &exists) {
		return nil
	}
	return fmt.Errorf("failed to create bucket: %w", err)
}
