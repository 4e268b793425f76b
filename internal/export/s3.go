package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds S3 connection settings for bundle uploads.
type S3Config struct {
	Region          string
	Bucket          string
	Prefix          string // Key prefix for uploaded bundles
	Endpoint        string // Optional custom endpoint (MinIO, LocalStack)
	AccessKeyID     string // Static credentials; the default chain is used when empty
	SecretAccessKey string
	UsePathStyle    bool
}

// Validate checks if the configuration is valid.
func (c S3Config) Validate() error {
	if c.Region == "" {
		return errors.New("s3: region is required")
	}
	if c.Bucket == "" {
		return errors.New("s3: bucket is required")
	}
	return nil
}

// putObjectAPI is the part of *s3.Client the uploader uses.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader uploads bundles to a bucket.
type S3Uploader struct {
	client putObjectAPI
	config S3Config
	logger *slog.Logger

	uploaded atomic.Int64
	errors   atomic.Int64
}

// NewS3Uploader creates an uploader backed by the AWS SDK.
func NewS3Uploader(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3Uploader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(cfg.Region))

	// Use static credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
		opts = append(opts, config.WithCredentialsProvider(creds))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: failed to load AWS config: %w", err)
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

	u := newS3Uploader(s3.NewFromConfig(awsCfg, s3Opts...), cfg, logger)

	logger.Info("s3 uploader initialized",
		"bucket", cfg.Bucket,
		"region", cfg.Region,
	)
	return u, nil
}

func newS3Uploader(client putObjectAPI, cfg S3Config, logger *slog.Logger) *S3Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Uploader{client: client, config: cfg, logger: logger}
}

// Upload stores the bundle under <prefix><bundle id>.json and returns its s3:// location.
func (u *S3Uploader) Upload(ctx context.Context, b *Bundle) (string, error) {
	var buf bytes.Buffer
	if err := b.Encode(&buf); err != nil {
		return "", err
	}

	key := u.config.Prefix + b.ID + ".json"
	size := int64(buf.Len())

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.config.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"bundle-version": b.Version,
			"detections":     fmt.Sprint(b.Stats.Detections),
		},
	})
	if err != nil {
		u.errors.Add(1)
		return "", fmt.Errorf("s3: failed to upload bundle %s: %w", key, err)
	}

	u.uploaded.Add(1)
	u.logger.Debug("uploaded bundle", "key", key, "size", size)

	return fmt.Sprintf("s3://%s/%s", u.config.Bucket, key), nil
}

// Uploaded returns the number of successful uploads.
func (u *S3Uploader) Uploaded() int64 { return u.uploaded.Load() }
