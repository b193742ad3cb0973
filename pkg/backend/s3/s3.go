// Package s3 implements an S3 storage backend for media replication
// and fallback retrieval.
//
// It works against Amazon S3 and S3-compatible object stores (MinIO,
// Localstack, Garage) via a custom endpoint. Object keys are the same
// relative paths the resolver produces for the local cache, optionally
// under a configured key prefix, so a bucket remains human-inspectable
// and can be used to rebuild a cache after disaster.
package s3

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/mediavault/mediavault/pkg/backend"
	"github.com/mediavault/mediavault/pkg/media"
)

// S3Backend replicates media to an S3 bucket.
//
// Thread safety: the underlying client is safe for concurrent use.
// Concurrent stores to the same key are last-write-wins under S3's
// consistency model.
type S3Backend struct {
	name                string
	client              *s3.Client
	bucket              string
	keyPrefix           string
	localMediaDirectory string
}

// Config configures an S3Backend.
type Config struct {
	// Name identifies the backend in logs and metrics.
	Name string

	// Region is the AWS region. Required.
	Region string

	// Bucket is the target bucket. Required; must already exist.
	Bucket string

	// KeyPrefix is prepended to every object key, e.g. "media/".
	KeyPrefix string

	// Endpoint overrides the S3 endpoint for compatible stores.
	// Setting it also forces path-style addressing.
	Endpoint string

	// AccessKeyID / SecretAccessKey select static credentials. Empty
	// values fall back to the default AWS credential chain.
	AccessKeyID     string
	SecretAccessKey string

	// MaxRetries bounds retry attempts for transient S3 failures.
	// Zero selects the default of 10.
	MaxRetries int

	// LocalMediaPath is the coordinator's local cache directory, the
	// source for uploads.
	LocalMediaPath string
}

// New builds the S3 client from cfg and returns the backend. The bucket
// is not created or verified here; the first operation surfaces access
// problems.
func New(ctx context.Context, cfg Config) (*S3Backend, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 backend: bucket is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3 backend: region is required")
	}

	client, err := newClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	name := cfg.Name
	if name == "" {
		name = "s3:" + cfg.Bucket
	}
	return &S3Backend{
		name:                name,
		client:              client,
		bucket:              cfg.Bucket,
		keyPrefix:           cfg.KeyPrefix,
		localMediaDirectory: cfg.LocalMediaPath,
	}, nil
}

// NewWithClient wraps an existing client, used by tests against fakes
// and by callers that manage AWS configuration themselves.
func NewWithClient(client *s3.Client, cfg Config) *S3Backend {
	name := cfg.Name
	if name == "" {
		name = "s3:" + cfg.Bucket
	}
	return &S3Backend{
		name:                name,
		client:              client,
		bucket:              cfg.Bucket,
		keyPrefix:           cfg.KeyPrefix,
		localMediaDirectory: cfg.LocalMediaPath,
	}
}

func newClient(ctx context.Context, cfg Config) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	opts = append(opts, awsconfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// Path-style addressing for MinIO/Localstack compatibility.
			o.UsePathStyle = true
		}
	})
	return client, nil
}

func (b *S3Backend) Name() string {
	return b.name
}

// Store uploads the local cache file at relPath to the bucket.
func (b *S3Backend) Store(ctx context.Context, relPath string, _ *media.FileInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := backend.OpenLocalFile(b.localMediaDirectory, relPath)
	if err != nil {
		return err
	}
	defer src.Close()

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(relPath)),
		Body:   src,
	})
	if err != nil {
		return fmt.Errorf("failed to put %s to S3: %w", relPath, err)
	}
	return nil
}

// Fetch streams the object at relPath from the bucket, returning
// media.ErrNotInBackend on a clean miss.
func (b *S3Backend) Fetch(ctx context.Context, relPath string, _ *media.FileInfo) (media.Responder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(relPath)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, media.ErrNotInBackend
		}
		return nil, fmt.Errorf("failed to get %s from S3: %w", relPath, err)
	}
	return media.NewStreamResponder(result.Body), nil
}

// objectKey converts a relative media path to an object key. Backslash
// separators never occur on supported platforms but are normalized
// anyway so keys are portable.
func (b *S3Backend) objectKey(relPath string) string {
	key := strings.ReplaceAll(relPath, "\\", "/")
	if b.keyPrefix != "" {
		key = strings.TrimSuffix(b.keyPrefix, "/") + "/" + key
	}
	return key
}
