// Package storage provides object-storage backends for the record store.
// Each collection is kept as a single object named <prefix><collection>.json.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"

	"github.com/prn-tf/aipm-identity/internal/config"
	"github.com/prn-tf/aipm-identity/internal/repository/recordstore"
)

const documentContentType = "application/json"

// objectAPI is the subset of the S3 client used by S3Backend.
type objectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Backend stores collection documents in an S3-compatible bucket.
type S3Backend struct {
	client objectAPI
	bucket string
	prefix string
	logger zerolog.Logger
}

// NewS3Backend builds an S3 client from cfg.
// Static credentials are used when both keys are set, otherwise the default
// AWS credential chain applies.
func NewS3Backend(ctx context.Context, cfg config.S3Config, logger zerolog.Logger) (*S3Backend, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	logger.Info().
		Str("bucket", cfg.Bucket).
		Str("prefix", cfg.Prefix).
		Str("endpoint", cfg.Endpoint).
		Msg("using S3 record storage")

	return newS3Backend(client, cfg.Bucket, cfg.Prefix, logger), nil
}

func newS3Backend(client objectAPI, bucket, prefix string, logger zerolog.Logger) *S3Backend {
	return &S3Backend{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger.With().Str("component", "s3_backend").Logger(),
	}
}

// Name implements recordstore.Backend.
func (b *S3Backend) Name() string {
	return "s3"
}

// Key returns the object key holding collection.
func (b *S3Backend) Key(collection string) string {
	return b.prefix + collection + ".json"
}

// Read implements recordstore.Backend.
func (b *S3Backend) Read(ctx context.Context, collection string) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.Key(collection)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, recordstore.ErrCollectionNotFound
		}
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}
	return data, nil
}

// Write implements recordstore.Backend.
// A PutObject replaces the object atomically from the reader's point of view.
func (b *S3Backend) Write(ctx context.Context, collection string, document []byte) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(b.Key(collection)),
		Body:          bytes.NewReader(document),
		ContentLength: aws.Int64(int64(len(document))),
		ContentType:   aws.String(documentContentType),
	})
	if err != nil {
		return fmt.Errorf("failed to put object: %w", err)
	}
	b.logger.Debug().Str("key", b.Key(collection)).Int("size", len(document)).Msg("collection written")
	return nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

var _ recordstore.Backend = (*S3Backend)(nil)
