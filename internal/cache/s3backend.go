package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Backend mirrors the cache blob to an S3 bucket, so a fleet of collectors
// targeting the same forest can share resolver state. It is opt-in
// (--cache-s3-bucket); the local FileBackend remains the default and is
// unaffected by this type existing.
type S3Backend struct {
	Bucket string
	Key    string
	client *s3.Client
}

// NewS3Backend loads the default AWS config (environment/shared config/IAM
// role, the standard aws-sdk-go-v2 resolution chain) and returns a backend
// targeting bucket/key.
func NewS3Backend(ctx context.Context, bucket, key string) (*S3Backend, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("cache: load AWS config: %w", err)
	}
	return &S3Backend{Bucket: bucket, Key: key, client: s3.NewFromConfig(cfg)}, nil
}

// Load fetches the cache object; a missing key degrades to "no cache yet"
// exactly like FileBackend's missing-file case.
func (b *S3Backend) Load(ctx context.Context) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.Bucket),
		Key:    aws.String(b.Key),
	})
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: s3 get s3://%s/%s: %w", b.Bucket, b.Key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("cache: s3 read body: %w", err)
	}
	return data, nil
}

// Save uploads the cache blob, overwriting whatever was there.
func (b *S3Backend) Save(ctx context.Context, blob []byte) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.Bucket),
		Key:    aws.String(b.Key),
		Body:   bytes.NewReader(blob),
	})
	if err != nil {
		return fmt.Errorf("cache: s3 put s3://%s/%s: %w", b.Bucket, b.Key, err)
	}
	return nil
}
