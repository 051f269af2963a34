package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Options configures NewS3Store. Endpoint switches to path-style
// addressing for MinIO and localstack. PublicBaseURL, when set, is the CDN or
// proxy origin that serves <bucket>/<key>.
type S3Options struct {
	Region        string
	Endpoint      string
	PublicBaseURL string
}

// S3Store keeps objects in S3 (or an S3-compatible endpoint). Logical bucket
// names map directly to S3 buckets, which must allow public reads.
type S3Store struct {
	client  *s3.Client
	baseURL string
	// virtualHost puts the bucket in the hostname instead of the path.
	virtualHost bool
}

// NewS3Store loads the default AWS credential chain.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	cfg, err := awsCfg.LoadDefaultConfig(ctx, awsCfg.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	store := &S3Store{client: client}
	switch {
	case opts.PublicBaseURL != "":
		store.baseURL = strings.TrimRight(opts.PublicBaseURL, "/")
	case opts.Endpoint != "":
		store.baseURL = strings.TrimRight(opts.Endpoint, "/")
	default:
		store.baseURL = fmt.Sprintf("s3.%s.amazonaws.com", opts.Region)
		store.virtualHost = true
	}
	return store, nil
}

func (s *S3Store) Put(ctx context.Context, bucket, key, contentType string, data []byte) error {
	if err := validateKey(bucket, key); err != nil {
		return err
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *S3Store) Delete(ctx context.Context, bucket, key string) error {
	if err := validateKey(bucket, key); err != nil {
		return err
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("s3 delete %s/%s: %w", bucket, key, err)
	}
	return nil
}

// URL returns the object's permanent public address. It depends only on the
// bucket and key, so it is safe to persist.
func (s *S3Store) URL(_ context.Context, bucket, key string) (string, error) {
	if err := validateKey(bucket, key); err != nil {
		return "", err
	}
	if s.virtualHost {
		return fmt.Sprintf("https://%s.%s/%s", bucket, s.baseURL, escapeKey(key)), nil
	}
	return fmt.Sprintf("%s/%s/%s", s.baseURL, bucket, escapeKey(key)), nil
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
