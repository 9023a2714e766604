package export

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"chatmemo/internal/config"
)

// S3Mirror uploads exports to a bucket, under an optional prefix.
type S3Mirror struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Mirror uses the default AWS credential chain.
// A custom endpoint switches to path-style addressing for MinIO and friends.
func NewS3Mirror(ctx context.Context, cfg config.ExportConfig) (*S3Mirror, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3: bucket is required")
	}
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}
	var s3Opts []func(*s3.Options)
	if cfg.S3Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		})
	}
	return &S3Mirror{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: cfg.S3Bucket,
		prefix: cfg.S3Prefix,
	}, nil
}

func (m *S3Mirror) key(name string) string {
	if m.prefix == "" {
		return name
	}
	return path.Join(m.prefix, name)
}

func (m *S3Mirror) Put(ctx context.Context, name string, body []byte, contentType string) error {
	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(m.key(name)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", name, err)
	}
	return nil
}
