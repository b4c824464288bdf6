package publish

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds configuration for S3Sink.
type S3Config struct {
	Bucket   string
	Key      string
	Region   string
	Endpoint string // Optional custom endpoint (MinIO, LocalStack)
}

// S3Sink uploads the calendar with a single PutObject.
type S3Sink struct {
	client *s3.Client
	bucket string
	key    string
}

// NewS3 builds an S3Sink from the default AWS credential chain.
func NewS3(ctx context.Context, cfg S3Config) (*S3Sink, error) {
	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("publish: load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // Required for MinIO/LocalStack
		}
	})

	return &S3Sink{client: client, bucket: cfg.Bucket, key: cfg.Key}, nil
}

func (s *S3Sink) Publish(ctx context.Context, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(s.key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(ContentType),
		CacheControl: aws.String("public, max-age=300"),
	})
	if err != nil {
		return fmt.Errorf("publish: s3 put %s: %w", s, err)
	}
	return nil
}

func (s *S3Sink) String() string {
	return "s3://" + s.bucket + "/" + s.key
}

func (s *S3Sink) Close() error { return nil }
