package publish

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// ContentType is sent with remote uploads.
const ContentType = "text/calendar; charset=utf-8"

// Sink receives the finished calendar document.
type Sink interface {
	// Publish replaces the artifact with data in one step.
	Publish(ctx context.Context, data []byte) error
	// String names the destination for logs.
	String() string
	Close() error
}

// Options carries backend-specific settings.
type Options struct {
	S3Region   string
	S3Endpoint string
}

// Destination is a parsed output location.
type Destination struct {
	Scheme string // "file", "gs" or "s3"
	Bucket string
	Key    string
	Path   string
}

// ParseDestination splits gs://bucket/key and s3://bucket/key; anything
// else is a local path.
func ParseDestination(dest string) (Destination, error) {
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return Destination{}, fmt.Errorf("publish: empty destination")
	}
	if !strings.HasPrefix(dest, "gs://") && !strings.HasPrefix(dest, "s3://") {
		return Destination{Scheme: "file", Path: dest}, nil
	}

	u, err := url.Parse(dest)
	if err != nil {
		return Destination{}, fmt.Errorf("publish: invalid destination %q: %w", dest, err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return Destination{}, fmt.Errorf("publish: destination %q needs a bucket and an object key", dest)
	}
	return Destination{Scheme: u.Scheme, Bucket: u.Host, Key: key}, nil
}

// Open returns the Sink for dest.
func Open(ctx context.Context, dest string, opts Options) (Sink, error) {
	d, err := ParseDestination(dest)
	if err != nil {
		return nil, err
	}
	switch d.Scheme {
	case "gs":
		return NewGCS(ctx, d.Bucket, d.Key)
	case "s3":
		return NewS3(ctx, S3Config{
			Bucket:   d.Bucket,
			Key:      d.Key,
			Region:   opts.S3Region,
			Endpoint: opts.S3Endpoint,
		})
	default:
		return NewLocal(d.Path), nil
	}
}
