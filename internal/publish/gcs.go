package publish

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
)

// GCSSink uploads the calendar as a single Cloud Storage object. Object
// writes are atomic: readers see the previous generation until Close
// succeeds.
type GCSSink struct {
	client *storage.Client
	bucket string
	object string
}

// NewGCS creates a GCSSink using Application Default Credentials.
func NewGCS(ctx context.Context, bucket, object string) (*GCSSink, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("publish: gcs client: %w", err)
	}
	return &GCSSink{client: client, bucket: bucket, object: object}, nil
}

func (s *GCSSink) Publish(ctx context.Context, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(s.object).NewWriter(ctx)
	w.ContentType = ContentType
	// Subscribers poll; keep caches short so updates show up.
	w.CacheControl = "public, max-age=300"

	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("publish: gcs write %s: %w", s, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("publish: gcs close %s: %w", s, err)
	}
	return nil
}

func (s *GCSSink) String() string {
	return "gs://" + s.bucket + "/" + s.object
}

func (s *GCSSink) Close() error {
	return s.client.Close()
}
