package publish

import (
	"context"

	"engagecal/internal/fsutil"
)

// LocalSink writes the calendar to a file via temp file + rename.
type LocalSink struct {
	path string
}

func NewLocal(path string) *LocalSink {
	return &LocalSink{path: path}
}

func (s *LocalSink) Publish(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// Calendar feeds are served publicly, hence world-readable.
	return fsutil.WriteFileAtomic(s.path, data, 0o644, 0o755)
}

func (s *LocalSink) String() string { return s.path }

func (s *LocalSink) Close() error { return nil }
