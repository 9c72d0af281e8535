package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes a stored object.
type BlobInfo struct {
	Path         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobReader retrieves data from object storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// Archiver exports settled history from the database to cold storage.
type Archiver interface {
	// ArchiveMarkets exports terminal markets, with their bets, that ended
	// before the cutoff.
	ArchiveMarkets(ctx context.Context, before time.Time) (int64, error)
	// ArchiveAuditLog exports audit entries older than the cutoff and prunes
	// them from the primary store once the upload has succeeded.
	ArchiveAuditLog(ctx context.Context, before time.Time) (int64, error)
}
