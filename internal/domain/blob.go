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

// Archiver exports aged rows to cold storage as one object per table per UTC
// day. Export only: nothing is deleted from the database, since a replayed
// ledger must stay complete.
type Archiver interface {
	// ExportBets writes the bets settled on the given day and returns the row
	// count. A day with no rows uploads nothing and returns 0.
	ExportBets(ctx context.Context, day time.Time) (int64, error)
	// ExportLedger writes the ledger entries created on the given day.
	ExportLedger(ctx context.Context, day time.Time) (int64, error)
	// Exported reports whether the given day's objects are already in storage.
	Exported(ctx context.Context, day time.Time) (bool, error)
}
