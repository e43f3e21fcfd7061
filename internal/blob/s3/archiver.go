package s3blob

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jakeharveyy/tipengine/internal/domain"
)

// Narrow store interfaces required by the exporter. The Postgres stores
// satisfy these through their time-ranged list methods.

// BetExportStore provides read access to settled bets for export.
type BetExportStore interface {
	// ListSettledBetween returns bets settled inside [from, to), oldest first.
	ListSettledBetween(ctx context.Context, from, to time.Time, opts domain.ListOpts) ([]domain.Bet, error)
}

// LedgerExportStore provides read access to ledger entries for export.
type LedgerExportStore interface {
	// ListCreatedBetween returns entries created inside [from, to), oldest
	// first.
	ListCreatedBetween(ctx context.Context, from, to time.Time, opts domain.ListOpts) ([]domain.LedgerEntry, error)
}

// exportPageSize is how many rows each store query returns at most.
const exportPageSize = 1000

// multipartThreshold is the object size above which uploads switch to the
// multipart uploader.
const multipartThreshold int64 = 16 * 1024 * 1024

// Exporter implements domain.Archiver by querying the stores for one UTC
// day's rows, serializing them to gzipped JSONL, and uploading the result.
//
// Rows are never deleted from the database. The ledger is append-only and a
// balance replay needs the full history, so the export is a copy, not a move.
type Exporter struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	bets   BetExportStore
	ledger LedgerExportStore
	prefix string
}

// NewExporter creates an Exporter that writes day files under the given key
// prefix, e.g. "archive/bets/2026-08-25.jsonl.gz".
func NewExporter(writer domain.BlobWriter, reader domain.BlobReader, bets BetExportStore, ledger LedgerExportStore, prefix string) *Exporter {
	return &Exporter{
		writer: writer,
		reader: reader,
		bets:   bets,
		ledger: ledger,
		prefix: strings.Trim(prefix, "/"),
	}
}

// ExportBets uploads the bets settled on the given day and returns the row
// count. A day with no settled bets uploads nothing.
func (e *Exporter) ExportBets(ctx context.Context, day time.Time) (int64, error) {
	from, to := dayBounds(day)

	var records []domain.Bet
	opts := domain.ListOpts{Limit: exportPageSize}
	for {
		page, err := e.bets.ListSettledBetween(ctx, from, to, opts)
		if err != nil {
			return 0, fmt.Errorf("s3blob: export bets query: %w", err)
		}
		records = append(records, page...)
		if len(page) < exportPageSize {
			break
		}
		opts.Offset += exportPageSize
	}
	if len(records) == 0 {
		return 0, nil
	}

	if err := uploadJSONL(ctx, e.writer, e.path("bets", day), records); err != nil {
		return 0, fmt.Errorf("s3blob: export bets: %w", err)
	}
	return int64(len(records)), nil
}

// ExportLedger uploads the ledger entries created on the given day and
// returns the row count.
func (e *Exporter) ExportLedger(ctx context.Context, day time.Time) (int64, error) {
	from, to := dayBounds(day)

	var records []domain.LedgerEntry
	opts := domain.ListOpts{Limit: exportPageSize}
	for {
		page, err := e.ledger.ListCreatedBetween(ctx, from, to, opts)
		if err != nil {
			return 0, fmt.Errorf("s3blob: export ledger query: %w", err)
		}
		records = append(records, page...)
		if len(page) < exportPageSize {
			break
		}
		opts.Offset += exportPageSize
	}
	if len(records) == 0 {
		return 0, nil
	}

	if err := uploadJSONL(ctx, e.writer, e.path("ledger", day), records); err != nil {
		return 0, fmt.Errorf("s3blob: export ledger: %w", err)
	}
	return int64(len(records)), nil
}

// Exported reports whether either of the day's objects is already in storage.
// A day whose tables were empty uploads nothing, so a false here for such a
// day just leads to a harmless re-export of zero rows.
func (e *Exporter) Exported(ctx context.Context, day time.Time) (bool, error) {
	for _, table := range []string{"bets", "ledger"} {
		ok, err := e.reader.Exists(ctx, e.path(table, day))
		if err != nil {
			return false, fmt.Errorf("s3blob: check export %s: %w", table, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// path builds the object key for one table's day file.
func (e *Exporter) path(table string, day time.Time) string {
	return fmt.Sprintf("%s/%s/%s.jsonl.gz", e.prefix, table, day.UTC().Format("2006-01-02"))
}

// dayBounds returns the [from, to) UTC bounds of the day containing t.
func dayBounds(t time.Time) (time.Time, time.Time) {
	u := t.UTC()
	from := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 0, 1)
}

// uploadJSONL gzips the records as newline-delimited JSON and uploads the
// result, switching to a multipart upload above the size threshold.
func uploadJSONL[T any](ctx context.Context, writer domain.BlobWriter, path string, records []T) error {
	buf, err := gzipJSONL(records)
	if err != nil {
		return err
	}
	if int64(len(buf)) >= multipartThreshold {
		return writer.PutMultipart(ctx, path, bytes.NewReader(buf), multipartThreshold)
	}
	return writer.Put(ctx, path, bytes.NewReader(buf), "application/gzip")
}

// gzipJSONL serialises a slice of values as gzip-compressed JSONL. Each
// element is marshalled as a single compact JSON line followed by '\n'.
func gzipJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)

	enc := json.NewEncoder(zw)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*Exporter)(nil)
