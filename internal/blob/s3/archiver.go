package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// ListingArchiveStore is the slice of domain.ListingStore the archiver
// needs.
type ListingArchiveStore interface {
	ListClosedBefore(ctx context.Context, before time.Time) ([]domain.ListingConfig, error)
	DeleteClosedBefore(ctx context.Context, before time.Time) (int64, error)
}

// multipartThreshold is the archive size above which uploads go in parts.
const multipartThreshold = 4 * partSize

// ListingArchiver implements domain.Archiver. Rows are deleted only after
// the uploaded object is visible through the reader at its full size.
type ListingArchiver struct {
	writer   domain.BlobWriter
	reader   domain.BlobReader
	listings ListingArchiveStore
	audit    domain.AuditStore
}

func NewListingArchiver(writer domain.BlobWriter, reader domain.BlobReader, listings ListingArchiveStore, audit domain.AuditStore) *ListingArchiver {
	return &ListingArchiver{writer: writer, reader: reader, listings: listings, audit: audit}
}

// ArchiveListings uploads closed listings older than before and prunes them.
func (a *ListingArchiver) ArchiveListings(ctx context.Context, before time.Time) (int64, error) {
	rows, err := a.listings.ListClosedBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive listings query: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	buf, err := gzipJSONL(rows)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive listings encode: %w", err)
	}

	path := archivePath("listings", before)
	put := a.writer.Put
	if int64(len(buf)) > multipartThreshold {
		put = a.writer.PutMultipart
	}
	if err := put(ctx, path, bytes.NewReader(buf), contentType); err != nil {
		return 0, fmt.Errorf("s3blob: archive listings upload: %w", err)
	}
	info, err := a.reader.Stat(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive listings verify: %w", err)
	}
	if info.Size != int64(len(buf)) {
		return 0, fmt.Errorf("s3blob: archive listings verify: %s is %d bytes, uploaded %d", path, info.Size, len(buf))
	}

	deleted, err := a.listings.DeleteClosedBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive listings prune: %w", err)
	}

	if err := a.audit.Log(ctx, "archive.listings", map[string]any{
		"path":    path,
		"count":   len(rows),
		"deleted": deleted,
		"before":  before.UTC().Format(time.RFC3339),
	}); err != nil {
		return int64(len(rows)), fmt.Errorf("s3blob: archive listings audit log: %w", err)
	}
	return int64(len(rows)), nil
}

// archivePath partitions by the cutoff's month:
//
//	archive/listings/2025-01/1735689600.jsonl.gz
func archivePath(kind string, before time.Time) string {
	before = before.UTC()
	return fmt.Sprintf("archive/%s/%s/%d.jsonl.gz", kind, before.Format("2006-01"), before.Unix())
}

const contentType = "application/gzip"

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
		return nil, err
	}
	return buf.Bytes(), nil
}
