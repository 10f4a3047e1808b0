package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/auctioneer/internal/domain"
	"github.com/alanyoungcy/auctioneer/internal/store/memory"
)

type memBlobs struct {
	objects  map[string][]byte
	types    map[string]string
	failPut  bool
	truncate bool
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memBlobs) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	if m.failPut {
		return errors.New("bucket unavailable")
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if m.truncate {
		b = b[:len(b)/2]
	}
	m.objects[path] = b
	m.types[path] = contentType
	return nil
}

func (m *memBlobs) PutMultipart(ctx context.Context, path string, data io.Reader, contentType string) error {
	return m.Put(ctx, path, data, contentType)
}

func (m *memBlobs) Get(_ context.Context, path string) (io.ReadCloser, error) {
	b, ok := m.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memBlobs) Stat(_ context.Context, path string) (domain.BlobInfo, error) {
	b, ok := m.objects[path]
	if !ok {
		return domain.BlobInfo{}, domain.ErrNotFound
	}
	return domain.BlobInfo{Path: path, Size: int64(len(b)), ContentType: m.types[path]}, nil
}

func seedClosed(t *testing.T, s *memory.ListingStore, b byte, closedAt time.Time) {
	t.Helper()
	var addr domain.Address
	addr[0] = b
	l := domain.ListingConfig{Address: addr, MinBid: 1, Status: domain.ListingStatusOpen, CreatedAt: closedAt}
	require.NoError(t, s.Create(context.Background(), l))
	l.Close(domain.ListingStatusSold, closedAt)
	require.NoError(t, s.Update(context.Background(), l))
}

func TestArchiveListings(t *testing.T) {
	ctx := context.Background()
	listings := memory.NewListingStore()
	audit := memory.NewAuditStore()
	blobs := newMemBlobs()
	seedClosed(t, listings, 1, time.Unix(1_000, 0))
	seedClosed(t, listings, 2, time.Unix(2_000, 0))
	seedClosed(t, listings, 3, time.Unix(9_000, 0))

	cutoff := time.Date(1970, 1, 1, 1, 0, 0, 0, time.UTC)
	a := NewListingArchiver(blobs, blobs, listings, audit)
	n, err := a.ArchiveListings(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	raw, ok := blobs.objects["archive/listings/1970-01/3600.jsonl.gz"]
	require.True(t, ok)
	assert.Equal(t, "application/gzip", blobs.types["archive/listings/1970-01/3600.jsonl.gz"])
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	require.NoError(t, err)
	var lines int
	sc := bufio.NewScanner(zr)
	for sc.Scan() {
		var l domain.ListingConfig
		require.NoError(t, json.Unmarshal(sc.Bytes(), &l))
		assert.Equal(t, domain.ListingStatusSold, l.Status)
		lines++
	}
	assert.Equal(t, 2, lines)

	left, err := listings.ListClosedBefore(ctx, time.Unix(10_000, 0))
	require.NoError(t, err)
	assert.Len(t, left, 1)

	entries, err := audit.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "archive.listings", entries[0].Event)
}

func TestArchiveListingsKeepsRowsOnUploadFailure(t *testing.T) {
	ctx := context.Background()
	listings := memory.NewListingStore()
	blobs := newMemBlobs()
	blobs.failPut = true
	seedClosed(t, listings, 1, time.Unix(1_000, 0))

	_, err := NewListingArchiver(blobs, blobs, listings, memory.NewAuditStore()).ArchiveListings(ctx, time.Unix(5_000, 0))
	require.Error(t, err)

	left, err := listings.ListClosedBefore(ctx, time.Unix(5_000, 0))
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestArchiveListingsKeepsRowsOnShortObject(t *testing.T) {
	ctx := context.Background()
	listings := memory.NewListingStore()
	blobs := newMemBlobs()
	blobs.truncate = true
	seedClosed(t, listings, 1, time.Unix(1_000, 0))

	_, err := NewListingArchiver(blobs, blobs, listings, memory.NewAuditStore()).ArchiveListings(ctx, time.Unix(5_000, 0))
	require.ErrorContains(t, err, "verify")

	left, err := listings.ListClosedBefore(ctx, time.Unix(5_000, 0))
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestArchiveListingsNothingToDo(t *testing.T) {
	blobs := newMemBlobs()
	n, err := NewListingArchiver(blobs, blobs, memory.NewListingStore(), memory.NewAuditStore()).
		ArchiveListings(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, blobs.objects)
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://s3.example.com", normaliseEndpoint("s3.example.com", true))
	assert.Equal(t, "http://s3.example.com", normaliseEndpoint("s3.example.com", false))
	assert.Equal(t, "http://x", normaliseEndpoint("http://x", true))
}
