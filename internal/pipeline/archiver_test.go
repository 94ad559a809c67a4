package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sonpham-org/poly/internal/domain"
)

type archiveStubStore struct {
	rows    []domain.OrderbookSnapshot
	deleted []int64
}

func (s *archiveStubStore) Insert(ctx context.Context, snap domain.OrderbookSnapshot) error {
	s.rows = append(s.rows, snap)
	return nil
}

func (s *archiveStubStore) ListBySlug(ctx context.Context, slug string, opts domain.ListOpts) ([]domain.OrderbookSnapshot, error) {
	return nil, nil
}

func (s *archiveStubStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.OrderbookSnapshot, error) {
	var page []domain.OrderbookSnapshot
	for _, r := range s.rows {
		if r.Timestamp.Before(cutoff) {
			page = append(page, r)
			if len(page) == limit {
				break
			}
		}
	}
	return page, nil
}

func (s *archiveStubStore) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	wanted := make(map[int64]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var kept []domain.OrderbookSnapshot
	var n int64
	for _, r := range s.rows {
		if wanted[r.ID] {
			s.deleted = append(s.deleted, r.ID)
			n++
			continue
		}
		kept = append(kept, r)
	}
	s.rows = kept
	return n, nil
}

type stubBlobWriter struct {
	objects map[string][]domain.OrderbookSnapshot
	err     error
}

func (b *stubBlobWriter) record(path string, data io.Reader) error {
	if b.err != nil {
		return b.err
	}
	var snaps []domain.OrderbookSnapshot
	if err := json.NewDecoder(data).Decode(&snaps); err != nil {
		return err
	}
	if b.objects == nil {
		b.objects = make(map[string][]domain.OrderbookSnapshot)
	}
	b.objects[path] = snaps
	return nil
}

func (b *stubBlobWriter) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	return b.record(path, data)
}

func (b *stubBlobWriter) PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error {
	return b.record(path, data)
}

func agedSnapshot(id int64, slug string, ts time.Time) domain.OrderbookSnapshot {
	return domain.OrderbookSnapshot{
		ID:         id,
		TokenID:    "tok",
		MarketSlug: slug,
		Timestamp:  ts,
		Spread:     0.02,
		Midpoint:   0.5,
	}
}

func TestArchiver_RunExportsEveryAgedRow(t *testing.T) {
	base := time.Now().UTC().Add(-40 * 24 * time.Hour)
	store := &archiveStubStore{}
	for i := 0; i < archivePageSize; i++ {
		store.rows = append(store.rows, agedSnapshot(int64(i+1), "market-a", base.Add(time.Duration(i)*time.Second)))
	}
	// A row from the same ingestion cycle as the page's last snapshot,
	// landing just past the page boundary. It must still be exported
	// before anything deletes it.
	boundary := store.rows[archivePageSize-1].Timestamp
	straggler := agedSnapshot(99999, "market-b", boundary.Add(300*time.Microsecond))
	store.rows = append(store.rows, straggler)

	blob := &stubBlobWriter{}
	arch := NewArchiver(store, blob, 30, discardLogger())

	require.NoError(t, arch.Run(context.Background()))

	exported := make(map[int64]bool)
	for _, snaps := range blob.objects {
		for _, s := range snaps {
			exported[s.ID] = true
		}
	}
	require.Len(t, exported, archivePageSize+1)
	require.True(t, exported[straggler.ID], "boundary row must be exported, not silently dropped")
	require.Empty(t, store.rows)
	require.Len(t, store.deleted, archivePageSize+1)
}

func TestArchiver_DeletesOnlyExportedRows(t *testing.T) {
	base := time.Now().UTC().Add(-40 * 24 * time.Hour)
	store := &archiveStubStore{
		rows: []domain.OrderbookSnapshot{
			agedSnapshot(1, "market-a", base),
			agedSnapshot(2, "market-a", base.Add(time.Minute)),
		},
	}
	blob := &stubBlobWriter{}
	arch := NewArchiver(store, blob, 30, discardLogger())

	require.NoError(t, arch.Run(context.Background()))

	exported := make(map[int64]bool)
	for _, snaps := range blob.objects {
		for _, s := range snaps {
			exported[s.ID] = true
		}
	}
	for _, id := range store.deleted {
		require.True(t, exported[id], "row %d deleted without being exported", id)
	}
}

func TestArchiver_ExportFailureLeavesRows(t *testing.T) {
	base := time.Now().UTC().Add(-40 * 24 * time.Hour)
	store := &archiveStubStore{
		rows: []domain.OrderbookSnapshot{agedSnapshot(1, "market-a", base)},
	}
	blob := &stubBlobWriter{err: errors.New("s3 unavailable")}
	arch := NewArchiver(store, blob, 30, discardLogger())

	err := arch.Run(context.Background())
	require.Error(t, err)
	require.Empty(t, store.deleted)
	require.Len(t, store.rows, 1)
}
