package tiering

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dmitrijs2005/cdnkeeper/internal/common"
	"github.com/dmitrijs2005/cdnkeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	entries []Entry
	err     error
	prefix  string
}

func (f *fakeLister) ListEntries(_ context.Context, _, prefix string) ([]Entry, error) {
	f.prefix = prefix
	return f.entries, f.err
}

func TestBatchRun_ReportsEveryEntry(t *testing.T) {
	lister := &fakeLister{entries: []Entry{
		{Bucket: "b", Key: "media/d.bin", Size: 1 << 20, StorageClass: Standard},
		{Bucket: "b", Key: "media/a.bin", Size: 10, StorageClass: Standard},
		{Bucket: "b", Key: "media/c.bin", Size: 1 << 20, StorageClass: Glacier},
		{Bucket: "b", Key: "media/b.bin", Size: 1 << 20, StorageClass: StandardIA},
		{Bucket: "b", Key: "media/e.bin", Size: 1 << 20, StorageClass: Standard},
	}}
	copier := &fakeCopier{fail: map[string]error{"media/e.bin": fmt.Errorf("copy: %w", common.ErrRemoteService)}}
	b := NewBatch(lister, NewManager(copier, logging.Nop(), nil), 2, logging.Nop())

	report, err := b.Run(context.Background(), "b", "media/", StandardIA)
	require.NoError(t, err)

	assert.Equal(t, "media/", lister.prefix)
	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Results, 5)
	assert.Equal(t, 1, report.Changed)
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, 2, report.Failed)

	byKey := map[string]Result{}
	for _, r := range report.Results {
		byKey[r.Entry.Key] = r
	}
	assert.Equal(t, Skipped, byKey["media/a.bin"].Outcome)
	assert.Equal(t, Skipped, byKey["media/b.bin"].Outcome)
	assert.ErrorIs(t, byKey["media/c.bin"].Err, common.ErrInvalidTransition)
	assert.Equal(t, Changed, byKey["media/d.bin"].Outcome)
	assert.ErrorIs(t, byKey["media/e.bin"].Err, common.ErrRemoteService)

	assert.Equal(t, "media/a.bin", report.Results[0].Entry.Key, "results are sorted by key")
}

func TestBatchRun_ListingFailure(t *testing.T) {
	lister := &fakeLister{err: errors.New("access denied")}
	b := NewBatch(lister, NewManager(&fakeCopier{}, logging.Nop(), nil), 10, logging.Nop())

	_, err := b.Run(context.Background(), "b", "", Glacier)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestBatchRun_InvalidTargetFailsFast(t *testing.T) {
	lister := &fakeLister{}
	b := NewBatch(lister, NewManager(&fakeCopier{}, logging.Nop(), nil), 10, logging.Nop())

	_, err := b.Run(context.Background(), "b", "media/", "COLD")
	assert.ErrorIs(t, err, common.ErrInvalidTransition)
	assert.Empty(t, lister.prefix, "listing must not run for an invalid target")
}

func TestBatchRun_EmptyPrefix(t *testing.T) {
	b := NewBatch(&fakeLister{}, NewManager(&fakeCopier{}, logging.Nop(), nil), 10, logging.Nop())

	report, err := b.Run(context.Background(), "b", "nothing/", Standard)
	require.NoError(t, err)
	assert.Empty(t, report.Results)
	assert.Zero(t, report.Changed+report.Skipped+report.Failed)
}

type panickingCopier struct {
	key string
}

func (p panickingCopier) CopyStorageClass(_ context.Context, _, key string, _ StorageClass) error {
	if key == p.key {
		panic("copier blew up")
	}
	return nil
}

func TestBatchRun_PanickingEntryIsReportedAsFailed(t *testing.T) {
	lister := &fakeLister{entries: []Entry{
		{Bucket: "b", Key: "a", Size: 1 << 20, StorageClass: Standard},
		{Bucket: "b", Key: "b", Size: 1 << 20, StorageClass: Standard},
		{Bucket: "b", Key: "c", Size: 1 << 20, StorageClass: Standard},
	}}
	b := NewBatch(lister, NewManager(panickingCopier{key: "b"}, logging.Nop(), nil), 2, logging.Nop())

	report, err := b.Run(context.Background(), "b", "", StandardIA)
	require.NoError(t, err)

	require.Len(t, report.Results, 3)
	assert.Equal(t, 2, report.Changed)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, 1, report.Failed)

	failed := report.Results[1]
	assert.Equal(t, "b", failed.Entry.Key)
	assert.Empty(t, failed.Outcome)
	require.Error(t, failed.Err)
	assert.Contains(t, failed.Err.Error(), "copier blew up")
}
