package tiering

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/dmitrijs2005/cdnkeeper/internal/common"
	"github.com/dmitrijs2005/cdnkeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type copyCall struct {
	bucket, key string
	class       StorageClass
}

type fakeCopier struct {
	mu    sync.Mutex
	calls []copyCall
	fail  map[string]error
}

func (f *fakeCopier) CopyStorageClass(_ context.Context, bucket, key string, class StorageClass) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, copyCall{bucket, key, class})
	if err, ok := f.fail[key]; ok {
		return err
	}
	return nil
}

func TestRetier_TransitionTable(t *testing.T) {
	tests := []struct {
		name     string
		current  StorageClass
		target   StorageClass
		size     int64
		want     Outcome
		wantErr  error
		wantCopy bool
	}{
		{name: "same class", current: Standard, target: Standard, size: 1 << 20, want: Skipped},
		{name: "same archived class", current: Glacier, target: Glacier, size: 10, want: Skipped},
		{name: "from glacier", current: Glacier, target: Standard, size: 1 << 20, wantErr: common.ErrInvalidTransition},
		{name: "from deep archive", current: DeepArchive, target: StandardIA, size: 1 << 20, wantErr: common.ErrInvalidTransition},
		{name: "ia below threshold", current: Standard, target: StandardIA, size: 100000, want: Skipped},
		{name: "onezone below threshold", current: Standard, target: OneZoneIA, size: MinInfrequentAccessSize - 1, want: Skipped},
		{name: "ia at threshold", current: Standard, target: StandardIA, size: MinInfrequentAccessSize, want: Changed, wantCopy: true},
		{name: "ia above threshold", current: Standard, target: StandardIA, size: 200000, want: Changed, wantCopy: true},
		{name: "glacier has no floor", current: Standard, target: Glacier, size: 1, want: Changed, wantCopy: true},
		{name: "deep archive has no floor", current: StandardIA, target: DeepArchive, size: 1, want: Changed, wantCopy: true},
		{name: "back to standard", current: OneZoneIA, target: Standard, size: 10, want: Changed, wantCopy: true},
		{name: "empty current is standard", current: "", target: Standard, size: 10, want: Skipped},
		{name: "unknown target", current: Standard, target: "INTELLIGENT_TIERING", size: 1 << 20, wantErr: common.ErrInvalidTransition},
		{name: "unknown current", current: "GLACIER_IR", target: Standard, size: 1 << 20, wantErr: common.ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			copier := &fakeCopier{}
			m := NewManager(copier, logging.Nop(), nil)

			e := Entry{Bucket: "media.example.com", Key: "uploads/a.bin", Size: tt.size, StorageClass: tt.current}
			got, err := m.Retier(context.Background(), e, tt.target)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, copier.calls, "no copy may be attempted")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			if tt.wantCopy {
				require.Len(t, copier.calls, 1)
				assert.Equal(t, copyCall{"media.example.com", "uploads/a.bin", tt.target}, copier.calls[0])
			} else {
				assert.Empty(t, copier.calls)
			}
		})
	}
}

func TestRetier_CopyFailureSurfaces(t *testing.T) {
	boom := fmt.Errorf("copy: %w", common.ErrRemoteService)
	copier := &fakeCopier{fail: map[string]error{"big.bin": boom}}
	m := NewManager(copier, logging.Nop(), nil)

	_, err := m.Retier(context.Background(), Entry{Bucket: "b", Key: "big.bin", Size: 1 << 30, StorageClass: Standard}, Glacier)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrRemoteService))
}

func TestParseStorageClass(t *testing.T) {
	c, err := ParseStorageClass("")
	require.NoError(t, err)
	assert.Equal(t, Standard, c)

	c, err = ParseStorageClass("ONEZONE_IA")
	require.NoError(t, err)
	assert.Equal(t, OneZoneIA, c)
	assert.True(t, c.InfrequentAccess())
	assert.False(t, c.RequiresRestore())

	_, err = ParseStorageClass("standard")
	assert.ErrorIs(t, err, common.ErrInvalidTransition)
}
