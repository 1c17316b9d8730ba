package tiering

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/cdnkeeper/internal/common"
	"github.com/dmitrijs2005/cdnkeeper/internal/logging"
	"github.com/dmitrijs2005/cdnkeeper/internal/metrics"
)

// Copier rewrites an object onto itself with a new storage class.
type Copier interface {
	CopyStorageClass(ctx context.Context, bucket, key string, class StorageClass) error
}

// Manager applies storage-class transitions to single entries. It holds no
// per-call state and may be used from many goroutines.
type Manager struct {
	copier  Copier
	logger  logging.Logger
	metrics metrics.Metrics
}

func NewManager(copier Copier, logger logging.Logger, m metrics.Metrics) *Manager {
	if m == nil {
		m = metrics.Noop{}
	}
	return &Manager{copier: copier, logger: logger, metrics: m}
}

// Retier moves e to target.
//
// Rules, in order:
//  1. target outside the enumeration      -> ErrInvalidTransition
//  2. target equals the current class     -> Skipped
//  3. current class is GLACIER/DEEP_ARCHIVE -> ErrInvalidTransition (restore first)
//  4. infrequent-access target below MinInfrequentAccessSize -> Skipped
//  5. otherwise copy-to-self with the new class -> Changed
func (m *Manager) Retier(ctx context.Context, e Entry, target StorageClass) (Outcome, error) {
	outcome, err := m.retier(ctx, e, target)

	switch {
	case err != nil:
		m.metrics.IncRetier(string(target), "failed")
	default:
		m.metrics.IncRetier(string(target), string(outcome))
	}
	return outcome, err
}

func (m *Manager) retier(ctx context.Context, e Entry, target StorageClass) (Outcome, error) {
	if !target.Valid() {
		return "", fmt.Errorf("%s/%s: unknown target class %q: %w", e.Bucket, e.Key, target, common.ErrInvalidTransition)
	}

	current, err := ParseStorageClass(string(e.StorageClass))
	if err != nil {
		return "", fmt.Errorf("%s/%s: %w", e.Bucket, e.Key, err)
	}

	if current == target {
		return Skipped, nil
	}

	if current.RequiresRestore() {
		return "", fmt.Errorf("%s/%s: %s objects must be restored before changing class: %w",
			e.Bucket, e.Key, current, common.ErrInvalidTransition)
	}

	if target.InfrequentAccess() && e.Size < MinInfrequentAccessSize {
		m.logger.Debug(ctx, "object below infrequent-access threshold",
			"bucket", e.Bucket, "key", e.Key, "size", e.Size, "target", target)
		return Skipped, nil
	}

	if err := m.copier.CopyStorageClass(ctx, e.Bucket, e.Key, target); err != nil {
		return "", err
	}

	m.logger.Info(ctx, "storage class changed",
		"bucket", e.Bucket, "key", e.Key, "from", current, "to", target)
	return Changed, nil
}
