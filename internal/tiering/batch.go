package tiering

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/dmitrijs2005/cdnkeeper/internal/common"
	"github.com/dmitrijs2005/cdnkeeper/internal/logging"
	"github.com/dmitrijs2005/cdnkeeper/internal/workerpool"
	"github.com/google/uuid"
)

// Lister enumerates the entries stored under a key prefix.
type Lister interface {
	ListEntries(ctx context.Context, bucket, prefix string) ([]Entry, error)
}

// Result is the outcome of one entry in a batch. Err is set when the entry
// could not be moved; Outcome is empty in that case.
type Result struct {
	Entry   Entry
	Outcome Outcome
	Err     error
}

// Report summarises a batch run.
type Report struct {
	RunID   string
	Bucket  string
	Prefix  string
	Target  StorageClass
	Results []Result
	Changed int
	Skipped int
	Failed  int
}

// Batch retiers every entry under a prefix.
type Batch struct {
	lister      Lister
	manager     *Manager
	concurrency int
	logger      logging.Logger
}

func NewBatch(lister Lister, manager *Manager, concurrency int, logger logging.Logger) *Batch {
	return &Batch{lister: lister, manager: manager, concurrency: concurrency, logger: logger}
}

// Run lists bucket/prefix and moves every entry to target. Only an invalid
// target or a listing failure fail the call; per-entry failures are
// recorded in the report.
func (b *Batch) Run(ctx context.Context, bucket, prefix string, target StorageClass) (*Report, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("unknown target class %q: %w", target, common.ErrInvalidTransition)
	}

	report := &Report{
		RunID:  uuid.NewString(),
		Bucket: bucket,
		Prefix: prefix,
		Target: target,
	}
	log := b.logger.With("run_id", report.RunID, "bucket", bucket, "prefix", prefix, "target", target)

	entries, err := b.lister.ListEntries(ctx, bucket, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s/%s: %w", bucket, prefix, err)
	}
	log.Info(ctx, "retier started", "entries", len(entries))

	var mu sync.Mutex
	record := func(r Result) {
		mu.Lock()
		defer mu.Unlock()
		report.Results = append(report.Results, r)
	}

	// Every entry gets exactly one row, including entries whose retier
	// panicked; per-entry errors live in the report, not in the pool.
	if err := workerpool.Run(ctx, entries, func(ctx context.Context, e Entry) error {
		outcome, err := b.retier(ctx, e, target)
		if err != nil {
			log.Warn(ctx, "retier failed", "key", e.Key, "error", err)
			outcome = ""
		}
		record(Result{Entry: e, Outcome: outcome, Err: err})
		return nil
	}, b.concurrency); err != nil {
		log.Error(ctx, "worker pool reported failures", "error", err)
	}

	slices.SortFunc(report.Results, func(x, y Result) int {
		return strings.Compare(x.Entry.Key, y.Entry.Key)
	})
	for _, r := range report.Results {
		switch {
		case r.Err != nil:
			report.Failed++
		case r.Outcome == Changed:
			report.Changed++
		default:
			report.Skipped++
		}
	}

	log.Info(ctx, "retier finished",
		"changed", report.Changed, "skipped", report.Skipped, "failed", report.Failed)
	return report, nil
}

func (b *Batch) retier(ctx context.Context, e Entry, target StorageClass) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s/%s: retier panicked: %v", e.Bucket, e.Key, r)
		}
	}()
	return b.manager.Retier(ctx, e, target)
}
