// Package tiering moves object-store entries between storage classes.
//
// A single entry is handled by Manager.Retier, which enforces the
// transition rules; Batch fans Retier out over every object under a
// bucket prefix through a bounded worker pool and reports per-object
// outcomes.
package tiering

import (
	"fmt"

	"github.com/dmitrijs2005/cdnkeeper/internal/common"
)

// StorageClass is the storage tier of an object.
type StorageClass string

const (
	Standard          StorageClass = "STANDARD"
	ReducedRedundancy StorageClass = "REDUCED_REDUNDANCY"
	StandardIA        StorageClass = "STANDARD_IA"
	OneZoneIA         StorageClass = "ONEZONE_IA"
	Glacier           StorageClass = "GLACIER"
	DeepArchive       StorageClass = "DEEP_ARCHIVE"
)

// MinInfrequentAccessSize is the smallest object, in bytes, worth moving to
// an infrequent-access tier. Below it the per-object minimum charge costs
// more than the cheaper storage saves.
const MinInfrequentAccessSize = 128 * 1024

var knownClasses = map[StorageClass]struct{}{
	Standard:          {},
	ReducedRedundancy: {},
	StandardIA:        {},
	OneZoneIA:         {},
	Glacier:           {},
	DeepArchive:       {},
}

// ParseStorageClass validates s. Object stores omit the class of STANDARD
// objects, so the empty string maps to Standard.
func ParseStorageClass(s string) (StorageClass, error) {
	if s == "" {
		return Standard, nil
	}
	c := StorageClass(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown storage class %q: %w", s, common.ErrInvalidTransition)
	}
	return c, nil
}

// Valid reports whether c belongs to the supported enumeration.
func (c StorageClass) Valid() bool {
	_, ok := knownClasses[c]
	return ok
}

// InfrequentAccess reports whether c charges a retrieval fee and a minimum
// billable size.
func (c StorageClass) InfrequentAccess() bool {
	return c == StandardIA || c == OneZoneIA
}

// RequiresRestore reports whether objects in c must be restored before
// they can be copied.
func (c StorageClass) RequiresRestore() bool {
	return c == Glacier || c == DeepArchive
}

func (c StorageClass) String() string { return string(c) }

// Entry identifies one stored object.
type Entry struct {
	Bucket       string
	Key          string
	Size         int64
	StorageClass StorageClass
}

// Outcome is the result of a successful Retier call.
type Outcome string

const (
	Changed Outcome = "changed"
	Skipped Outcome = "skipped"
)
