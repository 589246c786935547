// Package sequence issues the per-work-date sequence keys that identify
// movement records. Keys are unique, monotonically increasing ordinals under
// a (namespace, work date) pair; density is not guaranteed — an aborted
// movement leaves a gap.
package sequence

import (
	"context"
	"fmt"
	"time"

	"boxledger/internal/core/apperror"
)

// DefaultNamespace is the unified counter namespace shared by all movement
// kinds. Callers wanting per-kind counters pass the kind as namespace.
const DefaultNamespace = "MOV"

// ordinalWidth is the zero-padded width of the daily ordinal, matching the
// key layout of the movement tables ("20260116" + "0007").
const ordinalWidth = 4

// workDateLayout is the canonical work-date format.
const workDateLayout = "20060102"

// Generator allocates the next sequence key for a (namespace, workDate)
// pair. Implementations must be safe under concurrent callers: the increment
// is a single atomic operation against the counter store, never a
// read-then-write. When the counter store is unreachable the call fails with
// a retryable storage error; there is no non-unique fallback.
type Generator interface {
	Next(ctx context.Context, namespace, workDate string) (string, error)
}

// FormatKey renders a sequence key from a work date and ordinal.
func FormatKey(workDate string, ordinal int64) string {
	return fmt.Sprintf("%s%0*d", workDate, ordinalWidth, ordinal)
}

// ValidWorkDate reports whether s is a canonical YYYYMMDD work date.
func ValidWorkDate(s string) bool {
	if len(s) != len(workDateLayout) {
		return false
	}
	_, err := time.Parse(workDateLayout, s)
	return err == nil
}

// WorkDateOf renders t as a work date. The work date is a logical business
// date; callers that roll the date at a cutover hour adjust t first.
func WorkDateOf(t time.Time) string {
	return t.Format(workDateLayout)
}

// validate rejects malformed generator input before it reaches storage.
func validate(namespace, workDate string) error {
	if namespace == "" {
		return apperror.NewValidation("sequence namespace is required")
	}
	if !ValidWorkDate(workDate) {
		return apperror.NewValidation("work date must be YYYYMMDD")
	}
	return nil
}
