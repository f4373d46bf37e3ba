package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownJob is returned for a global totals job name outside the catalogue.
	ErrUnknownJob = errors.New("unknown global totals job")
	// ErrNoMetricsDate is returned when the update count table is empty and a
	// metrics job was requested without an explicit date.
	ErrNoMetricsDate = errors.New("no update count metrics available")
)

// ValidationError reports a malformed request parameter.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// AuthorizationError reports a privileged filter requested without an
// elevated capability. Reason is for logs only and is never sent to clients.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	return "unauthorized: " + e.Reason
}

// TransientIndexError wraps any failure of an indexing batch. The batch is
// always retried in full with IDs.
type TransientIndexError struct {
	Kind  TaskKind
	IDs   []int64
	Cause error
}

func (e *TransientIndexError) Error() string {
	return fmt.Sprintf("index %s batch of %d ids: %v", e.Kind, len(e.IDs), e.Cause)
}

func (e *TransientIndexError) Unwrap() error { return e.Cause }

// ComputeError reports a failed statistic query.
type ComputeError struct {
	Job   string
	Date  Date
	Cause error
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("compute %s for %s: %v", e.Job, e.Date, e.Cause)
}

func (e *ComputeError) Unwrap() error { return e.Cause }

// PrimaryUpsertError reports a failed write of the global_stats row.
type PrimaryUpsertError struct {
	Job   string
	Date  Date
	Cause error
}

func (e *PrimaryUpsertError) Error() string {
	return fmt.Sprintf("upsert global stat %s for %s: %v", e.Job, e.Date, e.Cause)
}

func (e *PrimaryUpsertError) Unwrap() error { return e.Cause }

// SecondaryWriteError reports a failed best-effort write to the secondary
// metrics store. It is logged by the totals runner and never returned.
type SecondaryWriteError struct {
	Job   string
	Date  Date
	Cause error
}

func (e *SecondaryWriteError) Error() string {
	return fmt.Sprintf("secondary metrics write %s for %s: %v", e.Job, e.Date, e.Cause)
}

func (e *SecondaryWriteError) Unwrap() error { return e.Cause }
