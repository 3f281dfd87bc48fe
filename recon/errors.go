/*
errors.go - Centralized error taxonomy for the reconciliation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The taxonomy drives run behavior:

  1. Configuration errors - Fatal; abort immediately with full context
     (missing client, missing snapshot, no accounts configured).
  2. Data integrity errors - Non-fatal; the offending record is skipped,
     counted, and listed in the final RunSummary.
  3. Transient store errors - Retried with bounded backoff (see WithRetry);
     escalate to fatal only after retries are exhausted.
  4. Validation errors - Malformed input records; skipped and counted,
     never silently coerced.

  Library-level code (fiscal.go, creditledger.go, matcher.go) returns
  precisely-typed errors and performs no I/O or logging. Orchestrators
  accumulate non-fatal errors into a RunSummary and propagate fatal ones.

USAGE:
  "Not found" lookups return the value alongside a sentinel, or an explicit
  found flag, rather than overloading generic failures:

    snap, err := repo.GetSnapshot(ctx, clientID, year)
    if errors.Is(err, recon.ErrNotFound) { ... }

SEE ALSO:
  - store.go: WithRetry consults IsTransient
  - replay.go: Wraps missing prerequisites as ConfigurationError
*/
package recon

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a document does not exist at the given
	// path. This is an expected outcome, not a fault.
	ErrNotFound = errors.New("document not found")

	// ErrSnapshotMissing is returned by GetOrInit when no snapshot exists
	// for the requested fiscal year. The synthesized zero snapshot is still
	// returned; persisting it is an explicit, separate decision.
	ErrSnapshotMissing = errors.New("snapshot missing for fiscal year")

	// ErrSnapshotExists is returned when creating a snapshot that already
	// exists without requesting overwrite. Past-year snapshots are immutable.
	ErrSnapshotExists = errors.New("snapshot already exists for fiscal year")

	// ErrClientNotFound is returned when the referenced client doesn't exist.
	ErrClientNotFound = errors.New("client not found")

	// ErrNoAccounts is returned when a client has no accounts configured.
	ErrNoAccounts = errors.New("client has no accounts configured")

	// ErrNoMatch is returned by the matcher when no tier yields a candidate.
	ErrNoMatch = errors.New("no matching transaction")

	// ErrStoreUnavailable marks a transient store failure (network, timeout,
	// quota). Wrapped errors are retried by WithRetry.
	ErrStoreUnavailable = errors.New("store temporarily unavailable")

	// ErrInvalidMonth is returned by fiscal-calendar functions for
	// out-of-range month arguments.
	ErrInvalidMonth = errors.New("month out of range 1..12")

	// ErrBatchTooLarge is returned when a single BatchWrite exceeds
	// MaxBatchSize. Callers chunk with ChunkOps instead.
	ErrBatchTooLarge = errors.New("batch exceeds maximum size")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConfigurationError is a fatal precondition failure: the run cannot
// proceed and aborts immediately with full context.
type ConfigurationError struct {
	Client   ClientID
	Year     int
	Resource string // what was missing ("snapshot", "client", "accounts")
	Err      error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: missing %s for client %s year %d", e.Resource, e.Client, e.Year)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// DataIntegrityError marks a record the run could not reconcile
// (unresolvable account reference, impossible amount). Non-fatal: the
// record is skipped and reported in the RunSummary.
type DataIntegrityError struct {
	RecordID string
	Reason   string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("data integrity: %s (%s)", e.Reason, e.RecordID)
}

// ValidationError marks a malformed input value (bad date, bad amount).
// The record is skipped and counted, never coerced to a default.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// TransientError wraps a store failure that may succeed on retry.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient store error during %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return ErrStoreUnavailable }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsTransient returns true if the error might succeed on retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsNotFound returns true if the error indicates a missing resource rather
// than a fault.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrClientNotFound) ||
		errors.Is(err, ErrSnapshotMissing)
}

// IsFatal returns true if the error must abort the run immediately.
func IsFatal(err error) bool {
	var cfg *ConfigurationError
	return errors.As(err, &cfg)
}
