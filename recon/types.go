/*
Package recon provides the core ledger reconciliation engine.

PURPOSE:
  This package contains the types and algorithms for deriving authoritative
  financial state from an immutable, append-only transaction log: balance
  reconstruction via snapshot + replay, confidence-tiered matching of
  external records against canonical transactions, and normalization of
  historically-recorded absolute balances into replayable delta ledgers.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A signed amount in integer minor units (cents)
  - Account: A client-owned balance container (bank or cash)
  - Transaction: An immutable ledger entry (the ground truth)
  - Snapshot: Frozen account balances at a fiscal-year boundary
  - CreditLedgerEntry: A per-unit delta in prepaid/overpaid funds
  - ExternalRecord: A legacy record awaiting a link to a Transaction

DESIGN PRINCIPLES:
  1. Ground truth: The transaction log is never mutated by this engine;
     every other view (balances, credit ledgers) is a recomputable
     projection over it.
  2. Precision: All arithmetic is on integer minor units. Decimal strings
     are converted exactly at the I/O boundary; floats never enter.
  3. Determinism: Re-running any computation on identical inputs yields
     identical outputs (audit timestamps aside).
  4. Purity at the leaves: Calendar math, matching, and normalization are
     pure functions; only orchestrators touch the store.

SEE ALSO:
  - fiscal.go: Fiscal-calendar arithmetic
  - replay.go: Balance reconstruction from snapshot + transactions
  - matcher.go: Tiered external-record matching
  - creditledger.go: Absolute-to-delta ledger normalization
  - store.go: Document-store interface and batch machinery
*/
package recon

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Signed integer minor units
// =============================================================================

// Money is a signed amount in integer minor units (e.g., cents).
//
// Historical callers stored a mix of integer minor units and floating
// decimal major units. This engine standardizes on minor units everywhere;
// conversion happens only at the I/O boundary via ParseMoney/MoneyFromMajor.
type Money int64

// ParseMoney converts a decimal major-unit string ("66.75") to Money (6675).
// Fails if the value carries more precision than two decimal places.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, &ValidationError{Field: "amount", Value: s, Reason: "not a decimal number"}
	}
	return MoneyFromMajor(d)
}

// MoneyFromMajor converts a decimal major-unit value to Money.
func MoneyFromMajor(d decimal.Decimal) (Money, error) {
	minor := d.Shift(2)
	if !minor.IsInteger() {
		return 0, &ValidationError{Field: "amount", Value: d.String(), Reason: "more than two decimal places"}
	}
	return Money(minor.IntPart()), nil
}

// Major returns the amount as a decimal in major units.
func (m Money) Major() decimal.Decimal { return decimal.New(int64(m), -2) }

// String formats the amount in major units ("66.75").
func (m Money) String() string { return m.Major().StringFixed(2) }

func (m Money) IsZero() bool     { return m == 0 }
func (m Money) IsNegative() bool { return m < 0 }
func (m Money) IsPositive() bool { return m > 0 }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ClientID string
type AccountID string
type TransactionID string
type UnitID string

// =============================================================================
// CLIENT - Owns accounts, transactions, snapshots, and credit ledgers
// =============================================================================

type Client struct {
	ID   ClientID
	Name string

	// First calendar month of the fiscal year (1-12). Zero means unset;
	// readers treat unset as January (calendar year).
	FiscalStartMonth int

	// Legacy transactions reference accounts by a bare type keyword
	// ("cash", "bank") instead of an id. This maps those keywords to the
	// account that absorbed them.
	LegacyAccountTypes map[string]AccountID

	// Audit tags written by the replay engine on each committed rebuild.
	LastRebuildYear int
	LastRebuildAt   Instant
}

// FiscalStart returns the effective fiscal start month (unset = January).
func (c Client) FiscalStart() int {
	if c.FiscalStartMonth == 0 {
		return 1
	}
	return c.FiscalStartMonth
}

// =============================================================================
// ACCOUNT
// =============================================================================

type AccountType string

const (
	AccountBank AccountType = "bank"
	AccountCash AccountType = "cash"
)

// Account is mutated only by the replay engine (wholesale rewrite) or by
// direct administrative correction. It is a projection, not ground truth.
type Account struct {
	ID          AccountID
	Name        string
	Type        AccountType
	Currency    string
	Balance     Money
	LastUpdated Instant
}

// =============================================================================
// TRANSACTION - Append-only ground truth (read-only for this engine)
// =============================================================================

// Transaction references its account by id, by name, or (for legacy rows)
// by a bare account-type keyword. The replay engine resolves the reference
// through that cascade; see accountResolver in replay.go.
type Transaction struct {
	ID     TransactionID
	Date   Instant
	Amount Money // signed

	AccountID   AccountID // preferred reference
	AccountName string    // fallback reference
	AccountType string    // legacy keyword reference ("cash", "bank")

	CategoryID string
	UnitID     UnitID
	Notes      string
}

// =============================================================================
// SNAPSHOT - Frozen balances at a fiscal-year boundary
// =============================================================================

// Snapshot records account balances as of the end of a fiscal year.
// One snapshot exists per (client, fiscalYear); past-year snapshots are
// immutable once created. Rebuilding balances never edits a snapshot.
type Snapshot struct {
	FiscalYear int
	Entries    []SnapshotEntry
	CreatedAt  Instant
}

type SnapshotEntry struct {
	AccountID AccountID
	Name      string
	Balance   Money
}

// EntryFor finds a snapshot entry by account id, falling back to a name
// match (account id schemes have changed over time). Returns nil when the
// account is absent from the snapshot.
func (s Snapshot) EntryFor(id AccountID, name string) *SnapshotEntry {
	for i := range s.Entries {
		if s.Entries[i].AccountID == id {
			return &s.Entries[i]
		}
	}
	for i := range s.Entries {
		if s.Entries[i].Name != "" && s.Entries[i].Name == name {
			return &s.Entries[i]
		}
	}
	return nil
}

// =============================================================================
// CREDIT LEDGER - Per-unit prepaid/overpaid funds
// =============================================================================

type EntrySource string

const (
	SourceTransaction EntrySource = "transaction" // deposit/payment/credit use
	SourceAdmin       EntrySource = "admin"       // refund, manual conversion, correction
	SourceImport      EntrySource = "import"      // historical import, origin unknown
)

// CreditLedgerEntry is one signed delta in a unit's credit balance.
// Current credit balance = sum of all entry amounts in timestamp order.
type CreditLedgerEntry struct {
	ID            string
	Timestamp     Instant
	Amount        Money // signed delta
	Note          string
	Source        EntrySource
	TransactionID TransactionID // optional link to the originating transaction
}

// =============================================================================
// EXTERNAL RECORD - Candidate for matching against the transaction log
// =============================================================================

// ExternalRecord is a legacy or third-party record (a historical payment,
// a mislabeled collection) supplied by a caller for linking. It is never
// persisted by this engine.
type ExternalRecord struct {
	UnitID   UnitID
	Date     Instant
	Amount   Money
	RawNotes string
}

// =============================================================================
// RUN SUMMARY - Non-fatal issue accumulation for orchestration runs
// =============================================================================

// RunSummary accumulates the outcome of a batch run. Non-fatal issues
// (unresolvable references, malformed inputs) are counted and listed here
// instead of aborting the run; orchestrators print the summary once at
// the end.
type RunSummary struct {
	Processed int
	Skipped   int
	Issues    []RunIssue
}

type RunIssue struct {
	RecordID string
	Reason   string
}

func (s *RunSummary) Skip(recordID, reason string) {
	s.Skipped++
	s.Issues = append(s.Issues, RunIssue{RecordID: recordID, Reason: reason})
}

func (s *RunSummary) String() string {
	return fmt.Sprintf("processed=%d skipped=%d", s.Processed, s.Skipped)
}
