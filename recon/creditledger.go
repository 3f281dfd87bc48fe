/*
creditledger.go - Absolute-to-delta credit ledger normalization

PURPOSE:
  Historical records stored a unit's credit as a sequence of ABSOLUTE
  balance observations ("balance was 45.98 on March 3"). A replayable
  ledger needs DELTAS. NormalizeCreditHistory converts one to the other:
  each observation emits an entry whose amount is the change from the
  previous observed balance, with zero-change observations skipped.

INVARIANT:
  startingBalance + sum of emitted deltas == the final observed absolute
  balance, exactly (integer arithmetic, no tolerance). When the starting
  balance is nonzero, a synthetic opening entry carries it.

IDEMPOTENCE:
  Pure function; identical input yields byte-identical output. Entry ids
  are content-derived (UUIDv5), so regeneration is stable and ledgers can
  be rebuilt wholesale whenever the source history changes.

SOURCE CLASSIFICATION:
  Each entry's source is classified from its note by an ordered rule
  table (pattern -> source), kept here as data so new phrasings are a
  one-line addition with no orchestration changes.
*/
package recon

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// Observation is one historically-recorded absolute balance.
type Observation struct {
	AbsoluteBalance Money
	Timestamp       Instant
	Note            string
}

// NormalizeCreditHistory converts absolute balance observations into an
// ordered delta ledger. Observations are consumed in the given order,
// which callers keep chronological.
func NormalizeCreditHistory(startingBalance Money, observations []Observation) []CreditLedgerEntry {
	entries := make([]CreditLedgerEntry, 0, len(observations)+1)

	if startingBalance != 0 {
		opening := CreditLedgerEntry{
			Timestamp: openingTimestamp(observations),
			Amount:    startingBalance,
			Note:      "opening balance",
			Source:    SourceImport,
		}
		opening.ID = entryID(opening, 0)
		entries = append(entries, opening)
	}

	previous := startingBalance
	for i, obs := range observations {
		delta := obs.AbsoluteBalance - previous
		previous = obs.AbsoluteBalance
		if delta == 0 {
			continue
		}
		entry := CreditLedgerEntry{
			Timestamp: obs.Timestamp,
			Amount:    delta,
			Note:      obs.Note,
			Source:    ClassifyNote(obs.Note),
		}
		entry.ID = entryID(entry, i+1)
		entries = append(entries, entry)
	}

	return entries
}

// openingTimestamp places the synthetic opening entry just before the
// first observation so timestamp ordering holds.
func openingTimestamp(observations []Observation) Instant {
	if len(observations) == 0 {
		return Instant{}
	}
	return observations[0].Timestamp.AddMillis(-1)
}

// entryID derives a stable id from entry content and position, so two
// normalization runs over identical input produce identical ledgers.
func entryID(e CreditLedgerEntry, position int) string {
	seed := fmt.Sprintf("credit-entry/%d/%d/%d", position, e.Timestamp.UnixMillis(), e.Amount)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed)).String()
}

// =============================================================================
// NOTE CLASSIFICATION - Ordered rule table
// =============================================================================

type noteRule struct {
	pattern *regexp.Regexp
	source  EntrySource
}

// Rules are evaluated top to bottom; the first hit wins. Deposit/payment
// phrasing outranks admin phrasing, matching how mixed notes were
// recorded historically.
var noteRules = []noteRule{
	{regexp.MustCompile(`(?i)\b(deposit|payment|paid|credit\s+(use|used|applied)|applied\s+to)\b`), SourceTransaction},
	{regexp.MustCompile(`(?i)\b(refund|refunded|manual(ly)?\s+\w*|conversion|converted|adjust(ed|ment)?|correction|corrected|admin)\b`), SourceAdmin},
}

// ClassifyNote assigns an entry source from free-text phrasing.
// Unrecognized notes fall back to import.
func ClassifyNote(note string) EntrySource {
	for _, rule := range noteRules {
		if rule.pattern.MatchString(note) {
			return rule.source
		}
	}
	return SourceImport
}

// =============================================================================
// VERIFICATION
// =============================================================================

// VerifyCreditLedger checks the reconstruction invariant: the entry
// amounts (the synthetic opening entry carries the starting balance) must
// sum exactly to the last observed absolute balance. Returns nil when the
// history is empty.
func VerifyCreditLedger(observations []Observation, entries []CreditLedgerEntry) error {
	if len(observations) == 0 {
		return nil
	}

	total := Money(0)
	for _, e := range entries {
		total += e.Amount
	}

	final := observations[len(observations)-1].AbsoluteBalance
	if total != final {
		return &DataIntegrityError{
			RecordID: "credit-ledger",
			Reason:   fmt.Sprintf("delta sum %s does not reproduce final balance %s", total, final),
		}
	}
	return nil
}
