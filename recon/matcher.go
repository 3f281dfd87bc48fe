/*
matcher.go - Confidence-tiered matching of external records

PURPOSE:
  Links an external/legacy record (a historical payment, a mislabeled
  collection) to exactly one canonical transaction using an ordered
  cascade of strategies, from high confidence to last resort:

    1. Sequence-number token shared by both free-text fields
    2. Unit + date within one day + exact amount
    3. Unit + exact amount (date ignored)
    4. Date within one day + exact amount (unit ignored)
    5. Exact amount only

  The first tier yielding any candidate wins. Within a tier, ties are
  broken deterministically: earliest transaction date, then smallest id.

CONSUMPTION:
  A matcher instance is one matching run. Each matched transaction is
  consumed and excluded from every later lookup, so no transaction is
  returned for two different records. Callers process records greedily,
  one at a time, typically in chronological order.

SIDE EFFECTS:
  None. The matcher never touches the store; persisting links is the
  caller's job, which is what makes dry-run output identical to live
  output by construction.

SEE ALSO:
  - creditledger.go: The same rule-table style for note classification
*/
package recon

import (
	"regexp"
	"sort"
	"strings"
)

// =============================================================================
// MATCH TIERS
// =============================================================================

type MatchTier int

const (
	TierSequence MatchTier = iota + 1
	TierUnitDateAmount
	TierUnitAmount
	TierDateAmount
	TierAmountOnly
)

func (t MatchTier) String() string {
	switch t {
	case TierSequence:
		return "sequence"
	case TierUnitDateAmount:
		return "unit+date+amount"
	case TierUnitAmount:
		return "unit+amount"
	case TierDateAmount:
		return "date+amount"
	case TierAmountOnly:
		return "amount-only"
	default:
		return "unknown"
	}
}

// Confidence labels the reliability of a tier for reporting.
func (t MatchTier) Confidence() string {
	switch t {
	case TierSequence, TierUnitDateAmount:
		return "high"
	case TierUnitAmount, TierDateAmount:
		return "medium"
	default:
		return "low"
	}
}

// MatchResult is one record linked to one transaction.
type MatchResult struct {
	Transaction Transaction
	Tier        MatchTier
}

// =============================================================================
// MATCHER
// =============================================================================

// Matcher holds the consumed-transaction set for one matching run.
type Matcher struct {
	consumed map[TransactionID]bool
}

func NewMatcher() *Matcher {
	return &Matcher{consumed: make(map[TransactionID]bool)}
}

// Match links record to one transaction from the candidate pool, or
// returns ErrNoMatch. The matched transaction is consumed for the rest of
// the run.
func (m *Matcher) Match(transactions []Transaction, record ExternalRecord) (MatchResult, error) {
	recordSeq := extractSequenceToken(record.RawNotes)
	recordUnit := NormalizeUnit(string(record.UnitID))

	tiers := []struct {
		tier      MatchTier
		candidate func(Transaction) bool
	}{
		{TierSequence, func(t Transaction) bool {
			return recordSeq != "" && extractSequenceToken(t.Notes) == recordSeq
		}},
		{TierUnitDateAmount, func(t Transaction) bool {
			return recordUnit != "" && NormalizeUnit(string(t.UnitID)) == recordUnit &&
				withinOneDay(record.Date, t.Date) && t.Amount == record.Amount
		}},
		{TierUnitAmount, func(t Transaction) bool {
			return recordUnit != "" && NormalizeUnit(string(t.UnitID)) == recordUnit &&
				t.Amount == record.Amount
		}},
		{TierDateAmount, func(t Transaction) bool {
			return withinOneDay(record.Date, t.Date) && t.Amount == record.Amount
		}},
		{TierAmountOnly, func(t Transaction) bool {
			return t.Amount == record.Amount
		}},
	}

	for _, tier := range tiers {
		var candidates []Transaction
		for _, t := range transactions {
			if m.consumed[t.ID] {
				continue
			}
			if tier.candidate(t) {
				candidates = append(candidates, t)
			}
		}
		if len(candidates) == 0 {
			continue
		}

		// Deterministic tie-break: earliest date, then smallest id.
		sort.Slice(candidates, func(i, j int) bool {
			if !candidates[i].Date.Equal(candidates[j].Date) {
				return candidates[i].Date.Before(candidates[j].Date)
			}
			return candidates[i].ID < candidates[j].ID
		})

		chosen := candidates[0]
		m.consumed[chosen.ID] = true
		return MatchResult{Transaction: chosen, Tier: tier.tier}, nil
	}

	return MatchResult{}, ErrNoMatch
}

// Consumed reports whether a transaction was already matched in this run.
func (m *Matcher) Consumed(id TransactionID) bool { return m.consumed[id] }

func withinOneDay(a, b Instant) bool {
	diff := a.SubMillis(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= millisPerDay
}

// =============================================================================
// TOKEN EXTRACTION
// =============================================================================

var (
	// "seq 1042", "sequence #1042", "seq:1042"
	seqMarkerRe = regexp.MustCompile(`(?i)\bseq(?:uence)?\b[\s:#]*(\d+)`)
	// A leading "#1042" token.
	seqLeadingRe = regexp.MustCompile(`^#(\d+)\b`)
)

// extractSequenceToken pulls a sequence token out of free text, or
// returns "" when none is present. Tokens compare by exact digit string.
func extractSequenceToken(s string) string {
	if m := seqMarkerRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	if m := seqLeadingRe.FindStringSubmatch(strings.TrimSpace(s)); m != nil {
		return m[1]
	}
	return ""
}

// =============================================================================
// UNIT NORMALIZATION
// =============================================================================

var unitCodeRe = regexp.MustCompile(`^([0-9A-Za-z]+)`)

// NormalizeUnit strips any trailing parenthetical or descriptive suffix
// from a unit label, keeping only the leading alphanumeric unit code:
//
//	"1C (Eifler)"  -> "1C"
//	"102 (Moguel)" -> "102"
func NormalizeUnit(label string) string {
	if m := unitCodeRe.FindStringSubmatch(strings.TrimSpace(label)); m != nil {
		return m[1]
	}
	return ""
}
