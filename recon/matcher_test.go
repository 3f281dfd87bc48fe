package recon_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/recon-engine/recon"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func txn(id string, date recon.Instant, amount recon.Money) recon.Transaction {
	return recon.Transaction{ID: recon.TransactionID(id), Date: date, Amount: amount}
}

func march(day int) recon.Instant {
	return recon.NewInstant(2024, time.March, day)
}

// =============================================================================
// TIER PRIORITY TESTS
// =============================================================================

func TestMatch_SequenceTokenBeatsAmountOnly(t *testing.T) {
	// GIVEN: One candidate sharing a sequence token, another matching only
	//        on amount
	// THEN:  The sequence-token match always wins

	withSeq := txn("tx-seq", march(20), 5000)
	withSeq.Notes = "collection seq 1042 posted late"
	amountOnly := txn("tx-amt", march(1), 5000)

	record := recon.ExternalRecord{
		UnitID:   "1C",
		Date:     march(1),
		Amount:   5000,
		RawNotes: "historical payment sequence #1042",
	}

	m := recon.NewMatcher()
	result, err := m.Match([]recon.Transaction{amountOnly, withSeq}, record)
	require.NoError(t, err)
	assert.Equal(t, recon.TransactionID("tx-seq"), result.Transaction.ID)
	assert.Equal(t, recon.TierSequence, result.Tier)
}

func TestMatch_UnitDateAmountBeforeUnitAmount(t *testing.T) {
	near := txn("tx-near", march(10), 7500)
	near.UnitID = "1C (Eifler)"
	far := txn("tx-far", march(1), 7500)
	far.UnitID = "1C"

	record := recon.ExternalRecord{UnitID: "1C", Date: march(11), Amount: 7500}

	m := recon.NewMatcher()
	result, err := m.Match([]recon.Transaction{far, near}, record)
	require.NoError(t, err)
	assert.Equal(t, recon.TransactionID("tx-near"), result.Transaction.ID)
	assert.Equal(t, recon.TierUnitDateAmount, result.Tier)
}

func TestMatch_FallsThroughToAmountOnly(t *testing.T) {
	only := txn("tx-1", march(25), 123456)
	record := recon.ExternalRecord{UnitID: "9Z", Date: march(1), Amount: 123456}

	m := recon.NewMatcher()
	result, err := m.Match([]recon.Transaction{only}, record)
	require.NoError(t, err)
	assert.Equal(t, recon.TierAmountOnly, result.Tier)
	assert.Equal(t, "low", result.Tier.Confidence())
}

func TestMatch_NoCandidate(t *testing.T) {
	m := recon.NewMatcher()
	_, err := m.Match([]recon.Transaction{txn("tx-1", march(1), 100)}, recon.ExternalRecord{Amount: 999})
	assert.True(t, errors.Is(err, recon.ErrNoMatch))
}

// =============================================================================
// CONSUMPTION TESTS
// =============================================================================

func TestMatch_NeverReturnsSameTransactionTwice(t *testing.T) {
	// GIVEN: Two records that would both resolve to the same transaction
	// THEN:  The second record gets a different (or no) match

	pool := []recon.Transaction{txn("tx-1", march(5), 2000)}
	first := recon.ExternalRecord{Date: march(5), Amount: 2000}
	second := recon.ExternalRecord{Date: march(5), Amount: 2000}

	m := recon.NewMatcher()
	r1, err := m.Match(pool, first)
	require.NoError(t, err)
	assert.Equal(t, recon.TransactionID("tx-1"), r1.Transaction.ID)

	_, err = m.Match(pool, second)
	assert.True(t, errors.Is(err, recon.ErrNoMatch))
	assert.True(t, m.Consumed("tx-1"))
}

func TestMatch_ConsumedCandidateFallsToNextBest(t *testing.T) {
	a := txn("tx-a", march(5), 2000)
	b := txn("tx-b", march(6), 2000)
	pool := []recon.Transaction{a, b}

	m := recon.NewMatcher()
	r1, err := m.Match(pool, recon.ExternalRecord{Date: march(5), Amount: 2000})
	require.NoError(t, err)
	r2, err := m.Match(pool, recon.ExternalRecord{Date: march(5), Amount: 2000})
	require.NoError(t, err)

	assert.Equal(t, recon.TransactionID("tx-a"), r1.Transaction.ID)
	assert.Equal(t, recon.TransactionID("tx-b"), r2.Transaction.ID)
}

// =============================================================================
// TIE-BREAK TESTS
// =============================================================================

func TestMatch_TieBreak_EarliestDateThenSmallestID(t *testing.T) {
	// Same tier, same day: the earlier transaction wins; on identical
	// dates, the smaller id wins. Iteration order of the pool is irrelevant.

	later := txn("tx-b", march(8), 3000)
	earlier := txn("tx-a", march(7), 3000)
	record := recon.ExternalRecord{Date: march(7), Amount: 3000}

	m := recon.NewMatcher()
	result, err := m.Match([]recon.Transaction{later, earlier}, record)
	require.NoError(t, err)
	assert.Equal(t, recon.TransactionID("tx-a"), result.Transaction.ID)

	sameDay1 := txn("tx-z", march(12), 4000)
	sameDay2 := txn("tx-m", march(12), 4000)
	m2 := recon.NewMatcher()
	result, err = m2.Match([]recon.Transaction{sameDay1, sameDay2}, recon.ExternalRecord{Date: march(12), Amount: 4000})
	require.NoError(t, err)
	assert.Equal(t, recon.TransactionID("tx-m"), result.Transaction.ID)
}

// =============================================================================
// UNIT NORMALIZATION TESTS
// =============================================================================

func TestNormalizeUnit(t *testing.T) {
	cases := map[string]string{
		"1C (Eifler)":    "1C",
		"102 (Moguel)":   "102",
		"14B":            "14B",
		"  7A  rear ":    "7A",
		"(orphan label)": "",
		"":               "",
	}
	for in, want := range cases {
		assert.Equal(t, want, recon.NormalizeUnit(in), "NormalizeUnit(%q)", in)
	}
}
