package recon_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/warp/recon-engine/recon"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func obs(day int, balance recon.Money, note string) recon.Observation {
	return recon.Observation{
		AbsoluteBalance: balance,
		Timestamp:       recon.NewInstant(2023, time.Month(1+day/28), 1+day%28),
		Note:            note,
	}
}

func deltas(entries []recon.CreditLedgerEntry) []recon.Money {
	out := make([]recon.Money, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Amount)
	}
	return out
}

// =============================================================================
// NORMALIZATION TESTS
// =============================================================================

func TestNormalize_HistoricalExample(t *testing.T) {
	// GIVEN: Starting balance 6675.00 and observed absolute balances
	//        6180.50, 4598.06, 4871.12, 5371.12 (converted to minor units)
	// THEN:  Deltas are the differences, and they reproduce the final
	//        observed balance exactly

	starting := recon.Money(667500)
	observations := []recon.Observation{
		obs(1, 618050, "deposit applied"),
		obs(2, 459806, "rent payment"),
		obs(3, 487112, "refund issued"),
		obs(4, 537112, ""),
	}

	entries := recon.NormalizeCreditHistory(starting, observations)

	want := []recon.Money{667500, -49450, -158244, 27306, 50000}
	if !reflect.DeepEqual(deltas(entries), want) {
		t.Fatalf("deltas = %v, want %v", deltas(entries), want)
	}

	var total recon.Money
	for _, e := range entries {
		total += e.Amount
	}
	if total != 537112 {
		t.Errorf("reconstructed balance = %d, want 537112", total)
	}

	if err := recon.VerifyCreditLedger(observations, entries); err != nil {
		t.Errorf("verification failed: %v", err)
	}
}

func TestNormalize_ZeroStartingBalance_NoOpeningEntry(t *testing.T) {
	entries := recon.NormalizeCreditHistory(0, []recon.Observation{
		obs(1, 10000, "deposit"),
	})
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Amount != 10000 {
		t.Errorf("delta = %d, want 10000", entries[0].Amount)
	}
}

func TestNormalize_OpeningEntryCarriesStartingBalance(t *testing.T) {
	entries := recon.NormalizeCreditHistory(5000, []recon.Observation{
		obs(1, 5000, "unchanged"),
		obs(2, 7000, "deposit"),
	})

	if len(entries) != 2 {
		t.Fatalf("expected opening + one delta, got %d entries", len(entries))
	}
	if entries[0].Amount != 5000 || entries[0].Source != recon.SourceImport {
		t.Errorf("opening entry wrong: %+v", entries[0])
	}
	// The unchanged observation emits nothing but still advances the
	// previous-balance cursor.
	if entries[1].Amount != 2000 {
		t.Errorf("delta = %d, want 2000", entries[1].Amount)
	}
	if !entries[0].Timestamp.Before(entries[1].Timestamp) {
		t.Error("opening entry must sort before the first observation")
	}
}

func TestNormalize_ZeroDeltaSkipped(t *testing.T) {
	entries := recon.NormalizeCreditHistory(0, []recon.Observation{
		obs(1, 3000, "deposit"),
		obs(2, 3000, "restated"),
		obs(3, 1000, "payment"),
	})
	if got := deltas(entries); !reflect.DeepEqual(got, []recon.Money{3000, -2000}) {
		t.Fatalf("deltas = %v", got)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	// Two runs over identical input must produce identical output,
	// including the derived entry ids.

	starting := recon.Money(1234)
	observations := []recon.Observation{
		obs(1, 2000, "deposit"),
		obs(2, 500, "manual conversion"),
	}

	first := recon.NormalizeCreditHistory(starting, observations)
	second := recon.NormalizeCreditHistory(starting, observations)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("normalization is not idempotent:\n%+v\n%+v", first, second)
	}
}

// =============================================================================
// CLASSIFICATION TESTS
// =============================================================================

func TestClassifyNote(t *testing.T) {
	cases := []struct {
		note string
		want recon.EntrySource
	}{
		{"tenant deposit received", recon.SourceTransaction},
		{"rent payment for March", recon.SourceTransaction},
		{"credit used against invoice 88", recon.SourceTransaction},
		{"refund issued to tenant", recon.SourceAdmin},
		{"manual conversion from legacy system", recon.SourceAdmin},
		{"balance adjustment after audit", recon.SourceAdmin},
		{"migrated row 1742", recon.SourceImport},
		{"", recon.SourceImport},
	}
	for _, c := range cases {
		if got := recon.ClassifyNote(c.note); got != c.want {
			t.Errorf("ClassifyNote(%q) = %s, want %s", c.note, got, c.want)
		}
	}
}
