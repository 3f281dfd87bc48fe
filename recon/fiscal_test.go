package recon_test

import (
	"errors"
	"testing"
	"time"

	"github.com/warp/recon-engine/recon"
)

// =============================================================================
// MONTH MAPPING TESTS
// =============================================================================

func TestMonthMapping_MutualInverse_AllPairs(t *testing.T) {
	// GIVEN: Every (month, fiscalStartMonth) pair
	// THEN: calendar->fiscal->calendar round-trips, and so does the reverse

	for start := 1; start <= 12; start++ {
		for month := 1; month <= 12; month++ {
			fiscal, err := recon.CalendarToFiscalMonth(month, start)
			if err != nil {
				t.Fatalf("CalendarToFiscalMonth(%d, %d): %v", month, start, err)
			}
			if fiscal < 1 || fiscal > 12 {
				t.Fatalf("fiscal month out of range: %d", fiscal)
			}

			back, err := recon.FiscalToCalendarMonth(fiscal, start)
			if err != nil {
				t.Fatalf("FiscalToCalendarMonth(%d, %d): %v", fiscal, start, err)
			}
			if back != month {
				t.Errorf("round trip (month=%d, start=%d): got %d", month, start, back)
			}
		}
	}
}

func TestMonthMapping_FiscalMonthOneIsStartMonth(t *testing.T) {
	for start := 1; start <= 12; start++ {
		fiscal, err := recon.CalendarToFiscalMonth(start, start)
		if err != nil {
			t.Fatal(err)
		}
		if fiscal != 1 {
			t.Errorf("start month %d should map to fiscal month 1, got %d", start, fiscal)
		}
	}
}

func TestMonthMapping_OutOfRange(t *testing.T) {
	cases := []struct{ month, start int }{
		{0, 7}, {13, 7}, {5, 0}, {5, 13}, {-1, 1},
	}
	for _, c := range cases {
		if _, err := recon.CalendarToFiscalMonth(c.month, c.start); !errors.Is(err, recon.ErrInvalidMonth) {
			t.Errorf("CalendarToFiscalMonth(%d, %d): expected ErrInvalidMonth, got %v", c.month, c.start, err)
		}
		if _, err := recon.FiscalToCalendarMonth(c.month, c.start); !errors.Is(err, recon.ErrInvalidMonth) {
			t.Errorf("FiscalToCalendarMonth(%d, %d): expected ErrInvalidMonth, got %v", c.month, c.start, err)
		}
	}
}

// =============================================================================
// FISCAL YEAR TESTS
// =============================================================================

func TestFiscalYearOf_CalendarYearCase(t *testing.T) {
	// GIVEN: fiscalStartMonth = 1
	// THEN: fiscal year == calendar year for any date

	dates := []recon.Instant{
		recon.NewInstant(2024, time.January, 1),
		recon.NewInstant(2024, time.June, 15),
		recon.NewInstant(2024, time.December, 31),
	}
	for _, d := range dates {
		year, err := recon.FiscalYearOf(d, 1)
		if err != nil {
			t.Fatal(err)
		}
		if year != 2024 {
			t.Errorf("FiscalYearOf(%s, 1) = %d, want 2024", d, year)
		}
	}
}

func TestFiscalYearOf_NamedForEndingYear(t *testing.T) {
	// GIVEN: fiscalStartMonth = 7 (July-June fiscal year)
	// THEN: the year is named for the calendar year in which it ends

	cases := []struct {
		date recon.Instant
		want int
	}{
		{recon.NewInstant(2024, time.July, 1), 2025},
		{recon.NewInstant(2024, time.June, 30), 2024},
		{recon.NewInstant(2024, time.December, 31), 2025},
		{recon.NewInstant(2025, time.January, 1), 2025},
	}
	for _, c := range cases {
		year, err := recon.FiscalYearOf(c.date, 7)
		if err != nil {
			t.Fatal(err)
		}
		if year != c.want {
			t.Errorf("FiscalYearOf(%s, 7) = %d, want %d", c.date, year, c.want)
		}
	}
}

func TestFiscalYearBounds_JulyStart(t *testing.T) {
	bounds, err := recon.FiscalYearBounds(2025, 7)
	if err != nil {
		t.Fatal(err)
	}
	if !bounds.Start.Equal(recon.NewInstant(2024, time.July, 1)) {
		t.Errorf("start = %s, want 2024-07-01", bounds.Start)
	}
	// End is the final millisecond of June 30 2025.
	if !bounds.End.AddMillis(1).Equal(recon.NewInstant(2025, time.July, 1)) {
		t.Errorf("end = %s, want last ms of 2025-06-30", bounds.End)
	}
}

func TestFiscalYearBounds_JanuaryStart(t *testing.T) {
	bounds, err := recon.FiscalYearBounds(2025, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !bounds.Start.Equal(recon.NewInstant(2025, time.January, 1)) {
		t.Errorf("start = %s, want 2025-01-01", bounds.Start)
	}
	if !bounds.End.AddMillis(1).Equal(recon.NewInstant(2026, time.January, 1)) {
		t.Errorf("end = %s, want last ms of 2025-12-31", bounds.End)
	}
}

func TestFiscalYearBounds_ContainmentAgreesWithMembership(t *testing.T) {
	// Every day of fiscal year 2025 (start month 4) must report membership
	// in that year, and its boundary days' neighbors must not.

	bounds, err := recon.FiscalYearBounds(2025, 4)
	if err != nil {
		t.Fatal(err)
	}

	inYear, _ := recon.FiscalYearOf(bounds.Start, 4)
	if inYear != 2025 {
		t.Errorf("start day reports fiscal year %d", inYear)
	}
	before, _ := recon.FiscalYearOf(bounds.Start.AddDays(-1), 4)
	if before != 2024 {
		t.Errorf("day before start reports fiscal year %d", before)
	}
	after, _ := recon.FiscalYearOf(bounds.End.AddMillis(1), 4)
	if after != 2026 {
		t.Errorf("day after end reports fiscal year %d", after)
	}
}

// =============================================================================
// QUARTER TESTS
// =============================================================================

func TestFiscalQuarter(t *testing.T) {
	want := map[int]int{
		1: 1, 2: 1, 3: 1,
		4: 2, 5: 2, 6: 2,
		7: 3, 8: 3, 9: 3,
		10: 4, 11: 4, 12: 4,
	}
	for month, quarter := range want {
		got, err := recon.FiscalQuarter(month)
		if err != nil {
			t.Fatal(err)
		}
		if got != quarter {
			t.Errorf("FiscalQuarter(%d) = %d, want %d", month, got, quarter)
		}
	}

	if _, err := recon.FiscalQuarter(13); !errors.Is(err, recon.ErrInvalidMonth) {
		t.Errorf("expected ErrInvalidMonth, got %v", err)
	}
}
