/*
fiscal.go - Fiscal-calendar arithmetic

PURPOSE:
  Pure date math mapping calendar months onto an organization-defined
  fiscal calendar: month translation in both directions, fiscal-year
  membership, fiscal-year boundary dates, and quarters.

NAMING CONVENTION:
  When the fiscal year does not start in January, it is named for the
  calendar year in which it ENDS. With fiscalStartMonth = 7:

    Jul 1 2024 .. Jun 30 2025  ->  fiscal year 2025

  With fiscalStartMonth = 1, fiscal year == calendar year.

CONTRACT:
  No I/O, no logging, no side effects; safe for concurrent use. All
  outputs depend only on inputs. Out-of-range months fail with
  ErrInvalidMonth rather than wrapping around silently.

SEE ALSO:
  - snapshot.go: Uses year bounds to key snapshots
  - replay.go: Uses the year-end boundary as the replay window start
*/
package recon

import (
	"fmt"
	"time"
)

// =============================================================================
// MONTH MAPPING
// =============================================================================

// CalendarToFiscalMonth maps a calendar month to its fiscal month.
// Fiscal month 1 corresponds to fiscalStartMonth.
func CalendarToFiscalMonth(calendarMonth, fiscalStartMonth int) (int, error) {
	if err := checkMonth(calendarMonth); err != nil {
		return 0, err
	}
	if err := checkMonth(fiscalStartMonth); err != nil {
		return 0, err
	}
	return (calendarMonth-fiscalStartMonth+12)%12 + 1, nil
}

// FiscalToCalendarMonth is the exact inverse of CalendarToFiscalMonth for
// all valid inputs.
func FiscalToCalendarMonth(fiscalMonth, fiscalStartMonth int) (int, error) {
	if err := checkMonth(fiscalMonth); err != nil {
		return 0, err
	}
	if err := checkMonth(fiscalStartMonth); err != nil {
		return 0, err
	}
	return (fiscalMonth-1+fiscalStartMonth-1)%12 + 1, nil
}

// FiscalQuarter returns the quarter (1-4) containing a fiscal month.
func FiscalQuarter(fiscalMonth int) (int, error) {
	if err := checkMonth(fiscalMonth); err != nil {
		return 0, err
	}
	return (fiscalMonth + 2) / 3, nil
}

// =============================================================================
// FISCAL YEAR MEMBERSHIP AND BOUNDS
// =============================================================================

// FiscalYearOf returns the fiscal year containing the given instant.
func FiscalYearOf(date Instant, fiscalStartMonth int) (int, error) {
	if err := checkMonth(fiscalStartMonth); err != nil {
		return 0, err
	}
	if fiscalStartMonth == 1 {
		return date.Year(), nil
	}
	if int(date.Month()) >= fiscalStartMonth {
		return date.Year() + 1, nil
	}
	return date.Year(), nil
}

// YearBounds delimits one fiscal year: Start is midnight on the first day
// of the start month, End is the final millisecond of the last day.
type YearBounds struct {
	Start Instant
	End   Instant
}

// FiscalYearBounds returns the boundary instants of a fiscal year.
// The replay window for transactions after the year opens at End + 1ms.
func FiscalYearBounds(fiscalYear, fiscalStartMonth int) (YearBounds, error) {
	if err := checkMonth(fiscalStartMonth); err != nil {
		return YearBounds{}, err
	}

	startYear := fiscalYear - 1
	if fiscalStartMonth == 1 {
		startYear = fiscalYear
	}

	start := NewInstant(startYear, time.Month(fiscalStartMonth), 1)
	// First day of the following fiscal year, minus one millisecond.
	end := NewInstant(startYear+1, time.Month(fiscalStartMonth), 1).AddMillis(-1)

	return YearBounds{Start: start, End: end}, nil
}

func checkMonth(m int) error {
	if m < 1 || m > 12 {
		return fmt.Errorf("%w: %d", ErrInvalidMonth, m)
	}
	return nil
}
