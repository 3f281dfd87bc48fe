/*
dto.go - Data Transfer Objects for API responses

PURPOSE:
  JSON shapes for the inspection API. These decouple the internal domain
  model from the external contract: amounts serialize both as integer
  minor units (authoritative) and a formatted major-unit string (display),
  instants as RFC3339.

NAMING CONVENTION:
  *DTO: Response types returned to clients. The inspection API accepts no
  request bodies, so there are no *Request types.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/warp/recon-engine/recon"
)

// =============================================================================
// RESPONSE TYPES
// =============================================================================

type AccountDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Currency    string `json:"currency"`
	Balance     int64  `json:"balance"`
	Display     string `json:"display"`
	LastUpdated string `json:"lastUpdated,omitempty"`
}

type SnapshotDTO struct {
	FiscalYear int                `json:"fiscalYear"`
	CreatedAt  string             `json:"createdAt"`
	Accounts   []SnapshotEntryDTO `json:"accounts"`
}

type SnapshotEntryDTO struct {
	AccountID string `json:"accountId"`
	Name      string `json:"name"`
	Balance   int64  `json:"balance"`
	Display   string `json:"display"`
}

type CreditLedgerDTO struct {
	UnitID  string           `json:"unitId"`
	Balance int64            `json:"balance"`
	Display string           `json:"display"`
	Entries []CreditEntryDTO `json:"entries"`
}

type CreditEntryDTO struct {
	ID            string `json:"id"`
	Timestamp     string `json:"timestamp"`
	Amount        int64  `json:"amount"`
	Display       string `json:"display"`
	Note          string `json:"note,omitempty"`
	Source        string `json:"source"`
	TransactionID string `json:"transactionId,omitempty"`
}

// RebuildReportDTO is the would-be effect of a rebuild: the API only ever
// runs the dry-run computation, never the commit.
type RebuildReportDTO struct {
	ClientID     string        `json:"clientId"`
	SnapshotYear int           `json:"snapshotYear"`
	Boundary     string        `json:"boundary"`
	ComputedAt   string        `json:"computedAt"`
	DryRun       bool          `json:"dryRun"`
	Accounts     []AccountDTO  `json:"accounts"`
	Processed    int           `json:"processed"`
	Skipped      int           `json:"skipped"`
	Issues       []RunIssueDTO `json:"issues,omitempty"`
}

type RunIssueDTO struct {
	RecordID string `json:"recordId"`
	Reason   string `json:"reason"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func accountDTO(a recon.Account) AccountDTO {
	dto := AccountDTO{
		ID:       string(a.ID),
		Name:     a.Name,
		Type:     string(a.Type),
		Currency: a.Currency,
		Balance:  int64(a.Balance),
		Display:  a.Balance.String(),
	}
	if !a.LastUpdated.IsZero() {
		dto.LastUpdated = a.LastUpdated.String()
	}
	return dto
}

func snapshotDTO(s recon.Snapshot) SnapshotDTO {
	dto := SnapshotDTO{
		FiscalYear: s.FiscalYear,
		CreatedAt:  s.CreatedAt.String(),
		Accounts:   make([]SnapshotEntryDTO, 0, len(s.Entries)),
	}
	for _, e := range s.Entries {
		dto.Accounts = append(dto.Accounts, SnapshotEntryDTO{
			AccountID: string(e.AccountID),
			Name:      e.Name,
			Balance:   int64(e.Balance),
			Display:   e.Balance.String(),
		})
	}
	return dto
}

func creditLedgerDTO(unit recon.UnitID, entries []recon.CreditLedgerEntry) CreditLedgerDTO {
	dto := CreditLedgerDTO{
		UnitID:  string(unit),
		Entries: make([]CreditEntryDTO, 0, len(entries)),
	}
	var balance recon.Money
	for _, e := range entries {
		balance += e.Amount
		dto.Entries = append(dto.Entries, CreditEntryDTO{
			ID:            e.ID,
			Timestamp:     e.Timestamp.String(),
			Amount:        int64(e.Amount),
			Display:       e.Amount.String(),
			Note:          e.Note,
			Source:        string(e.Source),
			TransactionID: string(e.TransactionID),
		})
	}
	dto.Balance = int64(balance)
	dto.Display = balance.String()
	return dto
}

func rebuildReportDTO(r *recon.ReplayResult) RebuildReportDTO {
	dto := RebuildReportDTO{
		ClientID:     string(r.ClientID),
		SnapshotYear: r.SnapshotYear,
		Boundary:     r.Boundary.String(),
		ComputedAt:   r.ComputedAt.String(),
		DryRun:       true,
		Accounts:     make([]AccountDTO, 0, len(r.Accounts)),
		Processed:    r.Summary.Processed,
		Skipped:      r.Summary.Skipped,
	}
	for _, a := range r.Accounts {
		dto.Accounts = append(dto.Accounts, accountDTO(a))
	}
	for _, issue := range r.Summary.Issues {
		dto.Issues = append(dto.Issues, RunIssueDTO{RecordID: issue.RecordID, Reason: issue.Reason})
	}
	return dto
}
