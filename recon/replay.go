/*
replay.go - Balance reconstruction via snapshot + replay

PURPOSE:
  Recomputes a client's current account balances from ground truth: seed
  each account from its fiscal-year snapshot entry, then replay every
  transaction dated after the snapshot boundary, accumulating signed
  amounts into the resolved account.

ACCOUNT RESOLUTION CASCADE:
  Transactions reference accounts three ways, reflecting id-scheme changes
  over the years:
    1. accountId exact match
    2. account name exact match
    3. legacy account-type keyword ("cash", "bank") via the client's
       configured mapping
  A transaction that resolves through none of them is skipped, counted,
  and listed in the run summary; the run continues.

DETERMINISM:
  Re-running with an identical snapshot and transaction set yields
  bit-identical balances. Accumulation is commutative addition; the
  ascending date ordering only drives the LastUpdated derivation. Only
  the ComputedAt audit stamp depends on the wall clock.

DRY-RUN CONTRACT:
  Rebuild performs the full computation with zero writes. Live runs call
  Rebuild first and Commit only after the same computation succeeds, so
  a dry-run report always equals the live run's pre-commit state.

SEE ALSO:
  - snapshot.go: The replay base
  - fiscal.go: The boundary the replay window opens after
*/
package recon

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// ReplayEngine rebuilds account balances for one client at a time.
// Callers serialize runs per client; the engine does not lock internally.
type ReplayEngine struct {
	Repo  *Repo
	Log   zerolog.Logger
	Clock func() Instant
}

func NewReplayEngine(repo *Repo, log zerolog.Logger) *ReplayEngine {
	return &ReplayEngine{Repo: repo, Log: log, Clock: Now}
}

// ReplayResult is the full would-be effect of a rebuild. Commit persists
// it; dry runs stop here and report it.
type ReplayResult struct {
	ClientID     ClientID
	SnapshotYear int
	Boundary     Instant
	ComputedAt   Instant
	Accounts     []Account
	Summary      RunSummary
}

// Rebuild recomputes balances for the client from the startYear snapshot,
// replaying every transaction after the boundary. Pure computation: no
// writes. A missing snapshot is a fatal ConfigurationError; unresolvable
// transactions are non-fatal skips.
func (e *ReplayEngine) Rebuild(ctx context.Context, clientID ClientID, startYear int) (*ReplayResult, error) {
	return e.rebuild(ctx, clientID, startYear, Instant{})
}

// rebuild optionally caps the replay window at through (inclusive); a zero
// through replays everything after the boundary.
func (e *ReplayEngine) rebuild(ctx context.Context, clientID ClientID, startYear int, through Instant) (*ReplayResult, error) {
	client, err := e.Repo.GetClient(ctx, clientID)
	if err != nil {
		if errors.Is(err, ErrClientNotFound) {
			return nil, &ConfigurationError{Client: clientID, Year: startYear, Resource: "client", Err: err}
		}
		return nil, err
	}

	accounts, err := e.Repo.ListAccounts(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, &ConfigurationError{Client: clientID, Year: startYear, Resource: "accounts", Err: ErrNoAccounts}
	}

	snap, err := e.Repo.GetSnapshot(ctx, clientID, startYear)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &ConfigurationError{Client: clientID, Year: startYear, Resource: "snapshot", Err: err}
		}
		return nil, err
	}

	bounds, err := FiscalYearBounds(startYear, client.FiscalStart())
	if err != nil {
		return nil, err
	}
	boundary := bounds.End

	// Seed balances from the snapshot, matching by id first, then by name.
	// Accounts absent from the snapshot start at zero.
	balances := make(map[AccountID]Money, len(accounts))
	lastTouched := make(map[AccountID]Instant, len(accounts))
	for _, a := range accounts {
		if entry := snap.EntryFor(a.ID, a.Name); entry != nil {
			balances[a.ID] = entry.Balance
		} else {
			balances[a.ID] = 0
		}
	}

	resolver := newAccountResolver(accounts, client.LegacyAccountTypes)

	txns, err := e.Repo.TransactionsAfter(ctx, clientID, boundary)
	if err != nil {
		return nil, err
	}

	summary := RunSummary{}
	for _, txn := range txns {
		if !through.IsZero() && txn.Date.After(through) {
			continue
		}
		accountID, ok := resolver.resolve(txn)
		if !ok {
			summary.Skip(string(txn.ID), fmt.Sprintf("account unresolved (id=%q name=%q type=%q)",
				txn.AccountID, txn.AccountName, txn.AccountType))
			e.Log.Warn().
				Str("client", string(clientID)).
				Str("transaction", string(txn.ID)).
				Msg("skipping transaction with unresolvable account reference")
			continue
		}
		balances[accountID] += txn.Amount
		lastTouched[accountID] = lastTouched[accountID].Max(txn.Date)
		summary.Processed++
	}

	computedAt := e.Clock()
	rebuilt := make([]Account, 0, len(accounts))
	for _, a := range accounts {
		a.Balance = balances[a.ID]
		if touched, ok := lastTouched[a.ID]; ok {
			a.LastUpdated = touched
		}
		rebuilt = append(rebuilt, a)
	}

	e.Log.Info().
		Str("client", string(clientID)).
		Int("snapshotYear", startYear).
		Int("transactions", summary.Processed).
		Int("skipped", summary.Skipped).
		Msg("rebuild computed")

	return &ReplayResult{
		ClientID:     clientID,
		SnapshotYear: startYear,
		Boundary:     boundary,
		ComputedAt:   computedAt,
		Accounts:     rebuilt,
		Summary:      summary,
	}, nil
}

// Commit writes the recomputed account list back in bounded atomic
// batches and tags the client with the snapshot year and computation
// timestamp used. All writes are full overwrites, so re-running after a
// partial failure converges on the same state.
func (e *ReplayEngine) Commit(ctx context.Context, result *ReplayResult) error {
	client, err := e.Repo.GetClient(ctx, result.ClientID)
	if err != nil {
		return err
	}
	client.LastRebuildYear = result.SnapshotYear
	client.LastRebuildAt = result.ComputedAt

	ops := e.Repo.AccountOps(client, result.Accounts)
	if err := WriteChunked(ctx, e.Repo.Store, ops, MaxBatchSize); err != nil {
		return err
	}

	e.Log.Info().
		Str("client", string(result.ClientID)).
		Int("accounts", len(result.Accounts)).
		Msg("rebuild committed")
	return nil
}

// =============================================================================
// ACCOUNT RESOLUTION
// =============================================================================

type accountResolver struct {
	byID   map[AccountID]bool
	byName map[string]AccountID
	legacy map[string]AccountID
}

func newAccountResolver(accounts []Account, legacy map[string]AccountID) *accountResolver {
	r := &accountResolver{
		byID:   make(map[AccountID]bool, len(accounts)),
		byName: make(map[string]AccountID, len(accounts)),
		legacy: make(map[string]AccountID, len(legacy)),
	}
	for _, a := range accounts {
		r.byID[a.ID] = true
		r.byName[a.Name] = a.ID
	}
	for keyword, id := range legacy {
		if r.byID[id] {
			r.legacy[strings.ToLower(keyword)] = id
		}
	}
	return r
}

func (r *accountResolver) resolve(txn Transaction) (AccountID, bool) {
	if txn.AccountID != "" && r.byID[txn.AccountID] {
		return txn.AccountID, true
	}
	if txn.AccountName != "" {
		if id, ok := r.byName[txn.AccountName]; ok {
			return id, true
		}
	}
	if txn.AccountType != "" {
		if id, ok := r.legacy[strings.ToLower(txn.AccountType)]; ok {
			return id, true
		}
	}
	return "", false
}

// =============================================================================
// YEAR CLOSE - Snapshot the replayed balances at a fiscal boundary
// =============================================================================

// CloseYearPreview runs the exact computation CloseYear would commit:
// replay from the startYear snapshot, capped at the closing year's end
// boundary. Pure computation, zero writes, so a dry-run report equals the
// live close's pre-commit state.
func (e *ReplayEngine) CloseYearPreview(ctx context.Context, clientID ClientID, startYear int) (*ReplayResult, error) {
	client, err := e.Repo.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	closingBounds, err := FiscalYearBounds(startYear+1, client.FiscalStart())
	if err != nil {
		return nil, err
	}
	return e.rebuild(ctx, clientID, startYear, closingBounds.End)
}

// CloseYear replays the closing fiscal year from the startYear snapshot,
// capped at the closing year's end boundary, and freezes the result as the
// snapshot for the following fiscal year. The rebuild and the snapshot
// write share one computation, so the frozen balances are exactly the
// replayed ones.
func (e *ReplayEngine) CloseYear(ctx context.Context, snapshots *SnapshotManager, clientID ClientID, startYear int, overwrite bool) (*ReplayResult, Snapshot, error) {
	result, err := e.CloseYearPreview(ctx, clientID, startYear)
	if err != nil {
		return nil, Snapshot{}, err
	}

	// Deterministic ordering for the persisted entry list.
	sorted := make([]Account, len(result.Accounts))
	copy(sorted, result.Accounts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	snap, err := snapshots.Create(ctx, clientID, startYear+1, sorted, overwrite)
	if err != nil {
		return result, Snapshot{}, err
	}
	return result, snap, nil
}
