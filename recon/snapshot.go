/*
snapshot.go - Per-fiscal-year balance snapshots

PURPOSE:
  A snapshot freezes a client's account balances at a fiscal-year
  boundary. It is the replay base: current balances are snapshot balances
  plus every transaction dated after the boundary.

LIFECYCLE:
  - Created once per fiscal-year close, read-only thereafter.
  - Rebuilding balances never retroactively edits a past snapshot.
  - When no snapshot exists, GetOrInit synthesizes a zero snapshot and
    reports ErrSnapshotMissing; persisting the synthesized snapshot is an
    explicit, separate write by the caller, never implicit.

SEE ALSO:
  - replay.go: Consumes snapshots as the replay base
  - fiscal.go: Boundary date computation
*/
package recon

import (
	"context"
	"errors"
	"fmt"
)

// SnapshotManager reads and writes per-fiscal-year snapshots.
type SnapshotManager struct {
	Repo *Repo

	// Clock is used for CreatedAt audit stamps. Tests pin it.
	Clock func() Instant
}

func NewSnapshotManager(repo *Repo) *SnapshotManager {
	return &SnapshotManager{Repo: repo, Clock: Now}
}

// GetOrInit returns the snapshot for (client, year). When none exists it
// returns a synthesized zero-balance snapshot over the given accounts and
// ErrSnapshotMissing, so the caller can decide whether to persist it.
func (m *SnapshotManager) GetOrInit(ctx context.Context, clientID ClientID, year int, accounts []Account) (Snapshot, error) {
	snap, err := m.Repo.GetSnapshot(ctx, clientID, year)
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Snapshot{}, err
	}

	synthesized := Snapshot{
		FiscalYear: year,
		CreatedAt:  m.Clock(),
		Entries:    zeroEntries(accounts),
	}
	return synthesized, fmt.Errorf("%w: client %s year %d", ErrSnapshotMissing, clientID, year)
}

// Create persists a snapshot for (client, year). Fails with
// ErrSnapshotExists when one is already present, unless overwrite is
// explicitly requested.
func (m *SnapshotManager) Create(ctx context.Context, clientID ClientID, year int, accounts []Account, overwrite bool) (Snapshot, error) {
	if !overwrite {
		_, err := m.Repo.GetSnapshot(ctx, clientID, year)
		if err == nil {
			return Snapshot{}, fmt.Errorf("%w: client %s year %d", ErrSnapshotExists, clientID, year)
		}
		if !errors.Is(err, ErrNotFound) {
			return Snapshot{}, err
		}
	}

	snap := Snapshot{
		FiscalYear: year,
		CreatedAt:  m.Clock(),
		Entries:    balanceEntries(accounts),
	}
	if err := m.Repo.PutSnapshot(ctx, clientID, snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func zeroEntries(accounts []Account) []SnapshotEntry {
	entries := make([]SnapshotEntry, 0, len(accounts))
	for _, a := range accounts {
		entries = append(entries, SnapshotEntry{AccountID: a.ID, Name: a.Name, Balance: 0})
	}
	return entries
}

func balanceEntries(accounts []Account) []SnapshotEntry {
	entries := make([]SnapshotEntry, 0, len(accounts))
	for _, a := range accounts {
		entries = append(entries, SnapshotEntry{AccountID: a.ID, Name: a.Name, Balance: a.Balance})
	}
	return entries
}
