package recon_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/recon-engine/recon"
)

func pinnedSnapshotManager(repo *recon.Repo) *recon.SnapshotManager {
	m := recon.NewSnapshotManager(repo)
	m.Clock = func() recon.Instant { return recon.NewInstant(2026, time.January, 1) }
	return m
}

func TestGetOrInit_ExistingSnapshotReturned(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.PutSnapshot(ctx, "acme", recon.Snapshot{
		FiscalYear: 2025,
		Entries:    []recon.SnapshotEntry{{AccountID: "a1", Name: "Checking", Balance: 5000}},
	}))

	snap, err := pinnedSnapshotManager(repo).GetOrInit(ctx, "acme", 2025, nil)
	require.NoError(t, err)
	assert.Equal(t, recon.Money(5000), snap.Entries[0].Balance)
}

func TestGetOrInit_MissingSnapshotSynthesizedNotPersisted(t *testing.T) {
	// GIVEN: No snapshot for the year
	// THEN:  A zero snapshot over the given accounts comes back together
	//        with ErrSnapshotMissing, and nothing is written

	repo, mem := newTestRepo(t)
	accounts := []recon.Account{
		{ID: "a1", Name: "Checking", Balance: 123456},
		{ID: "a2", Name: "Petty Cash", Balance: 789},
	}

	snap, err := pinnedSnapshotManager(repo).GetOrInit(context.Background(), "acme", 2025, accounts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, recon.ErrSnapshotMissing))

	require.Len(t, snap.Entries, 2)
	for _, e := range snap.Entries {
		assert.Equal(t, recon.Money(0), e.Balance, "synthesized entries are zero regardless of current balance")
	}
	assert.Equal(t, 0, mem.Writes(), "GetOrInit must never persist implicitly")
}

func TestCreateSnapshot_SecondCreateRejected(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	m := pinnedSnapshotManager(repo)
	accounts := []recon.Account{{ID: "a1", Name: "Checking", Balance: 1000}}

	_, err := m.Create(ctx, "acme", 2025, accounts, false)
	require.NoError(t, err)

	_, err = m.Create(ctx, "acme", 2025, accounts, false)
	assert.True(t, errors.Is(err, recon.ErrSnapshotExists))
}

func TestCreateSnapshot_ExplicitOverwriteAllowed(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	m := pinnedSnapshotManager(repo)

	_, err := m.Create(ctx, "acme", 2025, []recon.Account{{ID: "a1", Name: "Checking", Balance: 1000}}, false)
	require.NoError(t, err)
	_, err = m.Create(ctx, "acme", 2025, []recon.Account{{ID: "a1", Name: "Checking", Balance: 2000}}, true)
	require.NoError(t, err)

	snap, err := repo.GetSnapshot(ctx, "acme", 2025)
	require.NoError(t, err)
	assert.Equal(t, recon.Money(2000), snap.Entries[0].Balance)
}

func TestCreateSnapshot_CapturesCurrentBalances(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	snap, err := pinnedSnapshotManager(repo).Create(ctx, "acme", 2024, []recon.Account{
		{ID: "a1", Name: "Checking", Balance: 31337},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, 2024, snap.FiscalYear)
	assert.Equal(t, recon.Money(31337), snap.Entries[0].Balance)
}
