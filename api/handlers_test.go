package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/recon-engine/api"
	"github.com/warp/recon-engine/recon"
	"github.com/warp/recon-engine/recon/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) (*httptest.Server, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	h := api.NewHandler(recon.NewRepo(mem), zerolog.Nop())
	srv := httptest.NewServer(api.NewRouter(h))
	t.Cleanup(srv.Close)
	return srv, mem
}

func seedFixtures(t *testing.T, mem *store.Memory) {
	t.Helper()
	ctx := context.Background()
	repo := recon.NewRepo(mem)

	client := recon.Client{
		ID:               "acme",
		Name:             "Acme Property",
		FiscalStartMonth: 1,
	}
	require.NoError(t, repo.PutClient(ctx, client))
	require.NoError(t, mem.BatchWrite(ctx, repo.AccountOps(client, []recon.Account{
		{ID: "acct-check", Name: "Checking", Type: recon.AccountBank, Currency: "USD", Balance: 100000},
	})))
	require.NoError(t, repo.PutSnapshot(ctx, "acme", recon.Snapshot{
		FiscalYear: 2025,
		CreatedAt:  recon.NewInstant(2026, time.January, 1),
		Entries:    []recon.SnapshotEntry{{AccountID: "acct-check", Name: "Checking", Balance: 100000}},
	}))
	require.NoError(t, repo.ReplaceCreditLedger(ctx, "acme", "1C", []recon.CreditLedgerEntry{
		{ID: "e1", Timestamp: recon.NewInstant(2025, time.June, 1), Amount: 5000, Source: recon.SourceImport},
		{ID: "e2", Timestamp: recon.NewInstant(2025, time.July, 1), Amount: -2000, Note: "rent payment", Source: recon.SourceTransaction},
	}))
	require.NoError(t, repo.SeedTransactions(ctx, "acme", []recon.Transaction{
		{ID: "t1", Date: recon.NewInstant(2026, time.January, 5), Amount: 42000, AccountID: "acct-check"},
	}))
}

func getJSON(t *testing.T, srv *httptest.Server, path string, out any) int {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// =============================================================================
// ENDPOINT TESTS
// =============================================================================

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	var body map[string]string
	status := getJSON(t, srv, "/api/health", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestListAccounts(t *testing.T) {
	srv, mem := newTestServer(t)
	seedFixtures(t, mem)

	var accounts []api.AccountDTO
	status := getJSON(t, srv, "/api/clients/acme/accounts", &accounts)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, accounts, 1)
	assert.Equal(t, "acct-check", accounts[0].ID)
	assert.Equal(t, int64(100000), accounts[0].Balance)
	assert.Equal(t, "1000.00", accounts[0].Display)
}

func TestListAccounts_UnknownClient(t *testing.T) {
	srv, _ := newTestServer(t)
	status := getJSON(t, srv, "/api/clients/ghost/accounts", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestGetSnapshot(t *testing.T) {
	srv, mem := newTestServer(t)
	seedFixtures(t, mem)

	var snap api.SnapshotDTO
	status := getJSON(t, srv, "/api/clients/acme/snapshots/2025", &snap)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2025, snap.FiscalYear)
	require.Len(t, snap.Accounts, 1)
	assert.Equal(t, int64(100000), snap.Accounts[0].Balance)
}

func TestGetSnapshot_MissingYear(t *testing.T) {
	srv, mem := newTestServer(t)
	seedFixtures(t, mem)
	status := getJSON(t, srv, "/api/clients/acme/snapshots/2019", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestGetSnapshot_MalformedYear(t *testing.T) {
	srv, _ := newTestServer(t)
	status := getJSON(t, srv, "/api/clients/acme/snapshots/not-a-year", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestGetCreditLedger(t *testing.T) {
	srv, mem := newTestServer(t)
	seedFixtures(t, mem)

	var ledger api.CreditLedgerDTO
	status := getJSON(t, srv, "/api/clients/acme/credit-ledgers/1C", &ledger)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "1C", ledger.UnitID)
	assert.Equal(t, int64(3000), ledger.Balance)
	require.Len(t, ledger.Entries, 2)
	assert.Equal(t, "transaction", ledger.Entries[1].Source)
}

func TestGetCreditLedger_UnknownUnit(t *testing.T) {
	srv, mem := newTestServer(t)
	seedFixtures(t, mem)
	status := getJSON(t, srv, "/api/clients/acme/credit-ledgers/99Z", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

// =============================================================================
// DRY-RUN REBUILD TESTS
// =============================================================================

func TestRebuildDryRun_ReportsWithoutWriting(t *testing.T) {
	srv, mem := newTestServer(t)
	seedFixtures(t, mem)
	writesBefore := mem.Writes()

	resp, err := http.Post(srv.URL+"/api/clients/acme/rebuild/2025", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report api.RebuildReportDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.True(t, report.DryRun)
	assert.Equal(t, "acme", report.ClientID)
	assert.Equal(t, 1, report.Processed)
	require.Len(t, report.Accounts, 1)
	assert.Equal(t, int64(142000), report.Accounts[0].Balance)

	assert.Equal(t, writesBefore, mem.Writes(), "rebuild endpoint must never commit")
}

func TestRebuildDryRun_MissingSnapshotIsNotFound(t *testing.T) {
	srv, mem := newTestServer(t)
	seedFixtures(t, mem)

	resp, err := http.Post(srv.URL+"/api/clients/acme/rebuild/2019", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
