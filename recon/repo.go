/*
repo.go - Typed accessors over the document store

PURPOSE:
  Translates between domain types and store documents. All field-name and
  encoding knowledge lives here, so the engines above deal only in typed
  values and the adapters below deal only in generic documents.

PATH LAYOUT:
  clients/{clientID}
  clients/{clientID}/accounts/{accountID}
  clients/{clientID}/transactions/{txnID}
  clients/{clientID}/snapshots/{year}
  clients/{clientID}/creditLedgers/{unitID}
  clients/{clientID}/creditLedgers/{unitID}/entries/{entryID}

ENCODING:
  Instants are stored as int64 epoch milliseconds and amounts as int64
  minor units, so both order correctly under generic field comparison.

SEE ALSO:
  - store.go: The generic interface this is built on
  - replay.go, snapshot.go: The engines consuming these accessors
*/
package recon

import (
	"context"
	"fmt"
)

// Repo provides typed access to a client's documents. The store handle is
// constructed once at process start and passed in explicitly; there is no
// ambient global connection.
type Repo struct {
	Store Store
}

func NewRepo(s Store) *Repo {
	return &Repo{Store: s}
}

// =============================================================================
// PATHS
// =============================================================================

func clientPath(id ClientID) string { return "clients/" + string(id) }

func accountsPath(id ClientID) string     { return clientPath(id) + "/accounts" }
func transactionsPath(id ClientID) string { return clientPath(id) + "/transactions" }
func snapshotsPath(id ClientID) string    { return clientPath(id) + "/snapshots" }
func creditLedgerPath(id ClientID, unit UnitID) string {
	return clientPath(id) + "/creditLedgers/" + string(unit)
}

// =============================================================================
// CLIENTS
// =============================================================================

func (r *Repo) GetClient(ctx context.Context, id ClientID) (Client, error) {
	doc, err := r.Store.GetDocument(ctx, clientPath(id))
	if IsNotFound(err) {
		return Client{}, fmt.Errorf("%w: %s", ErrClientNotFound, id)
	}
	if err != nil {
		return Client{}, err
	}
	return clientFromDoc(doc), nil
}

func (r *Repo) PutClient(ctx context.Context, c Client) error {
	return r.Store.BatchWrite(ctx, []WriteOp{{
		Kind:   WriteSet,
		Path:   clientPath(c.ID),
		Fields: clientFields(c),
	}})
}

func clientFields(c Client) map[string]any {
	legacy := map[string]any{}
	for k, v := range c.LegacyAccountTypes {
		legacy[k] = string(v)
	}
	return map[string]any{
		"name":             c.Name,
		"fiscalStartMonth": int64(c.FiscalStartMonth),
		"legacyAccounts":   legacy,
		"lastRebuildYear":  int64(c.LastRebuildYear),
		"lastRebuildAt":    c.LastRebuildAt.UnixMillis(),
	}
}

func clientFromDoc(doc Document) Client {
	c := Client{
		ID:               ClientID(doc.ID()),
		Name:             fieldString(doc, "name"),
		FiscalStartMonth: int(fieldInt(doc, "fiscalStartMonth")),
		LastRebuildYear:  int(fieldInt(doc, "lastRebuildYear")),
		LastRebuildAt:    InstantFromMillis(fieldInt(doc, "lastRebuildAt")),
	}
	if m, ok := doc.Fields["legacyAccounts"].(map[string]any); ok {
		c.LegacyAccountTypes = make(map[string]AccountID, len(m))
		for k, v := range m {
			if s, ok := v.(string); ok {
				c.LegacyAccountTypes[k] = AccountID(s)
			}
		}
	}
	return c
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (r *Repo) ListAccounts(ctx context.Context, id ClientID) ([]Account, error) {
	docs, err := r.Store.Query(ctx, accountsPath(id), nil, &OrderBy{Field: "name"})
	if err != nil {
		return nil, err
	}
	accounts := make([]Account, 0, len(docs))
	for _, d := range docs {
		accounts = append(accounts, accountFromDoc(d))
	}
	return accounts, nil
}

// AccountOps builds the full-overwrite write set for a recomputed account
// list plus the client audit tag. Callers commit it via WriteChunked.
func (r *Repo) AccountOps(c Client, accounts []Account) []WriteOp {
	ops := make([]WriteOp, 0, len(accounts)+1)
	for _, a := range accounts {
		ops = append(ops, WriteOp{
			Kind:   WriteSet,
			Path:   accountsPath(c.ID) + "/" + string(a.ID),
			Fields: accountFields(a),
		})
	}
	ops = append(ops, WriteOp{Kind: WriteSet, Path: clientPath(c.ID), Fields: clientFields(c)})
	return ops
}

func accountFields(a Account) map[string]any {
	return map[string]any{
		"name":        a.Name,
		"type":        string(a.Type),
		"currency":    a.Currency,
		"balance":     int64(a.Balance),
		"lastUpdated": a.LastUpdated.UnixMillis(),
	}
}

func accountFromDoc(doc Document) Account {
	return Account{
		ID:          AccountID(doc.ID()),
		Name:        fieldString(doc, "name"),
		Type:        AccountType(fieldString(doc, "type")),
		Currency:    fieldString(doc, "currency"),
		Balance:     Money(fieldInt(doc, "balance")),
		LastUpdated: InstantFromMillis(fieldInt(doc, "lastUpdated")),
	}
}

// =============================================================================
// TRANSACTIONS (read-only: the log is ground truth)
// =============================================================================

// TransactionsAfter returns all transactions dated strictly after the
// boundary, ordered by date ascending.
func (r *Repo) TransactionsAfter(ctx context.Context, id ClientID, boundary Instant) ([]Transaction, error) {
	docs, err := r.Store.Query(ctx, transactionsPath(id),
		[]Filter{{Field: "date", Op: OpGreater, Value: boundary.UnixMillis()}},
		&OrderBy{Field: "date"})
	if err != nil {
		return nil, err
	}
	txns := make([]Transaction, 0, len(docs))
	for _, d := range docs {
		txns = append(txns, transactionFromDoc(d))
	}
	return txns, nil
}

// SeedTransactions writes transactions in bulk. Used by callers importing
// history and by tests; the reconciliation engines never write here.
func (r *Repo) SeedTransactions(ctx context.Context, id ClientID, txns []Transaction) error {
	ops := make([]WriteOp, 0, len(txns))
	for _, t := range txns {
		ops = append(ops, WriteOp{
			Kind:   WriteSet,
			Path:   transactionsPath(id) + "/" + string(t.ID),
			Fields: transactionFields(t),
		})
	}
	return WriteChunked(ctx, r.Store, ops, MaxBatchSize)
}

func transactionFields(t Transaction) map[string]any {
	return map[string]any{
		"date":        t.Date.UnixMillis(),
		"amount":      int64(t.Amount),
		"accountId":   string(t.AccountID),
		"accountName": t.AccountName,
		"accountType": t.AccountType,
		"categoryId":  t.CategoryID,
		"unitId":      string(t.UnitID),
		"notes":       t.Notes,
	}
}

func transactionFromDoc(doc Document) Transaction {
	return Transaction{
		ID:          TransactionID(doc.ID()),
		Date:        InstantFromMillis(fieldInt(doc, "date")),
		Amount:      Money(fieldInt(doc, "amount")),
		AccountID:   AccountID(fieldString(doc, "accountId")),
		AccountName: fieldString(doc, "accountName"),
		AccountType: fieldString(doc, "accountType"),
		CategoryID:  fieldString(doc, "categoryId"),
		UnitID:      UnitID(fieldString(doc, "unitId")),
		Notes:       fieldString(doc, "notes"),
	}
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

func (r *Repo) GetSnapshot(ctx context.Context, id ClientID, year int) (Snapshot, error) {
	doc, err := r.Store.GetDocument(ctx, fmt.Sprintf("%s/%d", snapshotsPath(id), year))
	if err != nil {
		return Snapshot{}, err
	}
	return snapshotFromDoc(doc), nil
}

func (r *Repo) PutSnapshot(ctx context.Context, id ClientID, s Snapshot) error {
	return r.Store.BatchWrite(ctx, []WriteOp{{
		Kind:   WriteSet,
		Path:   fmt.Sprintf("%s/%d", snapshotsPath(id), s.FiscalYear),
		Fields: snapshotFields(s),
	}})
}

func snapshotFields(s Snapshot) map[string]any {
	entries := make([]any, 0, len(s.Entries))
	for _, e := range s.Entries {
		entries = append(entries, map[string]any{
			"accountId": string(e.AccountID),
			"name":      e.Name,
			"balance":   int64(e.Balance),
		})
	}
	return map[string]any{
		"fiscalYear": int64(s.FiscalYear),
		"accounts":   entries,
		"createdAt":  s.CreatedAt.UnixMillis(),
	}
}

func snapshotFromDoc(doc Document) Snapshot {
	s := Snapshot{
		FiscalYear: int(fieldInt(doc, "fiscalYear")),
		CreatedAt:  InstantFromMillis(fieldInt(doc, "createdAt")),
	}
	if list, ok := doc.Fields["accounts"].([]any); ok {
		for _, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			entry := SnapshotEntry{}
			if v, ok := m["accountId"].(string); ok {
				entry.AccountID = AccountID(v)
			}
			if v, ok := m["name"].(string); ok {
				entry.Name = v
			}
			if v, ok := toFloat(m["balance"]); ok {
				entry.Balance = Money(int64(v))
			}
			s.Entries = append(s.Entries, entry)
		}
	}
	return s
}

// =============================================================================
// CREDIT LEDGERS
// =============================================================================

// GetCreditLedger returns a unit's entries in timestamp order.
func (r *Repo) GetCreditLedger(ctx context.Context, id ClientID, unit UnitID) ([]CreditLedgerEntry, error) {
	docs, err := r.Store.Query(ctx, creditLedgerPath(id, unit)+"/entries", nil, &OrderBy{Field: "timestamp"})
	if err != nil {
		return nil, err
	}
	entries := make([]CreditLedgerEntry, 0, len(docs))
	for _, d := range docs {
		entries = append(entries, creditEntryFromDoc(d))
	}
	return entries, nil
}

// ReplaceCreditLedger rebuilds a unit's ledger wholesale: the existing
// entry tree is purged, then the new entries and the ledger document are
// written in bounded batches. Idempotent regeneration, not incremental
// appends.
func (r *Repo) ReplaceCreditLedger(ctx context.Context, id ClientID, unit UnitID, entries []CreditLedgerEntry) error {
	root := creditLedgerPath(id, unit)
	// An absent tree purges zero documents; that is not an error.
	if _, err := PurgeTree(ctx, r.Store, root, MaxBatchSize); err != nil {
		return err
	}

	var balance Money
	ops := make([]WriteOp, 0, len(entries)+1)
	for _, e := range entries {
		balance += e.Amount
		ops = append(ops, WriteOp{
			Kind:   WriteSet,
			Path:   root + "/entries/" + e.ID,
			Fields: creditEntryFields(e),
		})
	}
	ops = append(ops, WriteOp{
		Kind: WriteSet,
		Path: root,
		Fields: map[string]any{
			"unitId":  string(unit),
			"balance": int64(balance),
			"entries": int64(len(entries)),
		},
	})
	return WriteChunked(ctx, r.Store, ops, MaxBatchSize)
}

func creditEntryFields(e CreditLedgerEntry) map[string]any {
	return map[string]any{
		"timestamp":     e.Timestamp.UnixMillis(),
		"amount":        int64(e.Amount),
		"note":          e.Note,
		"source":        string(e.Source),
		"transactionId": string(e.TransactionID),
	}
}

func creditEntryFromDoc(doc Document) CreditLedgerEntry {
	return CreditLedgerEntry{
		ID:            doc.ID(),
		Timestamp:     InstantFromMillis(fieldInt(doc, "timestamp")),
		Amount:        Money(fieldInt(doc, "amount")),
		Note:          fieldString(doc, "note"),
		Source:        EntrySource(fieldString(doc, "source")),
		TransactionID: TransactionID(fieldString(doc, "transactionId")),
	}
}

// =============================================================================
// FIELD HELPERS
// =============================================================================

func fieldString(doc Document, name string) string {
	s, _ := doc.Fields[name].(string)
	return s
}

func fieldInt(doc Document, name string) int64 {
	if f, ok := toFloat(doc.Fields[name]); ok {
		return int64(f)
	}
	return 0
}
