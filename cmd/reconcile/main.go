/*
main.go - Operator CLI for reconciliation batch jobs

PURPOSE:
  The single entry point for every mutating reconciliation operation.
  All commands compute first and commit only on explicit request: the
  default mode is a dry run that performs zero writes and prints the
  full would-be effect.

COMMANDS:
  rebuild          <clientID> <fiscalYear>   Replay balances from snapshot
  close-year       <clientID> <fiscalYear>   Freeze next-year snapshot
  match            <clientID>                Link external records (-records)
  normalize-credit <clientID> <unitID>       Rebuild a unit's credit ledger
  purge            <clientID> <subpath>      Delete a document subtree

COMMON FLAGS:
  -db       SQLite database path (default recon.db)
  -env      Target environment: dev | staging | prod (default dev)
  -execute  Commit writes. Without it every command is a dry run.

ENVIRONMENT GUARD:
  -execute outside dev requires typing the environment name back at the
  prompt. There is no flag to bypass it.

EXIT CODES:
  0  success, including successful dry runs
  1  any fatal error

EXAMPLES:
  # Dry-run a rebuild against staging data
  reconcile rebuild -db=staging.db -env=staging acme 2025

  # Commit it
  reconcile rebuild -db=staging.db -env=staging -execute acme 2025

  # Link a legacy payment export
  reconcile match -records=payments.json -execute acme
*/
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/warp/recon-engine/logger"
	"github.com/warp/recon-engine/recon"
	"github.com/warp/recon-engine/store/sqlite"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		usage()
		return 1
	}
	command, rest := args[0], args[1:]

	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	dbPath := fs.String("db", "recon.db", "SQLite database path")
	env := fs.String("env", "dev", "target environment: dev | staging | prod")
	execute := fs.Bool("execute", false, "commit writes (default is dry run)")
	overwrite := fs.Bool("overwrite", false, "overwrite an existing snapshot (close-year only)")
	recordsPath := fs.String("records", "", "JSON file of external records (match only)")
	obsPath := fs.String("observations", "", "JSON file of balance observations (normalize-credit only)")
	starting := fs.String("starting", "0", "starting balance in major units (normalize-credit only)")
	if err := fs.Parse(rest); err != nil {
		return 1
	}

	log := logger.New()
	ctx := context.Background()

	if *execute {
		if err := confirmEnvironment(*env); err != nil {
			log.Error().Err(err).Msg("aborted")
			return 1
		}
	}

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Error().Err(err).Msg("failed to open store")
		return 1
	}
	defer store.Close()
	repo := recon.NewRepo(store)

	switch command {
	case "rebuild":
		err = runRebuild(ctx, log, repo, fs.Args(), *execute)
	case "close-year":
		err = runCloseYear(ctx, log, repo, fs.Args(), *execute, *overwrite)
	case "match":
		err = runMatch(ctx, log, repo, fs.Args(), *recordsPath, *execute)
	case "normalize-credit":
		err = runNormalizeCredit(ctx, log, repo, fs.Args(), *obsPath, *starting, *execute)
	case "purge":
		err = runPurge(ctx, log, repo, fs.Args(), *execute)
	default:
		usage()
		return 1
	}

	if err != nil {
		log.Error().Err(err).Msg("run failed")
		return 1
	}
	return 0
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: reconcile <command> [flags] <args>

commands:
  rebuild          <clientID> <fiscalYear>
  close-year       <clientID> <fiscalYear>
  match            <clientID>              (-records file.json)
  normalize-credit <clientID> <unitID>     (-observations file.json -starting 66.75)
  purge            <clientID> <subpath>

Every command is a dry run unless -execute is given.`)
}

// confirmEnvironment gates writes outside dev behind a typed confirmation.
func confirmEnvironment(env string) error {
	switch env {
	case "dev":
		return nil
	case "staging", "prod":
	default:
		return fmt.Errorf("unknown environment %q", env)
	}

	fmt.Fprintf(os.Stderr, "About to WRITE to %s. Type %q to continue: ", env, env)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return fmt.Errorf("confirmation failed: %w", err)
	}
	if strings.TrimSpace(line) != env {
		return errors.New("confirmation mismatch")
	}
	return nil
}

// =============================================================================
// REBUILD
// =============================================================================

func runRebuild(ctx context.Context, log zerolog.Logger, repo *recon.Repo, args []string, execute bool) error {
	clientID, year, err := clientYearArgs(args)
	if err != nil {
		return err
	}

	engine := recon.NewReplayEngine(repo, log)
	result, err := engine.Rebuild(ctx, clientID, year)
	if err != nil {
		return err
	}

	printReplayResult(result, execute)

	if !execute {
		return nil
	}
	return engine.Commit(ctx, result)
}

func runCloseYear(ctx context.Context, log zerolog.Logger, repo *recon.Repo, args []string, execute, overwrite bool) error {
	clientID, year, err := clientYearArgs(args)
	if err != nil {
		return err
	}

	engine := recon.NewReplayEngine(repo, log)
	if !execute {
		// Same capped computation the live close would freeze, minus
		// every write.
		result, err := engine.CloseYearPreview(ctx, clientID, year)
		if err != nil {
			return err
		}
		printReplayResult(result, false)
		fmt.Printf("would create snapshot for fiscal year %d\n", year+1)
		return nil
	}

	snapshots := recon.NewSnapshotManager(repo)
	result, snap, err := engine.CloseYear(ctx, snapshots, clientID, year, overwrite)
	if err != nil {
		return err
	}
	printReplayResult(result, true)
	fmt.Printf("created snapshot for fiscal year %d (%d accounts)\n", snap.FiscalYear, len(snap.Entries))
	return nil
}

func printReplayResult(r *recon.ReplayResult, committed bool) {
	mode := "DRY RUN"
	if committed {
		mode = "EXECUTE"
	}
	fmt.Printf("[%s] rebuild of client %s from fiscal year %d snapshot\n", mode, r.ClientID, r.SnapshotYear)
	for _, a := range r.Accounts {
		fmt.Printf("  %-24s %12s %s\n", a.Name, a.Balance, a.Currency)
	}
	fmt.Printf("  transactions applied: %d, skipped: %d\n", r.Summary.Processed, r.Summary.Skipped)
	for _, issue := range r.Summary.Issues {
		fmt.Printf("    skipped %s: %s\n", issue.RecordID, issue.Reason)
	}
}

// =============================================================================
// MATCH
// =============================================================================

// externalRecordJSON is the wire shape of a legacy record export. Amounts
// arrive as decimal major-unit strings and are converted exactly.
type externalRecordJSON struct {
	UnitID string `json:"unitId"`
	Date   string `json:"date"`
	Amount string `json:"amount"`
	Notes  string `json:"notes"`
}

func runMatch(ctx context.Context, log zerolog.Logger, repo *recon.Repo, args []string, recordsPath string, execute bool) error {
	if len(args) < 1 {
		return errors.New("match: missing clientID")
	}
	if recordsPath == "" {
		return errors.New("match: -records is required")
	}
	clientID := recon.ClientID(args[0])

	raw, err := os.ReadFile(recordsPath)
	if err != nil {
		return err
	}
	var rawRecords []externalRecordJSON
	if err := json.Unmarshal(raw, &rawRecords); err != nil {
		return fmt.Errorf("parse %s: %w", recordsPath, err)
	}

	txns, err := repo.TransactionsAfter(ctx, clientID, recon.InstantFromMillis(0))
	if err != nil {
		return err
	}

	matcher := recon.NewMatcher()
	summary := recon.RunSummary{}
	var linkOps []recon.WriteOp

	for i, rr := range rawRecords {
		recordID := fmt.Sprintf("record-%d", i)

		record, err := parseExternalRecord(rr)
		if err != nil {
			summary.Skip(recordID, err.Error())
			continue
		}

		result, err := matcher.Match(txns, record)
		if errors.Is(err, recon.ErrNoMatch) {
			summary.Skip(recordID, "no matching transaction")
			continue
		}
		if err != nil {
			return err
		}

		summary.Processed++
		fmt.Printf("%s -> %s (tier %s, confidence %s)\n",
			recordID, result.Transaction.ID, result.Tier, result.Tier.Confidence())

		linkOps = append(linkOps, recon.WriteOp{
			Kind: recon.WriteSet,
			Path: fmt.Sprintf("clients/%s/recordLinks/%s", clientID, result.Transaction.ID),
			Fields: map[string]any{
				"unitId":     string(record.UnitID),
				"recordDate": record.Date.UnixMillis(),
				"amount":     int64(record.Amount),
				"tier":       result.Tier.String(),
				"confidence": result.Tier.Confidence(),
			},
		})
	}

	fmt.Printf("matched: %d, unmatched/skipped: %d\n", summary.Processed, summary.Skipped)
	for _, issue := range summary.Issues {
		fmt.Printf("  %s: %s\n", issue.RecordID, issue.Reason)
	}

	if !execute {
		fmt.Printf("[DRY RUN] %d link(s) not written\n", len(linkOps))
		return nil
	}
	if err := recon.WriteChunked(ctx, repo.Store, linkOps, recon.MaxBatchSize); err != nil {
		return err
	}
	log.Info().Int("links", len(linkOps)).Msg("record links committed")
	return nil
}

func parseExternalRecord(rr externalRecordJSON) (recon.ExternalRecord, error) {
	date, err := recon.ParseInstant(rr.Date)
	if err != nil {
		return recon.ExternalRecord{}, err
	}
	amount, err := recon.ParseMoney(rr.Amount)
	if err != nil {
		return recon.ExternalRecord{}, err
	}
	return recon.ExternalRecord{
		UnitID:   recon.UnitID(rr.UnitID),
		Date:     date,
		Amount:   amount,
		RawNotes: rr.Notes,
	}, nil
}

// =============================================================================
// NORMALIZE CREDIT
// =============================================================================

type observationJSON struct {
	Balance   string `json:"balance"` // absolute balance, major units
	Timestamp string `json:"timestamp"`
	Note      string `json:"note"`
}

func runNormalizeCredit(ctx context.Context, log zerolog.Logger, repo *recon.Repo, args []string, obsPath, starting string, execute bool) error {
	if len(args) < 2 {
		return errors.New("normalize-credit: missing clientID or unitID")
	}
	if obsPath == "" {
		return errors.New("normalize-credit: -observations is required")
	}
	clientID := recon.ClientID(args[0])
	unitID := recon.UnitID(args[1])

	startingBalance, err := recon.ParseMoney(starting)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(obsPath)
	if err != nil {
		return err
	}
	var rawObs []observationJSON
	if err := json.Unmarshal(raw, &rawObs); err != nil {
		return fmt.Errorf("parse %s: %w", obsPath, err)
	}

	observations := make([]recon.Observation, 0, len(rawObs))
	for _, ro := range rawObs {
		balance, err := recon.ParseMoney(ro.Balance)
		if err != nil {
			return err
		}
		ts, err := recon.ParseInstant(ro.Timestamp)
		if err != nil {
			return err
		}
		observations = append(observations, recon.Observation{
			AbsoluteBalance: balance,
			Timestamp:       ts,
			Note:            ro.Note,
		})
	}

	entries := recon.NormalizeCreditHistory(startingBalance, observations)
	if err := recon.VerifyCreditLedger(observations, entries); err != nil {
		return err
	}

	fmt.Printf("unit %s: %d delta entries\n", unitID, len(entries))
	for _, e := range entries {
		fmt.Printf("  %s %12s %-11s %s\n", e.Timestamp, e.Amount, e.Source, e.Note)
	}

	if !execute {
		fmt.Println("[DRY RUN] ledger not written")
		return nil
	}
	if err := repo.ReplaceCreditLedger(ctx, clientID, unitID, entries); err != nil {
		return err
	}
	log.Info().Str("unit", string(unitID)).Int("entries", len(entries)).Msg("credit ledger rebuilt")
	return nil
}

// =============================================================================
// PURGE
// =============================================================================

func runPurge(ctx context.Context, log zerolog.Logger, repo *recon.Repo, args []string, execute bool) error {
	if len(args) < 2 {
		return errors.New("purge: missing clientID or subpath")
	}
	root := fmt.Sprintf("clients/%s/%s", args[0], strings.Trim(args[1], "/"))

	if !execute {
		subs, err := repo.Store.ListSubcollections(ctx, root)
		if err != nil {
			return err
		}
		fmt.Printf("[DRY RUN] would purge subtree at %s (subcollections: %s)\n", root, strings.Join(subs, ", "))
		return nil
	}

	deleted, err := recon.PurgeTree(ctx, repo.Store, root, recon.MaxBatchSize)
	if err != nil {
		return err
	}
	log.Info().Str("root", root).Int("deleted", deleted).Msg("subtree purged")
	return nil
}

// =============================================================================
// ARG HELPERS
// =============================================================================

func clientYearArgs(args []string) (recon.ClientID, int, error) {
	if len(args) < 2 {
		return "", 0, errors.New("missing clientID or fiscalYear")
	}
	year, err := strconv.Atoi(args[1])
	if err != nil {
		return "", 0, fmt.Errorf("invalid fiscal year %q", args[1])
	}
	return recon.ClientID(args[0]), year, nil
}
