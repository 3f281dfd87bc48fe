/*
handlers.go - HTTP handlers for the reconciliation inspection API

PURPOSE:
  Exposes the derived financial state over REST for operators and internal
  dashboards. The API is read-only: the only computation it
  triggers is a dry-run rebuild, which performs zero writes. Live commits
  stay behind the operator CLI and its confirmation gate.

ENDPOINTS:
  GET  /api/health
  GET  /api/clients/{clientID}/accounts               Current balances
  GET  /api/clients/{clientID}/snapshots/{year}       Frozen year snapshot
  GET  /api/clients/{clientID}/credit-ledgers/{unitID} Unit credit ledger
  POST /api/clients/{clientID}/rebuild/{year}         Dry-run replay report

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed year or path segment
  - 404: Unknown client, snapshot, or ledger
  - 422: Fatal configuration error surfaced by the engine
  - 500: Store or internal failures

SEE ALSO:
  - dto.go: Response shapes
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/warp/recon-engine/recon"
)

// Handler holds the dependencies for all HTTP handlers. The store handle
// arrives by constructor; there is no ambient global connection.
type Handler struct {
	Repo   *recon.Repo
	Engine *recon.ReplayEngine
	Log    zerolog.Logger
}

// NewHandler creates a handler over the given repo.
func NewHandler(repo *recon.Repo, log zerolog.Logger) *Handler {
	return &Handler{
		Repo:   repo,
		Engine: recon.NewReplayEngine(repo, log),
		Log:    log,
	}
}

// =============================================================================
// HANDLERS
// =============================================================================

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	clientID := recon.ClientID(chi.URLParam(r, "clientID"))

	if _, err := h.Repo.GetClient(r.Context(), clientID); err != nil {
		h.writeError(w, err)
		return
	}
	accounts, err := h.Repo.ListAccounts(r.Context(), clientID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	dtos := make([]AccountDTO, 0, len(accounts))
	for _, a := range accounts {
		dtos = append(dtos, accountDTO(a))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	clientID := recon.ClientID(chi.URLParam(r, "clientID"))
	year, ok := parseYear(w, chi.URLParam(r, "year"))
	if !ok {
		return
	}

	snap, err := h.Repo.GetSnapshot(r.Context(), clientID, year)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotDTO(snap))
}

func (h *Handler) GetCreditLedger(w http.ResponseWriter, r *http.Request) {
	clientID := recon.ClientID(chi.URLParam(r, "clientID"))
	unitID := recon.UnitID(chi.URLParam(r, "unitID"))

	entries, err := h.Repo.GetCreditLedger(r.Context(), clientID, unitID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if len(entries) == 0 {
		h.writeError(w, recon.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, creditLedgerDTO(unitID, entries))
}

// RebuildDryRun runs the full replay computation and returns the would-be
// effect without committing anything.
func (h *Handler) RebuildDryRun(w http.ResponseWriter, r *http.Request) {
	clientID := recon.ClientID(chi.URLParam(r, "clientID"))
	year, ok := parseYear(w, chi.URLParam(r, "year"))
	if !ok {
		return
	}

	result, err := h.Engine.Rebuild(r.Context(), clientID, year)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rebuildReportDTO(result))
}

// =============================================================================
// HELPERS
// =============================================================================

func parseYear(w http.ResponseWriter, raw string) (int, bool) {
	year, err := strconv.Atoi(raw)
	if err != nil || year < 1900 || year > 9999 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid fiscal year: " + raw})
		return 0, false
	}
	return year, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case recon.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case recon.IsFatal(err):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	default:
		h.Log.Error().Err(err).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
