package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/perkly/perkly/internal/domain"
)

// ─── Query Handlers ─────────────────────────────────────────────────────────
// GET /v1/members                             — paginated member listing
// GET /v1/members/{customerID}                — single account
// GET /v1/members/{customerID}/transactions   — paginated ledger history
// GET /v1/stats                               — program-wide statistics

// handleListMembers pages through loyalty accounts.
// Query params: search, sort, order (asc|desc), offset, limit.
func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sortBy := domain.SortField(q.Get("sort"))
	desc := q.Get("order") != "asc" // descending by default

	list, err := s.reports.ListMembers(r.Context(), q.Get("search"), sortBy, desc, pageFromQuery(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleGetMember returns one customer's account.
func (s *Server) handleGetMember(w http.ResponseWriter, r *http.Request) {
	acct, err := s.reports.Member(r.Context(), chi.URLParam(r, "customerID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

// handleTransactionHistory pages through one customer's ledger.
func (s *Server) handleTransactionHistory(w http.ResponseWriter, r *http.Request) {
	hist, err := s.reports.TransactionHistory(r.Context(), chi.URLParam(r, "customerID"), pageFromQuery(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

// handleStats returns the program-wide statistics snapshot.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.reports.ProgramStats(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
