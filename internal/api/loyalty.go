package api

import (
	"encoding/json"
	"net/http"

	"github.com/perkly/perkly/internal/app/ledger"
	"github.com/perkly/perkly/internal/domain"
)

// ─── Ledger Handlers ────────────────────────────────────────────────────────
// POST /v1/loyalty/earn               — credit points for a purchase
// POST /v1/loyalty/redeem             — convert points into a discount
// POST /v1/loyalty/redemption-preview — advisory quote, no state change
// POST /v1/loyalty/adjust             — manual administrative adjustment

type orderRefRequest struct {
	ReferenceType string `json:"reference_type,omitempty"`
	ReferenceID   string `json:"reference_id,omitempty"`
}

func (o orderRefRequest) toRef() *ledger.OrderRef {
	if o.ReferenceID == "" {
		return nil
	}
	return &ledger.OrderRef{Type: o.ReferenceType, ID: o.ReferenceID}
}

type earnRequest struct {
	CustomerID string `json:"customer_id"`
	Amount     int64  `json:"amount"`
	orderRefRequest
}

// handleEarn credits points for a purchase amount.
func (s *Server) handleEarn(w http.ResponseWriter, r *http.Request) {
	var req earnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid JSON body")
		return
	}

	res, err := s.engine.Earn(r.Context(), req.CustomerID, req.Amount, req.toRef())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type redeemRequest struct {
	CustomerID  string `json:"customer_id"`
	Points      int64  `json:"points"`
	OrderAmount int64  `json:"order_amount,omitempty"`
	orderRefRequest
}

// handleRedeem converts points into a discount amount.
func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid JSON body")
		return
	}

	res, err := s.engine.Redeem(r.Context(), req.CustomerID, req.Points, req.OrderAmount, req.toRef())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type previewRequest struct {
	CustomerID     string `json:"customer_id"`
	OrderAmount    int64  `json:"order_amount"`
	PointsToRedeem int64  `json:"points_to_redeem,omitempty"`
}

// handleRedemptionPreview quotes a redemption without mutating state.
func (s *Server) handleRedemptionPreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid JSON body")
		return
	}

	res, err := s.engine.CalculateRedemption(r.Context(), req.CustomerID, req.OrderAmount, req.PointsToRedeem)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type adjustRequest struct {
	CustomerID     string `json:"customer_id"`
	Points         int64  `json:"points"`
	AdjustmentType string `json:"adjustment_type"`
	Reason         string `json:"reason"`
	Actor          string `json:"actor,omitempty"`
}

// handleAdjust applies a manual administrative adjustment.
func (s *Server) handleAdjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid JSON body")
		return
	}

	res, err := s.engine.Adjust(r.Context(), req.CustomerID, req.Points,
		domain.TransactionType(req.AdjustmentType), req.Reason, req.Actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
