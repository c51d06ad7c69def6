package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/perkly/perkly/internal/app/tiers"
	"github.com/perkly/perkly/internal/domain"
)

// ─── Admin Handlers ─────────────────────────────────────────────────────────
// Thin configuration surface for an admin-only caller; authorization
// itself lives outside the engine.
//
// GET  /v1/admin/rules        — list rule versions, newest first
// POST /v1/admin/rules        — create a version (closes the active one)
// GET  /v1/admin/tiers        — list the tier catalog
// POST /v1/admin/tiers        — create a tier
// PUT  /v1/admin/tiers/{code} — update non-threshold tier fields

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	versions, err := s.rules.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rule_versions": versions})
}

type createRulesRequest struct {
	PointsPerCurrency    float64    `json:"points_per_currency"`
	EarningRoundMode     string     `json:"earning_round_mode"`
	RedemptionRate       int64      `json:"redemption_rate"`
	MaxRedemptionPercent int        `json:"max_redemption_percent"`
	MinRedemptionPoints  int64      `json:"min_redemption_points"`
	AllowTierDowngrade   bool       `json:"allow_tier_downgrade"`
	TierEvaluationBasis  string     `json:"tier_evaluation_basis"`
	IsActive             bool       `json:"is_active"`
	EffectiveFrom        *time.Time `json:"effective_from,omitempty"`
	EffectiveTo          *time.Time `json:"effective_to,omitempty"`
	Notes                string     `json:"notes,omitempty"`
}

func (s *Server) handleCreateRules(w http.ResponseWriter, r *http.Request) {
	var req createRulesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid JSON body")
		return
	}

	rv := domain.RuleVersion{
		PointsPerCurrency:    req.PointsPerCurrency,
		EarningRoundMode:     domain.RoundMode(req.EarningRoundMode),
		RedemptionRate:       req.RedemptionRate,
		MaxRedemptionPercent: req.MaxRedemptionPercent,
		MinRedemptionPoints:  req.MinRedemptionPoints,
		AllowTierDowngrade:   req.AllowTierDowngrade,
		TierEvaluationBasis:  domain.EvaluationBasis(req.TierEvaluationBasis),
		IsActive:             req.IsActive,
		EffectiveTo:          req.EffectiveTo,
		Notes:                req.Notes,
	}
	if req.EffectiveFrom != nil {
		rv.EffectiveFrom = *req.EffectiveFrom
	}

	created, err := s.rules.Create(r.Context(), rv)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListTiers(w http.ResponseWriter, r *http.Request) {
	catalog, err := s.tiers.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tiers": catalog})
}

type createTierRequest struct {
	Code             string            `json:"code"`
	Name             string            `json:"name"`
	DisplayOrder     int               `json:"display_order"`
	MinPoints        int64             `json:"min_points"`
	MinTotalSpend    *int64            `json:"min_total_spend,omitempty"`
	PointsMultiplier float64           `json:"points_multiplier"`
	Benefits         map[string]string `json:"benefits,omitempty"`
	IsActive         *bool             `json:"is_active,omitempty"`
}

func (s *Server) handleCreateTier(w http.ResponseWriter, r *http.Request) {
	var req createTierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid JSON body")
		return
	}

	t := domain.Tier{
		Code:             req.Code,
		Name:             req.Name,
		DisplayOrder:     req.DisplayOrder,
		MinPoints:        req.MinPoints,
		MinTotalSpend:    req.MinTotalSpend,
		PointsMultiplier: req.PointsMultiplier,
		Benefits:         req.Benefits,
		IsActive:         true,
	}
	if req.IsActive != nil {
		t.IsActive = *req.IsActive
	}

	created, err := s.tiers.Create(r.Context(), t)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type updateTierRequest struct {
	Name     *string           `json:"name,omitempty"`
	Benefits map[string]string `json:"benefits,omitempty"`
	IsActive *bool             `json:"is_active,omitempty"`
}

func (s *Server) handleUpdateTier(w http.ResponseWriter, r *http.Request) {
	var req updateTierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid JSON body")
		return
	}

	updated, err := s.tiers.Update(r.Context(), chi.URLParam(r, "code"), tiers.Update{
		Name:     req.Name,
		Benefits: req.Benefits,
		IsActive: req.IsActive,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
