package api

import (
	"errors"
	"net/http"

	"github.com/perkly/perkly/internal/domain"
)

// classify maps a domain error to an HTTP status and stable error kind.
// Business-rule rejections are 422: the request was well-formed, the
// program rules refused it. A missing rule version is 503 — the program is
// misconfigured, not the caller.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrTierNotFound),
		errors.Is(err, domain.ErrRulesNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInsufficientPoints):
		return http.StatusUnprocessableEntity, "insufficient_points"
	case errors.Is(err, domain.ErrInvalidAdjustment):
		return http.StatusUnprocessableEntity, "invalid_adjustment"
	case errors.Is(err, domain.ErrNoActiveRules):
		return http.StatusServiceUnavailable, "no_active_rules"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
