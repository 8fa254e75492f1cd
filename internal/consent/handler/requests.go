package handler

import (
	"sieve/internal/filters/models"
	dErrors "sieve/pkg/domain-errors"
)

// GrantConsentRequest is the HTTP request body for POST /consent.
type GrantConsentRequest struct {
	FilterIDs []int `json:"filter_ids"`

	// Parsed values (populated by Validate)
	parsedIDs []models.FilterID
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *GrantConsentRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	if len(r.FilterIDs) == 0 {
		return dErrors.New(dErrors.CodeValidation, "filter_ids is required")
	}

	r.parsedIDs = make([]models.FilterID, 0, len(r.FilterIDs))
	for _, raw := range r.FilterIDs {
		if raw <= 0 {
			return dErrors.New(dErrors.CodeValidation, "filter_ids entries must be positive")
		}
		r.parsedIDs = append(r.parsedIDs, models.FilterID(raw))
	}
	return nil
}

// ParsedFilterIDs returns the validated filter identifiers.
func (r *GrantConsentRequest) ParsedFilterIDs() []models.FilterID {
	return r.parsedIDs
}
