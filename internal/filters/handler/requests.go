package handler

import (
	"strings"

	"sieve/internal/filters/models"
	dErrors "sieve/pkg/domain-errors"
)

// FilterSelectionRequest is the optional body for POST /filters/update and
// POST /filters/check, narrowing the run to the named filters.
type FilterSelectionRequest struct {
	FilterIDs []int `json:"filter_ids"`

	// Parsed values (populated by Validate)
	parsedIDs []models.FilterID
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *FilterSelectionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	if len(r.FilterIDs) > 1000 {
		return dErrors.New(dErrors.CodeValidation, "filter_ids must name at most 1000 filters")
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
func (r *FilterSelectionRequest) ParsedFilterIDs() []models.FilterID {
	return r.parsedIDs
}

// UpsertSubscriptionRequest is the HTTP request body for
// PUT /filters/subscriptions.
type UpsertSubscriptionRequest struct {
	FilterID int    `json:"filter_id"`
	URL      string `json:"url,omitempty"`
	Title    string `json:"title,omitempty"`
	Enabled  bool   `json:"enabled"`
	Trusted  bool   `json:"trusted,omitempty"`

	// Parsed values (populated by Validate)
	parsedID models.FilterID
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *UpsertSubscriptionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	if r.FilterID <= 0 {
		return dErrors.New(dErrors.CodeValidation, "filter_id must be positive")
	}
	r.parsedID = models.FilterID(r.FilterID)

	r.Title = strings.TrimSpace(r.Title)
	if len(r.Title) > 256 {
		return dErrors.New(dErrors.CodeValidation, "title must be at most 256 characters")
	}

	// Whether a url is required or forbidden depends on the filter range;
	// that check lives in the management service.
	r.URL = strings.TrimSpace(r.URL)
	return nil
}

// Subscription returns the validated request as a domain subscription.
func (r *UpsertSubscriptionRequest) Subscription() models.Subscription {
	return models.Subscription{
		FilterID: r.parsedID,
		URL:      r.URL,
		Title:    r.Title,
		Enabled:  r.Enabled,
		Trusted:  r.Trusted,
	}
}
