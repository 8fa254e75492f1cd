package handler

import (
	"sieve/internal/filters/models"
)

// ConsentSetResponse is the HTTP response for GET and POST /consent. It
// carries the full consent set, sorted.
type ConsentSetResponse struct {
	FilterIDs []int `json:"filter_ids"`
}

// FromConsentSet converts the consent set to an HTTP response.
func FromConsentSet(ids []models.FilterID) *ConsentSetResponse {
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		out = append(out, int(id))
	}
	return &ConsentSetResponse{FilterIDs: out}
}
