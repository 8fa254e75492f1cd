package handler

import (
	"time"

	"sieve/internal/filters/models"
)

// UpdateResponse is the HTTP response for POST /filters/update and
// POST /filters/check. It lists the filters whose content changed.
type UpdateResponse struct {
	Updated []FilterMetadataResponse `json:"updated"`
}

// FilterMetadataResponse is one updated filter in an update response.
type FilterMetadataResponse struct {
	FilterID    int       `json:"filter_id"`
	Title       string    `json:"title,omitempty"`
	Version     string    `json:"version"`
	RuleCount   int       `json:"rule_count"`
	TimeUpdated time.Time `json:"time_updated"`
}

// FromMetadata converts updated filter metadata to an HTTP response.
func FromMetadata(metas []models.FilterMetadata) *UpdateResponse {
	out := make([]FilterMetadataResponse, 0, len(metas))
	for _, m := range metas {
		out = append(out, FilterMetadataResponse{
			FilterID:    int(m.FilterID),
			Title:       m.Title,
			Version:     m.Version,
			RuleCount:   m.RuleCount,
			TimeUpdated: m.TimeUpdated,
		})
	}
	return &UpdateResponse{Updated: out}
}

// VersionsResponse is the HTTP response for GET /filters/versions.
type VersionsResponse struct {
	Versions []VersionRecordResponse `json:"versions"`
}

// VersionRecordResponse is one filter's stored version metadata.
type VersionRecordResponse struct {
	FilterID       int       `json:"filter_id"`
	Version        string    `json:"version"`
	Expires        int64     `json:"expires"`
	LastUpdateTime time.Time `json:"last_update_time"`
	LastCheckTime  time.Time `json:"last_check_time"`
	SupportsPatch  bool      `json:"supports_patch"`
}

// FromVersionRecords converts stored version records to an HTTP response.
func FromVersionRecords(records []models.FilterVersionRecord) *VersionsResponse {
	out := make([]VersionRecordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, VersionRecordResponse{
			FilterID:       int(r.FilterID),
			Version:        r.Version,
			Expires:        r.Expires,
			LastUpdateTime: r.LastUpdateTime,
			LastCheckTime:  r.LastCheckTime,
			SupportsPatch:  r.SupportsPatching(),
		})
	}
	return &VersionsResponse{Versions: out}
}

// SubscriptionsResponse is the HTTP response for GET /filters/subscriptions.
type SubscriptionsResponse struct {
	Subscriptions []SubscriptionResponse `json:"subscriptions"`
}

// SubscriptionResponse is one installed filter subscription.
type SubscriptionResponse struct {
	FilterID int       `json:"filter_id"`
	URL      string    `json:"url,omitempty"`
	Title    string    `json:"title,omitempty"`
	Enabled  bool      `json:"enabled"`
	Trusted  bool      `json:"trusted"`
	AddedAt  time.Time `json:"added_at"`
}

// FromSubscription converts one subscription to its response form.
func FromSubscription(sub models.Subscription) SubscriptionResponse {
	return SubscriptionResponse{
		FilterID: int(sub.FilterID),
		URL:      sub.URL,
		Title:    sub.Title,
		Enabled:  sub.Enabled,
		Trusted:  sub.Trusted,
		AddedAt:  sub.AddedAt,
	}
}

// FromSubscriptions converts the subscription list to an HTTP response.
func FromSubscriptions(subs []models.Subscription) *SubscriptionsResponse {
	out := make([]SubscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		out = append(out, FromSubscription(sub))
	}
	return &SubscriptionsResponse{Subscriptions: out}
}
