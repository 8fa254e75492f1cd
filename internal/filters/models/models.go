package models

import (
	"strconv"
	"time"

	dErrors "sieve/pkg/domain-errors"
)

// FilterID identifies one filter list. IDs below CustomFilterIDStart belong
// to catalog (built-in) filters; IDs at or above it are user subscriptions.
type FilterID int

// CustomFilterIDStart is the first identifier in the custom filter range.
const CustomFilterIDStart FilterID = 1000

// IsCustom reports whether the filter is a user subscription rather than a
// catalog filter.
func (id FilterID) IsCustom() bool {
	return id >= CustomFilterIDStart
}

// String returns the decimal representation.
func (id FilterID) String() string {
	return strconv.Itoa(int(id))
}

// ParseFilterID creates a FilterID from a string, validating it.
// Returns error if the value is empty, non-numeric or negative.
func ParseFilterID(s string) (FilterID, error) {
	if s == "" {
		return 0, dErrors.New(dErrors.CodeBadRequest, "filter id cannot be empty")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeBadRequest, "filter id must be numeric")
	}
	if n < 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "filter id must not be negative")
	}
	return FilterID(n), nil
}

// UpdatePeriod selects how often installed filters are rechecked.
// Positive values are a fixed interval. Two sentinels exist: list-expiry
// defers to each list's own Expires TTL, disabled turns periodic updates off.
type UpdatePeriod time.Duration

const (
	// UpdatePeriodListExpiry defers staleness to each list's declared TTL.
	UpdatePeriodListExpiry UpdatePeriod = -1
	// UpdatePeriodDisabled switches periodic updates off entirely.
	UpdatePeriodDisabled UpdatePeriod = 0
)

// UseListExpiry reports whether staleness uses per-list TTLs.
func (p UpdatePeriod) UseListExpiry() bool {
	return p == UpdatePeriodListExpiry
}

// Disabled reports whether periodic updating is switched off.
func (p UpdatePeriod) Disabled() bool {
	return p == UpdatePeriodDisabled
}

// Interval returns the fixed recheck interval. Only meaningful when neither
// sentinel applies.
func (p UpdatePeriod) Interval() time.Duration {
	return time.Duration(p)
}

// FilterVersionRecord is the durable version metadata for one filter.
//
// LastCheckTime advances on every remote check attempt; LastUpdateTime only
// when content actually changed. LastCheckTime >= LastUpdateTime always.
type FilterVersionRecord struct {
	FilterID       FilterID  `json:"filter_id"`
	Version        string    `json:"version"`
	Expires        int64     `json:"expires"` // seconds, declared by the list author
	LastUpdateTime time.Time `json:"last_update_time"`
	LastCheckTime  time.Time `json:"last_check_time"`
	DiffPath       string    `json:"diff_path,omitempty"`
}

// SupportsPatching reports whether the list publishes an incremental patch feed.
func (r FilterVersionRecord) SupportsPatching() bool {
	return r.DiffPath != ""
}

// ExpiredAt reports whether the record is stale at the given instant under a
// per-list TTL policy.
func (r FilterVersionRecord) ExpiredAt(now time.Time) bool {
	deadline := r.LastCheckTime.Add(time.Duration(r.Expires) * time.Second)
	return !deadline.After(now)
}

// FilterUpdateTask is the unit of work for one filter in one cycle.
// Force bypasses the patch path and fetches full content unconditionally.
// Not persisted.
type FilterUpdateTask struct {
	FilterID FilterID
	Force    bool
}

// FilterMetadata is the parsed header of a downloaded filter list.
type FilterMetadata struct {
	FilterID    FilterID  `json:"filter_id"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Homepage    string    `json:"homepage,omitempty"`
	Version     string    `json:"version"`
	Expires     int64     `json:"expires"` // seconds
	TimeUpdated time.Time `json:"time_updated"`
	DiffPath    string    `json:"diff_path,omitempty"`
	Checksum    string    `json:"checksum,omitempty"`

	// RuleCount is the number of effective rule lines in the resolved
	// content. Filled by the update pipeline, never parsed from the header.
	RuleCount int `json:"rule_count,omitempty"`
}

// Subscription is the stored metadata for one custom filter.
type Subscription struct {
	FilterID FilterID  `json:"filter_id"`
	URL      string    `json:"url"`
	Title    string    `json:"title,omitempty"`
	Enabled  bool      `json:"enabled"`
	Trusted  bool      `json:"trusted"`
	AddedAt  time.Time `json:"added_at"`
}

// UpdateSettings are the read-only knobs consumed by an update cycle.
type UpdateSettings struct {
	FilteringDisabled bool
	UpdatePeriod      UpdatePeriod
	Optimized         bool
}
