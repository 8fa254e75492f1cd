// Package events holds the wire contract between the filter updater and the
// rule-compilation engine. It is a separate module so engine deployments can
// depend on the schema without importing the updater itself.
package events

import "time"

// SchemaVersion identifies the current EngineUpdate schema. Consumers should
// ignore events with a major version they do not understand.
const SchemaVersion = "1.0"

// TopicEngineUpdates is the default topic the updater publishes to.
const TopicEngineUpdates = "sieve.engine.updates"

// EngineUpdate tells the engine that new filter content is available and a
// rebuild should be scheduled. One event may cover several filters: the
// updater coalesces rapid successive updates before publishing.
type EngineUpdate struct {
	SchemaVersion string    `json:"schema_version"`
	RequestedAt   time.Time `json:"requested_at"`
	FilterIDs     []int     `json:"filter_ids"`
}

// NewEngineUpdate builds an EngineUpdate with the current schema version.
func NewEngineUpdate(requestedAt time.Time, filterIDs []int) EngineUpdate {
	return EngineUpdate{
		SchemaVersion: SchemaVersion,
		RequestedAt:   requestedAt,
		FilterIDs:     filterIDs,
	}
}
