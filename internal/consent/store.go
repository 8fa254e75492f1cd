// Package consent tracks which filters the user has explicitly approved.
// Some catalog filters require extra disclosure before activation; the
// tracker is the authoritative record of those approvals.
package consent

import (
	"context"

	"sieve/internal/filters/models"
)

// Store is the durable backing of the consent set. The Tracker is the only
// writer to it.
type Store interface {
	// Load returns the persisted set. An error marks the content unreadable;
	// the Tracker degrades to an empty set and repairs the storage.
	Load(ctx context.Context) ([]models.FilterID, error)

	// Save replaces the persisted set.
	Save(ctx context.Context, ids []models.FilterID) error

	// Clear resets the persisted set to empty.
	Clear(ctx context.Context) error
}
