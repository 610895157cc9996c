// Package store persists inbox items. The pipeline owns only the AI-derived
// fields of an item; identity and body fields are written by mailbox
// synchronization (out of scope here) or by demo seeding.
package store

import (
	"context"

	"github.com/maildeskhq/maildesk/pkg/models"
)

// Store persists inbox items. Lookups return (nil, nil) when no item exists.
type Store interface {
	// Get returns one item by id.
	Get(ctx context.Context, id string) (*models.Item, error)

	// List returns items newest first.
	List(ctx context.Context, limit, offset int) ([]*models.Item, error)

	// ListUnprocessed returns up to limit items without AI results,
	// oldest first. This is the candidate set for a batch run.
	ListUnprocessed(ctx context.Context, limit int) ([]*models.Item, error)

	// Upsert inserts or replaces an item's identity fields.
	Upsert(ctx context.Context, item *models.Item) error

	// SetProcessing flips the transient in-flight marker.
	SetProcessing(ctx context.Context, id string, processing bool) error

	// UpdateAI persists the AI-derived fields of the item and stamps
	// AIProcessedAt, clearing the in-flight marker.
	UpdateAI(ctx context.Context, item *models.Item) error

	// ResetAI clears the AI-derived fields of one item.
	ResetAI(ctx context.Context, id string) error

	// ResetAllAI clears the AI-derived fields of every processed item and
	// returns how many items were reset.
	ResetAllAI(ctx context.Context) (int64, error)

	// Close releases underlying resources.
	Close() error
}
