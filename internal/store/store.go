package store

import (
	"context"
	"time"

	"github.com/joescharf/qam/internal/models"
)

// JournalFilter narrows ListActions.
type JournalFilter struct {
	RequestID string
	User      string
	Action    models.JournalAction
	Since     time.Time
	Limit     int
}

// Store persists the local journal of submitted review actions.
type Store interface {
	RecordAction(ctx context.Context, e *models.JournalEntry) error
	GetAction(ctx context.Context, id string) (*models.JournalEntry, error)
	ListActions(ctx context.Context, filter JournalFilter) ([]*models.JournalEntry, error)
	PruneActions(ctx context.Context, before time.Time) (int64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
