package repository

import (
	"context"
	"errors"
	"time"

	"imagepacks/internal/models"
)

// ErrNotFound is returned when no inbox row matches a pack id.
var ErrNotFound = errors.New("pack not found")

// InboxRepository persists one row per stored image. Every write is its own
// committed statement; nothing spans a whole pack.
type InboxRepository interface {
	EnsureSchema(ctx context.Context) error
	Insert(ctx context.Context, packID, imageName string, savedOn time.Time) error
	// EarliestTimestamp returns ErrNotFound when the pack has no rows.
	EarliestTimestamp(ctx context.Context, packID string) (time.Time, error)
	// ListForPack returns rows in insertion order; unknown packs yield an
	// empty slice.
	ListForPack(ctx context.Context, packID string) ([]models.ImageRecord, error)
	DeleteForPack(ctx context.Context, packID string) error
	ImageExists(ctx context.Context, imageName string) (bool, error)
	Ping(ctx context.Context) error
}
