package ports

import (
	"context"
	"errors"

	"github.com/Thedurancode/aitickets/internal/models"
)

// ErrNotFound is returned by repositories when a row does not exist.
var ErrNotFound = errors.New("not found")

type EventRepository interface {
	GetEvent(ctx context.Context, eventID int64) (*models.Event, error)
	// ListMedia returns the event's uploads ordered by upload time.
	ListMedia(ctx context.Context, eventID int64) ([]models.MediaItem, error)
	SetHighlightURL(ctx context.Context, eventID int64, url string) error
}
