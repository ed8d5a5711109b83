package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Thedurancode/aitickets/internal/models"
	"github.com/Thedurancode/aitickets/internal/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresEventRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresEventRepo(pool *pgxpool.Pool) ports.EventRepository {
	return &PostgresEventRepo{pool: pool}
}

func (r *PostgresEventRepo) GetEvent(ctx context.Context, eventID int64) (*models.Event, error) {
	query := `
		SELECT id, name, event_date, COALESCE(post_event_video_url, '')
		FROM events
		WHERE id = $1
	`
	var ev models.Event
	err := r.pool.QueryRow(ctx, query, eventID).Scan(&ev.ID, &ev.Name, &ev.Date, &ev.HighlightURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event %d: %w", eventID, err)
	}
	return &ev, nil
}

func (r *PostgresEventRepo) ListMedia(ctx context.Context, eventID int64) ([]models.MediaItem, error) {
	query := `
		SELECT id, event_id, photo_url, COALESCE(uploaded_by_name, ''),
		       COALESCE(media_type, ''), created_at
		FROM event_photos
		WHERE event_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("list media %d: %w", eventID, err)
	}
	defer rows.Close()

	var items []models.MediaItem
	for rows.Next() {
		var (
			m         models.MediaItem
			kind      string
			createdAt *time.Time
		)
		if err := rows.Scan(&m.ID, &m.EventID, &m.URL, &m.UploadedBy, &kind, &createdAt); err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		m.Kind = mediaKind(kind)
		if createdAt != nil {
			m.CreatedAt = *createdAt
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list media %d: %w", eventID, err)
	}
	return items, nil
}

func (r *PostgresEventRepo) SetHighlightURL(ctx context.Context, eventID int64, url string) error {
	query := `
		UPDATE events
		SET post_event_video_url = $1
		WHERE id = $2
	`
	tag, err := r.pool.Exec(ctx, query, url, eventID)
	if err != nil {
		return fmt.Errorf("set highlight url %d: %w", eventID, err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// mediaKind maps the stored media_type column. Rows written before the
// column existed are photos.
func mediaKind(s string) models.MediaKind {
	if strings.EqualFold(strings.TrimSpace(s), string(models.KindVideo)) {
		return models.KindVideo
	}
	return models.KindPhoto
}
