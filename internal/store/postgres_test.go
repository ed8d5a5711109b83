package store

import (
	"errors"
	"os"
	"testing"

	"github.com/Thedurancode/aitickets/internal/models"
	"github.com/Thedurancode/aitickets/internal/ports"
	"github.com/jackc/pgx/v5/pgxpool"
)

// testPool connects to TEST_DATABASE_URL or skips.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	pool, err := NewPgxPool(t.Context(), url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := Migrate(t.Context(), pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

func TestPostgresEventRepo(t *testing.T) {
	pool := testPool(t)
	ctx := t.Context()

	var eventID int64
	err := pool.QueryRow(ctx,
		`INSERT INTO events (name, event_date) VALUES ('Launch Night', '2026-05-01') RETURNING id`,
	).Scan(&eventID)
	if err != nil {
		t.Fatalf("insert event: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, `DELETE FROM event_photos WHERE event_id = $1`, eventID)
		_, _ = pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, eventID)
	})

	_, err = pool.Exec(ctx, `
		INSERT INTO event_photos (event_id, photo_url, uploaded_by_name, media_type, created_at) VALUES
		($1, '/uploads/b.mp4', 'Sam', 'video', NOW()),
		($1, '/uploads/a.jpg', NULL, NULL, NOW() - INTERVAL '1 hour')
	`, eventID)
	if err != nil {
		t.Fatalf("insert media: %v", err)
	}

	repo := NewPostgresEventRepo(pool)

	ev, err := repo.GetEvent(ctx, eventID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if ev.Name != "Launch Night" || ev.Date != "2026-05-01" || ev.HighlightURL != "" {
		t.Errorf("unexpected event %+v", ev)
	}

	items, err := repo.ListMedia(ctx, eventID)
	if err != nil {
		t.Fatalf("ListMedia: %v", err)
	}
	if len(items) != 2 || items[0].URL != "/uploads/a.jpg" || items[1].Kind != models.KindVideo {
		t.Errorf("unexpected media %+v", items)
	}
	if items[0].Kind != models.KindPhoto {
		t.Errorf("null media_type should read as photo, got %q", items[0].Kind)
	}

	if err := repo.SetHighlightURL(ctx, eventID, "/uploads/highlight_x.mp4"); err != nil {
		t.Fatalf("SetHighlightURL: %v", err)
	}
	ev, _ = repo.GetEvent(ctx, eventID)
	if ev.HighlightURL != "/uploads/highlight_x.mp4" {
		t.Errorf("url not stored: %q", ev.HighlightURL)
	}

	if _, err := repo.GetEvent(ctx, -1); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := repo.SetHighlightURL(ctx, -1, "x"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("expected ErrNotFound on update, got %v", err)
	}
}
