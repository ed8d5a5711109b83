package pipeline

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/Thedurancode/aitickets/internal/ffmpeg"
	"github.com/Thedurancode/aitickets/internal/models"
	"github.com/rs/zerolog"
)

func TestVideoWindow(t *testing.T) {
	const limit = 8 * time.Second

	tests := []struct {
		name       string
		start, dur time.Duration
		wantStart  time.Duration
		wantLength time.Duration
	}{
		{"from start", 0, 30 * time.Second, 0, limit},
		{"best offset inside", 10 * time.Second, 30 * time.Second, 10 * time.Second, limit},
		{"offset near end clamps back", 25 * time.Second, 30 * time.Second, 22 * time.Second, limit},
		{"short video", 3 * time.Second, 5 * time.Second, 0, 5 * time.Second},
		{"unknown duration", 4 * time.Second, 0, 4 * time.Second, limit},
		{"negative offset", -2 * time.Second, 30 * time.Second, 0, limit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, length := videoWindow(tt.start, tt.dur, limit)
			if start != tt.wantStart || length != tt.wantLength {
				t.Errorf("videoWindow(%v, %v) = (%v, %v), want (%v, %v)",
					tt.start, tt.dur, start, length, tt.wantStart, tt.wantLength)
			}
		})
	}
}

func newTestBuilder(media *fakeMedia) *Builder {
	return NewBuilder(zerolog.New(io.Discard), media, ffmpeg.DefaultFormat, 3*time.Second, 8*time.Second)
}

func TestBuildSkipsFailedClips(t *testing.T) {
	dir := t.TempDir()
	media := &fakeMedia{
		failInputs: map[string]bool{"/up/bad.jpg": true},
		duration:   20 * time.Second,
	}

	photos := []Candidate{
		{Item: models.MediaItem{ID: 1, Kind: models.KindPhoto}, Path: "/up/a.jpg", Position: 0},
		{Item: models.MediaItem{ID: 2, Kind: models.KindPhoto}, Path: "/up/bad.jpg", Position: 1},
	}
	videos := []Candidate{
		{Item: models.MediaItem{ID: 3, Kind: models.KindVideo}, Path: "/up/v.mp4", Position: 2, Offset: 18 * time.Second},
	}

	built, err := newTestBuilder(media).Build(context.Background(), dir, photos, videos)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(built) != 2 {
		t.Fatalf("expected 2 clips, got %d", len(built))
	}
	if filepath.Base(built[0].Path) != "clip_000.mp4" || filepath.Base(built[1].Path) != "clip_001.mp4" {
		t.Errorf("clip numbering should skip failures: %s, %s", built[0].Path, built[1].Path)
	}
	if built[1].Kind != models.KindVideo || built[1].MediaID != 3 {
		t.Errorf("unexpected video clip %+v", built[1])
	}
	if got := media.trims[0]; got.Start != 12*time.Second || got.Duration != 8*time.Second {
		t.Errorf("trim window = %v+%v, want 12s+8s", got.Start, got.Duration)
	}
	if names := listDir(t, dir); len(names) != 2 {
		t.Errorf("failed clip should not leave a file behind, dir has %v", names)
	}
}

func TestBuildAllFail(t *testing.T) {
	media := &fakeMedia{failInputs: map[string]bool{"/up/a.jpg": true, "/up/v.mp4": true}}
	photos := []Candidate{{Item: models.MediaItem{Kind: models.KindPhoto}, Path: "/up/a.jpg"}}
	videos := []Candidate{{Item: models.MediaItem{Kind: models.KindVideo}, Path: "/up/v.mp4"}}

	_, err := newTestBuilder(media).Build(context.Background(), t.TempDir(), photos, videos)
	if !errors.Is(err, ErrAllClipsFailed) {
		t.Errorf("expected ErrAllClipsFailed, got %v", err)
	}
}
