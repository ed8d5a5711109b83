package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/Thedurancode/aitickets/internal/models"
)

func TestResolveDropsMissingFiles(t *testing.T) {
	env := newTestEnv(t)
	env.upload(t, 1, "a.jpg", models.KindPhoto, 10)
	env.upload(t, 1, "clip.mp4", models.KindVideo, 20)

	items, _ := env.repo.ListMedia(context.Background(), 1)
	items = append(items,
		models.MediaItem{ID: 99, URL: "/uploads/gone.jpg", Kind: models.KindPhoto},
		models.MediaItem{ID: 100, URL: "/uploads/../../etc/passwd", Kind: models.KindPhoto},
	)

	sel := NewSelector(env.uploads, 25, 10)
	photos, videos := sel.Resolve(items)

	if len(photos) != 1 || photos[0].Item.ID != 1 || photos[0].Size != 10 {
		t.Errorf("unexpected photos %+v", photos)
	}
	if len(videos) != 1 || videos[0].Position != 1 {
		t.Errorf("unexpected videos %+v", videos)
	}
}

func candidates(n int, kind models.MediaKind) []Candidate {
	out := make([]Candidate, n)
	for i := range out {
		out[i] = Candidate{
			Item:     models.MediaItem{ID: int64(i + 1), Kind: kind},
			Path:     fmt.Sprintf("/tmp/%d", i),
			Size:     int64(i + 1),
			Position: i,
		}
	}
	return out
}

func TestUnscoredRanksBySizeAndCaps(t *testing.T) {
	sel := NewSelector("", 25, 10)
	photos, videos := sel.Unscored(candidates(40, models.KindPhoto), candidates(12, models.KindVideo))

	if len(photos) != 25 {
		t.Fatalf("expected 25 photos, got %d", len(photos))
	}
	if len(videos) != 10 {
		t.Fatalf("expected 10 videos, got %d", len(videos))
	}
	for i := 1; i < len(photos); i++ {
		if photos[i].Size > photos[i-1].Size {
			t.Fatalf("photos not ordered by size at %d", i)
		}
	}
	if photos[0].Size != 40 || videos[0].Size != 12 {
		t.Errorf("largest files should come first, got %d and %d", photos[0].Size, videos[0].Size)
	}
}

func TestSelectionCounts(t *testing.T) {
	sel := NewSelector("", 25, 10)

	tests := []struct {
		photos, videos int
		wantP, wantV   int
	}{
		{0, 0, 0, 0},
		{3, 2, 3, 2},
		{25, 10, 25, 10},
		{26, 11, 25, 10},
		{200, 50, 25, 10},
	}

	for _, tt := range tests {
		name := fmt.Sprintf("%d_%d", tt.photos, tt.videos)
		t.Run(name, func(t *testing.T) {
			p, v := sel.Unscored(candidates(tt.photos, models.KindPhoto), candidates(tt.videos, models.KindVideo))
			if len(p) != tt.wantP || len(v) != tt.wantV {
				t.Errorf("unscored: got %d+%d, want %d+%d", len(p), len(v), tt.wantP, tt.wantV)
			}

			sp := candidates(tt.photos, models.KindPhoto)
			for i := range sp {
				sp[i].Score = float64(i % 7)
			}
			p, v = sel.Scored(sp, candidates(tt.videos, models.KindVideo))
			if len(p) != tt.wantP || len(v) != tt.wantV {
				t.Errorf("scored: got %d+%d, want %d+%d", len(p), len(v), tt.wantP, tt.wantV)
			}
		})
	}
}

func TestScoredCoversTimeline(t *testing.T) {
	// The first ten uploads score highest, but every fifth of the
	// timeline must still be represented.
	cs := candidates(50, models.KindPhoto)
	for i := range cs {
		if i < 10 {
			cs[i].Score = 9
		} else {
			cs[i].Score = 1 + float64(i)/100
		}
	}

	sel := NewSelector("", 5, 10)
	photos, _ := sel.Scored(cs, nil)

	if len(photos) != 5 {
		t.Fatalf("expected 5 photos, got %d", len(photos))
	}
	seen := make(map[int]bool)
	for _, p := range photos {
		seen[p.Position/10] = true
	}
	if len(seen) != 5 {
		t.Errorf("expected one photo per bucket, got buckets %v", seen)
	}
	// Highest scorer overall leads; ties on score fall back to size.
	if photos[0].Position != 9 {
		t.Errorf("expected largest top-scored photo first, got position %d", photos[0].Position)
	}
}

func TestScoredBelowCapKeepsRankOrder(t *testing.T) {
	cs := candidates(4, models.KindPhoto)
	cs[0].Score, cs[1].Score, cs[2].Score, cs[3].Score = 2, 8, 5, 8

	photos, _ := NewSelector("", 25, 10).Scored(cs, nil)

	want := []int{3, 1, 2, 0}
	for i, p := range photos {
		if p.Position != want[i] {
			t.Fatalf("position %d: got %d, want %d", i, p.Position, want[i])
		}
	}
}

func TestScoredVideosByScore(t *testing.T) {
	vs := candidates(12, models.KindVideo)
	for i := range vs {
		vs[i].Score = float64(12 - i)
	}
	vs[11].Score = 100

	_, videos := NewSelector("", 25, 10).Scored(nil, vs)
	if len(videos) != 10 || videos[0].Position != 11 || videos[1].Position != 0 {
		t.Errorf("unexpected video order: first=%d second=%d", videos[0].Position, videos[1].Position)
	}
}
