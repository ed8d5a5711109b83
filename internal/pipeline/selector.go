package pipeline

import (
	"path/filepath"
	"sort"
	"time"

	"github.com/Thedurancode/aitickets/internal/models"
	"github.com/Thedurancode/aitickets/pkg/util"
)

// Candidate is an upload that exists on disk, with whatever the scoring
// stage learned about it.
type Candidate struct {
	Item models.MediaItem
	Path string
	Size int64
	// Position is the item's index in the event's upload order.
	Position int

	Score       float64
	Scored      bool
	Description string
	// Offset is where a video clip should start.
	Offset time.Duration
}

// Selector picks the photos and videos that make it into a reel.
type Selector struct {
	uploadsDir string
	maxPhotos  int
	maxVideos  int
}

func NewSelector(uploadsDir string, maxPhotos, maxVideos int) *Selector {
	return &Selector{
		uploadsDir: uploadsDir,
		maxPhotos:  maxPhotos,
		maxVideos:  maxVideos,
	}
}

// Resolve maps uploads to files in the uploads dir and drops the ones
// that are missing. Order is preserved.
func (s *Selector) Resolve(items []models.MediaItem) (photos, videos []Candidate) {
	for i, it := range items {
		name := it.FileName()
		if name == "" {
			continue
		}
		path := filepath.Join(s.uploadsDir, filepath.FromSlash(name))
		size := util.FileSize(path)
		if size < 0 {
			continue
		}

		c := Candidate{Item: it, Path: path, Size: size, Position: i}
		if it.Kind == models.KindVideo {
			videos = append(videos, c)
		} else {
			photos = append(photos, c)
		}
	}
	return photos, videos
}

// Unscored ranks by file size, largest first, and applies the caps.
func (s *Selector) Unscored(photos, videos []Candidate) ([]Candidate, []Candidate) {
	return largest(photos, s.maxPhotos), largest(videos, s.maxVideos)
}

// Scored ranks by score. Photos are spread across the upload timeline so
// one busy moment cannot fill the reel.
func (s *Selector) Scored(photos, videos []Candidate) ([]Candidate, []Candidate) {
	return spread(photos, s.maxPhotos), best(videos, s.maxVideos)
}

func largest(cs []Candidate, limit int) []Candidate {
	out := append([]Candidate(nil), cs...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Size > out[j].Size
	})
	return capAt(out, limit)
}

func best(cs []Candidate, limit int) []Candidate {
	out := append([]Candidate(nil), cs...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return capAt(out, limit)
}

// spread takes the highest scored photos (ties broken by size) while
// covering every temporal bucket. Buckets split the candidates evenly in
// upload order, one bucket per slot. A photo is taken when its bucket is
// still empty or when every bucket already has one.
func spread(cs []Candidate, limit int) []Candidate {
	if limit <= 0 || len(cs) == 0 {
		return nil
	}

	ranked := make([]int, len(cs))
	for i := range ranked {
		ranked[i] = i
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		ca, cb := cs[ranked[a]], cs[ranked[b]]
		if ca.Score != cb.Score {
			return ca.Score > cb.Score
		}
		return ca.Size > cb.Size
	})

	if len(cs) <= limit {
		out := make([]Candidate, len(ranked))
		for i, idx := range ranked {
			out[i] = cs[idx]
		}
		return out
	}

	buckets := limit
	bucketSize := float64(len(cs)) / float64(buckets)
	used := make(map[int]bool, buckets)
	out := make([]Candidate, 0, limit)

	for _, idx := range ranked {
		if len(out) >= limit {
			break
		}
		b := min(int(float64(idx)/bucketSize), buckets-1)
		if !used[b] || len(used) >= buckets {
			out = append(out, cs[idx])
			used[b] = true
		}
	}
	return out
}

func capAt(cs []Candidate, limit int) []Candidate {
	if limit < 0 {
		limit = 0
	}
	if len(cs) > limit {
		return cs[:limit]
	}
	return cs
}
