package clips

import (
	"sort"

	"github.com/Thedurancode/aitickets/internal/models"
)

// Clip is a rendered segment ready for compositing.
type Clip struct {
	Path string
	Kind models.MediaKind
	// Position is the source upload's place in upload order.
	Position int
	Score    float64
	MediaID  int64
}

// Paths returns the clip files in order.
func Paths(cs []Clip) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Path
	}
	return out
}

// UploadOrder sorts clips by when their source was uploaded, photos and
// videos interleaved.
func UploadOrder(cs []Clip) []Clip {
	out := append([]Clip(nil), cs...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Position < out[j].Position
	})
	return out
}

// Narrative arranges clips as a calm opening, a peak in the middle third
// and a wind-down. Three or fewer clips keep their order.
func Narrative(cs []Clip) []Clip {
	n := len(cs)
	if n <= 3 {
		return append([]Clip(nil), cs...)
	}

	asc := append([]Clip(nil), cs...)
	sort.SliceStable(asc, func(i, j int) bool {
		return asc[i].Score < asc[j].Score
	})

	midStart := n / 3
	midEnd := 2 * n / 3
	peak := midEnd - midStart

	out := make([]Clip, n)
	filled := make([]bool, n)
	for i, c := range asc[n-peak:] {
		out[midStart+i] = c
		filled[midStart+i] = true
	}

	rest := asc[:n-peak]
	next := 0
	for pos := range out {
		if filled[pos] {
			continue
		}
		out[pos] = rest[next]
		next++
	}
	return out
}
