package overlays

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Renderer produces the video filter that draws an overlay.
type Renderer interface {
	Filter(text TitleText) string
}

// TitleText is the caption burned into the reel.
type TitleText struct {
	Title    string
	Subtitle string
}

// Title draws the event name and date centered near the bottom edge for the
// first seconds of the reel.
type Title struct {
	Visible       time.Duration
	TitleSize     int
	SubtitleSize  int
	TitleOffset   int
	SubtitleShift int
}

// DefaultTitle matches the house style for highlight reels.
var DefaultTitle = Title{
	Visible:       4 * time.Second,
	TitleSize:     42,
	SubtitleSize:  28,
	TitleOffset:   80,
	SubtitleShift: 40,
}

// Filter returns two chained drawtext filters.
func (t Title) Filter(text TitleText) string {
	enable := fmt.Sprintf("enable='between(t,0,%d)'", int(t.Visible.Seconds()))

	parts := []string{}
	if text.Title != "" {
		parts = append(parts, fmt.Sprintf(
			"drawtext=text='%s':fontsize=%d:fontcolor=white:borderw=3:bordercolor=black:x=(w-text_w)/2:y=h-%d:%s",
			EscapeText(text.Title), t.TitleSize, t.TitleOffset, enable,
		))
	}
	if text.Subtitle != "" {
		parts = append(parts, fmt.Sprintf(
			"drawtext=text='%s':fontsize=%d:fontcolor=white@0.8:borderw=2:bordercolor=black:x=(w-text_w)/2:y=h-%d:%s",
			EscapeText(text.Subtitle), t.SubtitleSize, t.SubtitleShift, enable,
		))
	}
	return strings.Join(parts, ",")
}

// EscapeText quotes a value for a single-quoted drawtext option inside a
// filter graph.
func EscapeText(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		"'", `'\''`,
		":", `\:`,
		"%", `\%`,
	)
	return r.Replace(s)
}

// Registry manages available overlays
type Registry struct {
	overlays map[string]Renderer
}

// NewRegistry creates a registry holding the built-in presets.
func NewRegistry() *Registry {
	r := &Registry{
		overlays: make(map[string]Renderer),
	}
	r.Register(PresetTitle, DefaultTitle)
	return r
}

// Register adds an overlay to the registry
func (r *Registry) Register(name string, renderer Renderer) {
	r.overlays[name] = renderer
}

// Get retrieves an overlay by name
func (r *Registry) Get(name string) (Renderer, bool) {
	renderer, ok := r.overlays[name]
	return renderer, ok
}

// List returns all registered overlay names, sorted
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.overlays))
	for name := range r.overlays {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Presets
const (
	PresetTitle = "title"
	PresetNone  = "none"
)
