package ffmpeg

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"
)

// Keyframe is a sampled still from a video.
type Keyframe struct {
	Path      string
	Timestamp time.Duration
}

// KeyframeOptions configures periodic frame sampling.
type KeyframeOptions struct {
	Input    string
	Dir      string
	Prefix   string
	Interval time.Duration
	Width    int
}

// ExtractKeyframes writes one small JPEG per Interval of video into Dir.
// Frame n is stamped n*Interval.
func (e *Executor) ExtractKeyframes(ctx context.Context, opts KeyframeOptions) ([]Keyframe, error) {
	interval := int(opts.Interval / time.Second)
	if interval <= 0 {
		return nil, fmt.Errorf("keyframe interval must be at least one second")
	}
	if opts.Prefix == "" {
		return nil, fmt.Errorf("keyframe prefix is required")
	}

	pattern := filepath.Join(opts.Dir, opts.Prefix+"_%03d.jpg")
	filter := NewFilterBuilder().SampleEvery(interval).ScaleWidth(opts.Width).Build()

	err := e.Run(ctx, RunOptions{
		Args: []string{
			"-i", opts.Input,
			"-vf", filter,
			"-q:v", "5",
			pattern,
		},
		Timeout:    e.settings.Timeouts.Keyframes,
		LogHandler: e.debugLog("keyframes"),
	})
	if err != nil {
		return nil, fmt.Errorf("keyframe extraction failed: %w", err)
	}

	matches, err := filepath.Glob(filepath.Join(opts.Dir, opts.Prefix+"_*.jpg"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	frames := make([]Keyframe, 0, len(matches))
	for i, path := range matches {
		frames = append(frames, Keyframe{
			Path:      path,
			Timestamp: time.Duration(i) * time.Duration(interval) * time.Second,
		})
	}

	e.logger.Debug().
		Str("input", opts.Input).
		Int("frames", len(frames)).
		Msg("keyframes extracted")

	return frames, nil
}

// Thumbnail writes a single JPEG of input scaled to width.
func (e *Executor) Thumbnail(ctx context.Context, input, output string, width int) error {
	if input == "" || output == "" {
		return fmt.Errorf("input and output paths are required")
	}

	return e.Run(ctx, RunOptions{
		Args: []string{
			"-i", input,
			"-vf", NewFilterBuilder().ScaleWidth(width).Build(),
			"-q:v", "5",
			"-frames:v", "1",
			output,
		},
		Timeout:    e.settings.Timeouts.Thumbnail,
		LogHandler: e.debugLog("thumbnail"),
	})
}
