package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Thedurancode/aitickets/internal/clips"
	"github.com/Thedurancode/aitickets/internal/ffmpeg"
	"github.com/Thedurancode/aitickets/internal/metrics"
	"github.com/Thedurancode/aitickets/internal/models"
	"github.com/Thedurancode/aitickets/internal/overlays"
	"github.com/Thedurancode/aitickets/pkg/util"
	"github.com/rs/zerolog"
)

// Joiner composites and finishes the reel. *ffmpeg.Executor implements it.
type Joiner interface {
	Crossfade(ctx context.Context, opts ffmpeg.CrossfadeOptions) error
	Concat(ctx context.Context, opts ffmpeg.ConcatOptions) error
	Overlay(ctx context.Context, opts ffmpeg.OverlayOptions) error
	MixMusic(ctx context.Context, opts ffmpeg.MusicOptions) error
	ProbeDuration(ctx context.Context, path string) time.Duration
}

// CompositorOptions configures transitions and the finishing passes.
type CompositorOptions struct {
	Fade              time.Duration
	CrossfadeMaxClips int
	// FallbackDuration is assumed for clips whose length cannot be probed.
	FallbackDuration time.Duration
	Overlay          string
	MusicPath        string
	MusicVolume      float64
}

// Compositor joins ordered clips into one video and burns in the title.
type Compositor struct {
	logger   zerolog.Logger
	join     Joiner
	overlays *overlays.Registry
	opts     CompositorOptions
}

func NewCompositor(logger zerolog.Logger, join Joiner, registry *overlays.Registry, opts CompositorOptions) *Compositor {
	if registry == nil {
		registry = overlays.NewRegistry()
	}
	return &Compositor{
		logger:   logger.With().Str("component", "compositor").Logger(),
		join:     join,
		overlays: registry,
		opts:     opts,
	}
}

// Compose runs Composite then Finish.
func (c *Compositor) Compose(ctx context.Context, dir string, cs []clips.Clip, ev *models.Event, out string) error {
	joined, err := c.Composite(ctx, dir, cs)
	if err != nil {
		return err
	}
	return c.Finish(ctx, dir, joined, ev, out)
}

// Composite joins the clips and returns the joined file. A single clip is
// returned as is. Above CrossfadeMaxClips, or when the crossfade fails,
// clips are hard cut.
func (c *Compositor) Composite(ctx context.Context, dir string, cs []clips.Clip) (string, error) {
	switch len(cs) {
	case 0:
		return "", ErrAllClipsFailed
	case 1:
		return cs[0].Path, nil
	}

	paths := clips.Paths(cs)
	out := filepath.Join(dir, "concat.mp4")

	if len(cs) <= c.opts.CrossfadeMaxClips {
		durations := make([]time.Duration, len(paths))
		for i, p := range paths {
			durations[i] = c.join.ProbeDuration(ctx, p)
		}

		err := c.join.Crossfade(ctx, ffmpeg.CrossfadeOptions{
			Inputs:    paths,
			Durations: durations,
			Fallback:  c.opts.FallbackDuration,
			Fade:      c.opts.Fade,
			Output:    out,
		})
		if err == nil {
			return out, nil
		}
		metrics.Fallbacks.WithLabelValues("crossfade").Inc()
		c.logger.Warn().Err(err).Msg("xfade concat failed, falling back to simple concat")
	}

	if err := c.join.Concat(ctx, ffmpeg.ConcatOptions{
		Inputs:  paths,
		Output:  out,
		ListDir: dir,
	}); err != nil {
		return "", fmt.Errorf("%w: concat failed: %v", ErrEmptyOutput, err)
	}
	return out, nil
}

// Finish writes out from joined, mixing in music when configured and
// drawing the event title. Either pass is skipped on failure.
func (c *Compositor) Finish(ctx context.Context, dir, joined string, ev *models.Event, out string) error {
	src := c.mixMusic(ctx, dir, joined)

	if filter := c.overlayFilter(ev); filter != "" {
		err := c.join.Overlay(ctx, ffmpeg.OverlayOptions{
			Input:  src,
			Output: out,
			Filter: filter,
		})
		if err == nil {
			return nil
		}
		metrics.Fallbacks.WithLabelValues("overlay").Inc()
		c.logger.Warn().Err(err).Msg("text overlay failed, using video without overlay")
	}

	if err := util.CopyFile(src, out); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (c *Compositor) overlayFilter(ev *models.Event) string {
	if c.opts.Overlay == "" || c.opts.Overlay == overlays.PresetNone || ev == nil {
		return ""
	}
	r, ok := c.overlays.Get(c.opts.Overlay)
	if !ok {
		c.logger.Warn().Str("overlay", c.opts.Overlay).Msg("unknown overlay preset, skipping")
		return ""
	}
	return r.Filter(overlays.TitleText{Title: ev.Name, Subtitle: ev.Date})
}

func (c *Compositor) mixMusic(ctx context.Context, dir, joined string) string {
	if c.opts.MusicPath == "" {
		return joined
	}
	if !util.FileExists(c.opts.MusicPath) {
		c.logger.Warn().Str("music", c.opts.MusicPath).Msg("music file not found, skipping")
		return joined
	}

	out := filepath.Join(dir, "music.mp4")
	err := c.join.MixMusic(ctx, ffmpeg.MusicOptions{
		Video:    joined,
		Music:    c.opts.MusicPath,
		Output:   out,
		Duration: c.join.ProbeDuration(ctx, joined),
		Volume:   c.opts.MusicVolume,
	})
	if err != nil {
		metrics.Fallbacks.WithLabelValues("music").Inc()
		c.logger.Warn().Err(err).Msg("music mix failed, continuing without it")
		return joined
	}
	return out
}
