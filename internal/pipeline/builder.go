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
	"github.com/Thedurancode/aitickets/pkg/util"
	"github.com/rs/zerolog"
)

// ClipRenderer renders single clips. *ffmpeg.Executor implements it.
type ClipRenderer interface {
	PhotoClip(ctx context.Context, opts ffmpeg.PhotoClipOptions) error
	TrimClip(ctx context.Context, opts ffmpeg.TrimOptions) error
	ProbeDuration(ctx context.Context, path string) time.Duration
}

// Builder turns selected media into uniform clips.
type Builder struct {
	logger        zerolog.Logger
	render        ClipRenderer
	format        ffmpeg.Format
	photoDuration time.Duration
	videoMax      time.Duration
}

func NewBuilder(logger zerolog.Logger, render ClipRenderer, format ffmpeg.Format, photoDuration, videoMax time.Duration) *Builder {
	return &Builder{
		logger:        logger.With().Str("component", "clip-builder").Logger(),
		render:        render,
		format:        format,
		photoDuration: photoDuration,
		videoMax:      videoMax,
	}
}

// Build renders photos then videos into dir as clip_NNN.mp4. A clip that
// fails is skipped; ErrAllClipsFailed is returned only if none succeed.
func (b *Builder) Build(ctx context.Context, dir string, photos, videos []Candidate) ([]clips.Clip, error) {
	out := make([]clips.Clip, 0, len(photos)+len(videos))

	next := func() string {
		return filepath.Join(dir, fmt.Sprintf("clip_%03d.mp4", len(out)))
	}

	for _, p := range photos {
		path := next()
		err := b.render.PhotoClip(ctx, ffmpeg.PhotoClipOptions{
			Input:    p.Path,
			Output:   path,
			Duration: b.photoDuration,
			Format:   b.format,
		})
		if err != nil {
			b.skip(p, path, err)
			continue
		}
		out = append(out, clipFor(p, path))
	}

	for _, v := range videos {
		path := next()
		start, length := videoWindow(v.Offset, b.render.ProbeDuration(ctx, v.Path), b.videoMax)
		err := b.render.TrimClip(ctx, ffmpeg.TrimOptions{
			Input:    v.Path,
			Output:   path,
			Start:    start,
			Duration: length,
			Format:   b.format,
		})
		if err != nil {
			b.skip(v, path, err)
			continue
		}
		out = append(out, clipFor(v, path))
	}

	if len(out) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, ErrAllClipsFailed
	}

	b.logger.Info().
		Int("clips", len(out)).
		Int("skipped", len(photos)+len(videos)-len(out)).
		Msg("clips built")

	return out, nil
}

func (b *Builder) skip(c Candidate, path string, err error) {
	util.CleanupFiles(path)
	metrics.ClipFailures.WithLabelValues(string(c.Item.Kind)).Inc()
	b.logger.Warn().
		Err(err).
		Int64("media_id", c.Item.ID).
		Str("file", c.Item.FileName()).
		Msg("failed to process media, skipping")
}

func clipFor(c Candidate, path string) clips.Clip {
	kind := c.Item.Kind
	if kind == "" {
		kind = models.KindPhoto
	}
	return clips.Clip{
		Path:     path,
		Kind:     kind,
		Position: c.Position,
		Score:    c.Score,
		MediaID:  c.Item.ID,
	}
}

// videoWindow clamps an excerpt of at most limit starting at start to a
// video of length dur. An unknown duration (zero) trusts start.
func videoWindow(start, dur, limit time.Duration) (time.Duration, time.Duration) {
	if start < 0 {
		start = 0
	}
	if dur > 0 && start > 0 {
		start = min(start, max(0, dur-limit))
	}

	length := limit
	if dur > 0 {
		length = min(dur-start, limit)
	}
	return start, length
}
