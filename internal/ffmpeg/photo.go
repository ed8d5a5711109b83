package ffmpeg

import (
	"context"
	"fmt"
	"time"

	"github.com/Thedurancode/aitickets/pkg/util"
)

const (
	zoomStep = 0.0015
	zoomMax  = 1.1
)

// PhotoClipOptions defines a still-image clip.
type PhotoClipOptions struct {
	Input    string
	Output   string
	Duration time.Duration
	Format   Format
}

// PhotoClip renders a still photo as a clip with a slow centered zoom.
func (e *Executor) PhotoClip(ctx context.Context, opts PhotoClipOptions) error {
	if opts.Input == "" || opts.Output == "" {
		return fmt.Errorf("input and output paths are required")
	}
	if opts.Duration <= 0 {
		return fmt.Errorf("invalid photo clip duration: %v", opts.Duration)
	}

	e.logger.Debug().
		Str("input", opts.Input).
		Str("output", opts.Output).
		Dur("duration", opts.Duration).
		Msg("building photo clip")

	args := []string{
		"-loop", "1",
		"-i", opts.Input,
		"-t", util.Seconds(opts.Duration),
		"-vf", PhotoClipFilter(opts.Duration, opts.Format),
	}
	args = append(args, e.encodeArgs()...)
	args = append(args, "-an", opts.Output)

	return e.Run(ctx, RunOptions{
		Args:       args,
		Timeout:    e.settings.Timeouts.PhotoClip,
		LogHandler: e.debugLog("photo clip"),
	})
}

// PhotoClipFilter oversamples the photo to twice the output size before
// zooming so the pan stays smooth.
func PhotoClipFilter(d time.Duration, f Format) string {
	frames := int(d.Seconds() * float64(f.FPS))
	return NewFilterBuilder().
		Cover(f.Width*2, f.Height*2).
		ZoomPan(zoomStep, zoomMax, frames, f).
		Build()
}
