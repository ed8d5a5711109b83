package ffmpeg

import (
	"context"
	"fmt"
)

// OverlayOptions applies a video filter over a finished composite.
type OverlayOptions struct {
	Input  string
	Output string
	Filter string
}

// Overlay re-encodes Input with Filter applied, copying any audio.
func (e *Executor) Overlay(ctx context.Context, opts OverlayOptions) error {
	if opts.Input == "" || opts.Output == "" {
		return fmt.Errorf("input and output paths are required")
	}
	if opts.Filter == "" {
		return fmt.Errorf("overlay filter is empty")
	}

	e.logger.Info().
		Str("input", opts.Input).
		Str("output", opts.Output).
		Msg("applying overlay")

	args := []string{"-i", opts.Input, "-vf", opts.Filter}
	args = append(args, e.encodeArgs()...)
	args = append(args, "-c:a", "copy", opts.Output)

	return e.Run(ctx, RunOptions{
		Args:       args,
		Timeout:    e.settings.Timeouts.Overlay,
		LogHandler: e.debugLog("overlay"),
	})
}
