package ffmpeg

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// CrossfadeOptions defines a crossfaded composite.
type CrossfadeOptions struct {
	Inputs []string
	// Durations holds each input's length. Missing or zero entries
	// default to Fallback.
	Durations    []time.Duration
	Fallback     time.Duration
	Fade         time.Duration
	Output       string
	ProgressFunc ProgressFunc
}

// Crossfade joins clips with a fade transition between each pair.
func (e *Executor) Crossfade(ctx context.Context, opts CrossfadeOptions) error {
	if len(opts.Inputs) < 2 {
		return fmt.Errorf("crossfade needs at least two inputs, got %d", len(opts.Inputs))
	}
	if opts.Output == "" {
		return fmt.Errorf("output path is required")
	}

	graph := CrossfadeGraph(opts.Durations, len(opts.Inputs), opts.Fallback, opts.Fade)

	e.logger.Info().
		Int("inputs", len(opts.Inputs)).
		Dur("fade", opts.Fade).
		Str("output", opts.Output).
		Msg("crossfading clips")

	args := make([]string, 0, len(opts.Inputs)*2+16)
	for _, in := range opts.Inputs {
		args = append(args, "-i", in)
	}
	args = append(args, "-filter_complex", graph, "-map", "[vout]")
	args = append(args, e.encodeArgs()...)
	args = append(args, "-an", opts.Output)

	return e.Run(ctx, RunOptions{
		Args:            args,
		Timeout:         e.settings.Timeouts.Composite,
		ProgressHandler: opts.ProgressFunc,
		LogHandler:      e.debugLog("crossfade"),
	})
}

// CrossfadeGraph builds the xfade chain for n inputs. Transition i starts
// where the running timeline minus the fade ends, never before zero.
func CrossfadeGraph(durations []time.Duration, n int, fallback, fade time.Duration) string {
	parts := make([]string, 0, n-1)
	prev := "[0:v]"
	var offset time.Duration

	for i := 1; i < n; i++ {
		d := fallback
		if i-1 < len(durations) && durations[i-1] > 0 {
			d = durations[i-1]
		}
		offset += d - fade
		if offset < 0 {
			offset = 0
		}

		out := fmt.Sprintf("[v%d]", i)
		if i == n-1 {
			out = "[vout]"
		}
		parts = append(parts, fmt.Sprintf(
			"%s[%d:v]xfade=transition=fade:duration=%.3f:offset=%.3f%s",
			prev, i, fade.Seconds(), offset.Seconds(), out,
		))
		prev = out
	}

	return strings.Join(parts, ";")
}
