package ffmpeg

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Thedurancode/aitickets/pkg/util"
)

// TrimOptions defines a normalized video excerpt.
type TrimOptions struct {
	Input    string
	Output   string
	Start    time.Duration
	Duration time.Duration
	Format   Format
}

// TrimClip cuts Duration from Start and re-encodes it to the shared output
// format, letterboxing when the aspect ratio differs.
func (e *Executor) TrimClip(ctx context.Context, opts TrimOptions) error {
	if opts.Input == "" || opts.Output == "" {
		return fmt.Errorf("input and output paths are required")
	}
	if opts.Duration <= 0 {
		return fmt.Errorf("invalid clip duration: %v", opts.Duration)
	}

	e.logger.Debug().
		Str("input", opts.Input).
		Str("output", opts.Output).
		Dur("start", opts.Start).
		Dur("duration", opts.Duration).
		Msg("trimming video clip")

	var args []string
	if opts.Start > 0 {
		args = append(args, "-ss", util.FormatDuration(opts.Start))
	}
	args = append(args,
		"-i", opts.Input,
		"-t", util.Seconds(opts.Duration),
		"-vf", NewFilterBuilder().Letterbox(opts.Format.Width, opts.Format.Height).Build(),
		"-r", strconv.Itoa(opts.Format.FPS),
	)
	args = append(args, e.encodeArgs()...)
	args = append(args, "-an", opts.Output)

	return e.Run(ctx, RunOptions{
		Args:       args,
		Timeout:    e.settings.Timeouts.VideoClip,
		LogHandler: e.debugLog("trim clip"),
	})
}
