package ffmpeg

import (
	"context"
	"fmt"
	"time"

	"github.com/Thedurancode/aitickets/pkg/util"
)

const musicFadeOut = 2 * time.Second

// MusicOptions lays a looping music bed under a silent video.
type MusicOptions struct {
	Video    string
	Music    string
	Output   string
	Duration time.Duration
	Volume   float64
}

// MixMusic loops Music under Video, fading it out over the last seconds
// and stopping with the video.
func (e *Executor) MixMusic(ctx context.Context, opts MusicOptions) error {
	if opts.Video == "" || opts.Music == "" || opts.Output == "" {
		return fmt.Errorf("video, music and output paths are required")
	}

	e.logger.Info().
		Str("video", opts.Video).
		Str("music", opts.Music).
		Msg("mixing background music")

	args := []string{
		"-i", opts.Video,
		"-stream_loop", "-1",
		"-i", opts.Music,
		"-filter_complex", MusicFilter(opts.Duration, opts.Volume),
		"-map", "0:v",
		"-map", "[aout]",
		"-c:v", "copy",
		"-c:a", DefaultAudioCodec,
		"-shortest",
		opts.Output,
	}

	return e.Run(ctx, RunOptions{
		Args:       args,
		Timeout:    e.settings.Timeouts.Music,
		LogHandler: e.debugLog("music"),
	})
}

// MusicFilter scales the music bed and fades it out before the video ends.
func MusicFilter(videoDuration time.Duration, volume float64) string {
	if volume <= 0 {
		volume = 1
	}
	fb := NewFilterBuilder().Custom(fmt.Sprintf("volume=%.2f", volume))
	if start := videoDuration - musicFadeOut; start > 0 {
		fb.Custom(fmt.Sprintf("afade=t=out:st=%s:d=%s", util.Seconds(start), util.Seconds(musicFadeOut)))
	}
	return "[1:a]" + fb.Build() + "[aout]"
}
