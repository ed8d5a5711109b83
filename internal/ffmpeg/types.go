package ffmpeg

import "time"

// VideoInfo contains metadata about a video file
type VideoInfo struct {
	FilePath   string
	Duration   time.Duration
	Width      int
	Height     int
	FPS        float64
	Bitrate    int64
	VideoCodec string
	HasAudio   bool
	AudioCodec string
}

// Progress represents ffmpeg progress data
type Progress struct {
	Frame   int
	FPS     float64
	Bitrate string
	Time    string
	Speed   string
}

// RunOptions configures ffmpeg execution
type RunOptions struct {
	Args []string
	// Timeout bounds the whole invocation. Zero means only ctx applies.
	Timeout         time.Duration
	ProgressHandler func(*Progress)
	LogHandler      func(line string)
}

// Default encoding settings
const (
	DefaultCRF        = 23
	DefaultPreset     = "fast"
	DefaultVideoCodec = "libx264"
	DefaultAudioCodec = "aac"
	DefaultPixFmt     = "yuv420p"
)

// Output geometry shared by every clip so they can be joined without
// rescaling.
type Format struct {
	Width  int
	Height int
	FPS    int
}

// DefaultFormat is 720p at 30fps.
var DefaultFormat = Format{Width: 1280, Height: 720, FPS: 30}

// Timeouts bounds each kind of external call.
type Timeouts struct {
	Probe     time.Duration
	Thumbnail time.Duration
	Keyframes time.Duration
	PhotoClip time.Duration
	VideoClip time.Duration
	Composite time.Duration
	Overlay   time.Duration
	Music     time.Duration
}

// DefaultTimeouts match the budgets each step gets in production.
var DefaultTimeouts = Timeouts{
	Probe:     10 * time.Second,
	Thumbnail: 10 * time.Second,
	Keyframes: 30 * time.Second,
	PhotoClip: 30 * time.Second,
	VideoClip: 60 * time.Second,
	Composite: 300 * time.Second,
	Overlay:   120 * time.Second,
	Music:     120 * time.Second,
}

// Settings configures an Executor.
type Settings struct {
	Threads  int
	Preset   string
	CRF      int
	Timeouts Timeouts
}

// ProgressFunc is a callback for progress updates during ffmpeg operations.
// Called periodically with progress information as the operation executes.
type ProgressFunc func(*Progress)
