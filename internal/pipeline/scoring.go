package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Thedurancode/aitickets/internal/ai"
	"github.com/Thedurancode/aitickets/internal/ffmpeg"
	"github.com/Thedurancode/aitickets/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// FrameScorer rates stills. *ai.Scorer implements it.
type FrameScorer interface {
	Enabled() bool
	Methods() []string
	ScoreFrames(ctx context.Context, dir string, frames []ai.Frame) map[string]ai.FrameScore
}

// errNoSignal means frames were scored but no signal contributed.
var errNoSignal = errors.New("no scoring signal rated any frame")

// Keyframer samples stills from a video.
type Keyframer interface {
	ExtractKeyframes(ctx context.Context, opts ffmpeg.KeyframeOptions) ([]ffmpeg.Keyframe, error)
}

type scoringStage struct {
	logger    zerolog.Logger
	scorer    FrameScorer
	keyframes Keyframer
	interval  time.Duration
	leadIn    time.Duration
	width     int
	parallel  int
}

// run scores photos directly and videos through their keyframes, writing
// the results into the candidates.
func (s *scoringStage) run(ctx context.Context, dir string, photos, videos []Candidate) error {
	kfDir, err := os.MkdirTemp(dir, "keyframes_*")
	if err != nil {
		return fmt.Errorf("failed to create keyframe dir: %w", err)
	}

	perVideo := make([][]ffmpeg.Keyframe, len(videos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.parallel))
	for i, v := range videos {
		g.Go(func() error {
			kfs, err := s.keyframes.ExtractKeyframes(gctx, ffmpeg.KeyframeOptions{
				Input:    v.Path,
				Dir:      kfDir,
				Prefix:   fmt.Sprintf("v%03d", i),
				Interval: s.interval,
				Width:    s.width,
			})
			if err != nil {
				s.logger.Warn().Err(err).Str("video", v.Path).Msg("keyframe extraction failed")
				return nil
			}
			perVideo[i] = kfs
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	frames := make([]ai.Frame, 0, len(photos)+len(videos)*4)
	for i, p := range photos {
		frames = append(frames, ai.Frame{Path: p.Path, Label: fmt.Sprintf("Photo %d", i+1)})
	}
	for i, kfs := range perVideo {
		for _, kf := range kfs {
			frames = append(frames, ai.Frame{
				Path:  kf.Path,
				Label: fmt.Sprintf("Video %d @ %ds", i+1, int(kf.Timestamp.Seconds())),
			})
		}
	}

	// With no frames every candidate keeps the neutral score.
	scores := map[string]ai.FrameScore{}
	if len(frames) > 0 {
		scores = s.scorer.ScoreFrames(ctx, dir, frames)
		if !anySignal(scores) {
			return errNoSignal
		}
	}

	for i := range photos {
		fs, ok := scores[photos[i].Path]
		if !ok {
			fs.Score = ai.NeutralScore
		}
		photos[i].Score = fs.Score
		photos[i].Description = fs.Description
		photos[i].Scored = true
	}

	for i := range videos {
		applyBestKeyframe(&videos[i], perVideo[i], scores, s.leadIn)
	}

	s.logger.Info().
		Int("photos", len(photos)).
		Int("videos", len(videos)).
		Int("frames", len(frames)).
		Msg("media scored")

	return nil
}

func anySignal(scores map[string]ai.FrameScore) bool {
	for _, fs := range scores {
		if fs.Local || fs.Remote {
			return true
		}
	}
	return false
}

// applyBestKeyframe gives a video the score of its best keyframe and
// starts its clip leadIn before that frame. A video with no usable
// keyframe gets the neutral score from the start.
func applyBestKeyframe(v *Candidate, kfs []ffmpeg.Keyframe, scores map[string]ai.FrameScore, leadIn time.Duration) {
	var bestScore float64
	var bestTS time.Duration
	var bestDesc string

	for _, kf := range kfs {
		fs, ok := scores[kf.Path]
		if !ok {
			continue
		}
		if fs.Score > bestScore {
			bestScore = fs.Score
			bestTS = kf.Timestamp
			bestDesc = fs.Description
		}
	}

	v.Scored = true
	if bestScore > 0 {
		v.Score = bestScore
		v.Offset = max(0, bestTS-leadIn)
		v.Description = bestDesc
		return
	}
	metrics.Fallbacks.WithLabelValues("video_neutral_score").Inc()
	v.Score = ai.NeutralScore
	v.Offset = 0
}
