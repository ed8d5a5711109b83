// Package ai rates photos and video keyframes for the highlight selector.
// A local face/smile model and a remote vision model each contribute a
// score; either may be missing and any single failure only removes that
// signal.
package ai

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Scoring method names reported in run results.
const (
	MethodVision = "openai"
	MethodFaces  = "faces"
)

// DefaultBatchSize is the number of images per vision request.
const DefaultBatchSize = 20

// Frame is one image to score.
type Frame struct {
	Path  string
	Label string
}

// FrameScore is the merged result for one frame.
type FrameScore struct {
	Score       float64
	Description string
	Faces       int
	SmileAvg    float64
	Remote      bool
	Local       bool
}

// BatchScorer rates a batch of frames remotely. ImageIndex in the result
// is a position in frames.
type BatchScorer interface {
	ScoreBatch(ctx context.Context, dir string, frames []Frame) ([]VisionScore, error)
}

// Scorer combines a FaceDetector and a BatchScorer. Either may be nil.
type Scorer struct {
	logger    zerolog.Logger
	faces     FaceDetector
	vision    BatchScorer
	batchSize int
}

// NewScorer creates a scorer. Pass untyped nil for a missing signal.
func NewScorer(logger zerolog.Logger, faces FaceDetector, vision BatchScorer, batchSize int) *Scorer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Scorer{
		logger:    logger.With().Str("component", "scorer").Logger(),
		faces:     faces,
		vision:    vision,
		batchSize: batchSize,
	}
}

// Enabled reports whether any scoring signal is configured.
func (s *Scorer) Enabled() bool {
	return s != nil && (s.faces != nil || s.vision != nil)
}

// Methods lists the configured signals.
func (s *Scorer) Methods() []string {
	var m []string
	if s == nil {
		return m
	}
	if s.vision != nil {
		m = append(m, MethodVision)
	}
	if s.faces != nil {
		m = append(m, MethodFaces)
	}
	return m
}

// ScoreFrames scores every frame. dir is scratch space for upload
// thumbnails. The result has an entry for every input path.
func (s *Scorer) ScoreFrames(ctx context.Context, dir string, frames []Frame) map[string]FrameScore {
	var (
		local  map[string]FaceResult
		remote map[string]VisionScore
	)

	g, gctx := errgroup.WithContext(ctx)
	if s.faces != nil {
		g.Go(func() error {
			local = s.detectAll(gctx, frames)
			return nil
		})
	}
	if s.vision != nil {
		g.Go(func() error {
			remote = s.scoreRemote(gctx, dir, frames)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]FrameScore, len(frames))
	for _, f := range frames {
		var fs FrameScore
		var rs, ls *float64

		if v, ok := remote[f.Path]; ok {
			r := RemoteScore(v)
			rs = &r
			fs.Remote = true
			fs.Description = v.Description
		}
		if fr, ok := local[f.Path]; ok {
			l := LocalScore(fr.Faces, fr.SmileAvg)
			ls = &l
			fs.Local = true
			fs.Faces = fr.Faces
			fs.SmileAvg = fr.SmileAvg
		}
		fs.Score = Merge(rs, ls)
		out[f.Path] = fs
	}

	s.logger.Info().
		Int("frames", len(frames)).
		Int("remote", len(remote)).
		Int("local", len(local)).
		Msg("frames scored")

	return out
}

// detectAll runs the face model on every frame. A frame that fails to
// decode or infer counts as having no faces.
func (s *Scorer) detectAll(ctx context.Context, frames []Frame) map[string]FaceResult {
	out := make(map[string]FaceResult, len(frames))
	withFaces := 0
	for _, f := range frames {
		if ctx.Err() != nil {
			break
		}
		res, err := s.faces.Detect(ctx, f.Path)
		if err != nil {
			s.logger.Warn().Err(err).Str("image", f.Path).Msg("face detection failed")
			res = FaceResult{}
		}
		if res.Faces > 0 {
			withFaces++
		}
		out[f.Path] = res
	}
	s.logger.Debug().Int("images", len(out)).Int("with_faces", withFaces).Msg("local scoring done")
	return out
}

func (s *Scorer) scoreRemote(ctx context.Context, dir string, frames []Frame) map[string]VisionScore {
	out := make(map[string]VisionScore)
	for start := 0; start < len(frames); start += s.batchSize {
		if ctx.Err() != nil {
			break
		}
		end := min(start+s.batchSize, len(frames))
		batch := frames[start:end]

		scores, err := s.vision.ScoreBatch(ctx, dir, batch)
		if err != nil {
			s.logger.Warn().Err(err).Int("batch_start", start).Int("batch_size", len(batch)).Msg("vision batch failed, continuing without it")
			continue
		}
		for _, v := range scores {
			if v.ImageIndex < 0 || v.ImageIndex >= len(batch) {
				continue
			}
			out[batch[v.ImageIndex].Path] = v
		}
	}
	return out
}
