package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/Thedurancode/aitickets/internal/ai"
	"github.com/Thedurancode/aitickets/internal/config"
	"github.com/Thedurancode/aitickets/internal/ffmpeg"
	"github.com/Thedurancode/aitickets/internal/notify"
	"github.com/Thedurancode/aitickets/internal/overlays"
	"github.com/Thedurancode/aitickets/internal/pipeline"
	"github.com/Thedurancode/aitickets/internal/store"
	"github.com/Thedurancode/aitickets/pkg/util"
)

// app holds everything a command needs to run the pipeline.
type app struct {
	pool     *pgxpool.Pool
	pipeline *pipeline.Pipeline
	hub      *notify.Hub
	closers  []func() error
}

// newApp wires storage, ffmpeg, scoring and notification sinks. withHub
// adds the websocket hub as a sink for the long-running server.
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger, withHub bool) (*app, error) {
	a := &app{}

	if err := util.EnsureDir(cfg.UploadsDir); err != nil {
		return nil, fmt.Errorf("uploads dir: %w", err)
	}

	pool, err := store.NewPgxPool(ctx, cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	a.pool = pool

	ff, err := ffmpeg.New(logger, ffmpegSettings(cfg.FFmpeg))
	if err != nil {
		a.Close()
		return nil, err
	}
	t := ff.Timeouts()
	logger.Info().
		Dur("probe", t.Probe).
		Dur("video_clip", t.VideoClip).
		Dur("composite", t.Composite).
		Dur("overlay", t.Overlay).
		Msg("ffmpeg ready")

	var sinks []notify.Sink
	if withHub {
		a.hub = notify.NewHub(logger)
		sinks = append(sinks, notify.Sink{Name: "websocket", Notifier: a.hub})
	}
	if cfg.AMQP.URL != "" {
		pub, err := notify.NewAMQPPublisher(logger, cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			logger.Warn().Err(err).Msg("amqp unavailable, notifications stay in-process")
		} else {
			a.closers = append(a.closers, pub.Close)
			sinks = append(sinks, notify.Sink{Name: "amqp", Notifier: pub})
		}
	}

	a.pipeline = pipeline.New(logger, cfg, pipeline.Deps{
		Repo:     store.NewPostgresEventRepo(pool),
		Notifier: notify.NewMulti(logger, sinks...),
		Media:    ff,
		Scorer:   a.newScorer(logger, cfg, ff),
		Overlays: overlays.NewRegistry(),
	})
	return a, nil
}

// newScorer enables whichever signals are configured. With neither, the
// pipeline selects by file size.
func (a *app) newScorer(logger zerolog.Logger, cfg *config.Config, thumbs ai.Thumbnailer) *ai.Scorer {
	var faces ai.FaceDetector
	det, err := ai.NewONNXFaceDetector(logger, ai.FaceModelConfig{
		ModelPath:     cfg.Faces.ModelPath,
		LibraryPath:   cfg.Faces.LibraryPath,
		InputSize:     cfg.Faces.InputSize,
		MaxFaces:      cfg.Faces.MaxFaces,
		MinConfidence: cfg.Faces.MinConfidence,
	})
	switch {
	case err == nil:
		faces = det
		a.closers = append(a.closers, det.Close)
	case errors.Is(err, ai.ErrDetectorUnavailable) && cfg.Faces.ModelPath == "":
		logger.Debug().Msg("no face model configured")
	default:
		logger.Warn().Err(err).Msg("face detection disabled")
	}

	var vision ai.BatchScorer
	vs, err := ai.NewVisionScorer(logger, ai.VisionConfig{
		APIKey:    cfg.Vision.APIKey,
		BaseURL:   cfg.Vision.BaseURL,
		Model:     cfg.Vision.Model,
		Detail:    cfg.Vision.Detail,
		MaxTokens: cfg.Vision.MaxTokens,
		Timeout:   cfg.Vision.Timeout,
		ThumbSize: cfg.Vision.ThumbSize,
		Breaker:   ai.DefaultBreakerSettings,
	}, thumbs)
	if err == nil {
		vision = vs
	} else {
		logger.Info().Err(err).Msg("vision scoring disabled")
	}

	return ai.NewScorer(logger, faces, vision, cfg.Vision.BatchSize)
}

func ffmpegSettings(c config.FFmpegConfig) ffmpeg.Settings {
	t := c.Timeouts
	return ffmpeg.Settings{
		Threads: c.Threads,
		Preset:  c.Preset,
		CRF:     c.CRF,
		Timeouts: ffmpeg.Timeouts{
			Probe:     t.Probe,
			Thumbnail: t.Thumbnail,
			Keyframes: t.Keyframes,
			PhotoClip: t.PhotoClip,
			VideoClip: t.VideoClip,
			Composite: t.Composite,
			Overlay:   t.Overlay,
			Music:     t.Music,
		},
	}
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
