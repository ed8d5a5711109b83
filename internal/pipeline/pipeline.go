// Package pipeline turns an event's attendee uploads into a highlight
// reel: select, score, build clips, sequence, composite, overlay, publish.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/Thedurancode/aitickets/internal/clips"
	"github.com/Thedurancode/aitickets/internal/config"
	"github.com/Thedurancode/aitickets/internal/ffmpeg"
	"github.com/Thedurancode/aitickets/internal/logging"
	"github.com/Thedurancode/aitickets/internal/metrics"
	"github.com/Thedurancode/aitickets/internal/models"
	"github.com/Thedurancode/aitickets/internal/overlays"
	"github.com/Thedurancode/aitickets/internal/ports"
	"github.com/Thedurancode/aitickets/pkg/util"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Prober reads stream metadata of a finished reel.
type Prober interface {
	ProbeVideo(ctx context.Context, path string) (*ffmpeg.VideoInfo, error)
}

// Media is every ffmpeg operation a run needs.
type Media interface {
	ClipRenderer
	Joiner
	Keyframer
	Prober
}

// Deps are the collaborators of a Pipeline. Scorer and Notifier may be
// nil.
type Deps struct {
	Repo     ports.EventRepository
	Notifier ports.Notifier
	Media    Media
	Scorer   FrameScorer
	Overlays *overlays.Registry
}

// Pipeline runs highlight generation for one event at a time.
type Pipeline struct {
	logger     zerolog.Logger
	repo       ports.EventRepository
	scorer     FrameScorer
	selector   *Selector
	scoring    *scoringStage
	builder    *Builder
	compositor *Compositor
	publisher  *Publisher
	prober     Prober
	uploadsDir string
	tempDir    string
	runTimeout time.Duration
}

// New wires a pipeline from configuration.
func New(logger zerolog.Logger, cfg *config.Config, deps Deps) *Pipeline {
	h := cfg.Highlight
	format := ffmpeg.Format{Width: h.Width, Height: h.Height, FPS: h.FPS}
	if format.Width <= 0 || format.Height <= 0 || format.FPS <= 0 {
		format = ffmpeg.DefaultFormat
	}

	logger = logger.With().Str("component", "pipeline").Logger()

	return &Pipeline{
		logger:   logger,
		repo:     deps.Repo,
		scorer:   deps.Scorer,
		selector: NewSelector(cfg.UploadsDir, h.MaxPhotos, h.MaxVideos),
		scoring: &scoringStage{
			logger:    logger,
			scorer:    deps.Scorer,
			keyframes: deps.Media,
			interval:  h.KeyframeInterval,
			leadIn:    h.LeadIn,
			width:     cfg.Vision.ThumbSize,
			parallel:  max(1, cfg.Concurrency),
		},
		builder: NewBuilder(logger, deps.Media, format, h.PhotoDuration, h.VideoClipMax),
		compositor: NewCompositor(logger, deps.Media, deps.Overlays, CompositorOptions{
			Fade:              h.Crossfade,
			CrossfadeMaxClips: h.CrossfadeMaxClips,
			FallbackDuration:  h.PhotoDuration,
			Overlay:           h.Overlay,
			MusicPath:         h.MusicPath,
			MusicVolume:       h.MusicVolume,
		}),
		publisher:  NewPublisher(logger, deps.Repo, deps.Notifier, cfg.UploadsDir),
		prober:     deps.Media,
		uploadsDir: cfg.UploadsDir,
		tempDir:    cfg.TempDir,
		runTimeout: h.RunTimeout,
	}
}

// Run generates and publishes a highlight reel for eventID.
func (p *Pipeline) Run(ctx context.Context, eventID int64) (*models.HighlightResult, error) {
	if p.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.runTimeout)
		defer cancel()
	}

	r := &run{
		p:       p,
		eventID: eventID,
		logger:  logging.ForRun(p.logger, eventID, uuid.NewString()),
		observe: observerFrom(ctx),
	}

	metrics.RunsInFlight.Inc()
	defer metrics.RunsInFlight.Dec()
	start := time.Now()

	res, err := r.execute(ctx)
	r.finish()
	metrics.RunDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.RunsTotal.WithLabelValues(outcomeLabel(err)).Inc()
		r.enter(StageFailed)
		r.logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("highlight generation failed")
		return nil, err
	}

	metrics.RunsTotal.WithLabelValues("success").Inc()
	r.enter(StageDone)
	r.logger.Info().
		Str("url", res.URL).
		Float64("size_mb", res.SizeMB).
		Int("clips", res.ClipsUsed).
		Dur("elapsed", time.Since(start)).
		Msg("highlight video complete")
	return res, nil
}

// run is the state of a single invocation.
type run struct {
	p       *Pipeline
	eventID int64
	logger  zerolog.Logger
	observe Observer

	stage      Stage
	stageStart time.Time
}

func (r *run) enter(s Stage) {
	r.finish()
	r.stage = s
	r.stageStart = time.Now()
	r.logger.Debug().Stringer("stage", s).Msg("entering stage")
	r.observe(s)
}

// finish records how long the current stage took.
func (r *run) finish() {
	if r.stageStart.IsZero() || r.stage.Terminal() {
		return
	}
	metrics.StageDuration.WithLabelValues(r.stage.String()).Observe(time.Since(r.stageStart).Seconds())
	r.stageStart = time.Time{}
}

func (r *run) execute(ctx context.Context) (*models.HighlightResult, error) {
	p := r.p
	r.enter(StageSelecting)

	ev, err := p.repo.GetEvent(ctx, r.eventID)
	if errors.Is(err, ports.ErrNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load event: %w", err)
	}

	items, err := p.repo.ListMedia(ctx, r.eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load media: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrNoMedia
	}

	tmp, err := os.MkdirTemp(p.tempDir, "highlight_*")
	if err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	photos, videos := p.selector.Resolve(items)

	scored := false
	if p.scorer != nil && p.scorer.Enabled() && len(photos)+len(videos) > 0 {
		r.enter(StageScoring)
		r.logger.Info().Strs("methods", p.scorer.Methods()).Msg("using AI scoring")
		if err := p.scoring.run(ctx, tmp, photos, videos); err != nil {
			metrics.Fallbacks.WithLabelValues("scoring").Inc()
			r.logger.Warn().Err(err).Msg("AI scoring failed, falling back to file-size selection")
		} else {
			scored = true
		}
	}

	var selPhotos, selVideos []Candidate
	if scored {
		selPhotos, selVideos = p.selector.Scored(photos, videos)
	} else {
		selPhotos, selVideos = p.selector.Unscored(photos, videos)
	}
	if len(selPhotos)+len(selVideos) == 0 {
		return nil, ErrNoUsableMedia
	}

	r.logger.Info().
		Int("photos", len(selPhotos)).
		Int("videos", len(selVideos)).
		Bool("ai_scored", scored).
		Msg("media selected")

	r.enter(StageBuilding)
	built, err := p.builder.Build(ctx, tmp, selPhotos, selVideos)
	if err != nil {
		return nil, err
	}

	r.enter(StageSequencing)
	ordered := sequence(built, scored)

	r.enter(StageCompositing)
	joined, err := p.compositor.Composite(ctx, tmp, ordered)
	if err != nil {
		return nil, err
	}

	r.enter(StageOverlaying)
	name := fmt.Sprintf("highlight_ev%d_%s.mp4", r.eventID, uuid.NewString()[:8])
	out := filepath.Join(p.uploadsDir, name)
	if err := p.compositor.Finish(ctx, tmp, joined, ev, out); err != nil {
		util.CleanupFiles(out)
		return nil, fmt.Errorf("%w: %v", ErrEmptyOutput, err)
	}

	size, err := p.validateOutput(ctx, out)
	if err != nil {
		return nil, err
	}

	res := &models.HighlightResult{
		EventID:   r.eventID,
		URL:       models.UploadsPrefix + name,
		SizeMB:    math.Round(float64(size)/(1024*1024)*10) / 10,
		ClipsUsed: len(ordered),
		Photos:    len(selPhotos),
		Videos:    len(selVideos),
		Scored:    scored,

		ScoringMethods: []string{},
	}
	if scored {
		res.ScoringMethods = p.scorer.Methods()
	}

	r.enter(StagePublishing)
	if err := p.publisher.Publish(ctx, res); err != nil {
		util.CleanupFiles(out)
		return nil, err
	}
	return res, nil
}

// sequence applies the narrative arc to scored reels of more than three
// clips and keeps upload order otherwise.
func sequence(cs []clips.Clip, scored bool) []clips.Clip {
	if scored && len(cs) > 3 {
		return clips.Narrative(cs)
	}
	return clips.UploadOrder(cs)
}

// validateOutput returns the size of a finished reel once it holds a
// readable video stream. A bad reel is removed and ErrEmptyOutput
// returned.
func (p *Pipeline) validateOutput(ctx context.Context, path string) (int64, error) {
	size, err := outputSize(path)
	if err != nil {
		return 0, err
	}
	info, err := p.prober.ProbeVideo(ctx, path)
	if err != nil || info.Width == 0 || info.Height == 0 {
		util.CleanupFiles(path)
		if err == nil {
			err = errors.New("no video stream")
		}
		return 0, fmt.Errorf("%w: %v", ErrEmptyOutput, err)
	}
	return size, nil
}

// outputSize returns the size of a finished reel, removing it and
// returning ErrEmptyOutput when it is missing or empty.
func outputSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		util.CleanupFiles(path)
		return 0, ErrEmptyOutput
	}
	return info.Size(), nil
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, ErrEventNotFound):
		return "event_not_found"
	case errors.Is(err, ErrNoMedia), errors.Is(err, ErrNoUsableMedia):
		return "no_media"
	case errors.Is(err, ErrAllClipsFailed):
		return "all_clips_failed"
	case errors.Is(err, ErrEmptyOutput):
		return "empty_output"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
