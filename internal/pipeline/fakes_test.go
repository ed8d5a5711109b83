package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Thedurancode/aitickets/internal/ai"
	"github.com/Thedurancode/aitickets/internal/config"
	"github.com/Thedurancode/aitickets/internal/ffmpeg"
	"github.com/Thedurancode/aitickets/internal/models"
	"github.com/Thedurancode/aitickets/internal/ports"
)

// fakeMedia writes small placeholder files instead of running ffmpeg.
type fakeMedia struct {
	mu sync.Mutex

	failInputs    map[string]bool
	failCrossfade bool
	failConcat    bool
	failOverlay   bool
	failMusic     bool
	emptyOverlay  bool
	noVideoStream bool
	keyframes     int
	duration      time.Duration

	calls        []string
	overlayCalls []ffmpeg.OverlayOptions
	trims        []ffmpeg.TrimOptions
	crossfades   []ffmpeg.CrossfadeOptions
	// sources holds what each crossfade input contained when joined.
	sources [][]string
}

func (f *fakeMedia) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
}

func (f *fakeMedia) called(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

func (f *fakeMedia) PhotoClip(_ context.Context, opts ffmpeg.PhotoClipOptions) error {
	f.record("photo")
	if f.failInputs[opts.Input] {
		return errors.New("corrupt photo")
	}
	return writeFile(opts.Output, "photo:"+opts.Input)
}

func (f *fakeMedia) TrimClip(_ context.Context, opts ffmpeg.TrimOptions) error {
	f.record("trim")
	f.mu.Lock()
	f.trims = append(f.trims, opts)
	f.mu.Unlock()
	if f.failInputs[opts.Input] {
		return errors.New("corrupt video")
	}
	return writeFile(opts.Output, "video:"+opts.Input)
}

func (f *fakeMedia) ProbeDuration(context.Context, string) time.Duration {
	return f.duration
}

func (f *fakeMedia) ExtractKeyframes(_ context.Context, opts ffmpeg.KeyframeOptions) ([]ffmpeg.Keyframe, error) {
	f.record("keyframes")
	if f.failInputs[opts.Input] {
		return nil, errors.New("unreadable video")
	}
	out := make([]ffmpeg.Keyframe, 0, f.keyframes)
	for i := 0; i < f.keyframes; i++ {
		p := filepath.Join(opts.Dir, fmt.Sprintf("%s_%03d.jpg", opts.Prefix, i+1))
		if err := writeFile(p, "frame"); err != nil {
			return nil, err
		}
		out = append(out, ffmpeg.Keyframe{Path: p, Timestamp: time.Duration(i) * opts.Interval})
	}
	return out, nil
}

func (f *fakeMedia) Crossfade(_ context.Context, opts ffmpeg.CrossfadeOptions) error {
	f.record("crossfade")
	f.mu.Lock()
	f.crossfades = append(f.crossfades, opts)
	var src []string
	for _, in := range opts.Inputs {
		data, _ := os.ReadFile(in)
		src = append(src, string(data))
	}
	f.sources = append(f.sources, src)
	f.mu.Unlock()
	if f.failCrossfade {
		return errors.New("xfade graph rejected")
	}
	return writeFile(opts.Output, "crossfade")
}

func (f *fakeMedia) Concat(_ context.Context, opts ffmpeg.ConcatOptions) error {
	f.record("concat")
	if f.failConcat {
		return errors.New("concat failed")
	}
	return writeFile(opts.Output, "concat")
}

func (f *fakeMedia) Overlay(_ context.Context, opts ffmpeg.OverlayOptions) error {
	f.record("overlay")
	f.mu.Lock()
	f.overlayCalls = append(f.overlayCalls, opts)
	f.mu.Unlock()
	if f.failOverlay {
		return errors.New("drawtext: font not found")
	}
	if f.emptyOverlay {
		return writeFile(opts.Output, "")
	}
	return writeFile(opts.Output, "overlay")
}

func (f *fakeMedia) MixMusic(_ context.Context, opts ffmpeg.MusicOptions) error {
	f.record("music")
	if f.failMusic {
		return errors.New("bad audio")
	}
	return writeFile(opts.Output, "music")
}

func (f *fakeMedia) ProbeVideo(_ context.Context, path string) (*ffmpeg.VideoInfo, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	if f.noVideoStream {
		return &ffmpeg.VideoInfo{FilePath: path, HasAudio: true, AudioCodec: "aac"}, nil
	}
	return &ffmpeg.VideoInfo{FilePath: path, Width: 1280, Height: 720, VideoCodec: "h264"}, nil
}

// memRepo is an in-memory event store.
type memRepo struct {
	mu      sync.Mutex
	events  map[int64]*models.Event
	media   map[int64][]models.MediaItem
	sets    int
	failSet error
}

func newMemRepo() *memRepo {
	return &memRepo{
		events: make(map[int64]*models.Event),
		media:  make(map[int64][]models.MediaItem),
	}
}

func (r *memRepo) GetEvent(_ context.Context, id int64) (*models.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev, ok := r.events[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	cp := *ev
	return &cp, nil
}

func (r *memRepo) ListMedia(_ context.Context, id int64) ([]models.MediaItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.MediaItem(nil), r.media[id]...), nil
}

func (r *memRepo) SetHighlightURL(_ context.Context, id int64, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSet != nil {
		return r.failSet
	}
	ev, ok := r.events[id]
	if !ok {
		return ports.ErrNotFound
	}
	ev.HighlightURL = url
	r.sets++
	return nil
}

func (r *memRepo) url(id int64) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[id].HighlightURL
}

type chanNotifier struct {
	ch chan ports.Message
}

func newChanNotifier() *chanNotifier {
	return &chanNotifier{ch: make(chan ports.Message, 8)}
}

func (n *chanNotifier) Notify(_ context.Context, msg ports.Message) error {
	n.ch <- msg
	return nil
}

func (n *chanNotifier) next(t *testing.T) ports.Message {
	t.Helper()
	select {
	case msg := <-n.ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
		return ports.Message{}
	}
}

// scoreByName scores a frame by looking up its base name.
type scoreByName struct {
	scores map[string]float64
}

func (s *scoreByName) Enabled() bool     { return true }
func (s *scoreByName) Methods() []string { return []string{ai.MethodFaces} }

func (s *scoreByName) ScoreFrames(_ context.Context, _ string, frames []ai.Frame) map[string]ai.FrameScore {
	out := make(map[string]ai.FrameScore, len(frames))
	for _, f := range frames {
		v, ok := s.scores[filepath.Base(f.Path)]
		if !ok {
			v = ai.NeutralScore
		}
		out[f.Path] = ai.FrameScore{Score: v, Local: true}
	}
	return out
}

// noSignalScorer rates every frame neutral without any signal behind it,
// as ai.Scorer does when all of its backends fail.
type noSignalScorer struct{}

func (noSignalScorer) Enabled() bool     { return true }
func (noSignalScorer) Methods() []string { return []string{ai.MethodVision} }

func (noSignalScorer) ScoreFrames(_ context.Context, _ string, frames []ai.Frame) map[string]ai.FrameScore {
	out := make(map[string]ai.FrameScore, len(frames))
	for _, f := range frames {
		out[f.Path] = ai.FrameScore{Score: ai.NeutralScore}
	}
	return out
}

// testEnv is an uploads dir, a temp root and a config pointing at them.
type testEnv struct {
	uploads string
	temp    string
	cfg     *config.Config
	repo    *memRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Default()
	cfg.UploadsDir = t.TempDir()
	cfg.TempDir = t.TempDir()
	cfg.Highlight.RunTimeout = 30 * time.Second
	return &testEnv{
		uploads: cfg.UploadsDir,
		temp:    cfg.TempDir,
		cfg:     cfg,
		repo:    newMemRepo(),
	}
}

// upload writes size bytes to the uploads dir and registers the item.
func (e *testEnv) upload(t *testing.T, eventID int64, name string, kind models.MediaKind, size int) models.MediaItem {
	t.Helper()
	if err := os.WriteFile(filepath.Join(e.uploads, name), make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
	e.repo.mu.Lock()
	defer e.repo.mu.Unlock()
	item := models.MediaItem{
		ID:        int64(len(e.repo.media[eventID]) + 1),
		EventID:   eventID,
		URL:       models.UploadsPrefix + name,
		Kind:      kind,
		CreatedAt: time.Now(),
	}
	e.repo.media[eventID] = append(e.repo.media[eventID], item)
	return item
}

func (e *testEnv) addEvent(id int64, name, date string) {
	e.repo.mu.Lock()
	defer e.repo.mu.Unlock()
	e.repo.events[id] = &models.Event{ID: id, Name: name, Date: date}
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
