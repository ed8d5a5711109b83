package pipeline

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Thedurancode/aitickets/internal/models"
	"github.com/rs/zerolog"
)

// gatedRunner blocks every run until release is closed.
type gatedRunner struct {
	calls   atomic.Int32
	started chan int64
	release chan struct{}
	err     error
}

func newGatedRunner() *gatedRunner {
	return &gatedRunner{started: make(chan int64, 8), release: make(chan struct{})}
}

func (g *gatedRunner) Run(ctx context.Context, eventID int64) (*models.HighlightResult, error) {
	g.calls.Add(1)
	observerFrom(ctx)(StageBuilding)
	g.started <- eventID
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if g.err != nil {
		return nil, g.err
	}
	return &models.HighlightResult{EventID: eventID, URL: "/uploads/highlight_x.mp4"}, nil
}

func waitStarted(t *testing.T, g *gatedRunner) int64 {
	t.Helper()
	select {
	case id := <-g.started:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("run never started")
		return 0
	}
}

func TestWorkerSingleFlight(t *testing.T) {
	runner := newGatedRunner()
	w := NewWorker(context.Background(), zerolog.New(io.Discard), runner, 2)

	first := w.Trigger(5)
	if first.Joined {
		t.Fatal("first trigger should start a run")
	}
	waitStarted(t, runner)

	second := w.Trigger(5)
	if !second.Joined {
		t.Error("second trigger should join the running job")
	}
	if second.State != StageBuilding {
		t.Errorf("expected joined state building, got %v", second.State)
	}

	close(runner.release)
	w.Wait()

	if n := runner.calls.Load(); n != 1 {
		t.Errorf("expected one run, got %d", n)
	}
	st, ok := w.Status(5)
	if !ok || st.State != StageDone || st.Result == nil || st.FinishedAt == nil {
		t.Errorf("unexpected final status %+v", st)
	}

	// Once finished, a new trigger starts a fresh run.
	runner.release = make(chan struct{})
	close(runner.release)
	if again := w.Trigger(5); again.Joined {
		t.Error("trigger after completion should not join")
	}
	w.Wait()
	if n := runner.calls.Load(); n != 2 {
		t.Errorf("expected a second run, got %d", n)
	}
}

func TestWorkerBoundsConcurrency(t *testing.T) {
	runner := newGatedRunner()
	w := NewWorker(context.Background(), zerolog.New(io.Discard), runner, 1)

	w.Trigger(1)
	w.Trigger(2)
	waitStarted(t, runner)

	select {
	case id := <-runner.started:
		t.Fatalf("event %d started while another run held the only slot", id)
	case <-time.After(100 * time.Millisecond):
	}

	close(runner.release)
	waitStarted(t, runner)
	w.Wait()
}

func TestWorkerGenerateJoins(t *testing.T) {
	runner := newGatedRunner()
	w := NewWorker(context.Background(), zerolog.New(io.Discard), runner, 2)

	w.Trigger(8)
	waitStarted(t, runner)

	// Release once Generate has had time to join.
	timer := time.AfterFunc(100*time.Millisecond, func() { close(runner.release) })
	defer timer.Stop()

	res, err := w.Generate(context.Background(), 8)
	w.Wait()

	if err != nil || res == nil || res.EventID != 8 {
		t.Errorf("Generate = %+v, %v", res, err)
	}
	if n := runner.calls.Load(); n != 1 {
		t.Errorf("Generate should join the running job, got %d runs", n)
	}
}

func TestWorkerRecordsFailure(t *testing.T) {
	runner := newGatedRunner()
	runner.err = ErrNoMedia
	close(runner.release)
	w := NewWorker(context.Background(), zerolog.New(io.Discard), runner, 1)

	if _, err := w.Generate(context.Background(), 3); !errors.Is(err, ErrNoMedia) {
		t.Fatalf("expected ErrNoMedia, got %v", err)
	}
	st, _ := w.Status(3)
	if st.State != StageFailed || st.Error != ErrNoMedia.Error() {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestWorkerShutdownCancelsRuns(t *testing.T) {
	runner := newGatedRunner()
	w := NewWorker(context.Background(), zerolog.New(io.Discard), runner, 1)

	w.Trigger(1)
	waitStarted(t, runner)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := w.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if st, _ := w.Status(1); st.State != StageFailed {
		t.Errorf("canceled run should be failed, got %v", st.State)
	}
}

func TestStageString(t *testing.T) {
	if StageBuilding.String() != "building_clips" || Stage(99).String() != "unknown" {
		t.Errorf("unexpected names %q %q", StageBuilding, Stage(99))
	}
	if !StageDone.Terminal() || StageOverlaying.Terminal() {
		t.Error("terminal stages misreported")
	}
}
