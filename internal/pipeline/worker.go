package pipeline

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/Thedurancode/aitickets/internal/metrics"
	"github.com/Thedurancode/aitickets/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// Runner executes one highlight run. *Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, eventID int64) (*models.HighlightResult, error)
}

// TriggerStatus is returned to the caller of Trigger. Joined is true when
// a run for the event was already in progress.
type TriggerStatus struct {
	EventID int64 `json:"event_id"`
	State   Stage `json:"state"`
	Joined  bool  `json:"joined"`
}

// RunStatus is the latest known state of an event's run.
type RunStatus struct {
	EventID    int64                   `json:"event_id"`
	State      Stage                   `json:"state"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt *time.Time              `json:"finished_at,omitempty"`
	Error      string                  `json:"error,omitempty"`
	Result     *models.HighlightResult `json:"result,omitempty"`
}

// Worker runs highlights in the background, one at a time per event and
// at most n at once overall.
type Worker struct {
	logger zerolog.Logger
	runner Runner
	ctx    context.Context
	cancel context.CancelFunc

	group singleflight.Group
	sem   *semaphore.Weighted
	wg    sync.WaitGroup

	mu      sync.Mutex
	running map[int64]bool
	status  map[int64]*RunStatus
}

// NewWorker creates a worker whose runs are canceled when ctx is.
func NewWorker(ctx context.Context, logger zerolog.Logger, runner Runner, concurrency int) *Worker {
	if concurrency <= 0 {
		concurrency = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Worker{
		logger:  logger.With().Str("component", "worker").Logger(),
		runner:  runner,
		ctx:     ctx,
		cancel:  cancel,
		sem:     semaphore.NewWeighted(int64(concurrency)),
		running: make(map[int64]bool),
		status:  make(map[int64]*RunStatus),
	}
}

// Trigger starts a run for eventID and returns immediately. A trigger for
// an event that is already running joins that run.
func (w *Worker) Trigger(eventID int64) TriggerStatus {
	ch, joined := w.start(eventID)

	result := "started"
	if joined {
		result = "joined"
	}
	metrics.TriggersTotal.WithLabelValues(result).Inc()
	w.logger.Info().Int64("event_id", eventID).Bool("joined", joined).Msg("highlight generation triggered")

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		<-ch
	}()

	st, _ := w.Status(eventID)
	return TriggerStatus{EventID: eventID, State: st.State, Joined: joined}
}

// Generate runs eventID and waits for the result, joining a run already in
// progress.
func (w *Worker) Generate(ctx context.Context, eventID int64) (*models.HighlightResult, error) {
	ch, _ := w.start(eventID)
	select {
	case r := <-ch:
		res, _ := r.Val.(*models.HighlightResult)
		return res, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Status returns the last known state of eventID.
func (w *Worker) Status(eventID int64) (RunStatus, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	st, ok := w.status[eventID]
	if !ok {
		return RunStatus{EventID: eventID, State: StageIdle}, false
	}
	return *st, true
}

// Shutdown cancels running work and waits for it to unwind, or for ctx.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every triggered run has finished.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) start(eventID int64) (<-chan singleflight.Result, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	joined := w.running[eventID]
	if !joined {
		w.running[eventID] = true
		w.status[eventID] = &RunStatus{
			EventID:   eventID,
			State:     StageIdle,
			StartedAt: time.Now(),
		}
	}
	return w.group.DoChan(key(eventID), func() (any, error) {
		return w.execute(eventID)
	}), joined
}

func (w *Worker) execute(eventID int64) (*models.HighlightResult, error) {
	// Forget under mu so a trigger racing with completion starts a fresh run
	// instead of joining this one.
	defer func() {
		w.mu.Lock()
		w.group.Forget(key(eventID))
		delete(w.running, eventID)
		w.mu.Unlock()
	}()

	if err := w.sem.Acquire(w.ctx, 1); err != nil {
		w.record(eventID, nil, err)
		return nil, err
	}
	defer w.sem.Release(1)

	ctx := WithObserver(w.ctx, func(s Stage) {
		w.mu.Lock()
		if st, ok := w.status[eventID]; ok {
			st.State = s
		}
		w.mu.Unlock()
	})

	res, err := w.runner.Run(ctx, eventID)
	w.record(eventID, res, err)
	return res, err
}

func (w *Worker) record(eventID int64, res *models.HighlightResult, err error) {
	now := time.Now()

	w.mu.Lock()
	defer w.mu.Unlock()

	st, ok := w.status[eventID]
	if !ok {
		st = &RunStatus{EventID: eventID}
		w.status[eventID] = st
	}
	st.FinishedAt = &now
	st.Result = res
	if err != nil {
		st.State = StageFailed
		st.Error = err.Error()
		return
	}
	st.State = StageDone
}

func key(eventID int64) string {
	return strconv.FormatInt(eventID, 10)
}
