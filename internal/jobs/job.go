package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"media-downloader/internal/domain"
	"media-downloader/internal/engine"
	"media-downloader/internal/logger"
)

// errJobStarted is returned when Start is called on a job that already left Idle.
var errJobStarted = errors.New("job already started")

// jobHooks receive job output on the job's background goroutine.
type jobHooks struct {
	onProgress func(*DownloadJob, domain.ProgressRecord)
	onTerminal func(*DownloadJob, domain.Job, error)
}

// DownloadJob is the state machine for a single download.
// A job is used once: terminal states are final and a new download needs a new job.
type DownloadJob struct {
	id     string
	desc   domain.JobDescriptor
	engine engine.Engine
	hooks  jobHooks
	log    *logger.Logger

	// cancelled is the per-job cancellation flag shared with the engine call.
	cancelled atomic.Bool
	// returned is set as soon as the engine call comes back.
	returned atomic.Bool

	mu         sync.RWMutex
	state      domain.JobState
	progress   domain.ProgressRecord
	err        error
	startedAt  time.Time
	finishedAt time.Time

	finishOnce sync.Once
	done       chan struct{}
}

// newDownloadJob creates a job in Idle state.
func newDownloadJob(id string, desc domain.JobDescriptor, eng engine.Engine, hooks jobHooks, log *logger.Logger) *DownloadJob {
	return &DownloadJob{
		id:     id,
		desc:   desc,
		engine: eng,
		hooks:  hooks,
		log:    log,
		state:  domain.JobStateIdle,
		done:   make(chan struct{}),
	}
}

// ID returns the job identifier.
func (j *DownloadJob) ID() string {
	return j.id
}

// Start moves Idle -> Running and invokes the engine on a new goroutine.
func (j *DownloadJob) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.state != domain.JobStateIdle {
		j.mu.Unlock()
		return errJobStarted
	}
	j.state = domain.JobStateRunning
	j.startedAt = time.Now().UTC()
	j.mu.Unlock()

	go j.run(ctx)
	return nil
}

// Cancel requests cooperative cancellation. It is a no-op unless the job is Running
// and its engine call is still in flight, so calling it twice has the same effect
// as calling it once.
func (j *DownloadJob) Cancel() bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.state != domain.JobStateRunning || j.returned.Load() {
		return false
	}
	j.cancelled.Store(true)
	j.state = domain.JobStateCancelling
	return true
}

// State returns the current lifecycle state.
func (j *DownloadJob) State() domain.JobState {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state
}

// Progress returns the latest progress record, if any was received.
func (j *DownloadJob) Progress() (domain.ProgressRecord, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.progress, j.progress.JobID != ""
}

// Done is closed once the job reaches a terminal state and its hooks have run.
func (j *DownloadJob) Done() <-chan struct{} {
	return j.done
}

// Result returns the terminal state and the failure, if any.
func (j *DownloadJob) Result() (domain.JobState, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state, j.err
}

// Snapshot returns a copy of the job metadata.
func (j *DownloadJob) Snapshot() domain.Job {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.snapshotLocked()
}

func (j *DownloadJob) snapshotLocked() domain.Job {
	job := domain.Job{
		ID:         j.id,
		State:      j.state,
		Descriptor: j.desc,
		StartedAt:  j.startedAt,
		FinishedAt: j.finishedAt,
	}
	if j.err != nil {
		job.Error = j.err.Error()
	}
	return job
}

// run executes the engine call and converts its outcome into a terminal state.
func (j *DownloadJob) run(ctx context.Context) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = &domain.EngineError{Kind: domain.EngineErrorUnknown, Message: fmt.Sprintf("engine panic: %v", r)}
		}
		j.returned.Store(true)
		j.finish(err)
	}()

	err = j.engine.Run(ctx, j.desc, j.ingest, j.cancelled.Load)
}

// ingest normalizes one engine event and publishes it while the job is live.
func (j *DownloadJob) ingest(ev engine.Event) {
	if j.cancelled.Load() {
		return
	}

	rec := normalize(j.id, ev)

	j.mu.Lock()
	if j.state != domain.JobStateRunning {
		j.mu.Unlock()
		return
	}
	j.progress = rec
	j.mu.Unlock()

	if j.hooks.onProgress != nil {
		j.hooks.onProgress(j, rec)
	}
}

// finish applies the terminal transition exactly once.
func (j *DownloadJob) finish(runErr error) {
	j.finishOnce.Do(func() {
		j.mu.Lock()
		terminal, err := classifyOutcome(j.cancelled.Load(), runErr)
		from := j.state
		if !isValidTransition(from, terminal) {
			j.log.Warn("unexpected terminal transition", "job", j.id, "from", from, "to", terminal)
		}
		j.state = terminal
		j.err = err
		j.finishedAt = time.Now().UTC()
		snapshot := j.snapshotLocked()
		j.mu.Unlock()

		if j.hooks.onTerminal != nil {
			j.hooks.onTerminal(j, snapshot, err)
		}
		close(j.done)
	})
}

// classifyOutcome maps the flag and engine result to a terminal state.
// Once the flag is set the job can only end Cancelled.
func classifyOutcome(flagSet bool, runErr error) (domain.JobState, error) {
	switch {
	case flagSet:
		return domain.JobStateCancelled, nil
	case runErr == nil:
		return domain.JobStateCompleted, nil
	case domain.IsCancelled(runErr):
		return domain.JobStateCancelled, nil
	default:
		var engineErr *domain.EngineError
		if !errors.As(runErr, &engineErr) {
			runErr = &domain.EngineError{Kind: domain.EngineErrorUnknown, Message: "download failed", Err: runErr}
		}
		return domain.JobStateFailed, runErr
	}
}

// isValidTransition enforces the allowed job state machine edges.
func isValidTransition(from, to domain.JobState) bool {
	switch from {
	case domain.JobStateIdle:
		return to == domain.JobStateRunning
	case domain.JobStateRunning:
		return to == domain.JobStateCancelling || to == domain.JobStateCompleted || to == domain.JobStateFailed || to == domain.JobStateCancelled
	case domain.JobStateCancelling:
		return to == domain.JobStateCancelled
	default:
		return false
	}
}
