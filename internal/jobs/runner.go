package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"media-downloader/internal/domain"
	"media-downloader/internal/engine"
	"media-downloader/internal/logger"
)

// Validator rejects descriptors that must never start and returns the
// descriptor with its tool locations resolved.
type Validator interface {
	ValidateDescriptor(domain.JobDescriptor) (domain.JobDescriptor, error)
}

// Runner owns the single current DownloadJob and runs it off the caller's goroutine.
type Runner struct {
	engine    engine.Engine
	validator Validator
	events    *EventBus
	log       *logger.Logger
	newID     func() string

	baseCtx context.Context
	stop    context.CancelFunc
	inbox   *mailbox

	mu       sync.RWMutex
	current  *DownloadJob
	last     domain.Job
	progress domain.ProgressRecord
}

// NewRunner creates an idle runner. events may be nil.
func NewRunner(eng engine.Engine, validator Validator, events *EventBus, log *logger.Logger) *Runner {
	ctx, stop := context.WithCancel(context.Background())
	return &Runner{
		engine:    eng,
		validator: validator,
		events:    events,
		log:       log.With("runner"),
		newID:     func() string { return "job-" + uuid.NewString() },
		baseCtx:   ctx,
		stop:      stop,
		inbox:     newMailbox(),
		last:      domain.Job{State: domain.JobStateIdle},
	}
}

// Submit validates desc and starts a new job in the background.
// It fails with ErrJobAlreadyActive while a job is running or cancelling, and with
// an error wrapping ErrInvalidDescriptor before any state is committed.
func (r *Runner) Submit(desc domain.JobDescriptor) (domain.Job, error) {
	if r.Active() {
		return domain.Job{}, domain.ErrJobAlreadyActive
	}

	if r.validator != nil {
		resolved, err := r.validator.ValidateDescriptor(desc)
		if err != nil {
			r.log.Info("descriptor rejected", "url", desc.URL, "error", err)
			return domain.Job{}, err
		}
		desc = resolved
	}
	if desc.Container == "" {
		desc.Container = domain.DefaultContainer
	}

	r.mu.Lock()
	if r.current != nil {
		r.mu.Unlock()
		return domain.Job{}, domain.ErrJobAlreadyActive
	}

	job := newDownloadJob(r.newID(), desc, r.engine, jobHooks{
		onProgress: r.handleProgress,
		onTerminal: r.handleTerminal,
	}, r.log)
	r.current = job
	r.progress = domain.ProgressRecord{}
	r.log.Info("job submitted", "job", job.ID(), "url", desc.URL, "dir", desc.Directory)
	r.publish(Event{
		JobID:     job.ID(),
		Type:      EventTypeStatus,
		State:     domain.JobStateRunning,
		Message:   "Starting download",
		Directory: desc.Directory,
	})

	if err := job.Start(r.baseCtx); err != nil {
		r.current = nil
		r.mu.Unlock()
		return domain.Job{}, fmt.Errorf("start job: %w", err)
	}
	snapshot := job.Snapshot()
	r.last = snapshot
	r.mu.Unlock()

	return snapshot, nil
}

// CancelCurrent forwards a cancel request to the active job.
// With no active job it only logs; it reports whether a job was signalled.
func (r *Runner) CancelCurrent() bool {
	r.mu.RLock()
	job := r.current
	r.mu.RUnlock()

	if job == nil || !job.Cancel() {
		r.log.Debug("cancel ignored: no running job")
		return false
	}

	r.mu.Lock()
	if r.current == job {
		r.last = job.Snapshot()
	}
	r.mu.Unlock()

	r.log.Info("cancellation requested", "job", job.ID())
	r.publish(Event{
		JobID:   job.ID(),
		Type:    EventTypeStatus,
		State:   domain.JobStateCancelling,
		Message: "Cancelling download",
	})
	return true
}

// CurrentProgress returns the latest progress record of the active job.
// ok is false when no job is active or no progress arrived yet.
func (r *Runner) CurrentProgress() (rec domain.ProgressRecord, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == nil || r.progress.JobID == "" {
		return domain.ProgressRecord{}, false
	}
	return r.progress, true
}

// Current returns the active job, or the last finished one, or an Idle job.
func (r *Runner) Current() domain.Job {
	r.mu.RLock()
	job := r.current
	last := r.last
	r.mu.RUnlock()

	if job != nil {
		return job.Snapshot()
	}
	return last
}

// Active reports whether a job is running or cancelling.
func (r *Runner) Active() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current != nil
}

// Ready is signalled whenever notifications are waiting in Drain.
func (r *Runner) Ready() <-chan struct{} {
	return r.inbox.ready
}

// Drain returns and clears pending notifications in delivery order.
func (r *Runner) Drain() []Notification {
	return r.inbox.drain()
}

// Dispatch delivers notifications to obs on the calling goroutine until ctx ends.
func (r *Runner) Dispatch(ctx context.Context, obs Observer) error {
	return r.inbox.dispatch(ctx, obs)
}

// Wait blocks until the active job (if any) reaches a terminal state.
func (r *Runner) Wait(ctx context.Context) (domain.Job, error) {
	r.mu.RLock()
	job := r.current
	r.mu.RUnlock()

	if job == nil {
		return r.Current(), nil
	}

	select {
	case <-job.Done():
		return job.Snapshot(), nil
	case <-ctx.Done():
		return job.Snapshot(), ctx.Err()
	}
}

// Close cancels the engine context of any running job and waits for it to end.
func (r *Runner) Close() {
	r.mu.RLock()
	job := r.current
	r.mu.RUnlock()

	if job != nil {
		job.Cancel()
	}
	r.stop()
	if job != nil {
		<-job.Done()
	}
}

// handleProgress runs on the job goroutine.
func (r *Runner) handleProgress(job *DownloadJob, rec domain.ProgressRecord) {
	r.mu.Lock()
	if r.current != job {
		r.mu.Unlock()
		return
	}
	r.progress = rec
	r.mu.Unlock()

	r.inbox.push(Notification{Kind: NotificationProgress, Progress: rec})
	progress := rec
	r.publish(Event{
		JobID:    rec.JobID,
		Type:     EventTypeProgress,
		State:    domain.JobStateRunning,
		Message:  rec.Phrase,
		Progress: &progress,
	})
}

// handleTerminal runs once per job on the job goroutine and discards the job.
func (r *Runner) handleTerminal(job *DownloadJob, snapshot domain.Job, err error) {
	r.mu.Lock()
	if r.current == job {
		r.current = nil
	}
	r.last = snapshot
	r.mu.Unlock()

	errDescription := ""
	if err != nil {
		errDescription = err.Error()
	}

	switch snapshot.State {
	case domain.JobStateCompleted:
		r.log.Info("download completed", "job", snapshot.ID, "url", snapshot.Descriptor.URL)
	case domain.JobStateCancelled:
		r.log.Info("download cancelled", "job", snapshot.ID, "url", snapshot.Descriptor.URL)
	default:
		r.log.Error("download failed", "job", snapshot.ID, "url", snapshot.Descriptor.URL, "kind", domain.EngineErrorKindOf(err), "error", errDescription)
	}

	r.inbox.push(Notification{Kind: NotificationTerminal, Job: snapshot, Error: errDescription})
	r.publishTerminal(snapshot, err)
}

func (r *Runner) publishTerminal(snapshot domain.Job, err error) {
	switch snapshot.State {
	case domain.JobStateCompleted:
		r.publish(Event{JobID: snapshot.ID, Type: EventTypeStatus, State: snapshot.State, Message: "Download completed"})
		r.publish(Event{JobID: snapshot.ID, Type: EventTypeResult, State: snapshot.State, Message: "Download completed", Directory: snapshot.Descriptor.Directory})
	case domain.JobStateCancelled:
		r.publish(Event{JobID: snapshot.ID, Type: EventTypeStatus, State: snapshot.State, Message: "Download cancelled"})
	default:
		r.publish(Event{JobID: snapshot.ID, Type: EventTypeStatus, State: snapshot.State, Message: "Download failed"})
		r.publish(Event{
			JobID:     snapshot.ID,
			Type:      EventTypeError,
			State:     snapshot.State,
			Message:   snapshot.Error,
			ErrorKind: string(domain.EngineErrorKindOf(err)),
		})
	}
}

func (r *Runner) publish(event Event) {
	if r.events != nil {
		r.events.Publish(event)
	}
}
