package jobs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"media-downloader/internal/domain"
	"media-downloader/internal/engine"
	"media-downloader/internal/logger"
)

// gatedEngine blocks until released, optionally emitting one event first.
type gatedEngine struct {
	first   *engine.Event
	release chan error
	entered chan struct{}
}

func newGatedEngine(first *engine.Event) *gatedEngine {
	return &gatedEngine{first: first, release: make(chan error, 1), entered: make(chan struct{})}
}

func (g *gatedEngine) Run(ctx context.Context, desc domain.JobDescriptor, onProgress func(engine.Event), isCancelled func() bool) error {
	if g.first != nil {
		onProgress(*g.first)
	}
	close(g.entered)
	select {
	case err := <-g.release:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newTestJob(eng engine.Engine, hooks jobHooks) *DownloadJob {
	return newDownloadJob("job-test", domain.JobDescriptor{URL: "https://example.com/v"}, eng, hooks, logger.Nop())
}

func waitDone(t *testing.T, job *DownloadJob) {
	t.Helper()
	select {
	case <-job.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("job did not finish, state %s", job.State())
	}
}

// TestJobLifecycleCompleted checks Idle -> Running -> Completed.
func TestJobLifecycleCompleted(t *testing.T) {
	eng := newGatedEngine(nil)
	job := newTestJob(eng, jobHooks{})

	if got := job.State(); got != domain.JobStateIdle {
		t.Fatalf("state = %s, want idle", got)
	}
	if err := job.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	<-eng.entered
	if got := job.State(); got != domain.JobStateRunning {
		t.Fatalf("state = %s, want running", got)
	}

	eng.release <- nil
	waitDone(t, job)

	state, err := job.Result()
	if state != domain.JobStateCompleted || err != nil {
		t.Fatalf("result = (%s, %v), want (completed, nil)", state, err)
	}
	snap := job.Snapshot()
	if snap.StartedAt.IsZero() || snap.FinishedAt.IsZero() {
		t.Fatalf("timestamps not set: %+v", snap)
	}
}

// TestJobStartTwiceFails checks a job is single-use.
func TestJobStartTwiceFails(t *testing.T) {
	eng := newGatedEngine(nil)
	job := newTestJob(eng, jobHooks{})
	if err := job.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := job.Start(context.Background()); !errors.Is(err, errJobStarted) {
		t.Fatalf("second start error = %v, want %v", err, errJobStarted)
	}
	eng.release <- nil
	waitDone(t, job)
}

// TestJobCancelIsIdempotent checks repeated cancels have no extra effect.
func TestJobCancelIsIdempotent(t *testing.T) {
	eng := newGatedEngine(nil)
	terminals := 0
	job := newTestJob(eng, jobHooks{onTerminal: func(*DownloadJob, domain.Job, error) { terminals++ }})

	if job.Cancel() {
		t.Fatal("cancel on idle job should be a no-op")
	}
	if err := job.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	<-eng.entered

	if !job.Cancel() {
		t.Fatal("first cancel should signal the job")
	}
	if job.Cancel() {
		t.Fatal("second cancel should be a no-op")
	}
	if got := job.State(); got != domain.JobStateCancelling {
		t.Fatalf("state = %s, want cancelling", got)
	}

	eng.release <- domain.ErrEngineCancelled
	waitDone(t, job)

	if got := job.State(); got != domain.JobStateCancelled {
		t.Fatalf("state = %s, want cancelled", got)
	}
	if terminals != 1 {
		t.Fatalf("terminal hook calls = %d, want 1", terminals)
	}
	if job.Cancel() {
		t.Fatal("cancel after terminal should be a no-op")
	}
}

// TestJobCancelOverridesEngineFailure checks a failure after cancel still ends Cancelled.
func TestJobCancelOverridesEngineFailure(t *testing.T) {
	eng := newGatedEngine(nil)
	job := newTestJob(eng, jobHooks{})
	if err := job.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	<-eng.entered
	job.Cancel()

	eng.release <- &domain.EngineError{Kind: domain.EngineErrorNetwork, Message: "connection reset"}
	waitDone(t, job)

	state, err := job.Result()
	if state != domain.JobStateCancelled || err != nil {
		t.Fatalf("result = (%s, %v), want (cancelled, nil)", state, err)
	}
}

// TestJobCancelAfterEngineReturnIsNoop keeps a returned success Completed.
func TestJobCancelAfterEngineReturnIsNoop(t *testing.T) {
	var terminals []domain.JobState
	job := newTestJob(nil, jobHooks{
		onTerminal: func(_ *DownloadJob, snap domain.Job, _ error) { terminals = append(terminals, snap.State) },
	})
	job.mu.Lock()
	job.state = domain.JobStateRunning
	job.mu.Unlock()

	// The engine call has come back but finish has not taken the lock yet.
	job.returned.Store(true)
	if job.Cancel() {
		t.Fatal("cancel after the engine returned should be a no-op")
	}
	if job.cancelled.Load() {
		t.Fatal("cancellation flag set after the engine returned")
	}

	job.finish(nil)
	if state, err := job.Result(); state != domain.JobStateCompleted || err != nil {
		t.Fatalf("result = (%s, %v), want (completed, nil)", state, err)
	}
	if len(terminals) != 1 || terminals[0] != domain.JobStateCompleted {
		t.Fatalf("terminals = %v, want [completed]", terminals)
	}
}

// TestJobDropsProgressAfterCancel checks no progress is published once the flag is set.
func TestJobDropsProgressAfterCancel(t *testing.T) {
	var published []domain.ProgressRecord
	job := newTestJob(engine.Func(func(ctx context.Context, desc domain.JobDescriptor, onProgress func(engine.Event), isCancelled func() bool) error {
		return nil
	}), jobHooks{onProgress: func(_ *DownloadJob, rec domain.ProgressRecord) { published = append(published, rec) }})

	job.state = domain.JobStateRunning
	job.ingest(engine.Event{Status: engine.StatusDownloading, DownloadedBytes: 1, TotalBytes: 4})
	job.Cancel()
	job.ingest(engine.Event{Status: engine.StatusDownloading, DownloadedBytes: 2, TotalBytes: 4})

	if len(published) != 1 {
		t.Fatalf("published = %d, want 1", len(published))
	}
	rec, ok := job.Progress()
	if !ok || rec.DownloadedBytes != 1 {
		t.Fatalf("progress = %+v, want first record", rec)
	}
}

// TestClassifyOutcome covers the terminal state mapping.
func TestClassifyOutcome(t *testing.T) {
	networkErr := &domain.EngineError{Kind: domain.EngineErrorNetwork, Message: "timed out"}

	tests := []struct {
		name     string
		flagSet  bool
		runErr   error
		want     domain.JobState
		wantKind domain.EngineErrorKind
	}{
		{name: "success", want: domain.JobStateCompleted},
		{name: "flag wins over success", flagSet: true, want: domain.JobStateCancelled},
		{name: "flag wins over failure", flagSet: true, runErr: networkErr, want: domain.JobStateCancelled},
		{name: "engine cancelled", runErr: domain.ErrEngineCancelled, want: domain.JobStateCancelled},
		{name: "context cancelled", runErr: context.Canceled, want: domain.JobStateCancelled},
		{name: "engine failure", runErr: networkErr, want: domain.JobStateFailed, wantKind: domain.EngineErrorNetwork},
		{name: "plain failure", runErr: errors.New("boom"), want: domain.JobStateFailed, wantKind: domain.EngineErrorUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, err := classifyOutcome(tt.flagSet, tt.runErr)
			if state != tt.want {
				t.Fatalf("state = %s, want %s", state, tt.want)
			}
			if tt.want != domain.JobStateFailed {
				if err != nil {
					t.Fatalf("err = %v, want nil", err)
				}
				return
			}
			if got := domain.EngineErrorKindOf(err); got != tt.wantKind {
				t.Fatalf("kind = %s, want %s", got, tt.wantKind)
			}
		})
	}
}

// TestNormalizePercentage covers percentage derivation and phrase text.
func TestNormalizePercentage(t *testing.T) {
	rec := normalize("job-1", engine.Event{Status: engine.StatusDownloading, DownloadedBytes: 50, TotalBytes: 200})
	if rec.Percentage == nil || *rec.Percentage != 25.0 {
		t.Fatalf("percentage = %v, want 25.0", rec.Percentage)
	}
	if !strings.Contains(rec.Phrase, "25.0%") {
		t.Fatalf("phrase = %q, want percentage", rec.Phrase)
	}

	rec = normalize("job-1", engine.Event{Status: engine.StatusDownloading, DownloadedBytes: 10})
	if rec.Percentage != nil {
		t.Fatalf("percentage = %v, want omitted", *rec.Percentage)
	}
	if rec.Phrase != "Downloading 10 B" {
		t.Fatalf("phrase = %q, want %q", rec.Phrase, "Downloading 10 B")
	}

	rec = normalize("job-1", engine.Event{Status: engine.StatusDownloading, DownloadedBytes: 300, TotalBytes: 200})
	if rec.Percentage == nil || *rec.Percentage != 100 {
		t.Fatalf("percentage = %v, want clamped 100", rec.Percentage)
	}
}

// TestPhraseByStatus checks non-download statuses still produce text.
func TestPhraseByStatus(t *testing.T) {
	tests := map[string]domain.ProgressRecord{
		"Converting":               {Status: engine.StatusPostProcessing},
		"Finished clip.mp4":        {Status: engine.StatusFinished, Filename: "/out/list/clip.mp4"},
		"Download finished":        {Status: engine.StatusFinished},
		"Working":                  {},
		"Starting download":        {Status: engine.StatusStarting},
		"Engine reported an error": {Status: engine.StatusError},
	}
	for want, rec := range tests {
		if got := phrase(rec); got != want {
			t.Fatalf("phrase(%q) = %q, want %q", rec.Status, got, want)
		}
	}
}
