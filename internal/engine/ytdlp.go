package engine

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"media-downloader/internal/domain"
	"media-downloader/internal/logger"
)

const (
	// FormatSelector prefers separate best streams merged by ffmpeg.
	FormatSelector = "bestvideo+bestaudio/best"

	// OutputTemplate separates playlist and track naming deterministically.
	OutputTemplate = "%(playlist_title)s/%(title)s.%(ext)s"

	DefaultProgressInterval = 250 * time.Millisecond
)

// commandSpec is the fully resolved yt-dlp invocation for one job.
type commandSpec struct {
	Executable     string
	URL            string
	OutputTemplate string
	Format         string
	Container      string
	FFmpegLocation string
	Interval       time.Duration
}

// commandRunner abstracts the yt-dlp process for testability.
// It returns captured stderr alongside any run error.
type commandRunner interface {
	Run(ctx context.Context, spec commandSpec, onUpdate func(ytdlp.ProgressUpdate)) (string, error)
}

// libRunner executes yt-dlp through go-ytdlp.
type libRunner struct{}

// Run builds the go-ytdlp command and blocks until the process exits.
func (libRunner) Run(ctx context.Context, spec commandSpec, onUpdate func(ytdlp.ProgressUpdate)) (string, error) {
	cmd := ytdlp.New().
		Output(spec.OutputTemplate).
		Format(spec.Format).
		YesPlaylist().
		MergeOutputFormat(spec.Container).
		RecodeVideo(spec.Container).
		ProgressFunc(spec.Interval, onUpdate)
	if spec.FFmpegLocation != "" {
		cmd.FFmpegLocation(spec.FFmpegLocation)
	}
	if spec.Executable != "" {
		cmd.SetExecutable(spec.Executable)
	}

	res, err := cmd.Run(ctx, spec.URL)
	if res != nil {
		return res.Stderr, err
	}
	return "", err
}

// YTDLP runs downloads with yt-dlp, delegating merging and conversion to ffmpeg.
type YTDLP struct {
	runner   commandRunner
	interval time.Duration
	log      *logger.Logger
}

// NewYTDLP constructs the production engine.
func NewYTDLP(log *logger.Logger, interval time.Duration) *YTDLP {
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	return &YTDLP{
		runner:   libRunner{},
		interval: interval,
		log:      log.With("engine"),
	}
}

// Run downloads desc.URL into desc.Directory and reports progress.
func (e *YTDLP) Run(ctx context.Context, desc domain.JobDescriptor, onProgress func(Event), isCancelled func() bool) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		observed bool
	)
	checkpoint := func() bool {
		if isCancelled == nil || !isCancelled() {
			return false
		}
		mu.Lock()
		first := !observed
		observed = true
		mu.Unlock()
		if first {
			e.log.Info("cancellation observed, stopping yt-dlp", "url", desc.URL)
		}
		cancel()
		return true
	}

	// Extraction can run for a while before the first progress report.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if checkpoint() {
					return
				}
			}
		}
	}()

	spec := buildSpec(desc, e.interval)
	e.log.Debug("starting yt-dlp", "url", spec.URL, "output", spec.OutputTemplate, "ffmpeg", spec.FFmpegLocation)

	stderr, err := e.runner.Run(runCtx, spec, func(update ytdlp.ProgressUpdate) {
		if checkpoint() {
			return
		}
		if onProgress != nil {
			onProgress(eventFromUpdate(update))
		}
	})

	mu.Lock()
	cancelledByUser := observed
	mu.Unlock()

	switch {
	case cancelledByUser:
		return domain.ErrEngineCancelled
	case errors.Is(ctx.Err(), context.Canceled):
		return &domain.EngineError{Kind: domain.EngineErrorCancelled, Message: "download cancelled", Err: ctx.Err()}
	case err != nil:
		classified := Classify(err, stderr)
		e.log.Warn("yt-dlp failed", "url", desc.URL, "kind", classified.Kind, "error", classified.Message)
		return classified
	}
	return nil
}

// buildSpec resolves descriptor fields into a yt-dlp invocation.
func buildSpec(desc domain.JobDescriptor, interval time.Duration) commandSpec {
	container := strings.ToLower(strings.TrimSpace(desc.Container))
	if container == "" {
		container = domain.DefaultContainer
	}

	return commandSpec{
		Executable:     strings.TrimSpace(desc.YTDLPPath),
		URL:            strings.TrimSpace(desc.URL),
		OutputTemplate: filepath.Join(desc.Directory, OutputTemplate),
		Format:         FormatSelector,
		Container:      container,
		FFmpegLocation: strings.TrimSpace(desc.FFmpegPath),
		Interval:       interval,
	}
}

// eventFromUpdate converts a go-ytdlp progress update into an engine Event.
func eventFromUpdate(update ytdlp.ProgressUpdate) Event {
	ev := Event{
		Status:          string(update.Status),
		DownloadedBytes: int64(update.DownloadedBytes),
		TotalBytes:      int64(update.TotalBytes),
		Filename:        update.Filename,
	}
	if ev.DownloadedBytes < 0 {
		ev.DownloadedBytes = 0
	}
	if ev.TotalBytes < 0 {
		ev.TotalBytes = 0
	}
	if update.Info != nil && update.Info.Title != nil {
		ev.Title = *update.Info.Title
	}
	return ev
}

// InstallYTDLP downloads (or reuses a cached) yt-dlp binary and returns its path.
func InstallYTDLP(ctx context.Context) (string, error) {
	resolved, err := ytdlp.Install(ctx, nil)
	if err != nil {
		return "", err
	}
	return resolved.Executable, nil
}

// newYTDLPForTests constructs the engine with an injected runner.
func newYTDLPForTests(runner commandRunner, interval time.Duration) *YTDLP {
	return &YTDLP{runner: runner, interval: interval, log: logger.Nop()}
}
