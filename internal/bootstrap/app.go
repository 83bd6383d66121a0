package bootstrap

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"media-downloader/internal/config"
	"media-downloader/internal/diagnostics"
	"media-downloader/internal/domain"
	"media-downloader/internal/engine"
	"media-downloader/internal/history"
	"media-downloader/internal/jobs"
	"media-downloader/internal/logger"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

const (
	eventJobEvent    = "job:event"
	eventJobProgress = "job:progress"
)

// historyStore is the subset of history.Store the desktop shell needs.
type historyStore interface {
	Record(history.Entry) (history.Entry, error)
	Recent(limit int) ([]history.Entry, error)
	Close() error
}

// App wires configuration, the job runner, history, and UI runtime callbacks.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Runner      *jobs.Runner
	Diagnostics domain.DiagnosticReport
	History     historyStore
	assets      fs.FS
	checker     *diagnostics.Checker
	events      *jobs.EventBus
	log         *logger.Logger
	rootLog     *logger.Logger

	// installYTDLP fetches the engine binary; replaced in tests.
	installYTDLP func(ctx context.Context) (string, error)
	emit         func(ctx context.Context, name string, data ...interface{})

	emitMu sync.Mutex

	mu           sync.Mutex
	runtimeCtx   context.Context
	stopDispatch context.CancelFunc
	emittedSeq   int64
	lastProgress domain.ProgressRecord
}

// New builds the application from the default config location.
func New() (*App, error) {
	return NewWithAssets(nil, "")
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
// configPath may be empty to use config.yaml in the data directory.
func NewWithAssets(assets fs.FS, configPath string) (*App, error) {
	cfg, err := config.LoadAppConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Log.Path, logger.ParseLevel(cfg.Log.Level), cfg.Log.IncludeStdout)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}

	store := config.NewJSONStore(cfg.SettingsPath)
	settings, err := store.Load()
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("load settings: %w", err)
	}

	var hist historyStore
	if cfg.History.Enabled {
		h, err := history.NewStore(cfg.History.Path)
		if err != nil {
			log.Warn("history disabled", "path", cfg.History.Path, "error", err)
		} else {
			hist = h
		}
	}

	checker := diagnostics.NewChecker()
	events := jobs.NewEventBus(cfg.Runner.EventBuffer)
	runner := jobs.NewRunner(engine.NewYTDLP(log, cfg.Engine.ProgressInterval), checker, events, log)

	app := newApp(store, runner, checker, events, hist, log)
	app.assets = assets
	app.Settings = settings
	app.Diagnostics = checker.Run(settings)
	log.Info("app initialized", "settings", cfg.SettingsPath, "history", cfg.History.Enabled)
	return app, nil
}

func newApp(store config.Store, runner *jobs.Runner, checker *diagnostics.Checker, events *jobs.EventBus, hist historyStore, log *logger.Logger) *App {
	return &App{
		Store:        store,
		Runner:       runner,
		History:      hist,
		checker:      checker,
		events:       events,
		log:          log.With("app"),
		rootLog:      log,
		installYTDLP: engine.InstallYTDLP,
		emit:         wailsruntime.EventsEmit,
	}
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Media Downloader",
		Width:       960,
		Height:      640,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown:  a.Shutdown,
		Bind:        []interface{}{a},
	})
}

// Startup stores the Wails runtime context and starts delivering job notifications.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	a.runtimeCtx = ctx
	a.mu.Unlock()
	a.startDispatcher()
}

// Shutdown cancels any running download and releases resources.
func (a *App) Shutdown(context.Context) {
	a.Runner.Close()

	a.mu.Lock()
	stop := a.stopDispatch
	a.stopDispatch = nil
	a.runtimeCtx = nil
	a.mu.Unlock()
	if stop != nil {
		stop()
	}

	if a.History != nil {
		if err := a.History.Close(); err != nil {
			a.log.Warn("close history", "error", err)
		}
	}
	a.log.Info("app shut down")
	a.rootLog.Close()
}

// startDispatcher runs the runner's notification loop on a dedicated goroutine.
// onProgress and onTerminal are only called from there.
func (a *App) startDispatcher() {
	ctx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	if a.stopDispatch != nil {
		a.mu.Unlock()
		cancel()
		return
	}
	a.stopDispatch = cancel
	a.mu.Unlock()

	go func() {
		_ = a.Runner.Dispatch(ctx, jobs.ObserverFuncs{Progress: a.onProgress, Terminal: a.onTerminal})
	}()
}

// onProgress forwards the latest record to the frontend.
func (a *App) onProgress(rec domain.ProgressRecord) {
	a.mu.Lock()
	a.lastProgress = rec
	a.mu.Unlock()

	a.emitRuntime(eventJobProgress, rec)
	a.flushEvents()
}

// onTerminal records history and pushes the final events.
func (a *App) onTerminal(job domain.Job, errDescription string) {
	a.mu.Lock()
	last := a.lastProgress
	a.lastProgress = domain.ProgressRecord{}
	a.mu.Unlock()
	if last.JobID != job.ID {
		last = domain.ProgressRecord{}
	}

	if a.History != nil {
		if _, err := a.History.Record(history.EntryFromJob(job, last)); err != nil {
			a.log.Warn("record history", "job", job.ID, "error", err)
		}
	}
	if errDescription != "" {
		a.log.Debug("terminal notification", "job", job.ID, "state", job.State, "error", errDescription)
	}
	a.flushEvents()
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, then refreshes diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := config.Normalize(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	a.refreshDiagnosticsFromSettings(normalized)
	return normalized, nil
}

// PickOutputDirectory opens a native directory picker and remembers the choice.
func (a *App) PickOutputDirectory() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	current := a.Settings.LastDirectory
	a.mu.Unlock()
	if current == "" {
		current = config.DefaultDownloadDir()
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:            "Select download directory",
		DefaultDirectory: current,
	})
	if err != nil {
		return "", err
	}

	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	return path, a.rememberDirectory(path)
}

// OpenOutputFolder opens the given path (or last download dir) in the file manager.
func (a *App) OpenOutputFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		a.mu.Lock()
		target = a.Settings.LastDirectory
		a.mu.Unlock()
	}
	if target == "" {
		return fmt.Errorf("output path is empty")
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}

	return openInFileManager(openPath)
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}
	return a.refreshDiagnosticsFromSettings(settings), nil
}

// StartDownload submits a download of url into dir. An empty dir uses the last directory.
func (a *App) StartDownload(url, dir string) (domain.Job, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Job{}, fmt.Errorf("load settings: %w", err)
	}

	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = settings.LastDirectory
	}

	job, err := a.Runner.Submit(descriptorFromSettings(strings.TrimSpace(url), dir, settings))
	if err != nil {
		return domain.Job{}, err
	}

	if dir != settings.LastDirectory {
		if err := a.rememberDirectory(dir); err != nil {
			a.log.Warn("remember directory", "dir", dir, "error", err)
		}
	}
	a.flushEvents()
	return job, nil
}

// CancelDownload asks the running download to stop.
func (a *App) CancelDownload() error {
	if !a.Runner.CancelCurrent() {
		return domain.ErrNoActiveJob
	}
	a.flushEvents()
	return nil
}

// CurrentProgress returns the latest progress of the active download, or nil.
func (a *App) CurrentProgress() *domain.ProgressRecord {
	rec, ok := a.Runner.CurrentProgress()
	if !ok {
		return nil
	}
	return &rec
}

// CurrentJob returns current job metadata and state.
func (a *App) CurrentJob() domain.Job {
	return a.Runner.Current()
}

// JobEvents returns all events with sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// RecentDownloads returns the newest history entries.
func (a *App) RecentDownloads(limit int) ([]history.Entry, error) {
	if a.History == nil {
		return []history.Entry{}, nil
	}
	return a.History.Recent(limit)
}

func (a *App) rememberDirectory(dir string) error {
	settings, err := config.RememberDirectory(a.Store, dir)
	if err != nil {
		return err
	}
	a.refreshDiagnosticsFromSettings(settings)
	return nil
}

// descriptorFromSettings combines the request with the saved tool preferences.
func descriptorFromSettings(url, dir string, settings domain.Settings) domain.JobDescriptor {
	return domain.JobDescriptor{
		URL:        url,
		Directory:  dir,
		Container:  settings.Container,
		FFmpegPath: settings.FFmpegPath,
		YTDLPPath:  settings.YTDLPPath,
	}
}

// flushEvents pushes bus events not yet emitted to the frontend.
func (a *App) flushEvents() {
	a.emitMu.Lock()
	defer a.emitMu.Unlock()

	a.mu.Lock()
	since := a.emittedSeq
	ctx := a.runtimeCtx
	a.mu.Unlock()

	pending := a.events.Since(since)
	if len(pending) == 0 {
		return
	}

	a.mu.Lock()
	a.emittedSeq = pending[len(pending)-1].Seq
	a.mu.Unlock()

	if ctx == nil || a.emit == nil {
		return
	}
	for _, event := range pending {
		a.emit(ctx, eventJobEvent, event)
	}
}

func (a *App) emitRuntime(name string, data interface{}) {
	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil && a.emit != nil {
		a.emit(ctx, name, data)
	}
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}
