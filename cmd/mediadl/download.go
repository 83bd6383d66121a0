package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"media-downloader/internal/config"
	"media-downloader/internal/domain"
	"media-downloader/internal/engine"
	"media-downloader/internal/history"
	"media-downloader/internal/jobs"
	"media-downloader/internal/tui"
)

const shutdownGrace = 10 * time.Second

type downloadOptions struct {
	dir    string
	ffmpeg string
	ytdlp  string
	noTUI  bool
}

func newDownloadCmd(root *rootOptions) *cobra.Command {
	opts := &downloadOptions{}

	cmd := &cobra.Command{
		Use:   "download <url>",
		Short: "Download a video or playlist into a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(cmd.Context(), root, opts, args[0], cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&opts.dir, "dir", "d", "", "destination directory (default: last used directory)")
	cmd.Flags().StringVar(&opts.ffmpeg, "ffmpeg", "", "ffmpeg binary or its bin directory")
	cmd.Flags().StringVar(&opts.ytdlp, "ytdlp", "", "yt-dlp binary or its directory")
	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "print plain progress lines instead of the terminal UI")
	return cmd
}

func runDownload(parent context.Context, root *rootOptions, opts *downloadOptions, rawURL string, out io.Writer) error {
	if parent == nil {
		parent = context.Background()
	}

	e, err := newEnv(root, opts.noTUI)
	if err != nil {
		return err
	}
	defer e.Close()

	settings, err := e.store.Load()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	desc := buildDescriptor(rawURL, opts, settings)
	if desc.Directory == "" {
		return &exitError{code: exitRejected, msg: "no download directory: pass --dir once and it will be remembered"}
	}

	hist, err := e.openHistory()
	if err != nil {
		e.log.Warn("history disabled", "error", err)
	}
	if hist != nil {
		defer hist.Close()
	}

	eng := engine.NewYTDLP(e.log, e.cfg.Engine.ProgressInterval)
	runner := jobs.NewRunner(eng, e.checker, jobs.NewEventBus(e.cfg.Runner.EventBuffer), e.log)
	defer runner.Close()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		job  domain.Job
		last domain.ProgressRecord
	)
	if opts.noTUI {
		job, last, err = runPlain(ctx, runner, desc, out)
	} else {
		job, last, err = runTUI(ctx, runner, desc)
	}

	var descErr *domain.DescriptorError
	if errors.As(err, &descErr) {
		return &exitError{code: exitRejected, msg: err.Error()}
	}
	if err != nil {
		return err
	}

	if desc.Directory != settings.LastDirectory {
		if _, err := config.RememberDirectory(e.store, desc.Directory); err != nil {
			e.log.Warn("remember directory", "dir", desc.Directory, "error", err)
		}
	}
	if hist != nil {
		if _, err := hist.Record(history.EntryFromJob(job, last)); err != nil {
			e.log.Warn("record history", "job", job.ID, "error", err)
		}
	}

	switch job.State {
	case domain.JobStateCompleted:
		return nil
	case domain.JobStateCancelled:
		return &exitError{code: exitCancelled, msg: "download cancelled"}
	default:
		return &exitError{code: exitFailed, msg: "download failed: " + job.Error}
	}
}

// buildDescriptor merges flags over saved preferences.
func buildDescriptor(rawURL string, opts *downloadOptions, settings domain.Settings) domain.JobDescriptor {
	desc := domain.JobDescriptor{
		URL:        strings.TrimSpace(rawURL),
		Directory:  settings.LastDirectory,
		Container:  settings.Container,
		FFmpegPath: settings.FFmpegPath,
		YTDLPPath:  settings.YTDLPPath,
	}
	if v := strings.TrimSpace(opts.dir); v != "" {
		desc.Directory = v
	}
	if v := strings.TrimSpace(opts.ffmpeg); v != "" {
		desc.FFmpegPath = v
	}
	if v := strings.TrimSpace(opts.ytdlp); v != "" {
		desc.YTDLPPath = v
	}
	return desc
}

// runTUI hands the screen to the terminal UI and waits for the job to settle.
func runTUI(ctx context.Context, runner *jobs.Runner, desc domain.JobDescriptor) (domain.Job, domain.ProgressRecord, error) {
	model, err := tui.Run(ctx, runner, desc)
	if submitErr := model.SubmitErr(); submitErr != nil {
		return domain.Job{}, domain.ProgressRecord{}, submitErr
	}
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, tea.ErrProgramKilled) {
		return domain.Job{}, domain.ProgressRecord{}, err
	}

	job := model.Job()
	if !job.State.IsTerminal() {
		runner.CancelCurrent()
		waitCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		job, _ = runner.Wait(waitCtx)
	}
	return job, model.Latest(), nil
}

// runPlain prints one line per progress update. The dispatcher and the signal
// watcher run in an errgroup; the first terminal notice ends both.
func runPlain(ctx context.Context, runner *jobs.Runner, desc domain.JobDescriptor, out io.Writer) (domain.Job, domain.ProgressRecord, error) {
	submitted, err := runner.Submit(desc)
	if err != nil {
		return domain.Job{}, domain.ProgressRecord{}, err
	}
	fmt.Fprintf(out, "Downloading %s into %s\n", desc.URL, desc.Directory)

	var (
		final domain.Job
		last  domain.ProgressRecord
	)
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	defer stopDispatch()

	g, gctx := errgroup.WithContext(dispatchCtx)
	g.Go(func() error {
		select {
		case <-ctx.Done():
			if runner.CancelCurrent() {
				fmt.Fprintln(out, "Interrupted, cancelling...")
			}
		case <-gctx.Done():
		}
		return nil
	})
	g.Go(func() error {
		obs := jobs.ObserverFuncs{
			Progress: func(rec domain.ProgressRecord) {
				last = rec
				fmt.Fprintln(out, rec.Phrase)
			},
			Terminal: func(job domain.Job, errDescription string) {
				if job.ID != submitted.ID {
					return
				}
				final = job
				switch job.State {
				case domain.JobStateCompleted:
					fmt.Fprintln(out, "Download completed")
				case domain.JobStateCancelled:
					fmt.Fprintln(out, "Download cancelled")
				default:
					fmt.Fprintf(out, "Download failed: %s\n", errDescription)
				}
				stopDispatch()
			},
		}
		if err := runner.Dispatch(gctx, obs); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return domain.Job{}, domain.ProgressRecord{}, err
	}
	return final, last, nil
}
