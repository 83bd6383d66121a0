package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"media-downloader/internal/domain"
	"media-downloader/internal/engine"
)

var (
	passStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#95E1A3")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	hintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C757D"))
)

func newDoctorCmd(root *rootOptions) *cobra.Command {
	var installYTDLP bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check ffmpeg, yt-dlp, and the download directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := newEnv(root, true)
			if err != nil {
				return err
			}
			defer e.Close()

			settings, err := e.store.Load()
			if err != nil {
				return fmt.Errorf("load settings: %w", err)
			}

			if installYTDLP {
				ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
				defer cancel()
				path, err := engine.InstallYTDLP(ctx)
				if err != nil {
					return fmt.Errorf("install yt-dlp: %w", err)
				}
				settings.YTDLPPath = path
				if err := e.store.Save(settings); err != nil {
					return fmt.Errorf("save settings: %w", err)
				}
				e.log.Info("yt-dlp installed", "path", path)
				fmt.Fprintf(cmd.OutOrStdout(), "yt-dlp installed at %s\n", path)
			}

			report := e.checker.Run(settings)
			printReport(cmd.OutOrStdout(), report)
			if report.HasFailures {
				return &exitError{code: exitFailed}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&installYTDLP, "install-ytdlp", false, "download the yt-dlp release binary and remember its path")
	return cmd
}

func printReport(w io.Writer, report domain.DiagnosticReport) {
	for _, item := range report.Items {
		status := passStyle.Render("PASS")
		if item.Status == domain.DiagnosticStatusFail {
			status = failStyle.Render("FAIL")
		}
		fmt.Fprintf(w, "%s  %-12s %s\n", status, item.Name, item.Message)
		if item.Resolved != "" {
			fmt.Fprintf(w, "      %s\n", hintStyle.Render(item.Resolved))
		}
		if item.Hint != "" && item.Status == domain.DiagnosticStatusFail {
			fmt.Fprintf(w, "      %s\n", hintStyle.Render(item.Hint))
		}
	}
}
