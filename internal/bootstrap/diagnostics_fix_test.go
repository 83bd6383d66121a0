package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"media-downloader/internal/diagnostics"
	"media-downloader/internal/domain"
)

// TestInstallOrFixOutputDirCreatesDirectory ensures output dir fix creates missing directories.
func TestInstallOrFixOutputDirCreatesDirectory(t *testing.T) {
	root := t.TempDir()
	outputDir := filepath.Join(root, "nested", "downloads")

	fixed, changed, err := installOrFixOutputDir(domain.Settings{LastDirectory: outputDir})
	if err != nil {
		t.Fatalf("fix output dir: %v", err)
	}
	if changed {
		t.Fatal("expected settings to remain unchanged")
	}
	if fixed.LastDirectory != outputDir {
		t.Fatalf("LastDirectory = %s, want %s", fixed.LastDirectory, outputDir)
	}
	if _, err := os.Stat(outputDir); err != nil {
		t.Fatalf("stat output dir: %v", err)
	}
}

// TestInstallOptionsPerOS validates package manager selection and package names.
func TestInstallOptionsPerOS(t *testing.T) {
	linux := installOptions(ytdlpPackage, "linux")
	if linux[0].manager != "apt-get" || len(linux[0].commands) != 2 {
		t.Fatalf("linux first option = %+v, want apt-get update+install", linux[0])
	}
	if got := strings.Join(linux[0].commands[1], " "); got != "apt-get install -y yt-dlp" {
		t.Fatalf("apt command = %q", got)
	}

	windows := installOptions(ffmpegPackage, "windows")
	if windows[0].manager != "winget" || !strings.Contains(strings.Join(windows[0].commands[0], " "), "Gyan.FFmpeg") {
		t.Fatalf("windows first option = %+v, want winget Gyan.FFmpeg", windows[0])
	}

	darwin := installOptions(ffmpegPackage, "darwin")
	if len(darwin) != 1 || darwin[0].manager != "brew" {
		t.Fatalf("darwin options = %+v, want brew only", darwin)
	}
}

// TestElevationCandidates validates pkexec/sudo fallbacks for system package managers.
func TestElevationCandidates(t *testing.T) {
	all := func(string) bool { return true }

	got := elevationCandidates([]string{"apt-get", "update"}, "linux", all)
	if len(got) != 3 || got[1][0] != "pkexec" || got[2][0] != "sudo" {
		t.Fatalf("candidates = %v", got)
	}
	if got := elevationCandidates([]string{"brew", "install", "ffmpeg"}, "linux", all); len(got) != 1 {
		t.Fatalf("brew should not be elevated: %v", got)
	}
	if got := elevationCandidates([]string{"apt-get", "update"}, "darwin", all); len(got) != 1 {
		t.Fatalf("non-linux should not be elevated: %v", got)
	}
}

// TestInstallOrFixYTDLPPinsDownloadedBinary checks the engine path is saved.
func TestInstallOrFixYTDLPPinsDownloadedBinary(t *testing.T) {
	app, store, _ := newTestApp(t, blockUntilCancelled(), domain.Settings{FFmpegPath: "ffmpeg"})
	app.installYTDLP = func(context.Context) (string, error) {
		return "/cache/go-ytdlp/yt-dlp", nil
	}

	if _, err := app.InstallOrFixDiagnostic(diagnostics.ItemYTDLP); err != nil {
		t.Fatalf("fix: %v", err)
	}
	settings, _ := store.Load()
	if settings.YTDLPPath != "/cache/go-ytdlp/yt-dlp" {
		t.Fatalf("YTDLPPath = %q", settings.YTDLPPath)
	}
	if store.saves != 1 {
		t.Fatalf("saves = %d, want 1", store.saves)
	}
}

// TestInstallOrFixDiagnosticRejectsUnknownItem validates the item id guard.
func TestInstallOrFixDiagnosticRejectsUnknownItem(t *testing.T) {
	app, _, _ := newTestApp(t, blockUntilCancelled(), domain.Settings{})
	app.installYTDLP = func(context.Context) (string, error) {
		return "", errors.New("unreachable")
	}

	if _, err := app.InstallOrFixDiagnostic("model_path"); err == nil {
		t.Fatal("expected error for unsupported item")
	}
	if _, err := app.InstallOrFixDiagnostic("  "); err == nil {
		t.Fatal("expected error for empty item")
	}
}
