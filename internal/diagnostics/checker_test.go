package diagnostics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"media-downloader/internal/domain"
)

// newTestChecker uses the real filesystem with a stubbed PATH lookup.
func newTestChecker(lookPath func(string) (string, error)) *Checker {
	return NewCheckerForTests(lookPath, os.Stat, os.CreateTemp, os.Remove)
}

func foundOnPath(name string) (string, error) { return "/usr/local/bin/" + name, nil }

func notOnPath(string) (string, error) { return "", errors.New("not found") }

// writeExecutable creates a fake binary with the executable bit set.
func writeExecutable(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func validDescriptor(t *testing.T) domain.JobDescriptor {
	t.Helper()
	root := t.TempDir()
	ffmpeg := filepath.Join(root, "bin", "ffmpeg")
	writeExecutable(t, ffmpeg)
	out := filepath.Join(root, "out")
	if err := os.MkdirAll(out, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	return domain.JobDescriptor{
		URL:        "https://example.com/v",
		Directory:  out,
		Container:  "mp4",
		FFmpegPath: ffmpeg,
	}
}

// TestValidateDescriptorAcceptsValid checks the happy path.
func TestValidateDescriptorAcceptsValid(t *testing.T) {
	desc := validDescriptor(t)
	if _, err := newTestChecker(notOnPath).ValidateDescriptor(desc); err != nil {
		t.Fatalf("ValidateDescriptor() error = %v", err)
	}

	entries, err := os.ReadDir(desc.Directory)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("write probe left files behind: %v", entries)
	}
}

// TestValidateDescriptorRejections covers every InvalidDescriptor cause.
func TestValidateDescriptorRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *domain.JobDescriptor)
		field  string
	}{
		{name: "empty url", mutate: func(d *domain.JobDescriptor) { d.URL = "" }, field: "url"},
		{name: "ftp scheme", mutate: func(d *domain.JobDescriptor) { d.URL = "ftp://example.com/v" }, field: "url"},
		{name: "no scheme", mutate: func(d *domain.JobDescriptor) { d.URL = "example.com/v" }, field: "url"},
		{name: "no host", mutate: func(d *domain.JobDescriptor) { d.URL = "https:///v" }, field: "url"},
		{name: "missing dir", mutate: func(d *domain.JobDescriptor) { d.Directory = filepath.Join(d.Directory, "nope") }, field: "directory"},
		{name: "empty dir", mutate: func(d *domain.JobDescriptor) { d.Directory = "" }, field: "directory"},
		{name: "missing engine", mutate: func(d *domain.JobDescriptor) { d.FFmpegPath = "/missing/engine" }, field: "ffmpeg"},
		{name: "empty engine", mutate: func(d *domain.JobDescriptor) { d.FFmpegPath = "" }, field: "ffmpeg"},
		{name: "bad container", mutate: func(d *domain.JobDescriptor) { d.Container = "mkv" }, field: "container"},
		{name: "missing yt-dlp", mutate: func(d *domain.JobDescriptor) { d.YTDLPPath = "/missing/yt-dlp" }, field: "yt-dlp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc := validDescriptor(t)
			tt.mutate(&desc)

			_, err := newTestChecker(notOnPath).ValidateDescriptor(desc)
			if !errors.Is(err, domain.ErrInvalidDescriptor) {
				t.Fatalf("error = %v, want ErrInvalidDescriptor", err)
			}
			var descErr *domain.DescriptorError
			if !errors.As(err, &descErr) || descErr.Field != tt.field {
				t.Fatalf("error = %#v, want field %q", err, tt.field)
			}
		})
	}
}

// TestValidateDescriptorDirectoryIsFile rejects a regular file destination.
func TestValidateDescriptorDirectoryIsFile(t *testing.T) {
	desc := validDescriptor(t)
	file := filepath.Join(desc.Directory, "plain.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	desc.Directory = file

	if _, err := newTestChecker(notOnPath).ValidateDescriptor(desc); !errors.Is(err, domain.ErrInvalidDescriptor) {
		t.Fatalf("error = %v, want ErrInvalidDescriptor", err)
	}
}

// TestValidateDescriptorUnwritableDirectory uses a failing write probe.
func TestValidateDescriptorUnwritableDirectory(t *testing.T) {
	desc := validDescriptor(t)
	checker := NewCheckerForTests(
		notOnPath,
		os.Stat,
		func(string, string) (*os.File, error) { return nil, os.ErrPermission },
		os.Remove,
	)

	if _, err := checker.ValidateDescriptor(desc); !errors.Is(err, domain.ErrInvalidDescriptor) {
		t.Fatalf("error = %v, want ErrInvalidDescriptor", err)
	}
}

// TestValidateDescriptorResolvesToolPaths returns executable files for bare names and bin directories.
func TestValidateDescriptorResolvesToolPaths(t *testing.T) {
	desc := validDescriptor(t)
	binDir := filepath.Join(t.TempDir(), "tools")
	writeExecutable(t, filepath.Join(binDir, "ffmpeg"))
	writeExecutable(t, filepath.Join(binDir, "yt-dlp"))
	lookPath := func(name string) (string, error) {
		if name == ToolFFmpeg {
			return filepath.Join(binDir, "ffmpeg"), nil
		}
		return "", errors.New("not found")
	}

	desc.FFmpegPath = "ffmpeg"
	desc.YTDLPPath = binDir
	desc.Container = ""

	resolved, err := newTestChecker(lookPath).ValidateDescriptor(desc)
	if err != nil {
		t.Fatalf("ValidateDescriptor() error = %v", err)
	}
	if resolved.FFmpegPath != filepath.Join(binDir, "ffmpeg") {
		t.Fatalf("FFmpegPath = %q, want %q", resolved.FFmpegPath, filepath.Join(binDir, "ffmpeg"))
	}
	if resolved.YTDLPPath != filepath.Join(binDir, "yt-dlp") {
		t.Fatalf("YTDLPPath = %q, want %q", resolved.YTDLPPath, filepath.Join(binDir, "yt-dlp"))
	}
	if resolved.Container != domain.DefaultContainer {
		t.Fatalf("Container = %q, want %q", resolved.Container, domain.DefaultContainer)
	}
	if resolved.URL != desc.URL || resolved.Directory != desc.Directory {
		t.Fatalf("resolved descriptor changed url/dir: %+v", resolved)
	}
}

// TestResolveToolVariants checks PATH names, bin directories, and non-executables.
func TestResolveToolVariants(t *testing.T) {
	root := t.TempDir()
	binDir := filepath.Join(root, "ffmpeg", "bin")
	writeExecutable(t, filepath.Join(binDir, "ffmpeg"))
	writeExecutable(t, filepath.Join(binDir, "ffmpeg.exe"))
	plain := filepath.Join(root, "notes.txt")
	if err := os.WriteFile(plain, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	checker := newTestChecker(foundOnPath)

	if got, err := checker.ResolveTool(ToolFFmpeg, ""); err != nil || got != "/usr/local/bin/ffmpeg" {
		t.Fatalf("empty location = (%q, %v)", got, err)
	}
	if got, err := checker.ResolveTool(ToolFFmpeg, binDir); err != nil || filepath.Dir(got) != binDir {
		t.Fatalf("bin dir = (%q, %v)", got, err)
	}
	if _, err := checker.ResolveTool(ToolFFmpeg, plain); err == nil {
		t.Fatal("expected non-executable file to be rejected")
	}
	if _, err := newTestChecker(notOnPath).ResolveTool(ToolFFmpeg, "ffmpeg"); err == nil {
		t.Fatal("expected PATH miss to fail")
	}
}

// TestCheckerRunAllPass validates happy-path diagnostics report.
func TestCheckerRunAllPass(t *testing.T) {
	report := newTestChecker(foundOnPath).Run(domain.Settings{
		LastDirectory: t.TempDir(),
		FFmpegPath:    "ffmpeg",
	})

	if report.HasFailures {
		t.Fatalf("expected no failures, got %+v", report.Items)
	}
	item, ok := report.Item(ItemYTDLP)
	if !ok || item.Resolved != "/usr/local/bin/yt-dlp" {
		t.Fatalf("yt-dlp item = %+v", item)
	}
}

// TestCheckerRunMissingToolsAndPaths validates failure reporting.
func TestCheckerRunMissingToolsAndPaths(t *testing.T) {
	report := newTestChecker(notOnPath).Run(domain.Settings{
		LastDirectory: "/path/that/does/not/exist",
	})

	if !report.HasFailures {
		t.Fatal("expected failures")
	}

	assertStatusByID(t, report, ItemFFmpeg, domain.DiagnosticStatusFail)
	assertStatusByID(t, report, ItemYTDLP, domain.DiagnosticStatusFail)
	assertStatusByID(t, report, ItemOutputDir, domain.DiagnosticStatusFail)
}

// assertStatusByID checks status for one diagnostic item by ID.
func assertStatusByID(t *testing.T, report domain.DiagnosticReport, id string, want domain.DiagnosticStatus) {
	t.Helper()
	item, ok := report.Item(id)
	if !ok {
		t.Fatalf("diagnostic item not found: %s", id)
	}
	if item.Status != want {
		t.Fatalf("item %s: got %s, want %s", id, item.Status, want)
	}
}
