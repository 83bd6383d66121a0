package diagnostics

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"time"

	"media-downloader/internal/domain"
)

const (
	ToolFFmpeg = "ffmpeg"
	ToolYTDLP  = "yt-dlp"

	ItemFFmpeg    = "tool_" + ToolFFmpeg
	ItemYTDLP     = "tool_" + ToolYTDLP
	ItemOutputDir = "output_dir"
)

// Checker validates external tools, destination directories, and job descriptors.
type Checker struct {
	lookPath   func(string) (string, error)
	stat       func(string) (os.FileInfo, error)
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
	goos       string
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		lookPath:   exec.LookPath,
		stat:       os.Stat,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
		goos:       goruntime.GOOS,
	}
}

// Run executes all dependency checks against saved preferences.
func (c *Checker) Run(settings domain.Settings) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkTool(ItemFFmpeg, ToolFFmpeg, settings.FFmpegPath),
		c.checkTool(ItemYTDLP, ToolYTDLP, settings.YTDLPPath),
		c.checkOutputDir(settings.LastDirectory),
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// ValidateDescriptor rejects a descriptor before any job state is committed.
// The destination is probed but never created. The returned descriptor carries
// the resolved tool paths the engine must be given.
func (c *Checker) ValidateDescriptor(desc domain.JobDescriptor) (domain.JobDescriptor, error) {
	if err := validateURL(desc.URL); err != nil {
		return domain.JobDescriptor{}, err
	}

	if err := c.validateDirectory(desc.Directory); err != nil {
		return domain.JobDescriptor{}, err
	}

	container := strings.ToLower(strings.TrimSpace(desc.Container))
	if container != "" && container != domain.DefaultContainer {
		return domain.JobDescriptor{}, &domain.DescriptorError{
			Field:  "container",
			Reason: fmt.Sprintf("unsupported output container %q (only %s)", desc.Container, domain.DefaultContainer),
		}
	}
	if container == "" {
		container = domain.DefaultContainer
	}

	if strings.TrimSpace(desc.FFmpegPath) == "" {
		return domain.JobDescriptor{}, &domain.DescriptorError{Field: "ffmpeg", Reason: "transcoding tool location is required"}
	}
	ffmpegPath, err := c.ResolveTool(ToolFFmpeg, desc.FFmpegPath)
	if err != nil {
		return domain.JobDescriptor{}, &domain.DescriptorError{Field: "ffmpeg", Reason: err.Error()}
	}

	ytdlpPath := ""
	if strings.TrimSpace(desc.YTDLPPath) != "" {
		ytdlpPath, err = c.ResolveTool(ToolYTDLP, desc.YTDLPPath)
		if err != nil {
			return domain.JobDescriptor{}, &domain.DescriptorError{Field: "yt-dlp", Reason: err.Error()}
		}
	}

	resolved := desc
	resolved.Container = container
	resolved.FFmpegPath = absPath(ffmpegPath)
	resolved.YTDLPPath = absPath(ytdlpPath)
	return resolved, nil
}

// absPath makes a resolved tool path independent of the working directory.
func absPath(path string) string {
	if path == "" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

// ResolveTool turns a configured location into an executable path.
// raw may be empty (PATH lookup of name), a bare command, an executable file,
// or a directory containing the binary.
func (c *Checker) ResolveTool(name, raw string) (string, error) {
	location := strings.TrimSpace(raw)
	if location == "" {
		location = name
	}

	if !strings.ContainsAny(location, `/\`) {
		path, err := c.lookPath(location)
		if err != nil {
			return "", fmt.Errorf("%s not found in PATH", location)
		}
		return path, nil
	}

	info, err := c.stat(location)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%s not found at %s", name, location)
		}
		return "", fmt.Errorf("cannot access %s: %v", location, err)
	}

	if info.IsDir() {
		for _, candidate := range c.binaryNames(name) {
			path := filepath.Join(location, candidate)
			if fi, err := c.stat(path); err == nil && c.isExecutable(fi) {
				return path, nil
			}
		}
		return "", fmt.Errorf("%s not found in directory %s", name, location)
	}

	if !c.isExecutable(info) {
		return "", fmt.Errorf("%s is not an executable file", location)
	}
	return location, nil
}

// checkTool verifies a required executable is resolvable.
func (c *Checker) checkTool(id, name, configured string) domain.DiagnosticItem {
	path, err := c.ResolveTool(name, configured)
	if err != nil {
		return domain.DiagnosticItem{
			ID:      id,
			Name:    name,
			Status:  domain.DiagnosticStatusFail,
			Message: err.Error(),
			Hint:    "Install it or point the setting at the binary (or its bin directory) before starting a download.",
			Fixable: true,
		}
	}

	return domain.DiagnosticItem{
		ID:       id,
		Name:     name,
		Status:   domain.DiagnosticStatusPass,
		Message:  fmt.Sprintf("Found at %s", path),
		Resolved: path,
	}
}

// checkOutputDir validates the remembered output directory, if any.
func (c *Checker) checkOutputDir(outputDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   ItemOutputDir,
		Name: "Output directory",
	}

	if strings.TrimSpace(outputDir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "No output directory selected yet."
		item.Hint = "Choose a destination folder for downloads."
		item.Fixable = true
		return item
	}

	if err := c.validateDirectory(outputDir); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = err.Error()
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		item.Fixable = true
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", outputDir)
	item.Resolved = outputDir
	return item
}

// validateDirectory requires an existing, writable directory.
func (c *Checker) validateDirectory(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return &domain.DescriptorError{Field: "directory", Reason: "destination directory is required"}
	}

	info, err := c.stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &domain.DescriptorError{Field: "directory", Reason: fmt.Sprintf("%s does not exist", dir)}
		}
		return &domain.DescriptorError{Field: "directory", Reason: fmt.Sprintf("cannot access %s", dir)}
	}
	if !info.IsDir() {
		return &domain.DescriptorError{Field: "directory", Reason: fmt.Sprintf("%s is not a directory", dir)}
	}

	tmpFile, err := c.createTemp(dir, ".write-check-*")
	if err != nil {
		return &domain.DescriptorError{Field: "directory", Reason: fmt.Sprintf("%s is not writable", dir)}
	}
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)
	return nil
}

func (c *Checker) binaryNames(name string) []string {
	if c.goos == "windows" {
		return []string{name + ".exe", name}
	}
	return []string{name}
}

func (c *Checker) isExecutable(info os.FileInfo) bool {
	if info.IsDir() {
		return false
	}
	if c.goos == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}

// validateURL accepts only absolute http(s) URLs with a host.
func validateURL(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return &domain.DescriptorError{Field: "url", Reason: "source URL is required"}
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return &domain.DescriptorError{Field: "url", Reason: "malformed URL"}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return &domain.DescriptorError{Field: "url", Reason: "scheme must be http or https"}
	}
	if parsed.Host == "" {
		return &domain.DescriptorError{Field: "url", Reason: "host is missing"}
	}
	return nil
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	lookPath func(string) (string, error),
	stat func(string) (os.FileInfo, error),
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		lookPath:   lookPath,
		stat:       stat,
		createTemp: createTemp,
		remove:     remove,
		goos:       goruntime.GOOS,
	}
}
