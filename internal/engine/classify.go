package engine

import (
	"errors"
	"io/fs"
	"os/exec"
	"strings"

	"media-downloader/internal/domain"
)

var (
	missingDependencyMarkers = []string{
		"ffmpeg is not installed",
		"ffmpeg not found",
		"ffprobe and ffmpeg not found",
		"ffprobe not found",
		"ffmpeg-location",
	}

	destinationMarkers = []string{
		"permission denied",
		"read-only file system",
		"no space left on device",
		"unable to open for writing",
		"unable to create directory",
		"unable to rename file",
	}

	streamMarkers = []string{
		"video unavailable",
		"this video is unavailable",
		"private video",
		"is private",
		"unsupported url",
		"no suitable extractor",
		"requested format is not available",
		"http error 404",
		"http error 403",
		"http error 410",
		"this live event will begin",
		"sign in to confirm your age",
	}

	networkMarkers = []string{
		"unable to download",
		"name or service not known",
		"temporary failure in name resolution",
		"getaddrinfo failed",
		"network is unreachable",
		"timed out",
		"connection",
	}
)

// Classify maps an engine failure and its stderr to an EngineError kind.
// Order matters: an HTTP 404 message also contains "unable to download".
func Classify(err error, stderr string) *domain.EngineError {
	message := lastErrorLine(stderr)
	if message == "" && err != nil {
		message = err.Error()
	}

	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return &domain.EngineError{Kind: domain.EngineErrorMissingDependency, Message: "yt-dlp executable not found", Stderr: stderr, Err: err}
	}

	// WARNING lines are advisory; only ERROR lines decide the kind.
	evidence := errorLines(stderr)
	if evidence == "" {
		evidence = stderr
	}
	lower := strings.ToLower(evidence)
	kind := domain.EngineErrorUnknown
	switch {
	case containsAny(lower, missingDependencyMarkers):
		kind = domain.EngineErrorMissingDependency
	case containsAny(lower, destinationMarkers):
		kind = domain.EngineErrorDestination
	case containsAny(lower, streamMarkers):
		kind = domain.EngineErrorStreamUnavailable
	case containsAny(lower, networkMarkers):
		kind = domain.EngineErrorNetwork
	}

	if message == "" {
		message = "download failed"
	}
	return &domain.EngineError{Kind: kind, Message: message, Stderr: stderr, Err: err}
}

// lastErrorLine returns the last "ERROR:" line yt-dlp printed, without the prefix.
func lastErrorLine(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if rest, ok := strings.CutPrefix(line, "ERROR:"); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

// errorLines joins every "ERROR:" line yt-dlp printed.
func errorLines(stderr string) string {
	var found []string
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "ERROR:") {
			found = append(found, line)
		}
	}
	return strings.Join(found, "\n")
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
