package config

import (
	"os"
	"path/filepath"

	"media-downloader/internal/domain"
)

// AppDirName is the per-user directory holding settings, logs, and history.
const AppDirName = ".media-downloader"

// DataDir returns the per-user application directory.
func DataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, AppDirName)
}

// DefaultSettings returns baseline preferences for first launch.
func DefaultSettings() domain.Settings {
	return domain.Settings{
		LastDirectory: "",
		FFmpegPath:    "ffmpeg",
		Container:     domain.DefaultContainer,
	}
}

// DefaultDownloadDir is offered when no directory was ever selected.
func DefaultDownloadDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(homeDir, "Downloads", "media-downloader")
}
