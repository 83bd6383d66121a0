package jobs

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"media-downloader/internal/domain"
	"media-downloader/internal/engine"
)

// normalize converts a raw engine event into a ProgressRecord.
// The percentage is only derived when the total size is known and non-zero.
func normalize(jobID string, ev engine.Event) domain.ProgressRecord {
	rec := domain.ProgressRecord{
		JobID:           jobID,
		Status:          ev.Status,
		DownloadedBytes: ev.DownloadedBytes,
		TotalBytes:      ev.TotalBytes,
		Filename:        ev.Filename,
		Title:           ev.Title,
	}

	if ev.TotalBytes > 0 {
		pct := float64(ev.DownloadedBytes) / float64(ev.TotalBytes) * 100
		if pct > 100 {
			pct = 100
		}
		if pct < 0 {
			pct = 0
		}
		rec.Percentage = &pct
	}

	rec.Phrase = phrase(rec)
	return rec
}

// phrase renders the human status line shown next to the progress bar.
func phrase(rec domain.ProgressRecord) string {
	switch rec.Status {
	case engine.StatusDownloading:
		downloaded := humanize.Bytes(uint64(rec.DownloadedBytes))
		if rec.Percentage == nil {
			return fmt.Sprintf("Downloading %s", downloaded)
		}
		return fmt.Sprintf("Downloading %s of %s (%.1f%%)", downloaded, humanize.Bytes(uint64(rec.TotalBytes)), *rec.Percentage)
	case engine.StatusStarting:
		return "Starting download"
	case engine.StatusPostProcessing:
		return "Converting"
	case engine.StatusFinished:
		if rec.Filename != "" {
			return fmt.Sprintf("Finished %s", filepath.Base(rec.Filename))
		}
		return "Download finished"
	case engine.StatusError:
		return "Engine reported an error"
	case "":
		return "Working"
	default:
		return rec.Status
	}
}
