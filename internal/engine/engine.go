// Package engine adapts the external fetch-and-encode engine (yt-dlp + ffmpeg)
// to a cancellable, progress-reporting call.
package engine

import (
	"context"

	"media-downloader/internal/domain"
)

// Status tags reported with each progress event.
const (
	StatusStarting       = "starting"
	StatusDownloading    = "downloading"
	StatusPostProcessing = "post_processing"
	StatusFinished       = "finished"
	StatusError          = "error"
)

// Event is one raw progress report from the engine.
// TotalBytes is zero when the engine does not know the size.
type Event struct {
	Status          string
	DownloadedBytes int64
	TotalBytes      int64
	Filename        string
	Title           string
}

// Engine runs one download to completion.
//
// Implementations call onProgress synchronously for every progress report and
// poll isCancelled at each of those checkpoints. When isCancelled reports true
// they abort and return an error whose kind is domain.EngineErrorCancelled.
// Every other failure is returned as a *domain.EngineError.
type Engine interface {
	Run(ctx context.Context, desc domain.JobDescriptor, onProgress func(Event), isCancelled func() bool) error
}

// Func adapts a plain function to Engine.
type Func func(ctx context.Context, desc domain.JobDescriptor, onProgress func(Event), isCancelled func() bool) error

// Run calls f.
func (f Func) Run(ctx context.Context, desc domain.JobDescriptor, onProgress func(Event), isCancelled func() bool) error {
	return f(ctx, desc, onProgress, isCancelled)
}
