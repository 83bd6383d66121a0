package jobs

import (
	"context"
	"sync"

	"media-downloader/internal/domain"
)

// NotificationKind distinguishes progress updates from the terminal notice.
type NotificationKind string

const (
	NotificationProgress NotificationKind = "progress"
	NotificationTerminal NotificationKind = "terminal"
)

// Notification carries one job update from the background goroutine to the shell.
type Notification struct {
	Kind     NotificationKind
	Progress domain.ProgressRecord
	Job      domain.Job
	Error    string
}

// Observer is implemented by presentation shells. Dispatch calls it on the
// goroutine that drives Dispatch, never on the job goroutine.
type Observer interface {
	OnProgress(domain.ProgressRecord)
	OnTerminal(job domain.Job, errDescription string)
}

// ObserverFuncs adapts plain functions to Observer.
type ObserverFuncs struct {
	Progress func(domain.ProgressRecord)
	Terminal func(domain.Job, string)
}

func (o ObserverFuncs) OnProgress(rec domain.ProgressRecord) {
	if o.Progress != nil {
		o.Progress(rec)
	}
}

func (o ObserverFuncs) OnTerminal(job domain.Job, errDescription string) {
	if o.Terminal != nil {
		o.Terminal(job, errDescription)
	}
}

// mailbox is an unbounded notification queue with a coalescing wake-up signal.
// Consecutive progress updates for the same job collapse to the latest one;
// terminal notifications are never dropped.
type mailbox struct {
	mu      sync.Mutex
	pending []Notification
	ready   chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{ready: make(chan struct{}, 1)}
}

func (m *mailbox) push(n Notification) {
	m.mu.Lock()
	if last := len(m.pending) - 1; n.Kind == NotificationProgress && last >= 0 &&
		m.pending[last].Kind == NotificationProgress &&
		m.pending[last].Progress.JobID == n.Progress.JobID {
		m.pending[last] = n
	} else {
		m.pending = append(m.pending, n)
	}
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
}

func (m *mailbox) drain() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.pending
	m.pending = nil
	return out
}

// dispatch delivers notifications to obs until ctx is done.
func (m *mailbox) dispatch(ctx context.Context, obs Observer) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.ready:
			for _, n := range m.drain() {
				deliver(obs, n)
			}
		}
	}
}

func deliver(obs Observer, n Notification) {
	switch n.Kind {
	case NotificationProgress:
		obs.OnProgress(n.Progress)
	case NotificationTerminal:
		obs.OnTerminal(n.Job, n.Error)
	}
}
