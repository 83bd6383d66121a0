package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/segmentio/ksuid"
	_ "modernc.org/sqlite"

	"media-downloader/internal/domain"
)

// DefaultLimit is used by Recent when limit is not positive.
const DefaultLimit = 20

// Entry is one finished download as stored in the history database.
type Entry struct {
	ID              string          `json:"id"`
	JobID           string          `json:"jobId"`
	URL             string          `json:"url"`
	Directory       string          `json:"directory"`
	Container       string          `json:"container"`
	State           domain.JobState `json:"state"`
	Title           string          `json:"title"`
	Filename        string          `json:"filename"`
	DownloadedBytes int64           `json:"downloadedBytes"`
	TotalBytes      int64           `json:"totalBytes"`
	Error           string          `json:"error,omitempty"`
	StartedAt       time.Time       `json:"startedAt"`
	FinishedAt      time.Time       `json:"finishedAt"`
}

// EntryFromJob builds an entry from a terminal job and its last progress record.
func EntryFromJob(job domain.Job, last domain.ProgressRecord) Entry {
	return Entry{
		JobID:           job.ID,
		URL:             job.Descriptor.URL,
		Directory:       job.Descriptor.Directory,
		Container:       job.Descriptor.Container,
		State:           job.State,
		Title:           last.Title,
		Filename:        last.Filename,
		DownloadedBytes: last.DownloadedBytes,
		TotalBytes:      last.TotalBytes,
		Error:           job.Error,
		StartedAt:       job.StartedAt,
		FinishedAt:      job.FinishedAt,
	}
}

// Store persists download history in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the database at dbPath and applies migrations.
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}

	store := &Store{db: db}
	if err := store.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history database: %w", err)
	}
	return store, nil
}

// Record inserts entry and returns it with its assigned id.
// Ids are KSUIDs stamped with FinishedAt, so they sort chronologically.
func (s *Store) Record(entry Entry) (Entry, error) {
	if entry.FinishedAt.IsZero() {
		entry.FinishedAt = time.Now().UTC()
	}
	if entry.ID == "" {
		id, err := ksuid.NewRandomWithTime(entry.FinishedAt)
		if err != nil {
			return Entry{}, fmt.Errorf("generate history id: %w", err)
		}
		entry.ID = id.String()
	}

	query := `INSERT INTO downloads (id, job_id, url, directory, container, state, title, filename,
              downloaded_bytes, total_bytes, error, started_at, finished_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.Exec(query,
		entry.ID,
		entry.JobID,
		entry.URL,
		entry.Directory,
		entry.Container,
		string(entry.State),
		entry.Title,
		entry.Filename,
		entry.DownloadedBytes,
		entry.TotalBytes,
		entry.Error,
		entry.StartedAt.UTC(),
		entry.FinishedAt.UTC(),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("insert history entry: %w", err)
	}
	return entry, nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := s.db.Query(`
		SELECT id, job_id, url, directory, container, state, title, filename,
		       downloaded_bytes, total_bytes, error, started_at, finished_at
		FROM downloads
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry      Entry
			state      string
			startedAt  sql.NullTime
			finishedAt sql.NullTime
		)
		if err := rows.Scan(
			&entry.ID, &entry.JobID, &entry.URL, &entry.Directory, &entry.Container, &state,
			&entry.Title, &entry.Filename, &entry.DownloadedBytes, &entry.TotalBytes, &entry.Error,
			&startedAt, &finishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		entry.State = domain.JobState(state)
		if startedAt.Valid {
			entry.StartedAt = startedAt.Time
		}
		if finishedAt.Valid {
			entry.FinishedAt = finishedAt.Time
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
