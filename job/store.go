package job

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lithammer/shortuuid/v4"
	_ "github.com/mattn/go-sqlite3"
)

var ErrNotFound = errors.New("job not found")

// timeFormat is fixed-width so that lexicographic comparison inside SQL
// matches chronological order. RFC3339Nano trims trailing zeros and would not.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Store is the durable job table. It is the only shared mutable state in the
// process; database/sql plus WAL mode serializes writes while reads stay
// concurrent and never observe a partial record.
type Store struct {
	db *sql.DB
}

func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS jobs (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			url TEXT NOT NULL,
			title TEXT,
			duration TEXT,
			thumbnail TEXT,
			filepath TEXT,
			filesize TEXT,
			status TEXT NOT NULL,
			error TEXT,
			created_at TEXT NOT NULL,
			completed_at TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
		`
	if _, err = db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Create inserts a new pending job for url and returns it.
func (s *Store) Create(url string) (*Job, error) {
	j := &Job{
		ID:        shortuuid.New(),
		URL:       url,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}

	res, err := s.db.Exec(`
		INSERT INTO jobs (id, url, status, created_at)
		VALUES (?, ?, ?, ?)`,
		j.ID, j.URL, string(j.Status), j.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	j.seq, _ = res.LastInsertId()
	return j, nil
}

const jobColumns = `seq, id, url, title, duration, thumbnail, filepath, filesize, status, error, created_at, completed_at`

func scanJob(row interface{ Scan(...interface{}) error }) (*Job, error) {
	var j Job
	var title, duration, thumbnail, filePath, fileSize, errDetail, completedAt sql.NullString
	var status, createdAt string

	err := row.Scan(&j.seq, &j.ID, &j.URL, &title, &duration, &thumbnail,
		&filePath, &fileSize, &status, &errDetail, &createdAt, &completedAt)
	if err != nil {
		return nil, err
	}

	j.Title = title.String
	j.Duration = duration.String
	j.Thumbnail = thumbnail.String
	j.FilePath = filePath.String
	j.FileSize = fileSize.String
	j.Status = Status(status)
	j.Error = errDetail.String
	if j.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, fmt.Errorf("corrupt created_at for job %s: %w", j.ID, err)
	}
	if completedAt.Valid {
		if j.CompletedAt, err = time.Parse(timeFormat, completedAt.String); err != nil {
			return nil, fmt.Errorf("corrupt completed_at for job %s: %w", j.ID, err)
		}
	}
	return &j, nil
}

func (s *Store) Get(id string) (*Job, error) {
	row := s.db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	return j, nil
}

// ListAll returns every job, newest first.
func (s *Store) ListAll() ([]*Job, error) {
	rows, err := s.db.Query(`SELECT ` + jobColumns + ` FROM jobs ORDER BY created_at DESC, seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// ListPending returns the ids of queued jobs, oldest first.
func (s *Store) ListPending() ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM jobs WHERE status = ? ORDER BY created_at ASC, seq ASC`,
		string(StatusPending))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending jobs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// NextPending returns the oldest queued job, or nil when the queue is empty.
func (s *Store) NextPending() (*Job, error) {
	row := s.db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE status = ?
		ORDER BY created_at ASC, seq ASC LIMIT 1`, string(StatusPending))
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load next pending job: %w", err)
	}
	return j, nil
}

func (s *Store) CountProcessing() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM jobs WHERE status = ?`,
		string(StatusProcessing)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count processing jobs: %w", err)
	}
	return n, nil
}

// CountPendingBefore returns how many queued jobs precede j in the FIFO order.
func (s *Store) CountPendingBefore(j *Job) (int, error) {
	var n int
	created := j.CreatedAt.Format(timeFormat)
	err := s.db.QueryRow(`SELECT COUNT(*) FROM jobs WHERE status = ?
		AND (created_at < ? OR (created_at = ? AND seq < ?))`,
		string(StatusPending), created, created, j.seq).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count queue ahead: %w", err)
	}
	return n, nil
}

// UpdateMetadata persists resolved video info so polling clients see it before
// the fetch finishes.
func (s *Store) UpdateMetadata(id string, md Metadata) error {
	_, err := s.db.Exec(`UPDATE jobs SET title = ?, duration = ?, thumbnail = ? WHERE id = ?`,
		md.Title, md.Duration, md.Thumbnail, id)
	if err != nil {
		return fmt.Errorf("failed to update metadata: %w", err)
	}
	return nil
}

// UpdateStatus moves a job to status. A failed status also records the error
// detail and stamps completed_at.
func (s *Store) UpdateStatus(id string, status Status, errDetail string) error {
	var err error
	if status == StatusFailed {
		_, err = s.db.Exec(`UPDATE jobs SET status = ?, error = ?, completed_at = ? WHERE id = ?`,
			string(status), errDetail, time.Now().UTC().Format(timeFormat), id)
	} else {
		_, err = s.db.Exec(`UPDATE jobs SET status = ? WHERE id = ?`, string(status), id)
	}
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	return nil
}

// CompleteWithArtifact marks a job completed with its artifact location and
// rendered size, stamping completed_at.
func (s *Store) CompleteWithArtifact(id string, art Artifact) error {
	_, err := s.db.Exec(`UPDATE jobs SET status = ?, filepath = ?, filesize = ?, completed_at = ? WHERE id = ?`,
		string(StatusCompleted), art.Path, art.SizeLabel,
		time.Now().UTC().Format(timeFormat), id)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	return nil
}

// Deleted identifies a removed record and the artifact it may have left behind.
type Deleted struct {
	ID       string
	FilePath string
}

// DeleteOlderThan removes every job created before cutoff and returns what was
// removed. Selection and deletion happen in one transaction. Jobs in
// processing are never deleted, whatever their age.
func (s *Store) DeleteOlderThan(cutoff time.Time) ([]Deleted, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin cleanup: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`SELECT id, COALESCE(filepath, '') FROM jobs
		WHERE created_at < ? AND status != ?`,
		cutoff.UTC().Format(timeFormat), string(StatusProcessing))
	if err != nil {
		return nil, fmt.Errorf("failed to select old jobs: %w", err)
	}

	var deleted []Deleted
	for rows.Next() {
		var d Deleted
		if err := rows.Scan(&d.ID, &d.FilePath); err != nil {
			rows.Close()
			return nil, err
		}
		deleted = append(deleted, d)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(deleted) == 0 {
		return nil, nil
	}

	if _, err := tx.Exec(`DELETE FROM jobs WHERE created_at < ? AND status != ?`,
		cutoff.UTC().Format(timeFormat), string(StatusProcessing)); err != nil {
		return nil, fmt.Errorf("failed to delete old jobs: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit cleanup: %w", err)
	}
	return deleted, nil
}

// CompletedDurations returns processing durations of the most recently
// finished completed jobs, newest first, up to limit.
func (s *Store) CompletedDurations(limit int) ([]time.Duration, error) {
	rows, err := s.db.Query(`SELECT created_at, completed_at FROM jobs
		WHERE status = ? AND completed_at IS NOT NULL
		ORDER BY completed_at DESC LIMIT ?`, string(StatusCompleted), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load completed durations: %w", err)
	}
	defer rows.Close()

	var durations []time.Duration
	for rows.Next() {
		var createdStr, completedStr string
		if err := rows.Scan(&createdStr, &completedStr); err != nil {
			return nil, err
		}
		created, err := time.Parse(timeFormat, createdStr)
		if err != nil {
			continue
		}
		completed, err := time.Parse(timeFormat, completedStr)
		if err != nil {
			continue
		}
		durations = append(durations, completed.Sub(created))
	}
	return durations, rows.Err()
}

// FailStale marks any job left in processing as failed with detail. A job can
// only be stranded there by a crash or restart mid-fetch; the state machine
// has no way back to pending, so reconciliation fails it.
func (s *Store) FailStale(detail string) (int, error) {
	res, err := s.db.Exec(`UPDATE jobs SET status = ?, error = ?, completed_at = ? WHERE status = ?`,
		string(StatusFailed), detail, time.Now().UTC().Format(timeFormat),
		string(StatusProcessing))
	if err != nil {
		return 0, fmt.Errorf("failed to reconcile stale jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
