package job

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"ytqueue/config"
)

var ErrInvalidURL = errors.New("invalid YouTube URL")

// MetadataResolver looks up video info without downloading. An error means the
// info is unavailable; it never fails the job.
type MetadataResolver interface {
	Resolve(ctx context.Context, url string) (*Metadata, error)
}

// Fetcher downloads the video for a job, writing the artifact to a path
// derived from the job id.
type Fetcher interface {
	Fetch(ctx context.Context, id, url string) (*Artifact, error)
}

// Manager owns the download queue: submissions, reads, and the single
// background consumer that drains pending jobs oldest-first.
type Manager struct {
	cfg       *config.Config
	store     *Store
	resolver  MetadataResolver
	fetcher   Fetcher
	sweeper   *Sweeper
	estimator *Estimator
	started   atomic.Bool
}

func NewManager(cfg *config.Config, store *Store, resolver MetadataResolver, fetcher Fetcher) *Manager {
	return &Manager{
		cfg:       cfg,
		store:     store,
		resolver:  resolver,
		fetcher:   fetcher,
		sweeper:   NewSweeper(store, cfg.Retention),
		estimator: NewEstimator(store),
	}
}

// Start launches the worker loop. Safe to call any number of times; only the
// first call spawns the consumer, so exactly one runs per process.
func (m *Manager) Start(ctx context.Context) {
	if !m.started.CompareAndSwap(false, true) {
		return
	}
	go m.run(ctx)
}

// Running reports whether the worker loop has been started.
func (m *Manager) Running() bool {
	return m.started.Load()
}

// Submit validates url and queues a new job.
func (m *Manager) Submit(url string) (*Job, error) {
	url = strings.TrimSpace(url)
	if url == "" || !ValidSourceURL(url) {
		return nil, ErrInvalidURL
	}

	j, err := m.store.Create(url)
	if err != nil {
		return nil, err
	}
	log.Printf("Download %s queued: %s", j.ID, j.URL)
	return j, nil
}

func (m *Manager) Get(id string) (*Job, error) {
	return m.store.Get(id)
}

// List returns every job, newest first.
func (m *Manager) List() ([]*Job, error) {
	return m.store.ListAll()
}

// EstimateFor returns the queue outlook for j, or nil when j is not pending.
func (m *Manager) EstimateFor(j *Job) *Estimate {
	return m.estimator.EstimateFor(j)
}

func (m *Manager) run(ctx context.Context) {
	log.Println("Worker started. Monitoring for queued downloads...")
	for {
		select {
		case <-ctx.Done():
			log.Println("Worker shutting down.")
			return
		default:
		}

		if m.iterate(ctx) {
			if !m.sleep(ctx) {
				log.Println("Worker shutting down.")
				return
			}
		}
	}
}

// iterate runs one worker pass and reports whether the loop should sleep
// before the next. Panics and store failures are worker-level errors: logged,
// followed by a poll-interval sleep, never fatal to the loop.
func (m *Manager) iterate(ctx context.Context) (idle bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Worker error: %v", r)
			idle = true
		}
	}()

	if _, _, err := m.sweeper.Sweep(time.Now()); err != nil {
		log.Printf("Cleanup error: %v", err)
	}

	j, err := m.store.NextPending()
	if err != nil {
		log.Printf("Worker error: %v", err)
		return true
	}
	if j == nil {
		return true
	}

	if err := m.process(ctx, j); err != nil {
		log.Printf("Worker error: %v", err)
		return true
	}
	return false
}

// process drives one job from pending to a terminal state. The returned error
// covers store failures only; a failed fetch resolves the job as failed and
// returns nil.
func (m *Manager) process(ctx context.Context, j *Job) error {
	log.Printf("Processing download %s: %s", j.ID, j.URL)
	if err := m.store.UpdateStatus(j.ID, StatusProcessing, ""); err != nil {
		return err
	}

	md, err := m.resolver.Resolve(ctx, j.URL)
	if err != nil {
		// Best-effort only; the fetch proceeds without metadata.
		log.Printf("Metadata unavailable for %s: %v", j.ID, err)
	} else if err := m.store.UpdateMetadata(j.ID, *md); err != nil {
		return err
	}

	art, err := m.fetcher.Fetch(ctx, j.ID, j.URL)
	if err != nil {
		log.Printf("Download %s failed: %v", j.ID, err)
		return m.store.UpdateStatus(j.ID, StatusFailed, err.Error())
	}

	if err := m.store.CompleteWithArtifact(j.ID, *art); err != nil {
		return err
	}
	log.Printf("Download %s completed: %s (%s)", j.ID, art.Path, art.SizeLabel)
	return nil
}

// sleep blocks for one poll interval, returning false if ctx ended first.
func (m *Manager) sleep(ctx context.Context) bool {
	timer := time.NewTimer(m.cfg.PollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
