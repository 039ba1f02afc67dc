package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ytqueue/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubResolver is a mock implementation of the MetadataResolver interface.
type stubResolver struct {
	md  *Metadata
	err error
}

func (r *stubResolver) Resolve(ctx context.Context, url string) (*Metadata, error) {
	return r.md, r.err
}

// stubFetcher is a mock Fetcher that tracks how many fetches run at once.
type stubFetcher struct {
	mu      sync.Mutex
	cur     int
	maxSeen int
	delay   time.Duration
	fn      func(id, url string) (*Artifact, error)
}

func (f *stubFetcher) Fetch(ctx context.Context, id, url string) (*Artifact, error) {
	f.mu.Lock()
	f.cur++
	if f.cur > f.maxSeen {
		f.maxSeen = f.cur
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.cur--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.fn != nil {
		return f.fn(id, url)
	}
	return &Artifact{Path: "downloads/" + id + ".mp4", SizeLabel: "5.0 MB"}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		PollInterval: 10 * time.Millisecond,
		Retention:    240 * time.Hour,
	}
}

func waitForStatus(t *testing.T, s *Store, id string, want Status) *Job {
	t.Helper()
	var got *Job
	require.Eventually(t, func() bool {
		j, err := s.Get(id)
		if err != nil {
			return false
		}
		got = j
		return j.Status == want
	}, 3*time.Second, 10*time.Millisecond)
	return got
}

func TestManagerSubmit(t *testing.T) {
	s := newTestStore(t)
	mgr := NewManager(testConfig(), s, &stubResolver{}, &stubFetcher{})

	j, err := mgr.Submit("https://www.youtube.com/watch?v=abc123")
	require.NoError(t, err)
	assert.NotEmpty(t, j.ID)
	assert.Equal(t, StatusPending, j.Status)

	_, err = mgr.Submit("not-a-url")
	assert.ErrorIs(t, err, ErrInvalidURL)
	_, err = mgr.Submit("   ")
	assert.ErrorIs(t, err, ErrInvalidURL)

	jobs, err := mgr.List()
	require.NoError(t, err)
	assert.Len(t, jobs, 1, "invalid submissions must not create jobs")
}

func TestManagerProcessesQueue(t *testing.T) {
	s := newTestStore(t)
	resolver := &stubResolver{md: &Metadata{
		Title:     "Test Video",
		Duration:  "3:45",
		Thumbnail: "https://i.ytimg.com/vi/abc/hq720.jpg",
	}}
	mgr := NewManager(testConfig(), s, resolver, &stubFetcher{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	j, err := mgr.Submit("https://www.youtube.com/watch?v=abc123")
	require.NoError(t, err)
	mgr.Start(ctx)

	done := waitForStatus(t, s, j.ID, StatusCompleted)
	assert.Equal(t, "Test Video", done.Title)
	assert.Equal(t, "3:45", done.Duration)
	assert.Equal(t, "downloads/"+j.ID+".mp4", done.FilePath)
	assert.Equal(t, "5.0 MB", done.FileSize)
	assert.False(t, done.CompletedAt.IsZero())
	assert.Empty(t, done.Error)
}

func TestManagerFetchFailureDoesNotStopWorker(t *testing.T) {
	s := newTestStore(t)
	fetcher := &stubFetcher{
		fn: func(id, url string) (*Artifact, error) {
			if url == "https://youtu.be/bad" {
				return nil, errors.New("yt-dlp error: HTTP Error 403: Forbidden")
			}
			return &Artifact{Path: "downloads/" + id + ".mp4", SizeLabel: "5.0 MB"}, nil
		},
	}
	mgr := NewManager(testConfig(), s, &stubResolver{err: errors.New("metadata unavailable")}, fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bad, err := mgr.Submit("https://youtu.be/bad")
	require.NoError(t, err)
	good, err := mgr.Submit("https://youtu.be/good")
	require.NoError(t, err)
	mgr.Start(ctx)

	failed := waitForStatus(t, s, bad.ID, StatusFailed)
	assert.Contains(t, failed.Error, "403")
	assert.False(t, failed.CompletedAt.IsZero())

	// The queue keeps draining after a failure.
	waitForStatus(t, s, good.ID, StatusCompleted)
}

func TestManagerTimeoutFailure(t *testing.T) {
	s := newTestStore(t)
	fetcher := &stubFetcher{
		fn: func(id, url string) (*Artifact, error) {
			return nil, errors.New("download timed out after 1h0m0s")
		},
	}
	mgr := NewManager(testConfig(), s, &stubResolver{}, fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	j, err := mgr.Submit("https://youtu.be/slow")
	require.NoError(t, err)
	mgr.Start(ctx)

	failed := waitForStatus(t, s, j.ID, StatusFailed)
	assert.Contains(t, failed.Error, "timed out")
}

func TestManagerMetadataUnavailable(t *testing.T) {
	s := newTestStore(t)
	mgr := NewManager(testConfig(), s, &stubResolver{err: errors.New("yt-dlp info failed")}, &stubFetcher{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	j, err := mgr.Submit("https://youtu.be/nometa")
	require.NoError(t, err)
	mgr.Start(ctx)

	done := waitForStatus(t, s, j.ID, StatusCompleted)
	assert.Empty(t, done.Title, "metadata failure must not abort the job")
}

func TestManagerStartIdempotent(t *testing.T) {
	s := newTestStore(t)
	fetcher := &stubFetcher{delay: 20 * time.Millisecond}
	mgr := NewManager(testConfig(), s, &stubResolver{}, fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	assert.False(t, mgr.Running())
	for i := 0; i < 5; i++ {
		mgr.Start(ctx)
	}
	assert.True(t, mgr.Running())

	var ids []string
	for i := 0; i < 3; i++ {
		j, err := mgr.Submit(fmt.Sprintf("https://youtu.be/vid%d", i))
		require.NoError(t, err)
		ids = append(ids, j.ID)
	}

	for _, id := range ids {
		waitForStatus(t, s, id, StatusCompleted)
	}

	fetcher.mu.Lock()
	defer fetcher.mu.Unlock()
	assert.Equal(t, 1, fetcher.maxSeen, "exactly one consumer may fetch at a time")
}

func TestManagerSweepsEachIteration(t *testing.T) {
	s := newTestStore(t)
	mgr := NewManager(testConfig(), s, &stubResolver{}, &stubFetcher{})

	old, err := s.Create("https://youtu.be/old")
	require.NoError(t, err)
	backdate(t, s, old.ID, time.Now().UTC().Add(-11*24*time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mgr.Start(ctx)

	require.Eventually(t, func() bool {
		_, err := s.Get(old.ID)
		return errors.Is(err, ErrNotFound)
	}, 3*time.Second, 10*time.Millisecond)
}
