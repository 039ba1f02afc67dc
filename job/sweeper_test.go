package job

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeperDeletesOldJobsAndArtifacts(t *testing.T) {
	s := newTestStore(t)
	sweeper := NewSweeper(s, 240*time.Hour)
	now := time.Now().UTC()

	dir := t.TempDir()
	artifact := filepath.Join(dir, "old.mp4")
	require.NoError(t, os.WriteFile(artifact, []byte("video bytes"), 0o644))

	old, err := s.Create("https://youtu.be/old")
	require.NoError(t, err)
	require.NoError(t, s.CompleteWithArtifact(old.ID, Artifact{Path: artifact, SizeLabel: "11 B"}))
	backdate(t, s, old.ID, now.Add(-11*24*time.Hour))

	recent, err := s.Create("https://youtu.be/recent")
	require.NoError(t, err)
	backdate(t, s, recent.ID, now.Add(-9*24*time.Hour))

	records, files, err := sweeper.Sweep(now)
	require.NoError(t, err)
	assert.Equal(t, 1, records)
	assert.Equal(t, 1, files)

	_, err = os.Stat(artifact)
	assert.True(t, os.IsNotExist(err))

	_, err = s.Get(old.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(recent.ID)
	assert.NoError(t, err)
}

func TestSweeperMissingArtifactDoesNotBlockRecordDeletion(t *testing.T) {
	s := newTestStore(t)
	sweeper := NewSweeper(s, 240*time.Hour)
	now := time.Now().UTC()

	old, err := s.Create("https://youtu.be/old")
	require.NoError(t, err)
	require.NoError(t, s.CompleteWithArtifact(old.ID, Artifact{Path: "/nonexistent/old.mp4", SizeLabel: "1.0 MB"}))
	backdate(t, s, old.ID, now.Add(-11*24*time.Hour))

	records, files, err := sweeper.Sweep(now)
	require.NoError(t, err)
	assert.Equal(t, 1, records)
	assert.Equal(t, 0, files)

	_, err = s.Get(old.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSweeperEmptySweep(t *testing.T) {
	s := newTestStore(t)
	sweeper := NewSweeper(s, 240*time.Hour)

	records, files, err := sweeper.Sweep(time.Now())
	require.NoError(t, err)
	assert.Zero(t, records)
	assert.Zero(t, files)
}
