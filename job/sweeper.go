package job

import (
	"log"
	"os"
	"time"
)

// Sweeper deletes job records and their artifacts once they age past the
// retention horizon. It runs inline in the worker loop, never concurrently
// with itself.
type Sweeper struct {
	store     *Store
	retention time.Duration
}

func NewSweeper(store *Store, retention time.Duration) *Sweeper {
	return &Sweeper{store: store, retention: retention}
}

// Sweep removes everything created before now minus the retention horizon and
// returns how many records and artifact files went away. Artifact removal is
// best-effort: a failed unlink is logged and never blocks the record deletion.
func (s *Sweeper) Sweep(now time.Time) (int, int, error) {
	cutoff := now.Add(-s.retention)

	deleted, err := s.store.DeleteOlderThan(cutoff)
	if err != nil {
		return 0, 0, err
	}
	if len(deleted) == 0 {
		return 0, 0, nil
	}

	files := 0
	for _, d := range deleted {
		if d.FilePath == "" {
			continue
		}
		if err := os.Remove(d.FilePath); err != nil {
			if !os.IsNotExist(err) {
				log.Printf("Failed to delete old video file %s: %v", d.FilePath, err)
			}
			continue
		}
		files++
	}

	log.Printf("Cleanup: deleted %d old entries and %d video files", len(deleted), files)
	return len(deleted), files, nil
}
