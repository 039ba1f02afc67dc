package job

import (
	"log"
	"math"
)

const (
	// estimateWindow is how many recent completions feed the average.
	estimateWindow = 20
	// defaultProcessingSeconds is used until any completion exists.
	defaultProcessingSeconds = 60.0
)

// Estimator derives queue positions and expected waits from the throughput of
// recent completions.
type Estimator struct {
	store *Store
}

func NewEstimator(store *Store) *Estimator {
	return &Estimator{store: store}
}

// Estimate is the queue outlook for one pending job.
type Estimate struct {
	QueuePosition int
	WaitSeconds   int
}

// AverageProcessingSeconds returns the mean created-to-completed duration over
// the most recent completed jobs. Non-positive samples are discarded as clock
// anomalies.
func (e *Estimator) AverageProcessingSeconds() float64 {
	durations, err := e.store.CompletedDurations(estimateWindow)
	if err != nil {
		log.Printf("Estimator falling back to default: %v", err)
		return defaultProcessingSeconds
	}

	var total float64
	var count int
	for _, d := range durations {
		if d <= 0 {
			continue
		}
		total += d.Seconds()
		count++
	}
	if count == 0 {
		return defaultProcessingSeconds
	}
	return total / float64(count)
}

// EstimateFor returns the queue position and expected wait for j, or nil when
// j is not pending.
func (e *Estimator) EstimateFor(j *Job) *Estimate {
	if j.Status != StatusPending {
		return nil
	}

	ahead, err := e.store.CountPendingBefore(j)
	if err != nil {
		log.Printf("Estimator error: %v", err)
		return nil
	}
	processing, err := e.store.CountProcessing()
	if err != nil {
		log.Printf("Estimator error: %v", err)
		return nil
	}

	wait := float64(ahead+processing) * e.AverageProcessingSeconds()
	return &Estimate{
		QueuePosition: ahead + 1,
		WaitSeconds:   int(math.Round(wait)),
	}
}
