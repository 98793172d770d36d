// This file implements summary statistics over duration samples, e.g. the
// timings of a repeated custom query.

package util

import (
	"fmt"
	"math"
	"slices"
	"sync"
	"time"
)

// ----------------------------------------------------------------------------
// Stats
// ----------------------------------------------------------------------------

type Stats struct {
	Count        int           `json:"count"`
	StdDeviation time.Duration `json:"std_deviation"`
	Min          time.Duration `json:"min"`
	Max          time.Duration `json:"max"`
	Mean         time.Duration `json:"mean"`
	Total        time.Duration `json:"total"`
}

// NewStats computes the standard deviation, minimum, maximum and mean
// of the samples.
func NewStats(values []time.Duration) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	// initialize min and max with the first value
	minV := values[0]
	maxV := values[0]

	// calculate sum for mean
	var sum time.Duration
	for _, v := range values {
		sum += v

		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}

	mean := float64(sum) / float64(len(values))

	// calculate sum of squared differences from mean
	var sumSquaredDiffs float64
	for _, v := range values {
		diff := float64(v) - mean
		sumSquaredDiffs += diff * diff
	}

	// population formula
	stdDev := math.Sqrt(sumSquaredDiffs / float64(len(values)))

	return Stats{
		Count:        len(values),
		StdDeviation: time.Duration(stdDev),
		Min:          minV,
		Max:          maxV,
		Mean:         time.Duration(mean),
		Total:        sum,
	}
}

func (s Stats) String() string {
	return fmt.Sprintf("n=%d mean=%s min=%s max=%s stddev=%s", s.Count, s.Mean, s.Min, s.Max, s.StdDeviation)
}

// ----------------------------------------------------------------------------
// Recorder
// ----------------------------------------------------------------------------

// Recorder collects duration samples.
//
// Thread-safe: all methods are safe for concurrent use
type Recorder struct {
	mutex   sync.Mutex
	samples []time.Duration
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Add records a sample.
func (r *Recorder) Add(d time.Duration) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.samples = append(r.samples, d)
}

// Samples returns a copy of all samples in insertion order.
func (r *Recorder) Samples() []time.Duration {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return slices.Clone(r.samples)
}

// Stats summarizes the recorded samples.
func (r *Recorder) Stats() Stats {
	return NewStats(r.Samples())
}

// Reset drops all samples.
func (r *Recorder) Reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.samples = r.samples[:0]
}
