package linkquality

import "time"

// timed is implemented by window sample types.
type timed interface {
	time() time.Time
}

// window holds samples of one metric kind in arrival order. Samples are
// stamped under the aggregator lock, so timestamps are non-decreasing and
// pruning reduces to dropping a prefix.
type window[T timed] struct {
	samples []T
}

// add appends a sample. Callers stamp samples with the aggregator clock, so
// arrival order is timestamp order.
func (w *window[T]) add(s T) {
	w.samples = append(w.samples, s)
}

// prune removes every sample older than cutoff. Samples stamped exactly at
// the cutoff are retained.
func (w *window[T]) prune(cutoff time.Time) {
	i := 0
	for i < len(w.samples) && w.samples[i].time().Before(cutoff) {
		i++
	}
	if i == 0 {
		return
	}
	w.samples = append(w.samples[:0], w.samples[i:]...)
}

// size returns the current number of retained samples.
func (w *window[T]) size() int {
	return len(w.samples)
}

// antennaSample is a single per-packet reading with one value per antenna.
// Both RSSI and SNR windows use it; values are stored as given, unclamped.
type antennaSample struct {
	ts   time.Time
	ant1 float64
	ant2 float64
}

func (s antennaSample) time() time.Time { return s.ts }

// fecSample is a single set of forward-error-correction block counters.
type fecSample struct {
	ts        time.Time
	all       uint32
	recovered uint32
	lost      uint32
}

func (s fecSample) time() time.Time { return s.ts }
