package linkquality

import (
	"testing"
	"time"
)

func TestWindow_PruneDropsOnlyExpired(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var w window[antennaSample]
	for i := 0; i < 5; i++ {
		w.add(antennaSample{ts: base.Add(time.Duration(i) * 100 * time.Millisecond), ant1: float64(i)})
	}

	w.prune(base.Add(200 * time.Millisecond))

	if w.size() != 3 {
		t.Fatalf("Expected 3 retained samples, got %d", w.size())
	}

	// Arrival order is preserved and the cutoff sample itself is retained.
	for i, want := range []float64{2, 3, 4} {
		if w.samples[i].ant1 != want {
			t.Errorf("Sample %d: expected ant1 %.0f, got %.0f", i, want, w.samples[i].ant1)
		}
	}
}

func TestWindow_PruneAll(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var w window[fecSample]
	w.add(fecSample{ts: base, all: 10, recovered: 1, lost: 1})
	w.add(fecSample{ts: base.Add(time.Millisecond), all: 10, recovered: 2, lost: 0})

	w.prune(base.Add(time.Second))

	if w.size() != 0 {
		t.Errorf("Expected empty window, got %d samples", w.size())
	}
}

func TestWindow_PruneEmpty(t *testing.T) {
	var w window[antennaSample]
	w.prune(time.Now())

	if w.size() != 0 {
		t.Errorf("Expected empty window to stay empty, got %d samples", w.size())
	}
}
