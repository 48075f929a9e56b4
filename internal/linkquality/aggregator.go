package linkquality

import (
	"io"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultWindow bounds how far back samples contribute to a snapshot.
	DefaultWindow = time.Second

	// SessionIDLength is the length of the rotating session identifier.
	SessionIDLength = 4

	// initialSessionID is the identifier reported before the first rotation.
	initialSessionID = "aaaa"

	// Normalization domains. RSSI arrives in 0..126, SNR in 0..60; both map
	// onto the 0..100 score range and clamp after mapping.
	rssiInMin = 0
	rssiInMax = 126
	snrInMin  = 0
	snrInMax  = 60
	scoreMin  = 0
	scoreMax  = 100

	// Blend weights for the combined link score.
	rssiWeight = 0.5
	snrWeight  = 0.5

	// emptyFECSentinel is reported for both counters when no FEC samples are
	// in the window, keeping "no data yet" distinguishable from a perfect
	// link downstream.
	emptyFECSentinel = 300
)

// Snapshot is a composite link-quality reading over the last window.
// It is a value; the caller owns it and the aggregator does not retain it.
type Snapshot struct {
	LostLastSecond      int    // FEC blocks lost within the window
	RecoveredLastSecond int    // FEC blocks recovered within the window
	RSSI                int    // best-antenna raw RSSI mean, nominally 0..126
	SNR                 int    // best-antenna raw SNR mean, nominally 0..60
	LinkScore           int    // blended normalized score, 0..100
	SessionID           string // current link epoch marker
}

// Source provides link quality snapshots to a consumer.
type Source interface {
	Snapshot() Snapshot
}

// Recorder is the ingestion side of the aggregator, used by producers.
type Recorder interface {
	RecordRSSI(ant1, ant2 uint8)
	RecordSNR(ant1, ant2 int8)
	RecordFEC(all, recovered, lost uint32)
}

// WithWindow sets the lookback horizon bounding which samples contribute
// to aggregation.
func WithWindow(d time.Duration) func(*Aggregator) {
	return func(a *Aggregator) {
		a.window = d
	}
}

// WithClock sets the clock used to stamp samples and compute prune cutoffs.
func WithClock(now func() time.Time) func(*Aggregator) {
	return func(a *Aggregator) {
		a.now = now
	}
}

// WithSessionIDGenerator sets the generator invoked to rotate the session
// identifier. It receives the desired identifier length.
func WithSessionIDGenerator(gen func(length int) string) func(*Aggregator) {
	return func(a *Aggregator) {
		a.genID = gen
	}
}

// WithLogger sets the logger for the aggregator
func WithLogger(logger *slog.Logger) func(*Aggregator) {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

// Aggregator maintains rolling windows of per-packet radio metrics for one
// monitored link and derives composite quality snapshots from them. It is
// safe for concurrent use by multiple producers and a consumer. Create one
// Aggregator per link and share that instance.
type Aggregator struct {
	window time.Duration
	now    func() time.Time
	genID  func(length int) string
	logger *slog.Logger

	mu        sync.Mutex
	rssi      window[antennaSample]
	snr       window[antennaSample]
	fec       window[fecSample]
	sessionID string
}

// New creates an Aggregator with a one-second window and a discard logger.
func New(options ...func(*Aggregator)) *Aggregator {
	a := Aggregator{
		window:    DefaultWindow,
		now:       time.Now,
		genID:     randomSessionID,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
		sessionID: initialSessionID,
	}

	for _, option := range options {
		option(&a)
	}

	return &a
}

// RecordRSSI appends one per-packet RSSI reading, stamped with the current
// time. Values are taken as-is; out-of-range readings clamp at normalization
// time, not here.
func (a *Aggregator) RecordRSSI(ant1, ant2 uint8) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	a.rssi.prune(now.Add(-a.window))
	a.rssi.add(antennaSample{ts: now, ant1: float64(ant1), ant2: float64(ant2)})
}

// RecordSNR appends one per-packet SNR reading under the same contract as
// RecordRSSI. Negative values are valid and propagate into the raw mean.
func (a *Aggregator) RecordSNR(ant1, ant2 int8) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	a.snr.prune(now.Add(-a.window))
	a.snr.add(antennaSample{ts: now, ant1: float64(ant1), ant2: float64(ant2)})
}

// RecordFEC appends one set of FEC block counters. A sample with lost > 0
// rotates the session identifier, exactly once per call, so downstream can
// request a fresh reference frame.
func (a *Aggregator) RecordFEC(all, recovered, lost uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	a.fec.prune(now.Add(-a.window))
	a.fec.add(fecSample{ts: now, all: all, recovered: recovered, lost: lost})

	if lost > 0 {
		a.sessionID = a.genID(SessionIDLength)
		a.logger.Debug("packet loss observed, session rotated",
			slog.Uint64("lost", uint64(lost)),
			slog.String("session", a.sessionID))
	}
}

// Snapshot computes the composite quality over the current window. It is the
// sole read operation: per-antenna means of RSSI and SNR, normalized and
// blended into a link score, summed FEC counters and the session identifier.
// All three windows are pruned first, so only samples within the window as of
// now contribute.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := a.now().Add(-a.window)
	a.rssi.prune(cutoff)
	a.snr.prune(cutoff)
	a.fec.prune(cutoff)

	rssi1, rssi2 := meanLocked(&a.rssi)
	snr1, snr2 := meanLocked(&a.snr)

	normRSSI1 := mapRange(rssi1, rssiInMin, rssiInMax, scoreMin, scoreMax)
	normRSSI2 := mapRange(rssi2, rssiInMin, rssiInMax, scoreMin, scoreMax)
	normSNR1 := mapRange(snr1, snrInMin, snrInMax, scoreMin, scoreMax)
	normSNR2 := mapRange(snr2, snrInMin, snrInMax, scoreMin, scoreMax)

	// Antenna diversity: the best path wins, for the blended score and for
	// the raw display fields alike. The score blends normalized values while
	// RSSI/SNR report raw means; that asymmetry is part of the contract.
	score1 := rssiWeight*normRSSI1 + snrWeight*normSNR1
	score2 := rssiWeight*normRSSI2 + snrWeight*normSNR2

	recovered, lost := a.accumulateFECLocked()

	return Snapshot{
		LostLastSecond:      int(lost),
		RecoveredLastSecond: int(recovered),
		RSSI:                int(max(rssi1, rssi2)),
		SNR:                 int(max(snr1, snr2)),
		LinkScore:           int(max(score1, score2)),
		SessionID:           a.sessionID,
	}
}

// meanLocked averages both antennas independently across the window.
// An empty window means 0 for both. Caller must hold the aggregator lock.
func meanLocked(w *window[antennaSample]) (float64, float64) {
	n := w.size()
	if n == 0 {
		return 0, 0
	}

	var sum1, sum2 float64
	for _, s := range w.samples {
		sum1 += s.ant1
		sum2 += s.ant2
	}
	return sum1 / float64(n), sum2 / float64(n)
}

// accumulateFECLocked sums recovered and lost counters over the window, or
// reports the empty-window sentinel. Caller must hold the aggregator lock.
func (a *Aggregator) accumulateFECLocked() (recovered, lost uint32) {
	if a.fec.size() == 0 {
		return emptyFECSentinel, emptyFECSentinel
	}

	for _, s := range a.fec.samples {
		recovered += s.recovered
		lost += s.lost
	}
	return recovered, lost
}

// mapRange linearly maps v from [inMin, inMax] to [outMin, outMax], then
// clamps the result to the output range.
func mapRange(v, inMin, inMax, outMin, outMax float64) float64 {
	out := outMin + (v-inMin)*(outMax-outMin)/(inMax-inMin)
	return min(max(out, outMin), outMax)
}
