package app

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/floppyhammer/PixelPilot/internal/linkquality"
	"github.com/floppyhammer/PixelPilot/internal/wfb"
)

// Monitor routes parsed receiver stats into the aggregator and periodically
// reports quality snapshots. One Monitor serves one link; it is the consumer
// side of the aggregator, responsible for logging and for surfacing session
// rotations so downstream can request a keyframe.
type Monitor struct {
	recorder linkquality.Recorder
	quality  linkquality.Source
	interval time.Duration
	logger   *slog.Logger

	events      int
	lastSession string
}

// NewMonitor creates a Monitor reporting snapshots at the given interval.
// Recorder and source are the two sides of the same shared aggregator.
func NewMonitor(recorder linkquality.Recorder, quality linkquality.Source, interval time.Duration, logger *slog.Logger) *Monitor {
	return &Monitor{
		recorder: recorder,
		quality:  quality,
		interval: interval,
		logger:   logger,
	}
}

// Run consumes stats events until the channel is closed, reporting a
// snapshot on every tick. It blocks; run it in its own goroutine.
func (m *Monitor) Run(stats <-chan wfb.Stat) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case stat, ok := <-stats:
			if !ok {
				return
			}
			m.record(stat)

		case <-ticker.C:
			m.report()
		}
	}
}

func (m *Monitor) record(stat wfb.Stat) {
	switch s := stat.(type) {
	case wfb.AntennaStat:
		switch s.Kind {
		case wfb.KindRSSI:
			m.recorder.RecordRSSI(clampUint8(s.Ant1), clampUint8(s.Ant2))
			m.events++
		case wfb.KindSNR:
			m.recorder.RecordSNR(clampInt8(s.Ant1), clampInt8(s.Ant2))
			m.events++
		}

	case wfb.FECStat:
		m.recorder.RecordFEC(s.All, s.Recovered, s.Lost)
		m.events++
	}
}

// clampUint8 saturates instead of wrapping, so a reading beyond the carrier
// type stays out of the nominal range for the aggregator rather than
// aliasing a valid value.
func clampUint8(v int) uint8 {
	return uint8(min(max(v, 0), math.MaxUint8))
}

func clampInt8(v int) int8 {
	return int8(min(max(v, math.MinInt8), math.MaxInt8))
}

func (m *Monitor) report() {
	snapshot := m.quality.Snapshot()

	rate := float64(m.events) / m.interval.Seconds()
	m.events = 0

	m.logger.Info("link quality",
		slog.Int("score", snapshot.LinkScore),
		slog.Int("rssi", snapshot.RSSI),
		slog.Int("snr", snapshot.SNR),
		slog.Int("recovered", snapshot.RecoveredLastSecond),
		slog.Int("lost", snapshot.LostLastSecond),
		slog.String("session", snapshot.SessionID),
		slog.String("rate", humanRate(rate)),
	)

	if m.lastSession != "" && snapshot.SessionID != m.lastSession {
		m.logger.Info("session rotated, requesting a keyframe downstream",
			slog.String("session", snapshot.SessionID))
	}
	m.lastSession = snapshot.SessionID
}

func humanRate(eventsPerSecond float64) string {
	rateSI, rateSuffix := humanize.ComputeSI(eventsPerSecond)
	return fmt.Sprintf("%.1f %sevt/s", rateSI, rateSuffix)
}
