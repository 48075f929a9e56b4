package linkquality

import (
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock for deterministic pruning tests.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// fixedSessionIDs returns a generator that replays the given identifiers.
func fixedSessionIDs(t *testing.T, ids ...string) func(int) string {
	i := 0
	return func(length int) string {
		if length != SessionIDLength {
			t.Errorf("Expected generator length %d, got %d", SessionIDLength, length)
		}
		if i >= len(ids) {
			t.Fatalf("Session generator called %d times, only %d ids provided", i+1, len(ids))
		}
		id := ids[i]
		i++
		return id
	}
}

func TestAggregator_RawMeansUseBestAntenna(t *testing.T) {
	a := New()

	a.RecordRSSI(10, 20)
	a.RecordRSSI(20, 40)
	a.RecordSNR(6, 2)
	a.RecordSNR(8, 4)

	s := a.Snapshot()

	// Means are per antenna: rssi (15, 30), snr (7, 3). Reported raw fields
	// take the better antenna.
	if s.RSSI != 30 {
		t.Errorf("Expected RSSI 30, got %d", s.RSSI)
	}
	if s.SNR != 7 {
		t.Errorf("Expected SNR 7, got %d", s.SNR)
	}
}

func TestAggregator_Normalization(t *testing.T) {
	testCases := []struct {
		name      string
		rssi      [2]uint8
		snr       [2]int8
		skipSNR   bool
		wantScore int
		wantRSSI  int
		wantSNR   int
	}{
		{
			name:      "domain maxima map to 100",
			rssi:      [2]uint8{126, 0},
			snr:       [2]int8{60, 0},
			wantScore: 100,
			wantRSSI:  126,
			wantSNR:   60,
		},
		{
			name:      "domain minima map to 0",
			rssi:      [2]uint8{0, 0},
			snr:       [2]int8{0, 0},
			wantScore: 0,
			wantRSSI:  0,
			wantSNR:   0,
		},
		{
			name:      "above-domain rssi clamps but raw value propagates",
			rssi:      [2]uint8{200, 200},
			skipSNR:   true, // empty SNR window contributes a 0 mean
			wantScore: 50,
			wantRSSI:  200,
			wantSNR:   0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a := New()
			a.RecordRSSI(tc.rssi[0], tc.rssi[1])
			if !tc.skipSNR {
				a.RecordSNR(tc.snr[0], tc.snr[1])
			}

			s := a.Snapshot()
			if s.LinkScore != tc.wantScore {
				t.Errorf("Expected link score %d, got %d", tc.wantScore, s.LinkScore)
			}
			if s.RSSI != tc.wantRSSI {
				t.Errorf("Expected RSSI %d, got %d", tc.wantRSSI, s.RSSI)
			}
			if s.SNR != tc.wantSNR {
				t.Errorf("Expected SNR %d, got %d", tc.wantSNR, s.SNR)
			}
		})
	}
}

func TestAggregator_NegativeSNRClampsInScoreOnly(t *testing.T) {
	a := New()
	a.RecordSNR(-10, -10)

	s := a.Snapshot()

	if s.SNR != -10 {
		t.Errorf("Expected raw SNR -10, got %d", s.SNR)
	}
	if s.LinkScore != 0 {
		t.Errorf("Expected link score 0, got %d", s.LinkScore)
	}
}

func TestAggregator_LinkScoreStaysInRange(t *testing.T) {
	extremes := []struct {
		rssi [2]uint8
		snr  [2]int8
	}{
		{[2]uint8{255, 255}, [2]int8{127, 127}},
		{[2]uint8{0, 0}, [2]int8{-128, -128}},
		{[2]uint8{255, 0}, [2]int8{-128, 127}},
	}

	for _, e := range extremes {
		a := New()
		a.RecordRSSI(e.rssi[0], e.rssi[1])
		a.RecordSNR(e.snr[0], e.snr[1])

		s := a.Snapshot()
		if s.LinkScore < 0 || s.LinkScore > 100 {
			t.Errorf("Link score %d out of [0, 100] for rssi=%v snr=%v", s.LinkScore, e.rssi, e.snr)
		}
	}
}

func TestAggregator_EmptyWindows(t *testing.T) {
	a := New()
	s := a.Snapshot()

	if s.RSSI != 0 || s.SNR != 0 || s.LinkScore != 0 {
		t.Errorf("Expected zeroed signal fields, got rssi=%d snr=%d score=%d", s.RSSI, s.SNR, s.LinkScore)
	}
	if s.RecoveredLastSecond != 300 || s.LostLastSecond != 300 {
		t.Errorf("Expected FEC sentinel (300, 300), got (%d, %d)", s.RecoveredLastSecond, s.LostLastSecond)
	}
	if s.SessionID != "aaaa" {
		t.Errorf("Expected initial session id 'aaaa', got %q", s.SessionID)
	}
}

func TestAggregator_FECAccumulation(t *testing.T) {
	a := New()
	a.RecordFEC(10, 2, 0)
	a.RecordFEC(20, 3, 0)

	s := a.Snapshot()
	if s.RecoveredLastSecond != 5 {
		t.Errorf("Expected 5 recovered, got %d", s.RecoveredLastSecond)
	}
	if s.LostLastSecond != 0 {
		t.Errorf("Expected 0 lost, got %d", s.LostLastSecond)
	}
}

func TestAggregator_SessionRotation(t *testing.T) {
	a := New(WithSessionIDGenerator(fixedSessionIDs(t, "bbbb", "cccc")))

	a.RecordFEC(10, 1, 0)
	if got := a.Snapshot().SessionID; got != "aaaa" {
		t.Errorf("Lossless sample must not rotate the session, got %q", got)
	}

	a.RecordFEC(10, 1, 3)
	if got := a.Snapshot().SessionID; got != "bbbb" {
		t.Errorf("Expected session 'bbbb' after loss, got %q", got)
	}

	// Rotation is unconditional on lost > 0, not edge-triggered.
	a.RecordFEC(10, 1, 3)
	if got := a.Snapshot().SessionID; got != "cccc" {
		t.Errorf("Expected session 'cccc' after repeated loss, got %q", got)
	}
}

func TestAggregator_DefaultSessionIDShape(t *testing.T) {
	a := New()
	a.RecordFEC(10, 0, 1)

	id := a.Snapshot().SessionID
	if len(id) != SessionIDLength {
		t.Fatalf("Expected %d-character session id, got %q", SessionIDLength, id)
	}
	for _, r := range id {
		if r < 'a' || r > 'z' {
			t.Errorf("Expected lowercase alphabetic session id, got %q", id)
		}
	}
}

func TestAggregator_ExpiredSamplesDoNotContribute(t *testing.T) {
	clock := newFakeClock()
	a := New(WithClock(clock.Now))

	a.RecordRSSI(100, 100)
	a.RecordSNR(30, 30)
	a.RecordFEC(10, 2, 0)

	// Still exactly on the window edge: samples contribute.
	clock.Advance(time.Second)
	s := a.Snapshot()
	if s.RSSI != 100 || s.SNR != 30 || s.RecoveredLastSecond != 2 {
		t.Errorf("Expected edge-of-window samples to contribute, got rssi=%d snr=%d recovered=%d",
			s.RSSI, s.SNR, s.RecoveredLastSecond)
	}

	// Past the window: all three streams fall back to their defaults.
	clock.Advance(time.Millisecond)
	s = a.Snapshot()
	if s.RSSI != 0 || s.SNR != 0 || s.LinkScore != 0 {
		t.Errorf("Expected zeroed signal fields after expiry, got rssi=%d snr=%d score=%d",
			s.RSSI, s.SNR, s.LinkScore)
	}
	if s.RecoveredLastSecond != 300 || s.LostLastSecond != 300 {
		t.Errorf("Expected FEC sentinel after expiry, got (%d, %d)", s.RecoveredLastSecond, s.LostLastSecond)
	}
}

func TestAggregator_IngestionBoundsMemory(t *testing.T) {
	clock := newFakeClock()
	a := New(WithClock(clock.Now))

	// A producer that never snapshots must still stay bounded: every record
	// prunes its own window before appending.
	for i := 0; i < 1000; i++ {
		a.RecordRSSI(50, 50)
		clock.Advance(10 * time.Millisecond)
	}

	if got := a.rssi.size(); got > 101 {
		t.Errorf("Expected at most 101 retained samples for a 1s window at 10ms cadence, got %d", got)
	}
}

func TestAggregator_ConcurrentProducersAndConsumer(t *testing.T) {
	a := New()

	const perProducer = 2000
	var wg sync.WaitGroup

	wg.Add(4)
	go func() {
		defer wg.Done()
		for i := 0; i < perProducer; i++ {
			a.RecordRSSI(uint8(i%127), uint8((i*7)%127))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < perProducer; i++ {
			a.RecordSNR(int8(i%61), int8((i*3)%61))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < perProducer; i++ {
			a.RecordFEC(10, 2, uint32(i%2))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			s := a.Snapshot()
			if s.LinkScore < 0 || s.LinkScore > 100 {
				t.Errorf("Link score %d out of [0, 100] under concurrency", s.LinkScore)
				return
			}
		}
	}()

	wg.Wait()

	s := a.Snapshot()
	if s.LostLastSecond > perProducer/2 {
		t.Errorf("Lost count %d exceeds total injected losses", s.LostLastSecond)
	}
}
