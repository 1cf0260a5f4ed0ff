package bitrate

import (
	"testing"
	"time"

	"github.com/RephlexZero/rist-bonding-sub001/pkg/stats"
)

type fakeEncoder struct {
	applied []uint32
	err     error
}

func (f *fakeEncoder) SetBitrateBps(bps uint32) error {
	if f.err != nil {
		return f.err
	}
	f.applied = append(f.applied, bps)
	return nil
}

func TestTickClampsToMaxBitrate(t *testing.T) {
	window := stats.NewWindow(5)
	window.Add(stats.SessionStats{SessionID: 1, SentPackets: 100, LostPackets: 0, Timestamp: time.Now()})

	enc := &fakeEncoder{}
	c := New(Config{MinBitrateBps: 100, MaxBitrateBps: 1000, HeadroomFactor: 3.0}, window, enc)
	c.tick()

	if len(enc.applied) != 1 {
		t.Fatalf("expected one bitrate update, got %d", len(enc.applied))
	}
	if enc.applied[0] != 1000 {
		t.Fatalf("expected bitrate clamped to max 1000, got %d", enc.applied[0])
	}
}

func TestTickClampsToMinBitrate(t *testing.T) {
	window := stats.NewWindow(5)
	window.Add(stats.SessionStats{SessionID: 1, SentPackets: 1, LostPackets: 9, Timestamp: time.Now()}) // 90% loss

	enc := &fakeEncoder{}
	c := New(Config{MinBitrateBps: 500, MaxBitrateBps: 1000, HeadroomFactor: 0.85}, window, enc)
	c.tick()

	if len(enc.applied) != 1 || enc.applied[0] != 500 {
		t.Fatalf("expected bitrate floored to MinBitrateBps=500, got %v", enc.applied)
	}
}

func TestTickSkipsWhenNoSessions(t *testing.T) {
	window := stats.NewWindow(5)
	enc := &fakeEncoder{}
	c := New(Config{MinBitrateBps: 100, MaxBitrateBps: 1000}, window, enc)
	c.tick()

	if len(enc.applied) != 0 {
		t.Fatalf("expected no bitrate update with an empty window, got %v", enc.applied)
	}
}

func TestTickSkipsRedundantUpdates(t *testing.T) {
	window := stats.NewWindow(5)
	window.Add(stats.SessionStats{SessionID: 1, SentPackets: 100, LostPackets: 0, Timestamp: time.Now()})

	enc := &fakeEncoder{}
	c := New(Config{MinBitrateBps: 100, MaxBitrateBps: 1000, HeadroomFactor: 1.0}, window, enc)
	c.tick()
	c.tick()

	if len(enc.applied) != 1 {
		t.Fatalf("expected the second identical tick to be skipped, got %d updates", len(enc.applied))
	}
}

func TestTickSurvivesEncoderError(t *testing.T) {
	window := stats.NewWindow(5)
	window.Add(stats.SessionStats{SessionID: 1, SentPackets: 100, LostPackets: 0, Timestamp: time.Now()})

	enc := &fakeEncoder{err: errBoom}
	c := New(Config{MinBitrateBps: 100, MaxBitrateBps: 1000}, window, enc)
	c.tick() // must not panic
	if c.last != 0 {
		t.Fatalf("expected last to remain unset after an encoder error, got %d", c.last)
	}
}

var errBoom = testError("boom")

type testError string

func (e testError) Error() string { return string(e) }
