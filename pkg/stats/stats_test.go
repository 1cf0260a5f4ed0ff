package stats

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSessionStatsLossRate(t *testing.T) {
	s := SessionStats{SentPackets: 90, LostPackets: 10}
	if got := s.LossRate(); got != 0.1 {
		t.Fatalf("expected loss rate 0.1, got %f", got)
	}
}

func TestSessionStatsLossRateNoPackets(t *testing.T) {
	s := SessionStats{}
	if got := s.LossRate(); got != 0 {
		t.Fatalf("expected loss rate 0 for no packets, got %f", got)
	}
}

func TestWindowAveragesSamples(t *testing.T) {
	w := NewWindow(3)
	now := time.Now()
	w.Add(SessionStats{SessionID: 1, SentPackets: 100, LostPackets: 0, RTT: 10 * time.Millisecond, Timestamp: now})
	w.Add(SessionStats{SessionID: 1, SentPackets: 100, LostPackets: 20, RTT: 30 * time.Millisecond, Timestamp: now.Add(time.Second)})

	snap := w.Snapshot()[1]
	if snap.SampleCount != 2 {
		t.Fatalf("expected 2 samples, got %d", snap.SampleCount)
	}
	wantLoss := (0.0 + 20.0/120.0) / 2
	if diff := snap.AvgLossRate - wantLoss; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected avg loss %f, got %f", wantLoss, snap.AvgLossRate)
	}
	if snap.AvgRTT != 20*time.Millisecond {
		t.Fatalf("expected avg RTT 20ms, got %s", snap.AvgRTT)
	}
}

func TestWindowEvictsOldestBeyondDepth(t *testing.T) {
	w := NewWindow(2)
	now := time.Now()
	w.Add(SessionStats{SessionID: 1, SentPackets: 100, LostPackets: 100, Timestamp: now}) // loss 1.0, should be evicted
	w.Add(SessionStats{SessionID: 1, SentPackets: 100, LostPackets: 0, Timestamp: now.Add(time.Second)})
	w.Add(SessionStats{SessionID: 1, SentPackets: 100, LostPackets: 0, Timestamp: now.Add(2 * time.Second)})

	snap := w.Snapshot()[1]
	if snap.AvgLossRate != 0 {
		t.Fatalf("expected the lossy first sample to be evicted, got avg loss %f", snap.AvgLossRate)
	}
}

type fakeSource struct {
	samples map[uint32]SessionStats
	err     error
	calls   int
}

func (f *fakeSource) ReadStats(ctx context.Context) (map[uint32]SessionStats, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.samples, nil
}

func TestPollerFeedsWindowUntilCancelled(t *testing.T) {
	src := &fakeSource{samples: map[uint32]SessionStats{
		1: {SessionID: 1, SentPackets: 10, Timestamp: time.Now()},
	}}
	window := NewWindow(5)
	poller := &Poller{Source: src, Window: window, Interval: 5 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := poller.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline-exceeded error, got %v", err)
	}
	if src.calls == 0 {
		t.Fatal("expected poller to call ReadStats at least once")
	}
	if _, ok := window.Snapshot()[1]; !ok {
		t.Fatal("expected window to contain session 1's samples")
	}
}

func TestPollerIgnoresSourceErrors(t *testing.T) {
	src := &fakeSource{err: errors.New("transient failure")}
	window := NewWindow(5)
	poller := &Poller{Source: src, Window: window, Interval: 5 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_ = poller.Run(ctx)
	if src.calls == 0 {
		t.Fatal("expected poller to keep calling ReadStats despite errors")
	}
}
