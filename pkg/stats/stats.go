// Package stats collects RIST-style per-session sender statistics (loss
// rate, RTT) from pluggable sources and maintains a rolling window per
// session for consumption by rebalancing strategies.
package stats

import (
	"context"
	"sync"
	"time"
)

// SessionStats is one RIST sender session's instantaneous statistics, keyed
// by session id (one session per bonded output).
type SessionStats struct {
	SessionID   uint32
	SentPackets uint64
	LostPackets uint64
	RTT         time.Duration
	BitrateBps  uint64
	Timestamp   time.Time
}

// LossRate returns lost/(sent+lost), or 0 if no packets have been sent.
func (s SessionStats) LossRate() float64 {
	total := s.SentPackets + s.LostPackets
	if total == 0 {
		return 0
	}
	return float64(s.LostPackets) / float64(total)
}

// StatsSource polls an underlying sender (RIST stack, Prometheus endpoint,
// or a test fake) for the current per-session snapshot.
type StatsSource interface {
	ReadStats(ctx context.Context) (map[uint32]SessionStats, error)
}

// Windowed is the rolling-average view of a session's recent statistics
// that a rebalance.Strategy reads.
type Windowed struct {
	SessionID    uint32
	AvgLossRate  float64
	AvgRTT       time.Duration
	AvgBitrateBps uint64
	LastSeen     time.Time
	SampleCount  int
}

// Window maintains a fixed-depth rolling history per session and exposes
// the averaged Windowed view.
type Window struct {
	mu      sync.Mutex
	depth   int
	history map[uint32][]SessionStats
}

// NewWindow creates a rolling window keeping up to depth samples per
// session.
func NewWindow(depth int) *Window {
	if depth < 1 {
		depth = 1
	}
	return &Window{depth: depth, history: make(map[uint32][]SessionStats)}
}

// Add records a new sample for its session, evicting the oldest sample
// once depth is exceeded.
func (w *Window) Add(s SessionStats) {
	w.mu.Lock()
	defer w.mu.Unlock()

	h := w.history[s.SessionID]
	h = append(h, s)
	if len(h) > w.depth {
		h = h[len(h)-w.depth:]
	}
	w.history[s.SessionID] = h
}

// Snapshot returns the averaged Windowed view for every session currently
// tracked.
func (w *Window) Snapshot() map[uint32]Windowed {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make(map[uint32]Windowed, len(w.history))
	for id, h := range w.history {
		if len(h) == 0 {
			continue
		}
		var lossSum float64
		var rttSum time.Duration
		var bitrateSum uint64
		for _, s := range h {
			lossSum += s.LossRate()
			rttSum += s.RTT
			bitrateSum += s.BitrateBps
		}
		out[id] = Windowed{
			SessionID:     id,
			AvgLossRate:   lossSum / float64(len(h)),
			AvgRTT:        rttSum / time.Duration(len(h)),
			AvgBitrateBps: bitrateSum / uint64(len(h)),
			LastSeen:      h[len(h)-1].Timestamp,
			SampleCount:   len(h),
		}
	}
	return out
}

// Poller periodically reads a StatsSource into a Window until the context
// is cancelled, grounded on the same ticker-driven collection loop the
// metrics collector uses.
type Poller struct {
	Source   StatsSource
	Window   *Window
	Interval time.Duration
}

// Run polls Source every Interval, feeding samples into Window.
func (p *Poller) Run(ctx context.Context) error {
	if p.Interval <= 0 {
		p.Interval = 200 * time.Millisecond
	}
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			samples, err := p.Source.ReadStats(ctx)
			if err != nil {
				continue
			}
			for _, s := range samples {
				p.Window.Add(s)
			}
		}
	}
}
