// Package dispatcher multiplexes one media stream across N bonded outputs
// using Deficit Weighted Round Robin scheduling, with pad-style sticky
// event proxying modeled on a GStreamer element's src/sink pad contract
// even though no GStreamer binding exists in this module: stream-start,
// caps, segment and EOS events must reach every output exactly once, and
// a flush must reset every output's sticky state.
package dispatcher

import (
	"fmt"
	"time"
)

// EventKind identifies a sticky or transient control event flowing through
// a pad, mirroring GStreamer's stream-start/caps/segment/eos/flush
// vocabulary.
type EventKind int

const (
	EventStreamStart EventKind = iota
	EventCaps
	EventSegment
	EventEOS
	EventFlushStart
	EventFlushStop
)

func (k EventKind) String() string {
	switch k {
	case EventStreamStart:
		return "stream-start"
	case EventCaps:
		return "caps"
	case EventSegment:
		return "segment"
	case EventEOS:
		return "eos"
	case EventFlushStart:
		return "flush-start"
	case EventFlushStop:
		return "flush-stop"
	default:
		return "unknown"
	}
}

func (k EventKind) sticky() bool {
	switch k {
	case EventStreamStart, EventCaps, EventSegment:
		return true
	default:
		return false
	}
}

// Event is one control event travelling alongside the buffer stream.
type Event struct {
	Kind    EventKind
	Payload any
}

// Buffer is one RTP packet (or other media unit) flowing through the
// dispatcher, carrying enough metadata to drive DWRR accounting and
// keyframe duplication.
type Buffer struct {
	Bytes      []byte
	IsKeyframe bool
	PTS        int64
}

// Sink receives buffers and events for one bonded output. A real
// implementation forwards to a RIST sender session; tests use a fake.
type Sink interface {
	PushBuffer(buf Buffer) error
	PushEvent(ev Event) error
}

// OutputState is a bonded output's position in its lifecycle: Warming while
// health_warmup holds its weight at its configured initial value (still
// DWRR-eligible), Active once warmup elapses, Draining from a remove
// request until the sink closes or EOS has propagated through it.
type OutputState int

const (
	StateWarming OutputState = iota
	StateActive
	StateDraining
)

func (s OutputState) String() string {
	switch s {
	case StateWarming:
		return "warming"
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// OutputPad wraps a Sink with the sticky-event bookkeeping a GStreamer src
// pad performs: sticky events received before the pad existed (or since
// the last flush) must be replayed once before the next buffer. It also
// tracks the output's Warming/Active/Draining lifecycle and downstream
// health, both of which gate DWRR eligibility.
type OutputPad struct {
	SessionID uint32
	Sink      Sink

	sticky map[EventKind]Event
	order  []EventKind

	state          OutputState
	warmupDeadline time.Time
	healthy        bool
	initialWeight  float64
}

// NewOutputPad wraps sink for sessionID with empty sticky state. A positive
// warmup starts the pad in Warming, promoted to Active once warmup elapses;
// a zero or negative warmup starts it Active immediately.
func NewOutputPad(sessionID uint32, sink Sink, warmup time.Duration) *OutputPad {
	p := &OutputPad{
		SessionID: sessionID,
		Sink:      sink,
		sticky:    make(map[EventKind]Event),
		state:     StateActive,
		healthy:   true,
	}
	if warmup > 0 {
		p.state = StateWarming
		p.warmupDeadline = time.Now().Add(warmup)
	}
	return p
}

// tickState promotes a Warming pad to Active once its health warmup period
// has elapsed.
func (p *OutputPad) tickState(now time.Time) {
	if p.state == StateWarming && !now.Before(p.warmupDeadline) {
		p.state = StateActive
	}
}

// State returns the pad's current lifecycle state.
func (p *OutputPad) State() OutputState { return p.state }

// BeginDraining moves the pad into Draining. Idempotent.
func (p *OutputPad) BeginDraining() {
	p.state = StateDraining
}

// MarkUnhealthy records a downstream flow-control failure. An unhealthy
// output is excluded from DWRR scans, freezing its deficit, until it is
// removed.
func (p *OutputPad) MarkUnhealthy() { p.healthy = false }

// Healthy reports whether the pad's sink is currently accepting buffers.
func (p *OutputPad) Healthy() bool { return p.healthy }

// Schedulable reports whether the DWRR scan may consider this pad: it must
// be Warming or Active (never Draining) and currently healthy.
func (p *OutputPad) Schedulable() bool {
	return p.healthy && (p.state == StateWarming || p.state == StateActive)
}

// ReplaySticky pushes every sticky event currently cached, in the order
// they were originally received, without mutating the cache.
func (p *OutputPad) ReplaySticky() error {
	for _, k := range p.order {
		if err := p.Sink.PushEvent(p.sticky[k]); err != nil {
			return fmt.Errorf("pad %d: replay sticky %s: %w", p.SessionID, k, err)
		}
	}
	return nil
}

// HandleEvent pushes ev to the sink, caching it if sticky, and clearing
// all sticky state on a flush-start.
func (p *OutputPad) HandleEvent(ev Event) error {
	if ev.Kind == EventFlushStart {
		p.sticky = make(map[EventKind]Event)
		p.order = p.order[:0]
	}
	if ev.Kind.sticky() {
		if _, existed := p.sticky[ev.Kind]; !existed {
			p.order = append(p.order, ev.Kind)
		}
		p.sticky[ev.Kind] = ev
	}
	return p.Sink.PushEvent(ev)
}

// PushBuffer forwards buf directly; callers must have called ReplaySticky
// at least once since the pad was created or last flushed.
func (p *OutputPad) PushBuffer(buf Buffer) error {
	return p.Sink.PushBuffer(buf)
}
