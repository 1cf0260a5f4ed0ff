package dispatcher

import (
	"testing"
	"time"
)

func TestHandleEventCachesStickyEventsInOrder(t *testing.T) {
	sink := &fakeSink{}
	pad := NewOutputPad(1, sink, 0)

	pad.HandleEvent(Event{Kind: EventStreamStart})
	pad.HandleEvent(Event{Kind: EventCaps})
	pad.HandleEvent(Event{Kind: EventSegment})

	if len(pad.order) != 3 {
		t.Fatalf("expected 3 sticky events cached, got %d", len(pad.order))
	}
	if pad.order[0] != EventStreamStart || pad.order[2] != EventSegment {
		t.Fatalf("expected sticky cache to preserve arrival order, got %v", pad.order)
	}
}

func TestHandleEventDoesNotCacheTransientEvents(t *testing.T) {
	pad := NewOutputPad(1, &fakeSink{}, 0)
	pad.HandleEvent(Event{Kind: EventEOS})
	if len(pad.order) != 0 {
		t.Fatalf("expected EOS not to be cached as sticky, got %v", pad.order)
	}
}

func TestFlushStartClearsStickyState(t *testing.T) {
	pad := NewOutputPad(1, &fakeSink{}, 0)
	pad.HandleEvent(Event{Kind: EventStreamStart})
	pad.HandleEvent(Event{Kind: EventCaps})
	pad.HandleEvent(Event{Kind: EventFlushStart})

	if len(pad.order) != 0 || len(pad.sticky) != 0 {
		t.Fatalf("expected flush-start to clear all sticky state, got order=%v sticky=%v", pad.order, pad.sticky)
	}
}

func TestReplayStickyPushesCachedEventsWithoutDuplicatingCache(t *testing.T) {
	sink := &fakeSink{}
	pad := NewOutputPad(1, sink, 0)
	pad.HandleEvent(Event{Kind: EventStreamStart})

	if err := pad.ReplaySticky(); err != nil {
		t.Fatalf("ReplaySticky: %v", err)
	}

	// one push from HandleEvent, one from ReplaySticky
	if len(sink.events) != 2 {
		t.Fatalf("expected 2 pushed events (original + replay), got %d", len(sink.events))
	}
	if len(pad.order) != 1 {
		t.Fatalf("expected ReplaySticky not to grow the sticky cache, got %v", pad.order)
	}
}

func TestHandleEventOverwritesExistingStickyWithoutDuplicateOrderEntry(t *testing.T) {
	pad := NewOutputPad(1, &fakeSink{}, 0)
	pad.HandleEvent(Event{Kind: EventCaps, Payload: "v1"})
	pad.HandleEvent(Event{Kind: EventCaps, Payload: "v2"})

	if len(pad.order) != 1 {
		t.Fatalf("expected a second caps event to overwrite, not append, got order=%v", pad.order)
	}
	if pad.sticky[EventCaps].Payload != "v2" {
		t.Fatalf("expected cached caps payload to be updated to v2, got %v", pad.sticky[EventCaps].Payload)
	}
}

func TestEventKindStringer(t *testing.T) {
	cases := map[EventKind]string{
		EventStreamStart: "stream-start",
		EventCaps:        "caps",
		EventSegment:     "segment",
		EventEOS:         "eos",
		EventFlushStart:  "flush-start",
		EventFlushStop:   "flush-stop",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("EventKind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}

func TestNewOutputPadWithZeroWarmupStartsActive(t *testing.T) {
	pad := NewOutputPad(1, &fakeSink{}, 0)
	if pad.State() != StateActive {
		t.Fatalf("expected zero warmup to start Active, got %s", pad.State())
	}
	if !pad.Schedulable() {
		t.Fatal("expected an Active, healthy pad to be schedulable")
	}
}

func TestNewOutputPadWithWarmupStartsWarmingThenPromotes(t *testing.T) {
	pad := NewOutputPad(1, &fakeSink{}, 10*time.Millisecond)
	if pad.State() != StateWarming {
		t.Fatalf("expected a positive warmup to start Warming, got %s", pad.State())
	}
	if !pad.Schedulable() {
		t.Fatal("expected Warming to still be schedulable per the DWRR eligibility rule")
	}

	pad.tickState(time.Now())
	if pad.State() != StateWarming {
		t.Fatal("expected tickState before the deadline to leave the pad Warming")
	}

	pad.tickState(pad.warmupDeadline.Add(time.Millisecond))
	if pad.State() != StateActive {
		t.Fatalf("expected tickState past the deadline to promote to Active, got %s", pad.State())
	}
}

func TestBeginDrainingIsIdempotentAndNotSchedulable(t *testing.T) {
	pad := NewOutputPad(1, &fakeSink{}, 0)
	pad.BeginDraining()
	pad.BeginDraining()

	if pad.State() != StateDraining {
		t.Fatalf("expected state Draining, got %s", pad.State())
	}
	if pad.Schedulable() {
		t.Fatal("expected a Draining pad to never be schedulable")
	}
}

func TestMarkUnhealthyMakesAnActivePadUnschedulable(t *testing.T) {
	pad := NewOutputPad(1, &fakeSink{}, 0)
	if !pad.Healthy() {
		t.Fatal("expected a new pad to start healthy")
	}

	pad.MarkUnhealthy()
	if pad.Healthy() {
		t.Fatal("expected MarkUnhealthy to clear Healthy")
	}
	if pad.Schedulable() {
		t.Fatal("expected an unhealthy pad to be unschedulable even while Active")
	}
}

func TestOutputStateStringer(t *testing.T) {
	cases := map[OutputState]string{
		StateWarming:  "warming",
		StateActive:   "active",
		StateDraining: "draining",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("OutputState(%d).String() = %q, want %q", state, got, want)
		}
	}
}
