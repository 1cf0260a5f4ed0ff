package dispatcher

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/RephlexZero/rist-bonding-sub001/pkg/rebalance"
	"github.com/RephlexZero/rist-bonding-sub001/pkg/stats"
)

// Config bundles the tunables a dispatcher needs beyond its strategy:
// rebalance cadence, the keyframe duplication token budget, and the health
// warmup held by newly added outputs.
type Config struct {
	RebalanceInterval time.Duration
	SwitchThreshold   float64
	MinHold           time.Duration
	// DupBudgetPPS caps how many duplicated keyframe packets per second
	// may be sent across all secondary outputs; 0 disables duplication.
	DupBudgetPPS int
	// HealthWarmup is how long a newly added output stays in Warming: its
	// weight is held at its configured initial value regardless of stats,
	// and it stays DWRR-eligible throughout warmup.
	HealthWarmup time.Duration
}

// Dispatcher multiplexes one buffer stream across a dynamic set of
// OutputPads using DWRR scheduling, with weights refreshed periodically by
// a rebalance.Strategy fed from a stats.Window.
type Dispatcher struct {
	cfg      Config
	strategy *rebalance.Hysteresis
	window   *stats.Window

	mu          sync.Mutex
	pads        map[uint32]*OutputPad
	sched       *dwrrScheduler
	flushActive bool

	weights atomic.Pointer[rebalance.WeightVector]

	dupLimiter *rate.Limiter
}

// New builds a Dispatcher. strategy is wrapped in a Hysteresis gate using
// cfg's SwitchThreshold/MinHold.
func New(cfg Config, strategy rebalance.Strategy, window *stats.Window) *Dispatcher {
	d := &Dispatcher{
		cfg:      cfg,
		strategy: rebalance.NewHysteresis(strategy, cfg.SwitchThreshold, cfg.MinHold),
		window:   window,
		pads:     make(map[uint32]*OutputPad),
		sched:    newDWRRScheduler(),
	}
	if cfg.DupBudgetPPS > 0 {
		d.dupLimiter = rate.NewLimiter(rate.Limit(cfg.DupBudgetPPS), cfg.DupBudgetPPS)
	}
	empty := rebalance.WeightVector{}
	d.weights.Store(&empty)
	return d
}

// AddOutput hot-adds a bonded output. Any sticky events already seen by
// the dispatcher are replayed to the new pad before it receives buffers,
// so a late-joining output is never missing stream-start/caps/segment. The
// new pad starts Warming (or Active immediately if HealthWarmup is zero)
// and holds a diluted share of the weight vector as its configured initial
// value until warmup elapses.
func (d *Dispatcher) AddOutput(sessionID uint32, sink Sink) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.pads[sessionID]; exists {
		return fmt.Errorf("dispatcher: output %d already exists", sessionID)
	}
	pad := NewOutputPad(sessionID, sink, d.cfg.HealthWarmup)
	for _, other := range d.pads {
		for _, k := range other.order {
			pad.sticky[k] = other.sticky[k]
			pad.order = append(pad.order, k)
		}
		break
	}
	if err := pad.ReplaySticky(); err != nil {
		return err
	}
	d.pads[sessionID] = pad

	w := d.currentWeights()
	pad.initialWeight = 1.0 / float64(len(w)+1)
	w[sessionID] = pad.initialWeight
	d.applyWeights(rebalance.Normalize(w))

	log.Info().Uint32("session", sessionID).Str("state", pad.State().String()).Msg("dispatcher: output added")
	return nil
}

// RemoveOutput hot-removes a bonded output. An output still Warming (never
// promoted to Active) is destroyed immediately without ever emitting a
// buffer. Otherwise it moves to Draining: it stops receiving new buffers
// and is fully removed once EOS propagates through it via HandleEvent.
// Idempotent.
func (d *Dispatcher) RemoveOutput(sessionID uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	pad, exists := d.pads[sessionID]
	if !exists {
		return fmt.Errorf("dispatcher: output %d does not exist", sessionID)
	}
	if pad.State() == StateDraining {
		return nil
	}

	wasWarming := pad.State() == StateWarming
	pad.BeginDraining()
	d.sched.removeOutput(sessionID)

	w := d.currentWeights()
	delete(w, sessionID)
	d.applyWeights(rebalance.Normalize(w))

	if wasWarming {
		delete(d.pads, sessionID)
		log.Info().Uint32("session", sessionID).Msg("dispatcher: output removed before warmup elapsed, destroyed without emitting")
		return nil
	}

	log.Info().Uint32("session", sessionID).Msg("dispatcher: output draining")
	return nil
}

func (d *Dispatcher) currentWeights() rebalance.WeightVector {
	cur := *d.weights.Load()
	out := make(rebalance.WeightVector, len(cur))
	for k, v := range cur {
		out[k] = v
	}
	return out
}

func (d *Dispatcher) applyWeights(w rebalance.WeightVector) {
	d.weights.Store(&w)
	d.sched.setWeights(w)
}

// RunRebalanceLoop recomputes weights from the stats window every
// RebalanceInterval until ctx is cancelled.
func (d *Dispatcher) RunRebalanceLoop(ctx context.Context) error {
	interval := d.cfg.RebalanceInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.tickRebalance()
		}
	}
}

// tickRebalance recomputes the weight vector via the hysteresis-gated
// strategy, then pins every still-Warming output back to its configured
// initial weight regardless of what the strategy proposed for it.
func (d *Dispatcher) tickRebalance() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	for _, p := range d.pads {
		p.tickState(now)
	}

	window := d.window.Snapshot()
	prev := d.currentWeights()
	proposed := d.strategy.Inner.Rebalance(prev, window)
	applied := rebalance.Normalize(d.strategy.Apply(now, proposed, prev))
	for id, p := range d.pads {
		if p.State() == StateWarming {
			applied[id] = p.initialWeight
		}
	}
	d.applyWeights(applied)
}

// Dispatch routes buf to exactly one output chosen by DWRR among Warming
// and Active, healthy outputs. While a flush is active (between
// flush-start and flush-stop) buffers are silently dropped. For keyframes,
// if the selection differs from the previously selected output and the
// duplication token budget allows, buf is additionally sent to that
// previous output.
func (d *Dispatcher) Dispatch(buf Buffer) error {
	d.mu.Lock()
	if d.flushActive {
		d.mu.Unlock()
		return nil
	}

	prevSelected, havePrev := d.sched.lastSelectedID, d.sched.haveSelected
	eligible := func(id uint32) bool {
		p, ok := d.pads[id]
		return ok && p.Schedulable()
	}
	sessionID, ok := d.sched.next(len(buf.Bytes), eligible)

	var pad, prevPad *OutputPad
	if ok {
		pad = d.pads[sessionID]
	}
	duplicate := buf.IsKeyframe && ok && havePrev && prevSelected != sessionID
	if duplicate {
		prevPad = d.pads[prevSelected]
	}
	d.mu.Unlock()

	if pad == nil {
		return fmt.Errorf("dispatcher: no live outputs")
	}
	if err := pad.PushBuffer(buf); err != nil {
		return d.handlePushFailure(sessionID, pad, err)
	}

	if duplicate && prevPad != nil {
		d.duplicateKeyframe(buf, prevPad)
	}
	return nil
}

// handlePushFailure marks pad unhealthy on a downstream flow-control error,
// freezing its DWRR deficit and excluding it from future scans. If every
// Warming/Active output has become unhealthy, the error is reported
// upward; otherwise it is logged and swallowed since other outputs can
// still carry the stream.
func (d *Dispatcher) handlePushFailure(sessionID uint32, pad *OutputPad, err error) error {
	d.mu.Lock()
	pad.MarkUnhealthy()
	allUnhealthy := true
	for _, p := range d.pads {
		if p.Schedulable() {
			allUnhealthy = false
			break
		}
	}
	d.mu.Unlock()

	log.Warn().Err(err).Uint32("session", sessionID).Msg("dispatcher: downstream flow-control error, output marked unhealthy")

	if allUnhealthy {
		return fmt.Errorf("dispatcher: all outputs unhealthy, last error from session %d: %w", sessionID, err)
	}
	return nil
}

// HandleEvent fans ev out to every live output, in ascending session-id
// order. EOS and flush events are proxied to all outputs, including ones
// Draining, so downstream receivers close cleanly together; once EOS has
// propagated, any Draining outputs are fully removed.
func (d *Dispatcher) HandleEvent(ev Event) error {
	d.mu.Lock()
	if ev.Kind == EventFlushStart {
		d.flushActive = true
	}
	pads := make([]*OutputPad, 0, len(d.pads))
	for _, p := range d.pads {
		pads = append(pads, p)
	}
	sort.Slice(pads, func(i, j int) bool { return pads[i].SessionID < pads[j].SessionID })
	d.mu.Unlock()

	var firstErr error
	for _, p := range pads {
		if err := p.HandleEvent(ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	d.mu.Lock()
	if ev.Kind == EventFlushStop {
		d.flushActive = false
	}
	if ev.Kind == EventEOS {
		for id, p := range d.pads {
			if p.State() == StateDraining {
				delete(d.pads, id)
			}
		}
	}
	d.mu.Unlock()

	return firstErr
}

// duplicateKeyframe sends buf to prev, the previously selected output,
// rationed by a token-bucket limiter so duplicate sends cannot exceed
// DupBudgetPPS per second; if the budget is exhausted the duplicate is
// skipped.
func (d *Dispatcher) duplicateKeyframe(buf Buffer, prev *OutputPad) {
	if d.dupLimiter == nil || !d.dupLimiter.Allow() {
		return
	}
	if err := prev.PushBuffer(buf); err != nil {
		log.Warn().Err(err).Uint32("session", prev.SessionID).Msg("dispatcher: keyframe duplication failed")
	}
}

// SessionStates returns each live output's current lifecycle state, keyed
// by session id.
func (d *Dispatcher) SessionStates() map[uint32]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[uint32]string, len(d.pads))
	for id, p := range d.pads {
		out[id] = p.State().String()
	}
	return out
}

// LastSelected returns the session id the DWRR scheduler most recently
// selected, and whether any selection has happened yet.
func (d *Dispatcher) LastSelected() (uint32, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sched.lastSelectedID, d.sched.haveSelected
}

// SwitchCount returns how many times the rebalance loop has actually
// applied a newly proposed weight vector, as opposed to holding the
// previous one under hysteresis.
func (d *Dispatcher) SwitchCount() int {
	return d.strategy.SwitchCount()
}

// DupTokensRemaining reports the keyframe duplication token bucket's
// current level, or 0 if duplication is disabled.
func (d *Dispatcher) DupTokensRemaining() float64 {
	if d.dupLimiter == nil {
		return 0
	}
	return d.dupLimiter.Tokens()
}

// WeightsAndDeficits returns the current weight vector and each output's
// accumulated DWRR deficit, for export via the run snapshot.
func (d *Dispatcher) WeightsAndDeficits() (map[uint32]float64, map[uint32]int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.currentWeights(), d.sched.deficits()
}
