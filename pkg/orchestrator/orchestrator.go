// Package orchestrator composes the network fabric (namespaces, veth
// pairs, qdisc impairments, the schedule engine) and the dispatcher into
// one runnable bonded-link test, driven through an explicit state machine
// modeled on a chaos-test lifecycle: parse, prepare, warmup, run, cooldown,
// teardown, report.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/RephlexZero/rist-bonding-sub001/pkg/bitrate"
	"github.com/RephlexZero/rist-bonding-sub001/pkg/config"
	"github.com/RephlexZero/rist-bonding-sub001/pkg/dispatcher"
	"github.com/RephlexZero/rist-bonding-sub001/pkg/netns"
	"github.com/RephlexZero/rist-bonding-sub001/pkg/qdisc"
	"github.com/RephlexZero/rist-bonding-sub001/pkg/rebalance"
	"github.com/RephlexZero/rist-bonding-sub001/pkg/scenario"
	"github.com/RephlexZero/rist-bonding-sub001/pkg/scheduleengine"
	"github.com/RephlexZero/rist-bonding-sub001/pkg/snapshot"
	"github.com/RephlexZero/rist-bonding-sub001/pkg/stats"
	"github.com/RephlexZero/rist-bonding-sub001/pkg/veth"
)

// RunState is the current phase of a scenario run.
type RunState int

const (
	StateParse RunState = iota
	StatePrepare
	StateWarmup
	StateRun
	StateCooldown
	StateTeardown
	StateReport
	StateCompleted
	StateFailed
)

func (s RunState) String() string {
	switch s {
	case StateParse:
		return "PARSE"
	case StatePrepare:
		return "PREPARE"
	case StateWarmup:
		return "WARMUP"
	case StateRun:
		return "RUN"
	case StateCooldown:
		return "COOLDOWN"
	case StateTeardown:
		return "TEARDOWN"
	case StateReport:
		return "REPORT"
	case StateCompleted:
		return "COMPLETED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// auditEntry records one teardown/cleanup action for the final report.
type auditEntry struct {
	Timestamp time.Time
	Action    string
	Target    string
	Err       error
}

// Orchestrator runs one scenario.TestScenario end to end.
type Orchestrator struct {
	cfg        *config.Config
	nsManager  netns.Manager
	qdiscNew   func() qdisc.Controller
	engine     *scheduleengine.Engine
	strategy   rebalance.Strategy
	encoder    bitrate.Encoder

	runID         string
	currentState  RunState
	startTime     time.Time
	stopRequested bool
	auditLog      []auditEntry

	links []scheduleengine.LinkRuntime
}

// Deps bundles the collaborators an Orchestrator is built with, so tests
// can substitute fakes for the netns/qdisc layer.
type Deps struct {
	NSManager     netns.Manager
	NewController func() qdisc.Controller
	Strategy      rebalance.Strategy
	Encoder       bitrate.Encoder
}

// New builds an Orchestrator from configuration and collaborators.
func New(cfg *config.Config, deps Deps) *Orchestrator {
	if deps.NewController == nil {
		deps.NewController = qdisc.New
	}
	return &Orchestrator{
		cfg:       cfg,
		nsManager: deps.NSManager,
		qdiscNew:  deps.NewController,
		engine:    scheduleengine.New(deps.NSManager),
		strategy:  deps.Strategy,
		encoder:   deps.Encoder,
	}
}

// RequestStop asks a running Execute call to wind down at the next state
// boundary.
func (o *Orchestrator) RequestStop() { o.stopRequested = true }

// Execute runs ts to completion (or until RequestStop/ctx cancellation),
// returning the final snapshot.
func (o *Orchestrator) Execute(ctx context.Context, ts *scenario.TestScenario) (*snapshot.RunSnapshot, error) {
	o.startTime = time.Now()
	o.runID = generateRunID(ts.Name, o.startTime)

	result := &snapshot.RunSnapshot{
		RunID:        o.runID,
		ScenarioName: ts.Name,
		StartTime:    o.startTime,
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("orchestrator: panic during execution, running teardown")
			o.executeTeardown(ctx, ts)
			result.Status = snapshot.StatusFailed
			result.Message = fmt.Sprintf("panic: %v", r)
		}
	}()

	if err := o.preFlightCleanup(ctx, ts); err != nil {
		log.Warn().Err(err).Msg("orchestrator: pre-flight cleanup warning")
	}

	o.transition(StatePrepare)
	if err := o.executePrepare(ctx, ts); err != nil {
		return o.fail(result, err)
	}
	if o.stopRequested {
		return o.fail(result, fmt.Errorf("stopped before warmup"))
	}

	o.transition(StateWarmup)
	if err := o.interruptibleSleep(ctx, o.cfg.WarmupDuration()); err != nil {
		return o.fail(result, err)
	}
	if o.stopRequested {
		return o.fail(result, fmt.Errorf("stopped before run"))
	}

	o.transition(StateRun)
	runRes, err := o.executeRun(ctx, ts)
	if err != nil {
		return o.fail(result, err)
	}
	result.WeightHistory = runRes.weights
	result.Sessions = runRes.sessions
	result.Dispatcher = runRes.dispatcher

	o.transition(StateCooldown)
	if err := o.interruptibleSleep(ctx, o.cfg.CooldownDuration()); err != nil {
		return o.fail(result, err)
	}

	o.transition(StateTeardown)
	links := o.executeTeardown(ctx, ts)
	result.Links = links

	o.transition(StateReport)
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime).String()

	o.transition(StateCompleted)
	result.Status = snapshot.StatusCompleted
	result.Message = "scenario completed successfully"
	for _, a := range o.auditLog {
		if a.Err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s %s: %v", a.Action, a.Target, a.Err))
		}
	}
	return result, nil
}

func (o *Orchestrator) transition(newState RunState) {
	log.Info().Str("from", o.currentState.String()).Str("to", newState.String()).Msg("orchestrator: state transition")
	o.currentState = newState
}

func (o *Orchestrator) fail(result *snapshot.RunSnapshot, err error) (*snapshot.RunSnapshot, error) {
	o.transition(StateFailed)
	result.Status = snapshot.StatusFailed
	result.Message = err.Error()
	result.EndTime = time.Now()
	return result, err
}

// preFlightCleanup sweeps stale namespaces left behind by a crashed prior
// run of the same scenario before creating fresh ones.
func (o *Orchestrator) preFlightCleanup(ctx context.Context, ts *scenario.TestScenario) error {
	prefix := o.cfg.NamespacePrefix() + "-" + ts.Name
	removed, err := o.nsManager.SweepStale(ctx, prefix)
	if removed > 0 {
		log.Info().Int("removed", removed).Msg("orchestrator: swept stale namespaces from a prior run")
	}
	return err
}

// executePrepare creates one namespace pair per link, wires veth, and
// records each link's runtime with fresh qdisc controllers. No qdisc is
// installed here; the schedule engine installs each direction's first spec.
func (o *Orchestrator) executePrepare(ctx context.Context, ts *scenario.TestScenario) error {
	o.links = o.links[:0]
	for i, l := range ts.Links {
		txName := netns.ScenarioNamespace(o.cfg.NamespacePrefix(), o.runID, i) + "-tx"
		rxName := netns.ScenarioNamespace(o.cfg.NamespacePrefix(), o.runID, i) + "-rx"

		txNS, err := o.nsManager.Create(ctx, txName)
		if err != nil {
			return fmt.Errorf("prepare link %s: create tx ns: %w", l.Name, err)
		}
		rxNS, err := o.nsManager.Create(ctx, rxName)
		if err != nil {
			return fmt.Errorf("prepare link %s: create rx ns: %w", l.Name, err)
		}

		rxHandle, err := rxNS.NSHandle()
		if err != nil {
			return fmt.Errorf("prepare link %s: open rx namespace: %w", l.Name, err)
		}
		err = o.nsManager.ExecIn(ctx, txNS, func() error {
			defer rxHandle.Close()
			_, err := veth.Create(l.TxIface, l.RxIface+"-peer", rxHandle)
			return err
		})
		if err != nil {
			return fmt.Errorf("prepare link %s: wire veth pair: %w", l.Name, err)
		}

		o.links = append(o.links, scheduleengine.LinkRuntime{
			Spec:   l,
			TxNS:   txNS,
			RxNS:   rxNS,
			TxCtrl: o.qdiscNew(),
			RxCtrl: o.qdiscNew(),
		})
	}
	return nil
}

// runResult bundles everything executeRun gathers for the final snapshot:
// a per-session view of the dispatcher's final stats and scheduling state,
// and the dispatcher's own lifecycle snapshot. executeRun does not record
// weight samples, so weights (and the snapshot's WeightHistory) stays empty.
type runResult struct {
	weights    []snapshot.WeightSample
	sessions   []snapshot.SessionSnapshot
	dispatcher snapshot.DispatcherSnapshot
}

// executeRun drives the schedule engine, dispatcher and bitrate controller
// concurrently for the scenario's configured duration, returning the
// dispatcher's final snapshot state.
func (o *Orchestrator) executeRun(ctx context.Context, ts *scenario.TestScenario) (runResult, error) {
	duration := o.cfg.DefaultRunDuration()
	if ts.DurationSeconds != nil {
		duration = time.Duration(*ts.DurationSeconds) * time.Second
	}

	runCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	window := stats.NewWindow(32)
	disp := dispatcher.New(dispatcher.Config{
		RebalanceInterval: o.cfg.RebalanceInterval(),
		SwitchThreshold:   o.cfg.SwitchThreshold(),
		MinHold:           o.cfg.MinHold(),
		DupBudgetPPS:      o.cfg.DupBudgetPPS(),
		HealthWarmup:      o.cfg.HealthWarmup(),
	}, o.strategy, window)

	errCh := make(chan error, 3)
	go func() {
		errCh <- o.engine.Run(runCtx, o.links)
	}()
	go func() {
		errCh <- disp.RunRebalanceLoop(runCtx)
	}()
	if o.encoder != nil {
		go func() {
			errCh <- bitrate.New(bitrate.Config{MaxBitrateBps: o.cfg.MaxBitrateBps()}, window, o.encoder).Run(runCtx)
		}()
	} else {
		errCh <- nil
	}

	<-runCtx.Done()
	for i := 0; i < 3; i++ {
		if err := <-errCh; err != nil && err != context.DeadlineExceeded && err != context.Canceled {
			log.Warn().Err(err).Msg("orchestrator: run-phase component returned an error")
		}
	}

	return runResult{
		sessions:   sessionSnapshots(window, disp),
		dispatcher: dispatcherSnapshot(disp),
	}, nil
}

// sessionSnapshots merges each session's windowed statistics with the
// dispatcher's final weight and deficit for it, producing one entry per
// session id seen by either source.
func sessionSnapshots(window *stats.Window, disp *dispatcher.Dispatcher) []snapshot.SessionSnapshot {
	windowed := window.Snapshot()
	weights, deficits := disp.WeightsAndDeficits()

	ids := make(map[uint32]struct{}, len(windowed)+len(weights))
	for id := range windowed {
		ids[id] = struct{}{}
	}
	for id := range weights {
		ids[id] = struct{}{}
	}

	out := make([]snapshot.SessionSnapshot, 0, len(ids))
	for id := range ids {
		w := windowed[id]
		out = append(out, snapshot.SessionSnapshot{
			SessionID:     id,
			LossRate:      w.AvgLossRate,
			RTTUs:         w.AvgRTT.Microseconds(),
			ThroughputBps: w.AvgBitrateBps,
			Weight:        weights[id],
			Deficit:       deficits[id],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

// dispatcherSnapshot captures the dispatcher's scheduling state at the end
// of the run phase.
func dispatcherSnapshot(disp *dispatcher.Dispatcher) snapshot.DispatcherSnapshot {
	ds := snapshot.DispatcherSnapshot{
		OutputStates:       disp.SessionStates(),
		SwitchCount:        disp.SwitchCount(),
		DupTokensRemaining: disp.DupTokensRemaining(),
	}
	if last, ok := disp.LastSelected(); ok {
		ds.LastSelectedPad = last
	}
	return ds
}

// executeTeardown removes qdisc impairments and deletes every namespace
// created for the run, recording each action in the audit log regardless
// of success so a partial teardown is still visible in the final report.
func (o *Orchestrator) executeTeardown(ctx context.Context, ts *scenario.TestScenario) []snapshot.LinkSnapshot {
	out := make([]snapshot.LinkSnapshot, 0, len(o.links))
	for _, l := range o.links {
		ls := snapshot.LinkSnapshot{
			Name: l.Spec.Name, TxIface: l.Spec.TxIface, RxIface: l.Spec.RxIface,
			TxNetns: l.TxNS.Name, RxNetns: l.RxNS.Name,
		}

		_ = o.nsManager.ExecIn(ctx, l.TxNS, func() error {
			if s, err := l.TxCtrl.Stats(ctx, l.Spec.TxIface); err == nil {
				ls.TxStats = snapshot.LinkCounters{BytesSent: s.BytesSent, PacketsSent: s.PacketsSent, PacketsDrop: s.PacketsDrop}
			}
			return l.TxCtrl.Remove(ctx, l.Spec.TxIface, qdisc.TX)
		})
		_ = o.nsManager.ExecIn(ctx, l.RxNS, func() error {
			if s, err := l.RxCtrl.Stats(ctx, l.Spec.RxIface); err == nil {
				ls.RxStats = snapshot.LinkCounters{BytesSent: s.BytesSent, PacketsSent: s.PacketsSent, PacketsDrop: s.PacketsDrop}
			}
			return l.RxCtrl.Remove(ctx, l.Spec.RxIface, qdisc.RX)
		})

		o.audit("delete_namespace", l.TxNS.Name, o.nsManager.Delete(ctx, l.TxNS.Name))
		o.audit("delete_namespace", l.RxNS.Name, o.nsManager.Delete(ctx, l.RxNS.Name))
		out = append(out, ls)
	}
	return out
}

func (o *Orchestrator) audit(action, target string, err error) {
	o.auditLog = append(o.auditLog, auditEntry{Timestamp: time.Now(), Action: action, Target: target, Err: err})
	if err != nil {
		log.Warn().Err(err).Str("action", action).Str("target", target).Msg("orchestrator: teardown action failed")
	}
}

// interruptibleSleep blocks for d or until ctx is cancelled, whichever
// comes first.
func (o *Orchestrator) interruptibleSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func generateRunID(scenarioName string, t time.Time) string {
	return fmt.Sprintf("%s-%d", scenarioName, t.UnixNano())
}
