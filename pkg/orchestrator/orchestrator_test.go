package orchestrator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/RephlexZero/rist-bonding-sub001/pkg/config"
	"github.com/RephlexZero/rist-bonding-sub001/pkg/netns"
	"github.com/RephlexZero/rist-bonding-sub001/pkg/rebalance"
	"github.com/RephlexZero/rist-bonding-sub001/pkg/scenario"
)

type fakeManager struct {
	sweptPrefix string
	swept       int
}

func (f *fakeManager) Create(ctx context.Context, name string) (netns.Handle, error) {
	return netns.Handle{Name: name}, nil
}
func (f *fakeManager) Delete(ctx context.Context, name string) error { return nil }
func (f *fakeManager) Attach(name string) (netns.Handle, error)      { return netns.Handle{Name: name}, nil }
func (f *fakeManager) Enter(h netns.Handle) (netns.Guard, error)      { return netns.Guard{}, nil }
func (f *fakeManager) ExecIn(ctx context.Context, h netns.Handle, fn func() error) error {
	return fn()
}
func (f *fakeManager) SweepStale(ctx context.Context, prefix string) (int, error) {
	f.sweptPrefix = prefix
	f.swept = 2
	return 2, nil
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Execution.WarmupDuration = 0
	cfg.Execution.CooldownDuration = 0
	return cfg
}

func TestRunStateStringer(t *testing.T) {
	cases := map[RunState]string{
		StateParse:     "PARSE",
		StatePrepare:   "PREPARE",
		StateWarmup:    "WARMUP",
		StateRun:       "RUN",
		StateCooldown:  "COOLDOWN",
		StateTeardown:  "TEARDOWN",
		StateReport:    "REPORT",
		StateCompleted: "COMPLETED",
		StateFailed:    "FAILED",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("RunState(%d).String() = %q, want %q", state, got, want)
		}
	}
}

func TestExecuteEmptyScenarioCompletes(t *testing.T) {
	cfg := testConfig()
	zero := uint64(0)
	nsMgr := &fakeManager{}

	o := New(cfg, Deps{NSManager: nsMgr, Strategy: rebalance.Fixed{}})
	ts := &scenario.TestScenario{Name: "empty-run", DurationSeconds: &zero}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snap, err := o.Execute(ctx, ts)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if snap.Status != "completed" {
		t.Fatalf("expected completed status, got %q (%s)", snap.Status, snap.Message)
	}
	if nsMgr.sweptPrefix == "" {
		t.Fatal("expected preFlightCleanup to sweep stale namespaces with a scenario-scoped prefix")
	}
}

func TestExecuteFailsWhenPrepareErrors(t *testing.T) {
	cfg := testConfig()
	zero := uint64(0)

	failingMgr := &failingCreateManager{fakeManager: &fakeManager{}}
	o := New(cfg, Deps{NSManager: failingMgr, Strategy: rebalance.Fixed{}})
	ts := &scenario.TestScenario{
		Name:            "fails-to-prepare",
		DurationSeconds: &zero,
		Links: []scenario.LinkSpec{
			{Name: "l0", TxIface: "tx0", RxIface: "rx0"},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snap, err := o.Execute(ctx, ts)
	if err == nil {
		t.Fatal("expected Execute to fail when namespace creation fails")
	}
	if snap.Status != "failed" {
		t.Fatalf("expected failed status, got %q", snap.Status)
	}
}

type failingCreateManager struct {
	*fakeManager
}

func (f *failingCreateManager) Create(ctx context.Context, name string) (netns.Handle, error) {
	return netns.Handle{}, errCreateFailed
}

var errCreateFailed = fmtError("create failed")

type fmtError string

func (e fmtError) Error() string { return string(e) }

func TestRequestStopIsObserved(t *testing.T) {
	cfg := testConfig()
	cfg.Execution.WarmupDuration = time.Hour

	o := New(cfg, Deps{NSManager: &fakeManager{}, Strategy: rebalance.Fixed{}})
	o.RequestStop()

	ts := &scenario.TestScenario{Name: "stop-before-warmup"}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := o.Execute(ctx, ts)
	if err == nil {
		t.Fatal("expected Execute to fail fast when RequestStop was called before warmup")
	}
}

func TestGenerateRunIDIncludesScenarioName(t *testing.T) {
	id := generateRunID("my-scenario", time.Unix(0, 1))
	if id == "" {
		t.Fatal("expected a non-empty run ID")
	}
	if !strings.HasPrefix(id, "my-scenario-") {
		t.Fatalf("expected run ID to start with the scenario name, got %q", id)
	}
}
