package scheduleengine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/RephlexZero/rist-bonding-sub001/pkg/direction"
	"github.com/RephlexZero/rist-bonding-sub001/pkg/netns"
	"github.com/RephlexZero/rist-bonding-sub001/pkg/qdisc"
	"github.com/RephlexZero/rist-bonding-sub001/pkg/scenario"
	"github.com/RephlexZero/rist-bonding-sub001/pkg/schedule"
)

type fakeManager struct{}

func (fakeManager) Create(ctx context.Context, name string) (netns.Handle, error) {
	return netns.Handle{Name: name}, nil
}
func (fakeManager) Delete(ctx context.Context, name string) error  { return nil }
func (fakeManager) Attach(name string) (netns.Handle, error)       { return netns.Handle{Name: name}, nil }
func (fakeManager) Enter(h netns.Handle) (netns.Guard, error)       { return netns.Guard{}, nil }
func (fakeManager) ExecIn(ctx context.Context, h netns.Handle, fn func() error) error {
	return fn()
}
func (fakeManager) SweepStale(ctx context.Context, prefix string) (int, error) { return 0, nil }

type fakeController struct {
	mu       sync.Mutex
	installs int
	updates  int
	lastSpec direction.Spec
}

func (c *fakeController) Install(ctx context.Context, iface string, dir qdisc.Direction, spec direction.Spec) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.installs++
	c.lastSpec = spec
	return nil
}
func (c *fakeController) Update(ctx context.Context, iface string, dir qdisc.Direction, spec direction.Spec) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates++
	c.lastSpec = spec
	return nil
}
func (c *fakeController) Remove(ctx context.Context, iface string, dir qdisc.Direction) error {
	return nil
}
func (c *fakeController) Stats(ctx context.Context, iface string) (qdisc.LinkStats, error) {
	return qdisc.LinkStats{}, nil
}

func (c *fakeController) snapshot() (installs, updates int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.installs, c.updates
}

func TestDriveDirectionInstallsThenUpdatesOnStepBoundaries(t *testing.T) {
	e := New(fakeManager{})
	txCtrl := &fakeController{}

	sched := schedule.Steps{Steps: []schedule.Step{
		{At: 0, Spec: direction.Good()},
		{At: 10 * time.Millisecond, Spec: direction.Poor()},
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := e.driveDirection(ctx, time.Now(), netns.Handle{}, txCtrl, "tx0", qdisc.TX, sched)
	if err != context.DeadlineExceeded {
		t.Fatalf("expected deadline-exceeded once the steps schedule holds forever, got %v", err)
	}

	installs, updates := txCtrl.snapshot()
	if installs != 1 {
		t.Fatalf("expected exactly one Install call, got %d", installs)
	}
	if updates == 0 {
		t.Fatal("expected at least one Update call after the first step boundary")
	}
}

func TestRunSwallowsContextDeadline(t *testing.T) {
	e := New(fakeManager{})

	links := []LinkRuntime{
		{
			Spec:   scenario.LinkSpec{Name: "l0", TxIface: "tx0", RxIface: "rx0", TxSched: schedule.Constant{Spec: direction.Good()}, RxSched: schedule.Constant{Spec: direction.Good()}},
			TxCtrl: &fakeController{},
			RxCtrl: &fakeController{},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := e.Run(ctx, links)
	if err != nil {
		t.Fatalf("expected context cancellation to be swallowed, not surfaced as an error: %v", err)
	}
}
