// Package scheduleengine drives each link's tx/rx schedule.Schedule
// against the qdisc controller, applying the impairment active at the
// current elapsed time and sleeping until the schedule's next transition.
package scheduleengine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/RephlexZero/rist-bonding-sub001/pkg/netns"
	"github.com/RephlexZero/rist-bonding-sub001/pkg/qdisc"
	"github.com/RephlexZero/rist-bonding-sub001/pkg/scenario"
	"github.com/RephlexZero/rist-bonding-sub001/pkg/schedule"
)

// LinkRuntime binds one scenario.LinkSpec to the namespace handles and
// qdisc controllers that implement it.
type LinkRuntime struct {
	Spec   scenario.LinkSpec
	TxNS   netns.Handle
	RxNS   netns.Handle
	TxCtrl qdisc.Controller
	RxCtrl qdisc.Controller
}

// Engine runs one goroutine per link direction, applying schedule
// transitions until the context is cancelled.
type Engine struct {
	nsManager netns.Manager
}

// New returns an Engine bound to the Manager used for ExecIn.
func New(nsManager netns.Manager) *Engine {
	return &Engine{nsManager: nsManager}
}

// Run drives every link's schedules until ctx is cancelled. It returns
// once all per-link goroutines have exited.
func (e *Engine) Run(ctx context.Context, links []LinkRuntime) error {
	var wg sync.WaitGroup
	errCh := make(chan error, len(links)*2)
	start := time.Now()

	for _, l := range links {
		l := l
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.driveDirection(ctx, start, l.TxNS, l.TxCtrl, l.Spec.TxIface, qdisc.TX, l.Spec.TxSched); err != nil && err != context.Canceled && err != context.DeadlineExceeded {
				errCh <- fmt.Errorf("link %s tx: %w", l.Spec.Name, err)
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.driveDirection(ctx, start, l.RxNS, l.RxCtrl, l.Spec.RxIface, qdisc.RX, l.Spec.RxSched); err != nil && err != context.Canceled && err != context.DeadlineExceeded {
				errCh <- fmt.Errorf("link %s rx: %w", l.Spec.Name, err)
			}
		}()
	}

	wg.Wait()
	close(errCh)

	var firstErr error
	for err := range errCh {
		if firstErr == nil {
			firstErr = err
		}
		log.Error().Err(err).Msg("schedule engine link error")
	}
	return firstErr
}

// driveDirection applies sched's active spec to iface inside h, re-polling
// at the wait interval the schedule itself reports. A failed apply is
// logged and the schedule keeps running; only a permission error stops it.
func (e *Engine) driveDirection(ctx context.Context, start time.Time, h netns.Handle, ctrl qdisc.Controller, iface string, dir qdisc.Direction, sched schedule.Schedule) error {
	installed := false
	for {
		elapsed := time.Since(start)
		spec, wait, done := sched.Next(elapsed)

		err := e.nsManager.ExecIn(ctx, h, func() error {
			if !installed {
				return ctrl.Install(ctx, iface, dir, spec)
			}
			return ctrl.Update(ctx, iface, dir, spec)
		})
		if errors.Is(err, os.ErrPermission) {
			return fmt.Errorf("apply schedule to %s: %w", iface, err)
		} else if err != nil {
			log.Warn().Err(err).Str("iface", iface).Msg("schedule engine: apply failed, continuing")
		} else {
			installed = true
		}

		if done {
			return nil
		}
		if wait <= 0 {
			wait = time.Millisecond
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
