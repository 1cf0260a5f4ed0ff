// Package netns manages Linux network namespaces for the bonded-link
// fabric: creation under the standard /var/run/netns/<name> convention,
// attachment to existing namespaces, and stale-namespace sweeping.
package netns

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/vishvananda/netns"
	"golang.org/x/sys/unix"
)

const runDir = "/var/run/netns"

// Handle identifies a managed namespace by name.
type Handle struct {
	Name string
	path string
}

// NSHandle opens the raw netns.NsHandle backing h, for callers (such as
// pkg/veth) that need to pass a namespace file descriptor to netlink
// directly. The caller owns the returned handle and must Close it.
func (h Handle) NSHandle() (netns.NsHandle, error) {
	return netns.GetFromPath(h.path)
}

// Guard restores the calling goroutine's OS thread to its original
// namespace when released. Guard.Close MUST run on the same goroutine
// that produced it, since Enter locks the OS thread.
type Guard struct {
	orig netns.NsHandle
}

// Close restores the original namespace and unlocks the OS thread.
func (g Guard) Close() error {
	defer runtime.UnlockOSThread()
	defer g.orig.Close()
	return netns.Set(g.orig)
}

// Manager creates, enters, and tears down named network namespaces.
type Manager interface {
	Create(ctx context.Context, name string) (Handle, error)
	Delete(ctx context.Context, name string) error
	Attach(name string) (Handle, error)
	Enter(h Handle) (Guard, error)
	ExecIn(ctx context.Context, h Handle, fn func() error) error
	SweepStale(ctx context.Context, prefix string) (int, error)
}

type manager struct {
	prefix string
}

// New returns a Manager. prefix namespaces all namespaces it creates so
// SweepStale can distinguish them from unrelated host namespaces.
func New(prefix string) Manager {
	return &manager{prefix: prefix}
}

func (m *manager) namedPath(name string) string {
	return filepath.Join(runDir, name)
}

// Create makes a new named namespace and bind-mounts it under
// /var/run/netns/<name>, the convention `ip netns` itself uses.
func (m *manager) Create(ctx context.Context, name string) (Handle, error) {
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return Handle{}, fmt.Errorf("netns: mkdir %s: %w", runDir, err)
	}

	nsPath := m.namedPath(name)

	errCh := make(chan error, 1)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		orig, err := netns.Get()
		if err != nil {
			errCh <- fmt.Errorf("netns: get current ns: %w", err)
			return
		}
		defer orig.Close()
		defer netns.Set(orig)

		newNs, err := netns.NewNamed(name)
		if err != nil {
			errCh <- fmt.Errorf("netns: create named ns %s: %w", name, err)
			return
		}
		defer newNs.Close()
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		if err != nil {
			os.Remove(nsPath)
			return Handle{}, err
		}
	case <-ctx.Done():
		return Handle{}, ctx.Err()
	}

	log.Debug().Str("namespace", name).Msg("netns created")
	return Handle{Name: name, path: nsPath}, nil
}

// Delete unmounts and removes a namespace created by Create.
func (m *manager) Delete(ctx context.Context, name string) error {
	nsPath := m.namedPath(name)
	if err := netns.DeleteNamed(name); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("netns: delete %s: %w", name, err)
	}
	_ = unix.Unmount(nsPath, unix.MNT_DETACH)
	if err := os.Remove(nsPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("netns: remove mount target %s: %w", nsPath, err)
	}
	log.Debug().Str("namespace", name).Msg("netns deleted")
	return nil
}

// Attach resolves an existing namespace by name without creating it.
func (m *manager) Attach(name string) (Handle, error) {
	nsPath := m.namedPath(name)
	if _, err := os.Stat(nsPath); err != nil {
		return Handle{}, fmt.Errorf("netns: namespace %s not found: %w", name, err)
	}
	return Handle{Name: name, path: nsPath}, nil
}

// Enter switches the calling goroutine's OS thread into h's namespace.
// Callers must call Guard.Close from the same goroutine to return home.
func (m *manager) Enter(h Handle) (Guard, error) {
	runtime.LockOSThread()

	orig, err := netns.Get()
	if err != nil {
		runtime.UnlockOSThread()
		return Guard{}, fmt.Errorf("netns: get current ns: %w", err)
	}

	target, err := netns.GetFromPath(h.path)
	if err != nil {
		runtime.UnlockOSThread()
		orig.Close()
		return Guard{}, fmt.Errorf("netns: open %s: %w", h.path, err)
	}
	defer target.Close()

	if err := netns.Set(target); err != nil {
		runtime.UnlockOSThread()
		orig.Close()
		return Guard{}, fmt.Errorf("netns: set %s: %w", h.Name, err)
	}

	return Guard{orig: orig}, nil
}

// ExecIn runs fn inside h's namespace on a dedicated goroutine, so the
// OS-thread lock never leaks into the caller's goroutine.
func (m *manager) ExecIn(ctx context.Context, h Handle, fn func() error) error {
	done := make(chan error, 1)
	go func() {
		guard, err := m.Enter(h)
		if err != nil {
			done <- err
			return
		}
		defer guard.Close()
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SweepStale removes every namespace under /var/run/netns whose name
// starts with prefix, for recovering from a crashed prior run.
func (m *manager) SweepStale(ctx context.Context, prefix string) (int, error) {
	entries, err := os.ReadDir(runDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("netns: read %s: %w", runDir, err)
	}

	removed := 0
	var firstErr error
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		if err := m.Delete(ctx, e.Name()); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		removed++
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Str("prefix", prefix).Msg("swept stale namespaces")
	}
	return removed, firstErr
}

// ScenarioNamespace derives a deterministic namespace name for a scenario
// run and link index, formatted as "<prefix>-<runID>-l<index>". Names are
// not truncated, so they all share prefix for SweepStale.
func ScenarioNamespace(prefix, runID string, linkIndex int) string {
	return fmt.Sprintf("%s-%s-l%d", prefix, runID, linkIndex)
}
