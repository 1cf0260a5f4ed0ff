package netns

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestScenarioNamespaceIsDeterministicAndWellFormed(t *testing.T) {
	a := ScenarioNamespace("ristbond", "abc123", 0)
	b := ScenarioNamespace("ristbond", "abc123", 0)
	if a != b {
		t.Fatalf("expected ScenarioNamespace to be deterministic, got %q and %q", a, b)
	}
	if a != "ristbond-abc123-l0" {
		t.Fatalf("expected namespace name %q, got %q", "ristbond-abc123-l0", a)
	}
}

func TestScenarioNamespaceDistinguishesLinkIndex(t *testing.T) {
	a := ScenarioNamespace("ristbond", "abc123", 0)
	b := ScenarioNamespace("ristbond", "abc123", 1)
	if a == b {
		t.Fatalf("expected different link indices to produce different namespace names, both were %q", a)
	}
}

// requireRoot skips tests that need to create real network namespaces,
// which is only possible as root and only meaningful on Linux.
func requireRoot(t *testing.T) {
	t.Helper()
	if os.Geteuid() != 0 {
		t.Skip("skipping: namespace creation requires root privileges")
	}
}

func TestCreateDeleteRoundTrip(t *testing.T) {
	requireRoot(t)

	m := New("ristbondtest")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	name := "ristbondtest-unit0"
	h, err := m.Create(ctx, name)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer m.Delete(ctx, name)

	if h.Name != name {
		t.Fatalf("expected handle name %q, got %q", name, h.Name)
	}

	if _, err := m.Attach(name); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	if err := m.Delete(ctx, name); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := m.Attach(name); err == nil {
		t.Fatal("expected Attach to fail after Delete")
	}
}

func TestSweepStaleOnlyRemovesPrefixedNamespaces(t *testing.T) {
	requireRoot(t)

	m := New("ristbondtest")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := m.Create(ctx, "ristbondtest-sweep0"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	removed, err := m.SweepStale(ctx, "ristbondtest-sweep")
	if err != nil {
		t.Fatalf("SweepStale: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected SweepStale to remove exactly 1 matching namespace, got %d", removed)
	}
}
