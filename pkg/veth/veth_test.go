package veth

import (
	"net"
	"os"
	"testing"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"
)

// requireRoot skips tests that manipulate real veth links, which requires
// CAP_NET_ADMIN and is only meaningful on Linux.
func requireRoot(t *testing.T) {
	t.Helper()
	if os.Geteuid() != 0 {
		t.Skip("skipping: veth link manipulation requires root privileges")
	}
}

func TestCreateConfigureRemoveRoundTrip(t *testing.T) {
	requireRoot(t)

	curNs, err := netns.Get()
	if err != nil {
		t.Fatalf("netns.Get: %v", err)
	}
	defer curNs.Close()

	pair, err := Create("ristv-host0", "ristv-peer0", curNs)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer Remove(pair.HostSide)

	if pair.HostSide != "ristv-host0" || pair.PeerSide != "ristv-peer0" {
		t.Fatalf("unexpected pair: %+v", pair)
	}

	if _, err := netlink.LinkByName(pair.HostSide); err != nil {
		t.Fatalf("expected host side link to exist: %v", err)
	}
	if _, err := netlink.LinkByName(pair.PeerSide); err != nil {
		t.Fatalf("expected peer side link to exist in the current namespace: %v", err)
	}

	addr := &net.IPNet{IP: net.IPv4(10, 250, 0, 1), Mask: net.CIDRMask(30, 32)}
	if err := ConfigureAddr(pair.PeerSide, addr); err != nil {
		t.Fatalf("ConfigureAddr: %v", err)
	}

	if err := Remove(pair.HostSide); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := netlink.LinkByName(pair.HostSide); err == nil {
		t.Fatal("expected host side link to be gone after Remove")
	}
}

func TestRemoveOnMissingLinkIsNotAnError(t *testing.T) {
	requireRoot(t)
	if err := Remove("ristv-does-not-exist"); err != nil {
		t.Fatalf("expected Remove on a nonexistent link to be a no-op, got %v", err)
	}
}
