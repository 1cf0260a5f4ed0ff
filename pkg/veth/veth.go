// Package veth creates veth pairs that connect the host namespace to a
// per-link network namespace managed by pkg/netns.
package veth

import (
	"fmt"
	"net"

	"github.com/rs/zerolog/log"
	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"
)

// Pair describes one veth pair: HostSide stays in the root namespace,
// PeerSide is moved into the target namespace.
type Pair struct {
	HostSide string
	PeerSide string
	PeerNSFd int
}

// Create allocates a veth pair and moves the peer end into peerNs.
func Create(hostSide, peerSide string, peerNs netns.NsHandle) (Pair, error) {
	la := netlink.NewLinkAttrs()
	la.Name = hostSide
	link := &netlink.Veth{
		LinkAttrs: la,
		PeerName:  peerSide,
	}

	if err := netlink.LinkAdd(link); err != nil {
		return Pair{}, fmt.Errorf("veth: create pair %s/%s: %w", hostSide, peerSide, err)
	}

	peerLink, err := netlink.LinkByName(peerSide)
	if err != nil {
		return Pair{}, fmt.Errorf("veth: lookup peer %s: %w", peerSide, err)
	}

	if err := netlink.LinkSetNsFd(peerLink, int(peerNs)); err != nil {
		return Pair{}, fmt.Errorf("veth: move %s into namespace: %w", peerSide, err)
	}

	hostLink, err := netlink.LinkByName(hostSide)
	if err != nil {
		return Pair{}, fmt.Errorf("veth: lookup host side %s: %w", hostSide, err)
	}
	if err := netlink.LinkSetUp(hostLink); err != nil {
		return Pair{}, fmt.Errorf("veth: set %s up: %w", hostSide, err)
	}

	log.Debug().Str("host", hostSide).Str("peer", peerSide).Msg("veth pair created")
	return Pair{HostSide: hostSide, PeerSide: peerSide, PeerNSFd: int(peerNs)}, nil
}

// ConfigureAddr assigns an IPv4 address and brings the interface up; it
// must be called with the calling goroutine already inside the target
// namespace (see netns.Manager.ExecIn).
func ConfigureAddr(ifaceName string, addr *net.IPNet) error {
	link, err := netlink.LinkByName(ifaceName)
	if err != nil {
		return fmt.Errorf("veth: lookup %s: %w", ifaceName, err)
	}
	if err := netlink.AddrAdd(link, &netlink.Addr{IPNet: addr}); err != nil {
		return fmt.Errorf("veth: assign address to %s: %w", ifaceName, err)
	}
	if err := netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("veth: set %s up: %w", ifaceName, err)
	}
	return nil
}

// Remove deletes the host side of a pair; the kernel automatically
// destroys the peer.
func Remove(hostSide string) error {
	link, err := netlink.LinkByName(hostSide)
	if err != nil {
		return nil // already gone
	}
	if err := netlink.LinkDel(link); err != nil {
		return fmt.Errorf("veth: delete %s: %w", hostSide, err)
	}
	return nil
}
