// Package qdisc installs and updates Linux traffic-control impairments on
// an interface: a root tbf token-bucket rate limiter layered above a child
// netem impairment qdisc, grounded on the same add/change/delete qdisc
// lifecycle a "tc qdisc" invocation would drive, expressed here over
// netlink instead of shelling out.
package qdisc

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vishvananda/netlink"

	"github.com/RephlexZero/rist-bonding-sub001/pkg/direction"
)

// Direction distinguishes egress (tx, shaped directly) from ingress (rx,
// shaped via an ifb redirect since netem cannot attach to ingress).
type Direction int

const (
	TX Direction = iota
	RX
)

func (d Direction) String() string {
	if d == TX {
		return "tx"
	}
	return "rx"
}

// LinkStats reports qdisc-level byte/packet/drop counters for an interface.
type LinkStats struct {
	Iface        string
	BytesSent    uint64
	PacketsSent  uint64
	PacketsDrop  uint64
	Backlog      uint32
	Requeues     uint32
}

// Controller installs, updates and removes impairments on interfaces.
type Controller interface {
	Install(ctx context.Context, iface string, dir Direction, spec direction.Spec) error
	Update(ctx context.Context, iface string, dir Direction, spec direction.Spec) error
	Remove(ctx context.Context, iface string, dir Direction) error
	Stats(ctx context.Context, iface string) (LinkStats, error)
}

const (
	rootHandleMajor  = 0x1
	netemHandleMajor = 0x10
	ifbHandleMajor   = 0x1
)

type controller struct {
	ifbCounter int
	ifbByIface map[string]string
}

// New returns a Controller. Must be called from within the target
// namespace (see netns.Manager.ExecIn); netlink operates on the calling
// thread's current namespace.
func New() Controller {
	return &controller{ifbByIface: make(map[string]string)}
}

// Install attaches a fresh tbf(netem(...)) qdisc stack to iface for dir.
func (c *controller) Install(ctx context.Context, iface string, dir Direction, spec direction.Spec) error {
	if err := spec.Validate(); err != nil {
		return err
	}

	target := iface
	if dir == RX {
		ifbName, err := c.ensureIFB(iface)
		if err != nil {
			return err
		}
		target = ifbName
	}

	link, err := netlink.LinkByName(target)
	if err != nil {
		return fmt.Errorf("qdisc: lookup %s: %w", target, err)
	}

	netemAttrs := netlink.QdiscAttrs{
		LinkIndex: link.Attrs().Index,
		Handle:    netlink.MakeHandle(netemHandleMajor, 0),
		Parent:    netlink.MakeHandle(rootHandleMajor, 0),
	}
	netem := netlink.NewNetem(netemAttrs, toNetemAttrs(spec))

	tbfAttrs := netlink.QdiscAttrs{
		LinkIndex: link.Attrs().Index,
		Handle:    netlink.MakeHandle(rootHandleMajor, 0),
		Parent:    netlink.HANDLE_ROOT,
	}
	tbf := &netlink.Tbf{
		QdiscAttrs: tbfAttrs,
		Rate:       uint64(spec.RateKbps) * 1000 / 8,
		Limit:      rateLimitBytes(spec.RateKbps),
		Buffer:     rateBufferBytes(spec.RateKbps),
	}
	if err := netlink.QdiscAdd(tbf); err != nil {
		return fmt.Errorf("qdisc: add tbf on %s: %w", target, err)
	}
	if err := netlink.QdiscAdd(netem); err != nil {
		return fmt.Errorf("qdisc: add netem on %s: %w", target, err)
	}

	log.Debug().Str("iface", target).Str("direction", dir.String()).
		Uint32("rate_kbps", spec.RateKbps).Msg("qdisc installed")
	return nil
}

// Update replaces the existing netem/tbf parameters without tearing down
// and recreating the qdisc tree, so in-flight packets are not dropped.
func (c *controller) Update(ctx context.Context, iface string, dir Direction, spec direction.Spec) error {
	if err := spec.Validate(); err != nil {
		return err
	}

	target := iface
	if dir == RX {
		ifbName, ok := c.ifbByIface[iface]
		if !ok {
			return c.Install(ctx, iface, dir, spec)
		}
		target = ifbName
	}

	link, err := netlink.LinkByName(target)
	if err != nil {
		return fmt.Errorf("qdisc: lookup %s: %w", target, err)
	}

	netemAttrs := netlink.QdiscAttrs{
		LinkIndex: link.Attrs().Index,
		Handle:    netlink.MakeHandle(netemHandleMajor, 0),
		Parent:    netlink.MakeHandle(rootHandleMajor, 0),
	}
	netem := netlink.NewNetem(netemAttrs, toNetemAttrs(spec))
	if err := netlink.QdiscChange(netem); err != nil {
		return fmt.Errorf("qdisc: change netem on %s: %w", target, err)
	}

	tbfAttrs := netlink.QdiscAttrs{
		LinkIndex: link.Attrs().Index,
		Handle:    netlink.MakeHandle(rootHandleMajor, 0),
		Parent:    netlink.HANDLE_ROOT,
	}
	tbf := &netlink.Tbf{
		QdiscAttrs: tbfAttrs,
		Rate:       uint64(spec.RateKbps) * 1000 / 8,
		Limit:      rateLimitBytes(spec.RateKbps),
		Buffer:     rateBufferBytes(spec.RateKbps),
	}
	if err := netlink.QdiscChange(tbf); err != nil {
		return fmt.Errorf("qdisc: change tbf on %s: %w", target, err)
	}

	return nil
}

// Remove tears down the root qdisc on iface, restoring default pfifo_fast.
func (c *controller) Remove(ctx context.Context, iface string, dir Direction) error {
	target := iface
	if dir == RX {
		ifbName, ok := c.ifbByIface[iface]
		if !ok {
			return nil
		}
		target = ifbName
	}

	link, err := netlink.LinkByName(target)
	if err != nil {
		return nil
	}

	qdiscs, err := netlink.QdiscList(link)
	if err != nil {
		return fmt.Errorf("qdisc: list on %s: %w", target, err)
	}
	for _, q := range qdiscs {
		if q.Attrs().Parent == netlink.HANDLE_ROOT {
			if err := netlink.QdiscDel(q); err != nil {
				return fmt.Errorf("qdisc: delete root qdisc on %s: %w", target, err)
			}
		}
	}
	return nil
}

// Stats reports the root qdisc's counters for iface.
func (c *controller) Stats(ctx context.Context, iface string) (LinkStats, error) {
	link, err := netlink.LinkByName(iface)
	if err != nil {
		return LinkStats{}, fmt.Errorf("qdisc: lookup %s: %w", iface, err)
	}
	qdiscs, err := netlink.QdiscList(link)
	if err != nil {
		return LinkStats{}, fmt.Errorf("qdisc: list on %s: %w", iface, err)
	}

	stats := LinkStats{Iface: iface}
	for _, q := range qdiscs {
		if q.Attrs().Parent != netlink.HANDLE_ROOT {
			continue
		}
		s := q.Attrs().Statistics
		if s == nil {
			continue
		}
		stats.BytesSent = s.Basic.Bytes
		stats.PacketsSent = uint64(s.Basic.Packets)
		stats.PacketsDrop = uint64(s.Queue.Drops)
		stats.Backlog = s.Queue.Backlog
		stats.Requeues = uint32(s.Queue.Requeues)
	}
	return stats, nil
}

// ensureIFB creates (or reuses) an ifb device redirect target for
// shaping ingress traffic on iface, since netem/tbf can only attach to
// egress qdiscs.
func (c *controller) ensureIFB(iface string) (string, error) {
	if name, ok := c.ifbByIface[iface]; ok {
		return name, nil
	}
	c.ifbCounter++
	ifbName := fmt.Sprintf("ifb-%d", c.ifbCounter)

	la := netlink.NewLinkAttrs()
	la.Name = ifbName
	ifb := &netlink.Ifb{LinkAttrs: la}
	if err := netlink.LinkAdd(ifb); err != nil {
		return "", fmt.Errorf("qdisc: create ifb %s: %w", ifbName, err)
	}
	if err := netlink.LinkSetUp(ifb); err != nil {
		return "", fmt.Errorf("qdisc: set ifb %s up: %w", ifbName, err)
	}

	link, err := netlink.LinkByName(iface)
	if err != nil {
		return "", fmt.Errorf("qdisc: lookup %s: %w", iface, err)
	}
	ingress := &netlink.Ingress{
		QdiscAttrs: netlink.QdiscAttrs{
			LinkIndex: link.Attrs().Index,
			Parent:    netlink.HANDLE_INGRESS,
		},
	}
	if err := netlink.QdiscAdd(ingress); err != nil {
		return "", fmt.Errorf("qdisc: add ingress on %s: %w", iface, err)
	}

	ifbLink, err := netlink.LinkByName(ifbName)
	if err != nil {
		return "", fmt.Errorf("qdisc: lookup %s: %w", ifbName, err)
	}
	filter := &netlink.U32{
		FilterAttrs: netlink.FilterAttrs{
			LinkIndex: link.Attrs().Index,
			Parent:    netlink.MakeHandle(0xffff, 0),
			Priority:  1,
			Protocol:  3, // ETH_P_ALL (big-endian rendering of 0x0003)
		},
		Actions: []netlink.Action{
			netlink.NewMirredAction(ifbLink.Attrs().Index),
		},
	}
	if err := netlink.FilterAdd(filter); err != nil {
		return "", fmt.Errorf("qdisc: add redirect filter on %s: %w", iface, err)
	}

	c.ifbByIface[iface] = ifbName
	return ifbName, nil
}

func toNetemAttrs(spec direction.Spec) netlink.NetemQdiscAttrs {
	a := netlink.NetemQdiscAttrs{
		Latency:       time.Duration(spec.BaseDelayMs) * time.Millisecond,
		Jitter:        time.Duration(spec.JitterMs) * time.Millisecond,
		Loss:          spec.LossPct * 100,
		LossCorr:      spec.LossBurstCorr * 100,
		ReorderProb:   spec.ReorderPct * 100,
		DuplicateProb: spec.DuplicatePct * 100,
	}
	if spec.MTU != nil {
		a.Limit = 1000
	}
	return a
}

// rateLimitBytes derives a tbf queue-length limit sized for ~50ms of
// buffering at the configured rate, avoiding both bufferbloat and
// underrun at low rates.
func rateLimitBytes(rateKbps uint32) uint32 {
	bytesPerSec := uint64(rateKbps) * 1000 / 8
	limit := bytesPerSec / 20 // 50ms
	if limit < 4096 {
		limit = 4096
	}
	return uint32(limit)
}

// rateBufferBytes sizes the tbf token bucket burst allowance.
func rateBufferBytes(rateKbps uint32) uint32 {
	burst := uint32(rateKbps) * 125 / 4 // 250ms of bytes at rateKbps
	if burst < 2048 {
		burst = 2048
	}
	return burst
}
