// Package bitrate adjusts an encoder's target bitrate from the bonded
// link's aggregate estimated capacity, the dynbitrate counterpart to the
// dispatcher's link-level weighting.
package bitrate

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/RephlexZero/rist-bonding-sub001/pkg/stats"
)

// Encoder receives bitrate updates; a real implementation drives an
// encoder element's bitrate property, tests use a fake.
type Encoder interface {
	SetBitrateBps(bps uint32) error
}

// Config tunes how aggressively the controller reacts to capacity changes.
type Config struct {
	MinBitrateBps   uint32
	MaxBitrateBps   uint32
	// HeadroomFactor scales aggregate capacity down before using it as the
	// bitrate target, leaving room for RTP/FEC overhead.
	HeadroomFactor float64
	PollInterval   time.Duration
}

// Controller polls a stats.Window for per-session loss rates and steers an
// Encoder's bitrate to MaxBitrateBps scaled by the summed delivery ratio
// (1 - loss) and HeadroomFactor, divided by the session count plus one.
type Controller struct {
	cfg     Config
	window  *stats.Window
	encoder Encoder
	last    uint32
}

// New builds a Controller.
func New(cfg Config, window *stats.Window, encoder Encoder) *Controller {
	if cfg.HeadroomFactor <= 0 {
		cfg.HeadroomFactor = 0.85
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Controller{cfg: cfg, window: window, encoder: encoder}
}

// Run polls aggregate capacity and applies bitrate updates until ctx is
// cancelled.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.tick()
		}
	}
}

func (c *Controller) tick() {
	snapshot := c.window.Snapshot()
	var aggregate float64
	for _, w := range snapshot {
		// Sessions under heavy loss contribute proportionally less usable
		// throughput to the aggregate capacity estimate.
		aggregate += (1 - w.AvgLossRate)
	}
	if aggregate <= 0 {
		return
	}

	target := uint32(aggregate * c.cfg.HeadroomFactor * float64(c.cfg.MaxBitrateBps) / float64(len(snapshot)+1))
	if target < c.cfg.MinBitrateBps {
		target = c.cfg.MinBitrateBps
	}
	if target > c.cfg.MaxBitrateBps {
		target = c.cfg.MaxBitrateBps
	}
	if target == c.last {
		return
	}

	if err := c.encoder.SetBitrateBps(target); err != nil {
		log.Warn().Err(err).Msg("bitrate: failed to apply target")
		return
	}
	c.last = target
	log.Debug().Uint32("bitrate_bps", target).Msg("bitrate: applied target")
}
