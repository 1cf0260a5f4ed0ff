package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// PrometheusSource reads RIST sender session statistics exported as
// Prometheus gauges (rist_sender_sent_packets_total, _lost_packets_total,
// _rtt_seconds) keyed by a "session_id" label.
type PrometheusSource struct {
	api     v1.API
	Timeout time.Duration
}

// NewPrometheusSource dials a Prometheus HTTP API endpoint.
func NewPrometheusSource(url string, timeout time.Duration) (*PrometheusSource, error) {
	client, err := api.NewClient(api.Config{Address: url})
	if err != nil {
		return nil, fmt.Errorf("stats: create prometheus client: %w", err)
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &PrometheusSource{api: v1.NewAPI(client), Timeout: timeout}, nil
}

// ReadStats queries the three RIST sender gauges and merges them by
// session_id label into SessionStats.
func (p *PrometheusSource) ReadStats(ctx context.Context) (map[uint32]SessionStats, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	now := time.Now()
	sent, err := p.queryVector(ctx, "rist_sender_sent_packets_total")
	if err != nil {
		return nil, err
	}
	lost, err := p.queryVector(ctx, "rist_sender_lost_packets_total")
	if err != nil {
		return nil, err
	}
	rtt, err := p.queryVector(ctx, "rist_sender_rtt_seconds")
	if err != nil {
		return nil, err
	}

	out := make(map[uint32]SessionStats)
	for id, v := range sent {
		s := out[id]
		s.SessionID = id
		s.SentPackets = uint64(v)
		s.Timestamp = now
		out[id] = s
	}
	for id, v := range lost {
		s := out[id]
		s.SessionID = id
		s.LostPackets = uint64(v)
		s.Timestamp = now
		out[id] = s
	}
	for id, v := range rtt {
		s := out[id]
		s.SessionID = id
		s.RTT = time.Duration(v * float64(time.Second))
		s.Timestamp = now
		out[id] = s
	}
	return out, nil
}

func (p *PrometheusSource) queryVector(ctx context.Context, query string) (map[uint32]float64, error) {
	result, warnings, err := p.api.Query(ctx, query, time.Now())
	if err != nil {
		return nil, fmt.Errorf("stats: query %s: %w", query, err)
	}
	_ = warnings

	out := make(map[uint32]float64)
	vec, ok := result.(model.Vector)
	if !ok {
		return out, nil
	}
	for _, sample := range vec {
		label, ok := sample.Metric["session_id"]
		if !ok {
			continue
		}
		var id uint32
		if _, err := fmt.Sscanf(string(label), "%d", &id); err != nil {
			continue
		}
		out[id] = float64(sample.Value)
	}
	return out, nil
}
