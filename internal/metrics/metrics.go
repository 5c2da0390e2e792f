// Package metrics exposes Prometheus counters for decoding runs.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the decoder counters.
type Metrics struct {
	FramesTotal    *prometheus.CounterVec
	DecodedTotal   *prometheus.CounterVec
	RolloversTotal *prometheus.CounterVec
	RunsTotal      *prometheus.CounterVec
}

// New creates the decoder counters. They must be registered before use
// with a scraping registry.
func New() *Metrics {
	return &Metrics{
		FramesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tickstamp",
				Subsystem: "frames",
				Name:      "total",
				Help:      "Frames read, by classification (keyframe, data, skipped)",
			},
			[]string{"kind"},
		),
		DecodedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tickstamp",
				Subsystem: "frames",
				Name:      "decoded_total",
				Help:      "Data frames by device and whether a UTC time was reconstructed",
			},
			[]string{"device", "status"},
		),
		RolloversTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tickstamp",
				Subsystem: "ticks",
				Name:      "rollovers_total",
				Help:      "Tick counter wraps observed between consecutive frames",
			},
			[]string{"device"},
		),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tickstamp",
				Subsystem: "runs",
				Name:      "total",
				Help:      "Decoding runs by result (ok, failed)",
			},
			[]string{"result"},
		),
	}
}

// Register adds all counters to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.FramesTotal, m.DecodedTotal, m.RolloversTotal, m.RunsTotal} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Frame counts one frame of the given kind.
func (m *Metrics) Frame(kind string) {
	if m == nil {
		return
	}
	m.FramesTotal.WithLabelValues(kind).Inc()
}

// Decoded counts a data frame for device.
func (m *Metrics) Decoded(device uint16, ok bool) {
	if m == nil {
		return
	}
	status := "decoded"
	if !ok {
		status = "undecodable"
	}
	m.DecodedTotal.WithLabelValues(strconv.Itoa(int(device)), status).Inc()
}

// Rollover counts a counter wrap on device.
func (m *Metrics) Rollover(device uint16) {
	if m == nil {
		return
	}
	m.RolloversTotal.WithLabelValues(strconv.Itoa(int(device))).Inc()
}

// Run counts a finished run.
func (m *Metrics) Run(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.RunsTotal.WithLabelValues(result).Inc()
}
