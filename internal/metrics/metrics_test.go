package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))

	m.Frame("data")
	m.Frame("data")
	m.Frame("keyframe")
	m.Decoded(1, true)
	m.Decoded(1, false)
	m.Rollover(2)
	m.Run(nil)
	m.Run(errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FramesTotal.WithLabelValues("data")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesTotal.WithLabelValues("keyframe")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DecodedTotal.WithLabelValues("1", "undecodable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RolloversTotal.WithLabelValues("2")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("failed")))

	assert.Error(t, m.Register(reg), "double registration")
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Frame("data")
		m.Decoded(1, true)
		m.Rollover(1)
		m.Run(nil)
	})
}
