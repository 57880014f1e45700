package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gather returns every sample value keyed by name (plus "{category}" for
// errors_total).
func gather(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	values := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range m.GetLabel() {
				key += "{" + lp.GetValue() + "}"
			}
			switch {
			case m.GetCounter() != nil:
				values[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[key] = m.GetGauge().GetValue()
			}
		}
	}
	return values
}

func TestMetrics_ExportSnapshot(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	snap := Snapshot{
		FramesDecoded:     42,
		BytesRead:         42 * 6,
		ErrorsConnection:  3,
		ErrorsParse:       1,
		ErrorsStream:      2,
		Reopens:           1,
		FramesOverwritten: 7,
		FramesConsumed:    35,
		Connected:         true,
		FPS:               29.5,
		LastFrameAge:      1500 * time.Millisecond,
		Width:             640,
		Height:            480,
	}
	New(reg, func() Snapshot { return snap })

	values := gather(t, reg)

	assert.Equal(t, 42.0, values["videopipe_frames_decoded_total"])
	assert.Equal(t, 252.0, values["videopipe_bytes_read_total"])
	assert.Equal(t, 3.0, values["videopipe_errors_total{connection}"])
	assert.Equal(t, 1.0, values["videopipe_errors_total{parse}"])
	assert.Equal(t, 2.0, values["videopipe_errors_total{stream}"])
	assert.Equal(t, 1.0, values["videopipe_reopens_total"])
	assert.Equal(t, 7.0, values["videopipe_frames_overwritten_total"])
	assert.Equal(t, 35.0, values["videopipe_frames_consumed_total"])
	assert.Equal(t, 1.0, values["videopipe_connected"])
	assert.Equal(t, 29.5, values["videopipe_fps"])
	assert.Equal(t, 1.5, values["videopipe_last_frame_age_seconds"])
	assert.Equal(t, 640.0, values["videopipe_frame_width"])
	assert.Equal(t, 480.0, values["videopipe_frame_height"])
	t.Logf("✅ %d series exported", len(values))
}

func TestMetrics_LiveValues(t *testing.T) {
	reg := prometheus.NewRegistry()
	var decoded uint64
	New(reg, func() Snapshot {
		return Snapshot{FramesDecoded: decoded, LastFrameAge: -1}
	})

	assert.Equal(t, 0.0, gather(t, reg)["videopipe_frames_decoded_total"])
	assert.Equal(t, -1.0, gather(t, reg)["videopipe_last_frame_age_seconds"])
	assert.Equal(t, 0.0, gather(t, reg)["videopipe_connected"])

	decoded = 10
	assert.Equal(t, 10.0, gather(t, reg)["videopipe_frames_decoded_total"])
}

func TestMetrics_Unregister(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, func() Snapshot { return Snapshot{} })
	m.Unregister(reg)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Empty(t, families)

	// Registering again must not panic with duplicate collectors.
	New(reg, func() Snapshot { return Snapshot{} })
}
