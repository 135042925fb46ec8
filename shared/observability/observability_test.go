package observability

import (
	"context"
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"victim-support/backend/pkg/logger"
)

type fixedStats struct{ connections, rooms int }

func (s fixedStats) ConnectionCount() int { return s.connections }
func (s fixedStats) RoomCount() int       { return s.rooms }

func TestLiveGaugesAreExported(t *testing.T) {
	mp, err := SetupPrometheusMetrics("observability-test")
	require.NoError(t, err)
	defer mp.Shutdown(context.Background())

	require.NoError(t, RegisterLiveGauges(mp, fixedStats{connections: 3, rooms: 2}))

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, f := range families {
		for _, m := range f.GetMetric() {
			if m.GetGauge() != nil {
				values[f.GetName()] = m.GetGauge().GetValue()
			}
		}
	}
	assert.Equal(t, float64(2), values["chat_live_rooms"])
	assert.Equal(t, float64(3), values["chat_live_joined_connections"])
}

func TestSetupTracing(t *testing.T) {
	log := logger.New(logger.Config{Level: "error", Output: io.Discard})

	for _, exporter := range []string{"none", "stdout"} {
		shutdown, err := SetupTracing("observability-test", exporter, log)
		require.NoError(t, err)
		assert.NoError(t, shutdown(context.Background()))
	}
}
