package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"

	"github.com/spec-kit/ticket-router/internal/config"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/tickets", "POST", 201, 15*time.Millisecond)
	m.RecordAssignment("sweep")
	m.RecordAssignment("sweep")
	m.RecordDispatch("NO_ENGINEER_AVAILABLE")
	m.RecordSweep(3, 1)
	m.RecordSweep(0, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("/tickets", "POST", "201")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.assignments.WithLabelValues("sweep")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatch.WithLabelValues("NO_ENGINEER_AVAILABLE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sweeps))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.sweepReassigned))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sweepSkipped))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("/", "GET", 200, time.Millisecond)
		m.RecordSweep(1, 0)
		m.RecordAvailability(true)
	})
}

func TestNewLoggerAcceptsUnknownLevel(t *testing.T) {
	logger, err := NewLogger(config.LoggerConfig{Level: "chatty"}, config.AppConfig{Name: "ticket-router", Version: "test"})
	assert.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))

	dev, err := NewLogger(config.LoggerConfig{Level: "debug", Development: true}, config.AppConfig{})
	assert.NoError(t, err)
	assert.True(t, dev.Core().Enabled(zapcore.DebugLevel))
}
