package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRecordingFailureIsLoggedWithGlobalLogger(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	t.Cleanup(zap.ReplaceGlobals(zap.New(core)))

	vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_total"}, []string{jobLabel})

	metrics.incVec(vec, "test_total", prometheus.Labels{"unknown": "x"})

	entries := logs.FilterField(zap.String("event", "recording_metric_failed")).All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "metrics", entries[0].LoggerName)
	}
}
