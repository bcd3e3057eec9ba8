package batch

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	registry           *prometheus.Registry
	conversionsTotal   *prometheus.CounterVec
	conversionDuration *prometheus.HistogramVec
	outputBytesTotal   *prometheus.CounterVec
	levelsTotal        prometheus.Counter
	lastRunSuccess     prometheus.Gauge
	lastRunDuration    prometheus.Gauge
	lastRunTimestamp   prometheus.Gauge
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()

	m := &metrics{
		registry: registry,
		conversionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "levelforge_conversions_total",
			Help: "Image conversions by output variant and final status.",
		}, []string{"variant", "status"}),
		conversionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "levelforge_conversion_duration_seconds",
			Help:    "Decode, resample and write duration for one output image.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"variant"}),
		outputBytesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "levelforge_output_bytes_total",
			Help: "Bytes of PNG data written by output variant.",
		}, []string{"variant"}),
		levelsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "levelforge_levels_converted_total",
			Help: "Levels whose full-size and thumbnail assets were both written.",
		}),
		lastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "levelforge_last_run_success",
			Help: "1 if the last batch run converted every input, 0 otherwise.",
		}),
		lastRunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "levelforge_last_run_duration_seconds",
			Help: "Wall-clock duration of the last batch run.",
		}),
		lastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "levelforge_last_run_timestamp_seconds",
			Help: "Unix time the last batch run finished.",
		}),
	}

	registry.MustRegister(
		m.conversionsTotal,
		m.conversionDuration,
		m.outputBytesTotal,
		m.levelsTotal,
		m.lastRunSuccess,
		m.lastRunDuration,
		m.lastRunTimestamp,
	)
	return m
}

// writeTextfile dumps the registry in the format read by node_exporter's
// textfile collector.
func (m *metrics) writeTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
