// Package prom exposes the latest history row as Prometheus gauges, one
// series per history field, so a running solve can be watched live.
package prom

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ajitpratap0/feaout/pkg/field"
	"github.com/ajitpratap0/feaout/pkg/record"
	"github.com/ajitpratap0/feaout/pkg/sink"
)

// HistoryWriter publishes history rows as gauges
type HistoryWriter struct {
	reg    prometheus.Registerer
	zone   string
	values *prometheus.GaugeVec
	iter   *prometheus.GaugeVec
	fields []field.Descriptor
}

var _ sink.HistoryWriter = (*HistoryWriter)(nil)

// New registers the history gauges on reg for zone
func New(reg prometheus.Registerer, zone int) *HistoryWriter {
	factory := promauto.With(reg)
	return &HistoryWriter{
		reg:  reg,
		zone: strconv.Itoa(zone),
		values: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "feaout",
				Subsystem: "history",
				Name:      "value",
				Help:      "Latest reported value of each history field",
			},
			[]string{"zone", "field", "group"},
		),
		iter: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "feaout",
				Subsystem: "history",
				Name:      "iteration",
				Help:      "Iteration counters of the latest history row",
			},
			[]string{"zone", "counter"},
		),
	}
}

func (w *HistoryWriter) Name() string { return "prometheus" }

func (w *HistoryWriter) Open(_ context.Context, fields []field.Descriptor) error {
	w.fields = append([]field.Descriptor(nil), fields...)
	return nil
}

// WriteRow sets every gauge to the row's value
func (w *HistoryWriter) WriteRow(_ context.Context, snap record.HistorySnapshot) error {
	values, err := snap.Select(w.fields)
	if err != nil {
		return err
	}
	for i, d := range w.fields {
		w.values.WithLabelValues(w.zone, string(d.ID), d.Group).Set(values[i])
	}
	it := snap.Scope()
	w.iter.WithLabelValues(w.zone, "time").Set(float64(it.TimeIter))
	w.iter.WithLabelValues(w.zone, "outer").Set(float64(it.OuterIter))
	w.iter.WithLabelValues(w.zone, "inner").Set(float64(it.InnerIter))
	return nil
}

// Close unregisters the gauges
func (w *HistoryWriter) Close() error {
	if w.reg != nil {
		w.reg.Unregister(w.values)
		w.reg.Unregister(w.iter)
		w.reg = nil
	}
	return nil
}
