// Copyright © 2024 The sgtree Authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package cmd

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// stageMetrics collects numbers of one stage for the node exporter
// textfile collector.
type stageMetrics struct {
	registry *prometheus.Registry
	units    *prometheus.GaugeVec
	seqs     *prometheus.GaugeVec
	duration *prometheus.GaugeVec
}

func newStageMetrics() *stageMetrics {
	m := &stageMetrics{
		registry: prometheus.NewRegistry(),
		units: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sgtree",
			Name:      "stage_units",
			Help:      "Number of marker units processed by a stage.",
		}, []string{"stage", "status"}),
		seqs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sgtree",
			Name:      "stage_records",
			Help:      "Number of records kept or removed by a stage.",
		}, []string{"stage", "status"}),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sgtree",
			Name:      "stage_duration_seconds",
			Help:      "Wall time of a stage.",
		}, []string{"stage"}),
	}
	m.registry.MustRegister(m.units, m.seqs, m.duration)
	return m
}

// writeStageMetrics writes metrics of a finished stage if --metrics-file is
// given.
func writeStageMetrics(opt *Options, stage string, timeStart time.Time, units, failed, kept, removed int) {
	if opt.MetricsFile == "" {
		return
	}
	m := newStageMetrics()
	m.units.WithLabelValues(stage, "ok").Set(float64(units - failed))
	m.units.WithLabelValues(stage, "failed").Set(float64(failed))
	m.seqs.WithLabelValues(stage, "kept").Set(float64(kept))
	m.seqs.WithLabelValues(stage, "removed").Set(float64(removed))
	m.duration.WithLabelValues(stage).Set(time.Since(timeStart).Seconds())

	err := prometheus.WriteToTextfile(opt.MetricsFile, m.registry)
	checkError(errors.Wrap(err, opt.MetricsFile))
	if opt.logging() {
		log.Infof("metrics saved to: %s", opt.MetricsFile)
	}
}
