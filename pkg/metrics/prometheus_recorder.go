/*
Copyright 2026 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "ccanywhere"

// PrometheusRecorder implements Recorder using Prometheus metrics. Every
// run is a separate process writing a fresh textfile, so the metrics are
// gauges describing the last run rather than counters that would restart
// from zero each time.
type PrometheusRecorder struct {
	registry       *prom.Registry
	stageDuration  *prom.GaugeVec
	stageResults   *prom.GaugeVec
	buildDuration  prom.Gauge
	buildSuccess   prom.Gauge
	notifications  *prom.GaugeVec
	deployment     *prom.GaugeVec
	lockContention prom.Gauge
	lastRun        prom.Gauge
}

// NewPrometheusRecorder constructs the metrics and registers them in
// reg, or in a new registry when reg is nil
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		registry: reg,
		stageDuration: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "last_stage_duration_seconds",
			Help:      "Duration of each pipeline stage in the last run",
		}, []string{"stage"}),
		stageResults: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "last_stage_result",
			Help:      "Set to 1 for the result of each stage in the last run",
		}, []string{"stage", "result"}),
		buildDuration: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "last_build_duration_seconds",
			Help:      "Duration of the last build",
		}),
		buildSuccess: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "last_build_success",
			Help:      "1 if the last build succeeded, 0 otherwise",
		}),
		notifications: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "last_notifications",
			Help:      "Notification deliveries of the last run by channel and result",
		}, []string{"channel", "result"}),
		deployment: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "last_deployment_status",
			Help:      "Set to 1 for the final deployment status of the last run",
		}, []string{"status"}),
		lockContention: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "last_lock_contention",
			Help:      "1 if the last run was rejected because the build lock was held",
		}),
		lastRun: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last finished run",
		}),
	}
	reg.MustRegister(
		pr.stageDuration, pr.stageResults, pr.buildDuration, pr.buildSuccess,
		pr.notifications, pr.deployment, pr.lockContention, pr.lastRun,
	)
	return pr
}

// Registry returns the registry holding the recorder metrics
func (p *PrometheusRecorder) Registry() *prom.Registry {
	return p.registry
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	p.stageDuration.WithLabelValues(stage).Add(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	p.stageResults.WithLabelValues(stage, string(result)).Set(1)
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	p.buildDuration.Set(d.Seconds())
	p.lastRun.SetToCurrentTime()
}

func (p *PrometheusRecorder) IncBuildOutcome(success bool) {
	if success {
		p.buildSuccess.Set(1)
		return
	}
	p.buildSuccess.Set(0)
}

func (p *PrometheusRecorder) IncNotification(channel string, success bool) {
	p.notifications.WithLabelValues(channel, resultString(success)).Inc()
}

func (p *PrometheusRecorder) IncDeployment(status string) {
	p.deployment.Reset()
	p.deployment.WithLabelValues(status).Set(1)
}

func (p *PrometheusRecorder) IncLockContention() {
	p.lockContention.Set(1)
}

// WriteTextfile writes the metrics in text exposition format, ready for
// the node exporter textfile collector
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), os.FileMode(0o755)); err != nil {
		return fmt.Errorf("creating metrics directory: %w", err)
	}
	if err := prom.WriteToTextfile(path, p.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

func resultString(success bool) string {
	if success {
		return string(ResultSuccess)
	}
	return string(ResultFailed)
}
