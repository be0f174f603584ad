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

// Package metrics records build pipeline metrics. Runs are short lived,
// so the Prometheus recorder exports to a node exporter textfile instead
// of serving a scrape endpoint.
package metrics

import "time"

// ResultLabel enumerates stage result categories
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailed  ResultLabel = "failed"
	ResultSkipped ResultLabel = "skipped"
)

// Recorder defines the observability hooks of a pipeline run
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(success bool)
	IncNotification(channel string, success bool)
	IncDeployment(status string)
	IncLockContention()
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured)
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)         {}
func (NoopRecorder) IncBuildOutcome(bool)                       {}
func (NoopRecorder) IncNotification(string, bool)               {}
func (NoopRecorder) IncDeployment(string)                       {}
func (NoopRecorder) IncLockContention()                         {}
