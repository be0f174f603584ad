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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	pr := NewPrometheusRecorder(nil)
	pr.ObserveStageDuration("diff", 150*time.Millisecond)
	pr.IncStageResult("diff", ResultSuccess)
	pr.IncStageResult("deploy", ResultFailed)
	pr.ObserveBuildDuration(4 * time.Second)
	pr.IncBuildOutcome(true)
	pr.IncNotification("telegram", true)
	pr.IncNotification("email", false)
	pr.IncNotification("email", false)
	pr.IncDeployment("running")
	pr.IncDeployment("success")
	pr.IncLockContention()

	require.InDelta(t, 2, testutil.ToFloat64(pr.notifications.WithLabelValues("email", "failed")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(pr.lockContention), 0)
	require.InDelta(t, 1, testutil.ToFloat64(pr.buildSuccess), 0)
	require.InDelta(t, 4, testutil.ToFloat64(pr.buildDuration), 0)
	require.InDelta(t, 1, testutil.ToFloat64(pr.deployment.WithLabelValues("success")), 0)
	require.Equal(t, 1, testutil.CollectAndCount(pr.deployment))

	mfs, err := pr.Registry().Gather()
	require.NoError(t, err)
	require.NotEmpty(t, mfs)
}

func TestWriteTextfile(t *testing.T) {
	pr := NewPrometheusRecorder(nil)
	pr.IncBuildOutcome(false)
	path := filepath.Join(t.TempDir(), "textfile", "ccanywhere.prom")
	require.NoError(t, pr.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "ccanywhere_last_build_success 0")
	require.Contains(t, string(data), "# TYPE ccanywhere_last_build_success gauge")
	require.NotContains(t, string(data), "_total")
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveStageDuration("x", time.Second)
	r.IncBuildOutcome(true)
	r.IncLockContention()
}
