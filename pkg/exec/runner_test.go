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

package exec

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sigs.k8s.io/ccanywhere/pkg/run"
)

const reportJSON = `{
  "config": {},
  "suites": [],
  "stats": {
    "startTime": "2026-01-01T00:00:00.000Z",
    "duration": 1520.5,
    "expected": 7,
    "skipped": 1,
    "unexpected": 2,
    "flaky": 1
  }
}`

// fakeImplementation writes the report files itself instead of running
// a command
type fakeImplementation struct {
	defaultRunnerImplementation
	exitCode int
	report   string
	execErr  error
}

func (fi *fakeImplementation) Execute(_ context.Context, opts *Options, r *Run) error {
	if fi.execErr != nil {
		return fi.execErr
	}
	r.StartTime = time.Now()
	if fi.report != "" {
		if err := os.WriteFile(r.JSONReport, []byte(fi.report), os.FileMode(0o644)); err != nil {
			return err
		}
	}
	html := filepath.Join(opts.ReportDir, "html")
	if err := os.MkdirAll(html, os.FileMode(0o755)); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(html, "index.html"), []byte("<html></html>"), os.FileMode(0o644)); err != nil {
		return err
	}
	r.ExitCode = fi.exitCode
	r.EndTime = r.StartTime.Add(2 * time.Second)
	return nil
}

func testContext(t *testing.T) *run.BuildContext {
	t.Helper()
	dir := t.TempDir()
	return &run.BuildContext{WorkDir: dir, ArtifactsDir: filepath.Join(dir, "artifacts")}
}

func TestRunnerResults(t *testing.T) {
	for _, tc := range []struct {
		name      string
		impl      *fakeImplementation
		mustErr   bool
		success   bool
		failed    int
		total     int
		artifacts int
	}{
		{"failing tests are a result", &fakeImplementation{exitCode: 1, report: reportJSON}, false, false, 2, 11, 2},
		{"passing without report", &fakeImplementation{}, false, true, 0, 0, 1},
		{"broken report", &fakeImplementation{report: "{not json"}, false, true, 0, 0, 2},
		{"cannot run", &fakeImplementation{execErr: errors.New("npx: not found")}, true, false, 0, 0, 0},
	} {
		r := NewRunner(Options{})
		r.SetImplementation(tc.impl)
		bc := testContext(t)
		res, err := r.Run(context.Background(), bc)
		if tc.mustErr {
			require.Error(t, err, tc.name)
			continue
		}
		require.NoError(t, err, tc.name)
		require.Equal(t, tc.success, res.Success, tc.name)
		require.Equal(t, tc.failed, res.Failed, tc.name)
		require.Equal(t, tc.total, res.Total, tc.name)
		require.Len(t, res.Artifacts, tc.artifacts, tc.name)
		for _, a := range res.Artifacts {
			require.Equal(t, run.ArtifactReport, a.Type)
			require.FileExists(t, a.Path)
		}
	}
}

func TestRunResultDuration(t *testing.T) {
	r := &Run{StartTime: time.Unix(0, 0), EndTime: time.Unix(3, 0)}
	require.Equal(t, 3*time.Second, r.Result(nil, nil).Duration)
	res := r.Result(&Stats{Expected: 1, Duration: 1520.5}, nil)
	require.Equal(t, 1520500*time.Microsecond, res.Duration)
	require.True(t, res.Success)
}

func TestRunnerCommand(t *testing.T) {
	bc := testContext(t)
	script := `printf '%s' '{"stats":{"expected":3,"unexpected":0,"flaky":0,"skipped":0,"duration":10}}' > "$PLAYWRIGHT_JSON_OUTPUT_NAME"
exit 0
`
	require.NoError(t, os.WriteFile(filepath.Join(bc.WorkDir, "fake-test.sh"), []byte(script), os.FileMode(0o755)))

	res, err := NewRunner(Options{Command: []string{"sh", "fake-test.sh"}}).Run(context.Background(), bc)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, 3, res.Passed)
	require.Len(t, res.Artifacts, 1)
	require.Equal(t, filepath.Join(bc.ArtifactsDir, "test-report", "results.json"), res.Artifacts[0].Path)

	_, err = NewRunner(Options{Command: []string{"ccanywhere-no-such-binary"}}).Run(context.Background(), bc)
	require.Error(t, err)
}

func TestRunnerCommandFailing(t *testing.T) {
	bc := testContext(t)
	res, err := NewRunner(Options{Command: []string{"sh", "-c", "exit 3"}}).Run(context.Background(), bc)
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, 3, res.ExitCode)
	require.Zero(t, res.Total)
}
