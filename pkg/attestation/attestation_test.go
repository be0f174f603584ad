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

package attestation

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sigs.k8s.io/ccanywhere/pkg/run"
)

type fakeSource string

func (f fakeSource) SourceURL() (string, error) { return string(f), nil }

func TestAttest(t *testing.T) {
	dir := t.TempDir()
	report := filepath.Join(dir, "test-report", "results.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(report), os.FileMode(0o755)))
	require.NoError(t, os.WriteFile(report, []byte("{}"), os.FileMode(0o644)))

	bc := &run.BuildContext{
		ID:           "run-1",
		Revision:     "0123456789abcdef0123456789abcdef01234567",
		Branch:       "main",
		Timestamp:    time.Unix(1700000000, 0),
		ArtifactsDir: dir,
	}
	w := NewWriter(fakeSource("https://github.com/example/webapp.git"))
	w.now = func() time.Time { return time.Unix(1700000060, 0) }

	a, err := w.Attest(context.Background(), bc, []run.Artifact{
		{Type: run.ArtifactDiff, Path: filepath.Join(dir, "diff-0123456.html"), Checksum: map[string]string{"sha256": "abc"}},
		{Type: run.ArtifactReport, Path: report},
	})
	require.NoError(t, err)
	require.Equal(t, run.ArtifactProvenance, a.Type)
	require.Equal(t, filepath.Join(dir, "provenance-0123456.intoto.json"), a.Path)

	data, err := os.ReadFile(a.Path)
	require.NoError(t, err)
	doc := map[string]any{}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Equal(t, "https://in-toto.io/Statement/v1", doc["_type"])
	require.Equal(t, PredicateType, doc["predicateType"])

	subjects := doc["subject"].([]any)
	require.Len(t, subjects, 2)
	require.Equal(t, "diff-0123456.html", subjects[0].(map[string]any)["name"])
	require.Equal(t, "test-report/results.json", subjects[1].(map[string]any)["name"])
	require.Equal(t,
		"44136fa355b3678a1146ad16f7e8649e94fb4fc21fe77e8310c060f61caaff8a",
		subjects[1].(map[string]any)["digest"].(map[string]any)["sha256"],
	)

	pred := doc["predicate"].(map[string]any)
	def := pred["buildDefinition"].(map[string]any)
	require.Equal(t, BuildType, def["buildType"])
	params := def["externalParameters"].(map[string]any)
	require.Equal(t, "https://github.com/example/webapp.git@0123456789abcdef0123456789abcdef01234567", params["source"])
	require.Equal(t, "run-1", pred["runDetails"].(map[string]any)["metadata"].(map[string]any)["invocationId"])
}

func TestAttestMissingFile(t *testing.T) {
	bc := &run.BuildContext{ArtifactsDir: t.TempDir()}
	_, err := NewWriter(nil).Attest(context.Background(), bc, []run.Artifact{{Path: "/does/not/exist"}})
	require.Error(t, err)
}
