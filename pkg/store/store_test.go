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

package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"sigs.k8s.io/ccanywhere/pkg/run"
)

type failingStore struct{}

func (failingStore) Upload(_ context.Context, localPath, _ string) (string, error) {
	if filepath.Ext(localPath) == ".json" {
		return "", errors.New("quota exceeded")
	}
	return "https://cdn.example.com/" + filepath.Base(localPath), nil
}

func TestNew(t *testing.T) {
	for _, tc := range []struct {
		url      string
		mustFail bool
	}{
		{"file:///tmp/publish", false},
		{"/tmp/publish", false},
		{"s3://bucket/path", true},
		{"::", true},
	} {
		_, err := New(context.Background(), tc.url, Options{})
		if tc.mustFail {
			require.Error(t, err, tc.url)
		} else {
			require.NoError(t, err, tc.url)
		}
	}
}

func TestUploadArtifacts(t *testing.T) {
	artifacts := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(artifacts, "test-report"), os.FileMode(0o755)))
	diff := filepath.Join(artifacts, "diff-abc1234.html")
	report := filepath.Join(artifacts, "test-report", "index.html")
	for _, p := range []string{diff, report} {
		require.NoError(t, os.WriteFile(p, []byte(p), os.FileMode(0o644)))
	}

	pub := t.TempDir()
	s, err := New(context.Background(), "file://"+pub, Options{PublicURL: "https://builds.example.com"})
	require.NoError(t, err)

	in := []run.Artifact{{Type: run.ArtifactDiff, Path: diff}, {Type: run.ArtifactReport, Path: report}}
	res, err := s.UploadArtifacts(context.Background(), artifacts, "abc1234-1700000000000", in)
	require.NoError(t, err)
	require.Equal(t, "https://builds.example.com/abc1234-1700000000000/diff-abc1234.html", res[0].URL)
	require.Equal(t, "https://builds.example.com/abc1234-1700000000000/test-report/index.html", res[1].URL)
	require.FileExists(t, filepath.Join(pub, "abc1234-1700000000000", "test-report", "index.html"))
	require.Empty(t, in[0].URL)
}

func TestUploadArtifactsPartialFailure(t *testing.T) {
	s := &Store{Driver: failingStore{}}
	res, err := s.UploadArtifacts(context.Background(), "/a", "p", []run.Artifact{
		{Path: "/a/diff.html"}, {Path: "/a/results.json"},
	})
	require.ErrorContains(t, err, "quota exceeded")
	require.Equal(t, "https://cdn.example.com/diff.html", res[0].URL)
	require.Empty(t, res[1].URL)
	require.Equal(t, "/a/results.json", res[1].Location())
}
