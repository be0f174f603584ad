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

package diff

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sigs.k8s.io/ccanywhere/pkg/git"
	"sigs.k8s.io/ccanywhere/pkg/run"
)

type fakeSource struct {
	diff *git.Diff
	err  error
}

func (f *fakeSource) Diff(string, string) (*git.Diff, error) {
	return f.diff, f.err
}

func TestGenerate(t *testing.T) {
	src := &fakeSource{diff: &git.Diff{
		Base: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		Head: &run.CommitInfo{
			SHA:     "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
			Author:  "Jane Dev",
			Email:   "jane@example.com",
			Message: "Fix <script> handling",
			Time:    time.Unix(1700000000, 0),
		},
		Files: []git.FileChange{{Path: "app.js", Additions: 1, Deletions: 1}},
		Patch: "diff --git a/app.js b/app.js\n--- a/app.js\n+++ b/app.js\n@@ -1 +1 @@\n-alert(1)\n+document.write('<b>x</b>')\n",
	}}
	bc := &run.BuildContext{
		Branch:       "main",
		Timestamp:    time.Unix(1700000100, 0),
		ArtifactsDir: filepath.Join(t.TempDir(), "artifacts"),
	}

	a, err := New(src).Generate(context.Background(), bc, "", "")
	require.NoError(t, err)
	require.Equal(t, run.ArtifactDiff, a.Type)
	require.Equal(t, filepath.Join(bc.ArtifactsDir, "diff-bbbbbbb.html"), a.Path)
	require.Positive(t, a.Size)
	require.Len(t, a.Checksum["sha256"], 64)

	data, err := os.ReadFile(a.Path)
	require.NoError(t, err)
	html := string(data)
	require.Contains(t, html, "aaaaaaa..bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	require.Contains(t, html, `<span class="add">&#43;document.write(&#39;&lt;b&gt;x&lt;/b&gt;&#39;)</span>`)
	require.Contains(t, html, `<span class="del">-alert(1)</span>`)
	require.Contains(t, html, "Fix &lt;script&gt; handling")
	require.NotContains(t, html, "<script>")
}

func TestGenerateError(t *testing.T) {
	bc := &run.BuildContext{ArtifactsDir: t.TempDir()}
	_, err := New(&fakeSource{err: errors.New("bad revision")}).Generate(context.Background(), bc, "x", "y")
	require.ErrorContains(t, err, "bad revision")
}

func TestClassify(t *testing.T) {
	for _, tc := range []struct {
		line  string
		class string
	}{
		{"diff --git a/x b/x", "file"},
		{"--- a/x", "file"},
		{"+++ b/x", "file"},
		{"@@ -1,2 +1,2 @@", "hunk"},
		{"+added", "add"},
		{"-removed", "del"},
		{" context", "ctx"},
	} {
		lines := classify(tc.line)
		require.Len(t, lines, 1)
		require.Equal(t, tc.class, lines[0].Class, tc.line)
	}
}
