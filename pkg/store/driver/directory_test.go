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

package driver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDirectorySnap(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data"), os.FileMode(0o755)))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("hi"), os.FileMode(0o644)))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data", "a.json"), []byte("{}"), os.FileMode(0o644)))

	d, err := NewDirectory("file://" + dir)
	require.NoError(t, err)
	snap, err := d.Snap()
	require.NoError(t, err)
	require.Len(t, *snap, 2)

	a, ok := (*snap)["data/a.json"]
	require.True(t, ok)
	require.Equal(t, int64(2), a.Size)
	require.Equal(t, "44136fa355b3678a1146ad16f7e8649e94fb4fc21fe77e8310c060f61caaff8a", a.Checksum["sha256"])
}

func TestDirectoryUpload(t *testing.T) {
	src := filepath.Join(t.TempDir(), "diff-abc1234.html")
	require.NoError(t, os.WriteFile(src, []byte("<html></html>"), os.FileMode(0o644)))

	pub := t.TempDir()
	d, err := NewDirectory(pub)
	require.NoError(t, err)

	u, err := d.Upload(context.Background(), src, "abc1234/diff-abc1234.html")
	require.NoError(t, err)
	require.Equal(t, "file://"+filepath.ToSlash(filepath.Join(pub, "abc1234", "diff-abc1234.html")), u)
	data, err := os.ReadFile(filepath.Join(pub, "abc1234", "diff-abc1234.html"))
	require.NoError(t, err)
	require.Equal(t, "<html></html>", string(data))

	// Keys cannot escape the directory
	d.PublicURL = "https://builds.example.com/"
	u, err = d.Upload(context.Background(), src, "../../etc/x.html")
	require.NoError(t, err)
	require.Equal(t, "https://builds.example.com/etc/x.html", u)
	require.FileExists(t, filepath.Join(pub, "etc", "x.html"))
}
