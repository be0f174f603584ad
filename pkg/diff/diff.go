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

// Package diff renders the changes of a build into a self contained
// HTML page that can be published as a build artifact.
package diff

import (
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"sigs.k8s.io/release-utils/hash"

	"sigs.k8s.io/ccanywhere/pkg/git"
	"sigs.k8s.io/ccanywhere/pkg/run"
)

// Source computes the changes between two revisions
type Source interface {
	Diff(base, head string) (*git.Diff, error)
}

type Generator struct {
	Source Source
}

func New(src Source) *Generator {
	return &Generator{Source: src}
}

type line struct {
	Class string
	Text  string
}

type page struct {
	Title     string
	Base      string
	Head      *run.CommitInfo
	Branch    string
	Files     []git.FileChange
	Additions int
	Deletions int
	Lines     []line
	Generated time.Time
}

// Generate writes diff-<shortsha>.html into the artifacts directory of
// the build and returns it as an artifact.
func (g *Generator) Generate(ctx context.Context, bc *run.BuildContext, base, head string) (*run.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d, err := g.Source.Diff(base, head)
	if err != nil {
		return nil, fmt.Errorf("computing diff: %w", err)
	}

	p := page{
		Title:     fmt.Sprintf("Diff %s", run.ShortSHA(d.Head.SHA)),
		Base:      run.ShortSHA(d.Base),
		Head:      d.Head,
		Branch:    bc.Branch,
		Files:     d.Files,
		Additions: d.Additions(),
		Deletions: d.Deletions(),
		Lines:     classify(d.Patch),
		Generated: bc.Timestamp,
	}
	if p.Base == "" {
		p.Base = "(root)"
	}

	if err := os.MkdirAll(bc.ArtifactsDir, os.FileMode(0o755)); err != nil {
		return nil, fmt.Errorf("creating artifacts directory: %w", err)
	}
	path := filepath.Join(bc.ArtifactsDir, fmt.Sprintf("diff-%s.html", run.ShortSHA(d.Head.SHA)))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating diff page: %w", err)
	}
	if err := pageTemplate.Execute(f, p); err != nil {
		f.Close()
		return nil, fmt.Errorf("rendering diff page: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("closing diff page: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("checking diff page: %w", err)
	}
	sha, err := hash.SHA256ForFile(path)
	if err != nil {
		return nil, fmt.Errorf("hashing diff page: %w", err)
	}
	logrus.Infof("Wrote diff page %s (%d files changed)", path, len(d.Files))
	return &run.Artifact{
		Type:     run.ArtifactDiff,
		Path:     path,
		Size:     info.Size(),
		Checksum: map[string]string{"sha256": sha},
		Time:     info.ModTime(),
	}, nil
}

func classify(patch string) []line {
	lines := []line{}
	for _, l := range strings.Split(strings.TrimRight(patch, "\n"), "\n") {
		class := "ctx"
		switch {
		case strings.HasPrefix(l, "diff --git"), strings.HasPrefix(l, "+++"), strings.HasPrefix(l, "---"):
			class = "file"
		case strings.HasPrefix(l, "@@"):
			class = "hunk"
		case strings.HasPrefix(l, "+"):
			class = "add"
		case strings.HasPrefix(l, "-"):
			class = "del"
		}
		lines = append(lines, line{Class: class, Text: l})
	}
	return lines
}

var pageTemplate = template.Must(template.New("diff.html").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{ .Title }}</title>
<style>
body { font-family: -apple-system, sans-serif; margin: 1.5em; color: #24292f; }
table.files td { padding: 0 1em 0 0; }
.n-add { color: #1a7f37; } .n-del { color: #cf222e; }
pre { background: #f6f8fa; padding: 1em; overflow-x: auto; font-size: 13px; }
pre span { display: block; white-space: pre; }
.add { background: #dafbe1; } .del { background: #ffebe9; }
.hunk { color: #8250df; } .file { font-weight: bold; }
</style>
</head>
<body>
<h1>{{ .Title }}</h1>
<p>{{ .Base }}..{{ .Head.SHA }}{{ if .Branch }} on <b>{{ .Branch }}</b>{{ end }}</p>
<p>{{ .Head.Summary }}<br><small>{{ .Head.Author }} &lt;{{ .Head.Email }}&gt; {{ .Head.Time.Format "2006-01-02 15:04:05 MST" }}</small></p>
<h2>{{ len .Files }} files changed, <span class="n-add">+{{ .Additions }}</span> <span class="n-del">-{{ .Deletions }}</span></h2>
<table class="files">
{{- range .Files }}
<tr><td>{{ .Path }}</td><td class="n-add">+{{ .Additions }}</td><td class="n-del">-{{ .Deletions }}</td></tr>
{{- end }}
</table>
<pre>
{{- range .Lines }}<span class="{{ .Class }}">{{ .Text }}</span>{{ end -}}
</pre>
<footer><small>Generated by ccanywhere at {{ .Generated.Format "2006-01-02 15:04:05 MST" }}</small></footer>
</body>
</html>
`))
