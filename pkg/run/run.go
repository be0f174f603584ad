/*
Copyright 2022 The Kubernetes Authors.

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

package run

import (
	"time"
)

// BuildContext holds the coordinates of a single pipeline run. It is
// created once by the pipeline and must not be modified afterwards.
type BuildContext struct {
	ID           string
	Revision     string
	Branch       string
	Timestamp    time.Time
	WorkDir      string
	ArtifactsDir string
	LogDir       string
	LockFile     string
}

// TimestampMillis returns the run timestamp as epoch milliseconds
func (bc *BuildContext) TimestampMillis() int64 {
	return bc.Timestamp.UnixMilli()
}

// ShortRevision returns the abbreviated revision
func (bc *BuildContext) ShortRevision() string {
	return ShortSHA(bc.Revision)
}

// ShortSHA truncates a git hash to seven characters
func ShortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

type ArtifactType string

const (
	ArtifactDiff       ArtifactType = "diff"
	ArtifactReport     ArtifactType = "report"
	ArtifactProvenance ArtifactType = "provenance"
)

// Artifact abstracts a file produced by the run
type Artifact struct {
	Type     ArtifactType      `json:"type"`
	Path     string            `json:"path"`
	URL      string            `json:"url,omitempty"`
	Size     int64             `json:"size"`
	Checksum map[string]string `json:"checksum,omitempty"`
	Time     time.Time         `json:"time"`
}

// Location returns the URL of the artifact if it was published, the
// local path otherwise.
func (a *Artifact) Location() string {
	if a.URL != "" {
		return a.URL
	}
	return a.Path
}

// CommitInfo is the metadata of the commit being built
type CommitInfo struct {
	SHA     string    `json:"sha"`
	Author  string    `json:"author"`
	Email   string    `json:"email"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Summary returns the first line of the commit message
func (ci *CommitInfo) Summary() string {
	for i, c := range ci.Message {
		if c == '\n' {
			return ci.Message[:i]
		}
	}
	return ci.Message
}

// TestResult captures the outcome of a test suite execution
type TestResult struct {
	Success   bool          `json:"success"`
	Total     int           `json:"total"`
	Passed    int           `json:"passed"`
	Failed    int           `json:"failed"`
	Flaky     int           `json:"flaky"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"duration"`
	ExitCode  int           `json:"exitCode"`
	Artifacts []Artifact    `json:"artifacts,omitempty"`
}

// Result is the outcome of a pipeline run. A run always produces
// exactly one Result, successful or not.
type Result struct {
	Success       bool          `json:"success"`
	Revision      string        `json:"revision"`
	Branch        string        `json:"branch"`
	Timestamp     time.Time     `json:"timestamp"`
	Duration      time.Duration `json:"duration"`
	Artifacts     []Artifact    `json:"artifacts"`
	DeploymentURL string        `json:"deploymentUrl,omitempty"`
	Test          *TestResult   `json:"test,omitempty"`
	Commit        *CommitInfo   `json:"commit,omitempty"`
	Error         string        `json:"error,omitempty"`
	FailedStage   string        `json:"failedStage,omitempty"`
}

// ArtifactOfType returns the first artifact of type t
func (r *Result) ArtifactOfType(t ArtifactType) *Artifact {
	for i := range r.Artifacts {
		if r.Artifacts[i].Type == t {
			return &r.Artifacts[i]
		}
	}
	return nil
}
