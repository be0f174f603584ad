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

package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"sigs.k8s.io/ccanywhere/pkg/notify/message"
	"sigs.k8s.io/ccanywhere/pkg/run"
)

// notify sends msg on every channel. Failures, panics included, are
// logged and never change the result.
func (e *execution) notify(msg *message.Message) {
	if e.Notifier == nil || e.Options.DryRun {
		return
	}
	err := e.step(StageNotify, func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("notifier panic: %s", fmt.Sprint(r))
			}
		}()
		_, err = e.Notifier.Send(e.ctx, msg)
		return err
	})
	if err != nil {
		logrus.Errorf("Unable to send build notification: %v", err)
	}
}

func (e *execution) title(format string, args ...any) string {
	t := fmt.Sprintf(format, args...)
	if e.Options.RepoName != "" {
		t = "[" + e.Options.RepoName + "] " + t
	}
	return t
}

func (e *execution) shortRevision() string {
	if e.bc == nil {
		return "(unknown)"
	}
	return e.bc.ShortRevision()
}

// details returns the lines describing the build common to every message
func (e *execution) details() []string {
	lines := []string{}
	if e.res.Branch != "" {
		lines = append(lines, "Branch: "+e.res.Branch)
	}
	if c := e.res.Commit; c != nil {
		lines = append(lines, fmt.Sprintf("Commit: %s %s (%s)", run.ShortSHA(c.SHA), c.Summary(), c.Author))
	}
	return lines
}

// addArtifactLink links the artifact when it was published, otherwise
// its local path goes in the body
func addArtifactLink(msg *message.Message, lines []string, label string, a *run.Artifact) []string {
	if a == nil {
		return lines
	}
	if a.URL != "" {
		msg.AddLink(label, a.URL)
		return lines
	}
	return append(lines, fmt.Sprintf("%s: %s", label, a.Path))
}

// reportArtifact returns the entry point of the test report
func reportArtifact(res *run.Result) *run.Artifact {
	var first *run.Artifact
	for i := range res.Artifacts {
		a := &res.Artifacts[i]
		if a.Type != run.ArtifactReport {
			continue
		}
		if filepath.Base(a.Path) == "index.html" {
			return a
		}
		if first == nil {
			first = a
		}
	}
	return first
}

func (e *execution) successMessage() *message.Message {
	status := message.StatusSuccess
	title := e.title("Build %s succeeded", e.shortRevision())
	if len(e.warnings) > 0 {
		status = message.StatusWarning
		title = e.title("Build %s finished with warnings", e.shortRevision())
	}
	msg := message.New(status, title)

	lines := e.details()
	if t := e.res.Test; t != nil {
		lines = append(lines, fmt.Sprintf(
			"Tests: %d passed, %d failed, %d flaky, %d skipped",
			t.Passed, t.Failed, t.Flaky, t.Skipped,
		))
	}
	lines = append(lines, e.warnings...)
	lines = append(lines, fmt.Sprintf("Duration: %s", e.now().Sub(e.res.Timestamp).Round(time.Second)))

	lines = addArtifactLink(msg, lines, "Diff", e.res.ArtifactOfType(run.ArtifactDiff))
	lines = addArtifactLink(msg, lines, "Test report", reportArtifact(e.res))
	msg.AddLink("Deployment", e.res.DeploymentURL)
	msg.Body = strings.Join(lines, "\n")
	return msg
}

func (e *execution) failureMessage(stage Stage, err error) *message.Message {
	msg := message.New(message.StatusFailure, e.title("Build %s failed at %s", e.shortRevision(), stage))
	lines := e.details()
	lines = append(lines, "Error: "+err.Error())
	lines = addArtifactLink(msg, lines, "Diff", e.res.ArtifactOfType(run.ArtifactDiff))
	msg.Body = strings.Join(lines, "\n")
	return msg
}
