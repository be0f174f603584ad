/*
Copyright 2022 Adolfo García Veytia

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
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"sigs.k8s.io/ccanywhere/pkg/run"
)

// DefaultCommand runs playwright with the json and html reporters
var DefaultCommand = []string{"npx", "playwright", "test", "--reporter=json,html"}

func NewRunner(opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if len(opts.Command) == 0 {
		opts.Command = DefaultCommand
	}
	return &Runner{
		Options:        opts,
		implementation: &defaultRunnerImplementation{},
	}
}

type Runner struct {
	Options        Options
	implementation RunnerImplementation
}

type Options struct {
	Verbose bool
	// Command is the test command and its arguments
	Command []string
	CWD     string
	// ReportDir receives the JSON and HTML reports
	ReportDir string
	Logger    *logrus.Logger
}

// SetImplementation swaps the runner implementation
func (r *Runner) SetImplementation(ri RunnerImplementation) {
	r.implementation = ri
}

// Run executes the test command for a build. Failing tests are reported
// in the result; an error is returned only if the command could not be
// run at all.
func (r *Runner) Run(ctx context.Context, bc *run.BuildContext) (*run.TestResult, error) {
	opts := r.Options
	if opts.CWD == "" {
		opts.CWD = bc.WorkDir
	}
	if opts.ReportDir == "" {
		opts.ReportDir = filepath.Join(bc.ArtifactsDir, "test-report")
	}

	testRun, err := r.implementation.CreateRun(&opts)
	if err != nil {
		return nil, fmt.Errorf("creating test run: %w", err)
	}

	// Snapshot the report directory to find out what the run produced
	pre, err := r.implementation.Snapshot(&opts)
	if err != nil {
		return nil, fmt.Errorf("running initial snapshot: %w", err)
	}

	if err := r.implementation.Execute(ctx, &opts, testRun); err != nil {
		return nil, fmt.Errorf("executing tests: %w", err)
	}

	post, err := r.implementation.Snapshot(&opts)
	if err != nil {
		return nil, fmt.Errorf("running final snapshot: %w", err)
	}

	artifacts := []run.Artifact{}
	for _, a := range pre.Delta(post) {
		a.Type = run.ArtifactReport
		a.Path = filepath.Join(opts.ReportDir, a.Path)
		artifacts = append(artifacts, a)
	}

	stats, err := r.implementation.ReadStats(&opts, testRun)
	if err != nil {
		opts.Logger.Warnf("No test statistics available: %v", err)
		stats = nil
	}

	res := testRun.Result(stats, artifacts)
	opts.Logger.Infof(
		"Tests finished (exit code %d): %d passed, %d failed, %d flaky, %d skipped",
		res.ExitCode, res.Passed, res.Failed, res.Flaky, res.Skipped,
	)
	return res, nil
}
