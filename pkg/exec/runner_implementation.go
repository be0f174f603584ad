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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sigs.k8s.io/release-utils/command"

	"sigs.k8s.io/ccanywhere/pkg/store/driver"
	"sigs.k8s.io/ccanywhere/pkg/store/snapshot"
)

type RunnerImplementation interface {
	CreateRun(*Options) (*Run, error)
	Snapshot(*Options) (*snapshot.Snapshot, error)
	Execute(context.Context, *Options, *Run) error
	ReadStats(*Options, *Run) (*Stats, error)
}

type defaultRunnerImplementation struct{}

// CreateRun creates the run from the configured command line
func (ri *defaultRunnerImplementation) CreateRun(opts *Options) (r *Run, err error) {
	if len(opts.Command) == 0 || opts.Command[0] == "" {
		return nil, errors.New("test command is empty")
	}
	cwd := opts.CWD
	if cwd == "" {
		cwd, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting current directory: %w", err)
		}
	}

	jsonReport := filepath.Join(opts.ReportDir, "results.json")
	r = &Run{
		Command:    opts.Command[0],
		Params:     opts.Command[1:],
		JSONReport: jsonReport,
		Environment: RunEnvironment{
			Directory: cwd,
			Variables: map[string]string{
				jsonReportEnv: jsonReport,
				htmlReportEnv: filepath.Join(opts.ReportDir, "html"),
			},
		},
	}
	r.Executable = command.NewWithWorkDir(cwd, r.Command, r.Params...).Env(r.Environment.Env()...)

	opts.Logger.Infof(
		"Executing command: %s %s", r.Command, strings.Join(r.Params, " "),
	)
	return r, nil
}

func (ri *defaultRunnerImplementation) Execute(ctx context.Context, opts *Options, r *Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var (
		status *command.Status
		err    error
	)

	r.StartTime = time.Now()
	if opts.Verbose {
		status, err = r.Executable.Run()
	} else {
		status, err = r.Executable.RunSilent()
	}
	r.EndTime = time.Now()
	if err != nil {
		return fmt.Errorf("running %s: %w", r.Command, err)
	}

	r.ExitCode = status.ExitCode()
	r.Output = status.Output()
	if !status.Success() {
		opts.Logger.Warnf("Test command exited with code %d", r.ExitCode)
		opts.Logger.Debug(status.Error())
	}
	return nil
}

// Snapshot records the files in the report directory, creating it first
func (ri *defaultRunnerImplementation) Snapshot(opts *Options) (*snapshot.Snapshot, error) {
	if err := os.MkdirAll(opts.ReportDir, os.FileMode(0o755)); err != nil {
		return nil, fmt.Errorf("creating report directory: %w", err)
	}
	d, err := driver.NewDirectory(opts.ReportDir)
	if err != nil {
		return nil, err
	}
	return d.Snap()
}

func (ri *defaultRunnerImplementation) ReadStats(_ *Options, r *Run) (*Stats, error) {
	return ReadStats(r.JSONReport)
}
