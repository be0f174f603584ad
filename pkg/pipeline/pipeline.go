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

// Package pipeline sequences one build: lock, diff, deployment, tests,
// artifact publishing and notifications. A run always produces a
// result and always releases the lock it acquired.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"sigs.k8s.io/ccanywhere/pkg/lock"
	"sigs.k8s.io/ccanywhere/pkg/metrics"
	"sigs.k8s.io/ccanywhere/pkg/run"
)

type Options struct {
	// RepoName prefixes notification titles
	RepoName     string
	WorkDir      string
	ArtifactsDir string
	LogDir       string
	LockFile     string
	LockTimeout  time.Duration
	// DryRun skips the lock, deployment, uploads and notifications
	DryRun bool
	// MetricsTextfile is written at the end of the run when the
	// recorder supports it
	MetricsTextfile string
}

type Pipeline struct {
	Options Options

	Locker Locker
	Repo   Repository
	Diff   DiffGenerator
	// Optional collaborators, nil disables the stage
	Deployer Deployer
	Tests    TestRunner
	Notifier Notifier
	Uploader Uploader
	Attester Attester

	Metrics metrics.Recorder
	now     func() time.Time
}

func New(opts Options) *Pipeline {
	if opts.LockFile == "" {
		opts.LockFile = lock.DefaultLockFile
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = lock.DefaultTimeout
	}
	return &Pipeline{
		Options: opts,
		Locker:  lock.New(),
		Metrics: metrics.NoopRecorder{},
		now:     time.Now,
	}
}

type textfileWriter interface {
	WriteTextfile(path string) error
}

// execution holds the state of one run
type execution struct {
	*Pipeline
	ctx      context.Context
	bc       *run.BuildContext
	res      *run.Result
	stage    Stage
	lockRec  *lock.Record
	warnings []string
	closeLog func()
}

// Run executes the pipeline for the changes from base to head. Empty
// revisions default to HEAD and its first parent. Run never panics nor
// returns an error: the outcome is reported in the result.
func (p *Pipeline) Run(ctx context.Context, base, head string) (res *run.Result) {
	start := p.now()
	e := &execution{
		Pipeline: p,
		ctx:      ctx,
		stage:    StageInit,
		res: &run.Result{
			Timestamp: start,
			Artifacts: []run.Artifact{},
		},
	}
	res = e.res

	defer e.finish(start)
	defer func() {
		if r := recover(); r != nil {
			e.fail(&StageError{Stage: e.stage, Err: errors.New(fmt.Sprint(r))})
		}
	}()

	if err := e.execute(base, head); err != nil {
		e.fail(err)
		return res
	}
	e.res.Success = true
	logrus.Infof("Build %s succeeded", e.bc.ShortRevision())
	e.notify(e.successMessage())
	return res
}

func (e *execution) execute(base, head string) error {
	if err := e.step(StageInit, func() error { return e.init(head) }); err != nil {
		return err
	}

	if e.Options.DryRun {
		logrus.Info("Dry run: skipping lock, deployment, uploads and notifications")
	} else if err := e.step(StageLock, e.acquire); err != nil {
		return err
	}

	if err := e.step(StageSetup, e.setup); err != nil {
		return err
	}

	if !e.Options.DryRun {
		if err := e.step(StageFetch, func() error { return e.Repo.Fetch(e.ctx) }); err != nil {
			logrus.Warnf("Unable to fetch latest changes, continuing: %v", err)
		}
	}

	if err := e.step(StageDiff, func() error { return e.diff(base) }); err != nil {
		return err
	}

	if e.Deployer != nil && !e.Options.DryRun {
		if err := e.step(StageDeploy, e.deploy); err != nil {
			logrus.Warnf("Deployment failed, continuing: %v", err)
			e.warnings = append(e.warnings, fmt.Sprintf("Deployment failed: %v", errors.Unwrap(err)))
		}
	}

	if e.Tests != nil {
		if err := e.step(StageTest, e.test); err != nil {
			return err
		}
	}

	if e.Attester != nil {
		if err := e.step(StageProvenance, e.provenance); err != nil {
			logrus.Warnf("Unable to write provenance: %v", err)
		}
	}

	if e.Uploader != nil && !e.Options.DryRun {
		if err := e.step(StageUpload, e.upload); err != nil {
			logrus.Warnf("Some artifacts were not published: %v", err)
		}
	}
	return nil
}

// step runs fn as stage, timing it and tagging its error with the stage
func (e *execution) step(stage Stage, fn func() error) error {
	e.stage = stage
	start := e.now()
	err := fn()
	e.Metrics.ObserveStageDuration(string(stage), e.now().Sub(start))
	if err != nil {
		e.Metrics.IncStageResult(string(stage), metrics.ResultFailed)
		return stageError(stage, err)
	}
	e.Metrics.IncStageResult(string(stage), metrics.ResultSuccess)
	return nil
}

func (e *execution) init(head string) error {
	if e.Repo == nil || e.Diff == nil {
		return errors.New("pipeline needs a repository and a diff generator")
	}
	revision, branch, err := e.Repo.Head()
	if err != nil {
		return fmt.Errorf("reading repository head: %w", err)
	}

	target := revision
	if head != "" {
		target = head
	}
	commit, err := e.Repo.CommitInfo(target)
	switch {
	case err == nil:
		revision = commit.SHA
		e.res.Commit = commit
	case head != "":
		return fmt.Errorf("resolving %s: %w", head, err)
	default:
		logrus.Warnf("Unable to read commit information: %v", err)
	}

	e.bc = &run.BuildContext{
		ID:           uuid.NewString(),
		Revision:     revision,
		Branch:       branch,
		Timestamp:    e.res.Timestamp,
		WorkDir:      e.Options.WorkDir,
		ArtifactsDir: e.Options.ArtifactsDir,
		LogDir:       e.Options.LogDir,
		LockFile:     e.Options.LockFile,
	}
	e.res.Revision = revision
	e.res.Branch = branch
	logrus.WithField("run", e.bc.ID).Infof("Starting build of %s (%s)", e.bc.ShortRevision(), branch)
	return nil
}

func (e *execution) acquire() error {
	rec, err := e.Locker.Acquire(e.bc.LockFile, e.Options.LockTimeout, e.bc.Revision)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			e.Metrics.IncLockContention()
		}
		return fmt.Errorf("acquiring build lock: %w", err)
	}
	e.lockRec = rec
	return nil
}

func (e *execution) setup() error {
	for _, dir := range []string{e.bc.ArtifactsDir, e.bc.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, os.FileMode(0o755)); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	if e.bc.LogDir != "" {
		path := filepath.Join(
			e.bc.LogDir, fmt.Sprintf("build-%s-%d.log", e.bc.ShortRevision(), e.bc.TimestampMillis()),
		)
		closeLog, err := attachLogFile(path)
		if err != nil {
			logrus.Warnf("Build log will not be written to a file: %v", err)
		} else {
			e.closeLog = closeLog
			logrus.Debugf("Writing build log to %s", path)
		}
	}
	return nil
}

func (e *execution) diff(base string) error {
	a, err := e.Diff.Generate(e.ctx, e.bc, base, e.bc.Revision)
	if err != nil {
		return fmt.Errorf("generating diff: %w", err)
	}
	e.res.Artifacts = append(e.res.Artifacts, *a)
	return nil
}

func (e *execution) deploy() error {
	rec, err := e.Deployer.Trigger(e.ctx, e.bc)
	if err != nil {
		return err
	}
	e.Metrics.IncDeployment(string(rec.Status))
	if !rec.Succeeded() {
		return fmt.Errorf("deployment %s is %s: %s", rec.ID, rec.Status, rec.Error)
	}
	e.res.DeploymentURL = rec.URL
	logrus.Infof("Deployment %s succeeded: %s", rec.ID, rec.URL)
	return nil
}

func (e *execution) test() error {
	tr, err := e.Tests.Run(e.ctx, e.bc)
	if err != nil {
		return fmt.Errorf("running tests: %w", err)
	}
	e.res.Test = tr
	e.res.Artifacts = append(e.res.Artifacts, tr.Artifacts...)
	if !tr.Success {
		e.warnings = append(e.warnings, fmt.Sprintf("Tests failed (exit code %d)", tr.ExitCode))
	}
	return nil
}

func (e *execution) provenance() error {
	a, err := e.Attester.Attest(e.ctx, e.bc, e.res.Artifacts)
	if err != nil {
		return err
	}
	e.res.Artifacts = append(e.res.Artifacts, *a)
	return nil
}

func (e *execution) upload() error {
	prefix := fmt.Sprintf("%s-%d", e.bc.ShortRevision(), e.bc.TimestampMillis())
	artifacts, err := e.Uploader.UploadArtifacts(e.ctx, e.bc.ArtifactsDir, prefix, e.res.Artifacts)
	if artifacts != nil {
		e.res.Artifacts = artifacts
	}
	return err
}

// fail turns err into a failed result and sends the error notification
func (e *execution) fail(err error) {
	stage := StageOf(err)
	e.res.Success = false
	e.res.Error = err.Error()
	e.res.FailedStage = string(stage)
	logrus.Errorf("Build failed in %s stage: %v", stage, err)
	e.notify(e.failureMessage(stage, err))
}

// finish releases the lock and records the run metrics. A lock that
// outlived its timeout and was taken over by another run is left alone.
func (e *execution) finish(start time.Time) {
	if e.lockRec != nil {
		if err := e.Locker.ReleaseOwned(e.bc.LockFile, e.lockRec); err != nil {
			logrus.Errorf("Releasing build lock: %v", err)
		} else {
			logrus.Debugf("Released build lock %s", e.bc.LockFile)
		}
		e.lockRec = nil
	}

	e.res.Duration = e.now().Sub(start)
	e.Metrics.ObserveBuildDuration(e.res.Duration)
	e.Metrics.IncBuildOutcome(e.res.Success)
	if w, ok := e.Metrics.(textfileWriter); ok && e.Options.MetricsTextfile != "" {
		if err := w.WriteTextfile(e.Options.MetricsTextfile); err != nil {
			logrus.Warnf("Unable to write metrics: %v", err)
		}
	}

	if e.closeLog != nil {
		e.closeLog()
	}
}
