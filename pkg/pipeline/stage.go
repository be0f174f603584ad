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
	"errors"
	"fmt"
)

// Stage names a step of the pipeline
type Stage string

const (
	StageInit       Stage = "init"
	StageLock       Stage = "lock"
	StageSetup      Stage = "setup"
	StageFetch      Stage = "fetch"
	StageDiff       Stage = "diff"
	StageDeploy     Stage = "deploy"
	StageTest       Stage = "test"
	StageProvenance Stage = "provenance"
	StageUpload     Stage = "upload"
	StageNotify     Stage = "notify"
	StageUnknown    Stage = "unknown"
)

// StageError is an error tagged with the stage that raised it
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// stageError tags err with stage unless it already carries one
func stageError(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the stage that raised err, or StageUnknown when the
// error is not tagged
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return StageUnknown
}
