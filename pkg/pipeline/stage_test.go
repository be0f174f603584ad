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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStageOf(t *testing.T) {
	base := errors.New("boom")
	for _, tc := range []struct {
		name string
		err  error
		exp  Stage
	}{
		{"untagged", base, StageUnknown},
		{"tagged", stageError(StageDiff, base), StageDiff},
		{"wrapped", fmt.Errorf("outer: %w", stageError(StageTest, base)), StageTest},
		{"first tag wins", stageError(StageNotify, stageError(StageLock, base)), StageLock},
		{"nil", nil, StageUnknown},
	} {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.exp, StageOf(tc.err))
		})
	}
}

func TestStageError(t *testing.T) {
	base := errors.New("boom")
	err := stageError(StageDeploy, base)
	require.Equal(t, "deploy: boom", err.Error())
	require.ErrorIs(t, err, base)
}
