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
	"encoding/json"
	"fmt"
	"os"
	"time"

	"sigs.k8s.io/release-utils/command"

	"sigs.k8s.io/ccanywhere/pkg/run"
)

const (
	jsonReportEnv = "PLAYWRIGHT_JSON_OUTPUT_NAME"
	htmlReportEnv = "PLAYWRIGHT_HTML_REPORT"
)

// Run is one execution of the test command
type Run struct {
	Executable  *command.Command
	ExitCode    int
	Output      string
	Command     string
	Params      []string
	StartTime   time.Time
	EndTime     time.Time
	Environment RunEnvironment
	// JSONReport is where the JSON reporter was asked to write
	JSONReport string
}

type RunEnvironment struct {
	Variables map[string]string
	Directory string
}

// Env returns the run variables in KEY=VALUE form
func (re *RunEnvironment) Env() []string {
	env := make([]string, 0, len(re.Variables))
	for k, v := range re.Variables {
		env = append(env, k+"="+v)
	}
	return env
}

// Stats are the totals of a test report
type Stats struct {
	Expected   int     `json:"expected"`
	Unexpected int     `json:"unexpected"`
	Flaky      int     `json:"flaky"`
	Skipped    int     `json:"skipped"`
	Duration   float64 `json:"duration"`
}

type jsonReport struct {
	Stats *Stats `json:"stats"`
}

// ReadStats parses the stats section of a JSON test report
func ReadStats(path string) (*Stats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading test report: %w", err)
	}
	report := jsonReport{}
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parsing test report: %w", err)
	}
	if report.Stats == nil {
		return nil, fmt.Errorf("test report %s has no stats", path)
	}
	return report.Stats, nil
}

// Result converts the run and its report stats into a test result.
// Stats may be nil when no report was produced.
func (r *Run) Result(stats *Stats, artifacts []run.Artifact) *run.TestResult {
	res := &run.TestResult{
		Success:   r.ExitCode == 0,
		ExitCode:  r.ExitCode,
		Duration:  r.EndTime.Sub(r.StartTime),
		Artifacts: artifacts,
	}
	if stats == nil {
		return res
	}
	res.Passed = stats.Expected
	res.Failed = stats.Unexpected
	res.Flaky = stats.Flaky
	res.Skipped = stats.Skipped
	res.Total = stats.Expected + stats.Unexpected + stats.Flaky + stats.Skipped
	if stats.Duration > 0 {
		res.Duration = time.Duration(stats.Duration * float64(time.Millisecond))
	}
	if stats.Unexpected > 0 {
		res.Success = false
	}
	return res
}
