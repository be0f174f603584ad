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

package snapshot

import (
	"maps"
	"slices"

	"sigs.k8s.io/ccanywhere/pkg/run"
)

// Snapshot is the state of a set of files at a point in time, keyed by path
type Snapshot map[string]run.Artifact

// Delta returns the artifacts in post that were added or changed since
// the snapshot was taken, sorted by path. Removed files are ignored.
func (snap *Snapshot) Delta(post *Snapshot) []run.Artifact {
	results := []run.Artifact{}
	for _, path := range slices.Sorted(maps.Keys(*post)) {
		f := (*post)[path]
		pre, ok := (*snap)[path]
		if !ok || !pre.Time.Equal(f.Time) || !maps.Equal(pre.Checksum, f.Checksum) {
			results = append(results, f)
		}
	}
	return results
}
