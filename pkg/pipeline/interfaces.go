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
	"context"
	"time"

	"sigs.k8s.io/ccanywhere/pkg/deploy"
	"sigs.k8s.io/ccanywhere/pkg/lock"
	"sigs.k8s.io/ccanywhere/pkg/notify"
	"sigs.k8s.io/ccanywhere/pkg/notify/driver"
	"sigs.k8s.io/ccanywhere/pkg/notify/message"
	"sigs.k8s.io/ccanywhere/pkg/run"
)

// The collaborators of a pipeline run. Each is implemented by one of the
// ccanywhere packages; tests swap in fakes.

type Locker interface {
	Acquire(lockFile string, timeout time.Duration, revision string) (*lock.Record, error)
	ReleaseOwned(lockFile string, rec *lock.Record) error
}

type Repository interface {
	Head() (revision, branch string, err error)
	CommitInfo(rev string) (*run.CommitInfo, error)
	Fetch(ctx context.Context) error
}

type DiffGenerator interface {
	Generate(ctx context.Context, bc *run.BuildContext, base, head string) (*run.Artifact, error)
}

type Deployer interface {
	Trigger(ctx context.Context, bc *run.BuildContext) (*deploy.Record, error)
}

type TestRunner interface {
	Run(ctx context.Context, bc *run.BuildContext) (*run.TestResult, error)
}

type Notifier interface {
	Send(ctx context.Context, msg *message.Message, channels ...driver.Kind) ([]notify.Outcome, error)
}

type Uploader interface {
	UploadArtifacts(ctx context.Context, baseDir, prefix string, artifacts []run.Artifact) ([]run.Artifact, error)
}

type Attester interface {
	Attest(ctx context.Context, bc *run.BuildContext, artifacts []run.Artifact) (*run.Artifact, error)
}
